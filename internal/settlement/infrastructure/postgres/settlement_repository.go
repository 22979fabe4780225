package postgres

import (
	"context"
	"database/sql"
	"errors"
	"time"

	settlement "lunchbot/internal/settlement/domain"
	"lunchbot/internal/storage"
)

// ErrDuplicateDate is returned when a settlement record already exists for
// the date, detected via the unique constraint.
var ErrDuplicateDate = errors.New("settlement repo: duplicate settlement date")

// SettlementRepository persists daily settlement records.
type SettlementRepository struct {
	q storage.Querier
}

// NewSettlementRepository constructs a repository.
func NewSettlementRepository(q storage.Querier) *SettlementRepository {
	return &SettlementRepository{q: q}
}

// GetByDate loads the settlement record for a date, or nil when the date
// has not been settled.
func (r *SettlementRepository) GetByDate(ctx context.Context, date string) (*settlement.Record, error) {
	if r == nil || r.q == nil {
		return nil, errors.New("settlement repo: nil querier")
	}
	if date == "" {
		return nil, settlement.ErrEmptyDate
	}
	row := r.q.QueryRowContext(ctx, `
SELECT id, settlement_date, is_broadcasted, created_at
FROM daily_settlements
WHERE settlement_date = $1
LIMIT 1`, date)

	var record settlement.Record
	err := row.Scan(&record.ID, &record.SettlementDate, &record.IsBroadcasted, &record.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &record, nil
}

// Create inserts the settlement record. The unique constraint on
// settlement_date is the last line of defense against two concurrent runs
// both passing the read guard.
func (r *SettlementRepository) Create(ctx context.Context, record *settlement.Record) error {
	if r == nil || r.q == nil {
		return errors.New("settlement repo: nil querier")
	}
	if record == nil {
		return settlement.ErrNilRecord
	}
	if record.SettlementDate == "" {
		return settlement.ErrEmptyDate
	}
	if record.ID == "" {
		record.ID = storage.NewID("settle")
	}
	if record.CreatedAt.IsZero() {
		record.CreatedAt = time.Now().UTC()
	}
	_, err := r.q.ExecContext(ctx, `
INSERT INTO daily_settlements (id, settlement_date, is_broadcasted, created_at)
VALUES ($1, $2, $3, $4)`,
		record.ID, record.SettlementDate, record.IsBroadcasted, record.CreatedAt)
	if storage.IsUniqueViolation(err) {
		return ErrDuplicateDate
	}
	return err
}
