package settlement

import (
	"errors"
	"time"
)

var (
	// ErrEmptyDate is returned when a settlement date is missing.
	ErrEmptyDate = errors.New("settlement: empty date")
	// ErrNilRecord is returned when saving a nil record.
	ErrNilRecord = errors.New("settlement: nil record")
)

// Record marks one calendar date as settled. Its existence is the
// idempotency guard: at most one row per settlement_date, enforced by a
// unique constraint so concurrent runs cannot both pass the guard.
type Record struct {
	ID             string
	SettlementDate string
	IsBroadcasted  bool
	CreatedAt      time.Time
}
