package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/shopspring/decimal"

	ledger "lunchbot/internal/ledger/domain"
	"lunchbot/internal/storage"
	users "lunchbot/internal/users/domain"
)

// LedgerRepository applies balance mutations paired with their append-only
// transaction rows. Every write goes through the caller's querier, so the
// balance update and the audit row always commit or roll back together. No
// code path updates a balance without the paired row.
type LedgerRepository struct {
	q storage.Querier
}

// NewLedgerRepository constructs a repository.
func NewLedgerRepository(q storage.Querier) *LedgerRepository {
	return &LedgerRepository{q: q}
}

// Pay subtracts amount from the user's balance and records a payment.
// The balance is allowed to go negative.
func (r *LedgerRepository) Pay(ctx context.Context, userID string, amount decimal.Decimal, orderID string) (*ledger.Transaction, error) {
	return r.apply(ctx, userID, ledger.TypePayment, amount, orderID)
}

// Refund adds amount back to the user's balance and records a refund.
func (r *LedgerRepository) Refund(ctx context.Context, userID string, amount decimal.Decimal, orderID string) (*ledger.Transaction, error) {
	return r.apply(ctx, userID, ledger.TypeRefund, amount, orderID)
}

// Deposit adds amount to the user's balance and records a deposit.
func (r *LedgerRepository) Deposit(ctx context.Context, userID string, amount decimal.Decimal) (*ledger.Transaction, error) {
	return r.apply(ctx, userID, ledger.TypeDeposit, amount, "")
}

func (r *LedgerRepository) apply(ctx context.Context, userID string, entryType ledger.EntryType, amount decimal.Decimal, orderID string) (*ledger.Transaction, error) {
	if r == nil || r.q == nil {
		return nil, errors.New("ledger repo: nil querier")
	}
	if userID == "" {
		return nil, users.ErrNotFound
	}
	if !amount.IsPositive() {
		return nil, ledger.ErrInvalidAmount
	}

	tx := ledger.Transaction{
		ID:             storage.NewID("txn"),
		UserID:         userID,
		Type:           entryType,
		Amount:         amount,
		RelatedOrderID: orderID,
		CreatedAt:      time.Now().UTC(),
	}
	signed, err := tx.Signed()
	if err != nil {
		return nil, err
	}

	result, err := r.q.ExecContext(ctx, `
UPDATE users
SET balance = balance + $1
WHERE id = $2`, signed, userID)
	if err != nil {
		return nil, err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return nil, err
	}
	if affected == 0 {
		return nil, users.ErrNotFound
	}

	_, err = r.q.ExecContext(ctx, `
INSERT INTO transactions (id, user_id, type, amount, related_order_id, created_at)
VALUES ($1, $2, $3, $4, $5, $6)`,
		tx.ID, tx.UserID, tx.Type, tx.Amount, tx.RelatedOrderID, tx.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &tx, nil
}

// ListByUser returns a user's transactions oldest first.
func (r *LedgerRepository) ListByUser(ctx context.Context, userID string) ([]ledger.Transaction, error) {
	if r == nil || r.q == nil {
		return nil, errors.New("ledger repo: nil querier")
	}
	rows, err := r.q.QueryContext(ctx, `
SELECT id, user_id, type, amount, related_order_id, created_at
FROM transactions
WHERE user_id = $1
ORDER BY created_at, id`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var txs []ledger.Transaction
	for rows.Next() {
		var tx ledger.Transaction
		if err := rows.Scan(&tx.ID, &tx.UserID, &tx.Type, &tx.Amount, &tx.RelatedOrderID, &tx.CreatedAt); err != nil {
			return nil, err
		}
		txs = append(txs, tx)
	}
	return txs, rows.Err()
}

// CountByOrderAndType counts transactions referencing an order with a type.
func (r *LedgerRepository) CountByOrderAndType(ctx context.Context, orderID string, entryType ledger.EntryType) (int, error) {
	if r == nil || r.q == nil {
		return 0, errors.New("ledger repo: nil querier")
	}
	var count int
	err := r.q.QueryRowContext(ctx, `
SELECT COUNT(*)
FROM transactions
WHERE related_order_id = $1 AND type = $2`, orderID, entryType).Scan(&count)
	return count, err
}
