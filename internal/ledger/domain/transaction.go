package ledger

import (
	"errors"
	"time"

	"github.com/shopspring/decimal"
)

var (
	// ErrInvalidAmount is returned for non-positive amounts.
	ErrInvalidAmount = errors.New("ledger: invalid amount")
	// ErrUnknownType is returned for an unrecognized transaction type.
	ErrUnknownType = errors.New("ledger: unknown transaction type")
)

// EntryType classifies a ledger transaction.
type EntryType string

const (
	TypePayment EntryType = "payment"
	TypeRefund  EntryType = "refund"
	TypeDeposit EntryType = "deposit"
)

// Transaction is one append-only ledger row. Amounts are stored positive;
// the sign is derived from the type. Rows are never mutated or deleted, so
// every balance is reconstructable from the log.
type Transaction struct {
	ID             string
	UserID         string
	Type           EntryType
	Amount         decimal.Decimal
	RelatedOrderID string
	CreatedAt      time.Time
}

// Signed returns the transaction's effect on the balance: payments subtract,
// refunds and deposits add.
func (t Transaction) Signed() (decimal.Decimal, error) {
	switch t.Type {
	case TypePayment:
		return t.Amount.Neg(), nil
	case TypeRefund, TypeDeposit:
		return t.Amount, nil
	default:
		return decimal.Zero, ErrUnknownType
	}
}

// Sum folds transactions into a net balance delta.
func Sum(txs []Transaction) (decimal.Decimal, error) {
	total := decimal.Zero
	for _, tx := range txs {
		signed, err := tx.Signed()
		if err != nil {
			return decimal.Zero, err
		}
		total = total.Add(signed)
	}
	return total, nil
}
