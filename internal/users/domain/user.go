package users

import (
	"errors"
	"time"

	"github.com/shopspring/decimal"
)

var (
	// ErrNotFound is returned when a user does not exist.
	ErrNotFound = errors.New("users: not found")
	// ErrDuplicateChatUser is returned when the chat user id is already registered.
	ErrDuplicateChatUser = errors.New("users: chat user already registered")
)

// User is a registered lunch-ordering account. The balance is mutated only
// through ledger operations and may go negative until the next settlement.
type User struct {
	ID          string
	ChatUserID  string
	DisplayName string
	Balance     decimal.Decimal
	IsAdmin     bool
	CreatedAt   time.Time
}
