package orders

import (
	"errors"
	"time"

	"github.com/shopspring/decimal"
)

var (
	// ErrNotFound is returned when an order does not exist.
	ErrNotFound = errors.New("orders: not found")
	// ErrForbidden is returned when the caller does not own the order.
	ErrForbidden = errors.New("orders: forbidden")
	// ErrInvalidState is returned for a transition out of a terminal state.
	ErrInvalidState = errors.New("orders: invalid state")
	// ErrPastDeadline is returned when the ordering window has closed.
	ErrPastDeadline = errors.New("orders: past deadline")
)

// Status is the order lifecycle state. Transitions are monotonic:
// preparing is the only non-terminal state.
type Status string

const (
	StatusPreparing         Status = "preparing"
	StatusFinished          Status = "finished"
	StatusCancelledByUser   Status = "cancelled_by_user"
	StatusCancelledBySystem Status = "cancelled_by_system"
)

// Terminal reports whether no further transition is permitted.
func (s Status) Terminal() bool {
	return s == StatusFinished || s == StatusCancelledByUser || s == StatusCancelledBySystem
}

// Order is a single purchase for one date. Immutable except for Status.
type Order struct {
	ID           string
	UserID       string
	OrderForDate string
	TotalAmount  decimal.Decimal
	Status       Status
	CreatedAt    time.Time
}

// Line is the single item carried by an order. Quantity is fixed at one;
// re-ordering the same dish creates a new order.
type Line struct {
	ID            string
	OrderID       string
	ItemName      string
	PricePerItem  decimal.Decimal
	Quantity      int
	IsCombo       bool
	SelectedDrink string
}

// CancelByUser transitions preparing -> cancelled_by_user.
func (o *Order) CancelByUser() error {
	return o.transition(StatusCancelledByUser)
}

// CancelBySystem transitions preparing -> cancelled_by_system.
func (o *Order) CancelBySystem() error {
	return o.transition(StatusCancelledBySystem)
}

// Finish transitions preparing -> finished.
func (o *Order) Finish() error {
	return o.transition(StatusFinished)
}

func (o *Order) transition(to Status) error {
	if o == nil {
		return ErrNotFound
	}
	if o.Status != StatusPreparing {
		return ErrInvalidState
	}
	o.Status = to
	return nil
}

// Describe renders the line for user-facing messages, e.g.
// "Braised pork (combo - green tea)".
func (l Line) Describe() string {
	if !l.IsCombo {
		return l.ItemName
	}
	if l.SelectedDrink == "" {
		return l.ItemName + " (combo)"
	}
	return l.ItemName + " (combo - " + l.SelectedDrink + ")"
}
