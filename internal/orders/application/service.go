package application

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/shopspring/decimal"

	"lunchbot/internal/deadline"
	ledgerrepo "lunchbot/internal/ledger/infrastructure/postgres"
	menu "lunchbot/internal/menu/domain"
	menurepo "lunchbot/internal/menu/infrastructure/postgres"
	"lunchbot/internal/observability/metrics"
	orders "lunchbot/internal/orders/domain"
	orderrepo "lunchbot/internal/orders/infrastructure/postgres"
	userrepo "lunchbot/internal/users/infrastructure/postgres"
)

// Clock returns the current time.
type Clock interface {
	Now() time.Time
}

// SystemClock uses time.Now.
type SystemClock struct{}

func (SystemClock) Now() time.Time { return time.Now() }

// PlaceRequest describes an order placement.
type PlaceRequest struct {
	ChatUserID    string
	MenuItemID    string
	IsCombo       bool
	SelectedDrink string
}

// PlaceResult is the outcome of a placement. NeedsDrink is a continuation,
// not an error: the caller must ask for a drink selection and retry.
type PlaceResult struct {
	NeedsDrink      bool
	MenuItemID      string
	Order           orders.Order
	Line            orders.Line
	NewBalance      decimal.Decimal
	BalanceNegative bool
	Cutoff          string
}

// CancelResult is the outcome of a user cancellation.
type CancelResult struct {
	Order      orders.Order
	Refunded   decimal.Decimal
	NewBalance decimal.Decimal
}

// Service handles order placement and cancellation. Each operation runs in
// one transaction: the status change and the paired ledger mutation commit
// or roll back together.
type Service struct {
	db        *sql.DB
	policy    *deadline.Policy
	surcharge decimal.Decimal
	clock     Clock
}

// NewService constructs the order service. surcharge is the fixed combo
// surcharge subtracted when a combo-eligible item is ordered as a single.
func NewService(db *sql.DB, policy *deadline.Policy, surcharge decimal.Decimal, clock Clock) (*Service, error) {
	if db == nil {
		return nil, errors.New("order service: nil db")
	}
	if policy == nil {
		return nil, errors.New("order service: nil deadline policy")
	}
	if surcharge.IsNegative() {
		return nil, errors.New("order service: negative combo surcharge")
	}
	if clock == nil {
		clock = SystemClock{}
	}
	return &Service{db: db, policy: policy, surcharge: surcharge, clock: clock}, nil
}

// Place creates an order in preparing state and captures payment. The
// balance may go negative; that is surfaced via BalanceNegative, not
// rejected — credit is extended until the next settlement.
func (s *Service) Place(ctx context.Context, req PlaceRequest) (*PlaceResult, error) {
	item, err := menurepo.NewMenuRepository(s.db).GetByID(ctx, req.MenuItemID)
	if err != nil {
		return nil, err
	}

	now := s.clock.Now()
	past, cutoff := s.policy.IsPastDeadline(ctx, now, item.MenuDate)
	if past {
		return nil, orders.ErrPastDeadline
	}

	if item.IsComboEligible && req.IsCombo && req.SelectedDrink == "" {
		return &PlaceResult{NeedsDrink: true, MenuItemID: item.ID, Cutoff: cutoff}, nil
	}

	total := priceFor(item, req.IsCombo, s.surcharge)

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}

	user, err := userrepo.NewUserRepository(tx).GetByChatUserID(ctx, req.ChatUserID)
	if err != nil {
		_ = tx.Rollback()
		return nil, err
	}

	order := orders.Order{
		UserID:       user.ID,
		OrderForDate: item.MenuDate,
		TotalAmount:  total,
		Status:       orders.StatusPreparing,
		CreatedAt:    now.UTC(),
	}
	line := orders.Line{
		ItemName:      item.Name,
		PricePerItem:  total,
		Quantity:      1,
		IsCombo:       item.IsComboEligible && req.IsCombo,
		SelectedDrink: req.SelectedDrink,
	}
	if !line.IsCombo {
		line.SelectedDrink = ""
	}

	if err := orderrepo.NewOrderRepository(tx).Create(ctx, &order, &line); err != nil {
		_ = tx.Rollback()
		return nil, err
	}
	if _, err := ledgerrepo.NewLedgerRepository(tx).Pay(ctx, user.ID, total, order.ID); err != nil {
		_ = tx.Rollback()
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}
	metrics.IncOrderPlaced()

	newBalance := user.Balance.Sub(total)
	return &PlaceResult{
		Order:           order,
		Line:            line,
		NewBalance:      newBalance,
		BalanceNegative: newBalance.IsNegative(),
		Cutoff:          cutoff,
	}, nil
}

// Cancel cancels a preparing order owned by the caller and refunds it.
// The deadline is evaluated against now, not order creation time.
func (s *Service) Cancel(ctx context.Context, chatUserID, orderID string) (*CancelResult, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}

	user, err := userrepo.NewUserRepository(tx).GetByChatUserID(ctx, chatUserID)
	if err != nil {
		_ = tx.Rollback()
		return nil, err
	}

	repo := orderrepo.NewOrderRepository(tx)
	order, err := repo.GetByID(ctx, orderID)
	if err != nil {
		_ = tx.Rollback()
		return nil, err
	}
	if order.UserID != user.ID {
		_ = tx.Rollback()
		return nil, orders.ErrForbidden
	}
	if order.Status != orders.StatusPreparing {
		_ = tx.Rollback()
		return nil, orders.ErrInvalidState
	}
	if past, _ := s.policy.IsPastDeadline(ctx, s.clock.Now(), order.OrderForDate); past {
		_ = tx.Rollback()
		return nil, orders.ErrPastDeadline
	}

	// Guarded update: a concurrent cancel or settlement may have moved the
	// order since the read above. Exactly one writer wins.
	won, err := repo.UpdateStatusFrom(ctx, order.ID, orders.StatusPreparing, orders.StatusCancelledByUser)
	if err != nil {
		_ = tx.Rollback()
		return nil, err
	}
	if !won {
		_ = tx.Rollback()
		return nil, orders.ErrInvalidState
	}
	order.Status = orders.StatusCancelledByUser

	if _, err := ledgerrepo.NewLedgerRepository(tx).Refund(ctx, user.ID, order.TotalAmount, order.ID); err != nil {
		_ = tx.Rollback()
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}
	metrics.ObserveOrderCancelled("user")

	return &CancelResult{
		Order:      *order,
		Refunded:   order.TotalAmount,
		NewBalance: user.Balance.Add(order.TotalAmount),
	}, nil
}

// Deposit credits a user's balance. Amount must be positive.
func (s *Service) Deposit(ctx context.Context, userID string, amount decimal.Decimal) (decimal.Decimal, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return decimal.Zero, err
	}
	if _, err := ledgerrepo.NewLedgerRepository(tx).Deposit(ctx, userID, amount); err != nil {
		_ = tx.Rollback()
		return decimal.Zero, err
	}
	user, err := userrepo.NewUserRepository(tx).GetByID(ctx, userID)
	if err != nil {
		_ = tx.Rollback()
		return decimal.Zero, err
	}
	if err := tx.Commit(); err != nil {
		return decimal.Zero, err
	}
	metrics.IncDeposit()
	return user.Balance, nil
}

// priceFor resolves the charged amount: combo-eligible items store the
// combo price, so a single is the stored price minus the surcharge.
func priceFor(item *menu.Item, isCombo bool, surcharge decimal.Decimal) decimal.Decimal {
	if item.IsComboEligible && !isCombo {
		return item.Price.Sub(surcharge)
	}
	return item.Price
}
