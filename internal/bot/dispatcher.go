package bot

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"sort"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"lunchbot/internal/deadline"
	menu "lunchbot/internal/menu/domain"
	menurepo "lunchbot/internal/menu/infrastructure/postgres"
	"lunchbot/internal/observability/metrics"
	orderapp "lunchbot/internal/orders/application"
	orders "lunchbot/internal/orders/domain"
	orderrepo "lunchbot/internal/orders/infrastructure/postgres"
	settlementapp "lunchbot/internal/settlement/application"
	users "lunchbot/internal/users/domain"
	userrepo "lunchbot/internal/users/infrastructure/postgres"
)

// Clock returns the current time.
type Clock interface {
	Now() time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now() }

// Dispatcher routes parsed commands to the core services and renders text
// replies. An empty reply means nothing should be sent.
type Dispatcher struct {
	db        *sql.DB
	orderSvc  *orderapp.Service
	engine    *settlementapp.Engine
	policy    *deadline.Policy
	cfg       Config
	surcharge decimal.Decimal
	clock     Clock
	logger    *log.Logger
}

// NewDispatcher constructs a dispatcher.
func NewDispatcher(db *sql.DB, orderSvc *orderapp.Service, engine *settlementapp.Engine, policy *deadline.Policy, cfg Config, clock Clock, logger *log.Logger) (*Dispatcher, error) {
	if db == nil {
		return nil, errors.New("bot dispatcher: nil db")
	}
	if orderSvc == nil {
		return nil, errors.New("bot dispatcher: nil order service")
	}
	if engine == nil {
		return nil, errors.New("bot dispatcher: nil settlement engine")
	}
	if policy == nil {
		return nil, errors.New("bot dispatcher: nil deadline policy")
	}
	if clock == nil {
		clock = systemClock{}
	}
	if logger == nil {
		logger = log.Default()
	}
	return &Dispatcher{
		db:        db,
		orderSvc:  orderSvc,
		engine:    engine,
		policy:    policy,
		cfg:       cfg,
		surcharge: decimal.NewFromFloat(cfg.ComboSurcharge),
		clock:     clock,
		logger:    logger,
	}, nil
}

// Handle executes a command for a chat user and returns the reply text.
func (d *Dispatcher) Handle(ctx context.Context, chatUserID string, cmd Command) (string, error) {
	metrics.IncBotCommand(Kind(cmd))

	switch c := cmd.(type) {
	case Register:
		return d.register(ctx, chatUserID, c.DisplayName)
	case ShowDates:
		return d.showDates(), nil
	case ShowMenu:
		return d.showMenu(ctx, c.Date)
	case PlaceOrder:
		return d.placeOrder(ctx, chatUserID, c)
	case CheckBalance:
		return d.checkBalance(ctx, chatUserID)
	case ListCancellable:
		return d.listCancellable(ctx, chatUserID)
	case ShowCancellable:
		return d.showCancellable(ctx, chatUserID, c.Date)
	case CancelOrder:
		return d.cancelOrder(ctx, chatUserID, c.OrderID)
	case TriggerSettlement:
		return d.triggerSettlement(ctx, chatUserID)
	case Unknown:
		return "", nil
	default:
		return "", fmt.Errorf("bot: unhandled command %T", cmd)
	}
}

func (d *Dispatcher) register(ctx context.Context, chatUserID, displayName string) (string, error) {
	repo := userrepo.NewUserRepository(d.db)
	if _, err := repo.GetByChatUserID(ctx, chatUserID); err == nil {
		return "", nil
	} else if !errors.Is(err, users.ErrNotFound) {
		return "", err
	}

	user := users.User{ChatUserID: chatUserID, DisplayName: displayName}
	if err := repo.Create(ctx, &user); err != nil {
		if errors.Is(err, users.ErrDuplicateChatUser) {
			return "", nil
		}
		return "", err
	}
	return fmt.Sprintf("Welcome %s! You are now registered for the lunch ordering service.", displayName), nil
}

func (d *Dispatcher) showDates() string {
	today := d.clock.Now().In(d.policy.Location())
	var b strings.Builder
	b.WriteString("Which date would you like to order for?\n")
	for i := 0; i < d.cfg.MenuDaysAhead; i++ {
		day := today.AddDate(0, 0, i)
		label := day.Format(deadline.DateLayout)
		switch i {
		case 0:
			label += " (today)"
		case 1:
			label += " (tomorrow)"
		default:
			label += day.Format(" (Mon)")
		}
		fmt.Fprintf(&b, "%s\n", label)
	}
	b.WriteString("Reply with: action=select_date&date=YYYY-MM-DD")
	return b.String()
}

func (d *Dispatcher) showMenu(ctx context.Context, date string) (string, error) {
	items, err := menurepo.NewMenuRepository(d.db).ListByDate(ctx, date)
	if err != nil {
		return "", err
	}
	if len(items) == 0 {
		return fmt.Sprintf("Sorry, no menu is available for %s yet.", date), nil
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Menu for %s:\n", date)
	for _, item := range items {
		if item.IsComboEligible {
			single := item.Price.Sub(d.surcharge)
			fmt.Fprintf(&b, "%s — single %s / combo %s (id %s)\n", item.Name, single.String(), item.Price.String(), item.ID)
		} else {
			fmt.Fprintf(&b, "%s — %s (id %s)\n", item.Name, item.Price.String(), item.ID)
		}
	}
	return strings.TrimRight(b.String(), "\n"), nil
}

func (d *Dispatcher) placeOrder(ctx context.Context, chatUserID string, c PlaceOrder) (string, error) {
	if c.SelectedDrink != "" && !d.cfg.DrinkAllowed(c.SelectedDrink) {
		return fmt.Sprintf("%q is not on the drink list. Available: %s.", c.SelectedDrink, strings.Join(d.cfg.Drinks, ", ")), nil
	}

	result, err := d.orderSvc.Place(ctx, orderapp.PlaceRequest{
		ChatUserID:    chatUserID,
		MenuItemID:    c.MenuItemID,
		IsCombo:       c.IsCombo,
		SelectedDrink: c.SelectedDrink,
	})
	switch {
	case errors.Is(err, menu.ErrNotFound):
		return "That menu item no longer exists.", nil
	case errors.Is(err, users.ErrNotFound):
		return "Your account was not found. Please register again.", nil
	case errors.Is(err, orders.ErrPastDeadline):
		return "Today's order deadline has passed. Orders for today are closed.", nil
	case err != nil:
		return "", err
	}

	if result.NeedsDrink {
		var b strings.Builder
		b.WriteString("Please choose a drink for your combo:\n")
		for _, drink := range d.cfg.Drinks {
			fmt.Fprintf(&b, "%s (action=select_drink&menuItemId=%s&drink=%s)\n", drink, result.MenuItemID, drink)
		}
		return strings.TrimRight(b.String(), "\n"), nil
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Order placed for %s!\n", result.Order.OrderForDate)
	fmt.Fprintf(&b, "- %s\n", result.Line.Describe())
	fmt.Fprintf(&b, "- Amount: %s\n", result.Order.TotalAmount.String())
	fmt.Fprintf(&b, "- Balance: %s", result.NewBalance.String())
	if result.BalanceNegative {
		fmt.Fprintf(&b, "\nYour balance is negative. Please top up before %s on the delivery day or the order will be cancelled.", result.Cutoff)
	}
	return b.String(), nil
}

func (d *Dispatcher) checkBalance(ctx context.Context, chatUserID string) (string, error) {
	user, err := userrepo.NewUserRepository(d.db).GetByChatUserID(ctx, chatUserID)
	if errors.Is(err, users.ErrNotFound) {
		return "Your account was not found. Please register again.", nil
	}
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("Your current balance is %s.", user.Balance.String()), nil
}

func (d *Dispatcher) listCancellable(ctx context.Context, chatUserID string) (string, error) {
	user, err := userrepo.NewUserRepository(d.db).GetByChatUserID(ctx, chatUserID)
	if errors.Is(err, users.ErrNotFound) {
		return "Your account was not found. Please register again.", nil
	}
	if err != nil {
		return "", err
	}

	today := d.policy.Today(d.clock.Now())
	list, err := orderrepo.NewOrderRepository(d.db).ListPreparingByUserFromDate(ctx, user.ID, today)
	if err != nil {
		return "", err
	}
	if len(list) == 0 {
		return "You have no orders that can be cancelled.", nil
	}

	seen := make(map[string]bool)
	var dates []string
	for _, o := range list {
		if !seen[o.OrderForDate] {
			seen[o.OrderForDate] = true
			dates = append(dates, o.OrderForDate)
		}
	}
	sort.Strings(dates)

	var b strings.Builder
	b.WriteString("Which date's order would you like to cancel?\n")
	for _, date := range dates {
		fmt.Fprintf(&b, "%s (action=cancel_select_date&date=%s)\n", date, date)
	}
	return strings.TrimRight(b.String(), "\n"), nil
}

func (d *Dispatcher) showCancellable(ctx context.Context, chatUserID, date string) (string, error) {
	user, err := userrepo.NewUserRepository(d.db).GetByChatUserID(ctx, chatUserID)
	if errors.Is(err, users.ErrNotFound) {
		return "Your account was not found. Please register again.", nil
	}
	if err != nil {
		return "", err
	}

	if past, _ := d.policy.IsPastDeadline(ctx, d.clock.Now(), date); past {
		return "The deadline for today has passed; orders for today can no longer be cancelled.", nil
	}

	repo := orderrepo.NewOrderRepository(d.db)
	list, err := repo.ListPreparingByUserAndDate(ctx, user.ID, date)
	if err != nil {
		return "", err
	}
	if len(list) == 0 {
		return fmt.Sprintf("You have no cancellable orders for %s.", date), nil
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Your orders for %s:\n", date)
	for _, o := range list {
		lines, err := repo.ListLinesByOrder(ctx, o.ID)
		if err != nil {
			return "", err
		}
		described := make([]string, 0, len(lines))
		for _, line := range lines {
			described = append(described, line.Describe())
		}
		fmt.Fprintf(&b, "%s — %s (action=cancel_order&orderId=%s)\n", strings.Join(described, ", "), o.TotalAmount.String(), o.ID)
	}
	return strings.TrimRight(b.String(), "\n"), nil
}

func (d *Dispatcher) cancelOrder(ctx context.Context, chatUserID, orderID string) (string, error) {
	result, err := d.orderSvc.Cancel(ctx, chatUserID, orderID)
	switch {
	case errors.Is(err, users.ErrNotFound):
		return "Your account was not found. Please register again.", nil
	case errors.Is(err, orders.ErrNotFound), errors.Is(err, orders.ErrForbidden):
		return "That order was not found, or you do not have permission to cancel it.", nil
	case errors.Is(err, orders.ErrInvalidState):
		return "That order can no longer be cancelled.", nil
	case errors.Is(err, orders.ErrPastDeadline):
		return "The deadline for today has passed; this order can no longer be cancelled.", nil
	case err != nil:
		return "", err
	}
	return fmt.Sprintf("Your order for %s has been cancelled. %s was refunded; your balance is now %s.",
		result.Order.OrderForDate, result.Refunded.String(), result.NewBalance.String()), nil
}

func (d *Dispatcher) triggerSettlement(ctx context.Context, chatUserID string) (string, error) {
	user, err := userrepo.NewUserRepository(d.db).GetByChatUserID(ctx, chatUserID)
	if errors.Is(err, users.ErrNotFound) {
		return "Your account was not found. Please register again.", nil
	}
	if err != nil {
		return "", err
	}
	if !user.IsAdmin {
		return "You do not have permission to run settlement.", nil
	}

	date := d.policy.Today(d.clock.Now())
	result, err := d.engine.Settle(ctx, date)
	if err != nil {
		return "", err
	}
	switch result.Outcome {
	case settlementapp.OutcomeAlreadySettled:
		return fmt.Sprintf("Settlement for %s has already been run.", date), nil
	case settlementapp.OutcomeNothingToSettle:
		return fmt.Sprintf("There are no orders to settle for %s.", date), nil
	default:
		return fmt.Sprintf("Settlement for %s completed: %d orders finalized, %d users swept.",
			date, result.Finalized, len(result.Swept)), nil
	}
}
