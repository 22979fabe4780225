package application

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	ledgerrepo "lunchbot/internal/ledger/infrastructure/postgres"
	"lunchbot/internal/observability/metrics"
	orders "lunchbot/internal/orders/domain"
	orderrepo "lunchbot/internal/orders/infrastructure/postgres"
	settlement "lunchbot/internal/settlement/domain"
	settlementrepo "lunchbot/internal/settlement/infrastructure/postgres"
	userrepo "lunchbot/internal/users/infrastructure/postgres"
)

// Outcome classifies a settlement run.
type Outcome string

const (
	OutcomeSettled         Outcome = "settled"
	OutcomeAlreadySettled  Outcome = "already_settled"
	OutcomeNothingToSettle Outcome = "nothing_to_settle"
)

// SweptUser is a negative-balance user whose preparing orders for the date
// were cancelled by the system.
type SweptUser struct {
	UserID          string
	ChatUserID      string
	CancelledOrders int
	RefundTotal     decimal.Decimal
}

// Confirmation is a successful orderer to notify after commit.
type Confirmation struct {
	UserID     string
	ChatUserID string
	Items      []string
	Balance    decimal.Decimal
}

// Result is the computed outcome of one settlement run. It carries
// everything the post-commit notification phase needs, so delivery
// failures are structurally incapable of touching the financial
// transaction.
type Result struct {
	Outcome       Outcome
	Date          string
	Report        settlement.Report
	Swept         []SweptUser
	Confirmations []Confirmation
	AdminChatIDs  []string
	Finalized     int
	SettledAt     time.Time
}

// Notifier delivers settlement messages. Both methods are best-effort from
// the engine's perspective: failures are logged, never propagated.
type Notifier interface {
	PushToUser(ctx context.Context, chatUserID, text string) error
	BroadcastToAdmins(ctx context.Context, chatUserIDs []string, text string) error
}

// Clock returns the current time.
type Clock interface {
	Now() time.Time
}

// SystemClock uses time.Now.
type SystemClock struct{}

func (SystemClock) Now() time.Time { return time.Now() }

// Engine runs the once-per-date batch settlement.
type Engine struct {
	db       *sql.DB
	notifier Notifier
	clock    Clock
	logger   *log.Logger
}

// NewEngine constructs the settlement engine. notifier may be nil, in which
// case the notification phase is skipped.
func NewEngine(db *sql.DB, notifier Notifier, clock Clock, logger *log.Logger) (*Engine, error) {
	if db == nil {
		return nil, errors.New("settlement engine: nil db")
	}
	if clock == nil {
		clock = SystemClock{}
	}
	if logger == nil {
		logger = log.Default()
	}
	return &Engine{db: db, notifier: notifier, clock: clock, logger: logger}, nil
}

// Settle closes out targetDate. Idempotent per date: reruns return
// AlreadySettled without side effects. The sweep, finalize and record
// insert commit as one transaction; notifications run after commit.
func (e *Engine) Settle(ctx context.Context, targetDate string) (*Result, error) {
	if targetDate == "" {
		return nil, settlement.ErrEmptyDate
	}

	start := e.clock.Now()
	result, err := e.settleTx(ctx, targetDate)
	if err != nil {
		metrics.ObserveSettlement("error", time.Since(start).Seconds())
		return nil, fmt.Errorf("settlement: settle %s: %w", targetDate, err)
	}
	metrics.ObserveSettlement(string(result.Outcome), time.Since(start).Seconds())

	if result.Outcome == OutcomeSettled {
		e.notify(ctx, result)
	}
	return result, nil
}

func (e *Engine) settleTx(ctx context.Context, targetDate string) (*Result, error) {
	tx, err := e.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}

	repo := settlementrepo.NewSettlementRepository(tx)
	existing, err := repo.GetByDate(ctx, targetDate)
	if err != nil {
		_ = tx.Rollback()
		return nil, err
	}
	if existing != nil {
		_ = tx.Rollback()
		return &Result{Outcome: OutcomeAlreadySettled, Date: targetDate, SettledAt: existing.CreatedAt}, nil
	}

	orderRepo := orderrepo.NewOrderRepository(tx)
	pending, err := orderRepo.CountPreparingByDate(ctx, targetDate)
	if err != nil {
		_ = tx.Rollback()
		return nil, err
	}
	if pending == 0 {
		_ = tx.Rollback()
		return &Result{Outcome: OutcomeNothingToSettle, Date: targetDate}, nil
	}

	userRepo := userrepo.NewUserRepository(tx)
	ledger := ledgerrepo.NewLedgerRepository(tx)

	swept, err := e.sweep(ctx, targetDate, orderRepo, userRepo, ledger)
	if err != nil {
		_ = tx.Rollback()
		return nil, err
	}

	dayLines, err := orderRepo.ListDayLines(ctx, targetDate, orders.StatusPreparing)
	if err != nil {
		_ = tx.Rollback()
		return nil, err
	}

	confirmations, err := buildConfirmations(ctx, dayLines, userRepo)
	if err != nil {
		_ = tx.Rollback()
		return nil, err
	}

	reportLines := make([]settlement.ReportLine, 0, len(dayLines))
	for _, dl := range dayLines {
		reportLines = append(reportLines, settlement.ReportLine{
			ItemName:      dl.Line.ItemName,
			Price:         dl.Line.PricePerItem,
			IsCombo:       dl.Line.IsCombo,
			SelectedDrink: dl.Line.SelectedDrink,
		})
	}
	report := settlement.BuildReport(targetDate, reportLines)

	admins, err := userRepo.ListAdmins(ctx)
	if err != nil {
		_ = tx.Rollback()
		return nil, err
	}
	adminChatIDs := make([]string, 0, len(admins))
	for _, admin := range admins {
		adminChatIDs = append(adminChatIDs, admin.ChatUserID)
	}

	finalized, err := orderRepo.FinishAllPreparing(ctx, targetDate)
	if err != nil {
		_ = tx.Rollback()
		return nil, err
	}

	record := settlement.Record{SettlementDate: targetDate, IsBroadcasted: true, CreatedAt: e.clock.Now().UTC()}
	if err := repo.Create(ctx, &record); err != nil {
		_ = tx.Rollback()
		if errors.Is(err, settlementrepo.ErrDuplicateDate) {
			// A concurrent run inserted the record first; its transaction
			// owns this date.
			return &Result{Outcome: OutcomeAlreadySettled, Date: targetDate}, nil
		}
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}

	return &Result{
		Outcome:       OutcomeSettled,
		Date:          targetDate,
		Report:        report,
		Swept:         swept,
		Confirmations: confirmations,
		AdminChatIDs:  adminChatIDs,
		Finalized:     finalized,
		SettledAt:     record.CreatedAt,
	}, nil
}

// sweep cancels every preparing order for the date owned by a
// negative-balance user, refunding each through the ledger.
func (e *Engine) sweep(ctx context.Context, targetDate string, orderRepo *orderrepo.OrderRepository, userRepo *userrepo.UserRepository, ledger *ledgerrepo.LedgerRepository) ([]SweptUser, error) {
	toCancel, err := orderRepo.ListPreparingByDateNegativeBalance(ctx, targetDate)
	if err != nil {
		return nil, err
	}

	byUser := make(map[string]*SweptUser)
	var order []string
	for _, o := range toCancel {
		won, err := orderRepo.UpdateStatusFrom(ctx, o.ID, orders.StatusPreparing, orders.StatusCancelledBySystem)
		if err != nil {
			return nil, err
		}
		if !won {
			continue
		}
		if _, err := ledger.Refund(ctx, o.UserID, o.TotalAmount, o.ID); err != nil {
			return nil, err
		}
		metrics.ObserveOrderCancelled("system")

		entry, ok := byUser[o.UserID]
		if !ok {
			entry = &SweptUser{UserID: o.UserID, RefundTotal: decimal.Zero}
			byUser[o.UserID] = entry
			order = append(order, o.UserID)
		}
		entry.CancelledOrders++
		entry.RefundTotal = entry.RefundTotal.Add(o.TotalAmount)
	}

	swept := make([]SweptUser, 0, len(order))
	for _, userID := range order {
		entry := byUser[userID]
		user, err := userRepo.GetByID(ctx, userID)
		if err != nil {
			return nil, err
		}
		entry.ChatUserID = user.ChatUserID
		swept = append(swept, *entry)
	}
	return swept, nil
}

func buildConfirmations(ctx context.Context, dayLines []orderrepo.DayLine, userRepo *userrepo.UserRepository) ([]Confirmation, error) {
	byUser := make(map[string]*Confirmation)
	var order []string
	for _, dl := range dayLines {
		entry, ok := byUser[dl.UserID]
		if !ok {
			entry = &Confirmation{UserID: dl.UserID}
			byUser[dl.UserID] = entry
			order = append(order, dl.UserID)
		}
		entry.Items = append(entry.Items, dl.Line.Describe())
	}

	confirmations := make([]Confirmation, 0, len(order))
	for _, userID := range order {
		entry := byUser[userID]
		user, err := userRepo.GetByID(ctx, userID)
		if err != nil {
			return nil, err
		}
		entry.ChatUserID = user.ChatUserID
		entry.Balance = user.Balance
		confirmations = append(confirmations, *entry)
	}
	return confirmations, nil
}

// notify runs after commit. Every delivery is best-effort: a failed push is
// logged and skipped, never turned into a settlement failure.
func (e *Engine) notify(ctx context.Context, result *Result) {
	if e.notifier == nil {
		return
	}

	for _, swept := range result.Swept {
		text := fmt.Sprintf(
			"Your orders for %s were cancelled because your balance was negative at settlement time. %s has been refunded to your account.",
			result.Date, swept.RefundTotal.String())
		if err := e.notifier.PushToUser(ctx, swept.ChatUserID, text); err != nil {
			metrics.ObserveNotificationFailure("push")
			e.logger.Printf("settlement: cancel notice failed: user=%s err=%v", swept.UserID, err)
		}
	}

	for _, confirmation := range result.Confirmations {
		text := fmt.Sprintf("Your order for %s is confirmed!\n- Items: %s\n- Current balance: %s",
			result.Date, strings.Join(confirmation.Items, ", "), confirmation.Balance.String())
		if err := e.notifier.PushToUser(ctx, confirmation.ChatUserID, text); err != nil {
			metrics.ObserveNotificationFailure("push")
			e.logger.Printf("settlement: confirmation failed: user=%s err=%v", confirmation.UserID, err)
		}
	}

	if len(result.AdminChatIDs) == 0 {
		return
	}
	if err := e.notifier.BroadcastToAdmins(ctx, result.AdminChatIDs, result.Report.Text()); err != nil {
		metrics.ObserveNotificationFailure("broadcast")
		e.logger.Printf("settlement: admin broadcast failed: err=%v", err)
	}
}
