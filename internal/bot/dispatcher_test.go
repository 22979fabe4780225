package bot

import (
	"context"
	"database/sql"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"lunchbot/internal/deadline"
	menu "lunchbot/internal/menu/domain"
	menurepo "lunchbot/internal/menu/infrastructure/postgres"
	orderapp "lunchbot/internal/orders/application"
	settlementapp "lunchbot/internal/settlement/application"
	"lunchbot/internal/storage/storagetest"
	users "lunchbot/internal/users/domain"
	userrepo "lunchbot/internal/users/infrastructure/postgres"
)

var testZone = time.FixedZone("UTC+8", 8*3600)

type fixedClock struct {
	now time.Time
}

func (c fixedClock) Now() time.Time { return c.now }

// testNow is before the 09:00 cutoff on 2026-03-02.
var testNow = time.Date(2026, 3, 2, 8, 0, 0, 0, testZone)

func newTestDispatcher(t *testing.T, db *sql.DB) *Dispatcher {
	t.Helper()
	policy := deadline.NewPolicy(testZone, deadline.StaticCutoff("09:00"))
	svc, err := orderapp.NewService(db, policy, decimal.NewFromInt(15), fixedClock{now: testNow})
	if err != nil {
		t.Fatalf("order service: %v", err)
	}
	engine, err := settlementapp.NewEngine(db, nil, fixedClock{now: testNow}, nil)
	if err != nil {
		t.Fatalf("engine: %v", err)
	}
	cfg := Config{
		Timezone:       "Asia/Taipei",
		ComboSurcharge: 15,
		Drinks:         []string{"black tea", "green tea", "milk tea"},
		MenuDaysAhead:  5,
	}
	dispatcher, err := NewDispatcher(db, svc, engine, policy, cfg, fixedClock{now: testNow}, nil)
	if err != nil {
		t.Fatalf("dispatcher: %v", err)
	}
	return dispatcher
}

func registerUser(t *testing.T, db *sql.DB, chatUserID string, balance int64, admin bool) *users.User {
	t.Helper()
	user := &users.User{
		ChatUserID:  chatUserID,
		DisplayName: "Test " + chatUserID,
		Balance:     decimal.NewFromInt(balance),
		IsAdmin:     admin,
	}
	if err := userrepo.NewUserRepository(db).Create(context.Background(), user); err != nil {
		t.Fatalf("seed user: %v", err)
	}
	return user
}

func publishItem(t *testing.T, db *sql.DB, date, name string, price int64, comboEligible bool) *menu.Item {
	t.Helper()
	item := &menu.Item{MenuDate: date, Name: name, Price: decimal.NewFromInt(price), IsComboEligible: comboEligible}
	if err := menurepo.NewMenuRepository(db).Insert(context.Background(), item); err != nil {
		t.Fatalf("seed item: %v", err)
	}
	return item
}

func TestDispatcherRegister(t *testing.T) {
	db := storagetest.NewDB(t)
	ctx := context.Background()
	dispatcher := newTestDispatcher(t, db)

	reply, err := dispatcher.Handle(ctx, "chat-alice", Register{DisplayName: "Alice"})
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	if !strings.Contains(reply, "Welcome Alice") {
		t.Fatalf("reply = %q, want welcome message", reply)
	}

	// A repeated follow event stays silent.
	reply, err = dispatcher.Handle(ctx, "chat-alice", Register{DisplayName: "Alice"})
	if err != nil {
		t.Fatalf("second register: %v", err)
	}
	if reply != "" {
		t.Fatalf("reply = %q, want empty", reply)
	}
}

func TestDispatcherCheckBalance(t *testing.T) {
	db := storagetest.NewDB(t)
	ctx := context.Background()
	dispatcher := newTestDispatcher(t, db)

	reply, err := dispatcher.Handle(ctx, "chat-ghost", CheckBalance{})
	if err != nil {
		t.Fatalf("balance unregistered: %v", err)
	}
	if !strings.Contains(reply, "not found") {
		t.Fatalf("reply = %q, want account-not-found message", reply)
	}

	registerUser(t, db, "chat-alice", 120, false)
	reply, err = dispatcher.Handle(ctx, "chat-alice", CheckBalance{})
	if err != nil {
		t.Fatalf("balance: %v", err)
	}
	if !strings.Contains(reply, "120") {
		t.Fatalf("reply = %q, want balance 120", reply)
	}
}

func TestDispatcherShowDates(t *testing.T) {
	db := storagetest.NewDB(t)
	dispatcher := newTestDispatcher(t, db)

	reply, err := dispatcher.Handle(context.Background(), "chat-alice", ShowDates{})
	if err != nil {
		t.Fatalf("show dates: %v", err)
	}
	for _, fragment := range []string{"2026-03-02 (today)", "2026-03-03 (tomorrow)", "2026-03-06", "select_date"} {
		if !strings.Contains(reply, fragment) {
			t.Fatalf("reply missing %q:\n%s", fragment, reply)
		}
	}
}

func TestDispatcherShowMenu(t *testing.T) {
	db := storagetest.NewDB(t)
	ctx := context.Background()
	dispatcher := newTestDispatcher(t, db)

	reply, err := dispatcher.Handle(ctx, "chat-alice", ShowMenu{Date: "2026-03-02"})
	if err != nil {
		t.Fatalf("show empty menu: %v", err)
	}
	if !strings.Contains(reply, "no menu is available") {
		t.Fatalf("reply = %q, want empty-menu message", reply)
	}

	publishItem(t, db, "2026-03-02", "Braised pork", 80, true)
	publishItem(t, db, "2026-03-02", "Plain noodles", 50, false)

	reply, err = dispatcher.Handle(ctx, "chat-alice", ShowMenu{Date: "2026-03-02"})
	if err != nil {
		t.Fatalf("show menu: %v", err)
	}
	// Combo-eligible items show both prices: stored combo price and the
	// single price 15 lower.
	if !strings.Contains(reply, "single 65 / combo 80") {
		t.Fatalf("reply = %q, want both braised pork prices", reply)
	}
	if !strings.Contains(reply, "Plain noodles — 50") {
		t.Fatalf("reply = %q, want plain noodles price", reply)
	}
}

func TestDispatcherPlaceOrderFlow(t *testing.T) {
	db := storagetest.NewDB(t)
	ctx := context.Background()
	dispatcher := newTestDispatcher(t, db)
	registerUser(t, db, "chat-alice", 100, false)
	item := publishItem(t, db, "2026-03-02", "Braised pork", 80, true)

	// Combo without a drink asks for one.
	reply, err := dispatcher.Handle(ctx, "chat-alice", PlaceOrder{MenuItemID: item.ID, IsCombo: true})
	if err != nil {
		t.Fatalf("combo without drink: %v", err)
	}
	if !strings.Contains(reply, "choose a drink") || !strings.Contains(reply, "green tea") {
		t.Fatalf("reply = %q, want drink prompt", reply)
	}

	// Off-list drinks are rejected before touching the order service.
	reply, err = dispatcher.Handle(ctx, "chat-alice", PlaceOrder{MenuItemID: item.ID, IsCombo: true, SelectedDrink: "espresso"})
	if err != nil {
		t.Fatalf("bad drink: %v", err)
	}
	if !strings.Contains(reply, "not on the drink list") {
		t.Fatalf("reply = %q, want drink rejection", reply)
	}

	reply, err = dispatcher.Handle(ctx, "chat-alice", PlaceOrder{MenuItemID: item.ID, IsCombo: true, SelectedDrink: "green tea"})
	if err != nil {
		t.Fatalf("place: %v", err)
	}
	for _, fragment := range []string{"Order placed for 2026-03-02", "Braised pork (combo - green tea)", "Amount: 80", "Balance: 20"} {
		if !strings.Contains(reply, fragment) {
			t.Fatalf("reply missing %q:\n%s", fragment, reply)
		}
	}

	// A second order drives the balance negative and warns about the cutoff.
	reply, err = dispatcher.Handle(ctx, "chat-alice", PlaceOrder{MenuItemID: item.ID})
	if err != nil {
		t.Fatalf("second place: %v", err)
	}
	if !strings.Contains(reply, "balance is negative") || !strings.Contains(reply, "09:00") {
		t.Fatalf("reply = %q, want negative-balance warning with cutoff", reply)
	}

	reply, err = dispatcher.Handle(ctx, "chat-alice", PlaceOrder{MenuItemID: "item-missing"})
	if err != nil {
		t.Fatalf("missing item: %v", err)
	}
	if !strings.Contains(reply, "no longer exists") {
		t.Fatalf("reply = %q, want missing-item message", reply)
	}
}

func TestDispatcherCancelFlow(t *testing.T) {
	db := storagetest.NewDB(t)
	ctx := context.Background()
	dispatcher := newTestDispatcher(t, db)
	registerUser(t, db, "chat-alice", 100, false)
	item := publishItem(t, db, "2026-03-02", "Braised pork", 80, true)

	reply, err := dispatcher.Handle(ctx, "chat-alice", ListCancellable{})
	if err != nil {
		t.Fatalf("list empty: %v", err)
	}
	if !strings.Contains(reply, "no orders that can be cancelled") {
		t.Fatalf("reply = %q, want nothing-to-cancel message", reply)
	}

	if _, err := dispatcher.Handle(ctx, "chat-alice", PlaceOrder{MenuItemID: item.ID}); err != nil {
		t.Fatalf("place: %v", err)
	}

	reply, err = dispatcher.Handle(ctx, "chat-alice", ListCancellable{})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if !strings.Contains(reply, "2026-03-02") || !strings.Contains(reply, "cancel_select_date") {
		t.Fatalf("reply = %q, want date picker", reply)
	}

	reply, err = dispatcher.Handle(ctx, "chat-alice", ShowCancellable{Date: "2026-03-02"})
	if err != nil {
		t.Fatalf("show cancellable: %v", err)
	}
	if !strings.Contains(reply, "Braised pork") || !strings.Contains(reply, "cancel_order") {
		t.Fatalf("reply = %q, want order list with cancel actions", reply)
	}
	orderID := extractParam(t, reply, "orderId=")

	reply, err = dispatcher.Handle(ctx, "chat-alice", CancelOrder{OrderID: orderID})
	if err != nil {
		t.Fatalf("cancel: %v", err)
	}
	if !strings.Contains(reply, "has been cancelled") || !strings.Contains(reply, "65 was refunded") {
		t.Fatalf("reply = %q, want cancellation confirmation", reply)
	}

	reply, err = dispatcher.Handle(ctx, "chat-alice", CancelOrder{OrderID: orderID})
	if err != nil {
		t.Fatalf("second cancel: %v", err)
	}
	if !strings.Contains(reply, "no longer be cancelled") {
		t.Fatalf("reply = %q, want terminal-state message", reply)
	}

	reply, err = dispatcher.Handle(ctx, "chat-alice", CancelOrder{OrderID: "order-missing"})
	if err != nil {
		t.Fatalf("cancel missing: %v", err)
	}
	if !strings.Contains(reply, "not found") {
		t.Fatalf("reply = %q, want not-found message", reply)
	}
}

func TestDispatcherTriggerSettlement(t *testing.T) {
	db := storagetest.NewDB(t)
	ctx := context.Background()
	dispatcher := newTestDispatcher(t, db)
	registerUser(t, db, "chat-member", 100, false)
	registerUser(t, db, "chat-admin", 0, true)
	item := publishItem(t, db, "2026-03-02", "Braised pork", 80, true)

	reply, err := dispatcher.Handle(ctx, "chat-member", TriggerSettlement{})
	if err != nil {
		t.Fatalf("settle as member: %v", err)
	}
	if !strings.Contains(reply, "do not have permission") {
		t.Fatalf("reply = %q, want permission denial", reply)
	}

	if _, err := dispatcher.Handle(ctx, "chat-member", PlaceOrder{MenuItemID: item.ID}); err != nil {
		t.Fatalf("place: %v", err)
	}

	reply, err = dispatcher.Handle(ctx, "chat-admin", TriggerSettlement{})
	if err != nil {
		t.Fatalf("settle: %v", err)
	}
	if !strings.Contains(reply, "completed: 1 orders finalized") {
		t.Fatalf("reply = %q, want completion summary", reply)
	}

	reply, err = dispatcher.Handle(ctx, "chat-admin", TriggerSettlement{})
	if err != nil {
		t.Fatalf("second settle: %v", err)
	}
	if !strings.Contains(reply, "already been run") {
		t.Fatalf("reply = %q, want already-settled message", reply)
	}
}

func TestDispatcherUnknownStaysSilent(t *testing.T) {
	db := storagetest.NewDB(t)
	dispatcher := newTestDispatcher(t, db)

	reply, err := dispatcher.Handle(context.Background(), "chat-alice", Unknown{Text: "what's for lunch"})
	if err != nil {
		t.Fatalf("unknown: %v", err)
	}
	if reply != "" {
		t.Fatalf("reply = %q, want empty", reply)
	}
}

// extractParam pulls the value following a marker up to the next delimiter.
func extractParam(t *testing.T, text, marker string) string {
	t.Helper()
	idx := strings.Index(text, marker)
	if idx < 0 {
		t.Fatalf("marker %q not in %q", marker, text)
	}
	rest := text[idx+len(marker):]
	if end := strings.IndexAny(rest, ")&\n"); end >= 0 {
		rest = rest[:end]
	}
	return rest
}
