package postgres

import (
	"context"
	"database/sql"
	"errors"
	"testing"

	"github.com/shopspring/decimal"

	ledger "lunchbot/internal/ledger/domain"
	"lunchbot/internal/storage/storagetest"
	users "lunchbot/internal/users/domain"
	userrepo "lunchbot/internal/users/infrastructure/postgres"
)

func seedUser(t *testing.T, db *sql.DB, chatUserID string, balance decimal.Decimal) *users.User {
	t.Helper()
	user := &users.User{ChatUserID: chatUserID, DisplayName: "Test " + chatUserID, Balance: balance}
	if err := userrepo.NewUserRepository(db).Create(context.Background(), user); err != nil {
		t.Fatalf("seed user: %v", err)
	}
	return user
}

func balanceOf(t *testing.T, db *sql.DB, userID string) decimal.Decimal {
	t.Helper()
	user, err := userrepo.NewUserRepository(db).GetByID(context.Background(), userID)
	if err != nil {
		t.Fatalf("get user: %v", err)
	}
	return user.Balance
}

func TestLedgerMutations(t *testing.T) {
	db := storagetest.NewDB(t)
	ctx := context.Background()
	repo := NewLedgerRepository(db)
	user := seedUser(t, db, "chat-ledger", decimal.Zero)

	// Payment may push the balance below zero.
	if _, err := repo.Pay(ctx, user.ID, decimal.NewFromInt(60), "order-1"); err != nil {
		t.Fatalf("pay: %v", err)
	}
	if got := balanceOf(t, db, user.ID); !got.Equal(decimal.NewFromInt(-60)) {
		t.Fatalf("balance after pay = %s, want -60", got)
	}

	if _, err := repo.Deposit(ctx, user.ID, decimal.NewFromInt(100)); err != nil {
		t.Fatalf("deposit: %v", err)
	}
	if got := balanceOf(t, db, user.ID); !got.Equal(decimal.NewFromInt(40)) {
		t.Fatalf("balance after deposit = %s, want 40", got)
	}

	if _, err := repo.Refund(ctx, user.ID, decimal.NewFromInt(60), "order-1"); err != nil {
		t.Fatalf("refund: %v", err)
	}
	if got := balanceOf(t, db, user.ID); !got.Equal(decimal.NewFromInt(100)) {
		t.Fatalf("balance after refund = %s, want 100", got)
	}

	count, err := repo.CountByOrderAndType(ctx, "order-1", ledger.TypeRefund)
	if err != nil {
		t.Fatalf("count by order: %v", err)
	}
	if count != 1 {
		t.Fatalf("refund count = %d, want 1", count)
	}
}

func TestLedgerRejectsNonPositiveAmounts(t *testing.T) {
	db := storagetest.NewDB(t)
	ctx := context.Background()
	repo := NewLedgerRepository(db)
	user := seedUser(t, db, "chat-amounts", decimal.Zero)

	if _, err := repo.Pay(ctx, user.ID, decimal.Zero, "order-1"); !errors.Is(err, ledger.ErrInvalidAmount) {
		t.Fatalf("pay zero: err = %v, want ErrInvalidAmount", err)
	}
	if _, err := repo.Deposit(ctx, user.ID, decimal.NewFromInt(-5)); !errors.Is(err, ledger.ErrInvalidAmount) {
		t.Fatalf("deposit negative: err = %v, want ErrInvalidAmount", err)
	}
	if got := balanceOf(t, db, user.ID); !got.IsZero() {
		t.Fatalf("balance = %s, want 0", got)
	}
}

func TestLedgerUnknownUser(t *testing.T) {
	db := storagetest.NewDB(t)
	repo := NewLedgerRepository(db)

	if _, err := repo.Deposit(context.Background(), "user-missing", decimal.NewFromInt(10)); !errors.Is(err, users.ErrNotFound) {
		t.Fatalf("deposit unknown user: err = %v, want ErrNotFound", err)
	}
	if _, err := repo.Pay(context.Background(), "", decimal.NewFromInt(10), "order-1"); !errors.Is(err, users.ErrNotFound) {
		t.Fatalf("pay empty user: err = %v, want ErrNotFound", err)
	}
}

func TestLedgerBalanceReconstructableFromLog(t *testing.T) {
	db := storagetest.NewDB(t)
	ctx := context.Background()
	repo := NewLedgerRepository(db)
	user := seedUser(t, db, "chat-sum", decimal.Zero)

	if _, err := repo.Deposit(ctx, user.ID, decimal.NewFromInt(200)); err != nil {
		t.Fatalf("deposit: %v", err)
	}
	if _, err := repo.Pay(ctx, user.ID, decimal.NewFromInt(65), "order-1"); err != nil {
		t.Fatalf("pay: %v", err)
	}
	if _, err := repo.Pay(ctx, user.ID, decimal.NewFromInt(80), "order-2"); err != nil {
		t.Fatalf("pay: %v", err)
	}
	if _, err := repo.Refund(ctx, user.ID, decimal.NewFromInt(65), "order-1"); err != nil {
		t.Fatalf("refund: %v", err)
	}

	txs, err := repo.ListByUser(ctx, user.ID)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(txs) != 4 {
		t.Fatalf("transaction count = %d, want 4", len(txs))
	}
	recomputed, err := ledger.Sum(txs)
	if err != nil {
		t.Fatalf("sum: %v", err)
	}
	stored := balanceOf(t, db, user.ID)
	if !recomputed.Equal(stored) {
		t.Fatalf("recomputed %s != stored %s", recomputed, stored)
	}
	if !stored.Equal(decimal.NewFromInt(120)) {
		t.Fatalf("stored balance = %s, want 120", stored)
	}
}
