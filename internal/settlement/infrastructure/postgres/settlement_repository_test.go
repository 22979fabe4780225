package postgres

import (
	"context"
	"errors"
	"testing"

	settlement "lunchbot/internal/settlement/domain"
	"lunchbot/internal/storage/storagetest"
)

func TestSettlementRecordLifecycle(t *testing.T) {
	db := storagetest.NewDB(t)
	ctx := context.Background()
	repo := NewSettlementRepository(db)

	got, err := repo.GetByDate(ctx, "2026-03-02")
	if err != nil {
		t.Fatalf("get unsettled: %v", err)
	}
	if got != nil {
		t.Fatalf("unsettled date returned %+v, want nil", got)
	}

	record := &settlement.Record{SettlementDate: "2026-03-02", IsBroadcasted: true}
	if err := repo.Create(ctx, record); err != nil {
		t.Fatalf("create: %v", err)
	}
	if record.ID == "" || record.CreatedAt.IsZero() {
		t.Fatalf("record = %+v, want id and timestamp assigned", record)
	}

	got, err = repo.GetByDate(ctx, "2026-03-02")
	if err != nil {
		t.Fatalf("get settled: %v", err)
	}
	if got == nil || got.ID != record.ID || !got.IsBroadcasted {
		t.Fatalf("got %+v, want the created record", got)
	}
}

func TestSettlementDuplicateDate(t *testing.T) {
	db := storagetest.NewDB(t)
	ctx := context.Background()
	repo := NewSettlementRepository(db)

	if err := repo.Create(ctx, &settlement.Record{SettlementDate: "2026-03-02"}); err != nil {
		t.Fatalf("create: %v", err)
	}
	err := repo.Create(ctx, &settlement.Record{SettlementDate: "2026-03-02"})
	if !errors.Is(err, ErrDuplicateDate) {
		t.Fatalf("duplicate create: err = %v, want ErrDuplicateDate", err)
	}
}

func TestSettlementValidation(t *testing.T) {
	db := storagetest.NewDB(t)
	repo := NewSettlementRepository(db)

	if _, err := repo.GetByDate(context.Background(), ""); !errors.Is(err, settlement.ErrEmptyDate) {
		t.Fatalf("get empty date: err = %v, want ErrEmptyDate", err)
	}
	if err := repo.Create(context.Background(), nil); !errors.Is(err, settlement.ErrNilRecord) {
		t.Fatalf("create nil: err = %v, want ErrNilRecord", err)
	}
	if err := repo.Create(context.Background(), &settlement.Record{}); !errors.Is(err, settlement.ErrEmptyDate) {
		t.Fatalf("create empty date: err = %v, want ErrEmptyDate", err)
	}
}
