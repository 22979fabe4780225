package interfaces

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/xuri/excelize/v2"

	orders "lunchbot/internal/orders/domain"
	orderrepo "lunchbot/internal/orders/infrastructure/postgres"
	settlement "lunchbot/internal/settlement/domain"
	settlementrepo "lunchbot/internal/settlement/infrastructure/postgres"
	"lunchbot/internal/storage/storagetest"
	users "lunchbot/internal/users/domain"
	userrepo "lunchbot/internal/users/infrastructure/postgres"
)

func sampleReport() settlement.Report {
	return settlement.BuildReport("2026-03-02", []settlement.ReportLine{
		{ItemName: "Braised pork", Price: decimal.NewFromInt(65)},
		{ItemName: "Braised pork", Price: decimal.NewFromInt(80), IsCombo: true, SelectedDrink: "green tea"},
	})
}

func TestBuildReportXLSX(t *testing.T) {
	payload, err := BuildReportXLSX(sampleReport())
	if err != nil {
		t.Fatalf("build xlsx: %v", err)
	}

	f, err := excelize.OpenReader(bytes.NewReader(payload))
	if err != nil {
		t.Fatalf("open workbook: %v", err)
	}
	defer f.Close()

	date, err := f.GetCellValue("summary", "B3")
	if err != nil {
		t.Fatalf("read date cell: %v", err)
	}
	if date != "2026-03-02" {
		t.Fatalf("date cell = %q, want 2026-03-02", date)
	}
	firstItem, err := f.GetCellValue("items", "A2")
	if err != nil {
		t.Fatalf("read item cell: %v", err)
	}
	if firstItem != "Braised pork" {
		t.Fatalf("first item = %q, want Braised pork", firstItem)
	}
	firstDrink, err := f.GetCellValue("drinks", "A2")
	if err != nil {
		t.Fatalf("read drink cell: %v", err)
	}
	if firstDrink != "green tea" {
		t.Fatalf("first drink = %q, want green tea", firstDrink)
	}
}

func TestBuildReportPDF(t *testing.T) {
	payload, err := BuildReportPDF(sampleReport())
	if err != nil {
		t.Fatalf("build pdf: %v", err)
	}
	if !bytes.HasPrefix(payload, []byte("%PDF")) {
		t.Fatalf("payload does not start with a PDF header: %q", payload[:8])
	}
}

func TestReportExportHandler(t *testing.T) {
	db := storagetest.NewDB(t)
	ctx := context.Background()
	handler := NewReportExportHandler(db)

	user := &users.User{ChatUserID: "chat-alice", DisplayName: "Alice"}
	if err := userrepo.NewUserRepository(db).Create(ctx, user); err != nil {
		t.Fatalf("seed user: %v", err)
	}
	order := &orders.Order{UserID: user.ID, OrderForDate: "2026-03-02", TotalAmount: decimal.NewFromInt(65), Status: orders.StatusFinished}
	line := &orders.Line{ItemName: "Braised pork", PricePerItem: order.TotalAmount}
	if err := orderrepo.NewOrderRepository(db).Create(ctx, order, line); err != nil {
		t.Fatalf("seed order: %v", err)
	}
	if err := settlementrepo.NewSettlementRepository(db).Create(ctx, &settlement.Record{SettlementDate: "2026-03-02", IsBroadcasted: true}); err != nil {
		t.Fatalf("seed record: %v", err)
	}

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/settlements/2026-03-02/report.xlsx", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("xlsx status = %d, want 200: %s", rec.Code, rec.Body.String())
	}
	if got := rec.Header().Get("Content-Type"); got != "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet" {
		t.Fatalf("content type = %q", got)
	}
	if _, err := excelize.OpenReader(bytes.NewReader(rec.Body.Bytes())); err != nil {
		t.Fatalf("response is not a workbook: %v", err)
	}

	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/settlements/2026-03-02/report.pdf", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("pdf status = %d, want 200", rec.Code)
	}
	if !bytes.HasPrefix(rec.Body.Bytes(), []byte("%PDF")) {
		t.Fatal("pdf response missing header")
	}

	// Unsettled dates export nothing.
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/settlements/2026-03-03/report.pdf", nil))
	if rec.Code != http.StatusNotFound {
		t.Fatalf("unsettled status = %d, want 404", rec.Code)
	}

	for _, path := range []string{
		"/api/v1/settlements/march-2nd/report.pdf",
		"/api/v1/settlements/2026-03-02/report.csv",
		"/api/v1/settlements/2026-03-02",
	} {
		rec = httptest.NewRecorder()
		handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
		if rec.Code != http.StatusBadRequest {
			t.Fatalf("%s status = %d, want 400", path, rec.Code)
		}
	}
}
