package settlement

import (
	"strings"
	"testing"

	"github.com/shopspring/decimal"
)

func TestBuildReport(t *testing.T) {
	lines := []ReportLine{
		{ItemName: "Chicken leg", Price: decimal.NewFromInt(90), IsCombo: true, SelectedDrink: "milk tea"},
		{ItemName: "Braised pork", Price: decimal.NewFromInt(65)},
		{ItemName: "Braised pork", Price: decimal.NewFromInt(80), IsCombo: true, SelectedDrink: "green tea"},
		{ItemName: "Braised pork", Price: decimal.NewFromInt(65)},
		{ItemName: "Chicken leg", Price: decimal.NewFromInt(90), IsCombo: true, SelectedDrink: "green tea"},
	}
	report := BuildReport("2026-03-02", lines)

	if report.OrderCount != 5 {
		t.Fatalf("order count = %d, want 5", report.OrderCount)
	}
	if !report.TotalAmount.Equal(decimal.NewFromInt(390)) {
		t.Fatalf("total = %s, want 390", report.TotalAmount)
	}
	if report.DrinkTotal != 3 {
		t.Fatalf("drink total = %d, want 3", report.DrinkTotal)
	}

	// Deterministic ordering: by name, single before combo.
	want := []ItemCount{
		{Name: "Braised pork", IsCombo: false, Count: 2, Subtotal: decimal.NewFromInt(130)},
		{Name: "Braised pork", IsCombo: true, Count: 1, Subtotal: decimal.NewFromInt(80)},
		{Name: "Chicken leg", IsCombo: true, Count: 2, Subtotal: decimal.NewFromInt(180)},
	}
	if len(report.Items) != len(want) {
		t.Fatalf("items = %+v, want %d entries", report.Items, len(want))
	}
	for i, entry := range want {
		got := report.Items[i]
		if got.Name != entry.Name || got.IsCombo != entry.IsCombo || got.Count != entry.Count || !got.Subtotal.Equal(entry.Subtotal) {
			t.Fatalf("items[%d] = %+v, want %+v", i, got, entry)
		}
	}

	if len(report.Drinks) != 2 || report.Drinks[0].Name != "green tea" || report.Drinks[1].Name != "milk tea" {
		t.Fatalf("drinks = %+v, want green tea then milk tea", report.Drinks)
	}
	if got := report.DrinkCountFor("green tea"); got != 2 {
		t.Fatalf("green tea count = %d, want 2", got)
	}
	if got := report.ItemCountFor("Braised pork"); got != 3 {
		t.Fatalf("braised pork count = %d, want 3", got)
	}
	if got := report.ItemCountFor("Fish"); got != 0 {
		t.Fatalf("missing item count = %d, want 0", got)
	}
}

func TestReportTextRendersSummary(t *testing.T) {
	report := BuildReport("2026-03-02", []ReportLine{
		{ItemName: "Braised pork", Price: decimal.NewFromInt(65)},
		{ItemName: "Braised pork", Price: decimal.NewFromInt(80), IsCombo: true, SelectedDrink: "green tea"},
	})
	text := report.Text()

	for _, fragment := range []string{
		"Order summary for 2026-03-02",
		"Braised pork: 1",
		"Braised pork (combo): 1",
		"green tea: 1",
		"Orders: 2",
		"Drinks: 1",
		"Amount: 145",
	} {
		if !strings.Contains(text, fragment) {
			t.Fatalf("text missing %q:\n%s", fragment, text)
		}
	}
}

func TestReportTextEmptyDay(t *testing.T) {
	text := BuildReport("2026-03-02", nil).Text()
	if !strings.Contains(text, "No orders were settled today.") {
		t.Fatalf("empty report text = %q", text)
	}
}
