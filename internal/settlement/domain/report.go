package settlement

import (
	"fmt"
	"sort"
	"strings"

	"github.com/shopspring/decimal"
)

// ReportLine is one order line feeding the daily report.
type ReportLine struct {
	ItemName      string
	Price         decimal.Decimal
	IsCombo       bool
	SelectedDrink string
}

// ItemCount aggregates orders of one item. Combo and single orders of the
// same dish are counted separately.
type ItemCount struct {
	Name     string
	IsCombo  bool
	Count    int
	Subtotal decimal.Decimal
}

// DrinkCount aggregates drink selections across combo orders.
type DrinkCount struct {
	Name  string
	Count int
}

// Report is the end-of-day summary broadcast to admins.
type Report struct {
	Date        string
	Items       []ItemCount
	Drinks      []DrinkCount
	OrderCount  int
	DrinkTotal  int
	TotalAmount decimal.Decimal
}

// BuildReport aggregates the lines of a day's surviving orders: per-item
// counts and subtotals, per-drink counts, order count, drink count and the
// grand total. Output ordering is deterministic (name, singles before
// combos).
func BuildReport(date string, lines []ReportLine) Report {
	type itemKey struct {
		name  string
		combo bool
	}
	items := make(map[itemKey]*ItemCount)
	drinks := make(map[string]int)

	report := Report{Date: date, TotalAmount: decimal.Zero}
	for _, line := range lines {
		key := itemKey{name: line.ItemName, combo: line.IsCombo}
		entry, ok := items[key]
		if !ok {
			entry = &ItemCount{Name: line.ItemName, IsCombo: line.IsCombo, Subtotal: decimal.Zero}
			items[key] = entry
		}
		entry.Count++
		entry.Subtotal = entry.Subtotal.Add(line.Price)

		report.OrderCount++
		report.TotalAmount = report.TotalAmount.Add(line.Price)
		if line.IsCombo && line.SelectedDrink != "" {
			drinks[line.SelectedDrink]++
			report.DrinkTotal++
		}
	}

	for _, entry := range items {
		report.Items = append(report.Items, *entry)
	}
	sort.Slice(report.Items, func(i, j int) bool {
		if report.Items[i].Name != report.Items[j].Name {
			return report.Items[i].Name < report.Items[j].Name
		}
		return !report.Items[i].IsCombo && report.Items[j].IsCombo
	})

	for name, count := range drinks {
		report.Drinks = append(report.Drinks, DrinkCount{Name: name, Count: count})
	}
	sort.Slice(report.Drinks, func(i, j int) bool {
		return report.Drinks[i].Name < report.Drinks[j].Name
	})

	return report
}

// ItemCountFor returns the total count for an item name across combo and
// single variants.
func (r Report) ItemCountFor(name string) int {
	count := 0
	for _, item := range r.Items {
		if item.Name == name {
			count += item.Count
		}
	}
	return count
}

// DrinkCountFor returns the count for a drink name.
func (r Report) DrinkCountFor(name string) int {
	for _, drink := range r.Drinks {
		if drink.Name == name {
			return drink.Count
		}
	}
	return 0
}

// Text renders the report for the admin broadcast.
func (r Report) Text() string {
	var b strings.Builder
	fmt.Fprintf(&b, "--- Order summary for %s ---\n", r.Date)
	if r.OrderCount == 0 {
		b.WriteString("\nNo orders were settled today.")
		return b.String()
	}
	for _, item := range r.Items {
		name := item.Name
		if item.IsCombo {
			name += " (combo)"
		}
		fmt.Fprintf(&b, "%s: %d\n", name, item.Count)
	}
	b.WriteString("\n--- Drinks ---\n")
	if len(r.Drinks) == 0 {
		b.WriteString("none\n")
	}
	for _, drink := range r.Drinks {
		fmt.Fprintf(&b, "%s: %d\n", drink.Name, drink.Count)
	}
	b.WriteString("\n--- Totals ---\n")
	fmt.Fprintf(&b, "Orders: %d\n", r.OrderCount)
	fmt.Fprintf(&b, "Drinks: %d\n", r.DrinkTotal)
	fmt.Fprintf(&b, "Amount: %s", r.TotalAmount.String())
	return b.String()
}
