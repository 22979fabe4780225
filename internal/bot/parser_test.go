package bot

import (
	"reflect"
	"testing"
)

func TestParseText(t *testing.T) {
	cases := []struct {
		text string
		want Command
	}{
		{"menu", ShowDates{}},
		{"order", ShowDates{}},
		{"  Menu  ", ShowDates{}},
		{"BALANCE", CheckBalance{}},
		{"cancel", ListCancellable{}},
		{"settle", TriggerSettlement{}},
		{"hello?", Unknown{Text: "hello?"}},
		{"", Unknown{Text: ""}},
	}
	for _, tc := range cases {
		got := ParseText(tc.text)
		if !reflect.DeepEqual(got, tc.want) {
			t.Errorf("ParseText(%q) = %#v, want %#v", tc.text, got, tc.want)
		}
	}
}

func TestParsePostback(t *testing.T) {
	cases := []struct {
		name string
		data string
		want Command
	}{
		{"select date", "action=select_date&date=2026-03-02", ShowMenu{Date: "2026-03-02"}},
		{"single order", "action=order&menuItemId=item-1&isCombo=false", PlaceOrder{MenuItemID: "item-1"}},
		{"combo order", "action=order&menuItemId=item-1&isCombo=true", PlaceOrder{MenuItemID: "item-1", IsCombo: true}},
		{"drink selection", "action=select_drink&menuItemId=item-1&drink=green+tea", PlaceOrder{MenuItemID: "item-1", IsCombo: true, SelectedDrink: "green tea"}},
		{"cancel date", "action=cancel_select_date&date=2026-03-02", ShowCancellable{Date: "2026-03-02"}},
		{"cancel order", "action=cancel_order&orderId=order-1", CancelOrder{OrderID: "order-1"}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := ParsePostback(tc.data)
			if err != nil {
				t.Fatalf("ParsePostback(%q): %v", tc.data, err)
			}
			if !reflect.DeepEqual(got, tc.want) {
				t.Fatalf("ParsePostback(%q) = %#v, want %#v", tc.data, got, tc.want)
			}
		})
	}
}

func TestParsePostbackErrors(t *testing.T) {
	cases := []struct {
		name string
		data string
	}{
		{"unknown action", "action=launch_missiles"},
		{"no action", "date=2026-03-02"},
		{"select date without date", "action=select_date"},
		{"order without item", "action=order&isCombo=true"},
		{"drink without drink", "action=select_drink&menuItemId=item-1"},
		{"cancel without order id", "action=cancel_order"},
		{"malformed query", "action=order;%zz"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := ParsePostback(tc.data); err == nil {
				t.Fatalf("ParsePostback(%q) succeeded, want error", tc.data)
			}
		})
	}
}

func TestKind(t *testing.T) {
	cases := []struct {
		cmd  Command
		want string
	}{
		{Register{}, "register"},
		{ShowDates{}, "show_dates"},
		{PlaceOrder{}, "place_order"},
		{TriggerSettlement{}, "trigger_settlement"},
		{Unknown{}, "unknown"},
	}
	for _, tc := range cases {
		if got := Kind(tc.cmd); got != tc.want {
			t.Errorf("Kind(%#v) = %q, want %q", tc.cmd, got, tc.want)
		}
	}
}
