package bot

import (
	"fmt"
	"net/url"
	"strings"
)

// ParseText classifies a free-text message.
func ParseText(text string) Command {
	switch strings.ToLower(strings.TrimSpace(text)) {
	case "menu", "order":
		return ShowDates{}
	case "balance":
		return CheckBalance{}
	case "cancel":
		return ListCancellable{}
	case "settle":
		return TriggerSettlement{}
	default:
		return Unknown{Text: text}
	}
}

// ParsePostback decodes a postback query string into a command. The data is
// a url-encoded query carrying an action plus its parameters, produced by
// the buttons the bot itself rendered.
func ParsePostback(data string) (Command, error) {
	values, err := url.ParseQuery(data)
	if err != nil {
		return nil, fmt.Errorf("bot: bad postback data: %w", err)
	}
	switch action := values.Get("action"); action {
	case "select_date":
		date := values.Get("date")
		if date == "" {
			return nil, fmt.Errorf("bot: postback %s: missing date", action)
		}
		return ShowMenu{Date: date}, nil
	case "order":
		itemID := values.Get("menuItemId")
		if itemID == "" {
			return nil, fmt.Errorf("bot: postback %s: missing menuItemId", action)
		}
		return PlaceOrder{
			MenuItemID: itemID,
			IsCombo:    values.Get("isCombo") == "true",
		}, nil
	case "select_drink":
		itemID := values.Get("menuItemId")
		drink := values.Get("drink")
		if itemID == "" || drink == "" {
			return nil, fmt.Errorf("bot: postback %s: missing menuItemId or drink", action)
		}
		return PlaceOrder{MenuItemID: itemID, IsCombo: true, SelectedDrink: drink}, nil
	case "cancel_select_date":
		date := values.Get("date")
		if date == "" {
			return nil, fmt.Errorf("bot: postback %s: missing date", action)
		}
		return ShowCancellable{Date: date}, nil
	case "cancel_order":
		orderID := values.Get("orderId")
		if orderID == "" {
			return nil, fmt.Errorf("bot: postback %s: missing orderId", action)
		}
		return CancelOrder{OrderID: orderID}, nil
	default:
		return nil, fmt.Errorf("bot: unknown postback action %q", action)
	}
}
