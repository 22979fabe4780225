package bot

// Command is a parsed user intent. The concrete types below form a closed
// union; the dispatcher switches over them.
type Command interface {
	isCommand()
}

// Register creates an account on first contact.
type Register struct {
	DisplayName string
}

// ShowDates asks for the list of orderable dates.
type ShowDates struct{}

// ShowMenu asks for the menu of one date.
type ShowMenu struct {
	Date string
}

// PlaceOrder orders a menu item. SelectedDrink may be empty, in which case
// a combo order comes back asking for a drink.
type PlaceOrder struct {
	MenuItemID    string
	IsCombo       bool
	SelectedDrink string
}

// CheckBalance asks for the current balance.
type CheckBalance struct{}

// ListCancellable asks for the dates with cancellable orders.
type ListCancellable struct{}

// ShowCancellable asks for the cancellable orders of one date.
type ShowCancellable struct {
	Date string
}

// CancelOrder cancels one order.
type CancelOrder struct {
	OrderID string
}

// TriggerSettlement runs today's settlement. Admin only.
type TriggerSettlement struct{}

// Unknown is anything the parser could not classify.
type Unknown struct {
	Text string
}

func (Register) isCommand()          {}
func (ShowDates) isCommand()         {}
func (ShowMenu) isCommand()          {}
func (PlaceOrder) isCommand()        {}
func (CheckBalance) isCommand()      {}
func (ListCancellable) isCommand()   {}
func (ShowCancellable) isCommand()   {}
func (CancelOrder) isCommand()       {}
func (TriggerSettlement) isCommand() {}
func (Unknown) isCommand()           {}

// Kind names the command for metrics labels.
func Kind(cmd Command) string {
	switch cmd.(type) {
	case Register:
		return "register"
	case ShowDates:
		return "show_dates"
	case ShowMenu:
		return "show_menu"
	case PlaceOrder:
		return "place_order"
	case CheckBalance:
		return "check_balance"
	case ListCancellable:
		return "list_cancellable"
	case ShowCancellable:
		return "show_cancellable"
	case CancelOrder:
		return "cancel_order"
	case TriggerSettlement:
		return "trigger_settlement"
	default:
		return "unknown"
	}
}
