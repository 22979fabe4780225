package menu

import (
	"errors"

	"github.com/shopspring/decimal"
)

var (
	// ErrNotFound is returned when a menu item does not exist.
	ErrNotFound = errors.New("menu: item not found")
	// ErrEmptyDate is returned when a menu date is missing.
	ErrEmptyDate = errors.New("menu: empty date")
)

// Item is one dish published for a single calendar date. For combo-eligible
// items Price is the combo price; ordering it as a single subtracts the
// configured combo surcharge. A day's menu is replaced wholesale, never
// edited in place.
type Item struct {
	ID              string
	MenuDate        string
	Name            string
	Price           decimal.Decimal
	IsComboEligible bool
	DisplayOrder    int
}
