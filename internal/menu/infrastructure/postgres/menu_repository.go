package postgres

import (
	"context"
	"database/sql"
	"errors"

	menu "lunchbot/internal/menu/domain"
	"lunchbot/internal/storage"
)

// MenuRepository persists daily menus.
type MenuRepository struct {
	q storage.Querier
}

// NewMenuRepository constructs a repository.
func NewMenuRepository(q storage.Querier) *MenuRepository {
	return &MenuRepository{q: q}
}

// GetByID fetches a menu item.
func (r *MenuRepository) GetByID(ctx context.Context, id string) (*menu.Item, error) {
	if r == nil || r.q == nil {
		return nil, errors.New("menu repo: nil querier")
	}
	row := r.q.QueryRowContext(ctx, `
SELECT id, menu_date, name, price, is_combo_eligible, display_order
FROM menu_items
WHERE id = $1
LIMIT 1`, id)

	var item menu.Item
	err := row.Scan(&item.ID, &item.MenuDate, &item.Name, &item.Price, &item.IsComboEligible, &item.DisplayOrder)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, menu.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &item, nil
}

// ListByDate returns the published menu for a date in display order.
func (r *MenuRepository) ListByDate(ctx context.Context, date string) ([]menu.Item, error) {
	if r == nil || r.q == nil {
		return nil, errors.New("menu repo: nil querier")
	}
	if date == "" {
		return nil, menu.ErrEmptyDate
	}
	rows, err := r.q.QueryContext(ctx, `
SELECT id, menu_date, name, price, is_combo_eligible, display_order
FROM menu_items
WHERE menu_date = $1
ORDER BY display_order, id`, date)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []menu.Item
	for rows.Next() {
		var item menu.Item
		if err := rows.Scan(&item.ID, &item.MenuDate, &item.Name, &item.Price, &item.IsComboEligible, &item.DisplayOrder); err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	return items, rows.Err()
}

// DeleteByDate removes every item published for a date.
func (r *MenuRepository) DeleteByDate(ctx context.Context, date string) error {
	if r == nil || r.q == nil {
		return errors.New("menu repo: nil querier")
	}
	if date == "" {
		return menu.ErrEmptyDate
	}
	_, err := r.q.ExecContext(ctx, `DELETE FROM menu_items WHERE menu_date = $1`, date)
	return err
}

// Insert adds one menu item.
func (r *MenuRepository) Insert(ctx context.Context, item *menu.Item) error {
	if r == nil || r.q == nil {
		return errors.New("menu repo: nil querier")
	}
	if item == nil {
		return errors.New("menu repo: nil item")
	}
	if item.MenuDate == "" {
		return menu.ErrEmptyDate
	}
	if item.ID == "" {
		item.ID = storage.NewID("item")
	}
	_, err := r.q.ExecContext(ctx, `
INSERT INTO menu_items (id, menu_date, name, price, is_combo_eligible, display_order)
VALUES ($1, $2, $3, $4, $5, $6)`,
		item.ID, item.MenuDate, item.Name, item.Price, item.IsComboEligible, item.DisplayOrder)
	return err
}
