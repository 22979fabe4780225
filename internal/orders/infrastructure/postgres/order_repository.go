package postgres

import (
	"context"
	"database/sql"
	"errors"
	"time"

	orders "lunchbot/internal/orders/domain"
	"lunchbot/internal/storage"
)

// OrderRepository persists orders and their lines.
type OrderRepository struct {
	q storage.Querier
}

// NewOrderRepository constructs a repository.
func NewOrderRepository(q storage.Querier) *OrderRepository {
	return &OrderRepository{q: q}
}

const orderColumns = `id, user_id, order_for_date, total_amount, status, created_at`

// Create inserts an order and its line.
func (r *OrderRepository) Create(ctx context.Context, order *orders.Order, line *orders.Line) error {
	if r == nil || r.q == nil {
		return errors.New("order repo: nil querier")
	}
	if order == nil || line == nil {
		return errors.New("order repo: nil order")
	}
	if order.ID == "" {
		order.ID = storage.NewID("order")
	}
	if order.CreatedAt.IsZero() {
		order.CreatedAt = time.Now().UTC()
	}
	if order.Status == "" {
		order.Status = orders.StatusPreparing
	}
	if line.ID == "" {
		line.ID = storage.NewID("line")
	}
	line.OrderID = order.ID
	if line.Quantity == 0 {
		line.Quantity = 1
	}

	_, err := r.q.ExecContext(ctx, `
INSERT INTO orders (`+orderColumns+`)
VALUES ($1, $2, $3, $4, $5, $6)`,
		order.ID, order.UserID, order.OrderForDate, order.TotalAmount, order.Status, order.CreatedAt)
	if err != nil {
		return err
	}
	_, err = r.q.ExecContext(ctx, `
INSERT INTO order_items (id, order_id, item_name, price_per_item, quantity, is_combo, selected_drink)
VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		line.ID, line.OrderID, line.ItemName, line.PricePerItem, line.Quantity, line.IsCombo, line.SelectedDrink)
	return err
}

// GetByID fetches an order.
func (r *OrderRepository) GetByID(ctx context.Context, id string) (*orders.Order, error) {
	if r == nil || r.q == nil {
		return nil, errors.New("order repo: nil querier")
	}
	row := r.q.QueryRowContext(ctx, `
SELECT `+orderColumns+`
FROM orders
WHERE id = $1
LIMIT 1`, id)

	var order orders.Order
	err := row.Scan(&order.ID, &order.UserID, &order.OrderForDate, &order.TotalAmount, &order.Status, &order.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, orders.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &order, nil
}

// UpdateStatusFrom transitions an order only when it is still in the
// expected state. Returns false when another writer won the race; the
// caller re-reads and reports ErrInvalidState.
func (r *OrderRepository) UpdateStatusFrom(ctx context.Context, id string, from, to orders.Status) (bool, error) {
	if r == nil || r.q == nil {
		return false, errors.New("order repo: nil querier")
	}
	result, err := r.q.ExecContext(ctx, `
UPDATE orders
SET status = $1
WHERE id = $2 AND status = $3`, to, id, from)
	if err != nil {
		return false, err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return false, err
	}
	return affected == 1, nil
}

// CountPreparingByDate counts orders still preparing for a date.
func (r *OrderRepository) CountPreparingByDate(ctx context.Context, date string) (int, error) {
	if r == nil || r.q == nil {
		return 0, errors.New("order repo: nil querier")
	}
	var count int
	err := r.q.QueryRowContext(ctx, `
SELECT COUNT(*)
FROM orders
WHERE order_for_date = $1 AND status = $2`, date, orders.StatusPreparing).Scan(&count)
	return count, err
}

// ListPreparingByDate returns preparing orders for a date.
func (r *OrderRepository) ListPreparingByDate(ctx context.Context, date string) ([]orders.Order, error) {
	return r.list(ctx, `
SELECT `+orderColumns+`
FROM orders
WHERE order_for_date = $1 AND status = $2
ORDER BY created_at, id`, date, orders.StatusPreparing)
}

// ListPreparingByDateNegativeBalance returns preparing orders for a date
// whose owner's balance is below zero: the settlement sweep set.
func (r *OrderRepository) ListPreparingByDateNegativeBalance(ctx context.Context, date string) ([]orders.Order, error) {
	return r.list(ctx, `
SELECT o.id, o.user_id, o.order_for_date, o.total_amount, o.status, o.created_at
FROM orders o
JOIN users u ON u.id = o.user_id
WHERE o.order_for_date = $1 AND o.status = $2 AND u.balance < 0
ORDER BY o.created_at, o.id`, date, orders.StatusPreparing)
}

// ListPreparingByUserFromDate returns a user's preparing orders on or after
// a date, oldest date first.
func (r *OrderRepository) ListPreparingByUserFromDate(ctx context.Context, userID, fromDate string) ([]orders.Order, error) {
	return r.list(ctx, `
SELECT `+orderColumns+`
FROM orders
WHERE user_id = $1 AND status = $2 AND order_for_date >= $3
ORDER BY order_for_date, created_at, id`, userID, orders.StatusPreparing, fromDate)
}

// ListPreparingByUserAndDate returns a user's preparing orders for one date.
func (r *OrderRepository) ListPreparingByUserAndDate(ctx context.Context, userID, date string) ([]orders.Order, error) {
	return r.list(ctx, `
SELECT `+orderColumns+`
FROM orders
WHERE user_id = $1 AND status = $2 AND order_for_date = $3
ORDER BY created_at, id`, userID, orders.StatusPreparing, date)
}

// FinishAllPreparing transitions every remaining preparing order for a date
// to finished, returning the number of finalized orders.
func (r *OrderRepository) FinishAllPreparing(ctx context.Context, date string) (int, error) {
	if r == nil || r.q == nil {
		return 0, errors.New("order repo: nil querier")
	}
	result, err := r.q.ExecContext(ctx, `
UPDATE orders
SET status = $1
WHERE order_for_date = $2 AND status = $3`, orders.StatusFinished, date, orders.StatusPreparing)
	if err != nil {
		return 0, err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return 0, err
	}
	return int(affected), nil
}

// ListLinesByOrder returns the lines of one order.
func (r *OrderRepository) ListLinesByOrder(ctx context.Context, orderID string) ([]orders.Line, error) {
	if r == nil || r.q == nil {
		return nil, errors.New("order repo: nil querier")
	}
	rows, err := r.q.QueryContext(ctx, `
SELECT id, order_id, item_name, price_per_item, quantity, is_combo, selected_drink
FROM order_items
WHERE order_id = $1
ORDER BY id`, orderID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanLines(rows)
}

// DayLine is an order line joined with its owning user, used by settlement
// reporting and confirmation grouping.
type DayLine struct {
	UserID string
	Line   orders.Line
}

// ListDayLines returns the lines of every order for a date in the given
// status, joined with the owning user id.
func (r *OrderRepository) ListDayLines(ctx context.Context, date string, status orders.Status) ([]DayLine, error) {
	if r == nil || r.q == nil {
		return nil, errors.New("order repo: nil querier")
	}
	rows, err := r.q.QueryContext(ctx, `
SELECT o.user_id, oi.id, oi.order_id, oi.item_name, oi.price_per_item, oi.quantity, oi.is_combo, oi.selected_drink
FROM order_items oi
JOIN orders o ON o.id = oi.order_id
WHERE o.order_for_date = $1 AND o.status = $2
ORDER BY oi.id`, date, status)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []DayLine
	for rows.Next() {
		var dl DayLine
		if err := rows.Scan(&dl.UserID, &dl.Line.ID, &dl.Line.OrderID, &dl.Line.ItemName, &dl.Line.PricePerItem, &dl.Line.Quantity, &dl.Line.IsCombo, &dl.Line.SelectedDrink); err != nil {
			return nil, err
		}
		result = append(result, dl)
	}
	return result, rows.Err()
}

func (r *OrderRepository) list(ctx context.Context, query string, args ...any) ([]orders.Order, error) {
	if r == nil || r.q == nil {
		return nil, errors.New("order repo: nil querier")
	}
	rows, err := r.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []orders.Order
	for rows.Next() {
		var order orders.Order
		if err := rows.Scan(&order.ID, &order.UserID, &order.OrderForDate, &order.TotalAmount, &order.Status, &order.CreatedAt); err != nil {
			return nil, err
		}
		result = append(result, order)
	}
	return result, rows.Err()
}

func scanLines(rows *sql.Rows) ([]orders.Line, error) {
	var lines []orders.Line
	for rows.Next() {
		var line orders.Line
		if err := rows.Scan(&line.ID, &line.OrderID, &line.ItemName, &line.PricePerItem, &line.Quantity, &line.IsCombo, &line.SelectedDrink); err != nil {
			return nil, err
		}
		lines = append(lines, line)
	}
	return lines, rows.Err()
}
