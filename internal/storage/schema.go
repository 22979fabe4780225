package storage

import (
	"context"
	"database/sql"
)

// Schema statements are portable between postgres and sqlite: string ids
// generated in Go (no serial columns), dates stored as YYYY-MM-DD text and
// amounts as NUMERIC.
var schemaStatements = []string{
	`CREATE TABLE IF NOT EXISTS users (
	id TEXT PRIMARY KEY,
	chat_user_id TEXT NOT NULL UNIQUE,
	display_name TEXT NOT NULL,
	balance NUMERIC NOT NULL DEFAULT 0,
	is_admin BOOLEAN NOT NULL DEFAULT FALSE,
	created_at TIMESTAMP NOT NULL
)`,
	`CREATE TABLE IF NOT EXISTS menu_items (
	id TEXT PRIMARY KEY,
	menu_date TEXT NOT NULL,
	name TEXT NOT NULL,
	price NUMERIC NOT NULL,
	is_combo_eligible BOOLEAN NOT NULL DEFAULT FALSE,
	display_order INTEGER NOT NULL DEFAULT 0
)`,
	`CREATE INDEX IF NOT EXISTS idx_menu_items_date ON menu_items (menu_date, display_order)`,
	`CREATE TABLE IF NOT EXISTS orders (
	id TEXT PRIMARY KEY,
	user_id TEXT NOT NULL,
	order_for_date TEXT NOT NULL,
	total_amount NUMERIC NOT NULL,
	status TEXT NOT NULL,
	created_at TIMESTAMP NOT NULL
)`,
	`CREATE INDEX IF NOT EXISTS idx_orders_date_status ON orders (order_for_date, status)`,
	`CREATE INDEX IF NOT EXISTS idx_orders_user ON orders (user_id, order_for_date)`,
	`CREATE TABLE IF NOT EXISTS order_items (
	id TEXT PRIMARY KEY,
	order_id TEXT NOT NULL,
	item_name TEXT NOT NULL,
	price_per_item NUMERIC NOT NULL,
	quantity INTEGER NOT NULL DEFAULT 1,
	is_combo BOOLEAN NOT NULL DEFAULT FALSE,
	selected_drink TEXT NOT NULL DEFAULT ''
)`,
	`CREATE INDEX IF NOT EXISTS idx_order_items_order ON order_items (order_id)`,
	`CREATE TABLE IF NOT EXISTS transactions (
	id TEXT PRIMARY KEY,
	user_id TEXT NOT NULL,
	type TEXT NOT NULL,
	amount NUMERIC NOT NULL,
	related_order_id TEXT NOT NULL DEFAULT '',
	created_at TIMESTAMP NOT NULL
)`,
	`CREATE INDEX IF NOT EXISTS idx_transactions_user ON transactions (user_id, created_at)`,
	`CREATE TABLE IF NOT EXISTS app_settings (
	key TEXT PRIMARY KEY,
	value TEXT NOT NULL
)`,
	`CREATE TABLE IF NOT EXISTS daily_settlements (
	id TEXT PRIMARY KEY,
	settlement_date TEXT NOT NULL UNIQUE,
	is_broadcasted BOOLEAN NOT NULL DEFAULT FALSE,
	created_at TIMESTAMP NOT NULL
)`,
	`CREATE TABLE IF NOT EXISTS audit_logs (
	id TEXT PRIMARY KEY,
	actor TEXT NOT NULL,
	role TEXT NOT NULL,
	action TEXT NOT NULL,
	resource_type TEXT NOT NULL,
	resource_id TEXT NOT NULL,
	metadata TEXT NOT NULL DEFAULT '',
	payload_digest TEXT NOT NULL DEFAULT '',
	ip TEXT NOT NULL DEFAULT '',
	user_agent TEXT NOT NULL DEFAULT '',
	created_at TIMESTAMP NOT NULL
)`,
}

// EnsureSchema creates all tables and indexes when missing.
func EnsureSchema(ctx context.Context, db *sql.DB) error {
	for _, stmt := range schemaStatements {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return err
		}
	}
	return nil
}
