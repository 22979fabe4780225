package postgres

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"lunchbot/internal/storage"
	users "lunchbot/internal/users/domain"
)

// UserRepository persists users. It accepts a storage.Querier so it can run
// standalone or inside a caller-owned transaction.
type UserRepository struct {
	q storage.Querier
}

// NewUserRepository constructs a repository.
func NewUserRepository(q storage.Querier) *UserRepository {
	return &UserRepository{q: q}
}

const userColumns = `id, chat_user_id, display_name, balance, is_admin, created_at`

// GetByID fetches a user by internal id.
func (r *UserRepository) GetByID(ctx context.Context, id string) (*users.User, error) {
	if r == nil || r.q == nil {
		return nil, errors.New("user repo: nil querier")
	}
	row := r.q.QueryRowContext(ctx, `
SELECT `+userColumns+`
FROM users
WHERE id = $1
LIMIT 1`, id)
	return scanUser(row)
}

// GetByChatUserID fetches a user by chat transport id.
func (r *UserRepository) GetByChatUserID(ctx context.Context, chatUserID string) (*users.User, error) {
	if r == nil || r.q == nil {
		return nil, errors.New("user repo: nil querier")
	}
	row := r.q.QueryRowContext(ctx, `
SELECT `+userColumns+`
FROM users
WHERE chat_user_id = $1
LIMIT 1`, chatUserID)
	return scanUser(row)
}

// Create inserts a user.
func (r *UserRepository) Create(ctx context.Context, user *users.User) error {
	if r == nil || r.q == nil {
		return errors.New("user repo: nil querier")
	}
	if user == nil {
		return errors.New("user repo: nil user")
	}
	if user.ID == "" {
		user.ID = storage.NewID("user")
	}
	if user.CreatedAt.IsZero() {
		user.CreatedAt = time.Now().UTC()
	}
	_, err := r.q.ExecContext(ctx, `
INSERT INTO users (id, chat_user_id, display_name, balance, is_admin, created_at)
VALUES ($1, $2, $3, $4, $5, $6)`,
		user.ID, user.ChatUserID, user.DisplayName, user.Balance, user.IsAdmin, user.CreatedAt)
	if storage.IsUniqueViolation(err) {
		return users.ErrDuplicateChatUser
	}
	return err
}

// List returns all users ordered by registration time.
func (r *UserRepository) List(ctx context.Context) ([]users.User, error) {
	return r.list(ctx, `
SELECT `+userColumns+`
FROM users
ORDER BY created_at, id`)
}

// ListAdmins returns all admin users.
func (r *UserRepository) ListAdmins(ctx context.Context) ([]users.User, error) {
	return r.list(ctx, `
SELECT `+userColumns+`
FROM users
WHERE is_admin = TRUE
ORDER BY created_at, id`)
}

// ListNegativeBalance returns users whose balance is below zero.
func (r *UserRepository) ListNegativeBalance(ctx context.Context) ([]users.User, error) {
	return r.list(ctx, `
SELECT `+userColumns+`
FROM users
WHERE balance < 0
ORDER BY created_at, id`)
}

func (r *UserRepository) list(ctx context.Context, query string, args ...any) ([]users.User, error) {
	if r == nil || r.q == nil {
		return nil, errors.New("user repo: nil querier")
	}
	rows, err := r.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []users.User
	for rows.Next() {
		var user users.User
		if err := rows.Scan(&user.ID, &user.ChatUserID, &user.DisplayName, &user.Balance, &user.IsAdmin, &user.CreatedAt); err != nil {
			return nil, err
		}
		result = append(result, user)
	}
	return result, rows.Err()
}

func scanUser(row *sql.Row) (*users.User, error) {
	var user users.User
	err := row.Scan(&user.ID, &user.ChatUserID, &user.DisplayName, &user.Balance, &user.IsAdmin, &user.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, users.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &user, nil
}
