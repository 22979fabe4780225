package postgres

import (
	"context"
	"database/sql"
	"errors"

	"lunchbot/internal/storage"
)

// KeyDeadline holds the HH:MM ordering cutoff.
const KeyDeadline = "deadline_time"

// ErrNotFound is returned when a setting key has no value.
var ErrNotFound = errors.New("settings: not found")

// SettingsRepository reads and writes the app_settings key/value table.
type SettingsRepository struct {
	q storage.Querier
}

// NewSettingsRepository constructs a repository.
func NewSettingsRepository(q storage.Querier) *SettingsRepository {
	return &SettingsRepository{q: q}
}

// Get returns the value for a key.
func (r *SettingsRepository) Get(ctx context.Context, key string) (string, error) {
	if r == nil || r.q == nil {
		return "", errors.New("settings repo: nil querier")
	}
	var value string
	err := r.q.QueryRowContext(ctx, `
SELECT value
FROM app_settings
WHERE key = $1
LIMIT 1`, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", ErrNotFound
	}
	if err != nil {
		return "", err
	}
	return value, nil
}

// Set upserts the value for a key.
func (r *SettingsRepository) Set(ctx context.Context, key, value string) error {
	if r == nil || r.q == nil {
		return errors.New("settings repo: nil querier")
	}
	_, err := r.q.ExecContext(ctx, `
INSERT INTO app_settings (key, value)
VALUES ($1, $2)
ON CONFLICT (key)
DO UPDATE SET value = EXCLUDED.value`, key, value)
	return err
}

// DeadlineSource adapts the settings table to deadline.CutoffSource,
// re-reading the cutoff on every check.
type DeadlineSource struct {
	repo *SettingsRepository
}

// NewDeadlineSource constructs a cutoff source over the settings table.
func NewDeadlineSource(q storage.Querier) *DeadlineSource {
	return &DeadlineSource{repo: NewSettingsRepository(q)}
}

// Cutoff implements deadline.CutoffSource. Missing or unreadable values are
// reported as empty so the policy falls back to its default.
func (s *DeadlineSource) Cutoff(ctx context.Context) (string, error) {
	value, err := s.repo.Get(ctx, KeyDeadline)
	if errors.Is(err, ErrNotFound) {
		return "", nil
	}
	return value, err
}
