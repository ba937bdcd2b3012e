package storage

import (
	"context"
	"database/sql"
	"fmt"

	sq "github.com/Masterminds/squirrel"

	"github.com/PanHywel/TidyMark-sub000/internal/ports"
)

// SettingsStore persists flat string settings in SQLite.
type SettingsStore struct {
	db *sql.DB
}

var _ ports.SettingsStore = (*SettingsStore)(nil)

// NewSettingsStore wires an opened database.
func NewSettingsStore(db *sql.DB) *SettingsStore {
	return &SettingsStore{db: db}
}

// Get returns the stored values for the requested keys; missing keys are
// simply absent from the result.
func (s *SettingsStore) Get(ctx context.Context, keys []string) (map[string]string, error) {
	result := make(map[string]string, len(keys))
	if len(keys) == 0 {
		return result, nil
	}

	rows, err := sq.Select("key", "value").
		From("settings").
		Where(sq.Eq{"key": keys}).
		RunWith(s.db).
		QueryContext(ctx)
	if err != nil {
		return nil, fmt.Errorf("query settings: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var key, value string
		if err := rows.Scan(&key, &value); err != nil {
			return nil, fmt.Errorf("scan setting: %w", err)
		}
		result[key] = value
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate settings: %w", err)
	}

	return result, nil
}

// Set upserts every given key.
func (s *SettingsStore) Set(ctx context.Context, values map[string]string) error {
	for key, value := range values {
		_, err := sq.Insert("settings").
			Columns("key", "value").
			Values(key, value).
			Suffix("ON CONFLICT(key) DO UPDATE SET value = excluded.value").
			RunWith(s.db).
			ExecContext(ctx)
		if err != nil {
			return fmt.Errorf("store setting %s: %w", key, err)
		}
	}
	return nil
}
