package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// GetSetting returns the value stored under key.
func (s *sqlxStore) GetSetting(ctx context.Context, key string) (string, error) {
	var value string
	err := s.db.GetContext(ctx, &value, `SELECT value FROM settings WHERE key = ?;`, key)
	if errors.Is(err, sql.ErrNoRows) {
		return "", ErrSettingNotFound
	}
	if err != nil {
		return "", fmt.Errorf("failed to get setting %q: %w", key, err)
	}
	return value, nil
}

// ListSettings returns every setting ordered by key.
func (s *sqlxStore) ListSettings(ctx context.Context) ([]Setting, error) {
	settings := []Setting{}
	err := s.db.SelectContext(ctx, &settings,
		`SELECT key, value, description, updated_at FROM settings ORDER BY key;`)
	if err != nil {
		s.logger.ErrorContext(ctx, "Error listing settings", "error", err)
		return nil, fmt.Errorf("failed to list settings: %w", err)
	}
	return settings, nil
}

// UpdateSetting overwrites the value of an existing setting.
func (s *sqlxStore) UpdateSetting(ctx context.Context, key, value string) error {
	result, err := s.db.ExecContext(ctx,
		`UPDATE settings SET value = ?, updated_at = ? WHERE key = ?;`, value, time.Now().UTC(), key)
	if err != nil {
		s.logger.ErrorContext(ctx, "Error updating setting", "key", key, "error", err)
		return fmt.Errorf("failed to update setting %q: %w", key, err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read affected rows for setting %q: %w", key, err)
	}
	if affected == 0 {
		return ErrSettingNotFound
	}

	s.logger.InfoContext(ctx, "Setting updated", "key", key)
	return nil
}
