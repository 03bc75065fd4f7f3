package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	"github.com/jmoiron/sqlx"

	"github.com/edgard/reelbot/internal/logger"
)

var (
	// ErrUserNotFound is returned when no user row matches a Telegram id.
	ErrUserNotFound = errors.New("user not found")
	// ErrSettingNotFound is returned for keys that have no settings row.
	ErrSettingNotFound = errors.New("setting not found")
)

const (
	// DefaultDownloadsLimit is used by ListUserDownloads for non-positive limits.
	DefaultDownloadsLimit = 20
	// MaxDownloadsLimit caps the rows returned by ListUserDownloads.
	MaxDownloadsLimit = 200
)

// UserStore persists User rows.
type UserStore interface {
	// EnsureUser creates the user on first contact, or refreshes its profile
	// fields and last_active_at. created reports whether a row was inserted.
	EnsureUser(ctx context.Context, p Profile) (user *User, created bool, err error)

	// GetUserByTelegramID returns ErrUserNotFound when the user is unknown.
	GetUserByTelegramID(ctx context.Context, telegramUserID int64) (*User, error)

	// UpdateUser loads the user, applies mutate and persists the subscription
	// and ban columns if mutate reports a change. All of it runs in one
	// transaction. The returned user reflects the stored state.
	UpdateUser(ctx context.Context, telegramUserID int64, mutate func(u *User) bool) (*User, error)

	// ListUsers returns users ordered by join time, newest first.
	ListUsers(ctx context.Context, offset, limit int) ([]User, error)

	// ListRecipientIDs returns the Telegram ids of every user that is not banned.
	ListRecipientIDs(ctx context.Context) ([]int64, error)
}

// DownloadStore persists Download audit rows.
type DownloadStore interface {
	// RecordDownload appends d for the given Telegram user. On success it
	// also bumps the user's download_count and last_download_at within the
	// same transaction.
	RecordDownload(ctx context.Context, telegramUserID int64, d *Download) error

	// ListUserDownloads returns the most recent downloads of a user.
	ListUserDownloads(ctx context.Context, telegramUserID int64, limit int) ([]Download, error)
}

// SettingsStore persists admin editable settings.
type SettingsStore interface {
	GetSetting(ctx context.Context, key string) (string, error)
	ListSettings(ctx context.Context) ([]Setting, error)
	// UpdateSetting changes an existing key. Unknown keys return ErrSettingNotFound.
	UpdateSetting(ctx context.Context, key, value string) error
}

// Store defines the interface for database operations.
// Methods should accept context.Context for cancellation and timeouts.
type Store interface {
	UserStore
	DownloadStore
	SettingsStore

	// Ping checks the database connection.
	Ping(ctx context.Context) error

	// Stats returns aggregate user and download counters.
	Stats(ctx context.Context) (*Stats, error)

	// IncrementCounter bumps a named counter and returns its new value.
	IncrementCounter(ctx context.Context, name string) (int64, error)

	// RunSQLMaintenance performs database maintenance tasks like VACUUM.
	RunSQLMaintenance(ctx context.Context) error
}

// sqlxStore provides an implementation of the Store interface using sqlx.
type sqlxStore struct {
	db     *sqlx.DB
	logger *slog.Logger
}

// NewStore creates a new Store implementation backed by sqlx.
//
//nolint:ireturn // callers depend on the interface
func NewStore(db *sqlx.DB, log *slog.Logger) Store {
	if log == nil {
		log = logger.Discard()
	}
	return &sqlxStore{
		db:     db,
		logger: log.With("component", "store"),
	}
}

// Ping checks the database connection.
func (s *sqlxStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// inTx runs fn in a transaction, rolling back unless fn and the commit succeed.
func (s *sqlxStore) inTx(ctx context.Context, op string, fn func(tx *sqlx.Tx) error) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		s.logger.ErrorContext(ctx, "Failed to begin transaction", "op", op, "error", err)
		return fmt.Errorf("failed to begin transaction for %s: %w", op, err)
	}
	defer func() {
		if tx != nil {
			if rollbackErr := tx.Rollback(); rollbackErr != nil && !errors.Is(rollbackErr, sql.ErrTxDone) {
				s.logger.WarnContext(ctx, "Error rolling back transaction", "op", op, "error", rollbackErr)
			}
		}
	}()

	if err := fn(tx); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		s.logger.ErrorContext(ctx, "Failed to commit transaction", "op", op, "error", err)
		return fmt.Errorf("failed to commit %s: %w", op, err)
	}
	// Successfully committed, set tx to nil to avoid rollback
	tx = nil
	return nil
}

// Stats returns aggregate user and download counters.
func (s *sqlxStore) Stats(ctx context.Context) (*Stats, error) {
	const query = `
        SELECT
            (SELECT COUNT(*) FROM users) AS users,
            (SELECT COUNT(*) FROM users WHERE is_banned = 1) AS banned_users,
            (SELECT COUNT(*) FROM downloads WHERE status = 'success') AS successful_downloads,
            (SELECT COUNT(*) FROM downloads WHERE status = 'failed') AS failed_downloads;
    `
	var stats Stats
	if err := s.db.GetContext(ctx, &stats, query); err != nil {
		s.logger.ErrorContext(ctx, "Error computing stats", "error", err)
		return nil, fmt.Errorf("failed to compute stats: %w", err)
	}
	return &stats, nil
}

// RunSQLMaintenance executes ANALYZE and VACUUM on the SQLite database.
func (s *sqlxStore) RunSQLMaintenance(ctx context.Context) error {
	if ctx.Err() != nil {
		s.logger.WarnContext(ctx, "Context cancelled or timed out before starting maintenance", "error", ctx.Err())
		return ctx.Err()
	}

	s.logger.InfoContext(ctx, "Starting database maintenance (ANALYZE, VACUUM)...")

	// VACUUM must run outside a transaction in SQLite
	for _, stmt := range []string{"ANALYZE;", "VACUUM;"} {
		_, err := s.db.ExecContext(ctx, stmt)
		switch {
		case errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled):
			s.logger.WarnContext(ctx, "Database maintenance timed out or was cancelled", "statement", stmt, "error", err)
			return fmt.Errorf("database maintenance (%s) timed out: %w", stmt, err)
		case err != nil:
			s.logger.ErrorContext(ctx, "Database maintenance failed", "statement", stmt, "error", err)
			return fmt.Errorf("failed to execute %s: %w", stmt, err)
		}
	}

	s.logger.InfoContext(ctx, "Database maintenance completed successfully")
	return nil
}
