package database

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
)

// RecordDownload appends the audit row and, for successful runs, bumps the
// user's counters.
func (s *sqlxStore) RecordDownload(ctx context.Context, telegramUserID int64, d *Download) error {
	if d == nil {
		return fmt.Errorf("cannot record nil download")
	}
	if d.Status != StatusSuccess && d.Status != StatusFailed {
		return fmt.Errorf("invalid download status %q", d.Status)
	}
	if d.DownloadedAt.IsZero() {
		d.DownloadedAt = time.Now().UTC()
	}

	err := s.inTx(ctx, "record download", func(tx *sqlx.Tx) error {
		user, err := getUserTx(ctx, tx, telegramUserID)
		if err != nil {
			return err
		}
		d.UserID = user.ID

		result, err := tx.NamedExecContext(ctx, `
            INSERT INTO downloads (user_id, content_url, content_type, status, error_message, downloaded_at)
            VALUES (:user_id, :content_url, :content_type, :status, :error_message, :downloaded_at);
        `, d)
		if err != nil {
			return fmt.Errorf("failed to insert download: %w", err)
		}
		if id, err := result.LastInsertId(); err == nil {
			d.ID = id
		}

		if d.Status != StatusSuccess {
			return nil
		}
		_, err = tx.ExecContext(ctx, `
            UPDATE users SET download_count = download_count + 1, last_download_at = ?
            WHERE id = ?;
        `, d.DownloadedAt, user.ID)
		if err != nil {
			return fmt.Errorf("failed to update download counters: %w", err)
		}
		return nil
	})
	if err != nil {
		s.logger.ErrorContext(ctx, "Error recording download",
			"telegram_user_id", telegramUserID, "status", d.Status, "error", err)
		return err
	}

	s.logger.DebugContext(ctx, "Download recorded",
		"telegram_user_id", telegramUserID, "download_id", d.ID, "status", d.Status)
	return nil
}

// ListUserDownloads returns the latest downloads of a user, newest first. A
// non-positive limit means DefaultDownloadsLimit; larger ones are capped at
// MaxDownloadsLimit.
func (s *sqlxStore) ListUserDownloads(ctx context.Context, telegramUserID int64, limit int) ([]Download, error) {
	if limit <= 0 {
		limit = DefaultDownloadsLimit
	}
	limit = min(limit, MaxDownloadsLimit)

	downloads := []Download{}
	err := s.db.SelectContext(ctx, &downloads, `
        SELECT d.id, d.user_id, d.content_url, d.content_type, d.status, d.error_message, d.downloaded_at
        FROM downloads d
        JOIN users u ON u.id = d.user_id
        WHERE u.telegram_user_id = ?
        ORDER BY d.downloaded_at DESC, d.id DESC
        LIMIT ?;
    `, telegramUserID, limit)
	if err != nil {
		s.logger.ErrorContext(ctx, "Error listing downloads", "telegram_user_id", telegramUserID, "error", err)
		return nil, fmt.Errorf("failed to list downloads for user %d: %w", telegramUserID, err)
	}
	return downloads, nil
}
