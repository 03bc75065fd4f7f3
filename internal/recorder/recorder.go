// Package recorder writes the download audit log.
package recorder

import (
	"context"
	"log/slog"
	"time"

	"github.com/edgard/reelbot/internal/database"
	"github.com/edgard/reelbot/internal/logger"
)

// maxDetailLen bounds the error detail stored with a failed download.
const maxDetailLen = 500

// Recorder appends Download rows. Storage failures are logged and swallowed
// so they never change what the user was already told.
type Recorder struct {
	downloads database.DownloadStore
	logger    *slog.Logger
	timeout   time.Duration
}

// New returns a Recorder. timeout bounds each write and also detaches it
// from the caller's cancellation.
func New(downloads database.DownloadStore, timeout time.Duration, log *slog.Logger) *Recorder {
	if log == nil {
		log = logger.Discard()
	}
	return &Recorder{downloads: downloads, timeout: timeout, logger: log.With("component", "recorder")}
}

// Record appends one audit row for a finished pipeline run. Counters on the
// user are only bumped for successful runs.
func (r *Recorder) Record(ctx context.Context, telegramUserID int64, contentURL, contentType string, success bool, detail string) {
	d := &database.Download{
		ContentURL:   contentURL,
		ContentType:  contentType,
		Status:       database.StatusFailed,
		ErrorMessage: truncate(detail, maxDetailLen),
	}
	if success {
		d.Status = database.StatusSuccess
		d.ErrorMessage = ""
	}

	// The record must be written even if the update context was cancelled.
	writeCtx := context.WithoutCancel(ctx)
	if r.timeout > 0 {
		var cancel context.CancelFunc
		writeCtx, cancel = context.WithTimeout(writeCtx, r.timeout)
		defer cancel()
	}

	if err := r.downloads.RecordDownload(writeCtx, telegramUserID, d); err != nil {
		r.logger.ErrorContext(ctx, "Failed to record download",
			"telegram_user_id", telegramUserID, "content_url", contentURL, "success", success, "error", err)
		return
	}
	r.logger.InfoContext(ctx, "Download recorded",
		"telegram_user_id", telegramUserID, "download_id", d.ID, "status", d.Status, "content_type", contentType)
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
