// Package delivery sends downloaded media back to a chat, batching items
// into media groups where the Bot API allows.
package delivery

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/edgard/reelbot/internal/logger"
	"github.com/edgard/reelbot/internal/media"
	"github.com/edgard/reelbot/internal/telegram"
)

// Outcome is the overall result of a delivery.
type Outcome int

const (
	Sent Outcome = iota
	PartialFailure
)

func (o Outcome) String() string {
	if o == Sent {
		return "sent"
	}
	return "partial_failure"
}

// Result reports what was delivered.
type Result struct {
	Outcome   Outcome
	Delivered int
	Failed    int
	// Detail describes failed sends for logs and the download record.
	Detail string
}

// OK reports whether every item was sent.
func (r Result) OK() bool { return r.Outcome == Sent }

// Engine delivers media items through a telegram.Client.
type Engine struct {
	client       telegram.Client
	logger       *slog.Logger
	maxRetryWait time.Duration
	batchSize    int
	open         func(path string) (io.ReadCloser, error)
}

// NewEngine returns an Engine. maxRetryWait caps the wait before the single
// retry of a rate-limited send.
func NewEngine(client telegram.Client, maxRetryWait time.Duration, log *slog.Logger) *Engine {
	if log == nil {
		log = logger.Discard()
	}
	return &Engine{
		client:       client,
		logger:       log.With("component", "delivery"),
		maxRetryWait: maxRetryWait,
		batchSize:    telegram.MaxMediaGroupSize,
		open: func(path string) (io.ReadCloser, error) {
			return os.Open(path)
		},
	}
}

// Deliver sends items to chatID. The caption goes on the first item only.
// Send errors never abort the remaining batches; they turn the result into
// PartialFailure.
func (e *Engine) Deliver(ctx context.Context, chatID int64, items []media.Item, caption string) Result {
	if len(items) == 0 {
		return Result{Outcome: PartialFailure, Detail: "nothing to deliver"}
	}

	log := e.logger.With("chat_id", chatID, "items", len(items))
	var (
		res      Result
		failures []string
	)

	for start := 0; start < len(items); start += e.batchSize {
		end := min(start+e.batchSize, len(items))
		batch := items[start:end]

		batchCaption := ""
		if start == 0 {
			batchCaption = caption
		}

		err := e.withRetry(ctx, func() error {
			return e.sendBatch(ctx, chatID, batch, batchCaption)
		})
		if err != nil {
			res.Failed += len(batch)
			failures = append(failures, fmt.Sprintf("items %d-%d: %v", start+1, end, err))
			log.WarnContext(ctx, "Failed to deliver batch", "from", start+1, "to", end, "error", err)
			continue
		}
		res.Delivered += len(batch)
	}

	if res.Failed > 0 {
		res.Outcome = PartialFailure
		res.Detail = strings.Join(failures, "; ")
	}
	log.DebugContext(ctx, "Delivery finished", "outcome", res.Outcome, "delivered", res.Delivered, "failed", res.Failed)
	return res
}

// withRetry runs send and retries it once if the platform rate limited it.
func (e *Engine) withRetry(ctx context.Context, send func() error) error {
	err := send()
	if err == nil || telegram.KindOf(err) != telegram.KindRateLimited {
		return err
	}

	wait := telegram.RetryAfterOf(err)
	if e.maxRetryWait > 0 && wait > e.maxRetryWait {
		wait = e.maxRetryWait
	}
	e.logger.WarnContext(ctx, "Send rate limited, retrying once", "wait", wait)

	timer := time.NewTimer(wait)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return errors.Join(err, ctx.Err())
	case <-timer.C:
	}
	return send()
}

// sendBatch opens every file of the batch, sends it and closes the files
// whatever the outcome.
func (e *Engine) sendBatch(ctx context.Context, chatID int64, batch []media.Item, caption string) error {
	uploads := make([]telegram.Upload, 0, len(batch))
	files := make([]io.ReadCloser, 0, len(batch))
	defer func() {
		for _, f := range files {
			if err := f.Close(); err != nil {
				e.logger.WarnContext(ctx, "Failed to close media file", "error", err)
			}
		}
	}()

	for i, item := range batch {
		f, err := e.open(item.Path)
		if err != nil {
			return fmt.Errorf("open %s: %w", filepath.Base(item.Path), err)
		}
		files = append(files, f)

		up := telegram.Upload{Filename: filepath.Base(item.Path), Data: f, Video: item.Kind == media.Video}
		if i == 0 {
			up.Caption = caption
		}
		uploads = append(uploads, up)
	}

	if len(uploads) == 1 {
		if uploads[0].Video {
			return e.client.SendVideo(ctx, chatID, uploads[0])
		}
		return e.client.SendPhoto(ctx, chatID, uploads[0])
	}
	return e.client.SendMediaGroup(ctx, chatID, uploads)
}
