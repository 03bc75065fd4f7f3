package admin

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/edgard/reelbot/internal/database"
	"github.com/edgard/reelbot/internal/logger"
	"github.com/edgard/reelbot/internal/telegram"
)

const (
	defaultBroadcastWorkers = 5
	maxBroadcastRetryWait   = 30 * time.Second
)

// RecipientResult is the outcome of one broadcast send.
type RecipientResult struct {
	UserID int64  `json:"user_id"`
	Sent   bool   `json:"sent"`
	Error  string `json:"error,omitempty"`
}

// BroadcastReport summarises a finished broadcast.
type BroadcastReport struct {
	ID         string            `json:"id"`
	Total      int               `json:"total"`
	Sent       int               `json:"sent"`
	Failed     int               `json:"failed"`
	StartedAt  time.Time         `json:"started_at"`
	FinishedAt time.Time         `json:"finished_at"`
	Results    []RecipientResult `json:"results"`
}

// Broadcaster sends one text to every non-banned user through a bounded
// worker pool.
type Broadcaster struct {
	client  telegram.Client
	users   database.UserStore
	workers int
	logger  *slog.Logger
}

// NewBroadcaster returns a Broadcaster using at most workers concurrent sends.
func NewBroadcaster(client telegram.Client, users database.UserStore, workers int, log *slog.Logger) *Broadcaster {
	if workers <= 0 {
		workers = defaultBroadcastWorkers
	}
	if log == nil {
		log = logger.Discard()
	}
	return &Broadcaster{client: client, users: users, workers: workers, logger: log}
}

// Send delivers text to every recipient and waits for all sends. Per
// recipient failures are reported, not returned; the error is only set when
// recipients could not be listed.
func (b *Broadcaster) Send(ctx context.Context, text string) (*BroadcastReport, error) {
	ids, err := b.users.ListRecipientIDs(ctx)
	if err != nil {
		return nil, fmt.Errorf("list recipients: %w", err)
	}

	report := &BroadcastReport{
		ID:        uuid.NewString(),
		Total:     len(ids),
		StartedAt: time.Now().UTC(),
		Results:   make([]RecipientResult, len(ids)),
	}
	log := b.logger.With("broadcast_id", report.ID)
	log.InfoContext(ctx, "Broadcast started", "recipients", len(ids), "workers", b.workers)

	g, gCtx := errgroup.WithContext(ctx)
	g.SetLimit(b.workers)
	for i, id := range ids {
		g.Go(func() error {
			res := RecipientResult{UserID: id, Sent: true}
			if err := b.sendOne(gCtx, id, text); err != nil {
				res.Sent = false
				res.Error = telegram.KindOf(err).String()
				log.DebugContext(gCtx, "Broadcast send failed", "user_id", id, "error", err)
			}
			report.Results[i] = res
			// Failures never cancel the other sends.
			return nil
		})
	}
	_ = g.Wait()

	for _, r := range report.Results {
		if r.Sent {
			report.Sent++
		} else {
			report.Failed++
		}
	}
	report.FinishedAt = time.Now().UTC()
	log.InfoContext(ctx, "Broadcast finished", "sent", report.Sent, "failed", report.Failed,
		"duration", report.FinishedAt.Sub(report.StartedAt))
	return report, nil
}

// sendOne sends to a single user, retrying once after a rate limit.
func (b *Broadcaster) sendOne(ctx context.Context, userID int64, text string) error {
	if ctx.Err() != nil {
		return ctx.Err()
	}
	_, err := b.client.SendMessage(ctx, userID, text, nil)
	if err == nil || telegram.KindOf(err) != telegram.KindRateLimited {
		return err
	}

	wait := min(telegram.RetryAfterOf(err), maxBroadcastRetryWait)
	timer := time.NewTimer(wait)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
	}
	_, err = b.client.SendMessage(ctx, userID, text, nil)
	return err
}
