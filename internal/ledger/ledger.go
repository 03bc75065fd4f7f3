// Package ledger owns user record mutations driven by the pipeline: first
// contact, activity refresh and the ban-on-unsubscribe policy.
package ledger

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/edgard/reelbot/internal/database"
	"github.com/edgard/reelbot/internal/logger"
	"github.com/edgard/reelbot/internal/membership"
)

// BanReasonUnsubscribed is recorded when a previously subscribed user leaves
// the channel.
const BanReasonUnsubscribed = "unsubscribed"

// Ledger applies user policy on top of a UserStore.
type Ledger struct {
	users  database.UserStore
	logger *slog.Logger
}

// New returns a Ledger backed by users.
func New(users database.UserStore, log *slog.Logger) *Ledger {
	if log == nil {
		log = logger.Discard()
	}
	return &Ledger{users: users, logger: log.With("component", "ledger")}
}

// Ensure returns the user for p, creating it on first contact and refreshing
// names and last activity otherwise.
func (l *Ledger) Ensure(ctx context.Context, p database.Profile) (*database.User, error) {
	user, created, err := l.users.EnsureUser(ctx, p)
	if err != nil {
		return nil, fmt.Errorf("ensure user %d: %w", p.TelegramUserID, err)
	}
	if created {
		l.logger.InfoContext(ctx, "User registered", "telegram_user_id", p.TelegramUserID)
	}
	return user, nil
}

// ApplySubscription stores the subscription flag for status and bans users
// who were subscribed and are now confirmed non-members. Bans are never lifted
// here, and an existing ban reason is kept.
func (l *Ledger) ApplySubscription(ctx context.Context, telegramUserID int64, status membership.Status) (*database.User, error) {
	var banned bool
	user, err := l.users.UpdateUser(ctx, telegramUserID, func(u *database.User) bool {
		changed := false

		if u.IsSubscribed && status == membership.NotMember && !u.IsBanned {
			u.IsBanned = true
			u.BanReason = BanReasonUnsubscribed
			banned = true
			changed = true
		}

		subscribed := status.Passes()
		if u.IsSubscribed != subscribed {
			u.IsSubscribed = subscribed
			changed = true
		}
		return changed
	})
	if err != nil {
		return nil, fmt.Errorf("apply subscription for user %d: %w", telegramUserID, err)
	}

	if banned {
		l.logger.WarnContext(ctx, "User banned for leaving the channel",
			"telegram_user_id", telegramUserID, "reason", BanReasonUnsubscribed)
	}
	return user, nil
}
