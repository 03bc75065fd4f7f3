// Package membership decides whether a user currently belongs to the
// required channel.
package membership

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/go-telegram/bot/models"

	"github.com/edgard/reelbot/internal/config"
	"github.com/edgard/reelbot/internal/logger"
	"github.com/edgard/reelbot/internal/telegram"
)

// Status is the outcome of a membership check.
type Status int

const (
	// PlatformError means the platform could not answer, even after a retry.
	PlatformError Status = iota
	Member
	NotMember
	// AdminOverride is returned for configured admins without asking the platform.
	AdminOverride
	// Unconfigured means no channel is configured; the gate is open.
	Unconfigured
	// ConfigError means the channel is malformed or inaccessible to the bot.
	ConfigError
)

func (s Status) String() string {
	switch s {
	case Member:
		return "member"
	case NotMember:
		return "not_member"
	case AdminOverride:
		return "admin_override"
	case Unconfigured:
		return "unconfigured"
	case ConfigError:
		return "config_error"
	default:
		return "platform_error"
	}
}

// Passes reports whether the status lets the user through the gate.
func (s Status) Passes() bool {
	return s == Member || s == AdminOverride || s == Unconfigured
}

// Oracle checks channel membership through the Bot API.
type Oracle struct {
	client       telegram.Client
	logger       *slog.Logger
	channel      string
	chat         any
	chatErr      error
	isAdmin      func(int64) bool
	operators    []int64
	timeout      time.Duration
	maxRetryWait time.Duration

	alertOnce sync.Once
	// retryDelay is the pause before retrying a non rate-limit failure.
	retryDelay time.Duration
}

// NewOracle builds an Oracle for the channel configured in tg. A malformed
// channel is not an error here: every Check then reports ConfigError.
func NewOracle(client telegram.Client, tg config.TelegramConfig, cfg config.MembershipConfig, log *slog.Logger) *Oracle {
	if log == nil {
		log = logger.Discard()
	}
	o := &Oracle{
		client:       client,
		logger:       log.With("component", "membership"),
		channel:      tg.ChannelID,
		isAdmin:      tg.IsAdmin,
		operators:    tg.AdminUserIDs,
		timeout:      cfg.Timeout,
		maxRetryWait: cfg.MaxRetryWait,
		retryDelay:   time.Second,
	}
	if o.timeout <= 0 {
		o.timeout = config.DefaultMembershipTimeout
	}

	if o.channel == "" {
		o.logger.Warn("No channel configured, subscription gate is disabled")
		return o
	}
	o.chat, o.chatErr = telegram.ChatRef(o.channel)
	if o.chatErr != nil {
		o.logger.Error("Configured channel is malformed, every membership check will fail closed",
			"channel", o.channel, "error", o.chatErr)
	}
	return o
}

// Check returns the membership status of userID. It never returns an error;
// failures are folded into ConfigError or PlatformError.
func (o *Oracle) Check(ctx context.Context, userID int64) Status {
	if o.channel == "" {
		return Unconfigured
	}
	if o.isAdmin(userID) {
		return AdminOverride
	}
	if o.chatErr != nil {
		o.alertConfig(ctx, o.chatErr)
		return ConfigError
	}

	log := o.logger.With("user_id", userID, "channel", o.channel)

	member, err := o.getMember(ctx, userID)
	if err != nil {
		if status, final := o.terminal(ctx, err); final {
			log.DebugContext(ctx, "Membership check resolved from error", "status", status, "error", err)
			return status
		}

		wait := o.retryDelay
		if telegram.KindOf(err) == telegram.KindRateLimited {
			wait = telegram.RetryAfterOf(err)
		}
		if o.maxRetryWait > 0 && wait > o.maxRetryWait {
			wait = o.maxRetryWait
		}
		log.WarnContext(ctx, "Membership check failed, retrying once", "error", err, "wait", wait)

		if sleepErr := sleep(ctx, wait); sleepErr != nil {
			log.WarnContext(ctx, "Membership retry abandoned", "error", sleepErr)
			return PlatformError
		}

		member, err = o.getMember(ctx, userID)
		if err != nil {
			if status, final := o.terminal(ctx, err); final {
				return status
			}
			log.ErrorContext(ctx, "Membership check failed after retry", "error", err)
			return PlatformError
		}
	}

	status := fromMember(member)
	log.DebugContext(ctx, "Membership checked", "member_status", member.Status, "status", status)
	return status
}

func (o *Oracle) getMember(ctx context.Context, userID int64) (*telegram.Member, error) {
	callCtx, cancel := context.WithTimeout(ctx, o.timeout)
	defer cancel()
	return o.client.GetChatMember(callCtx, o.chat, userID)
}

// terminal resolves errors that a retry cannot change.
func (o *Oracle) terminal(ctx context.Context, err error) (Status, bool) {
	switch telegram.KindOf(err) {
	case telegram.KindNotFound:
		return NotMember, true
	case telegram.KindChatNotFound, telegram.KindForbidden:
		o.alertConfig(ctx, err)
		return ConfigError, true
	default:
		return PlatformError, false
	}
}

func fromMember(m *telegram.Member) Status {
	switch m.Status {
	case models.ChatMemberTypeOwner, models.ChatMemberTypeAdministrator, models.ChatMemberTypeMember:
		return Member
	case models.ChatMemberTypeRestricted:
		if m.IsMember {
			return Member
		}
		return NotMember
	case models.ChatMemberTypeLeft, models.ChatMemberTypeBanned:
		return NotMember
	default:
		return PlatformError
	}
}

// alertConfig logs a channel configuration problem and tells the operators,
// once per process.
func (o *Oracle) alertConfig(ctx context.Context, cause error) {
	o.alertOnce.Do(func() {
		o.logger.ErrorContext(ctx, "Channel is misconfigured or inaccessible; users cannot pass the subscription gate",
			"channel", o.channel, "error", cause)

		text := fmt.Sprintf("⚠️ Subscription check failed for channel %s: %v\nCheck telegram.channel_id and that the bot is an administrator of the channel.",
			o.channel, cause)
		for _, adminID := range o.operators {
			if _, err := o.client.SendMessage(ctx, adminID, text, nil); err != nil {
				o.logger.WarnContext(ctx, "Failed to alert operator", "admin_id", adminID, "error", err)
			}
		}
	})
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 || ctx.Err() != nil {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
