package pipeline

import (
	"context"
	"fmt"
)

const statsTimeFormat = "2006-01-02 15:04"

// HandleStart onboards the user and runs the admission gates. Admitted users
// get the welcome text.
func (o *Orchestrator) HandleStart(ctx context.Context, msg Message) {
	ctx, cancel := o.handlerContext(ctx)
	defer cancel()

	r := o.newRun("start", msg.ChatID, msg.From.TelegramUserID)
	var dl *download
	defer o.recoverRun(ctx, r, &dl)

	a := o.admit(ctx, r, msg.From)
	if a.verdict != admitted {
		text, markup := o.rejection(ctx, a)
		o.reply(ctx, r, text, markup)
		return
	}
	o.reply(ctx, r, fmt.Sprintf(o.cfg.Messages.Welcome, a.user.DisplayName()), nil)
}

// HandleCheckSubscription re-runs the gates for the verify button. The
// answer is shown as an alert; on success the prompt is replaced by the
// welcome text.
func (o *Orchestrator) HandleCheckSubscription(ctx context.Context, cb Callback) {
	ctx, cancel := o.handlerContext(ctx)
	defer cancel()

	r := o.newRun("check_subscription", cb.ChatID, cb.From.TelegramUserID)
	defer func() {
		if rec := recover(); rec != nil {
			logPanic(ctx, r, rec)
			o.answer(ctx, r, cb.ID, o.cfg.Messages.ErrGeneral)
		}
	}()

	msgs := o.cfg.Messages
	a := o.admit(ctx, r, cb.From)
	switch a.verdict {
	case admitted:
		o.answer(ctx, r, cb.ID, msgs.SubscriptionConfirmed)
		if cb.MessageID != 0 {
			welcome := fmt.Sprintf(msgs.Welcome, a.user.DisplayName())
			if err := o.client.EditMessage(ctx, cb.ChatID, cb.MessageID, welcome, nil); err != nil {
				r.log.WarnContext(ctx, "Failed to replace subscription prompt", "message_id", cb.MessageID, "error", err)
			}
		}
	case banned:
		o.answer(ctx, r, cb.ID, o.bannedText(a.user))
	case notSubscribed:
		o.answer(ctx, r, cb.ID, msgs.SubscriptionMissing)
	case unverifiable:
		o.answer(ctx, r, cb.ID, msgs.MembershipUnavailable)
	default:
		o.answer(ctx, r, cb.ID, msgs.ErrGeneral)
	}
}

func (o *Orchestrator) answer(ctx context.Context, r *run, callbackID, text string) {
	if r.replied {
		return
	}
	r.replied = true
	if err := o.client.AnswerCallback(context.WithoutCancel(ctx), callbackID, text, true); err != nil {
		r.log.WarnContext(ctx, "Failed to answer callback", "error", err)
	}
}

// HandleStats replies with the user's own counters, or with global totals
// for admins.
func (o *Orchestrator) HandleStats(ctx context.Context, msg Message) {
	ctx, cancel := o.handlerContext(ctx)
	defer cancel()

	r := o.newRun("stats", msg.ChatID, msg.From.TelegramUserID)
	var dl *download
	defer o.recoverRun(ctx, r, &dl)

	msgs := o.cfg.Messages
	dbCtx, dbCancel := o.dbContext(ctx)
	defer dbCancel()

	user, err := o.ledger.Ensure(dbCtx, msg.From)
	if err != nil {
		r.log.ErrorContext(ctx, "Failed to resolve user for stats", "error", err)
		o.reply(ctx, r, msgs.StatsUnavailable, nil)
		return
	}
	if user.IsBanned {
		o.reply(ctx, r, o.bannedText(user), nil)
		return
	}

	if o.cfg.Telegram.IsAdmin(user.TelegramUserID) {
		stats, err := o.store.Stats(dbCtx)
		if err != nil {
			r.log.ErrorContext(ctx, "Failed to load stats", "error", err)
			o.reply(ctx, r, msgs.StatsUnavailable, nil)
			return
		}
		o.reply(ctx, r, fmt.Sprintf(msgs.StatsAdmin, stats.Users, stats.SuccessfulDownloads), nil)
		return
	}

	last := msgs.StatsNever
	if user.LastDownloadAt != nil {
		last = user.LastDownloadAt.UTC().Format(statsTimeFormat)
	}
	o.reply(ctx, r, fmt.Sprintf(msgs.StatsUser, user.DownloadCount, last), nil)
}

// HandleHelp records the user's activity and replies with the usage text.
// Banned users get the ban notice instead.
func (o *Orchestrator) HandleHelp(ctx context.Context, msg Message) {
	ctx, cancel := o.handlerContext(ctx)
	defer cancel()

	r := o.newRun("help", msg.ChatID, msg.From.TelegramUserID)
	var dl *download
	defer o.recoverRun(ctx, r, &dl)

	dbCtx, dbCancel := o.dbContext(ctx)
	defer dbCancel()

	user, err := o.ledger.Ensure(dbCtx, msg.From)
	switch {
	case err != nil:
		// Usage text needs no stored state.
		r.log.WarnContext(ctx, "Failed to resolve user for help", "error", err)
	case user.IsBanned:
		o.reply(ctx, r, o.bannedText(user), nil)
		return
	}
	o.reply(ctx, r, o.cfg.Messages.Help, nil)
}
