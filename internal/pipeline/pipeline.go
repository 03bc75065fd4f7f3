// Package pipeline drives every inbound update through the user, ban and
// subscription gates and, for links, through fetch, delivery and the audit log.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/go-telegram/bot/models"
	"github.com/google/uuid"

	"github.com/edgard/reelbot/internal/config"
	"github.com/edgard/reelbot/internal/database"
	"github.com/edgard/reelbot/internal/delivery"
	"github.com/edgard/reelbot/internal/ledger"
	"github.com/edgard/reelbot/internal/logger"
	"github.com/edgard/reelbot/internal/media"
	"github.com/edgard/reelbot/internal/membership"
	"github.com/edgard/reelbot/internal/recorder"
	"github.com/edgard/reelbot/internal/telegram"
)

// CheckSubscriptionData is the callback data of the verify button.
const CheckSubscriptionData = "check_subscription"

// TempDirPrefix names the per-run download directories.
const TempDirPrefix = "reelbot-"

const replyTimeout = 30 * time.Second

// MembershipChecker resolves the channel membership of a user.
type MembershipChecker interface {
	Check(ctx context.Context, userID int64) membership.Status
}

// Fetcher downloads the media behind a content reference into dir.
type Fetcher interface {
	Fetch(ctx context.Context, ref media.ContentRef, dir string) ([]media.Item, *media.FetchError)
}

// Deliverer sends downloaded items to a chat.
type Deliverer interface {
	Deliver(ctx context.Context, chatID int64, items []media.Item, caption string) delivery.Result
}

// Deps holds the collaborators of an Orchestrator.
type Deps struct {
	Config   *config.Config
	Logger   *slog.Logger
	Client   telegram.Client
	Store    database.Store
	Oracle   MembershipChecker
	Fetcher  Fetcher
	Delivery Deliverer
}

// Message is the part of an inbound text message the pipeline needs.
type Message struct {
	ChatID    int64
	MessageID int
	From      database.Profile
	Text      string
}

// Callback is an inbound callback query. MessageID is zero when the message
// carrying the button is no longer accessible.
type Callback struct {
	ID        string
	ChatID    int64
	MessageID int
	From      database.Profile
	Data      string
}

// Orchestrator runs the per-update state machine. It is safe for concurrent
// use; every update gets its own run.
type Orchestrator struct {
	cfg      *config.Config
	logger   *slog.Logger
	client   telegram.Client
	store    database.Store
	ledger   *ledger.Ledger
	recorder *recorder.Recorder
	oracle   MembershipChecker
	fetcher  Fetcher
	delivery Deliverer
}

// New wires an Orchestrator from deps.
func New(deps Deps) *Orchestrator {
	log := deps.Logger
	if log == nil {
		log = logger.Discard()
	}
	log = log.With("component", "pipeline")
	return &Orchestrator{
		cfg:      deps.Config,
		logger:   log,
		client:   deps.Client,
		store:    deps.Store,
		ledger:   ledger.New(deps.Store, log),
		recorder: recorder.New(deps.Store, deps.Config.Bot.DBTimeout, log),
		oracle:   deps.Oracle,
		fetcher:  deps.Fetcher,
		delivery: deps.Delivery,
	}
}

// run carries the state of one update through the pipeline.
type run struct {
	id          string
	log         *slog.Logger
	chatID      int64
	userID      int64
	placeholder int
	replied     bool
}

func (o *Orchestrator) newRun(kind string, chatID int64, userID int64) *run {
	id := uuid.NewString()
	return &run{
		id:     id,
		chatID: chatID,
		userID: userID,
		log:    o.logger.With("run_id", id, "update", kind, "chat_id", chatID, "user_id", userID),
	}
}

// reply sends the terminal message of a run. It edits the placeholder when
// there is one and falls back to a fresh message if the edit fails.
func (o *Orchestrator) reply(ctx context.Context, r *run, text string, markup models.ReplyMarkup) {
	if r.replied {
		r.log.WarnContext(ctx, "Run already replied, dropping extra reply", "text", text)
		return
	}
	r.replied = true

	// Replies are sent even when the handler deadline has passed.
	replyCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), replyTimeout)
	defer cancel()

	if r.placeholder != 0 {
		err := o.client.EditMessage(replyCtx, r.chatID, r.placeholder, text, markup)
		if err == nil {
			return
		}
		r.log.WarnContext(ctx, "Failed to edit placeholder, sending a new message", "message_id", r.placeholder, "error", err)
	}
	if _, err := o.client.SendMessage(replyCtx, r.chatID, text, markup); err != nil {
		r.log.ErrorContext(ctx, "Failed to send reply", "error", err)
	}
}

func (o *Orchestrator) dbContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if o.cfg.Bot.DBTimeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, o.cfg.Bot.DBTimeout)
}

func (o *Orchestrator) handlerContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if o.cfg.Bot.HandlerTimeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, o.cfg.Bot.HandlerTimeout)
}

// verdict is the outcome of the admission gates.
type verdict int

const (
	admitted verdict = iota
	storageFailed
	banned
	notSubscribed
	unverifiable
)

type admission struct {
	verdict verdict
	user    *database.User
	status  membership.Status
}

// admit resolves the user, then checks the ban flag and finally the channel
// subscription. Banned users never reach the membership check.
func (o *Orchestrator) admit(ctx context.Context, r *run, p database.Profile) admission {
	dbCtx, cancel := o.dbContext(ctx)
	user, err := o.ledger.Ensure(dbCtx, p)
	cancel()
	if err != nil {
		r.log.ErrorContext(ctx, "Failed to resolve user", "error", err)
		return admission{verdict: storageFailed}
	}

	if user.IsBanned {
		r.log.InfoContext(ctx, "Banned user rejected", "reason", user.BanReason)
		return admission{verdict: banned, user: user}
	}

	status := o.oracle.Check(ctx, user.TelegramUserID)

	dbCtx, cancel = o.dbContext(ctx)
	updated, err := o.ledger.ApplySubscription(dbCtx, user.TelegramUserID, status)
	cancel()
	if err != nil {
		// The membership answer stands even if it could not be stored.
		r.log.ErrorContext(ctx, "Failed to store subscription state", "status", status, "error", err)
	} else {
		user = updated
	}

	a := admission{user: user, status: status}
	switch {
	case user.IsBanned:
		a.verdict = banned
	case status.Passes():
		a.verdict = admitted
	case status == membership.NotMember:
		a.verdict = notSubscribed
	default:
		a.verdict = unverifiable
	}
	r.log.DebugContext(ctx, "Admission decided", "status", status, "verdict", a.verdict)
	return a
}

// rejection returns the reply for a failed admission.
func (o *Orchestrator) rejection(ctx context.Context, a admission) (string, models.ReplyMarkup) {
	msgs := o.cfg.Messages
	switch a.verdict {
	case banned:
		return o.bannedText(a.user), nil
	case notSubscribed:
		return fmt.Sprintf(msgs.SubscribeRequired, a.user.DisplayName()), o.subscribeKeyboard(ctx)
	case unverifiable:
		return msgs.MembershipUnavailable, o.subscribeKeyboard(ctx)
	default:
		return msgs.ErrGeneral, nil
	}
}

func (o *Orchestrator) bannedText(u *database.User) string {
	reason := u.BanReason
	if reason == "" {
		reason = "-"
	}
	return fmt.Sprintf(o.cfg.Messages.Banned, reason)
}

// subscribeKeyboard builds the subscribe and verify buttons. The subscribe
// button is left out when no channel link can be derived.
func (o *Orchestrator) subscribeKeyboard(ctx context.Context) models.ReplyMarkup {
	var rows [][]models.InlineKeyboardButton
	if link := o.channelURL(ctx); link != "" {
		rows = append(rows, []models.InlineKeyboardButton{{Text: o.cfg.Messages.SubscribeButton, URL: link}})
	}
	rows = append(rows, []models.InlineKeyboardButton{{Text: o.cfg.Messages.VerifyButton, CallbackData: CheckSubscriptionData}})
	return &models.InlineKeyboardMarkup{InlineKeyboard: rows}
}

func (o *Orchestrator) channelURL(ctx context.Context) string {
	if link := o.setting(ctx, database.SettingChannelURL); link != "" {
		return link
	}
	name := strings.TrimPrefix(o.cfg.Telegram.ChannelUsername, "@")
	if name == "" && strings.HasPrefix(o.cfg.Telegram.ChannelID, "@") {
		name = strings.TrimPrefix(o.cfg.Telegram.ChannelID, "@")
	}
	if name == "" {
		return ""
	}
	return "https://t.me/" + name
}

// caption returns the text attached to the first delivered item.
func (o *Orchestrator) caption(ctx context.Context) string {
	if o.cfg.Messages.Caption == "" {
		return ""
	}
	name := o.setting(ctx, database.SettingBotUsername)
	if name == "" && o.cfg.Telegram.BotInfo != nil {
		name = o.cfg.Telegram.BotInfo.Username
	}
	name = strings.TrimPrefix(name, "@")
	if name == "" {
		return ""
	}
	return fmt.Sprintf(o.cfg.Messages.Caption, name)
}

// setting reads a settings key, treating missing keys and storage errors as empty.
func (o *Orchestrator) setting(ctx context.Context, key string) string {
	dbCtx, cancel := o.dbContext(ctx)
	defer cancel()
	value, err := o.store.GetSetting(dbCtx, key)
	if err != nil {
		if !errors.Is(err, database.ErrSettingNotFound) {
			o.logger.WarnContext(ctx, "Failed to read setting", "key", key, "error", err)
		}
		return ""
	}
	return strings.TrimSpace(value)
}
