package handlers

import (
	"context"
	"testing"
	"time"

	tgbot "github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/edgard/reelbot/internal/config"
	"github.com/edgard/reelbot/internal/database"
	"github.com/edgard/reelbot/internal/delivery"
	"github.com/edgard/reelbot/internal/logger"
	"github.com/edgard/reelbot/internal/membership"
	"github.com/edgard/reelbot/internal/pipeline"
	"github.com/edgard/reelbot/internal/telegram/telegramtest"
)

func newTestDeps(t *testing.T) (HandlerDeps, *telegramtest.Fake) {
	t.Helper()
	ctx := context.Background()

	db, err := database.NewDB(ctx, ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { database.CloseDB(db) })
	store := database.NewStore(db, nil)

	// No channel configured: the subscription gate is skipped.
	cfg := &config.Config{
		Telegram: config.TelegramConfig{Token: "test", BotInfo: &models.User{Username: "reel_bot"}},
		Bot:      config.BotConfig{DBTimeout: time.Second, HandlerTimeout: time.Minute},
		Media:    config.MediaConfig{TempDir: t.TempDir()},
		Messages: config.DefaultMessages,
	}
	tg := telegramtest.New()
	p := pipeline.New(pipeline.Deps{
		Config:   cfg,
		Client:   tg,
		Store:    store,
		Oracle:   membership.NewOracle(tg, cfg.Telegram, cfg.Membership, nil),
		Delivery: delivery.NewEngine(tg, 0, nil),
	})
	return HandlerDeps{Logger: logger.Discard(), Config: cfg, Pipeline: p}, tg
}

func textUpdate(chatType models.ChatType, text string) *models.Update {
	return &models.Update{
		ID: 1,
		Message: &models.Message{
			ID:   10,
			Chat: models.Chat{ID: 5, Type: chatType},
			From: &models.User{ID: 5, FirstName: "Ana"},
			Text: text,
		},
	}
}

func TestRegisterAllCommands(t *testing.T) {
	t.Parallel()
	deps, _ := newTestDeps(t)

	handlers := RegisterAllCommands(deps)
	assert.Len(t, handlers, 4)
	for _, name := range []string{"/start", "/help", "/stats", pipeline.CheckSubscriptionData} {
		h, ok := handlers[name]
		require.True(t, ok, name)
		assert.NotNil(t, h.Handler, name)
	}
	assert.Equal(t, tgbot.HandlerTypeCallbackQueryData, handlers[pipeline.CheckSubscriptionData].HandlerType)
	assert.Equal(t, tgbot.MatchTypeExact, handlers[pipeline.CheckSubscriptionData].MatchType)
}

func TestTextHandler(t *testing.T) {
	t.Parallel()

	t.Run("private text runs the pipeline", func(t *testing.T) {
		t.Parallel()
		deps, tg := newTestDeps(t)
		NewTextHandler(deps)(context.Background(), nil, textUpdate(models.ChatTypePrivate, "no link here"))
		assert.Equal(t, []string{config.DefaultMessages.InvalidLink}, tg.Replies())
	})

	t.Run("caption is used when text is empty", func(t *testing.T) {
		t.Parallel()
		deps, tg := newTestDeps(t)
		u := textUpdate(models.ChatTypePrivate, "")
		u.Message.Caption = "still no link"
		NewTextHandler(deps)(context.Background(), nil, u)
		assert.Len(t, tg.Replies(), 1)
	})

	t.Run("group chats are ignored", func(t *testing.T) {
		t.Parallel()
		deps, tg := newTestDeps(t)
		NewTextHandler(deps)(context.Background(), nil, textUpdate(models.ChatTypeSupergroup, "https://instagram.com/p/X/"))
		assert.Empty(t, tg.Calls())
	})

	t.Run("unknown commands get the invalid link reply", func(t *testing.T) {
		t.Parallel()
		deps, tg := newTestDeps(t)
		NewTextHandler(deps)(context.Background(), nil, textUpdate(models.ChatTypePrivate, "/nope"))
		assert.Equal(t, []string{config.DefaultMessages.InvalidLink}, tg.Replies())
	})

	t.Run("non message updates are ignored", func(t *testing.T) {
		t.Parallel()
		deps, tg := newTestDeps(t)
		NewTextHandler(deps)(context.Background(), nil, &models.Update{ID: 2})
		assert.Empty(t, tg.Calls())
	})
}

func TestCommandHandlers(t *testing.T) {
	t.Parallel()
	deps, tg := newTestDeps(t)
	ctx := context.Background()
	handlers := RegisterAllCommands(deps)

	handlers["/start"].Handler(ctx, nil, textUpdate(models.ChatTypePrivate, "/start"))
	handlers["/help"].Handler(ctx, nil, textUpdate(models.ChatTypePrivate, "/help"))

	msgs := config.DefaultMessages
	replies := tg.Replies()
	require.Len(t, replies, 2)
	assert.Contains(t, replies[0], "Ana")
	assert.Equal(t, msgs.Help, replies[1])
}

func TestCheckSubscriptionHandler(t *testing.T) {
	t.Parallel()

	t.Run("accessible message is edited", func(t *testing.T) {
		t.Parallel()
		deps, tg := newTestDeps(t)
		NewCheckSubscriptionHandler(deps)(context.Background(), nil, &models.Update{
			CallbackQuery: &models.CallbackQuery{
				ID:   "cb",
				From: models.User{ID: 5, FirstName: "Ana"},
				Data: pipeline.CheckSubscriptionData,
				Message: models.MaybeInaccessibleMessage{
					Message: &models.Message{ID: 33, Chat: models.Chat{ID: 5}},
				},
			},
		})

		answers := tg.Calls(telegramtest.OpAnswerCallback)
		require.Len(t, answers, 1)
		assert.Equal(t, config.DefaultMessages.SubscriptionConfirmed, answers[0].Text)
		edits := tg.Calls(telegramtest.OpEditMessage)
		require.Len(t, edits, 1)
		assert.Equal(t, 33, edits[0].MessageID)
		assert.Equal(t, int64(5), edits[0].ChatID)
	})

	t.Run("inaccessible message is only answered", func(t *testing.T) {
		t.Parallel()
		deps, tg := newTestDeps(t)
		NewCheckSubscriptionHandler(deps)(context.Background(), nil, &models.Update{
			CallbackQuery: &models.CallbackQuery{
				ID:   "cb",
				From: models.User{ID: 5},
				Message: models.MaybeInaccessibleMessage{
					InaccessibleMessage: &models.InaccessibleMessage{Chat: models.Chat{ID: 5}, MessageID: 33},
				},
			},
		})

		assert.Len(t, tg.Calls(telegramtest.OpAnswerCallback), 1)
		assert.Empty(t, tg.Calls(telegramtest.OpEditMessage))
	})
}
