// Package handlers contains Telegram bot command and message handlers,
// along with their registration logic and middleware.
package handlers

import (
	"context"

	tgbot "github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"

	"github.com/edgard/reelbot/internal/database"
	"github.com/edgard/reelbot/internal/pipeline"
)

// PrivateOnly drops messages that do not come from a private chat with a
// known sender. Downloads are only served one to one.
func PrivateOnly(deps HandlerDeps) tgbot.Middleware {
	return func(next tgbot.HandlerFunc) tgbot.HandlerFunc {
		return func(ctx context.Context, bot *tgbot.Bot, update *models.Update) {
			if update.Message == nil || update.Message.From == nil {
				next(ctx, bot, update)
				return
			}

			if update.Message.Chat.Type != models.ChatTypePrivate {
				deps.Logger.With("middleware", "PrivateOnly").DebugContext(ctx, "Ignoring message outside private chat",
					"chat_id", update.Message.Chat.ID, "chat_type", update.Message.Chat.Type)
				return
			}

			next(ctx, bot, update)
		}
	}
}

func profileOf(u *models.User) database.Profile {
	return database.Profile{
		TelegramUserID: u.ID,
		FirstName:      u.FirstName,
		LastName:       u.LastName,
		Username:       u.Username,
	}
}

// messageOf converts an update into a pipeline message. ok is false for
// updates without a message or sender.
func messageOf(update *models.Update) (pipeline.Message, bool) {
	msg := update.Message
	if msg == nil || msg.From == nil {
		return pipeline.Message{}, false
	}
	text := msg.Text
	if text == "" {
		text = msg.Caption
	}
	return pipeline.Message{
		ChatID:    msg.Chat.ID,
		MessageID: msg.ID,
		From:      profileOf(msg.From),
		Text:      text,
	}, true
}
