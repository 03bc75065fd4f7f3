package handlers

import (
	"context"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"

	"github.com/edgard/reelbot/internal/pipeline"
)

// NewCheckSubscriptionHandler returns a handler for the verify button under
// the subscription prompt.
func NewCheckSubscriptionHandler(deps HandlerDeps) bot.HandlerFunc {
	return checkSubscriptionHandler{deps}.Handle
}

type checkSubscriptionHandler struct {
	deps HandlerDeps
}

func (h checkSubscriptionHandler) Handle(ctx context.Context, _ *bot.Bot, update *models.Update) {
	log := h.deps.Logger.With("handler", "check_subscription")

	cq := update.CallbackQuery
	if cq == nil {
		log.WarnContext(ctx, "Callback handler received update without callback query", "update_id", update.ID)
		return
	}

	cb := pipeline.Callback{
		ID:   cq.ID,
		From: profileOf(&cq.From),
		Data: cq.Data,
	}
	switch {
	case cq.Message.Message != nil:
		cb.ChatID = cq.Message.Message.Chat.ID
		cb.MessageID = cq.Message.Message.ID
	case cq.Message.InaccessibleMessage != nil:
		cb.ChatID = cq.Message.InaccessibleMessage.Chat.ID
	default:
		cb.ChatID = cq.From.ID
	}

	log.InfoContext(ctx, "Handling subscription check", "chat_id", cb.ChatID, "user_id", cb.From.TelegramUserID)
	h.deps.Pipeline.HandleCheckSubscription(ctx, cb)
}
