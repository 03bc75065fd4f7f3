package handlers

import (
	"context"
	"strings"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
)

// NewTextHandler returns the default handler. Private text messages that are
// not a registered command, unknown commands included, go through the
// download pipeline.
func NewTextHandler(deps HandlerDeps) bot.HandlerFunc {
	return PrivateOnly(deps)(textHandler{deps}.Handle)
}

type textHandler struct {
	deps HandlerDeps
}

func (h textHandler) Handle(ctx context.Context, _ *bot.Bot, update *models.Update) {
	log := h.deps.Logger.With("handler", "text")

	msg, ok := messageOf(update)
	if !ok {
		log.DebugContext(ctx, "Ignoring update without message or sender", "update_id", update.ID)
		return
	}
	if msg.Text == "" {
		log.DebugContext(ctx, "Ignoring message without text", "chat_id", msg.ChatID)
		return
	}
	if strings.HasPrefix(msg.Text, "/") {
		// Unknown commands carry no link and end with the invalid link reply.
		log.DebugContext(ctx, "Unknown command", "chat_id", msg.ChatID, "command", strings.Fields(msg.Text)[0])
	}

	h.deps.Pipeline.HandleText(ctx, msg)
}
