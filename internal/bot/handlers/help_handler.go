package handlers

import (
	"context"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
)

// NewHelpHandler returns a handler for the /help command.
func NewHelpHandler(deps HandlerDeps) bot.HandlerFunc {
	return helpHandler{deps}.Handle
}

type helpHandler struct {
	deps HandlerDeps
}

func (h helpHandler) Handle(ctx context.Context, _ *bot.Bot, update *models.Update) {
	msg, ok := messageOf(update)
	if !ok {
		h.deps.Logger.WarnContext(ctx, "Help handler received update with nil message or sender", "handler", "help", "update_id", update.ID)
		return
	}
	h.deps.Pipeline.HandleHelp(ctx, msg)
}
