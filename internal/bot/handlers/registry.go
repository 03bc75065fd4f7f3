package handlers

import (
	tgbot "github.com/go-telegram/bot"

	"github.com/edgard/reelbot/internal/pipeline"
	"github.com/edgard/reelbot/internal/telegram"
)

// RegisterAllCommands returns every command and callback handler of the bot.
// Free text is served by the default handler, see NewTextHandler.
func RegisterAllCommands(deps HandlerDeps) map[string]telegram.RegisteredHandler {
	handlers := make(map[string]telegram.RegisteredHandler)
	private := []tgbot.Middleware{PrivateOnly(deps)}

	handlers["/start"] = telegram.RegisteredHandler{
		HandlerType: tgbot.HandlerTypeMessageText,
		Pattern:     "start",
		Handler:     NewStartHandler(deps),
		MatchType:   tgbot.MatchTypeCommandStartOnly,
		Middleware:  private,
	}
	handlers["/help"] = telegram.RegisteredHandler{
		HandlerType: tgbot.HandlerTypeMessageText,
		Pattern:     "help",
		Handler:     NewHelpHandler(deps),
		MatchType:   tgbot.MatchTypeCommandStartOnly,
		Middleware:  private,
	}
	handlers["/stats"] = telegram.RegisteredHandler{
		HandlerType: tgbot.HandlerTypeMessageText,
		Pattern:     "stats",
		Handler:     NewStatsHandler(deps),
		MatchType:   tgbot.MatchTypeCommandStartOnly,
		Middleware:  private,
	}
	handlers[pipeline.CheckSubscriptionData] = telegram.RegisteredHandler{
		HandlerType: tgbot.HandlerTypeCallbackQueryData,
		Pattern:     pipeline.CheckSubscriptionData,
		Handler:     NewCheckSubscriptionHandler(deps),
		MatchType:   tgbot.MatchTypeExact,
	}

	return handlers
}
