package handlers

import (
	"log/slog"

	"github.com/edgard/reelbot/internal/config"
	"github.com/edgard/reelbot/internal/pipeline"
)

// HandlerDeps provides dependencies for Telegram update handlers.
type HandlerDeps struct {
	Logger   *slog.Logger
	Config   *config.Config
	Pipeline *pipeline.Orchestrator
}
