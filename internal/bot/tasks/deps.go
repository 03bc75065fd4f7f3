// Package tasks implements the scheduled maintenance jobs of the bot.
package tasks

import (
	"log/slog"

	"github.com/edgard/reelbot/internal/config"
	"github.com/edgard/reelbot/internal/database"
)

// TaskDeps contains all dependencies required by scheduled tasks.
type TaskDeps struct {
	Logger *slog.Logger
	Store  database.Store
	Config *config.Config
}
