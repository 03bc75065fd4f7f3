package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/gin-gonic/gin"
	tgbot "github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
	"github.com/spf13/cobra"

	"github.com/edgard/reelbot/internal/admin"
	"github.com/edgard/reelbot/internal/bot"
	"github.com/edgard/reelbot/internal/bot/handlers"
	"github.com/edgard/reelbot/internal/bot/tasks"
	"github.com/edgard/reelbot/internal/config"
	"github.com/edgard/reelbot/internal/database"
	"github.com/edgard/reelbot/internal/delivery"
	"github.com/edgard/reelbot/internal/logger"
	"github.com/edgard/reelbot/internal/media"
	"github.com/edgard/reelbot/internal/membership"
	"github.com/edgard/reelbot/internal/pipeline"
	"github.com/edgard/reelbot/internal/telegram"
)

func newRunCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Run the bot until interrupted",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			configPath, _ := cmd.Flags().GetString("config")
			return run(cmd.Context(), configPath)
		},
	}
}

// run initializes every component (config, logger, db, telegram, pipeline,
// scheduler, admin api), blocks until ctx is cancelled and shuts down.
func run(ctx context.Context, configPath string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		slog.Error("Failed to load configuration", "path", configPath, "error", err)
		return err
	}

	log, logCloser := logger.NewLogger(logger.Options{
		Level:      cfg.Logger.Level,
		JSON:       cfg.Logger.JSON,
		File:       cfg.Logger.File,
		MaxSizeMB:  cfg.Logger.MaxSizeMB,
		MaxBackups: cfg.Logger.MaxBackups,
		MaxAgeDays: cfg.Logger.MaxAgeDays,
		Compress:   cfg.Logger.Compress,
	})
	defer logCloser.Close()
	log.Info("Logger initialized", "level", cfg.Logger.Level, "json", cfg.Logger.JSON, "file", cfg.Logger.File)

	if cfg.Media.TempDir != "" {
		if err := os.MkdirAll(cfg.Media.TempDir, 0o700); err != nil {
			log.Error("Failed to create media temp dir", "dir", cfg.Media.TempDir, "error", err)
			return fmt.Errorf("create temp dir: %w", err)
		}
	}

	db, err := database.NewDB(ctx, cfg.Database.Path)
	if err != nil {
		log.Error("Failed to connect to database", "path", cfg.Database.Path, "error", err)
		return err
	}
	defer database.CloseDB(db)
	store := database.NewStore(db, log)

	// Updates only arrive after Start, by then the pipeline handler is set.
	var textHandler tgbot.HandlerFunc
	botOpts := []tgbot.Option{
		tgbot.WithMiddlewares(logger.Middleware(log)),
		tgbot.WithDefaultHandler(func(ctx context.Context, b *tgbot.Bot, update *models.Update) {
			textHandler(ctx, b, update)
		}),
	}
	tg, err := telegram.NewTelegramBot(cfg.Telegram.Token, log, botOpts...)
	if err != nil {
		log.Error("Failed to create Telegram bot", "error", err)
		return err
	}

	cfg.Telegram.BotInfo, err = tg.GetMe(ctx)
	if err != nil {
		log.Error("Failed to get bot info", "error", err)
		return fmt.Errorf("get bot info: %w", err)
	}
	log.Info("Retrieved bot info", "bot_id", cfg.Telegram.BotInfo.ID, "bot_username", cfg.Telegram.BotInfo.Username)

	client := telegram.NewClient(tg)
	orchestrator := pipeline.New(pipeline.Deps{
		Config:   cfg,
		Logger:   log,
		Client:   client,
		Store:    store,
		Oracle:   membership.NewOracle(client, cfg.Telegram, cfg.Membership, log),
		Fetcher:  media.NewFetcher(cfg.Media, nil, log),
		Delivery: delivery.NewEngine(client, cfg.Media.MaxRetryWait, log),
	})

	hDeps := handlers.HandlerDeps{
		Logger:   log,
		Config:   cfg,
		Pipeline: orchestrator,
	}
	textHandler = handlers.NewTextHandler(hDeps)
	if err := telegram.RegisterHandlers(tg, log, handlers.RegisterAllCommands(hDeps)); err != nil {
		log.Error("Failed to register Telegram handlers", "error", err)
		return err
	}

	tDeps := tasks.TaskDeps{Logger: log, Store: store, Config: cfg}
	sched, err := bot.NewScheduler(log, &cfg.Scheduler, tasks.RegisterAllTasks(tDeps))
	if err != nil {
		log.Error("Failed to create scheduler", "error", err)
		return err
	}

	var adminAPI bot.Runner
	if cfg.Admin.Enabled {
		gin.SetMode(gin.ReleaseMode)
		adminAPI = admin.NewServer(cfg.Admin, store, client, log)
	} else {
		log.Info("Admin API disabled")
	}

	app := bot.NewBot(log, tg, sched, adminAPI)

	log.Info("Starting bot...")
	runErr := app.Run(ctx)
	log.Info("Bot run loop finished. Initiating shutdown...")

	if runErr != nil && !errors.Is(runErr, context.Canceled) {
		log.Error("Bot stopped due to error", "error", runErr)
		return runErr
	}

	log.Info("Bot stopped gracefully.")
	// Allow in-flight log writes to land before exit.
	time.Sleep(200 * time.Millisecond)
	return nil
}
