// Package admin serves the operator HTTP API: public stats, user moderation,
// settings and broadcasts.
package admin

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/edgard/reelbot/internal/config"
	"github.com/edgard/reelbot/internal/database"
	"github.com/edgard/reelbot/internal/logger"
	"github.com/edgard/reelbot/internal/telegram"
)

const shutdownTimeout = 10 * time.Second

// Server is the admin HTTP API.
type Server struct {
	cfg         config.AdminConfig
	store       database.Store
	broadcaster *Broadcaster
	logger      *slog.Logger
	startedAt   time.Time
	engine      *gin.Engine
}

// NewServer builds the router. Nothing listens until Run is called.
func NewServer(cfg config.AdminConfig, store database.Store, client telegram.Client, log *slog.Logger) *Server {
	if log == nil {
		log = logger.Discard()
	}
	log = log.With("component", "admin")

	s := &Server{
		cfg:         cfg,
		store:       store,
		broadcaster: NewBroadcaster(client, store, cfg.BroadcastWorkers, log),
		logger:      log,
		startedAt:   time.Now().UTC(),
	}

	r := gin.New()
	r.Use(gin.Recovery(), requestLogger(log))

	r.GET("/healthz", s.health)
	r.GET("/api/stats", s.publicStats)

	auth := r.Group("/admin", gin.BasicAuth(gin.Accounts{cfg.Username: cfg.Password}))
	{
		auth.GET("/stats", s.stats)
		auth.GET("/users", s.listUsers)
		auth.GET("/users/:id", s.getUser)
		auth.GET("/users/:id/downloads", s.userDownloads)
		auth.POST("/users/:id/ban", s.banUser)
		auth.POST("/users/:id/unban", s.unbanUser)
		auth.GET("/settings", s.listSettings)
		auth.PUT("/settings/:key", s.updateSetting)
		auth.POST("/broadcast", s.broadcast)
	}

	s.engine = r
	return s
}

// Handler returns the router, mainly for tests.
func (s *Server) Handler() http.Handler { return s.engine }

// Run listens on the configured address until ctx is cancelled, then shuts
// the server down gracefully.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.cfg.Listen,
		Handler:           s.engine,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("Admin API listening", "addr", s.cfg.Listen)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("listen on %s: %w", s.cfg.Listen, err)
		}
		return nil
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		s.logger.Error("Admin API shutdown failed", "error", err)
		return fmt.Errorf("shutdown admin api: %w", err)
	}
	s.logger.Info("Admin API stopped")
	return nil
}

// requestLogger logs every request through slog.
func requestLogger(log *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path
		if raw := c.Request.URL.RawQuery; raw != "" {
			path = path + "?" + raw
		}

		c.Next()

		level := slog.LevelInfo
		if c.Writer.Status() >= http.StatusInternalServerError {
			level = slog.LevelError
		}
		log.Log(c.Request.Context(), level, "Request processed",
			"method", c.Request.Method,
			"path", path,
			"status", c.Writer.Status(),
			"latency", time.Since(start),
			"client_ip", c.ClientIP(),
			"body_size", c.Writer.Size(),
		)
	}
}
