package admin

import (
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/edgard/reelbot/internal/database"
)

// DefaultBanReason is stored when an operator bans without a reason.
const DefaultBanReason = "banned by admin"

type banRequest struct {
	Reason string `json:"reason" binding:"max=500"`
}

type settingRequest struct {
	Value *string `json:"value" binding:"required"`
}

type broadcastRequest struct {
	Text string `json:"text" binding:"required,max=4096"`
}

type warningMessage struct {
	Text  string `json:"text"`
	Color string `json:"color"`
}

type publicStatsResponse struct {
	Visitors        int64          `json:"visitors"`
	TotalUsers      int            `json:"total_users"`
	TotalDownloads  int            `json:"total_downloads"`
	Warning         warningMessage `json:"warning_message"`
	TikTokURL       string         `json:"tiktok_profile_url,omitempty"`
	ServerStartedAt time.Time      `json:"server_started_at"`
}

type usersResponse struct {
	Page     int             `json:"page"`
	PageSize int             `json:"page_size"`
	Users    []database.User `json:"users"`
}

func (s *Server) health(c *gin.Context) {
	if err := s.store.Ping(c.Request.Context()); err != nil {
		s.logger.ErrorContext(c.Request.Context(), "Health check failed", "error", err)
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (s *Server) publicStats(c *gin.Context) {
	ctx := c.Request.Context()
	stats, err := s.store.Stats(ctx)
	if err != nil {
		s.internalError(c, "load stats", err)
		return
	}

	settings, err := s.settingsMap(c)
	if err != nil {
		s.internalError(c, "load settings", err)
		return
	}

	// The page stays up when the counter cannot be written.
	visitors, err := s.store.IncrementCounter(ctx, database.CounterVisitors)
	if err != nil {
		s.logger.WarnContext(ctx, "Failed to count visitor", "error", err)
	}

	c.JSON(http.StatusOK, publicStatsResponse{
		Visitors:       visitors,
		TotalUsers:     stats.Users,
		TotalDownloads: stats.SuccessfulDownloads,
		Warning: warningMessage{
			Text:  settings[database.SettingWarningText],
			Color: settings[database.SettingWarningColor],
		},
		TikTokURL:       settings[database.SettingTikTokURL],
		ServerStartedAt: s.startedAt,
	})
}

func (s *Server) stats(c *gin.Context) {
	stats, err := s.store.Stats(c.Request.Context())
	if err != nil {
		s.internalError(c, "load stats", err)
		return
	}
	c.JSON(http.StatusOK, stats)
}

func (s *Server) listUsers(c *gin.Context) {
	page, err := strconv.Atoi(c.DefaultQuery("page", "1"))
	if err != nil || page < 1 {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid page"})
		return
	}

	users, err := s.store.ListUsers(c.Request.Context(), (page-1)*s.cfg.PageSize, s.cfg.PageSize)
	if err != nil {
		s.internalError(c, "list users", err)
		return
	}
	if users == nil {
		users = []database.User{}
	}
	c.JSON(http.StatusOK, usersResponse{Page: page, PageSize: s.cfg.PageSize, Users: users})
}

func (s *Server) getUser(c *gin.Context) {
	id, ok := userIDParam(c)
	if !ok {
		return
	}
	user, err := s.store.GetUserByTelegramID(c.Request.Context(), id)
	if err != nil {
		s.userError(c, "get user", err)
		return
	}
	c.JSON(http.StatusOK, user)
}

func (s *Server) userDownloads(c *gin.Context) {
	id, ok := userIDParam(c)
	if !ok {
		return
	}
	limit, err := strconv.Atoi(c.DefaultQuery("limit", "50"))
	if err != nil || limit < 1 || limit > database.MaxDownloadsLimit {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid limit"})
		return
	}

	ctx := c.Request.Context()
	if _, err := s.store.GetUserByTelegramID(ctx, id); err != nil {
		s.userError(c, "get user", err)
		return
	}
	downloads, err := s.store.ListUserDownloads(ctx, id, limit)
	if err != nil {
		s.internalError(c, "list downloads", err)
		return
	}
	if downloads == nil {
		downloads = []database.Download{}
	}
	c.JSON(http.StatusOK, gin.H{"downloads": downloads})
}

func (s *Server) banUser(c *gin.Context) {
	id, ok := userIDParam(c)
	if !ok {
		return
	}
	var req banRequest
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
	}
	reason := strings.TrimSpace(req.Reason)
	if reason == "" {
		reason = DefaultBanReason
	}

	user, err := s.store.UpdateUser(c.Request.Context(), id, func(u *database.User) bool {
		if u.IsBanned && u.BanReason == reason {
			return false
		}
		u.IsBanned = true
		u.BanReason = reason
		return true
	})
	if err != nil {
		s.userError(c, "ban user", err)
		return
	}
	s.logger.InfoContext(c.Request.Context(), "User banned by operator", "telegram_user_id", id, "reason", reason)
	c.JSON(http.StatusOK, user)
}

func (s *Server) unbanUser(c *gin.Context) {
	id, ok := userIDParam(c)
	if !ok {
		return
	}
	user, err := s.store.UpdateUser(c.Request.Context(), id, func(u *database.User) bool {
		if !u.IsBanned && u.BanReason == "" {
			return false
		}
		u.IsBanned = false
		u.BanReason = ""
		return true
	})
	if err != nil {
		s.userError(c, "unban user", err)
		return
	}
	s.logger.InfoContext(c.Request.Context(), "User unbanned by operator", "telegram_user_id", id)
	c.JSON(http.StatusOK, user)
}

func (s *Server) listSettings(c *gin.Context) {
	settings, err := s.store.ListSettings(c.Request.Context())
	if err != nil {
		s.internalError(c, "list settings", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"settings": settings})
}

func (s *Server) updateSetting(c *gin.Context) {
	key := c.Param("key")
	var req settingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	value := strings.TrimSpace(*req.Value)
	if err := s.store.UpdateSetting(c.Request.Context(), key, value); err != nil {
		if errors.Is(err, database.ErrSettingNotFound) {
			c.AbortWithStatusJSON(http.StatusNotFound, gin.H{"error": "unknown setting"})
			return
		}
		s.internalError(c, "update setting", err)
		return
	}
	s.logger.InfoContext(c.Request.Context(), "Setting updated", "key", key)
	c.JSON(http.StatusOK, gin.H{"key": key, "value": value})
}

func (s *Server) broadcast(c *gin.Context) {
	var req broadcastRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	report, err := s.broadcaster.Send(c.Request.Context(), req.Text)
	if err != nil {
		s.internalError(c, "broadcast", err)
		return
	}
	c.JSON(http.StatusOK, report)
}

func (s *Server) settingsMap(c *gin.Context) (map[string]string, error) {
	settings, err := s.store.ListSettings(c.Request.Context())
	if err != nil {
		return nil, err
	}
	m := make(map[string]string, len(settings))
	for _, st := range settings {
		m[st.Key] = st.Value
	}
	return m, nil
}

func userIDParam(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid user id"})
		return 0, false
	}
	return id, true
}

func (s *Server) userError(c *gin.Context, op string, err error) {
	if errors.Is(err, database.ErrUserNotFound) {
		c.AbortWithStatusJSON(http.StatusNotFound, gin.H{"error": "user not found"})
		return
	}
	s.internalError(c, op, err)
}

// internalError logs err and answers without exposing it.
func (s *Server) internalError(c *gin.Context, op string, err error) {
	s.logger.ErrorContext(c.Request.Context(), "Admin request failed", "op", op, "error", err)
	c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
}
