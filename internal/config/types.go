// Package config provides configuration loading, validation, and management
// for the reelbot application. Values come from defaults, an optional YAML
// file and REELBOT_* environment variables, in that order of precedence.
package config

import (
	"time"

	"github.com/go-telegram/bot/models"
)

// Config defines the application configuration parameters for all components.
type Config struct {
	Logger     LoggerConfig     `mapstructure:"logger"`
	Telegram   TelegramConfig   `mapstructure:"telegram"`
	Membership MembershipConfig `mapstructure:"membership"`
	Media      MediaConfig      `mapstructure:"media"`
	Database   DatabaseConfig   `mapstructure:"database"`
	Bot        BotConfig        `mapstructure:"bot"`
	Messages   MessagesConfig   `mapstructure:"messages"`
	Admin      AdminConfig      `mapstructure:"admin"`
	Scheduler  SchedulerConfig  `mapstructure:"scheduler"`
}

// LoggerConfig controls slog output and optional file rotation.
type LoggerConfig struct {
	Level      string `mapstructure:"level"       validate:"oneof=debug info warn error"`
	JSON       bool   `mapstructure:"json"`
	File       string `mapstructure:"file"`
	MaxSizeMB  int    `mapstructure:"max_size_mb" validate:"gte=0"`
	MaxBackups int    `mapstructure:"max_backups" validate:"gte=0"`
	MaxAgeDays int    `mapstructure:"max_age_days" validate:"gte=0"`
	Compress   bool   `mapstructure:"compress"`
}

// TelegramConfig holds bot credentials, the privileged admin set and the
// channel every user must be subscribed to.
type TelegramConfig struct {
	Token        string  `mapstructure:"token"         validate:"required"`
	AdminUserIDs []int64 `mapstructure:"admin_user_ids" validate:"dive,gt=0"`
	// ChannelID is either a numeric chat id (-100...) or an @username.
	// Empty disables the subscription gate.
	ChannelID string `mapstructure:"channel_id"`
	// ChannelUsername is used to build the subscribe link when the
	// telegram_channel_url setting is empty.
	ChannelUsername string `mapstructure:"channel_username"`

	// BotInfo is filled at runtime from getMe.
	BotInfo *models.User `mapstructure:"-"`
}

// IsAdmin reports whether userID belongs to the configured admin set.
func (t TelegramConfig) IsAdmin(userID int64) bool {
	for _, id := range t.AdminUserIDs {
		if id == userID {
			return true
		}
	}
	return false
}

// MembershipConfig bounds the channel membership check.
type MembershipConfig struct {
	Timeout      time.Duration `mapstructure:"timeout"        validate:"min=1s,max=1m"`
	MaxRetryWait time.Duration `mapstructure:"max_retry_wait" validate:"min=0,max=2m"`
}

// MediaConfig configures the external resolution API and local downloads.
type MediaConfig struct {
	APIURL        string        `mapstructure:"api_url"        validate:"required,url"`
	APIKey        string        `mapstructure:"api_key"`
	UserAgent     string        `mapstructure:"user_agent"`
	Timeout       time.Duration `mapstructure:"timeout"        validate:"min=1s,max=10m"`
	MaxRetryWait  time.Duration `mapstructure:"max_retry_wait" validate:"min=0,max=2m"`
	MaxConcurrent int64         `mapstructure:"max_concurrent" validate:"min=1,max=100"`
	MaxFileSize   int64         `mapstructure:"max_file_size"  validate:"min=1"`
	TempDir       string        `mapstructure:"temp_dir"`
}

// DatabaseConfig points at the SQLite file.
type DatabaseConfig struct {
	Path string `mapstructure:"path" validate:"required"`
}

// BotConfig holds handler level timeouts.
type BotConfig struct {
	DBTimeout      time.Duration `mapstructure:"db_timeout"      validate:"min=1s,max=1m"`
	HandlerTimeout time.Duration `mapstructure:"handler_timeout" validate:"min=10s,max=30m"`
}

// MessagesConfig holds every user-facing text.
type MessagesConfig struct {
	Welcome               string `mapstructure:"welcome"                validate:"required"`
	Help                  string `mapstructure:"help"                   validate:"required"`
	SubscribeRequired     string `mapstructure:"subscribe_required"     validate:"required"`
	SubscribeButton       string `mapstructure:"subscribe_button"       validate:"required"`
	VerifyButton          string `mapstructure:"verify_button"          validate:"required"`
	SubscriptionConfirmed string `mapstructure:"subscription_confirmed" validate:"required"`
	SubscriptionMissing   string `mapstructure:"subscription_missing"   validate:"required"`
	MembershipUnavailable string `mapstructure:"membership_unavailable" validate:"required"`
	Banned                string `mapstructure:"banned"                 validate:"required"`
	InvalidLink           string `mapstructure:"invalid_link"           validate:"required"`
	Processing            string `mapstructure:"processing"             validate:"required"`
	Done                  string `mapstructure:"done"                   validate:"required"`
	Caption               string `mapstructure:"caption"`
	ErrPrivate            string `mapstructure:"err_private"            validate:"required"`
	ErrMissing            string `mapstructure:"err_missing"            validate:"required"`
	ErrLoginRequired      string `mapstructure:"err_login_required"     validate:"required"`
	ErrConnection         string `mapstructure:"err_connection"         validate:"required"`
	ErrRateLimited        string `mapstructure:"err_rate_limited"       validate:"required"`
	ErrEmpty              string `mapstructure:"err_empty"              validate:"required"`
	ErrDelivery           string `mapstructure:"err_delivery"           validate:"required"`
	ErrGeneral            string `mapstructure:"err_general"            validate:"required"`
	StatsUser             string `mapstructure:"stats_user"             validate:"required"`
	StatsAdmin            string `mapstructure:"stats_admin"            validate:"required"`
	StatsNever            string `mapstructure:"stats_never"            validate:"required"`
	StatsUnavailable      string `mapstructure:"stats_unavailable"      validate:"required"`
}

// AdminConfig configures the admin HTTP API.
type AdminConfig struct {
	Enabled          bool   `mapstructure:"enabled"`
	Listen           string `mapstructure:"listen"            validate:"required_if=Enabled true"`
	Username         string `mapstructure:"username"          validate:"required_if=Enabled true"`
	Password         string `mapstructure:"password"          validate:"required_if=Enabled true"`
	BroadcastWorkers int    `mapstructure:"broadcast_workers" validate:"min=1,max=30"`
	PageSize         int    `mapstructure:"page_size"         validate:"min=1,max=200"`
}

// SchedulerConfig maps task names to their schedule.
type SchedulerConfig struct {
	Tasks map[string]TaskConfig `mapstructure:"tasks"`
}

// TaskConfig enables a single scheduled task with a cron expression.
type TaskConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Schedule string `mapstructure:"schedule"`
}
