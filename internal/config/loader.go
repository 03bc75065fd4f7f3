package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
)

// ErrConfiguration wraps every error returned by Load.
var ErrConfiguration = errors.New("configuration error")

// EnvPrefix is the prefix of environment variables overriding config keys,
// e.g. REELBOT_TELEGRAM_TOKEN for telegram.token.
const EnvPrefix = "REELBOT"

// Load loads and validates configuration from:
// 1. Default values
// 2. the YAML file at path (optional; a missing file is not an error)
// 3. REELBOT_* environment variables
func Load(path string) (*Config, error) {
	startTime := time.Now()

	v := viper.New()
	setDefaults(v)

	if err := readConfigFile(v, path); err != nil {
		return nil, fmt.Errorf("%w: failed to load config file: %v", ErrConfiguration, err)
	}

	cfg := newDefaultConfig()
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("%w: failed to parse config: %v", ErrConfiguration, err)
	}

	if err := validator.New().Struct(cfg); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrConfiguration, err)
	}

	slog.Info("configuration loaded successfully",
		"config_file", v.ConfigFileUsed(),
		"log_level", cfg.Logger.Level,
		"db_path", cfg.Database.Path,
		"channel_configured", cfg.Telegram.ChannelID != "",
		"admin_count", len(cfg.Telegram.AdminUserIDs),
		"duration_ms", time.Since(startTime).Milliseconds())

	return cfg, nil
}

func readConfigFile(v *viper.Viper, path string) error {
	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if errors.As(err, &notFound) || errors.Is(err, fs.ErrNotExist) {
			slog.Info("configuration file not found, using defaults and environment", "path", path)
			return nil
		}
		return err
	}
	return nil
}

// newDefaultConfig returns the struct that the config file and environment
// are unmarshalled over; keys missing from both keep these values.
func newDefaultConfig() *Config {
	tasks := make(map[string]TaskConfig, len(DefaultSchedulerTasks))
	for name, task := range DefaultSchedulerTasks {
		tasks[name] = task
	}

	return &Config{
		Logger: LoggerConfig{
			Level: DefaultLogLevel,
		},
		Membership: MembershipConfig{
			Timeout:      DefaultMembershipTimeout,
			MaxRetryWait: DefaultMembershipMaxRetryWait,
		},
		Media: MediaConfig{
			APIURL:        DefaultMediaAPIURL,
			UserAgent:     DefaultMediaUserAgent,
			Timeout:       DefaultMediaTimeout,
			MaxRetryWait:  DefaultMediaMaxRetryWait,
			MaxConcurrent: DefaultMediaMaxConcurrent,
			MaxFileSize:   DefaultMediaMaxFileSize,
		},
		Database: DatabaseConfig{
			Path: DefaultDBPath,
		},
		Bot: BotConfig{
			DBTimeout:      DefaultBotDBTimeout,
			HandlerTimeout: DefaultBotHandlerTimeout,
		},
		Messages: DefaultMessages,
		Admin: AdminConfig{
			Listen:           DefaultAdminListen,
			BroadcastWorkers: DefaultAdminBroadcastWorkers,
			PageSize:         DefaultAdminPageSize,
		},
		Scheduler: SchedulerConfig{
			Tasks: tasks,
		},
	}
}

// setDefaults registers every key that may be overridden from the
// environment; viper only binds env vars for keys it already knows.
func setDefaults(v *viper.Viper) {
	v.SetDefault("logger.level", DefaultLogLevel)
	v.SetDefault("logger.json", false)
	v.SetDefault("logger.file", "")
	v.SetDefault("logger.max_size_mb", 10)
	v.SetDefault("logger.max_backups", 10)
	v.SetDefault("logger.max_age_days", 30)
	v.SetDefault("logger.compress", true)

	v.SetDefault("telegram.token", "")
	v.SetDefault("telegram.admin_user_ids", []int64{})
	v.SetDefault("telegram.channel_id", "")
	v.SetDefault("telegram.channel_username", "")

	v.SetDefault("membership.timeout", DefaultMembershipTimeout)
	v.SetDefault("membership.max_retry_wait", DefaultMembershipMaxRetryWait)

	v.SetDefault("media.api_url", DefaultMediaAPIURL)
	v.SetDefault("media.api_key", "")
	v.SetDefault("media.user_agent", DefaultMediaUserAgent)
	v.SetDefault("media.timeout", DefaultMediaTimeout)
	v.SetDefault("media.max_retry_wait", DefaultMediaMaxRetryWait)
	v.SetDefault("media.max_concurrent", DefaultMediaMaxConcurrent)
	v.SetDefault("media.max_file_size", DefaultMediaMaxFileSize)
	v.SetDefault("media.temp_dir", "")

	v.SetDefault("database.path", DefaultDBPath)

	v.SetDefault("bot.db_timeout", DefaultBotDBTimeout)
	v.SetDefault("bot.handler_timeout", DefaultBotHandlerTimeout)

	v.SetDefault("admin.enabled", false)
	v.SetDefault("admin.listen", DefaultAdminListen)
	v.SetDefault("admin.username", "")
	v.SetDefault("admin.password", "")
	v.SetDefault("admin.broadcast_workers", DefaultAdminBroadcastWorkers)
	v.SetDefault("admin.page_size", DefaultAdminPageSize)
}
