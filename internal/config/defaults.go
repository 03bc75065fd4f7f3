package config

import "time"

// Default values for configuration
const (
	DefaultLogLevel = "info"

	DefaultDBPath = "reelbot.db"

	DefaultMembershipTimeout      = 10 * time.Second
	DefaultMembershipMaxRetryWait = 30 * time.Second

	DefaultMediaAPIURL        = "https://api.rival.rocks/media/instagram/download"
	DefaultMediaUserAgent     = "reelbot/1.0"
	DefaultMediaTimeout       = 60 * time.Second
	DefaultMediaMaxRetryWait  = 30 * time.Second
	DefaultMediaMaxConcurrent = 4
	DefaultMediaMaxFileSize   = 50 << 20 // Bot API upload limit

	DefaultBotDBTimeout      = 15 * time.Second
	DefaultBotHandlerTimeout = 5 * time.Minute

	DefaultAdminListen           = "127.0.0.1:8080"
	DefaultAdminBroadcastWorkers = 5
	DefaultAdminPageSize         = 15
)

// DefaultMessages are used for any message not overridden in the config file.
var DefaultMessages = MessagesConfig{
	Welcome:               "👋 Welcome, %s!\nSend me a link to an Instagram post, reel or video and I will download it for you.",
	Help:                  "ℹ️ Send a link like https://www.instagram.com/p/XXXX/ or https://www.instagram.com/reel/XXXX/.\n/stats shows your download statistics.",
	SubscribeRequired:     "⚠️ Sorry %s, you have to subscribe to our channel before using the bot.\nSubscribe with the button below, then press \"I subscribed\".",
	SubscribeButton:       "Subscribe to the channel",
	VerifyButton:          "I subscribed",
	SubscriptionConfirmed: "Thanks for subscribing! You can use the bot now.",
	SubscriptionMissing:   "Your subscription could not be verified yet. Make sure you joined the channel and try again.",
	MembershipUnavailable: "⏳ We could not verify your subscription right now. Please try again in a moment.",
	Banned:                "🚫 You are banned from using this bot. Reason: %s",
	InvalidLink:           "⚠️ That does not look like a valid Instagram post, reel or video link. Please check it and try again.",
	Processing:            "⏳ Processing your link, please wait...",
	Done:                  "✅ Done!",
	Caption:               "Downloaded by @%s",
	ErrPrivate:            "🔒 This post is private, so it cannot be downloaded.",
	ErrMissing:            "❌ This post does not exist or was deleted.",
	ErrLoginRequired:      "🔑 Instagram requires a login to view this post, so it cannot be downloaded.",
	ErrConnection:         "🌐 Could not reach the download service. Please try again later.",
	ErrRateLimited:        "⏳ The download service is busy right now. Please try again in a few minutes.",
	ErrEmpty:              "❌ No media was found in this post.",
	ErrDelivery:           "❌ The media could not be sent. The file may be too large or unsupported.",
	ErrGeneral:            "❌ An error occurred. Please try again later.",
	StatsUser:             "📊 Your statistics:\n\n📥 Downloads: %d\n🕒 Last download: %s",
	StatsAdmin:            "📊 Bot statistics:\n\n👤 Users: %d\n📥 Successful downloads: %d",
	StatsNever:            "no downloads yet",
	StatsUnavailable:      "Statistics are not available right now.",
}

// DefaultSchedulerTasks are scheduled unless the config file overrides them.
var DefaultSchedulerTasks = map[string]TaskConfig{
	"sql_maintenance": {Enabled: true, Schedule: "0 0 4 * * *"},
	"temp_sweep":      {Enabled: true, Schedule: "0 */30 * * * *"},
}
