package database

import "time"

// User is a Telegram account that has talked to the bot. Users are never
// deleted; a ban is a flag on the row.
type User struct {
	ID             int64      `db:"id"               json:"id"`
	TelegramUserID int64      `db:"telegram_user_id" json:"telegram_user_id"`
	FirstName      string     `db:"first_name"       json:"first_name"`
	LastName       string     `db:"last_name"        json:"last_name"`
	Username       string     `db:"username"         json:"username"`
	JoinedAt       time.Time  `db:"joined_at"        json:"joined_at"`
	LastActiveAt   time.Time  `db:"last_active_at"   json:"last_active_at"`
	IsSubscribed   bool       `db:"is_subscribed"    json:"is_subscribed"`
	IsBanned       bool       `db:"is_banned"        json:"is_banned"`
	BanReason      string     `db:"ban_reason"       json:"ban_reason"`
	DownloadCount  int64      `db:"download_count"   json:"download_count"`
	LastDownloadAt *time.Time `db:"last_download_at" json:"last_download_at"`
}

// DisplayName returns the best human readable name for the user.
func (u *User) DisplayName() string {
	switch {
	case u.FirstName != "":
		return u.FirstName
	case u.Username != "":
		return "@" + u.Username
	default:
		return "there"
	}
}

// Profile is the identity data Telegram sends with every update.
type Profile struct {
	TelegramUserID int64
	FirstName      string
	LastName       string
	Username       string
}

// Download status values.
const (
	StatusSuccess = "success"
	StatusFailed  = "failed"
)

// Download is one audit record per pipeline run that reached the fetch stage.
type Download struct {
	ID           int64     `db:"id"            json:"id"`
	UserID       int64     `db:"user_id"       json:"user_id"`
	ContentURL   string    `db:"content_url"   json:"content_url"`
	ContentType  string    `db:"content_type"  json:"content_type"`
	Status       string    `db:"status"        json:"status"`
	ErrorMessage string    `db:"error_message" json:"error_message,omitempty"`
	DownloadedAt time.Time `db:"downloaded_at" json:"downloaded_at"`
}

// Setting is an admin editable key/value pair.
type Setting struct {
	Key         string    `db:"key"         json:"key"`
	Value       string    `db:"value"       json:"value"`
	Description string    `db:"description" json:"description"`
	UpdatedAt   time.Time `db:"updated_at"  json:"updated_at"`
}

// Known setting keys. Rows for all of them are seeded by the first migration.
const (
	SettingChannelURL   = "telegram_channel_url"
	SettingTikTokURL    = "tiktok_profile_url"
	SettingBotUsername  = "bot_username"
	SettingWarningText  = "warning_message_text"
	SettingWarningColor = "warning_message_color"
)

// Stats aggregates counters shown by /stats and the public stats endpoint.
type Stats struct {
	Users               int `db:"users"                json:"users"`
	BannedUsers         int `db:"banned_users"         json:"banned_users"`
	SuccessfulDownloads int `db:"successful_downloads" json:"successful_downloads"`
	FailedDownloads     int `db:"failed_downloads"     json:"failed_downloads"`
}
