package config

type Config struct {
	Telegram TelegramConfig `json:"telegram"`
	Webhook  WebhookConfig  `json:"webhook"`
	Checkin  CheckinConfig  `json:"checkin"`
	Roster   RosterConfig   `json:"roster"`
	Logging  LoggingConfig  `json:"logging"`

	// Storage holds the callback dedup ledger and audit log. Optional.
	Storage *StorageConfig `json:"storage,omitempty"`
}

type TelegramConfig struct {
	Token string `json:"token" validate:"required"`
	// ChatID is where reminders are sent.
	ChatID int64 `json:"chat_id" validate:"required"`
	// ThreadID targets a forum topic inside ChatID (0 = none).
	ThreadID int `json:"thread_id,omitempty"`
	// Mode selects how callbacks arrive: "webhook" (default) or "poll".
	Mode string `json:"mode,omitempty" validate:"omitempty,oneof=webhook poll"`
	// PollTimeout is a Go duration string (poll mode only).
	PollTimeout string `json:"poll_timeout,omitempty"`
	// APIURL overrides the Bot API base URL (local bot API server, tests).
	APIURL string `json:"api_url,omitempty" validate:"omitempty,url"`
	// LogChatID receives WARN+ log records when logging.telegram.enabled is set.
	LogChatID int64 `json:"log_chat_id,omitempty"`
}

// WebhookConfig controls the inbound HTTP endpoint used in webhook mode.
//
// Example:
//
//	"webhook": { "listen": ":8080", "path": "/telegram/webhook", "secret_token": "..." }
type WebhookConfig struct {
	Listen string `json:"listen,omitempty"`
	Path   string `json:"path,omitempty" validate:"omitempty,startswith=/"`
	// SecretToken is compared with X-Telegram-Bot-Api-Secret-Token (do not log).
	SecretToken string `json:"secret_token,omitempty"`
	// PublicURL, when set, is registered with Telegram via setWebhook at startup.
	PublicURL string `json:"public_url,omitempty" validate:"omitempty,url"`
	// ProcessTimeout bounds business logic after the transport ack (Go duration).
	ProcessTimeout string `json:"process_timeout,omitempty"`
}

type CheckinConfig struct {
	// Schedule is a cron expression, "@weekly", a Go duration or HH:MM interval.
	Schedule string `json:"schedule,omitempty"`
	// Timezone is the reference IANA zone used for "today" (default America/New_York).
	Timezone string `json:"timezone,omitempty"`
	// BufferDays surfaces contacts this many days before they are strictly due.
	// Pointer so an explicit 0 is distinguishable from "omitted" (default 3).
	BufferDays *int   `json:"buffer_days,omitempty" validate:"omitempty,gte=0,lte=365"`
	Header     string `json:"header,omitempty"`
	// RunTimeout bounds one scheduled reminder run (Go duration).
	RunTimeout string `json:"run_timeout,omitempty"`
}

type RosterConfig struct {
	// Driver: "sheets", "sqlite" or "memory".
	Driver string `json:"driver" validate:"required,oneof=sheets sqlite memory"`
	// WindowStart/WindowEnd are inclusive 1-based row numbers (default 2..100).
	WindowStart int `json:"window_start,omitempty" validate:"omitempty,gte=1"`
	WindowEnd   int `json:"window_end,omitempty" validate:"omitempty,gte=1"`

	Sheets *SheetsConfig `json:"sheets,omitempty"`
	SQLite *SQLiteConfig `json:"sqlite,omitempty"`
}

type SheetsConfig struct {
	SpreadsheetID   string `json:"spreadsheet_id" validate:"required"`
	Sheet           string `json:"sheet,omitempty"`
	CredentialsFile string `json:"credentials_file" validate:"required"`
}

type SQLiteConfig struct {
	Path        string `json:"path" validate:"required"`
	BusyTimeout string `json:"busy_timeout,omitempty"`
}

// StorageConfig controls the dedup/audit persistence layer.
//
// Example:
//
//	"storage": { "driver": "file", "path": "./data/checkinbot" }
type StorageConfig struct {
	Driver      string `json:"driver" validate:"omitempty,oneof=none file sqlite sqlite3"`
	Path        string `json:"path"`
	BusyTimeout string `json:"busy_timeout,omitempty"` // sqlite only
	// DedupTTL is how long a processed callback id is remembered (default 24h).
	DedupTTL string `json:"dedup_ttl,omitempty"`
}

type LoggingConfig struct {
	Level    string          `json:"level"`
	Console  bool            `json:"console"`
	File     LoggingFile     `json:"file"`
	Telegram LoggingTelegram `json:"telegram"`
}

type LoggingFile struct {
	Enabled bool   `json:"enabled"`
	Path    string `json:"path"`
}

type LoggingTelegram struct {
	Enabled    bool   `json:"enabled"`
	ThreadID   int    `json:"thread_id"`
	MinLevel   string `json:"min_level"`
	RatePerSec int    `json:"rate_per_sec"`
}
