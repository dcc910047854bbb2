package app

import (
	"fmt"
	"strings"
	"time"

	"checkinbot/internal/checkin"
	"checkinbot/internal/config"
	"checkinbot/internal/roster"
	"checkinbot/internal/storage"
	"checkinbot/internal/task/scheduler"
	kit "checkinbot/internal/transport"
	"checkinbot/internal/transport/telegram"
	"checkinbot/internal/transport/webhook"
	logx "checkinbot/pkg/logx"
)

// reminderJob is the scheduler entry name for the periodic check-in.
const reminderJob = "checkin.reminder"

func mapLogConfig(cfg *config.Config) logx.Config {
	return logx.Config{
		Level:   cfg.Logging.Level,
		Console: cfg.Logging.Console,
		File: logx.FileConfig{
			Enabled: cfg.Logging.File.Enabled,
			Path:    cfg.Logging.File.Path,
		},
		Chat: logx.ChatConfig{
			Enabled:    cfg.Logging.Telegram.Enabled,
			ChatID:     cfg.Telegram.LogChatID,
			ThreadID:   cfg.Logging.Telegram.ThreadID,
			MinLevel:   cfg.Logging.Telegram.MinLevel,
			RatePerSec: cfg.Logging.Telegram.RatePerSec,
		},
	}
}

func mapTelegramConfig(cfg *config.Config, offline bool) (telegram.Config, error) {
	poll, err := config.ParseDurationOrDefault("telegram.poll_timeout", cfg.Telegram.PollTimeout, config.DefaultPollTimeout)
	if err != nil {
		return telegram.Config{}, err
	}
	return telegram.Config{
		Token:       cfg.Telegram.Token,
		APIURL:      cfg.Telegram.APIURL,
		PollTimeout: poll,
		Offline:     offline,
	}, nil
}

func mapWebhookConfig(cfg *config.Config) (webhook.Config, error) {
	pt, err := config.ParseDurationOrDefault("webhook.process_timeout", cfg.Webhook.ProcessTimeout, config.DefaultProcessTimeout)
	if err != nil {
		return webhook.Config{}, err
	}
	return webhook.Config{
		Listen:         cfg.Webhook.ListenOrDefault(),
		Path:           cfg.Webhook.PathOrDefault(),
		SecretToken:    cfg.Webhook.SecretToken,
		ProcessTimeout: pt,
	}, nil
}

func mapRosterConfig(cfg *config.Config) (roster.Config, error) {
	rc := roster.Config{Driver: cfg.Roster.Driver}
	if s := cfg.Roster.Sheets; s != nil {
		rc.SpreadsheetID = s.SpreadsheetID
		rc.Sheet = s.Sheet
		rc.CredentialsFile = s.CredentialsFile
	}
	if s := cfg.Roster.SQLite; s != nil {
		busy, err := config.ParseDurationField("roster.sqlite.busy_timeout", s.BusyTimeout)
		if err != nil {
			return roster.Config{}, err
		}
		rc.Path = s.Path
		rc.BusyTimeout = busy
	}
	return rc, nil
}

func mapStorageConfig(cfg *config.Config) (storage.Config, bool, error) {
	if cfg == nil || cfg.Storage == nil {
		return storage.Config{}, false, nil
	}
	sc := cfg.Storage
	driver := strings.ToLower(strings.TrimSpace(sc.Driver))
	if driver == "" || driver == "none" {
		return storage.Config{}, false, nil
	}
	path := strings.TrimSpace(sc.Path)

	switch driver {
	case "file":
		return storage.Config{Driver: "file", Path: path}, true, nil
	case "sqlite", "sqlite3":
		if path == "" {
			return storage.Config{}, false, fmt.Errorf("storage.path is required when storage.driver=sqlite")
		}
		busy, err := config.ParseDurationOrDefault("storage.busy_timeout", sc.BusyTimeout, time.Second)
		if err != nil {
			return storage.Config{}, false, err
		}
		return storage.Config{Driver: driver, Path: path, BusyTimeout: busy}, true, nil
	default:
		return storage.Config{}, false, fmt.Errorf("unknown storage.driver: %s", sc.Driver)
	}
}

func dedupTTL(cfg *config.Config) (time.Duration, error) {
	if cfg.Storage == nil {
		return config.DefaultDedupTTL, nil
	}
	return config.ParseDurationOrDefault("storage.dedup_ttl", cfg.Storage.DedupTTL, config.DefaultDedupTTL)
}

func location(cfg *config.Config, log logx.Logger) *time.Location {
	loc, err := cfg.Checkin.Location()
	if err != nil {
		log.Warn("invalid checkin.timezone; using default", logx.String("tz", cfg.Checkin.Timezone), logx.Err(err))
		return checkin.DefaultLocation()
	}
	return loc
}

func window(cfg *config.Config) roster.Window {
	start, end := cfg.Roster.Window()
	return roster.Window{Start: start, End: end}
}

func mapReminderConfig(cfg *config.Config, log logx.Logger) checkin.ReminderConfig {
	return checkin.ReminderConfig{
		Chat:       kit.ChatTarget{ChatID: cfg.Telegram.ChatID, ThreadID: cfg.Telegram.ThreadID},
		Window:     window(cfg),
		BufferDays: cfg.Checkin.Buffer(),
		Location:   location(cfg, log),
		Header:     cfg.Checkin.Header,
	}
}

func mapCallbackConfig(cfg *config.Config, log logx.Logger) (checkin.CallbackConfig, error) {
	ttl, err := dedupTTL(cfg)
	if err != nil {
		return checkin.CallbackConfig{}, err
	}
	return checkin.CallbackConfig{
		Window:   window(cfg),
		Location: location(cfg, log),
		DedupTTL: ttl,
	}, nil
}

func mapSchedulerConfig(cfg *config.Config) scheduler.Config {
	tz := strings.TrimSpace(cfg.Checkin.Timezone)
	if tz == "" {
		tz = config.DefaultTimezone
	}
	return scheduler.Config{Timezone: tz}
}

func runTimeout(cfg *config.Config) (time.Duration, error) {
	return config.ParseDurationOrDefault("checkin.run_timeout", cfg.Checkin.RunTimeout, config.DefaultRunTimeout)
}
