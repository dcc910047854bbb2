package config

import (
	"reflect"
	"strings"

	logx "checkinbot/pkg/logx"
)

// Change summarizes a config reload.
type Change struct {
	// Sections that changed, e.g. "checkin", "logging".
	Sections []string
	// Restart lists changed sections that only take effect after a restart.
	Restart []string
	// Attrs are safe structured fields for logging (never tokens or secrets).
	Attrs []logx.Field
}

// Diff compares two configs. Sections checkin and logging are applied live;
// everything else (transport, roster, storage) is bound at startup.
func Diff(oldCfg, newCfg *Config) Change {
	if oldCfg == nil {
		oldCfg = &Config{}
	}
	if newCfg == nil {
		newCfg = &Config{}
	}
	var ch Change

	if !reflect.DeepEqual(oldCfg.Checkin, newCfg.Checkin) {
		ch.Sections = append(ch.Sections, "checkin")
		ch.Attrs = append(ch.Attrs,
			logx.String("checkin.schedule", strings.TrimSpace(newCfg.Checkin.Schedule)),
			logx.String("checkin.timezone", strings.TrimSpace(newCfg.Checkin.Timezone)),
		)
	}
	if oldCfg.Telegram.ChatID != newCfg.Telegram.ChatID || oldCfg.Telegram.ThreadID != newCfg.Telegram.ThreadID {
		ch.Sections = append(ch.Sections, "telegram.chat")
		ch.Attrs = append(ch.Attrs, logx.Int64("telegram.chat_id", newCfg.Telegram.ChatID))
	}
	if !reflect.DeepEqual(oldCfg.Logging, newCfg.Logging) || oldCfg.Telegram.LogChatID != newCfg.Telegram.LogChatID {
		ch.Sections = append(ch.Sections, "logging")
		ch.Attrs = append(ch.Attrs,
			logx.String("logging.level", newCfg.Logging.Level),
			logx.Bool("logging.telegram", newCfg.Logging.Telegram.Enabled),
		)
	}

	if oldCfg.Telegram.Token != newCfg.Telegram.Token ||
		oldCfg.Telegram.Mode != newCfg.Telegram.Mode ||
		oldCfg.Telegram.PollTimeout != newCfg.Telegram.PollTimeout ||
		oldCfg.Telegram.APIURL != newCfg.Telegram.APIURL {
		ch.Sections = append(ch.Sections, "telegram")
		ch.Restart = append(ch.Restart, "telegram")
	}
	if !reflect.DeepEqual(oldCfg.Webhook, newCfg.Webhook) {
		ch.Sections = append(ch.Sections, "webhook")
		ch.Restart = append(ch.Restart, "webhook")
	}
	if !reflect.DeepEqual(oldCfg.Roster, newCfg.Roster) {
		ch.Sections = append(ch.Sections, "roster")
		ch.Restart = append(ch.Restart, "roster")
	}
	if !reflect.DeepEqual(oldCfg.Storage, newCfg.Storage) {
		ch.Sections = append(ch.Sections, "storage")
		ch.Restart = append(ch.Restart, "storage")
	}
	return ch
}
