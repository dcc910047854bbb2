package config

import (
	"strings"
	"time"
)

const (
	DefaultSchedule       = "0 9 * * 1" // Mondays 09:00 in the reference timezone
	DefaultTimezone       = "America/New_York"
	DefaultBufferDays     = 3
	DefaultWindowStart    = 2
	DefaultWindowEnd      = 100
	DefaultWebhookListen  = ":8080"
	DefaultWebhookPath    = "/telegram/webhook"
	DefaultSheetName      = "Sheet1"
	DefaultProcessTimeout = 30 * time.Second
	DefaultRunTimeout     = 2 * time.Minute
	DefaultPollTimeout    = 10 * time.Second
	DefaultDedupTTL       = 24 * time.Hour
)

func (c CheckinConfig) ScheduleOrDefault() string {
	if s := strings.TrimSpace(c.Schedule); s != "" {
		return s
	}
	return DefaultSchedule
}

// Location resolves the reference timezone. Validate has already checked the name.
func (c CheckinConfig) Location() (*time.Location, error) {
	tz := strings.TrimSpace(c.Timezone)
	if tz == "" {
		tz = DefaultTimezone
	}
	return time.LoadLocation(tz)
}

func (c CheckinConfig) Buffer() int {
	if c.BufferDays == nil {
		return DefaultBufferDays
	}
	return *c.BufferDays
}

// Window returns the inclusive row range scanned in the roster.
func (c RosterConfig) Window() (start, end int) {
	start, end = c.WindowStart, c.WindowEnd
	if start <= 0 {
		start = DefaultWindowStart
	}
	if end <= 0 {
		end = DefaultWindowEnd
	}
	return start, end
}

func (c TelegramConfig) ModeOrDefault() string {
	if m := strings.ToLower(strings.TrimSpace(c.Mode)); m != "" {
		return m
	}
	return "webhook"
}

func (c WebhookConfig) ListenOrDefault() string {
	if s := strings.TrimSpace(c.Listen); s != "" {
		return s
	}
	return DefaultWebhookListen
}

func (c WebhookConfig) PathOrDefault() string {
	if s := strings.TrimSpace(c.Path); s != "" {
		return s
	}
	return DefaultWebhookPath
}
