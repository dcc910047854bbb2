package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

const sampleYAML = `
telegram:
  token: "123:abc"
  chat_id: 42
  mode: webhook
webhook:
  listen: ":9090"
  secret_token: s3cret
checkin:
  schedule: "0 9 * * 1"
  timezone: America/New_York
  buffer_days: 0
roster:
  driver: sqlite
  sqlite:
    path: ./data/roster.db
logging:
  level: debug
  console: true
`

func TestDecodeYAMLAndDefaults(t *testing.T) {
	cfg, err := Decode("config.yaml", []byte(sampleYAML))
	if err != nil {
		t.Fatalf("Decode error: %v", err)
	}
	if err := Validate(cfg); err != nil {
		t.Fatalf("Validate error: %v", err)
	}
	if cfg.Telegram.ChatID != 42 {
		t.Fatalf("chat_id = %d, want 42", cfg.Telegram.ChatID)
	}
	if got := cfg.Checkin.Buffer(); got != 0 {
		t.Fatalf("explicit buffer_days 0 lost: got %d", got)
	}
	if got := cfg.Webhook.PathOrDefault(); got != DefaultWebhookPath {
		t.Fatalf("webhook path = %q", got)
	}
	start, end := cfg.Roster.Window()
	if start != 2 || end != 100 {
		t.Fatalf("window = %d..%d, want 2..100", start, end)
	}
	loc, err := cfg.Checkin.Location()
	if err != nil || loc.String() != "America/New_York" {
		t.Fatalf("location = %v, %v", loc, err)
	}
}

func TestBufferDefaultsToThree(t *testing.T) {
	var c CheckinConfig
	if c.Buffer() != DefaultBufferDays {
		t.Fatalf("Buffer() = %d, want %d", c.Buffer(), DefaultBufferDays)
	}
}

func TestDecodeRejectsUnknownFields(t *testing.T) {
	_, err := Decode("config.json", []byte(`{"telegram":{"token":"x","chat_id":1},"bogus":true}`))
	if err == nil {
		t.Fatal("expected error for unknown field")
	}
}

func TestDecodeRejectsTrailingData(t *testing.T) {
	_, err := Decode("config.json", []byte(`{"roster":{"driver":"memory"}}{}`))
	if err == nil {
		t.Fatal("expected error for trailing data")
	}
}

func TestValidateRules(t *testing.T) {
	base := func() *Config {
		return &Config{
			Telegram: TelegramConfig{Token: "t", ChatID: 1},
			Roster:   RosterConfig{Driver: "memory"},
		}
	}
	tests := []struct {
		name   string
		mutate func(c *Config)
		errSub string
	}{
		{name: "ok", mutate: func(c *Config) {}},
		{name: "missing token", mutate: func(c *Config) { c.Telegram.Token = "" }, errSub: "Token"},
		{name: "bad mode", mutate: func(c *Config) { c.Telegram.Mode = "smoke" }, errSub: "Mode"},
		{name: "sheets without section", mutate: func(c *Config) { c.Roster.Driver = "sheets" }, errSub: "roster.sheets"},
		{name: "inverted window", mutate: func(c *Config) { c.Roster.WindowStart, c.Roster.WindowEnd = 50, 10 }, errSub: "window_end"},
		{name: "bad timezone", mutate: func(c *Config) { c.Checkin.Timezone = "Mars/Olympus" }, errSub: "checkin.timezone"},
		{name: "bad duration", mutate: func(c *Config) { c.Webhook.ProcessTimeout = "soon" }, errSub: "webhook.process_timeout"},
		{name: "negative buffer", mutate: func(c *Config) { n := -1; c.Checkin.BufferDays = &n }, errSub: "BufferDays"},
		{name: "bad level", mutate: func(c *Config) { c.Logging.Level = "loud" }, errSub: "logging.level"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := base()
			tt.mutate(c)
			err := Validate(c)
			if tt.errSub == "" {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.errSub) {
				t.Fatalf("error = %v, want substring %q", err, tt.errSub)
			}
		})
	}
}

func TestManagerLoad(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(path, []byte(sampleYAML), 0o600); err != nil {
		t.Fatal(err)
	}
	m := NewManager(path)
	cfg, err := m.Load()
	if err != nil {
		t.Fatalf("Load error: %v", err)
	}
	if m.Get() != cfg {
		t.Fatal("Get() should return the committed config")
	}
}

func TestDiffSeparatesLiveAndRestartSections(t *testing.T) {
	oldCfg, _ := Decode("c.yaml", []byte(sampleYAML))
	newCfg, _ := Decode("c.yaml", []byte(sampleYAML))
	newCfg.Checkin.Schedule = "@daily"
	newCfg.Roster.WindowEnd = 200

	ch := Diff(oldCfg, newCfg)
	if !containsStr(ch.Sections, "checkin") || !containsStr(ch.Sections, "roster") {
		t.Fatalf("sections = %v", ch.Sections)
	}
	if containsStr(ch.Restart, "checkin") || !containsStr(ch.Restart, "roster") {
		t.Fatalf("restart = %v", ch.Restart)
	}
}

func containsStr(ss []string, s string) bool {
	for _, v := range ss {
		if v == s {
			return true
		}
	}
	return false
}
