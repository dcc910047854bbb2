package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	logx "checkinbot/pkg/logx"
)

var validate = validator.New(validator.WithRequiredStructEnabled())

// Validate checks struct tags plus the cross-field rules tags cannot express.
func Validate(cfg *Config) error {
	if cfg == nil {
		return errors.New("config is nil")
	}
	if err := validate.Struct(cfg); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			fe := verrs[0]
			return fmt.Errorf("invalid config: %s failed %q", fe.Namespace(), fe.Tag())
		}
		return fmt.Errorf("invalid config: %w", err)
	}

	switch cfg.Roster.Driver {
	case "sheets":
		if cfg.Roster.Sheets == nil {
			return errors.New("roster.sheets is required for the sheets driver")
		}
	case "sqlite":
		if cfg.Roster.SQLite == nil {
			return errors.New("roster.sqlite is required for the sqlite driver")
		}
	}
	if cfg.Roster.WindowStart > 0 && cfg.Roster.WindowEnd > 0 && cfg.Roster.WindowEnd < cfg.Roster.WindowStart {
		return fmt.Errorf("roster.window_end (%d) must be >= window_start (%d)", cfg.Roster.WindowEnd, cfg.Roster.WindowStart)
	}

	if tz := strings.TrimSpace(cfg.Checkin.Timezone); tz != "" {
		if _, err := time.LoadLocation(tz); err != nil {
			return fmt.Errorf("checkin.timezone: %w", err)
		}
	}
	if !logx.ValidLevel(cfg.Logging.Level) {
		return fmt.Errorf("logging.level: unknown level %q", cfg.Logging.Level)
	}

	durations := []struct{ path, raw string }{
		{"telegram.poll_timeout", cfg.Telegram.PollTimeout},
		{"webhook.process_timeout", cfg.Webhook.ProcessTimeout},
		{"checkin.run_timeout", cfg.Checkin.RunTimeout},
	}
	if cfg.Roster.SQLite != nil {
		durations = append(durations, struct{ path, raw string }{"roster.sqlite.busy_timeout", cfg.Roster.SQLite.BusyTimeout})
	}
	if cfg.Storage != nil {
		durations = append(durations,
			struct{ path, raw string }{"storage.busy_timeout", cfg.Storage.BusyTimeout},
			struct{ path, raw string }{"storage.dedup_ttl", cfg.Storage.DedupTTL},
		)
	}
	for _, d := range durations {
		if _, err := ParseDurationField(d.path, d.raw); err != nil {
			return err
		}
	}
	return nil
}
