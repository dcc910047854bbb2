package cli

import (
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"checkinbot/internal/config"
	"checkinbot/internal/task/scheduler"
)

// CheckConfigCmd validates the config file and prints the effective settings.
func CheckConfigCmd(cfgPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "check-config",
		Short: "Validate the config file",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.NewManager(*cfgPath).Load()
			if err != nil {
				fmt.Fprintf(cmd.ErrOrStderr(), "%s %s: %v\n", color.New(color.FgRed).Sprint("INVALID"), *cfgPath, err)
				return err
			}
			if _, err := scheduler.ParseSchedule(cfg.Checkin.ScheduleOrDefault()); err != nil {
				return fmt.Errorf("checkin.schedule: %w", err)
			}
			printConfigSummary(cmd, *cfgPath, cfg)
			return nil
		},
	}
}

func printConfigSummary(cmd *cobra.Command, path string, cfg *config.Config) {
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "%s %s\n", color.New(color.FgGreen).Sprint("OK"), path)

	tz := cfg.Checkin.Timezone
	if tz == "" {
		tz = config.DefaultTimezone
	}
	start, end := cfg.Roster.Window()
	fmt.Fprintf(out, "  mode:      %s\n", cfg.Telegram.ModeOrDefault())
	if cfg.Telegram.ModeOrDefault() == "webhook" {
		fmt.Fprintf(out, "  webhook:   %s%s\n", cfg.Webhook.ListenOrDefault(), cfg.Webhook.PathOrDefault())
	}
	fmt.Fprintf(out, "  chat:      %d\n", cfg.Telegram.ChatID)
	fmt.Fprintf(out, "  schedule:  %s (%s)\n", cfg.Checkin.ScheduleOrDefault(), tz)
	fmt.Fprintf(out, "  buffer:    %d days\n", cfg.Checkin.Buffer())
	fmt.Fprintf(out, "  roster:    %s rows %d..%d\n", cfg.Roster.Driver, start, end)
	storage := "disabled"
	if cfg.Storage != nil && cfg.Storage.Driver != "" && cfg.Storage.Driver != "none" {
		storage = cfg.Storage.Driver
	}
	fmt.Fprintf(out, "  storage:   %s\n", storage)
}
