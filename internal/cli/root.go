// Package cli holds the checkinbot cobra commands.
package cli

import (
	"github.com/spf13/cobra"
)

const defaultConfigPath = "./config.yaml"

// RootCmd builds the command tree. Subcommands share the --config flag.
func RootCmd(version string) *cobra.Command {
	var cfgPath string

	root := &cobra.Command{
		Use:     "checkinbot",
		Short:   "Weekly relationship check-in bot for Telegram",
		Version: version,
		Long: `checkinbot reads a roster of contacts, posts a weekly check-in listing the
ones due for contact, and records the date when a contact button is pressed.`,
		SilenceUsage: true,
	}
	root.PersistentFlags().StringVarP(&cfgPath, "config", "c", defaultConfigPath, "path to config file (json or yaml)")

	root.AddCommand(ServeCmd(&cfgPath))
	root.AddCommand(RemindCmd(&cfgPath))
	root.AddCommand(DueCmd(&cfgPath))
	root.AddCommand(CheckConfigCmd(&cfgPath))
	return root
}
