package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"checkinbot/internal/app"
	"checkinbot/internal/checkin"
)

// RemindCmd sends one check-in now, outside the schedule.
func RemindCmd(cfgPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "remind",
		Short: "Send the check-in message once and exit",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := app.New(cmd.Context(), *cfgPath)
			if err != nil {
				return err
			}
			defer a.Close()

			res, err := a.Remind(cmd.Context())
			if err != nil {
				return fmt.Errorf("remind (%s): %w", checkin.KindOf(err), err)
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "processed %d rows, %d due, message sent: %v\n", res.ContactsProcessed, res.ContactsDue, res.MessageSent)
			if res.MessageSent {
				fmt.Fprintf(out, "message id %d in chat %d\n", res.Message.MessageID, res.Message.ChatID)
			}
			return nil
		},
	}
}
