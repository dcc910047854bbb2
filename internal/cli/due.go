package cli

import (
	"fmt"
	"io"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"checkinbot/internal/app"
	"checkinbot/internal/checkin"
)

// DueCmd prints what the next check-in would contain without sending it.
func DueCmd(cfgPath *string) *cobra.Command {
	var (
		showAll     bool
		showSkipped bool
	)
	cmd := &cobra.Command{
		Use:   "due",
		Short: "List contacts due for a check-in",
		Long: `Read the roster and classify every row the way the scheduled run does.
Nothing is sent and nothing is written.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := app.New(cmd.Context(), *cfgPath, app.WithOffline(), app.WithoutLogging())
			if err != nil {
				return err
			}
			defer a.Close()

			r := a.Reminder()
			cls, rows, err := r.Preview(cmd.Context())
			if err != nil {
				return err
			}
			next, _ := a.NextRuns(1)
			renderDue(cmd.OutOrStdout(), dueReport{
				Today:       r.Today(),
				Buffer:      r.Config().BufferDays,
				Rows:        rows,
				Cls:         cls,
				Next:        next,
				ShowAll:     showAll,
				ShowSkipped: showSkipped,
			})
			return nil
		},
	}
	cmd.Flags().BoolVarP(&showAll, "all", "a", false, "also list contacts that are on track")
	cmd.Flags().BoolVar(&showSkipped, "skipped", false, "list rows skipped as malformed")
	return cmd
}

type dueReport struct {
	Today       time.Time
	Buffer      int
	Rows        int
	Cls         checkin.Classification
	Next        []time.Time
	ShowAll     bool
	ShowSkipped bool
}

var (
	overdueColor = color.New(color.FgRed, color.Bold)
	soonColor    = color.New(color.FgYellow)
	okColor      = color.New(color.FgGreen)
	dimColor     = color.New(color.Faint)
)

func renderDue(w io.Writer, r dueReport) {
	fmt.Fprintf(w, "Today %s, buffer %d days, %d rows read\n\n", r.Today.Format(checkin.DateLayout), r.Buffer, r.Rows)

	if len(r.Cls.Due) == 0 {
		fmt.Fprintln(w, okColor.Sprint("Nobody is due."))
	} else {
		fmt.Fprintf(w, "Due (%d):\n", len(r.Cls.Due))
		for _, a := range r.Cls.Due {
			c := soonColor
			if a.OverdueDays > 0 {
				c = overdueColor
			}
			fmt.Fprintf(w, "  %s %-24s %-10s last %s  %s\n",
				c.Sprint("●"), a.Name, a.Type, a.LastContact.Format(checkin.DateLayout), c.Sprint(a.Status()))
		}
	}

	if r.ShowAll && len(r.Cls.OnTrack) > 0 {
		fmt.Fprintf(w, "\nOn track (%d):\n", len(r.Cls.OnTrack))
		for _, a := range r.Cls.OnTrack {
			fmt.Fprintf(w, "  %s %-24s %-10s last %s  %s\n",
				okColor.Sprint("●"), a.Name, a.Type, a.LastContact.Format(checkin.DateLayout), a.Status())
		}
	}

	if n := len(r.Cls.Skipped); n > 0 {
		if r.ShowSkipped {
			fmt.Fprintf(w, "\nSkipped (%d):\n", n)
			for _, s := range r.Cls.Skipped {
				fmt.Fprintf(w, "  %s row %d %q: %s\n", dimColor.Sprint("○"), int(s.Row.Handle), s.Row.Name, s.Reason)
			}
		} else {
			fmt.Fprintln(w, dimColor.Sprintf("\n%d malformed rows skipped (--skipped to list)", n))
		}
	}

	if len(r.Next) > 0 {
		fmt.Fprintf(w, "\nNext check-in: %s\n", r.Next[0].Format("Mon 2006-01-02 15:04 MST"))
	}
}
