package main

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/civica-research/arenactl/internal/monitoring"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show control-plane health",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		ageHours, _ := cmd.Flags().GetInt("reservation-age-hours")

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		snap, err := monitoring.NewCollector(st).Collect(ctx, ageHours)
		if err != nil {
			return eris.Wrap(err, "status")
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintf(w, "outstanding reservations\t%d\n", snap.OutstandingReservations)
		fmt.Fprintf(w, "outstanding credits\t%.2f\n", snap.OutstandingCredits)
		fmt.Fprintf(w, "stale attempts\t%d\n", snap.StaleAttempts)
		fmt.Fprintf(w, "duplicate records\t%d\n", snap.DuplicateRecords)
		return w.Flush()
	},
}

func init() {
	statusCmd.Flags().Int("reservation-age-hours", 24, "reservation age before counting as outstanding")
	rootCmd.AddCommand(statusCmd)
}
