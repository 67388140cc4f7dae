package main

import (
	"fmt"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/civica-research/arenactl/internal/ledger"
)

// reconcileCmd sweeps reservations whose task died before settling and
// returns the leaked credits. A reservation with no matching settlement or
// refund would otherwise stay outstanding forever.
var reconcileCmd = &cobra.Command{
	Use:   "reconcile",
	Short: "Refund reservations leaked by dead collection tasks",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		minAge, _ := cmd.Flags().GetInt("min-age-hours")
		dryRun, _ := cmd.Flags().GetBool("dry-run")
		if minAge <= 0 {
			minAge = cfg.Reconcile.MinAgeHours
		}

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		cutoff := time.Now().UTC().Add(-time.Duration(minAge) * time.Hour)
		outstanding, err := st.OutstandingReservations(ctx, cutoff)
		if err != nil {
			return eris.Wrap(err, "reconcile: list outstanding")
		}

		if len(outstanding) == 0 {
			fmt.Println("no leaked reservations")
			return nil
		}

		lg := ledger.New(st)
		limiter := rate.NewLimiter(rate.Limit(cfg.Reconcile.RatePerSecond), 1)

		var refunded int
		var credits float64
		for _, r := range outstanding {
			if dryRun {
				fmt.Printf("would refund %.2f credits: user=%s run=%s platform=%s (reserved %s)\n",
					r.Outstanding, r.UserID, r.RunID, r.Platform, r.OldestAt.Format(time.RFC3339))
				continue
			}

			if err := limiter.Wait(ctx); err != nil {
				return err
			}

			entry := ledger.Entry{
				UserID:   r.UserID,
				RunID:    r.RunID,
				Arena:    r.Arena,
				Platform: r.Platform,
				Tier:     r.Tier,
			}
			if _, err := lg.Refund(ctx, entry, r.Outstanding, "reconciliation sweep"); err != nil {
				return eris.Wrapf(err, "reconcile: refund run %s", r.RunID)
			}
			refunded++
			credits += r.Outstanding

			zap.L().Info("leaked reservation refunded",
				zap.String("user_id", r.UserID),
				zap.String("run_id", r.RunID),
				zap.String("platform", r.Platform),
				zap.Float64("credits", r.Outstanding),
			)
		}

		if !dryRun {
			fmt.Printf("refunded %d reservations (%.2f credits)\n", refunded, credits)
		}
		return nil
	},
}

func init() {
	reconcileCmd.Flags().Int("min-age-hours", 0, "minimum reservation age (default from config)")
	reconcileCmd.Flags().Bool("dry-run", false, "report without refunding")
	rootCmd.AddCommand(reconcileCmd)
}
