package main

import (
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/civica-research/arenactl/internal/coverage"
	"github.com/civica-research/arenactl/internal/model"
	"github.com/civica-research/arenactl/internal/pricing"
)

var coverageCmd = &cobra.Command{
	Use:   "coverage",
	Short: "Check what has already been collected",
}

var coverageCheckCmd = &cobra.Command{
	Use:   "check",
	Short: "Report uncovered gaps in a requested date range",
	Long:  "Computes which parts of the requested range still need collecting; an empty result means the collection call can be skipped.",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		platform, _ := cmd.Flags().GetString("platform")
		fromStr, _ := cmd.Flags().GetString("from")
		toStr, _ := cmd.Flags().GetString("to")
		terms, _ := cmd.Flags().GetStringSlice("term")
		actors, _ := cmd.Flags().GetStringSlice("actor")
		tier, _ := cmd.Flags().GetString("tier")
		estimate, _ := cmd.Flags().GetBool("estimate")

		if platform == "" {
			return eris.New("--platform is required")
		}
		from, to, err := parseDateRange(fromStr, toStr)
		if err != nil {
			return err
		}

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		maxAge := time.Duration(cfg.Coverage.MaxAttemptAgeDays) * 24 * time.Hour
		gaps, err := coverage.New(st, maxAge).CheckExistingCoverage(ctx, platform, from, to, terms, actors)
		if err != nil {
			return eris.Wrap(err, "coverage check")
		}

		if len(gaps) == 0 {
			fmt.Println("fully covered; nothing to collect")
			return nil
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "GAP FROM\tGAP TO")
		for _, g := range gaps {
			fmt.Fprintf(w, "%s\t%s\n", g.From.Format("2006-01-02"), g.To.Format("2006-01-02"))
		}
		w.Flush() //nolint:errcheck

		if estimate {
			rates, err := pricing.LoadRates(cfg.Pricing.RatesFile)
			if err != nil {
				return err
			}
			total := pricing.NewEstimator(rates).Gaps(platform, model.Tier(tier), gaps)
			fmt.Printf("estimated cost to fill: %.2f credits\n", total)
		}
		return nil
	},
}

func init() {
	coverageCheckCmd.Flags().String("platform", "", "platform")
	coverageCheckCmd.Flags().String("from", "", "range start (YYYY-MM-DD)")
	coverageCheckCmd.Flags().String("to", "", "range end (YYYY-MM-DD)")
	coverageCheckCmd.Flags().StringSlice("term", nil, "search term (repeatable)")
	coverageCheckCmd.Flags().StringSlice("actor", nil, "actor id (repeatable)")
	coverageCheckCmd.Flags().String("tier", string(model.TierMedium), "tier for cost estimation")
	coverageCheckCmd.Flags().Bool("estimate", false, "estimate credits needed to fill the gaps")

	coverageCmd.AddCommand(coverageCheckCmd)
	rootCmd.AddCommand(coverageCmd)
}
