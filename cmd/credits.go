package main

import (
	"fmt"
	"io"
	"os"
	"text/tabwriter"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/civica-research/arenactl/internal/ledger"
	"github.com/civica-research/arenactl/internal/model"
	"github.com/civica-research/arenactl/internal/pricing"
	"github.com/civica-research/arenactl/internal/store"
)

var creditsCmd = &cobra.Command{
	Use:   "credits",
	Short: "Inspect and operate the credit ledger",
	Long:  "Commands for balances, allocations, reservations, settlements, and refunds.",
}

// entryFromFlags builds the ledger entry shared by reserve/settle/refund.
func entryFromFlags(cmd *cobra.Command) (ledger.Entry, error) {
	user, _ := cmd.Flags().GetString("user")
	run, _ := cmd.Flags().GetString("run")
	arena, _ := cmd.Flags().GetString("arena")
	platform, _ := cmd.Flags().GetString("platform")
	tier, _ := cmd.Flags().GetString("tier")

	if user == "" || run == "" || platform == "" {
		return ledger.Entry{}, eris.New("--user, --run, and --platform are required")
	}
	if arena == "" {
		arena = string(model.ArenaOf(platform))
	}

	return ledger.Entry{
		UserID:   user,
		RunID:    run,
		Arena:    arena,
		Platform: platform,
		Tier:     model.Tier(tier),
	}, nil
}

func addEntryFlags(cmd *cobra.Command) {
	cmd.Flags().String("user", "", "user id")
	cmd.Flags().String("run", "", "collection run id")
	cmd.Flags().String("arena", "", "arena (derived from platform if omitted)")
	cmd.Flags().String("platform", "", "platform")
	cmd.Flags().String("tier", string(model.TierMedium), "service tier")
}

// -- credits balance --

var creditsBalanceCmd = &cobra.Command{
	Use:   "balance <user-id>",
	Short: "Show a user's credit balance",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		balance, err := ledger.New(st).GetBalance(ctx, args[0])
		if err != nil {
			return eris.Wrap(err, "credits balance")
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintf(w, "allocated\t%.2f\n", balance.Allocated)
		fmt.Fprintf(w, "reserved\t%.2f\n", balance.Reserved)
		fmt.Fprintf(w, "settled\t%.2f\n", balance.Settled)
		fmt.Fprintf(w, "refunded\t%.2f\n", balance.Refunded)
		fmt.Fprintf(w, "available\t%.2f\n", balance.Available)
		return w.Flush()
	},
}

// -- credits allocate --

var creditsAllocateCmd = &cobra.Command{
	Use:   "allocate <user-id> <amount>",
	Short: "Grant credits to a user",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		var amount float64
		if _, err := fmt.Sscanf(args[1], "%f", &amount); err != nil || amount <= 0 {
			return eris.Errorf("invalid amount: %s", args[1])
		}

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		alloc, err := st.CreateAllocation(ctx, args[0], amount)
		if err != nil {
			return eris.Wrap(err, "credits allocate")
		}

		fmt.Printf("allocated %.2f credits to %s (%s)\n", alloc.Amount, alloc.UserID, alloc.ID)
		return nil
	},
}

// -- credits reserve --

var creditsReserveCmd = &cobra.Command{
	Use:   "reserve",
	Short: "Reserve credits ahead of a collection call",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		entry, err := entryFromFlags(cmd)
		if err != nil {
			return err
		}
		amount, _ := cmd.Flags().GetFloat64("amount")

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		id, err := ledger.New(st).Reserve(ctx, entry, amount)
		if err != nil {
			return err
		}

		fmt.Printf("reserved %.2f credits (%s)\n", amount, id)
		return nil
	},
}

// -- credits settle --

var creditsSettleCmd = &cobra.Command{
	Use:   "settle",
	Short: "Settle a reservation against actual cost",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		entry, err := entryFromFlags(cmd)
		if err != nil {
			return err
		}
		actual, _ := cmd.Flags().GetFloat64("actual")

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		result, err := ledger.New(st).Settle(ctx, entry, actual)
		if err != nil {
			return err
		}

		fmt.Printf("settled %.2f credits (%s)\n", actual, result.SettlementID)
		if result.RefundID != "" {
			fmt.Printf("refunded surplus (%s)\n", result.RefundID)
		}
		if result.Overrun > 0 {
			fmt.Printf("warning: settlement exceeded reservation by %.2f\n", result.Overrun)
		}
		return nil
	},
}

// -- credits refund --

var creditsRefundCmd = &cobra.Command{
	Use:   "refund",
	Short: "Refund a failed collection call's reservation",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		entry, err := entryFromFlags(cmd)
		if err != nil {
			return err
		}
		amount, _ := cmd.Flags().GetFloat64("amount")
		reason, _ := cmd.Flags().GetString("reason")

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		id, err := ledger.New(st).Refund(ctx, entry, amount, reason)
		if err != nil {
			return err
		}

		fmt.Printf("refunded %.2f credits (%s)\n", amount, id)
		return nil
	},
}

// -- credits history --

var creditsHistoryCmd = &cobra.Command{
	Use:   "history",
	Short: "List recent ledger transactions",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		user, _ := cmd.Flags().GetString("user")
		run, _ := cmd.Flags().GetString("run")
		kind, _ := cmd.Flags().GetString("kind")
		limit, _ := cmd.Flags().GetInt("limit")

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		txs, err := ledger.New(st).History(ctx, store.TransactionFilter{
			UserID: user,
			RunID:  run,
			Kind:   model.TransactionKind(kind),
			Limit:  limit,
		})
		if err != nil {
			return eris.Wrap(err, "credits history")
		}

		if len(txs) == 0 {
			fmt.Fprintln(os.Stderr, "No transactions found.")
			return nil
		}

		formatTransactions(os.Stdout, txs)
		return nil
	},
}

func formatTransactions(out io.Writer, txs []model.CreditTransaction) {
	w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "CREATED\tKIND\tAMOUNT\tUSER\tRUN\tPLATFORM\tTIER")
	for _, t := range txs {
		fmt.Fprintf(w, "%s\t%s\t%.2f\t%s\t%s\t%s\t%s\n",
			t.CreatedAt.Format(time.RFC3339), t.Kind, t.Amount,
			t.UserID, t.RunID, t.Platform, t.Tier)
	}
	w.Flush() //nolint:errcheck
}

// -- credits estimate --

var creditsEstimateCmd = &cobra.Command{
	Use:   "estimate",
	Short: "Estimate the credit cost of a collection call",
	RunE: func(cmd *cobra.Command, args []string) error {
		platform, _ := cmd.Flags().GetString("platform")
		tier, _ := cmd.Flags().GetString("tier")
		fromStr, _ := cmd.Flags().GetString("from")
		toStr, _ := cmd.Flags().GetString("to")

		if platform == "" {
			return eris.New("--platform is required")
		}
		from, to, err := parseDateRange(fromStr, toStr)
		if err != nil {
			return err
		}

		rates, err := pricing.LoadRates(cfg.Pricing.RatesFile)
		if err != nil {
			return err
		}

		estimate := pricing.NewEstimator(rates).Call(platform, model.Tier(tier), from, to)
		fmt.Printf("%.2f credits\n", estimate)
		return nil
	},
}

func parseDateRange(fromStr, toStr string) (time.Time, time.Time, error) {
	from, err := time.Parse("2006-01-02", fromStr)
	if err != nil {
		return time.Time{}, time.Time{}, eris.Errorf("invalid --from date: %s", fromStr)
	}
	to, err := time.Parse("2006-01-02", toStr)
	if err != nil {
		return time.Time{}, time.Time{}, eris.Errorf("invalid --to date: %s", toStr)
	}
	if to.Before(from) {
		return time.Time{}, time.Time{}, eris.New("--to must not precede --from")
	}
	return from.UTC(), to.UTC(), nil
}

func init() {
	addEntryFlags(creditsReserveCmd)
	creditsReserveCmd.Flags().Float64("amount", 0, "credits to reserve")

	addEntryFlags(creditsSettleCmd)
	creditsSettleCmd.Flags().Float64("actual", 0, "actual credits consumed")

	addEntryFlags(creditsRefundCmd)
	creditsRefundCmd.Flags().Float64("amount", 0, "credits to refund")
	creditsRefundCmd.Flags().String("reason", "", "refund description")

	creditsHistoryCmd.Flags().String("user", "", "filter by user id")
	creditsHistoryCmd.Flags().String("run", "", "filter by run id")
	creditsHistoryCmd.Flags().String("kind", "", "filter by transaction kind")
	creditsHistoryCmd.Flags().Int("limit", 50, "max transactions to list")

	creditsEstimateCmd.Flags().String("platform", "", "platform")
	creditsEstimateCmd.Flags().String("tier", string(model.TierMedium), "service tier")
	creditsEstimateCmd.Flags().String("from", "", "range start (YYYY-MM-DD)")
	creditsEstimateCmd.Flags().String("to", "", "range end (YYYY-MM-DD)")

	creditsCmd.AddCommand(creditsBalanceCmd, creditsAllocateCmd, creditsReserveCmd,
		creditsSettleCmd, creditsRefundCmd, creditsHistoryCmd, creditsEstimateCmd)
	rootCmd.AddCommand(creditsCmd)
}
