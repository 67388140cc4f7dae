package main

import (
	"fmt"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/civica-research/arenactl/internal/dedup"
	"github.com/civica-research/arenactl/internal/store"
)

var dedupCmd = &cobra.Command{
	Use:   "dedup",
	Short: "Find and mark cross-arena duplicate records",
}

var dedupRunCmd = &cobra.Command{
	Use:   "run <run-id>",
	Short: "Run a dedup pass over a collection run",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		summary, err := dedup.New(st, nil).RunDedupPass(ctx, args[0])
		if err != nil {
			return eris.Wrap(err, "dedup run")
		}

		fmt.Printf("url groups: %d\nhash groups: %d\nmarked: %d\n",
			summary.URLGroups, summary.HashGroups, summary.TotalMarked)
		return nil
	},
}

var dedupPreviewCmd = &cobra.Command{
	Use:   "preview <run-id>",
	Short: "List duplicate groups without marking anything",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		engine := dedup.New(st, nil)
		scope := store.RecordScope{RunID: args[0]}

		urlGroups, err := engine.FindURLDuplicates(ctx, scope)
		if err != nil {
			return eris.Wrap(err, "dedup preview")
		}
		hashGroups, err := engine.FindHashDuplicates(ctx, scope)
		if err != nil {
			return eris.Wrap(err, "dedup preview")
		}

		for _, g := range urlGroups {
			fmt.Printf("url %s (%d records)\n", g.Key, len(g.Records))
			for _, r := range g.Records {
				fmt.Printf("  %s %s/%s\n", r.ID, r.Arena, r.Platform)
			}
		}
		for _, g := range hashGroups {
			fmt.Printf("hash %s (%d records)\n", g.Key, len(g.Records))
			for _, r := range g.Records {
				fmt.Printf("  %s %s/%s\n", r.ID, r.Arena, r.Platform)
			}
		}
		if len(urlGroups)+len(hashGroups) == 0 {
			fmt.Println("no duplicates found")
		}
		return nil
	},
}

func init() {
	dedupCmd.AddCommand(dedupRunCmd, dedupPreviewCmd)
	rootCmd.AddCommand(dedupCmd)
}
