package main

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/civica-research/arenactl/internal/model"
)

var importCmd = &cobra.Command{
	Use:   "import <records.jsonl>",
	Short: "Bulk-load content records from a JSONL file",
	Long:  "Reads one content record per line and bulk-inserts them; records without an id are assigned a fresh ULID. Intended for backfills and adapter-output replays.",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		batchSize, _ := cmd.Flags().GetInt("batch-size")

		f, err := os.Open(args[0])
		if err != nil {
			return eris.Wrapf(err, "open %s", args[0])
		}
		defer f.Close() //nolint:errcheck

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		var batch []model.ContentRecord
		var total, lineNo int64

		scanner := bufio.NewScanner(f)
		scanner.Buffer(make([]byte, 0, 1024*1024), 1024*1024)
		for scanner.Scan() {
			lineNo++
			line := scanner.Bytes()
			if len(line) == 0 {
				continue
			}

			var rec model.ContentRecord
			if err := json.Unmarshal(line, &rec); err != nil {
				return eris.Wrapf(err, "parse line %d", lineNo)
			}
			if rec.Platform == "" {
				return eris.Errorf("line %d: platform is required", lineNo)
			}
			if rec.ID == "" {
				rec.ID = model.NewRecordID(time.Now())
			}
			if rec.Arena == "" {
				rec.Arena = model.ArenaOf(rec.Platform)
			}

			batch = append(batch, rec)
			if len(batch) >= batchSize {
				n, err := st.InsertContentRecords(ctx, batch)
				if err != nil {
					return eris.Wrap(err, "import batch")
				}
				total += n
				batch = batch[:0]
			}
		}
		if err := scanner.Err(); err != nil {
			return eris.Wrap(err, "read input")
		}

		if len(batch) > 0 {
			n, err := st.InsertContentRecords(ctx, batch)
			if err != nil {
				return eris.Wrap(err, "import batch")
			}
			total += n
		}

		zap.L().Info("import complete",
			zap.String("file", args[0]),
			zap.Int64("records", total),
		)
		fmt.Printf("imported %d records\n", total)
		return nil
	},
}

func init() {
	importCmd.Flags().Int("batch-size", 1000, "records per insert batch")
	rootCmd.AddCommand(importCmd)
}
