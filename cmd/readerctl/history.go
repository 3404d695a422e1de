package main

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/adaptive-reader/backend/internal/models"
	"github.com/adaptive-reader/backend/internal/progress"
	"github.com/spf13/cobra"
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Show or export a reader's daily progress",
	RunE: func(cmd *cobra.Command, args []string) error {
		readerID, _ := cmd.Flags().GetInt64("reader")
		days, _ := cmd.Flags().GetInt("days")
		xlsxPath, _ := cmd.Flags().GetString("xlsx")
		if readerID <= 0 {
			return fmt.Errorf("--reader is required")
		}

		db, err := openDB(cmd.Context(), cmd)
		if err != nil {
			return err
		}
		defer db.Close()

		ledger := progress.NewLedger(progress.NewPostgresStore(db))
		records, err := ledger.History(cmd.Context(), readerID, days)
		if err != nil {
			return err
		}

		if xlsxPath != "" {
			f, err := os.Create(xlsxPath)
			if err != nil {
				return err
			}
			defer f.Close()
			if err := progress.WriteXLSX(f, records); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "wrote %d day(s) to %s\n", len(records), xlsxPath)
			return nil
		}

		printHistory(cmd, records)
		return nil
	},
}

func printHistory(cmd *cobra.Command, records []models.ProgressRecord) {
	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "DATE\tRATING\tSESSIONS\tCHUNKS\tAVG PERF\tAVG DIFF")
	for _, r := range records {
		fmt.Fprintf(w, "%s\t%d\t%d\t%d\t%s\t%s\n",
			r.Date.Format("2006-01-02"), r.Rating, r.SessionsCompleted, r.ChunksCompleted,
			optional(r.AvgPerformance), optional(r.AvgDifficulty))
	}
	w.Flush()
}

func optional(f *float64) string {
	if f == nil {
		return "-"
	}
	return fmt.Sprintf("%.1f", *f)
}

func init() {
	historyCmd.Flags().Int64("reader", 0, "Reader ID")
	historyCmd.Flags().Int("days", 30, "Number of days to include")
	historyCmd.Flags().String("xlsx", "", "Write the history to this spreadsheet instead of printing it")
}
