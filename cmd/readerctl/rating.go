package main

import (
	"fmt"
	"strconv"

	"github.com/adaptive-reader/backend/internal/rating"
	"github.com/spf13/cobra"
)

var levelCmd = &cobra.Command{
	Use:   "level <rating>",
	Short: "Print the reading level label for a rating",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		r, err := strconv.ParseFloat(args[0], 64)
		if err != nil {
			return fmt.Errorf("rating must be a number: %w", err)
		}
		fmt.Fprintln(cmd.OutOrStdout(), rating.ReadingLevel(r))
		return nil
	},
}

var deltaCmd = &cobra.Command{
	Use:   "delta",
	Short: "Compute the rating change for one graded chunk",
	RunE: func(cmd *cobra.Command, args []string) error {
		current, _ := cmd.Flags().GetInt("rating")
		difficulty, _ := cmd.Flags().GetFloat64("difficulty")
		performance, _ := cmd.Flags().GetFloat64("performance")
		completed, _ := cmd.Flags().GetInt("completed")

		k := rating.KFactor(float64(current), completed)
		delta := rating.Delta(float64(current), difficulty, performance, k)
		next := rating.Apply(current, delta)

		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "expected score: %.3f\n", rating.ExpectedScore(float64(current), difficulty))
		fmt.Fprintf(out, "k factor:       %.1f\n", k)
		fmt.Fprintf(out, "delta:          %+d\n", next-current)
		fmt.Fprintf(out, "new rating:     %d (%s)\n", next, rating.ReadingLevel(float64(next)))
		return nil
	},
}

func init() {
	deltaCmd.Flags().Int("rating", 1000, "Reader's current rating")
	deltaCmd.Flags().Float64("difficulty", 1000, "Difficulty of the graded chunk")
	deltaCmd.Flags().Float64("performance", 0, "Graded score, -200 to 200")
	deltaCmd.Flags().Int("completed", 0, "Chunks the reader had completed before this one")
}
