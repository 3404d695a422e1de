package main

import (
	"fmt"
	"io"
	"os"

	"github.com/adaptive-reader/backend/internal/chunker"
	"github.com/spf13/cobra"
)

var chunkCmd = &cobra.Command{
	Use:   "chunk [file]",
	Short: "Split a text file into reading chunks with the local chunker",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		size, _ := cmd.Flags().GetInt("size")

		var in io.Reader = cmd.InOrStdin()
		if len(args) == 1 {
			f, err := os.Open(args[0])
			if err != nil {
				return err
			}
			defer f.Close()
			in = f
		}
		data, err := io.ReadAll(in)
		if err != nil {
			return err
		}

		chunks, err := chunker.NewParagraphChunker(size).Chunk(cmd.Context(), string(data))
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		for i, c := range chunks {
			fmt.Fprintf(out, "── chunk %d (%d words, bytes %d-%d) ──\n%s\n\n", i+1, c.TokenCount, c.StartIndex, c.EndIndex, c.Text)
		}
		return nil
	},
}

func init() {
	chunkCmd.Flags().Int("size", chunker.DefaultChunkSize, "Target words per chunk")
}
