package main

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func run(t *testing.T, stdin string, args ...string) string {
	t.Helper()
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetIn(strings.NewReader(stdin))
	rootCmd.SetArgs(args)
	require.NoError(t, rootCmd.Execute())
	return out.String()
}

func TestLevelCommand(t *testing.T) {
	assert.Equal(t, "Proficient Reader\n", run(t, "", "level", "1050"))
}

func TestLevelCommand_RejectsText(t *testing.T) {
	rootCmd.SetArgs([]string{"level", "high"})
	assert.Error(t, rootCmd.Execute())
}

func TestDeltaCommand_NeutralAtLevel(t *testing.T) {
	out := run(t, "", "delta", "--rating", "1000", "--difficulty", "1000", "--performance", "0")
	assert.Contains(t, out, "delta:          +0")
	assert.Contains(t, out, "new rating:     1000 (Proficient Reader)")
}

func TestChunkCommand(t *testing.T) {
	out := run(t, "First paragraph here.\n\nSecond paragraph here.", "chunk", "--size", "3")
	assert.Contains(t, out, "chunk 1")
	assert.Contains(t, out, "chunk 2")
	assert.Contains(t, out, "Second paragraph here.")
}
