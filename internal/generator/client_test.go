package generator

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewClient(t *testing.T) {
	ctx := context.Background()

	c, model, err := NewClient(ctx, Options{})
	require.NoError(t, err)
	assert.IsType(t, &MockClient{}, c)
	assert.Equal(t, "mock", model)

	c, model, err = NewClient(ctx, Options{Provider: "CLI", CLIPath: "/usr/bin/claude"})
	require.NoError(t, err)
	assert.IsType(t, &CLIClient{}, c)
	assert.Equal(t, "claude-cli", model)

	_, _, err = NewClient(ctx, Options{Provider: "anthropic"})
	assert.Error(t, err)
	_, _, err = NewClient(ctx, Options{Provider: "openai"})
	assert.Error(t, err)
	_, _, err = NewClient(ctx, Options{Provider: "gemini"})
	assert.Error(t, err)
	_, _, err = NewClient(ctx, Options{Provider: "carrier-pigeon"})
	assert.Error(t, err)
}

func TestNewClient_OpenAIModelOverride(t *testing.T) {
	c, model, err := NewClient(context.Background(), Options{Provider: "openai", APIKey: "k", Model: "gpt-4o"})
	require.NoError(t, err)
	assert.IsType(t, &OpenAIClient{}, c)
	assert.Equal(t, "gpt-4o", model)
}

func TestWithRetry_SingleAttempt(t *testing.T) {
	calls := 0
	boom := errors.New("boom")
	_, err := withRetry(context.Background(), "test", 1, func() (string, error) {
		calls++
		return "", boom
	})
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, 1, calls)
}

func TestWithRetry_StopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	calls := 0
	_, err := withRetry(ctx, "test", 3, func() (int, error) {
		calls++
		cancel()
		return 0, errors.New("transient")
	})
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, calls)
}

func TestWithRetry_Success(t *testing.T) {
	out, err := withRetry(context.Background(), "test", 2, func() (string, error) {
		return "ok", nil
	})
	require.NoError(t, err)
	assert.Equal(t, "ok", out)
}
