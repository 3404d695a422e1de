package generator

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strings"
)

// CLIClient runs each request through a local claude-compatible CLI, one
// process per call, prompt on stdin.
type CLIClient struct {
	path  string
	model string
}

func NewCLIClient(path, model string) *CLIClient {
	return &CLIClient{path: path, model: model}
}

func (c *CLIClient) args(req Request) []string {
	args := []string{"--print", "--output-format", "text", "--max-turns", "1"}
	if c.model != "" && c.model != defaultModels[ProviderCLI] {
		args = append(args, "--model", c.model)
	}
	if req.System != "" {
		args = append(args, "--system-prompt", req.System)
	}
	return args
}

func (c *CLIClient) Generate(ctx context.Context, req Request) (*LLMResponse, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, c.path, c.args(req)...)
	cmd.Stdin = strings.NewReader(req.Prompt)
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return nil, fmt.Errorf("%s: %w: %s", c.path, err, truncate(strings.TrimSpace(stderr.String()), 200))
	}

	content := strings.TrimSpace(stdout.String())
	if content == "" {
		return nil, fmt.Errorf("%s returned empty response", c.path)
	}
	// The CLI reports no usage; estimate at four bytes per token.
	return &LLMResponse{
		Content:      content,
		PromptTokens: (len(req.System) + len(req.Prompt)) / 4,
		OutputTokens: len(content) / 4,
	}, nil
}
