package generator

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/anthropics/anthropic-sdk-go/packages/param"
)

// LLMClient is the interface every provider implementation satisfies.
type LLMClient interface {
	Generate(ctx context.Context, req Request) (*LLMResponse, error)
}

// Request is one single-turn completion.
type Request struct {
	System      string
	Prompt      string
	Temperature float64
	MaxTokens   int
}

// LLMResponse holds the raw response content and token usage.
type LLMResponse struct {
	Content      string
	PromptTokens int
	OutputTokens int
}

const (
	ProviderAnthropic = "anthropic"
	ProviderGemini    = "gemini"
	ProviderOpenAI    = "openai"
	ProviderCLI       = "cli"
	ProviderMock      = "mock"
)

// Options selects and configures a provider.
type Options struct {
	Provider    string
	Model       string
	APIKey      string
	BaseURL     string
	CLIPath     string
	MaxAttempts int
}

var defaultModels = map[string]string{
	ProviderAnthropic: "claude-opus-4-5-20251101",
	ProviderGemini:    "gemini-2.0-flash",
	ProviderOpenAI:    "gpt-4o-mini",
	ProviderCLI:       "claude-cli",
	ProviderMock:      "mock",
}

// NewClient builds the configured provider and returns it with the
// resolved model name.
func NewClient(ctx context.Context, opts Options) (LLMClient, string, error) {
	provider := strings.ToLower(strings.TrimSpace(opts.Provider))
	if provider == "" {
		provider = ProviderMock
	}
	model := opts.Model
	if model == "" {
		model = defaultModels[provider]
	}
	attempts := opts.MaxAttempts
	if attempts < 1 {
		attempts = 1
	}

	switch provider {
	case ProviderAnthropic:
		if opts.APIKey == "" {
			return nil, "", fmt.Errorf("anthropic API key is required")
		}
		log.Println("[llm] using Anthropic API:", model)
		return NewAPIClient(opts.APIKey, model, attempts), model, nil
	case ProviderGemini:
		c, err := NewGeminiClient(ctx, opts.APIKey, model, attempts)
		if err != nil {
			return nil, "", err
		}
		log.Println("[llm] using Gemini API:", model)
		return c, model, nil
	case ProviderOpenAI:
		c, err := NewOpenAIClient(opts.APIKey, opts.BaseURL, model, attempts)
		if err != nil {
			return nil, "", err
		}
		log.Println("[llm] using OpenAI API:", model)
		return c, model, nil
	case ProviderCLI:
		path := opts.CLIPath
		if path == "" {
			path = "claude"
		}
		log.Println("[llm] using Claude CLI (local plan)")
		return NewCLIClient(path, model), model, nil
	case ProviderMock:
		log.Println("[llm] using mock responses")
		return NewMockClient(), model, nil
	default:
		return nil, "", fmt.Errorf("unknown llm provider %q", opts.Provider)
	}
}

// withRetry runs call up to attempts times with exponential backoff.
func withRetry[T any](ctx context.Context, provider string, attempts int, call func() (T, error)) (T, error) {
	var zero T
	var lastErr error
	for attempt := 0; attempt < attempts; attempt++ {
		if attempt > 0 {
			sleepDuration := time.Duration(1<<uint(attempt)) * time.Second
			log.Printf("[llm] retrying %s call in %v (attempt %d)", provider, sleepDuration, attempt+1)
			select {
			case <-ctx.Done():
				return zero, ctx.Err()
			case <-time.After(sleepDuration):
			}
		}

		out, err := call()
		if err == nil {
			return out, nil
		}
		lastErr = err
		log.Printf("WARN: [llm] %s attempt %d failed: %v", provider, attempt+1, err)
	}
	if attempts == 1 {
		return zero, fmt.Errorf("%s API: %w", provider, lastErr)
	}
	return zero, fmt.Errorf("%s API failed after %d attempts: %w", provider, attempts, lastErr)
}

func maxTokens(req Request) int {
	if req.MaxTokens > 0 {
		return req.MaxTokens
	}
	return 1024
}

// ── APIClient: Anthropic SDK ──────────────────────────────

type APIClient struct {
	client   *anthropic.Client
	model    string
	attempts int
}

func NewAPIClient(apiKey, model string, attempts int) *APIClient {
	client := anthropic.NewClient(
		option.WithAPIKey(apiKey),
		option.WithMaxRetries(0),
	)
	return &APIClient{client: &client, model: model, attempts: attempts}
}

func (c *APIClient) Generate(ctx context.Context, req Request) (*LLMResponse, error) {
	params := anthropic.MessageNewParams{
		Model:       anthropic.Model(c.model),
		MaxTokens:   int64(maxTokens(req)),
		Temperature: param.NewOpt(req.Temperature),
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(req.Prompt)),
		},
	}
	if req.System != "" {
		params.System = []anthropic.TextBlockParam{{Text: req.System}}
	}

	message, err := withRetry(ctx, ProviderAnthropic, c.attempts, func() (*anthropic.Message, error) {
		return c.client.Messages.New(ctx, params)
	})
	if err != nil {
		return nil, err
	}

	var responseText string
	for _, block := range message.Content {
		if block.Type == "text" {
			responseText = block.Text
			break
		}
	}
	if responseText == "" {
		return nil, fmt.Errorf("no text content in API response")
	}

	return &LLMResponse{
		Content:      responseText,
		PromptTokens: int(message.Usage.InputTokens),
		OutputTokens: int(message.Usage.OutputTokens),
	}, nil
}

// ── MockClient: Local Development ─────────────────────────

// MockClient answers from canned output keyed on the task in the system
// prompt, so the whole reading flow runs without a provider.
type MockClient struct{}

func NewMockClient() *MockClient {
	return &MockClient{}
}

func (m *MockClient) Generate(_ context.Context, req Request) (*LLMResponse, error) {
	var content string
	switch req.System {
	case questionsSystem:
		content = `["What is the main point the author makes in this passage?","Which detail best supports that point?","How would you explain the key idea to a friend?"]`
	case reviewSystem:
		content = `{"review":"[Mock] You captured the main idea. Look again at the supporting details.","rating":40}`
	case difficultySystem:
		content = "1000"
	case simplifySystem:
		content = "[Mock simplified] " + lastParagraph(req.Prompt)
	case summarySystem:
		content = "[Mock] A short summary of this section."
	case hintSystem:
		content = "[Mock] Pay attention to the first sentence."
	default:
		content = "[Mock] " + req.Prompt
	}
	return &LLMResponse{Content: content, PromptTokens: len(req.Prompt) / 4, OutputTokens: len(content) / 4}, nil
}

func lastParagraph(s string) string {
	if i := strings.LastIndex(s, "\n\n"); i >= 0 {
		return s[i+2:]
	}
	return s
}
