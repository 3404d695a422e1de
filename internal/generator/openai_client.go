package generator

import (
	"context"
	"fmt"

	openai "github.com/sashabaranov/go-openai"
)

// OpenAIClient calls OpenAI or any OpenAI-compatible API via BaseURL.
type OpenAIClient struct {
	client   *openai.Client
	model    string
	attempts int
}

func NewOpenAIClient(apiKey, baseURL, model string, attempts int) (*OpenAIClient, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("openai API key is required")
	}
	config := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		config.BaseURL = baseURL
	}
	return &OpenAIClient{
		client:   openai.NewClientWithConfig(config),
		model:    model,
		attempts: attempts,
	}, nil
}

func (c *OpenAIClient) Generate(ctx context.Context, req Request) (*LLMResponse, error) {
	var messages []openai.ChatCompletionMessage
	if req.System != "" {
		messages = append(messages, openai.ChatCompletionMessage{
			Role:    openai.ChatMessageRoleSystem,
			Content: req.System,
		})
	}
	messages = append(messages, openai.ChatCompletionMessage{
		Role:    openai.ChatMessageRoleUser,
		Content: req.Prompt,
	})

	chatReq := openai.ChatCompletionRequest{
		Model:               c.model,
		Messages:            messages,
		MaxCompletionTokens: maxTokens(req),
		Temperature:         float32(req.Temperature),
	}

	resp, err := withRetry(ctx, ProviderOpenAI, c.attempts, func() (openai.ChatCompletionResponse, error) {
		return c.client.CreateChatCompletion(ctx, chatReq)
	})
	if err != nil {
		return nil, err
	}
	if len(resp.Choices) == 0 || resp.Choices[0].Message.Content == "" {
		return nil, fmt.Errorf("no choices in openai response")
	}

	return &LLMResponse{
		Content:      resp.Choices[0].Message.Content,
		PromptTokens: resp.Usage.PromptTokens,
		OutputTokens: resp.Usage.CompletionTokens,
	}, nil
}
