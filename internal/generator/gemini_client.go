package generator

import (
	"context"
	"errors"
	"fmt"

	"google.golang.org/genai"
)

// GeminiClient calls the Gemini API through the genai SDK.
type GeminiClient struct {
	client   *genai.Client
	model    string
	attempts int
}

func NewGeminiClient(ctx context.Context, apiKey, model string, attempts int) (*GeminiClient, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("gemini API key is required")
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("create gemini client: %w", err)
	}
	return &GeminiClient{client: client, model: model, attempts: attempts}, nil
}

func (c *GeminiClient) Generate(ctx context.Context, req Request) (*LLMResponse, error) {
	temp := float32(req.Temperature)
	config := &genai.GenerateContentConfig{
		MaxOutputTokens: int32(maxTokens(req)),
		Temperature:     &temp,
	}
	if req.System != "" {
		config.SystemInstruction = &genai.Content{
			Parts: []*genai.Part{{Text: req.System}},
		}
	}
	contents := []*genai.Content{{
		Role:  "user",
		Parts: []*genai.Part{{Text: req.Prompt}},
	}}

	result, err := withRetry(ctx, ProviderGemini, c.attempts, func() (*genai.GenerateContentResponse, error) {
		resp, err := c.client.Models.GenerateContent(ctx, c.model, contents, config)
		if err != nil {
			return nil, mapGeminiError(err)
		}
		return resp, nil
	})
	if err != nil {
		return nil, err
	}

	text := result.Text()
	if text == "" {
		return nil, fmt.Errorf("no text content in gemini response")
	}

	out := &LLMResponse{Content: text}
	if result.UsageMetadata != nil {
		out.PromptTokens = int(result.UsageMetadata.PromptTokenCount)
		out.OutputTokens = int(result.UsageMetadata.CandidatesTokenCount)
	}
	return out, nil
}

func mapGeminiError(err error) error {
	var apiErr *genai.APIError
	if errors.As(err, &apiErr) {
		return fmt.Errorf("gemini status %d: %w", apiErr.Code, err)
	}
	return err
}
