package chunker

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/adaptive-reader/backend/internal/models"
)

const (
	DefaultURL            = "https://api.chonkie.ai/v1/chunk/semantic"
	DefaultEmbeddingModel = "minishlab/potion-base-8M"
	DefaultChunkSize      = 512
)

// HTTPChunker calls a semantic chunking API.
type HTTPChunker struct {
	url       string
	apiKey    string
	chunkSize int
	client    *http.Client
}

func NewHTTPChunker(url, apiKey string, chunkSize int, timeout time.Duration) *HTTPChunker {
	if url == "" {
		url = DefaultURL
	}
	if chunkSize <= 0 {
		chunkSize = DefaultChunkSize
	}
	return &HTTPChunker{
		url:       url,
		apiKey:    apiKey,
		chunkSize: chunkSize,
		client:    &http.Client{Timeout: timeout},
	}
}

type chunkRequest struct {
	Text   string      `json:"text"`
	Params chunkParams `json:"params"`
}

type chunkParams struct {
	EmbeddingModel string `json:"embedding_model"`
	Threshold      string `json:"threshold"`
	ChunkSize      int    `json:"chunk_size"`
	MinSentences   int    `json:"min_sentences"`
}

type apiChunk struct {
	Text       string            `json:"text"`
	StartIndex int               `json:"start_index"`
	EndIndex   int               `json:"end_index"`
	TokenCount int               `json:"token_count"`
	Sentences  []models.Sentence `json:"sentences"`
}

func (h *HTTPChunker) Chunk(ctx context.Context, text string) ([]models.TextChunk, error) {
	if strings.TrimSpace(text) == "" {
		return nil, &ChunkingError{Reason: "empty text"}
	}

	body, err := json.Marshal(chunkRequest{
		Text: text,
		Params: chunkParams{
			EmbeddingModel: DefaultEmbeddingModel,
			Threshold:      "auto",
			ChunkSize:      h.chunkSize,
			MinSentences:   1,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("encode chunk request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, h.url, bytes.NewReader(body))
	if err != nil {
		return nil, &ChunkingError{Reason: "build request", Err: err}
	}
	req.Header.Set("Content-Type", "application/json")
	if h.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+h.apiKey)
	}

	resp, err := h.client.Do(req)
	if err != nil {
		return nil, &ChunkingError{Reason: "service unreachable", Err: err}
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 16<<20))
	if err != nil {
		return nil, &ChunkingError{Reason: "read response", Err: err}
	}
	if resp.StatusCode != http.StatusOK {
		return nil, &ChunkingError{Reason: fmt.Sprintf("service returned %d: %s", resp.StatusCode, truncate(string(raw), 200))}
	}

	chunks, err := decodeChunks(raw)
	if err != nil {
		return nil, &ChunkingError{Reason: "decode response", Err: err}
	}
	if len(chunks) == 0 {
		return nil, &ChunkingError{Reason: "no chunks produced from the input text"}
	}
	return chunks, nil
}

// decodeChunks accepts either a bare list or an object with a chunks key.
func decodeChunks(raw []byte) ([]models.TextChunk, error) {
	var list []apiChunk
	if err := json.Unmarshal(raw, &list); err != nil {
		var wrapped struct {
			Chunks []apiChunk `json:"chunks"`
		}
		if err2 := json.Unmarshal(raw, &wrapped); err2 != nil {
			return nil, err
		}
		list = wrapped.Chunks
	}

	out := make([]models.TextChunk, 0, len(list))
	for _, c := range list {
		if strings.TrimSpace(c.Text) == "" {
			continue
		}
		out = append(out, models.TextChunk{
			Text:       c.Text,
			StartIndex: c.StartIndex,
			EndIndex:   c.EndIndex,
			TokenCount: c.TokenCount,
			Sentences:  c.Sentences,
		})
	}
	return out, nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
