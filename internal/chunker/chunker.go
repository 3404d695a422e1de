package chunker

import (
	"context"
	"fmt"
	"log"

	"github.com/adaptive-reader/backend/internal/models"
)

// Chunker splits a text into ordered reading chunks.
type Chunker interface {
	Chunk(ctx context.Context, text string) ([]models.TextChunk, error)
}

// ChunkingError reports that no chunks could be produced.
type ChunkingError struct {
	Reason string
	Err    error
}

func (e *ChunkingError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("chunking failed: %s: %v", e.Reason, e.Err)
	}
	return "chunking failed: " + e.Reason
}

func (e *ChunkingError) Unwrap() error { return e.Err }

// Fallback tries Primary and, when it fails, chunks locally with Secondary.
type Fallback struct {
	Primary   Chunker
	Secondary Chunker
}

func (f Fallback) Chunk(ctx context.Context, text string) ([]models.TextChunk, error) {
	chunks, err := f.Primary.Chunk(ctx, text)
	if err == nil {
		return chunks, nil
	}
	if ctx.Err() != nil {
		return nil, err
	}
	log.Printf("WARN: [chunker] semantic chunking failed, using local chunker: %v", err)
	return f.Secondary.Chunk(ctx, text)
}
