package chunker

import (
	"context"
	"regexp"
	"strings"

	"github.com/adaptive-reader/backend/internal/models"
)

var paragraphBreak = regexp.MustCompile(`\n\s*\n`)

// ParagraphChunker packs whole paragraphs into chunks of roughly
// MaxTokens words. It needs no network and is the local fallback.
type ParagraphChunker struct {
	MaxTokens int
}

func NewParagraphChunker(maxTokens int) *ParagraphChunker {
	if maxTokens <= 0 {
		maxTokens = DefaultChunkSize
	}
	return &ParagraphChunker{MaxTokens: maxTokens}
}

func (p *ParagraphChunker) Chunk(_ context.Context, text string) ([]models.TextChunk, error) {
	if strings.TrimSpace(text) == "" {
		return nil, &ChunkingError{Reason: "empty text"}
	}

	var chunks []models.TextChunk
	var cur *models.TextChunk

	flush := func() {
		if cur != nil {
			cur.Text = text[cur.StartIndex:cur.EndIndex]
			chunks = append(chunks, *cur)
			cur = nil
		}
	}

	for _, span := range paragraphSpans(text) {
		tokens := len(strings.Fields(text[span[0]:span[1]]))
		if cur != nil && cur.TokenCount+tokens > p.MaxTokens {
			flush()
		}
		if cur == nil {
			cur = &models.TextChunk{StartIndex: span[0]}
		}
		cur.EndIndex = span[1]
		cur.TokenCount += tokens
	}
	flush()

	return chunks, nil
}

// paragraphSpans returns [start, end) byte offsets of each non-blank
// paragraph with surrounding whitespace trimmed.
func paragraphSpans(text string) [][2]int {
	var spans [][2]int
	start := 0
	bounds := paragraphBreak.FindAllStringIndex(text, -1)
	bounds = append(bounds, []int{len(text), len(text)})
	for _, b := range bounds {
		s, e := trimSpan(text, start, b[0])
		if s < e {
			spans = append(spans, [2]int{s, e})
		}
		start = b[1]
	}
	return spans
}

func trimSpan(text string, s, e int) (int, int) {
	for s < e && isSpace(text[s]) {
		s++
	}
	for e > s && isSpace(text[e-1]) {
		e--
	}
	return s, e
}

func isSpace(b byte) bool {
	return b == ' ' || b == '\n' || b == '\t' || b == '\r'
}
