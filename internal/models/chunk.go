package models

type ChunkStatus string

const (
	ChunkPending   ChunkStatus = "pending"
	ChunkActive    ChunkStatus = "active"
	ChunkCompleted ChunkStatus = "completed"
	// ChunkCombined chunks were merged into the following chunk and are
	// skipped by navigation.
	ChunkCombined ChunkStatus = "combined"
)

type Sentence struct {
	Text       string `json:"text"`
	StartIndex int    `json:"start_index"`
	EndIndex   int    `json:"end_index"`
	TokenCount int    `json:"token_count"`
}

// TextChunk is one passage of a reading session. ID is its 1-based position.
type TextChunk struct {
	ID                  int         `json:"id"`
	Text                string      `json:"text"`
	OriginalText        string      `json:"original_text"`
	StartIndex          int         `json:"start_index"`
	EndIndex            int         `json:"end_index"`
	TokenCount          int         `json:"token_count"`
	Sentences           []Sentence  `json:"sentences,omitempty"`
	Difficulty          *float64    `json:"difficulty,omitempty"`
	IsSimplified        bool        `json:"is_simplified"`
	SimplificationLevel int         `json:"simplification_level"`
	Status              ChunkStatus `json:"status"`
	Summary             string      `json:"summary,omitempty"`
	Questions           []string    `json:"questions,omitempty"`
	Performance         *float64    `json:"performance,omitempty"`
	Review              string      `json:"review,omitempty"`
}
