package models

import "time"

type SessionStatus string

const (
	SessionActive    SessionStatus = "active"
	SessionComplete  SessionStatus = "complete"
	SessionAbandoned SessionStatus = "abandoned"
)

// ReadingSession is the audit row for one submitted text.
type ReadingSession struct {
	ID                string        `json:"id"`
	ReaderID          int64         `json:"reader_id"`
	Title             string        `json:"title,omitempty"`
	SourceURL         string        `json:"source_url,omitempty"`
	Status            SessionStatus `json:"status"`
	CompletedChunks   int           `json:"completed_chunks"`
	TotalChunks       int           `json:"total_chunks"`
	AverageDifficulty *float64      `json:"average_difficulty,omitempty"`
	RatingChange      int           `json:"rating_change"`
	CreatedAt         time.Time     `json:"created_at"`
	UpdatedAt         time.Time     `json:"updated_at"`
}

// ── Request Types ────────────────────────────────────────

type StartSessionRequest struct {
	Text string `json:"text"`
	URL  string `json:"url"`
}

type SubmitAnswersRequest struct {
	Answers []string `json:"answers"`
}

type HintRequest struct {
	Text string `json:"text"`
}

// ── Response Types ───────────────────────────────────────

type SessionResponse struct {
	ID            string        `json:"id"`
	Title         string        `json:"title,omitempty"`
	Status        SessionStatus `json:"status"`
	ActiveChunkID int           `json:"active_chunk_id,omitempty"`
	Chunks        []TextChunk   `json:"chunks"`
	ReaderRating  int           `json:"reader_rating"`
	ReadingLevel  string        `json:"reading_level"`
}

type QuestionsResponse struct {
	ChunkID   int      `json:"chunk_id"`
	Questions []string `json:"questions"`
	Fallback  bool     `json:"fallback"`
}

type Adaptation struct {
	NextChunkID         int     `json:"next_chunk_id"`
	Simplified          bool    `json:"simplified"`
	Factor              float64 `json:"factor"`
	SimplificationLevel int     `json:"simplification_level"`
	OriginalDifficulty  float64 `json:"original_difficulty"`
	NewDifficulty       float64 `json:"new_difficulty"`
	MergedChunks        int     `json:"merged_chunks"`
	Path                string  `json:"path"`
}

type SubmitAnswersResponse struct {
	ChunkID        int           `json:"chunk_id"`
	Review         string        `json:"review"`
	Performance    float64       `json:"performance"`
	GradeFallback  bool          `json:"grade_fallback"`
	Rating         RatingResult  `json:"rating"`
	Adaptation     *Adaptation   `json:"adaptation,omitempty"`
	SessionStatus  SessionStatus `json:"session_status"`
	NextChunk      *TextChunk    `json:"next_chunk,omitempty"`
	RunningAverage float64       `json:"running_average"`
}

type HintResponse struct {
	Hint string `json:"hint"`
}
