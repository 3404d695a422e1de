package models

import "time"

// ProgressRecord is one reader's daily snapshot, upserted by day.
type ProgressRecord struct {
	ID                int64     `json:"id"`
	ReaderID          int64     `json:"reader_id"`
	Date              time.Time `json:"date"`
	Rating            int       `json:"rating"`
	SessionsCompleted int       `json:"sessions_completed"`
	ChunksCompleted   int       `json:"chunks_completed"`
	AvgPerformance    *float64  `json:"avg_performance,omitempty"`
	AvgDifficulty     *float64  `json:"avg_difficulty,omitempty"`
}

// ChunkFeedback is appended once per graded chunk. Within a session it is
// unique per (SessionID, Attempt, ChunkID).
type ChunkFeedback struct {
	ID          int64     `json:"id"`
	ReaderID    int64     `json:"reader_id"`
	SessionID   string    `json:"session_id,omitempty"`
	Attempt     int       `json:"attempt"`
	ChunkID     int       `json:"chunk_id"`
	Performance float64   `json:"performance"`
	Difficulty  float64   `json:"difficulty"`
	RatingDelta int       `json:"rating_delta"`
	RatingAfter int       `json:"rating_after"`
	Review      string    `json:"review"`
	CreatedAt   time.Time `json:"created_at"`
}

// ReaderStats aggregates a reader's whole history.
type ReaderStats struct {
	SessionsCompleted int
	ChunksCompleted   int
	AvgPerformance    *float64
	AvgDifficulty     *float64
}

type RatingResult struct {
	PreviousRating int    `json:"previous_rating"`
	NewRating      int    `json:"new_rating"`
	Delta          int    `json:"delta"`
	ReadingLevel   string `json:"reading_level"`
}

type ProgressSummary struct {
	Rating          int    `json:"rating"`
	ReadingLevel    string `json:"reading_level"`
	ChunksCompleted int    `json:"chunks_completed"`
	CurrentStreak   int    `json:"current_streak"`
	LongestStreak   int    `json:"longest_streak"`
}

type HistoryResponse struct {
	Days    int              `json:"days"`
	Records []ProgressRecord `json:"records"`
}
