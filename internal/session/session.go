package session

import (
	"errors"
	"time"

	"github.com/adaptive-reader/backend/internal/adaptive"
	"github.com/adaptive-reader/backend/internal/models"
	"github.com/google/uuid"
)

var (
	ErrNotFound  = errors.New("session not found")
	ErrNoChunks  = errors.New("session has no chunks")
	ErrNoActive  = errors.New("session has no active chunk")
	ErrCompleted = errors.New("session is complete")
)

// Session is one reader working through one text. It owns its adaptive
// state; nothing else reads or writes it.
type Session struct {
	ID        string               `json:"id"`
	ReaderID  int64                `json:"reader_id"`
	Title     string               `json:"title,omitempty"`
	SourceURL string               `json:"source_url,omitempty"`
	Status    models.SessionStatus `json:"status"`
	Chunks    []models.TextChunk   `json:"chunks"`
	Spans     []Span               `json:"spans"`
	State     adaptive.State       `json:"state"`
	Attempt   int                  `json:"attempt"`
	CreatedAt time.Time            `json:"created_at"`
	UpdatedAt time.Time            `json:"updated_at"`
}

// Span is the extent a chunk had when the session was created. Merging
// in Advance widens a chunk; Reset puts it back.
type Span struct {
	StartIndex int               `json:"start_index"`
	EndIndex   int               `json:"end_index"`
	TokenCount int               `json:"token_count"`
	Sentences  []models.Sentence `json:"sentences,omitempty"`
}

// New builds an active session with the first chunk active.
func New(readerID int64, chunks []models.TextChunk) (*Session, error) {
	if len(chunks) == 0 {
		return nil, ErrNoChunks
	}
	now := time.Now()
	s := &Session{
		ID:        uuid.NewString(),
		ReaderID:  readerID,
		Status:    models.SessionActive,
		Chunks:    chunks,
		Spans:     make([]Span, len(chunks)),
		State:     adaptive.NewState(),
		CreatedAt: now,
		UpdatedAt: now,
	}
	for i := range s.Chunks {
		c := &s.Chunks[i]
		c.ID = i + 1
		if c.OriginalText == "" {
			c.OriginalText = c.Text
		}
		c.Status = models.ChunkPending
		s.Spans[i] = Span{
			StartIndex: c.StartIndex,
			EndIndex:   c.EndIndex,
			TokenCount: c.TokenCount,
			Sentences:  c.Sentences,
		}
	}
	s.Chunks[0].Status = models.ChunkActive
	return s, nil
}

// Active returns the index of the active chunk.
func (s *Session) Active() (int, error) {
	if s.Status == models.SessionComplete {
		return -1, ErrCompleted
	}
	for i, c := range s.Chunks {
		if c.Status == models.ChunkActive {
			return i, nil
		}
	}
	return -1, ErrNoActive
}

// NextIndex returns the first pending chunk after i, skipping combined ones.
func (s *Session) NextIndex(i int) (int, bool) {
	for j := i + 1; j < len(s.Chunks); j++ {
		if s.Chunks[j].Status == models.ChunkPending {
			return j, true
		}
	}
	return -1, false
}

// Following returns the raw text of pending chunks after i, in order.
func (s *Session) Following(i int) []string {
	var out []string
	for j := i + 1; j < len(s.Chunks); j++ {
		if s.Chunks[j].Status == models.ChunkPending {
			out = append(out, s.Chunks[j].OriginalText)
		}
	}
	return out
}

// Complete marks chunk i completed.
func (s *Session) Complete(i int) {
	s.Chunks[i].Status = models.ChunkCompleted
	s.touch()
}

// Advance activates the chunk at i with prepared text and returns the index
// of the chunk now active. When merged > 0 the text spans chunk i and the
// next merged pending chunks: all but the last become combined, and the
// last one carries the text and the whole character span.
func (s *Session) Advance(i, merged int, text string) int {
	span := []int{i}
	for j := i + 1; j < len(s.Chunks) && len(span) <= merged; j++ {
		if s.Chunks[j].Status == models.ChunkPending {
			span = append(span, j)
		}
	}

	target := span[len(span)-1]
	c := &s.Chunks[target]
	if target != i {
		var sentences []models.Sentence
		tokens := 0
		for _, j := range span {
			sentences = append(sentences, s.Chunks[j].Sentences...)
			tokens += s.Chunks[j].TokenCount
		}
		for _, j := range span[:len(span)-1] {
			s.Chunks[j].Status = models.ChunkCombined
		}
		c.StartIndex = s.Chunks[i].StartIndex
		c.Sentences = sentences
		c.TokenCount = tokens
		c.Summary = ""
	}

	c.Text = text
	c.Status = models.ChunkActive
	// Cached questions described the old text.
	c.Questions = nil
	s.touch()
	return target
}

// Finish marks the session complete.
func (s *Session) Finish() {
	s.Status = models.SessionComplete
	s.touch()
}

// Reset restores every chunk to its original text and span and discards
// the adaptive state, as if the text were submitted again. Attempt is
// bumped so grades from the previous pass stay distinct.
func (s *Session) Reset() {
	for i := range s.Chunks {
		c := &s.Chunks[i]
		if i < len(s.Spans) {
			sp := s.Spans[i]
			c.StartIndex = sp.StartIndex
			c.EndIndex = sp.EndIndex
			c.TokenCount = sp.TokenCount
			c.Sentences = sp.Sentences
		}
		c.Text = c.OriginalText
		c.IsSimplified = false
		c.SimplificationLevel = 0
		c.Difficulty = nil
		c.Questions = nil
		c.Performance = nil
		c.Review = ""
		c.Status = models.ChunkPending
	}
	s.Chunks[0].Status = models.ChunkActive
	s.State = s.State.Reset()
	s.Status = models.SessionActive
	s.Attempt++
	s.touch()
}

// Counts returns completed and total chunk counts; combined chunks are
// not counted as their own passages.
func (s *Session) Counts() (completed, total int) {
	for _, c := range s.Chunks {
		switch c.Status {
		case models.ChunkCombined:
			continue
		case models.ChunkCompleted:
			completed++
		}
		total++
	}
	return completed, total
}

// AverageDifficulty is the mean assessed difficulty of chunks shown so far.
func (s *Session) AverageDifficulty() *float64 {
	var sum float64
	var n int
	for _, c := range s.Chunks {
		if c.Difficulty == nil || c.Status == models.ChunkCombined {
			continue
		}
		sum += *c.Difficulty
		n++
	}
	if n == 0 {
		return nil
	}
	avg := sum / float64(n)
	return &avg
}

// Record is the audit row for this session.
func (s *Session) Record() *models.ReadingSession {
	completed, total := s.Counts()
	return &models.ReadingSession{
		ID:                s.ID,
		ReaderID:          s.ReaderID,
		Title:             s.Title,
		SourceURL:         s.SourceURL,
		Status:            s.Status,
		CompletedChunks:   completed,
		TotalChunks:       total,
		AverageDifficulty: s.AverageDifficulty(),
		CreatedAt:         s.CreatedAt,
		UpdatedAt:         s.UpdatedAt,
	}
}

func (s *Session) touch() {
	s.UpdatedAt = time.Now()
}
