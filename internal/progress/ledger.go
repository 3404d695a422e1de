package progress

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/adaptive-reader/backend/internal/models"
	"github.com/adaptive-reader/backend/internal/rating"
)

// Store persists everything the ledger writes. CommitGrade and
// RefreshProgress must be atomic per call.
type Store interface {
	GetReader(ctx context.Context, readerID int64) (*models.Reader, error)
	CountGraded(ctx context.Context, readerID int64) (int, error)
	FindGrade(ctx context.Context, sessionID string, attempt, chunkID int) (*models.ChunkFeedback, error)
	CommitGrade(ctx context.Context, c Commit) (*models.ProgressRecord, error)
	RefreshProgress(ctx context.Context, readerID int64, day time.Time) (*models.ProgressRecord, error)
	History(ctx context.Context, readerID int64, from, to time.Time) ([]models.ProgressRecord, error)

	CreateSession(ctx context.Context, s *models.ReadingSession) error
	UpdateSession(ctx context.Context, s *models.ReadingSession) error
	AbandonStaleSessions(ctx context.Context, before time.Time) (int64, error)
}

// Commit is one graded chunk's worth of writes.
type Commit struct {
	ReaderID  int64
	NewRating int
	Feedback  models.ChunkFeedback
	Day       time.Time
}

// Grade is the input to ApplyGrade. Attempt distinguishes grades of the
// same chunk across session resets.
type Grade struct {
	ReaderID    int64
	SessionID   string
	Attempt     int
	ChunkID     int
	Performance float64
	Difficulty  float64
	Review      string
}

// Ledger applies rating math to a reader's persistent rating and keeps the
// daily progress history. It does not lock: concurrent grades for the same
// reader must be serialized by the caller.
type Ledger struct {
	store Store
	now   func() time.Time
}

func NewLedger(store Store) *Ledger {
	return &Ledger{store: store, now: time.Now}
}

// Day truncates t to its UTC calendar day.
func Day(t time.Time) time.Time {
	return t.UTC().Truncate(24 * time.Hour)
}

// ApplyGrade updates the reader's rating for one graded chunk and upserts
// today's progress record. Write failures come back as *PersistenceError.
func (l *Ledger) ApplyGrade(ctx context.Context, g Grade) (*models.RatingResult, error) {
	if prev, err := l.findGrade(ctx, g); err != nil || prev != nil {
		return prev, err
	}

	reader, err := l.store.GetReader(ctx, g.ReaderID)
	if err != nil {
		return nil, persistErr("load reader", err)
	}

	completed, err := l.store.CountGraded(ctx, g.ReaderID)
	if err != nil {
		return nil, persistErr("count graded chunks", err)
	}

	performance := rating.ClampPerformance(g.Performance)
	current := float64(reader.Rating)
	k := rating.KFactor(current, completed)
	delta := rating.Delta(current, g.Difficulty, performance, k)
	next := rating.Apply(reader.Rating, delta)

	_, err = l.store.CommitGrade(ctx, Commit{
		ReaderID:  g.ReaderID,
		NewRating: next,
		Day:       Day(l.now()),
		Feedback: models.ChunkFeedback{
			ReaderID:    g.ReaderID,
			SessionID:   g.SessionID,
			Attempt:     g.Attempt,
			ChunkID:     g.ChunkID,
			Performance: performance,
			Difficulty:  g.Difficulty,
			RatingDelta: next - reader.Rating,
			RatingAfter: next,
			Review:      g.Review,
		},
	})
	if errors.Is(err, ErrDuplicateGrade) {
		// Lost a race with a concurrent grade of the same chunk.
		return l.findGrade(ctx, g)
	}
	if err != nil {
		return nil, persistErr("commit grade", err)
	}

	return &models.RatingResult{
		PreviousRating: reader.Rating,
		NewRating:      next,
		Delta:          next - reader.Rating,
		ReadingLevel:   rating.ReadingLevel(float64(next)),
	}, nil
}

// findGrade returns the stored result when g's chunk was already graded
// in the same session attempt, or nil when it was not.
func (l *Ledger) findGrade(ctx context.Context, g Grade) (*models.RatingResult, error) {
	if g.SessionID == "" {
		return nil, nil
	}
	fb, err := l.store.FindGrade(ctx, g.SessionID, g.Attempt, g.ChunkID)
	if errors.Is(err, ErrGradeNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, persistErr("find grade", err)
	}
	log.Printf("[progress] chunk %d of session %s already graded, returning stored result", g.ChunkID, g.SessionID)
	return &models.RatingResult{
		PreviousRating: fb.RatingAfter - fb.RatingDelta,
		NewRating:      fb.RatingAfter,
		Delta:          fb.RatingDelta,
		ReadingLevel:   rating.ReadingLevel(float64(fb.RatingAfter)),
	}, nil
}

// Refresh recomputes today's record, e.g. after a session completes.
func (l *Ledger) Refresh(ctx context.Context, readerID int64) error {
	_, err := l.store.RefreshProgress(ctx, readerID, Day(l.now()))
	return persistErr("refresh progress", err)
}

// History returns records for today and the days-1 calendar days before
// it, oldest first.
func (l *Ledger) History(ctx context.Context, readerID int64, days int) ([]models.ProgressRecord, error) {
	if days <= 0 {
		return nil, fmt.Errorf("days must be positive, got %d", days)
	}
	now := l.now()
	from := Day(now).AddDate(0, 0, -(days - 1))
	records, err := l.store.History(ctx, readerID, from, now)
	if err != nil {
		return nil, fmt.Errorf("load history: %w", err)
	}
	return records, nil
}

// Summary reports the reader's current standing and reading streaks.
func (l *Ledger) Summary(ctx context.Context, readerID int64) (*models.ProgressSummary, error) {
	reader, err := l.store.GetReader(ctx, readerID)
	if err != nil {
		return nil, fmt.Errorf("load reader: %w", err)
	}
	completed, err := l.store.CountGraded(ctx, readerID)
	if err != nil {
		return nil, fmt.Errorf("count graded chunks: %w", err)
	}
	records, err := l.History(ctx, readerID, 366)
	if err != nil {
		return nil, err
	}

	dates := make([]time.Time, 0, len(records))
	for _, r := range records {
		dates = append(dates, r.Date)
	}
	current, longest := Streaks(dates, Day(l.now()))

	return &models.ProgressSummary{
		Rating:          reader.Rating,
		ReadingLevel:    rating.ReadingLevel(float64(reader.Rating)),
		ChunksCompleted: completed,
		CurrentStreak:   current,
		LongestStreak:   longest,
	}, nil
}

// Reader returns the reader's stored record.
func (l *Ledger) Reader(ctx context.Context, readerID int64) (*models.Reader, error) {
	return l.store.GetReader(ctx, readerID)
}

// OpenSession inserts the audit row for a new reading session.
func (l *Ledger) OpenSession(ctx context.Context, rs *models.ReadingSession) error {
	return persistErr("open session", l.store.CreateSession(ctx, rs))
}

// SyncSession writes the session's counters and status. When the session
// has just completed, today's record is refreshed so sessions_completed
// includes it.
func (l *Ledger) SyncSession(ctx context.Context, rs *models.ReadingSession) error {
	if err := l.store.UpdateSession(ctx, rs); err != nil {
		return persistErr("sync session", err)
	}
	if rs.Status == models.SessionComplete {
		return l.Refresh(ctx, rs.ReaderID)
	}
	return nil
}

// AbandonStale marks audit rows still active but untouched since before.
func (l *Ledger) AbandonStale(ctx context.Context, before time.Time) (int64, error) {
	n, err := l.store.AbandonStaleSessions(ctx, before)
	if err != nil {
		return 0, persistErr("abandon stale sessions", err)
	}
	return n, nil
}
