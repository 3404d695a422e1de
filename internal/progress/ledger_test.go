package progress

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/adaptive-reader/backend/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type failingStore struct {
	*MemoryStore
	err error
}

func (f *failingStore) CommitGrade(context.Context, Commit) (*models.ProgressRecord, error) {
	return nil, f.err
}

// racingStore reports no prior grade, then loses the insert to one that
// landed in between.
type racingStore struct {
	*MemoryStore
	hidden bool
}

func (r *racingStore) FindGrade(ctx context.Context, sessionID string, attempt, chunkID int) (*models.ChunkFeedback, error) {
	if r.hidden {
		r.hidden = false
		return nil, ErrGradeNotFound
	}
	return r.MemoryStore.FindGrade(ctx, sessionID, attempt, chunkID)
}

func fixedNow(t time.Time) func() time.Time {
	return func() time.Time { return t }
}

func TestApplyGrade_NeutralAtLevel(t *testing.T) {
	store := NewMemoryStore()
	r := store.AddReader("ada", 1000)
	l := NewLedger(store)

	res, err := l.ApplyGrade(context.Background(), Grade{ReaderID: r.ID, ChunkID: 1, Performance: 0, Difficulty: 1000})
	require.NoError(t, err)

	assert.Equal(t, 1000, res.PreviousRating)
	assert.Equal(t, 1000, res.NewRating)
	assert.Equal(t, 0, res.Delta)
	assert.Equal(t, "Proficient Reader", res.ReadingLevel)
}

func TestApplyGrade_HarderTextWorstPerformance(t *testing.T) {
	store := NewMemoryStore()
	r := store.AddReader("ada", 1000)
	l := NewLedger(store)

	res, err := l.ApplyGrade(context.Background(), Grade{ReaderID: r.ID, ChunkID: 1, Performance: -200, Difficulty: 1400})
	require.NoError(t, err)

	assert.GreaterOrEqual(t, res.NewRating, 960)
	assert.Less(t, res.NewRating, 1000)
	assert.Equal(t, 997, res.NewRating)

	stored, err := store.GetReader(context.Background(), r.ID)
	require.NoError(t, err)
	assert.Equal(t, 997, stored.Rating)
}

func TestApplyGrade_NewReaderMovesFaster(t *testing.T) {
	store := NewMemoryStore()
	r := store.AddReader("ada", 1000)
	l := NewLedger(store)
	ctx := context.Background()

	// k = 24 * 1.5
	res, err := l.ApplyGrade(ctx, Grade{ReaderID: r.ID, Performance: 200, Difficulty: 1000})
	require.NoError(t, err)
	assert.Equal(t, 27, res.Delta)

	// Bring the history to five graded chunks without moving the rating.
	for i := 0; i < 4; i++ {
		_, err := l.ApplyGrade(ctx, Grade{ReaderID: r.ID, Performance: 0, Difficulty: 1027})
		require.NoError(t, err)
	}

	// k = 24 * 1.2
	res, err = l.ApplyGrade(ctx, Grade{ReaderID: r.ID, Performance: 200, Difficulty: 1027})
	require.NoError(t, err)
	assert.Equal(t, 22, res.Delta)
}

func TestApplyGrade_FloorsAtMinRating(t *testing.T) {
	store := NewMemoryStore()
	r := store.AddReader("ada", 110)
	l := NewLedger(store)

	res, err := l.ApplyGrade(context.Background(), Grade{ReaderID: r.ID, Performance: -200, Difficulty: 110})
	require.NoError(t, err)

	assert.Equal(t, 100, res.NewRating)
	assert.Equal(t, -10, res.Delta, "delta reports the change actually applied")
}

func TestApplyGrade_ClampsPerformance(t *testing.T) {
	store := NewMemoryStore()
	r := store.AddReader("ada", 1000)
	l := NewLedger(store)

	_, err := l.ApplyGrade(context.Background(), Grade{ReaderID: r.ID, Performance: 900, Difficulty: 1000})
	require.NoError(t, err)

	fb := store.Feedback(r.ID)
	require.Len(t, fb, 1)
	assert.Equal(t, 200.0, fb[0].Performance)
}

func TestApplyGrade_UpsertsTodaysRecord(t *testing.T) {
	store := NewMemoryStore()
	r := store.AddReader("ada", 1000)
	l := NewLedger(store)
	l.now = fixedNow(time.Date(2026, 3, 14, 15, 0, 0, 0, time.UTC))
	ctx := context.Background()

	_, err := l.ApplyGrade(ctx, Grade{ReaderID: r.ID, SessionID: "s1", ChunkID: 1, Performance: 100, Difficulty: 900})
	require.NoError(t, err)
	res, err := l.ApplyGrade(ctx, Grade{ReaderID: r.ID, SessionID: "s1", ChunkID: 2, Performance: -50, Difficulty: 1100})
	require.NoError(t, err)

	records, err := l.History(ctx, r.ID, 1)
	require.NoError(t, err)
	require.Len(t, records, 1)

	rec := records[0]
	assert.Equal(t, time.Date(2026, 3, 14, 0, 0, 0, 0, time.UTC), rec.Date)
	assert.Equal(t, res.NewRating, rec.Rating)
	assert.Equal(t, 2, rec.ChunksCompleted)
	require.NotNil(t, rec.AvgPerformance)
	assert.InDelta(t, 25.0, *rec.AvgPerformance, 1e-9)
	require.NotNil(t, rec.AvgDifficulty)
	assert.InDelta(t, 1000.0, *rec.AvgDifficulty, 1e-9)
}

func TestApplyGrade_PersistenceFailurePropagates(t *testing.T) {
	mem := NewMemoryStore()
	r := mem.AddReader("ada", 1000)
	l := NewLedger(&failingStore{MemoryStore: mem, err: errors.New("connection reset")})

	_, err := l.ApplyGrade(context.Background(), Grade{ReaderID: r.ID, Performance: 150, Difficulty: 1000})
	require.Error(t, err)

	var perr *PersistenceError
	require.True(t, errors.As(err, &perr))
	assert.Equal(t, "commit grade", perr.Op)

	stored, _ := mem.GetReader(context.Background(), r.ID)
	assert.Equal(t, 1000, stored.Rating)
}

func TestApplyGrade_SameChunkGradedOnce(t *testing.T) {
	store := NewMemoryStore()
	r := store.AddReader("ada", 1000)
	l := NewLedger(store)
	ctx := context.Background()

	g := Grade{ReaderID: r.ID, SessionID: "s1", ChunkID: 1, Performance: 200, Difficulty: 1000}
	first, err := l.ApplyGrade(ctx, g)
	require.NoError(t, err)
	assert.Equal(t, 1027, first.NewRating)

	g.Performance = -200
	again, err := l.ApplyGrade(ctx, g)
	require.NoError(t, err)
	assert.Equal(t, first, again)

	stored, _ := store.GetReader(ctx, r.ID)
	assert.Equal(t, 1027, stored.Rating)
	assert.Len(t, store.Feedback(r.ID), 1)

	// A later attempt at the same session grades the chunk afresh.
	g.Attempt = 1
	next, err := l.ApplyGrade(ctx, g)
	require.NoError(t, err)
	assert.Equal(t, 1027, next.PreviousRating)
	assert.Less(t, next.NewRating, 1027)
	assert.Len(t, store.Feedback(r.ID), 2)
}

func TestApplyGrade_DuplicateCommitReturnsStoredResult(t *testing.T) {
	mem := NewMemoryStore()
	r := mem.AddReader("ada", 1000)
	ctx := context.Background()

	first, err := NewLedger(mem).ApplyGrade(ctx, Grade{ReaderID: r.ID, SessionID: "s1", ChunkID: 3, Performance: 200, Difficulty: 1000})
	require.NoError(t, err)

	l := NewLedger(&racingStore{MemoryStore: mem, hidden: true})
	res, err := l.ApplyGrade(ctx, Grade{ReaderID: r.ID, SessionID: "s1", ChunkID: 3, Performance: 200, Difficulty: 1000})
	require.NoError(t, err)
	assert.Equal(t, first, res)

	stored, _ := mem.GetReader(ctx, r.ID)
	assert.Equal(t, first.NewRating, stored.Rating)
	assert.Len(t, mem.Feedback(r.ID), 1)
}

func TestApplyGrade_UnknownReader(t *testing.T) {
	l := NewLedger(NewMemoryStore())
	_, err := l.ApplyGrade(context.Background(), Grade{ReaderID: 99, Difficulty: 1000})
	assert.ErrorIs(t, err, ErrReaderNotFound)
}

func TestHistory_WindowAndOrder(t *testing.T) {
	store := NewMemoryStore()
	r := store.AddReader("ada", 1000)
	now := time.Date(2026, 5, 20, 12, 0, 0, 0, time.UTC)
	l := NewLedger(store)
	l.now = fixedNow(now)

	for _, back := range []int{2, 40, 10, 0} {
		store.SetProgress(models.ProgressRecord{ReaderID: r.ID, Date: now.AddDate(0, 0, -back), Rating: 1000 + back})
	}

	records, err := l.History(context.Background(), r.ID, 30)
	require.NoError(t, err)
	require.Len(t, records, 3)
	assert.Equal(t, 1010, records[0].Rating)
	assert.Equal(t, 1002, records[1].Rating)
	assert.Equal(t, 1000, records[2].Rating)

	_, err = l.History(context.Background(), r.ID, 0)
	assert.Error(t, err)
}

func TestHistory_CountsCalendarDays(t *testing.T) {
	store := NewMemoryStore()
	r := store.AddReader("ada", 1000)
	now := time.Date(2026, 5, 20, 0, 30, 0, 0, time.UTC)
	l := NewLedger(store)
	l.now = fixedNow(now)

	for _, back := range []int{0, 1, 2} {
		store.SetProgress(models.ProgressRecord{ReaderID: r.ID, Date: now.AddDate(0, 0, -back), Rating: 1000 + back})
	}

	records, err := l.History(context.Background(), r.ID, 1)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, 1000, records[0].Rating)

	records, err = l.History(context.Background(), r.ID, 2)
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, 1001, records[0].Rating)
}

func TestRefresh_CountsCompletedSessions(t *testing.T) {
	store := NewMemoryStore()
	r := store.AddReader("ada", 1000)
	l := NewLedger(store)
	ctx := context.Background()

	rs := &models.ReadingSession{ID: "s1", ReaderID: r.ID, Status: models.SessionActive, TotalChunks: 1}
	require.NoError(t, store.CreateSession(ctx, rs))
	_, err := l.ApplyGrade(ctx, Grade{ReaderID: r.ID, SessionID: "s1", ChunkID: 1, Performance: 200, Difficulty: 1000})
	require.NoError(t, err)

	rs.Status = models.SessionComplete
	rs.CompletedChunks = 1
	require.NoError(t, store.UpdateSession(ctx, rs))
	assert.Equal(t, 27, rs.RatingChange)

	require.NoError(t, l.Refresh(ctx, r.ID))
	records, err := l.History(ctx, r.ID, 1)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, 1, records[0].SessionsCompleted)
}

func TestSummary(t *testing.T) {
	store := NewMemoryStore()
	r := store.AddReader("ada", 1450)
	now := time.Date(2026, 5, 20, 12, 0, 0, 0, time.UTC)
	l := NewLedger(store)
	l.now = fixedNow(now)

	for _, back := range []int{0, 1, 2, 5, 6, 7, 8} {
		store.SetProgress(models.ProgressRecord{ReaderID: r.ID, Date: now.AddDate(0, 0, -back), Rating: 1450})
	}

	s, err := l.Summary(context.Background(), r.ID)
	require.NoError(t, err)
	assert.Equal(t, 1450, s.Rating)
	assert.Equal(t, "Advanced Reader", s.ReadingLevel)
	assert.Equal(t, 3, s.CurrentStreak)
	assert.Equal(t, 4, s.LongestStreak)
}

func TestSyncSession_RefreshesOnCompletion(t *testing.T) {
	store := NewMemoryStore()
	r := store.AddReader("ada", 1000)
	l := NewLedger(store)
	ctx := context.Background()

	rs := &models.ReadingSession{ID: "s1", ReaderID: r.ID, Status: models.SessionActive, TotalChunks: 2}
	require.NoError(t, l.OpenSession(ctx, rs))
	_, err := l.ApplyGrade(ctx, Grade{ReaderID: r.ID, SessionID: "s1", ChunkID: 1, Performance: 100, Difficulty: 1000})
	require.NoError(t, err)

	rs.CompletedChunks = 1
	require.NoError(t, l.SyncSession(ctx, rs))
	records, err := l.History(ctx, r.ID, 1)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, 0, records[0].SessionsCompleted)

	rs.Status = models.SessionComplete
	rs.CompletedChunks = 2
	require.NoError(t, l.SyncSession(ctx, rs))
	records, err = l.History(ctx, r.ID, 1)
	require.NoError(t, err)
	assert.Equal(t, 1, records[0].SessionsCompleted)
}

func TestSyncSession_UnknownSession(t *testing.T) {
	store := NewMemoryStore()
	r := store.AddReader("ada", 1000)
	err := NewLedger(store).SyncSession(context.Background(), &models.ReadingSession{ID: "nope", ReaderID: r.ID})
	var pe *PersistenceError
	assert.True(t, errors.As(err, &pe))
}

func TestAbandonStale(t *testing.T) {
	store := NewMemoryStore()
	r := store.AddReader("ada", 1000)
	l := NewLedger(store)
	ctx := context.Background()

	require.NoError(t, l.OpenSession(ctx, &models.ReadingSession{ID: "old", ReaderID: r.ID, Status: models.SessionActive}))
	require.NoError(t, l.OpenSession(ctx, &models.ReadingSession{ID: "done", ReaderID: r.ID, Status: models.SessionComplete}))

	n, err := l.AbandonStale(ctx, time.Now().Add(time.Minute))
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	old, ok := store.Session("old")
	require.True(t, ok)
	assert.Equal(t, models.SessionAbandoned, old.Status)
	done, _ := store.Session("done")
	assert.Equal(t, models.SessionComplete, done.Status)
}
