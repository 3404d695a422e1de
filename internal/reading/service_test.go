package reading

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/adaptive-reader/backend/internal/adaptive"
	"github.com/adaptive-reader/backend/internal/chunker"
	"github.com/adaptive-reader/backend/internal/extract"
	"github.com/adaptive-reader/backend/internal/generator"
	"github.com/adaptive-reader/backend/internal/middleware"
	"github.com/adaptive-reader/backend/internal/models"
	"github.com/adaptive-reader/backend/internal/progress"
	"github.com/adaptive-reader/backend/internal/session"
	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var threeParagraphs = strings.Join([]string{
	"The river bends around the old mill before reaching the town. Fishermen gather on its banks every morning to watch the mist lift.",
	"In spring the water rises quickly and floods the lower fields. Farmers move their animals to higher ground until the level drops again.",
	"By late summer the river runs slow and clear. Children swim near the bridge while their parents talk in the shade of the willows.",
}, "\n\n")

type fakeTutor struct {
	mu sync.Mutex

	difficulty   float64
	score        float64
	gradeErr     error
	questionsErr error
	simplifyErr  error
	hintErr      error

	questionCalls int
	simplified    []float64
}

func (f *fakeTutor) AssessDifficulty(context.Context, string) (float64, error) {
	return f.difficulty, nil
}

func (f *fakeTutor) Simplify(_ context.Context, text string, factor float64) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.simplified = append(f.simplified, factor)
	if f.simplifyErr != nil {
		return "", f.simplifyErr
	}
	return "easy: " + text, nil
}

func (f *fakeTutor) GenerateQuestions(context.Context, string) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.questionCalls++
	if f.questionsErr != nil {
		return nil, f.questionsErr
	}
	return []string{"Where do the fishermen gather?", "What happens to the fields in spring?"}, nil
}

func (f *fakeTutor) Grade(context.Context, string, []string, []string) (*generator.Review, error) {
	if f.gradeErr != nil {
		return nil, f.gradeErr
	}
	return &generator.Review{Review: "Good effort.", Rating: f.score}, nil
}

func (f *fakeTutor) Summarize(_ context.Context, text string) (string, error) {
	return "summary of " + strings.Fields(text)[1], nil
}

func (f *fakeTutor) Hint(context.Context, string) (string, error) {
	if f.hintErr != nil {
		return "", f.hintErr
	}
	return "Watch the seasons.", nil
}

type fakeFetcher struct {
	article *extract.Article
	err     error
}

func (f *fakeFetcher) Fetch(context.Context, string) (*extract.Article, error) {
	return f.article, f.err
}

type brokenLedgerStore struct {
	*progress.MemoryStore
}

func (b *brokenLedgerStore) CommitGrade(context.Context, progress.Commit) (*models.ProgressRecord, error) {
	return nil, errors.New("connection reset")
}

// flakySessionStore fails the failOn-th Put.
type flakySessionStore struct {
	*session.MemoryStore
	mu     sync.Mutex
	puts   int
	failOn int
}

func (f *flakySessionStore) Put(ctx context.Context, s *session.Session) error {
	f.mu.Lock()
	f.puts++
	fail := f.puts == f.failOn
	f.mu.Unlock()
	if fail {
		return errors.New("redis timeout")
	}
	return f.MemoryStore.Put(ctx, s)
}

type fixture struct {
	svc      *Service
	tutor    *fakeTutor
	store    *progress.MemoryStore
	readerID int64
}

func newFixture(t *testing.T, ledgerStore progress.Store) *fixture {
	t.Helper()
	store := progress.NewMemoryStore()
	reader := store.AddReader("ada", 1000)
	if ledgerStore == nil {
		ledgerStore = store
	} else if b, ok := ledgerStore.(*brokenLedgerStore); ok {
		b.MemoryStore = store
	}

	tutor := &fakeTutor{difficulty: 1000, score: 50}
	svc := NewService(
		session.NewManager(session.NewMemoryStore()),
		progress.NewLedger(ledgerStore),
		chunker.NewParagraphChunker(30),
		tutor,
		&fakeFetcher{article: &extract.Article{Title: "River", Text: threeParagraphs}},
		Options{Adaptation: adaptive.DefaultConfig()},
	)
	return &fixture{svc: svc, tutor: tutor, store: store, readerID: reader.ID}
}

func (f *fixture) start(t *testing.T) *models.SessionResponse {
	t.Helper()
	resp, err := f.svc.StartSession(context.Background(), f.readerID, models.StartSessionRequest{Text: threeParagraphs})
	require.NoError(t, err)
	return resp
}

func TestStartSession(t *testing.T) {
	f := newFixture(t, nil)
	resp := f.start(t)

	require.Len(t, resp.Chunks, 3)
	assert.Equal(t, models.SessionActive, resp.Status)
	assert.Equal(t, 1, resp.ActiveChunkID)
	assert.Equal(t, "The river bends around the old mill before...", resp.Title)
	assert.Equal(t, 1000, resp.ReaderRating)
	assert.Equal(t, "Proficient Reader", resp.ReadingLevel)

	require.NotNil(t, resp.Chunks[0].Difficulty)
	assert.Equal(t, 1000.0, *resp.Chunks[0].Difficulty)
	assert.Nil(t, resp.Chunks[1].Difficulty)
	assert.Equal(t, "summary of river", resp.Chunks[0].Summary)
	assert.Equal(t, "summary of spring", resp.Chunks[1].Summary)

	audit, ok := f.store.Session(resp.ID)
	require.True(t, ok)
	assert.Equal(t, 3, audit.TotalChunks)
	assert.Equal(t, models.SessionActive, audit.Status)
}

func TestStartSession_FromURL(t *testing.T) {
	f := newFixture(t, nil)
	resp, err := f.svc.StartSession(context.Background(), f.readerID, models.StartSessionRequest{URL: "https://example.com/river"})
	require.NoError(t, err)

	assert.Equal(t, "River", resp.Title)
	assert.Len(t, resp.Chunks, 3)
}

func TestStartSession_UnreadableURL(t *testing.T) {
	f := newFixture(t, nil)
	f.svc.fetcher = &fakeFetcher{err: extract.ErrNoText}

	_, err := f.svc.StartSession(context.Background(), f.readerID, models.StartSessionRequest{URL: "https://example.com/empty"})
	assert.ErrorIs(t, err, ErrUnreadableURL)
}

func TestStartSession_EmptyText(t *testing.T) {
	f := newFixture(t, nil)
	_, err := f.svc.StartSession(context.Background(), f.readerID, models.StartSessionRequest{Text: "   "})
	assert.ErrorIs(t, err, adaptive.ErrInvalidInput)
}

func TestGetSession_OtherReader(t *testing.T) {
	f := newFixture(t, nil)
	resp := f.start(t)

	_, err := f.svc.GetSession(context.Background(), f.readerID+1, resp.ID)
	assert.ErrorIs(t, err, session.ErrNotFound)
}

func TestQuestions_CachedPerChunk(t *testing.T) {
	f := newFixture(t, nil)
	resp := f.start(t)
	ctx := context.Background()

	q1, err := f.svc.Questions(ctx, f.readerID, resp.ID)
	require.NoError(t, err)
	q2, err := f.svc.Questions(ctx, f.readerID, resp.ID)
	require.NoError(t, err)

	assert.Equal(t, 1, q1.ChunkID)
	assert.False(t, q1.Fallback)
	assert.Equal(t, q1.Questions, q2.Questions)
	assert.Equal(t, 1, f.tutor.questionCalls)
}

func TestQuestions_FallbackToDefaults(t *testing.T) {
	f := newFixture(t, nil)
	f.tutor.questionsErr = errors.New("provider down")
	resp := f.start(t)

	q, err := f.svc.Questions(context.Background(), f.readerID, resp.ID)
	require.NoError(t, err)
	assert.True(t, q.Fallback)
	assert.Equal(t, generator.DefaultQuestions, q.Questions)
}

func TestSubmitAnswers_PoorScoreSimplifiesNextChunk(t *testing.T) {
	f := newFixture(t, nil)
	f.tutor.score = -180
	resp := f.start(t)

	out, err := f.svc.SubmitAnswers(context.Background(), f.readerID, resp.ID, []string{"no idea"})
	require.NoError(t, err)

	assert.Equal(t, 1, out.ChunkID)
	assert.Equal(t, -180.0, out.Performance)
	assert.Less(t, out.Rating.NewRating, 1000)
	assert.Equal(t, models.SessionActive, out.SessionStatus)

	require.NotNil(t, out.Adaptation)
	assert.Equal(t, string(adaptive.PathFastPath), out.Adaptation.Path)
	assert.True(t, out.Adaptation.Simplified)
	assert.Equal(t, 40, out.Adaptation.SimplificationLevel)
	assert.Equal(t, []float64{0.4}, f.tutor.simplified)

	require.NotNil(t, out.NextChunk)
	assert.Equal(t, 2, out.NextChunk.ID)
	assert.True(t, out.NextChunk.IsSimplified)
	assert.True(t, strings.HasPrefix(out.NextChunk.Text, "easy: In spring"))
	assert.Equal(t, models.ChunkActive, out.NextChunk.Status)

	got, err := f.svc.GetSession(context.Background(), f.readerID, resp.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, got.ActiveChunkID)
	assert.Equal(t, models.ChunkCompleted, got.Chunks[0].Status)
}

func TestSubmitAnswers_FinishesSession(t *testing.T) {
	f := newFixture(t, nil)
	resp := f.start(t)
	ctx := context.Background()

	var out *models.SubmitAnswersResponse
	for i := 0; i < 3; i++ {
		var err error
		out, err = f.svc.SubmitAnswers(ctx, f.readerID, resp.ID, []string{"the mill"})
		require.NoError(t, err)
	}

	assert.Equal(t, models.SessionComplete, out.SessionStatus)
	assert.Nil(t, out.Adaptation)
	assert.Equal(t, 50.0, out.RunningAverage)

	audit, ok := f.store.Session(resp.ID)
	require.True(t, ok)
	assert.Equal(t, models.SessionComplete, audit.Status)
	assert.Equal(t, 3, audit.CompletedChunks)

	_, err := f.svc.SubmitAnswers(ctx, f.readerID, resp.ID, []string{"again"})
	assert.ErrorIs(t, err, session.ErrCompleted)
}

func TestSubmitAnswers_GradingFailureUsesNeutralScore(t *testing.T) {
	f := newFixture(t, nil)
	f.tutor.gradeErr = errors.New("timeout")
	resp := f.start(t)

	out, err := f.svc.SubmitAnswers(context.Background(), f.readerID, resp.ID, []string{"the mill"})
	require.NoError(t, err)

	assert.True(t, out.GradeFallback)
	assert.Equal(t, 0.0, out.Performance)
	assert.Equal(t, gradeFallbackReview, out.Review)
	assert.Equal(t, 1000, out.Rating.NewRating)
}

func TestSubmitAnswers_PersistenceFailureLeavesSessionUnchanged(t *testing.T) {
	f := newFixture(t, &brokenLedgerStore{})
	resp := f.start(t)

	_, err := f.svc.SubmitAnswers(context.Background(), f.readerID, resp.ID, []string{"the mill"})
	var perr *progress.PersistenceError
	require.ErrorAs(t, err, &perr)

	got, err := f.svc.GetSession(context.Background(), f.readerID, resp.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, got.ActiveChunkID)
	assert.Nil(t, got.Chunks[0].Performance)
}

func TestSubmitAnswers_RetryAfterLostSessionWriteGradesOnce(t *testing.T) {
	f := newFixture(t, nil)
	f.svc.sessions = session.NewManager(&flakySessionStore{MemoryStore: session.NewMemoryStore(), failOn: 2})
	f.tutor.score = 200
	resp := f.start(t)
	ctx := context.Background()

	_, err := f.svc.SubmitAnswers(ctx, f.readerID, resp.ID, []string{"the mill"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "redis timeout")

	reader, err := f.store.GetReader(ctx, f.readerID)
	require.NoError(t, err)
	rated := reader.Rating
	assert.Greater(t, rated, 1000)

	got, err := f.svc.GetSession(ctx, f.readerID, resp.ID)
	require.NoError(t, err)
	require.Equal(t, 1, got.ActiveChunkID)

	out, err := f.svc.SubmitAnswers(ctx, f.readerID, resp.ID, []string{"the mill"})
	require.NoError(t, err)
	assert.Equal(t, 1, out.ChunkID)
	assert.Equal(t, 1000, out.Rating.PreviousRating)
	assert.Equal(t, rated, out.Rating.NewRating)

	reader, err = f.store.GetReader(ctx, f.readerID)
	require.NoError(t, err)
	assert.Equal(t, rated, reader.Rating)
	assert.Len(t, f.store.Feedback(f.readerID), 1)

	got, err = f.svc.GetSession(ctx, f.readerID, resp.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, got.ActiveChunkID)
}

func TestSubmitAnswers_RequiresAnswers(t *testing.T) {
	f := newFixture(t, nil)
	resp := f.start(t)

	_, err := f.svc.SubmitAnswers(context.Background(), f.readerID, resp.ID, nil)
	assert.ErrorIs(t, err, adaptive.ErrInvalidInput)
}

func TestResetSession(t *testing.T) {
	f := newFixture(t, nil)
	f.tutor.score = -180
	resp := f.start(t)
	ctx := context.Background()

	_, err := f.svc.SubmitAnswers(ctx, f.readerID, resp.ID, []string{"no idea"})
	require.NoError(t, err)

	got, err := f.svc.ResetSession(ctx, f.readerID, resp.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, got.ActiveChunkID)
	for _, c := range got.Chunks {
		assert.Equal(t, c.OriginalText, c.Text)
		assert.False(t, c.IsSimplified)
	}
	require.NotNil(t, got.Chunks[0].Difficulty)

	// The same chunk graded after a reset counts as a new grade.
	_, err = f.svc.SubmitAnswers(ctx, f.readerID, resp.ID, []string{"no idea"})
	require.NoError(t, err)
	assert.Len(t, f.store.Feedback(f.readerID), 2)
}

func TestHint_Fallback(t *testing.T) {
	f := newFixture(t, nil)
	f.tutor.hintErr = errors.New("rate limited")

	assert.Equal(t, hintFallback, f.svc.Hint(context.Background(), "some text"))
}

func TestHandler_StartAndAnswer(t *testing.T) {
	f := newFixture(t, nil)
	router := mux.NewRouter()
	NewHandler(f.svc).RegisterRoutes(router)

	do := func(method, path, body string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(method, path, strings.NewReader(body))
		req = req.WithContext(middleware.WithReaderID(req.Context(), f.readerID))
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)
		return rec
	}

	rec := do("POST", "/sessions", `{"text":"`+strings.ReplaceAll(threeParagraphs, "\n", `\n`)+`"}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	resp := f.start(t)
	rec = do("POST", "/sessions/"+resp.ID+"/answers", `{"answers":["the mill"]}`)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"next_chunk_id":2`)

	rec = do("GET", "/sessions/missing", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = do("POST", "/sessions", `{}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandler_RequiresReader(t *testing.T) {
	f := newFixture(t, nil)
	router := mux.NewRouter()
	NewHandler(f.svc).RegisterRoutes(router)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest("POST", "/sessions", strings.NewReader(`{"text":"hello"}`)))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}
