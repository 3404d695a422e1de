package progress

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/adaptive-reader/backend/internal/models"
	"github.com/adaptive-reader/backend/internal/rating"
)

// MemoryStore keeps everything in process. Used by tests and local runs
// without a database.
type MemoryStore struct {
	mu       sync.Mutex
	nextID   int64
	readers  map[int64]*models.Reader
	feedback []models.ChunkFeedback
	sessions map[string]*models.ReadingSession
	progress map[int64]map[time.Time]*models.ProgressRecord
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		readers:  make(map[int64]*models.Reader),
		sessions: make(map[string]*models.ReadingSession),
		progress: make(map[int64]map[time.Time]*models.ProgressRecord),
	}
}

// AddReader registers a reader with the given starting rating.
func (m *MemoryStore) AddReader(username string, startRating int) *models.Reader {
	m.mu.Lock()
	defer m.mu.Unlock()

	if startRating == 0 {
		startRating = rating.DefaultRating
	}
	m.nextID++
	now := time.Now()
	r := &models.Reader{ID: m.nextID, Username: username, Rating: startRating, CreatedAt: now, UpdatedAt: now}
	m.readers[r.ID] = r
	cp := *r
	return &cp
}

func (m *MemoryStore) GetReader(_ context.Context, readerID int64) (*models.Reader, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	r, ok := m.readers[readerID]
	if !ok {
		return nil, ErrReaderNotFound
	}
	cp := *r
	return &cp, nil
}

func (m *MemoryStore) CountGraded(_ context.Context, readerID int64) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.countGradedLocked(readerID), nil
}

func (m *MemoryStore) countGradedLocked(readerID int64) int {
	n := 0
	for _, fb := range m.feedback {
		if fb.ReaderID == readerID {
			n++
		}
	}
	return n
}

func (m *MemoryStore) FindGrade(_ context.Context, sessionID string, attempt, chunkID int) (*models.ChunkFeedback, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if fb := m.findGradeLocked(sessionID, attempt, chunkID); fb != nil {
		cp := *fb
		return &cp, nil
	}
	return nil, ErrGradeNotFound
}

func (m *MemoryStore) findGradeLocked(sessionID string, attempt, chunkID int) *models.ChunkFeedback {
	if sessionID == "" {
		return nil
	}
	for i := range m.feedback {
		fb := &m.feedback[i]
		if fb.SessionID == sessionID && fb.Attempt == attempt && fb.ChunkID == chunkID {
			return fb
		}
	}
	return nil
}

func (m *MemoryStore) CommitGrade(_ context.Context, c Commit) (*models.ProgressRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	r, ok := m.readers[c.ReaderID]
	if !ok {
		return nil, ErrReaderNotFound
	}
	if m.findGradeLocked(c.Feedback.SessionID, c.Feedback.Attempt, c.Feedback.ChunkID) != nil {
		return nil, ErrDuplicateGrade
	}
	r.Rating = c.NewRating
	r.UpdatedAt = time.Now()

	m.nextID++
	fb := c.Feedback
	fb.ID = m.nextID
	fb.ReaderID = c.ReaderID
	fb.CreatedAt = time.Now()
	m.feedback = append(m.feedback, fb)

	return m.upsertLocked(c.ReaderID, c.Day), nil
}

func (m *MemoryStore) RefreshProgress(_ context.Context, readerID int64, day time.Time) (*models.ProgressRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.readers[readerID]; !ok {
		return nil, ErrReaderNotFound
	}
	return m.upsertLocked(readerID, day), nil
}

func (m *MemoryStore) upsertLocked(readerID int64, day time.Time) *models.ProgressRecord {
	byDay, ok := m.progress[readerID]
	if !ok {
		byDay = make(map[time.Time]*models.ProgressRecord)
		m.progress[readerID] = byDay
	}
	rec, ok := byDay[day]
	if !ok {
		m.nextID++
		rec = &models.ProgressRecord{ID: m.nextID, ReaderID: readerID, Date: day}
		byDay[day] = rec
	}

	stats := m.statsLocked(readerID)
	rec.Rating = m.readers[readerID].Rating
	rec.SessionsCompleted = stats.SessionsCompleted
	rec.ChunksCompleted = stats.ChunksCompleted
	rec.AvgPerformance = stats.AvgPerformance
	rec.AvgDifficulty = stats.AvgDifficulty

	cp := *rec
	return &cp
}

func (m *MemoryStore) statsLocked(readerID int64) models.ReaderStats {
	var stats models.ReaderStats
	var perf, diff float64
	for _, fb := range m.feedback {
		if fb.ReaderID != readerID {
			continue
		}
		stats.ChunksCompleted++
		perf += fb.Performance
		diff += fb.Difficulty
	}
	if stats.ChunksCompleted > 0 {
		p := perf / float64(stats.ChunksCompleted)
		d := diff / float64(stats.ChunksCompleted)
		stats.AvgPerformance = &p
		stats.AvgDifficulty = &d
	}
	for _, s := range m.sessions {
		if s.ReaderID == readerID && s.Status == models.SessionComplete {
			stats.SessionsCompleted++
		}
	}
	return stats
}

func (m *MemoryStore) History(_ context.Context, readerID int64, from, to time.Time) ([]models.ProgressRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var records []models.ProgressRecord
	for day, rec := range m.progress[readerID] {
		if day.Before(from) || day.After(to) {
			continue
		}
		records = append(records, *rec)
	}
	sort.Slice(records, func(i, j int) bool { return records[i].Date.Before(records[j].Date) })
	return records, nil
}

// Feedback returns a copy of all recorded feedback for a reader.
func (m *MemoryStore) Feedback(readerID int64) []models.ChunkFeedback {
	m.mu.Lock()
	defer m.mu.Unlock()

	var out []models.ChunkFeedback
	for _, fb := range m.feedback {
		if fb.ReaderID == readerID {
			out = append(out, fb)
		}
	}
	return out
}

// SetProgress inserts a record directly, for seeding history.
func (m *MemoryStore) SetProgress(rec models.ProgressRecord) {
	m.mu.Lock()
	defer m.mu.Unlock()

	day := Day(rec.Date)
	rec.Date = day
	if m.progress[rec.ReaderID] == nil {
		m.progress[rec.ReaderID] = make(map[time.Time]*models.ProgressRecord)
	}
	m.nextID++
	rec.ID = m.nextID
	m.progress[rec.ReaderID][day] = &rec
}

// ── Session audit ───────────────────────────────────────

func (m *MemoryStore) CreateSession(_ context.Context, s *models.ReadingSession) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := time.Now()
	s.CreatedAt, s.UpdatedAt = now, now
	cp := *s
	m.sessions[s.ID] = &cp
	return nil
}

func (m *MemoryStore) UpdateSession(_ context.Context, s *models.ReadingSession) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	stored, ok := m.sessions[s.ID]
	if !ok {
		return ErrSessionNotFound
	}
	change := 0
	for _, fb := range m.feedback {
		if fb.SessionID == s.ID {
			change += fb.RatingDelta
		}
	}
	s.RatingChange = change
	s.UpdatedAt = time.Now()
	s.CreatedAt = stored.CreatedAt
	cp := *s
	m.sessions[s.ID] = &cp
	return nil
}

func (m *MemoryStore) AbandonStaleSessions(_ context.Context, before time.Time) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var n int64
	for _, s := range m.sessions {
		if s.Status == models.SessionActive && s.UpdatedAt.Before(before) {
			s.Status = models.SessionAbandoned
			s.UpdatedAt = time.Now()
			n++
		}
	}
	return n, nil
}

// Session returns the stored audit row.
func (m *MemoryStore) Session(id string) (models.ReadingSession, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	s, ok := m.sessions[id]
	if !ok {
		return models.ReadingSession{}, false
	}
	return *s, true
}
