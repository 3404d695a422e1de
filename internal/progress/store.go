package progress

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/adaptive-reader/backend/internal/models"
)

// PostgresStore is the database/sql implementation of Store.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

// querier is satisfied by both *sql.DB and *sql.Tx.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// ── Readers ─────────────────────────────────────────────

func (s *PostgresStore) GetReader(ctx context.Context, readerID int64) (*models.Reader, error) {
	var r models.Reader
	err := s.db.QueryRowContext(ctx,
		`SELECT id, username, rating, created_at, updated_at FROM readers WHERE id = $1`,
		readerID,
	).Scan(&r.ID, &r.Username, &r.Rating, &r.CreatedAt, &r.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrReaderNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get reader: %w", err)
	}
	return &r, nil
}

func (s *PostgresStore) CountGraded(ctx context.Context, readerID int64) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM chunk_feedback WHERE reader_id = $1`, readerID,
	).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count feedback: %w", err)
	}
	return n, nil
}

// ── Grades ──────────────────────────────────────────────

func (s *PostgresStore) CommitGrade(ctx context.Context, c Commit) (*models.ProgressRecord, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx,
		`UPDATE readers SET rating = $2, updated_at = NOW() WHERE id = $1`,
		c.ReaderID, c.NewRating,
	)
	if err != nil {
		return nil, fmt.Errorf("update rating: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return nil, ErrReaderNotFound
	}

	fb := c.Feedback
	res, err = tx.ExecContext(ctx,
		`INSERT INTO chunk_feedback (reader_id, session_id, attempt, chunk_id, performance, difficulty, rating_delta, rating_after, review)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		 ON CONFLICT (session_id, attempt, chunk_id) DO NOTHING`,
		c.ReaderID, nullString(fb.SessionID), fb.Attempt, fb.ChunkID, fb.Performance, fb.Difficulty,
		fb.RatingDelta, fb.RatingAfter, fb.Review,
	)
	if err != nil {
		return nil, fmt.Errorf("insert feedback: %w", err)
	}
	// The rating update above rolls back with the deferred Rollback.
	if n, _ := res.RowsAffected(); n == 0 {
		return nil, ErrDuplicateGrade
	}

	rec, err := upsertProgress(ctx, tx, c.ReaderID, c.Day)
	if err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit: %w", err)
	}
	return rec, nil
}

func (s *PostgresStore) FindGrade(ctx context.Context, sessionID string, attempt, chunkID int) (*models.ChunkFeedback, error) {
	var fb models.ChunkFeedback
	var sid sql.NullString
	err := s.db.QueryRowContext(ctx,
		`SELECT id, reader_id, session_id, attempt, chunk_id, performance, difficulty, rating_delta, rating_after, review, created_at
		 FROM chunk_feedback
		 WHERE session_id = $1 AND attempt = $2 AND chunk_id = $3`,
		sessionID, attempt, chunkID,
	).Scan(&fb.ID, &fb.ReaderID, &sid, &fb.Attempt, &fb.ChunkID, &fb.Performance, &fb.Difficulty,
		&fb.RatingDelta, &fb.RatingAfter, &fb.Review, &fb.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrGradeNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("find grade: %w", err)
	}
	fb.SessionID = sid.String
	return &fb, nil
}

func (s *PostgresStore) RefreshProgress(ctx context.Context, readerID int64, day time.Time) (*models.ProgressRecord, error) {
	return upsertProgress(ctx, s.db, readerID, day)
}

// upsertProgress aggregates the reader's history into the record for day.
func upsertProgress(ctx context.Context, q querier, readerID int64, day time.Time) (*models.ProgressRecord, error) {
	rec := models.ProgressRecord{ReaderID: readerID, Date: day}

	var avgPerf, avgDiff sql.NullFloat64
	err := q.QueryRowContext(ctx,
		`SELECT r.rating,
		        (SELECT COUNT(*) FROM reading_sessions WHERE reader_id = r.id AND status = 'complete'),
		        (SELECT COUNT(*) FROM chunk_feedback WHERE reader_id = r.id),
		        (SELECT AVG(performance) FROM chunk_feedback WHERE reader_id = r.id),
		        (SELECT AVG(difficulty) FROM chunk_feedback WHERE reader_id = r.id)
		 FROM readers r WHERE r.id = $1`,
		readerID,
	).Scan(&rec.Rating, &rec.SessionsCompleted, &rec.ChunksCompleted, &avgPerf, &avgDiff)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrReaderNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("aggregate progress: %w", err)
	}
	rec.AvgPerformance = floatPtr(avgPerf)
	rec.AvgDifficulty = floatPtr(avgDiff)

	err = q.QueryRowContext(ctx,
		`INSERT INTO reader_progress (reader_id, date, rating, sessions_completed, chunks_completed, avg_performance, avg_difficulty)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)
		 ON CONFLICT (reader_id, date) DO UPDATE SET
		    rating = EXCLUDED.rating,
		    sessions_completed = EXCLUDED.sessions_completed,
		    chunks_completed = EXCLUDED.chunks_completed,
		    avg_performance = EXCLUDED.avg_performance,
		    avg_difficulty = EXCLUDED.avg_difficulty
		 RETURNING id`,
		readerID, day, rec.Rating, rec.SessionsCompleted, rec.ChunksCompleted, avgPerf, avgDiff,
	).Scan(&rec.ID)
	if err != nil {
		return nil, fmt.Errorf("upsert progress: %w", err)
	}
	return &rec, nil
}

func (s *PostgresStore) History(ctx context.Context, readerID int64, from, to time.Time) ([]models.ProgressRecord, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, reader_id, date, rating, sessions_completed, chunks_completed, avg_performance, avg_difficulty
		 FROM reader_progress
		 WHERE reader_id = $1 AND date >= $2 AND date <= $3
		 ORDER BY date ASC`,
		readerID, from, to,
	)
	if err != nil {
		return nil, fmt.Errorf("query history: %w", err)
	}
	defer rows.Close()

	var records []models.ProgressRecord
	for rows.Next() {
		var rec models.ProgressRecord
		var avgPerf, avgDiff sql.NullFloat64
		if err := rows.Scan(&rec.ID, &rec.ReaderID, &rec.Date, &rec.Rating,
			&rec.SessionsCompleted, &rec.ChunksCompleted, &avgPerf, &avgDiff); err != nil {
			return nil, fmt.Errorf("scan history: %w", err)
		}
		rec.AvgPerformance = floatPtr(avgPerf)
		rec.AvgDifficulty = floatPtr(avgDiff)
		records = append(records, rec)
	}
	return records, rows.Err()
}

// ── Session audit ───────────────────────────────────────

func (s *PostgresStore) CreateSession(ctx context.Context, rs *models.ReadingSession) error {
	err := s.db.QueryRowContext(ctx,
		`INSERT INTO reading_sessions (id, reader_id, title, source_url, status, total_chunks)
		 VALUES ($1, $2, $3, $4, $5, $6)
		 RETURNING created_at, updated_at`,
		rs.ID, rs.ReaderID, rs.Title, rs.SourceURL, rs.Status, rs.TotalChunks,
	).Scan(&rs.CreatedAt, &rs.UpdatedAt)
	if err != nil {
		return fmt.Errorf("insert session: %w", err)
	}
	return nil
}

// UpdateSession writes progress counters; rating_change is summed from feedback.
func (s *PostgresStore) UpdateSession(ctx context.Context, rs *models.ReadingSession) error {
	err := s.db.QueryRowContext(ctx,
		`UPDATE reading_sessions SET
		    status = $2,
		    completed_chunks = $3,
		    total_chunks = $4,
		    average_difficulty = $5,
		    rating_change = (SELECT COALESCE(SUM(rating_delta), 0) FROM chunk_feedback WHERE session_id = $1),
		    updated_at = NOW()
		 WHERE id = $1
		 RETURNING rating_change, updated_at`,
		rs.ID, rs.Status, rs.CompletedChunks, rs.TotalChunks, rs.AverageDifficulty,
	).Scan(&rs.RatingChange, &rs.UpdatedAt)
	if err != nil {
		return fmt.Errorf("update session: %w", err)
	}
	return nil
}

func (s *PostgresStore) AbandonStaleSessions(ctx context.Context, before time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx,
		`UPDATE reading_sessions SET status = 'abandoned', updated_at = NOW()
		 WHERE status = 'active' AND updated_at < $1`,
		before,
	)
	if err != nil {
		return 0, fmt.Errorf("abandon sessions: %w", err)
	}
	return res.RowsAffected()
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func floatPtr(f sql.NullFloat64) *float64 {
	if !f.Valid {
		return nil
	}
	v := f.Float64
	return &v
}
