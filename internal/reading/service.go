package reading

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"

	"github.com/adaptive-reader/backend/internal/adaptive"
	"github.com/adaptive-reader/backend/internal/chunker"
	"github.com/adaptive-reader/backend/internal/extract"
	"github.com/adaptive-reader/backend/internal/generator"
	"github.com/adaptive-reader/backend/internal/models"
	"github.com/adaptive-reader/backend/internal/progress"
	"github.com/adaptive-reader/backend/internal/rating"
	"github.com/adaptive-reader/backend/internal/session"
	"golang.org/x/sync/errgroup"
)

const (
	gradeFallbackReview = "We could not review your answers this time."
	hintFallback        = "I can't provide a hint right now. Please try again later."
	summaryConcurrency  = 4
	titleWords          = 8
)

var ErrUnreadableURL = errors.New("could not read text from url")

// Tutor is the set of language-model tasks a reading session needs.
type Tutor interface {
	adaptive.Assessor
	adaptive.Simplifier
	GenerateQuestions(ctx context.Context, text string) ([]string, error)
	Grade(ctx context.Context, text string, questions, answers []string) (*generator.Review, error)
	Summarize(ctx context.Context, text string) (string, error)
	Hint(ctx context.Context, text string) (string, error)
}

type Fetcher interface {
	Fetch(ctx context.Context, url string) (*extract.Article, error)
}

type Options struct {
	Adaptation adaptive.Config
	// NeutralPerformance is the score recorded when grading fails.
	NeutralPerformance float64
}

type Service struct {
	sessions     *session.Manager
	ledger       *progress.Ledger
	chunker      chunker.Chunker
	tutor        Tutor
	fetcher      Fetcher
	orchestrator *adaptive.Orchestrator
	readerLocks  session.KeyedMutex[int64]
	opts         Options
}

func NewService(sessions *session.Manager, ledger *progress.Ledger, ch chunker.Chunker, tutor Tutor, fetcher Fetcher, opts Options) *Service {
	if opts.Adaptation.DefaultDifficulty <= 0 {
		opts.Adaptation.DefaultDifficulty = adaptive.DefaultDifficulty
	}
	opts.NeutralPerformance = rating.ClampPerformance(opts.NeutralPerformance)

	log.Printf("[reading] min_chunk_length=%d default_difficulty=%.0f report_simplified_on_failure=%v neutral=%.0f",
		opts.Adaptation.MinChunkLength, opts.Adaptation.DefaultDifficulty,
		opts.Adaptation.ReportSimplifiedOnFailure, opts.NeutralPerformance)

	return &Service{
		sessions:     sessions,
		ledger:       ledger,
		chunker:      ch,
		tutor:        tutor,
		fetcher:      fetcher,
		orchestrator: adaptive.NewOrchestrator(tutor, tutor, opts.Adaptation),
		opts:         opts,
	}
}

// ── Sessions ────────────────────────────────────────────

// StartSession chunks the submitted text (or the article at URL), rates the
// first chunk and opens a new session for the reader.
func (s *Service) StartSession(ctx context.Context, readerID int64, req models.StartSessionRequest) (*models.SessionResponse, error) {
	text := strings.TrimSpace(req.Text)
	var title string
	sourceURL := strings.TrimSpace(req.URL)

	if text == "" && sourceURL != "" {
		if s.fetcher == nil {
			return nil, fmt.Errorf("url import is disabled: %w", adaptive.ErrInvalidInput)
		}
		article, err := s.fetcher.Fetch(ctx, sourceURL)
		if err != nil {
			log.Printf("WARN: [reading] fetch %s failed: %v", sourceURL, err)
			return nil, fmt.Errorf("%w: %v", ErrUnreadableURL, err)
		}
		text, title = article.Text, article.Title
	}
	if text == "" {
		return nil, fmt.Errorf("text is required: %w", adaptive.ErrInvalidInput)
	}
	if title == "" {
		title = deriveTitle(text)
	}

	chunks, err := s.chunker.Chunk(ctx, text)
	if err != nil {
		return nil, fmt.Errorf("chunk text: %w", err)
	}

	sess, err := session.New(readerID, chunks)
	if err != nil {
		return nil, err
	}
	sess.Title = title
	sess.SourceURL = sourceURL

	// Difficulty of the first chunk and every summary run side by side;
	// each goroutine writes only its own chunk.
	var g errgroup.Group
	g.SetLimit(summaryConcurrency)
	g.Go(func() error {
		d := s.orchestrator.AssessOrDefault(ctx, sess.Chunks[0].Text)
		sess.Chunks[0].Difficulty = &d
		return nil
	})
	for i := range sess.Chunks {
		g.Go(func() error {
			sess.Chunks[i].Summary = s.summarize(ctx, sess.Chunks[i].Text)
			return nil
		})
	}
	_ = g.Wait()

	if err := s.ledger.OpenSession(ctx, sess.Record()); err != nil {
		return nil, err
	}
	if err := s.sessions.Create(ctx, sess); err != nil {
		return nil, err
	}

	log.Printf("[reading] reader %d started session %s (%d chunks)", readerID, sess.ID, len(sess.Chunks))
	return s.respond(ctx, sess), nil
}

func (s *Service) GetSession(ctx context.Context, readerID int64, id string) (*models.SessionResponse, error) {
	sess, err := s.sessions.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if sess.ReaderID != readerID {
		return nil, session.ErrNotFound
	}
	return s.respond(ctx, sess), nil
}

// ResetSession restarts the text from the first chunk with fresh state.
func (s *Service) ResetSession(ctx context.Context, readerID int64, id string) (*models.SessionResponse, error) {
	sess, err := s.sessions.Update(ctx, id, func(sess *session.Session) error {
		if sess.ReaderID != readerID {
			return session.ErrNotFound
		}
		sess.Reset()
		d := s.orchestrator.AssessOrDefault(ctx, sess.Chunks[0].Text)
		sess.Chunks[0].Difficulty = &d
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.syncAudit(ctx, sess)
	return s.respond(ctx, sess), nil
}

// ── Questions ───────────────────────────────────────────

// Questions returns the active chunk's questions, generating and caching
// them on first use.
func (s *Service) Questions(ctx context.Context, readerID int64, id string) (*models.QuestionsResponse, error) {
	var resp models.QuestionsResponse
	_, err := s.sessions.Update(ctx, id, func(sess *session.Session) error {
		if sess.ReaderID != readerID {
			return session.ErrNotFound
		}
		idx, err := sess.Active()
		if err != nil {
			return err
		}
		chunk := &sess.Chunks[idx]
		resp.ChunkID = chunk.ID

		if len(chunk.Questions) > 0 {
			resp.Questions = chunk.Questions
			return nil
		}

		questions, err := s.tutor.GenerateQuestions(ctx, chunk.Text)
		if err != nil || len(questions) == 0 {
			log.Printf("WARN: [reading] question generation failed for chunk %d: %v; using defaults", chunk.ID, err)
			questions = append([]string(nil), generator.DefaultQuestions...)
			resp.Fallback = true
		}
		chunk.Questions = questions
		resp.Questions = questions
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &resp, nil
}

// ── Answers ─────────────────────────────────────────────

// SubmitAnswers grades the active chunk, updates the reader's rating and
// prepares the next chunk. A rating write failure aborts before the
// session changes, so the same answers can be submitted again.
func (s *Service) SubmitAnswers(ctx context.Context, readerID int64, id string, answers []string) (*models.SubmitAnswersResponse, error) {
	if len(answers) == 0 {
		return nil, fmt.Errorf("answers are required: %w", adaptive.ErrInvalidInput)
	}

	unlock := s.readerLocks.Lock(readerID)
	defer unlock()

	var resp models.SubmitAnswersResponse
	sess, err := s.sessions.Update(ctx, id, func(sess *session.Session) error {
		if sess.ReaderID != readerID {
			return session.ErrNotFound
		}
		idx, err := sess.Active()
		if err != nil {
			return err
		}
		chunk := &sess.Chunks[idx]

		questions := chunk.Questions
		if len(questions) == 0 {
			questions = generator.DefaultQuestions
		}

		performance, review, fellBack := s.grade(ctx, chunk, questions, answers)
		difficulty := s.opts.Adaptation.DefaultDifficulty
		if chunk.Difficulty != nil {
			difficulty = *chunk.Difficulty
		}

		result, err := s.ledger.ApplyGrade(ctx, progress.Grade{
			ReaderID:    readerID,
			SessionID:   sess.ID,
			Attempt:     sess.Attempt,
			ChunkID:     chunk.ID,
			Performance: performance,
			Difficulty:  difficulty,
			Review:      review,
		})
		if err != nil {
			return err
		}

		chunk.Performance = &performance
		chunk.Review = review
		sess.Complete(idx)

		resp.ChunkID = chunk.ID
		resp.Review = review
		resp.Performance = performance
		resp.GradeFallback = fellBack
		resp.Rating = *result

		next, ok := sess.NextIndex(idx)
		if !ok {
			sess.State = sess.State.RecordPerformance(performance)
			sess.Finish()
			return nil
		}

		nc := sess.Chunks[next]
		adapted, err := s.orchestrator.OnChunkGraded(ctx, sess.State,
			adaptive.GradedChunk{ID: chunk.ID, Text: chunk.Text, Performance: performance, Difficulty: difficulty},
			adaptive.NextChunk{ID: nc.ID, Text: nc.Text, Difficulty: nc.Difficulty, Following: sess.Following(next)},
		)
		if err != nil {
			return err
		}

		sess.State = adapted.State
		target := sess.Advance(next, adapted.Merged, adapted.Text)
		tc := &sess.Chunks[target]
		tc.IsSimplified = adapted.Simplified
		tc.SimplificationLevel = adapted.SimplificationLevel
		newDifficulty := adapted.NewDifficulty
		tc.Difficulty = &newDifficulty

		resp.Adaptation = &models.Adaptation{
			NextChunkID:         tc.ID,
			Simplified:          adapted.Simplified,
			Factor:              adapted.Factor,
			SimplificationLevel: adapted.SimplificationLevel,
			OriginalDifficulty:  adapted.OriginalDifficulty,
			NewDifficulty:       adapted.NewDifficulty,
			MergedChunks:        adapted.Merged,
			Path:                string(adapted.Path),
		}
		nextChunk := *tc
		resp.NextChunk = &nextChunk
		return nil
	})
	if err != nil {
		return nil, err
	}

	resp.SessionStatus = sess.Status
	resp.RunningAverage = sess.State.RunningPerformance
	s.syncAudit(ctx, sess)

	log.Printf("[reading] reader %d chunk %d scored %.0f, rating %d -> %d",
		readerID, resp.ChunkID, resp.Performance, resp.Rating.PreviousRating, resp.Rating.NewRating)
	return &resp, nil
}

func (s *Service) grade(ctx context.Context, chunk *models.TextChunk, questions, answers []string) (float64, string, bool) {
	review, err := s.tutor.Grade(ctx, chunk.Text, questions, answers)
	if err != nil {
		log.Printf("WARN: [reading] grading failed for chunk %d: %v; using neutral score", chunk.ID, err)
		return s.opts.NeutralPerformance, gradeFallbackReview, true
	}
	return rating.ClampPerformance(review.Rating), review.Review, false
}

// ── Hints and summaries ─────────────────────────────────

// HintForSession returns a hint for the session's active chunk.
func (s *Service) HintForSession(ctx context.Context, readerID int64, id string) (string, error) {
	sess, err := s.sessions.Get(ctx, id)
	if err != nil {
		return "", err
	}
	if sess.ReaderID != readerID {
		return "", session.ErrNotFound
	}
	idx, err := sess.Active()
	if err != nil {
		return "", err
	}
	return s.Hint(ctx, sess.Chunks[idx].Text), nil
}

// Hint never fails; a fixed message stands in for provider errors.
func (s *Service) Hint(ctx context.Context, text string) string {
	hint, err := s.tutor.Hint(ctx, text)
	if err != nil {
		log.Printf("WARN: [reading] hint failed: %v", err)
		return hintFallback
	}
	return hint
}

func (s *Service) summarize(ctx context.Context, text string) string {
	summary, err := s.tutor.Summarize(ctx, text)
	if err != nil {
		log.Printf("WARN: [reading] summary failed: %v", err)
		return ""
	}
	return summary
}

// ── Helpers ─────────────────────────────────────────────

// syncAudit is best-effort: the grade itself is already committed.
func (s *Service) syncAudit(ctx context.Context, sess *session.Session) {
	if err := s.ledger.SyncSession(ctx, sess.Record()); err != nil {
		log.Printf("WARN: [reading] session %s audit update failed: %v", sess.ID, err)
	}
}

func (s *Service) respond(ctx context.Context, sess *session.Session) *models.SessionResponse {
	resp := &models.SessionResponse{
		ID:     sess.ID,
		Title:  sess.Title,
		Status: sess.Status,
		Chunks: sess.Chunks,
	}
	if idx, err := sess.Active(); err == nil {
		resp.ActiveChunkID = sess.Chunks[idx].ID
	}
	reader, err := s.ledger.Reader(ctx, sess.ReaderID)
	if err != nil {
		log.Printf("WARN: [reading] load reader %d: %v", sess.ReaderID, err)
		return resp
	}
	resp.ReaderRating = reader.Rating
	resp.ReadingLevel = rating.ReadingLevel(float64(reader.Rating))
	return resp
}

func deriveTitle(text string) string {
	words := strings.Fields(text)
	if len(words) <= titleWords {
		return strings.Join(words, " ")
	}
	return strings.Join(words[:titleWords], " ") + "..."
}
