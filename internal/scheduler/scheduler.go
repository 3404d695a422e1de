package scheduler

import (
	"context"
	"log"
	"time"

	"github.com/adaptive-reader/backend/internal/config"
	"github.com/go-co-op/gocron"
)

const (
	evictInterval  = 10 * time.Minute
	abandonTimeout = 30 * time.Second
)

// Evictor drops idle in-process sessions. Nil when sessions live in Redis,
// which expires them itself.
type Evictor interface {
	EvictIdle(before time.Time) int
}

// Abandoner marks audit rows of sessions nobody finished.
type Abandoner interface {
	AbandonStale(ctx context.Context, before time.Time) (int64, error)
}

// Scheduler runs housekeeping for reading sessions.
type Scheduler struct {
	scheduler *gocron.Scheduler
	sessions  Evictor
	ledger    Abandoner
	cfg       config.SchedulerConfig
	now       func() time.Time
}

func New(sessions Evictor, ledger Abandoner, cfg config.SchedulerConfig) *Scheduler {
	return &Scheduler{
		scheduler: gocron.NewScheduler(time.UTC),
		sessions:  sessions,
		ledger:    ledger,
		cfg:       cfg,
		now:       time.Now,
	}
}

// Start registers the jobs and runs them in the background.
func (s *Scheduler) Start() error {
	if s.sessions != nil && s.cfg.SessionIdleTimeout > 0 {
		if _, err := s.scheduler.Every(evictInterval).Do(func() { s.EvictIdle() }); err != nil {
			return err
		}
	}
	if s.ledger != nil && s.cfg.AbandonAfter > 0 {
		if _, err := s.scheduler.Every(1).Hour().Do(func() { s.AbandonStale() }); err != nil {
			return err
		}
	}
	s.scheduler.StartAsync()
	log.Printf("[scheduler] started with %d job(s)", len(s.scheduler.Jobs()))
	return nil
}

func (s *Scheduler) Stop() {
	s.scheduler.Stop()
}

// EvictIdle drops sessions idle longer than SessionIdleTimeout.
func (s *Scheduler) EvictIdle() int {
	n := s.sessions.EvictIdle(s.now().Add(-s.cfg.SessionIdleTimeout))
	if n > 0 {
		log.Printf("[scheduler] evicted %d idle session(s)", n)
	}
	return n
}

// AbandonStale marks sessions untouched for AbandonAfter as abandoned.
func (s *Scheduler) AbandonStale() int64 {
	ctx, cancel := context.WithTimeout(context.Background(), abandonTimeout)
	defer cancel()

	n, err := s.ledger.AbandonStale(ctx, s.now().Add(-s.cfg.AbandonAfter))
	if err != nil {
		log.Printf("WARN: [scheduler] abandon stale sessions: %v", err)
		return 0
	}
	if n > 0 {
		log.Printf("[scheduler] marked %d session(s) abandoned", n)
	}
	return n
}
