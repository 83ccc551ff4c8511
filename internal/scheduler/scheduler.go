package scheduler

import (
	"context"
	"errors"
	"log/slog"
	"runtime/debug"
	"time"

	"github.com/thinkscotty/civicwire/internal/ingest"
	"github.com/thinkscotty/civicwire/internal/models"
)

// Runner starts one ingestion run. *ingest.Orchestrator satisfies it.
type Runner interface {
	Run(ctx context.Context, trig ingest.Trigger) (ingest.Summary, error)
}

type SessionStore interface {
	DeleteExpiredSessions() (int64, error)
}

// Scheduler triggers cron-origin ingestion runs at a fixed interval and
// sweeps expired sessions on every tick.
type Scheduler struct {
	runner     Runner
	sessions   SessionStore
	interval   time.Duration
	runOnStart bool
	tick       time.Duration
	nextRun    time.Time
	now        func() time.Time
}

// New creates a scheduler. An interval of zero disables scheduled ingestion;
// session cleanup still runs.
func New(runner Runner, sessions SessionStore, interval time.Duration, runOnStart bool) *Scheduler {
	return &Scheduler{
		runner:     runner,
		sessions:   sessions,
		interval:   interval,
		runOnStart: runOnStart,
		tick:       60 * time.Second,
		now:        time.Now,
	}
}

// Run starts the scheduler loop. It checks whether a run is due every 60 seconds.
func (s *Scheduler) Run(ctx context.Context) {
	ticker := time.NewTicker(s.tick)
	defer ticker.Stop()

	s.start(s.now())
	slog.Info("Scheduler started", "interval", s.interval, "next_run", s.nextRun)

	s.checkAndRun(ctx, s.now())

	for {
		select {
		case <-ctx.Done():
			slog.Info("Scheduler stopped")
			return
		case <-ticker.C:
			s.checkAndRun(ctx, s.now())
		}
	}
}

func (s *Scheduler) start(now time.Time) {
	s.nextRun = now.Add(s.interval)
	if s.runOnStart {
		s.nextRun = now
	}
}

func (s *Scheduler) checkAndRun(ctx context.Context, now time.Time) {
	// Clean up expired sessions on each tick
	if n, err := s.sessions.DeleteExpiredSessions(); err != nil {
		slog.Error("Failed to delete expired sessions", "error", err)
	} else if n > 0 {
		slog.Debug("Cleaned up expired sessions", "count", n)
	}

	if s.interval <= 0 || now.Before(s.nextRun) || ctx.Err() != nil {
		return
	}
	s.nextRun = now.Add(s.interval)
	s.safeRunIngest(ctx)
}

func (s *Scheduler) safeRunIngest(ctx context.Context) {
	defer func() {
		if r := recover(); r != nil {
			slog.Error("Panic in scheduled ingest", "panic", r, "stack", string(debug.Stack()))
		}
	}()

	sum, err := s.runner.Run(ctx, ingest.Trigger{Origin: models.TriggerCron})
	switch {
	case errors.Is(err, ingest.ErrRunInProgress):
		slog.Info("Scheduled ingest skipped, another run is in progress")
	case err != nil:
		slog.Error("Scheduled ingest failed", "run_id", sum.RunID, "error", err)
	default:
		slog.Info("Scheduled ingest completed", "run_id", sum.RunID, "created", sum.Created, "next_run", s.nextRun)
	}
}
