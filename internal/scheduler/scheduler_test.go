package scheduler

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/thinkscotty/civicwire/internal/ingest"
	"github.com/thinkscotty/civicwire/internal/models"
)

type fakeRunner struct {
	triggers []ingest.Trigger
	err      error
	panics   bool
}

func (f *fakeRunner) Run(ctx context.Context, trig ingest.Trigger) (ingest.Summary, error) {
	f.triggers = append(f.triggers, trig)
	if f.panics {
		panic("boom")
	}
	return ingest.Summary{RunID: "run-1"}, f.err
}

type fakeSessions struct {
	sweeps int
	err    error
}

func (f *fakeSessions) DeleteExpiredSessions() (int64, error) {
	f.sweeps++
	return 1, f.err
}

var t0 = time.Date(2026, 10, 19, 6, 0, 0, 0, time.UTC)

func TestCheckAndRunHonorsInterval(t *testing.T) {
	runner := &fakeRunner{}
	sessions := &fakeSessions{}
	s := New(runner, sessions, time.Hour, false)
	s.start(t0)

	ctx := context.Background()
	s.checkAndRun(ctx, t0)
	assert.Empty(t, runner.triggers)
	assert.Equal(t, 1, sessions.sweeps)

	s.checkAndRun(ctx, t0.Add(61*time.Minute))
	require.Len(t, runner.triggers, 1)
	assert.Equal(t, models.TriggerCron, runner.triggers[0].Origin)
	assert.Nil(t, runner.triggers[0].ActorID)

	s.checkAndRun(ctx, t0.Add(62*time.Minute))
	assert.Len(t, runner.triggers, 1)

	s.checkAndRun(ctx, t0.Add(122*time.Minute))
	assert.Len(t, runner.triggers, 2)
	assert.Equal(t, 4, sessions.sweeps)
}

func TestRunOnStart(t *testing.T) {
	runner := &fakeRunner{}
	s := New(runner, &fakeSessions{}, time.Hour, true)
	s.start(t0)

	s.checkAndRun(context.Background(), t0)
	assert.Len(t, runner.triggers, 1)
}

func TestZeroIntervalDisablesIngest(t *testing.T) {
	runner := &fakeRunner{}
	sessions := &fakeSessions{}
	s := New(runner, sessions, 0, true)
	s.start(t0)

	s.checkAndRun(context.Background(), t0)
	s.checkAndRun(context.Background(), t0.Add(48*time.Hour))
	assert.Empty(t, runner.triggers)
	assert.Equal(t, 2, sessions.sweeps)
}

func TestRunnerErrorsDoNotStopScheduler(t *testing.T) {
	tests := []struct {
		name   string
		runner *fakeRunner
	}{
		{"in progress", &fakeRunner{err: ingest.ErrRunInProgress}},
		{"failed", &fakeRunner{err: errors.New("analysis failed")}},
		{"panic", &fakeRunner{panics: true}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := New(tt.runner, &fakeSessions{err: errors.New("db locked")}, time.Hour, true)
			s.start(t0)

			assert.NotPanics(t, func() {
				s.checkAndRun(context.Background(), t0)
				s.checkAndRun(context.Background(), t0.Add(2*time.Hour))
			})
			assert.Len(t, tt.runner.triggers, 2)
		})
	}
}

func TestRunStopsOnCancel(t *testing.T) {
	s := New(&fakeRunner{}, &fakeSessions{}, 0, false)
	s.tick = time.Millisecond

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		s.Run(ctx)
		close(done)
	}()
	cancel()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("scheduler did not stop after cancel")
	}
}
