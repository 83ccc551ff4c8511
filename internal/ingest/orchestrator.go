// Package ingest runs the daily ingestion pipeline: fetch feeds, filter for
// freshness, select a bias-balanced batch, analyze and persist new stories,
// prune old ones, and record the run in the ledger.
package ingest

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"
	"sync"
	"time"

	"github.com/thinkscotty/civicwire/internal/ai"
	"github.com/thinkscotty/civicwire/internal/balance"
	"github.com/thinkscotty/civicwire/internal/database"
	"github.com/thinkscotty/civicwire/internal/feeds"
	"github.com/thinkscotty/civicwire/internal/models"
)

const (
	DefaultItemsPerSource = 6
	DefaultBatchSize      = 18

	DefaultFreshness = 72 * time.Hour
	MinFreshness     = 12 * time.Hour
	DefaultRetention = 14 * 24 * time.Hour
	MinRetention     = 7 * 24 * time.Hour

	// fetchBudget covers every feed wave at the reader's transport timeout.
	fetchBudget = 2 * time.Minute
)

// ErrRunInProgress is returned when another run holds the run gate or is
// still marked running in the ledger. No run record is created.
var ErrRunInProgress = errors.New("ingestion run already in progress")

// Store is the persistence the orchestrator needs.
type Store interface {
	CreateRun(run *models.IngestRun) error
	FinishRun(run *models.IngestRun) error
	StoryExists(url string) (bool, error)
	CreateStory(s *models.Story) error
	DeleteStoriesPublishedBefore(cutoff time.Time) (int64, error)
}

type Fetcher interface {
	Fetch(ctx context.Context, sources []models.FeedSource, limitPerSource int) feeds.Result
}

type Analyzer interface {
	Analyze(ctx context.Context, a ai.Article) (models.StoryAnalysis, error)
}

// Options configures a pipeline. Zero values select the defaults. Any other
// freshness or retention window is raised to its floor, negative ones
// included.
type Options struct {
	Provider        string
	Sources         []models.FeedSource
	ItemsPerSource  int
	BatchSize       int
	FreshnessWindow time.Duration
	RetentionWindow time.Duration
}

// Trigger describes who started a run.
type Trigger struct {
	Origin  models.TriggerOrigin
	ActorID *string
}

type SourceFailure struct {
	Source string `json:"source"`
	Error  string `json:"error"`
}

// Summary is the outcome of one run. On failure it carries the counters
// accumulated before the error.
type Summary struct {
	RunID          string          `json:"runId"`
	Provider       string          `json:"provider"`
	Processed      int             `json:"processed"`
	Created        int             `json:"created"`
	Skipped        int             `json:"skipped"`
	Pruned         int64           `json:"pruned"`
	SourceFailures []SourceFailure `json:"sourceFailures"`
}

type Orchestrator struct {
	store    Store
	fetcher  Fetcher
	analyzer Analyzer
	opts     Options
	gate     sync.Mutex
	now      func() time.Time
}

func New(store Store, fetcher Fetcher, analyzer Analyzer, opts Options) *Orchestrator {
	if opts.ItemsPerSource <= 0 {
		opts.ItemsPerSource = DefaultItemsPerSource
	}
	if opts.BatchSize <= 0 {
		opts.BatchSize = DefaultBatchSize
	}
	if opts.FreshnessWindow == 0 {
		opts.FreshnessWindow = DefaultFreshness
	}
	opts.FreshnessWindow = max(opts.FreshnessWindow, MinFreshness)
	if opts.RetentionWindow == 0 {
		opts.RetentionWindow = DefaultRetention
	}
	opts.RetentionWindow = max(opts.RetentionWindow, MinRetention)

	return &Orchestrator{
		store:    store,
		fetcher:  fetcher,
		analyzer: analyzer,
		opts:     opts,
		now:      time.Now,
	}
}

// Options returns the effective options after defaults and floors.
func (o *Orchestrator) Options() Options { return o.opts }

// MaxDuration is the deadline Run places on a pipeline: the feed fetch plus
// one model call per batch slot.
func (o *Orchestrator) MaxDuration() time.Duration {
	return fetchBudget + time.Duration(o.opts.BatchSize)*ai.RequestTimeout
}

// Run executes one ingestion. The run record is closed exactly once, as
// success or failed, even if the pipeline panics. The pipeline stops when ctx
// is done or MaxDuration elapses.
func (o *Orchestrator) Run(ctx context.Context, trig Trigger) (sum Summary, err error) {
	if !o.gate.TryLock() {
		return Summary{}, ErrRunInProgress
	}
	defer o.gate.Unlock()

	ctx, cancel := context.WithTimeout(ctx, o.MaxDuration())
	defer cancel()

	run := &models.IngestRun{
		Provider:    o.opts.Provider,
		TriggeredBy: trig.Origin,
		ActorID:     trig.ActorID,
	}
	if err := o.store.CreateRun(run); err != nil {
		if errors.Is(err, database.ErrRunActive) {
			return Summary{}, ErrRunInProgress
		}
		return Summary{}, fmt.Errorf("start ingest run: %w", err)
	}

	slog.Info("Ingest run started", "run_id", run.ID, "provider", run.Provider, "triggered_by", run.TriggeredBy)
	sum = Summary{RunID: run.ID, Provider: o.opts.Provider, SourceFailures: []SourceFailure{}}

	defer func() {
		if r := recover(); r != nil {
			slog.Error("Panic in ingest run", "run_id", run.ID, "panic", r, "stack", string(debug.Stack()))
			err = fmt.Errorf("panic: %v", r)
		}
		if closeErr := o.finish(run, sum, err); closeErr != nil && err == nil {
			err = closeErr
		}
	}()

	err = o.execute(ctx, &sum)
	return sum, err
}

func (o *Orchestrator) execute(ctx context.Context, sum *Summary) error {
	now := o.now()

	result := o.fetcher.Fetch(ctx, o.opts.Sources, o.opts.ItemsPerSource)
	for _, f := range result.Failures {
		sum.SourceFailures = append(sum.SourceFailures, SourceFailure{Source: f.SourceName, Error: f.Err.Error()})
	}

	cutoff := now.Add(-o.opts.FreshnessWindow)
	fresh := make([]models.FeedItem, 0, len(result.Items))
	for _, item := range result.Items {
		if !item.PublishedAt.Before(cutoff) {
			fresh = append(fresh, item)
		}
	}

	selected := balance.Select(fresh, o.opts.BatchSize)
	mix := balance.Count(selected)
	slog.Info("Ingest batch selected", "fetched", len(result.Items), "fresh", len(fresh),
		"selected", len(selected), "left", mix[models.BiasLeanLeft], "right", mix[models.BiasLeanRight],
		"center", mix[models.BiasCenter], "source_failures", len(result.Failures))

	for _, item := range selected {
		if err := ctx.Err(); err != nil {
			return err
		}
		sum.Processed++

		exists, err := o.store.StoryExists(item.URL)
		if err != nil {
			return err
		}
		if exists {
			sum.Skipped++
			continue
		}

		analysis, err := o.analyzer.Analyze(ctx, ai.Article{
			Title:       item.Title,
			Source:      item.Source,
			Description: item.Description,
			URL:         item.URL,
		})
		if err != nil {
			return err
		}

		story := &models.Story{
			URL:            item.URL,
			Title:          item.Title,
			ImageURL:       item.ImageURL,
			Source:         item.Source,
			PublishedAt:    item.PublishedAt,
			Topic:          item.Topic,
			Analysis:       analysis,
			Bias:           item.Bias,
			RawDescription: item.Description,
		}
		if err := o.store.CreateStory(story); err != nil {
			return fmt.Errorf("save story %s: %w", item.URL, err)
		}
		sum.Created++
	}

	pruned, err := o.store.DeleteStoriesPublishedBefore(now.Add(-o.opts.RetentionWindow))
	if err != nil {
		return fmt.Errorf("prune stories: %w", err)
	}
	sum.Pruned = pruned
	return nil
}

// finish writes the terminal ledger update. The store does not take the
// caller's context, so a cancelled request still closes its run.
func (o *Orchestrator) finish(run *models.IngestRun, sum Summary, runErr error) error {
	run.Processed = sum.Processed
	run.Created = sum.Created
	run.Skipped = sum.Skipped
	run.Status = models.RunSuccess
	if runErr != nil {
		run.Status = models.RunFailed
		run.ErrorMessage = runErr.Error()
	}

	if err := o.store.FinishRun(run); err != nil {
		slog.Error("Failed to close ingest run", "run_id", run.ID, "error", err)
		return fmt.Errorf("close ingest run: %w", err)
	}

	if runErr != nil {
		slog.Error("Ingest run failed", "run_id", run.ID, "processed", sum.Processed,
			"created", sum.Created, "skipped", sum.Skipped, "error", runErr)
		return nil
	}
	slog.Info("Ingest run finished", "run_id", run.ID, "processed", sum.Processed,
		"created", sum.Created, "skipped", sum.Skipped, "pruned", sum.Pruned,
		"source_failures", len(sum.SourceFailures))
	return nil
}
