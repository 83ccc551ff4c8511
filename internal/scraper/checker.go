// Package scraper checks the health of configured feed sources and, when a
// feed is broken, looks for a replacement feed on the source's home page.
package scraper

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/thinkscotty/civicwire/internal/models"
)

// SourceFetcher fetches a single feed. *feeds.Reader satisfies it.
type SourceFetcher interface {
	FetchSource(ctx context.Context, src models.FeedSource, limit int) ([]models.FeedItem, error)
}

// Report is the health of one source.
type Report struct {
	SourceID         string           `json:"sourceId"`
	Name             string           `json:"name"`
	FeedURL          string           `json:"feedUrl"`
	Bias             models.BiasLabel `json:"bias"`
	OK               bool             `json:"ok"`
	Items            int              `json:"items"`
	Latest           *time.Time       `json:"latest,omitempty"`
	Error            string           `json:"error,omitempty"`
	SuggestedFeedURL string           `json:"suggestedFeedUrl,omitempty"`
}

// Checker validates feed sources concurrently.
type Checker struct {
	fetcher       SourceFetcher
	parallelLimit int
	discover      func(ctx context.Context, pageURL string) string
}

func New(fetcher SourceFetcher) *Checker {
	return &Checker{
		fetcher:       fetcher,
		parallelLimit: 5,
		discover:      DiscoverFeed,
	}
}

// Check returns one report per source, in source order.
func (c *Checker) Check(ctx context.Context, sources []models.FeedSource) []Report {
	reports := make([]Report, len(sources))

	sem := make(chan struct{}, c.parallelLimit)
	var wg sync.WaitGroup

	for i, source := range sources {
		wg.Add(1)
		go func(i int, src models.FeedSource) {
			defer wg.Done()
			defer func() {
				if r := recover(); r != nil {
					reports[i] = newReport(src)
					reports[i].Error = fmt.Sprintf("panic while checking: %v", r)
				}
			}()

			sem <- struct{}{}
			defer func() { <-sem }()

			reports[i] = c.checkOne(ctx, src)
		}(i, source)
	}

	wg.Wait()

	failed := 0
	for _, r := range reports {
		if !r.OK {
			failed++
		}
	}
	slog.Info("Checked feed sources", "sources", len(sources), "failed", failed)
	return reports
}

func newReport(src models.FeedSource) Report {
	return Report{SourceID: src.ID, Name: src.Name, FeedURL: src.FeedURL, Bias: src.Bias}
}

func (c *Checker) checkOne(ctx context.Context, src models.FeedSource) Report {
	report := newReport(src)

	if err := ValidateURL(src.FeedURL); err != nil {
		report.Error = err.Error()
		return report
	}

	checkCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	items, err := c.fetcher.FetchSource(checkCtx, src, 0)
	switch {
	case err != nil:
		report.Error = err.Error()
	case len(items) == 0:
		report.Error = "feed has no usable entries"
	default:
		report.OK = true
		report.Items = len(items)
		latest := items[0].PublishedAt
		for _, it := range items[1:] {
			if it.PublishedAt.After(latest) {
				latest = it.PublishedAt
			}
		}
		report.Latest = &latest
		return report
	}

	slog.Warn("Feed source unhealthy", "source", src.ID, "error", report.Error)
	if root := siteRoot(src.FeedURL); root != "" {
		if found := c.discover(checkCtx, root); found != "" && found != src.FeedURL {
			report.SuggestedFeedURL = found
			slog.Info("Discovered alternate feed", "source", src.ID, "feed_url", found)
		}
	}
	return report
}
