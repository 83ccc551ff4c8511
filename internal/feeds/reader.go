package feeds

import (
	"context"
	"fmt"
	"html"
	"io"
	"log/slog"
	"net/http"
	"sort"
	"strings"
	"time"

	"github.com/microcosm-cc/bluemonday"
	"github.com/mmcdole/gofeed"
	"github.com/thinkscotty/civicwire/internal/models"
	"golang.org/x/sync/errgroup"
)

const defaultUserAgent = "civicwire/1.0 (Daily civic news ingest; +https://github.com/thinkscotty/civicwire)"

// SourceError records why a single feed contributed no items to a run.
type SourceError struct {
	SourceID   string
	SourceName string
	Err        error
}

func (e SourceError) Error() string {
	return fmt.Sprintf("feed %s: %v", e.SourceID, e.Err)
}

func (e SourceError) Unwrap() error { return e.Err }

// Result is the merged output of a multi-source fetch.
type Result struct {
	Items    []models.FeedItem
	Failures []SourceError
}

// Reader fetches and normalizes RSS/Atom feeds.
type Reader struct {
	httpClient    *http.Client
	userAgent     string
	parallelLimit int
	policy        *bluemonday.Policy
	now           func() time.Time
}

// NewReader creates a Reader with a 20 second transport timeout.
func NewReader() *Reader {
	policy := bluemonday.StrictPolicy()
	policy.AddSpaceWhenStrippingTag(true)
	return &Reader{
		httpClient:    &http.Client{Timeout: 20 * time.Second},
		userAgent:     defaultUserAgent,
		parallelLimit: 4,
		policy:        policy,
		now:           time.Now,
	}
}

// WithHTTPClient replaces the client used for feed requests.
func (r *Reader) WithHTTPClient(c *http.Client) *Reader {
	r.httpClient = c
	return r
}

// Fetch reads every source concurrently and returns their items merged and
// sorted newest first. A source that cannot be fetched or parsed is recorded
// in Result.Failures and contributes nothing.
func (r *Reader) Fetch(ctx context.Context, sources []models.FeedSource, limitPerSource int) Result {
	perSource := make([][]models.FeedItem, len(sources))
	errs := make([]error, len(sources))

	var g errgroup.Group
	g.SetLimit(r.parallelLimit)
	for i, src := range sources {
		g.Go(func() error {
			items, err := r.FetchSource(ctx, src, limitPerSource)
			perSource[i] = items
			errs[i] = err
			return nil
		})
	}
	g.Wait()

	var res Result
	for i, src := range sources {
		if errs[i] != nil {
			slog.Warn("Skipping feed source", "source", src.ID, "error", errs[i])
			res.Failures = append(res.Failures, SourceError{SourceID: src.ID, SourceName: src.Name, Err: errs[i]})
			continue
		}
		res.Items = append(res.Items, perSource[i]...)
	}

	sort.SliceStable(res.Items, func(a, b int) bool {
		return res.Items[a].PublishedAt.After(res.Items[b].PublishedAt)
	})

	slog.Info("Fetched feeds", "sources", len(sources), "failed", len(res.Failures), "items", len(res.Items))
	return res
}

// FetchSource fetches one feed and returns at most limit normalized items in
// feed order.
func (r *Reader) FetchSource(ctx context.Context, src models.FeedSource, limit int) ([]models.FeedItem, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, src.FeedURL, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("User-Agent", r.userAgent)
	req.Header.Set("Accept", "application/rss+xml, application/atom+xml, application/xml;q=0.9, */*;q=0.8")

	resp, err := r.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		return nil, fmt.Errorf("fetch: status %d", resp.StatusCode)
	}

	feed, err := gofeed.NewParser().Parse(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("parse: %w", err)
	}

	var items []models.FeedItem
	for _, raw := range feed.Items {
		if limit > 0 && len(items) >= limit {
			break
		}
		item, ok := r.normalize(src, raw)
		if !ok {
			continue
		}
		items = append(items, item)
	}
	return items, nil
}

func (r *Reader) normalize(src models.FeedSource, raw *gofeed.Item) (models.FeedItem, bool) {
	if raw == nil {
		return models.FeedItem{}, false
	}
	title := strings.TrimSpace(raw.Title)
	link := strings.TrimSpace(raw.Link)
	if link == "" && len(raw.Links) > 0 {
		link = strings.TrimSpace(raw.Links[0])
	}
	if title == "" || link == "" {
		return models.FeedItem{}, false
	}

	desc := raw.Description
	if strings.TrimSpace(desc) == "" {
		desc = raw.Content
	}

	return models.FeedItem{
		Source:      src.Name,
		Bias:        src.Bias,
		Topic:       src.Topic,
		Title:       title,
		URL:         link,
		ImageURL:    ImageURL(raw),
		PublishedAt: r.publishedAt(raw),
		Description: r.cleanDescription(desc),
	}, true
}

func (r *Reader) publishedAt(raw *gofeed.Item) time.Time {
	if raw.PublishedParsed != nil {
		return *raw.PublishedParsed
	}
	if raw.UpdatedParsed != nil {
		return *raw.UpdatedParsed
	}
	return r.now()
}

// cleanDescription strips markup and collapses whitespace.
func (r *Reader) cleanDescription(s string) string {
	text := html.UnescapeString(r.policy.Sanitize(s))
	return strings.Join(strings.Fields(text), " ")
}
