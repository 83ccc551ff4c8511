package scraper

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/gocolly/colly/v2"
)

const (
	userAgent        = "civicwire/1.0 (Feed discovery; +https://github.com/thinkscotty/civicwire)"
	discoveryTimeout = 10 * time.Second
)

// feedTypes are the <link type> values that advertise a syndication feed.
var feedTypes = map[string]bool{
	"application/rss+xml":   true,
	"application/atom+xml":  true,
	"application/feed+json": true,
}

// DiscoverFeed fetches pageURL and returns the first feed advertised by a
// <link rel="alternate"> tag, resolved against the page. It returns an empty
// string when the page advertises no feed or cannot be fetched before ctx ends.
func DiscoverFeed(ctx context.Context, pageURL string) string {
	c := colly.NewCollector(
		colly.UserAgent(userAgent),
		colly.StdlibContext(ctx),
	)
	c.SetRequestTimeout(discoveryTimeout)

	var found string
	c.OnHTML(`link[rel~="alternate"][href]`, func(e *colly.HTMLElement) {
		if found != "" || !feedTypes[strings.ToLower(strings.TrimSpace(e.Attr("type")))] {
			return
		}
		if href := strings.TrimSpace(e.Attr("href")); href != "" {
			found = e.Request.AbsoluteURL(href)
		}
	})
	c.OnError(func(r *colly.Response, err error) {
		slog.Debug("Feed discovery request failed", "url", pageURL, "status", r.StatusCode, "error", err)
	})

	// The collector is synchronous, so callbacks have finished when Visit returns.
	if err := c.Visit(pageURL); err != nil {
		slog.Debug("Feed discovery skipped", "url", pageURL, "error", err)
		return ""
	}
	return found
}
