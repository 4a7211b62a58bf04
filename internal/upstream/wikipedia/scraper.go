// Package wikipedia scrapes biography text and infobox facts from
// English Wikipedia articles
package wikipedia

import (
	"context"
	"errors"
	"net/url"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/ppiankov/scimap/internal/cache"
	"github.com/ppiankov/scimap/internal/model"
	"github.com/ppiankov/scimap/internal/resilience"
	"github.com/ppiankov/scimap/internal/upstream"
)

var (
	// ErrDisallowed means robots.txt forbids fetching the article
	ErrDisallowed = errors.New("disallowed by robots.txt")

	// ErrNoURL means the candidate has no article to scrape
	ErrNoURL = errors.New("no wikipedia url")
)

// Scraper fetches and parses article pages
type Scraper struct {
	fetcher  *upstream.Fetcher
	settings upstream.Settings
	robots   *RobotsChecker
	now      func() time.Time
}

// NewScraper creates a scraper. A nil robots checker skips robots.txt.
// Defaults: 30s timeout, 2 retries, 7 day cache.
func NewScraper(robots *RobotsChecker, opts ...upstream.Option) *Scraper {
	s := upstream.Apply(upstream.Settings{
		Service:  "wikipedia",
		Timeout:  30 * time.Second,
		MaxBytes: 10 << 20,
		CacheTTL: 7 * 24 * time.Hour,
		Retry:    resilience.DefaultRetryConfig(),
	}, opts...)

	return &Scraper{
		fetcher:  upstream.NewFetcher(s),
		settings: s,
		robots:   robots,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// Fetch returns the biography for an article URL
func (s *Scraper) Fetch(ctx context.Context, pageURL string) (*model.Biography, error) {
	pageURL = strings.TrimSpace(pageURL)
	if pageURL == "" {
		return nil, ErrNoURL
	}

	key := cache.Key("wikipedia", pageURL)
	return upstream.Cached(s.settings.Cache, key, s.settings.CacheTTL, func() (*model.Biography, error) {
		return s.scrape(ctx, pageURL)
	})
}

func (s *Scraper) scrape(ctx context.Context, pageURL string) (*model.Biography, error) {
	if s.robots != nil {
		allowed, delay, err := s.robots.CanFetch(ctx, pageURL)
		if err != nil {
			return nil, eris.Wrapf(err, "robots check %s", pageURL)
		}
		if !allowed {
			return nil, eris.Wrapf(ErrDisallowed, "scrape %s", pageURL)
		}
		if delay > 0 && s.settings.Limiter != nil {
			if parsed, err := url.Parse(pageURL); err == nil {
				s.settings.Limiter.ApplyCrawlDelay(parsed.Host, delay)
			}
		}
	}

	resp, err := s.fetcher.Get(ctx, pageURL, "text/html,application/xhtml+xml")
	if err != nil {
		return nil, eris.Wrapf(err, "scrape %s", pageURL)
	}

	bio, err := Parse(resp.Body, pageURL, s.now())
	if err != nil {
		return nil, eris.Wrapf(err, "scrape %s", pageURL)
	}

	zap.L().Debug("article scraped",
		zap.String("url", pageURL),
		zap.String("method", bio.Method),
		zap.Int("paragraphs", len(bio.Paragraphs)),
		zap.Int("infobox_fields", len(bio.Infobox)),
	)
	return bio, nil
}
