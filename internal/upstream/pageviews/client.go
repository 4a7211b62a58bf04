// Package pageviews reads Wikimedia per-article view statistics
package pageviews

import (
	"context"
	"encoding/json"
	"errors"
	"math"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rotisserie/eris"

	"github.com/ppiankov/scimap/internal/cache"
	"github.com/ppiankov/scimap/internal/model"
	"github.com/ppiankov/scimap/internal/resilience"
	"github.com/ppiankov/scimap/internal/upstream"
)

const (
	// DefaultBaseURL is the per-article endpoint for English Wikipedia user traffic
	DefaultBaseURL = "https://wikimedia.org/api/rest_v1/metrics/pageviews/per-article/en.wikipedia/all-access/user"

	// DefaultPeriodDays is the look-back window
	DefaultPeriodDays = 90

	// ReasonNotFound marks articles the API has no data for
	ReasonNotFound = "page_not_found"

	dateLayout = "2006010200"
)

// ErrNotFound means the API has no statistics for the title
var ErrNotFound = errors.New(ReasonNotFound)

type response struct {
	Items []struct {
		Timestamp string `json:"timestamp"`
		Views     int64  `json:"views"`
	} `json:"items"`
}

// Client looks up popularity statistics
type Client struct {
	fetcher  *upstream.Fetcher
	settings upstream.Settings
	days     int
	now      func() time.Time
}

// NewClient creates a pageviews client. Defaults: 10s timeout, 24h cache,
// 90 day window.
func NewClient(periodDays int, opts ...upstream.Option) *Client {
	s := upstream.Apply(upstream.Settings{
		Service:  "pageviews",
		BaseURL:  DefaultBaseURL,
		Timeout:  10 * time.Second,
		CacheTTL: 24 * time.Hour,
		Retry:    resilience.DefaultRetryConfig(),
	}, opts...)
	if periodDays <= 0 {
		periodDays = DefaultPeriodDays
	}

	return &Client{
		fetcher:  upstream.NewFetcher(s),
		settings: s,
		days:     periodDays,
		now:      time.Now,
	}
}

// SetClock replaces the time source
func (c *Client) SetClock(now func() time.Time) {
	c.now = now
}

// Lookup returns statistics for a page title. A title without statistics
// yields an unknown-tier result, not an error.
func (c *Client) Lookup(ctx context.Context, pageTitle string) (*model.Popularity, error) {
	pageTitle = strings.TrimSpace(pageTitle)
	if pageTitle == "" {
		return nil, eris.New("pageviews: empty page title")
	}

	now := c.now().UTC()
	end := now.Format(dateLayout)
	start := now.AddDate(0, 0, -c.days).Format(dateLayout)
	key := cache.Key("pageviews", pageTitle, start, end)

	return upstream.Cached(c.settings.Cache, key, c.settings.CacheTTL, func() (*model.Popularity, error) {
		pop, err := c.fetch(ctx, pageTitle, start, end)
		if errors.Is(err, ErrNotFound) {
			unknown := model.UnknownPopularity(pageTitle, ReasonNotFound)
			unknown.PeriodDays = c.days
			unknown.StartDate = start
			unknown.EndDate = end
			unknown.RetrievedAt = now
			return &unknown, nil
		}
		if err != nil {
			return nil, err
		}
		pop.RetrievedAt = now
		return pop, nil
	})
}

func (c *Client) fetch(ctx context.Context, pageTitle, start, end string) (*model.Popularity, error) {
	endpoint := strings.TrimRight(c.settings.BaseURL, "/") + "/" + url.PathEscape(pageTitle) + "/daily/" + start + "/" + end

	resp, err := c.fetcher.Get(ctx, endpoint, "application/json")
	if upstream.StatusCode(err) == http.StatusNotFound {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, eris.Wrapf(err, "pageviews %s", pageTitle)
	}

	var body response
	if err := json.Unmarshal(resp.Body, &body); err != nil {
		return nil, eris.Wrapf(err, "decode pageviews %s", pageTitle)
	}

	pop := &model.Popularity{
		PageTitle:  pageTitle,
		PeriodDays: c.days,
		StartDate:  start,
		EndDate:    end,
		DataPoints: len(body.Items),
	}
	for _, item := range body.Items {
		pop.TotalViews += item.Views
		if item.Views > pop.MaxDailyViews {
			pop.MaxDailyViews = item.Views
		}
	}
	if pop.DataPoints > 0 {
		avg := float64(pop.TotalViews) / float64(pop.DataPoints)
		pop.AvgDailyViews = math.Round(avg*100) / 100
	}
	pop.Tier = Tier(pop.AvgDailyViews)
	return pop, nil
}

// Tier buckets an average daily view count
func Tier(avgDaily float64) model.PopularityTier {
	switch {
	case avgDaily >= 1000:
		return model.TierVeryHigh
	case avgDaily >= 500:
		return model.TierHigh
	case avgDaily >= 200:
		return model.TierMedium
	case avgDaily >= 50:
		return model.TierLow
	default:
		return model.TierVeryLow
	}
}
