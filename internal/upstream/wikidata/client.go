// Package wikidata queries the Wikidata SPARQL endpoint for candidates
package wikidata

import (
	"context"
	"net/url"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/ppiankov/scimap/internal/cache"
	"github.com/ppiankov/scimap/internal/model"
	"github.com/ppiankov/scimap/internal/resilience"
	"github.com/ppiankov/scimap/internal/upstream"
)

const (
	// DefaultEndpoint is the public query service
	DefaultEndpoint = "https://query.wikidata.org/sparql"

	sparqlAccept = "application/sparql-results+json"
)

// Client runs the candidate query
type Client struct {
	fetcher  *upstream.Fetcher
	settings upstream.Settings
}

// NewClient creates a SPARQL client. Defaults: 120s timeout, three retries
// with 1s/2s/4s backoff, 24h result cache.
func NewClient(opts ...upstream.Option) *Client {
	s := upstream.Apply(upstream.Settings{
		Service:  "wikidata",
		BaseURL:  DefaultEndpoint,
		Timeout:  120 * time.Second,
		MaxBytes: 50 << 20,
		CacheTTL: 24 * time.Hour,
		Retry: resilience.RetryConfig{
			MaxAttempts:    4,
			InitialBackoff: time.Second,
			Multiplier:     2,
		},
	}, opts...)

	return &Client{fetcher: upstream.NewFetcher(s), settings: s}
}

// Query returns the candidates matching p in discovery order
func (c *Client) Query(ctx context.Context, p QueryParams) ([]model.Candidate, error) {
	if err := p.Validate(); err != nil {
		return nil, eris.Wrap(err, "wikidata query")
	}
	text := p.Build()
	key := cache.Key("wikidata", c.settings.BaseURL, text)

	return upstream.Cached(c.settings.Cache, key, c.settings.CacheTTL, func() ([]model.Candidate, error) {
		started := time.Now()
		endpoint := c.settings.BaseURL + "?" + url.Values{"query": {text}, "format": {"json"}}.Encode()

		resp, err := c.fetcher.Get(ctx, endpoint, sparqlAccept)
		if err != nil {
			return nil, eris.Wrap(err, "wikidata query")
		}

		candidates, err := parseBindings(resp.Body)
		if err != nil {
			return nil, err
		}

		zap.L().Info("wikidata query complete",
			zap.Int("candidates", len(candidates)),
			zap.Int("birth_from", p.BirthFrom),
			zap.Int("birth_to", p.BirthTo),
			zap.Duration("elapsed", time.Since(started)),
		)
		return candidates, nil
	})
}

// Ping issues a trivial ASK query to confirm the endpoint answers
func (c *Client) Ping(ctx context.Context) error {
	endpoint := c.settings.BaseURL + "?" + url.Values{"query": {"ASK { wd:Q5 ?p ?o }"}, "format": {"json"}}.Encode()
	if _, err := c.fetcher.Get(ctx, endpoint, sparqlAccept); err != nil {
		return eris.Wrap(err, "wikidata ping")
	}
	return nil
}
