package cli

import (
	"io"
	"net/http"
	"path/filepath"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/ppiankov/scimap/internal/assemble"
	"github.com/ppiankov/scimap/internal/cache"
	"github.com/ppiankov/scimap/internal/config"
	"github.com/ppiankov/scimap/internal/extract"
	"github.com/ppiankov/scimap/internal/llm"
	"github.com/ppiankov/scimap/internal/pipeline"
	"github.com/ppiankov/scimap/internal/rank"
	"github.com/ppiankov/scimap/internal/upstream"
	"github.com/ppiankov/scimap/internal/upstream/geocode"
	"github.com/ppiankov/scimap/internal/upstream/pageviews"
	"github.com/ppiankov/scimap/internal/upstream/wikidata"
	"github.com/ppiankov/scimap/internal/upstream/wikipedia"
	"github.com/ppiankov/scimap/internal/util"
	"github.com/ppiankov/scimap/internal/worker"
)

// app holds the collaborators built from one configuration
type app struct {
	cfg      *config.Config
	provider llm.Provider

	lookups  cache.Cache // query, pageview and geocode results
	articles cache.Cache // scraped biographies
	closers  []io.Closer

	limiter   *worker.Limiter
	pacer     *worker.Pacer // shared so geocoding shares the completion budget
	wikidata  *wikidata.Client
	robots    *wikipedia.RobotsChecker
	scraper   *wikipedia.Scraper
	pageviews *pageviews.Client
	geocoder  geocode.Geocoder
}

// newApp wires every upstream client. Nothing here touches the network.
func newApp(cfg *config.Config) (*app, error) {
	provider, err := llm.NewProvider(cfg.LLM)
	if err != nil {
		return nil, eris.Wrap(err, "create completion provider")
	}

	a := &app{cfg: cfg, provider: provider}
	if err := a.openCaches(); err != nil {
		return nil, err
	}

	up := cfg.Upstream
	client := func(timeout time.Duration) *http.Client {
		return util.NewHTTPClient(timeout, cfg.Proxy)
	}

	a.limiter = worker.NewLimiter(up.Wikipedia.RequestsPerSecond, 1)
	a.pacer = worker.NewPacer(map[string]time.Duration{
		worker.ServiceCompletion: cfg.Pipeline.LLMDelay,
		worker.ServiceScrape:     cfg.Pipeline.ScrapeDelay,
	})

	a.wikidata = wikidata.NewClient(
		upstream.WithHTTPClient(client(up.Wikidata.Timeout)),
		upstream.WithBaseURL(up.Wikidata.BaseURL),
		upstream.WithUserAgent(up.UserAgent),
		upstream.WithTimeout(up.Wikidata.Timeout),
		upstream.WithMaxAttempts(up.Wikidata.Retries+1),
		upstream.WithCache(a.lookups, up.Wikidata.CacheTTL),
	)

	if up.Wikipedia.RespectRobots {
		a.robots = wikipedia.NewRobotsChecker(up.UserAgent, client(10*time.Second))
	}
	a.scraper = wikipedia.NewScraper(a.robots,
		upstream.WithHTTPClient(client(up.Wikipedia.Timeout)),
		upstream.WithUserAgent(up.UserAgent),
		upstream.WithTimeout(up.Wikipedia.Timeout),
		upstream.WithMaxAttempts(up.Wikipedia.Retries+1),
		upstream.WithLimiter(a.limiter),
		upstream.WithCache(a.articles, up.Wikipedia.CacheTTL),
	)

	a.pageviews = pageviews.NewClient(up.Pageviews.PeriodDays,
		upstream.WithHTTPClient(client(up.Pageviews.Timeout)),
		upstream.WithBaseURL(up.Pageviews.BaseURL),
		upstream.WithUserAgent(up.UserAgent),
		upstream.WithTimeout(up.Pageviews.Timeout),
		upstream.WithMaxAttempts(up.Pageviews.Retries+1),
		upstream.WithCache(a.lookups, up.Pageviews.CacheTTL),
	)

	nominatim := geocode.NewNominatimClient(
		upstream.WithHTTPClient(client(up.Nominatim.Timeout)),
		upstream.WithBaseURL(up.Nominatim.BaseURL),
		upstream.WithUserAgent(up.UserAgent),
		upstream.WithTimeout(up.Nominatim.Timeout),
		upstream.WithMaxAttempts(up.Nominatim.Retries+1),
	)
	a.geocoder = geocode.NewCached(
		geocode.Chain{nominatim, geocode.NewLLMGeocoder(provider, a.pacer)},
		a.lookups, up.Nominatim.CacheTTL,
	)

	return a, nil
}

func (a *app) openCaches() error {
	c := a.cfg.Cache
	if c.Disabled {
		a.lookups, a.articles = cache.Nop{}, cache.Nop{}
		return nil
	}

	sqlite, err := cache.NewSQLiteCache(c.SQLitePath(), 24*time.Hour)
	if err != nil {
		return eris.Wrap(err, "open lookup cache")
	}
	if pruned, err := sqlite.Prune(); err != nil {
		zap.L().Warn("cache prune failed", zap.Error(err))
	} else if pruned > 0 {
		zap.L().Debug("pruned expired cache entries", zap.Int64("entries", pruned))
	}
	a.closers = append(a.closers, sqlite)

	a.lookups = cache.NewLayeredCache(c.MemoryTTL, sqlite)
	a.articles = cache.NewDiskLayeredCache(c.MemoryTTL, filepath.Join(c.Dir, "articles"), a.cfg.Upstream.Wikipedia.CacheTTL)
	return nil
}

// Close releases the persistent caches
func (a *app) Close() {
	for _, c := range a.closers {
		if err := c.Close(); err != nil {
			zap.L().Warn("close failed", zap.Error(err))
		}
	}
}

func (a *app) extractor() *extract.Extractor {
	e := a.cfg.Extract
	return extract.New(a.provider, extract.Options{
		Temperature:    e.Temperature,
		MaxTokens:      e.MaxTokens,
		MaxAttempts:    e.MaxAttempts,
		TimeoutBackoff: e.TimeoutBackoff,
		ErrorBackoff:   e.ErrorBackoff,
		Paragraphs:     e.Paragraphs,
		MaxChars:       e.MaxChars,
	})
}

func (a *app) query() wikidata.QueryParams {
	p := a.cfg.Pipeline
	return wikidata.QueryParams{BirthFrom: p.BirthFrom, BirthTo: p.BirthTo, Limit: p.QueryLimit}
}

func (a *app) scorer() *rank.Scorer {
	return rank.NewScorer(a.cfg.Pipeline.NotableNames)
}

// driver builds the pipeline driver. reg may be nil.
func (a *app) driver(reg prometheus.Registerer, report io.Writer) *pipeline.Driver {
	p := a.cfg.Pipeline

	stages := pipeline.Stages{
		Candidates:  a.wikidata,
		Biographies: a.scraper,
		Extractor:   a.extractor(),
		Popularity:  a.pageviews,
		Store:       assemble.NewStore(a.cfg.Output.Dir),
		Probe:       a.provider,
	}
	if p.Geocode {
		stages.Geocoder = a.geocoder
	}

	return pipeline.New(stages, pipeline.Config{
		CheckpointPath: a.cfg.Output.CheckpointPath(),
		Query:          a.query(),
		Scorer:         a.scorer(),
		Pacer:          a.pacer,
		ProgressEvery:  p.ProgressEvery,
		Reporter:       pipeline.NewReporter(report),
		Metrics:        pipeline.NewMetrics(reg),
	})
}
