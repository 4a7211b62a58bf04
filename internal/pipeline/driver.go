// Package pipeline sequences acquisition, scraping, extraction, enrichment
// and assembly over the candidate set, resuming from the checkpoint.
package pipeline

import (
	"context"
	"errors"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/ppiankov/scimap/internal/assemble"
	"github.com/ppiankov/scimap/internal/checkpoint"
	"github.com/ppiankov/scimap/internal/model"
	"github.com/ppiankov/scimap/internal/rank"
	"github.com/ppiankov/scimap/internal/upstream/geocode"
	"github.com/ppiankov/scimap/internal/upstream/wikidata"
	"github.com/ppiankov/scimap/internal/worker"
)

// ErrBackendUnavailable means the startup liveness probe failed
var ErrBackendUnavailable = errors.New("completion backend unavailable")

// Mode selects which entities a run processes
type Mode string

const (
	// ModeResume processes the top-ranked entities not yet completed
	ModeResume Mode = "resume"
	// ModeRetry processes exactly the previously failed entities
	ModeRetry Mode = "retry"
)

// Stage names used in logs and metrics
const (
	StageScrape     = "scrape"
	StageExtract    = "extract"
	StagePopularity = "popularity"
	StageGeocode    = "geocode"
	StageWrite      = "write"
)

// Options control one run
type Options struct {
	Mode   Mode
	Target int
}

// Summary reports what a run did
type Summary struct {
	Mode       Mode
	Selected   int
	Processed  int
	Succeeded  int
	Failed     int
	Skipped    int
	FailedIDs  []string
	Recovered  []string // retry mode: failed before, completed now
	Unresolved []string // retry mode: failed keys missing from the candidate list
	Dataset    int
	Duration   time.Duration
}

// SuccessRate is the session success percentage
func (s *Summary) SuccessRate() float64 {
	if s.Processed == 0 {
		return 0
	}
	return 100 * float64(s.Succeeded) / float64(s.Processed)
}

// Config holds the driver's non-stage settings
type Config struct {
	CheckpointPath string
	Query          wikidata.QueryParams
	Scorer         *rank.Scorer
	Pacer          *worker.Pacer
	ProgressEvery  int
	Reporter       *Reporter
	Metrics        *Metrics
	Now            func() time.Time
}

// Driver runs the pipeline
type Driver struct {
	stages Stages
	cfg    Config
}

// New creates a driver. Unset config fields get working defaults.
func New(stages Stages, cfg Config) *Driver {
	if cfg.Scorer == nil {
		cfg.Scorer = rank.NewScorer(rank.DefaultNotableNames)
	}
	if cfg.ProgressEvery <= 0 {
		cfg.ProgressEvery = 10
	}
	if cfg.Reporter == nil {
		cfg.Reporter = NewReporter(nil)
	}
	if cfg.Metrics == nil {
		cfg.Metrics = NewMetrics(nil)
	}
	if cfg.Now == nil {
		cfg.Now = func() time.Time { return time.Now().UTC() }
	}
	return &Driver{stages: stages, cfg: cfg}
}

// Run executes one pipeline run. Per-entity failures are recorded in the
// checkpoint and never abort the run. A failed liveness probe aborts
// before the checkpoint is read.
func (d *Driver) Run(ctx context.Context, opts Options) (*Summary, error) {
	started := time.Now()
	summary := &Summary{Mode: opts.Mode}
	if opts.Mode == "" {
		summary.Mode = ModeResume
	}

	if d.stages.Probe != nil {
		if err := d.stages.Probe.IsAvailable(ctx); err != nil {
			return nil, eris.Wrapf(ErrBackendUnavailable, "%s: %v", d.stages.Probe.Name(), err)
		}
	}

	cp := checkpoint.Load(d.cfg.CheckpointPath)

	candidates, err := d.stages.Candidates.Query(ctx, d.cfg.Query)
	if err != nil {
		return nil, eris.Wrap(err, "acquire candidates")
	}
	candidates = dedupe(candidates)
	selected := d.cfg.Scorer.Rank(candidates, opts.Target)
	summary.Selected = len(selected)
	d.logTop(selected)

	queue := d.queue(summary, cp, candidates, selected)
	d.cfg.Reporter.start(summary.Mode, len(queue), summary.Skipped, summary.Unresolved)
	zap.L().Info("run starting",
		zap.String("mode", string(summary.Mode)),
		zap.Int("candidates", len(candidates)),
		zap.Int("selected", len(selected)),
		zap.Int("queued", len(queue)),
		zap.Int("skipped", summary.Skipped),
	)

	wasFailed := make(map[string]bool)
	succeeded := make(map[string]bool)
	for _, c := range queue {
		wasFailed[c.Key()] = cp.IsFailed(c.Key())
	}

	interrupted := func() (*Summary, error) {
		summary.Duration = time.Since(started)
		zap.L().Warn("run interrupted", zap.Int("processed", summary.Processed))
		completed, failed := cp.Counts()
		d.cfg.Reporter.finish(summary, completed, failed)
		return summary, ctx.Err()
	}

	for i, c := range queue {
		if ctx.Err() != nil {
			return interrupted()
		}

		key := c.Key()
		err := d.processEntity(ctx, c)
		if err != nil && ctx.Err() != nil {
			// An entity cut short by cancellation is left for the next run
			return interrupted()
		}
		summary.Processed++
		if err != nil {
			cp.RecordFailure(key)
			summary.Failed++
			summary.FailedIDs = append(summary.FailedIDs, key)
			d.cfg.Metrics.entity("failed")
			zap.L().Warn("entity failed", zap.String("entity", key), zap.Error(err))
		} else {
			cp.RecordSuccess(key)
			summary.Succeeded++
			succeeded[key] = true
			if wasFailed[key] {
				summary.Recovered = append(summary.Recovered, key)
			}
			d.cfg.Metrics.entity("succeeded")
			zap.L().Info("entity completed", zap.String("entity", key))
		}

		if err := cp.Save(); err != nil {
			d.cfg.Metrics.CheckpointSaveFails.Inc()
			zap.L().Warn("checkpoint save failed", zap.Error(err))
		}

		d.cfg.Reporter.entity(i+1, len(queue), key, err)
		if summary.Processed%d.cfg.ProgressEvery == 0 {
			completed, failed := cp.Counts()
			d.cfg.Reporter.progress(summary, completed, failed)
			zap.L().Info("progress",
				zap.Int("session_succeeded", summary.Succeeded),
				zap.Int("session_failed", summary.Failed),
				zap.Int("total_completed", completed),
				zap.Int("total_failed", failed),
				zap.Float64("success_rate", summary.SuccessRate()),
			)
		}
	}

	records := d.collect(cp, selected, queue, succeeded)
	summary.Dataset = len(records)
	var datasetErr error
	if err := d.stages.Store.WriteDataset(records); err != nil {
		datasetErr = eris.Wrap(err, "write dataset")
	} else {
		assemble.ComputeStats(records).Log()
	}

	summary.Duration = time.Since(started)
	completed, failed := cp.Counts()
	d.cfg.Reporter.finish(summary, completed, failed)
	zap.L().Info("run complete",
		zap.Int("processed", summary.Processed),
		zap.Int("succeeded", summary.Succeeded),
		zap.Int("failed", summary.Failed),
		zap.Int("dataset", summary.Dataset),
		zap.Duration("duration", summary.Duration),
	)
	return summary, datasetErr
}

// queue decides which candidates this run processes
func (d *Driver) queue(s *Summary, cp *checkpoint.Store, all, selected []model.Candidate) []model.Candidate {
	if s.Mode == ModeRetry {
		byKey := make(map[string]model.Candidate, len(all))
		for _, c := range all {
			if _, ok := byKey[c.Key()]; !ok {
				byKey[c.Key()] = c
			}
		}

		var out []model.Candidate
		for _, key := range cp.FailedInOrder() {
			c, ok := byKey[key]
			if !ok {
				s.Unresolved = append(s.Unresolved, key)
				continue
			}
			out = append(out, c)
		}
		if len(s.Unresolved) > 0 {
			zap.L().Warn("failed entities missing from candidate list", zap.Strings("keys", s.Unresolved))
		}
		return out
	}

	keys := make([]string, len(selected))
	byKey := make(map[string]model.Candidate, len(selected))
	for i, c := range selected {
		keys[i] = c.Key()
		byKey[keys[i]] = c
	}
	remaining := cp.Remaining(keys)
	s.Skipped = len(keys) - len(remaining)

	out := make([]model.Candidate, len(remaining))
	for i, key := range remaining {
		out[i] = byKey[key]
	}
	return out
}

// processEntity runs every stage for one candidate. Only scrape, extract
// and write failures fail the entity.
func (d *Driver) processEntity(ctx context.Context, c model.Candidate) error {
	m := d.cfg.Metrics

	t := time.Now()
	bio, err := d.stages.Biographies.Fetch(ctx, c.WikipediaURL)
	m.observe(StageScrape, t)
	_ = d.cfg.Pacer.After(ctx, worker.ServiceScrape)
	if err != nil {
		m.stageFailed(StageScrape)
		return eris.Wrap(err, StageScrape)
	}

	t = time.Now()
	result := d.stages.Extractor.Extract(ctx, c.Name, *bio)
	m.observe(StageExtract, t)
	_ = d.cfg.Pacer.After(ctx, worker.ServiceCompletion)
	if !result.Ok() {
		m.stageFailed(StageExtract)
		return eris.Wrap(result.Err(), StageExtract)
	}

	var popularity *model.Popularity
	if d.stages.Popularity != nil {
		t = time.Now()
		popularity, err = d.stages.Popularity.Lookup(ctx, bio.PageTitle)
		m.observe(StagePopularity, t)
		if err != nil {
			m.stageFailed(StagePopularity)
			zap.L().Warn("popularity lookup failed", zap.String("entity", c.Key()), zap.Error(err))
			popularity = nil
		}
	}
	// Enrichment failures are soft, so a cancellation inside them must not
	// reach the store as a degraded record
	if err := ctx.Err(); err != nil {
		return err
	}

	events := result.Events
	var birthPlace *model.GeoPoint
	var table map[string]model.GeoPoint
	if d.stages.Geocoder != nil {
		t = time.Now()
		table, birthPlace = d.geocode(ctx, c, events)
		m.observe(StageGeocode, t)
		if err := ctx.Err(); err != nil {
			return err
		}
	}

	rec := assemble.Assemble(assemble.Parts{
		Candidate:     c,
		Biography:     bio,
		Events:        events,
		Extraction:    result.Summary,
		Popularity:    popularity,
		BirthPlace:    birthPlace,
		LocationTable: table,
		ProcessedAt:   d.cfg.Now(),
	})

	t = time.Now()
	err = d.stages.Store.WriteEntity(rec)
	m.observe(StageWrite, t)
	if err != nil {
		m.stageFailed(StageWrite)
		return eris.Wrap(err, StageWrite)
	}
	return nil
}

func (d *Driver) geocode(ctx context.Context, c model.Candidate, events []model.TimelineEvent) (map[string]model.GeoPoint, *model.GeoPoint) {
	table, err := geocode.AnnotateEvents(ctx, d.stages.Geocoder, events)
	if err != nil {
		d.cfg.Metrics.stageFailed(StageGeocode)
		zap.L().Warn("event geocoding interrupted", zap.String("entity", c.Key()), zap.Error(err))
	}

	if c.BirthPlace == nil || c.BirthPlace.Coordinates != nil || c.BirthPlace.Name == "" {
		return table, nil
	}
	if point, ok := table[c.BirthPlace.Name]; ok {
		return table, &point
	}
	point, err := d.stages.Geocoder.Lookup(ctx, c.BirthPlace.Name)
	if err != nil {
		d.cfg.Metrics.stageFailed(StageGeocode)
		zap.L().Warn("birth place geocoding failed", zap.String("entity", c.Key()), zap.Error(err))
		return table, nil
	}
	table[c.BirthPlace.Name] = *point
	return table, point
}

// collect loads the records for the aggregate: every completed entity of
// the selection plus anything this session completed
func (d *Driver) collect(cp *checkpoint.Store, selected, queue []model.Candidate, succeeded map[string]bool) []model.FinalRecord {
	seen := make(map[string]bool)
	var keys []string
	for _, c := range selected {
		if key := c.Key(); cp.IsCompleted(key) && !seen[key] {
			seen[key] = true
			keys = append(keys, key)
		}
	}
	for _, c := range queue {
		if key := c.Key(); succeeded[key] && !seen[key] {
			seen[key] = true
			keys = append(keys, key)
		}
	}

	records := make([]model.FinalRecord, 0, len(keys))
	for _, key := range keys {
		rec, err := d.stages.Store.LoadEntity(key)
		if err != nil {
			zap.L().Warn("completed entity has no record", zap.String("entity", key), zap.Error(err))
			continue
		}
		records = append(records, *rec)
	}
	return records
}

func (d *Driver) logTop(selected []model.Candidate) {
	for i, c := range selected {
		if i >= 10 {
			break
		}
		zap.L().Info("top candidate",
			zap.Int("rank", i+1),
			zap.String("entity", c.Key()),
			zap.String("name", c.Name),
			zap.Int("priority", c.Priority),
		)
	}
}

// dedupe drops candidates whose key repeats an earlier one
func dedupe(cs []model.Candidate) []model.Candidate {
	seen := make(map[string]bool, len(cs))
	out := cs[:0:0]
	for _, c := range cs {
		if seen[c.Key()] {
			continue
		}
		seen[c.Key()] = true
		out = append(out, c)
	}
	return out
}
