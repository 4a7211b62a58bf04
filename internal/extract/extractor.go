// Package extract turns biography text into validated timeline events
// using a completion backend, recovering what it can from malformed
// replies.
package extract

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/ppiankov/scimap/internal/llm"
	"github.com/ppiankov/scimap/internal/model"
	"github.com/ppiankov/scimap/internal/resilience"
)

// MethodLLMStructured tags events produced by this package
const MethodLLMStructured = "llm_structured"

// Failure reasons
const (
	ReasonNoBiography   = "no biography text"
	ReasonUnparseable   = "unparseable reply"
	ReasonNoValidEvents = "no valid events"
)

// Result is the outcome of one extraction: either events or a reason.
type Result struct {
	Events  []model.TimelineEvent
	Summary model.ExtractionSummary
	Reason  string
}

// Ok reports whether extraction produced at least one valid event
func (r Result) Ok() bool {
	return r.Reason == "" && len(r.Events) > 0
}

// Err returns the failure reason as an error, or nil on success
func (r Result) Err() error {
	if r.Ok() {
		return nil
	}
	return fmt.Errorf("extraction failed: %s", r.Reason)
}

// Options tunes the completion call
type Options struct {
	Temperature    float64
	MaxTokens      int
	MaxAttempts    int
	TimeoutBackoff time.Duration
	ErrorBackoff   time.Duration
	Paragraphs     int
	MaxChars       int
}

// DefaultOptions mirrors the documented defaults
func DefaultOptions() Options {
	return Options{
		Temperature:    0.1,
		MaxTokens:      2000,
		MaxAttempts:    3,
		TimeoutBackoff: 5 * time.Second,
		ErrorBackoff:   2 * time.Second,
		Paragraphs:     3,
		MaxChars:       2500,
	}
}

// Extractor runs structured timeline extraction
type Extractor struct {
	provider llm.Provider
	opts     Options
	now      func() time.Time
	sleep    func(ctx context.Context, d time.Duration) error
}

// New creates an extractor on top of provider
func New(provider llm.Provider, opts Options) *Extractor {
	d := DefaultOptions()
	if opts.MaxTokens <= 0 {
		opts.MaxTokens = d.MaxTokens
	}
	if opts.MaxAttempts <= 0 {
		opts.MaxAttempts = d.MaxAttempts
	}
	if opts.Paragraphs <= 0 {
		opts.Paragraphs = d.Paragraphs
	}
	if opts.MaxChars <= 0 {
		opts.MaxChars = d.MaxChars
	}

	return &Extractor{
		provider: provider,
		opts:     opts,
		now:      func() time.Time { return time.Now().UTC() },
		sleep:    resilience.Sleep,
	}
}

// ModelVersion identifies the backend as provider/model
func (e *Extractor) ModelVersion() string {
	return e.provider.Name() + "/" + e.provider.Model()
}

// Extract produces timeline events for one person. Backend failures are
// reported through Result, never returned as errors.
func (e *Extractor) Extract(ctx context.Context, name string, bio model.Biography) Result {
	text := BiographyText(bio, e.opts.Paragraphs, e.opts.MaxChars)

	summary := model.ExtractionSummary{
		ModelUsed:       e.ModelVersion(),
		BiographyLength: len([]rune(text)),
	}

	if text == "" {
		summary.ExtractedAt = e.now()
		return Result{Summary: summary, Reason: ReasonNoBiography}
	}

	req := llm.CompletionRequest{
		System:      systemPrompt,
		User:        userPrompt(name, text),
		Temperature: e.opts.Temperature,
		MaxTokens:   e.opts.MaxTokens,
	}

	attempts := 0
	resp, err := resilience.DoVal(ctx, resilience.RetryConfig{
		MaxAttempts: e.opts.MaxAttempts,
		ShouldRetry: func(err error) bool { return ctx.Err() == nil },
		Backoff:     e.backoff,
		OnRetry:     resilience.RetryLogger("completion", "extract"),
		Sleep:       e.sleep,
	}, func(ctx context.Context) (*llm.CompletionResponse, error) {
		attempts++
		return e.provider.Complete(ctx, req)
	})

	summary.Attempts = attempts
	summary.ExtractedAt = e.now()

	if err != nil {
		return Result{Summary: summary, Reason: "completion backend: " + err.Error()}
	}

	return e.parse(name, resp.Text, summary)
}

func (e *Extractor) backoff(_ int, err error) time.Duration {
	if resilience.IsTimeout(err) {
		return e.opts.TimeoutBackoff
	}
	return e.opts.ErrorBackoff
}

func (e *Extractor) parse(name, reply string, summary model.ExtractionSummary) Result {
	items, strategy, ok := Candidates(reply)
	if !ok {
		zap.L().Warn("unparseable extraction reply",
			zap.String("entity", name),
			zap.Int("reply_length", len(reply)),
		)
		return Result{Summary: summary, Reason: ReasonUnparseable}
	}
	summary.RecoveryStrategy = strategy

	events, dropped := e.validateAll(name, items, strategy, summary.ExtractedAt)
	summary.EventsCount = len(events)
	summary.DroppedEvents = dropped

	if len(events) == 0 {
		return Result{Summary: summary, Reason: ReasonNoValidEvents}
	}
	return Result{Events: events, Summary: summary}
}

func (e *Extractor) validateAll(name string, items []json.RawMessage, strategy string, at time.Time) ([]model.TimelineEvent, int) {
	events := make([]model.TimelineEvent, 0, len(items))
	dropped := 0

	for i, raw := range items {
		ev, err := Validate(raw)
		if err != nil {
			dropped++
			zap.L().Debug("dropping invalid event",
				zap.String("entity", name),
				zap.Int("index", i),
				zap.Error(err),
			)
			continue
		}
		ev.ExtractionMetadata = &model.ExtractionMetadata{
			ModelVersion:         e.ModelVersion(),
			ExtractedAt:          at,
			ExtractionConfidence: ev.Confidence,
			ExtractionMethod:     MethodLLMStructured,
			RecoveryStrategy:     strategy,
		}
		events = append(events, ev)
	}

	return events, dropped
}
