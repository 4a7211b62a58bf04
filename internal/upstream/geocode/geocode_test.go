package geocode

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/ppiankov/scimap/internal/cache"
	"github.com/ppiankov/scimap/internal/llm"
	"github.com/ppiankov/scimap/internal/model"
	"github.com/ppiankov/scimap/internal/resilience"
	"github.com/ppiankov/scimap/internal/upstream"
	"github.com/ppiankov/scimap/internal/worker"
)

type stubProvider struct {
	reply    string
	err      error
	failures int // calls that fail before replies start
	calls    int
}

func (s *stubProvider) Name() string  { return "stub" }
func (s *stubProvider) Model() string { return "stub-model" }

func (s *stubProvider) Complete(context.Context, llm.CompletionRequest) (*llm.CompletionResponse, error) {
	s.calls++
	if s.err != nil {
		return nil, s.err
	}
	if s.calls <= s.failures {
		return nil, errors.New("connection reset by peer")
	}
	return &llm.CompletionResponse{Text: s.reply}, nil
}

func (s *stubProvider) IsAvailable(context.Context) error { return nil }

type stubGeocoder struct {
	point *model.GeoPoint
	err   error
	calls int
}

func (s *stubGeocoder) Lookup(_ context.Context, name string) (*model.GeoPoint, error) {
	s.calls++
	if s.err != nil {
		return nil, s.err
	}
	p := *s.point
	p.PlaceName = name
	return &p, nil
}

func newTestNominatim(serverURL string) *NominatimClient {
	return NewNominatimClient(
		upstream.WithBaseURL(serverURL),
		upstream.WithLimiter(worker.NewLimiter(1000, 10)),
		upstream.WithRetry(resilience.RetryConfig{
			MaxAttempts: 2,
			Sleep:       func(context.Context, time.Duration) error { return nil },
		}),
	)
}

func TestNominatim_Lookup(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("q") != "Basel" || r.URL.Query().Get("limit") != "1" {
			t.Errorf("unexpected query %q", r.URL.RawQuery)
		}
		_, _ = fmt.Fprint(w, `[{"lat":"47.5581","lon":"7.5878","display_name":"Basel, Switzerland","importance":1.2}]`)
	}))
	defer server.Close()

	point, err := newTestNominatim(server.URL).Lookup(context.Background(), "Basel")
	if err != nil {
		t.Fatalf("Lookup failed: %v", err)
	}
	if point.Lat != 47.5581 || point.Lng != 7.5878 {
		t.Errorf("unexpected coordinates %+v", point)
	}
	if point.Confidence != 1 {
		t.Errorf("importance should clamp to 1, got %v", point.Confidence)
	}
	if point.Source != SourceNominatim {
		t.Errorf("unexpected source %q", point.Source)
	}
}

func TestNominatim_NoMatch(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = fmt.Fprint(w, `[]`)
	}))
	defer server.Close()

	if _, err := newTestNominatim(server.URL).Lookup(context.Background(), "Atlantis"); !errors.Is(err, ErrNoMatch) {
		t.Errorf("expected ErrNoMatch, got %v", err)
	}
}

func TestLLMGeocoder_ParsesFencedReply(t *testing.T) {
	provider := &stubProvider{reply: "Sure!\n```json\n{\"place_name\": \"Königsberg\", \"coordinates\": {\"lat\": 54.71, \"lng\": 20.51}, \"confidence\": 0.9}\n```"}

	point, err := NewLLMGeocoder(provider, nil).Lookup(context.Background(), "Königsberg")
	if err != nil {
		t.Fatalf("Lookup failed: %v", err)
	}
	if point.Lat != 54.71 || point.Lng != 20.51 || point.Confidence != 0.9 || point.Source != SourceLLM {
		t.Errorf("unexpected point %+v", point)
	}
}

func TestLLMGeocoder_RejectsBadCoordinates(t *testing.T) {
	tests := []string{
		`{"coordinates": {"lat": 95.0, "lng": 10.0}}`,
		`{"coordinates": {"lat": 10.0}}`,
		`{"place_name": "nowhere"}`,
		`I do not know.`,
	}
	for _, reply := range tests {
		if _, err := NewLLMGeocoder(&stubProvider{reply: reply}, nil).Lookup(context.Background(), "X"); err == nil {
			t.Errorf("reply %q should fail", reply)
		}
	}
}

func TestLLMGeocoder_RetriesAndPaces(t *testing.T) {
	provider := &stubProvider{
		reply:    `{"coordinates": {"lat": 47.56, "lng": 7.59}, "confidence": 0.8}`,
		failures: 1,
	}

	var paced []time.Duration
	pacer := worker.NewPacer(map[string]time.Duration{worker.ServiceCompletion: 3 * time.Second})
	pacer.SetSleep(func(_ context.Context, d time.Duration) error {
		paced = append(paced, d)
		return nil
	})

	var backoffs []time.Duration
	g := NewLLMGeocoder(provider, pacer)
	g.sleep = func(_ context.Context, d time.Duration) error {
		backoffs = append(backoffs, d)
		return nil
	}

	point, err := g.Lookup(context.Background(), "Basel")
	if err != nil {
		t.Fatalf("Lookup failed: %v", err)
	}
	if point.Lat != 47.56 || point.Lng != 7.59 {
		t.Errorf("unexpected point %+v", point)
	}
	if provider.calls != 2 {
		t.Errorf("expected 2 completion calls, got %d", provider.calls)
	}
	if len(backoffs) != 1 || backoffs[0] != 2*time.Second {
		t.Errorf("expected one 2s backoff, got %v", backoffs)
	}
	if len(paced) != 2 || paced[0] != 3*time.Second || paced[1] != 3*time.Second {
		t.Errorf("expected a courtesy delay after each call, got %v", paced)
	}
}

func TestLLMGeocoder_GivesUpAfterThreeAttempts(t *testing.T) {
	provider := &stubProvider{err: errors.New("backend down")}
	g := NewLLMGeocoder(provider, nil)
	g.sleep = func(context.Context, time.Duration) error { return nil }

	if _, err := g.Lookup(context.Background(), "Basel"); err == nil {
		t.Fatal("expected error")
	}
	if provider.calls != 3 {
		t.Errorf("expected 3 completion calls, got %d", provider.calls)
	}
}

func TestChain_FirstSuccessWins(t *testing.T) {
	failing := &stubGeocoder{err: ErrNoMatch}
	ok := &stubGeocoder{point: &model.GeoPoint{Lat: 1, Lng: 2, Source: "second"}}
	unused := &stubGeocoder{point: &model.GeoPoint{Source: "third"}}

	point, err := Chain{failing, ok, unused}.Lookup(context.Background(), "Paris")
	if err != nil {
		t.Fatalf("Lookup failed: %v", err)
	}
	if point.Source != "second" {
		t.Errorf("expected second geocoder, got %q", point.Source)
	}
	if unused.calls != 0 {
		t.Error("geocoders after a success should not run")
	}

	if _, err := (Chain{failing}).Lookup(context.Background(), "Paris"); !errors.Is(err, ErrNoMatch) {
		t.Errorf("expected joined ErrNoMatch, got %v", err)
	}
}

func TestCached_HitsAfterFirstSuccess(t *testing.T) {
	inner := &stubGeocoder{point: &model.GeoPoint{Lat: 48.85, Lng: 2.35, Confidence: 0.8}}
	g := NewCached(inner, cache.NewMemoryCache(time.Hour, time.Hour), 0)

	for _, name := range []string{"Paris", "  paris ", "PARIS"} {
		point, err := g.Lookup(context.Background(), name)
		if err != nil {
			t.Fatalf("Lookup(%q) failed: %v", name, err)
		}
		if point.Lat != 48.85 {
			t.Errorf("unexpected point %+v", point)
		}
	}
	if inner.calls != 1 {
		t.Errorf("expected 1 inner lookup, got %d", inner.calls)
	}
}

func TestCached_FailuresNotStored(t *testing.T) {
	inner := &stubGeocoder{err: ErrNoMatch}
	g := NewCached(inner, cache.NewMemoryCache(time.Hour, time.Hour), time.Hour)

	for i := 0; i < 2; i++ {
		if _, err := g.Lookup(context.Background(), "Atlantis"); err == nil {
			t.Fatal("expected error")
		}
	}
	if inner.calls != 2 {
		t.Errorf("failures should be retried, got %d calls", inner.calls)
	}
}

func TestAnnotateEvents(t *testing.T) {
	basel, berlin := "Basel", "Berlin"
	events := []model.TimelineEvent{
		{Description: "born", Location: model.Location{PlaceName: &basel}},
		{Description: "moved", Location: model.Location{PlaceName: &berlin}},
		{Description: "returned", Location: model.Location{PlaceName: &basel}},
		{Description: "unplaced"},
	}

	var calls atomic.Int32
	g := geocoderFunc(func(_ context.Context, name string) (*model.GeoPoint, error) {
		calls.Add(1)
		if name == "Berlin" {
			return nil, ErrNoMatch
		}
		return &model.GeoPoint{PlaceName: name, Lat: 47.5, Lng: 7.6, Confidence: 0.7}, nil
	})

	table, err := AnnotateEvents(context.Background(), g, events)
	if err != nil {
		t.Fatalf("AnnotateEvents failed: %v", err)
	}
	if calls.Load() != 2 {
		t.Errorf("each place should be looked up once, got %d", calls.Load())
	}
	if len(table) != 1 || table["Basel"].Lat != 47.5 {
		t.Errorf("unexpected table %+v", table)
	}
	if events[0].Location.Coordinates == nil || events[2].Location.Coordinates == nil {
		t.Error("Basel events should carry coordinates")
	}
	if events[0].Location.GeocodingConfidence == nil || *events[0].Location.GeocodingConfidence != 0.7 {
		t.Error("expected geocoding confidence 0.7")
	}
	if events[1].Location.Coordinates != nil {
		t.Error("failed place should stay without coordinates")
	}
}

type geocoderFunc func(context.Context, string) (*model.GeoPoint, error)

func (f geocoderFunc) Lookup(ctx context.Context, name string) (*model.GeoPoint, error) {
	return f(ctx, name)
}
