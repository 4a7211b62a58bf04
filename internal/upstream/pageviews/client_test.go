package pageviews

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/ppiankov/scimap/internal/cache"
	"github.com/ppiankov/scimap/internal/model"
	"github.com/ppiankov/scimap/internal/resilience"
	"github.com/ppiankov/scimap/internal/upstream"
)

var fixedNow = time.Date(2024, 6, 30, 15, 0, 0, 0, time.UTC)

func newTestClient(serverURL string, c cache.Cache) *Client {
	client := NewClient(0,
		upstream.WithBaseURL(serverURL),
		upstream.WithCache(c, time.Hour),
		upstream.WithRetry(resilience.RetryConfig{
			MaxAttempts: 3,
			Sleep:       func(context.Context, time.Duration) error { return nil },
		}),
	)
	client.SetClock(func() time.Time { return fixedNow })
	return client
}

func TestLookup_Aggregates(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		want := "/Jean_le_Rond_d'Alembert/daily/2024040100/2024063000"
		if r.URL.Path != want {
			t.Errorf("unexpected path %q, want %q", r.URL.Path, want)
		}
		_, _ = fmt.Fprint(w, `{"items":[{"views":100},{"views":300},{"views":201}]}`)
	}))
	defer server.Close()

	pop, err := newTestClient(server.URL, cache.Nop{}).Lookup(context.Background(), "Jean_le_Rond_d'Alembert")
	if err != nil {
		t.Fatalf("Lookup failed: %v", err)
	}
	if pop.TotalViews != 601 || pop.MaxDailyViews != 300 || pop.DataPoints != 3 {
		t.Errorf("unexpected totals %+v", pop)
	}
	if pop.AvgDailyViews != 200.33 {
		t.Errorf("expected avg 200.33, got %v", pop.AvgDailyViews)
	}
	if pop.Tier != model.TierMedium {
		t.Errorf("expected medium tier, got %s", pop.Tier)
	}
	if pop.PeriodDays != 90 || pop.StartDate != "2024040100" || pop.EndDate != "2024063000" {
		t.Errorf("unexpected window %+v", pop)
	}
	if !pop.RetrievedAt.Equal(fixedNow) {
		t.Errorf("unexpected retrieval time %v", pop.RetrievedAt)
	}
}

func TestLookup_NotFoundIsUnknown(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	pop, err := newTestClient(server.URL, cache.Nop{}).Lookup(context.Background(), "Nobody")
	if err != nil {
		t.Fatalf("404 should not be an error, got %v", err)
	}
	if pop.Tier != model.TierUnknown || pop.Error != ReasonNotFound {
		t.Errorf("unexpected placeholder %+v", pop)
	}
	if pop.TotalViews != 0 || pop.AvgDailyViews != 0 {
		t.Errorf("placeholder should carry zero counts, got %+v", pop)
	}
	if calls.Load() != 1 {
		t.Errorf("404 should not be retried, got %d calls", calls.Load())
	}
}

func TestLookup_ServerErrorAfterRetries(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer server.Close()

	if _, err := newTestClient(server.URL, cache.Nop{}).Lookup(context.Background(), "Euler"); err == nil {
		t.Fatal("expected error")
	}
	if calls.Load() != 3 {
		t.Errorf("expected 3 attempts, got %d", calls.Load())
	}
}

func TestLookup_Cached(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		_, _ = fmt.Fprint(w, `{"items":[{"views":5000}]}`)
	}))
	defer server.Close()

	client := newTestClient(server.URL, cache.NewMemoryCache(time.Hour, time.Hour))
	for i := 0; i < 2; i++ {
		pop, err := client.Lookup(context.Background(), "Leonhard_Euler")
		if err != nil {
			t.Fatalf("Lookup failed: %v", err)
		}
		if pop.Tier != model.TierVeryHigh {
			t.Errorf("expected very_high, got %s", pop.Tier)
		}
	}
	if calls.Load() != 1 {
		t.Errorf("expected 1 request, got %d", calls.Load())
	}
}

func TestTier(t *testing.T) {
	tests := []struct {
		avg  float64
		want model.PopularityTier
	}{
		{1000, model.TierVeryHigh},
		{999.99, model.TierHigh},
		{500, model.TierHigh},
		{200, model.TierMedium},
		{50, model.TierLow},
		{49.9, model.TierVeryLow},
		{0, model.TierVeryLow},
	}
	for _, tt := range tests {
		if got := Tier(tt.avg); got != tt.want {
			t.Errorf("Tier(%v) = %s, want %s", tt.avg, got, tt.want)
		}
	}
}
