package worker

import (
	"context"
	"testing"
	"time"

	"golang.org/x/time/rate"
)

func TestLimiter_PerHost(t *testing.T) {
	limiter := NewLimiter(1, 1)
	url := "https://en.wikipedia.org/wiki/Leonhard_Euler"

	if err := limiter.Wait(context.Background(), url); err != nil {
		t.Fatalf("first wait failed: %v", err)
	}

	// burst 1: token consumed
	if limiter.Allow("https://en.wikipedia.org/wiki/Joseph-Louis_Lagrange") {
		t.Errorf("expected allow to fail for same host")
	}

	if !limiter.Allow("https://wikimedia.org/api/rest_v1/") {
		t.Errorf("expected allow for other host")
	}
}

func TestLimiter_SetHostRate(t *testing.T) {
	limiter := NewLimiter(10, 10)
	limiter.SetHostRate("Nominatim.OpenStreetMap.org", 0.1, 1)

	if !limiter.Allow("https://nominatim.openstreetmap.org/search") {
		t.Errorf("first request should pass")
	}
	if limiter.Allow("https://nominatim.openstreetmap.org:443/search") {
		t.Errorf("second request should fail")
	}
	if !limiter.Allow("https://query.wikidata.org/sparql") {
		t.Errorf("other host should pass")
	}
}

func TestLimiter_ApplyCrawlDelay(t *testing.T) {
	limiter := NewLimiter(5, 5)

	limiter.ApplyCrawlDelay("en.wikipedia.org", 2*time.Second)
	if got := limiter.Rate("en.wikipedia.org"); got != rate.Every(2*time.Second) {
		t.Errorf("expected crawl delay rate, got %v", got)
	}

	// a looser delay never speeds a host up
	limiter.ApplyCrawlDelay("en.wikipedia.org", 100*time.Millisecond)
	if got := limiter.Rate("en.wikipedia.org"); got != rate.Every(2*time.Second) {
		t.Errorf("expected rate unchanged, got %v", got)
	}

	limiter.ApplyCrawlDelay("example.org", 0)
	if got := limiter.Rate("example.org"); got != rate.Limit(5) {
		t.Errorf("zero delay should keep default, got %v", got)
	}
}

func TestLimiter_InvalidURL(t *testing.T) {
	limiter := NewLimiter(1, 1)
	if err := limiter.Wait(context.Background(), "::invalid"); err == nil {
		t.Errorf("expected error for invalid URL")
	}
	if err := limiter.Wait(context.Background(), "/relative/path"); err == nil {
		t.Errorf("expected error for URL without host")
	}
	if limiter.Allow("::invalid") {
		t.Errorf("invalid URL should not be allowed")
	}
}
