package geocode

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/rotisserie/eris"

	"github.com/ppiankov/scimap/internal/extract"
	"github.com/ppiankov/scimap/internal/llm"
	"github.com/ppiankov/scimap/internal/model"
	"github.com/ppiankov/scimap/internal/resilience"
	"github.com/ppiankov/scimap/internal/worker"
)

// SourceLLM tags points estimated by the completion backend
const SourceLLM = "llm"

const geographerPrompt = `You are an expert historical geographer specializing in 18th century Europe. Your task is to provide coordinates for historical place names as they were known in the 1700s.

Guidelines:
- Use historical boundaries and names as they existed in the 18th century
- For cities that have changed names, use the historical context
- Provide coordinates in decimal degrees
- Give a confidence between 0 and 1 based on historical certainty

Return ONLY a valid JSON object with this exact format:
{
  "place_name": "standardized historical name",
  "coordinates": {"lat": decimal, "lng": decimal},
  "confidence": float_between_0_and_1,
  "modern_equivalent": "modern city/country name if different"
}`

type llmReply struct {
	PlaceName   string `json:"place_name"`
	Coordinates *struct {
		Lat *float64 `json:"lat"`
		Lng *float64 `json:"lng"`
	} `json:"coordinates"`
	Confidence *float64 `json:"confidence"`
}

// LLMGeocoder asks the completion backend for coordinates. Useful for
// historical names OpenStreetMap no longer knows.
type LLMGeocoder struct {
	provider llm.Provider
	pacer    *worker.Pacer
	sleep    func(ctx context.Context, d time.Duration) error
}

// NewLLMGeocoder creates a geocoder backed by provider. Every completion
// attempt is followed by the pacer's completion delay; pacer may be nil.
func NewLLMGeocoder(provider llm.Provider, pacer *worker.Pacer) *LLMGeocoder {
	return &LLMGeocoder{provider: provider, pacer: pacer, sleep: resilience.Sleep}
}

// Lookup implements Geocoder
func (g *LLMGeocoder) Lookup(ctx context.Context, placeName string) (*model.GeoPoint, error) {
	placeName = strings.TrimSpace(placeName)
	if placeName == "" {
		return nil, ErrNoMatch
	}

	req := llm.CompletionRequest{
		System:      geographerPrompt,
		User:        fmt.Sprintf("Provide coordinates for the historical location: %q during the 18th century.\n\nConsider 18th century political boundaries and city names. Return only the JSON object.", placeName),
		Temperature: 0.1,
		MaxTokens:   500,
	}

	resp, err := resilience.DoVal(ctx, resilience.RetryConfig{
		MaxAttempts: 3,
		ShouldRetry: func(err error) bool { return ctx.Err() == nil },
		Backoff:     llmBackoff,
		OnRetry:     resilience.RetryLogger("completion", "geocode"),
		Sleep:       g.sleep,
	}, func(ctx context.Context) (*llm.CompletionResponse, error) {
		resp, err := g.provider.Complete(ctx, req)
		if perr := g.pacer.After(ctx, worker.ServiceCompletion); perr != nil && err == nil {
			return nil, perr
		}
		return resp, err
	})
	if err != nil {
		return nil, eris.Wrapf(err, "llm geocode %q", placeName)
	}

	return parseReply(placeName, resp.Text)
}

func llmBackoff(_ int, err error) time.Duration {
	if resilience.IsTimeout(err) {
		return 5 * time.Second
	}
	return 2 * time.Second
}

func parseReply(placeName, text string) (*model.GeoPoint, error) {
	obj, ok := extract.FirstBalanced(extract.StripFences(text), '{', '}')
	if !ok {
		return nil, eris.Wrapf(ErrNoMatch, "llm geocode %q: no JSON object in reply", placeName)
	}

	var reply llmReply
	if err := json.Unmarshal([]byte(obj), &reply); err != nil {
		return nil, eris.Wrapf(err, "llm geocode %q", placeName)
	}
	if reply.Coordinates == nil || reply.Coordinates.Lat == nil || reply.Coordinates.Lng == nil {
		return nil, eris.Wrapf(ErrNoMatch, "llm geocode %q: missing coordinates", placeName)
	}

	lat, lng := *reply.Coordinates.Lat, *reply.Coordinates.Lng
	if !validCoordinates(lat, lng) {
		return nil, eris.Errorf("llm geocode %q: coordinates out of range (%v, %v)", placeName, lat, lng)
	}

	confidence := 0.5
	if reply.Confidence != nil {
		confidence = clamp01(*reply.Confidence)
	}

	return &model.GeoPoint{
		PlaceName:  placeName,
		Lat:        lat,
		Lng:        lng,
		Confidence: confidence,
		Source:     SourceLLM,
	}, nil
}
