// Package geocode resolves historical place names to coordinates
package geocode

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/ppiankov/scimap/internal/cache"
	"github.com/ppiankov/scimap/internal/model"
)

// ErrNoMatch means the geocoder found nothing for the place
var ErrNoMatch = errors.New("no geocoding match")

// DefaultCacheTTL keeps resolved places for 30 days
const DefaultCacheTTL = 30 * 24 * time.Hour

// Geocoder resolves one place name
type Geocoder interface {
	Lookup(ctx context.Context, placeName string) (*model.GeoPoint, error)
}

// Chain tries geocoders in order and returns the first success
type Chain []Geocoder

// Lookup implements Geocoder
func (c Chain) Lookup(ctx context.Context, placeName string) (*model.GeoPoint, error) {
	if len(c) == 0 {
		return nil, ErrNoMatch
	}

	var errs []error
	for _, g := range c {
		point, err := g.Lookup(ctx, placeName)
		if err == nil {
			return point, nil
		}
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		errs = append(errs, err)
	}
	return nil, errors.Join(errs...)
}

// Cached remembers successful lookups. Failures are not cached so a later
// run can retry them.
type Cached struct {
	next  Geocoder
	cache cache.Cache
	ttl   time.Duration
}

// NewCached wraps next with c. A zero ttl uses DefaultCacheTTL.
func NewCached(next Geocoder, c cache.Cache, ttl time.Duration) *Cached {
	if ttl <= 0 {
		ttl = DefaultCacheTTL
	}
	return &Cached{next: next, cache: c, ttl: ttl}
}

// Lookup implements Geocoder
func (c *Cached) Lookup(ctx context.Context, placeName string) (*model.GeoPoint, error) {
	key := cache.Key("geocode", NormalizePlace(placeName))

	if data, ok := c.cache.Get(key); ok {
		var point model.GeoPoint
		if err := json.Unmarshal(data, &point); err == nil {
			return &point, nil
		}
	}

	point, err := c.next.Lookup(ctx, placeName)
	if err != nil {
		return nil, err
	}

	if data, err := json.Marshal(point); err == nil {
		if err := c.cache.Set(key, data, c.ttl); err != nil {
			zap.L().Warn("geocode cache write failed", zap.String("place", placeName), zap.Error(err))
		}
	}
	return point, nil
}

// NormalizePlace folds case and whitespace so "  Basel " and "basel" share
// a cache entry
func NormalizePlace(name string) string {
	return strings.ToLower(strings.Join(strings.Fields(name), " "))
}

// AnnotateEvents geocodes every distinct event place, writes coordinates
// into the events and returns the name to point table. A place that fails
// to resolve is logged and left without coordinates.
func AnnotateEvents(ctx context.Context, g Geocoder, events []model.TimelineEvent) (map[string]model.GeoPoint, error) {
	table := make(map[string]model.GeoPoint)
	failed := make(map[string]bool)

	for i := range events {
		loc := &events[i].Location
		if loc.PlaceName == nil {
			continue
		}
		name := strings.TrimSpace(*loc.PlaceName)
		if name == "" {
			continue
		}

		point, ok := table[name]
		if !ok && !failed[name] {
			if err := ctx.Err(); err != nil {
				return table, eris.Wrap(err, "geocode events")
			}
			resolved, err := g.Lookup(ctx, name)
			if err != nil {
				failed[name] = true
				zap.L().Warn("geocoding failed", zap.String("place", name), zap.Error(err))
				continue
			}
			point, ok = *resolved, true
			table[name] = point
		}
		if !ok {
			continue
		}

		coords := point.Coordinates()
		confidence := point.Confidence
		loc.Coordinates = &coords
		loc.GeocodingConfidence = &confidence
	}

	return table, nil
}

func validCoordinates(lat, lng float64) bool {
	return lat >= -90 && lat <= 90 && lng >= -180 && lng <= 180
}
