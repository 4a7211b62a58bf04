package geocode

import (
	"context"
	"encoding/json"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/rotisserie/eris"

	"github.com/ppiankov/scimap/internal/model"
	"github.com/ppiankov/scimap/internal/resilience"
	"github.com/ppiankov/scimap/internal/upstream"
	"github.com/ppiankov/scimap/internal/worker"
)

// DefaultNominatimURL is the OpenStreetMap search endpoint
const DefaultNominatimURL = "https://nominatim.openstreetmap.org/search"

// SourceNominatim tags points resolved through OpenStreetMap
const SourceNominatim = "nominatim"

type nominatimPlace struct {
	Lat         string  `json:"lat"`
	Lon         string  `json:"lon"`
	DisplayName string  `json:"display_name"`
	Importance  float64 `json:"importance"`
}

// NominatimClient queries OpenStreetMap Nominatim
type NominatimClient struct {
	fetcher  *upstream.Fetcher
	settings upstream.Settings
}

// NewNominatimClient creates a client limited to one request per second,
// as the public instance's usage policy requires
func NewNominatimClient(opts ...upstream.Option) *NominatimClient {
	s := upstream.Apply(upstream.Settings{
		Service: "nominatim",
		BaseURL: DefaultNominatimURL,
		Timeout: 10 * time.Second,
		Retry:   resilience.DefaultRetryConfig(),
	}, opts...)
	if s.Limiter == nil {
		s.Limiter = worker.NewLimiter(1, 1)
	}

	return &NominatimClient{fetcher: upstream.NewFetcher(s), settings: s}
}

// Lookup implements Geocoder
func (n *NominatimClient) Lookup(ctx context.Context, placeName string) (*model.GeoPoint, error) {
	placeName = strings.TrimSpace(placeName)
	if placeName == "" {
		return nil, ErrNoMatch
	}

	query := url.Values{"q": {placeName}, "format": {"json"}, "limit": {"1"}}
	resp, err := n.fetcher.Get(ctx, n.settings.BaseURL+"?"+query.Encode(), "application/json")
	if err != nil {
		return nil, eris.Wrapf(err, "nominatim %q", placeName)
	}

	var places []nominatimPlace
	if err := json.Unmarshal(resp.Body, &places); err != nil {
		return nil, eris.Wrapf(err, "decode nominatim %q", placeName)
	}
	if len(places) == 0 {
		return nil, eris.Wrapf(ErrNoMatch, "nominatim %q", placeName)
	}

	lat, errLat := strconv.ParseFloat(places[0].Lat, 64)
	lng, errLng := strconv.ParseFloat(places[0].Lon, 64)
	if errLat != nil || errLng != nil || !validCoordinates(lat, lng) {
		return nil, eris.Errorf("nominatim %q: invalid coordinates %q,%q", placeName, places[0].Lat, places[0].Lon)
	}

	return &model.GeoPoint{
		PlaceName:  placeName,
		Lat:        lat,
		Lng:        lng,
		Confidence: clamp01(places[0].Importance),
		Source:     SourceNominatim,
	}, nil
}

func clamp01(v float64) float64 {
	switch {
	case v < 0:
		return 0
	case v > 1:
		return 1
	}
	return v
}
