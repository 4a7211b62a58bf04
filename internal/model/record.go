package model

import "time"

// Biography is the scraped article content for one candidate
type Biography struct {
	URL           string            `json:"url"`
	Title         string            `json:"title"`
	PageTitle     string            `json:"page_title"` // URL path segment, used for pageview lookups
	Paragraphs    []string          `json:"biography_paragraphs"`
	Infobox       map[string]string `json:"infobox"`
	ScrapedAt     time.Time         `json:"scraped_at"`
	RawHTMLLength int               `json:"raw_html_length"`
	Method        string            `json:"method"` // "dom" or "readability"
}

// PopularityTier buckets average daily page views
type PopularityTier string

const (
	TierVeryHigh PopularityTier = "very_high"
	TierHigh     PopularityTier = "high"
	TierMedium   PopularityTier = "medium"
	TierLow      PopularityTier = "low"
	TierVeryLow  PopularityTier = "very_low"
	TierUnknown  PopularityTier = "unknown"
)

// Popularity holds page view statistics for an article
type Popularity struct {
	PageTitle     string         `json:"page_title"`
	PeriodDays    int            `json:"period_days"`
	StartDate     string         `json:"start_date"`
	EndDate       string         `json:"end_date"`
	TotalViews    int64          `json:"total_views"`
	AvgDailyViews float64        `json:"avg_daily_views"`
	MaxDailyViews int64          `json:"max_daily_views"`
	Tier          PopularityTier `json:"popularity_tier"`
	DataPoints    int            `json:"data_points"`
	RetrievedAt   time.Time      `json:"retrieved_at"`
	Error         string         `json:"error,omitempty"`
}

// UnknownPopularity is the placeholder used when no statistics exist
func UnknownPopularity(pageTitle, reason string) Popularity {
	return Popularity{
		PageTitle: pageTitle,
		Tier:      TierUnknown,
		Error:     reason,
	}
}

// GeoPoint is a resolved coordinate for a place name
type GeoPoint struct {
	PlaceName  string  `json:"place_name"`
	Lat        float64 `json:"lat"`
	Lng        float64 `json:"lng"`
	Confidence float64 `json:"confidence"`
	Source     string  `json:"source"` // "nominatim", "llm", "wikidata"
}

// Coordinates returns the point without its metadata
func (g GeoPoint) Coordinates() Coordinates {
	return Coordinates{Lat: g.Lat, Lng: g.Lng}
}

// FinalRecord is the merged per-entity output.
// Every field is always serialized so consumers see a stable schema.
type FinalRecord struct {
	ID                 string              `json:"id"`
	WikidataID         string              `json:"wikidata_id"`
	Name               string              `json:"name"`
	BirthYear          *int                `json:"birth_year"`
	DeathYear          *int                `json:"death_year"`
	WikipediaURL       string              `json:"wikipedia_url"`
	Nationality        string              `json:"nationality"`
	Fields             []string            `json:"fields"`
	Coordinates        *Coordinates        `json:"coordinates"`
	TimelineEvents     []TimelineEvent     `json:"timeline_events"`
	PageViews          int64               `json:"page_views"`
	AvgDailyViews      float64             `json:"avg_daily_views"`
	PopularityTier     PopularityTier      `json:"popularity_tier"`
	Biography          Biography           `json:"wikipedia_data"`
	Wikidata           Candidate           `json:"wikidata_info"`
	Popularity         Popularity          `json:"pageview_data"`
	LocationTable      map[string]GeoPoint `json:"location_table"`
	ExtractionMetadata ExtractionSummary   `json:"timeline_extraction_metadata"`
	DataSource         string              `json:"data_source"`
	ProcessedAt        time.Time           `json:"processed_at"`
}

// DatasetMetadata describes an aggregate dataset file
type DatasetMetadata struct {
	Source              string    `json:"source"`
	GeneratedAt         time.Time `json:"generated_at"`
	TotalMathematicians int       `json:"total_mathematicians"`
	ExtractionMethod    string    `json:"extraction_method"`
}

// Dataset is the reference aggregate: metadata plus records keyed by ID
type Dataset struct {
	Metadata       DatasetMetadata        `json:"metadata"`
	Mathematicians map[string]FinalRecord `json:"mathematicians"`
}
