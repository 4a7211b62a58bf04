// Package assemble merges stage outputs into final records and writes the
// per-entity files and the aggregate dataset.
package assemble

import (
	"strings"
	"time"

	"github.com/ppiankov/scimap/internal/model"
)

const (
	// DataSource names the provenance of every assembled record
	DataSource = "wikidata_wikipedia_llm_pageview_pipeline"

	// ReasonNotCollected marks records whose popularity lookup failed
	ReasonNotCollected = "not_collected"
)

// Parts are the stage outputs for one entity. Any part but Candidate may be
// missing.
type Parts struct {
	Candidate     model.Candidate
	Biography     *model.Biography
	Events        []model.TimelineEvent
	Extraction    model.ExtractionSummary
	Popularity    *model.Popularity
	BirthPlace    *model.GeoPoint
	LocationTable map[string]model.GeoPoint
	ProcessedAt   time.Time
}

// Assemble merges p into a record. Missing parts become explicit
// placeholders and nothing is inferred that no stage reported.
func Assemble(p Parts) model.FinalRecord {
	c := p.Candidate

	bio := model.Biography{URL: c.WikipediaURL}
	if p.Biography != nil {
		bio = *p.Biography
	}
	if bio.Paragraphs == nil {
		bio.Paragraphs = []string{}
	}
	if bio.Infobox == nil {
		bio.Infobox = map[string]string{}
	}

	popularity := model.UnknownPopularity(bio.PageTitle, ReasonNotCollected)
	if p.Popularity != nil {
		popularity = *p.Popularity
	}

	events := p.Events
	if events == nil {
		events = []model.TimelineEvent{}
	}

	table := p.LocationTable
	if table == nil {
		table = map[string]model.GeoPoint{}
	}

	nationality := c.Nationality
	if nationality == "" {
		nationality = bio.Infobox["nationality"]
	}

	return model.FinalRecord{
		ID:                 c.Key(),
		WikidataID:         c.ID,
		Name:               c.Name,
		BirthYear:          c.BirthYear,
		DeathYear:          c.DeathYear,
		WikipediaURL:       c.WikipediaURL,
		Nationality:        nationality,
		Fields:             fields(bio.Infobox["fields"]),
		Coordinates:        coordinates(c, p.BirthPlace),
		TimelineEvents:     events,
		PageViews:          popularity.TotalViews,
		AvgDailyViews:      popularity.AvgDailyViews,
		PopularityTier:     popularity.Tier,
		Biography:          bio,
		Wikidata:           c,
		Popularity:         popularity,
		LocationTable:      table,
		ExtractionMetadata: p.Extraction,
		DataSource:         DataSource,
		ProcessedAt:        p.ProcessedAt,
	}
}

// coordinates prefers the curated Wikidata birth place, then a geocoded one
func coordinates(c model.Candidate, geocoded *model.GeoPoint) *model.Coordinates {
	if c.BirthPlace != nil && c.BirthPlace.Coordinates != nil {
		coords := *c.BirthPlace.Coordinates
		return &coords
	}
	if geocoded != nil {
		coords := geocoded.Coordinates()
		return &coords
	}
	return nil
}

// fields splits the infobox "Fields" row. No row gives an empty list.
func fields(raw string) []string {
	out := []string{}
	seen := make(map[string]bool)
	for _, part := range strings.FieldsFunc(raw, func(r rune) bool { return r == ',' || r == ';' || r == '\n' }) {
		f := strings.ToLower(strings.TrimSpace(part))
		if f == "" || seen[f] {
			continue
		}
		seen[f] = true
		out = append(out, f)
	}
	return out
}
