package pipeline

import (
	"context"

	"github.com/ppiankov/scimap/internal/extract"
	"github.com/ppiankov/scimap/internal/model"
	"github.com/ppiankov/scimap/internal/upstream/geocode"
	"github.com/ppiankov/scimap/internal/upstream/wikidata"
)

// CandidateSource lists candidate entities
type CandidateSource interface {
	Query(ctx context.Context, p wikidata.QueryParams) ([]model.Candidate, error)
}

// BiographySource scrapes the article for a candidate
type BiographySource interface {
	Fetch(ctx context.Context, url string) (*model.Biography, error)
}

// EventExtractor turns a biography into timeline events
type EventExtractor interface {
	Extract(ctx context.Context, name string, bio model.Biography) extract.Result
}

// PopularitySource looks up article view statistics
type PopularitySource interface {
	Lookup(ctx context.Context, pageTitle string) (*model.Popularity, error)
}

// ArtifactStore persists assembled records
type ArtifactStore interface {
	WriteEntity(rec model.FinalRecord) error
	LoadEntity(key string) (*model.FinalRecord, error)
	WriteDataset(records []model.FinalRecord) error
}

// Probe checks that the completion backend answers before any work starts
type Probe interface {
	Name() string
	IsAvailable(ctx context.Context) error
}

// Stages are the collaborators a Driver sequences. Popularity and Geocoder
// are optional.
type Stages struct {
	Candidates  CandidateSource
	Biographies BiographySource
	Extractor   EventExtractor
	Popularity  PopularitySource
	Geocoder    geocode.Geocoder
	Store       ArtifactStore
	Probe       Probe
}
