package model

import (
	"strings"
	"unicode"
)

// Candidate is a person record eligible for enrichment
type Candidate struct {
	ID           string `json:"id"`                      // Wikidata QID (e.g., "Q7604")
	Name         string `json:"name"`                    // Display name
	BirthYear    *int   `json:"birth_year"`              // Nil when unknown
	DeathYear    *int   `json:"death_year"`              // Nil when unknown
	Nationality  string `json:"nationality,omitempty"`   // Citizenship label, if any
	WikipediaURL string `json:"wikipedia_url,omitempty"` // English Wikipedia article
	BirthPlace   *Place `json:"birth_place,omitempty"`   // Birth place with optional coordinates
	ImageURL     string `json:"image_url,omitempty"`     // Commons image
	Priority     int    `json:"priority"`                // Ranking score, higher first
	Discovery    int    `json:"discovery_index"`         // Position in the query result
}

// Place is a named location with optional coordinates
type Place struct {
	Name        string       `json:"name"`
	Coordinates *Coordinates `json:"coordinates,omitempty"`
}

// Coordinates are WGS84 decimal degrees
type Coordinates struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// Key returns the normalized identifier used for checkpoint membership
// and per-entity file names.
func (c Candidate) Key() string {
	return NormalizeKey(c.Name)
}

// HasDates reports whether both birth and death years are known
func (c Candidate) HasDates() bool {
	return c.BirthYear != nil && c.DeathYear != nil
}

// NormalizeKey derives a file-safe identifier from a display name.
// "Jean le Rond d'Alembert" -> "jean_le_rond_dalembert"
func NormalizeKey(name string) string {
	s := strings.ToLower(strings.TrimSpace(name))
	s = strings.NewReplacer(" ", "_", "-", "_", ".", "", ",", "").Replace(s)

	var b strings.Builder
	for _, r := range s {
		switch {
		case r == '_':
			b.WriteRune(r)
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			b.WriteRune(r)
		}
	}

	key := b.String()
	for strings.Contains(key, "__") {
		key = strings.ReplaceAll(key, "__", "_")
	}
	key = strings.Trim(key, "_")
	if key == "" {
		return "unknown"
	}
	return key
}

// IntPtr returns a pointer to v
func IntPtr(v int) *int {
	return &v
}
