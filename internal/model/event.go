package model

import (
	"bytes"
	"encoding/json"
	"fmt"
	"regexp"
	"strconv"
	"time"
)

// EventType classifies a timeline event
type EventType string

const (
	EventBirth         EventType = "birth"
	EventEducation     EventType = "education"
	EventPosition      EventType = "position"
	EventPublication   EventType = "publication"
	EventTravel        EventType = "travel"
	EventDeath         EventType = "death"
	EventCollaboration EventType = "collaboration"
	EventAward         EventType = "award"
	EventOther         EventType = "other"
)

// EventTypes lists every accepted event type
var EventTypes = []EventType{
	EventBirth, EventEducation, EventPosition, EventPublication, EventTravel,
	EventDeath, EventCollaboration, EventAward, EventOther,
}

// Valid reports whether t is one of the enumerated event types
func (t EventType) Valid() bool {
	for _, known := range EventTypes {
		if t == known {
			return true
		}
	}
	return false
}

// YearConfidence describes how precise an event year is
type YearConfidence string

const (
	YearExact       YearConfidence = "exact"
	YearApproximate YearConfidence = "approximate"
	YearRange       YearConfidence = "range"
	YearEstimated   YearConfidence = "estimated"
)

// Valid reports whether c is one of the enumerated confidence levels
func (c YearConfidence) Valid() bool {
	switch c {
	case YearExact, YearApproximate, YearRange, YearEstimated:
		return true
	}
	return false
}

// Year is either a single year or an inclusive "YYYY-YYYY" range.
// A zero End means a single year.
type Year struct {
	Start int
	End   int
}

var yearPattern = regexp.MustCompile(`^(\d{4})(?:-(\d{4}))?$`)

// ParseYear decodes a JSON integer or a "YYYY"/"YYYY-YYYY" string.
// Non-integral numbers are rejected rather than rounded.
func ParseYear(raw json.RawMessage) (Year, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 {
		return Year{}, fmt.Errorf("empty year")
	}

	if raw[0] == '"' {
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return Year{}, fmt.Errorf("year string: %w", err)
		}
		m := yearPattern.FindStringSubmatch(s)
		if m == nil {
			return Year{}, fmt.Errorf("invalid year format: %q", s)
		}
		start, _ := strconv.Atoi(m[1])
		if m[2] == "" {
			return Year{Start: start}, nil
		}
		end, _ := strconv.Atoi(m[2])
		if end == 0 {
			// End 0 would read back as a single year
			return Year{}, fmt.Errorf("invalid year range: %q", s)
		}
		return Year{Start: start, End: end}, nil
	}

	n, err := strconv.Atoi(string(raw))
	if err != nil {
		return Year{}, fmt.Errorf("invalid year: %s", raw)
	}
	return Year{Start: n}, nil
}

// IsRange reports whether the year spans more than one value
func (y Year) IsRange() bool {
	return y.End != 0
}

// String renders the year as it appears in the dataset
func (y Year) String() string {
	if y.IsRange() {
		return fmt.Sprintf("%04d-%04d", y.Start, y.End)
	}
	return strconv.Itoa(y.Start)
}

// MarshalJSON emits an integer for single years and a string for ranges
func (y Year) MarshalJSON() ([]byte, error) {
	if y.IsRange() {
		return json.Marshal(y.String())
	}
	return []byte(strconv.Itoa(y.Start)), nil
}

// UnmarshalJSON accepts the same shapes ParseYear does
func (y *Year) UnmarshalJSON(data []byte) error {
	parsed, err := ParseYear(data)
	if err != nil {
		return err
	}
	*y = parsed
	return nil
}

// TimelineEvent is one validated biographical event
type TimelineEvent struct {
	Year               Year                `json:"year"`
	YearConfidence     YearConfidence      `json:"year_confidence"`
	EventType          EventType           `json:"event_type"`
	Description        string              `json:"description"`
	Location           Location            `json:"location"`
	SourceText         string              `json:"source_text"`
	Confidence         float64             `json:"confidence"`
	ExtractionMetadata *ExtractionMetadata `json:"extraction_metadata,omitempty"`
}

// Location is the place an event refers to, as stated in the source text
type Location struct {
	PlaceName           *string      `json:"place_name"`
	RawText             string       `json:"raw_text"`
	Confidence          float64      `json:"confidence"`
	Coordinates         *Coordinates `json:"coordinates,omitempty"`
	GeocodingConfidence *float64     `json:"geocoding_confidence,omitempty"`
}

// ExtractionMetadata records how an event was obtained
type ExtractionMetadata struct {
	ModelVersion         string    `json:"model_version"`
	ExtractedAt          time.Time `json:"extracted_at"`
	ExtractionConfidence float64   `json:"extraction_confidence"`
	ExtractionMethod     string    `json:"extraction_method"`
	RecoveryStrategy     string    `json:"recovery_strategy"`
}

// ExtractionSummary describes one extraction run for an entity
type ExtractionSummary struct {
	ExtractedAt      time.Time `json:"extracted_at"`
	ModelUsed        string    `json:"model_used"`
	EventsCount      int       `json:"events_count"`
	BiographyLength  int       `json:"biography_length"`
	RecoveryStrategy string    `json:"recovery_strategy"`
	Attempts         int       `json:"attempts"`
	DroppedEvents    int       `json:"dropped_events"`
}
