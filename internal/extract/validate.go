package extract

import (
	"bytes"
	"encoding/json"
	"strings"
	"unicode/utf8"

	"github.com/rotisserie/eris"

	"github.com/ppiankov/scimap/internal/model"
)

// Accepted event year window
const (
	MinYear = 1650
	MaxYear = 1850
)

const minDescriptionLen = 10

// Validate checks one candidate event object and converts it. It never
// panics and never coerces: a float year is rejected, not rounded.
func Validate(raw json.RawMessage) (model.TimelineEvent, error) {
	var ev model.TimelineEvent

	var fields map[string]json.RawMessage
	if err := json.Unmarshal(raw, &fields); err != nil || fields == nil {
		return ev, eris.New("event is not a JSON object")
	}

	yearRaw, ok := present(fields, "year")
	if !ok {
		return ev, eris.New("missing year")
	}
	year, err := model.ParseYear(yearRaw)
	if err != nil {
		return ev, eris.Wrap(err, "year")
	}
	if err := checkYear(year); err != nil {
		return ev, err
	}
	ev.Year = year

	eventType, err := requiredString(fields, "event_type")
	if err != nil {
		return ev, err
	}
	ev.EventType = model.EventType(eventType)
	if !ev.EventType.Valid() {
		return ev, eris.Errorf("unknown event_type %q", eventType)
	}

	desc, err := requiredString(fields, "description")
	if err != nil {
		return ev, err
	}
	ev.Description = strings.TrimSpace(desc)
	if utf8.RuneCountInString(ev.Description) < minDescriptionLen {
		return ev, eris.Errorf("description shorter than %d characters", minDescriptionLen)
	}

	ev.YearConfidence = model.YearExact
	if year.IsRange() {
		ev.YearConfidence = model.YearRange
	}
	if rawConf, ok := present(fields, "year_confidence"); ok {
		var yc string
		if err := json.Unmarshal(rawConf, &yc); err != nil {
			return ev, eris.New("year_confidence is not a string")
		}
		ev.YearConfidence = model.YearConfidence(yc)
		if !ev.YearConfidence.Valid() {
			return ev, eris.Errorf("unknown year_confidence %q", yc)
		}
	}

	ev.Confidence = defaultConfidence
	if rawConf, ok := present(fields, "confidence"); ok {
		c, err := unitFloat(rawConf, "confidence")
		if err != nil {
			return ev, err
		}
		ev.Confidence = c
	}

	if rawSrc, ok := present(fields, "source_text"); ok {
		if err := json.Unmarshal(rawSrc, &ev.SourceText); err != nil {
			return ev, eris.New("source_text is not a string")
		}
	}

	if rawLoc, ok := present(fields, "location"); ok {
		loc, err := validateLocation(rawLoc)
		if err != nil {
			return ev, err
		}
		ev.Location = loc
	}

	return ev, nil
}

// defaultConfidence applies when the backend omits a confidence score
const defaultConfidence = 0.8

func checkYear(y model.Year) error {
	if y.Start < MinYear || y.Start > MaxYear {
		return eris.Errorf("year %d outside [%d,%d]", y.Start, MinYear, MaxYear)
	}
	if !y.IsRange() {
		return nil
	}
	if y.End < MinYear || y.End > MaxYear {
		return eris.Errorf("range end %d outside [%d,%d]", y.End, MinYear, MaxYear)
	}
	if y.Start > y.End {
		return eris.Errorf("range %s runs backwards", y)
	}
	return nil
}

func validateLocation(raw json.RawMessage) (model.Location, error) {
	var loc model.Location

	var fields map[string]json.RawMessage
	if err := json.Unmarshal(raw, &fields); err != nil || fields == nil {
		return loc, eris.New("location is not an object")
	}

	if rawName, ok := present(fields, "place_name"); ok {
		var name string
		if err := json.Unmarshal(rawName, &name); err != nil {
			return loc, eris.New("location.place_name is not a string")
		}
		if name = strings.TrimSpace(name); name != "" && !strings.EqualFold(name, "null") {
			loc.PlaceName = &name
		}
	}

	if rawText, ok := present(fields, "raw_text"); ok {
		if err := json.Unmarshal(rawText, &loc.RawText); err != nil {
			return loc, eris.New("location.raw_text is not a string")
		}
	}

	if rawConf, ok := present(fields, "confidence"); ok {
		c, err := unitFloat(rawConf, "location.confidence")
		if err != nil {
			return loc, err
		}
		loc.Confidence = c
	}

	return loc, nil
}

// present returns the field when it exists and is not JSON null
func present(fields map[string]json.RawMessage, key string) (json.RawMessage, bool) {
	raw, ok := fields[key]
	if !ok || bytes.Equal(bytes.TrimSpace(raw), []byte("null")) {
		return nil, false
	}
	return raw, true
}

func requiredString(fields map[string]json.RawMessage, key string) (string, error) {
	raw, ok := present(fields, key)
	if !ok {
		return "", eris.Errorf("missing %s", key)
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return "", eris.Errorf("%s is not a string", key)
	}
	return s, nil
}

func unitFloat(raw json.RawMessage, name string) (float64, error) {
	var f float64
	if err := json.Unmarshal(raw, &f); err != nil {
		return 0, eris.Errorf("%s is not a number", name)
	}
	if f < 0 || f > 1 {
		return 0, eris.Errorf("%s %v outside [0,1]", name, f)
	}
	return f, nil
}
