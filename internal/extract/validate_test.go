package extract

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ppiankov/scimap/internal/model"
)

func TestValidate_Accepts(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want model.Year
		conf model.YearConfidence
	}{
		{"int year", `{"year": 1707, "event_type": "birth", "description": "Born in Basel, Switzerland"}`, model.Year{Start: 1707}, model.YearExact},
		{"string year", `{"year": "1783", "event_type": "death", "description": "Died in Saint Petersburg"}`, model.Year{Start: 1783}, model.YearExact},
		{"range", `{"year": "1727-1741", "event_type": "position", "description": "Academy member in Russia"}`, model.Year{Start: 1727, End: 1741}, model.YearRange},
		{"bounds", `{"year": 1650, "event_type": "other", "description": "Lower bound is inclusive", "year_confidence": "estimated"}`, model.Year{Start: 1650}, model.YearEstimated},
		{"null optionals", `{"year": 1850, "event_type": "award", "description": "Upper bound is inclusive", "location": null, "confidence": null}`, model.Year{Start: 1850}, model.YearExact},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ev, err := Validate(json.RawMessage(tt.raw))
			require.NoError(t, err)
			assert.Equal(t, tt.want, ev.Year)
			assert.Equal(t, tt.conf, ev.YearConfidence)
		})
	}
}

func TestValidate_Rejects(t *testing.T) {
	tests := map[string]string{
		"not object":           `[1707]`,
		"garbage":              `{"year":`,
		"missing year":         `{"event_type": "birth", "description": "Born in Basel, Switzerland"}`,
		"float year":           `{"year": 1707.0, "event_type": "birth", "description": "Born in Basel, Switzerland"}`,
		"too early":            `{"year": 1649, "event_type": "birth", "description": "Born in Basel, Switzerland"}`,
		"too late":             `{"year": 1851, "event_type": "birth", "description": "Born in Basel, Switzerland"}`,
		"backwards range":      `{"year": "1741-1727", "event_type": "position", "description": "Academy member in Russia"}`,
		"range end late":       `{"year": "1800-1900", "event_type": "position", "description": "Academy member in Russia"}`,
		"range end zero":       `{"year": "1700-0000", "event_type": "birth", "description": "Born in Basel, Switzerland"}`,
		"approximate string":   `{"year": "c. 1707", "event_type": "birth", "description": "Born in Basel, Switzerland"}`,
		"bool year":            `{"year": true, "event_type": "birth", "description": "Born in Basel, Switzerland"}`,
		"unknown type":         `{"year": 1707, "event_type": "career", "description": "Born in Basel, Switzerland"}`,
		"type not string":      `{"year": 1707, "event_type": 3, "description": "Born in Basel, Switzerland"}`,
		"short description":    `{"year": 1707, "event_type": "birth", "description": "   Born    "}`,
		"bad year confidence":  `{"year": 1707, "event_type": "birth", "description": "Born in Basel, Switzerland", "year_confidence": "sure"}`,
		"confidence range":     `{"year": 1707, "event_type": "birth", "description": "Born in Basel, Switzerland", "confidence": 1.2}`,
		"confidence type":      `{"year": 1707, "event_type": "birth", "description": "Born in Basel, Switzerland", "confidence": "high"}`,
		"location type":        `{"year": 1707, "event_type": "birth", "description": "Born in Basel, Switzerland", "location": "Basel"}`,
		"location confidence":  `{"year": 1707, "event_type": "birth", "description": "Born in Basel, Switzerland", "location": {"confidence": -0.1}}`,
		"source text type":     `{"year": 1707, "event_type": "birth", "description": "Born in Basel, Switzerland", "source_text": 12}`,
	}

	for name, raw := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := Validate(json.RawMessage(raw))
			assert.Error(t, err)
		})
	}
}

func TestValidate_LocationPlaceholderName(t *testing.T) {
	ev, err := Validate(json.RawMessage(`{"year": 1707, "event_type": "birth",
		"description": "Born in Basel, Switzerland",
		"location": {"place_name": "null", "raw_text": "somewhere", "confidence": 0.2}}`))
	require.NoError(t, err)
	assert.Nil(t, ev.Location.PlaceName)
	assert.Equal(t, "somewhere", ev.Location.RawText)
}

func TestValidate_TotalOnArbitraryInput(t *testing.T) {
	inputs := []string{``, `null`, `"x"`, `{}`, `{"year": {}}`, `{"year": []}`, `{"year": 1707, "event_type": null}`}
	for _, in := range inputs {
		assert.NotPanics(t, func() {
			_, err := Validate(json.RawMessage(in))
			assert.Error(t, err)
		})
	}
}
