package wikidata

import (
	"encoding/json"
	"regexp"
	"strconv"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/ppiankov/scimap/internal/model"
)

type sparqlValue struct {
	Type  string `json:"type"`
	Value string `json:"value"`
}

type sparqlResponse struct {
	Results struct {
		Bindings []map[string]sparqlValue `json:"bindings"`
	} `json:"results"`
}

var (
	pointPattern = regexp.MustCompile(`^Point\(\s*(-?[\d.]+)\s+(-?[\d.]+)\s*\)$`)
	qidPattern   = regexp.MustCompile(`^Q\d+$`)
	yearPattern  = regexp.MustCompile(`^([+-]?\d{1,4})-`)
)

// parseBindings turns SPARQL JSON results into candidates. Rows repeat per
// birth place and citizenship, so they are merged by QID: the first row
// wins and later rows only fill gaps. Discovery follows first appearance.
func parseBindings(body []byte) ([]model.Candidate, error) {
	var resp sparqlResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, eris.Wrap(err, "decode sparql results")
	}

	index := make(map[string]int)
	var out []model.Candidate

	for _, row := range resp.Results.Bindings {
		id := entityID(row["person"].Value)
		if id == "" {
			continue
		}
		name := strings.TrimSpace(row["personLabel"].Value)
		// The label service falls back to the QID when no English label exists
		if name == "" || qidPattern.MatchString(name) {
			continue
		}

		c := model.Candidate{
			ID:           id,
			Name:         name,
			BirthYear:    parseYear(row["birthDate"].Value),
			DeathYear:    parseYear(row["deathDate"].Value),
			Nationality:  label(row["citizenshipLabel"].Value),
			WikipediaURL: row["article"].Value,
			ImageURL:     row["image"].Value,
		}
		if placeName := label(row["birthPlaceLabel"].Value); placeName != "" {
			c.BirthPlace = &model.Place{Name: placeName, Coordinates: parsePoint(row["birthCoords"].Value)}
		}

		if i, seen := index[id]; seen {
			fillGaps(&out[i], c)
			continue
		}
		c.Discovery = len(out)
		index[id] = len(out)
		out = append(out, c)
	}

	return out, nil
}

func fillGaps(dst *model.Candidate, src model.Candidate) {
	if dst.BirthYear == nil {
		dst.BirthYear = src.BirthYear
	}
	if dst.DeathYear == nil {
		dst.DeathYear = src.DeathYear
	}
	if dst.Nationality == "" {
		dst.Nationality = src.Nationality
	}
	if dst.WikipediaURL == "" {
		dst.WikipediaURL = src.WikipediaURL
	}
	if dst.ImageURL == "" {
		dst.ImageURL = src.ImageURL
	}
	switch {
	case dst.BirthPlace == nil:
		dst.BirthPlace = src.BirthPlace
	case dst.BirthPlace.Coordinates == nil && src.BirthPlace != nil &&
		src.BirthPlace.Name == dst.BirthPlace.Name:
		dst.BirthPlace.Coordinates = src.BirthPlace.Coordinates
	}
}

// entityID returns the QID at the end of an entity URI
func entityID(uri string) string {
	i := strings.LastIndex(uri, "/")
	id := uri[i+1:]
	if !qidPattern.MatchString(id) {
		return ""
	}
	return id
}

// label drops values the label service could not resolve
func label(v string) string {
	v = strings.TrimSpace(v)
	if qidPattern.MatchString(v) || strings.HasPrefix(v, "http") {
		return ""
	}
	return v
}

// parseYear reads the year from an xsd:dateTime such as "1707-04-15T00:00:00Z"
func parseYear(v string) *int {
	m := yearPattern.FindStringSubmatch(strings.TrimSpace(v))
	if m == nil {
		return nil
	}
	y, err := strconv.Atoi(m[1])
	if err != nil {
		return nil
	}
	return model.IntPtr(y)
}

// parsePoint reads a WKT literal "Point(lng lat)"
func parsePoint(v string) *model.Coordinates {
	m := pointPattern.FindStringSubmatch(strings.TrimSpace(v))
	if m == nil {
		return nil
	}
	lng, err1 := strconv.ParseFloat(m[1], 64)
	lat, err2 := strconv.ParseFloat(m[2], 64)
	if err1 != nil || err2 != nil || lat < -90 || lat > 90 || lng < -180 || lng > 180 {
		return nil
	}
	return &model.Coordinates{Lat: lat, Lng: lng}
}
