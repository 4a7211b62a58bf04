package wikidata

import (
	"fmt"
	"strings"
)

// QueryParams selects the candidate population
type QueryParams struct {
	BirthFrom int
	BirthTo   int
	Limit     int
}

const mathematiciansQuery = `SELECT ?person ?personLabel ?birthDate ?deathDate ?article
       ?birthPlaceLabel ?birthCoords ?citizenshipLabel ?image
WHERE {
  ?person wdt:P31 wd:Q5 .
  ?person wdt:P106/wdt:P279* wd:Q170790 .
  ?person wdt:P569 ?birthDate .
  FILTER(YEAR(?birthDate) >= %d && YEAR(?birthDate) <= %d)

  OPTIONAL { ?person wdt:P570 ?deathDate . }
  OPTIONAL {
    ?article schema:about ?person .
    ?article schema:isPartOf <https://en.wikipedia.org/> .
  }
  OPTIONAL {
    ?person wdt:P19 ?birthPlace .
    OPTIONAL { ?birthPlace wdt:P625 ?birthCoords . }
  }
  OPTIONAL { ?person wdt:P27 ?citizenship . }
  OPTIONAL { ?person wdt:P18 ?image . }

  SERVICE wikibase:label { bd:serviceParam wikibase:language "en". }
}
ORDER BY ?birthDate
LIMIT %d
`

// Build renders the SPARQL text for p
func (p QueryParams) Build() string {
	return strings.TrimSpace(fmt.Sprintf(mathematiciansQuery, p.BirthFrom, p.BirthTo, p.Limit))
}

// Validate rejects windows that cannot match anything
func (p QueryParams) Validate() error {
	if p.BirthFrom > p.BirthTo {
		return fmt.Errorf("birth window %d-%d is empty", p.BirthFrom, p.BirthTo)
	}
	if p.Limit <= 0 {
		return fmt.Errorf("limit must be positive, got %d", p.Limit)
	}
	return nil
}
