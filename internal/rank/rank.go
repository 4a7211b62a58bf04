// Package rank orders candidates by how promising they are for enrichment.
package rank

import (
	"fmt"
	"sort"
	"strings"

	"github.com/ppiankov/scimap/internal/model"
)

// Signal is one contribution to a candidate's score
type Signal struct {
	Name   string `json:"name"`
	Points int    `json:"points"`
	Detail string `json:"detail,omitempty"`
}

// Breakdown explains how a score was reached
type Breakdown struct {
	Total   int      `json:"total"`
	Signals []Signal `json:"signals"`
}

// DefaultNotableNames mark candidates whose surname is widely known
var DefaultNotableNames = []string{
	"euler", "bernoulli", "lagrange", "laplace", "lambert", "cramer",
	"clairaut", "maclaurin", "agnesi", "legendre", "moivre", "bayes",
	"goldbach", "alembert", "newton", "leibniz", "gauss", "fermat",
	"pascal", "descartes", "huygens", "stirling", "taylor", "maupertuis",
	"monge", "condorcet", "simpson", "bradley",
}

// Scorer computes priority scores
type Scorer struct {
	notable []string
}

// NewScorer creates a scorer. An empty list falls back to DefaultNotableNames.
func NewScorer(notable []string) *Scorer {
	if len(notable) == 0 {
		notable = DefaultNotableNames
	}
	lowered := make([]string, 0, len(notable))
	for _, n := range notable {
		if n = strings.ToLower(strings.TrimSpace(n)); n != "" {
			lowered = append(lowered, n)
		}
	}
	return &Scorer{notable: lowered}
}

var defaultScorer = NewScorer(nil)

// Score returns c's priority with the default notable-name list
func Score(c model.Candidate) int {
	return defaultScorer.Score(c)
}

// Rank orders with the default scorer
func Rank(cs []model.Candidate, k int) []model.Candidate {
	return defaultScorer.Rank(cs, k)
}

// Explain breaks down c's score with the default scorer
func Explain(c model.Candidate) Breakdown {
	return defaultScorer.Explain(c)
}

// Score returns the total priority for c
func (s *Scorer) Score(c model.Candidate) int {
	return s.Explain(c).Total
}

// Explain lists every signal that contributed to c's score
func (s *Scorer) Explain(c model.Candidate) Breakdown {
	var signals []Signal
	add := func(name string, points int, detail string) {
		signals = append(signals, Signal{Name: name, Points: points, Detail: detail})
	}

	if c.WikipediaURL != "" {
		add("wikipedia_article", 20, "")
	}
	if c.HasDates() {
		add("known_dates", 15, fmt.Sprintf("%d-%d", *c.BirthYear, *c.DeathYear))
	}
	if c.BirthYear != nil {
		switch y := *c.BirthYear; {
		case y >= 1700 && y <= 1750:
			add("core_period", 25, fmt.Sprintf("born %d", y))
		case y >= 1650 && y < 1700:
			add("early_period", 20, fmt.Sprintf("born %d", y))
		case y > 1750 && y <= 1770:
			add("late_period", 15, fmt.Sprintf("born %d", y))
		}
	}
	if c.BirthPlace != nil && c.BirthPlace.Coordinates != nil {
		add("birth_coordinates", 10, c.BirthPlace.Name)
	}
	if c.Nationality != "" {
		add("nationality", 5, c.Nationality)
	}
	if c.ImageURL != "" {
		add("image", 3, "")
	}

	lower := strings.ToLower(c.Name)
	for _, n := range s.notable {
		if strings.Contains(lower, n) {
			add("notable_name", 30, n)
			break
		}
	}

	if tokens := len(strings.Fields(c.Name)); tokens > 4 {
		add("long_name", -5, fmt.Sprintf("%d name tokens", tokens))
	}

	total := 0
	for _, sig := range signals {
		total += sig.Points
	}
	return Breakdown{Total: total, Signals: signals}
}

// Rank scores every candidate and returns the top k, highest first. Ties
// keep discovery order. k <= 0 returns all candidates.
func (s *Scorer) Rank(cs []model.Candidate, k int) []model.Candidate {
	ranked := make([]model.Candidate, len(cs))
	copy(ranked, cs)

	for i := range ranked {
		ranked[i].Priority = s.Score(ranked[i])
	}

	sort.SliceStable(ranked, func(i, j int) bool {
		if ranked[i].Priority != ranked[j].Priority {
			return ranked[i].Priority > ranked[j].Priority
		}
		return ranked[i].Discovery < ranked[j].Discovery
	})

	if k > 0 && k < len(ranked) {
		ranked = ranked[:k]
	}
	return ranked
}
