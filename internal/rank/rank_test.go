package rank

import (
	"testing"

	"github.com/ppiankov/scimap/internal/model"
)

func TestScore_Weights(t *testing.T) {
	euler := model.Candidate{
		ID:           "Q7604",
		Name:         "Leonhard Euler",
		BirthYear:    model.IntPtr(1707),
		DeathYear:    model.IntPtr(1783),
		Nationality:  "Switzerland",
		WikipediaURL: "https://en.wikipedia.org/wiki/Leonhard_Euler",
		BirthPlace:   &model.Place{Name: "Basel", Coordinates: &model.Coordinates{Lat: 47.56, Lng: 7.59}},
		ImageURL:     "https://commons.wikimedia.org/euler.jpg",
	}

	// 20 + 15 + 25 + 10 + 5 + 3 + 30
	if got := Score(euler); got != 108 {
		t.Errorf("expected 108, got %d", got)
	}
}

func TestScore_Periods(t *testing.T) {
	tests := []struct {
		year int
		want int
	}{
		{1650, 20},
		{1699, 20},
		{1700, 25},
		{1750, 25},
		{1751, 15},
		{1770, 15},
		{1771, 0},
		{1640, 0},
	}

	for _, tt := range tests {
		c := model.Candidate{Name: "A B", BirthYear: model.IntPtr(tt.year)}
		if got := Score(c); got != tt.want {
			t.Errorf("born %d: expected %d, got %d", tt.year, tt.want, got)
		}
	}
}

func TestScore_NotableOnceAndLongName(t *testing.T) {
	// two keywords match, the bonus applies once
	c := model.Candidate{Name: "Johann Bernoulli Newton"}
	if got := Score(c); got != 30 {
		t.Errorf("expected keyword bonus once (30), got %d", got)
	}

	long := model.Candidate{Name: "Jean Baptiste Joseph Marie Fourier"}
	if got := Score(long); got != -5 {
		t.Errorf("expected -5 for long name, got %d", got)
	}
}

func TestScorer_CustomNotable(t *testing.T) {
	s := NewScorer([]string{"  Agnesi "})
	if got := s.Score(model.Candidate{Name: "Maria Gaetana Agnesi"}); got != 30 {
		t.Errorf("expected custom keyword match, got %d", got)
	}
	if got := s.Score(model.Candidate{Name: "Leonhard Euler"}); got != 0 {
		t.Errorf("expected euler unmatched with custom list, got %d", got)
	}
}

func TestRank_StableTopK(t *testing.T) {
	cs := []model.Candidate{
		{ID: "Q1", Name: "Alpha One", Discovery: 0},
		{ID: "Q2", Name: "Beta Two", Discovery: 1, WikipediaURL: "https://en.wikipedia.org/wiki/B"},
		{ID: "Q3", Name: "Gamma Three", Discovery: 2},
		{ID: "Q4", Name: "Delta Four", Discovery: 3, WikipediaURL: "https://en.wikipedia.org/wiki/D"},
	}

	got := Rank(cs, 3)
	want := []string{"Q2", "Q4", "Q1"}
	if len(got) != len(want) {
		t.Fatalf("expected %d results, got %d", len(want), len(got))
	}
	for i, id := range want {
		if got[i].ID != id {
			t.Errorf("position %d: expected %s, got %s", i, id, got[i].ID)
		}
	}
	if got[0].Priority != 20 {
		t.Errorf("expected priority populated, got %d", got[0].Priority)
	}

	// input untouched
	if cs[0].Priority != 0 {
		t.Errorf("Rank must not mutate its input")
	}

	if all := Rank(cs, 0); len(all) != 4 {
		t.Errorf("k=0 should return all, got %d", len(all))
	}
}

func TestExplain_ListsSignals(t *testing.T) {
	b := Explain(model.Candidate{Name: "Leonhard Euler", WikipediaURL: "x"})
	if b.Total != 50 {
		t.Errorf("expected 50, got %d", b.Total)
	}
	if len(b.Signals) != 2 || b.Signals[0].Name != "wikipedia_article" || b.Signals[1].Name != "notable_name" {
		t.Errorf("unexpected signals: %+v", b.Signals)
	}
}
