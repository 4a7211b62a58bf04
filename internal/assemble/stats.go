package assemble

import (
	"sort"

	"go.uber.org/zap"

	"github.com/ppiankov/scimap/internal/model"
)

// Count is one entry of a frequency table
type Count struct {
	Value string
	Count int
}

// Stats summarizes a dataset
type Stats struct {
	Total         int
	TotalEvents   int
	AvgEvents     float64
	BirthYearMin  int
	BirthYearMax  int
	BirthYearMean float64
	Nationalities []Count // most frequent first
	WithoutCoords int
	UnknownTier   int
}

// ComputeStats derives dataset statistics
func ComputeStats(records []model.FinalRecord) Stats {
	s := Stats{Total: len(records)}
	counts := make(map[string]int)
	births, birthSum := 0, 0

	for _, r := range records {
		s.TotalEvents += len(r.TimelineEvents)

		nat := r.Nationality
		if nat == "" {
			nat = "Unknown"
		}
		counts[nat]++

		if r.BirthYear != nil {
			y := *r.BirthYear
			if births == 0 || y < s.BirthYearMin {
				s.BirthYearMin = y
			}
			if births == 0 || y > s.BirthYearMax {
				s.BirthYearMax = y
			}
			births++
			birthSum += y
		}
		if r.Coordinates == nil {
			s.WithoutCoords++
		}
		if r.PopularityTier == model.TierUnknown {
			s.UnknownTier++
		}
	}

	if s.Total > 0 {
		s.AvgEvents = float64(s.TotalEvents) / float64(s.Total)
	}
	if births > 0 {
		s.BirthYearMean = float64(birthSum) / float64(births)
	}

	for value, n := range counts {
		s.Nationalities = append(s.Nationalities, Count{Value: value, Count: n})
	}
	sort.Slice(s.Nationalities, func(i, j int) bool {
		if s.Nationalities[i].Count != s.Nationalities[j].Count {
			return s.Nationalities[i].Count > s.Nationalities[j].Count
		}
		return s.Nationalities[i].Value < s.Nationalities[j].Value
	})
	return s
}

// Log writes the statistics through the global logger
func (s Stats) Log() {
	zap.L().Info("dataset statistics",
		zap.Int("total", s.Total),
		zap.Int("events", s.TotalEvents),
		zap.Float64("avg_events", s.AvgEvents),
		zap.Int("birth_year_min", s.BirthYearMin),
		zap.Int("birth_year_max", s.BirthYearMax),
		zap.Float64("birth_year_mean", s.BirthYearMean),
		zap.Int("without_coordinates", s.WithoutCoords),
		zap.Int("unknown_popularity", s.UnknownTier),
	)
	for _, c := range s.Nationalities {
		zap.L().Info("nationality",
			zap.String("value", c.Value),
			zap.Int("count", c.Count),
			zap.Float64("percent", 100*float64(c.Count)/float64(s.Total)),
		)
	}
}
