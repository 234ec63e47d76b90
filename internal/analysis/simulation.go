package analysis

import (
	"fmt"
	"hash/fnv"
	"math/rand"
	"strings"
)

// TrendPoint is one hourly sample of an engagement series.
type TrendPoint struct {
	Timestamp string `json:"timestamp"`
	Value     int    `json:"value"`
}

// Simulation is a reproducible synthetic stand-in for acquired data.
type Simulation struct {
	Seed      uint64        `json:"seed"`
	Declining bool          `json:"declining"`
	Features  FeatureVector `json:"features"`
	History   []TrendPoint  `json:"history"`
}

type span struct{ lo, hi float64 }

func (s span) draw(rng *rand.Rand) float64 {
	return roundTo(s.lo+rng.Float64()*(s.hi-s.lo), featurePrecision)
}

var simulationProfiles = map[bool]map[string]span{
	true: {
		SignalEngagementVelocity: {-0.8, -0.2},
		SignalSentimentScore:     {-0.7, -0.1},
		SignalCommentFatigue:     {0.4, 0.9},
		SignalInfluencerRatio:    {0.1, 0.4},
		SignalPostingChange:      {-0.5, -0.1},
		SignalTrendAge:           {35, 90},
	},
	false: {
		SignalEngagementVelocity: {0.1, 0.7},
		SignalSentimentScore:     {0.1, 0.7},
		SignalCommentFatigue:     {0, 0.3},
		SignalInfluencerRatio:    {0.4, 0.8},
		SignalPostingChange:      {-0.1, 0.3},
		SignalTrendAge:           {1, 20},
	},
}

// SimulationSeed hashes an identifier with FNV-1a. Case and surrounding
// whitespace do not change the seed.
func SimulationSeed(identifier string) uint64 {
	h := fnv.New64a()
	h.Write([]byte(strings.ToLower(strings.TrimSpace(identifier))))
	return h.Sum64()
}

// Simulate derives a feature vector and a 24-hour history from identifier.
// The same identifier always yields the same simulation.
func Simulate(identifier string) Simulation {
	seed := SimulationSeed(identifier)
	rng := rand.New(rand.NewSource(int64(seed)))
	declining := seed%2 == 0

	profile := simulationProfiles[declining]
	raw := make(map[string]float64, len(profile))
	// Draw in canonical order so the sequence does not depend on map iteration.
	for _, name := range SignalNames() {
		if s, ok := profile[name]; ok {
			raw[name] = s.draw(rng)
		}
	}

	const hours, base = 24, 1000
	history := make([]TrendPoint, hours)
	for i := 0; i < hours; i++ {
		drift := -10 * i
		if declining {
			drift = 40 * i
		}
		value := max(0, base-drift+rng.Intn(101)-50)
		history[hours-1-i] = TrendPoint{Timestamp: fmt.Sprintf("%dh ago", i), Value: value}
	}

	return Simulation{
		Seed:      seed,
		Declining: declining,
		Features:  complete(raw),
		History:   history,
	}
}
