package llm

import (
	"math/rand"

	"github.com/capitalize-ai/corpus-generator/internal/model"
)

// TemperatureFor picks the sampling temperature for a scenario. An explicit
// override always wins.
func TemperatureFor(kind model.ScenarioKind, noise bool, override *float64, rng *rand.Rand) float64 {
	if override != nil {
		return *override
	}
	switch {
	case noise:
		return 0.9 + rng.Float64()*0.4
	case kind == model.KindThread:
		return 0.85
	case kind == model.KindChat:
		return 0.7
	}
	return 0.95
}
