package scoring

import (
	"github.com/MikeSquared-Agency/Habitat/internal/layout"
)

// ErgonomicsFactor is the usage-frequency-weighted mean of 1/(1+d) where d is the
// distance to the grid centre. Frequently used modules should sit centrally.
// The result lies in [0, 1] by construction.
func ErgonomicsFactor(cells []layout.Cell, grid layout.Grid, freq map[layout.ModuleType]float64, defaultFreq float64) FactorResult {
	cx, cy := grid.Center()
	var weighted, totalFreq float64
	for _, c := range cells {
		f, ok := freq[c.Type]
		if !ok || !c.Type.Known() {
			f = defaultFreq
		}
		centrality := 1 / (1 + distance(float64(c.X), float64(c.Y), cx, cy))
		weighted += f * centrality
		totalFreq += f
	}
	if totalFreq == 0 {
		return FactorResult{Name: ScoreErgonomics, Score: 0, Reason: "no usage frequency"}
	}
	return FactorResult{Name: ScoreErgonomics, Score: weighted / totalFreq}
}
