package scoring

import (
	"fmt"
	"math"
	"slices"

	mapset "github.com/deckarep/golang-set/v2"

	"github.com/MikeSquared-Agency/Habitat/internal/layout"
)

// WorkspaceFactor averages, over workstation cells, the share of free tiles in the
// 8-neighbourhood against goal, capped at 1. Tiles beyond the grid edge hold no
// module and count as free.
func WorkspaceFactor(cells []layout.Cell, occupied mapset.Set[layout.Tile], workstations []layout.ModuleType, goal int) FactorResult {
	var sum float64
	n := 0
	for _, c := range cells {
		if !c.Type.Known() || !slices.Contains(workstations, c.Type) {
			continue
		}
		free := 0
		for dx := -1; dx <= 1; dx++ {
			for dy := -1; dy <= 1; dy++ {
				if dx == 0 && dy == 0 {
					continue
				}
				if !occupied.Contains(layout.Tile{X: c.X + dx, Y: c.Y + dy}) {
					free++
				}
			}
		}
		sum += math.Min(1, float64(free)/float64(goal))
		n++
	}
	if n == 0 {
		return FactorResult{Name: ScoreWorkspace, Score: 0, Reason: "no workstations"}
	}
	return FactorResult{Name: ScoreWorkspace, Score: sum / float64(n), Reason: fmt.Sprintf("%d workstations", n)}
}
