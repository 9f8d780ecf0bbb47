package scoring

import (
	"fmt"
	"math"

	mapset "github.com/deckarep/golang-set/v2"

	"github.com/MikeSquared-Agency/Habitat/internal/layout"
)

type direction struct{ dx, dy float64 }

// rayDirections holds the unit vectors at 45° increments starting east.
var rayDirections = func() []direction {
	dirs := make([]direction, 0, 8)
	for deg := 0; deg < 360; deg += 45 {
		rad := float64(deg) * math.Pi / 180
		dirs = append(dirs, direction{dx: math.Cos(rad), dy: math.Sin(rad)})
	}
	return dirs
}()

// SpaciousnessFactor estimates open sight-lines. Free tiles are sampled every
// stride tiles in both axes; from each, 8 rays report how far they travel before
// leaving the grid or hitting an occupied tile. The best sampled vantage point
// (mean of its 8 rays) is normalized against half the diagonal.
func SpaciousnessFactor(occupied mapset.Set[layout.Tile], grid layout.Grid, stride int, reach float64) FactorResult {
	maxSteps := int(float64(grid.Width) * reach)
	best := 0.0
	sampled := 0
	for i := 0; i < grid.Width; i += stride {
		for j := 0; j < grid.Height; j += stride {
			if occupied.Contains(layout.Tile{X: i, Y: j}) {
				continue
			}
			sampled++
			var sum float64
			for _, d := range rayDirections {
				sum += float64(rayLength(occupied, grid, i, j, d, maxSteps))
			}
			if mean := sum / float64(len(rayDirections)); mean > best {
				best = mean
			}
		}
	}
	if sampled == 0 {
		return FactorResult{Name: ScoreSpaciousness, Score: 0, Reason: "every sampled tile occupied"}
	}
	return FactorResult{
		Name:   ScoreSpaciousness,
		Score:  Normalize(best, 0, grid.Diagonal()/2),
		Reason: fmt.Sprintf("best vantage %.2f over %d samples", best, sampled),
	}
}

// rayLength walks unit steps from (x, y) and returns the last step that stayed on
// a free in-grid tile. Step coordinates truncate toward zero.
func rayLength(occupied mapset.Set[layout.Tile], grid layout.Grid, x, y int, d direction, maxSteps int) int {
	length := 0
	for step := 1; step < maxSteps; step++ {
		px := int(float64(x) + d.dx*float64(step))
		py := int(float64(y) + d.dy*float64(step))
		if occupied.Contains(layout.Tile{X: px, Y: py}) || !grid.Contains(px, py) {
			break
		}
		length = step
	}
	return length
}
