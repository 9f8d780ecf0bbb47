package scoring

import (
	"fmt"
	"slices"

	"github.com/MikeSquared-Agency/Habitat/internal/layout"
)

const neutralScore = 0.5

// ZonificationFactor rewards separating clean (cleanliness 1.0) from dirty
// (cleanliness 0.0) modules, measured between the two centroids.
func ZonificationFactor(cells []layout.Cell, grid layout.Grid, reach float64) FactorResult {
	var cleanX, cleanY, dirtyX, dirtyY float64
	var clean, dirty int
	for _, c := range cells {
		switch c.Props.Cleanliness {
		case 1.0:
			cleanX += float64(c.X)
			cleanY += float64(c.Y)
			clean++
		case 0.0:
			dirtyX += float64(c.X)
			dirtyY += float64(c.Y)
			dirty++
		}
	}
	if clean == 0 || dirty == 0 {
		return FactorResult{Name: ScoreZonification, Score: neutralScore, Reason: "no clean/dirty pair"}
	}

	d := distance(cleanX/float64(clean), cleanY/float64(clean), dirtyX/float64(dirty), dirtyY/float64(dirty))
	return FactorResult{
		Name:   ScoreZonification,
		Score:  Normalize(d, 0, grid.Diagonal()*reach),
		Reason: fmt.Sprintf("centroid distance %.2f", d),
	}
}

// AdjacencyFactor averages 1/(1+d) over the desired pairs whose two categories
// are both present. Each category is located by its first cell.
func AdjacencyFactor(cells []layout.Cell, pairs []AdjacencyPair) FactorResult {
	first := make(map[layout.ModuleType]layout.Tile)
	for _, c := range cells {
		if !c.Type.Known() {
			continue
		}
		if _, ok := first[c.Type]; !ok {
			first[c.Type] = c.Tile()
		}
	}

	var sum float64
	var n int
	for _, pair := range pairs {
		a, okA := first[pair.A]
		b, okB := first[pair.B]
		if !okA || !okB {
			continue
		}
		d := distance(float64(a.X), float64(a.Y), float64(b.X), float64(b.Y))
		sum += 1 / (1 + d)
		n++
	}
	if n == 0 {
		return FactorResult{Name: ScoreAdjacency, Score: 0, Reason: "no desired pair present"}
	}
	return FactorResult{Name: ScoreAdjacency, Score: sum / float64(n), Reason: fmt.Sprintf("%d pairs evaluated", n)}
}

// PrivacyFactor measures the mean distance from every PRIVATE cell to every
// noisy cell.
func PrivacyFactor(cells []layout.Cell, noisy []layout.ModuleType, grid layout.Grid, reach float64) FactorResult {
	var private, loud []layout.Cell
	for _, c := range cells {
		switch {
		case c.Type == layout.Private:
			private = append(private, c)
		case c.Type.Known() && slices.Contains(noisy, c.Type):
			loud = append(loud, c)
		}
	}
	if len(private) == 0 || len(loud) == 0 {
		return FactorResult{Name: ScorePrivacy, Score: neutralScore, Reason: "no private/noisy pair"}
	}

	var total float64
	for _, p := range private {
		for _, r := range loud {
			total += distance(float64(p.X), float64(p.Y), float64(r.X), float64(r.Y))
		}
	}
	mean := total / float64(len(private)*len(loud))
	return FactorResult{
		Name:   ScorePrivacy,
		Score:  Normalize(mean, 0, grid.Diagonal()*reach),
		Reason: fmt.Sprintf("mean distance %.2f", mean),
	}
}
