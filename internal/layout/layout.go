package layout

import (
	"errors"
	"fmt"
	"math"
	"strings"

	mapset "github.com/deckarep/golang-set/v2"
)

// ErrInvalidLayout is wrapped by every data-contract violation reported by this package.
var ErrInvalidLayout = errors.New("invalid layout")

// ValidationError lists every problem found in a layout or document.
type ValidationError struct {
	Problems []string
}

func (e *ValidationError) Error() string {
	return ErrInvalidLayout.Error() + ": " + strings.Join(e.Problems, "; ")
}

func (e *ValidationError) Unwrap() error { return ErrInvalidLayout }

// Props is the attribute bag of a placed module.
type Props struct {
	Mass                float64 `json:"mass"`
	Volume              float64 `json:"volume"`
	Cost                float64 `json:"cost"`
	Cleanliness         float64 `json:"cleanliness"`
	Permanence          int     `json:"permanence"`
	MaterialType        string  `json:"material_type,omitempty"`
	RadiationResistance float64 `json:"radiation_resistance,omitempty"`
}

// Tile is an integer grid coordinate.
type Tile struct {
	X, Y int
}

// Cell is one module instance on the grid.
type Cell struct {
	X       int
	Y       int
	Type    ModuleType
	RawType string // original spelling, kept for unknown types
	Props   Props
}

func (c Cell) Tile() Tile { return Tile{X: c.X, Y: c.Y} }

// TypeName returns the canonical name for known types and the raw name otherwise.
func (c Cell) TypeName() string {
	if c.Type == Unknown && c.RawType != "" {
		return c.RawType
	}
	return c.Type.String()
}

// Layout is one candidate habitat: an opaque id plus its ordered cells.
type Layout struct {
	ID    string
	Cells []Cell
}

// MissionContext carries the mission-level parameters a layout is scored against.
type MissionContext struct {
	CrewSize            int     `json:"crew_size"`
	StructuralMaterial  string  `json:"structural_material"`
	RadiationResistance float64 `json:"radiation_resistance"`
}

// Validate rejects a non-positive crew size.
func (mc MissionContext) Validate() error {
	if mc.CrewSize <= 0 {
		return &ValidationError{Problems: []string{fmt.Sprintf("crew size must be positive, got %d", mc.CrewSize)}}
	}
	if !finite(mc.RadiationResistance) {
		return &ValidationError{Problems: []string{fmt.Sprintf("radiation resistance must be finite, got %g", mc.RadiationResistance)}}
	}
	return nil
}

// Grid is the habitat extent in tiles. It is configuration, not part of a layout.
type Grid struct {
	Width  int `yaml:"width" json:"width"`
	Height int `yaml:"height" json:"height"`
}

func (g Grid) Area() int { return g.Width * g.Height }

func (g Grid) Diagonal() float64 {
	return math.Sqrt(float64(g.Width*g.Width + g.Height*g.Height))
}

func (g Grid) Contains(x, y int) bool {
	return x >= 0 && x < g.Width && y >= 0 && y < g.Height
}

func (g Grid) Center() (float64, float64) {
	return float64(g.Width) / 2, float64(g.Height) / 2
}

// Validate checks the layout invariants that do not depend on the wire format:
// cells inside the grid, one cell per tile, non-negative physical attributes.
func (l *Layout) Validate(grid Grid) error {
	var problems []string
	seen := mapset.NewThreadUnsafeSetWithSize[Tile](len(l.Cells))
	for i, c := range l.Cells {
		if !grid.Contains(c.X, c.Y) {
			problems = append(problems, fmt.Sprintf("cell %d (%s) at (%d,%d) outside %dx%d grid", i, c.TypeName(), c.X, c.Y, grid.Width, grid.Height))
		}
		if !seen.Add(c.Tile()) {
			problems = append(problems, fmt.Sprintf("cell %d (%s) duplicates tile (%d,%d)", i, c.TypeName(), c.X, c.Y))
		}
		if !finite(c.Props.Mass) || !finite(c.Props.Volume) || !finite(c.Props.Cost) || !finite(c.Props.Cleanliness) {
			problems = append(problems, fmt.Sprintf("cell %d (%s) has a non-finite attribute", i, c.TypeName()))
			continue
		}
		if c.Props.Mass < 0 {
			problems = append(problems, fmt.Sprintf("cell %d (%s) has negative mass %g", i, c.TypeName(), c.Props.Mass))
		}
		if c.Props.Volume < 0 || c.Props.Cost < 0 {
			problems = append(problems, fmt.Sprintf("cell %d (%s) has negative volume or cost", i, c.TypeName()))
		}
		if c.Props.Cleanliness < 0 || c.Props.Cleanliness > 1 {
			problems = append(problems, fmt.Sprintf("cell %d (%s) cleanliness %g outside [0,1]", i, c.TypeName(), c.Props.Cleanliness))
		}
		if c.Props.Permanence < 0 {
			problems = append(problems, fmt.Sprintf("cell %d (%s) has negative permanence", i, c.TypeName()))
		}
	}
	if len(problems) > 0 {
		return &ValidationError{Problems: problems}
	}
	return nil
}

func finite(v float64) bool { return !math.IsNaN(v) && !math.IsInf(v, 0) }

// CountType returns how many cells have the given type.
func CountType(cells []Cell, t ModuleType) int {
	n := 0
	for _, c := range cells {
		if c.Type == t {
			n++
		}
	}
	return n
}

// Occupied returns the set of tiles holding a cell.
func (l *Layout) Occupied() mapset.Set[Tile] {
	occ := mapset.NewThreadUnsafeSetWithSize[Tile](len(l.Cells))
	for _, c := range l.Cells {
		occ.Add(c.Tile())
	}
	return occ
}
