package scoring

import (
	"fmt"
	"maps"
	"math"
	"slices"
	"strings"

	"github.com/MikeSquared-Agency/Habitat/internal/config"
	"github.com/MikeSquared-Agency/Habitat/internal/layout"
)

// Profile names accepted by ParamsFromConfig.
const (
	ProfileDefault  = "default"
	ProfileWeighted = "weighted"
)

// Range is a normalization domain.
type Range struct {
	Min float64
	Max float64
}

// AdjacencyPair is a pair of categories that should sit close together.
type AdjacencyPair struct {
	A layout.ModuleType
	B layout.ModuleType
}

func (p AdjacencyPair) String() string { return p.A.String() + "-" + p.B.String() }

// MaterialTable maps a structural material name (case-insensitive) to a
// sustainability score. Unlisted materials score Default.
type MaterialTable struct {
	Scores  map[string]float64
	Default float64
}

// Lookup returns the score for material and whether it was listed.
func (m MaterialTable) Lookup(material string) (float64, bool) {
	v, ok := m.Scores[strings.ToLower(strings.TrimSpace(material))]
	if !ok {
		return m.Default, false
	}
	return v, true
}

// Params is every tunable constant the engine uses. Values are copied into the
// engine at construction; changing a Params afterwards has no effect on it.
type Params struct {
	Grid layout.Grid

	Mass Range
	// WeightedMass is the mass domain ScoreWeighted uses. The weighted
	// aggregate is calibrated against lighter habitats than the vector.
	WeightedMass Range
	LogVolume    Range
	PerCrew      Range
	Radiation    Range
	Permanence   Range

	// Fractions of the grid diagonal used as the far end of the distance domains.
	ZonificationReach float64
	PrivacyReach      float64

	// RayStride is the sampling step for visibility rays in both axes. Changing it
	// changes score magnitudes, not only runtime.
	RayStride int
	// RayReach bounds ray length as a multiple of the grid width.
	RayReach float64

	Slots          SlotOrder
	Checklist      []ChecklistEntry
	AdjacencyPairs []AdjacencyPair
	NoisyTypes     []layout.ModuleType
	Workstations   []layout.ModuleType
	FreeTilesGoal  int

	Materials        MaterialTable
	Frequencies      map[layout.ModuleType]float64
	DefaultFrequency float64

	Weights WeightSet
}

// DefaultParams returns the standard scoring profile.
func DefaultParams() Params {
	return Params{
		Grid:              layout.Grid{Width: 50, Height: 50},
		Mass:              Range{Min: 5000, Max: 50000},
		WeightedMass:      Range{Min: 0, Max: 10000},
		LogVolume:         Range{Min: 2, Max: 4},
		PerCrew:           Range{Min: 5, Max: 20},
		Radiation:         Range{Min: 1, Max: 10},
		Permanence:        Range{Min: 0, Max: 2},
		ZonificationReach: 0.75,
		PrivacyReach:      0.5,
		RayStride:         5,
		RayReach:          1.5,
		Slots:             DefaultSlotOrder(),
		Checklist:         DefaultChecklist(),
		AdjacencyPairs: []AdjacencyPair{
			{layout.Food, layout.Social},
			{layout.Airlock, layout.Maintenance},
			{layout.Science, layout.Airlock},
			{layout.Private, layout.Science},
			{layout.Private, layout.Medical},
			{layout.Private, layout.Food},
		},
		NoisyTypes:    []layout.ModuleType{layout.Social, layout.Exercise},
		Workstations:  []layout.ModuleType{layout.Food, layout.Maintenance, layout.Science, layout.Medical},
		FreeTilesGoal: 8,
		Materials: MaterialTable{
			Scores: map[string]float64{
				"isru-derived":  1.0,
				"isru-derivado": 1.0,
				"composite":     0.6,
				"compuesto":     0.6,
				"aluminum":      0.2,
				"aluminium":     0.2,
				"aluminio":      0.2,
			},
			Default: 0.1,
		},
		Frequencies: map[layout.ModuleType]float64{
			layout.Private:         10,
			layout.Food:            9,
			layout.Social:          8,
			layout.Hygiene:         8,
			layout.Waste:           7,
			layout.Exercise:        7,
			layout.Medical:         5,
			layout.Maintenance:     4,
			layout.Science:         6,
			layout.Logistics:       3,
			layout.Airlock:         5,
			layout.MissionPlanning: 7,
		},
		DefaultFrequency: 1,
		Weights:          DefaultWeights(),
	}
}

// WeightedParams returns the profile whose vector variant also scores mass
// against the weighted domain.
func WeightedParams() Params {
	p := DefaultParams()
	p.Mass = p.WeightedMass
	return p
}

// Clone returns a deep copy.
func (p Params) Clone() Params {
	c := p
	c.Checklist = make([]ChecklistEntry, len(p.Checklist))
	for i, e := range p.Checklist {
		c.Checklist[i] = ChecklistEntry{Missing: slices.Clone(e.Missing), Score: e.Score}
	}
	c.AdjacencyPairs = slices.Clone(p.AdjacencyPairs)
	c.NoisyTypes = slices.Clone(p.NoisyTypes)
	c.Workstations = slices.Clone(p.Workstations)
	c.Materials.Scores = maps.Clone(p.Materials.Scores)
	c.Frequencies = maps.Clone(p.Frequencies)
	c.Weights = p.Weights.normalized()
	return c
}

// Validate checks that the parameters describe a usable engine.
func (p Params) Validate() error {
	if p.Grid.Width <= 0 || p.Grid.Height <= 0 {
		return fmt.Errorf("grid must be positive, got %dx%d", p.Grid.Width, p.Grid.Height)
	}
	for name, r := range map[string]Range{
		"mass": p.Mass, "weighted_mass": p.WeightedMass, "log_volume": p.LogVolume, "per_crew": p.PerCrew,
		"radiation": p.Radiation, "permanence": p.Permanence,
	} {
		if r.Min > r.Max {
			return fmt.Errorf("%s range min %g exceeds max %g", name, r.Min, r.Max)
		}
	}
	if p.ZonificationReach <= 0 || p.PrivacyReach <= 0 {
		return fmt.Errorf("distance reach factors must be positive")
	}
	if p.RayStride < 1 {
		return fmt.Errorf("ray stride must be >= 1, got %d", p.RayStride)
	}
	if p.RayReach <= 0 {
		return fmt.Errorf("ray reach must be positive, got %g", p.RayReach)
	}
	if p.FreeTilesGoal < 1 {
		return fmt.Errorf("free tiles goal must be >= 1, got %d", p.FreeTilesGoal)
	}
	if err := p.Slots.Validate(); err != nil {
		return err
	}
	for i, e := range p.Checklist {
		if e.Score < 0 || e.Score > 1 {
			return fmt.Errorf("checklist entry %d score %g outside [0,1]", i, e.Score)
		}
	}
	for name, score := range p.Materials.Scores {
		if !(score >= 0 && score <= 1) {
			return fmt.Errorf("material %q score %g outside [0,1]", name, score)
		}
	}
	if !(p.Materials.Default >= 0 && p.Materials.Default <= 1) {
		return fmt.Errorf("default material score %g outside [0,1]", p.Materials.Default)
	}
	for t, f := range p.Frequencies {
		if f < 0 || math.IsNaN(f) || math.IsInf(f, 0) {
			return fmt.Errorf("frequency for %s must be finite and non-negative, got %g", t, f)
		}
	}
	if p.DefaultFrequency < 0 || math.IsNaN(p.DefaultFrequency) || math.IsInf(p.DefaultFrequency, 0) {
		return fmt.Errorf("default frequency must be finite and non-negative, got %g", p.DefaultFrequency)
	}
	return p.Weights.Validate()
}

// ParamsFromConfig starts from the configured profile and applies every override
// present in cfg.
func ParamsFromConfig(cfg config.ScoringConfig) (Params, error) {
	var p Params
	switch cfg.Profile {
	case "", ProfileDefault:
		p = DefaultParams()
	case ProfileWeighted:
		p = WeightedParams()
	default:
		return Params{}, fmt.Errorf("unknown scoring profile %q", cfg.Profile)
	}

	if cfg.Grid.Width > 0 {
		p.Grid.Width = cfg.Grid.Width
	}
	if cfg.Grid.Height > 0 {
		p.Grid.Height = cfg.Grid.Height
	}
	if cfg.RayStride > 0 {
		p.RayStride = cfg.RayStride
	}
	if cfg.RayReach > 0 {
		p.RayReach = cfg.RayReach
	}
	if cfg.ZonificationReach > 0 {
		p.ZonificationReach = cfg.ZonificationReach
	}
	if cfg.PrivacyReach > 0 {
		p.PrivacyReach = cfg.PrivacyReach
	}
	if cfg.FreeTilesGoal > 0 {
		p.FreeTilesGoal = cfg.FreeTilesGoal
	}

	// Under the weighted profile both variants share one mass domain, so a
	// mass override moves both unless weighted_mass says otherwise.
	applyRange(&p.Mass, cfg.Bounds.Mass)
	if cfg.Profile == ProfileWeighted {
		p.WeightedMass = p.Mass
	}
	applyRange(&p.WeightedMass, cfg.Bounds.WeightedMass)
	applyRange(&p.LogVolume, cfg.Bounds.LogVolume)
	applyRange(&p.PerCrew, cfg.Bounds.PerCrew)
	applyRange(&p.Radiation, cfg.Bounds.Radiation)
	applyRange(&p.Permanence, cfg.Bounds.Permanence)

	if len(cfg.Weights) > 0 {
		p.Weights = WeightSet(maps.Clone(cfg.Weights)).normalized()
	}
	if len(cfg.Materials) > 0 {
		p.Materials.Scores = make(map[string]float64, len(cfg.Materials))
		for name, score := range cfg.Materials {
			p.Materials.Scores[strings.ToLower(strings.TrimSpace(name))] = score
		}
	}
	if cfg.DefaultMaterialScore != nil {
		p.Materials.Default = *cfg.DefaultMaterialScore
	}
	for name, f := range cfg.Frequencies {
		t, ok := layout.ParseModuleType(name)
		if !ok {
			return Params{}, fmt.Errorf("frequency override: unknown module type %q", name)
		}
		p.Frequencies[t] = f
	}
	if cfg.DefaultFrequency != nil {
		p.DefaultFrequency = *cfg.DefaultFrequency
	}
	if len(cfg.Checklist) > 0 {
		entries := make([]ChecklistEntry, 0, len(cfg.Checklist))
		for i, ce := range cfg.Checklist {
			e := ChecklistEntry{Score: ce.Score}
			for _, name := range ce.Missing {
				t, ok := layout.ParseModuleType(name)
				if !ok {
					return Params{}, fmt.Errorf("checklist entry %d: unknown module type %q", i, name)
				}
				e.Missing = append(e.Missing, t)
			}
			entries = append(entries, e)
		}
		p.Checklist = entries
	}
	if len(cfg.AdjacencyPairs) > 0 {
		pairs := make([]AdjacencyPair, 0, len(cfg.AdjacencyPairs))
		for i, names := range cfg.AdjacencyPairs {
			a, ok := layout.ParseModuleType(names[0])
			if !ok {
				return Params{}, fmt.Errorf("adjacency pair %d: unknown module type %q", i, names[0])
			}
			b, ok := layout.ParseModuleType(names[1])
			if !ok {
				return Params{}, fmt.Errorf("adjacency pair %d: unknown module type %q", i, names[1])
			}
			pairs = append(pairs, AdjacencyPair{A: a, B: b})
		}
		p.AdjacencyPairs = pairs
	}
	if len(cfg.NoisyTypes) > 0 {
		types, err := parseModuleTypes("noisy types", cfg.NoisyTypes)
		if err != nil {
			return Params{}, err
		}
		p.NoisyTypes = types
	}
	if len(cfg.Workstations) > 0 {
		types, err := parseModuleTypes("workstations", cfg.Workstations)
		if err != nil {
			return Params{}, err
		}
		p.Workstations = types
	}
	if len(cfg.SlotOrder) > 0 {
		if len(cfg.SlotOrder) != SlotCount {
			return Params{}, fmt.Errorf("slot order: expected %d module types, got %d", SlotCount, len(cfg.SlotOrder))
		}
		types, err := parseModuleTypes("slot order", cfg.SlotOrder)
		if err != nil {
			return Params{}, err
		}
		var slots SlotOrder
		copy(slots[:], types)
		p.Slots = slots
	}

	if err := p.Validate(); err != nil {
		return Params{}, fmt.Errorf("scoring params: %w", err)
	}
	return p, nil
}

func parseModuleTypes(field string, names []string) ([]layout.ModuleType, error) {
	types := make([]layout.ModuleType, 0, len(names))
	for _, name := range names {
		t, ok := layout.ParseModuleType(name)
		if !ok {
			return nil, fmt.Errorf("%s: unknown module type %q", field, name)
		}
		types = append(types, t)
	}
	return types, nil
}

func applyRange(dst *Range, src *config.RangeConfig) {
	if src == nil {
		return
	}
	dst.Min, dst.Max = src.Min, src.Max
}
