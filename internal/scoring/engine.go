package scoring

import (
	"fmt"
	"log/slog"

	"github.com/MikeSquared-Agency/Habitat/internal/layout"
)

// Engine orchestrates the checklist gate and the sub-scorers for one layout.
// It holds only read-only configuration and is safe for concurrent use.
type Engine struct {
	params Params
	gate   *ChecklistGate
	logger *slog.Logger
}

// NewEngine validates params and compiles the checklist table. params is copied.
func NewEngine(params Params, logger *slog.Logger) (*Engine, error) {
	p := params.Clone()
	if err := p.Validate(); err != nil {
		return nil, fmt.Errorf("scoring params: %w", err)
	}
	gate, err := NewChecklistGate(p.Slots, p.Checklist)
	if err != nil {
		return nil, fmt.Errorf("checklist: %w", err)
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{params: p, gate: gate, logger: logger}, nil
}

// Params returns a copy of the active parameters.
func (e *Engine) Params() Params { return e.params.Clone() }

// Score evaluates l for mc. A checklist veto is a normal result (Vetoed set, all
// scores zero); only data-contract violations return an error.
func (e *Engine) Score(l *layout.Layout, mc layout.MissionContext) (ScoreVector, error) {
	return e.score(l, mc, e.params.Mass)
}

func (e *Engine) score(l *layout.Layout, mc layout.MissionContext, mass Range) (ScoreVector, error) {
	if l == nil {
		return ScoreVector{}, &layout.ValidationError{Problems: []string{"nil layout"}}
	}
	if err := mc.Validate(); err != nil {
		return ScoreVector{}, fmt.Errorf("score %s: %w", l.ID, err)
	}
	if err := l.Validate(e.params.Grid); err != nil {
		return ScoreVector{}, fmt.Errorf("score %s: %w", l.ID, err)
	}

	gate := e.gate.Score(l.Cells, mc.CrewSize)
	if gate.Score == 0 {
		e.logger.Debug("layout vetoed", "habitat_id", l.ID, "reason", gate.Reason)
		return zeroVector(l.ID, gate), nil
	}

	p := e.params
	p.Mass = mass
	occupied := l.Occupied()

	factors := make([]FactorResult, 0, len(scoreNames))
	factors = append(factors, gate)
	factors = append(factors, EngineeringFactors(l.Cells, mc.CrewSize, p)...)
	factors = append(factors,
		ZonificationFactor(l.Cells, p.Grid, p.ZonificationReach),
		AdjacencyFactor(l.Cells, p.AdjacencyPairs),
		PrivacyFactor(l.Cells, p.NoisyTypes, p.Grid, p.PrivacyReach),
		SustainabilityFactor(mc.StructuralMaterial, p.Materials),
		RadiationProtectionFactor(mc.RadiationResistance, p.Radiation),
		AutonomyFactor(l.Cells, p.Permanence),
		SpaciousnessFactor(occupied, p.Grid, p.RayStride, p.RayReach),
		WorkspaceFactor(l.Cells, occupied, p.Workstations, p.FreeTilesGoal),
		ErgonomicsFactor(l.Cells, p.Grid, p.Frequencies, p.DefaultFrequency),
	)

	e.logger.Debug("layout scored", "habitat_id", l.ID, "cells", len(l.Cells), "checklist", gate.Score)
	return ScoreVector{HabitatID: l.ID, Factors: factors}, nil
}

// ScoreWeighted is Score plus the weighted aggregate. A vetoed layout aggregates to 0.
// The checklist score enters the aggregate with its own weight, unnormalized.
// Mass is scored against Params.WeightedMass.
func (e *Engine) ScoreWeighted(l *layout.Layout, mc layout.MissionContext) (ScoreVector, error) {
	v, err := e.score(l, mc, e.params.WeightedMass)
	if err != nil {
		return ScoreVector{}, err
	}
	total := 0.0
	if !v.Vetoed {
		total = e.params.Weights.Aggregate(v.Factors)
	}
	v.Aggregate = &total
	return v, nil
}
