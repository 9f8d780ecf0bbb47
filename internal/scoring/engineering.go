package scoring

import (
	"fmt"
	"math"

	"github.com/MikeSquared-Agency/Habitat/internal/layout"
)

// EngineeringFactors returns the mass, volume and volume-per-crew scores.
// Each occupied tile consumes one unit of habitable area; this is a footprint
// proxy, not geometric volume.
func EngineeringFactors(cells []layout.Cell, crewSize int, p Params) []FactorResult {
	if len(cells) == 0 {
		return []FactorResult{
			{Name: ScoreMass, Score: 0, Reason: "no cells"},
			{Name: ScoreVolume, Score: 0, Reason: "no cells"},
			{Name: ScoreVolumePerCrew, Score: 0, Reason: "no cells"},
		}
	}

	var totalMass float64
	for _, c := range cells {
		totalMass += c.Props.Mass
	}
	// Less mass is better.
	mass := math.Max(0, 1-normalizeIn(totalMass, p.Mass))

	habitable := float64(p.Grid.Area() - len(cells))
	volume := normalizeIn(math.Log10(1+math.Max(0, habitable)), p.LogVolume)

	var perCrew float64
	if crewSize > 0 {
		perCrew = habitable / float64(crewSize)
	}
	perCrewScore := normalizeIn(perCrew, p.PerCrew)

	return []FactorResult{
		{Name: ScoreMass, Score: mass, Reason: fmt.Sprintf("total mass %.0f", totalMass)},
		{Name: ScoreVolume, Score: volume, Reason: fmt.Sprintf("habitable area %.0f", habitable)},
		{Name: ScoreVolumePerCrew, Score: perCrewScore, Reason: fmt.Sprintf("%.1f per crew member", perCrew)},
	}
}
