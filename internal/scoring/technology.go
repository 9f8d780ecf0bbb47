package scoring

import (
	"fmt"

	"github.com/MikeSquared-Agency/Habitat/internal/layout"
)

// SustainabilityFactor looks the mission's structural material up in the table.
func SustainabilityFactor(material string, table MaterialTable) FactorResult {
	score, ok := table.Lookup(material)
	reason := "material " + material
	if !ok {
		reason = "unlisted material " + material
	}
	return FactorResult{Name: ScoreSustainability, Score: score, Reason: reason}
}

func RadiationProtectionFactor(resistance float64, r Range) FactorResult {
	return FactorResult{
		Name:   ScoreRadiationProtection,
		Score:  normalizeIn(resistance, r),
		Reason: fmt.Sprintf("resistance %g", resistance),
	}
}

// AutonomyFactor rewards durable, low-maintenance modules via mean permanence.
func AutonomyFactor(cells []layout.Cell, r Range) FactorResult {
	if len(cells) == 0 {
		return FactorResult{Name: ScoreAutonomy, Score: 0, Reason: "no cells"}
	}
	var total int
	for _, c := range cells {
		total += c.Props.Permanence
	}
	mean := float64(total) / float64(len(cells))
	return FactorResult{Name: ScoreAutonomy, Score: normalizeIn(mean, r), Reason: fmt.Sprintf("mean permanence %.2f", mean)}
}
