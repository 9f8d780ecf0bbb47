package scoring

import (
	"fmt"
	"strings"
)

// WeightSet maps a weight key to its relative importance in the aggregate. A key
// is a score name with the "score" prefix stripped, lower-cased, underscores
// removed: "scoreRadiationProtection" → "radiationprotection".
type WeightSet map[string]float64

// DefaultWeights returns the weighted-variant weight table.
func DefaultWeights() WeightSet {
	return WeightSet{
		"checklist":           3.0,
		"mass":                1.5,
		"volume":              1.2,
		"radiationprotection": 2.0,
		"zonification":        2.5,
		"adjacency":           1.0,
		"privacy":             1.5,
		"sustainability":      0.8,
	}
}

// Sum returns the total of all weights.
func (w WeightSet) Sum() float64 {
	var s float64
	for _, v := range w {
		s += v
	}
	return s
}

// Validate rejects negative weights and a non-empty set that sums to zero.
// Weights need not sum to 1; the aggregate is divided by the sum of the
// weights that matched.
func (w WeightSet) Validate() error {
	for k, v := range w {
		if v < 0 {
			return fmt.Errorf("negative weight for %q: %f", k, v)
		}
	}
	if len(w) > 0 && w.Sum() == 0 {
		return fmt.Errorf("weights sum to zero")
	}
	return nil
}

func (w WeightSet) normalized() WeightSet {
	out := make(WeightSet, len(w))
	for k, v := range w {
		out[weightKey(k)] = v
	}
	return out
}

func weightKey(name string) string {
	k := strings.TrimPrefix(name, "score")
	k = strings.ReplaceAll(k, "_", "")
	return strings.ToLower(k)
}

// Aggregate reduces factors to one number: Σ score·weight / Σ weight over the
// factors that have a weight. It fills Weight and Weighted on those factors.
// With no matching weight the aggregate is 0.
func (w WeightSet) Aggregate(factors []FactorResult) float64 {
	var total, weightSum float64
	for i := range factors {
		weight, ok := w[weightKey(factors[i].Name)]
		if !ok {
			continue
		}
		factors[i].Weight = weight
		factors[i].Weighted = factors[i].Score * weight
		total += factors[i].Weighted
		weightSum += weight
	}
	if weightSum == 0 {
		return 0
	}
	return total / weightSum
}
