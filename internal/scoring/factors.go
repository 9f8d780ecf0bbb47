package scoring

import (
	"slices"
	"strconv"
)

// Score names, in the column order of a dataset row.
const (
	ScoreChecklist           = "scoreChecklist"
	ScoreMass                = "scoreMass"
	ScoreVolume              = "scoreVolume"
	ScoreVolumePerCrew       = "scoreVolumePerCrew"
	ScoreZonification        = "scoreZonification"
	ScoreAdjacency           = "scoreAdjacency"
	ScorePrivacy             = "scorePrivacy"
	ScoreSustainability      = "scoreSustainability"
	ScoreRadiationProtection = "scoreRadiationProtection"
	ScoreAutonomy            = "scoreAutonomy"
	ScoreSpaciousness        = "scoreSpaciousness"
	ScoreWorkspace           = "scoreWorkspace"
	ScoreErgonomics          = "scoreErgonomics"
)

var scoreNames = []string{
	ScoreChecklist,
	ScoreMass,
	ScoreVolume,
	ScoreVolumePerCrew,
	ScoreZonification,
	ScoreAdjacency,
	ScorePrivacy,
	ScoreSustainability,
	ScoreRadiationProtection,
	ScoreAutonomy,
	ScoreSpaciousness,
	ScoreWorkspace,
	ScoreErgonomics,
}

// ScoreNames returns every sub-score name in row order.
func ScoreNames() []string { return slices.Clone(scoreNames) }

// FactorResult captures one sub-score and, in the weighted variant, its contribution.
type FactorResult struct {
	Name     string  `json:"name"`
	Score    float64 `json:"score"`
	Weight   float64 `json:"weight,omitempty"`
	Weighted float64 `json:"weighted,omitempty"`
	Reason   string  `json:"reason,omitempty"`
}

// ScoreVector is the evaluation of one layout. It is built fresh per call and the
// engine never touches it again; helper methods return copies.
type ScoreVector struct {
	HabitatID    string         `json:"habitat_id"`
	Vetoed       bool           `json:"vetoed"`
	Factors      []FactorResult `json:"factors"`
	Aggregate    *float64       `json:"aggregate,omitempty"`
	ExpertRating *float64       `json:"expert_rating,omitempty"`
}

// Get returns the named sub-score.
func (v ScoreVector) Get(name string) (float64, bool) {
	for _, f := range v.Factors {
		if f.Name == name {
			return f.Score, true
		}
	}
	return 0, false
}

// Record flattens the vector into name → score.
func (v ScoreVector) Record() map[string]float64 {
	out := make(map[string]float64, len(v.Factors))
	for _, f := range v.Factors {
		out[f.Name] = f.Score
	}
	return out
}

// Clone returns a deep copy.
func (v ScoreVector) Clone() ScoreVector {
	c := v
	c.Factors = slices.Clone(v.Factors)
	if v.Aggregate != nil {
		a := *v.Aggregate
		c.Aggregate = &a
	}
	if v.ExpertRating != nil {
		r := *v.ExpertRating
		c.ExpertRating = &r
	}
	return c
}

// WithExpertRating returns a copy carrying an externally supplied label in [0, 1].
func (v ScoreVector) WithExpertRating(rating float64) ScoreVector {
	c := v.Clone()
	c.ExpertRating = &rating
	return c
}

// zeroVector is the output for a vetoed layout: every score present and zero.
func zeroVector(habitatID string, gate FactorResult) ScoreVector {
	factors := make([]FactorResult, 0, len(scoreNames))
	factors = append(factors, gate)
	for _, name := range scoreNames[1:] {
		factors = append(factors, FactorResult{Name: name, Score: 0, Reason: "vetoed by checklist"})
	}
	return ScoreVector{HabitatID: habitatID, Vetoed: true, Factors: factors}
}

// Columns is the dataset header: habitat id, every score name, the aggregate and
// the expert rating.
func Columns() []string {
	cols := make([]string, 0, len(scoreNames)+3)
	cols = append(cols, "habitatId")
	cols = append(cols, scoreNames...)
	return append(cols, "aggregate", "expertRating")
}

// Row renders v in Columns order. Absent optional values are empty strings.
func (v ScoreVector) Row() []string {
	row := make([]string, 0, len(scoreNames)+3)
	row = append(row, v.HabitatID)
	for _, name := range scoreNames {
		score, _ := v.Get(name)
		row = append(row, formatScore(score))
	}
	row = append(row, optionalScore(v.Aggregate), optionalScore(v.ExpertRating))
	return row
}

func formatScore(f float64) string { return strconv.FormatFloat(f, 'f', -1, 64) }

func optionalScore(f *float64) string {
	if f == nil {
		return ""
	}
	return formatScore(*f)
}
