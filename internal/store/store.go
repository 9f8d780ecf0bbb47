package store

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/MikeSquared-Agency/Habitat/internal/layout"
	"github.com/MikeSquared-Agency/Habitat/internal/scoring"
)

// Scoring variants recorded on each row.
const (
	VariantVector   = "vector"
	VariantWeighted = "weighted"
)

// ScoreRecord is one labeled dataset row: the evaluated layout, the mission it
// was scored against and the resulting scores.
type ScoreRecord struct {
	ID        uuid.UUID `json:"record_id"`
	HabitatID string    `json:"habitat_id"`
	Variant   string    `json:"variant"`

	// Mission context
	CrewSize            int     `json:"crew_size"`
	StructuralMaterial  string  `json:"structural_material"`
	RadiationResistance float64 `json:"radiation_resistance"`

	// Result
	Scores       map[string]float64 `json:"scores"`
	Aggregate    *float64           `json:"aggregate,omitempty"`
	Vetoed       bool               `json:"vetoed"`
	VetoReason   string             `json:"veto_reason,omitempty"`
	ExpertRating *float64           `json:"expert_rating,omitempty"`

	// Document is the scored layout in wire form, kept so rows can be re-scored.
	Document json.RawMessage `json:"document,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// NewScoreRecord captures v and the inputs that produced it.
func NewScoreRecord(doc *layout.Document, v scoring.ScoreVector) (*ScoreRecord, error) {
	raw, err := json.Marshal(doc)
	if err != nil {
		return nil, err
	}
	r := &ScoreRecord{
		HabitatID:           v.HabitatID,
		Variant:             VariantVector,
		CrewSize:            doc.Context.CrewSize,
		StructuralMaterial:  doc.Context.StructuralMaterial,
		RadiationResistance: doc.Context.RadiationResistance,
		Scores:              v.Record(),
		Vetoed:              v.Vetoed,
		Document:            raw,
	}
	if v.Aggregate != nil {
		r.Variant = VariantWeighted
		a := *v.Aggregate
		r.Aggregate = &a
	}
	if v.Vetoed {
		for _, f := range v.Factors {
			if f.Name == scoring.ScoreChecklist {
				r.VetoReason = f.Reason
			}
		}
	}
	if v.ExpertRating != nil {
		er := *v.ExpertRating
		r.ExpertRating = &er
	}
	return r, nil
}

// Vector rebuilds the score vector in column order. Reasons are not persisted.
func (r *ScoreRecord) Vector() scoring.ScoreVector {
	v := scoring.ScoreVector{HabitatID: r.HabitatID, Vetoed: r.Vetoed}
	for _, name := range scoring.ScoreNames() {
		v.Factors = append(v.Factors, scoring.FactorResult{Name: name, Score: r.Scores[name]})
	}
	if r.Aggregate != nil {
		a := *r.Aggregate
		v.Aggregate = &a
	}
	if r.ExpertRating != nil {
		v = v.WithExpertRating(*r.ExpertRating)
	}
	return v
}

type ScoreFilter struct {
	HabitatID string
	Vetoed    *bool
	Rated     *bool
	Variant   string
	Limit     int
	Offset    int
}

type ScoreStats struct {
	Total        int     `json:"total"`
	Vetoed       int     `json:"vetoed"`
	Rated        int     `json:"rated"`
	AvgAggregate float64 `json:"avg_aggregate"`
}

type Store interface {
	SaveScore(ctx context.Context, r *ScoreRecord) error
	// SaveScores stores every record or none of them.
	SaveScores(ctx context.Context, records []*ScoreRecord) error
	GetScore(ctx context.Context, id uuid.UUID) (*ScoreRecord, error)
	ListScores(ctx context.Context, filter ScoreFilter) ([]*ScoreRecord, error)
	// SetExpertRating stores rating (0..1) and returns the updated row, or nil
	// when id is unknown.
	SetExpertRating(ctx context.Context, id uuid.UUID, rating float64) (*ScoreRecord, error)
	GetStats(ctx context.Context) (*ScoreStats, error)
	Close() error
}
