package hermes

import (
	"encoding/json"
	"time"
)

// LayoutRequestEvent is the payload on habitat.layout.request: one scoring
// document plus the variant to run.
type LayoutRequestEvent struct {
	Document json.RawMessage `json:"document"`
	Weighted bool            `json:"weighted,omitempty"`
	Source   string          `json:"source,omitempty"`
}

type LayoutScoredEvent struct {
	HabitatID string             `json:"habitat_id"`
	RecordID  string             `json:"record_id,omitempty"`
	Vetoed    bool               `json:"vetoed"`
	Reason    string             `json:"reason,omitempty"`
	Scores    map[string]float64 `json:"scores"`
	Aggregate *float64           `json:"aggregate,omitempty"`
}

type LayoutRejectedEvent struct {
	HabitatID string `json:"habitat_id,omitempty"`
	Error     string `json:"error"`
}

type LayoutRatedEvent struct {
	HabitatID    string  `json:"habitat_id"`
	RecordID     string  `json:"record_id"`
	ExpertRating float64 `json:"expert_rating"`
}

type StatsEvent struct {
	Scored    int       `json:"scored"`
	Vetoed    int       `json:"vetoed"`
	Rejected  int       `json:"rejected"`
	AvgMs     float64   `json:"avg_score_ms"`
	Timestamp time.Time `json:"timestamp"`
}
