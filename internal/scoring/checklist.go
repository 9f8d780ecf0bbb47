package scoring

import (
	"fmt"
	"slices"
	"strings"

	mapset "github.com/deckarep/golang-set/v2"

	"github.com/MikeSquared-Agency/Habitat/internal/layout"
)

// SlotCount is the length of the checklist presence vector.
const SlotCount = 12

// SlotOrder assigns each module category to one position of the presence vector.
type SlotOrder [SlotCount]layout.ModuleType

// DefaultSlotOrder is the column order of the reference checklist table.
func DefaultSlotOrder() SlotOrder {
	return SlotOrder{
		layout.Exercise,
		layout.Social,
		layout.Food,
		layout.Hygiene,
		layout.Medical,
		layout.Private,
		layout.Maintenance,
		layout.MissionPlanning,
		layout.Waste,
		layout.Logistics,
		layout.Science,
		layout.Airlock,
	}
}

// Validate checks that every known category occupies exactly one slot.
func (s SlotOrder) Validate() error {
	seen := mapset.NewThreadUnsafeSetWithSize[layout.ModuleType](SlotCount)
	for i, t := range s {
		if !t.Known() {
			return fmt.Errorf("checklist slot %d holds unknown module type", i)
		}
		if !seen.Add(t) {
			return fmt.Errorf("module type %s assigned to more than one checklist slot", t)
		}
	}
	for _, t := range layout.AllModuleTypes() {
		if !seen.Contains(t) {
			return fmt.Errorf("module type %s has no checklist slot", t)
		}
	}
	return nil
}

// Presence is the checklist key: one flag per slot.
type Presence [SlotCount]bool

func (p Presence) String() string {
	var b strings.Builder
	for _, present := range p {
		if present {
			b.WriteByte('1')
		} else {
			b.WriteByte('0')
		}
	}
	return b.String()
}

// ChecklistEntry whitelists the combination in which exactly the Missing
// categories are absent.
type ChecklistEntry struct {
	Missing []layout.ModuleType
	Score   float64
}

// DefaultChecklist is the hand-authored feasibility table.
func DefaultChecklist() []ChecklistEntry {
	return []ChecklistEntry{
		{Missing: nil, Score: 1.0},
		{Missing: []layout.ModuleType{layout.Exercise}, Score: 0.90},
		{Missing: []layout.ModuleType{layout.Exercise, layout.Social}, Score: 0.75},
		{Missing: []layout.ModuleType{layout.Social}, Score: 0.85},
		{Missing: []layout.ModuleType{layout.Science}, Score: 0.70},
		{Missing: []layout.ModuleType{layout.Private}, Score: 0.55},
		{Missing: []layout.ModuleType{layout.Maintenance}, Score: 0.55},
		{Missing: []layout.ModuleType{layout.Logistics}, Score: 0.90},
		{Missing: []layout.ModuleType{layout.Medical}, Score: 0.90},
		{Missing: []layout.ModuleType{layout.Hygiene}, Score: 0.60},
	}
}

// ChecklistGate scores the set of present categories against a whitelist.
// Any combination absent from the table scores 0.
type ChecklistGate struct {
	slots SlotOrder
	table map[Presence]float64
}

// NewChecklistGate compiles entries into a lookup keyed by presence vector.
func NewChecklistGate(slots SlotOrder, entries []ChecklistEntry) (*ChecklistGate, error) {
	if err := slots.Validate(); err != nil {
		return nil, err
	}
	g := &ChecklistGate{slots: slots, table: make(map[Presence]float64, len(entries))}
	for i, e := range entries {
		key := Presence{}
		for s := range key {
			key[s] = true
		}
		for _, t := range e.Missing {
			idx := slices.Index(slots[:], t)
			if idx < 0 {
				return nil, fmt.Errorf("checklist entry %d: module type %s has no slot", i, t)
			}
			key[idx] = false
		}
		if _, dup := g.table[key]; dup {
			return nil, fmt.Errorf("checklist entry %d duplicates combination %s", i, key)
		}
		g.table[key] = e.Score
	}
	return g, nil
}

// Presence builds the presence vector for cells. Count and position are ignored.
func (g *ChecklistGate) Presence(cells []layout.Cell) Presence {
	types := mapset.NewThreadUnsafeSet[layout.ModuleType]()
	for _, c := range cells {
		types.Add(c.Type)
	}
	var p Presence
	for i, t := range g.slots {
		p[i] = types.Contains(t)
	}
	return p
}

// Score returns 0 when there are fewer PRIVATE cells than crew members or when the
// presence combination is not whitelisted; otherwise the table value.
func (g *ChecklistGate) Score(cells []layout.Cell, crewSize int) FactorResult {
	private := layout.CountType(cells, layout.Private)
	if private < crewSize {
		return FactorResult{
			Name:   ScoreChecklist,
			Score:  0,
			Reason: fmt.Sprintf("private quarters %d < crew %d", private, crewSize),
		}
	}

	key := g.Presence(cells)
	score, ok := g.table[key]
	if !ok {
		return FactorResult{Name: ScoreChecklist, Score: 0, Reason: "presence combination " + key.String() + " not in checklist"}
	}
	return FactorResult{Name: ScoreChecklist, Score: score, Reason: "presence " + key.String()}
}
