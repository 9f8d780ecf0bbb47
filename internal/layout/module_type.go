package layout

import "strings"

// ModuleType is a functional module category.
type ModuleType int

const (
	Unknown ModuleType = iota
	Private
	Hygiene
	Waste
	Exercise
	Food
	Maintenance
	Science
	Medical
	Social
	Logistics
	Airlock
	MissionPlanning
)

var moduleTypeNames = map[ModuleType]string{
	Unknown:         "UNKNOWN",
	Private:         "PRIVATE",
	Hygiene:         "HYGIENE",
	Waste:           "WASTE",
	Exercise:        "EXERCISE",
	Food:            "FOOD",
	Maintenance:     "MAINTENANCE",
	Science:         "SCIENCE",
	Medical:         "MEDICAL",
	Social:          "SOCIAL",
	Logistics:       "LOGISTICS",
	Airlock:         "AIRLOCK",
	MissionPlanning: "MISSION_PLANNING",
}

// Older labeling datasets used long-form category names.
var moduleTypeAliases = map[string]ModuleType{
	"PRIVATE_HABITATION": Private,
	"WASTE_MANAGEMENT":   Waste,
	"SOCIAL/RECREATION":  Social,
	"LABORATORY":         Science,
}

// AllModuleTypes returns the known categories in declaration order.
func AllModuleTypes() []ModuleType {
	return []ModuleType{
		Private, Hygiene, Waste, Exercise, Food, Maintenance,
		Science, Medical, Social, Logistics, Airlock, MissionPlanning,
	}
}

func (t ModuleType) String() string {
	if name, ok := moduleTypeNames[t]; ok {
		return name
	}
	return moduleTypeNames[Unknown]
}

// Known reports whether t is one of the fixed categories.
func (t ModuleType) Known() bool {
	return t > Unknown && t <= MissionPlanning
}

// ParseModuleType maps a category name to its ModuleType. Matching ignores case and
// treats spaces and hyphens as underscores, so "mission planning" parses. Unrecognized
// names return Unknown and false.
func ParseModuleType(s string) (ModuleType, bool) {
	key := strings.ToUpper(strings.TrimSpace(s))
	key = strings.NewReplacer(" ", "_", "-", "_").Replace(key)
	for t, name := range moduleTypeNames {
		if t != Unknown && name == key {
			return t, true
		}
	}
	if t, ok := moduleTypeAliases[key]; ok {
		return t, true
	}
	return Unknown, false
}

// MarshalText encodes the canonical name.
func (t ModuleType) MarshalText() ([]byte, error) {
	return []byte(t.String()), nil
}

// UnmarshalText accepts any spelling ParseModuleType accepts; unknown names decode to Unknown.
func (t *ModuleType) UnmarshalText(b []byte) error {
	*t, _ = ParseModuleType(string(b))
	return nil
}
