package hermes

import "strings"

const (
	SubjectLayoutRequest = "habitat.layout.request"
	SubjectLabelerStats  = "habitat.labeler.stats"

	StreamName   = "HABITAT_EVENTS"
	StreamMaxAge = "720h" // 30 days

	QueueGroup = "habitat-labelers"
)

// Habitat ids are free text; NATS tokens cannot contain separators or wildcards.
var tokenReplacer = strings.NewReplacer(
	".", "_", " ", "_", "*", "_", ">", "_",
	"\t", "_", "\r", "_", "\n", "_",
)

func token(id string) string {
	if id == "" {
		return "_"
	}
	return tokenReplacer.Replace(id)
}

func SubjectLayoutScored(habitatID string) string   { return "habitat.layout." + token(habitatID) + ".scored" }
func SubjectLayoutVetoed(habitatID string) string   { return "habitat.layout." + token(habitatID) + ".vetoed" }
func SubjectLayoutRejected(habitatID string) string { return "habitat.layout." + token(habitatID) + ".rejected" }
func SubjectLayoutRated(habitatID string) string    { return "habitat.layout." + token(habitatID) + ".rated" }
