package workflow

import (
	"math"

	"p9e.in/siteqa/models"
)

// Terminal inspection results - the only values that count toward completion.
const (
	ResultPass = "pass"
	ResultFail = "fail"
	ResultNA   = "na"
)

// Inspection statuses for an ITP instance. Draft, in_progress and completed
// derive from the completion percentage; approved and rejected are
// administrative sign-offs outside the calculator's authority.
const (
	InspectionDraft      = "draft"
	InspectionInProgress = "in_progress"
	InspectionCompleted  = "completed"
	InspectionApproved   = "approved"
	InspectionRejected   = "rejected"
)

// Completion is the tally over an instance's recorded data.
type Completion struct {
	CompletionPercentage int `json:"completion_percentage"`
	CountedItems         int `json:"counted_items"`
	TotalItems           int `json:"total_items"`
}

// TerminalResult reports whether r is one of the accepted inspection outcomes.
func TerminalResult(r string) bool {
	return r == ResultPass || r == ResultFail || r == ResultNA
}

// CalculateCompletion walks every section and item present in data. An item
// counts toward the total merely by being present; it counts as done only
// when it carries a terminal result. Items are added lazily as inspectors
// touch them, so a partially-started inspection reads as barely-started
// rather than mostly-failed.
func CalculateCompletion(data models.ITPData) Completion {
	var total, counted int

	for _, items := range data {
		for _, item := range items {
			total++
			if TerminalResult(item.Result) {
				counted++
			}
		}
	}

	if total == 0 {
		return Completion{}
	}

	pct := int(math.Round(100 * float64(counted) / float64(total)))
	return Completion{
		CompletionPercentage: pct,
		CountedItems:         counted,
		TotalItems:           total,
	}
}

// DetermineStatus derives the inspection status from a completion
// percentage. Callers apply it only when no explicit status was supplied in
// the same update - an explicit status (including approved/rejected) always
// wins.
func DetermineStatus(completionPercentage int) string {
	switch {
	case completionPercentage <= 0:
		return InspectionDraft
	case completionPercentage >= 100:
		return InspectionCompleted
	default:
		return InspectionInProgress
	}
}

// ValidInspectionStatus reports whether s is a known inspection status.
func ValidInspectionStatus(s string) bool {
	switch s {
	case InspectionDraft, InspectionInProgress, InspectionCompleted,
		InspectionApproved, InspectionRejected:
		return true
	}
	return false
}

// AdministrativeInspectionStatus reports whether s is a terminal sign-off
// value that must never be silently recomputed away.
func AdministrativeInspectionStatus(s string) bool {
	return s == InspectionApproved || s == InspectionRejected
}
