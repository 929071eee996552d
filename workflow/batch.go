package workflow

import (
	"fmt"
	"strings"
	"time"

	"p9e.in/siteqa/models"
)

// ItemUpdate is one requested change to a checklist item. ItemID is the
// composite "<sectionID>.<itemID>" identifier used on the wire.
type ItemUpdate struct {
	ItemID string `json:"itemId"`
	Status string `json:"status"`
	Notes  string `json:"notes,omitempty"`
}

// SplitItemID decomposes a composite item identifier into its section and
// item parts.
func SplitItemID(itemID string) (sectionID, id string, err error) {
	parts := strings.SplitN(itemID, ".", 2)
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return "", "", fmt.Errorf("invalid item id %q: expected \"<sectionId>.<itemId>\"", itemID)
	}
	return parts[0], parts[1], nil
}

// ValidateItemUpdates checks a batch's item updates at the boundary so the
// merge and the calculator can assume well-formed input. Violations are
// collected eagerly.
func ValidateItemUpdates(updates []ItemUpdate) error {
	var problems []string
	for _, u := range updates {
		if _, _, err := SplitItemID(u.ItemID); err != nil {
			problems = append(problems, err.Error())
			continue
		}
		if u.Status != "" && !TerminalResult(u.Status) {
			problems = append(problems, fmt.Sprintf("item %s: invalid result %q", u.ItemID, u.Status))
		}
	}
	if len(problems) > 0 {
		return fmt.Errorf("invalid item updates: %s", strings.Join(problems, "; "))
	}
	return nil
}

// ApplyItemUpdates merges updates into data in the order supplied, creating
// section and item paths as needed. Re-applying the same update is
// idempotent: last write wins per (sectionID, itemID), so retried batches
// are safe to resend in full. The input map is not mutated.
func ApplyItemUpdates(data models.ITPData, updates []ItemUpdate, recordedBy string, now time.Time) (models.ITPData, error) {
	merged := make(models.ITPData, len(data))
	for sectionID, items := range data {
		section := make(map[string]models.ItemRecord, len(items))
		for itemID, item := range items {
			section[itemID] = item
		}
		merged[sectionID] = section
	}

	for _, u := range updates {
		sectionID, itemID, err := SplitItemID(u.ItemID)
		if err != nil {
			return nil, err
		}

		section, ok := merged[sectionID]
		if !ok {
			section = make(map[string]models.ItemRecord)
			merged[sectionID] = section
		}

		record := section[itemID]
		record.Result = u.Status
		record.Notes = u.Notes
		record.RecordedBy = recordedBy
		record.RecordedAt = now
		section[itemID] = record
	}

	return merged, nil
}
