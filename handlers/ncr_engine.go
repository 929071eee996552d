package handlers

import (
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"p9e.in/siteqa/config"
	"p9e.in/siteqa/models"
	"p9e.in/siteqa/workflow"
)

// NCREngine orchestrates non-conformance report lifecycle changes. The
// decision itself is the state machine's; the engine loads records, persists
// allowed transitions and writes the immutable history entry in the same
// transaction.
type NCREngine struct {
	db *gorm.DB
}

// NewNCREngine creates a new NCR engine instance
func NewNCREngine() *NCREngine {
	return &NCREngine{
		db: config.DB,
	}
}

// CreateNCRInput carries the caller-supplied fields for a new report.
type CreateNCRInput struct {
	Title        string     `json:"title"`
	Detail       string     `json:"detail,omitempty"`
	LotID        *uuid.UUID `json:"lot_id,omitempty"`
	AssignedTo   string     `json:"assigned_to,omitempty"`
	ContractorID *uuid.UUID `json:"contractor_id,omitempty"`
}

// CreateNCR creates a report in the open status with the next sequential
// number for its project.
func (e *NCREngine) CreateNCR(orgID, projectID uuid.UUID, input CreateNCRInput, raisedBy string) (*models.NCR, error) {
	var project models.Project
	if err := e.db.Where("id = ? AND organization_id = ?", projectID, orgID).First(&project).Error; err != nil {
		return nil, fmt.Errorf("project not found: %w", err)
	}

	ncr := &models.NCR{
		OrganizationID: orgID,
		ProjectID:      projectID,
		LotID:          input.LotID,
		Title:          input.Title,
		Detail:         input.Detail,
		Status:         workflow.StatusOpen,
		RaisedBy:       raisedBy,
		AssignedTo:     input.AssignedTo,
		ContractorID:   input.ContractorID,
	}

	err := e.db.Transaction(func(tx *gorm.DB) error {
		var maxNumber int64
		if err := tx.Model(&models.NCR{}).
			Where("project_id = ?", projectID).
			Select("COALESCE(MAX(number), 0)").
			Scan(&maxNumber).Error; err != nil {
			return fmt.Errorf("failed to allocate NCR number: %w", err)
		}
		ncr.Number = int(maxNumber) + 1

		if err := tx.Create(ncr).Error; err != nil {
			return fmt.Errorf("failed to create NCR: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	log.Printf("✅ Created %s for project %s (raised by %s)", ncr.Reference(), projectID, raisedBy)
	return ncr, nil
}

// GetNCR fetches one report scoped to the caller's organization, with its
// transition history ordered oldest first.
func (e *NCREngine) GetNCR(orgID, ncrID uuid.UUID) (*models.NCR, error) {
	var ncr models.NCR
	if err := e.db.
		Preload("Contractor").
		Preload("Transitions", func(db *gorm.DB) *gorm.DB {
			return db.Order("transitioned_at ASC")
		}).
		Where("id = ? AND organization_id = ?", ncrID, orgID).
		First(&ncr).Error; err != nil {
		return nil, fmt.Errorf("NCR not found: %w", err)
	}
	return &ncr, nil
}

// ListNCRs fetches the organization's reports, optionally filtered.
func (e *NCREngine) ListNCRs(orgID uuid.UUID, filters map[string]interface{}) ([]models.NCR, error) {
	query := e.db.Where("organization_id = ?", orgID)

	if projectID, ok := filters["project_id"].(uuid.UUID); ok {
		query = query.Where("project_id = ?", projectID)
	}
	if status, ok := filters["status"].(string); ok && status != "" {
		query = query.Where("status = ?", status)
	}
	if assignedTo, ok := filters["assigned_to"].(string); ok && assignedTo != "" {
		query = query.Where("assigned_to = ?", assignedTo)
	}

	var ncrs []models.NCR
	if err := query.Order("created_at DESC").Find(&ncrs).Error; err != nil {
		return nil, fmt.Errorf("failed to fetch NCRs: %w", err)
	}
	return ncrs, nil
}

// Transition asks the state machine whether the move is allowed and, if so,
// persists the new status, any supplied payload fields and a history entry
// atomically. A denial comes back as a non-nil Decision with the record
// untouched.
func (e *NCREngine) Transition(
	orgID, ncrID uuid.UUID,
	target string,
	actor workflow.Actor,
	actorName string,
	payload workflow.TransitionPayload,
	note string,
) (*models.NCR, workflow.Decision, error) {
	var ncr models.NCR
	if err := e.db.Where("id = ? AND organization_id = ?", ncrID, orgID).First(&ncr).Error; err != nil {
		return nil, workflow.Decision{}, fmt.Errorf("NCR not found: %w", err)
	}

	record := workflow.Record{
		Status:     ncr.Status,
		AssignedTo: ncr.AssignedTo,
	}
	if ncr.ContractorID != nil {
		record.ContractorID = ncr.ContractorID.String()
	}

	decision := workflow.Decide(record, target, actor, payload)
	if !decision.Allowed {
		return &ncr, decision, nil
	}

	// Idempotent re-submission of the current status: nothing to persist.
	if target == ncr.Status {
		return &ncr, decision, nil
	}

	previous := ncr.Status
	ncr.Status = target
	applyTransitionPayload(&ncr, target, payload)

	err := e.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Save(&ncr).Error; err != nil {
			return fmt.Errorf("failed to update NCR: %w", err)
		}

		transition := models.NCRTransition{
			NCRID:          ncr.ID,
			FromStatus:     previous,
			ToStatus:       target,
			ActorID:        actor.UserID,
			ActorName:      actorName,
			ActorRole:      actor.Role,
			Note:           note,
			TransitionedAt: time.Now(),
		}
		if err := tx.Create(&transition).Error; err != nil {
			return fmt.Errorf("failed to create transition record: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, workflow.Decision{}, err
	}

	log.Printf("✅ Transitioned %s: %s -> %s (actor: %s)", ncr.Reference(), previous, target, actorName)
	return &ncr, decision, nil
}

// applyTransitionPayload copies the fields a transition is allowed to set.
// Other transitions never touch the resolution/dispute columns.
func applyTransitionPayload(ncr *models.NCR, target string, payload workflow.TransitionPayload) {
	switch target {
	case workflow.StatusResolved:
		ncr.RootCause = payload.RootCause
		ncr.CorrectiveAction = payload.CorrectiveAction
		if payload.PreventiveAction != "" {
			ncr.PreventiveAction = payload.PreventiveAction
		}
		if payload.ActualCost != nil {
			ncr.ActualCost = payload.ActualCost
		}
	case workflow.StatusDisputed:
		ncr.DisputeReason = payload.DisputeReason
		ncr.DisputeCategory = payload.DisputeCategory
	}
}

// Assign sets the responsible user on a report. Closed records stay
// immutable.
func (e *NCREngine) Assign(orgID, ncrID uuid.UUID, assignedTo string) (*models.NCR, error) {
	var ncr models.NCR
	if err := e.db.Where("id = ? AND organization_id = ?", ncrID, orgID).First(&ncr).Error; err != nil {
		return nil, fmt.Errorf("NCR not found: %w", err)
	}

	if ncr.Status == workflow.StatusClosed {
		return nil, fmt.Errorf("cannot reassign a closed NCR")
	}

	ncr.AssignedTo = assignedTo
	if err := e.db.Save(&ncr).Error; err != nil {
		return nil, fmt.Errorf("failed to assign NCR: %w", err)
	}

	log.Printf("✅ Assigned %s to %s", ncr.Reference(), assignedTo)
	return &ncr, nil
}

// GetHistory retrieves the complete transition history for a report.
func (e *NCREngine) GetHistory(orgID, ncrID uuid.UUID) ([]models.NCRTransition, error) {
	// Scope through the parent record so foreign NCR ids read as not found
	var ncr models.NCR
	if err := e.db.Select("id").Where("id = ? AND organization_id = ?", ncrID, orgID).First(&ncr).Error; err != nil {
		return nil, fmt.Errorf("NCR not found: %w", err)
	}

	var transitions []models.NCRTransition
	if err := e.db.
		Where("ncr_id = ?", ncrID).
		Order("transitioned_at ASC").
		Find(&transitions).Error; err != nil {
		return nil, fmt.Errorf("failed to fetch NCR history: %w", err)
	}
	return transitions, nil
}

// GetStats returns report counts grouped by status.
func (e *NCREngine) GetStats(orgID uuid.UUID, projectID *uuid.UUID) (map[string]int64, error) {
	type statusCount struct {
		Status string
		Count  int64
	}

	query := e.db.Model(&models.NCR{}).
		Select("status, count(*) as count").
		Where("organization_id = ?", orgID)
	if projectID != nil {
		query = query.Where("project_id = ?", *projectID)
	}

	var results []statusCount
	if err := query.Group("status").Find(&results).Error; err != nil {
		return nil, fmt.Errorf("failed to fetch stats: %w", err)
	}

	stats := make(map[string]int64)
	for _, r := range results {
		stats[r.Status] = r.Count
	}
	return stats, nil
}
