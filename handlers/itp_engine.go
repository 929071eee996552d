package handlers

import (
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"p9e.in/siteqa/config"
	"p9e.in/siteqa/models"
	"p9e.in/siteqa/workflow"
)

// ErrVersionConflict is reported when an instance changed under a
// read-modify-write. Batches are idempotent, so callers simply resend.
var ErrVersionConflict = errors.New("instance was modified concurrently, retry the update")

// InstanceStore is the narrow persistence seam the batch orchestrator works
// through, so per-instance failure semantics are testable without a
// database.
type InstanceStore interface {
	Fetch(orgID, instanceID uuid.UUID) (*models.ITPInstance, error)
	Save(instance *models.ITPInstance) error
}

// gormInstanceStore is the production store. Save is a conditional write on
// the version column: a concurrent update surfaces as ErrVersionConflict
// instead of a silent lost update.
type gormInstanceStore struct {
	db *gorm.DB
}

func (s *gormInstanceStore) Fetch(orgID, instanceID uuid.UUID) (*models.ITPInstance, error) {
	var instance models.ITPInstance
	if err := s.db.
		Where("id = ? AND organization_id = ?", instanceID, orgID).
		First(&instance).Error; err != nil {
		return nil, err
	}
	return &instance, nil
}

func (s *gormInstanceStore) Save(instance *models.ITPInstance) error {
	previousVersion := instance.Version
	instance.Version = previousVersion + 1

	result := s.db.Model(&models.ITPInstance{}).
		Where("id = ? AND version = ?", instance.ID, previousVersion).
		Updates(map[string]interface{}{
			"data":                  instance.Data,
			"completion_percentage": instance.CompletionPercentage,
			"inspection_status":     instance.InspectionStatus,
			"last_modified_by":      instance.LastModifiedBy,
			"version":               instance.Version,
		})
	if result.Error != nil {
		return fmt.Errorf("failed to save instance: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrVersionConflict
	}
	return nil
}

// ITPEngine applies inspection item updates to checklist instances and keeps
// the derived completion percentage and inspection status consistent.
type ITPEngine struct {
	db    *gorm.DB
	store InstanceStore
	now   func() time.Time
}

// NewITPEngine creates a new ITP engine instance
func NewITPEngine() *ITPEngine {
	return &ITPEngine{
		db:    config.DB,
		store: &gormInstanceStore{db: config.DB},
		now:   time.Now,
	}
}

// newITPEngineWithStore wires a custom store and clock; used by tests.
func newITPEngineWithStore(store InstanceStore, now func() time.Time) *ITPEngine {
	return &ITPEngine{store: store, now: now}
}

// InstanceUpdateRequest is one instance's worth of item updates within a
// batch. InspectionStatus, when set, is an explicit override that wins over
// the derived status.
type InstanceUpdateRequest struct {
	InstanceID       uuid.UUID             `json:"instanceId"`
	Updates          []workflow.ItemUpdate `json:"updates"`
	InspectionStatus string                `json:"inspection_status,omitempty"`
}

// InstanceError records one instance's failure inside a batch.
type InstanceError struct {
	InstanceID uuid.UUID `json:"instanceId"`
	Error      string    `json:"error"`
}

// BatchResult partitions a batch into successes and per-instance failures.
type BatchResult struct {
	Updated int                  `json:"updated"`
	Results []models.ITPInstance `json:"results"`
	Errors  []InstanceError      `json:"errors,omitempty"`
}

// validateBatch checks the whole request shape up front. A malformed batch
// aborts before any instance is touched; per-instance failures during
// processing never do.
func validateBatch(requests []InstanceUpdateRequest) error {
	for _, req := range requests {
		if req.InstanceID == uuid.Nil {
			return errors.New("instanceId is required for every update")
		}
		if err := workflow.ValidateItemUpdates(req.Updates); err != nil {
			return fmt.Errorf("instance %s: %w", req.InstanceID, err)
		}
		if req.InspectionStatus != "" && !workflow.ValidInspectionStatus(req.InspectionStatus) {
			return fmt.Errorf("instance %s: invalid inspection status %q", req.InstanceID, req.InspectionStatus)
		}
	}
	return nil
}

// BatchUpdate applies each instance's updates independently. One instance's
// failure is captured and the loop continues - partial success is itself a
// successful batch. privileged marks callers who may write to approved or
// rejected instances.
func (e *ITPEngine) BatchUpdate(orgID uuid.UUID, requests []InstanceUpdateRequest, recordedBy string, privileged bool) (*BatchResult, error) {
	if err := validateBatch(requests); err != nil {
		return nil, err
	}

	result := &BatchResult{}
	for _, req := range requests {
		instance, err := e.applyUpdate(orgID, req, recordedBy, privileged)
		if err != nil {
			result.Errors = append(result.Errors, InstanceError{
				InstanceID: req.InstanceID,
				Error:      err.Error(),
			})
			continue
		}
		result.Updated++
		result.Results = append(result.Results, *instance)
	}

	log.Printf("✅ Batch update: %d updated, %d failed", result.Updated, len(result.Errors))
	return result, nil
}

// UpdateInstance applies a single instance's updates outside a batch.
func (e *ITPEngine) UpdateInstance(orgID uuid.UUID, req InstanceUpdateRequest, recordedBy string, privileged bool) (*models.ITPInstance, error) {
	if err := validateBatch([]InstanceUpdateRequest{req}); err != nil {
		return nil, err
	}
	return e.applyUpdate(orgID, req, recordedBy, privileged)
}

// applyUpdate is one read-modify-write: merge item updates in order,
// recompute the derived fields, persist.
func (e *ITPEngine) applyUpdate(orgID uuid.UUID, req InstanceUpdateRequest, recordedBy string, privileged bool) (*models.ITPInstance, error) {
	instance, err := e.store.Fetch(orgID, req.InstanceID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("instance not found")
		}
		return nil, fmt.Errorf("failed to fetch instance: %w", err)
	}

	// Signed-off instances are read-only for everyone but privileged roles
	if workflow.AdministrativeInspectionStatus(instance.InspectionStatus) && !privileged {
		return nil, fmt.Errorf("instance is %s and read-only", instance.InspectionStatus)
	}

	merged, err := workflow.ApplyItemUpdates(instance.Data, req.Updates, recordedBy, e.now())
	if err != nil {
		return nil, err
	}

	completion := workflow.CalculateCompletion(merged)
	instance.Data = merged
	instance.CompletionPercentage = completion.CompletionPercentage

	switch {
	case req.InspectionStatus != "":
		// Explicit caller-supplied status always wins - approving or
		// rejecting is a sign-off decision, not a tally.
		instance.InspectionStatus = req.InspectionStatus
	case workflow.AdministrativeInspectionStatus(instance.InspectionStatus):
		// Approved/rejected sign-offs survive recomputation
	default:
		instance.InspectionStatus = workflow.DetermineStatus(completion.CompletionPercentage)
	}

	instance.LastModifiedBy = recordedBy

	if err := e.store.Save(instance); err != nil {
		return nil, err
	}
	return instance, nil
}

// CreateInstance creates an empty draft instance from a template.
func (e *ITPEngine) CreateInstance(orgID, projectID, templateID uuid.UUID, lotID *uuid.UUID, createdBy string) (*models.ITPInstance, error) {
	var template models.ITPTemplate
	if err := e.db.
		Where("id = ? AND organization_id = ? AND is_active = ?", templateID, orgID, true).
		First(&template).Error; err != nil {
		return nil, fmt.Errorf("template not found: %w", err)
	}

	var project models.Project
	if err := e.db.Where("id = ? AND organization_id = ?", projectID, orgID).First(&project).Error; err != nil {
		return nil, fmt.Errorf("project not found: %w", err)
	}

	instance := &models.ITPInstance{
		OrganizationID:   orgID,
		ProjectID:        projectID,
		LotID:            lotID,
		TemplateID:       templateID,
		Data:             models.ITPData{},
		InspectionStatus: workflow.InspectionDraft,
		Version:          1,
		CreatedBy:        createdBy,
	}
	if err := e.db.Create(instance).Error; err != nil {
		return nil, fmt.Errorf("failed to create instance: %w", err)
	}

	log.Printf("✅ Created ITP instance %s from template %s", instance.ID, template.Code)
	return instance, nil
}

// CreateTemplate registers a reusable checklist definition.
func (e *ITPEngine) CreateTemplate(template *models.ITPTemplate) error {
	if err := e.db.Create(template).Error; err != nil {
		return fmt.Errorf("failed to create template: %w", err)
	}
	log.Printf("✅ Created ITP template %s (%s)", template.Code, template.Name)
	return nil
}

// ListTemplates fetches the organization's active templates.
func (e *ITPEngine) ListTemplates(orgID uuid.UUID) ([]models.ITPTemplate, error) {
	var templates []models.ITPTemplate
	if err := e.db.
		Where("organization_id = ? AND is_active = ?", orgID, true).
		Order("code ASC").
		Find(&templates).Error; err != nil {
		return nil, fmt.Errorf("failed to fetch templates: %w", err)
	}
	return templates, nil
}

// GetInstance fetches one instance scoped to the caller's organization.
func (e *ITPEngine) GetInstance(orgID, instanceID uuid.UUID) (*models.ITPInstance, error) {
	var instance models.ITPInstance
	if err := e.db.
		Preload("Template").
		Where("id = ? AND organization_id = ?", instanceID, orgID).
		First(&instance).Error; err != nil {
		return nil, fmt.Errorf("instance not found: %w", err)
	}
	return &instance, nil
}

// ListInstances fetches the organization's instances, optionally filtered.
func (e *ITPEngine) ListInstances(orgID uuid.UUID, filters map[string]interface{}) ([]models.ITPInstance, error) {
	query := e.db.Preload("Template").Where("organization_id = ?", orgID)

	if projectID, ok := filters["project_id"].(uuid.UUID); ok {
		query = query.Where("project_id = ?", projectID)
	}
	if status, ok := filters["inspection_status"].(string); ok && status != "" {
		query = query.Where("inspection_status = ?", status)
	}

	var instances []models.ITPInstance
	if err := query.Order("updated_at DESC").Find(&instances).Error; err != nil {
		return nil, fmt.Errorf("failed to fetch instances: %w", err)
	}
	return instances, nil
}
