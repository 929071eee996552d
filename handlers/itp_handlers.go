package handlers

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"p9e.in/siteqa/middleware"
	"p9e.in/siteqa/models"
	"p9e.in/siteqa/workflow"
)

var itpEngine *ITPEngine

// getITPEngine returns the ITP engine instance, initializing it if needed
func getITPEngine() *ITPEngine {
	if itpEngine == nil {
		itpEngine = NewITPEngine()
	}
	return itpEngine
}

// CreateITPTemplateRequest carries a new checklist definition.
type CreateITPTemplateRequest struct {
	Code        string                   `json:"code"`
	Name        string                   `json:"name"`
	Description string                   `json:"description,omitempty"`
	Sections    []models.TemplateSection `json:"sections"`
}

// CreateITPTemplate registers a reusable checklist template
// POST /api/v1/orgs/{orgId}/itp/templates
func CreateITPTemplate(w http.ResponseWriter, r *http.Request) {
	claims := middleware.GetClaims(r)
	member := middleware.GetMember(r)
	if claims == nil || member == nil {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	var req CreateITPTemplateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if req.Code == "" || req.Name == "" {
		http.Error(w, "code and name are required", http.StatusBadRequest)
		return
	}

	sections, err := json.Marshal(req.Sections)
	if err != nil {
		http.Error(w, "invalid sections", http.StatusBadRequest)
		return
	}

	template := &models.ITPTemplate{
		OrganizationID: member.OrganizationID,
		Code:           req.Code,
		Name:           req.Name,
		Description:    req.Description,
		Sections:       datatypes.JSON(sections),
		IsActive:       true,
		CreatedBy:      claims.UserID,
	}

	if err := getITPEngine().CreateTemplate(template); err != nil {
		log.Printf("❌ Error creating ITP template: %v", err)
		http.Error(w, "failed to create template", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(map[string]interface{}{
		"message":  "template created successfully",
		"template": template,
	})
}

// ListITPTemplates retrieves the organization's active templates
// GET /api/v1/orgs/{orgId}/itp/templates
func ListITPTemplates(w http.ResponseWriter, r *http.Request) {
	member := middleware.GetMember(r)
	if member == nil {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	templates, err := getITPEngine().ListTemplates(member.OrganizationID)
	if err != nil {
		log.Printf("❌ Error fetching ITP templates: %v", err)
		http.Error(w, "failed to fetch templates", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{
		"templates": templates,
		"count":     len(templates),
	})
}

// CreateITPInstanceRequest instantiates a template against a project or lot.
type CreateITPInstanceRequest struct {
	ProjectID  uuid.UUID  `json:"project_id"`
	TemplateID uuid.UUID  `json:"template_id"`
	LotID      *uuid.UUID `json:"lot_id,omitempty"`
}

// CreateITPInstance creates an empty draft instance from a template
// POST /api/v1/orgs/{orgId}/itp/instances
func CreateITPInstance(w http.ResponseWriter, r *http.Request) {
	claims := middleware.GetClaims(r)
	member := middleware.GetMember(r)
	if claims == nil || member == nil {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	var req CreateITPInstanceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if req.ProjectID == uuid.Nil || req.TemplateID == uuid.Nil {
		http.Error(w, "project_id and template_id are required", http.StatusBadRequest)
		return
	}

	instance, err := getITPEngine().CreateInstance(
		member.OrganizationID, req.ProjectID, req.TemplateID, req.LotID, claims.UserID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			http.Error(w, "template or project not found", http.StatusNotFound)
			return
		}
		log.Printf("❌ Error creating ITP instance: %v", err)
		http.Error(w, "failed to create instance", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(map[string]interface{}{
		"message":  "instance created successfully",
		"instance": instance.ToDTO(),
	})
}

// GetITPInstance retrieves one instance with its template
// GET /api/v1/orgs/{orgId}/itp/instances/{instanceId}
func GetITPInstance(w http.ResponseWriter, r *http.Request) {
	member := middleware.GetMember(r)
	if member == nil {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	instanceID, err := uuid.Parse(mux.Vars(r)["instanceId"])
	if err != nil {
		http.Error(w, "invalid instance ID", http.StatusBadRequest)
		return
	}

	instance, err := getITPEngine().GetInstance(member.OrganizationID, instanceID)
	if err != nil {
		http.Error(w, "instance not found", http.StatusNotFound)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{
		"instance": instance.ToDTO(),
	})
}

// ListITPInstances retrieves the organization's instances
// GET /api/v1/orgs/{orgId}/itp/instances
func ListITPInstances(w http.ResponseWriter, r *http.Request) {
	member := middleware.GetMember(r)
	if member == nil {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	filters := make(map[string]interface{})
	if projectID := r.URL.Query().Get("project_id"); projectID != "" {
		if id, err := uuid.Parse(projectID); err == nil {
			filters["project_id"] = id
		}
	}
	if status := r.URL.Query().Get("inspection_status"); status != "" {
		filters["inspection_status"] = status
	}

	instances, err := getITPEngine().ListInstances(member.OrganizationID, filters)
	if err != nil {
		log.Printf("❌ Error fetching ITP instances: %v", err)
		http.Error(w, "failed to fetch instances", http.StatusInternalServerError)
		return
	}

	dtos := make([]models.ITPInstanceDTO, len(instances))
	for i := range instances {
		dtos[i] = instances[i].ToDTO()
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{
		"instances": dtos,
		"count":     len(dtos),
	})
}

// UpdateITPInstance applies item updates to a single instance
// PUT /api/v1/orgs/{orgId}/itp/instances/{instanceId}
func UpdateITPInstance(w http.ResponseWriter, r *http.Request) {
	claims := middleware.GetClaims(r)
	member := middleware.GetMember(r)
	if claims == nil || member == nil {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	instanceID, err := uuid.Parse(mux.Vars(r)["instanceId"])
	if err != nil {
		http.Error(w, "invalid instance ID", http.StatusBadRequest)
		return
	}

	var req struct {
		Updates          []workflow.ItemUpdate `json:"updates"`
		InspectionStatus string                `json:"inspection_status,omitempty"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}

	privileged := workflow.RoleAllows(member.Role, "itp:approve")
	if req.InspectionStatus != "" && workflow.AdministrativeInspectionStatus(req.InspectionStatus) && !privileged {
		http.Error(w, "approving or rejecting an inspection requires the itp:approve permission", http.StatusForbidden)
		return
	}

	instance, err := getITPEngine().UpdateInstance(member.OrganizationID, InstanceUpdateRequest{
		InstanceID:       instanceID,
		Updates:          req.Updates,
		InspectionStatus: req.InspectionStatus,
	}, claims.UserID, privileged)
	if err != nil {
		writeInstanceUpdateError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{
		"message":  "instance updated successfully",
		"instance": instance.ToDTO(),
	})
}

// BatchUpdateRequest is the batch endpoint's body: one entry per instance.
type BatchUpdateRequest struct {
	Updates []InstanceUpdateRequest `json:"updates"`
}

// BatchUpdateITPInstances applies updates across instances in one call.
// Partial success is still a 200: per-instance failures come back in the
// errors array while the rest of the batch lands.
// POST /api/v1/orgs/{orgId}/itp/batch-update
func BatchUpdateITPInstances(w http.ResponseWriter, r *http.Request) {
	claims := middleware.GetClaims(r)
	member := middleware.GetMember(r)
	if claims == nil || member == nil {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	var req BatchUpdateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if len(req.Updates) == 0 {
		http.Error(w, "updates array must not be empty", http.StatusBadRequest)
		return
	}

	privileged := workflow.RoleAllows(member.Role, "itp:approve")
	for _, u := range req.Updates {
		if u.InspectionStatus != "" && workflow.AdministrativeInspectionStatus(u.InspectionStatus) && !privileged {
			http.Error(w, "approving or rejecting an inspection requires the itp:approve permission", http.StatusForbidden)
			return
		}
	}

	result, err := getITPEngine().BatchUpdate(member.OrganizationID, req.Updates, claims.UserID, privileged)
	if err != nil {
		// Shared validation failed: nothing was touched
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	dtos := make([]models.ITPInstanceDTO, len(result.Results))
	for i := range result.Results {
		dtos[i] = result.Results[i].ToDTO()
	}

	body := map[string]interface{}{
		"success": true,
		"updated": result.Updated,
		"results": dtos,
	}
	if len(result.Errors) > 0 {
		body["errors"] = result.Errors
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(body)
}

// writeInstanceUpdateError maps single-instance update failures onto HTTP
// statuses. Version conflicts are 409 so clients know to resend.
func writeInstanceUpdateError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrVersionConflict):
		http.Error(w, err.Error(), http.StatusConflict)
	case err.Error() == "instance not found":
		http.Error(w, "instance not found", http.StatusNotFound)
	default:
		http.Error(w, err.Error(), http.StatusBadRequest)
	}
}
