package handlers

import (
	"encoding/json"
	"log"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"

	"p9e.in/siteqa/config"
	"p9e.in/siteqa/middleware"
	"p9e.in/siteqa/models"
)

// CreateProjectRequest carries a new construction project.
type CreateProjectRequest struct {
	Code        string     `json:"code"`
	Name        string     `json:"name"`
	Description string     `json:"description,omitempty"`
	Address     string     `json:"address,omitempty"`
	StartDate   *time.Time `json:"start_date,omitempty"`
	EndDate     *time.Time `json:"end_date,omitempty"`
}

// CreateProject creates a project in the caller's organization
// POST /api/v1/orgs/{orgId}/projects
func CreateProject(w http.ResponseWriter, r *http.Request) {
	claims := middleware.GetClaims(r)
	member := middleware.GetMember(r)
	if claims == nil || member == nil {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	var req CreateProjectRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if req.Code == "" || req.Name == "" {
		http.Error(w, "code and name are required", http.StatusBadRequest)
		return
	}

	project := models.Project{
		OrganizationID: member.OrganizationID,
		Code:           req.Code,
		Name:           req.Name,
		Description:    req.Description,
		Address:        req.Address,
		StartDate:      req.StartDate,
		EndDate:        req.EndDate,
		Status:         "active",
		CreatedBy:      claims.UserID,
	}
	if err := config.DB.Create(&project).Error; err != nil {
		log.Printf("❌ Error creating project: %v", err)
		http.Error(w, "failed to create project", http.StatusInternalServerError)
		return
	}

	log.Printf("✅ Created project %s (%s)", project.Code, project.Name)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(map[string]interface{}{
		"message": "project created successfully",
		"project": project,
	})
}

// ListProjects lists the organization's projects
// GET /api/v1/orgs/{orgId}/projects
func ListProjects(w http.ResponseWriter, r *http.Request) {
	member := middleware.GetMember(r)
	if member == nil {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	query := config.DB.
		Where("organization_id = ? AND deleted_at IS NULL", member.OrganizationID)
	if status := r.URL.Query().Get("status"); status != "" {
		query = query.Where("status = ?", status)
	}

	var projects []models.Project
	if err := query.Order("created_at DESC").Find(&projects).Error; err != nil {
		log.Printf("❌ Error fetching projects: %v", err)
		http.Error(w, "failed to fetch projects", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{
		"projects": projects,
		"count":    len(projects),
	})
}

// GetProject fetches one project with its lots
// GET /api/v1/orgs/{orgId}/projects/{projectId}
func GetProject(w http.ResponseWriter, r *http.Request) {
	member := middleware.GetMember(r)
	if member == nil {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	projectID, err := uuid.Parse(mux.Vars(r)["projectId"])
	if err != nil {
		http.Error(w, "invalid project ID", http.StatusBadRequest)
		return
	}

	var project models.Project
	if err := config.DB.
		Preload("Lots").
		Where("id = ? AND organization_id = ? AND deleted_at IS NULL", projectID, member.OrganizationID).
		First(&project).Error; err != nil {
		http.Error(w, "project not found", http.StatusNotFound)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{
		"project": project,
	})
}

// CreateLot adds a lot to a project
// POST /api/v1/orgs/{orgId}/projects/{projectId}/lots
func CreateLot(w http.ResponseWriter, r *http.Request) {
	member := middleware.GetMember(r)
	if member == nil {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	projectID, err := uuid.Parse(mux.Vars(r)["projectId"])
	if err != nil {
		http.Error(w, "invalid project ID", http.StatusBadRequest)
		return
	}

	// Parent must belong to the caller's organization
	var project models.Project
	if err := config.DB.
		Where("id = ? AND organization_id = ? AND deleted_at IS NULL", projectID, member.OrganizationID).
		First(&project).Error; err != nil {
		http.Error(w, "project not found", http.StatusNotFound)
		return
	}

	var req struct {
		Code        string `json:"code"`
		Name        string `json:"name"`
		Description string `json:"description,omitempty"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Code == "" || req.Name == "" {
		http.Error(w, "code and name are required", http.StatusBadRequest)
		return
	}

	lot := models.Lot{
		ProjectID:   projectID,
		Code:        req.Code,
		Name:        req.Name,
		Description: req.Description,
		Status:      "open",
	}
	if err := config.DB.Create(&lot).Error; err != nil {
		log.Printf("❌ Error creating lot: %v", err)
		http.Error(w, "failed to create lot", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(map[string]interface{}{
		"message": "lot created successfully",
		"lot":     lot,
	})
}

// ListLots lists a project's lots
// GET /api/v1/orgs/{orgId}/projects/{projectId}/lots
func ListLots(w http.ResponseWriter, r *http.Request) {
	member := middleware.GetMember(r)
	if member == nil {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	projectID, err := uuid.Parse(mux.Vars(r)["projectId"])
	if err != nil {
		http.Error(w, "invalid project ID", http.StatusBadRequest)
		return
	}

	var project models.Project
	if err := config.DB.
		Where("id = ? AND organization_id = ? AND deleted_at IS NULL", projectID, member.OrganizationID).
		First(&project).Error; err != nil {
		http.Error(w, "project not found", http.StatusNotFound)
		return
	}

	var lots []models.Lot
	if err := config.DB.
		Where("project_id = ?", projectID).
		Order("code ASC").
		Find(&lots).Error; err != nil {
		log.Printf("❌ Error fetching lots: %v", err)
		http.Error(w, "failed to fetch lots", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{
		"lots":  lots,
		"count": len(lots),
	})
}
