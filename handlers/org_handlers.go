package handlers

import (
	"encoding/json"
	"log"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"gorm.io/gorm"

	"p9e.in/siteqa/config"
	"p9e.in/siteqa/middleware"
	"p9e.in/siteqa/models"
	"p9e.in/siteqa/workflow"
)

// CreateOrganization creates a new tenant. The creator becomes its owner.
// POST /api/v1/orgs
func CreateOrganization(w http.ResponseWriter, r *http.Request) {
	claims := middleware.GetClaims(r)
	if claims == nil {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	var req struct {
		Name        string `json:"name"`
		Code        string `json:"code"`
		Description string `json:"description,omitempty"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if req.Name == "" || req.Code == "" {
		http.Error(w, "name and code are required", http.StatusBadRequest)
		return
	}

	userID, err := uuid.Parse(claims.UserID)
	if err != nil {
		http.Error(w, "invalid user", http.StatusUnauthorized)
		return
	}

	org := models.Organization{
		Name:        req.Name,
		Code:        strings.ToUpper(req.Code),
		Description: req.Description,
		IsActive:    true,
	}

	err = config.DB.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&org).Error; err != nil {
			return err
		}
		member := models.OrganizationMember{
			OrganizationID: org.ID,
			UserID:         userID,
			Role:           workflow.RoleOwner,
			IsActive:       true,
		}
		return tx.Create(&member).Error
	})
	if err != nil {
		if strings.Contains(err.Error(), "duplicate key") {
			http.Error(w, "organization code already taken", http.StatusConflict)
			return
		}
		log.Printf("❌ Error creating organization: %v", err)
		http.Error(w, "failed to create organization", http.StatusInternalServerError)
		return
	}

	log.Printf("✅ Created organization %s (%s), owner %s", org.Name, org.Code, claims.UserID)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(map[string]interface{}{
		"message":      "organization created successfully",
		"organization": org,
	})
}

// ListMyOrganizations returns the organizations the caller belongs to
// GET /api/v1/orgs
func ListMyOrganizations(w http.ResponseWriter, r *http.Request) {
	claims := middleware.GetClaims(r)
	if claims == nil {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	var memberships []models.OrganizationMember
	if err := config.DB.
		Preload("Organization").
		Where("user_id = ? AND is_active = ?", claims.UserID, true).
		Find(&memberships).Error; err != nil {
		log.Printf("❌ Error fetching memberships: %v", err)
		http.Error(w, "failed to fetch organizations", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{
		"memberships": memberships,
		"count":       len(memberships),
	})
}

// AddMemberRequest adds a user to the organization with a role. Contractor
// members also carry the contractor they act for.
type AddMemberRequest struct {
	UserID       uuid.UUID  `json:"user_id"`
	Role         string     `json:"role"`
	ContractorID *uuid.UUID `json:"contractor_id,omitempty"`
}

// AddOrganizationMember adds or reactivates a member
// POST /api/v1/orgs/{orgId}/members
func AddOrganizationMember(w http.ResponseWriter, r *http.Request) {
	member := middleware.GetMember(r)
	if member == nil {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	var req AddMemberRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if req.UserID == uuid.Nil {
		http.Error(w, "user_id is required", http.StatusBadRequest)
		return
	}
	if !workflow.ValidRole(req.Role) {
		http.Error(w, "invalid role", http.StatusBadRequest)
		return
	}
	if req.Role == workflow.RoleContractor && req.ContractorID == nil {
		http.Error(w, "contractor members require a contractor_id", http.StatusBadRequest)
		return
	}

	var user models.User
	if err := config.DB.First(&user, "id = ?", req.UserID).Error; err != nil {
		http.Error(w, "user not found", http.StatusNotFound)
		return
	}

	if req.ContractorID != nil {
		var contractor models.Contractor
		if err := config.DB.
			Where("id = ? AND organization_id = ?", *req.ContractorID, member.OrganizationID).
			First(&contractor).Error; err != nil {
			http.Error(w, "contractor not found", http.StatusNotFound)
			return
		}
	}

	newMember := models.OrganizationMember{
		OrganizationID: member.OrganizationID,
		UserID:         req.UserID,
		Role:           req.Role,
		ContractorID:   req.ContractorID,
		IsActive:       true,
	}
	if err := config.DB.Create(&newMember).Error; err != nil {
		if strings.Contains(err.Error(), "duplicate key") {
			http.Error(w, "user is already a member", http.StatusConflict)
			return
		}
		log.Printf("❌ Error adding member: %v", err)
		http.Error(w, "failed to add member", http.StatusInternalServerError)
		return
	}

	log.Printf("✅ Added %s to organization %s as %s", req.UserID, member.OrganizationID, req.Role)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(map[string]interface{}{
		"message": "member added successfully",
		"member":  newMember,
	})
}

// ListOrganizationMembers lists the organization's active members
// GET /api/v1/orgs/{orgId}/members
func ListOrganizationMembers(w http.ResponseWriter, r *http.Request) {
	member := middleware.GetMember(r)
	if member == nil {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	var members []models.OrganizationMember
	if err := config.DB.
		Preload("User").
		Preload("Contractor").
		Where("organization_id = ? AND is_active = ?", member.OrganizationID, true).
		Find(&members).Error; err != nil {
		log.Printf("❌ Error fetching members: %v", err)
		http.Error(w, "failed to fetch members", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{
		"members": members,
		"count":   len(members),
	})
}

// UpdateMemberRole changes a member's role
// PUT /api/v1/orgs/{orgId}/members/{memberId}
func UpdateMemberRole(w http.ResponseWriter, r *http.Request) {
	member := middleware.GetMember(r)
	if member == nil {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	memberID, err := uuid.Parse(mux.Vars(r)["memberId"])
	if err != nil {
		http.Error(w, "invalid member ID", http.StatusBadRequest)
		return
	}

	var req struct {
		Role string `json:"role"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || !workflow.ValidRole(req.Role) {
		http.Error(w, "a valid role is required", http.StatusBadRequest)
		return
	}

	var target models.OrganizationMember
	if err := config.DB.
		Where("id = ? AND organization_id = ?", memberID, member.OrganizationID).
		First(&target).Error; err != nil {
		http.Error(w, "member not found", http.StatusNotFound)
		return
	}

	target.Role = req.Role
	if err := config.DB.Save(&target).Error; err != nil {
		log.Printf("❌ Error updating member role: %v", err)
		http.Error(w, "failed to update member", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{
		"message": "member updated successfully",
		"member":  target,
	})
}

// CreateContractor registers an external contractor
// POST /api/v1/orgs/{orgId}/contractors
func CreateContractor(w http.ResponseWriter, r *http.Request) {
	member := middleware.GetMember(r)
	if member == nil {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	var req struct {
		Name         string `json:"name"`
		ABN          string `json:"abn,omitempty"`
		ContactEmail string `json:"contact_email,omitempty"`
		ContactPhone string `json:"contact_phone,omitempty"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Name == "" {
		http.Error(w, "name is required", http.StatusBadRequest)
		return
	}

	contractor := models.Contractor{
		OrganizationID: member.OrganizationID,
		Name:           req.Name,
		ABN:            req.ABN,
		ContactEmail:   req.ContactEmail,
		ContactPhone:   req.ContactPhone,
		IsActive:       true,
	}
	if err := config.DB.Create(&contractor).Error; err != nil {
		log.Printf("❌ Error creating contractor: %v", err)
		http.Error(w, "failed to create contractor", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(map[string]interface{}{
		"message":    "contractor created successfully",
		"contractor": contractor,
	})
}

// ListContractors lists the organization's active contractors
// GET /api/v1/orgs/{orgId}/contractors
func ListContractors(w http.ResponseWriter, r *http.Request) {
	member := middleware.GetMember(r)
	if member == nil {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	var contractors []models.Contractor
	if err := config.DB.
		Where("organization_id = ? AND is_active = ?", member.OrganizationID, true).
		Order("name ASC").
		Find(&contractors).Error; err != nil {
		log.Printf("❌ Error fetching contractors: %v", err)
		http.Error(w, "failed to fetch contractors", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{
		"contractors": contractors,
		"count":       len(contractors),
	})
}
