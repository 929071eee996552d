package handlers

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"gorm.io/gorm"

	"p9e.in/siteqa/middleware"
	"p9e.in/siteqa/models"
	"p9e.in/siteqa/workflow"
)

var ncrEngine *NCREngine

// getNCREngine returns the NCR engine instance, initializing it if needed
func getNCREngine() *NCREngine {
	if ncrEngine == nil {
		ncrEngine = NewNCREngine()
	}
	return ncrEngine
}

// TransitionNCRRequest is the request body shared by all transition
// endpoints; each endpoint cares about the fields its target requires.
type TransitionNCRRequest struct {
	RootCause        string   `json:"root_cause,omitempty"`
	CorrectiveAction string   `json:"corrective_action,omitempty"`
	PreventiveAction string   `json:"preventive_action,omitempty"`
	ActualCost       *float64 `json:"actual_cost,omitempty"`
	DisputeReason    string   `json:"dispute_reason,omitempty"`
	DisputeCategory  string   `json:"dispute_category,omitempty"`
	Note             string   `json:"note,omitempty"`
}

// CreateNCR creates a new non-conformance report
// POST /api/v1/orgs/{orgId}/projects/{projectId}/ncrs
func CreateNCR(w http.ResponseWriter, r *http.Request) {
	claims := middleware.GetClaims(r)
	member := middleware.GetMember(r)
	if claims == nil || member == nil {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	vars := mux.Vars(r)
	projectID, err := uuid.Parse(vars["projectId"])
	if err != nil {
		http.Error(w, "invalid project ID", http.StatusBadRequest)
		return
	}

	var input CreateNCRInput
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if input.Title == "" {
		http.Error(w, "title is required", http.StatusBadRequest)
		return
	}

	ncr, err := getNCREngine().CreateNCR(member.OrganizationID, projectID, input, claims.UserID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			http.Error(w, "project not found", http.StatusNotFound)
			return
		}
		log.Printf("❌ Error creating NCR: %v", err)
		http.Error(w, "failed to create NCR", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(map[string]interface{}{
		"message": "NCR created successfully",
		"ncr":     ncr.ToDTO(),
	})
}

// ListNCRs retrieves the organization's reports
// GET /api/v1/orgs/{orgId}/ncrs
func ListNCRs(w http.ResponseWriter, r *http.Request) {
	member := middleware.GetMember(r)
	if member == nil {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	filters := make(map[string]interface{})
	if status := r.URL.Query().Get("status"); status != "" {
		filters["status"] = status
	}
	if projectID := r.URL.Query().Get("project_id"); projectID != "" {
		if id, err := uuid.Parse(projectID); err == nil {
			filters["project_id"] = id
		}
	}
	if r.URL.Query().Get("assigned_to_me") == "true" {
		filters["assigned_to"] = middleware.GetUserID(r)
	}

	ncrs, err := getNCREngine().ListNCRs(member.OrganizationID, filters)
	if err != nil {
		log.Printf("❌ Error fetching NCRs: %v", err)
		http.Error(w, "failed to fetch NCRs", http.StatusInternalServerError)
		return
	}

	dtos := make([]models.NCRDTO, len(ncrs))
	for i := range ncrs {
		dtos[i] = ncrs[i].ToDTO()
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{
		"ncrs":  dtos,
		"count": len(dtos),
	})
}

// GetNCR retrieves a single report with its history
// GET /api/v1/orgs/{orgId}/ncrs/{ncrId}
func GetNCR(w http.ResponseWriter, r *http.Request) {
	member := middleware.GetMember(r)
	if member == nil {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	ncrID, err := uuid.Parse(mux.Vars(r)["ncrId"])
	if err != nil {
		http.Error(w, "invalid NCR ID", http.StatusBadRequest)
		return
	}

	ncr, err := getNCREngine().GetNCR(member.OrganizationID, ncrID)
	if err != nil {
		http.Error(w, "NCR not found", http.StatusNotFound)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{
		"ncr":     ncr.ToDTO(),
		"history": ncr.Transitions,
	})
}

// AssignNCR sets the responsible user
// POST /api/v1/orgs/{orgId}/ncrs/{ncrId}/assign
func AssignNCR(w http.ResponseWriter, r *http.Request) {
	member := middleware.GetMember(r)
	if member == nil {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	ncrID, err := uuid.Parse(mux.Vars(r)["ncrId"])
	if err != nil {
		http.Error(w, "invalid NCR ID", http.StatusBadRequest)
		return
	}

	var req struct {
		AssignedTo string `json:"assigned_to"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.AssignedTo == "" {
		http.Error(w, "assigned_to is required", http.StatusBadRequest)
		return
	}

	ncr, err := getNCREngine().Assign(member.OrganizationID, ncrID, req.AssignedTo)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			http.Error(w, "NCR not found", http.StatusNotFound)
			return
		}
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{
		"message": "NCR assigned successfully",
		"ncr":     ncr.ToDTO(),
	})
}

// Transition endpoints. Each one names its target status; the state machine
// does the rest.

// AcknowledgeNCR - POST /api/v1/orgs/{orgId}/ncrs/{ncrId}/acknowledge
func AcknowledgeNCR(w http.ResponseWriter, r *http.Request) {
	transitionNCR(w, r, workflow.StatusAcknowledged)
}

// StartWorkNCR - POST /api/v1/orgs/{orgId}/ncrs/{ncrId}/start-work
func StartWorkNCR(w http.ResponseWriter, r *http.Request) {
	transitionNCR(w, r, workflow.StatusInProgress)
}

// ResolveNCR - POST /api/v1/orgs/{orgId}/ncrs/{ncrId}/resolve
func ResolveNCR(w http.ResponseWriter, r *http.Request) {
	transitionNCR(w, r, workflow.StatusResolved)
}

// DisputeNCR - POST /api/v1/orgs/{orgId}/ncrs/{ncrId}/dispute
func DisputeNCR(w http.ResponseWriter, r *http.Request) {
	transitionNCR(w, r, workflow.StatusDisputed)
}

// CloseNCR - POST /api/v1/orgs/{orgId}/ncrs/{ncrId}/close
func CloseNCR(w http.ResponseWriter, r *http.Request) {
	transitionNCR(w, r, workflow.StatusClosed)
}

// ReopenNCR - POST /api/v1/orgs/{orgId}/ncrs/{ncrId}/reopen
func ReopenNCR(w http.ResponseWriter, r *http.Request) {
	transitionNCR(w, r, workflow.StatusOpen)
}

func transitionNCR(w http.ResponseWriter, r *http.Request, target string) {
	claims := middleware.GetClaims(r)
	member := middleware.GetMember(r)
	if claims == nil || member == nil {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	ncrID, err := uuid.Parse(mux.Vars(r)["ncrId"])
	if err != nil {
		http.Error(w, "invalid NCR ID", http.StatusBadRequest)
		return
	}

	// Transition bodies are optional for targets without field contracts
	var req TransitionNCRRequest
	if r.Body != nil && r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "invalid request body", http.StatusBadRequest)
			return
		}
	}

	payload := workflow.TransitionPayload{
		RootCause:        req.RootCause,
		CorrectiveAction: req.CorrectiveAction,
		PreventiveAction: req.PreventiveAction,
		ActualCost:       req.ActualCost,
		DisputeReason:    req.DisputeReason,
		DisputeCategory:  req.DisputeCategory,
	}

	ncr, decision, err := getNCREngine().Transition(
		member.OrganizationID,
		ncrID,
		target,
		middleware.ActorFromRequest(r),
		claims.Name,
		payload,
		req.Note,
	)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			http.Error(w, "NCR not found", http.StatusNotFound)
			return
		}
		log.Printf("❌ Error transitioning NCR: %v", err)
		http.Error(w, "failed to transition NCR", http.StatusInternalServerError)
		return
	}

	if !decision.Allowed {
		writeDecisionDenial(w, decision)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{
		"message": "transition successful",
		"ncr":     ncr.ToDTO(),
		"status":  ncr.Status,
	})
}

// writeDecisionDenial maps a state machine denial onto the error taxonomy:
// eligibility failures are 403, unreachable transitions and incomplete
// payloads are 400 (the latter with the complete requiredFields list).
func writeDecisionDenial(w http.ResponseWriter, decision workflow.Decision) {
	status := http.StatusBadRequest
	if decision.ReasonClass == workflow.ReasonEligibility {
		status = http.StatusForbidden
	}

	body := map[string]interface{}{
		"error": decision.Reason,
	}
	if len(decision.MissingFields) > 0 {
		body["requiredFields"] = decision.MissingFields
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}

// GetNCRHistory retrieves the complete transition history
// GET /api/v1/orgs/{orgId}/ncrs/{ncrId}/history
func GetNCRHistory(w http.ResponseWriter, r *http.Request) {
	member := middleware.GetMember(r)
	if member == nil {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	ncrID, err := uuid.Parse(mux.Vars(r)["ncrId"])
	if err != nil {
		http.Error(w, "invalid NCR ID", http.StatusBadRequest)
		return
	}

	history, err := getNCREngine().GetHistory(member.OrganizationID, ncrID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			http.Error(w, "NCR not found", http.StatusNotFound)
			return
		}
		log.Printf("❌ Error fetching NCR history: %v", err)
		http.Error(w, "failed to fetch history", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{
		"history": history,
		"count":   len(history),
	})
}

// GetNCRStats returns report counts grouped by status
// GET /api/v1/orgs/{orgId}/ncrs/stats
func GetNCRStats(w http.ResponseWriter, r *http.Request) {
	member := middleware.GetMember(r)
	if member == nil {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	var projectID *uuid.UUID
	if v := r.URL.Query().Get("project_id"); v != "" {
		if id, err := uuid.Parse(v); err == nil {
			projectID = &id
		}
	}

	stats, err := getNCREngine().GetStats(member.OrganizationID, projectID)
	if err != nil {
		log.Printf("❌ Error fetching NCR stats: %v", err)
		http.Error(w, "failed to fetch stats", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{
		"stats": stats,
	})
}
