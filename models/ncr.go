package models

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// NCR represents a non-conformance report raised against work that failed
// inspection. Status changes go exclusively through the workflow state
// machine; rows are never physically deleted (status becomes closed).
type NCR struct {
	ID             uuid.UUID     `gorm:"type:uuid;primary_key;default:gen_random_uuid()" json:"id"`
	OrganizationID uuid.UUID     `gorm:"type:uuid;not null;index" json:"organization_id"`
	Organization   *Organization `gorm:"foreignKey:OrganizationID" json:"organization,omitempty"`
	ProjectID      uuid.UUID     `gorm:"type:uuid;not null;index" json:"project_id"`
	Project        *Project      `gorm:"foreignKey:ProjectID" json:"project,omitempty"`
	LotID          *uuid.UUID    `gorm:"type:uuid;index" json:"lot_id,omitempty"`

	// Human-readable sequential number, unique per project (NCR-001, NCR-002, ...)
	Number int    `gorm:"not null;index" json:"number"`
	Title  string `gorm:"size:255;not null" json:"title"`
	Detail string `gorm:"type:text" json:"detail,omitempty"`

	// Lifecycle: open, acknowledged, in_progress, resolved, disputed, closed
	Status string `gorm:"size:50;not null;default:'open';index" json:"status"`

	// Parties
	RaisedBy     string     `gorm:"size:255;not null" json:"raised_by"`
	AssignedTo   string     `gorm:"size:255;index" json:"assigned_to,omitempty"`
	ContractorID *uuid.UUID `gorm:"type:uuid;index" json:"contractor_id,omitempty"`
	Contractor   *Contractor `gorm:"foreignKey:ContractorID" json:"contractor,omitempty"`

	// Resolution payload - required by the resolved transition
	RootCause        string   `gorm:"type:text" json:"root_cause,omitempty"`
	CorrectiveAction string   `gorm:"type:text" json:"corrective_action,omitempty"`
	PreventiveAction string   `gorm:"type:text" json:"preventive_action,omitempty"`
	ActualCost       *float64 `gorm:"type:decimal(15,2)" json:"actual_cost,omitempty"`

	// Dispute payload - required by the disputed transition
	DisputeReason   string `gorm:"type:text" json:"dispute_reason,omitempty"`
	DisputeCategory string `gorm:"size:50" json:"dispute_category,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	Transitions []NCRTransition `gorm:"foreignKey:NCRID" json:"transitions,omitempty"`
}

// TableName specifies the table name for NCR
func (NCR) TableName() string {
	return "ncrs"
}

// NCRTransition is one immutable entry in an NCR's status history.
type NCRTransition struct {
	ID    uuid.UUID `gorm:"type:uuid;primary_key;default:gen_random_uuid()" json:"id"`
	NCRID uuid.UUID `gorm:"type:uuid;not null;index" json:"ncr_id"`
	NCR   *NCR      `gorm:"foreignKey:NCRID" json:"ncr,omitempty"`

	FromStatus string `gorm:"size:50;not null" json:"from_status"`
	ToStatus   string `gorm:"size:50;not null" json:"to_status"`

	ActorID   string `gorm:"size:255;not null" json:"actor_id"`
	ActorName string `gorm:"size:255" json:"actor_name,omitempty"`
	ActorRole string `gorm:"size:100" json:"actor_role,omitempty"`
	Note      string `gorm:"type:text" json:"note,omitempty"`

	TransitionedAt time.Time `gorm:"not null;index" json:"transitioned_at"`
	CreatedAt      time.Time `json:"created_at"`
}

// TableName specifies the table name for NCRTransition
func (NCRTransition) TableName() string {
	return "ncr_transitions"
}

// NCRDTO is the response shape for a single NCR.
type NCRDTO struct {
	ID               uuid.UUID  `json:"id"`
	ProjectID        uuid.UUID  `json:"project_id"`
	LotID            *uuid.UUID `json:"lot_id,omitempty"`
	Number           int        `json:"number"`
	Reference        string     `json:"reference"`
	Title            string     `json:"title"`
	Detail           string     `json:"detail,omitempty"`
	Status           string     `json:"status"`
	RaisedBy         string     `json:"raised_by"`
	AssignedTo       string     `json:"assigned_to,omitempty"`
	ContractorID     *uuid.UUID `json:"contractor_id,omitempty"`
	RootCause        string     `json:"root_cause,omitempty"`
	CorrectiveAction string     `json:"corrective_action,omitempty"`
	PreventiveAction string     `json:"preventive_action,omitempty"`
	ActualCost       *float64   `json:"actual_cost,omitempty"`
	DisputeReason    string     `json:"dispute_reason,omitempty"`
	DisputeCategory  string     `json:"dispute_category,omitempty"`
	CreatedAt        time.Time  `json:"created_at"`
	UpdatedAt        time.Time  `json:"updated_at"`
}

// Reference returns the human-readable identifier shown on reports.
func (n *NCR) Reference() string {
	return fmt.Sprintf("NCR-%03d", n.Number)
}

// ToDTO converts an NCR to its response shape.
func (n *NCR) ToDTO() NCRDTO {
	return NCRDTO{
		ID:               n.ID,
		ProjectID:        n.ProjectID,
		LotID:            n.LotID,
		Number:           n.Number,
		Reference:        n.Reference(),
		Title:            n.Title,
		Detail:           n.Detail,
		Status:           n.Status,
		RaisedBy:         n.RaisedBy,
		AssignedTo:       n.AssignedTo,
		ContractorID:     n.ContractorID,
		RootCause:        n.RootCause,
		CorrectiveAction: n.CorrectiveAction,
		PreventiveAction: n.PreventiveAction,
		ActualCost:       n.ActualCost,
		DisputeReason:    n.DisputeReason,
		DisputeCategory:  n.DisputeCategory,
		CreatedAt:        n.CreatedAt,
		UpdatedAt:        n.UpdatedAt,
	}
}
