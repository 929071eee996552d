package models

import (
	"time"

	"github.com/google/uuid"
)

// Project anchors lots, inspections and NCRs for one construction job.
type Project struct {
	ID             uuid.UUID     `gorm:"type:uuid;primary_key;default:gen_random_uuid()" json:"id"`
	OrganizationID uuid.UUID     `gorm:"type:uuid;not null;index" json:"organization_id"`
	Organization   *Organization `gorm:"foreignKey:OrganizationID" json:"organization,omitempty"`

	Code        string `gorm:"size:50;not null;index" json:"code"`
	Name        string `gorm:"size:255;not null" json:"name"`
	Description string `gorm:"type:text" json:"description,omitempty"`
	Address     string `gorm:"size:500" json:"address,omitempty"`

	StartDate *time.Time `json:"start_date,omitempty"`
	EndDate   *time.Time `json:"end_date,omitempty"`

	// draft, active, on-hold, completed, cancelled
	Status string `gorm:"size:50;not null;default:'active';index" json:"status"`

	CreatedBy string     `gorm:"size:255;not null" json:"created_by"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
	DeletedAt *time.Time `gorm:"index" json:"deleted_at,omitempty"`

	Lots []Lot `gorm:"foreignKey:ProjectID" json:"lots,omitempty"`
}

// TableName specifies the table name for Project
func (Project) TableName() string {
	return "projects"
}

// Lot is a unit of work (e.g. a section of a site) against which inspections
// and NCRs are recorded.
type Lot struct {
	ID        uuid.UUID `gorm:"type:uuid;primary_key;default:gen_random_uuid()" json:"id"`
	ProjectID uuid.UUID `gorm:"type:uuid;not null;index" json:"project_id"`
	Project   *Project  `gorm:"foreignKey:ProjectID" json:"project,omitempty"`

	Code        string `gorm:"size:50;not null" json:"code"`
	Name        string `gorm:"size:255;not null" json:"name"`
	Description string `gorm:"type:text" json:"description,omitempty"`

	// open, conformed, non_conforming, closed
	Status string `gorm:"size:50;not null;default:'open';index" json:"status"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// TableName specifies the table name for Lot
func (Lot) TableName() string {
	return "lots"
}
