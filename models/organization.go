package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Organization is the tenant boundary: every project, NCR and ITP instance
// belongs to exactly one organization, and every fetch is scoped to it.
type Organization struct {
	ID          uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	Name        string    `gorm:"size:255;not null" json:"name"`
	Code        string    `gorm:"size:50;uniqueIndex;not null" json:"code"`
	Description string    `gorm:"type:text" json:"description,omitempty"`
	IsActive    bool      `gorm:"default:true" json:"is_active"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`

	Members []OrganizationMember `gorm:"foreignKey:OrganizationID" json:"members,omitempty"`
}

// TableName specifies the table name for Organization
func (Organization) TableName() string {
	return "organizations"
}

func (o *Organization) BeforeCreate(tx *gorm.DB) (err error) {
	if o.ID == uuid.Nil {
		o.ID = uuid.New()
	}
	return
}

// OrganizationMember links a user to an organization with one role.
type OrganizationMember struct {
	ID             uuid.UUID     `gorm:"type:uuid;primaryKey" json:"id"`
	OrganizationID uuid.UUID     `gorm:"type:uuid;not null;uniqueIndex:idx_org_user" json:"organization_id"`
	Organization   *Organization `gorm:"foreignKey:OrganizationID" json:"organization,omitempty"`
	UserID         uuid.UUID     `gorm:"type:uuid;not null;uniqueIndex:idx_org_user" json:"user_id"`
	User           *User         `gorm:"foreignKey:UserID" json:"user,omitempty"`

	// owner, admin, project_manager, inspector, contractor, viewer
	Role string `gorm:"size:50;not null;default:'viewer'" json:"role"`

	// Set for contractor members: the external organization they act for
	ContractorID *uuid.UUID  `gorm:"type:uuid;index" json:"contractor_id,omitempty"`
	Contractor   *Contractor `gorm:"foreignKey:ContractorID" json:"contractor,omitempty"`

	IsActive  bool      `gorm:"default:true" json:"is_active"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// TableName specifies the table name for OrganizationMember
func (OrganizationMember) TableName() string {
	return "organization_members"
}

func (m *OrganizationMember) BeforeCreate(tx *gorm.DB) (err error) {
	if m.ID == uuid.Nil {
		m.ID = uuid.New()
	}
	return
}

// Contractor identifies an external organization responsible for remediation
// work on NCRs raised against it.
type Contractor struct {
	ID             uuid.UUID     `gorm:"type:uuid;primaryKey" json:"id"`
	OrganizationID uuid.UUID     `gorm:"type:uuid;not null;index" json:"organization_id"`
	Organization   *Organization `gorm:"foreignKey:OrganizationID" json:"organization,omitempty"`

	Name         string `gorm:"size:255;not null" json:"name"`
	ABN          string `gorm:"size:50" json:"abn,omitempty"`
	ContactEmail string `gorm:"size:255" json:"contact_email,omitempty"`
	ContactPhone string `gorm:"size:50" json:"contact_phone,omitempty"`

	IsActive  bool      `gorm:"default:true" json:"is_active"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// TableName specifies the table name for Contractor
func (Contractor) TableName() string {
	return "contractors"
}

func (c *Contractor) BeforeCreate(tx *gorm.DB) (err error) {
	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}
	return
}
