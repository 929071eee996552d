package models

import (
	"database/sql/driver"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

// ITPTemplate defines a reusable inspection checklist: ordered sections, each
// containing ordered items with a required flag.
type ITPTemplate struct {
	ID             uuid.UUID     `gorm:"type:uuid;primary_key;default:gen_random_uuid()" json:"id"`
	OrganizationID uuid.UUID     `gorm:"type:uuid;not null;index" json:"organization_id"`
	Organization   *Organization `gorm:"foreignKey:OrganizationID" json:"organization,omitempty"`

	Code        string `gorm:"size:50;not null;index" json:"code"`
	Name        string `gorm:"size:255;not null" json:"name"`
	Description string `gorm:"type:text" json:"description,omitempty"`

	// Checklist structure stored as JSONB (array of TemplateSection)
	Sections datatypes.JSON `gorm:"type:jsonb;not null;default:'[]'" json:"sections"`

	IsActive  bool      `gorm:"default:true" json:"is_active"`
	CreatedBy string    `gorm:"size:255;not null" json:"created_by"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// TableName specifies the table name for ITPTemplate
func (ITPTemplate) TableName() string {
	return "itp_templates"
}

// TemplateSection is one ordered section of a checklist template.
type TemplateSection struct {
	ID    string         `json:"id"`
	Title string         `json:"title"`
	Items []TemplateItem `json:"items"`
}

// TemplateItem is one checklist line within a section.
type TemplateItem struct {
	ID          string `json:"id"`
	Description string `json:"description"`
	Required    bool   `json:"required"`
}

// ItemRecord is the recorded outcome for one checklist item. An item with
// notes but no result has not been inspected yet and does not count toward
// completion.
type ItemRecord struct {
	Result     string    `json:"result,omitempty"` // pass, fail, na
	Notes      string    `json:"notes,omitempty"`
	RecordedBy string    `json:"recorded_by,omitempty"`
	RecordedAt time.Time `json:"recorded_at,omitzero"`
}

// ITPData maps section id -> item id -> recorded result. Sections and items
// are added lazily as inspectors touch them, so the map never contains
// untouched template items.
type ITPData map[string]map[string]ItemRecord

// Scan implements the sql.Scanner interface
func (d *ITPData) Scan(value interface{}) error {
	if value == nil {
		*d = make(ITPData)
		return nil
	}

	bytes, ok := value.([]byte)
	if !ok {
		*d = make(ITPData)
		return nil
	}

	return json.Unmarshal(bytes, d)
}

// Value implements the driver.Valuer interface
func (d ITPData) Value() (driver.Value, error) {
	if d == nil {
		return json.Marshal(make(map[string]interface{}))
	}
	return json.Marshal(d)
}

// GormDataType defines the data type for GORM
func (ITPData) GormDataType() string {
	return "jsonb"
}

// ITPInstance is one checklist filled in against one lot. Data is the only
// mutable inspection content; completion percentage and inspection status
// are derived and recomputed on every write.
type ITPInstance struct {
	ID             uuid.UUID     `gorm:"type:uuid;primary_key;default:gen_random_uuid()" json:"id"`
	OrganizationID uuid.UUID     `gorm:"type:uuid;not null;index" json:"organization_id"`
	ProjectID      uuid.UUID     `gorm:"type:uuid;not null;index" json:"project_id"`
	LotID          *uuid.UUID    `gorm:"type:uuid;index" json:"lot_id,omitempty"`
	TemplateID     uuid.UUID     `gorm:"type:uuid;not null;index" json:"template_id"`
	Template       *ITPTemplate  `gorm:"foreignKey:TemplateID" json:"template,omitempty"`

	Data ITPData `gorm:"type:jsonb;not null;default:'{}'" json:"data"`

	// Derived - never hand-edited. Approved/rejected are administrative
	// sign-offs and survive recomputation.
	CompletionPercentage int    `gorm:"default:0" json:"completion_percentage"`
	InspectionStatus     string `gorm:"size:50;not null;default:'draft';index" json:"inspection_status"`

	// Optimistic concurrency: bumped on every persisted update
	Version int `gorm:"default:1" json:"version"`

	CreatedBy      string    `gorm:"size:255;not null" json:"created_by"`
	LastModifiedBy string    `gorm:"size:255" json:"last_modified_by,omitempty"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// TableName specifies the table name for ITPInstance
func (ITPInstance) TableName() string {
	return "itp_instances"
}

// ITPInstanceDTO is the response shape for an ITP instance.
type ITPInstanceDTO struct {
	ID                   uuid.UUID  `json:"id"`
	ProjectID            uuid.UUID  `json:"project_id"`
	LotID                *uuid.UUID `json:"lot_id,omitempty"`
	TemplateID           uuid.UUID  `json:"template_id"`
	TemplateName         string     `json:"template_name,omitempty"`
	Data                 ITPData    `json:"data"`
	CompletionPercentage int        `json:"completion_percentage"`
	InspectionStatus     string     `json:"inspection_status"`
	Version              int        `json:"version"`
	CreatedBy            string     `json:"created_by"`
	LastModifiedBy       string     `json:"last_modified_by,omitempty"`
	UpdatedAt            time.Time  `json:"updated_at"`
}

// ToDTO converts an ITPInstance to its response shape.
func (i *ITPInstance) ToDTO() ITPInstanceDTO {
	dto := ITPInstanceDTO{
		ID:                   i.ID,
		ProjectID:            i.ProjectID,
		LotID:                i.LotID,
		TemplateID:           i.TemplateID,
		Data:                 i.Data,
		CompletionPercentage: i.CompletionPercentage,
		InspectionStatus:     i.InspectionStatus,
		Version:              i.Version,
		CreatedBy:            i.CreatedBy,
		LastModifiedBy:       i.LastModifiedBy,
		UpdatedAt:            i.UpdatedAt,
	}

	if i.Template != nil {
		dto.TemplateName = i.Template.Name
	}

	return dto
}
