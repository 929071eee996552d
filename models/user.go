// models/user.go
package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type User struct {
	ID           uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	Name         string    `gorm:"size:100;not null" json:"name"`
	Email        string    `gorm:"size:100;uniqueIndex;not null" json:"email"`
	Phone        string    `gorm:"size:15" json:"phone,omitempty"`
	PasswordHash string    `gorm:"size:255;not null" json:"-"`
	IsActive     bool      `gorm:"default:true" json:"is_active"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`

	Memberships []OrganizationMember `gorm:"foreignKey:UserID" json:"memberships,omitempty"`
}

func (u *User) BeforeCreate(tx *gorm.DB) (err error) {
	if u.ID == uuid.Nil {
		u.ID = uuid.New()
	}
	return
}

// MembershipIn returns the user's membership in the given organization, or
// nil when the user is not a member.
func (u *User) MembershipIn(orgID uuid.UUID) *OrganizationMember {
	for i := range u.Memberships {
		m := &u.Memberships[i]
		if m.OrganizationID == orgID && m.IsActive {
			return m
		}
	}
	return nil
}
