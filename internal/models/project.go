package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Project owns boards and a team of members.
type Project struct {
	ID          uuid.UUID      `gorm:"type:text;primary_key" json:"id"`
	Slug        string         `gorm:"size:10;index" json:"slug"`
	Name        string         `gorm:"not null" json:"name"`
	Description string         `json:"description"`
	CreatedAt   time.Time      `json:"created_at"`
	UpdatedAt   time.Time      `json:"updated_at"`
	DeletedAt   gorm.DeletedAt `gorm:"index" json:"-"`
}

// BeforeCreate hook to generate UUID
func (p *Project) BeforeCreate(tx *gorm.DB) error {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	return nil
}

// ProjectMembership binds a user to a project with a project-scoped role.
// Deleting a membership removes the row; there is no soft delete so the
// (project, user) pair can be reused when someone rejoins.
type ProjectMembership struct {
	ID        uint      `gorm:"primarykey" json:"id"`
	ProjectID uuid.UUID `gorm:"type:text;not null;uniqueIndex:idx_membership" json:"project_id"`
	Project   Project   `gorm:"foreignKey:ProjectID" json:"project,omitempty"`
	UserID    uuid.UUID `gorm:"type:text;not null;uniqueIndex:idx_membership;index" json:"user_id"`
	User      User      `gorm:"foreignKey:UserID" json:"user,omitempty"`
	RoleID    uint      `gorm:"not null;index" json:"role_id"`
	Role      Role      `gorm:"foreignKey:RoleID" json:"role,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
