package models

import "time"

// Role is either a global role (a user's instance-wide role) or a project
// role (a user's role inside one project). The permissions a role holds are
// kept as casbin policies, see internal/rbac. Roles are deleted outright so a
// name frees up as soon as its role is gone.
type Role struct {
	ID          uint            `gorm:"primarykey" json:"id"`
	Name        string          `gorm:"uniqueIndex;not null" json:"name"`
	Description string          `json:"description"`
	Scope       PermissionScope `gorm:"not null;default:'global'" json:"scope"`
	IsImmutable bool            `gorm:"not null;default:false" json:"is_immutable"`
	CreatedAt   time.Time       `json:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at"`
}
