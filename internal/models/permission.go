package models

// PermissionScope tells whether a permission is evaluated against a user's
// global role or against their role inside one project.
type PermissionScope string

const (
	ScopeGlobal  PermissionScope = "global"
	ScopeProject PermissionScope = "project"
)

// Permission is a named capability, "<group>:<operation>". Rows are seeded
// from the permission catalog and never edited afterwards.
type Permission struct {
	ID          uint            `gorm:"primarykey" json:"id"`
	Name        string          `gorm:"uniqueIndex;not null" json:"name"`
	Group       string          `gorm:"column:perm_group;not null" json:"group"`
	Operation   string          `gorm:"not null" json:"operation"`
	Scope       PermissionScope `gorm:"not null" json:"scope"`
	Description string          `json:"description"`
}
