package service

import (
	"github.com/google/uuid"
	"github.com/nebari-dev/taskboard/internal/models"
)

// CreateProjectRequest holds parameters for creating a project.
type CreateProjectRequest struct {
	Name        string
	Slug        string
	Description string
}

// CreateProjectResult is returned after a project and its default board are created.
type CreateProjectResult struct {
	Project *models.Project
	Board   *models.Board
}

// UpdateProjectRequest holds the project fields to change. Nil fields are left alone.
type UpdateProjectRequest struct {
	Name        *string
	Slug        *string
	Description *string
}

// MemberRequest names a user and, optionally, a project role. An empty role
// name means the configured default project role.
type MemberRequest struct {
	Username string
	RoleName string
}

// UpdateBoardRequest holds the board fields to change. Setting IsDefault
// makes the board the project's default; it cannot be unset directly.
type UpdateBoardRequest struct {
	Name      *string
	IsDefault bool
}

// CreateTaskRequest holds parameters for creating a task.
type CreateTaskRequest struct {
	StageID     uuid.UUID
	Title       string
	Description string
}

// UpdateTaskRequest holds the task fields to change. Nil fields are left alone.
type UpdateTaskRequest struct {
	Title       *string
	Description *string
}

// MoveTaskRequest places a task after PrecedingID, or first when it is nil.
// StageID moves the task to another stage of the same board.
type MoveTaskRequest struct {
	StageID     *uuid.UUID
	PrecedingID *uuid.UUID
}

// CreateRoleRequest holds parameters for creating a role.
type CreateRoleRequest struct {
	Name        string
	Description string
	Scope       models.PermissionScope
	Permissions []string
}

// UpdateRoleRequest holds the role fields to change. Nil fields are left alone.
type UpdateRoleRequest struct {
	Name        *string
	Description *string
}

// RoleWithPermissions is a role together with the permissions it holds.
type RoleWithPermissions struct {
	Role        models.Role
	Permissions []string
}

// CreateUserRequest holds parameters for creating a user. An empty RoleName
// means the configured default global role; an empty Password means one is
// generated and returned once.
type CreateUserRequest struct {
	Username string
	Email    string
	FullName string
	Password string
	RoleName string
}

// CreateUserResult is returned after a user is created. Password is only set
// when it was generated.
type CreateUserResult struct {
	User     *models.User
	Password string
}

// UpdateUserRequest holds the user fields to change. Nil fields are left alone.
type UpdateUserRequest struct {
	Email    *string
	FullName *string
	Password *string
}

// Instance describes this installation.
type Instance struct {
	ID                 string
	Name               string
	AdministratorEmail string
}

// UpdateInstanceRequest holds the instance fields to change. Nil fields are left alone.
type UpdateInstanceRequest struct {
	Name               *string
	AdministratorEmail *string
}
