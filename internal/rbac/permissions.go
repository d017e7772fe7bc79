package rbac

// Global permissions.
const (
	PermProfileRead     = "profile:read"
	PermProfileUpdate   = "profile:update"
	PermUsersCreate     = "users:create"
	PermUsersRead       = "users:read"
	PermUsersReadFull   = "users:read:full"
	PermUsersUpdate     = "users:update"
	PermUsersDelete     = "users:delete"
	PermUsersUpdateRole = "users:update:role"
	PermInstanceUpdate  = "instance:update"
	PermRolesCreate     = "roles:create"
	PermRolesRead       = "roles:read"
	PermRolesUpdate     = "roles:update"
	PermRolesDelete     = "roles:delete"
	PermProjectsCreate  = "projects:create"
	PermProjectsRead    = "projects:read"
	PermProjectsUpdate  = "projects:update"
	PermProjectsDelete  = "projects:delete"
)

// Project permissions.
const (
	PermProjectRead     = "project:read"
	PermProjectUpdate   = "project:update"
	PermProjectDelete   = "project:delete"
	PermTeamUpdate      = "team:update"
	PermBoardsCreate    = "boards:create"
	PermBoardsUpdate    = "boards:update"
	PermBoardsDelete    = "boards:delete"
	PermStagesCreate    = "stages:create"
	PermStagesUpdate    = "stages:update"
	PermStagesDelete    = "stages:delete"
	PermTasksCreate     = "tasks:create"
	PermTasksUpdate     = "tasks:update"
	PermTasksDelete     = "tasks:delete"
	PermTasksMove       = "tasks:move"
	PermAssigneesUpdate = "assignees:update"
)
