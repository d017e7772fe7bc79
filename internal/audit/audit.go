package audit

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/nebari-dev/taskboard/internal/models"
	"gorm.io/gorm"
)

// Log records an audit log entry. Pass the transaction of the change being
// audited so the row commits or rolls back with it.
func Log(db *gorm.DB, userID uuid.UUID, action, resource string, details interface{}) error {
	detailsJSON, err := json.Marshal(details)
	if err != nil {
		detailsJSON = []byte("{}")
	}

	log := models.AuditLog{
		UserID:      userID,
		Action:      action,
		Resource:    resource,
		DetailsJSON: string(detailsJSON),
		Timestamp:   time.Now(),
	}

	return db.Create(&log).Error
}

// Resource formats a resource reference such as "stage:<uuid>".
func Resource(kind string, id interface{}) string {
	return fmt.Sprintf("%s:%v", kind, id)
}

// Audit actions constants
const (
	ActionCreateUser       = "create_user"
	ActionUpdateUser       = "update_user"
	ActionDeleteUser       = "delete_user"
	ActionSetUserRole      = "set_user_role"
	ActionUpdateInstance   = "update_instance"
	ActionCreateProject    = "create_project"
	ActionUpdateProject    = "update_project"
	ActionDeleteProject    = "delete_project"
	ActionAddMember        = "add_member"
	ActionRemoveMember     = "remove_member"
	ActionChangeMemberRole = "change_member_role"
	ActionCreateBoard      = "create_board"
	ActionUpdateBoard      = "update_board"
	ActionDeleteBoard      = "delete_board"
	ActionCreateStage      = "create_stage"
	ActionUpdateStage      = "update_stage"
	ActionMoveStage        = "move_stage"
	ActionDeleteStage      = "delete_stage"
	ActionCreateTask       = "create_task"
	ActionUpdateTask       = "update_task"
	ActionMoveTask         = "move_task"
	ActionDeleteTask       = "delete_task"
	ActionAddAssignee      = "add_assignee"
	ActionRemoveAssignee   = "remove_assignee"
	ActionCreateRole       = "create_role"
	ActionUpdateRole       = "update_role"
	ActionDeleteRole       = "delete_role"
	ActionGrantPermission  = "grant_permission"
	ActionRevokePermission = "revoke_permission"
)
