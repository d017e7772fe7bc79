package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/nebari-dev/taskboard/internal/audit"
	"github.com/nebari-dev/taskboard/internal/models"
	"github.com/nebari-dev/taskboard/internal/ordering"
	"github.com/nebari-dev/taskboard/internal/rbac"
	"gorm.io/gorm"
)

// TaskService contains the business logic for tasks.
type TaskService struct {
	*base
}

// Get returns a single task with its assignees.
func (s *TaskService) Get(ctx context.Context, userID, taskID uuid.UUID) (*models.Task, error) {
	task, board, err := s.loadTask(ctx, taskID)
	if err != nil {
		return nil, err
	}
	if err := s.requireProject(ctx, userID, rbac.PermProjectRead, board.ProjectID); err != nil {
		return nil, err
	}
	return task, nil
}

// List returns the tasks of a stage in rank order.
func (s *TaskService) List(ctx context.Context, userID, stageID uuid.UUID) ([]models.Task, error) {
	stage, board, err := s.loadStage(ctx, stageID)
	if err != nil {
		return nil, err
	}
	if err := s.requireProject(ctx, userID, rbac.PermProjectRead, board.ProjectID); err != nil {
		return nil, err
	}

	var tasks []models.Task
	err = s.DB.WithContext(ctx).
		Preload("Assignees").
		Where("stage_id = ?", stage.ID).
		Order("position ASC").
		Find(&tasks).Error
	if err != nil {
		return nil, err
	}
	return tasks, nil
}

// Create appends a task to a stage. Task numbers count up per project and
// are never reused, even after deletion.
func (s *TaskService) Create(ctx context.Context, userID uuid.UUID, req CreateTaskRequest) (*models.Task, error) {
	stage, board, err := s.loadStage(ctx, req.StageID)
	if err != nil {
		return nil, err
	}
	if err := s.requireProject(ctx, userID, rbac.PermTasksCreate, board.ProjectID); err != nil {
		return nil, err
	}
	if strings.TrimSpace(req.Title) == "" {
		return nil, &ValidationError{Message: "task title is required"}
	}

	task := models.Task{
		BoardID:     board.ID,
		StageID:     stage.ID,
		Title:       strings.TrimSpace(req.Title),
		Description: req.Description,
	}
	err = s.transaction(ctx, func(tx *gorm.DB) error {
		// The project row lock serializes numbering on PostgreSQL.
		if _, err := s.store.WithTx(tx).LockProject(ctx, board.ProjectID); err != nil {
			return err
		}

		if err := lockStage(ctx, tx, board.ID, stage.ID); err != nil {
			return err
		}

		var maxNumber int
		err := tx.Unscoped().Model(&models.Task{}).
			Select("COALESCE(MAX(tasks.number), 0)").
			Joins("JOIN boards ON boards.id = tasks.board_id").
			Where("boards.project_id = ?", board.ProjectID).
			Scan(&maxNumber).Error
		if err != nil {
			return fmt.Errorf("next task number: %w", err)
		}
		task.Number = maxNumber + 1

		index, err := ordering.NextAppendIndex(ctx, ordering.NewGormStore(tx, ordering.Tasks), stage.ID)
		if err != nil {
			return err
		}
		task.Index = index

		if err := tx.Create(&task).Error; err != nil {
			return fmt.Errorf("create task: %w", err)
		}
		return audit.Log(tx, userID, audit.ActionCreateTask, audit.Resource("task", task.ID), map[string]interface{}{
			"stage_id": stage.ID,
			"number":   task.Number,
			"title":    task.Title,
		})
	})
	if err != nil {
		return nil, err
	}
	return &task, nil
}

// Update changes the title or description of a task.
func (s *TaskService) Update(ctx context.Context, userID, taskID uuid.UUID, req UpdateTaskRequest) (*models.Task, error) {
	task, board, err := s.loadTask(ctx, taskID)
	if err != nil {
		return nil, err
	}
	if err := s.requireProject(ctx, userID, rbac.PermTasksUpdate, board.ProjectID); err != nil {
		return nil, err
	}
	if req.Title != nil && strings.TrimSpace(*req.Title) == "" {
		return nil, &ValidationError{Message: "task title is required"}
	}

	updates := map[string]interface{}{}
	if req.Title != nil {
		updates["title"] = strings.TrimSpace(*req.Title)
	}
	if req.Description != nil {
		updates["description"] = *req.Description
	}
	if len(updates) == 0 {
		return task, nil
	}

	err = s.transaction(ctx, func(tx *gorm.DB) error {
		if err := tx.Model(task).Omit("Assignees").Updates(updates).Error; err != nil {
			return fmt.Errorf("update task: %w", err)
		}
		return audit.Log(tx, userID, audit.ActionUpdateTask, audit.Resource("task", task.ID), updates)
	})
	if err != nil {
		return nil, err
	}

	if req.Title != nil {
		task.Title = strings.TrimSpace(*req.Title)
	}
	if req.Description != nil {
		task.Description = *req.Description
	}
	return task, nil
}

// Move places a task right after PrecedingID, or first when it is nil,
// optionally in another stage of the same board.
func (s *TaskService) Move(ctx context.Context, userID, taskID uuid.UUID, req MoveTaskRequest) (*models.Task, error) {
	task, board, err := s.loadTask(ctx, taskID)
	if err != nil {
		return nil, err
	}
	if err := s.requireProject(ctx, userID, rbac.PermTasksMove, board.ProjectID); err != nil {
		return nil, err
	}

	target := task.StageID
	if req.StageID != nil {
		stage, stageBoard, err := s.loadStage(ctx, *req.StageID)
		if err != nil {
			return nil, err
		}
		if stageBoard.ID != board.ID {
			return nil, &ValidationError{Message: "a task can only move between stages of its own board"}
		}
		target = stage.ID
	}

	err = s.transaction(ctx, func(tx *gorm.DB) error {
		from := task.StageID
		if err := lockStage(ctx, tx, board.ID, target); err != nil {
			return err
		}
		if err := ordering.Move(ctx, ordering.NewGormStore(tx, ordering.Tasks), target, task.ID, req.PrecedingID); err != nil {
			return orderingError(err)
		}
		if err := first(tx, task, task.ID); err != nil {
			return err
		}
		return audit.Log(tx, userID, audit.ActionMoveTask, audit.Resource("task", task.ID), map[string]interface{}{
			"from_stage_id": from,
			"to_stage_id":   target,
			"preceding_id":  req.PrecedingID,
			"index":         task.Index,
		})
	})
	if err != nil {
		return nil, err
	}
	return task, nil
}

// Delete soft-deletes a task and closes the gap it leaves in its stage.
func (s *TaskService) Delete(ctx context.Context, userID, taskID uuid.UUID) error {
	task, board, err := s.loadTask(ctx, taskID)
	if err != nil {
		return err
	}
	if err := s.requireProject(ctx, userID, rbac.PermTasksDelete, board.ProjectID); err != nil {
		return err
	}

	return s.transaction(ctx, func(tx *gorm.DB) error {
		st := ordering.NewGormStore(tx, ordering.Tasks)
		// Re-read under the lock: a concurrent move may have changed the stage.
		entry, err := st.Get(ctx, task.ID)
		if err != nil {
			return orderingError(err)
		}
		if err := st.Lock(ctx, entry.Scope); err != nil {
			return err
		}
		if entry, err = st.Get(ctx, task.ID); err != nil {
			return orderingError(err)
		}

		if err := tx.Delete(&models.Task{}, "id = ?", task.ID).Error; err != nil {
			return fmt.Errorf("delete task: %w", err)
		}
		if err := ordering.CompactAfterRemoval(ctx, st, entry.Scope, entry.Index); err != nil {
			return err
		}
		return audit.Log(tx, userID, audit.ActionDeleteTask, audit.Resource("task", task.ID), map[string]interface{}{
			"stage_id": entry.Scope,
			"number":   task.Number,
		})
	})
}

// AddAssignee assigns a user to a task.
func (s *TaskService) AddAssignee(ctx context.Context, userID, taskID uuid.UUID, username string) (*models.Task, error) {
	task, board, err := s.loadTask(ctx, taskID)
	if err != nil {
		return nil, err
	}
	if err := s.requireProject(ctx, userID, rbac.PermAssigneesUpdate, board.ProjectID); err != nil {
		return nil, err
	}
	user, err := s.userByName(ctx, s.store, username)
	if err != nil {
		return nil, err
	}

	for _, a := range task.Assignees {
		if a.ID == user.ID {
			return nil, &ConflictError{Message: fmt.Sprintf("user %q is already assigned to this task", username)}
		}
	}

	err = s.transaction(ctx, func(tx *gorm.DB) error {
		if err := tx.Model(task).Association("Assignees").Append(user); err != nil {
			return fmt.Errorf("add assignee: %w", err)
		}
		return audit.Log(tx, userID, audit.ActionAddAssignee, audit.Resource("task", task.ID), map[string]interface{}{
			"user": username,
		})
	})
	if err != nil {
		return nil, err
	}
	return task, nil
}

// RemoveAssignee unassigns a user from a task.
func (s *TaskService) RemoveAssignee(ctx context.Context, userID, taskID uuid.UUID, username string) (*models.Task, error) {
	task, board, err := s.loadTask(ctx, taskID)
	if err != nil {
		return nil, err
	}
	if err := s.requireProject(ctx, userID, rbac.PermAssigneesUpdate, board.ProjectID); err != nil {
		return nil, err
	}

	var assignee *models.User
	for i := range task.Assignees {
		if task.Assignees[i].Username == username {
			assignee = &task.Assignees[i]
			break
		}
	}
	if assignee == nil {
		return nil, &ValidationError{Message: fmt.Sprintf("user %q is not assigned to this task", username)}
	}

	err = s.transaction(ctx, func(tx *gorm.DB) error {
		if err := tx.Model(task).Association("Assignees").Delete(assignee); err != nil {
			return fmt.Errorf("remove assignee: %w", err)
		}
		return audit.Log(tx, userID, audit.ActionRemoveAssignee, audit.Resource("task", task.ID), map[string]interface{}{
			"user": username,
		})
	})
	if err != nil {
		return nil, err
	}
	return task, nil
}
