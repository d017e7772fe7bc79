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

// BoardService contains the business logic for boards and their stages.
type BoardService struct {
	*base
}

// ListBoards returns the boards of a project, default board first.
func (s *BoardService) ListBoards(ctx context.Context, userID, projectID uuid.UUID) ([]models.Board, error) {
	project, err := s.loadProject(ctx, projectID)
	if err != nil {
		return nil, err
	}
	if err := s.requireProject(ctx, userID, rbac.PermProjectRead, project.ID); err != nil {
		return nil, err
	}

	var boards []models.Board
	err = s.DB.WithContext(ctx).
		Where("project_id = ?", project.ID).
		Order("is_default DESC, created_at ASC").
		Find(&boards).Error
	if err != nil {
		return nil, err
	}
	return boards, nil
}

// CreateBoard adds a board to a project.
func (s *BoardService) CreateBoard(ctx context.Context, userID, projectID uuid.UUID, name string) (*models.Board, error) {
	project, err := s.loadProject(ctx, projectID)
	if err != nil {
		return nil, err
	}
	if err := s.requireProject(ctx, userID, rbac.PermBoardsCreate, project.ID); err != nil {
		return nil, err
	}
	if strings.TrimSpace(name) == "" {
		return nil, &ValidationError{Message: "board name is required"}
	}

	board := models.Board{ProjectID: project.ID, Name: strings.TrimSpace(name)}
	err = s.transaction(ctx, func(tx *gorm.DB) error {
		if err := tx.Create(&board).Error; err != nil {
			return fmt.Errorf("create board: %w", err)
		}
		return audit.Log(tx, userID, audit.ActionCreateBoard, audit.Resource("board", board.ID), map[string]interface{}{
			"project_id": project.ID,
			"name":       board.Name,
		})
	})
	if err != nil {
		return nil, err
	}
	return &board, nil
}

// UpdateBoard renames a board or makes it the project's default.
func (s *BoardService) UpdateBoard(ctx context.Context, userID, boardID uuid.UUID, req UpdateBoardRequest) (*models.Board, error) {
	board, err := s.loadBoard(ctx, boardID)
	if err != nil {
		return nil, err
	}
	if err := s.requireProject(ctx, userID, rbac.PermBoardsUpdate, board.ProjectID); err != nil {
		return nil, err
	}
	if req.Name != nil && strings.TrimSpace(*req.Name) == "" {
		return nil, &ValidationError{Message: "board name is required"}
	}

	err = s.transaction(ctx, func(tx *gorm.DB) error {
		updates := map[string]interface{}{}
		if req.Name != nil {
			updates["name"] = strings.TrimSpace(*req.Name)
		}
		if req.IsDefault && !board.IsDefault {
			err := tx.Model(&models.Board{}).
				Where("project_id = ? AND is_default = ?", board.ProjectID, true).
				Update("is_default", false).Error
			if err != nil {
				return fmt.Errorf("clear default board: %w", err)
			}
			updates["is_default"] = true
		}
		if len(updates) == 0 {
			return nil
		}

		if err := tx.Model(board).Updates(updates).Error; err != nil {
			return fmt.Errorf("update board: %w", err)
		}
		if req.Name != nil {
			board.Name = strings.TrimSpace(*req.Name)
		}
		board.IsDefault = board.IsDefault || req.IsDefault
		return audit.Log(tx, userID, audit.ActionUpdateBoard, audit.Resource("board", board.ID), updates)
	})
	if err != nil {
		return nil, err
	}
	return board, nil
}

// DeleteBoard soft-deletes a board with its stages and tasks. The default
// board cannot be deleted.
func (s *BoardService) DeleteBoard(ctx context.Context, userID, boardID uuid.UUID) error {
	board, err := s.loadBoard(ctx, boardID)
	if err != nil {
		return err
	}
	if err := s.requireProject(ctx, userID, rbac.PermBoardsDelete, board.ProjectID); err != nil {
		return err
	}
	if board.IsDefault {
		return &ValidationError{Message: "the default board cannot be deleted"}
	}

	return s.transaction(ctx, func(tx *gorm.DB) error {
		if err := tx.Where("board_id = ?", board.ID).Delete(&models.Task{}).Error; err != nil {
			return fmt.Errorf("delete tasks: %w", err)
		}
		if err := tx.Where("board_id = ?", board.ID).Delete(&models.Stage{}).Error; err != nil {
			return fmt.Errorf("delete stages: %w", err)
		}
		if err := tx.Delete(board).Error; err != nil {
			return fmt.Errorf("delete board: %w", err)
		}
		return audit.Log(tx, userID, audit.ActionDeleteBoard, audit.Resource("board", board.ID), map[string]interface{}{
			"project_id": board.ProjectID,
			"name":       board.Name,
		})
	})
}

// ListStages returns the stages of a board in rank order.
func (s *BoardService) ListStages(ctx context.Context, userID, boardID uuid.UUID) ([]models.Stage, error) {
	board, err := s.loadBoard(ctx, boardID)
	if err != nil {
		return nil, err
	}
	if err := s.requireProject(ctx, userID, rbac.PermProjectRead, board.ProjectID); err != nil {
		return nil, err
	}

	var stages []models.Stage
	if err := s.DB.WithContext(ctx).Where("board_id = ?", board.ID).Order("position ASC").Find(&stages).Error; err != nil {
		return nil, err
	}
	return stages, nil
}

// CreateStage appends a stage to a board.
func (s *BoardService) CreateStage(ctx context.Context, userID, boardID uuid.UUID, name string) (*models.Stage, error) {
	board, err := s.loadBoard(ctx, boardID)
	if err != nil {
		return nil, err
	}
	if err := s.requireProject(ctx, userID, rbac.PermStagesCreate, board.ProjectID); err != nil {
		return nil, err
	}
	if strings.TrimSpace(name) == "" {
		return nil, &ValidationError{Message: "stage name is required"}
	}

	stage := models.Stage{BoardID: board.ID, Name: strings.TrimSpace(name)}
	err = s.transaction(ctx, func(tx *gorm.DB) error {
		index, err := ordering.NextAppendIndex(ctx, ordering.NewGormStore(tx, ordering.Stages), board.ID)
		if err != nil {
			return err
		}
		stage.Index = index

		if err := tx.Create(&stage).Error; err != nil {
			return fmt.Errorf("create stage: %w", err)
		}
		return audit.Log(tx, userID, audit.ActionCreateStage, audit.Resource("stage", stage.ID), map[string]interface{}{
			"board_id": board.ID,
			"name":     stage.Name,
			"index":    stage.Index,
		})
	})
	if err != nil {
		return nil, err
	}
	return &stage, nil
}

// UpdateStage renames a stage.
func (s *BoardService) UpdateStage(ctx context.Context, userID, stageID uuid.UUID, name string) (*models.Stage, error) {
	stage, board, err := s.loadStage(ctx, stageID)
	if err != nil {
		return nil, err
	}
	if err := s.requireProject(ctx, userID, rbac.PermStagesUpdate, board.ProjectID); err != nil {
		return nil, err
	}
	if strings.TrimSpace(name) == "" {
		return nil, &ValidationError{Message: "stage name is required"}
	}

	name = strings.TrimSpace(name)
	err = s.transaction(ctx, func(tx *gorm.DB) error {
		if err := tx.Model(stage).Update("name", name).Error; err != nil {
			return fmt.Errorf("update stage: %w", err)
		}
		stage.Name = name
		return audit.Log(tx, userID, audit.ActionUpdateStage, audit.Resource("stage", stage.ID), map[string]interface{}{
			"name": stage.Name,
		})
	})
	if err != nil {
		return nil, err
	}
	return stage, nil
}

// MoveStage places a stage right after precedingID on the same board, or
// first when precedingID is nil.
func (s *BoardService) MoveStage(ctx context.Context, userID, stageID uuid.UUID, precedingID *uuid.UUID) (*models.Stage, error) {
	stage, board, err := s.loadStage(ctx, stageID)
	if err != nil {
		return nil, err
	}
	if err := s.requireProject(ctx, userID, rbac.PermStagesUpdate, board.ProjectID); err != nil {
		return nil, err
	}

	err = s.transaction(ctx, func(tx *gorm.DB) error {
		if err := ordering.Move(ctx, ordering.NewGormStore(tx, ordering.Stages), board.ID, stage.ID, precedingID); err != nil {
			return orderingError(err)
		}
		if err := first(tx, stage, stage.ID); err != nil {
			return err
		}
		return audit.Log(tx, userID, audit.ActionMoveStage, audit.Resource("stage", stage.ID), map[string]interface{}{
			"board_id":     board.ID,
			"preceding_id": precedingID,
			"index":        stage.Index,
		})
	})
	if err != nil {
		return nil, err
	}
	return stage, nil
}

// DeleteStage soft-deletes an empty stage and closes the gap it leaves.
// Stages that still hold tasks are refused.
func (s *BoardService) DeleteStage(ctx context.Context, userID, stageID uuid.UUID) error {
	stage, board, err := s.loadStage(ctx, stageID)
	if err != nil {
		return err
	}
	if err := s.requireProject(ctx, userID, rbac.PermStagesDelete, board.ProjectID); err != nil {
		return err
	}

	return s.transaction(ctx, func(tx *gorm.DB) error {
		st := ordering.NewGormStore(tx, ordering.Stages)
		if err := st.Lock(ctx, board.ID); err != nil {
			return err
		}
		entry, err := st.Get(ctx, stage.ID)
		if err != nil {
			return orderingError(err)
		}

		var tasks int64
		if err := tx.Model(&models.Task{}).Where("stage_id = ?", stage.ID).Count(&tasks).Error; err != nil {
			return fmt.Errorf("count tasks: %w", err)
		}
		if tasks > 0 {
			return &ValidationError{Message: "a stage that has tasks in it cannot be deleted"}
		}

		if err := tx.Delete(stage).Error; err != nil {
			return fmt.Errorf("delete stage: %w", err)
		}
		if err := ordering.CompactAfterRemoval(ctx, st, board.ID, entry.Index); err != nil {
			return err
		}
		return audit.Log(tx, userID, audit.ActionDeleteStage, audit.Resource("stage", stage.ID), map[string]interface{}{
			"board_id": board.ID,
			"name":     stage.Name,
		})
	})
}
