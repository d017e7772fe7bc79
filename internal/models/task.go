package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Task is a card inside a stage. Number is unique per project and never
// reused; Index is the 1-based rank among the live tasks of the stage.
type Task struct {
	ID          uuid.UUID      `gorm:"type:text;primary_key" json:"id"`
	BoardID     uuid.UUID      `gorm:"type:text;not null;index" json:"board_id"`
	StageID     uuid.UUID      `gorm:"type:text;not null;index:idx_task_rank" json:"stage_id"`
	Number      int            `gorm:"not null" json:"number"`
	Title       string         `gorm:"not null" json:"title"`
	Description string         `gorm:"type:text" json:"description"`
	Index       int            `gorm:"column:position;not null;index:idx_task_rank" json:"index"`
	Assignees   []User         `gorm:"many2many:task_assignees" json:"assignees,omitempty"`
	CreatedAt   time.Time      `json:"created_at"`
	UpdatedAt   time.Time      `json:"updated_at"`
	DeletedAt   gorm.DeletedAt `gorm:"index" json:"-"`
}

// BeforeCreate hook to generate UUID
func (t *Task) BeforeCreate(tx *gorm.DB) error {
	if t.ID == uuid.Nil {
		t.ID = uuid.New()
	}
	return nil
}
