package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Board groups ordered stages inside a project.
type Board struct {
	ID        uuid.UUID      `gorm:"type:text;primary_key" json:"id"`
	ProjectID uuid.UUID      `gorm:"type:text;not null;index" json:"project_id"`
	Name      string         `gorm:"not null" json:"name"`
	IsDefault bool           `gorm:"not null;default:false" json:"is_default"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`
}

// BeforeCreate hook to generate UUID
func (b *Board) BeforeCreate(tx *gorm.DB) error {
	if b.ID == uuid.Nil {
		b.ID = uuid.New()
	}
	return nil
}

// Stage is a column of a board. Index is its 1-based rank among the live
// stages of the same board.
type Stage struct {
	ID        uuid.UUID      `gorm:"type:text;primary_key" json:"id"`
	BoardID   uuid.UUID      `gorm:"type:text;not null;index:idx_stage_rank" json:"board_id"`
	Name      string         `gorm:"not null" json:"name"`
	Index     int            `gorm:"column:position;not null;index:idx_stage_rank" json:"index"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`
}

// BeforeCreate hook to generate UUID
func (s *Stage) BeforeCreate(tx *gorm.DB) error {
	if s.ID == uuid.Nil {
		s.ID = uuid.New()
	}
	return nil
}
