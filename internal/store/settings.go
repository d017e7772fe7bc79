package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/nebari-dev/taskboard/internal/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Setting returns the instance setting stored under key. ok is false when
// the key was never written.
func (s *Store) Setting(ctx context.Context, key string) (value string, ok bool, err error) {
	var row models.ServerConfig
	err = s.conn(ctx).Where("key = ?", key).First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("reading setting %s: %w", key, err)
	}
	return row.Value, true, nil
}

// PutSetting writes value under key, replacing any previous value.
func (s *Store) PutSetting(ctx context.Context, key, value string) error {
	row := models.ServerConfig{Key: key, Value: value}
	err := s.conn(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "key"}},
		DoUpdates: clause.AssignmentColumns([]string{"value", "updated_at"}),
	}).Create(&row).Error
	if err != nil {
		return fmt.Errorf("writing setting %s: %w", key, err)
	}
	return nil
}
