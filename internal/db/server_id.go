package db

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/nebari-dev/taskboard/internal/models"
	"gorm.io/gorm"
)

// GetOrCreateInstanceID retrieves the instance ID from the database, or
// generates and stores a new one if it doesn't exist. Call it after
// migrations.
func GetOrCreateInstanceID(db *gorm.DB) (string, error) {
	var config models.ServerConfig

	err := db.Where("key = ?", models.ServerConfigKeyInstanceID).First(&config).Error
	if err == nil {
		return config.Value, nil
	}

	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return "", fmt.Errorf("failed to query server config: %w", err)
	}

	instanceID := uuid.New().String()
	config = models.ServerConfig{
		Key:   models.ServerConfigKeyInstanceID,
		Value: instanceID,
	}

	if err := db.Create(&config).Error; err != nil {
		return "", fmt.Errorf("failed to create instance ID: %w", err)
	}

	slog.Info("Generated new instance ID", "instance_id", instanceID)
	return instanceID, nil
}
