package db

import (
	"path/filepath"
	"testing"

	"github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"github.com/nebari-dev/taskboard/internal/models"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(filepath.Join(t.TempDir(), "test.db")), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("failed to open test db: %v", err)
	}
	sqlDB, _ := db.DB()
	t.Cleanup(func() { sqlDB.Close() })

	if err := db.AutoMigrate(&models.ServerConfig{}); err != nil {
		t.Fatalf("failed to migrate: %v", err)
	}
	return db
}

func TestGetOrCreateInstanceID_CreatesNewID(t *testing.T) {
	db := setupTestDB(t)

	instanceID, err := GetOrCreateInstanceID(db)
	if err != nil {
		t.Fatalf("GetOrCreateInstanceID failed: %v", err)
	}

	if _, err := uuid.Parse(instanceID); err != nil {
		t.Errorf("instance ID is not a valid UUID: %v", err)
	}

	var config models.ServerConfig
	if err := db.Where("key = ?", models.ServerConfigKeyInstanceID).First(&config).Error; err != nil {
		t.Fatalf("failed to query server config: %v", err)
	}
	if config.Value != instanceID {
		t.Errorf("stored instance ID mismatch: got %s, want %s", config.Value, instanceID)
	}
}

func TestGetOrCreateInstanceID_ReturnsExistingID(t *testing.T) {
	db := setupTestDB(t)

	existingID := "existing-instance-id-123"
	if err := db.Create(&models.ServerConfig{Key: models.ServerConfigKeyInstanceID, Value: existingID}).Error; err != nil {
		t.Fatalf("failed to create existing instance ID: %v", err)
	}

	instanceID, err := GetOrCreateInstanceID(db)
	if err != nil {
		t.Fatalf("GetOrCreateInstanceID failed: %v", err)
	}
	if instanceID != existingID {
		t.Errorf("expected existing ID %s, got %s", existingID, instanceID)
	}
}

func TestGetOrCreateInstanceID_Idempotent(t *testing.T) {
	db := setupTestDB(t)

	id1, err := GetOrCreateInstanceID(db)
	if err != nil {
		t.Fatalf("first call failed: %v", err)
	}
	id2, err := GetOrCreateInstanceID(db)
	if err != nil {
		t.Fatalf("second call failed: %v", err)
	}
	if id1 != id2 {
		t.Errorf("instance ID changed between calls: %s, %s", id1, id2)
	}
}
