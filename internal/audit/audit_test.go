package audit

import (
	"encoding/json"
	"path/filepath"
	"testing"

	"github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"github.com/nebari-dev/taskboard/internal/models"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func TestLog(t *testing.T) {
	db, err := gorm.Open(sqlite.Open(filepath.Join(t.TempDir(), "audit.db")), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	if err := db.AutoMigrate(&models.AuditLog{}); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	userID := uuid.New()
	stageID := uuid.New()
	details := map[string]interface{}{"index": 2}
	if err := Log(db, userID, ActionMoveStage, Resource("stage", stageID), details); err != nil {
		t.Fatalf("Log: %v", err)
	}

	var row models.AuditLog
	if err := db.First(&row).Error; err != nil {
		t.Fatalf("load row: %v", err)
	}
	if row.UserID != userID || row.Action != ActionMoveStage {
		t.Errorf("unexpected row: %+v", row)
	}
	if row.Resource != "stage:"+stageID.String() {
		t.Errorf("unexpected resource %q", row.Resource)
	}

	var got map[string]int
	if err := json.Unmarshal([]byte(row.DetailsJSON), &got); err != nil {
		t.Fatalf("details: %v", err)
	}
	if got["index"] != 2 {
		t.Errorf("expected index 2 in details, got %v", got)
	}
}

func TestResource(t *testing.T) {
	if got := Resource("role", uint(3)); got != "role:3" {
		t.Errorf("got %q", got)
	}
	if got := Resource("project", "abc"); got != "project:abc" {
		t.Errorf("got %q", got)
	}
}
