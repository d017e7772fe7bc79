package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func chdir(t *testing.T, dir string) {
	t.Helper()
	wd, err := os.Getwd()
	if err != nil {
		t.Fatalf("getwd: %v", err)
	}
	if err := os.Chdir(dir); err != nil {
		t.Fatalf("chdir: %v", err)
	}
	t.Cleanup(func() { os.Chdir(wd) })
}

func TestLoadDefaults(t *testing.T) {
	chdir(t, t.TempDir())

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.Database.Driver != "sqlite" {
		t.Errorf("expected sqlite driver, got %q", cfg.Database.Driver)
	}
	if cfg.Users.OwnerRole != "Project Owner" {
		t.Errorf("expected owner role 'Project Owner', got %q", cfg.Users.OwnerRole)
	}
	if cfg.Users.DefaultProjectRole != "Project Member" {
		t.Errorf("expected default project role 'Project Member', got %q", cfg.Users.DefaultProjectRole)
	}
	if cfg.Board.DefaultName != "Main" {
		t.Errorf("expected default board 'Main', got %q", cfg.Board.DefaultName)
	}
	if cfg.RBAC.MembershipCacheTTL != 30*time.Second {
		t.Errorf("expected 30s cache ttl, got %s", cfg.RBAC.MembershipCacheTTL)
	}
}

func TestLoadEnvOverrides(t *testing.T) {
	chdir(t, t.TempDir())
	t.Setenv("TASKBOARD_DATABASE_DRIVER", "postgres")
	t.Setenv("TASKBOARD_BOARD_DEFAULT_NAME", "Backlog")
	t.Setenv("TASKBOARD_RBAC_MEMBERSHIP_CACHE_SIZE", "0")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.Database.Driver != "postgres" {
		t.Errorf("expected postgres driver, got %q", cfg.Database.Driver)
	}
	if cfg.Board.DefaultName != "Backlog" {
		t.Errorf("expected board name from env, got %q", cfg.Board.DefaultName)
	}
	if cfg.RBAC.MembershipCacheSize != 0 {
		t.Errorf("expected cache disabled, got %d", cfg.RBAC.MembershipCacheSize)
	}
}

func TestLoadConfigFile(t *testing.T) {
	dir := t.TempDir()
	chdir(t, dir)

	data := []byte("log:\n  level: debug\nusers:\n  default_role: Viewer\n")
	if err := os.WriteFile(filepath.Join(dir, "config.yaml"), data, 0644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Log.Level != "debug" {
		t.Errorf("expected debug level, got %q", cfg.Log.Level)
	}
	if cfg.Users.DefaultRole != "Viewer" {
		t.Errorf("expected Viewer default role, got %q", cfg.Users.DefaultRole)
	}
}
