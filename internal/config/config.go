package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all application configuration
type Config struct {
	Database DatabaseConfig `mapstructure:"database"`
	Log      LogConfig      `mapstructure:"log"`
	Users    UsersConfig    `mapstructure:"users"`
	Board    BoardConfig    `mapstructure:"board"`
	RBAC     RBACConfig     `mapstructure:"rbac"`
}

// DatabaseConfig holds database configuration
type DatabaseConfig struct {
	Driver          string `mapstructure:"driver"`            // "sqlite" or "postgres"
	DSN             string `mapstructure:"dsn"`               // Connection string, empty means the platform data dir
	MaxIdleConns    int    `mapstructure:"max_idle_conns"`    // Maximum idle connections (Postgres)
	MaxOpenConns    int    `mapstructure:"max_open_conns"`    // Maximum open connections (Postgres)
	ConnMaxLifetime int    `mapstructure:"conn_max_lifetime"` // Connection max lifetime in minutes (Postgres)
	Debug           bool   `mapstructure:"debug"`             // Log every SQL statement
}

// LogConfig holds logging configuration
type LogConfig struct {
	Format string `mapstructure:"format"` // "json" or "text"
	Level  string `mapstructure:"level"`  // "debug", "info", "warn", "error"
}

// UsersConfig names the built-in roles handed out by default and holds the
// bootstrap administrator credentials.
type UsersConfig struct {
	AdminUsername      string `mapstructure:"admin_username"`
	AdminEmail         string `mapstructure:"admin_email"`
	AdminPassword      string `mapstructure:"admin_password"`
	AdminRole          string `mapstructure:"admin_role"`           // Global role of the bootstrap admin
	DefaultRole        string `mapstructure:"default_role"`         // Global role of new users
	DefaultProjectRole string `mapstructure:"default_project_role"` // Role of members added without one
	OwnerRole          string `mapstructure:"owner_role"`           // Project role that must never disappear
}

// BoardConfig holds board defaults
type BoardConfig struct {
	DefaultName string `mapstructure:"default_name"` // Name of the board created with each project
}

// RBACConfig holds authorization cache and invalidation settings
type RBACConfig struct {
	MembershipCacheSize int           `mapstructure:"membership_cache_size"` // 0 disables the cache
	MembershipCacheTTL  time.Duration `mapstructure:"membership_cache_ttl"`
	Watcher             string        `mapstructure:"watcher"`     // "none" or "valkey"
	ValkeyAddr          string        `mapstructure:"valkey_addr"` // e.g., "localhost:6379"
	WatcherChannel      string        `mapstructure:"watcher_channel"`
}

// Load reads configuration from file and environment variables
func Load() (*Config, error) {
	v := viper.New()

	// Set defaults for local development
	v.SetDefault("database.driver", "sqlite")
	v.SetDefault("database.dsn", "")
	v.SetDefault("database.max_idle_conns", 10)
	v.SetDefault("database.max_open_conns", 100)
	v.SetDefault("database.conn_max_lifetime", 60) // 60 minutes
	v.SetDefault("database.debug", false)
	v.SetDefault("log.format", "text")
	v.SetDefault("log.level", "info")
	v.SetDefault("users.admin_username", "")
	v.SetDefault("users.admin_email", "")
	v.SetDefault("users.admin_password", "")
	v.SetDefault("users.admin_role", "Administrator")
	v.SetDefault("users.default_role", "User")
	v.SetDefault("users.default_project_role", "Project Member")
	v.SetDefault("users.owner_role", "Project Owner")
	v.SetDefault("board.default_name", "Main")
	v.SetDefault("rbac.membership_cache_size", 4096)
	v.SetDefault("rbac.membership_cache_ttl", "30s")
	v.SetDefault("rbac.watcher", "none")
	v.SetDefault("rbac.valkey_addr", "localhost:6379")
	v.SetDefault("rbac.watcher_channel", "taskboard:rbac")

	// Read from config file if exists
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("/etc/taskboard/")

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
		// Config file not found, using defaults
	}

	// Environment variables override
	v.SetEnvPrefix("TASKBOARD")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	return &cfg, nil
}
