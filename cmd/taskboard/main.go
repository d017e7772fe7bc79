package main

import (
	"fmt"
	"os"

	"github.com/nebari-dev/taskboard/internal/app"
	"github.com/nebari-dev/taskboard/internal/config"
	"github.com/nebari-dev/taskboard/internal/logger"
	"github.com/spf13/cobra"
)

// Version is set via ldflags at build time
var Version = "dev"

var cfg *config.Config

var rootCmd = &cobra.Command{
	Use:   "taskboard",
	Short: "Taskboard - project boards with role-based access control",
	Long: `Taskboard manages projects, boards, stages and tasks, and decides who may
change them through global and per-project roles.`,
	Example: `  # Prepare the database and create an administrator
  taskboard migrate
  taskboard admin create alice --email alice@example.com

  # Explain an access decision
  taskboard authorize alice tasks:move --project 0b4e...

  # Verify stage and task ordering
  taskboard check`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		cfg, err = config.Load()
		if err != nil {
			return fmt.Errorf("failed to load configuration: %w", err)
		}
		logger.Init(cfg.Log.Format, cfg.Log.Level)
		return nil
	},
}

func init() {
	rootCmd.AddGroup(
		&cobra.Group{ID: "setup", Title: "Setup Commands:"},
		&cobra.Group{ID: "access", Title: "Access Commands:"},
		&cobra.Group{ID: "maintenance", Title: "Maintenance Commands:"},
	)

	migrateCmd.GroupID = "setup"
	adminCmd.GroupID = "setup"
	instanceCmd.GroupID = "setup"

	authorizeCmd.GroupID = "access"
	whoamiCmd.GroupID = "access"

	checkCmd.GroupID = "maintenance"

	rootCmd.AddCommand(migrateCmd)
	rootCmd.AddCommand(adminCmd)
	rootCmd.AddCommand(instanceCmd)
	rootCmd.AddCommand(authorizeCmd)
	rootCmd.AddCommand(whoamiCmd)
	rootCmd.AddCommand(checkCmd)
	rootCmd.AddCommand(versionCmd)
}

// openApp opens the application using the loaded configuration.
func openApp() (*app.App, error) {
	if cfg == nil {
		return nil, fmt.Errorf("configuration not loaded")
	}
	return app.Open(cfg)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
