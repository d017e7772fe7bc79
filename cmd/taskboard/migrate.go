package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Create or update the database schema and built-in roles",
	Long: `Run database migrations, sync the permission catalog and seed the built-in
roles. Immutable roles get their permissions reset to the catalog defaults.

Environment variables:
  TASKBOARD_DATABASE_DRIVER       Database driver: sqlite, postgres
  TASKBOARD_DATABASE_DSN          Database connection string
  TASKBOARD_USERS_ADMIN_USERNAME  Bootstrap admin username
  TASKBOARD_USERS_ADMIN_PASSWORD  Bootstrap admin password`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openApp()
		if err != nil {
			return err
		}
		defer a.Close()

		fmt.Fprintf(os.Stderr, "Database is up to date (instance %s)\n", a.InstanceID)
		return nil
	},
}
