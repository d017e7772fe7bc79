package main

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/nebari-dev/taskboard/internal/app"
	"github.com/nebari-dev/taskboard/internal/models"
	"github.com/spf13/cobra"
)

var (
	instanceName       string
	instanceAdminEmail string
)

var instanceCmd = &cobra.Command{
	Use:   "instance",
	Short: "Show or change the instance identity",
	Long: `Show the instance ID, name and administrator email. The ID is generated on
first migration and scopes the RBAC watcher channel.

Examples:
  taskboard instance
  taskboard instance --name "Mission Control" --admin-email ops@example.com`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openApp()
		if err != nil {
			return err
		}
		defer a.Close()

		ctx := context.Background()
		settings := map[string]string{}
		if cmd.Flags().Changed("name") {
			settings[models.ServerConfigKeyInstanceName] = instanceName
		}
		if cmd.Flags().Changed("admin-email") {
			settings[models.ServerConfigKeyAdminEmail] = instanceAdminEmail
		}
		for key, value := range settings {
			if err := a.Store.PutSetting(ctx, key, value); err != nil {
				return err
			}
		}
		return describeInstance(ctx, a, os.Stdout)
	},
}

func init() {
	instanceCmd.Flags().StringVar(&instanceName, "name", "", "Instance name")
	instanceCmd.Flags().StringVar(&instanceAdminEmail, "admin-email", "", "Administrator email")
}

func describeInstance(ctx context.Context, a *app.App, w io.Writer) error {
	name, _, err := a.Store.Setting(ctx, models.ServerConfigKeyInstanceName)
	if err != nil {
		return err
	}
	email, _, err := a.Store.Setting(ctx, models.ServerConfigKeyAdminEmail)
	if err != nil {
		return err
	}
	fmt.Fprintf(w, "ID:          %s\n", a.InstanceID)
	fmt.Fprintf(w, "Name:        %s\n", name)
	fmt.Fprintf(w, "Admin email: %s\n", email)
	return nil
}
