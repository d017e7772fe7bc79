package main

import (
	"context"
	"fmt"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/nebari-dev/taskboard/internal/db"
	"github.com/spf13/cobra"
)

var (
	adminEmail string
	adminRole  string
)

var adminCmd = &cobra.Command{
	Use:   "admin",
	Short: "Operator commands that bypass access checks",
}

var adminCreateCmd = &cobra.Command{
	Use:   "create <username>",
	Short: "Create a user",
	Long: `Create a user holding a global role. The password is read from the terminal,
or from the first line of stdin when it is not a terminal.

Examples:
  taskboard admin create alice --email alice@example.com
  echo s3cret | taskboard admin create bob --role User`,
	Args: cobra.ExactArgs(1),
	RunE: runAdminCreate,
}

var adminRolesCmd = &cobra.Command{
	Use:   "roles",
	Short: "List roles and their permissions",
	Args:  cobra.NoArgs,
	RunE:  runAdminRoles,
}

func init() {
	adminCreateCmd.Flags().StringVar(&adminEmail, "email", "", "Email address (default: <username>@taskboard.local)")
	adminCreateCmd.Flags().StringVar(&adminRole, "role", "", "Global role (default: users.admin_role)")

	adminCmd.AddCommand(adminCreateCmd)
	adminCmd.AddCommand(adminRolesCmd)
}

func runAdminCreate(cmd *cobra.Command, args []string) error {
	username := strings.TrimSpace(args[0])
	if username == "" {
		return fmt.Errorf("username is required")
	}
	email := adminEmail
	if email == "" {
		email = fmt.Sprintf("%s@taskboard.local", username)
	}
	role := adminRole
	if role == "" {
		role = cfg.Users.AdminRole
	}

	password, err := readPassword("Password: ")
	if err != nil {
		return err
	}

	a, err := openApp()
	if err != nil {
		return err
	}
	defer a.Close()

	user, err := db.CreateUser(context.Background(), a.Store, username, email, password, role)
	if err != nil {
		return fmt.Errorf("failed to create user: %w", err)
	}

	fmt.Fprintf(os.Stderr, "Created user %s (%s) with role %s\n", user.Username, user.ID, role)
	return nil
}

func runAdminRoles(cmd *cobra.Command, args []string) error {
	a, err := openApp()
	if err != nil {
		return err
	}
	defer a.Close()

	roles, err := a.Store.ListRoles(context.Background())
	if err != nil {
		return err
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tNAME\tSCOPE\tIMMUTABLE\tPERMISSIONS")
	for _, role := range roles {
		perms, err := a.Grants.Permissions(role.ID)
		if err != nil {
			return err
		}
		fmt.Fprintf(w, "%d\t%s\t%s\t%t\t%s\n", role.ID, role.Name, role.Scope, role.IsImmutable, strings.Join(perms, ","))
	}
	return w.Flush()
}
