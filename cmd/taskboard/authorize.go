package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/google/uuid"
	"github.com/nebari-dev/taskboard/internal/app"
	"github.com/nebari-dev/taskboard/internal/models"
	"github.com/nebari-dev/taskboard/internal/rbac"
	"github.com/spf13/cobra"
	"gorm.io/gorm"
)

var authorizeProject string

var authorizeCmd = &cobra.Command{
	Use:   "authorize <username> <permission>",
	Short: "Explain whether a user holds a permission",
	Long: `Resolve a permission for a user the way every mutation does and print the
roles that took part in the decision.

Examples:
  taskboard authorize alice projects:create
  taskboard authorize bob tasks:move --project apollo`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openApp()
		if err != nil {
			return err
		}
		defer a.Close()

		_, err = explain(context.Background(), a, args[0], args[1], authorizeProject, os.Stdout)
		return err
	},
}

func init() {
	authorizeCmd.Flags().StringVarP(&authorizeProject, "project", "p", "", "Project ID or slug (required for project permissions)")
}

// explain writes the global and project roles of username and the decision
// for perm.
func explain(ctx context.Context, a *app.App, username, perm, projectRef string, w io.Writer) (rbac.Decision, error) {
	user, err := a.Store.FindUserByUsername(ctx, username)
	if err != nil {
		return rbac.Deny, err
	}
	if user == nil {
		return rbac.Deny, fmt.Errorf("user %q not found", username)
	}

	var projectID *uuid.UUID
	if projectRef != "" {
		project, err := findProject(ctx, a.DB, projectRef)
		if err != nil {
			return rbac.Deny, err
		}
		projectID = &project.ID
	}

	fmt.Fprintf(w, "User:        %s (%s)\n", user.Username, user.ID)
	fmt.Fprintf(w, "Global role: %s\n", user.GlobalRole.Name)
	if projectID != nil {
		m, err := a.Store.FindMembership(ctx, *projectID, user.ID)
		if err != nil {
			return rbac.Deny, err
		}
		role := "(not a member)"
		if m != nil {
			if r, err := a.Store.FindRoleByID(ctx, m.RoleID); err == nil && r != nil {
				role = r.Name
			}
		}
		fmt.Fprintf(w, "Project:     %s\n", *projectID)
		fmt.Fprintf(w, "Project role: %s\n", role)
	}

	decision, err := a.Resolver.Authorize(ctx, user.ID, perm, projectID)
	if err != nil {
		return rbac.Deny, err
	}
	fmt.Fprintf(w, "Decision:    %s %s\n", decision, perm)
	return decision, nil
}

// findProject looks a project up by ID, then by slug.
func findProject(ctx context.Context, gdb *gorm.DB, ref string) (*models.Project, error) {
	var project models.Project
	query := gdb.WithContext(ctx)
	if id, err := uuid.Parse(ref); err == nil {
		query = query.Where("id = ?", id)
	} else {
		query = query.Where("slug = ?", ref)
	}
	if err := query.First(&project).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("project %q not found", ref)
		}
		return nil, err
	}
	return &project, nil
}
