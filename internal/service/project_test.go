package service

import (
	"context"
	"errors"
	"testing"

	"github.com/nebari-dev/taskboard/internal/db"
	"github.com/nebari-dev/taskboard/internal/models"
	"github.com/nebari-dev/taskboard/internal/rbac"
)

func TestCreateProject_DefaultBoardAndOwner(t *testing.T) {
	f := testSetup(t)
	ctx := context.Background()

	project, board := createProject(t, f, f.alice, "Apollo")

	if board.Name != "Main" || !board.IsDefault || board.ProjectID != project.ID {
		t.Errorf("unexpected default board: %+v", board)
	}

	members, err := f.svc.Projects.Members(ctx, f.alice, project.ID)
	if err != nil {
		t.Fatalf("Members: %v", err)
	}
	if len(members) != 1 || members[0].UserID != f.alice || members[0].Role.Name != db.RoleProjectOwner {
		t.Fatalf("expected alice as sole owner, got %+v", members)
	}

	var logs int64
	f.db.Model(&models.AuditLog{}).Where("action = ?", "create_project").Count(&logs)
	if logs != 1 {
		t.Errorf("expected 1 audit row, got %d", logs)
	}
}

func TestCreateProject_Validation(t *testing.T) {
	f := testSetup(t)
	ctx := context.Background()

	var vErr *ValidationError
	_, err := f.svc.Projects.Create(ctx, f.alice, CreateProjectRequest{Name: "  "})
	if !isValidationError(err, &vErr) {
		t.Errorf("expected ValidationError for empty name, got %v", err)
	}
	_, err = f.svc.Projects.Create(ctx, f.alice, CreateProjectRequest{Name: "P", Slug: "much-too-long"})
	if !isValidationError(err, &vErr) {
		t.Errorf("expected ValidationError for long slug, got %v", err)
	}
}

func TestCreateProject_ForbiddenWithoutGlobalPermission(t *testing.T) {
	f := testSetup(t)
	ctx := context.Background()

	if _, err := f.svc.Roles.SetUserRole(ctx, f.admin, "bob", db.RoleViewer); err != nil {
		t.Fatalf("SetUserRole: %v", err)
	}

	_, err := f.svc.Projects.Create(ctx, f.bob, CreateProjectRequest{Name: "Nope"})
	if !errors.Is(err, ErrForbidden) {
		t.Fatalf("expected ErrForbidden, got %v", err)
	}
}

func TestProjectList_MembershipVersusGlobalRead(t *testing.T) {
	f := testSetup(t)
	ctx := context.Background()

	createProject(t, f, f.alice, "Alpha")
	createProject(t, f, f.bob, "Beta")

	mine, err := f.svc.Projects.List(ctx, f.alice)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(mine) != 1 || mine[0].Name != "Alpha" {
		t.Errorf("expected alice to see only Alpha, got %+v", mine)
	}

	all, err := f.svc.Projects.List(ctx, f.admin)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(all) != 2 {
		t.Errorf("expected admin to see 2 projects, got %d", len(all))
	}
}

func TestAccessFollowsMembership(t *testing.T) {
	f := testSetup(t)
	ctx := context.Background()
	project, _ := createProject(t, f, f.alice, "Apollo")

	if _, err := f.svc.Projects.Get(ctx, f.bob, project.ID); !errors.Is(err, ErrForbidden) {
		t.Fatalf("expected ErrForbidden for non-member, got %v", err)
	}

	m, err := f.svc.Projects.AddMember(ctx, f.alice, project.ID, MemberRequest{Username: "bob"})
	if err != nil {
		t.Fatalf("AddMember: %v", err)
	}
	if m.Role.Name != db.RoleProjectMember {
		t.Errorf("expected default project role, got %q", m.Role.Name)
	}

	if _, err := f.svc.Projects.Get(ctx, f.bob, project.ID); err != nil {
		t.Fatalf("expected member to read project, got %v", err)
	}

	if err := f.svc.Projects.RemoveMember(ctx, f.alice, project.ID, "bob"); err != nil {
		t.Fatalf("RemoveMember: %v", err)
	}
	if _, err := f.svc.Projects.Get(ctx, f.bob, project.ID); !errors.Is(err, ErrForbidden) {
		t.Fatalf("expected ErrForbidden after removal, got %v", err)
	}
}

func TestAdminManagesProjectWithoutMembership(t *testing.T) {
	f := testSetup(t)
	ctx := context.Background()
	project, _ := createProject(t, f, f.alice, "Apollo")

	name := "Apollo 2"
	updated, err := f.svc.Projects.Update(ctx, f.admin, project.ID, UpdateProjectRequest{Name: &name})
	if err != nil {
		t.Fatalf("Update: %v", err)
	}
	if updated.Name != name {
		t.Errorf("expected %q, got %q", name, updated.Name)
	}

	if _, err := f.svc.Projects.AddMember(ctx, f.admin, project.ID, MemberRequest{Username: "carol"}); err != nil {
		t.Fatalf("AddMember by admin: %v", err)
	}
}

func TestAddMember_Errors(t *testing.T) {
	f := testSetup(t)
	ctx := context.Background()
	project, _ := createProject(t, f, f.alice, "Apollo")

	if _, err := f.svc.Projects.AddMember(ctx, f.alice, project.ID, MemberRequest{Username: "bob"}); err != nil {
		t.Fatalf("AddMember: %v", err)
	}

	var cErr *ConflictError
	_, err := f.svc.Projects.AddMember(ctx, f.alice, project.ID, MemberRequest{Username: "bob"})
	if !isConflictError(err, &cErr) {
		t.Errorf("expected ConflictError for duplicate member, got %v", err)
	}

	_, err = f.svc.Projects.AddMember(ctx, f.alice, project.ID, MemberRequest{Username: "carol", RoleName: db.RoleAdministrator})
	if !errors.Is(err, rbac.ErrRoleScopeMismatch) {
		t.Errorf("expected ErrRoleScopeMismatch for global role, got %v", err)
	}

	_, err = f.svc.Projects.AddMember(ctx, f.alice, project.ID, MemberRequest{Username: "nobody"})
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound for unknown user, got %v", err)
	}

	// A plain member cannot change the team.
	_, err = f.svc.Projects.AddMember(ctx, f.bob, project.ID, MemberRequest{Username: "carol"})
	if !errors.Is(err, ErrForbidden) {
		t.Errorf("expected ErrForbidden for member, got %v", err)
	}
}

func TestRemoveMember_LastOwner(t *testing.T) {
	f := testSetup(t)
	ctx := context.Background()
	project, _ := createProject(t, f, f.alice, "Apollo")

	err := f.svc.Projects.RemoveMember(ctx, f.alice, project.ID, "alice")
	if !errors.Is(err, rbac.ErrLastOwner) {
		t.Fatalf("expected ErrLastOwner, got %v", err)
	}

	if _, err := f.svc.Projects.AddMember(ctx, f.alice, project.ID, MemberRequest{Username: "bob", RoleName: db.RoleProjectOwner}); err != nil {
		t.Fatalf("AddMember: %v", err)
	}
	if err := f.svc.Projects.RemoveMember(ctx, f.alice, project.ID, "alice"); err != nil {
		t.Fatalf("expected removal with a second owner, got %v", err)
	}

	err = f.svc.Projects.RemoveMember(ctx, f.bob, project.ID, "carol")
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound for non-member, got %v", err)
	}
}

func TestChangeMemberRole_LastOwner(t *testing.T) {
	f := testSetup(t)
	ctx := context.Background()
	project, _ := createProject(t, f, f.alice, "Apollo")

	_, err := f.svc.Projects.ChangeMemberRole(ctx, f.alice, project.ID, MemberRequest{Username: "alice", RoleName: db.RoleProjectViewer})
	if !errors.Is(err, rbac.ErrLastOwner) {
		t.Fatalf("expected ErrLastOwner, got %v", err)
	}

	// Keeping the owner role is not a demotion.
	if _, err := f.svc.Projects.ChangeMemberRole(ctx, f.alice, project.ID, MemberRequest{Username: "alice", RoleName: db.RoleProjectOwner}); err != nil {
		t.Fatalf("no-op role change: %v", err)
	}

	if _, err := f.svc.Projects.AddMember(ctx, f.alice, project.ID, MemberRequest{Username: "bob"}); err != nil {
		t.Fatalf("AddMember: %v", err)
	}
	m, err := f.svc.Projects.ChangeMemberRole(ctx, f.alice, project.ID, MemberRequest{Username: "bob", RoleName: db.RoleProjectOwner})
	if err != nil {
		t.Fatalf("promote bob: %v", err)
	}
	if m.Role.Name != db.RoleProjectOwner {
		t.Errorf("expected owner role, got %q", m.Role.Name)
	}

	if _, err := f.svc.Projects.ChangeMemberRole(ctx, f.bob, project.ID, MemberRequest{Username: "alice", RoleName: db.RoleProjectViewer}); err != nil {
		t.Fatalf("demote alice with another owner present: %v", err)
	}

	// alice is now a viewer and lost team:update.
	_, err = f.svc.Projects.AddMember(ctx, f.alice, project.ID, MemberRequest{Username: "carol"})
	if !errors.Is(err, ErrForbidden) {
		t.Errorf("expected ErrForbidden after demotion, got %v", err)
	}
}

func TestDeleteProject_Cascades(t *testing.T) {
	f := testSetup(t)
	ctx := context.Background()
	project, board := createProject(t, f, f.alice, "Apollo")
	stages := createStages(t, f, f.alice, board.ID, "Todo", "Done")
	createTasks(t, f, f.alice, stages[0].ID, "one", "two")

	if err := f.svc.Projects.Delete(ctx, f.bob, project.ID); !errors.Is(err, ErrForbidden) {
		t.Fatalf("expected ErrForbidden for outsider, got %v", err)
	}

	if err := f.svc.Projects.Delete(ctx, f.alice, project.ID); err != nil {
		t.Fatalf("Delete: %v", err)
	}

	counts := map[string]interface{}{
		"boards": &models.Board{},
		"stages": &models.Stage{},
		"tasks":  &models.Task{},
	}
	for name, model := range counts {
		var live int64
		f.db.Model(model).Count(&live)
		if live != 0 {
			t.Errorf("expected no live %s, got %d", name, live)
		}
		var all int64
		f.db.Unscoped().Model(model).Count(&all)
		if all == 0 {
			t.Errorf("expected %s to be soft-deleted, found none", name)
		}
	}

	var memberships int64
	f.db.Model(&models.ProjectMembership{}).Where("project_id = ?", project.ID).Count(&memberships)
	if memberships != 0 {
		t.Errorf("expected memberships removed, got %d", memberships)
	}

	if _, err := f.svc.Projects.Get(ctx, f.admin, project.ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound after delete, got %v", err)
	}
}
