package service

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/nebari-dev/tenancy/internal/acl"
	"github.com/nebari-dev/tenancy/internal/audit"
	"github.com/nebari-dev/tenancy/internal/models"
	"github.com/nebari-dev/tenancy/internal/textutil"
)

// Repair completes a workspace whose provisioning was interrupted. It drops
// references to missing or foreign-tenant groups, adopts default groups that
// were created but never recorded on the workspace, creates the ones still
// missing, re-links the enforcer and puts every recorded administrator back
// into the administrator group. Running it on a healthy workspace changes
// nothing.
func (s *WorkspaceService) Repair(ctx context.Context, id uuid.UUID, opts RepairOptions) (*RepairReport, error) {
	ws, err := s.repos.Workspaces.Get(ctx, id)
	if err != nil {
		return nil, notFound(err, fmt.Sprintf("workspace %s", id))
	}
	return s.repair(ctx, ws, opts)
}

// RepairAll repairs every workspace missing default group references or an
// administrator.
func (s *WorkspaceService) RepairAll(ctx context.Context, opts RepairOptions) ([]RepairReport, error) {
	candidates, err := s.repos.Workspaces.FindWithIncompleteDefaults(ctx)
	if err != nil {
		return nil, fmt.Errorf("scan workspaces: %w", err)
	}

	reports := make([]RepairReport, 0, len(candidates))
	for i := range candidates {
		if err := ctx.Err(); err != nil {
			return reports, err
		}
		report, err := s.repair(ctx, &candidates[i], opts)
		if err != nil {
			return reports, fmt.Errorf("repair workspace %s: %w", candidates[i].ID, err)
		}
		reports = append(reports, *report)
	}
	return reports, nil
}

func (s *WorkspaceService) repair(ctx context.Context, ws *models.Workspace, opts RepairOptions) (*RepairReport, error) {
	report := &RepairReport{WorkspaceID: ws.ID, WorkspaceName: ws.Name}

	ugs, err := s.resolveUserGroups(ctx, ws)
	if err != nil {
		return nil, err
	}
	pgs, err := s.resolvePermissionGroups(ctx, ws)
	if err != nil {
		return nil, err
	}
	userGroups, permissionGroups := ugs.byRole, pgs.byRole
	report.DroppedReferences = ugs.dropped + pgs.dropped
	report.AdoptedGroups = ugs.adopted + pgs.adopted
	report.CreatedUserGroups = ugs.missing
	report.CreatedPermissionGroups = pgs.missing

	if slug := textutil.MakeSlug(ws.Name); slug != ws.Slug {
		report.SlugFixed = true
		ws.Slug = slug
	}

	admins := userGroups[acl.Administrator.Name]
	for _, r := range ws.UserRoles {
		if r.RoleName != acl.Administrator.Name {
			continue
		}
		if admins == nil || !admins.HasUser(r.UserID) {
			report.AdminsRestored++
		}
	}
	if report.AdminsRestored == 0 && (admins == nil || len(admins.Users) == 0) {
		report.NoAdministrator = true
		slog.Warn("Workspace has no administrator to restore", "workspace_id", ws.ID)
	}

	if opts.DryRun || !report.Changed() {
		return report, nil
	}

	var (
		orderedUserGroups       []models.UserGroup
		orderedPermissionGroups []models.PermissionGroup
	)
	for _, role := range acl.DefaultRoles() {
		ug := userGroups[role.Name]
		if ug == nil {
			g := newDefaultUserGroup(ws, role)
			if err := s.repos.UserGroups.Create(ctx, &g); err != nil {
				return nil, fmt.Errorf("create user group %q: %w", g.Name, err)
			}
			ug = &g
		}
		orderedUserGroups = append(orderedUserGroups, *ug)

		pg := permissionGroups[role.Name]
		if pg == nil {
			g := newDefaultPermissionGroup(ws, role)
			if err := s.repos.PermissionGroups.Create(ctx, &g); err != nil {
				return nil, fmt.Errorf("create permission group %q: %w", g.Name, err)
			}
			pg = &g
		}
		orderedPermissionGroups = append(orderedPermissionGroups, *pg)
	}

	if err := linkDefaultGroups(orderedUserGroups, orderedPermissionGroups); err != nil {
		return nil, err
	}

	for _, r := range ws.UserRoles {
		if r.RoleName != acl.Administrator.Name {
			continue
		}
		user, err := s.repos.Users.FindByID(ctx, r.UserID)
		if err != nil {
			slog.Warn("Skipping administrator that no longer exists", "workspace_id", ws.ID, "user_id", r.UserID)
			continue
		}
		if err := s.memberships.addToRoleGroup(ctx, orderedUserGroups, user, acl.Administrator.Name); err != nil {
			return nil, fmt.Errorf("restore administrator %s: %w", r.UserID, err)
		}
		if _, err := s.memberships.AddUserToWorkspace(ctx, ws.ID, user); err != nil {
			return nil, fmt.Errorf("restore administrator %s: %w", r.UserID, err)
		}
	}

	ws.DefaultUserGroupIDs = append(userGroupIDs(orderedUserGroups), ugs.extras...)
	ws.DefaultPermissionGroupIDs = append(permissionGroupIDs(orderedPermissionGroups), pgs.extras...)
	ws.Policies = policiesFromPermissionGroups(orderedPermissionGroups)
	if err := s.repos.Workspaces.Save(ctx, ws); err != nil {
		return nil, fmt.Errorf("save workspace: %w", err)
	}

	audit.Record(ctx, s.db, s.actorID(ctx), audit.ActionRepairWorkspace, audit.WorkspaceResource(ws.ID), report)
	slog.Info("Workspace repaired",
		"workspace_id", ws.ID,
		"created_user_groups", report.CreatedUserGroups,
		"created_permission_groups", report.CreatedPermissionGroups,
		"dropped_references", report.DroppedReferences)
	return report, nil
}

func (s *WorkspaceService) resolveUserGroups(ctx context.Context, ws *models.Workspace) (groupResolution[models.UserGroup], error) {
	referenced, err := s.repos.UserGroups.FindAllByID(ctx, ws.DefaultUserGroupIDs)
	if err != nil {
		return groupResolution[models.UserGroup]{}, fmt.Errorf("load user groups: %w", err)
	}
	provisioned, err := s.repos.UserGroups.FindByDefaultWorkspace(ctx, ws.ID)
	if err != nil {
		return groupResolution[models.UserGroup]{}, fmt.Errorf("load provisioned user groups: %w", err)
	}
	return resolveDefaultGroups(ws, ws.DefaultUserGroupIDs, referenced, provisioned,
		func(g *models.UserGroup) string { return g.Name },
		func(g *models.UserGroup) uuid.UUID { return g.TenantID },
		func(g *models.UserGroup) uuid.UUID { return g.ID },
	), nil
}

func (s *WorkspaceService) resolvePermissionGroups(ctx context.Context, ws *models.Workspace) (groupResolution[models.PermissionGroup], error) {
	referenced, err := s.repos.PermissionGroups.FindAllByID(ctx, ws.DefaultPermissionGroupIDs)
	if err != nil {
		return groupResolution[models.PermissionGroup]{}, fmt.Errorf("load permission groups: %w", err)
	}
	provisioned, err := s.repos.PermissionGroups.FindByDefaultWorkspace(ctx, ws.ID)
	if err != nil {
		return groupResolution[models.PermissionGroup]{}, fmt.Errorf("load provisioned permission groups: %w", err)
	}
	return resolveDefaultGroups(ws, ws.DefaultPermissionGroupIDs, referenced, provisioned,
		func(g *models.PermissionGroup) string { return g.Name },
		func(g *models.PermissionGroup) uuid.UUID { return g.TenantID },
		func(g *models.PermissionGroup) uuid.UUID { return g.ID },
	), nil
}

// groupResolution is what reconciliation found for one kind of default group.
type groupResolution[T any] struct {
	byRole  map[string]*T
	extras  []uuid.UUID // referenced same-tenant groups without a role prefix
	dropped int
	adopted int
	missing int
}

// resolveDefaultGroups matches groups to default roles. Referenced groups win
// over groups that only point back at the workspace. References to missing
// groups, foreign-tenant groups and second groups for a role are dropped.
func resolveDefaultGroups[T any](ws *models.Workspace, refIDs []uuid.UUID, referenced, provisioned []T, name func(*T) string, tenant func(*T) uuid.UUID, id func(*T) uuid.UUID) groupResolution[T] {
	res := groupResolution[T]{byRole: make(map[string]*T)}

	kept := 0
	for i := range referenced {
		g := &referenced[i]
		if tenant(g) != ws.TenantID {
			continue
		}
		role, ok := acl.RoleForGroupName(name(g))
		if !ok {
			res.extras = append(res.extras, id(g))
			kept++
			continue
		}
		if res.byRole[role.Name] != nil {
			continue
		}
		res.byRole[role.Name] = g
		kept++
	}
	res.dropped = len(refIDs) - kept

	for i := range provisioned {
		g := &provisioned[i]
		role, ok := acl.RoleForGroupName(name(g))
		if !ok || tenant(g) != ws.TenantID || res.byRole[role.Name] != nil {
			continue
		}
		res.byRole[role.Name] = g
		res.adopted++
	}

	for _, role := range acl.DefaultRoles() {
		if res.byRole[role.Name] == nil {
			res.missing++
		}
	}
	return res
}
