package service

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/nebari-dev/tenancy/internal/acl"
	"github.com/nebari-dev/tenancy/internal/models"
	"github.com/nebari-dev/tenancy/internal/repository"
	"golang.org/x/sync/errgroup"
)

// GroupProvisioner creates and renames the default access and permission
// groups of a workspace. Groups are returned in acl.DefaultRoles order.
type GroupProvisioner struct {
	userGroups       *repository.UserGroupRepository
	permissionGroups *repository.PermissionGroupRepository
}

// NewGroupProvisioner creates a GroupProvisioner.
func NewGroupProvisioner(repos *repository.Repositories) *GroupProvisioner {
	return &GroupProvisioner{userGroups: repos.UserGroups, permissionGroups: repos.PermissionGroups}
}

func newDefaultUserGroup(ws *models.Workspace, role acl.Role) models.UserGroup {
	wsID := ws.ID
	return models.UserGroup{
		Name:               acl.DefaultGroupName(role.Name, ws.Name),
		TenantID:           ws.TenantID,
		DefaultWorkspaceID: &wsID,
		Description:        role.Description,
		Users:              []models.UserInGroup{},
	}
}

func newDefaultPermissionGroup(ws *models.Workspace, role acl.Role) models.PermissionGroup {
	wsID := ws.ID
	perms := acl.PermissionsFor(role.Name)
	grants := make([]models.PermissionGrant, 0, len(perms))
	for _, p := range perms {
		grants = append(grants, models.PermissionGrant{DocumentID: ws.ID, Permission: string(p)})
	}
	return models.PermissionGroup{
		Name:               acl.DefaultGroupName(role.Name, ws.Name),
		TenantID:           ws.TenantID,
		DefaultWorkspaceID: &wsID,
		Description:        role.Description,
		IsDefault:          true,
		Permissions:        grants,
	}
}

// GenerateDefaultUserGroups creates one access group per default role.
func (p *GroupProvisioner) GenerateDefaultUserGroups(ctx context.Context, ws *models.Workspace) ([]models.UserGroup, error) {
	roles := acl.DefaultRoles()
	groups := make([]models.UserGroup, 0, len(roles))
	for _, role := range roles {
		g := newDefaultUserGroup(ws, role)
		if err := p.userGroups.Create(ctx, &g); err != nil {
			return nil, fmt.Errorf("create user group %q: %w", g.Name, err)
		}
		groups = append(groups, g)
	}
	return groups, nil
}

// GenerateDefaultPermissionGroups creates one permission group per default
// role, granting the role's permissions on the workspace.
func (p *GroupProvisioner) GenerateDefaultPermissionGroups(ctx context.Context, ws *models.Workspace) ([]models.PermissionGroup, error) {
	roles := acl.DefaultRoles()
	groups := make([]models.PermissionGroup, 0, len(roles))
	for _, role := range roles {
		g := newDefaultPermissionGroup(ws, role)
		if err := p.permissionGroups.Create(ctx, &g); err != nil {
			return nil, fmt.Errorf("create permission group %q: %w", g.Name, err)
		}
		groups = append(groups, g)
	}
	return groups, nil
}

// GenerateDefaults provisions both group kinds concurrently and returns once
// both are done. The first failure cancels the other branch.
func (p *GroupProvisioner) GenerateDefaults(ctx context.Context, ws *models.Workspace) ([]models.UserGroup, []models.PermissionGroup, error) {
	var (
		userGroups       []models.UserGroup
		permissionGroups []models.PermissionGroup
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		userGroups, err = p.GenerateDefaultUserGroups(gctx, ws)
		return err
	})
	g.Go(func() error {
		var err error
		permissionGroups, err = p.GenerateDefaultPermissionGroups(gctx, ws)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, nil, err
	}
	return userGroups, permissionGroups, nil
}

// RenameDefaultGroups renames the workspace's default groups to match
// newName. Groups whose name carries no known role prefix are left alone.
func (p *GroupProvisioner) RenameDefaultGroups(ctx context.Context, ws *models.Workspace, newName string) error {
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		groups, err := p.userGroups.FindAllByID(gctx, ws.DefaultUserGroupIDs)
		if err != nil {
			return fmt.Errorf("load user groups: %w", err)
		}
		for i := range groups {
			renamed := acl.RenamedGroupName(groups[i].Name, newName)
			if renamed == groups[i].Name {
				continue
			}
			groups[i].Name = renamed
			if err := p.userGroups.Save(gctx, &groups[i]); err != nil {
				return fmt.Errorf("rename user group %s: %w", groups[i].ID, err)
			}
		}
		return nil
	})
	g.Go(func() error {
		groups, err := p.permissionGroups.FindAllByID(gctx, ws.DefaultPermissionGroupIDs)
		if err != nil {
			return fmt.Errorf("load permission groups: %w", err)
		}
		for i := range groups {
			renamed := acl.RenamedGroupName(groups[i].Name, newName)
			if renamed == groups[i].Name {
				continue
			}
			groups[i].Name = renamed
			if err := p.permissionGroups.Save(gctx, &groups[i]); err != nil {
				return fmt.Errorf("rename permission group %s: %w", groups[i].ID, err)
			}
		}
		return nil
	})
	return g.Wait()
}

// userGroupIDs and permissionGroupIDs project group ids in order.
func userGroupIDs(groups []models.UserGroup) []uuid.UUID {
	ids := make([]uuid.UUID, len(groups))
	for i := range groups {
		ids[i] = groups[i].ID
	}
	return ids
}

func permissionGroupIDs(groups []models.PermissionGroup) []uuid.UUID {
	ids := make([]uuid.UUID, len(groups))
	for i := range groups {
		ids[i] = groups[i].ID
	}
	return ids
}
