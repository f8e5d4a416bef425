package service

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/nebari-dev/tenancy/internal/acl"
	"github.com/nebari-dev/tenancy/internal/models"
	"github.com/nebari-dev/tenancy/internal/rbac"
	"github.com/nebari-dev/tenancy/internal/repository"
)

// UserWorkspaceService associates users with workspaces.
type UserWorkspaceService struct {
	repos *repository.Repositories
}

// NewUserWorkspaceService creates a UserWorkspaceService.
func NewUserWorkspaceService(repos *repository.Repositories) *UserWorkspaceService {
	return &UserWorkspaceService{repos: repos}
}

// AddUserToWorkspace records workspaceID on the user. Adding a user twice is
// a no-op.
func (s *UserWorkspaceService) AddUserToWorkspace(ctx context.Context, workspaceID uuid.UUID, user *models.User) (*models.User, error) {
	if user.InWorkspace(workspaceID) {
		return user, nil
	}
	user.WorkspaceIDs = append(user.WorkspaceIDs, workspaceID)
	if err := s.repos.Users.Save(ctx, user); err != nil {
		return nil, fmt.Errorf("save user: %w", err)
	}
	return user, nil
}

// AddUserToWorkspaceGivenRole records roleName for the user in the
// workspace's role list, replacing any role the user already had there.
func (s *UserWorkspaceService) AddUserToWorkspaceGivenRole(ctx context.Context, ws *models.Workspace, user *models.User, roleName string) (*models.Workspace, error) {
	if _, ok := acl.RoleByName(roleName); !ok {
		return nil, &ValidationError{Message: fmt.Sprintf("unknown role %q", roleName)}
	}

	recordRole(ws, user, roleName)
	if err := s.repos.Workspaces.Save(ctx, ws); err != nil {
		return nil, fmt.Errorf("save workspace: %w", err)
	}
	return ws, nil
}

// AddUserToWorkspaceWithRole makes the user a member of the workspace's
// default access group for roleName, records the role and associates the
// user with the workspace.
func (s *UserWorkspaceService) AddUserToWorkspaceWithRole(ctx context.Context, ws *models.Workspace, user *models.User, roleName string) (*models.Workspace, error) {
	groups, err := s.repos.UserGroups.FindAllByID(ctx, ws.DefaultUserGroupIDs)
	if err != nil {
		return nil, fmt.Errorf("load user groups: %w", err)
	}
	if err := s.addToRoleGroup(ctx, groups, user, roleName); err != nil {
		return nil, err
	}
	if _, err := s.AddUserToWorkspaceGivenRole(ctx, ws, user, roleName); err != nil {
		return nil, err
	}
	if _, err := s.AddUserToWorkspace(ctx, ws.ID, user); err != nil {
		return nil, err
	}
	return ws, nil
}

// addToRoleGroup adds user to the group in groups that belongs to roleName
// and mirrors the membership into the enforcer.
func (s *UserWorkspaceService) addToRoleGroup(ctx context.Context, groups []models.UserGroup, user *models.User, roleName string) error {
	for i := range groups {
		role, ok := acl.RoleForGroupName(groups[i].Name)
		if !ok || role.Name != roleName {
			continue
		}
		if groups[i].AddUser(user) {
			if err := s.repos.UserGroups.Save(ctx, &groups[i]); err != nil {
				return fmt.Errorf("save user group %s: %w", groups[i].ID, err)
			}
		}
		if err := rbac.AddUserToGroup(user.ID, groups[i].ID); err != nil {
			return fmt.Errorf("link user to group %s: %w", groups[i].ID, err)
		}
		return nil
	}
	return fmt.Errorf("%s group: %w", roleName, ErrNotFound)
}

// recordRole upserts the user's entry in the workspace's role list without
// saving it.
func recordRole(ws *models.Workspace, user *models.User, roleName string) {
	entry := models.UserRole{
		UserID:   user.ID,
		Username: user.Username,
		Name:     user.Name,
		RoleName: roleName,
	}
	for i, r := range ws.UserRoles {
		if r.UserID == user.ID {
			ws.UserRoles[i] = entry
			return
		}
	}
	ws.UserRoles = append(ws.UserRoles, entry)
}
