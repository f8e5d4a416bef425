// Package rbac mirrors workspace permission groups into a casbin enforcer.
//
// Subjects are "user:<id>", "ug:<id>" (access groups) and "pg:<id>"
// (permission groups). A permission group holds p rules on "workspace:<id>"
// objects, access groups inherit from permission groups and users inherit
// from access groups.
package rbac

import (
	_ "embed"
	"errors"
	"fmt"
	"log/slog"

	"github.com/casbin/casbin/v2"
	"github.com/casbin/casbin/v2/model"
	gormadapter "github.com/casbin/gorm-adapter/v3"
	"github.com/google/uuid"
	"github.com/nebari-dev/tenancy/internal/models"
	"gorm.io/gorm"
)

//go:embed model.conf
var modelConf string

var (
	enforcer *casbin.SyncedEnforcer
	disabled bool
)

// ErrNotInitialized is returned by checks made before InitEnforcer.
var ErrNotInitialized = errors.New("rbac enforcer not initialized")

// InitEnforcer initializes the Casbin enforcer
func InitEnforcer(db *gorm.DB, logger *slog.Logger) error {
	adapter, err := gormadapter.NewAdapterByDB(db)
	if err != nil {
		return fmt.Errorf("failed to create casbin adapter: %w", err)
	}

	m, err := model.NewModelFromString(modelConf)
	if err != nil {
		return fmt.Errorf("failed to parse casbin model: %w", err)
	}

	e, err := casbin.NewSyncedEnforcer(m, adapter)
	if err != nil {
		return fmt.Errorf("failed to create casbin enforcer: %w", err)
	}

	if err := e.LoadPolicy(); err != nil {
		return fmt.Errorf("failed to load policies: %w", err)
	}

	enforcer = e
	disabled = false
	logger.Info("RBAC enforcer initialized")
	return nil
}

// Disable turns every check into an allow and every write into a no-op.
// Used by operator tooling that runs without a session user.
func Disable() {
	enforcer = nil
	disabled = true
}

// GetEnforcer returns the global enforcer instance
func GetEnforcer() *casbin.SyncedEnforcer {
	return enforcer
}

func userSubject(id uuid.UUID) string            { return "user:" + id.String() }
func userGroupSubject(id uuid.UUID) string       { return "ug:" + id.String() }
func permissionGroupSubject(id uuid.UUID) string { return "pg:" + id.String() }
func workspaceObject(id uuid.UUID) string        { return "workspace:" + id.String() }

// Can reports whether the user holds permission on the workspace through any
// access group they belong to.
func Can(userID, workspaceID uuid.UUID, permission string) (bool, error) {
	if disabled {
		return true, nil
	}
	if enforcer == nil {
		return false, ErrNotInitialized
	}
	return enforcer.Enforce(userSubject(userID), workspaceObject(workspaceID), permission)
}

// GrantPermissionGroup writes one policy per grant held by the group.
func GrantPermissionGroup(pg *models.PermissionGroup) error {
	if disabled {
		return nil
	}
	if enforcer == nil {
		return ErrNotInitialized
	}
	sub := permissionGroupSubject(pg.ID)
	for _, grant := range pg.Permissions {
		if _, err := enforcer.AddPolicy(sub, workspaceObject(grant.DocumentID), grant.Permission); err != nil {
			return fmt.Errorf("grant %s on %s: %w", grant.Permission, grant.DocumentID, err)
		}
	}
	return nil
}

// AssignUserGroup makes members of the access group inherit the permission
// group's grants.
func AssignUserGroup(userGroupID, permissionGroupID uuid.UUID) error {
	if disabled {
		return nil
	}
	if enforcer == nil {
		return ErrNotInitialized
	}
	_, err := enforcer.AddGroupingPolicy(userGroupSubject(userGroupID), permissionGroupSubject(permissionGroupID))
	return err
}

// AddUserToGroup records access group membership.
func AddUserToGroup(userID, userGroupID uuid.UUID) error {
	if disabled {
		return nil
	}
	if enforcer == nil {
		return ErrNotInitialized
	}
	_, err := enforcer.AddGroupingPolicy(userSubject(userID), userGroupSubject(userGroupID))
	return err
}

// RemoveWorkspacePolicies drops every grant on the workspace. Group links are
// left in place; they grant nothing once the policies are gone.
func RemoveWorkspacePolicies(workspaceID uuid.UUID) error {
	if disabled {
		return nil
	}
	if enforcer == nil {
		return ErrNotInitialized
	}
	_, err := enforcer.RemoveFilteredPolicy(1, workspaceObject(workspaceID))
	return err
}

// WorkspacePermissions returns the permissions the user holds on the workspace.
func WorkspacePermissions(userID, workspaceID uuid.UUID) ([]string, error) {
	if enforcer == nil {
		if disabled {
			return nil, nil
		}
		return nil, ErrNotInitialized
	}

	roles, err := enforcer.GetImplicitRolesForUser(userSubject(userID))
	if err != nil {
		return nil, err
	}

	obj := workspaceObject(workspaceID)
	seen := make(map[string]bool)
	var perms []string
	for _, role := range roles {
		policies, err := enforcer.GetFilteredPolicy(0, role, obj)
		if err != nil {
			return nil, err
		}
		for _, p := range policies {
			if len(p) >= 3 && !seen[p[2]] {
				seen[p[2]] = true
				perms = append(perms, p[2])
			}
		}
	}
	return perms, nil
}
