package service

import (
	"context"

	"github.com/google/uuid"
	"github.com/nebari-dev/tenancy/internal/asset"
	"github.com/nebari-dev/tenancy/internal/models"
)

// RoleInfo is a role the session user holds in a workspace.
type RoleInfo struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}

// MemberInfo is one workspace member and the default group that made them one.
type MemberInfo struct {
	UserID    uuid.UUID `json:"user_id"`
	Username  string    `json:"username"`
	Name      string    `json:"name,omitempty"`
	GroupName string    `json:"group_name"`
	GroupID   uuid.UUID `json:"group_id"`
}

// RepairOptions controls Repair and RepairAll.
type RepairOptions struct {
	// DryRun reports what would change without writing anything.
	DryRun bool
}

// RepairReport describes what reconciliation found for one workspace.
type RepairReport struct {
	WorkspaceID             uuid.UUID `json:"workspace_id"`
	WorkspaceName           string    `json:"workspace_name"`
	DroppedReferences       int       `json:"dropped_references"`
	AdoptedGroups           int       `json:"adopted_groups"`
	CreatedUserGroups       int       `json:"created_user_groups"`
	CreatedPermissionGroups int       `json:"created_permission_groups"`
	AdminsRestored          int       `json:"admins_restored"`
	SlugFixed               bool      `json:"slug_fixed"`
	// NoAdministrator is set when the administrator group is empty and no
	// recorded administrator is left to put back into it.
	NoAdministrator bool `json:"no_administrator"`
}

// Changed reports whether the workspace needed any repair.
func (r *RepairReport) Changed() bool {
	return r.DroppedReferences > 0 || r.AdoptedGroups > 0 || r.CreatedUserGroups > 0 ||
		r.CreatedPermissionGroups > 0 || r.AdminsRestored > 0 || r.SlugFixed
}

// AssetStore is the asset collaborator used for workspace logos.
type AssetStore interface {
	Upload(ctx context.Context, part asset.FilePart, maxKB int) (*models.Asset, error)
	Remove(ctx context.Context, id uuid.UUID) error
}
