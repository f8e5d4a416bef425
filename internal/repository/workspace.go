package repository

import (
	"context"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/nebari-dev/tenancy/internal/acl"
	"github.com/nebari-dev/tenancy/internal/models"
	"gorm.io/gorm"
)

// WorkspaceRepository persists workspaces. Archived workspaces are invisible
// to every read.
type WorkspaceRepository struct {
	db *gorm.DB
}

// FindByID loads a workspace the session user holds perm on.
func (r *WorkspaceRepository) FindByID(ctx context.Context, id uuid.UUID, perm acl.Permission) (*models.Workspace, error) {
	ok, err := allowed(ctx, id, perm)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrNotFound
	}
	return r.Get(ctx, id)
}

// Get loads a workspace without a permission check.
func (r *WorkspaceRepository) Get(ctx context.Context, id uuid.UUID) (*models.Workspace, error) {
	var ws models.Workspace
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&ws).Error; err != nil {
		return nil, notFound(err)
	}
	return &ws, nil
}

// FindAllByID returns the workspaces with the given ids in id order.
func (r *WorkspaceRepository) FindAllByID(ctx context.Context, ids []uuid.UUID) ([]models.Workspace, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	var workspaces []models.Workspace
	if err := r.db.WithContext(ctx).Where("id IN ?", ids).Find(&workspaces).Error; err != nil {
		return nil, err
	}
	return orderByIDs(ids, workspaces, func(w *models.Workspace) uuid.UUID { return w.ID }), nil
}

// FindByIDsIn returns the workspaces of tenantID among ids that the session
// user holds perm on, sorted by name.
func (r *WorkspaceRepository) FindByIDsIn(ctx context.Context, ids []uuid.UUID, tenantID uuid.UUID, perm acl.Permission) ([]models.Workspace, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	var candidates []models.Workspace
	err := r.db.WithContext(ctx).
		Where("id IN ? AND tenant_id = ?", ids, tenantID).
		Order("name").
		Find(&candidates).Error
	if err != nil {
		return nil, err
	}

	visible := make([]models.Workspace, 0, len(candidates))
	for _, ws := range candidates {
		ok, err := allowed(ctx, ws.ID, perm)
		if err != nil {
			return nil, err
		}
		if ok {
			visible = append(visible, ws)
		}
	}
	sort.SliceStable(visible, func(i, j int) bool { return visible[i].Name < visible[j].Name })
	return visible, nil
}

// FindAll returns every live workspace ordered by creation time.
func (r *WorkspaceRepository) FindAll(ctx context.Context) ([]models.Workspace, error) {
	var workspaces []models.Workspace
	if err := r.db.WithContext(ctx).Order("created_at").Find(&workspaces).Error; err != nil {
		return nil, err
	}
	return workspaces, nil
}

// Save inserts or updates the workspace.
func (r *WorkspaceRepository) Save(ctx context.Context, ws *models.Workspace) error {
	return r.db.WithContext(ctx).Save(ws).Error
}

// Archive soft-deletes the workspace and stamps ws with the archival time.
func (r *WorkspaceRepository) Archive(ctx context.Context, ws *models.Workspace) error {
	now := time.Now()
	if err := r.db.WithContext(ctx).Model(ws).Update("deleted_at", now).Error; err != nil {
		return err
	}
	ws.DeletedAt = gorm.DeletedAt{Time: now, Valid: true}
	return nil
}

// FindByIDAndPluginID loads a workspace only if the plugin is installed in it.
func (r *WorkspaceRepository) FindByIDAndPluginID(ctx context.Context, workspaceID, pluginID uuid.UUID) (*models.Workspace, error) {
	ws, err := r.Get(ctx, workspaceID)
	if err != nil {
		return nil, err
	}
	for _, p := range ws.Plugins {
		if p.PluginID == pluginID {
			return ws, nil
		}
	}
	return nil, ErrNotFound
}

// FindWithIncompleteDefaults returns workspaces missing any of their default
// group references, and workspaces whose administrator group has no member.
func (r *WorkspaceRepository) FindWithIncompleteDefaults(ctx context.Context) ([]models.Workspace, error) {
	all, err := r.FindAll(ctx)
	if err != nil {
		return nil, err
	}
	expected := len(acl.DefaultRoles())
	var incomplete []models.Workspace
	for _, ws := range all {
		if len(ws.DefaultUserGroupIDs) < expected || len(ws.DefaultPermissionGroupIDs) < expected {
			incomplete = append(incomplete, ws)
			continue
		}
		staffed, err := r.hasAdministrator(ctx, &ws)
		if err != nil {
			return nil, err
		}
		if !staffed {
			incomplete = append(incomplete, ws)
		}
	}
	return incomplete, nil
}

func (r *WorkspaceRepository) hasAdministrator(ctx context.Context, ws *models.Workspace) (bool, error) {
	var groups []models.UserGroup
	if err := r.db.WithContext(ctx).Where("id IN ?", ws.DefaultUserGroupIDs).Find(&groups).Error; err != nil {
		return false, err
	}
	for _, g := range groups {
		if role, ok := acl.RoleForGroupName(g.Name); ok && role.Name == acl.Administrator.Name && len(g.Users) > 0 {
			return true, nil
		}
	}
	return false, nil
}
