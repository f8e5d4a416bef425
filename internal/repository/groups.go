package repository

import (
	"context"

	"github.com/google/uuid"
	"github.com/nebari-dev/tenancy/internal/models"
	"gorm.io/gorm"
)

// UserGroupRepository persists access groups.
type UserGroupRepository struct {
	db *gorm.DB
}

func (r *UserGroupRepository) Create(ctx context.Context, g *models.UserGroup) error {
	return r.db.WithContext(ctx).Create(g).Error
}

func (r *UserGroupRepository) Save(ctx context.Context, g *models.UserGroup) error {
	return r.db.WithContext(ctx).Save(g).Error
}

// FindAllByID returns the groups with the given ids in id order. Missing ids
// are skipped.
func (r *UserGroupRepository) FindAllByID(ctx context.Context, ids []uuid.UUID) ([]models.UserGroup, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	var groups []models.UserGroup
	if err := r.db.WithContext(ctx).Where("id IN ?", ids).Find(&groups).Error; err != nil {
		return nil, err
	}
	return orderByIDs(ids, groups, func(g *models.UserGroup) uuid.UUID { return g.ID }), nil
}

// FindByDefaultWorkspace returns the groups provisioned for a workspace.
func (r *UserGroupRepository) FindByDefaultWorkspace(ctx context.Context, workspaceID uuid.UUID) ([]models.UserGroup, error) {
	var groups []models.UserGroup
	err := r.db.WithContext(ctx).Where("default_workspace_id = ?", workspaceID).Order("created_at").Find(&groups).Error
	return groups, err
}

// PermissionGroupRepository persists permission groups.
type PermissionGroupRepository struct {
	db *gorm.DB
}

func (r *PermissionGroupRepository) Create(ctx context.Context, g *models.PermissionGroup) error {
	return r.db.WithContext(ctx).Create(g).Error
}

func (r *PermissionGroupRepository) Save(ctx context.Context, g *models.PermissionGroup) error {
	return r.db.WithContext(ctx).Save(g).Error
}

// FindAllByID returns the groups with the given ids in id order. Missing ids
// are skipped.
func (r *PermissionGroupRepository) FindAllByID(ctx context.Context, ids []uuid.UUID) ([]models.PermissionGroup, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	var groups []models.PermissionGroup
	if err := r.db.WithContext(ctx).Where("id IN ?", ids).Find(&groups).Error; err != nil {
		return nil, err
	}
	return orderByIDs(ids, groups, func(g *models.PermissionGroup) uuid.UUID { return g.ID }), nil
}

// FindByDefaultWorkspace returns the groups provisioned for a workspace.
func (r *PermissionGroupRepository) FindByDefaultWorkspace(ctx context.Context, workspaceID uuid.UUID) ([]models.PermissionGroup, error) {
	var groups []models.PermissionGroup
	err := r.db.WithContext(ctx).Where("default_workspace_id = ?", workspaceID).Order("created_at").Find(&groups).Error
	return groups, err
}
