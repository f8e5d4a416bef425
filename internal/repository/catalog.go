package repository

import (
	"context"

	"github.com/google/uuid"
	"github.com/nebari-dev/tenancy/internal/models"
	"gorm.io/gorm"
)

// PluginRepository reads the plugin catalogue.
type PluginRepository struct {
	db *gorm.DB
}

// FindByDefaultInstall returns plugins whose default-install flag matches.
func (r *PluginRepository) FindByDefaultInstall(ctx context.Context, defaultInstall bool) ([]models.Plugin, error) {
	var plugins []models.Plugin
	err := r.db.WithContext(ctx).Where("default_install = ?", defaultInstall).Order("package_name").Find(&plugins).Error
	return plugins, err
}

// ApplicationRepository reads applications for ownership checks.
type ApplicationRepository struct {
	db *gorm.DB
}

// CountByWorkspaceID counts live applications in the workspace.
func (r *ApplicationRepository) CountByWorkspaceID(ctx context.Context, workspaceID uuid.UUID) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&models.Application{}).Where("workspace_id = ?", workspaceID).Count(&count).Error
	return count, err
}

// AssetRepository persists asset rows.
type AssetRepository struct {
	db *gorm.DB
}

func (r *AssetRepository) Create(ctx context.Context, a *models.Asset) error {
	return r.db.WithContext(ctx).Create(a).Error
}

func (r *AssetRepository) FindByID(ctx context.Context, id uuid.UUID) (*models.Asset, error) {
	var a models.Asset
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&a).Error; err != nil {
		return nil, notFound(err)
	}
	return &a, nil
}

// Delete removes the asset row. Deleting a missing asset reports ErrNotFound.
func (r *AssetRepository) Delete(ctx context.Context, id uuid.UUID) error {
	res := r.db.WithContext(ctx).Where("id = ?", id).Delete(&models.Asset{})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}
