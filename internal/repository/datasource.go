package repository

import (
	"context"

	"github.com/google/uuid"
	"github.com/nebari-dev/tenancy/internal/models"
	"gorm.io/gorm"
)

// DatasourceRepository persists datasources.
type DatasourceRepository struct {
	db *gorm.DB
}

// WithTx returns a repository bound to tx.
func (r *DatasourceRepository) WithTx(tx *gorm.DB) *DatasourceRepository {
	return &DatasourceRepository{db: tx}
}

func (r *DatasourceRepository) FindByID(ctx context.Context, id uuid.UUID) (*models.Datasource, error) {
	var ds models.Datasource
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&ds).Error; err != nil {
		return nil, notFound(err)
	}
	return &ds, nil
}

func (r *DatasourceRepository) Save(ctx context.Context, ds *models.Datasource) error {
	return r.db.WithContext(ctx).Save(ds).Error
}

// FindWithEmbeddedConfiguration returns datasources whose configuration has
// not moved to configuration storage yet.
func (r *DatasourceRepository) FindWithEmbeddedConfiguration(ctx context.Context) ([]models.Datasource, error) {
	var sources []models.Datasource
	err := r.db.WithContext(ctx).
		Where("has_configuration_storage = ?", false).
		Order("created_at").
		Find(&sources).Error
	if err != nil {
		return nil, err
	}
	// The configuration column is serialized JSON, so "null" and NULL both mean empty.
	withConfig := sources[:0]
	for _, ds := range sources {
		if ds.Configuration != nil {
			withConfig = append(withConfig, ds)
		}
	}
	return withConfig, nil
}

// DatasourceStorageRepository persists per-environment datasource configuration.
type DatasourceStorageRepository struct {
	db *gorm.DB
}

// WithTx returns a repository bound to tx.
func (r *DatasourceStorageRepository) WithTx(tx *gorm.DB) *DatasourceStorageRepository {
	return &DatasourceStorageRepository{db: tx}
}

func (r *DatasourceStorageRepository) Create(ctx context.Context, s *models.DatasourceConfigurationStorage) error {
	return r.db.WithContext(ctx).Create(s).Error
}

func (r *DatasourceStorageRepository) Save(ctx context.Context, s *models.DatasourceConfigurationStorage) error {
	return r.db.WithContext(ctx).Save(s).Error
}

func (r *DatasourceStorageRepository) FindByDatasourceAndEnvironment(ctx context.Context, datasourceID uuid.UUID, environmentID string) (*models.DatasourceConfigurationStorage, error) {
	var s models.DatasourceConfigurationStorage
	err := r.db.WithContext(ctx).
		Where("datasource_id = ? AND environment_id = ?", datasourceID, environmentID).
		First(&s).Error
	if err != nil {
		return nil, notFound(err)
	}
	return &s, nil
}

func (r *DatasourceStorageRepository) CountByDatasourceAndEnvironment(ctx context.Context, datasourceID uuid.UUID, environmentID string) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&models.DatasourceConfigurationStorage{}).
		Where("datasource_id = ? AND environment_id = ?", datasourceID, environmentID).
		Count(&count).Error
	return count, err
}
