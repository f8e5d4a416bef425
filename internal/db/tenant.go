package db

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/nebari-dev/tenancy/internal/models"
	"gorm.io/gorm"
)

// GetOrCreateDefaultTenantID retrieves the installation's default tenant,
// or generates and stores a new one if it doesn't exist.
// This should be called after migrations.
func GetOrCreateDefaultTenantID(db *gorm.DB) (uuid.UUID, error) {
	var config models.ServerConfig

	err := db.Where("key = ?", models.ServerConfigKeyDefaultTenantID).First(&config).Error
	if err == nil {
		id, err := uuid.Parse(config.Value)
		if err != nil {
			return uuid.Nil, fmt.Errorf("stored default tenant id is invalid: %w", err)
		}
		return id, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return uuid.Nil, fmt.Errorf("failed to query server config: %w", err)
	}

	tenantID := uuid.New()
	config = models.ServerConfig{
		Key:   models.ServerConfigKeyDefaultTenantID,
		Value: tenantID.String(),
	}
	if err := db.Create(&config).Error; err != nil {
		return uuid.Nil, fmt.Errorf("failed to create default tenant id: %w", err)
	}

	slog.Info("Generated default tenant", "tenant_id", tenantID)
	return tenantID, nil
}

// GetDefaultTenantID retrieves the default tenant.
// Returns an error if it has not been initialized.
func GetDefaultTenantID(db *gorm.DB) (uuid.UUID, error) {
	var config models.ServerConfig

	err := db.Where("key = ?", models.ServerConfigKeyDefaultTenantID).First(&config).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return uuid.Nil, fmt.Errorf("default tenant not initialized")
		}
		return uuid.Nil, fmt.Errorf("failed to query server config: %w", err)
	}
	return uuid.Parse(config.Value)
}
