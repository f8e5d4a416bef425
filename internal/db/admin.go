package db

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/google/uuid"
	"github.com/nebari-dev/tenancy/internal/acl"
	"github.com/nebari-dev/tenancy/internal/models"
	"gorm.io/gorm"
)

// CreateDefaultAdmin creates a user allowed to create workspaces if
// ADMIN_EMAIL is set and no users exist in the database. It returns nil when
// nothing was created.
func CreateDefaultAdmin(db *gorm.DB, tenantID uuid.UUID) (*models.User, error) {
	email := os.Getenv("ADMIN_EMAIL")
	name := os.Getenv("ADMIN_NAME")

	if email == "" {
		slog.Info("No ADMIN_EMAIL set, skipping default admin creation")
		return nil, nil
	}

	var count int64
	if err := db.Model(&models.User{}).Count(&count).Error; err != nil {
		return nil, fmt.Errorf("failed to count users: %w", err)
	}
	if count > 0 {
		slog.Info("Users already exist, skipping default admin creation")
		return nil, nil
	}

	user := models.User{
		Username: email,
		Email:    email,
		Name:     name,
		TenantID: tenantID,
		Policies: []models.Policy{
			{Permission: string(acl.ManageUserWorkspaces)},
			{Permission: string(acl.ReadUsers)},
			{Permission: string(acl.ReadUserGroups)},
		},
	}
	if err := db.Create(&user).Error; err != nil {
		return nil, fmt.Errorf("failed to create admin user: %w", err)
	}

	slog.Info("Default admin user created", "email", email, "tenant_id", tenantID)
	return &user, nil
}
