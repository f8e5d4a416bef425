package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// WorkspacePluginStatus is the billing tier a plugin is installed under.
type WorkspacePluginStatus string

const (
	PluginStatusFree WorkspacePluginStatus = "FREE"
)

// WorkspacePlugin records a plugin installed into a workspace.
type WorkspacePlugin struct {
	PluginID uuid.UUID             `json:"plugin_id"`
	Status   WorkspacePluginStatus `json:"status"`
}

// UserRole records the role a user holds inside a workspace.
type UserRole struct {
	UserID   uuid.UUID `json:"user_id"`
	Username string    `json:"username"`
	Name     string    `json:"name,omitempty"`
	RoleName string    `json:"role_name"`
}

// Workspace is a tenant-scoped container for applications, datasources and users.
// Archiving a workspace soft-deletes it.
type Workspace struct {
	ID       uuid.UUID `gorm:"type:text;primary_key" json:"id"`
	Name     string    `gorm:"not null" json:"name" validate:"required,max=255"`
	Slug     string    `gorm:"index" json:"slug"`
	TenantID uuid.UUID `gorm:"type:text;index" json:"tenant_id"`
	Email    string    `json:"email,omitempty" validate:"omitempty,email"`
	Website  string    `json:"website,omitempty" validate:"omitempty,url"`
	Domain   string    `json:"domain,omitempty" validate:"omitempty,fqdn"`

	Plugins                   []WorkspacePlugin `gorm:"serializer:json" json:"plugins,omitempty"`
	DefaultUserGroupIDs       []uuid.UUID       `gorm:"serializer:json" json:"default_user_group_ids,omitempty"`
	DefaultPermissionGroupIDs []uuid.UUID       `gorm:"serializer:json" json:"default_permission_group_ids,omitempty"`
	LogoAssetID               *uuid.UUID        `gorm:"type:text" json:"logo_asset_id,omitempty"`
	Policies                  []Policy          `gorm:"serializer:json" json:"policies,omitempty"`
	UserRoles                 []UserRole        `gorm:"serializer:json" json:"user_roles,omitempty"`
	IsAutoGenerated           bool              `gorm:"default:false" json:"is_auto_generated"`

	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`
}

// TableName ensures GORM uses the "workspaces" table
func (Workspace) TableName() string {
	return "workspaces"
}

// BeforeCreate hook to generate UUID
func (w *Workspace) BeforeCreate(tx *gorm.DB) error {
	if w.ID == uuid.Nil {
		w.ID = uuid.New()
	}
	return nil
}

// IsArchived reports whether the workspace has been archived.
func (w *Workspace) IsArchived() bool {
	return w.DeletedAt.Valid
}

// UserRoleFor returns the role entry recorded for username, if any.
func (w *Workspace) UserRoleFor(username string) (UserRole, bool) {
	for _, r := range w.UserRoles {
		if r.Username == username {
			return r, true
		}
	}
	return UserRole{}, false
}
