package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// PermissionGroup is a named set of permission grants that can be assigned
// to users and user groups.
type PermissionGroup struct {
	ID                 uuid.UUID         `gorm:"type:text;primary_key" json:"id"`
	Name               string            `gorm:"not null" json:"name"`
	TenantID           uuid.UUID         `gorm:"type:text;index" json:"tenant_id"`
	DefaultWorkspaceID *uuid.UUID        `gorm:"type:text;index" json:"default_workspace_id,omitempty"`
	Description        string            `gorm:"type:text" json:"description,omitempty"`
	IsDefault          bool              `gorm:"default:false" json:"is_default"`
	Permissions        []PermissionGrant `gorm:"serializer:json" json:"permissions"`
	CreatedAt          time.Time         `json:"created_at"`
	UpdatedAt          time.Time         `json:"updated_at"`
	DeletedAt          gorm.DeletedAt    `gorm:"index" json:"-"`
}

// TableName specifies the table name for PermissionGroup
func (PermissionGroup) TableName() string {
	return "permission_groups"
}

// BeforeCreate hook to generate UUID
func (g *PermissionGroup) BeforeCreate(tx *gorm.DB) error {
	if g.ID == uuid.Nil {
		g.ID = uuid.New()
	}
	return nil
}
