package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Plugin is a datasource or integration plugin available to workspaces.
// Plugins flagged DefaultInstall are installed into every new workspace.
type Plugin struct {
	ID             uuid.UUID `gorm:"type:text;primary_key" json:"id"`
	Name           string    `gorm:"not null" json:"name"`
	PackageName    string    `gorm:"uniqueIndex;not null" json:"package_name"`
	DefaultInstall bool      `gorm:"default:false;index" json:"default_install"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// BeforeCreate hook to generate UUID
func (p *Plugin) BeforeCreate(tx *gorm.DB) error {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	return nil
}
