package models

import (
	"time"
)

// ServerConfig stores installation-wide settings as key-value pairs
type ServerConfig struct {
	Key       string    `gorm:"primarykey;not null" json:"key"`
	Value     string    `gorm:"not null" json:"value"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Known configuration keys
const (
	ServerConfigKeyDefaultTenantID = "default_tenant_id"
)
