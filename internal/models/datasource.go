package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Endpoint is a host/port pair a datasource connects to.
type Endpoint struct {
	Host string `json:"host"`
	Port int    `json:"port,omitempty"`
}

// DBAuth holds datasource credentials.
type DBAuth struct {
	AuthType     string `json:"auth_type,omitempty"`
	Username     string `json:"username,omitempty"`
	Password     string `json:"password,omitempty"`
	DatabaseName string `json:"database_name,omitempty"`
}

// DatasourceConfiguration is the connection configuration of a datasource,
// credentials included.
type DatasourceConfiguration struct {
	URL            string            `json:"url,omitempty"`
	Endpoints      []Endpoint        `json:"endpoints,omitempty"`
	Authentication *DBAuth           `json:"authentication,omitempty"`
	Properties     map[string]string `json:"properties,omitempty"`
}

// Datasource is an external data connection owned by a workspace.
// Configuration is nil once it has moved to a DatasourceConfigurationStorage.
type Datasource struct {
	ID                      uuid.UUID                `gorm:"type:text;primary_key" json:"id"`
	Name                    string                   `gorm:"not null" json:"name"`
	WorkspaceID             uuid.UUID                `gorm:"type:text;not null;index" json:"workspace_id"`
	PluginID                uuid.UUID                `gorm:"type:text" json:"plugin_id"`
	Configuration           *DatasourceConfiguration `gorm:"serializer:json" json:"configuration,omitempty"`
	Invalids                []string                 `gorm:"serializer:json" json:"invalids,omitempty"`
	HasConfigurationStorage bool                     `gorm:"default:false" json:"has_configuration_storage"`
	CreatedAt               time.Time                `json:"created_at"`
	UpdatedAt               time.Time                `json:"updated_at"`
	DeletedAt               gorm.DeletedAt           `gorm:"index" json:"-"`
}

// BeforeCreate hook to generate UUID
func (d *Datasource) BeforeCreate(tx *gorm.DB) error {
	if d.ID == uuid.Nil {
		d.ID = uuid.New()
	}
	return nil
}

// DatasourceConfigurationStorage holds the configuration of one datasource
// for one environment. Configuration is sealed JSON (see internal/crypto).
type DatasourceConfigurationStorage struct {
	ID            uuid.UUID `gorm:"type:text;primary_key" json:"id"`
	DatasourceID  uuid.UUID `gorm:"type:text;not null;uniqueIndex:idx_ds_storage_env" json:"datasource_id"`
	EnvironmentID string    `gorm:"not null;uniqueIndex:idx_ds_storage_env" json:"environment_id"`
	Configuration string    `gorm:"type:text" json:"-"`
	Invalids      []string  `gorm:"serializer:json" json:"invalids,omitempty"`
	Flags         []string  `gorm:"serializer:json" json:"flags"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// TableName specifies the table name for DatasourceConfigurationStorage
func (DatasourceConfigurationStorage) TableName() string {
	return "datasource_configuration_storages"
}

// BeforeCreate hook to generate UUID
func (s *DatasourceConfigurationStorage) BeforeCreate(tx *gorm.DB) error {
	if s.ID == uuid.Nil {
		s.ID = uuid.New()
	}
	return nil
}
