package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Asset is a binary object referenced by id from other entities.
// Data is populated by the database blob store; StorageKey by object stores.
type Asset struct {
	ID          uuid.UUID `gorm:"type:text;primary_key" json:"id"`
	ContentType string    `gorm:"not null" json:"content_type"`
	Size        int64     `gorm:"not null" json:"size"`
	Data        []byte    `json:"-"`
	StorageKey  string    `json:"storage_key,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

// BeforeCreate hook to generate UUID
func (a *Asset) BeforeCreate(tx *gorm.DB) error {
	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}
	return nil
}
