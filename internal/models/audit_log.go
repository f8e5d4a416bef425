package models

import (
	"time"

	"github.com/google/uuid"
)

// AuditLog records a workspace administration action. UserID is uuid.Nil
// for actions taken by operator tooling.
type AuditLog struct {
	ID          uint      `gorm:"primarykey" json:"id"`
	UserID      uuid.UUID `gorm:"type:text;index" json:"user_id"`
	Action      string    `gorm:"not null;index" json:"action"`  // e.g. "create_workspace"
	Resource    string    `gorm:"not null;index" json:"resource"` // e.g. "ws:<id>", "ds:<id>"
	DetailsJSON string    `gorm:"type:text" json:"details_json"`
	Timestamp   time.Time `gorm:"not null;index" json:"timestamp"`
}
