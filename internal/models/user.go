package models

import (
	"regexp"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

var firstNameSeparator = regexp.MustCompile(`[\s@]+`)

// User represents a platform user. Username holds the login, which is an email address.
type User struct {
	ID           uuid.UUID      `gorm:"type:text;primary_key" json:"id"`
	Username     string         `gorm:"uniqueIndex;not null" json:"username"`
	Email        string         `gorm:"uniqueIndex;not null" json:"email"`
	Name         string         `json:"name,omitempty"`
	TenantID     uuid.UUID      `gorm:"type:text;index" json:"tenant_id"`
	Policies     []Policy       `gorm:"serializer:json" json:"policies,omitempty"`
	WorkspaceIDs []uuid.UUID    `gorm:"serializer:json" json:"workspace_ids,omitempty"`
	CreatedAt    time.Time      `json:"created_at"`
	UpdatedAt    time.Time      `json:"updated_at"`
	DeletedAt    gorm.DeletedAt `gorm:"index" json:"-"`
}

// BeforeCreate hook to generate UUID
func (u *User) BeforeCreate(tx *gorm.DB) error {
	if u.ID == uuid.Nil {
		u.ID = uuid.New()
	}
	return nil
}

// FirstName returns the first word of the user's name, falling back to the
// local part of the email when no name is set.
func (u *User) FirstName() string {
	source := u.Name
	if source == "" {
		source = u.Email
	}
	return firstNameSeparator.Split(source, 2)[0]
}

// HasPermission reports whether any of the user's own policies grants permission.
func (u *User) HasPermission(permission string) bool {
	for _, p := range u.Policies {
		if p.Permission == permission {
			return true
		}
	}
	return false
}

// InWorkspace reports whether the user is associated with the workspace.
func (u *User) InWorkspace(workspaceID uuid.UUID) bool {
	for _, id := range u.WorkspaceIDs {
		if id == workspaceID {
			return true
		}
	}
	return false
}
