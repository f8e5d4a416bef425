package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// UserInGroup is a member entry of a UserGroup.
type UserInGroup struct {
	ID       uuid.UUID `json:"id"`
	Username string    `json:"username"`
	Name     string    `json:"name,omitempty"`
}

// UserGroup is a named collection of users sharing a role. Default groups
// point back at the workspace they were provisioned for.
type UserGroup struct {
	ID                 uuid.UUID      `gorm:"type:text;primary_key" json:"id"`
	Name               string         `gorm:"not null" json:"name"`
	TenantID           uuid.UUID      `gorm:"type:text;index" json:"tenant_id"`
	DefaultWorkspaceID *uuid.UUID     `gorm:"type:text;index" json:"default_workspace_id,omitempty"`
	Description        string         `gorm:"type:text" json:"description,omitempty"`
	Users              []UserInGroup  `gorm:"serializer:json" json:"users"`
	CreatedAt          time.Time      `json:"created_at"`
	UpdatedAt          time.Time      `json:"updated_at"`
	DeletedAt          gorm.DeletedAt `gorm:"index" json:"-"`
}

// TableName specifies the table name for UserGroup
func (UserGroup) TableName() string {
	return "user_groups"
}

// BeforeCreate hook to generate UUID
func (g *UserGroup) BeforeCreate(tx *gorm.DB) error {
	if g.ID == uuid.Nil {
		g.ID = uuid.New()
	}
	return nil
}

// HasUser reports whether userID is a member.
func (g *UserGroup) HasUser(userID uuid.UUID) bool {
	for _, u := range g.Users {
		if u.ID == userID {
			return true
		}
	}
	return false
}

// AddUser adds u to the group. It returns false if u was already a member.
func (g *UserGroup) AddUser(u *User) bool {
	if g.HasUser(u.ID) {
		return false
	}
	g.Users = append(g.Users, UserInGroup{ID: u.ID, Username: u.Username, Name: u.Name})
	return true
}
