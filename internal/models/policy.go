package models

import "github.com/google/uuid"

// Policy is access-control metadata stored on a document: the users and
// permission groups that hold Permission on it.
type Policy struct {
	Permission       string   `json:"permission"`
	Users            []string `json:"users,omitempty"`
	PermissionGroups []string `json:"permission_groups,omitempty"`
}

// PermissionGrant is a concrete permission on a single document.
type PermissionGrant struct {
	DocumentID uuid.UUID `json:"document_id"`
	Permission string    `json:"permission"`
}
