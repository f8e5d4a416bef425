// Package repository is the gorm-backed persistence layer. Reads that take a
// permission are capability-checked against the session user and report
// ErrNotFound when the user lacks it, so callers cannot tell an inaccessible
// record from a missing one.
package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/nebari-dev/tenancy/internal/acl"
	"github.com/nebari-dev/tenancy/internal/rbac"
	"github.com/nebari-dev/tenancy/internal/session"
	"gorm.io/gorm"
)

// ErrNotFound indicates the record does not exist or is not visible to the caller.
var ErrNotFound = errors.New("record not found")

// Repositories bundles every repository over one database handle.
type Repositories struct {
	Workspaces        *WorkspaceRepository
	UserGroups        *UserGroupRepository
	PermissionGroups  *PermissionGroupRepository
	Users             *UserRepository
	Plugins           *PluginRepository
	Applications      *ApplicationRepository
	Assets            *AssetRepository
	Datasources       *DatasourceRepository
	DatasourceStorage *DatasourceStorageRepository
}

// New builds all repositories over db.
func New(db *gorm.DB) *Repositories {
	return &Repositories{
		Workspaces:        &WorkspaceRepository{db: db},
		UserGroups:        &UserGroupRepository{db: db},
		PermissionGroups:  &PermissionGroupRepository{db: db},
		Users:             &UserRepository{db: db},
		Plugins:           &PluginRepository{db: db},
		Applications:      &ApplicationRepository{db: db},
		Assets:            &AssetRepository{db: db},
		Datasources:       &DatasourceRepository{db: db},
		DatasourceStorage: &DatasourceStorageRepository{db: db},
	}
}

// allowed reports whether the session user holds perm on the workspace. An
// empty permission skips the check. Without a session user only a disabled
// enforcer lets the read through.
func allowed(ctx context.Context, workspaceID uuid.UUID, perm acl.Permission) (bool, error) {
	if perm == "" {
		return true, nil
	}
	var userID uuid.UUID
	if user := session.UserFromContext(ctx); user != nil {
		userID = user.ID
	}
	ok, err := rbac.Can(userID, workspaceID, string(perm))
	if err != nil {
		return false, fmt.Errorf("check %s on workspace %s: %w", perm, workspaceID, err)
	}
	return ok, nil
}

// notFound maps gorm's missing-record error onto ErrNotFound.
func notFound(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrNotFound
	}
	return err
}

// orderByIDs returns items in the order of ids, dropping ids with no match.
func orderByIDs[T any](ids []uuid.UUID, items []T, idOf func(*T) uuid.UUID) []T {
	byID := make(map[uuid.UUID]T, len(items))
	for i := range items {
		byID[idOf(&items[i])] = items[i]
	}
	ordered := make([]T, 0, len(items))
	for _, id := range ids {
		if item, ok := byID[id]; ok {
			ordered = append(ordered, item)
			delete(byID, id)
		}
	}
	return ordered
}
