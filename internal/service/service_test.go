package service

import (
	"context"
	"encoding/base64"
	"log/slog"
	"path/filepath"
	"testing"

	"github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"github.com/nebari-dev/tenancy/internal/analytics"
	"github.com/nebari-dev/tenancy/internal/asset"
	"github.com/nebari-dev/tenancy/internal/models"
	"github.com/nebari-dev/tenancy/internal/rbac"
	"github.com/nebari-dev/tenancy/internal/repository"
	"github.com/nebari-dev/tenancy/internal/session"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// 1x1 transparent PNG.
var pngPixel, _ = base64.StdEncoding.DecodeString(
	"iVBORw0KGgoAAAANSUhEUgAAAAEAAAABCAQAAAC1HAwCAAAAC0lEQVR42mNkYAAAAAYAAjCB0C8AAAAASUVORK5CYII=")

type fixture struct {
	svc    *WorkspaceService
	db     *gorm.DB
	repos  *repository.Repositories
	events *analytics.MemoryPublisher
	tenant uuid.UUID
}

// testSetup creates a throwaway DB, migrates models, initializes RBAC,
// and returns a WorkspaceService ready for testing.
func testSetup(t *testing.T) *fixture {
	t.Helper()

	dbPath := filepath.Join(t.TempDir(), "test.db")
	db, err := gorm.Open(sqlite.Open(dbPath), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("sql db: %v", err)
	}
	// Group provisioning writes from two goroutines; SQLite wants them serialized.
	sqlDB.SetMaxOpenConns(1)

	if err := db.AutoMigrate(
		&models.User{},
		&models.Workspace{},
		&models.UserGroup{},
		&models.PermissionGroup{},
		&models.Plugin{},
		&models.Application{},
		&models.Asset{},
		&models.AuditLog{},
	); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	// RBAC enforcer is global, initialize per test
	if err := rbac.InitEnforcer(db, slog.Default()); err != nil {
		t.Fatalf("init rbac: %v", err)
	}

	repos := repository.New(db)
	events := analytics.NewMemoryPublisher(16)
	t.Cleanup(func() { events.Close() })

	svc := New(db, repos, Options{
		Assets:    asset.NewService(repos.Assets, asset.DatabaseStore{}),
		Publisher: events,
	})
	return &fixture{svc: svc, db: db, repos: repos, events: events, tenant: uuid.New()}
}

// createUser inserts a user allowed to create workspaces.
func (f *fixture) createUser(t *testing.T, name, email string) *models.User {
	t.Helper()
	u := &models.User{
		Username: email,
		Email:    email,
		Name:     name,
		TenantID: f.tenant,
		Policies: []models.Policy{{Permission: "manage:userWorkspaces"}},
	}
	if err := f.db.Create(u).Error; err != nil {
		t.Fatalf("create user: %v", err)
	}
	return u
}

// createWorkspace creates a workspace owned by user.
func (f *fixture) createWorkspace(t *testing.T, name string, user *models.User) *models.Workspace {
	t.Helper()
	ws, err := f.svc.Create(context.Background(), &models.Workspace{Name: name}, user)
	if err != nil {
		t.Fatalf("create workspace: %v", err)
	}
	return ws
}

func (f *fixture) userGroups(t *testing.T, ws *models.Workspace) []models.UserGroup {
	t.Helper()
	groups, err := f.repos.UserGroups.FindAllByID(context.Background(), ws.DefaultUserGroupIDs)
	if err != nil {
		t.Fatalf("load user groups: %v", err)
	}
	return groups
}

func (f *fixture) permissionGroups(t *testing.T, ws *models.Workspace) []models.PermissionGroup {
	t.Helper()
	groups, err := f.repos.PermissionGroups.FindAllByID(context.Background(), ws.DefaultPermissionGroupIDs)
	if err != nil {
		t.Fatalf("load permission groups: %v", err)
	}
	return groups
}

func (f *fixture) nextEvent(t *testing.T) analytics.Event {
	t.Helper()
	select {
	case ev := <-f.events.Events():
		return ev
	default:
		t.Fatal("expected an analytics event")
		return analytics.Event{}
	}
}

func asUser(u *models.User) context.Context {
	return session.WithUser(context.Background(), u)
}
