package service

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/nebari-dev/tenancy/internal/acl"
	"github.com/nebari-dev/tenancy/internal/analytics"
	"github.com/nebari-dev/tenancy/internal/asset"
	"github.com/nebari-dev/tenancy/internal/models"
	"github.com/nebari-dev/tenancy/internal/rbac"
	"github.com/nebari-dev/tenancy/internal/repository"
	"github.com/nebari-dev/tenancy/internal/session"
)

func TestCreateProvisionsDefaults(t *testing.T) {
	f := testSetup(t)
	restPlugin := &models.Plugin{Name: "REST API", PackageName: "restapi-plugin", DefaultInstall: true}
	otherPlugin := &models.Plugin{Name: "MongoDB", PackageName: "mongo-plugin"}
	f.db.Create(restPlugin)
	f.db.Create(otherPlugin)
	user := f.createUser(t, "Ada Lovelace", "ada@example.com")

	ws := f.createWorkspace(t, "Acme Corp", user)

	if ws.Slug != "acme-corp" {
		t.Errorf("slug = %q, want acme-corp", ws.Slug)
	}
	if ws.Email != "ada@example.com" {
		t.Errorf("email = %q, want creator's email", ws.Email)
	}
	if ws.TenantID != f.tenant {
		t.Errorf("tenant = %s, want %s", ws.TenantID, f.tenant)
	}
	if len(ws.Plugins) != 1 || ws.Plugins[0].PluginID != restPlugin.ID || ws.Plugins[0].Status != models.PluginStatusFree {
		t.Errorf("plugins = %+v, want only the default plugin as FREE", ws.Plugins)
	}
	if len(ws.Policies) == 0 {
		t.Error("policies not populated from permission groups")
	}

	userGroups := f.userGroups(t, ws)
	if len(userGroups) != 3 {
		t.Fatalf("got %d user groups, want 3", len(userGroups))
	}
	wantNames := []string{"Administrator - Acme Corp", "Developer - Acme Corp", "App Viewer - Acme Corp"}
	admins := 0
	for i, g := range userGroups {
		if g.Name != wantNames[i] {
			t.Errorf("user group %d = %q, want %q", i, g.Name, wantNames[i])
		}
		if g.TenantID != f.tenant || g.DefaultWorkspaceID == nil || *g.DefaultWorkspaceID != ws.ID {
			t.Errorf("user group %q not bound to workspace and tenant", g.Name)
		}
		if strings.HasPrefix(g.Name, acl.Administrator.Name) {
			admins++
			if !g.HasUser(user.ID) {
				t.Error("creator is not a member of the administrator group")
			}
		} else if g.HasUser(user.ID) {
			t.Errorf("creator unexpectedly in %q", g.Name)
		}
	}
	if admins != 1 {
		t.Errorf("got %d administrator groups, want 1", admins)
	}

	permissionGroups := f.permissionGroups(t, ws)
	if len(permissionGroups) != 3 {
		t.Fatalf("got %d permission groups, want 3", len(permissionGroups))
	}
	for i, g := range permissionGroups {
		role := acl.DefaultRoles()[i]
		if !g.IsDefault {
			t.Errorf("permission group %q not flagged default", g.Name)
		}
		if len(g.Permissions) != len(acl.PermissionsFor(role.Name)) {
			t.Errorf("%q has %d grants, want %d", g.Name, len(g.Permissions), len(acl.PermissionsFor(role.Name)))
		}
		for _, grant := range g.Permissions {
			if grant.DocumentID != ws.ID {
				t.Errorf("grant %v targets another document", grant)
			}
		}
	}

	role, ok := ws.UserRoleFor(user.Username)
	if !ok || role.RoleName != acl.Administrator.Name || role.UserID != user.ID {
		t.Errorf("creator role = %+v, %v", role, ok)
	}

	reloaded, err := f.repos.Users.FindByID(context.Background(), user.ID)
	if err != nil {
		t.Fatal(err)
	}
	if !reloaded.InWorkspace(ws.ID) {
		t.Error("creator not associated with the workspace")
	}

	for _, perm := range []acl.Permission{acl.ManageWorkspaces, acl.WorkspaceManageApplications, acl.ReadWorkspaces} {
		ok, err := rbac.Can(user.ID, ws.ID, string(perm))
		if err != nil || !ok {
			t.Errorf("creator lacks %s: %v", perm, err)
		}
	}

	var auditCount int64
	f.db.Model(&models.AuditLog{}).Where("action = ? AND resource = ?", "create_workspace", "ws:"+ws.ID.String()).Count(&auditCount)
	if auditCount != 1 {
		t.Errorf("audit entries = %d, want 1", auditCount)
	}
}

func TestCreateRequiresManagePermission(t *testing.T) {
	f := testSetup(t)
	user := &models.User{Username: "eve@example.com", Email: "eve@example.com"}
	f.db.Create(user)

	_, err := f.svc.Create(context.Background(), &models.Workspace{Name: "Nope"}, user)
	var authErr *AuthorizationError
	if !errors.As(err, &authErr) {
		t.Fatalf("expected AuthorizationError, got %v", err)
	}

	var count int64
	f.db.Model(&models.Workspace{}).Count(&count)
	if count != 0 {
		t.Errorf("workspace persisted despite missing permission")
	}
}

func TestCreateValidation(t *testing.T) {
	f := testSetup(t)
	user := f.createUser(t, "Ada", "ada@example.com")

	tests := []struct {
		name string
		ws   *models.Workspace
	}{
		{"nil workspace", nil},
		{"missing name", &models.Workspace{}},
		{"bad email", &models.Workspace{Name: "Acme", Email: "not-an-email"}},
		{"bad website", &models.Workspace{Name: "Acme", Website: "acme"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.svc.Create(context.Background(), tt.ws, user)
			var valErr *ValidationError
			if !errors.As(err, &valErr) {
				t.Fatalf("expected ValidationError, got %v", err)
			}
		})
	}
}

func TestCreateForCurrentUser(t *testing.T) {
	f := testSetup(t)
	user := f.createUser(t, "Ada", "ada@example.com")

	if _, err := f.svc.CreateForCurrentUser(context.Background(), &models.Workspace{Name: "Acme"}); !errors.Is(err, session.ErrNoSession) {
		t.Fatalf("expected ErrNoSession, got %v", err)
	}

	ws, err := f.svc.CreateForCurrentUser(asUser(user), &models.Workspace{Name: "Acme"})
	if err != nil {
		t.Fatalf("CreateForCurrentUser: %v", err)
	}
	if _, ok := ws.UserRoleFor(user.Username); !ok {
		t.Error("session user not recorded as a workspace role holder")
	}
}

func TestCreateForCurrentUserReloadsUser(t *testing.T) {
	f := testSetup(t)
	user := f.createUser(t, "Ada", "ada@example.com")

	stale := *user
	stale.Policies = nil
	if _, err := f.svc.CreateForCurrentUser(asUser(&stale), &models.Workspace{Name: "Granted"}); err != nil {
		t.Fatalf("stored policy ignored: %v", err)
	}

	revoked := *user
	revoked.Policies = []models.Policy{}
	if err := f.db.Save(&revoked).Error; err != nil {
		t.Fatal(err)
	}
	_, err := f.svc.CreateForCurrentUser(asUser(user), &models.Workspace{Name: "Revoked"})
	var authErr *AuthorizationError
	if !errors.As(err, &authErr) {
		t.Fatalf("expected AuthorizationError from stored policies, got %v", err)
	}

	ghost := &models.User{ID: uuid.New(), Username: "ghost@example.com", Email: "ghost@example.com"}
	if _, err := f.svc.CreateForCurrentUser(asUser(ghost), &models.Workspace{Name: "Ghost"}); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound for unknown user, got %v", err)
	}
}

func TestCreateDefault(t *testing.T) {
	f := testSetup(t)
	user := f.createUser(t, "Ada Lovelace", "ada@example.com")

	ws, err := f.svc.CreateDefault(context.Background(), &models.Workspace{Name: "ignored"}, user)
	if err != nil {
		t.Fatalf("CreateDefault: %v", err)
	}
	if ws.Name != "Ada's apps" {
		t.Errorf("name = %q, want \"Ada's apps\"", ws.Name)
	}
	if !ws.IsAutoGenerated {
		t.Error("default workspace not flagged auto-generated")
	}
	if ws.Slug != "adas-apps" {
		t.Errorf("slug = %q", ws.Slug)
	}
}

func TestCreateDefaultFallsBackToEmail(t *testing.T) {
	f := testSetup(t)
	user := f.createUser(t, "", "grace@example.com")

	ws, err := f.svc.CreateDefault(context.Background(), nil, user)
	if err != nil {
		t.Fatalf("CreateDefault: %v", err)
	}
	if ws.Name != "grace's apps" {
		t.Errorf("name = %q", ws.Name)
	}
}

func TestUpdateRenamesDefaultGroups(t *testing.T) {
	f := testSetup(t)
	user := f.createUser(t, "Ada", "ada@example.com")
	ws := f.createWorkspace(t, "A", user)

	custom := f.userGroups(t, ws)[1]
	custom.Name = "Custom - A"
	if err := f.db.Save(&custom).Error; err != nil {
		t.Fatal(err)
	}

	updated, err := f.svc.Update(asUser(user), ws.ID, &models.Workspace{Name: "B"})
	if err != nil {
		t.Fatalf("Update: %v", err)
	}
	if updated.Name != "B" || updated.Slug != "b" {
		t.Errorf("name/slug = %q/%q", updated.Name, updated.Slug)
	}

	wantUserGroups := []string{"Administrator - B", "Custom - A", "App Viewer - B"}
	for i, g := range f.userGroups(t, ws) {
		if g.Name != wantUserGroups[i] {
			t.Errorf("user group %d = %q, want %q", i, g.Name, wantUserGroups[i])
		}
	}
	wantPermissionGroups := []string{"Administrator - B", "Developer - B", "App Viewer - B"}
	for i, g := range f.permissionGroups(t, ws) {
		if g.Name != wantPermissionGroups[i] {
			t.Errorf("permission group %d = %q, want %q", i, g.Name, wantPermissionGroups[i])
		}
	}

	ev := f.nextEvent(t)
	if ev.Name() != "workspace.updated" || ev.ResourceID != ws.ID {
		t.Errorf("event = %s for %s", ev.Name(), ev.ResourceID)
	}
}

type failingPublisher struct{ calls int }

func (p *failingPublisher) Publish(context.Context, analytics.Event) error {
	p.calls++
	return errors.New("transport down")
}

func (p *failingPublisher) Close() error { return nil }

func TestUpdateSucceedsWhenPublishFails(t *testing.T) {
	f := testSetup(t)
	user := f.createUser(t, "Ada", "ada@example.com")
	ws := f.createWorkspace(t, "Acme", user)

	publisher := &failingPublisher{}
	svc := New(f.db, f.repos, Options{Publisher: publisher})

	updated, err := svc.Update(asUser(user), ws.ID, &models.Workspace{Name: "Beta"})
	if err != nil {
		t.Fatalf("Update: %v", err)
	}
	if publisher.calls != 1 {
		t.Errorf("publish calls = %d, want 1", publisher.calls)
	}
	stored, err := f.repos.Workspaces.Get(context.Background(), ws.ID)
	if err != nil {
		t.Fatal(err)
	}
	if stored.Name != "Beta" || updated.Name != "Beta" {
		t.Errorf("name = %q, want Beta", stored.Name)
	}
}

func TestUpdateEmptyPoliciesKeepsExisting(t *testing.T) {
	f := testSetup(t)
	user := f.createUser(t, "Ada", "ada@example.com")
	ws := f.createWorkspace(t, "Acme", user)
	before := len(ws.Policies)

	updated, err := f.svc.Update(asUser(user), ws.ID, &models.Workspace{Policies: []models.Policy{}})
	if err != nil {
		t.Fatalf("Update: %v", err)
	}
	if len(updated.Policies) != before || before == 0 {
		t.Errorf("policies = %d, want %d", len(updated.Policies), before)
	}
}

func TestUpdateMergesSetFieldsOnly(t *testing.T) {
	f := testSetup(t)
	user := f.createUser(t, "Ada", "ada@example.com")
	ws := f.createWorkspace(t, "Acme", user)

	updated, err := f.svc.Update(asUser(user), ws.ID, &models.Workspace{Website: "https://acme.example.com"})
	if err != nil {
		t.Fatalf("Update: %v", err)
	}
	if updated.Name != "Acme" || updated.Email != "ada@example.com" {
		t.Errorf("unset fields changed: name=%q email=%q", updated.Name, updated.Email)
	}
	if updated.Website != "https://acme.example.com" {
		t.Errorf("website = %q", updated.Website)
	}
	if len(updated.DefaultUserGroupIDs) != 3 {
		t.Error("default group references lost")
	}

	_, err = f.svc.Update(asUser(user), ws.ID, &models.Workspace{Email: "broken"})
	var valErr *ValidationError
	if !errors.As(err, &valErr) {
		t.Fatalf("expected ValidationError, got %v", err)
	}
}

func TestUpdateHiddenFromOutsiders(t *testing.T) {
	f := testSetup(t)
	owner := f.createUser(t, "Ada", "ada@example.com")
	outsider := f.createUser(t, "Eve", "eve@example.com")
	ws := f.createWorkspace(t, "Acme", owner)

	_, err := f.svc.Update(asUser(outsider), ws.ID, &models.Workspace{Name: "Taken"})
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if _, err := f.svc.Update(asUser(owner), uuid.New(), &models.Workspace{Name: "X"}); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound for unknown id, got %v", err)
	}
}

func TestArchiveByID(t *testing.T) {
	f := testSetup(t)
	user := f.createUser(t, "Ada", "ada@example.com")
	ctx := asUser(user)

	empty := f.createWorkspace(t, "Empty", user)
	archived, err := f.svc.ArchiveByID(ctx, empty.ID)
	if err != nil {
		t.Fatalf("ArchiveByID: %v", err)
	}
	if !archived.IsArchived() {
		t.Error("workspace not marked archived")
	}
	if _, err := f.svc.GetByID(ctx, empty.ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("archived workspace still readable: %v", err)
	}
	if ok, _ := rbac.Can(user.ID, empty.ID, string(acl.ManageWorkspaces)); ok {
		t.Error("policies of archived workspace still granted")
	}

	busy := f.createWorkspace(t, "Busy", user)
	f.db.Create(&models.Application{Name: "dashboard", WorkspaceID: busy.ID})

	_, err = f.svc.ArchiveByID(ctx, busy.ID)
	var conflict *ConflictError
	if !errors.As(err, &conflict) {
		t.Fatalf("expected ConflictError, got %v", err)
	}
	still, err := f.svc.GetByID(ctx, busy.ID)
	if err != nil || still.IsArchived() {
		t.Fatalf("workspace with applications changed: %v", err)
	}
}

func TestGetUserRolesForWorkspace(t *testing.T) {
	f := testSetup(t)
	owner := f.createUser(t, "Ada", "ada@example.com")
	dev := f.createUser(t, "Linus", "linus@example.com")
	ws := f.createWorkspace(t, "Acme", owner)

	if _, err := f.svc.Memberships().AddUserToWorkspaceWithRole(context.Background(), ws, dev, acl.Developer.Name); err != nil {
		t.Fatalf("AddUserToWorkspaceWithRole: %v", err)
	}

	tests := []struct {
		name string
		user *models.User
		want []string
	}{
		{"administrator", owner, []string{"Administrator", "Developer", "App Viewer"}},
		{"developer", dev, []string{"Developer", "App Viewer"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			roles, err := f.svc.GetUserRolesForWorkspace(asUser(tt.user), ws.ID)
			if err != nil {
				t.Fatalf("GetUserRolesForWorkspace: %v", err)
			}
			if len(roles) != len(tt.want) {
				t.Fatalf("roles = %+v, want %v", roles, tt.want)
			}
			for i, r := range roles {
				if r.Name != tt.want[i] {
					t.Errorf("role %d = %q, want %q", i, r.Name, tt.want[i])
				}
				if r.Description == "" {
					t.Errorf("role %q has no description", r.Name)
				}
			}
		})
	}

	if _, err := f.svc.GetUserRolesForWorkspace(asUser(owner), uuid.Nil); err == nil {
		t.Error("expected error for empty workspace id")
	}
}

func TestGetUserRolesWithoutRoleEntry(t *testing.T) {
	f := testSetup(t)
	owner := f.createUser(t, "Ada", "ada@example.com")
	ws := f.createWorkspace(t, "Acme", owner)

	ws.UserRoles = nil
	if err := f.repos.Workspaces.Save(context.Background(), ws); err != nil {
		t.Fatal(err)
	}

	roles, err := f.svc.GetUserRolesForWorkspace(asUser(owner), ws.ID)
	if err != nil {
		t.Fatalf("GetUserRolesForWorkspace: %v", err)
	}
	if len(roles) != 0 {
		t.Errorf("roles = %+v, want none", roles)
	}
}

func TestUploadLogoReplacesPrevious(t *testing.T) {
	f := testSetup(t)
	user := f.createUser(t, "Ada", "ada@example.com")
	ws := f.createWorkspace(t, "Acme", user)
	ctx := asUser(user)

	first, err := f.svc.UploadLogo(ctx, ws.ID, asset.FilePart{Filename: "a.png", Content: bytes.NewReader(pngPixel)})
	if err != nil {
		t.Fatalf("UploadLogo: %v", err)
	}
	firstID := *first.LogoAssetID

	second, err := f.svc.UploadLogo(ctx, ws.ID, asset.FilePart{Filename: "b.png", Content: bytes.NewReader(pngPixel)})
	if err != nil {
		t.Fatalf("UploadLogo: %v", err)
	}
	if second.LogoAssetID == nil || *second.LogoAssetID == firstID {
		t.Fatal("logo reference not replaced")
	}

	var assets []models.Asset
	f.db.Find(&assets)
	if len(assets) != 1 || assets[0].ID != *second.LogoAssetID {
		t.Errorf("assets = %d, want only the new logo", len(assets))
	}
}

// stickyAssets uploads normally but cannot remove anything.
type stickyAssets struct {
	AssetStore
	removed []uuid.UUID
}

func (s *stickyAssets) Remove(_ context.Context, id uuid.UUID) error {
	s.removed = append(s.removed, id)
	return errors.New("storage unavailable")
}

func TestUploadLogoKeepsNewLogoWhenRemovingPreviousFails(t *testing.T) {
	f := testSetup(t)
	user := f.createUser(t, "Ada", "ada@example.com")
	ws := f.createWorkspace(t, "Acme", user)
	ctx := asUser(user)

	assets := &stickyAssets{AssetStore: asset.NewService(f.repos.Assets, asset.DatabaseStore{})}
	svc := New(f.db, f.repos, Options{Assets: assets})

	first, err := svc.UploadLogo(ctx, ws.ID, asset.FilePart{Filename: "a.png", Content: bytes.NewReader(pngPixel)})
	if err != nil {
		t.Fatalf("UploadLogo: %v", err)
	}
	firstID := *first.LogoAssetID

	second, err := svc.UploadLogo(ctx, ws.ID, asset.FilePart{Filename: "b.png", Content: bytes.NewReader(pngPixel)})
	if err != nil {
		t.Fatalf("UploadLogo with failing removal: %v", err)
	}
	if len(assets.removed) != 1 || assets.removed[0] != firstID {
		t.Errorf("removed = %v, want the previous logo %s", assets.removed, firstID)
	}

	stored, err := f.repos.Workspaces.Get(context.Background(), ws.ID)
	if err != nil {
		t.Fatal(err)
	}
	if stored.LogoAssetID == nil || *stored.LogoAssetID != *second.LogoAssetID || *stored.LogoAssetID == firstID {
		t.Errorf("stored logo = %v, want %s", stored.LogoAssetID, *second.LogoAssetID)
	}
}

func TestUploadLogoRejectsOversize(t *testing.T) {
	f := testSetup(t)
	user := f.createUser(t, "Ada", "ada@example.com")
	ws := f.createWorkspace(t, "Acme", user)

	big := append(append([]byte{}, pngPixel...), make([]byte, DefaultLogoMaxKB*1024)...)
	_, err := f.svc.UploadLogo(asUser(user), ws.ID, asset.FilePart{Filename: "big.png", Content: bytes.NewReader(big)})
	var valErr *ValidationError
	if !errors.As(err, &valErr) {
		t.Fatalf("expected ValidationError, got %v", err)
	}

	reloaded, _ := f.repos.Workspaces.Get(context.Background(), ws.ID)
	if reloaded.LogoAssetID != nil {
		t.Error("logo set despite rejected upload")
	}
}

func TestUploadLogoUnknownWorkspace(t *testing.T) {
	f := testSetup(t)
	user := f.createUser(t, "Ada", "ada@example.com")

	_, err := f.svc.UploadLogo(asUser(user), uuid.New(), asset.FilePart{Content: bytes.NewReader(pngPixel)})
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	var count int64
	f.db.Model(&models.Asset{}).Count(&count)
	if count != 0 {
		t.Error("asset uploaded for a workspace that does not exist")
	}
}

func TestDeleteLogo(t *testing.T) {
	f := testSetup(t)
	user := f.createUser(t, "Ada", "ada@example.com")
	ws := f.createWorkspace(t, "Acme", user)
	ctx := asUser(user)

	if _, err := f.svc.DeleteLogo(ctx, ws.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound without a logo, got %v", err)
	}

	withLogo, err := f.svc.UploadLogo(ctx, ws.ID, asset.FilePart{Content: bytes.NewReader(pngPixel)})
	if err != nil {
		t.Fatal(err)
	}
	assetID := *withLogo.LogoAssetID

	cleared, err := f.svc.DeleteLogo(ctx, ws.ID)
	if err != nil {
		t.Fatalf("DeleteLogo: %v", err)
	}
	if cleared.LogoAssetID != nil {
		t.Error("logo reference not cleared")
	}
	if _, err := f.repos.Assets.FindByID(context.Background(), assetID); !errors.Is(err, repository.ErrNotFound) {
		t.Errorf("asset still stored: %v", err)
	}

	ev := f.nextEvent(t)
	if ev.Name() != "asset.deleted" || ev.ResourceID != assetID {
		t.Errorf("event = %s for %s", ev.Name(), ev.ResourceID)
	}
}

func TestListAndLookups(t *testing.T) {
	f := testSetup(t)
	user := f.createUser(t, "Ada", "ada@example.com")
	zeta := f.createWorkspace(t, "Zeta", user)
	alpha := f.createWorkspace(t, "Alpha", user)

	reloaded, _ := f.repos.Users.FindByID(context.Background(), user.ID)
	list, err := f.svc.List(asUser(reloaded))
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(list) != 2 || list[0].ID != alpha.ID || list[1].ID != zeta.ID {
		t.Fatalf("List = %+v", list)
	}

	all, err := f.svc.GetAll(context.Background())
	if err != nil || len(all) != 2 {
		t.Fatalf("GetAll = %d, %v", len(all), err)
	}

	if _, err := f.svc.FindByIDAndPluginID(context.Background(), alpha.ID, uuid.New()); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound for missing plugin, got %v", err)
	}
}

func TestSaveRefreshesSlug(t *testing.T) {
	f := testSetup(t)
	user := f.createUser(t, "Ada", "ada@example.com")
	ws := f.createWorkspace(t, "Acme", user)

	ws.Name = "Acme Labs"
	saved, err := f.svc.Save(context.Background(), ws)
	if err != nil {
		t.Fatalf("Save: %v", err)
	}
	if saved.Slug != "acme-labs" {
		t.Errorf("slug = %q", saved.Slug)
	}
}
