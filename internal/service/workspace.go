package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"

	"github.com/google/uuid"
	"github.com/nebari-dev/tenancy/internal/acl"
	"github.com/nebari-dev/tenancy/internal/analytics"
	"github.com/nebari-dev/tenancy/internal/asset"
	"github.com/nebari-dev/tenancy/internal/audit"
	"github.com/nebari-dev/tenancy/internal/models"
	"github.com/nebari-dev/tenancy/internal/rbac"
	"github.com/nebari-dev/tenancy/internal/repository"
	"github.com/nebari-dev/tenancy/internal/session"
	"github.com/nebari-dev/tenancy/internal/textutil"
	"gorm.io/gorm"
)

// DefaultLogoMaxKB is the size limit for workspace logos.
const DefaultLogoMaxKB = 250

const workspaceResource = "workspace"

// Options holds the collaborators of a WorkspaceService. Zero values fall
// back to session.ContextResolver, analytics.NopPublisher and
// DefaultLogoMaxKB.
//
// Publisher is called inline on the request path and must not block:
// implementations hand events off and return, dropping them when they
// cannot keep up.
type Options struct {
	Sessions  session.Resolver
	Assets    AssetStore
	Publisher analytics.Publisher
	LogoMaxKB int
}

// WorkspaceService contains the business logic for workspace operations.
//
// Operations that span several records are not transactional. Each step can
// be redone safely and Repair completes workspaces left half-provisioned.
// Concurrent updates of one workspace are not serialized.
type WorkspaceService struct {
	db          *gorm.DB
	repos       *repository.Repositories
	groups      *GroupProvisioner
	memberships *UserWorkspaceService
	sessions    session.Resolver
	assets      AssetStore
	publisher   analytics.Publisher
	logoMaxKB   int
}

// New creates a new WorkspaceService.
func New(db *gorm.DB, repos *repository.Repositories, opts Options) *WorkspaceService {
	if opts.Sessions == nil {
		opts.Sessions = session.ContextResolver{}
	}
	if opts.Publisher == nil {
		opts.Publisher = analytics.NopPublisher{}
	}
	if opts.LogoMaxKB <= 0 {
		opts.LogoMaxKB = DefaultLogoMaxKB
	}
	return &WorkspaceService{
		db:          db,
		repos:       repos,
		groups:      NewGroupProvisioner(repos),
		memberships: NewUserWorkspaceService(repos),
		sessions:    opts.Sessions,
		assets:      opts.Assets,
		publisher:   opts.Publisher,
		logoMaxKB:   opts.LogoMaxKB,
	}
}

// Memberships returns the membership service the workspace service uses.
func (s *WorkspaceService) Memberships() *UserWorkspaceService {
	return s.memberships
}

// Create provisions a new workspace owned by user: default plugins, the
// three default access and permission groups, and the user as administrator.
func (s *WorkspaceService) Create(ctx context.Context, ws *models.Workspace, user *models.User) (*models.Workspace, error) {
	if ws == nil {
		return nil, &ValidationError{Message: "workspace is required"}
	}
	if user == nil || !user.HasPermission(string(acl.ManageUserWorkspaces)) {
		return nil, &AuthorizationError{Action: "create workspace"}
	}

	if ws.Email == "" {
		ws.Email = user.Email
	}
	ws.Slug = textutil.MakeSlug(ws.Name)
	ws.TenantID = user.TenantID

	if err := validateWorkspace(ws); err != nil {
		return nil, err
	}

	plugins, err := s.repos.Plugins.FindByDefaultInstall(ctx, true)
	if err != nil {
		return nil, fmt.Errorf("load default plugins: %w", err)
	}
	installPlugins(ws, plugins)
	// Stored with the first save so Repair can restore the administrator
	// if provisioning stops halfway.
	recordRole(ws, user, acl.Administrator.Name)

	if err := s.repos.Workspaces.Save(ctx, ws); err != nil {
		return nil, fmt.Errorf("create workspace: %w", err)
	}

	userGroups, permissionGroups, err := s.groups.GenerateDefaults(ctx, ws)
	if err != nil {
		return nil, fmt.Errorf("provision default groups: %w", err)
	}
	ws.DefaultUserGroupIDs = userGroupIDs(userGroups)
	ws.DefaultPermissionGroupIDs = permissionGroupIDs(permissionGroups)
	ws.Policies = policiesFromPermissionGroups(permissionGroups)

	if err := linkDefaultGroups(userGroups, permissionGroups); err != nil {
		return nil, err
	}
	if err := s.repos.Workspaces.Save(ctx, ws); err != nil {
		return nil, fmt.Errorf("save workspace groups: %w", err)
	}

	if err := s.memberships.addToRoleGroup(ctx, userGroups, user, acl.Administrator.Name); err != nil {
		return nil, fmt.Errorf("add creator to administrators: %w", err)
	}
	if _, err := s.memberships.AddUserToWorkspace(ctx, ws.ID, user); err != nil {
		return nil, err
	}

	audit.Record(ctx, s.db, user.ID, audit.ActionCreateWorkspace, audit.WorkspaceResource(ws.ID), map[string]interface{}{
		"name":              ws.Name,
		"slug":              ws.Slug,
		"is_auto_generated": ws.IsAutoGenerated,
	})
	slog.Info("Workspace created", "workspace_id", ws.ID, "name", ws.Name, "user_id", user.ID)
	return ws, nil
}

// CreateForCurrentUser creates ws on behalf of the session user.
func (s *WorkspaceService) CreateForCurrentUser(ctx context.Context, ws *models.Workspace) (*models.Workspace, error) {
	current, err := s.sessions.CurrentUser(ctx)
	if err != nil {
		return nil, fmt.Errorf("resolve current user: %w", err)
	}
	// The session copy may carry stale policies and workspace ids.
	user, err := s.repos.Users.FindByEmail(ctx, current.Username)
	if err != nil {
		return nil, notFound(err, fmt.Sprintf("user %s", current.Username))
	}
	return s.Create(ctx, ws, user)
}

// CreateDefault creates the personal workspace a user starts out with,
// named after their first name.
func (s *WorkspaceService) CreateDefault(ctx context.Context, ws *models.Workspace, user *models.User) (*models.Workspace, error) {
	if ws == nil {
		ws = &models.Workspace{}
	}
	if user == nil {
		return nil, &AuthorizationError{Action: "create workspace"}
	}
	ws.Name = user.FirstName() + "'s apps"
	ws.IsAutoGenerated = true
	return s.Create(ctx, ws, user)
}

// Update patches the workspace with the set fields of resource. Renaming
// renames the default groups too.
func (s *WorkspaceService) Update(ctx context.Context, id uuid.UUID, resource *models.Workspace) (*models.Workspace, error) {
	if resource == nil {
		return nil, &ValidationError{Message: "workspace is required"}
	}
	ws, err := s.repos.Workspaces.FindByID(ctx, id, acl.ManageWorkspaces)
	if err != nil {
		return nil, notFound(err, fmt.Sprintf("workspace %s", id))
	}

	// An empty policy set means "leave policies alone", not "clear them".
	if len(resource.Policies) == 0 {
		resource.Policies = nil
	}

	oldName := ws.Name
	if resource.Name != "" && resource.Name != ws.Name {
		if err := s.groups.RenameDefaultGroups(ctx, ws, resource.Name); err != nil {
			return nil, fmt.Errorf("rename default groups: %w", err)
		}
	}

	mergeWorkspace(ws, resource)
	ws.Slug = textutil.MakeSlug(ws.Name)

	if err := validateWorkspace(ws); err != nil {
		return nil, err
	}
	if err := s.repos.Workspaces.Save(ctx, ws); err != nil {
		return nil, fmt.Errorf("update workspace: %w", err)
	}

	details := map[string]interface{}{"name": ws.Name}
	if oldName != ws.Name {
		details["old_name"] = oldName
	}
	audit.Record(ctx, s.db, s.actorID(ctx), audit.ActionUpdateWorkspace, audit.WorkspaceResource(ws.ID), details)
	analytics.SendUpdateEvent(ctx, s.publisher, workspaceResource, ws.ID, map[string]any{
		"name": ws.Name,
		"slug": ws.Slug,
	})
	return ws, nil
}

// ArchiveByID archives a workspace that has no applications.
func (s *WorkspaceService) ArchiveByID(ctx context.Context, id uuid.UUID) (*models.Workspace, error) {
	count, err := s.repos.Applications.CountByWorkspaceID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("count applications: %w", err)
	}
	if count > 0 {
		return nil, &ConflictError{Message: fmt.Sprintf("unsupported operation: workspace %s still has %d application(s)", id, count)}
	}

	ws, err := s.repos.Workspaces.FindByID(ctx, id, acl.ManageWorkspaces)
	if err != nil {
		return nil, notFound(err, fmt.Sprintf("workspace %s", id))
	}
	if err := s.repos.Workspaces.Archive(ctx, ws); err != nil {
		return nil, fmt.Errorf("archive workspace: %w", err)
	}
	if err := rbac.RemoveWorkspacePolicies(ws.ID); err != nil {
		slog.Error("Failed to remove policies of archived workspace", "workspace_id", ws.ID, "error", err)
	}

	audit.Record(ctx, s.db, s.actorID(ctx), audit.ActionArchiveWorkspace, audit.WorkspaceResource(ws.ID), map[string]interface{}{
		"name": ws.Name,
	})
	analytics.SendDeleteEvent(ctx, s.publisher, workspaceResource, ws.ID, map[string]any{"name": ws.Name})
	return ws, nil
}

// GetUserRolesForWorkspace returns the session user's role in the workspace
// and every role it implies, most privileged first. A user without a role
// gets an empty list.
func (s *WorkspaceService) GetUserRolesForWorkspace(ctx context.Context, id uuid.UUID) ([]RoleInfo, error) {
	if id == uuid.Nil {
		return nil, &ValidationError{Message: "workspace id is required"}
	}
	user, err := s.sessions.CurrentUser(ctx)
	if err != nil {
		return nil, fmt.Errorf("resolve current user: %w", err)
	}
	ws, err := s.repos.Workspaces.FindByID(ctx, id, acl.WorkspaceInviteUsers)
	if err != nil {
		return nil, notFound(err, fmt.Sprintf("workspace %s", id))
	}

	role, ok := ws.UserRoleFor(user.Username)
	if !ok {
		return []RoleInfo{}, nil
	}
	closure := acl.HierarchicalClosure(role.RoleName)
	roles := make([]RoleInfo, 0, len(closure))
	for _, r := range closure {
		roles = append(roles, RoleInfo{Name: r.Name, Description: r.Description})
	}
	return roles, nil
}

// UploadLogo replaces the workspace logo. The new asset is referenced before
// the old one is removed, and failing to remove the old one is only logged.
func (s *WorkspaceService) UploadLogo(ctx context.Context, id uuid.UUID, part asset.FilePart) (*models.Workspace, error) {
	if s.assets == nil {
		return nil, fmt.Errorf("upload logo: no asset store configured")
	}
	ws, err := s.repos.Workspaces.FindByID(ctx, id, acl.ManageWorkspaces)
	if err != nil {
		return nil, notFound(err, fmt.Sprintf("workspace %s", id))
	}

	uploaded, err := s.assets.Upload(ctx, part, s.logoMaxKB)
	if err != nil {
		var sizeErr *asset.SizeError
		var typeErr *asset.ContentTypeError
		if errors.As(err, &sizeErr) || errors.As(err, &typeErr) {
			return nil, &ValidationError{Message: err.Error()}
		}
		return nil, fmt.Errorf("upload logo: %w", err)
	}

	previous := ws.LogoAssetID
	ws.LogoAssetID = &uploaded.ID
	if err := s.repos.Workspaces.Save(ctx, ws); err != nil {
		if rmErr := s.assets.Remove(ctx, uploaded.ID); rmErr != nil {
			slog.Warn("Failed to remove orphaned logo", "asset_id", uploaded.ID, "error", rmErr)
		}
		return nil, fmt.Errorf("save workspace logo: %w", err)
	}

	if previous != nil {
		if err := s.assets.Remove(ctx, *previous); err != nil {
			slog.Warn("Failed to remove previous workspace logo",
				"workspace_id", ws.ID,
				"asset_id", *previous,
				"error", err)
		}
	}

	audit.Record(ctx, s.db, s.actorID(ctx), audit.ActionUploadWorkspaceLogo, audit.WorkspaceResource(ws.ID), map[string]interface{}{
		"asset_id": uploaded.ID,
		"size":     uploaded.Size,
	})
	return ws, nil
}

// DeleteLogo removes the workspace logo.
func (s *WorkspaceService) DeleteLogo(ctx context.Context, id uuid.UUID) (*models.Workspace, error) {
	if s.assets == nil {
		return nil, fmt.Errorf("delete logo: no asset store configured")
	}
	ws, err := s.repos.Workspaces.FindByID(ctx, id, acl.ManageWorkspaces)
	if err != nil {
		return nil, notFound(err, fmt.Sprintf("workspace %s", id))
	}
	if ws.LogoAssetID == nil {
		return nil, fmt.Errorf("logo of workspace %s: %w", id, ErrNotFound)
	}

	assetID := *ws.LogoAssetID
	if err := s.assets.Remove(ctx, assetID); err != nil {
		return nil, notFound(err, fmt.Sprintf("asset %s", assetID))
	}
	analytics.SendDeleteEvent(ctx, s.publisher, "asset", assetID, map[string]any{"workspace_id": ws.ID})

	ws.LogoAssetID = nil
	if err := s.repos.Workspaces.Save(ctx, ws); err != nil {
		return nil, fmt.Errorf("save workspace: %w", err)
	}

	audit.Record(ctx, s.db, s.actorID(ctx), audit.ActionDeleteWorkspaceLogo, audit.WorkspaceResource(ws.ID), map[string]interface{}{
		"asset_id": assetID,
	})
	return ws, nil
}

// List returns the session user's workspaces that they can read, by name.
func (s *WorkspaceService) List(ctx context.Context) ([]models.Workspace, error) {
	user, err := s.sessions.CurrentUser(ctx)
	if err != nil {
		return nil, fmt.Errorf("resolve current user: %w", err)
	}
	return s.repos.Workspaces.FindByIDsIn(ctx, user.WorkspaceIDs, user.TenantID, acl.ReadWorkspaces)
}

// GetByID returns a workspace the session user can read.
func (s *WorkspaceService) GetByID(ctx context.Context, id uuid.UUID) (*models.Workspace, error) {
	return s.FindByID(ctx, id, acl.ReadWorkspaces)
}

// FindByID returns a workspace the session user holds perm on.
func (s *WorkspaceService) FindByID(ctx context.Context, id uuid.UUID, perm acl.Permission) (*models.Workspace, error) {
	ws, err := s.repos.Workspaces.FindByID(ctx, id, perm)
	if err != nil {
		return nil, notFound(err, fmt.Sprintf("workspace %s", id))
	}
	return ws, nil
}

// FindByIDsIn returns the tenant's workspaces among ids that the session
// user holds perm on, by name.
func (s *WorkspaceService) FindByIDsIn(ctx context.Context, ids []uuid.UUID, tenantID uuid.UUID, perm acl.Permission) ([]models.Workspace, error) {
	return s.repos.Workspaces.FindByIDsIn(ctx, ids, tenantID, perm)
}

// GetAll returns every workspace. It performs no permission check.
func (s *WorkspaceService) GetAll(ctx context.Context) ([]models.Workspace, error) {
	return s.repos.Workspaces.FindAll(ctx)
}

// FindByIDAndPluginID returns the workspace if the plugin is installed in it.
func (s *WorkspaceService) FindByIDAndPluginID(ctx context.Context, workspaceID, pluginID uuid.UUID) (*models.Workspace, error) {
	ws, err := s.repos.Workspaces.FindByIDAndPluginID(ctx, workspaceID, pluginID)
	if err != nil {
		return nil, notFound(err, fmt.Sprintf("workspace %s with plugin %s", workspaceID, pluginID))
	}
	return ws, nil
}

// Save persists ws as given, refreshing its slug.
func (s *WorkspaceService) Save(ctx context.Context, ws *models.Workspace) (*models.Workspace, error) {
	if ws.Name != "" {
		ws.Slug = textutil.MakeSlug(ws.Name)
	}
	if err := s.repos.Workspaces.Save(ctx, ws); err != nil {
		return nil, fmt.Errorf("save workspace: %w", err)
	}
	return ws, nil
}

func (s *WorkspaceService) actorID(ctx context.Context) uuid.UUID {
	if user := session.UserFromContext(ctx); user != nil {
		return user.ID
	}
	return uuid.Nil
}

// installPlugins adds plugins to ws as free installations, skipping ones
// already installed.
func installPlugins(ws *models.Workspace, plugins []models.Plugin) {
	installed := make(map[uuid.UUID]bool, len(ws.Plugins))
	for _, p := range ws.Plugins {
		installed[p.PluginID] = true
	}
	for _, p := range plugins {
		if installed[p.ID] {
			continue
		}
		installed[p.ID] = true
		ws.Plugins = append(ws.Plugins, models.WorkspacePlugin{PluginID: p.ID, Status: models.PluginStatusFree})
	}
}

// linkDefaultGroups mirrors the default groups into the enforcer: each
// permission group's grants, and each access group inheriting from the
// permission group of the same role.
func linkDefaultGroups(userGroups []models.UserGroup, permissionGroups []models.PermissionGroup) error {
	byRole := make(map[string]uuid.UUID, len(permissionGroups))
	for i := range permissionGroups {
		if err := rbac.GrantPermissionGroup(&permissionGroups[i]); err != nil {
			return fmt.Errorf("grant permission group %s: %w", permissionGroups[i].ID, err)
		}
		if role, ok := acl.RoleForGroupName(permissionGroups[i].Name); ok {
			byRole[role.Name] = permissionGroups[i].ID
		}
	}
	for _, ug := range userGroups {
		role, ok := acl.RoleForGroupName(ug.Name)
		if !ok {
			continue
		}
		pgID, ok := byRole[role.Name]
		if !ok {
			continue
		}
		if err := rbac.AssignUserGroup(ug.ID, pgID); err != nil {
			return fmt.Errorf("link user group %s: %w", ug.ID, err)
		}
	}
	return nil
}

// policiesFromPermissionGroups builds the workspace's policy list: one entry
// per permission naming the permission groups that grant it.
func policiesFromPermissionGroups(groups []models.PermissionGroup) []models.Policy {
	byPermission := make(map[string][]string)
	for _, g := range groups {
		for _, grant := range g.Permissions {
			byPermission[grant.Permission] = append(byPermission[grant.Permission], g.ID.String())
		}
	}
	policies := make([]models.Policy, 0, len(byPermission))
	for perm, groupIDs := range byPermission {
		policies = append(policies, models.Policy{Permission: perm, PermissionGroups: groupIDs})
	}
	sort.Slice(policies, func(i, j int) bool { return policies[i].Permission < policies[j].Permission })
	return policies
}

// mergeWorkspace copies the fields set on patch onto ws. Identity, tenant
// and default group references are never patched. IsAutoGenerated can only
// be switched on this way.
func mergeWorkspace(ws, patch *models.Workspace) {
	if patch.Name != "" {
		ws.Name = patch.Name
	}
	if patch.Email != "" {
		ws.Email = patch.Email
	}
	if patch.Website != "" {
		ws.Website = patch.Website
	}
	if patch.Domain != "" {
		ws.Domain = patch.Domain
	}
	if patch.Plugins != nil {
		ws.Plugins = patch.Plugins
	}
	if patch.Policies != nil {
		ws.Policies = patch.Policies
	}
	if patch.UserRoles != nil {
		ws.UserRoles = patch.UserRoles
	}
	if patch.LogoAssetID != nil {
		ws.LogoAssetID = patch.LogoAssetID
	}
	if patch.IsAutoGenerated {
		ws.IsAutoGenerated = true
	}
}
