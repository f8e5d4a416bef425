package acl

import (
	"sort"
	"strings"
)

// Role is a logical access level inside a workspace. Roles are fixed and
// never persisted per workspace.
type Role struct {
	Name        string
	Description string
	permissions []Permission
}

// Permissions returns the grants the role holds directly, without the ones
// inherited from implied roles.
func (r Role) Permissions() []Permission {
	return append([]Permission(nil), r.permissions...)
}

var (
	Administrator = Role{
		Name:        "Administrator",
		Description: "Can modify all settings including editing applications, inviting other users to the workspace and exporting applications from the workspace",
		permissions: []Permission{ManageWorkspaces, WorkspaceExportApplications, WorkspaceManageDatasources, ReadUserGroups},
	}
	Developer = Role{
		Name:        "Developer",
		Description: "Can edit and view applications along with inviting other users to the workspace",
		permissions: []Permission{WorkspaceManageApplications, WorkspacePublishApplications},
	}
	Viewer = Role{
		Name:        "App Viewer",
		Description: "Can view applications and invite other users to view applications",
		permissions: []Permission{ReadWorkspaces, WorkspaceReadApplications, WorkspaceInviteUsers},
	}
)

// defaultRoles is ordered from most to least privileged. Group-name prefix
// matching walks it in this order.
var defaultRoles = []Role{Administrator, Developer, Viewer}

// implies maps a role to the roles directly beneath it.
var implies = map[string][]string{
	Administrator.Name: {Developer.Name},
	Developer.Name:     {Viewer.Name},
}

// DefaultRoles returns the roles every workspace is provisioned with.
func DefaultRoles() []Role {
	return append([]Role(nil), defaultRoles...)
}

// RoleByName looks up a role in the catalog.
func RoleByName(name string) (Role, bool) {
	for _, r := range defaultRoles {
		if r.Name == name {
			return r, true
		}
	}
	return Role{}, false
}

// HierarchicalClosure returns the role and every role it implies, ordered by
// depth in the hierarchy. Unknown names yield an empty result.
func HierarchicalClosure(name string) []Role {
	if _, ok := RoleByName(name); !ok {
		return nil
	}

	var closure []Role
	seen := map[string]bool{name: true}
	queue := []string{name}
	for len(queue) > 0 {
		current := queue[0]
		queue = queue[1:]

		role, _ := RoleByName(current)
		closure = append(closure, role)

		for _, next := range implies[current] {
			if !seen[next] {
				seen[next] = true
				queue = append(queue, next)
			}
		}
	}
	return closure
}

// PermissionsFor returns the sorted union of the role's grants and those of
// every role it implies.
func PermissionsFor(name string) []Permission {
	set := make(map[Permission]struct{})
	for _, role := range HierarchicalClosure(name) {
		for _, p := range role.permissions {
			set[p] = struct{}{}
		}
	}

	perms := make([]Permission, 0, len(set))
	for p := range set {
		perms = append(perms, p)
	}
	sort.Slice(perms, func(i, j int) bool { return perms[i] < perms[j] })
	return perms
}

// DefaultGroupName builds the name of a default group for a workspace.
func DefaultGroupName(prefix, workspaceName string) string {
	return prefix + " - " + workspaceName
}

// RoleForGroupName returns the role whose name prefixes groupName.
func RoleForGroupName(groupName string) (Role, bool) {
	for _, r := range defaultRoles {
		if strings.HasPrefix(groupName, r.Name) {
			return r, true
		}
	}
	return Role{}, false
}

// RenamedGroupName returns the name a default group should carry once its
// workspace is called workspaceName. Names without a known role prefix are
// returned unchanged.
func RenamedGroupName(oldName, workspaceName string) string {
	role, ok := RoleForGroupName(oldName)
	if !ok {
		return oldName
	}
	return DefaultGroupName(role.Name, workspaceName)
}
