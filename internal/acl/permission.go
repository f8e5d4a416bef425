// Package acl defines the permission kinds and the fixed catalog of
// workspace roles.
package acl

// Permission is a kind of access that can be granted on a document.
type Permission string

const (
	ManageUserWorkspaces Permission = "manage:userWorkspaces"
	ReadUsers            Permission = "read:users"
	ReadUserGroups       Permission = "read:userGroups"

	ManageWorkspaces             Permission = "manage:workspaces"
	ReadWorkspaces               Permission = "read:workspaces"
	WorkspaceInviteUsers         Permission = "inviteUsers:workspace"
	WorkspaceManageApplications  Permission = "manage:workspaceApplications"
	WorkspaceReadApplications    Permission = "read:workspaceApplications"
	WorkspacePublishApplications Permission = "publish:workspaceApplications"
	WorkspaceExportApplications  Permission = "export:workspaceApplications"
	WorkspaceManageDatasources   Permission = "manage:workspaceDatasources"
)

func (p Permission) String() string { return string(p) }
