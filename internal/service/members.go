package service

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/nebari-dev/tenancy/internal/acl"
	"github.com/nebari-dev/tenancy/internal/models"
)

// flattenMembers lists every member of groups once, attributed to the first
// group they appear in.
func flattenMembers(groups []models.UserGroup) []MemberInfo {
	type memberKey struct {
		id       uuid.UUID
		username string
	}
	seen := make(map[memberKey]bool)

	var members []MemberInfo
	for _, g := range groups {
		for _, u := range g.Users {
			key := memberKey{id: u.ID}
			if u.ID == uuid.Nil {
				key.username = u.Username
			}
			if seen[key] {
				continue
			}
			seen[key] = true
			members = append(members, MemberInfo{
				UserID:    u.ID,
				Username:  u.Username,
				Name:      u.Name,
				GroupName: g.Name,
				GroupID:   g.ID,
			})
		}
	}
	return members
}

// GetWorkspaceMembers lists the members of the workspace's default groups
// with their current display names.
func (s *WorkspaceService) GetWorkspaceMembers(ctx context.Context, workspaceID uuid.UUID) ([]MemberInfo, error) {
	ws, err := s.repos.Workspaces.FindByID(ctx, workspaceID, acl.ReadWorkspaces)
	if err != nil {
		return nil, notFound(err, fmt.Sprintf("workspace %s", workspaceID))
	}

	groups, err := s.repos.UserGroups.FindAllByID(ctx, ws.DefaultUserGroupIDs)
	if err != nil {
		return nil, fmt.Errorf("load user groups: %w", err)
	}
	members := flattenMembers(groups)
	if len(members) == 0 {
		return []MemberInfo{}, nil
	}

	usernames := make([]string, len(members))
	for i, m := range members {
		usernames[i] = m.Username
	}
	users, err := s.repos.Users.FindAllByEmails(ctx, usernames)
	if err != nil {
		return nil, fmt.Errorf("look up members: %w", err)
	}
	if len(users) == 0 {
		return []MemberInfo{}, nil
	}

	byUsername := make(map[string]*models.User, len(users))
	for i := range users {
		byUsername[users[i].Username] = &users[i]
	}
	for i := range members {
		if u, ok := byUsername[members[i].Username]; ok {
			members[i].Name = u.Name
		}
	}
	return members, nil
}
