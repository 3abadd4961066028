package service

import (
	"context"
	"sort"

	"backend/internal/authz"
	"backend/internal/model"
	"backend/internal/repository"
	"backend/pkg/apperr"
)

// --- DTOs ---

type GroupUsage struct {
	ID               string `json:"id"`
	Name             string `json:"name"`
	DisplayName      string `json:"display_name"`
	IsSystem         bool   `json:"is_system"`
	UsersCount       int64  `json:"users_count"`
	PermissionsCount int    `json:"permissions_count"`
}

type GroupStatsResponse struct {
	TotalGroups      int64        `json:"total_groups"`
	TotalUsers       int64        `json:"total_users"`
	TotalPermissions int64        `json:"total_permissions"`
	Groups           []GroupUsage `json:"groups"`
}

// MatrixRow is one row of a permission matrix: the subject plus a cell per
// permission code, in the same order as the matrix header.
type MatrixRow struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	IsSystem bool   `json:"is_system,omitempty"`
	Cells    []bool `json:"cells"`
}

type MatrixResponse struct {
	Codes []string    `json:"codes"`
	Rows  []MatrixRow `json:"rows"`
}

type ResourceUsage struct {
	Name             string `json:"name"`
	DisplayName      string `json:"display_name"`
	PermissionsCount int    `json:"permissions_count"`
}

type PermissionUsage struct {
	ID          string `json:"id"`
	Code        string `json:"code"`
	Description string `json:"description"`
	Holders     int64  `json:"holders"`
}

type UserGrantUsage struct {
	ID           string `json:"id"`
	Username     string `json:"username"`
	DirectGrants int64  `json:"direct_grants"`
}

type PermissionStatsResponse struct {
	TotalResources   int64             `json:"total_resources"`
	TotalPermissions int64             `json:"total_permissions"`
	Resources        []ResourceUsage   `json:"resources"`
	Permissions      []PermissionUsage `json:"permissions"`
	Users            []UserGrantUsage  `json:"users"`
}

type UsersByGroupEntry struct {
	Group GroupUsage     `json:"group"`
	Users []UserResponse `json:"users"`
}

// --- Interface ---

// StatsService aggregates read-only views over the access-control model for
// dashboards: usage counts and subject-by-permission matrices.
type StatsService interface {
	GroupStats(ctx context.Context) (*GroupStatsResponse, error)
	GroupMatrix(ctx context.Context) (*MatrixResponse, error)
	UsersByGroup(ctx context.Context) ([]UsersByGroupEntry, error)
	PermissionStats(ctx context.Context) (*PermissionStatsResponse, error)
	UserMatrix(ctx context.Context) (*MatrixResponse, error)
}

type statsService struct {
	resources   repository.ResourceRepository
	permissions repository.PermissionRepository
	groups      repository.GroupRepository
	users       repository.UserRepository
}

func NewStatsService(
	resources repository.ResourceRepository,
	permissions repository.PermissionRepository,
	groups repository.GroupRepository,
	users repository.UserRepository,
) StatsService {
	return &statsService{
		resources:   resources,
		permissions: permissions,
		groups:      groups,
		users:       users,
	}
}

func (s *statsService) GroupStats(ctx context.Context) (*GroupStatsResponse, error) {
	groups, err := s.groups.ListAllWithPermissions(ctx)
	if err != nil {
		return nil, apperr.Storage(err, "failed to fetch groups")
	}
	totalUsers, err := s.users.Count(ctx)
	if err != nil {
		return nil, apperr.Storage(err, "failed to count users")
	}
	totalPerms, err := s.permissions.Count(ctx)
	if err != nil {
		return nil, apperr.Storage(err, "failed to count permissions")
	}

	usage := make([]GroupUsage, 0, len(groups))
	for i := range groups {
		u, err := s.groupUsage(ctx, &groups[i])
		if err != nil {
			return nil, err
		}
		usage = append(usage, u)
	}
	sort.Slice(usage, func(i, j int) bool {
		if usage[i].PermissionsCount != usage[j].PermissionsCount {
			return usage[i].PermissionsCount > usage[j].PermissionsCount
		}
		return usage[i].Name < usage[j].Name
	})

	return &GroupStatsResponse{
		TotalGroups:      int64(len(groups)),
		TotalUsers:       totalUsers,
		TotalPermissions: totalPerms,
		Groups:           usage,
	}, nil
}

// GroupMatrix lays out every group against every permission code. System
// group cells are all true regardless of the stored set.
func (s *statsService) GroupMatrix(ctx context.Context) (*MatrixResponse, error) {
	codes, err := s.codeIndex(ctx)
	if err != nil {
		return nil, err
	}
	groups, err := s.groups.ListAllWithPermissions(ctx)
	if err != nil {
		return nil, apperr.Storage(err, "failed to fetch groups")
	}

	rows := make([]MatrixRow, 0, len(groups))
	for i := range groups {
		g := &groups[i]
		held := make(map[string]bool, len(g.Permissions))
		for j := range g.Permissions {
			held[g.Permissions[j].Code()] = true
		}
		cells := make([]bool, len(codes))
		for k, code := range codes {
			cells[k] = g.IsSystem || held[code]
		}
		rows = append(rows, MatrixRow{ID: g.ID.String(), Name: g.Name, IsSystem: g.IsSystem, Cells: cells})
	}
	return &MatrixResponse{Codes: codes, Rows: rows}, nil
}

func (s *statsService) UsersByGroup(ctx context.Context) ([]UsersByGroupEntry, error) {
	groups, err := s.groups.ListAllWithPermissions(ctx)
	if err != nil {
		return nil, apperr.Storage(err, "failed to fetch groups")
	}

	entries := make([]UsersByGroupEntry, 0, len(groups))
	for i := range groups {
		usage, err := s.groupUsage(ctx, &groups[i])
		if err != nil {
			return nil, err
		}
		members, err := s.groups.ListUsers(ctx, groups[i].ID)
		if err != nil {
			return nil, apperr.Storage(err, "failed to fetch group members")
		}
		users := make([]UserResponse, 0, len(members))
		for j := range members {
			users = append(users, toUserResponse(&members[j]))
		}
		entries = append(entries, UsersByGroupEntry{Group: usage, Users: users})
	}
	return entries, nil
}

func (s *statsService) PermissionStats(ctx context.Context) (*PermissionStatsResponse, error) {
	resources, err := s.resources.ListAllWithPermissions(ctx)
	if err != nil {
		return nil, apperr.Storage(err, "failed to fetch resources")
	}
	perms, err := s.permissions.ListAll(ctx)
	if err != nil {
		return nil, apperr.Storage(err, "failed to fetch permissions")
	}

	resUsage := make([]ResourceUsage, 0, len(resources))
	for i := range resources {
		resUsage = append(resUsage, ResourceUsage{
			Name:             resources[i].Name,
			DisplayName:      resources[i].DisplayName,
			PermissionsCount: len(resources[i].Permissions),
		})
	}

	permUsage := make([]PermissionUsage, 0, len(perms))
	for i := range perms {
		holders, err := s.permissions.CountHolders(ctx, perms[i].ID)
		if err != nil {
			return nil, apperr.Storage(err, "failed to count permission holders")
		}
		permUsage = append(permUsage, PermissionUsage{
			ID:          perms[i].ID.String(),
			Code:        perms[i].Code(),
			Description: perms[i].Description,
			Holders:     holders,
		})
	}

	users, err := s.users.ListAllWithAccess(ctx)
	if err != nil {
		return nil, apperr.Storage(err, "failed to fetch users")
	}
	userUsage := make([]UserGrantUsage, 0, len(users))
	for i := range users {
		count, err := s.users.CountDirectGrants(ctx, users[i].ID)
		if err != nil {
			return nil, apperr.Storage(err, "failed to count direct grants")
		}
		userUsage = append(userUsage, UserGrantUsage{
			ID:           users[i].ID.String(),
			Username:     users[i].Username,
			DirectGrants: count,
		})
	}
	sort.Slice(userUsage, func(i, j int) bool {
		if userUsage[i].DirectGrants != userUsage[j].DirectGrants {
			return userUsage[i].DirectGrants > userUsage[j].DirectGrants
		}
		return userUsage[i].Username < userUsage[j].Username
	})

	return &PermissionStatsResponse{
		TotalResources:   int64(len(resources)),
		TotalPermissions: int64(len(perms)),
		Resources:        resUsage,
		Permissions:      permUsage,
		Users:            userUsage,
	}, nil
}

// UserMatrix lays out every user against every permission code using the
// resolved view, so group inheritance and system-group membership show up.
func (s *statsService) UserMatrix(ctx context.Context) (*MatrixResponse, error) {
	codes, err := s.codeIndex(ctx)
	if err != nil {
		return nil, err
	}
	users, err := s.users.ListAllWithAccess(ctx)
	if err != nil {
		return nil, apperr.Storage(err, "failed to fetch users")
	}

	rows := make([]MatrixRow, 0, len(users))
	for i := range users {
		u := &users[i]
		admin := authz.IsAdmin(u)
		held := make(map[string]bool)
		for _, code := range authz.PermissionCodes(u) {
			held[code] = true
		}
		cells := make([]bool, len(codes))
		for k, code := range codes {
			cells[k] = admin || held[code]
		}
		rows = append(rows, MatrixRow{ID: u.ID.String(), Name: u.Username, Cells: cells})
	}
	return &MatrixResponse{Codes: codes, Rows: rows}, nil
}

// --- Helpers ---

func (s *statsService) groupUsage(ctx context.Context, g *model.Group) (GroupUsage, error) {
	count, err := s.groups.CountUsers(ctx, g.ID)
	if err != nil {
		return GroupUsage{}, apperr.Storage(err, "failed to count group members")
	}
	return GroupUsage{
		ID:               g.ID.String(),
		Name:             g.Name,
		DisplayName:      g.DisplayName,
		IsSystem:         g.IsSystem,
		UsersCount:       count,
		PermissionsCount: len(g.Permissions),
	}, nil
}

func (s *statsService) codeIndex(ctx context.Context) ([]string, error) {
	perms, err := s.permissions.ListAll(ctx)
	if err != nil {
		return nil, apperr.Storage(err, "failed to fetch permissions")
	}
	codes := make([]string, 0, len(perms))
	for i := range perms {
		codes = append(codes, perms[i].Code())
	}
	sort.Strings(codes)
	return codes, nil
}
