package service

import (
	"context"
	"errors"
	"strings"

	"backend/internal/model"
	"backend/internal/repository"
	"backend/internal/websocket"
	"backend/pkg/apperr"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

const adminGroupDescription = "System group with all permissions. Cannot be deleted."

// --- DTOs ---

type CreateGroupRequest struct {
	Name            string   `json:"name" binding:"required"`
	DisplayName     string   `json:"display_name" binding:"required"`
	Description     string   `json:"description"`
	PermissionCodes []string `json:"permission_codes"`
}

type UpdateGroupRequest struct {
	Name        string `json:"name" binding:"required"`
	DisplayName string `json:"display_name" binding:"required"`
	Description string `json:"description"`
}

type UpdateGroupPermissionsRequest struct {
	PermissionIDs []string `json:"permission_ids" binding:"required"`
}

type CheckPermissionRequest struct {
	Resource string `json:"resource" binding:"required"`
	Action   string `json:"action" binding:"required"`
}

type GroupResponse struct {
	ID          string               `json:"id"`
	Name        string               `json:"name"`
	DisplayName string               `json:"display_name"`
	Description string               `json:"description"`
	IsSystem    bool                 `json:"is_system"`
	Role        string               `json:"role"`
	Permissions []PermissionResponse `json:"permissions"`
	UsersCount  int64                `json:"users_count"`
	CreatedAt   string               `json:"created_at"`
}

// --- Interface ---

// GroupService is the group store. All system-group protection keys off the
// IsSystem flag: implicit full access, rename guard, permission set that
// never shrinks, deletion refusal.
type GroupService interface {
	ListGroups(ctx context.Context) ([]GroupResponse, error)
	GetGroup(ctx context.Context, id string) (*GroupResponse, error)
	CreateGroup(ctx context.Context, actorID *uuid.UUID, req CreateGroupRequest) (*GroupResponse, error)
	UpdateGroup(ctx context.Context, actorID *uuid.UUID, id string, req UpdateGroupRequest) (*GroupResponse, error)
	DeleteGroup(ctx context.Context, actorID *uuid.UUID, id string) error

	GetGroupPermissions(ctx context.Context, id string) ([]PermissionResponse, error)
	AddPermission(ctx context.Context, actorID *uuid.UUID, groupID, permissionID string) (*PermissionResponse, error)
	RemovePermission(ctx context.Context, actorID *uuid.UUID, groupID, permissionID string) error
	ReplacePermissions(ctx context.Context, actorID *uuid.UUID, groupID string, req UpdateGroupPermissionsRequest) (*GroupResponse, error)
	CheckPermission(ctx context.Context, groupID string, req CheckPermissionRequest) (bool, error)
	ListGroupUsers(ctx context.Context, groupID string) ([]UserResponse, error)

	// EnsureAdminGroup returns the system group, creating it with every
	// current permission when a fresh deployment has none.
	EnsureAdminGroup(ctx context.Context) (*model.Group, error)
	// SyncAdminPermissions attaches every permission missing from the system
	// group's stored set and returns the count added. Never removes any.
	SyncAdminPermissions(ctx context.Context) (int, error)
}

type groupService struct {
	groups      repository.GroupRepository
	permissions repository.PermissionRepository
	txm         repository.TransactionManager
	audit       AuditService
	events      *websocket.Hub
}

func NewGroupService(
	groups repository.GroupRepository,
	permissions repository.PermissionRepository,
	txm repository.TransactionManager,
	audit AuditService,
	events *websocket.Hub,
) GroupService {
	return &groupService{
		groups:      groups,
		permissions: permissions,
		txm:         txm,
		audit:       audit,
		events:      events,
	}
}

// --- Implementation ---

func (s *groupService) ListGroups(ctx context.Context) ([]GroupResponse, error) {
	groups, err := s.groups.ListAllWithPermissions(ctx)
	if err != nil {
		return nil, apperr.Storage(err, "failed to fetch groups")
	}
	res := make([]GroupResponse, 0, len(groups))
	for i := range groups {
		count, err := s.groups.CountUsers(ctx, groups[i].ID)
		if err != nil {
			return nil, apperr.Storage(err, "failed to count group members")
		}
		res = append(res, toGroupResponse(&groups[i], count))
	}
	return res, nil
}

func (s *groupService) GetGroup(ctx context.Context, id string) (*GroupResponse, error) {
	group, err := s.findGroup(ctx, id)
	if err != nil {
		return nil, err
	}
	count, err := s.groups.CountUsers(ctx, group.ID)
	if err != nil {
		return nil, apperr.Storage(err, "failed to count group members")
	}
	resp := toGroupResponse(group, count)
	return &resp, nil
}

func (s *groupService) CreateGroup(ctx context.Context, actorID *uuid.UUID, req CreateGroupRequest) (*GroupResponse, error) {
	name := strings.ToUpper(strings.TrimSpace(req.Name))
	if !model.ValidGroupName(name) {
		return nil, apperr.Validation("group name must contain only uppercase letters and underscores")
	}
	if name == model.AdminGroupName {
		return nil, apperr.Conflict("the %s group is managed by the system", model.AdminGroupName)
	}

	var created model.Group
	err := s.txm.RunInTx(ctx, func(txCtx context.Context) error {
		if _, err := s.groups.FindByName(txCtx, name); err == nil {
			return apperr.Conflict("group '%s' already exists", name)
		} else if !errors.Is(err, gorm.ErrRecordNotFound) {
			return apperr.Storage(err, "failed to look up group '%s'", name)
		}

		created = model.Group{
			Name:        name,
			DisplayName: req.DisplayName,
			Description: req.Description,
			IsSystem:    false,
		}
		// Unresolvable codes are skipped silently: seed data may name
		// permissions that do not exist yet.
		for _, code := range req.PermissionCodes {
			perm, err := s.permissions.FindByCode(txCtx, code)
			if err != nil {
				if errors.Is(err, gorm.ErrRecordNotFound) {
					continue
				}
				return apperr.Storage(err, "failed to resolve permission code '%s'", code)
			}
			created.AddPermission(*perm)
		}

		if err := s.groups.Create(txCtx, &created); err != nil {
			return apperr.Storage(err, "failed to create group '%s'", name)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.audit.Record(ctx, actorID, model.AuditCreateGroup, created.ID.String(), created.Name, req)
	s.events.Publish(websocket.Event{Type: model.AuditCreateGroup, Entity: "group", EntityID: created.ID.String(), Subject: created.Name})

	return s.GetGroup(ctx, created.ID.String())
}

func (s *groupService) UpdateGroup(ctx context.Context, actorID *uuid.UUID, id string, req UpdateGroupRequest) (*GroupResponse, error) {
	groupID, err := uuid.Parse(id)
	if err != nil {
		return nil, apperr.Validation("invalid group id")
	}

	// Rename guard and persist run in one transaction so a concurrent
	// request cannot slip a system-group rename through.
	err = s.txm.RunInTx(ctx, func(txCtx context.Context) error {
		group, err := s.groups.FindByID(txCtx, groupID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return apperr.NotFound("group not found")
			}
			return apperr.Storage(err, "failed to fetch group")
		}

		newName := strings.ToUpper(strings.TrimSpace(req.Name))
		if newName != group.Name {
			if other, err := s.groups.FindByName(txCtx, newName); err == nil && other.ID != group.ID {
				return apperr.Conflict("group '%s' already exists", newName)
			} else if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
				return apperr.Storage(err, "failed to look up group '%s'", newName)
			}
		}

		if err := group.Rename(req.Name); err != nil {
			return err
		}
		group.DisplayName = req.DisplayName
		group.Description = req.Description

		if err := s.groups.Update(txCtx, group); err != nil {
			return apperr.Storage(err, "failed to update group")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.audit.Record(ctx, actorID, model.AuditUpdateGroup, id, strings.ToUpper(req.Name), req)
	s.events.Publish(websocket.Event{Type: model.AuditUpdateGroup, Entity: "group", EntityID: id, Subject: strings.ToUpper(req.Name)})

	return s.GetGroup(ctx, id)
}

func (s *groupService) DeleteGroup(ctx context.Context, actorID *uuid.UUID, id string) error {
	groupID, err := uuid.Parse(id)
	if err != nil {
		return apperr.Validation("invalid group id")
	}

	var name string
	err = s.txm.RunInTx(ctx, func(txCtx context.Context) error {
		group, err := s.groups.FindByID(txCtx, groupID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return apperr.NotFound("group not found")
			}
			return apperr.Storage(err, "failed to fetch group")
		}
		if group.IsSystem {
			return apperr.Invariant("the %s system group cannot be deleted", group.Name)
		}
		name = group.Name
		if err := s.groups.Delete(txCtx, groupID); err != nil {
			return apperr.Storage(err, "failed to delete group '%s'", group.Name)
		}
		return nil
	})
	if err != nil {
		return err
	}

	s.audit.Record(ctx, actorID, model.AuditDeleteGroup, id, name, nil)
	s.events.Publish(websocket.Event{Type: model.AuditDeleteGroup, Entity: "group", EntityID: id, Subject: name})
	return nil
}

func (s *groupService) GetGroupPermissions(ctx context.Context, id string) ([]PermissionResponse, error) {
	group, err := s.findGroup(ctx, id)
	if err != nil {
		return nil, err
	}
	res := make([]PermissionResponse, 0, len(group.Permissions))
	for i := range group.Permissions {
		res = append(res, toPermissionResponse(&group.Permissions[i]))
	}
	return res, nil
}

func (s *groupService) AddPermission(ctx context.Context, actorID *uuid.UUID, groupID, permissionID string) (*PermissionResponse, error) {
	gid, err := uuid.Parse(groupID)
	if err != nil {
		return nil, apperr.Validation("invalid group id")
	}
	pid, err := uuid.Parse(permissionID)
	if err != nil {
		return nil, apperr.Validation("invalid permission id")
	}

	var granted model.Permission
	err = s.txm.RunInTx(ctx, func(txCtx context.Context) error {
		group, err := s.groups.FindByIDWithPermissions(txCtx, gid)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return apperr.NotFound("group not found")
			}
			return apperr.Storage(err, "failed to fetch group")
		}
		perm, err := s.permissions.FindByID(txCtx, pid)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return apperr.NotFound("permission not found")
			}
			return apperr.Storage(err, "failed to fetch permission")
		}
		if !group.AddPermission(*perm) {
			return apperr.Conflict("group '%s' already has permission %s", group.Name, perm.Code())
		}
		granted = *perm
		return s.groups.AppendPermissions(txCtx, group, []model.Permission{*perm})
	})
	if err != nil {
		return nil, err
	}

	s.audit.Record(ctx, actorID, model.AuditGrantPermission, groupID, granted.Code(), nil)
	s.events.Publish(websocket.Event{Type: model.AuditGrantPermission, Entity: "group", EntityID: groupID, Detail: granted.Code()})

	resp := toPermissionResponse(&granted)
	return &resp, nil
}

// RemovePermission detaches a permission from a group. On the system group
// this silently does nothing: bulk revocations stay idempotent and the
// privileged set never regresses.
func (s *groupService) RemovePermission(ctx context.Context, actorID *uuid.UUID, groupID, permissionID string) error {
	gid, err := uuid.Parse(groupID)
	if err != nil {
		return apperr.Validation("invalid group id")
	}
	pid, err := uuid.Parse(permissionID)
	if err != nil {
		return apperr.Validation("invalid permission id")
	}

	var removed *model.Permission
	err = s.txm.RunInTx(ctx, func(txCtx context.Context) error {
		group, err := s.groups.FindByIDWithPermissions(txCtx, gid)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return apperr.NotFound("group not found")
			}
			return apperr.Storage(err, "failed to fetch group")
		}
		perm, err := s.permissions.FindByID(txCtx, pid)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return apperr.NotFound("permission not found")
			}
			return apperr.Storage(err, "failed to fetch permission")
		}
		if group.IsSystem {
			return nil
		}
		if !group.RemovePermission(perm.ID) {
			return apperr.NotFound("group '%s' does not have permission %s", group.Name, perm.Code())
		}
		removed = perm
		return s.groups.RemovePermission(txCtx, group, *perm)
	})
	if err != nil {
		return err
	}

	if removed != nil {
		s.audit.Record(ctx, actorID, model.AuditRevokePermission, groupID, removed.Code(), nil)
		s.events.Publish(websocket.Event{Type: model.AuditRevokePermission, Entity: "group", EntityID: groupID, Detail: removed.Code()})
	}
	return nil
}

// ReplacePermissions swaps a group's permission set wholesale. For a system
// group only additions are applied, so the stored set can grow but never
// shrink.
func (s *groupService) ReplacePermissions(ctx context.Context, actorID *uuid.UUID, groupID string, req UpdateGroupPermissionsRequest) (*GroupResponse, error) {
	gid, err := uuid.Parse(groupID)
	if err != nil {
		return nil, apperr.Validation("invalid group id")
	}

	err = s.txm.RunInTx(ctx, func(txCtx context.Context) error {
		group, err := s.groups.FindByIDWithPermissions(txCtx, gid)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return apperr.NotFound("group not found")
			}
			return apperr.Storage(err, "failed to fetch group")
		}

		perms := make([]model.Permission, 0, len(req.PermissionIDs))
		for _, raw := range req.PermissionIDs {
			pid, err := uuid.Parse(raw)
			if err != nil {
				return apperr.Validation("invalid permission id '%s'", raw)
			}
			perm, err := s.permissions.FindByID(txCtx, pid)
			if err != nil {
				if errors.Is(err, gorm.ErrRecordNotFound) {
					return apperr.NotFound("permission '%s' not found", raw)
				}
				return apperr.Storage(err, "failed to fetch permission '%s'", raw)
			}
			perms = append(perms, *perm)
		}

		if group.IsSystem {
			missing := make([]model.Permission, 0, len(perms))
			for _, perm := range perms {
				if group.AddPermission(perm) {
					missing = append(missing, perm)
				}
			}
			if len(missing) == 0 {
				return nil
			}
			return s.groups.AppendPermissions(txCtx, group, missing)
		}
		return s.groups.ReplacePermissions(txCtx, group, perms)
	})
	if err != nil {
		return nil, err
	}

	s.audit.Record(ctx, actorID, model.AuditUpdateGroup, groupID, "", req)
	s.events.Publish(websocket.Event{Type: model.AuditUpdateGroup, Entity: "group", EntityID: groupID, Detail: "permissions replaced"})

	return s.GetGroup(ctx, groupID)
}

func (s *groupService) CheckPermission(ctx context.Context, groupID string, req CheckPermissionRequest) (bool, error) {
	group, err := s.findGroup(ctx, groupID)
	if err != nil {
		return false, err
	}
	return group.HasPermission(req.Resource, req.Action), nil
}

func (s *groupService) ListGroupUsers(ctx context.Context, groupID string) ([]UserResponse, error) {
	group, err := s.findGroup(ctx, groupID)
	if err != nil {
		return nil, err
	}
	users, err := s.groups.ListUsers(ctx, group.ID)
	if err != nil {
		return nil, apperr.Storage(err, "failed to fetch group members")
	}
	res := make([]UserResponse, 0, len(users))
	for i := range users {
		res = append(res, toUserResponse(&users[i]))
	}
	return res, nil
}

func (s *groupService) EnsureAdminGroup(ctx context.Context) (*model.Group, error) {
	var admin *model.Group
	err := s.txm.RunInTx(ctx, func(txCtx context.Context) error {
		existing, err := s.groups.FindSystemGroup(txCtx)
		if err == nil {
			admin = existing
			return nil
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return apperr.Storage(err, "failed to look up the system group")
		}

		perms, err := s.permissions.ListAll(txCtx)
		if err != nil {
			return apperr.Storage(err, "failed to fetch permissions")
		}
		created := model.Group{
			Name:        model.AdminGroupName,
			DisplayName: "Administrators",
			Description: adminGroupDescription,
			IsSystem:    true,
			Permissions: perms,
		}
		if err := s.groups.Create(txCtx, &created); err != nil {
			return apperr.Storage(err, "failed to create the %s group", model.AdminGroupName)
		}
		admin = &created
		return nil
	})
	if err != nil {
		return nil, err
	}
	return admin, nil
}

func (s *groupService) SyncAdminPermissions(ctx context.Context) (int, error) {
	added := 0
	err := s.txm.RunInTx(ctx, func(txCtx context.Context) error {
		admin, err := s.groups.FindSystemGroup(txCtx)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return apperr.NotFound("the system group does not exist yet")
			}
			return apperr.Storage(err, "failed to look up the system group")
		}

		perms, err := s.permissions.ListAll(txCtx)
		if err != nil {
			return apperr.Storage(err, "failed to fetch permissions")
		}

		missing := make([]model.Permission, 0)
		for _, perm := range perms {
			if admin.AddPermission(perm) {
				missing = append(missing, perm)
			}
		}
		if len(missing) == 0 {
			return nil
		}
		if err := s.groups.AppendPermissions(txCtx, admin, missing); err != nil {
			return apperr.Storage(err, "failed to sync the %s group", admin.Name)
		}
		added = len(missing)
		return nil
	})
	if err != nil {
		return 0, err
	}
	return added, nil
}

// --- Helpers ---

func (s *groupService) findGroup(ctx context.Context, id string) (*model.Group, error) {
	groupID, err := uuid.Parse(id)
	if err != nil {
		return nil, apperr.Validation("invalid group id")
	}
	group, err := s.groups.FindByIDWithPermissions(ctx, groupID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.NotFound("group not found")
		}
		return nil, apperr.Storage(err, "failed to fetch group")
	}
	return group, nil
}

func toGroupResponse(g *model.Group, usersCount int64) GroupResponse {
	perms := make([]PermissionResponse, 0, len(g.Permissions))
	for i := range g.Permissions {
		perms = append(perms, toPermissionResponse(&g.Permissions[i]))
	}
	return GroupResponse{
		ID:          g.ID.String(),
		Name:        g.Name,
		DisplayName: g.DisplayName,
		Description: g.Description,
		IsSystem:    g.IsSystem,
		Role:        g.Role(),
		Permissions: perms,
		UsersCount:  usersCount,
		CreatedAt:   g.CreatedAt.Format("2006-01-02 15:04:05"),
	}
}
