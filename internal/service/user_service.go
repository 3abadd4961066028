package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"backend/internal/authz"
	"backend/internal/model"
	"backend/internal/repository"
	"backend/internal/websocket"
	"backend/pkg/apperr"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

const tokenTTL = 24 * time.Hour

// --- DTOs ---

type CreateUserRequest struct {
	Username  string `json:"username" binding:"required,min=3,max=50"`
	Password  string `json:"password" binding:"required,min=6"`
	FirstName string `json:"first_name" binding:"required"`
	LastName  string `json:"last_name" binding:"required"`
	GroupID   string `json:"group_id"`
}

type UpdateUserRequest struct {
	FirstName string `json:"first_name" binding:"required"`
	LastName  string `json:"last_name" binding:"required"`
	Password  string `json:"password"`
}

type LoginRequest struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

type LoginResponse struct {
	Token string       `json:"token"`
	User  UserResponse `json:"user"`
}

type UpdateUserPermissionsRequest struct {
	PermissionIDs []string `json:"permission_ids" binding:"required"`
}

type AssignGroupRequest struct {
	GroupID string `json:"group_id" binding:"required"`
}

type GroupRef struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	DisplayName string `json:"display_name"`
	IsSystem    bool   `json:"is_system"`
	Role        string `json:"role"`
}

type UserResponse struct {
	ID          string               `json:"id"`
	Username    string               `json:"username"`
	FirstName   string               `json:"first_name"`
	LastName    string               `json:"last_name"`
	Roles       []string             `json:"roles"`
	Group       *GroupRef            `json:"group"`
	Permissions []PermissionResponse `json:"permissions"`
	CreatedAt   string               `json:"created_at"`
}

// UserAccessResponse is the resolved view of a user: effective permission
// codes and derived roles, combining direct grants with group inheritance.
type UserAccessResponse struct {
	ID              string   `json:"id"`
	Username        string   `json:"username"`
	Roles           []string `json:"roles"`
	PermissionCodes []string `json:"permission_codes"`
	IsAdmin         bool     `json:"is_admin"`
}

// --- Interface ---

type UserService interface {
	Login(ctx context.Context, req LoginRequest) (*LoginResponse, error)
	CreateUser(ctx context.Context, actorID *uuid.UUID, req CreateUserRequest) (*UserResponse, error)
	GetUser(ctx context.Context, id string) (*UserResponse, error)
	GetUserByUsername(ctx context.Context, username string) (*UserResponse, error)
	ListUsers(ctx context.Context, page, limit int) ([]UserResponse, int64, error)
	UpdateUser(ctx context.Context, actorID *uuid.UUID, id string, req UpdateUserRequest) (*UserResponse, error)
	DeleteUser(ctx context.Context, actorID *uuid.UUID, id string) error
	UsernameAvailable(ctx context.Context, username string) (bool, error)

	AssignGroup(ctx context.Context, actorID *uuid.UUID, userID string, req AssignGroupRequest) (*UserResponse, error)
	ClearGroup(ctx context.Context, actorID *uuid.UUID, userID string) (*UserResponse, error)

	GetUserPermissions(ctx context.Context, userID string) ([]PermissionResponse, error)
	GrantPermission(ctx context.Context, actorID *uuid.UUID, userID, permissionID string) (*PermissionResponse, error)
	RevokePermission(ctx context.Context, actorID *uuid.UUID, userID, permissionID string) error
	ReplacePermissions(ctx context.Context, actorID *uuid.UUID, userID string, req UpdateUserPermissionsRequest) (*UserResponse, error)

	// GetUserAccess resolves the user's effective permission codes and roles.
	GetUserAccess(ctx context.Context, userID string) (*UserAccessResponse, error)
	// IsAllowed resolves a single (resource, action) check for the user.
	IsAllowed(ctx context.Context, userID string, resource, action string) (bool, error)
}

type userService struct {
	users       repository.UserRepository
	groups      repository.GroupRepository
	permissions repository.PermissionRepository
	txm         repository.TransactionManager
	audit       AuditService
	events      *websocket.Hub
	jwtSecret   []byte
}

func NewUserService(
	users repository.UserRepository,
	groups repository.GroupRepository,
	permissions repository.PermissionRepository,
	txm repository.TransactionManager,
	audit AuditService,
	events *websocket.Hub,
	jwtSecret []byte,
) UserService {
	return &userService{
		users:       users,
		groups:      groups,
		permissions: permissions,
		txm:         txm,
		audit:       audit,
		events:      events,
		jwtSecret:   jwtSecret,
	}
}

// --- Auth ---

func (s *userService) Login(ctx context.Context, req LoginRequest) (*LoginResponse, error) {
	user, err := s.users.FindByUsername(ctx, req.Username)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.Validation("invalid username or password")
		}
		return nil, apperr.Storage(err, "failed to fetch user")
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(req.Password)); err != nil {
		return nil, apperr.Validation("invalid username or password")
	}

	now := time.Now()
	claims := jwt.MapClaims{
		"sub":      user.ID.String(),
		"username": user.Username,
		"roles":    authz.Roles(user),
		"iat":      now.Unix(),
		"exp":      now.Add(tokenTTL).Unix(),
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.jwtSecret)
	if err != nil {
		return nil, apperr.Storage(err, "failed to sign token")
	}

	return &LoginResponse{Token: token, User: toUserResponse(user)}, nil
}

// --- CRUD ---

func (s *userService) CreateUser(ctx context.Context, actorID *uuid.UUID, req CreateUserRequest) (*UserResponse, error) {
	username := strings.TrimSpace(req.Username)
	if username == "" {
		return nil, apperr.Validation("username is required")
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, apperr.Storage(err, "failed to hash password")
	}

	var created model.User
	err = s.txm.RunInTx(ctx, func(txCtx context.Context) error {
		if _, err := s.users.FindByUsername(txCtx, username); err == nil {
			return apperr.Conflict("username '%s' is already taken", username)
		} else if !errors.Is(err, gorm.ErrRecordNotFound) {
			return apperr.Storage(err, "failed to look up username '%s'", username)
		}

		created = model.User{
			Username:  username,
			Password:  string(hash),
			FirstName: req.FirstName,
			LastName:  req.LastName,
			Roles:     []string{authz.RoleUser},
		}
		if req.GroupID != "" {
			gid, err := uuid.Parse(req.GroupID)
			if err != nil {
				return apperr.Validation("invalid group id")
			}
			if _, err := s.groups.FindByID(txCtx, gid); err != nil {
				if errors.Is(err, gorm.ErrRecordNotFound) {
					return apperr.NotFound("group not found")
				}
				return apperr.Storage(err, "failed to fetch group")
			}
			created.GroupID = &gid
		}
		if err := s.users.Create(txCtx, &created); err != nil {
			return apperr.Storage(err, "failed to create user '%s'", username)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.audit.Record(ctx, actorID, model.AuditCreateUser, created.ID.String(), created.Username, nil)
	s.events.Publish(websocket.Event{Type: model.AuditCreateUser, Entity: "user", EntityID: created.ID.String(), Subject: created.Username})

	return s.GetUser(ctx, created.ID.String())
}

func (s *userService) GetUser(ctx context.Context, id string) (*UserResponse, error) {
	user, err := s.findUser(ctx, id)
	if err != nil {
		return nil, err
	}
	resp := toUserResponse(user)
	return &resp, nil
}

func (s *userService) GetUserByUsername(ctx context.Context, username string) (*UserResponse, error) {
	user, err := s.users.FindByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.NotFound("user not found")
		}
		return nil, apperr.Storage(err, "failed to fetch user")
	}
	resp := toUserResponse(user)
	return &resp, nil
}

func (s *userService) ListUsers(ctx context.Context, page, limit int) ([]UserResponse, int64, error) {
	offset := (page - 1) * limit
	users, total, err := s.users.List(ctx, offset, limit)
	if err != nil {
		return nil, 0, apperr.Storage(err, "failed to fetch users")
	}
	res := make([]UserResponse, 0, len(users))
	for i := range users {
		res = append(res, toUserResponse(&users[i]))
	}
	return res, total, nil
}

func (s *userService) UpdateUser(ctx context.Context, actorID *uuid.UUID, id string, req UpdateUserRequest) (*UserResponse, error) {
	userID, err := uuid.Parse(id)
	if err != nil {
		return nil, apperr.Validation("invalid user id")
	}

	err = s.txm.RunInTx(ctx, func(txCtx context.Context) error {
		user, err := s.users.FindByID(txCtx, userID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return apperr.NotFound("user not found")
			}
			return apperr.Storage(err, "failed to fetch user")
		}
		user.FirstName = req.FirstName
		user.LastName = req.LastName
		if req.Password != "" {
			if len(req.Password) < 6 {
				return apperr.Validation("password must be at least 6 characters")
			}
			hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
			if err != nil {
				return apperr.Storage(err, "failed to hash password")
			}
			user.Password = string(hash)
		}
		if err := s.users.Update(txCtx, user); err != nil {
			return apperr.Storage(err, "failed to update user")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.audit.Record(ctx, actorID, model.AuditUpdateUser, id, "", req)
	s.events.Publish(websocket.Event{Type: model.AuditUpdateUser, Entity: "user", EntityID: id})

	return s.GetUser(ctx, id)
}

func (s *userService) DeleteUser(ctx context.Context, actorID *uuid.UUID, id string) error {
	userID, err := uuid.Parse(id)
	if err != nil {
		return apperr.Validation("invalid user id")
	}

	var username string
	err = s.txm.RunInTx(ctx, func(txCtx context.Context) error {
		user, err := s.users.FindByID(txCtx, userID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return apperr.NotFound("user not found")
			}
			return apperr.Storage(err, "failed to fetch user")
		}
		username = user.Username
		if err := s.users.Delete(txCtx, userID); err != nil {
			return apperr.Storage(err, "failed to delete user '%s'", user.Username)
		}
		return nil
	})
	if err != nil {
		return err
	}

	s.audit.Record(ctx, actorID, model.AuditDeleteUser, id, username, nil)
	s.events.Publish(websocket.Event{Type: model.AuditDeleteUser, Entity: "user", EntityID: id, Subject: username})
	return nil
}

func (s *userService) UsernameAvailable(ctx context.Context, username string) (bool, error) {
	username = strings.TrimSpace(username)
	if username == "" {
		return false, apperr.Validation("username is required")
	}
	_, err := s.users.FindByUsername(ctx, username)
	if err == nil {
		return false, nil
	}
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return true, nil
	}
	return false, apperr.Storage(err, "failed to look up username '%s'", username)
}

// --- Group membership ---

func (s *userService) AssignGroup(ctx context.Context, actorID *uuid.UUID, userID string, req AssignGroupRequest) (*UserResponse, error) {
	uid, err := uuid.Parse(userID)
	if err != nil {
		return nil, apperr.Validation("invalid user id")
	}
	gid, err := uuid.Parse(req.GroupID)
	if err != nil {
		return nil, apperr.Validation("invalid group id")
	}

	var groupName string
	err = s.txm.RunInTx(ctx, func(txCtx context.Context) error {
		user, err := s.users.FindByID(txCtx, uid)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return apperr.NotFound("user not found")
			}
			return apperr.Storage(err, "failed to fetch user")
		}
		group, err := s.groups.FindByID(txCtx, gid)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return apperr.NotFound("group not found")
			}
			return apperr.Storage(err, "failed to fetch group")
		}
		groupName = group.Name
		user.GroupID = &group.ID
		if err := s.users.Update(txCtx, user); err != nil {
			return apperr.Storage(err, "failed to assign group")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.audit.Record(ctx, actorID, model.AuditAssignGroup, userID, groupName, nil)
	s.events.Publish(websocket.Event{Type: model.AuditAssignGroup, Entity: "user", EntityID: userID, Detail: groupName})

	return s.GetUser(ctx, userID)
}

func (s *userService) ClearGroup(ctx context.Context, actorID *uuid.UUID, userID string) (*UserResponse, error) {
	uid, err := uuid.Parse(userID)
	if err != nil {
		return nil, apperr.Validation("invalid user id")
	}

	err = s.txm.RunInTx(ctx, func(txCtx context.Context) error {
		user, err := s.users.FindByID(txCtx, uid)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return apperr.NotFound("user not found")
			}
			return apperr.Storage(err, "failed to fetch user")
		}
		user.GroupID = nil
		user.Group = nil
		if err := s.users.Update(txCtx, user); err != nil {
			return apperr.Storage(err, "failed to clear group")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.audit.Record(ctx, actorID, model.AuditClearGroup, userID, "", nil)
	s.events.Publish(websocket.Event{Type: model.AuditClearGroup, Entity: "user", EntityID: userID})

	return s.GetUser(ctx, userID)
}

// --- Direct permission grants ---

func (s *userService) GetUserPermissions(ctx context.Context, userID string) ([]PermissionResponse, error) {
	user, err := s.findUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	res := make([]PermissionResponse, 0, len(user.Permissions))
	for i := range user.Permissions {
		res = append(res, toPermissionResponse(&user.Permissions[i]))
	}
	return res, nil
}

func (s *userService) GrantPermission(ctx context.Context, actorID *uuid.UUID, userID, permissionID string) (*PermissionResponse, error) {
	uid, err := uuid.Parse(userID)
	if err != nil {
		return nil, apperr.Validation("invalid user id")
	}
	pid, err := uuid.Parse(permissionID)
	if err != nil {
		return nil, apperr.Validation("invalid permission id")
	}

	var granted model.Permission
	err = s.txm.RunInTx(ctx, func(txCtx context.Context) error {
		user, err := s.users.FindByIDWithAccess(txCtx, uid)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return apperr.NotFound("user not found")
			}
			return apperr.Storage(err, "failed to fetch user")
		}
		perm, err := s.permissions.FindByID(txCtx, pid)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return apperr.NotFound("permission not found")
			}
			return apperr.Storage(err, "failed to fetch permission")
		}
		if user.HasDirectPermission(perm.ID) {
			return apperr.Conflict("user '%s' already has permission %s", user.Username, perm.Code())
		}
		granted = *perm
		return s.users.AppendPermission(txCtx, user, *perm)
	})
	if err != nil {
		return nil, err
	}

	s.audit.Record(ctx, actorID, model.AuditGrantPermission, userID, granted.Code(), nil)
	s.events.Publish(websocket.Event{Type: model.AuditGrantPermission, Entity: "user", EntityID: userID, Detail: granted.Code()})

	resp := toPermissionResponse(&granted)
	return &resp, nil
}

func (s *userService) RevokePermission(ctx context.Context, actorID *uuid.UUID, userID, permissionID string) error {
	uid, err := uuid.Parse(userID)
	if err != nil {
		return apperr.Validation("invalid user id")
	}
	pid, err := uuid.Parse(permissionID)
	if err != nil {
		return apperr.Validation("invalid permission id")
	}

	var revoked model.Permission
	err = s.txm.RunInTx(ctx, func(txCtx context.Context) error {
		user, err := s.users.FindByIDWithAccess(txCtx, uid)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return apperr.NotFound("user not found")
			}
			return apperr.Storage(err, "failed to fetch user")
		}
		perm, err := s.permissions.FindByID(txCtx, pid)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return apperr.NotFound("permission not found")
			}
			return apperr.Storage(err, "failed to fetch permission")
		}
		if !user.HasDirectPermission(perm.ID) {
			return apperr.NotFound("user '%s' does not have permission %s", user.Username, perm.Code())
		}
		revoked = *perm
		return s.users.RemovePermission(txCtx, user, *perm)
	})
	if err != nil {
		return err
	}

	s.audit.Record(ctx, actorID, model.AuditRevokePermission, userID, revoked.Code(), nil)
	s.events.Publish(websocket.Event{Type: model.AuditRevokePermission, Entity: "user", EntityID: userID, Detail: revoked.Code()})
	return nil
}

func (s *userService) ReplacePermissions(ctx context.Context, actorID *uuid.UUID, userID string, req UpdateUserPermissionsRequest) (*UserResponse, error) {
	uid, err := uuid.Parse(userID)
	if err != nil {
		return nil, apperr.Validation("invalid user id")
	}

	err = s.txm.RunInTx(ctx, func(txCtx context.Context) error {
		user, err := s.users.FindByID(txCtx, uid)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return apperr.NotFound("user not found")
			}
			return apperr.Storage(err, "failed to fetch user")
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
		return s.users.ReplacePermissions(txCtx, user, perms)
	})
	if err != nil {
		return nil, err
	}

	s.audit.Record(ctx, actorID, model.AuditGrantPermission, userID, "", req)
	s.events.Publish(websocket.Event{Type: model.AuditGrantPermission, Entity: "user", EntityID: userID, Detail: "permissions replaced"})

	return s.GetUser(ctx, userID)
}

// --- Resolution ---

func (s *userService) GetUserAccess(ctx context.Context, userID string) (*UserAccessResponse, error) {
	user, err := s.findUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	return &UserAccessResponse{
		ID:              user.ID.String(),
		Username:        user.Username,
		Roles:           authz.Roles(user),
		PermissionCodes: authz.PermissionCodes(user),
		IsAdmin:         authz.IsAdmin(user),
	}, nil
}

func (s *userService) IsAllowed(ctx context.Context, userID string, resource, action string) (bool, error) {
	user, err := s.findUser(ctx, userID)
	if err != nil {
		return false, err
	}
	return authz.IsAllowed(user, resource, action), nil
}

// --- Helpers ---

func (s *userService) findUser(ctx context.Context, id string) (*model.User, error) {
	userID, err := uuid.Parse(id)
	if err != nil {
		return nil, apperr.Validation("invalid user id")
	}
	user, err := s.users.FindByIDWithAccess(ctx, userID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.NotFound("user not found")
		}
		return nil, apperr.Storage(err, "failed to fetch user")
	}
	return user, nil
}

func toUserResponse(u *model.User) UserResponse {
	perms := make([]PermissionResponse, 0, len(u.Permissions))
	for i := range u.Permissions {
		perms = append(perms, toPermissionResponse(&u.Permissions[i]))
	}
	var group *GroupRef
	if u.Group != nil {
		group = &GroupRef{
			ID:          u.Group.ID.String(),
			Name:        u.Group.Name,
			DisplayName: u.Group.DisplayName,
			IsSystem:    u.Group.IsSystem,
			Role:        u.Group.Role(),
		}
	}
	return UserResponse{
		ID:          u.ID.String(),
		Username:    u.Username,
		FirstName:   u.FirstName,
		LastName:    u.LastName,
		Roles:       authz.Roles(u),
		Group:       group,
		Permissions: perms,
		CreatedAt:   u.CreatedAt.Format("2006-01-02 15:04:05"),
	}
}
