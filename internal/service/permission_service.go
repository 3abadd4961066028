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

// --- DTOs ---

type CreateResourceRequest struct {
	Name        string `json:"name" binding:"required"`
	DisplayName string `json:"display_name"`
	Description string `json:"description"`
}

type UpdateResourceRequest struct {
	DisplayName string `json:"display_name"`
	Description string `json:"description"`
}

type RegisterPermissionRequest struct {
	Resource    string `json:"resource" binding:"required"`
	Action      string `json:"action" binding:"required"`
	Description string `json:"description"`
}

type ResourceResponse struct {
	ID          string               `json:"id"`
	Name        string               `json:"name"`
	DisplayName string               `json:"display_name"`
	Description string               `json:"description"`
	Permissions []PermissionResponse `json:"permissions,omitempty"`
	CreatedAt   string               `json:"created_at"`
}

type PermissionResponse struct {
	ID          string `json:"id"`
	Code        string `json:"code"`
	Resource    string `json:"resource"`
	Action      string `json:"action"`
	Description string `json:"description"`
}

// --- Interface ---

// PermissionService is the permission registry: resources and the
// (resource, action) pairs under them.
type PermissionService interface {
	ListResources(ctx context.Context) ([]ResourceResponse, error)
	CreateResource(ctx context.Context, actorID *uuid.UUID, req CreateResourceRequest) (*ResourceResponse, error)
	UpdateResource(ctx context.Context, id string, req UpdateResourceRequest) (*ResourceResponse, error)
	DeleteResource(ctx context.Context, actorID *uuid.UUID, id string) error

	ListPermissions(ctx context.Context) ([]PermissionResponse, error)
	// Register creates or updates the permission keyed by (resource, action).
	// Repeated identical calls are no-ops; a changed description is applied.
	Register(ctx context.Context, req RegisterPermissionRequest) (*PermissionResponse, error)
	DeletePermission(ctx context.Context, actorID *uuid.UUID, id string) error
}

type permissionService struct {
	resources   repository.ResourceRepository
	permissions repository.PermissionRepository
	txm         repository.TransactionManager
	audit       AuditService
	events      *websocket.Hub
}

func NewPermissionService(
	resources repository.ResourceRepository,
	permissions repository.PermissionRepository,
	txm repository.TransactionManager,
	audit AuditService,
	events *websocket.Hub,
) PermissionService {
	return &permissionService{
		resources:   resources,
		permissions: permissions,
		txm:         txm,
		audit:       audit,
		events:      events,
	}
}

// --- Implementation ---

func (s *permissionService) ListResources(ctx context.Context) ([]ResourceResponse, error) {
	resources, err := s.resources.ListAllWithPermissions(ctx)
	if err != nil {
		return nil, apperr.Storage(err, "failed to fetch resources")
	}
	res := make([]ResourceResponse, 0, len(resources))
	for i := range resources {
		res = append(res, toResourceResponse(&resources[i]))
	}
	return res, nil
}

func (s *permissionService) CreateResource(ctx context.Context, actorID *uuid.UUID, req CreateResourceRequest) (*ResourceResponse, error) {
	name := strings.ToUpper(strings.TrimSpace(req.Name))
	if name == "" {
		return nil, apperr.Validation("resource name is required")
	}

	var created model.Resource
	err := s.txm.RunInTx(ctx, func(txCtx context.Context) error {
		if _, err := s.resources.FindByName(txCtx, name); err == nil {
			return apperr.Conflict("resource '%s' already exists", name)
		} else if !errors.Is(err, gorm.ErrRecordNotFound) {
			return apperr.Storage(err, "failed to look up resource '%s'", name)
		}
		created = model.Resource{
			Name:        name,
			DisplayName: req.DisplayName,
			Description: req.Description,
		}
		if err := s.resources.Create(txCtx, &created); err != nil {
			return apperr.Storage(err, "failed to create resource '%s'", name)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.audit.Record(ctx, actorID, model.AuditCreateResource, created.ID.String(), created.Name, req)
	s.events.Publish(websocket.Event{Type: model.AuditCreateResource, Entity: "resource", EntityID: created.ID.String(), Subject: created.Name})

	resp := toResourceResponse(&created)
	return &resp, nil
}

func (s *permissionService) UpdateResource(ctx context.Context, id string, req UpdateResourceRequest) (*ResourceResponse, error) {
	resourceID, err := uuid.Parse(id)
	if err != nil {
		return nil, apperr.Validation("invalid resource id")
	}

	resource, err := s.resources.FindByID(ctx, resourceID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.NotFound("resource not found")
		}
		return nil, apperr.Storage(err, "failed to fetch resource")
	}

	resource.DisplayName = req.DisplayName
	resource.Description = req.Description
	if err := s.resources.Update(ctx, resource); err != nil {
		return nil, apperr.Storage(err, "failed to update resource")
	}

	resp := toResourceResponse(resource)
	return &resp, nil
}

// DeleteResource removes the resource and cascades its permissions, so the
// resolver never sees a permission with a dangling resource reference.
func (s *permissionService) DeleteResource(ctx context.Context, actorID *uuid.UUID, id string) error {
	resourceID, err := uuid.Parse(id)
	if err != nil {
		return apperr.Validation("invalid resource id")
	}

	resource, err := s.resources.FindByID(ctx, resourceID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return apperr.NotFound("resource not found")
		}
		return apperr.Storage(err, "failed to fetch resource")
	}

	if err := s.txm.RunInTx(ctx, func(txCtx context.Context) error {
		return s.resources.Delete(txCtx, resourceID)
	}); err != nil {
		return apperr.Storage(err, "failed to delete resource '%s'", resource.Name)
	}

	s.audit.Record(ctx, actorID, model.AuditDeleteResource, id, resource.Name, nil)
	s.events.Publish(websocket.Event{Type: model.AuditDeleteResource, Entity: "resource", EntityID: id, Subject: resource.Name})
	return nil
}

func (s *permissionService) ListPermissions(ctx context.Context) ([]PermissionResponse, error) {
	perms, err := s.permissions.ListAll(ctx)
	if err != nil {
		return nil, apperr.Storage(err, "failed to fetch permissions")
	}
	res := make([]PermissionResponse, 0, len(perms))
	for i := range perms {
		res = append(res, toPermissionResponse(&perms[i]))
	}
	return res, nil
}

func (s *permissionService) Register(ctx context.Context, req RegisterPermissionRequest) (*PermissionResponse, error) {
	action := strings.ToUpper(strings.TrimSpace(req.Action))
	if !model.ValidAction(action) {
		return nil, apperr.Validation("unknown action '%s'", req.Action)
	}

	var result model.Permission
	err := s.txm.RunInTx(ctx, func(txCtx context.Context) error {
		resource, err := s.resources.FindByName(txCtx, req.Resource)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return apperr.NotFound("resource '%s' not found", req.Resource)
			}
			return apperr.Storage(err, "failed to look up resource '%s'", req.Resource)
		}

		perm, err := s.permissions.FindByResourceAndAction(txCtx, resource.ID, action)
		switch {
		case err == nil:
			if perm.Description != req.Description {
				perm.Description = req.Description
				if err := s.permissions.Update(txCtx, perm); err != nil {
					return apperr.Storage(err, "failed to update permission %s", perm.Code())
				}
			}
			result = *perm
		case errors.Is(err, gorm.ErrRecordNotFound):
			created := model.Permission{
				ResourceID:  resource.ID,
				Resource:    resource,
				Action:      action,
				Description: req.Description,
			}
			if err := s.permissions.Create(txCtx, &created); err != nil {
				return apperr.Storage(err, "failed to create permission %s_%s", resource.Name, action)
			}
			result = created
		default:
			return apperr.Storage(err, "failed to look up permission")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	resp := toPermissionResponse(&result)
	return &resp, nil
}

func (s *permissionService) DeletePermission(ctx context.Context, actorID *uuid.UUID, id string) error {
	permID, err := uuid.Parse(id)
	if err != nil {
		return apperr.Validation("invalid permission id")
	}

	perm, err := s.permissions.FindByID(ctx, permID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return apperr.NotFound("permission not found")
		}
		return apperr.Storage(err, "failed to fetch permission")
	}

	if err := s.permissions.Delete(ctx, permID); err != nil {
		return apperr.Storage(err, "failed to delete permission %s", perm.Code())
	}

	s.audit.Record(ctx, actorID, model.AuditRevokePermission, id, perm.Code(), nil)
	return nil
}

// --- Helpers ---

func toResourceResponse(r *model.Resource) ResourceResponse {
	perms := make([]PermissionResponse, 0, len(r.Permissions))
	for i := range r.Permissions {
		p := r.Permissions[i]
		if p.Resource == nil {
			p.Resource = r
		}
		perms = append(perms, toPermissionResponse(&p))
	}
	return ResourceResponse{
		ID:          r.ID.String(),
		Name:        r.Name,
		DisplayName: r.DisplayName,
		Description: r.Description,
		Permissions: perms,
		CreatedAt:   r.CreatedAt.Format("2006-01-02 15:04:05"),
	}
}

func toPermissionResponse(p *model.Permission) PermissionResponse {
	resourceName := ""
	if p.Resource != nil {
		resourceName = p.Resource.Name
	}
	return PermissionResponse{
		ID:          p.ID.String(),
		Code:        p.Code(),
		Resource:    resourceName,
		Action:      p.Action,
		Description: p.Description,
	}
}
