package handler

import (
	"net/http"

	"backend/internal/middleware"
	"backend/internal/service"
	"backend/pkg/response"

	"github.com/gin-gonic/gin"
)

type PermissionHandler struct {
	permissionService service.PermissionService
}

func NewPermissionHandler(permissionService service.PermissionService) *PermissionHandler {
	return &PermissionHandler{permissionService: permissionService}
}

func (h *PermissionHandler) RegisterRoutes(router *gin.RouterGroup) {
	resources := router.Group("/resources")
	{
		resources.GET("", middleware.RequirePermission("PERMISSIONS_READ"), h.ListResources)
		resources.POST("", middleware.RequirePermission("PERMISSIONS_MANAGE"), h.CreateResource)
		resources.PUT("/:id", middleware.RequirePermission("PERMISSIONS_MANAGE"), h.UpdateResource)
		resources.DELETE("/:id", middleware.RequirePermission("PERMISSIONS_MANAGE"), h.DeleteResource)
	}

	perms := router.Group("/permissions")
	{
		perms.GET("", middleware.RequirePermission("PERMISSIONS_READ"), h.ListPermissions)
		perms.POST("", middleware.RequirePermission("PERMISSIONS_MANAGE"), h.RegisterPermission)
		perms.DELETE("/:id", middleware.RequirePermission("PERMISSIONS_MANAGE"), h.DeletePermission)
	}
}

// ListResources returns all resources with their permissions
func (h *PermissionHandler) ListResources(c *gin.Context) {
	resources, err := h.permissionService.ListResources(c.Request.Context())
	if err != nil {
		c.JSON(response.FromError(err))
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, resources))
}

// CreateResource registers a new resource in the catalog
func (h *PermissionHandler) CreateResource(c *gin.Context) {
	var req service.CreateResourceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, response.Error(http.StatusBadRequest, "Invalid request payload: "+err.Error()))
		return
	}

	resource, err := h.permissionService.CreateResource(c.Request.Context(), actorID(c), req)
	if err != nil {
		c.JSON(response.FromError(err))
		return
	}
	c.JSON(http.StatusCreated, response.Success(http.StatusCreated, resource))
}

// UpdateResource updates a resource's display name and description
func (h *PermissionHandler) UpdateResource(c *gin.Context) {
	var req service.UpdateResourceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, response.Error(http.StatusBadRequest, "Invalid request payload: "+err.Error()))
		return
	}

	resource, err := h.permissionService.UpdateResource(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		c.JSON(response.FromError(err))
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, resource))
}

// DeleteResource removes a resource and all of its permissions
func (h *PermissionHandler) DeleteResource(c *gin.Context) {
	if err := h.permissionService.DeleteResource(c.Request.Context(), actorID(c), c.Param("id")); err != nil {
		c.JSON(response.FromError(err))
		return
	}
	middleware.ClearPermissionCache("")
	c.JSON(http.StatusOK, response.Success(http.StatusOK, gin.H{"message": "Resource deleted successfully"}))
}

// ListPermissions returns all permissions with their computed codes
func (h *PermissionHandler) ListPermissions(c *gin.Context) {
	perms, err := h.permissionService.ListPermissions(c.Request.Context())
	if err != nil {
		c.JSON(response.FromError(err))
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, perms))
}

// RegisterPermission creates or refreshes the permission keyed by
// (resource, action)
// @Summary      Register permission
// @Description  Idempotently ensures a permission exists for a resource and action; a changed description is applied
// @Tags         permissions
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        payload  body      service.RegisterPermissionRequest  true  "Permission payload"
// @Success      200      {object}  response.Response{data=service.PermissionResponse}
// @Failure      400      {object}  response.Response
// @Failure      404      {object}  response.Response
// @Router       /permissions [post]
func (h *PermissionHandler) RegisterPermission(c *gin.Context) {
	var req service.RegisterPermissionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, response.Error(http.StatusBadRequest, "Invalid request payload: "+err.Error()))
		return
	}

	perm, err := h.permissionService.Register(c.Request.Context(), req)
	if err != nil {
		c.JSON(response.FromError(err))
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, perm))
}

// DeletePermission removes a permission and every grant of it
func (h *PermissionHandler) DeletePermission(c *gin.Context) {
	if err := h.permissionService.DeletePermission(c.Request.Context(), actorID(c), c.Param("id")); err != nil {
		c.JSON(response.FromError(err))
		return
	}
	middleware.ClearPermissionCache("")
	c.JSON(http.StatusOK, response.Success(http.StatusOK, gin.H{"message": "Permission deleted successfully"}))
}
