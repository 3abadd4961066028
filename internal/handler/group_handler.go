package handler

import (
	"net/http"

	"backend/internal/middleware"
	"backend/internal/service"
	"backend/pkg/response"

	"github.com/gin-gonic/gin"
)

type GroupHandler struct {
	groupService service.GroupService
}

func NewGroupHandler(groupService service.GroupService) *GroupHandler {
	return &GroupHandler{groupService: groupService}
}

func (h *GroupHandler) RegisterRoutes(router *gin.RouterGroup) {
	groups := router.Group("/groups")
	{
		groups.GET("", middleware.RequirePermission("GROUPS_READ"), h.ListGroups)
		groups.GET("/:id", middleware.RequirePermission("GROUPS_READ"), h.GetGroup)
		groups.POST("", middleware.RequirePermission("GROUPS_CREATE"), h.CreateGroup)
		groups.PUT("/:id", middleware.RequirePermission("GROUPS_UPDATE"), h.UpdateGroup)
		groups.DELETE("/:id", middleware.RequirePermission("GROUPS_DELETE"), h.DeleteGroup)

		groups.GET("/:id/users", middleware.RequirePermission("GROUPS_READ"), h.ListGroupUsers)
		groups.POST("/:id/check", middleware.RequirePermission("GROUPS_READ"), h.CheckPermission)

		groups.GET("/:id/permissions", middleware.RequirePermission("PERMISSIONS_READ"), h.GetGroupPermissions)
		groups.POST("/:id/permissions/:permissionId", middleware.RequirePermission("PERMISSIONS_MANAGE"), h.AddPermission)
		groups.DELETE("/:id/permissions/:permissionId", middleware.RequirePermission("PERMISSIONS_MANAGE"), h.RemovePermission)
		groups.PUT("/:id/permissions", middleware.RequirePermission("PERMISSIONS_MANAGE"), h.ReplacePermissions)
	}
}

// ListGroups returns all groups with their permissions and member counts
func (h *GroupHandler) ListGroups(c *gin.Context) {
	groups, err := h.groupService.ListGroups(c.Request.Context())
	if err != nil {
		c.JSON(response.FromError(err))
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, groups))
}

// GetGroup returns a single group by ID
func (h *GroupHandler) GetGroup(c *gin.Context) {
	group, err := h.groupService.GetGroup(c.Request.Context(), c.Param("id"))
	if err != nil {
		c.JSON(response.FromError(err))
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, group))
}

// CreateGroup creates a new custom group
// @Summary      Create group
// @Description  Creates a group with an uppercase name and optional starting permission codes; unknown codes are skipped
// @Tags         groups
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        payload  body      service.CreateGroupRequest  true  "Group payload"
// @Success      201      {object}  response.Response{data=service.GroupResponse}
// @Failure      400      {object}  response.Response
// @Failure      409      {object}  response.Response
// @Router       /groups [post]
func (h *GroupHandler) CreateGroup(c *gin.Context) {
	var req service.CreateGroupRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, response.Error(http.StatusBadRequest, "Invalid request payload: "+err.Error()))
		return
	}

	group, err := h.groupService.CreateGroup(c.Request.Context(), actorID(c), req)
	if err != nil {
		c.JSON(response.FromError(err))
		return
	}
	c.JSON(http.StatusCreated, response.Success(http.StatusCreated, group))
}

// UpdateGroup updates a group's name and metadata. Renaming the system group
// is rejected with 422.
func (h *GroupHandler) UpdateGroup(c *gin.Context) {
	var req service.UpdateGroupRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, response.Error(http.StatusBadRequest, "Invalid request payload: "+err.Error()))
		return
	}

	group, err := h.groupService.UpdateGroup(c.Request.Context(), actorID(c), c.Param("id"), req)
	if err != nil {
		c.JSON(response.FromError(err))
		return
	}
	middleware.ClearPermissionCache("")
	c.JSON(http.StatusOK, response.Success(http.StatusOK, group))
}

// DeleteGroup removes a non-system group
func (h *GroupHandler) DeleteGroup(c *gin.Context) {
	if err := h.groupService.DeleteGroup(c.Request.Context(), actorID(c), c.Param("id")); err != nil {
		c.JSON(response.FromError(err))
		return
	}
	middleware.ClearPermissionCache("")
	c.JSON(http.StatusOK, response.Success(http.StatusOK, gin.H{"message": "Group deleted successfully"}))
}

// ListGroupUsers returns the members of a group
func (h *GroupHandler) ListGroupUsers(c *gin.Context) {
	users, err := h.groupService.ListGroupUsers(c.Request.Context(), c.Param("id"))
	if err != nil {
		c.JSON(response.FromError(err))
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, users))
}

// CheckPermission reports whether a group grants a (resource, action) pair
// @Summary      Check group permission
// @Tags         groups
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        id       path      string  true  "Group ID"
// @Param        payload  body      service.CheckPermissionRequest  true  "Resource and action"
// @Success      200      {object}  response.Response
// @Router       /groups/{id}/check [post]
func (h *GroupHandler) CheckPermission(c *gin.Context) {
	var req service.CheckPermissionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, response.Error(http.StatusBadRequest, "Invalid request payload: "+err.Error()))
		return
	}

	allowed, err := h.groupService.CheckPermission(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		c.JSON(response.FromError(err))
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, gin.H{"allowed": allowed}))
}

// GetGroupPermissions returns a group's stored permission set
func (h *GroupHandler) GetGroupPermissions(c *gin.Context) {
	perms, err := h.groupService.GetGroupPermissions(c.Request.Context(), c.Param("id"))
	if err != nil {
		c.JSON(response.FromError(err))
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, perms))
}

// AddPermission attaches a permission to a group
func (h *GroupHandler) AddPermission(c *gin.Context) {
	perm, err := h.groupService.AddPermission(c.Request.Context(), actorID(c), c.Param("id"), c.Param("permissionId"))
	if err != nil {
		c.JSON(response.FromError(err))
		return
	}
	middleware.ClearPermissionCache("")
	c.JSON(http.StatusCreated, response.Success(http.StatusCreated, perm))
}

// RemovePermission detaches a permission from a group; a no-op on the system
// group
func (h *GroupHandler) RemovePermission(c *gin.Context) {
	if err := h.groupService.RemovePermission(c.Request.Context(), actorID(c), c.Param("id"), c.Param("permissionId")); err != nil {
		c.JSON(response.FromError(err))
		return
	}
	middleware.ClearPermissionCache("")
	c.JSON(http.StatusOK, response.Success(http.StatusOK, gin.H{"message": "Permission removed successfully"}))
}

// ReplacePermissions swaps a group's permission set; only additions apply to
// the system group
func (h *GroupHandler) ReplacePermissions(c *gin.Context) {
	var req service.UpdateGroupPermissionsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, response.Error(http.StatusBadRequest, "Invalid request payload: "+err.Error()))
		return
	}

	group, err := h.groupService.ReplacePermissions(c.Request.Context(), actorID(c), c.Param("id"), req)
	if err != nil {
		c.JSON(response.FromError(err))
		return
	}
	middleware.ClearPermissionCache("")
	c.JSON(http.StatusOK, response.Success(http.StatusOK, group))
}
