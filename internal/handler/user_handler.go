package handler

import (
	"net/http"

	"backend/internal/middleware"
	"backend/internal/service"
	"backend/pkg/pagination"
	"backend/pkg/response"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

type UserHandler struct {
	userService service.UserService
}

// NewUserHandler sets up the routing dependencies for User endpoints
func NewUserHandler(userService service.UserService) *UserHandler {
	return &UserHandler{userService: userService}
}

// RegisterRoutes binds the endpoints to the gin Engine or RouterGroup
func (h *UserHandler) RegisterRoutes(router *gin.RouterGroup) {
	// Public routes
	router.POST("/login", h.Login)
	router.POST("/logout", h.Logout)
	router.GET("/username/available", h.UsernameAvailable)

	// Me route (authenticated — any valid token)
	router.GET("/me", middleware.RequireAuth(), h.GetMe)

	users := router.Group("/users")
	{
		users.GET("", middleware.RequirePermission("USERS_READ"), h.ListUsers)
		users.GET("/:id", middleware.RequirePermission("USERS_READ"), h.GetUserByID)
		users.POST("", middleware.RequirePermission("USERS_CREATE"), h.CreateUser)
		users.PUT("/:id", middleware.RequirePermission("USERS_UPDATE"), h.UpdateUser)
		users.DELETE("/:id", middleware.RequirePermission("USERS_DELETE"), h.DeleteUser)

		users.GET("/:id/access", middleware.RequirePermission("USERS_READ"), h.GetUserAccess)

		users.GET("/:id/permissions", middleware.RequirePermission("PERMISSIONS_READ"), h.GetUserPermissions)
		users.POST("/:id/permissions/:permissionId", middleware.RequirePermission("PERMISSIONS_MANAGE"), h.GrantPermission)
		users.DELETE("/:id/permissions/:permissionId", middleware.RequirePermission("PERMISSIONS_MANAGE"), h.RevokePermission)
		users.PUT("/:id/permissions", middleware.RequirePermission("PERMISSIONS_MANAGE"), h.ReplacePermissions)

		users.PUT("/:id/group", middleware.RequirePermission("USERS_UPDATE"), h.AssignGroup)
		users.DELETE("/:id/group", middleware.RequirePermission("USERS_UPDATE"), h.ClearGroup)
	}
}

// Login authenticates a user and issues a JWT
// @Summary      Login
// @Description  Verifies credentials and returns a signed token plus the user profile
// @Tags         auth
// @Accept       json
// @Produce      json
// @Param        payload  body      service.LoginRequest  true  "Credentials"
// @Success      200      {object}  response.Response{data=service.LoginResponse}
// @Failure      400      {object}  response.Response
// @Router       /login [post]
func (h *UserHandler) Login(c *gin.Context) {
	var req service.LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, response.Error(http.StatusBadRequest, "Invalid request payload: "+err.Error()))
		return
	}

	res, err := h.userService.Login(c.Request.Context(), req)
	if err != nil {
		c.JSON(response.FromError(err))
		return
	}

	middleware.SetTokenCookie(c, res.Token)
	c.JSON(http.StatusOK, response.Success(http.StatusOK, res))
}

// Logout clears the auth cookie
func (h *UserHandler) Logout(c *gin.Context) {
	middleware.ClearTokenCookie(c)
	c.JSON(http.StatusOK, response.Success(http.StatusOK, gin.H{"message": "Logged out successfully"}))
}

// GetMe returns the authenticated user's profile and resolved access
func (h *UserHandler) GetMe(c *gin.Context) {
	userID, _ := c.Get("userID")
	id, ok := userID.(string)
	if !ok || id == "" {
		c.JSON(http.StatusUnauthorized, response.Error(http.StatusUnauthorized, "Missing identity"))
		return
	}

	user, err := h.userService.GetUser(c.Request.Context(), id)
	if err != nil {
		c.JSON(response.FromError(err))
		return
	}
	access, err := h.userService.GetUserAccess(c.Request.Context(), id)
	if err != nil {
		c.JSON(response.FromError(err))
		return
	}

	c.JSON(http.StatusOK, response.Success(http.StatusOK, gin.H{
		"user":   user,
		"access": access,
	}))
}

// UsernameAvailable reports whether a username can still be registered
// @Summary      Check username availability
// @Tags         users
// @Produce      json
// @Param        username  query     string  true  "Username to check"
// @Success      200       {object}  response.Response
// @Router       /username/available [get]
func (h *UserHandler) UsernameAvailable(c *gin.Context) {
	available, err := h.userService.UsernameAvailable(c.Request.Context(), c.Query("username"))
	if err != nil {
		c.JSON(response.FromError(err))
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, gin.H{"available": available}))
}

// ListUsers returns a page of users
// @Summary      List users
// @Tags         users
// @Produce      json
// @Security     BearerAuth
// @Param        page   query     int  false  "Page number"
// @Param        limit  query     int  false  "Page size"
// @Success      200    {object}  response.Response{data=pagination.Paged}
// @Router       /users [get]
func (h *UserHandler) ListUsers(c *gin.Context) {
	p := pagination.Parse(c)
	users, total, err := h.userService.ListUsers(c.Request.Context(), p.Page, p.Limit)
	if err != nil {
		c.JSON(response.FromError(err))
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, pagination.NewPaged(users, p, total)))
}

// GetUserByID returns a single user
func (h *UserHandler) GetUserByID(c *gin.Context) {
	user, err := h.userService.GetUser(c.Request.Context(), c.Param("id"))
	if err != nil {
		c.JSON(response.FromError(err))
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, user))
}

// CreateUser creates a new user account
// @Summary      Create a new user
// @Description  Creates a user, hashing the password and optionally attaching a group
// @Tags         users
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        payload  body      service.CreateUserRequest  true  "User payload"
// @Success      201      {object}  response.Response{data=service.UserResponse}
// @Failure      400      {object}  response.Response
// @Failure      409      {object}  response.Response
// @Router       /users [post]
func (h *UserHandler) CreateUser(c *gin.Context) {
	var req service.CreateUserRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, response.Error(http.StatusBadRequest, "Invalid request payload: "+err.Error()))
		return
	}

	user, err := h.userService.CreateUser(c.Request.Context(), actorID(c), req)
	if err != nil {
		c.JSON(response.FromError(err))
		return
	}
	c.JSON(http.StatusCreated, response.Success(http.StatusCreated, user))
}

// UpdateUser updates profile fields and optionally the password
func (h *UserHandler) UpdateUser(c *gin.Context) {
	var req service.UpdateUserRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, response.Error(http.StatusBadRequest, "Invalid request payload: "+err.Error()))
		return
	}

	user, err := h.userService.UpdateUser(c.Request.Context(), actorID(c), c.Param("id"), req)
	if err != nil {
		c.JSON(response.FromError(err))
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, user))
}

// DeleteUser removes a user account
func (h *UserHandler) DeleteUser(c *gin.Context) {
	id := c.Param("id")
	if err := h.userService.DeleteUser(c.Request.Context(), actorID(c), id); err != nil {
		c.JSON(response.FromError(err))
		return
	}
	middleware.ClearPermissionCache(id)
	c.JSON(http.StatusOK, response.Success(http.StatusOK, gin.H{"message": "User deleted successfully"}))
}

// GetUserAccess returns the user's effective permission codes and roles
// @Summary      Resolve user access
// @Description  Returns the user's effective permission codes and derived roles, combining direct grants with group inheritance
// @Tags         users
// @Produce      json
// @Security     BearerAuth
// @Param        id   path      string  true  "User ID"
// @Success      200  {object}  response.Response{data=service.UserAccessResponse}
// @Router       /users/{id}/access [get]
func (h *UserHandler) GetUserAccess(c *gin.Context) {
	access, err := h.userService.GetUserAccess(c.Request.Context(), c.Param("id"))
	if err != nil {
		c.JSON(response.FromError(err))
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, access))
}

// GetUserPermissions returns a user's direct permission grants
func (h *UserHandler) GetUserPermissions(c *gin.Context) {
	perms, err := h.userService.GetUserPermissions(c.Request.Context(), c.Param("id"))
	if err != nil {
		c.JSON(response.FromError(err))
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, perms))
}

// GrantPermission attaches a direct permission to a user
func (h *UserHandler) GrantPermission(c *gin.Context) {
	id := c.Param("id")
	perm, err := h.userService.GrantPermission(c.Request.Context(), actorID(c), id, c.Param("permissionId"))
	if err != nil {
		c.JSON(response.FromError(err))
		return
	}
	middleware.ClearPermissionCache(id)
	c.JSON(http.StatusCreated, response.Success(http.StatusCreated, perm))
}

// RevokePermission removes a direct permission from a user
func (h *UserHandler) RevokePermission(c *gin.Context) {
	id := c.Param("id")
	if err := h.userService.RevokePermission(c.Request.Context(), actorID(c), id, c.Param("permissionId")); err != nil {
		c.JSON(response.FromError(err))
		return
	}
	middleware.ClearPermissionCache(id)
	c.JSON(http.StatusOK, response.Success(http.StatusOK, gin.H{"message": "Permission revoked successfully"}))
}

// ReplacePermissions swaps a user's direct permission set wholesale
func (h *UserHandler) ReplacePermissions(c *gin.Context) {
	var req service.UpdateUserPermissionsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, response.Error(http.StatusBadRequest, "Invalid request payload: "+err.Error()))
		return
	}

	id := c.Param("id")
	user, err := h.userService.ReplacePermissions(c.Request.Context(), actorID(c), id, req)
	if err != nil {
		c.JSON(response.FromError(err))
		return
	}
	middleware.ClearPermissionCache(id)
	c.JSON(http.StatusOK, response.Success(http.StatusOK, user))
}

// AssignGroup moves the user into a group; inherited access applies on the
// next resolution
func (h *UserHandler) AssignGroup(c *gin.Context) {
	var req service.AssignGroupRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, response.Error(http.StatusBadRequest, "Invalid request payload: "+err.Error()))
		return
	}

	id := c.Param("id")
	user, err := h.userService.AssignGroup(c.Request.Context(), actorID(c), id, req)
	if err != nil {
		c.JSON(response.FromError(err))
		return
	}
	middleware.ClearPermissionCache(id)
	c.JSON(http.StatusOK, response.Success(http.StatusOK, user))
}

// ClearGroup detaches the user from their group
func (h *UserHandler) ClearGroup(c *gin.Context) {
	id := c.Param("id")
	user, err := h.userService.ClearGroup(c.Request.Context(), actorID(c), id)
	if err != nil {
		c.JSON(response.FromError(err))
		return
	}
	middleware.ClearPermissionCache(id)
	c.JSON(http.StatusOK, response.Success(http.StatusOK, user))
}

// actorID extracts the authenticated caller's user id from the request
// context, nil when absent or malformed
func actorID(c *gin.Context) *uuid.UUID {
	raw, ok := c.Get("userID")
	if !ok {
		return nil
	}
	s, ok := raw.(string)
	if !ok {
		return nil
	}
	id, err := uuid.Parse(s)
	if err != nil {
		return nil
	}
	return &id
}
