package handler

import (
	"net/http"

	"backend/internal/middleware"
	"backend/internal/service"
	"backend/pkg/response"

	"github.com/gin-gonic/gin"
)

type StatsHandler struct {
	statsService service.StatsService
}

func NewStatsHandler(statsService service.StatsService) *StatsHandler {
	return &StatsHandler{statsService: statsService}
}

func (h *StatsHandler) RegisterRoutes(router *gin.RouterGroup) {
	groupStats := router.Group("/groups-stats")
	groupStats.Use(middleware.RequirePermission("GROUPS_READ"))
	{
		groupStats.GET("/stats", h.GroupStats)
		groupStats.GET("/matrix", h.GroupMatrix)
		groupStats.GET("/users-by-group", h.UsersByGroup)
	}

	permStats := router.Group("/permissions-stats")
	permStats.Use(middleware.RequirePermission("PERMISSIONS_READ"))
	{
		permStats.GET("/stats", h.PermissionStats)
		permStats.GET("/matrix", h.UserMatrix)
	}
}

// GroupStats returns group usage counters
func (h *StatsHandler) GroupStats(c *gin.Context) {
	stats, err := h.statsService.GroupStats(c.Request.Context())
	if err != nil {
		c.JSON(response.FromError(err))
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, stats))
}

// GroupMatrix returns the group-by-permission matrix
func (h *StatsHandler) GroupMatrix(c *gin.Context) {
	matrix, err := h.statsService.GroupMatrix(c.Request.Context())
	if err != nil {
		c.JSON(response.FromError(err))
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, matrix))
}

// UsersByGroup returns every group with its member list
func (h *StatsHandler) UsersByGroup(c *gin.Context) {
	entries, err := h.statsService.UsersByGroup(c.Request.Context())
	if err != nil {
		c.JSON(response.FromError(err))
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, entries))
}

// PermissionStats returns permission usage counters
func (h *StatsHandler) PermissionStats(c *gin.Context) {
	stats, err := h.statsService.PermissionStats(c.Request.Context())
	if err != nil {
		c.JSON(response.FromError(err))
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, stats))
}

// UserMatrix returns the user-by-permission matrix using resolved access
func (h *StatsHandler) UserMatrix(c *gin.Context) {
	matrix, err := h.statsService.UserMatrix(c.Request.Context())
	if err != nil {
		c.JSON(response.FromError(err))
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, matrix))
}
