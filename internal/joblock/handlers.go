package joblock

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
)

// Handler provides admin HTTP endpoints for lock visibility and the
// force-release escape hatch. Routes must be registered behind the admin
// auth middleware.
type Handler struct {
	manager *Manager
}

// NewHandler creates a new joblock handler.
func NewHandler(manager *Manager) *Handler {
	return &Handler{manager: manager}
}

// RegisterAdminRoutes sets up admin-gated lock routes.
func (h *Handler) RegisterAdminRoutes(r *gin.RouterGroup) {
	r.GET("/locks", h.ListLocks)
	r.POST("/locks/:key/force-release", h.ForceRelease)
}

// ListLocks handles GET /v1/admin/locks
func (h *Handler) ListLocks(c *gin.Context) {
	locks, err := h.manager.List(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   "locks_unavailable",
			"message": "Failed to list job locks",
		})
		return
	}
	c.JSON(http.StatusOK, gin.H{"locks": locks, "count": len(locks)})
}

// ForceRelease handles POST /v1/admin/locks/:key/force-release
//
// Intended only after a lock's TTL window suggests its holder crashed
// mid-processing and left it behind.
func (h *Handler) ForceRelease(c *gin.Context) {
	key := c.Param("key")

	err := h.manager.ForceRelease(c.Request.Context(), key)
	if errors.Is(err, ErrLockNotFound) {
		c.JSON(http.StatusNotFound, gin.H{
			"error":   "lock_not_found",
			"message": "No lock held for this key",
		})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   "force_release_failed",
			"message": "Failed to force-release lock",
		})
		return
	}
	c.JSON(http.StatusOK, gin.H{"released": key})
}
