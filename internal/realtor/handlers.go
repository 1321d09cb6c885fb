package realtor

import (
	"net/http"
	"regexp"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/stayzen/stayzen/internal/idgen"
	"github.com/stayzen/stayzen/internal/validation"
)

var validSlug = regexp.MustCompile(`^[a-z0-9][a-z0-9-]{1,62}[a-z0-9]$`)

// Handler provides HTTP endpoints for realtor management. All routes are
// operator-only and registered under the admin group.
type Handler struct {
	store Store
}

// NewHandler creates a new realtor handler.
func NewHandler(store Store) *Handler {
	return &Handler{store: store}
}

// RegisterAdminRoutes sets up realtor management routes.
func (h *Handler) RegisterAdminRoutes(r *gin.RouterGroup) {
	r.POST("/realtors", h.CreateRealtor)
	r.GET("/realtors/:id", h.GetRealtor)
	r.PATCH("/realtors/:id", h.UpdateRealtor)
}

// CreateRealtor handles POST /v1/admin/realtors
func (h *Handler) CreateRealtor(c *gin.Context) {
	var req struct {
		Name      string `json:"name" binding:"required"`
		Slug      string `json:"slug" binding:"required"`
		Plan      Plan   `json:"plan"`
		AccountID string `json:"accountId"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request", "message": "name and slug required"})
		return
	}

	req.Slug = strings.ToLower(strings.TrimSpace(req.Slug))
	if !validSlug.MatchString(req.Slug) {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "invalid_slug",
			"message": "slug must be 3-64 lowercase alphanumeric/hyphens, start/end with alphanumeric",
		})
		return
	}

	if req.Plan == "" {
		req.Plan = PlanStandard
	}
	if !ValidPlan(req.Plan) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_plan", "message": "unknown plan"})
		return
	}

	now := time.Now()
	r := &Realtor{
		ID:        idgen.WithPrefix("rl_"),
		Name:      validation.SanitizeString(req.Name, 200),
		Slug:      req.Slug,
		Plan:      req.Plan,
		AccountID: strings.TrimSpace(req.AccountID),
		Status:    StatusActive,
		Settings:  DefaultSettingsForPlan(req.Plan),
		CreatedAt: now,
		UpdatedAt: now,
	}

	if err := h.store.Create(c.Request.Context(), r); err != nil {
		if err == ErrSlugTaken {
			c.JSON(http.StatusConflict, gin.H{"error": "slug_taken", "message": "slug already in use"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal_error", "message": "failed to create realtor"})
		return
	}

	c.JSON(http.StatusCreated, gin.H{"realtor": r})
}

// GetRealtor handles GET /v1/admin/realtors/:id
func (h *Handler) GetRealtor(c *gin.Context) {
	r, err := h.store.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		if err == ErrRealtorNotFound {
			c.JSON(http.StatusNotFound, gin.H{"error": "not_found", "message": "realtor not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal_error", "message": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"realtor": r})
}

// UpdateRealtor handles PATCH /v1/admin/realtors/:id
func (h *Handler) UpdateRealtor(c *gin.Context) {
	r, err := h.store.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		if err == ErrRealtorNotFound {
			c.JSON(http.StatusNotFound, gin.H{"error": "not_found", "message": "realtor not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal_error", "message": err.Error()})
		return
	}

	var req struct {
		Name      *string `json:"name"`
		Plan      *Plan   `json:"plan"`
		Status    *Status `json:"status"`
		AccountID *string `json:"accountId"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request", "message": "invalid body"})
		return
	}

	if req.Name != nil {
		r.Name = validation.SanitizeString(*req.Name, 200)
	}
	if req.Plan != nil {
		if !ValidPlan(*req.Plan) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_plan", "message": "unknown plan"})
			return
		}
		r.Plan = *req.Plan
		// Plan changes reset terms to the tier defaults.
		r.Settings = DefaultSettingsForPlan(*req.Plan)
	}
	if req.Status != nil {
		switch *req.Status {
		case StatusActive, StatusSuspended, StatusOffboarded:
			r.Status = *req.Status
		default:
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_status", "message": "unknown status"})
			return
		}
	}
	if req.AccountID != nil {
		r.AccountID = strings.TrimSpace(*req.AccountID)
	}

	r.UpdatedAt = time.Now()
	if err := h.store.Update(c.Request.Context(), r); err != nil {
		if err == ErrSlugTaken {
			c.JSON(http.StatusConflict, gin.H{"error": "slug_taken", "message": "slug already in use"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal_error", "message": "failed to update realtor"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"realtor": r})
}
