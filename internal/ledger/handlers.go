package ledger

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// Handler provides HTTP endpoints for the escrow event timeline and the
// aggregate health counters consumed by operator dashboards.
type Handler struct {
	ledger *Ledger
}

// NewHandler creates a new ledger handler.
func NewHandler(ledger *Ledger) *Handler {
	return &Handler{ledger: ledger}
}

// RegisterRoutes sets up read-only ledger routes.
func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	r.GET("/bookings/:id/escrow-events", h.Timeline)
	r.GET("/escrow/health-counters", h.HealthCounters)
}

// Timeline handles GET /v1/bookings/:id/escrow-events
func (h *Handler) Timeline(c *gin.Context) {
	bookingID := c.Param("id")

	events, err := h.ledger.EventsFor(c.Request.Context(), bookingID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   "ledger_unavailable",
			"message": "Failed to load escrow events",
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"bookingId": bookingID,
		"events":    events,
		"buckets":   Partition(events),
	})
}

// HealthCounters handles GET /v1/escrow/health-counters
func (h *Handler) HealthCounters(c *gin.Context) {
	counters, err := h.ledger.Counters(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   "ledger_unavailable",
			"message": "Failed to load counters",
		})
		return
	}
	c.JSON(http.StatusOK, counters)
}
