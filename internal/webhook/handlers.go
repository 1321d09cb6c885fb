package webhook

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
)

// SignatureHeader carries the provider's HMAC signature over the raw body.
const SignatureHeader = "X-Webhook-Signature"

// Handler exposes the provider callback ingress and the per-booking delivery
// audit trail.
type Handler struct {
	reconciler *Reconciler
}

func NewHandler(reconciler *Reconciler) *Handler {
	return &Handler{reconciler: reconciler}
}

// RegisterRoutes sets up the callback ingress.
func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	r.POST("/webhooks/provider", h.Receive)
	r.GET("/bookings/:id/webhook-deliveries", h.Deliveries)
}

// Receive handles POST /v1/webhooks/provider
func (h *Handler) Receive(c *gin.Context) {
	raw, err := c.GetRawData()
	if err != nil || len(raw) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "empty_body",
			"message": "Request body required",
		})
		return
	}

	d, err := h.reconciler.HandleCallback(c.Request.Context(), raw, c.GetHeader(SignatureHeader))
	switch {
	case err != nil && d != nil && d.Outcome == OutcomeRejected:
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "rejected",
			"message": "Callback rejected",
		})
	case errors.Is(err, ErrBookingBusy):
		// Tell the provider to redeliver once the release sweep finishes.
		c.Header("Retry-After", "5")
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"error":   "booking_busy",
			"message": "Booking is being processed, redeliver later",
		})
	case err != nil:
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   "reconciliation_failed",
			"message": "Failed to process callback",
		})
	default:
		c.JSON(http.StatusOK, gin.H{
			"deliveryId": d.ID,
			"outcome":    d.Outcome,
		})
	}
}

// Deliveries handles GET /v1/bookings/:id/webhook-deliveries
// Supports cursor pagination via ?limit= and ?cursor=.
func (h *Handler) Deliveries(c *gin.Context) {
	bookingID := c.Param("id")

	limit := 20
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			c.JSON(http.StatusBadRequest, gin.H{
				"error":   "invalid_limit",
				"message": "limit must be a positive integer",
			})
			return
		}
		if n > 100 {
			n = 100
		}
		limit = n
	}

	deliveries, next, err := h.reconciler.Deliveries(c.Request.Context(), bookingID, c.Query("cursor"), limit)
	switch {
	case errors.Is(err, ErrBadCursor):
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "invalid_cursor",
			"message": "cursor is malformed",
		})
		return
	case err != nil:
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   "deliveries_unavailable",
			"message": "Failed to load webhook deliveries",
		})
		return
	}

	resp := gin.H{
		"bookingId":  bookingID,
		"deliveries": deliveries,
	}
	if next != "" {
		resp["nextCursor"] = next
	}
	c.JSON(http.StatusOK, resp)
}
