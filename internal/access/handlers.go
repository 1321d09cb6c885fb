package access

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/stayzen/stayzen/internal/booking"
	"github.com/stayzen/stayzen/internal/payment"
)

// GuestHeader carries the authenticated guest identity, injected by the
// edge gateway after session validation.
const GuestHeader = "X-Guest-ID"

// PropertyDirectory resolves the property details shown on a booking view.
type PropertyDirectory interface {
	Details(ctx context.Context, propertyID string) (*PropertyDetails, error)
}

// Handler serves the access-gated booking view.
type Handler struct {
	bookings   booking.Store
	payments   payment.Store
	properties PropertyDirectory
}

func NewHandler(bookings booking.Store, payments payment.Store, properties PropertyDirectory) *Handler {
	return &Handler{bookings: bookings, payments: payments, properties: properties}
}

// RegisterRoutes sets up the booking view route.
func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	r.GET("/bookings/:id", h.BookingView)
}

// BookingView handles GET /v1/bookings/:id
func (h *Handler) BookingView(c *gin.Context) {
	ctx := c.Request.Context()
	bookingID := c.Param("id")

	b, err := h.bookings.Get(ctx, bookingID)
	if err != nil {
		if errors.Is(err, booking.ErrBookingNotFound) {
			c.JSON(http.StatusNotFound, gin.H{
				"error":   "booking_not_found",
				"message": "Booking not found",
			})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   "booking_unavailable",
			"message": "Failed to load booking",
		})
		return
	}

	view := BookingView{
		BookingID:     b.ID,
		PaymentStatus: b.PaymentStatus,
	}
	if h.properties != nil && b.PropertyID != "" {
		if details, err := h.properties.Details(ctx, b.PropertyID); err == nil {
			view.Property = details
		}
	}

	// The live payment record may be ahead of the cached booking status.
	live := b.PaymentStatus
	if p, err := h.payments.GetByBooking(ctx, bookingID); err == nil {
		live = p.Status
	}

	isGuestOwner := c.GetHeader(GuestHeader) == b.GuestID
	c.JSON(http.StatusOK, Redact(view, live, isGuestOwner))
}

// MemoryDirectory is an in-memory PropertyDirectory for tests and local
// development.
type MemoryDirectory struct {
	details map[string]*PropertyDetails
}

func NewMemoryDirectory() *MemoryDirectory {
	return &MemoryDirectory{details: map[string]*PropertyDetails{}}
}

func (m *MemoryDirectory) Put(propertyID string, d *PropertyDetails) {
	m.details[propertyID] = d
}

func (m *MemoryDirectory) Details(ctx context.Context, propertyID string) (*PropertyDetails, error) {
	d, ok := m.details[propertyID]
	if !ok {
		return nil, errors.New("property not found")
	}
	return cloneProperty(d), nil
}
