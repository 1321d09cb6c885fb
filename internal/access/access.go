// Package access gates what a guest can see on their booking before and
// after payment confirmation. Sensitive property details (the address, door
// codes, wifi) stay hidden until the guest's money is actually in escrow.
package access

import (
	"github.com/stayzen/stayzen/internal/payment"
)

// RealtorContact is the realtor's contact surface inside a booking view.
type RealtorContact struct {
	Name          string `json:"name,omitempty"`
	BusinessEmail string `json:"businessEmail,omitempty"`
	AccountEmail  string `json:"accountEmail,omitempty"`
}

// PropertyDetails is the property surface inside a booking view. The
// sensitive fields are the ones a guest could use to show up at the door.
type PropertyDetails struct {
	Title               string          `json:"title,omitempty"`
	Address             string          `json:"address,omitempty"`
	AccessInstructions  string          `json:"accessInstructions,omitempty"`
	WifiName            string          `json:"wifiName,omitempty"`
	WifiPassword        string          `json:"wifiPassword,omitempty"`
	ParkingInstructions string          `json:"parkingInstructions,omitempty"`
	Realtor             *RealtorContact `json:"realtor,omitempty"`
}

// BookingView is what the booking detail endpoint returns.
type BookingView struct {
	BookingID     string           `json:"bookingId"`
	PaymentStatus payment.Status   `json:"paymentStatus"`
	Property      *PropertyDetails `json:"property,omitempty"`

	// SensitiveDetailsUnlocked tells the client whether the sensitive
	// property fields are populated.
	SensitiveDetailsUnlocked bool `json:"sensitiveDetailsUnlocked"`
	// VerificationCode is quoted by the guest at check-in.
	VerificationCode string `json:"verificationCode,omitempty"`
	// HasVerifiedArtifact reports whether the guest holds a usable
	// check-in artifact (code plus unlocked details).
	HasVerifiedArtifact bool `json:"hasVerifiedArtifact"`
}

// VerificationCode derives the check-in code for a booking.
func VerificationCode(bookingID string) string {
	return "STZ-" + bookingID
}

// Redact returns the view as the requesting user may see it. Pure: the input
// is never mutated. Non-guests (realtor, admin) see everything. The guest
// sees sensitive details only once payment is confirmed on either the cached
// booking status or the live payment record.
func Redact(view BookingView, livePaymentStatus payment.Status, isGuestOwner bool) BookingView {
	out := view
	out.Property = cloneProperty(view.Property)

	if !isGuestOwner {
		return out
	}

	out.VerificationCode = VerificationCode(view.BookingID)

	if payment.Confirmed(view.PaymentStatus, livePaymentStatus) {
		out.SensitiveDetailsUnlocked = true
		out.HasVerifiedArtifact = true
		return out
	}

	out.SensitiveDetailsUnlocked = false
	out.HasVerifiedArtifact = false
	if out.Property != nil {
		out.Property.Address = ""
		out.Property.AccessInstructions = ""
		out.Property.WifiName = ""
		out.Property.WifiPassword = ""
		out.Property.ParkingInstructions = ""
		if out.Property.Realtor != nil {
			out.Property.Realtor.BusinessEmail = ""
			out.Property.Realtor.AccountEmail = ""
		}
	}
	return out
}

func cloneProperty(p *PropertyDetails) *PropertyDetails {
	if p == nil {
		return nil
	}
	cp := *p
	if p.Realtor != nil {
		r := *p.Realtor
		cp.Realtor = &r
	}
	return &cp
}
