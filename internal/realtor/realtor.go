// Package realtor manages the property-management organisations that list
// on StayZen and receive escrow payouts. Each realtor is on a plan that
// sets the platform's commission on room fees; the release engine reads
// those terms when it splits a booking's funds.
package realtor

import (
	"context"
	"errors"
	"time"
)

// Errors
var (
	ErrRealtorNotFound = errors.New("realtor: not found")
	ErrSlugTaken       = errors.New("realtor: slug already taken")
)

// Status represents a realtor's lifecycle state.
type Status string

const (
	StatusActive     Status = "active"
	StatusSuspended  Status = "suspended" // payouts held, listings stay visible
	StatusOffboarded Status = "offboarded"
)

// Plan identifies the commission tier.
type Plan string

const (
	PlanStandard Plan = "standard"
	PlanPlus     Plan = "plus"
	PlanPremium  Plan = "premium"
)

// Settings stores the payout terms applied to a realtor. They default from
// the plan but can be overridden per realtor by an operator.
type Settings struct {
	CommissionBps     int64  `json:"commissionBps"`
	MaxActiveListings int    `json:"maxActiveListings"` // 0 = unlimited
	PayoutDescriptor  string `json:"payoutDescriptor,omitempty"`
}

// Realtor represents an organisation receiving payouts through the platform.
type Realtor struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	Slug string `json:"slug"`
	Plan Plan   `json:"plan"`
	// AccountID is the payment provider's connected account id. Bookings
	// reference realtors by this id, so it is the payout lookup key.
	AccountID string    `json:"accountId"`
	Status    Status    `json:"status"`
	Settings  Settings  `json:"settings"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Store persists realtor data.
type Store interface {
	Create(ctx context.Context, r *Realtor) error
	Get(ctx context.Context, id string) (*Realtor, error)
	GetBySlug(ctx context.Context, slug string) (*Realtor, error)
	GetByAccount(ctx context.Context, accountID string) (*Realtor, error)
	Update(ctx context.Context, r *Realtor) error
}

// Directory answers payout-terms lookups for the release engine.
type Directory struct {
	store Store
}

// NewDirectory wraps a store for payout-terms lookups.
func NewDirectory(store Store) *Directory {
	return &Directory{store: store}
}

// PayoutTerms returns the commission charged on a realtor account's room
// fees and whether payouts to it are currently held. Unknown accounts
// return ErrRealtorNotFound; callers fall back to platform defaults.
func (d *Directory) PayoutTerms(ctx context.Context, accountID string) (bps int64, hold bool, err error) {
	r, err := d.store.GetByAccount(ctx, accountID)
	if err != nil {
		return 0, false, err
	}
	return r.Settings.CommissionBps, r.Status != StatusActive, nil
}
