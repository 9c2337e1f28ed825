// Package catalog holds the provider-owned sellable entities a booking can
// reference, as read-only snapshots.
package catalog

import (
	"strings"
	"time"
)

// Offering is a priced, timed service sold by a provider.
type Offering struct {
	ID                    string
	ProviderID            string
	Name                  string
	Price                 float64
	Currency              string
	IsActive              bool
	DurationMinutes       int
	BufferMinutes         int
	ProcessingMinutes     int
	FinishingMinutes      int
	SupportsAtHome        bool
	AtHomePriceAdjustment float64
	// RequiredResourceIDs is ordered by priority; the first entry is the one
	// reserved when the booking does not name resources explicitly.
	RequiredResourceIDs []string
}

// ChainMinutes is the time the offering blocks a staff member, padding included.
func (o Offering) ChainMinutes() int {
	return o.DurationMinutes + o.BufferMinutes + o.ProcessingMinutes + o.FinishingMinutes
}

// AddOn is an extra attached to a booking.
type AddOn struct {
	ID          string
	ProviderID  string
	Name        string
	Price       float64
	Currency    string
	IsActive    bool
	LocationIDs []string
}

// AvailableAt reports whether the add-on can be sold at the salon location.
func (a AddOn) AvailableAt(locationID string) bool {
	return availableAt(a.LocationIDs, locationID)
}

// Product is a retail item sold alongside a booking.
type Product struct {
	ID            string
	ProviderID    string
	Name          string
	Price         float64
	Currency      string
	IsActive      bool
	TrackStock    bool
	StockQuantity int
}

// Package bundles offerings at either a fixed price or a percentage discount.
type Package struct {
	ID                 string
	ProviderID         string
	Name               string
	Price              *float64
	DiscountPercentage *float64
	Currency           string
	IsActive           bool
	LocationIDs        []string
}

// AvailableAt reports whether the package can be sold at the salon location.
func (p Package) AvailableAt(locationID string) bool {
	return availableAt(p.LocationIDs, locationID)
}

// DiscountType distinguishes percentage from flat promotions.
type DiscountType string

const (
	DiscountPercentage DiscountType = "percentage"
	DiscountFixed      DiscountType = "fixed"
)

// Promotion is a code-activated discount.
type Promotion struct {
	ID                string
	ProviderID        string
	Code              string
	DiscountType      DiscountType
	DiscountValue     float64
	MinPurchaseAmount float64
	MaxDiscountAmount *float64
	UsageLimit        *int
	UsageCount        int
	ValidFrom         *time.Time
	ValidUntil        *time.Time
	IsActive          bool
	// LocationID restricts the promotion to one salon location when set.
	LocationID *string
}

// MembershipStatusActive is the only membership status that grants a discount.
const MembershipStatusActive = "active"

// Membership is a customer's recurring plan with a provider.
type Membership struct {
	ID              string
	CustomerID      string
	ProviderID      string
	PlanID          string
	DiscountPercent float64
	Status          string
	ExpiresAt       *time.Time
}

// ActiveAt reports whether the membership grants its discount at now.
func (m Membership) ActiveAt(now time.Time) bool {
	if !strings.EqualFold(strings.TrimSpace(m.Status), MembershipStatusActive) {
		return false
	}
	return m.ExpiresAt == nil || now.Before(*m.ExpiresAt)
}

// LoyaltyRule converts spend into points for a currency.
type LoyaltyRule struct {
	ID                    string
	Currency              string
	PointsPerCurrencyUnit float64
	IsActive              bool
}

// StaffMember is a provider employee that can be assigned to service lines.
type StaffMember struct {
	ID         string
	ProviderID string
	Name       string
	IsActive   bool
}

// NormalizeCode upper-cases and trims a promotion code.
func NormalizeCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

func availableAt(locationIDs []string, locationID string) bool {
	if len(locationIDs) == 0 {
		return true
	}
	for _, id := range locationIDs {
		if id == locationID {
			return true
		}
	}
	return false
}
