package catalog

import (
	"context"
	"errors"
)

// ErrNotFound is returned when a single-row lookup has no match.
var ErrNotFound = errors.New("catalog: not found")

// Store reads catalog rows. Lookups by id never filter on provider or active
// status so callers can tell "missing" apart from "not yours" and "inactive".
type Store interface {
	OfferingsByID(ctx context.Context, ids []string) ([]Offering, error)
	AddOnsByID(ctx context.Context, ids []string) ([]AddOn, error)
	ProductsByID(ctx context.Context, ids []string) ([]Product, error)
	PackageByID(ctx context.Context, id string) (Package, error)
	PromotionByCode(ctx context.Context, providerID, code string) (Promotion, error)
	MembershipFor(ctx context.Context, customerID, providerID string) (Membership, error)
	LoyaltyRuleFor(ctx context.Context, providerID, currency string) (LoyaltyRule, error)
	ActiveStaff(ctx context.Context, providerID string) ([]StaffMember, error)
}
