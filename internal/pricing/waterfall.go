// Package pricing turns resolved catalog entries and a booking draft into an
// itemized price breakdown. Everything here is pure: no I/O, no clock reads
// beyond the time carried on the input.
package pricing

import (
	"fmt"
	"math"
	"time"

	"github.com/wolfman30/glowbook-platform/internal/catalog"
)

// FeeType is the shape of a service fee configuration.
type FeeType string

const (
	FeePercentage FeeType = "percentage"
	FeeFixed      FeeType = "fixed"
)

// FeeConfig describes a provider or platform service fee.
type FeeConfig struct {
	Type             FeeType `json:"type"`
	Value            float64 `json:"value"`
	MinBookingAmount float64 `json:"min_booking_amount"`
	// MaxFeeAmount caps percentage fees when set.
	MaxFeeAmount *float64 `json:"max_fee_amount,omitempty"`
}

// ProductLine is one product row of a draft with the price the customer saw.
type ProductLine struct {
	ProductID  string
	Quantity   int
	UnitPrice  float64
	TotalPrice *float64
}

// Input is everything the waterfall needs. Offerings holds one entry per
// service line, participants included, so repeated offerings are priced
// once per line.
type Input struct {
	AtHome     bool
	LocationID string
	Offerings  []catalog.Offering
	AddOns     []catalog.AddOn
	Products   []ProductLine
	TravelFee  float64

	Package    *catalog.Package
	Promotion  *catalog.Promotion
	Membership *catalog.Membership

	TipAmount      float64
	TippingEnabled bool

	// MinimumMobileAmount applies to at-home bookings when positive.
	MinimumMobileAmount float64

	ProviderTaxRate *float64
	DefaultTaxRate  float64
	ProviderFee     *FeeConfig
	PlatformFee     *FeeConfig

	LoyaltyRule *catalog.LoyaltyRule
	Now         time.Time
}

// Breakdown is the itemized result. It is returned by value and never mutated.
type Breakdown struct {
	ServicesSubtotal         float64 `json:"services_subtotal"`
	AddonsSubtotal           float64 `json:"addons_subtotal"`
	ProductsSubtotal         float64 `json:"products_subtotal"`
	TravelFee                float64 `json:"travel_fee"`
	PackageDiscountAmount    float64 `json:"package_discount_amount"`
	PromoDiscountAmount      float64 `json:"promo_discount_amount"`
	Subtotal                 float64 `json:"subtotal"`
	MembershipDiscountAmount float64 `json:"membership_discount_amount"`
	SubtotalAfterMembership  float64 `json:"subtotal_after_membership"`
	CommissionBase           float64 `json:"commission_base"`
	TipAmount                float64 `json:"tip_amount"`
	TaxRate                  float64 `json:"tax_rate"`
	TaxAmount                float64 `json:"tax_amount"`
	ServiceFeeAmount         float64 `json:"service_fee_amount"`
	ServiceFeePercentage     float64 `json:"service_fee_percentage"`
	TotalAmount              float64 `json:"total_amount"`
	LoyaltyPointsEarned      int64   `json:"loyalty_points_earned"`
}

// MinimumOrderError reports an at-home subtotal below the provider minimum.
type MinimumOrderError struct {
	Minimum  float64
	Subtotal float64
}

func (e *MinimumOrderError) Error() string {
	return fmt.Sprintf("minimum order for at-home bookings is %.2f, current subtotal is %.2f", e.Minimum, e.Subtotal)
}

// Calculate runs the waterfall. The step order is part of the contract:
// reordering any two steps changes totals.
func Calculate(in Input) (Breakdown, error) {
	var b Breakdown

	for _, o := range in.Offerings {
		b.ServicesSubtotal += o.Price
		if in.AtHome {
			b.ServicesSubtotal += o.AtHomePriceAdjustment
		}
	}
	for _, a := range in.AddOns {
		b.AddonsSubtotal += a.Price
	}
	for _, line := range in.Products {
		b.ProductsSubtotal += line.Total()
	}
	if in.AtHome {
		b.TravelFee = nonNegative(in.TravelFee)
	}

	b.PackageDiscountAmount = PackageDiscount(in.Package, b.ServicesSubtotal)

	prePromo := nonNegative(b.ServicesSubtotal-b.PackageDiscountAmount) +
		b.AddonsSubtotal + b.ProductsSubtotal + b.TravelFee

	b.PromoDiscountAmount = PromoDiscount(in.Promotion, prePromo, in.AtHome, in.LocationID, in.Now)
	b.Subtotal = nonNegative(prePromo - b.PromoDiscountAmount)

	if in.AtHome && in.MinimumMobileAmount > 0 && in.MinimumMobileAmount > b.Subtotal {
		return Breakdown{}, &MinimumOrderError{Minimum: in.MinimumMobileAmount, Subtotal: b.Subtotal}
	}

	commissionBase := nonNegative(b.ServicesSubtotal-b.PackageDiscountAmount) +
		b.AddonsSubtotal + b.ProductsSubtotal - b.PromoDiscountAmount

	if in.Membership != nil && in.Membership.ActiveAt(in.Now) && in.Membership.DiscountPercent > 0 {
		b.MembershipDiscountAmount = math.Min(b.Subtotal*in.Membership.DiscountPercent/100, b.Subtotal)
	}
	b.SubtotalAfterMembership = nonNegative(b.Subtotal - b.MembershipDiscountAmount)
	b.CommissionBase = nonNegative(commissionBase - b.MembershipDiscountAmount)

	if in.TippingEnabled {
		b.TipAmount = nonNegative(in.TipAmount)
	}

	b.TaxRate = in.DefaultTaxRate
	if in.ProviderTaxRate != nil {
		b.TaxRate = *in.ProviderTaxRate
	}
	if b.TaxRate > 0 {
		b.TaxAmount = round2(b.SubtotalAfterMembership * b.TaxRate / 100)
	} else {
		b.TaxRate = 0
	}

	b.ServiceFeeAmount, b.ServiceFeePercentage = ServiceFee(in.ProviderFee, in.PlatformFee, b.SubtotalAfterMembership)

	b.TotalAmount = b.SubtotalAfterMembership + b.TipAmount + b.TaxAmount + b.ServiceFeeAmount

	if r := in.LoyaltyRule; r != nil && r.IsActive && r.PointsPerCurrencyUnit > 0 {
		b.LoyaltyPointsEarned = int64(math.Floor(b.TotalAmount * r.PointsPerCurrencyUnit))
	}
	return b, nil
}

// Total is the line total, falling back to unit price times quantity.
func (l ProductLine) Total() float64 {
	if l.TotalPrice != nil {
		return nonNegative(*l.TotalPrice)
	}
	return nonNegative(l.UnitPrice * float64(l.Quantity))
}

// PackageDiscount never exceeds the services subtotal.
func PackageDiscount(pkg *catalog.Package, servicesSubtotal float64) float64 {
	if pkg == nil || servicesSubtotal <= 0 {
		return 0
	}
	var discount float64
	switch {
	case pkg.Price != nil:
		discount = servicesSubtotal - *pkg.Price
	case pkg.DiscountPercentage != nil:
		discount = servicesSubtotal * *pkg.DiscountPercentage / 100
	}
	return clamp(discount, 0, servicesSubtotal)
}

// PromoDiscount returns the promotion's discount against prePromo, or 0 when
// the promotion does not apply.
func PromoDiscount(p *catalog.Promotion, prePromo float64, atHome bool, locationID string, now time.Time) float64 {
	if p == nil || !PromotionApplies(*p, prePromo, atHome, locationID, now) {
		return 0
	}
	var discount float64
	switch p.DiscountType {
	case catalog.DiscountPercentage:
		discount = prePromo * p.DiscountValue / 100
	case catalog.DiscountFixed:
		discount = p.DiscountValue
	default:
		return 0
	}
	if p.MaxDiscountAmount != nil && discount > *p.MaxDiscountAmount {
		discount = *p.MaxDiscountAmount
	}
	return clamp(discount, 0, prePromo)
}

// PromotionApplies checks activity, validity window, usage limit, the
// inclusive minimum purchase and the optional location restriction.
func PromotionApplies(p catalog.Promotion, prePromo float64, atHome bool, locationID string, now time.Time) bool {
	if !p.IsActive {
		return false
	}
	if p.ValidFrom != nil && now.Before(*p.ValidFrom) {
		return false
	}
	if p.ValidUntil != nil && now.After(*p.ValidUntil) {
		return false
	}
	if p.UsageLimit != nil && p.UsageCount >= *p.UsageLimit {
		return false
	}
	if prePromo < p.MinPurchaseAmount {
		return false
	}
	if p.LocationID != nil && *p.LocationID != "" {
		if atHome || locationID != *p.LocationID {
			return false
		}
	}
	return true
}

// ServiceFee prefers the provider config when the subtotal reaches its
// minimum, then the platform config under the same rule. A provider config
// with a zero value waives the fee. The second value is the percentage
// applied, zero for fixed fees.
func ServiceFee(providerFee, platformFee *FeeConfig, subtotal float64) (float64, float64) {
	for _, cfg := range []*FeeConfig{providerFee, platformFee} {
		if amount, pct, ok := feeFrom(cfg, subtotal); ok {
			return amount, pct
		}
	}
	return 0, 0
}

func feeFrom(cfg *FeeConfig, subtotal float64) (float64, float64, bool) {
	if cfg == nil || subtotal < cfg.MinBookingAmount {
		return 0, 0, false
	}
	value := nonNegative(cfg.Value)
	switch cfg.Type {
	case FeePercentage:
		amount := round2(subtotal * value / 100)
		if cfg.MaxFeeAmount != nil && *cfg.MaxFeeAmount > 0 && amount > *cfg.MaxFeeAmount {
			amount = *cfg.MaxFeeAmount
		}
		return amount, value, true
	case FeeFixed:
		return value, 0, true
	}
	return 0, 0, false
}

// round2 rounds half away from zero to two decimals.
func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

func nonNegative(v float64) float64 {
	if v < 0 {
		return 0
	}
	return v
}

func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(v, hi))
}
