package bookings

import (
	"time"

	"github.com/wolfman30/glowbook-platform/internal/pricing"
	"github.com/wolfman30/glowbook-platform/internal/scheduling"
)

// LocationType says where the service happens.
type LocationType string

const (
	LocationAtHome  LocationType = "at_home"
	LocationAtSalon LocationType = "at_salon"
)

// ServiceSelection is one requested offering with an optional staff preference.
type ServiceSelection struct {
	OfferingID string `json:"offering_id" validate:"required"`
	StaffID    string `json:"staff_id,omitempty"`
}

// Address is the house-call destination. Coordinates are present once the
// address has been geocoded upstream.
type Address struct {
	Line1      string   `json:"line1" validate:"required"`
	Line2      string   `json:"line2,omitempty"`
	City       string   `json:"city,omitempty"`
	PostalCode string   `json:"postal_code,omitempty"`
	Latitude   *float64 `json:"latitude,omitempty" validate:"omitempty,latitude"`
	Longitude  *float64 `json:"longitude,omitempty" validate:"omitempty,longitude"`
}

// Coordinates returns the geocoded point, or nil when not geocoded.
func (a *Address) Coordinates() *scheduling.Coordinates {
	if a == nil || a.Latitude == nil || a.Longitude == nil {
		return nil
	}
	return &scheduling.Coordinates{Latitude: *a.Latitude, Longitude: *a.Longitude}
}

// ProductSelection is a retail line with the price shown to the customer.
type ProductSelection struct {
	ProductID  string   `json:"product_id" validate:"required"`
	Quantity   int      `json:"quantity" validate:"gt=0"`
	UnitPrice  float64  `json:"unit_price" validate:"gte=0"`
	TotalPrice *float64 `json:"total_price,omitempty" validate:"omitempty,gte=0"`
}

// Participant is an additional guest of a group booking.
type Participant struct {
	Name       string   `json:"name" validate:"required,max=200"`
	Email      string   `json:"email,omitempty" validate:"omitempty,email"`
	Phone      string   `json:"phone,omitempty" validate:"omitempty,e164"`
	ServiceIDs []string `json:"service_ids" validate:"required,min=1,max=20,dive,required"`
}

// Draft is a customer's booking request. The pipeline never mutates it.
type Draft struct {
	ProviderID    string             `json:"-" validate:"required"`
	Services      []ServiceSelection `json:"services" validate:"required,min=1,max=20,dive"`
	StartAt       time.Time          `json:"start_at" validate:"required,futurestart"`
	LocationType  LocationType       `json:"location_type" validate:"required,locationtype"`
	Address       *Address           `json:"address,omitempty"`
	LocationID    string             `json:"location_id,omitempty"`
	AddOnIDs      []string           `json:"addon_ids,omitempty" validate:"max=50,dive,required"`
	Products      []ProductSelection `json:"products,omitempty" validate:"max=50,dive"`
	PackageID     string             `json:"package_id,omitempty"`
	PromoCode     string             `json:"promo_code,omitempty" validate:"max=64"`
	UseMembership bool               `json:"use_membership,omitempty"`
	Participants  []Participant      `json:"participants,omitempty" validate:"max=20,dive"`
	TipAmount     float64            `json:"tip_amount,omitempty" validate:"gte=0"`
	TravelFee     float64            `json:"travel_fee,omitempty" validate:"gte=0"`
	ResourceIDs   []string           `json:"resource_ids,omitempty" validate:"max=20,dive,required"`
	Notes         string             `json:"notes,omitempty" validate:"max=2000"`
}

// AtHome reports whether the booking is a house call.
func (d Draft) AtHome() bool {
	return d.LocationType == LocationAtHome
}

// salonLocation is the location id used for location-scoped items, empty
// unless the booking is at a salon.
func (d Draft) salonLocation() string {
	if d.LocationType != LocationAtSalon {
		return ""
	}
	return d.LocationID
}

// OfferingIDs lists every offering id in the draft, participants included,
// in order of appearance.
func (d Draft) OfferingIDs() []string {
	ids := make([]string, 0, len(d.Services))
	for _, s := range d.Services {
		ids = append(ids, s.OfferingID)
	}
	for _, p := range d.Participants {
		ids = append(ids, p.ServiceIDs...)
	}
	return ids
}

// PrimaryOfferingIDs lists the booker's own offering ids in order.
func (d Draft) PrimaryOfferingIDs() []string {
	ids := make([]string, 0, len(d.Services))
	for _, s := range d.Services {
		ids = append(ids, s.OfferingID)
	}
	return ids
}

// ParticipantOfferingIDs lists each participant's offering ids.
func (d Draft) ParticipantOfferingIDs() [][]string {
	out := make([][]string, 0, len(d.Participants))
	for _, p := range d.Participants {
		out = append(out, p.ServiceIDs)
	}
	return out
}

// StaffIDs lists the distinct staff preferences in the draft.
func (d Draft) StaffIDs() []string {
	seen := map[string]struct{}{}
	var ids []string
	for _, s := range d.Services {
		if s.StaffID == "" {
			continue
		}
		if _, ok := seen[s.StaffID]; ok {
			continue
		}
		seen[s.StaffID] = struct{}{}
		ids = append(ids, s.StaffID)
	}
	return ids
}

func (d Draft) productLines() []pricing.ProductLine {
	lines := make([]pricing.ProductLine, 0, len(d.Products))
	for _, p := range d.Products {
		lines = append(lines, pricing.ProductLine{
			ProductID:  p.ProductID,
			Quantity:   p.Quantity,
			UnitPrice:  p.UnitPrice,
			TotalPrice: p.TotalPrice,
		})
	}
	return lines
}
