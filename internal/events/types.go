package events

import "time"

const (
	TypeBookingCreated            = "booking.created.v1"
	TypeBookingConflictOverridden = "booking.conflict_overridden.v1"
)

// BookingCreatedV1 announces a committed booking to payment and notification
// consumers.
type BookingCreatedV1 struct {
	EventID       string    `json:"event_id"`
	BookingID     string    `json:"booking_id"`
	BookingNumber string    `json:"booking_number"`
	ProviderID    string    `json:"provider_id"`
	CustomerID    string    `json:"customer_id"`
	Status        string    `json:"status"`
	StartAt       time.Time `json:"start_at"`
	EndAt         time.Time `json:"end_at"`
	TotalAmount   float64   `json:"total_amount"`
	Currency      string    `json:"currency"`
	OccurredAt    time.Time `json:"occurred_at"`
}

// BookingConflictOverriddenV1 is the warning emitted when a provider's
// double-booking policy let a conflicting booking through.
type BookingConflictOverriddenV1 struct {
	EventID               string    `json:"event_id"`
	BookingID             string    `json:"booking_id"`
	ProviderID            string    `json:"provider_id"`
	StaffID               string    `json:"staff_id"`
	ConflictingBookingIDs []string  `json:"conflicting_booking_ids"`
	OccurredAt            time.Time `json:"occurred_at"`
}
