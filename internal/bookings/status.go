package bookings

// Status is the lifecycle state a booking is created in.
type Status string

const (
	StatusPending    Status = "pending"
	StatusConfirmed  Status = "confirmed"
	StatusInProgress Status = "in_progress"
	StatusCompleted  Status = "completed"
	StatusCancelled  Status = "cancelled"
)

// InitialStatus is confirmed for auto-confirming providers, pending otherwise.
func InitialStatus(autoConfirm bool) Status {
	if autoConfirm {
		return StatusConfirmed
	}
	return StatusPending
}
