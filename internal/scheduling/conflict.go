package scheduling

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/wolfman30/glowbook-platform/internal/catalog"
	"github.com/wolfman30/glowbook-platform/internal/observability/metrics"
	"github.com/wolfman30/glowbook-platform/pkg/logging"
)

// ErrSlotTaken is returned when the staff window overlaps an existing booking
// and the provider does not allow double booking.
var ErrSlotTaken = errors.New("time slot no longer available")

// ResourceConflict explains why one resource cannot be reserved.
type ResourceConflict struct {
	ResourceID string
	BookingID  string
	Reason     string
}

// ResourceUnavailableError lists every conflicting resource.
type ResourceUnavailableError struct {
	Conflicts []ResourceConflict
}

func (e *ResourceUnavailableError) Error() string {
	reasons := make([]string, 0, len(e.Conflicts))
	for _, c := range e.Conflicts {
		reasons = append(reasons, fmt.Sprintf("resource %s: %s", c.ResourceID, c.Reason))
	}
	return "required resources unavailable: " + strings.Join(reasons, "; ")
}

// AvailabilityStore answers occupancy queries. Implementations bound to a
// transaction see the locked view.
type AvailabilityStore interface {
	OverlappingBookings(ctx context.Context, staffID string, w Window) ([]string, error)
	ResourceConflicts(ctx context.Context, providerID string, resourceIDs []string, w Window) ([]ResourceConflict, error)
}

// OverridePolicy reports whether a provider accepts double bookings.
type OverridePolicy interface {
	AllowsDoubleBooking(ctx context.Context, providerID string) (bool, error)
}

// ConflictState is a step of the per-attempt conflict state machine.
type ConflictState string

const (
	StateIdle               ConflictState = "idle"
	StateConflictQuery      ConflictState = "conflict_query"
	StateClean              ConflictState = "clean"
	StateBlocked            ConflictState = "blocked"
	StateOverriddenConflict ConflictState = "overridden_conflict"
	StateRejected           ConflictState = "rejected"
)

// ConflictResult is the outcome of the staff overlap query.
type ConflictResult struct {
	HasConflict           bool
	ConflictingBookingIDs []string
}

// CheckRequest carries the windows and ids to check.
type CheckRequest struct {
	ProviderID     string
	StaffID        string
	StaffWindow    Window
	ResourceIDs    []string
	ResourceWindow Window
}

// Decision is the accepted outcome of a check.
type Decision struct {
	State      ConflictState
	Staff      ConflictResult
	Overridden bool
}

// ConflictChecker runs the staff and resource queries and arbitrates staff
// conflicts through the provider's override policy.
type ConflictChecker struct {
	policy  OverridePolicy
	timeout time.Duration
	logger  *logging.Logger
	metrics *metrics.BookingMetrics
}

// NewConflictChecker constructs a checker. A nil policy never overrides.
func NewConflictChecker(policy OverridePolicy, timeout time.Duration, logger *logging.Logger, m *metrics.BookingMetrics) *ConflictChecker {
	if logger == nil {
		logger = logging.Default()
	}
	return &ConflictChecker{policy: policy, timeout: timeout, logger: logger, metrics: m}
}

// Check queries staff and resources concurrently and returns the decision,
// ErrSlotTaken, or a *ResourceUnavailableError. Store failures are returned
// wrapped.
func (c *ConflictChecker) Check(ctx context.Context, store AvailabilityStore, req CheckRequest) (Decision, error) {
	decision := Decision{State: StateIdle}
	var staffIDs []string
	var resourceConflicts []ResourceConflict

	g, gctx := errgroup.WithContext(ctx)
	if req.StaffID != "" {
		decision.State = StateConflictQuery
		g.Go(func() error {
			ids, err := store.OverlappingBookings(gctx, req.StaffID, req.StaffWindow)
			if err != nil {
				return fmt.Errorf("scheduling: staff overlap: %w", err)
			}
			staffIDs = ids
			return nil
		})
	}
	if len(req.ResourceIDs) > 0 {
		g.Go(func() error {
			conflicts, err := store.ResourceConflicts(gctx, req.ProviderID, req.ResourceIDs, req.ResourceWindow)
			if err != nil {
				return fmt.Errorf("scheduling: resource availability: %w", err)
			}
			resourceConflicts = conflicts
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return Decision{}, err
	}

	if decision.State == StateConflictQuery {
		decision.State = StateClean
		if len(staffIDs) > 0 {
			decision.State = StateBlocked
			decision.Staff = ConflictResult{HasConflict: true, ConflictingBookingIDs: staffIDs}
			if !c.overrideAllowed(ctx, req.ProviderID) {
				decision.State = StateRejected
				return decision, ErrSlotTaken
			}
			decision.State = StateOverriddenConflict
			decision.Overridden = true
		}
	}

	if len(resourceConflicts) > 0 {
		return decision, &ResourceUnavailableError{Conflicts: resourceConflicts}
	}
	return decision, nil
}

func (c *ConflictChecker) overrideAllowed(ctx context.Context, providerID string) bool {
	if c.policy == nil {
		return false
	}
	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}
	allowed, err := c.policy.AllowsDoubleBooking(ctx, providerID)
	if err != nil {
		c.logger.Warn("override policy unavailable, rejecting conflict", "provider_id", providerID, "error", err)
		c.metrics.ObserveFallback("override_policy")
		return false
	}
	return allowed
}

// RequiredResources returns the explicit override list when given, else the
// first required resource of each offering, participant lines included. The
// result is deduplicated and keeps first-seen order.
func RequiredResources(override []string, offerings []catalog.Offering) []string {
	var candidates []string
	if len(override) > 0 {
		candidates = override
	} else {
		for _, o := range offerings {
			if len(o.RequiredResourceIDs) > 0 {
				candidates = append(candidates, o.RequiredResourceIDs[0])
			}
		}
	}
	seen := make(map[string]struct{}, len(candidates))
	out := make([]string, 0, len(candidates))
	for _, id := range candidates {
		id = strings.TrimSpace(id)
		if id == "" {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
