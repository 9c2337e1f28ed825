// Package scheduling computes blocked windows for a booking and decides
// whether staff and resources are free over them.
package scheduling

import (
	"context"
	"time"

	"github.com/wolfman30/glowbook-platform/internal/catalog"
	"github.com/wolfman30/glowbook-platform/internal/observability/metrics"
	"github.com/wolfman30/glowbook-platform/pkg/logging"
)

// Window is a half-open occupancy interval.
type Window struct {
	Start time.Time
	End   time.Time
}

// Coordinates is a geocoded address.
type Coordinates struct {
	Latitude  float64
	Longitude float64
}

// TravelQuery identifies the trip a travel buffer is estimated for.
type TravelQuery struct {
	ProviderID  string
	StaffID     string
	StartAt     time.Time
	Destination Coordinates
}

// TravelBufferEstimator returns the minutes a staff member needs to reach a
// house call.
type TravelBufferEstimator interface {
	EstimateBuffer(ctx context.Context, q TravelQuery) (int, error)
}

// DurationTable maps offering ids to their resolved rows.
type DurationTable map[string]catalog.Offering

// NewDurationTable indexes offerings by id.
func NewDurationTable(offerings ...[]catalog.Offering) DurationTable {
	table := make(DurationTable)
	for _, list := range offerings {
		for _, o := range list {
			table[o.ID] = o
		}
	}
	return table
}

// ChainMinutes sums the padded durations of the ids. Unknown ids count as zero.
func (t DurationTable) ChainMinutes(ids []string) int {
	total := 0
	for _, id := range ids {
		total += t[id].ChainMinutes()
	}
	return total
}

// BaseMinutes sums unpadded durations of the ids.
func (t DurationTable) BaseMinutes(ids []string) int {
	total := 0
	for _, id := range ids {
		total += t[id].DurationMinutes
	}
	return total
}

// ComposeRequest describes the chains of one booking.
type ComposeRequest struct {
	ProviderID     string
	Start          time.Time
	Table          DurationTable
	PrimaryIDs     []string
	ParticipantIDs [][]string
	AtHome         bool
	Destination    *Coordinates
	LeadStaffID    string
}

// Plan is the composed timing of a booking.
type Plan struct {
	// CheckMinutes is the longest chain among the primary booker and the
	// participants, since participants are served in parallel bays.
	CheckMinutes             int
	// ResourceWindow spans the longest unpadded chain.
	TravelBufferMinutes      int
	LastServiceBufferMinutes int
	StaffWindow              Window
	ResourceWindow           Window
}

// Composer builds a Plan, consulting the travel estimator for house calls.
type Composer struct {
	travel  TravelBufferEstimator
	timeout time.Duration
	logger  *logging.Logger
	metrics *metrics.BookingMetrics
}

// NewComposer constructs a composer. A nil estimator means no travel buffer.
func NewComposer(travel TravelBufferEstimator, timeout time.Duration, logger *logging.Logger, m *metrics.BookingMetrics) *Composer {
	if logger == nil {
		logger = logging.Default()
	}
	return &Composer{travel: travel, timeout: timeout, logger: logger, metrics: m}
}

// Compose never fails: an unavailable travel estimate resolves to zero.
func (c *Composer) Compose(ctx context.Context, req ComposeRequest) Plan {
	check := req.Table.ChainMinutes(req.PrimaryIDs)
	for _, ids := range req.ParticipantIDs {
		if chain := req.Table.ChainMinutes(ids); chain > check {
			check = chain
		}
	}

	plan := Plan{CheckMinutes: check}
	if n := len(req.PrimaryIDs); n > 0 {
		plan.LastServiceBufferMinutes = req.Table[req.PrimaryIDs[n-1]].BufferMinutes
	}
	if req.AtHome && req.Destination != nil {
		plan.TravelBufferMinutes = c.travelBuffer(ctx, req)
	}

	blocked := plan.CheckMinutes + plan.TravelBufferMinutes + plan.LastServiceBufferMinutes
	plan.StaffWindow = Window{Start: req.Start, End: req.Start.Add(time.Duration(blocked) * time.Minute)}
	base := req.Table.BaseMinutes(req.PrimaryIDs)
	for _, ids := range req.ParticipantIDs {
		if chain := req.Table.BaseMinutes(ids); chain > base {
			base = chain
		}
	}
	plan.ResourceWindow = Window{Start: req.Start, End: req.Start.Add(time.Duration(base) * time.Minute)}
	return plan
}

func (c *Composer) travelBuffer(ctx context.Context, req ComposeRequest) int {
	if c.travel == nil {
		return 0
	}
	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}
	minutes, err := c.travel.EstimateBuffer(ctx, TravelQuery{
		ProviderID:  req.ProviderID,
		StaffID:     req.LeadStaffID,
		StartAt:     req.Start,
		Destination: *req.Destination,
	})
	if err != nil {
		c.logger.Warn("travel buffer unavailable, using zero", "provider_id", req.ProviderID, "staff_id", req.LeadStaffID, "error", err)
		c.metrics.ObserveFallback("travel_buffer")
		return 0
	}
	if minutes < 0 {
		return 0
	}
	return minutes
}
