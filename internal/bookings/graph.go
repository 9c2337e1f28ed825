package bookings

import (
	"math/rand"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/oklog/ulid/v2"

	"github.com/wolfman30/glowbook-platform/internal/catalog"
	"github.com/wolfman30/glowbook-platform/internal/pricing"
	"github.com/wolfman30/glowbook-platform/internal/scheduling"
)

// ServiceLine is one scheduled primary service.
type ServiceLine struct {
	OfferingID       string
	StaffID          string
	Price            float64
	DurationMinutes  int
	ScheduledStartAt time.Time
	ScheduledEndAt   time.Time
}

// ParticipantLine is one scheduled service for a group guest.
type ParticipantLine struct {
	ParticipantIndex int
	OfferingID       string
	Price            float64
	DurationMinutes  int
	ScheduledStartAt time.Time
	ScheduledEndAt   time.Time
}

// ParticipantRecord is a group guest and their lines.
type ParticipantRecord struct {
	Name  string
	Email string
	Phone string
	Lines []ParticipantLine
}

// ProductLine is a priced retail line.
type ProductLine struct {
	ProductID  string
	Quantity   int
	UnitPrice  float64
	TotalPrice float64
}

// Graph is the fully computed booking, ready to persist. It is built once and
// never modified.
type Graph struct {
	BookingID     string
	BookingNumber string
	ProviderID    string
	CustomerID    string
	Currency      string
	Status        Status

	LocationType LocationType
	LocationID   string
	Address      *Address
	Notes        string

	StartAt        time.Time
	EndAt          time.Time
	ResourceWindow scheduling.Window
	LeadStaffID    string
	TravelBuffer   int

	Services     []ServiceLine
	Participants []ParticipantRecord
	Products     []ProductLine
	AddOnIDs     []string
	ResourceIDs  []string
	PackageID    string
	PromotionID  string
	MembershipID string

	Price pricing.Breakdown
}

// StaffIDs returns the distinct staff assigned to service lines.
func (g *Graph) StaffIDs() []string {
	seen := map[string]struct{}{}
	var ids []string
	for _, line := range g.Services {
		if line.StaffID == "" {
			continue
		}
		if _, ok := seen[line.StaffID]; ok {
			continue
		}
		seen[line.StaffID] = struct{}{}
		ids = append(ids, line.StaffID)
	}
	return ids
}

// StaffPicker chooses a staff member when the customer expressed no preference.
type StaffPicker interface {
	Pick(staff []catalog.StaffMember) (string, bool)
}

// RandomStaffPicker picks uniformly using a seedable source.
type RandomStaffPicker struct {
	mu  sync.Mutex
	rng *rand.Rand
}

// NewRandomStaffPicker seeds the picker. Tests pass a fixed seed.
func NewRandomStaffPicker(seed int64) *RandomStaffPicker {
	return &RandomStaffPicker{rng: rand.New(rand.NewSource(seed))}
}

func (p *RandomStaffPicker) Pick(staff []catalog.StaffMember) (string, bool) {
	if len(staff) == 0 {
		return "", false
	}
	p.mu.Lock()
	i := p.rng.Intn(len(staff))
	p.mu.Unlock()
	return staff[i].ID, true
}

// ParticipantLineBuilder schedules every participant from the booking start,
// each in a parallel bay.
type ParticipantLineBuilder struct{}

func (ParticipantLineBuilder) Build(start time.Time, participants []Participant, offerings [][]catalog.Offering, atHome bool) []ParticipantRecord {
	out := make([]ParticipantRecord, 0, len(participants))
	for i, p := range participants {
		var list []catalog.Offering
		if i < len(offerings) {
			list = offerings[i]
		}
		slots := scheduling.Sequence(start, list)
		rec := ParticipantRecord{Name: p.Name, Email: p.Email, Phone: p.Phone}
		for j, o := range list {
			rec.Lines = append(rec.Lines, ParticipantLine{
				ParticipantIndex: i,
				OfferingID:       o.ID,
				Price:            linePrice(o, atHome),
				DurationMinutes:  o.DurationMinutes,
				ScheduledStartAt: slots[j].Start,
				ScheduledEndAt:   slots[j].End,
			})
		}
		out = append(out, rec)
	}
	return out
}

// GraphInput gathers what the builder needs.
type GraphInput struct {
	CustomerID  string
	Draft       Draft
	Resolved    *Resolved
	Plan        scheduling.Plan
	Price       pricing.Breakdown
	ResourceIDs []string
	Status      Status
}

// GraphBuilder lays out the booking.
type GraphBuilder struct {
	picker       StaffPicker
	participants ParticipantLineBuilder
	newID        func() string
	newNumber    func() string
}

// NewGraphBuilder uses picker for staff fallback. A nil picker leaves lines
// without a staff member when the customer did not choose one.
func NewGraphBuilder(picker StaffPicker) *GraphBuilder {
	return &GraphBuilder{
		picker:    picker,
		newID:     func() string { return uuid.NewString() },
		newNumber: func() string { return "BK-" + ulid.Make().String() },
	}
}

func (b *GraphBuilder) Build(in GraphInput) *Graph {
	d := in.Draft
	res := in.Resolved

	g := &Graph{
		BookingID:      b.newID(),
		BookingNumber:  b.newNumber(),
		ProviderID:     res.Provider.ID,
		CustomerID:     in.CustomerID,
		Currency:       res.Provider.Currency,
		Status:         in.Status,
		LocationType:   d.LocationType,
		LocationID:     d.salonLocation(),
		Notes:          d.Notes,
		StartAt:        d.StartAt,
		EndAt:          in.Plan.StaffWindow.End,
		ResourceWindow: in.Plan.ResourceWindow,
		TravelBuffer:   in.Plan.TravelBufferMinutes,
		AddOnIDs:       append([]string(nil), d.AddOnIDs...),
		ResourceIDs:    append([]string(nil), in.ResourceIDs...),
		Price:          in.Price,
	}
	if d.AtHome() && d.Address != nil {
		addr := *d.Address
		g.Address = &addr
	}
	if res.Package != nil {
		g.PackageID = res.Package.ID
	}
	if res.Promotion != nil && in.Price.PromoDiscountAmount > 0 {
		g.PromotionID = res.Promotion.ID
	}
	if res.Membership != nil && in.Price.MembershipDiscountAmount > 0 {
		g.MembershipID = res.Membership.ID
	}

	fallback := ""
	if len(d.StaffIDs()) == 0 && b.picker != nil {
		fallback, _ = b.picker.Pick(eligibleStaff(res.ActiveStaff, res.Provider.ID))
	}

	slots := scheduling.Sequence(d.StartAt, res.PrimaryOfferings)
	for i, o := range res.PrimaryOfferings {
		staffID := fallback
		if i < len(d.Services) && d.Services[i].StaffID != "" {
			staffID = d.Services[i].StaffID
		}
		g.Services = append(g.Services, ServiceLine{
			OfferingID:       o.ID,
			StaffID:          staffID,
			Price:            linePrice(o, d.AtHome()),
			DurationMinutes:  o.DurationMinutes,
			ScheduledStartAt: slots[i].Start,
			ScheduledEndAt:   slots[i].End,
		})
	}
	if len(g.Services) > 0 {
		g.LeadStaffID = g.Services[0].StaffID
	}

	g.Participants = b.participants.Build(d.StartAt, d.Participants, res.ParticipantOfferings, d.AtHome())

	for _, line := range d.productLines() {
		g.Products = append(g.Products, ProductLine{
			ProductID:  line.ProductID,
			Quantity:   line.Quantity,
			UnitPrice:  line.UnitPrice,
			TotalPrice: line.Total(),
		})
	}
	return g
}

func linePrice(o catalog.Offering, atHome bool) float64 {
	if atHome {
		return o.Price + o.AtHomePriceAdjustment
	}
	return o.Price
}

func eligibleStaff(staff []catalog.StaffMember, providerID string) []catalog.StaffMember {
	out := make([]catalog.StaffMember, 0, len(staff))
	for _, s := range staff {
		if s.IsActive && s.ProviderID == providerID {
			out = append(out, s)
		}
	}
	return out
}
