package bookings

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/wolfman30/glowbook-platform/internal/catalog"
	"github.com/wolfman30/glowbook-platform/internal/pricing"
	"github.com/wolfman30/glowbook-platform/internal/provider"
	"github.com/wolfman30/glowbook-platform/internal/scheduling"
	"github.com/wolfman30/glowbook-platform/pkg/logging"
)

const (
	testProvider = "prov-1"
	testCustomer = "cust-1"
)

var (
	testNow   = time.Date(2026, 4, 1, 9, 0, 0, 0, time.UTC)
	testStart = time.Date(2026, 4, 2, 10, 0, 0, 0, time.UTC)
)

type fakeCatalog struct {
	offerings   map[string]catalog.Offering
	addOns      map[string]catalog.AddOn
	products    map[string]catalog.Product
	packages    map[string]catalog.Package
	promotions  map[string]catalog.Promotion
	membership  *catalog.Membership
	loyalty     *catalog.LoyaltyRule
	staff       []catalog.StaffMember
	offeringErr error
}

func newFakeCatalog() *fakeCatalog {
	return &fakeCatalog{
		offerings: map[string]catalog.Offering{
			"cut": {
				ID: "cut", ProviderID: testProvider, Name: "Haircut", Price: 100, Currency: "USD",
				IsActive: true, DurationMinutes: 60, BufferMinutes: 15, SupportsAtHome: true,
				AtHomePriceAdjustment: 20,
			},
			"color": {
				ID: "color", ProviderID: testProvider, Name: "Color", Price: 150, Currency: "USD",
				IsActive: true, DurationMinutes: 90, ProcessingMinutes: 30,
			},
			"retired": {ID: "retired", ProviderID: testProvider, Name: "Retired", Price: 10, DurationMinutes: 10},
			"foreign": {ID: "foreign", ProviderID: "prov-2", Name: "Elsewhere", Price: 10, IsActive: true, DurationMinutes: 10},
		},
		addOns: map[string]catalog.AddOn{
			"mask": {ID: "mask", ProviderID: testProvider, Name: "Mask", Price: 25, IsActive: true},
			"downtown-only": {
				ID: "downtown-only", ProviderID: testProvider, Name: "Scalp", Price: 15, IsActive: true,
				LocationIDs: []string{"loc-downtown"},
			},
		},
		products: map[string]catalog.Product{
			"serum":   {ID: "serum", ProviderID: testProvider, Name: "Serum", Price: 30, IsActive: true, TrackStock: true, StockQuantity: 3},
			"shampoo": {ID: "shampoo", ProviderID: testProvider, Name: "Shampoo", Price: 12, IsActive: true},
		},
		packages:   map[string]catalog.Package{},
		promotions: map[string]catalog.Promotion{},
		staff: []catalog.StaffMember{
			{ID: "staff-1", ProviderID: testProvider, Name: "Ana", IsActive: true},
		},
	}
}

func (c *fakeCatalog) OfferingsByID(_ context.Context, ids []string) ([]catalog.Offering, error) {
	if c.offeringErr != nil {
		return nil, c.offeringErr
	}
	var out []catalog.Offering
	seen := map[string]bool{}
	for _, id := range ids {
		if o, ok := c.offerings[id]; ok && !seen[id] {
			seen[id] = true
			out = append(out, o)
		}
	}
	return out, nil
}

func (c *fakeCatalog) AddOnsByID(_ context.Context, ids []string) ([]catalog.AddOn, error) {
	var out []catalog.AddOn
	for _, id := range ids {
		if a, ok := c.addOns[id]; ok {
			out = append(out, a)
		}
	}
	return out, nil
}

func (c *fakeCatalog) ProductsByID(_ context.Context, ids []string) ([]catalog.Product, error) {
	var out []catalog.Product
	for _, id := range ids {
		if p, ok := c.products[id]; ok {
			out = append(out, p)
		}
	}
	return out, nil
}

func (c *fakeCatalog) PackageByID(_ context.Context, id string) (catalog.Package, error) {
	p, ok := c.packages[id]
	if !ok {
		return catalog.Package{}, catalog.ErrNotFound
	}
	return p, nil
}

func (c *fakeCatalog) PromotionByCode(_ context.Context, providerID, code string) (catalog.Promotion, error) {
	p, ok := c.promotions[code]
	if !ok || p.ProviderID != providerID {
		return catalog.Promotion{}, catalog.ErrNotFound
	}
	return p, nil
}

func (c *fakeCatalog) MembershipFor(_ context.Context, customerID, providerID string) (catalog.Membership, error) {
	if c.membership == nil || c.membership.CustomerID != customerID || c.membership.ProviderID != providerID {
		return catalog.Membership{}, catalog.ErrNotFound
	}
	return *c.membership, nil
}

func (c *fakeCatalog) LoyaltyRuleFor(context.Context, string, string) (catalog.LoyaltyRule, error) {
	if c.loyalty == nil {
		return catalog.LoyaltyRule{}, catalog.ErrNotFound
	}
	return *c.loyalty, nil
}

func (c *fakeCatalog) ActiveStaff(context.Context, string) ([]catalog.StaffMember, error) {
	return c.staff, nil
}

type fakeDirectory map[string]provider.Provider

func (d fakeDirectory) Provider(_ context.Context, id string) (provider.Provider, error) {
	p, ok := d[id]
	if !ok {
		return provider.Provider{}, provider.ErrNotFound
	}
	return p, nil
}

type fakeSettings struct {
	cfg *provider.Settings
	err error
}

func (s *fakeSettings) Settings(_ context.Context, providerID string) (*provider.Settings, error) {
	if s.err != nil {
		return nil, s.err
	}
	if s.cfg == nil {
		return provider.DefaultSettings(providerID), nil
	}
	cfg := *s.cfg
	return &cfg, nil
}

func (s *fakeSettings) AllowsDoubleBooking(ctx context.Context, providerID string) (bool, error) {
	cfg, err := s.Settings(ctx, providerID)
	if err != nil {
		return false, err
	}
	return cfg.AllowDoubleBooking, nil
}

type fakePlatform struct {
	taxRate float64
	fee     *pricing.FeeConfig
	err     error
}

func (p fakePlatform) DefaultTaxRate(context.Context) (float64, error) { return p.taxRate, p.err }

func (p fakePlatform) PlatformFee(context.Context) (*pricing.FeeConfig, error) { return p.fee, p.err }

type fakeCustomers map[string]bool

func (c fakeCustomers) CustomerExists(_ context.Context, id string) (bool, error) {
	return c[id], nil
}

type fakeSubscriptions struct {
	allow    bool
	err      error
	recorded int
}

func (s *fakeSubscriptions) CanCreateBooking(context.Context, string) (bool, error) {
	return s.allow, s.err
}

func (s *fakeSubscriptions) RecordBooking(context.Context, string) error {
	s.recorded++
	return nil
}

type fakeAvailability struct {
	mu        sync.Mutex
	staff     map[string][]string
	resources []scheduling.ResourceConflict
	owners    map[string]string
	windows   []scheduling.Window
}

func (a *fakeAvailability) OverlappingBookings(_ context.Context, staffID string, w scheduling.Window) ([]string, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.windows = append(a.windows, w)
	return a.staff[staffID], nil
}

func (a *fakeAvailability) ResourceConflicts(_ context.Context, providerID string, ids []string, _ scheduling.Window) ([]scheduling.ResourceConflict, error) {
	out := append([]scheduling.ResourceConflict(nil), a.resources...)
	for _, id := range ids {
		if owner, ok := a.owners[id]; ok && owner != providerID {
			out = append(out, scheduling.ResourceConflict{ResourceID: id, Reason: "not offered by this provider"})
		}
	}
	return out, nil
}

type fakeRepository struct {
	tx        scheduling.AvailabilityStore
	err       error
	committed []*Graph
}

func (r *fakeRepository) Commit(ctx context.Context, g *Graph, recheck Recheck) (CommitResult, error) {
	if r.err != nil {
		return CommitResult{}, r.err
	}
	store := r.tx
	if store == nil {
		store = &fakeAvailability{}
	}
	decision, err := recheck(ctx, store)
	if err != nil {
		return CommitResult{}, err
	}
	r.committed = append(r.committed, g)
	return CommitResult{Decision: decision}, nil
}

type fixture struct {
	catalog       *fakeCatalog
	providers     fakeDirectory
	settings      *fakeSettings
	platform      fakePlatform
	customers     fakeCustomers
	subscriptions *fakeSubscriptions
	availability  *fakeAvailability
	repo          *fakeRepository
}

func newFixture() *fixture {
	return &fixture{
		catalog: newFakeCatalog(),
		providers: fakeDirectory{
			testProvider: {ID: testProvider, Name: "Glow Studio", Status: provider.StatusActive, Currency: "USD"},
			"prov-paused": {ID: "prov-paused", Name: "Paused", Status: "suspended", Currency: "USD"},
		},
		settings:      &fakeSettings{},
		customers:     fakeCustomers{testCustomer: true},
		subscriptions: &fakeSubscriptions{allow: true},
		availability:  &fakeAvailability{},
		repo:          &fakeRepository{},
	}
}

func (f *fixture) service() *Service {
	return NewService(Deps{
		Catalog:       f.catalog,
		Providers:     f.providers,
		Settings:      f.settings,
		Platform:      f.platform,
		Customers:     f.customers,
		Subscriptions: f.subscriptions,
		Availability:  f.availability,
		Override:      f.settings,
		Repository:    f.repo,
		StaffPicker:   NewRandomStaffPicker(1),
		Logger:        logging.Discard(),
		LookupTimeout: time.Second,
		Now:           func() time.Time { return testNow },
	})
}

func salonDraft(services ...ServiceSelection) Draft {
	return Draft{
		ProviderID:   testProvider,
		Services:     services,
		StartAt:      testStart,
		LocationType: LocationAtSalon,
		LocationID:   "loc-downtown",
	}
}

var errBoom = errors.New("boom")
