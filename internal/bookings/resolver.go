package bookings

import (
	"context"
	"errors"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/wolfman30/glowbook-platform/internal/catalog"
	"github.com/wolfman30/glowbook-platform/internal/provider"
	"github.com/wolfman30/glowbook-platform/pkg/logging"
)

// Resolved is the snapshot of every catalog row a draft references. Slices
// follow the order of the draft.
type Resolved struct {
	Provider             provider.Provider
	PrimaryOfferings     []catalog.Offering
	ParticipantOfferings [][]catalog.Offering
	AddOns               []catalog.AddOn
	Products             map[string]catalog.Product
	Package              *catalog.Package
	Promotion            *catalog.Promotion
	Membership           *catalog.Membership
	LoyaltyRule          *catalog.LoyaltyRule
	ActiveStaff          []catalog.StaffMember
}

// AllOfferings flattens primary and participant lines, one entry per line.
func (r *Resolved) AllOfferings() []catalog.Offering {
	out := append([]catalog.Offering(nil), r.PrimaryOfferings...)
	for _, list := range r.ParticipantOfferings {
		out = append(out, list...)
	}
	return out
}

// Resolver loads and checks the entities of a draft.
type Resolver struct {
	catalog catalog.Store
	logger  *logging.Logger
	now     func() time.Time
}

// NewResolver wraps a catalog store.
func NewResolver(store catalog.Store, logger *logging.Logger, now func() time.Time) *Resolver {
	if store == nil {
		panic("bookings: catalog store required")
	}
	if logger == nil {
		logger = logging.Default()
	}
	if now == nil {
		now = time.Now
	}
	return &Resolver{catalog: store, logger: logger, now: now}
}

type fetched struct {
	offerings  map[string]catalog.Offering
	addOns     map[string]catalog.AddOn
	products   map[string]catalog.Product
	pkg        *catalog.Package
	promotion  *catalog.Promotion
	membership *catalog.Membership
	loyalty    *catalog.LoyaltyRule
	staff      []catalog.StaffMember
}

// Resolve fetches every referenced row concurrently, then verifies ownership,
// active status, location scope and stock. It performs no writes.
func (r *Resolver) Resolve(ctx context.Context, customerID string, p provider.Provider, d Draft) (*Resolved, error) {
	f, err := r.fetch(ctx, customerID, p, d)
	if err != nil {
		return nil, err
	}

	res := &Resolved{Provider: p, ActiveStaff: f.staff, LoyaltyRule: f.loyalty, Products: f.products}

	if res.PrimaryOfferings, err = r.offerings(f.offerings, p.ID, d.PrimaryOfferingIDs(), d.AtHome()); err != nil {
		return nil, err
	}
	for _, ids := range d.ParticipantOfferingIDs() {
		list, err := r.offerings(f.offerings, p.ID, ids, d.AtHome())
		if err != nil {
			return nil, err
		}
		res.ParticipantOfferings = append(res.ParticipantOfferings, list)
	}

	location := d.salonLocation()
	for _, id := range d.AddOnIDs {
		a, ok := f.addOns[id]
		if !ok || a.ProviderID != p.ID || !a.IsActive {
			return nil, newError(KindValidation, "add-on %s is not available", id)
		}
		if location != "" && !a.AvailableAt(location) {
			return nil, newError(KindValidation, "add-on %s is not offered at location %s", a.Name, location)
		}
		res.AddOns = append(res.AddOns, a)
	}

	if d.PackageID != "" {
		pkg := f.pkg
		if pkg == nil || pkg.ProviderID != p.ID || !pkg.IsActive {
			return nil, newError(KindValidation, "package %s is not available", d.PackageID)
		}
		if location != "" && !pkg.AvailableAt(location) {
			return nil, newError(KindValidation, "package %s is not offered at location %s", pkg.Name, location)
		}
		res.Package = pkg
	}

	if err := checkProducts(f.products, p.ID, d.Products); err != nil {
		return nil, err
	}
	if err := checkStaff(f.staff, d.StaffIDs()); err != nil {
		return nil, err
	}

	if f.promotion != nil && f.promotion.ProviderID == p.ID {
		res.Promotion = f.promotion
	}
	if m := f.membership; m != nil && m.ProviderID == p.ID && m.ActiveAt(r.now()) {
		res.Membership = m
	}
	return res, nil
}

func (r *Resolver) fetch(ctx context.Context, customerID string, p provider.Provider, d Draft) (*fetched, error) {
	f := &fetched{}
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		rows, err := r.catalog.OfferingsByID(gctx, d.OfferingIDs())
		if err != nil {
			return fmt.Errorf("bookings: load offerings: %w", err)
		}
		f.offerings = make(map[string]catalog.Offering, len(rows))
		for _, o := range rows {
			f.offerings[o.ID] = o
		}
		return nil
	})
	if len(d.AddOnIDs) > 0 {
		g.Go(func() error {
			rows, err := r.catalog.AddOnsByID(gctx, d.AddOnIDs)
			if err != nil {
				return fmt.Errorf("bookings: load add-ons: %w", err)
			}
			f.addOns = make(map[string]catalog.AddOn, len(rows))
			for _, a := range rows {
				f.addOns[a.ID] = a
			}
			return nil
		})
	}
	if len(d.Products) > 0 {
		g.Go(func() error {
			ids := make([]string, 0, len(d.Products))
			for _, line := range d.Products {
				ids = append(ids, line.ProductID)
			}
			rows, err := r.catalog.ProductsByID(gctx, ids)
			if err != nil {
				return fmt.Errorf("bookings: load products: %w", err)
			}
			f.products = make(map[string]catalog.Product, len(rows))
			for _, pr := range rows {
				f.products[pr.ID] = pr
			}
			return nil
		})
	}
	if d.PackageID != "" {
		g.Go(func() error {
			pkg, err := r.catalog.PackageByID(gctx, d.PackageID)
			if errors.Is(err, catalog.ErrNotFound) {
				return nil
			}
			if err != nil {
				return fmt.Errorf("bookings: load package: %w", err)
			}
			f.pkg = &pkg
			return nil
		})
	}
	if code := catalog.NormalizeCode(d.PromoCode); code != "" {
		g.Go(func() error {
			promo, err := r.catalog.PromotionByCode(gctx, p.ID, code)
			if errors.Is(err, catalog.ErrNotFound) {
				return nil
			}
			if err != nil {
				return fmt.Errorf("bookings: load promotion: %w", err)
			}
			f.promotion = &promo
			return nil
		})
	}
	if d.UseMembership && customerID != "" {
		g.Go(func() error {
			m, err := r.catalog.MembershipFor(gctx, customerID, p.ID)
			if errors.Is(err, catalog.ErrNotFound) {
				return nil
			}
			if err != nil {
				return fmt.Errorf("bookings: load membership: %w", err)
			}
			f.membership = &m
			return nil
		})
	}
	g.Go(func() error {
		staff, err := r.catalog.ActiveStaff(gctx, p.ID)
		if err != nil {
			return fmt.Errorf("bookings: load staff: %w", err)
		}
		f.staff = staff
		return nil
	})
	g.Go(func() error {
		// Loyalty is a bonus: a failed lookup earns no points instead of
		// failing the booking.
		rule, err := r.catalog.LoyaltyRuleFor(gctx, p.ID, p.Currency)
		if err != nil {
			if !errors.Is(err, catalog.ErrNotFound) {
				r.logger.Warn("loyalty rule lookup failed", "provider_id", p.ID, "error", err)
			}
			return nil
		}
		f.loyalty = &rule
		return nil
	})

	if err := g.Wait(); err != nil {
		return nil, internalError("resolve entities", err)
	}
	return f, nil
}

func (r *Resolver) offerings(index map[string]catalog.Offering, providerID string, ids []string, atHome bool) ([]catalog.Offering, error) {
	out := make([]catalog.Offering, 0, len(ids))
	for _, id := range ids {
		o, ok := index[id]
		if !ok || o.ProviderID != providerID || !o.IsActive {
			return nil, newError(KindValidation, "service %s is not available", id)
		}
		if atHome && !o.SupportsAtHome {
			return nil, newError(KindValidation, "service %s is not offered at home", o.Name)
		}
		out = append(out, o)
	}
	return out, nil
}

func checkProducts(index map[string]catalog.Product, providerID string, lines []ProductSelection) error {
	requested := make(map[string]int, len(lines))
	var order []string
	for _, line := range lines {
		pr, ok := index[line.ProductID]
		if !ok || pr.ProviderID != providerID || !pr.IsActive {
			return newError(KindValidation, "product %s is not available", line.ProductID)
		}
		if _, seen := requested[line.ProductID]; !seen {
			order = append(order, line.ProductID)
		}
		requested[line.ProductID] += line.Quantity
	}
	for _, id := range order {
		pr := index[id]
		if pr.TrackStock && requested[id] > pr.StockQuantity {
			return newError(KindInsufficientStock, "insufficient stock for %s: %d available", pr.Name, pr.StockQuantity)
		}
	}
	return nil
}

func checkStaff(active []catalog.StaffMember, ids []string) error {
	known := make(map[string]struct{}, len(active))
	for _, s := range active {
		if s.IsActive {
			known[s.ID] = struct{}{}
		}
	}
	for _, id := range ids {
		if _, ok := known[id]; !ok {
			return newError(KindValidation, "staff member %s is not available", id)
		}
	}
	return nil
}
