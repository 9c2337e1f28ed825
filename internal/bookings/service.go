// Package bookings turns a customer's booking draft into a priced, scheduled
// and persisted booking.
package bookings

import (
	"context"
	"errors"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/wolfman30/glowbook-platform/internal/catalog"
	"github.com/wolfman30/glowbook-platform/internal/observability/metrics"
	"github.com/wolfman30/glowbook-platform/internal/pricing"
	"github.com/wolfman30/glowbook-platform/internal/provider"
	"github.com/wolfman30/glowbook-platform/internal/scheduling"
	"github.com/wolfman30/glowbook-platform/pkg/logging"
)

// SubscriptionLimitChecker enforces the provider's plan quota.
type SubscriptionLimitChecker interface {
	CanCreateBooking(ctx context.Context, providerID string) (bool, error)
	RecordBooking(ctx context.Context, providerID string) error
}

// Deps are the collaborators of the pipeline. Catalog, Providers and
// Repository are required; the rest fall back to permissive defaults.
type Deps struct {
	Catalog       catalog.Store
	Providers     provider.Directory
	Settings      provider.SettingsStore
	Platform      provider.PlatformSettings
	Customers     CustomerDirectory
	Subscriptions SubscriptionLimitChecker
	Availability  scheduling.AvailabilityStore
	Override      scheduling.OverridePolicy
	Travel        scheduling.TravelBufferEstimator
	Repository    Repository
	StaffPicker   StaffPicker
	Metrics       *metrics.BookingMetrics
	Logger        *logging.Logger
	LookupTimeout time.Duration
	Now           func() time.Time
}

// CreationResult is returned for a committed booking.
type CreationResult struct {
	BookingID          string            `json:"booking_id"`
	BookingNumber      string            `json:"booking_number"`
	Status             Status            `json:"status"`
	StartAt            time.Time         `json:"start_at"`
	EndAt              time.Time         `json:"end_at"`
	PriceBreakdown     pricing.Breakdown `json:"price_breakdown"`
	ConflictOverridden bool              `json:"conflict_overridden"`
}

// Quote is a priced draft that was not scheduled or stored.
type Quote struct {
	ProviderID     string            `json:"provider_id"`
	Currency       string            `json:"currency"`
	PriceBreakdown pricing.Breakdown `json:"price_breakdown"`
}

// Service runs the booking pipeline.
type Service struct {
	validator     *DraftValidator
	resolver      *Resolver
	composer      *scheduling.Composer
	checker       *scheduling.ConflictChecker
	graphs        *GraphBuilder
	providers     provider.Directory
	settings      provider.SettingsStore
	platform      provider.PlatformSettings
	customers     CustomerDirectory
	subscriptions SubscriptionLimitChecker
	availability  scheduling.AvailabilityStore
	repo          Repository
	metrics       *metrics.BookingMetrics
	logger        *logging.Logger
	timeout       time.Duration
	now           func() time.Time
}

// NewService wires the pipeline from deps.
func NewService(deps Deps) *Service {
	if deps.Catalog == nil || deps.Providers == nil || deps.Repository == nil {
		panic("bookings: catalog, providers and repository are required")
	}
	logger := deps.Logger
	if logger == nil {
		logger = logging.Default()
	}
	now := deps.Now
	if now == nil {
		now = time.Now
	}
	return &Service{
		validator:     NewDraftValidator(now),
		resolver:      NewResolver(deps.Catalog, logger, now),
		composer:      scheduling.NewComposer(deps.Travel, deps.LookupTimeout, logger, deps.Metrics),
		checker:       scheduling.NewConflictChecker(deps.Override, deps.LookupTimeout, logger, deps.Metrics),
		graphs:        NewGraphBuilder(deps.StaffPicker),
		providers:     deps.Providers,
		settings:      deps.Settings,
		platform:      deps.Platform,
		customers:     deps.Customers,
		subscriptions: deps.Subscriptions,
		availability:  deps.Availability,
		repo:          deps.Repository,
		metrics:       deps.Metrics,
		logger:        logger,
		timeout:       deps.LookupTimeout,
		now:           now,
	}
}

// priced is the state shared by quote and create after pricing.
type priced struct {
	provider provider.Provider
	settings *provider.Settings
	resolved *Resolved
	price    pricing.Breakdown
}

// CreateBooking validates, prices, schedules and stores a booking. Every
// failure is a *Error and nothing is written unless the whole booking is.
func (s *Service) CreateBooking(ctx context.Context, customerID string, d Draft) (result *CreationResult, err error) {
	ctx, span := bookingsTracer.Start(ctx, "bookings.create")
	defer span.End()
	span.SetAttributes(attribute.String("glowbook.provider_id", d.ProviderID))
	started := time.Now()
	defer func() { s.finish(span, "create", started, err) }()

	p, err := s.price(ctx, customerID, d, true)
	if err != nil {
		return nil, err
	}

	table := scheduling.NewDurationTable(append([][]catalog.Offering{p.resolved.PrimaryOfferings}, p.resolved.ParticipantOfferings...)...)
	leadStaff := d.Services[0].StaffID
	plan := s.composer.Compose(ctx, scheduling.ComposeRequest{
		ProviderID:     p.provider.ID,
		Start:          d.StartAt,
		Table:          table,
		PrimaryIDs:     d.PrimaryOfferingIDs(),
		ParticipantIDs: d.ParticipantOfferingIDs(),
		AtHome:         d.AtHome(),
		Destination:    d.Address.Coordinates(),
		LeadStaffID:    leadStaff,
	})

	resources := scheduling.RequiredResources(d.ResourceIDs, p.resolved.AllOfferings())
	checkReq := scheduling.CheckRequest{
		ProviderID:     p.provider.ID,
		StaffID:        leadStaff,
		StaffWindow:    plan.StaffWindow,
		ResourceIDs:    resources,
		ResourceWindow: plan.ResourceWindow,
	}
	if s.availability != nil {
		if _, err := s.checker.Check(ctx, s.availability, checkReq); err != nil {
			return nil, conflictError(err)
		}
	}

	graph := s.graphs.Build(GraphInput{
		CustomerID:  customerID,
		Draft:       d,
		Resolved:    p.resolved,
		Plan:        plan,
		Price:       p.price,
		ResourceIDs: resources,
		Status:      InitialStatus(p.settings.AutoConfirm),
	})
	span.SetAttributes(attribute.String("glowbook.booking_id", graph.BookingID))

	committed, err := s.repo.Commit(ctx, graph, func(ctx context.Context, store scheduling.AvailabilityStore) (scheduling.Decision, error) {
		return s.checker.Check(ctx, store, checkReq)
	})
	if err != nil {
		return nil, conflictError(err)
	}

	if committed.Decision.Overridden {
		s.logger.Warn("booking created over a staff conflict",
			"provider_id", graph.ProviderID,
			"booking_id", graph.BookingID,
			"staff_id", leadStaff,
			"conflicting_booking_ids", committed.Decision.Staff.ConflictingBookingIDs,
		)
		s.metrics.ObserveConflictOverride()
	}
	if s.subscriptions != nil {
		if err := s.subscriptions.RecordBooking(ctx, graph.ProviderID); err != nil {
			s.logger.Warn("subscription usage not recorded", "provider_id", graph.ProviderID, "error", err)
		}
	}
	s.logger.Info("booking created",
		"provider_id", graph.ProviderID,
		"booking_id", graph.BookingID,
		"booking_number", graph.BookingNumber,
		"status", string(graph.Status),
		"total_amount", graph.Price.TotalAmount,
	)

	return &CreationResult{
		BookingID:          graph.BookingID,
		BookingNumber:      graph.BookingNumber,
		Status:             graph.Status,
		StartAt:            graph.StartAt,
		EndAt:              graph.EndAt,
		PriceBreakdown:     graph.Price,
		ConflictOverridden: committed.Decision.Overridden,
	}, nil
}

// QuoteBooking prices a draft without scheduling or storing it.
func (s *Service) QuoteBooking(ctx context.Context, customerID string, d Draft) (quote *Quote, err error) {
	ctx, span := bookingsTracer.Start(ctx, "bookings.quote")
	defer span.End()
	span.SetAttributes(attribute.String("glowbook.provider_id", d.ProviderID))
	started := time.Now()
	defer func() { s.finish(span, "quote", started, err) }()

	p, err := s.price(ctx, customerID, d, false)
	if err != nil {
		return nil, err
	}
	return &Quote{ProviderID: p.provider.ID, Currency: p.provider.Currency, PriceBreakdown: p.price}, nil
}

func (s *Service) price(ctx context.Context, customerID string, d Draft, enforceQuota bool) (*priced, error) {
	if err := s.validator.Validate(d); err != nil {
		return nil, err
	}

	if s.customers != nil {
		exists, err := s.customers.CustomerExists(ctx, customerID)
		if err != nil {
			return nil, internalError("customer lookup", err)
		}
		if !exists {
			return nil, newError(KindNotFound, "customer profile not found")
		}
	}

	prov, err := s.providers.Provider(ctx, d.ProviderID)
	if errors.Is(err, provider.ErrNotFound) {
		return nil, newError(KindNotFound, "provider not found")
	}
	if err != nil {
		return nil, internalError("provider lookup", err)
	}
	if !prov.Active() {
		return nil, newError(KindProviderInactive, "provider is not accepting bookings")
	}

	if enforceQuota && !s.quotaAllows(ctx, prov.ID) {
		return nil, newError(KindSubscriptionLimit, "monthly booking limit reached for this provider")
	}

	settings := s.providerSettings(ctx, prov.ID)

	resolved, err := s.resolver.Resolve(ctx, customerID, prov, d)
	if err != nil {
		return nil, err
	}

	in := pricing.Input{
		AtHome:              d.AtHome(),
		LocationID:          d.salonLocation(),
		Offerings:           resolved.AllOfferings(),
		AddOns:              resolved.AddOns,
		Products:            d.productLines(),
		TravelFee:           d.TravelFee,
		Package:             resolved.Package,
		Promotion:           resolved.Promotion,
		Membership:          resolved.Membership,
		TipAmount:           d.TipAmount,
		TippingEnabled:      settings.TippingEnabled,
		MinimumMobileAmount: settings.MinimumMobileAmount,
		ProviderTaxRate:     settings.TaxRate,
		ProviderFee:         settings.ServiceFee,
		LoyaltyRule:         resolved.LoyaltyRule,
		Now:                 s.now(),
	}
	if settings.TaxRate == nil {
		in.DefaultTaxRate = s.defaultTaxRate(ctx)
	}
	in.PlatformFee = s.platformFee(ctx)

	breakdown, err := pricing.Calculate(in)
	if err != nil {
		var minErr *pricing.MinimumOrderError
		if errors.As(err, &minErr) {
			return nil, &Error{Kind: KindMinimumOrderNotMet, Message: minErr.Error(), Err: err}
		}
		return nil, internalError("pricing", err)
	}
	return &priced{provider: prov, settings: settings, resolved: resolved, price: breakdown}, nil
}

func (s *Service) lookupContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.timeout > 0 {
		return context.WithTimeout(ctx, s.timeout)
	}
	return context.WithCancel(ctx)
}

// quotaAllows fails open: a broken quota lookup must not block bookings.
func (s *Service) quotaAllows(ctx context.Context, providerID string) bool {
	if s.subscriptions == nil {
		return true
	}
	lctx, cancel := s.lookupContext(ctx)
	defer cancel()
	ok, err := s.subscriptions.CanCreateBooking(lctx, providerID)
	if err != nil {
		s.logger.Warn("subscription limit check failed, allowing booking", "provider_id", providerID, "error", err)
		s.metrics.ObserveFallback("subscription_limit")
		return true
	}
	return ok
}

func (s *Service) providerSettings(ctx context.Context, providerID string) *provider.Settings {
	if s.settings == nil {
		return provider.DefaultSettings(providerID)
	}
	lctx, cancel := s.lookupContext(ctx)
	defer cancel()
	cfg, err := s.settings.Settings(lctx, providerID)
	if err != nil || cfg == nil {
		s.logger.Warn("provider settings unavailable, using defaults", "provider_id", providerID, "error", err)
		s.metrics.ObserveFallback("provider_settings")
		return provider.DefaultSettings(providerID)
	}
	return cfg
}

func (s *Service) defaultTaxRate(ctx context.Context) float64 {
	if s.platform == nil {
		return 0
	}
	lctx, cancel := s.lookupContext(ctx)
	defer cancel()
	rate, err := s.platform.DefaultTaxRate(lctx)
	if err != nil {
		s.logger.Warn("platform tax rate unavailable, using zero", "error", err)
		s.metrics.ObserveFallback("tax_rate")
		return 0
	}
	return rate
}

func (s *Service) platformFee(ctx context.Context) *pricing.FeeConfig {
	if s.platform == nil {
		return nil
	}
	lctx, cancel := s.lookupContext(ctx)
	defer cancel()
	fee, err := s.platform.PlatformFee(lctx)
	if err != nil {
		s.logger.Warn("platform fee unavailable, charging none", "error", err)
		s.metrics.ObserveFallback("platform_fee")
		return nil
	}
	return fee
}

func (s *Service) finish(span trace.Span, operation string, started time.Time, err error) {
	outcome := "created"
	if operation == "quote" {
		outcome = "quoted"
	}
	if err != nil {
		outcome = strings.ToLower(string(AsError(err).Kind))
		span.RecordError(err)
		span.SetStatus(codes.Error, outcome)
	}
	s.metrics.ObservePipeline(operation, outcome, time.Since(started).Seconds())
}

// conflictError maps scheduling outcomes onto the error taxonomy.
func conflictError(err error) error {
	var bookingErr *Error
	if errors.As(err, &bookingErr) {
		return bookingErr
	}
	if errors.Is(err, scheduling.ErrSlotTaken) {
		return &Error{Kind: KindConflict, Message: scheduling.ErrSlotTaken.Error(), Err: err}
	}
	var resErr *scheduling.ResourceUnavailableError
	if errors.As(err, &resErr) {
		return &Error{Kind: KindResourceUnavailable, Message: resErr.Error(), Err: err}
	}
	return internalError("store booking", err)
}
