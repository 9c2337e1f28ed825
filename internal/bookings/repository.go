package bookings

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/wolfman30/glowbook-platform/internal/events"
	"github.com/wolfman30/glowbook-platform/internal/scheduling"
)

var bookingsTracer = otel.Tracer("glowbook.internal.bookings")

// Recheck re-takes the conflict decision against a transaction-bound store.
type Recheck func(ctx context.Context, store scheduling.AvailabilityStore) (scheduling.Decision, error)

// CommitResult is what the transaction decided.
type CommitResult struct {
	Decision scheduling.Decision
}

// Repository persists a booking graph atomically.
type Repository interface {
	Commit(ctx context.Context, g *Graph, recheck Recheck) (CommitResult, error)
}

type txBeginner interface {
	Begin(ctx context.Context) (pgx.Tx, error)
}

// PostgresRepository writes bookings in one transaction guarded by advisory
// locks per staff day and resource day.
type PostgresRepository struct {
	db  txBeginner
	now func() time.Time
}

// NewPostgresRepository creates a repository over the pool.
func NewPostgresRepository(pool *pgxpool.Pool) *PostgresRepository {
	if pool == nil {
		panic("bookings: pgx pool required")
	}
	return newPostgresRepositoryWithDB(pool, time.Now)
}

func newPostgresRepositoryWithDB(db txBeginner, now func() time.Time) *PostgresRepository {
	if now == nil {
		now = time.Now
	}
	return &PostgresRepository{db: db, now: now}
}

// Commit locks, re-checks availability, reserves stock and promotion usage,
// writes every row and queues the events. Nothing is kept on failure.
func (r *PostgresRepository) Commit(ctx context.Context, g *Graph, recheck Recheck) (CommitResult, error) {
	ctx, span := bookingsTracer.Start(ctx, "bookings.repository.commit")
	defer span.End()
	span.SetAttributes(
		attribute.String("glowbook.provider_id", g.ProviderID),
		attribute.String("glowbook.booking_id", g.BookingID),
	)

	tx, err := r.db.Begin(ctx)
	if err != nil {
		return CommitResult{}, fmt.Errorf("bookings: begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	for _, key := range LockKeys(g) {
		if _, err := tx.Exec(ctx, `SELECT pg_advisory_xact_lock(hashtextextended($1, 0))`, key); err != nil {
			return CommitResult{}, fmt.Errorf("bookings: advisory lock %s: %w", key, err)
		}
	}

	var result CommitResult
	if recheck != nil {
		decision, err := recheck(ctx, scheduling.NewPostgresAvailability(tx))
		if err != nil {
			return CommitResult{}, err
		}
		result.Decision = decision
	}

	if err := reserveStock(ctx, tx, g.Products); err != nil {
		return CommitResult{}, err
	}
	if g.PromotionID != "" {
		tag, err := tx.Exec(ctx, `
			UPDATE promotions
			SET usage_count = usage_count + 1
			WHERE id = $1 AND (usage_limit IS NULL OR usage_count < usage_limit)
		`, g.PromotionID)
		if err != nil {
			return CommitResult{}, fmt.Errorf("bookings: increment promotion usage: %w", err)
		}
		if tag.RowsAffected() == 0 {
			return CommitResult{}, newError(KindValidation, "promotion is no longer available")
		}
	}

	if err := insertBooking(ctx, tx, g, result.Decision.Overridden); err != nil {
		return CommitResult{}, err
	}
	if err := insertLines(ctx, tx, g); err != nil {
		return CommitResult{}, err
	}
	if err := r.enqueueEvents(ctx, tx, g, result.Decision); err != nil {
		return CommitResult{}, err
	}

	if err := tx.Commit(ctx); err != nil {
		return CommitResult{}, fmt.Errorf("bookings: commit tx: %w", err)
	}
	return result, nil
}

// LockKeys returns the sorted advisory lock keys for every staff member and
// resource the booking occupies, one per UTC day touched.
func LockKeys(g *Graph) []string {
	set := map[string]struct{}{}
	for _, staffID := range g.StaffIDs() {
		for _, day := range daysTouched(g.StartAt, g.EndAt) {
			set["staff:"+staffID+":"+day] = struct{}{}
		}
	}
	for _, resourceID := range g.ResourceIDs {
		for _, day := range daysTouched(g.ResourceWindow.Start, g.ResourceWindow.End) {
			set["resource:"+resourceID+":"+day] = struct{}{}
		}
	}
	keys := make([]string, 0, len(set))
	for k := range set {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func daysTouched(start, end time.Time) []string {
	first := start.UTC().Truncate(24 * time.Hour)
	last := first
	if end.After(start) {
		last = end.UTC().Add(-time.Nanosecond).Truncate(24 * time.Hour)
	}
	var days []string
	for d := first; !d.After(last); d = d.Add(24 * time.Hour) {
		days = append(days, d.Format("2006-01-02"))
	}
	return days
}

func reserveStock(ctx context.Context, tx pgx.Tx, lines []ProductLine) error {
	totals := map[string]int{}
	for _, line := range lines {
		totals[line.ProductID] += line.Quantity
	}
	ids := make([]string, 0, len(totals))
	for id := range totals {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	for _, id := range ids {
		tag, err := tx.Exec(ctx, `
			UPDATE products
			SET stock_quantity = CASE WHEN track_stock THEN stock_quantity - $2 ELSE stock_quantity END,
				updated_at = NOW()
			WHERE id = $1 AND (NOT track_stock OR stock_quantity >= $2)
		`, id, totals[id])
		if err != nil {
			return fmt.Errorf("bookings: reserve stock: %w", err)
		}
		if tag.RowsAffected() == 0 {
			return newError(KindInsufficientStock, "insufficient stock for product %s", id)
		}
	}
	return nil
}

func insertBooking(ctx context.Context, tx pgx.Tx, g *Graph, overridden bool) error {
	var line1, line2, city, postal *string
	var lat, lng *float64
	if a := g.Address; a != nil {
		line1, line2, city, postal = &a.Line1, nullable(a.Line2), nullable(a.City), nullable(a.PostalCode)
		lat, lng = a.Latitude, a.Longitude
	}
	p := g.Price
	query := `
		INSERT INTO bookings (
			id, booking_number, provider_id, customer_id, staff_id, status,
			location_type, location_id, address_line1, address_line2, city, postal_code,
			latitude, longitude, start_at, end_at, travel_buffer_minutes, notes, currency,
			package_id, promotion_id, membership_id,
			services_subtotal, addons_subtotal, products_subtotal, travel_fee,
			package_discount_amount, promo_discount_amount, subtotal,
			membership_discount_amount, subtotal_after_membership, commission_base,
			tip_amount, tax_rate, tax_amount, service_fee_amount, service_fee_percentage,
			total_amount, loyalty_points_earned, conflict_overridden
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19,
			$20, $21, $22, $23, $24, $25, $26, $27, $28, $29, $30, $31, $32, $33, $34, $35, $36,
			$37, $38, $39, $40
		)
	`
	_, err := tx.Exec(ctx, query,
		g.BookingID, g.BookingNumber, g.ProviderID, g.CustomerID, nullable(g.LeadStaffID), string(g.Status),
		string(g.LocationType), nullable(g.LocationID), line1, line2, city, postal,
		lat, lng, g.StartAt, g.EndAt, g.TravelBuffer, nullable(g.Notes), g.Currency,
		nullable(g.PackageID), nullable(g.PromotionID), nullable(g.MembershipID),
		p.ServicesSubtotal, p.AddonsSubtotal, p.ProductsSubtotal, p.TravelFee,
		p.PackageDiscountAmount, p.PromoDiscountAmount, p.Subtotal,
		p.MembershipDiscountAmount, p.SubtotalAfterMembership, p.CommissionBase,
		p.TipAmount, p.TaxRate, p.TaxAmount, p.ServiceFeeAmount, p.ServiceFeePercentage,
		p.TotalAmount, p.LoyaltyPointsEarned, overridden,
	)
	if err != nil {
		return fmt.Errorf("bookings: insert booking: %w", err)
	}
	return nil
}

func insertLines(ctx context.Context, tx pgx.Tx, g *Graph) error {
	for i, line := range g.Services {
		if _, err := tx.Exec(ctx, `
			INSERT INTO booking_services (booking_id, position, offering_id, staff_id, price,
				duration_minutes, scheduled_start_at, scheduled_end_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		`, g.BookingID, i, line.OfferingID, nullable(line.StaffID), line.Price,
			line.DurationMinutes, line.ScheduledStartAt, line.ScheduledEndAt); err != nil {
			return fmt.Errorf("bookings: insert service line: %w", err)
		}
	}

	for i, p := range g.Participants {
		var participantID string
		if err := tx.QueryRow(ctx, `
			INSERT INTO booking_participants (booking_id, position, name, email, phone)
			VALUES ($1, $2, $3, $4, $5)
			RETURNING id::text
		`, g.BookingID, i, p.Name, nullable(p.Email), nullable(p.Phone)).Scan(&participantID); err != nil {
			return fmt.Errorf("bookings: insert participant: %w", err)
		}
		for j, line := range p.Lines {
			if _, err := tx.Exec(ctx, `
				INSERT INTO booking_participant_services (participant_id, position, offering_id, price,
					duration_minutes, scheduled_start_at, scheduled_end_at)
				VALUES ($1, $2, $3, $4, $5, $6, $7)
			`, participantID, j, line.OfferingID, line.Price, line.DurationMinutes,
				line.ScheduledStartAt, line.ScheduledEndAt); err != nil {
				return fmt.Errorf("bookings: insert participant service: %w", err)
			}
		}
	}

	for _, id := range g.AddOnIDs {
		if _, err := tx.Exec(ctx, `
			INSERT INTO booking_addons (booking_id, addon_id) VALUES ($1, $2)
		`, g.BookingID, id); err != nil {
			return fmt.Errorf("bookings: insert add-on: %w", err)
		}
	}

	for _, line := range g.Products {
		if _, err := tx.Exec(ctx, `
			INSERT INTO booking_products (booking_id, product_id, quantity, unit_price, total_price)
			VALUES ($1, $2, $3, $4, $5)
		`, g.BookingID, line.ProductID, line.Quantity, line.UnitPrice, line.TotalPrice); err != nil {
			return fmt.Errorf("bookings: insert product line: %w", err)
		}
	}

	for _, id := range g.ResourceIDs {
		if _, err := tx.Exec(ctx, `
			INSERT INTO booking_resources (booking_id, resource_id, start_at, end_at)
			VALUES ($1, $2, $3, $4)
		`, g.BookingID, id, g.ResourceWindow.Start, g.ResourceWindow.End); err != nil {
			return fmt.Errorf("bookings: insert resource reservation: %w", err)
		}
	}
	return nil
}

func (r *PostgresRepository) enqueueEvents(ctx context.Context, tx pgx.Tx, g *Graph, decision scheduling.Decision) error {
	now := r.now().UTC()
	created := events.BookingCreatedV1{
		EventID:       uuid.NewString(),
		BookingID:     g.BookingID,
		BookingNumber: g.BookingNumber,
		ProviderID:    g.ProviderID,
		CustomerID:    g.CustomerID,
		Status:        string(g.Status),
		StartAt:       g.StartAt,
		EndAt:         g.EndAt,
		TotalAmount:   g.Price.TotalAmount,
		Currency:      g.Currency,
		OccurredAt:    now,
	}
	if _, err := events.Enqueue(ctx, tx, g.BookingID, events.TypeBookingCreated, created); err != nil {
		return fmt.Errorf("bookings: enqueue created event: %w", err)
	}
	if !decision.Overridden {
		return nil
	}
	overridden := events.BookingConflictOverriddenV1{
		EventID:               uuid.NewString(),
		BookingID:             g.BookingID,
		ProviderID:            g.ProviderID,
		StaffID:               g.LeadStaffID,
		ConflictingBookingIDs: decision.Staff.ConflictingBookingIDs,
		OccurredAt:            now,
	}
	if _, err := events.Enqueue(ctx, tx, g.BookingID, events.TypeBookingConflictOverridden, overridden); err != nil {
		return fmt.Errorf("bookings: enqueue override event: %w", err)
	}
	return nil
}

func nullable(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
