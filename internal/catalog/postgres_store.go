package catalog

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// PostgresStore reads the catalog from Postgres.
type PostgresStore struct {
	db querier
}

// NewPostgresStore initializes a store backed by pgxpool.
func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	if pool == nil {
		panic("catalog: pgx pool required")
	}
	return &PostgresStore{db: pool}
}

func newPostgresStoreWithQuerier(q querier) *PostgresStore {
	if q == nil {
		panic("catalog: querier required")
	}
	return &PostgresStore{db: q}
}

const offeringColumns = `
	o.id, o.provider_id, o.name, o.price, o.currency, o.is_active,
	o.duration_minutes, o.buffer_minutes, o.processing_minutes, o.finishing_minutes,
	o.supports_at_home, o.at_home_price_adjustment,
	ARRAY(
		SELECT r.resource_id::text FROM offering_resources r
		WHERE r.offering_id = o.id AND r.is_required
		ORDER BY r.position
	)`

func (s *PostgresStore) OfferingsByID(ctx context.Context, ids []string) ([]Offering, error) {
	keys := parseIDs(ids)
	if len(keys) == 0 {
		return nil, nil
	}
	rows, err := s.db.Query(ctx, `SELECT`+offeringColumns+` FROM offerings o WHERE o.id = ANY($1)`, keys)
	if err != nil {
		return nil, fmt.Errorf("catalog: query offerings: %w", err)
	}
	defer rows.Close()

	var out []Offering
	for rows.Next() {
		var o Offering
		if err := rows.Scan(
			&o.ID, &o.ProviderID, &o.Name, &o.Price, &o.Currency, &o.IsActive,
			&o.DurationMinutes, &o.BufferMinutes, &o.ProcessingMinutes, &o.FinishingMinutes,
			&o.SupportsAtHome, &o.AtHomePriceAdjustment, &o.RequiredResourceIDs,
		); err != nil {
			return nil, fmt.Errorf("catalog: scan offering: %w", err)
		}
		out = append(out, o)
	}
	return out, rows.Err()
}

func (s *PostgresStore) AddOnsByID(ctx context.Context, ids []string) ([]AddOn, error) {
	keys := parseIDs(ids)
	if len(keys) == 0 {
		return nil, nil
	}
	query := `
		SELECT id, provider_id, name, price, currency, is_active,
			COALESCE(location_ids::text[], '{}')
		FROM addons
		WHERE id = ANY($1)
	`
	rows, err := s.db.Query(ctx, query, keys)
	if err != nil {
		return nil, fmt.Errorf("catalog: query addons: %w", err)
	}
	defer rows.Close()

	var out []AddOn
	for rows.Next() {
		var a AddOn
		if err := rows.Scan(&a.ID, &a.ProviderID, &a.Name, &a.Price, &a.Currency, &a.IsActive, &a.LocationIDs); err != nil {
			return nil, fmt.Errorf("catalog: scan addon: %w", err)
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

func (s *PostgresStore) ProductsByID(ctx context.Context, ids []string) ([]Product, error) {
	keys := parseIDs(ids)
	if len(keys) == 0 {
		return nil, nil
	}
	query := `
		SELECT id, provider_id, name, price, currency, is_active, track_stock, stock_quantity
		FROM products
		WHERE id = ANY($1)
	`
	rows, err := s.db.Query(ctx, query, keys)
	if err != nil {
		return nil, fmt.Errorf("catalog: query products: %w", err)
	}
	defer rows.Close()

	var out []Product
	for rows.Next() {
		var p Product
		if err := rows.Scan(&p.ID, &p.ProviderID, &p.Name, &p.Price, &p.Currency, &p.IsActive, &p.TrackStock, &p.StockQuantity); err != nil {
			return nil, fmt.Errorf("catalog: scan product: %w", err)
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (s *PostgresStore) PackageByID(ctx context.Context, id string) (Package, error) {
	key, err := uuid.Parse(id)
	if err != nil {
		return Package{}, ErrNotFound
	}
	query := `
		SELECT id, provider_id, name, price, discount_percentage, currency, is_active,
			COALESCE(location_ids::text[], '{}')
		FROM packages
		WHERE id = $1
	`
	var p Package
	err = s.db.QueryRow(ctx, query, key).Scan(
		&p.ID, &p.ProviderID, &p.Name, &p.Price, &p.DiscountPercentage, &p.Currency, &p.IsActive, &p.LocationIDs,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Package{}, ErrNotFound
		}
		return Package{}, fmt.Errorf("catalog: select package: %w", err)
	}
	return p, nil
}

func (s *PostgresStore) PromotionByCode(ctx context.Context, providerID, code string) (Promotion, error) {
	query := `
		SELECT id, provider_id, code, discount_type, discount_value, min_purchase_amount,
			max_discount_amount, usage_limit, usage_count, valid_from, valid_until,
			is_active, location_id::text
		FROM promotions
		WHERE provider_id = $1 AND upper(code) = $2
	`
	var p Promotion
	var discountType string
	err := s.db.QueryRow(ctx, query, providerID, NormalizeCode(code)).Scan(
		&p.ID, &p.ProviderID, &p.Code, &discountType, &p.DiscountValue, &p.MinPurchaseAmount,
		&p.MaxDiscountAmount, &p.UsageLimit, &p.UsageCount, &p.ValidFrom, &p.ValidUntil,
		&p.IsActive, &p.LocationID,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Promotion{}, ErrNotFound
		}
		return Promotion{}, fmt.Errorf("catalog: select promotion: %w", err)
	}
	p.DiscountType = DiscountType(discountType)
	return p, nil
}

func (s *PostgresStore) MembershipFor(ctx context.Context, customerID, providerID string) (Membership, error) {
	query := `
		SELECT m.id, m.customer_id, m.provider_id, m.plan_id, p.discount_percent, m.status, m.expires_at
		FROM memberships m
		JOIN membership_plans p ON p.id = m.plan_id
		WHERE m.customer_id = $1 AND m.provider_id = $2
		ORDER BY (m.status = 'active') DESC, m.expires_at DESC NULLS FIRST
		LIMIT 1
	`
	var m Membership
	err := s.db.QueryRow(ctx, query, customerID, providerID).Scan(
		&m.ID, &m.CustomerID, &m.ProviderID, &m.PlanID, &m.DiscountPercent, &m.Status, &m.ExpiresAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Membership{}, ErrNotFound
		}
		return Membership{}, fmt.Errorf("catalog: select membership: %w", err)
	}
	return m, nil
}

// LoyaltyRuleFor prefers a provider-specific rule over the platform rule for
// the same currency.
func (s *PostgresStore) LoyaltyRuleFor(ctx context.Context, providerID, currency string) (LoyaltyRule, error) {
	query := `
		SELECT id, currency, points_per_currency_unit, is_active
		FROM loyalty_rules
		WHERE is_active AND upper(currency) = upper($2)
			AND (provider_id = $1 OR provider_id IS NULL)
		ORDER BY provider_id NULLS LAST
		LIMIT 1
	`
	var r LoyaltyRule
	err := s.db.QueryRow(ctx, query, providerID, currency).Scan(&r.ID, &r.Currency, &r.PointsPerCurrencyUnit, &r.IsActive)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return LoyaltyRule{}, ErrNotFound
		}
		return LoyaltyRule{}, fmt.Errorf("catalog: select loyalty rule: %w", err)
	}
	return r, nil
}

func (s *PostgresStore) ActiveStaff(ctx context.Context, providerID string) ([]StaffMember, error) {
	query := `
		SELECT id, provider_id, name, is_active
		FROM staff
		WHERE provider_id = $1 AND is_active
		ORDER BY id
	`
	rows, err := s.db.Query(ctx, query, providerID)
	if err != nil {
		return nil, fmt.Errorf("catalog: query staff: %w", err)
	}
	defer rows.Close()

	var out []StaffMember
	for rows.Next() {
		var m StaffMember
		if err := rows.Scan(&m.ID, &m.ProviderID, &m.Name, &m.IsActive); err != nil {
			return nil, fmt.Errorf("catalog: scan staff: %w", err)
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

// parseIDs drops malformed ids; callers treat them as missing rows.
func parseIDs(ids []string) []uuid.UUID {
	seen := make(map[uuid.UUID]struct{}, len(ids))
	out := make([]uuid.UUID, 0, len(ids))
	for _, raw := range ids {
		id, err := uuid.Parse(raw)
		if err != nil {
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
