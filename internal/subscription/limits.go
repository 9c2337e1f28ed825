// Package subscription enforces the monthly booking quota of a provider's plan.
package subscription

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/wolfman30/glowbook-platform/pkg/logging"
)

var subscriptionTracer = otel.Tracer("glowbook.internal.subscription")

type rowQuerier interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// LimitChecker compares a provider's bookings this month against its plan.
// Plans live in Postgres; the running count lives in Redis and is seeded
// from Postgres when missing.
type LimitChecker struct {
	db     rowQuerier
	redis  *redis.Client
	logger *logging.Logger
	now    func() time.Time
}

// NewLimitChecker builds a checker over the pool and Redis client.
func NewLimitChecker(pool *pgxpool.Pool, redisClient *redis.Client, logger *logging.Logger) *LimitChecker {
	if pool == nil {
		panic("subscription: pgx pool required")
	}
	return newLimitChecker(pool, redisClient, logger, time.Now)
}

func newLimitChecker(db rowQuerier, redisClient *redis.Client, logger *logging.Logger, now func() time.Time) *LimitChecker {
	if logger == nil {
		logger = logging.Default()
	}
	return &LimitChecker{db: db, redis: redisClient, logger: logger, now: now}
}

// Usage is a provider's standing against its monthly quota. A nil Limit
// means the plan is unlimited.
type Usage struct {
	Limit *int
	Count int
}

// Exceeded reports whether no more bookings fit in the quota.
func (u Usage) Exceeded() bool {
	return u.Limit != nil && u.Count >= *u.Limit
}

// CanCreateBooking reports whether the provider may take another booking.
func (c *LimitChecker) CanCreateBooking(ctx context.Context, providerID string) (bool, error) {
	ctx, span := subscriptionTracer.Start(ctx, "subscription.can_create_booking")
	defer span.End()
	span.SetAttributes(attribute.String("glowbook.provider_id", providerID))

	usage, err := c.Usage(ctx, providerID)
	if err != nil {
		span.RecordError(err)
		return false, err
	}
	if usage.Exceeded() {
		span.SetAttributes(attribute.Bool("subscription.exceeded", true))
		c.logger.Warn("booking quota exhausted", "provider_id", providerID, "count", usage.Count, "max", *usage.Limit)
		return false, nil
	}
	return true, nil
}

// Usage loads the plan limit and the current month's count.
func (c *LimitChecker) Usage(ctx context.Context, providerID string) (Usage, error) {
	limit, err := c.planLimit(ctx, providerID)
	if err != nil {
		return Usage{}, err
	}
	if limit == nil {
		return Usage{}, nil
	}
	count, err := c.monthCount(ctx, providerID)
	if err != nil {
		return Usage{}, err
	}
	return Usage{Limit: limit, Count: count}, nil
}

// RecordBooking bumps the month counter after a booking commits.
func (c *LimitChecker) RecordBooking(ctx context.Context, providerID string) error {
	if c.redis == nil {
		return nil
	}
	key, expiry := c.monthKey(providerID)
	count, err := c.redis.Incr(ctx, key).Result()
	if err != nil {
		return fmt.Errorf("subscription: increment usage: %w", err)
	}
	if count == 1 {
		c.redis.ExpireAt(ctx, key, expiry)
	}
	return nil
}

func (c *LimitChecker) planLimit(ctx context.Context, providerID string) (*int, error) {
	query := `
		SELECT p.monthly_booking_limit
		FROM provider_subscriptions s
		JOIN subscription_plans p ON p.id = s.plan_id
		WHERE s.provider_id::text = $1 AND s.status = 'active'
		ORDER BY s.started_at DESC
		LIMIT 1
	`
	var limit *int
	err := c.db.QueryRow(ctx, query, providerID).Scan(&limit)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("subscription: select plan: %w", err)
	}
	return limit, nil
}

func (c *LimitChecker) monthCount(ctx context.Context, providerID string) (int, error) {
	key, expiry := c.monthKey(providerID)
	if c.redis != nil {
		count, err := c.redis.Get(ctx, key).Int()
		if err == nil {
			return count, nil
		}
		if !errors.Is(err, redis.Nil) {
			c.logger.Warn("usage counter read failed, counting in postgres", "provider_id", providerID, "error", err)
		}
	}

	start := c.monthStart()
	query := `
		SELECT COUNT(*)
		FROM bookings
		WHERE provider_id::text = $1 AND created_at >= $2 AND status <> 'cancelled'
	`
	var count int
	if err := c.db.QueryRow(ctx, query, providerID, start).Scan(&count); err != nil {
		return 0, fmt.Errorf("subscription: count bookings: %w", err)
	}
	if ttl := expiry.Sub(c.now()); c.redis != nil && ttl > 0 {
		// SETNX so a concurrent RecordBooking is not overwritten.
		c.redis.SetNX(ctx, key, count, ttl)
	}
	return count, nil
}

func (c *LimitChecker) monthStart() time.Time {
	now := c.now().UTC()
	return time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC)
}

func (c *LimitChecker) monthKey(providerID string) (string, time.Time) {
	start := c.monthStart()
	// Keep the counter a day past month end for late reads.
	expiry := start.AddDate(0, 1, 1)
	return fmt.Sprintf("subscription:bookings:%s:%s", providerID, start.Format("2006-01")), expiry
}
