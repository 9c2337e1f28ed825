// Package travel estimates how long a staff member needs to reach a house call.
package travel

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/wolfman30/glowbook-platform/internal/scheduling"
)

type rowQuerier interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Estimator measures the straight-line distance from the staff member's
// previous house call that day, or their home base, to the destination and
// converts it to minutes at an average speed.
type Estimator struct {
	db         rowQuerier
	speedKMH   float64
	maxMinutes int
}

// NewEstimator builds an estimator over the pool.
func NewEstimator(pool *pgxpool.Pool, speedKMH float64, maxMinutes int) *Estimator {
	if pool == nil {
		panic("travel: pgx pool required")
	}
	return newEstimator(pool, speedKMH, maxMinutes)
}

func newEstimator(db rowQuerier, speedKMH float64, maxMinutes int) *Estimator {
	if speedKMH <= 0 {
		speedKMH = 30
	}
	return &Estimator{db: db, speedKMH: speedKMH, maxMinutes: maxMinutes}
}

func (e *Estimator) EstimateBuffer(ctx context.Context, q scheduling.TravelQuery) (int, error) {
	staff, err := uuid.Parse(q.StaffID)
	if err != nil {
		return 0, nil
	}
	origin, ok, err := e.origin(ctx, staff, q)
	if err != nil || !ok {
		return 0, err
	}
	return e.minutesFor(Haversine(origin, q.Destination)), nil
}

func (e *Estimator) origin(ctx context.Context, staffID uuid.UUID, q scheduling.TravelQuery) (scheduling.Coordinates, bool, error) {
	dayStart := q.StartAt.UTC().Truncate(24 * time.Hour)
	query := `
		SELECT origin.latitude, origin.longitude
		FROM (
			SELECT b.latitude, b.longitude, 0 AS rank, b.end_at AS at
			FROM bookings b
			WHERE b.staff_id = $1
				AND b.location_type = 'at_home'
				AND b.status = ANY($4)
				AND b.end_at <= $2 AND b.end_at >= $3
				AND b.latitude IS NOT NULL AND b.longitude IS NOT NULL
			UNION ALL
			SELECT s.base_latitude, s.base_longitude, 1 AS rank, NULL AS at
			FROM staff s
			WHERE s.id = $1 AND s.base_latitude IS NOT NULL AND s.base_longitude IS NOT NULL
		) origin
		ORDER BY origin.rank, origin.at DESC
		LIMIT 1
	`
	var c scheduling.Coordinates
	err := e.db.QueryRow(ctx, query, staffID, q.StartAt, dayStart, scheduling.ActiveStatuses).Scan(&c.Latitude, &c.Longitude)
	if errors.Is(err, pgx.ErrNoRows) {
		return scheduling.Coordinates{}, false, nil
	}
	if err != nil {
		return scheduling.Coordinates{}, false, fmt.Errorf("travel: select origin: %w", err)
	}
	return c, true, nil
}

func (e *Estimator) minutesFor(distanceKm float64) int {
	minutes := int(math.Ceil(distanceKm / e.speedKMH * 60))
	if e.maxMinutes > 0 && minutes > e.maxMinutes {
		return e.maxMinutes
	}
	return minutes
}

// Haversine returns the great-circle distance in km between two points.
func Haversine(a, b scheduling.Coordinates) float64 {
	const earthRadiusKm = 6371
	dLat := (b.Latitude - a.Latitude) * math.Pi / 180
	dLon := (b.Longitude - a.Longitude) * math.Pi / 180
	lat1 := a.Latitude * math.Pi / 180
	lat2 := b.Latitude * math.Pi / 180

	h := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1)*math.Cos(lat2)*math.Sin(dLon/2)*math.Sin(dLon/2)
	return earthRadiusKm * 2 * math.Atan2(math.Sqrt(h), math.Sqrt(1-h))
}
