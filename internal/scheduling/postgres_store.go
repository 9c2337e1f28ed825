package scheduling

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// ActiveStatuses are the booking statuses that occupy staff and resources.
var ActiveStatuses = []string{"pending", "confirmed", "in_progress"}

// Querier is satisfied by *pgxpool.Pool and pgx.Tx.
type Querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

// PostgresAvailability answers occupancy queries from the bookings tables.
type PostgresAvailability struct {
	db Querier
}

// NewPostgresAvailability binds the store to a pool or a transaction.
func NewPostgresAvailability(db Querier) *PostgresAvailability {
	if db == nil {
		panic("scheduling: querier required")
	}
	return &PostgresAvailability{db: db}
}

func (s *PostgresAvailability) OverlappingBookings(ctx context.Context, staffID string, w Window) ([]string, error) {
	staff, err := uuid.Parse(staffID)
	if err != nil {
		return nil, nil
	}
	query := `
		SELECT b.id
		FROM bookings b
		WHERE b.status = ANY($4)
			AND b.start_at < $3 AND b.end_at > $2
			AND (b.staff_id = $1 OR EXISTS (
				SELECT 1 FROM booking_services s WHERE s.booking_id = b.id AND s.staff_id = $1
			))
		ORDER BY b.start_at
	`
	rows, err := s.db.Query(ctx, query, staff, w.Start, w.End, ActiveStatuses)
	if err != nil {
		return nil, fmt.Errorf("scheduling: query overlapping bookings: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scheduling: scan booking id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// ResourceConflicts reports resources that belong to another provider, are out
// of service, or are already reserved by an active booking during the window.
func (s *PostgresAvailability) ResourceConflicts(ctx context.Context, providerID string, resourceIDs []string, w Window) ([]ResourceConflict, error) {
	keys := make([]uuid.UUID, 0, len(resourceIDs))
	var conflicts []ResourceConflict
	for _, raw := range resourceIDs {
		id, err := uuid.Parse(raw)
		if err != nil {
			conflicts = append(conflicts, ResourceConflict{ResourceID: raw, Reason: "unknown resource"})
			continue
		}
		keys = append(keys, id)
	}
	if len(keys) == 0 {
		return conflicts, nil
	}

	query := `
		SELECT r.id, r.provider_id::text, COALESCE(br.booking_id::text, ''), r.is_active
		FROM resources r
		LEFT JOIN LATERAL (
			SELECT x.booking_id
			FROM booking_resources x
			JOIN bookings b ON b.id = x.booking_id
			WHERE x.resource_id = r.id
				AND b.status = ANY($4)
				AND x.start_at < $3 AND x.end_at > $2
			ORDER BY x.start_at
			LIMIT 1
		) br ON true
		WHERE r.id = ANY($1)
	`
	rows, err := s.db.Query(ctx, query, keys, w.Start, w.End, ActiveStatuses)
	if err != nil {
		return nil, fmt.Errorf("scheduling: query resource availability: %w", err)
	}
	defer rows.Close()

	found := make(map[string]struct{}, len(keys))
	for rows.Next() {
		var id, owner, bookingID string
		var active bool
		if err := rows.Scan(&id, &owner, &bookingID, &active); err != nil {
			return nil, fmt.Errorf("scheduling: scan resource: %w", err)
		}
		found[id] = struct{}{}
		switch {
		case owner != providerID:
			conflicts = append(conflicts, ResourceConflict{ResourceID: id, Reason: "not offered by this provider"})
		case !active:
			conflicts = append(conflicts, ResourceConflict{ResourceID: id, Reason: "out of service"})
		case bookingID != "":
			conflicts = append(conflicts, ResourceConflict{ResourceID: id, BookingID: bookingID, Reason: "already reserved by booking " + bookingID})
		}
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	for _, id := range keys {
		if _, ok := found[id.String()]; !ok {
			conflicts = append(conflicts, ResourceConflict{ResourceID: id.String(), Reason: "unknown resource"})
		}
	}
	return conflicts, nil
}
