// Package provider loads the businesses that sell on the marketplace and the
// settings that shape their bookings.
package provider

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ErrNotFound is returned when no provider row matches.
var ErrNotFound = errors.New("provider: not found")

// StatusActive is the only status that accepts bookings.
const StatusActive = "active"

// Provider is the owning business of a booking.
type Provider struct {
	ID       string
	Name     string
	Status   string
	Currency string
}

// Active reports whether the provider accepts bookings.
func (p Provider) Active() bool {
	return strings.EqualFold(strings.TrimSpace(p.Status), StatusActive)
}

// Directory looks up providers by id.
type Directory interface {
	Provider(ctx context.Context, id string) (Provider, error)
}

type rowQuerier interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// PostgresDirectory reads providers from Postgres.
type PostgresDirectory struct {
	db rowQuerier
}

// NewPostgresDirectory builds a directory over the pool.
func NewPostgresDirectory(pool *pgxpool.Pool) *PostgresDirectory {
	if pool == nil {
		panic("provider: pgx pool required")
	}
	return &PostgresDirectory{db: pool}
}

func newPostgresDirectoryWithQuerier(q rowQuerier) *PostgresDirectory {
	return &PostgresDirectory{db: q}
}

func (d *PostgresDirectory) Provider(ctx context.Context, id string) (Provider, error) {
	query := `
		SELECT id, name, status, currency
		FROM providers
		WHERE id::text = $1
	`
	var p Provider
	if err := d.db.QueryRow(ctx, query, id).Scan(&p.ID, &p.Name, &p.Status, &p.Currency); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Provider{}, ErrNotFound
		}
		return Provider{}, fmt.Errorf("provider: select provider: %w", err)
	}
	return p, nil
}
