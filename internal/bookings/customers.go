package bookings

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// CustomerDirectory reports whether a customer profile exists.
type CustomerDirectory interface {
	CustomerExists(ctx context.Context, customerID string) (bool, error)
}

type rowQuerier interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// PostgresCustomers reads the customers table.
type PostgresCustomers struct {
	db rowQuerier
}

func NewPostgresCustomers(pool *pgxpool.Pool) *PostgresCustomers {
	if pool == nil {
		panic("bookings: pgx pool required")
	}
	return &PostgresCustomers{db: pool}
}

func (c *PostgresCustomers) CustomerExists(ctx context.Context, customerID string) (bool, error) {
	id, err := uuid.Parse(customerID)
	if err != nil {
		return false, nil
	}
	var exists bool
	if err := c.db.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM customers WHERE id = $1)`, id).Scan(&exists); err != nil {
		return false, fmt.Errorf("bookings: customer lookup: %w", err)
	}
	return exists, nil
}
