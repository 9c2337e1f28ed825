package bookings

import (
	"context"
	"testing"
	"time"

	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wolfman30/glowbook-platform/internal/events"
	"github.com/wolfman30/glowbook-platform/internal/pricing"
	"github.com/wolfman30/glowbook-platform/internal/scheduling"
)

const testBookingID = "0b6d7f5e-3c1a-4d8e-9a55-0c2a1f7e9b10"

func testGraph() *Graph {
	start := time.Date(2026, 4, 2, 10, 0, 0, 0, time.UTC)
	return &Graph{
		BookingID:      testBookingID,
		BookingNumber:  "BK-01JRX8ZQ3V6K7T0M4N5P6Q7R8S",
		ProviderID:     testProvider,
		CustomerID:     testCustomer,
		Currency:       "USD",
		Status:         StatusPending,
		LocationType:   LocationAtSalon,
		LocationID:     "loc-1",
		StartAt:        start,
		EndAt:          start.Add(90 * time.Minute),
		ResourceWindow: scheduling.Window{Start: start, End: start.Add(60 * time.Minute)},
		LeadStaffID:    "staff-1",
		Services: []ServiceLine{{
			OfferingID: "cut", StaffID: "staff-1", Price: 100, DurationMinutes: 60,
			ScheduledStartAt: start, ScheduledEndAt: start.Add(60 * time.Minute),
		}},
		Participants: []ParticipantRecord{{
			Name: "Bea", Email: "bea@example.com",
			Lines: []ParticipantLine{{
				OfferingID: "color", Price: 150, DurationMinutes: 90,
				ScheduledStartAt: start, ScheduledEndAt: start.Add(90 * time.Minute),
			}},
		}},
		Products: []ProductLine{
			{ProductID: "serum", Quantity: 1, UnitPrice: 30, TotalPrice: 30},
			{ProductID: "serum", Quantity: 1, UnitPrice: 30, TotalPrice: 30},
		},
		AddOnIDs:    []string{"mask"},
		ResourceIDs: []string{"chair-1"},
		PromotionID: "promo-1",
		Price:       pricing.Breakdown{TotalAmount: 310},
	}
}

func anyArgs(n int) []any {
	args := make([]any, n)
	for i := range args {
		args[i] = pgxmock.AnyArg()
	}
	return args
}

func expectLocks(mock pgxmock.PgxPoolIface) {
	mock.ExpectBegin()
	mock.ExpectExec("pg_advisory_xact_lock").WithArgs("resource:chair-1:2026-04-02").
		WillReturnResult(pgxmock.NewResult("SELECT", 1))
	mock.ExpectExec("pg_advisory_xact_lock").WithArgs("staff:staff-1:2026-04-02").
		WillReturnResult(pgxmock.NewResult("SELECT", 1))
}

func TestPostgresRepository_Commit(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	g := testGraph()
	start := g.StartAt

	expectLocks(mock)
	mock.ExpectExec("UPDATE products").WithArgs("serum", 2).WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	mock.ExpectExec("UPDATE promotions").WithArgs("promo-1").WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	bookingArgs := anyArgs(40)
	bookingArgs[0] = testBookingID
	bookingArgs[39] = true
	mock.ExpectExec("INSERT INTO bookings").WithArgs(bookingArgs...).WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectExec("INSERT INTO booking_services").
		WithArgs(testBookingID, 0, "cut", pgxmock.AnyArg(), 100.0, 60, start, start.Add(60*time.Minute)).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectQuery("INSERT INTO booking_participants").
		WithArgs(testBookingID, 0, "Bea", pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnRows(pgxmock.NewRows([]string{"id"}).AddRow("part-1"))
	mock.ExpectExec("INSERT INTO booking_participant_services").
		WithArgs("part-1", 0, "color", 150.0, 90, start, start.Add(90*time.Minute)).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectExec("INSERT INTO booking_addons").WithArgs(testBookingID, "mask").
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	for i := 0; i < 2; i++ {
		mock.ExpectExec("INSERT INTO booking_products").WithArgs(testBookingID, "serum", 1, 30.0, 30.0).
			WillReturnResult(pgxmock.NewResult("INSERT", 1))
	}
	mock.ExpectExec("INSERT INTO booking_resources").
		WithArgs(testBookingID, "chair-1", start, start.Add(60*time.Minute)).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectExec("INSERT INTO outbox").
		WithArgs(pgxmock.AnyArg(), testBookingID, events.TypeBookingCreated, pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectExec("INSERT INTO outbox").
		WithArgs(pgxmock.AnyArg(), testBookingID, events.TypeBookingConflictOverridden, pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectCommit()

	repo := newPostgresRepositoryWithDB(mock, nil)
	var sawStore bool
	result, err := repo.Commit(context.Background(), g, func(_ context.Context, store scheduling.AvailabilityStore) (scheduling.Decision, error) {
		sawStore = store != nil
		return scheduling.Decision{
			State:      scheduling.StateOverriddenConflict,
			Staff:      scheduling.ConflictResult{HasConflict: true, ConflictingBookingIDs: []string{"other"}},
			Overridden: true,
		}, nil
	})
	require.NoError(t, err)
	assert.True(t, sawStore)
	assert.True(t, result.Decision.Overridden)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresRepository_RecheckRejects(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	expectLocks(mock)
	mock.ExpectRollback()

	repo := newPostgresRepositoryWithDB(mock, nil)
	_, err = repo.Commit(context.Background(), testGraph(), func(context.Context, scheduling.AvailabilityStore) (scheduling.Decision, error) {
		return scheduling.Decision{State: scheduling.StateRejected}, scheduling.ErrSlotTaken
	})
	assert.ErrorIs(t, err, scheduling.ErrSlotTaken)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresRepository_StockAndPromotionGuards(t *testing.T) {
	clean := func(context.Context, scheduling.AvailabilityStore) (scheduling.Decision, error) {
		return scheduling.Decision{State: scheduling.StateClean}, nil
	}

	t.Run("stock gone", func(t *testing.T) {
		mock, err := pgxmock.NewPool()
		require.NoError(t, err)
		defer mock.Close()

		expectLocks(mock)
		mock.ExpectExec("UPDATE products").WithArgs("serum", 2).WillReturnResult(pgxmock.NewResult("UPDATE", 0))
		mock.ExpectRollback()

		_, err = newPostgresRepositoryWithDB(mock, nil).Commit(context.Background(), testGraph(), clean)
		assert.ErrorIs(t, err, ErrInsufficientStock)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("promotion exhausted", func(t *testing.T) {
		mock, err := pgxmock.NewPool()
		require.NoError(t, err)
		defer mock.Close()

		expectLocks(mock)
		mock.ExpectExec("UPDATE products").WithArgs("serum", 2).WillReturnResult(pgxmock.NewResult("UPDATE", 1))
		mock.ExpectExec("UPDATE promotions").WithArgs("promo-1").WillReturnResult(pgxmock.NewResult("UPDATE", 0))
		mock.ExpectRollback()

		_, err = newPostgresRepositoryWithDB(mock, nil).Commit(context.Background(), testGraph(), clean)
		assert.ErrorIs(t, err, ErrValidation)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestLockKeys(t *testing.T) {
	start := time.Date(2026, 4, 2, 23, 30, 0, 0, time.UTC)
	g := &Graph{
		StartAt:        start,
		EndAt:          start.Add(90 * time.Minute),
		ResourceWindow: scheduling.Window{Start: start, End: start.Add(30 * time.Minute)},
		Services: []ServiceLine{
			{StaffID: "staff-b"},
			{StaffID: "staff-a"},
			{StaffID: "staff-b"},
		},
		ResourceIDs: []string{"room-1"},
	}

	assert.Equal(t, []string{
		"resource:room-1:2026-04-02",
		"staff:staff-a:2026-04-02",
		"staff:staff-a:2026-04-03",
		"staff:staff-b:2026-04-02",
		"staff:staff-b:2026-04-03",
	}, LockKeys(g))
}
