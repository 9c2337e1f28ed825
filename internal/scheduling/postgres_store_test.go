package scheduling

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPostgresAvailability_OverlappingBookings(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	staff := uuid.New()
	w := Window{Start: tenAM, End: tenAM.Add(time.Hour)}
	mock.ExpectQuery("FROM bookings b").
		WithArgs(staff, w.Start, w.End, ActiveStatuses).
		WillReturnRows(pgxmock.NewRows([]string{"id"}).AddRow("b-1").AddRow("b-2"))

	store := NewPostgresAvailability(mock)
	ids, err := store.OverlappingBookings(context.Background(), staff.String(), w)
	require.NoError(t, err)
	assert.Equal(t, []string{"b-1", "b-2"}, ids)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresAvailability_ResourceConflicts(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	provider := uuid.NewString()
	free, busy, broken, missing, foreign := uuid.New(), uuid.New(), uuid.New(), uuid.New(), uuid.New()
	w := Window{Start: tenAM, End: tenAM.Add(45 * time.Minute)}
	mock.ExpectQuery("FROM resources r").
		WithArgs([]uuid.UUID{free, busy, broken, missing, foreign}, w.Start, w.End, ActiveStatuses).
		WillReturnRows(pgxmock.NewRows([]string{"id", "provider_id", "booking_id", "is_active"}).
			AddRow(free.String(), provider, "", true).
			AddRow(busy.String(), provider, "b-9", true).
			AddRow(broken.String(), provider, "", false).
			AddRow(foreign.String(), uuid.NewString(), "", true))

	store := NewPostgresAvailability(mock)
	conflicts, err := store.ResourceConflicts(context.Background(), provider,
		[]string{free.String(), busy.String(), broken.String(), missing.String(), foreign.String(), "garbage"}, w)
	require.NoError(t, err)
	require.Len(t, conflicts, 5)
	assert.Equal(t, ResourceConflict{ResourceID: "garbage", Reason: "unknown resource"}, conflicts[0])
	assert.Equal(t, "b-9", conflicts[1].BookingID)
	assert.Equal(t, "out of service", conflicts[2].Reason)
	assert.Equal(t, ResourceConflict{ResourceID: foreign.String(), Reason: "not offered by this provider"}, conflicts[3])
	assert.Equal(t, missing.String(), conflicts[4].ResourceID)
	assert.NoError(t, mock.ExpectationsWereMet())
}
