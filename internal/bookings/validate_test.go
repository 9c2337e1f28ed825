package bookings

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDraftValidator(t *testing.T) {
	v := NewDraftValidator(func() time.Time { return testNow })
	lat := 40.7

	tests := []struct {
		name   string
		mutate func(d *Draft)
		want   string
	}{
		{name: "valid salon draft"},
		{
			name: "valid house call",
			mutate: func(d *Draft) {
				d.LocationType = LocationAtHome
				d.LocationID = ""
				d.Address = &Address{Line1: "1 Main St", Latitude: &lat, Longitude: &lat}
			},
		},
		{
			name:   "no services",
			mutate: func(d *Draft) { d.Services = nil },
			want:   "services is required",
		},
		{
			name:   "start in the past",
			mutate: func(d *Draft) { d.StartAt = testNow.Add(-time.Hour) },
			want:   "start_at must be in the future",
		},
		{
			name:   "unknown location type",
			mutate: func(d *Draft) { d.LocationType = "moon" },
			want:   "location_type must be at_home or at_salon",
		},
		{
			name:   "house call without address",
			mutate: func(d *Draft) { d.LocationType = LocationAtHome },
			want:   "address is required for at_home bookings",
		},
		{
			name:   "salon without location",
			mutate: func(d *Draft) { d.LocationID = "" },
			want:   "location_id is required for at_salon bookings",
		},
		{
			name:   "half geocoded address",
			mutate: func(d *Draft) { d.Address = &Address{Line1: "1 Main St", Latitude: &lat} },
			want:   "latitude and longitude must be given together",
		},
		{
			name: "participant without contact",
			mutate: func(d *Draft) {
				d.Participants = []Participant{{Name: "Bea", ServiceIDs: []string{"cut"}}}
			},
			want: "participants[0].email needs an email or phone",
		},
		{
			name: "participant with bad phone",
			mutate: func(d *Draft) {
				d.Participants = []Participant{{Name: "Bea", Phone: "555", ServiceIDs: []string{"cut"}}}
			},
			want: "participants[0].phone failed e164",
		},
		{
			name:   "zero quantity",
			mutate: func(d *Draft) { d.Products = []ProductSelection{{ProductID: "serum"}} },
			want:   "products[0].quantity failed gt=0",
		},
		{
			name:   "negative tip",
			mutate: func(d *Draft) { d.TipAmount = -1 },
			want:   "tip_amount failed gte=0",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := salonDraft(ServiceSelection{OfferingID: "cut"})
			if tt.mutate != nil {
				tt.mutate(&d)
			}
			err := v.Validate(d)
			if tt.want == "" {
				assert.NoError(t, err)
				return
			}
			e := requireKind(t, err, KindValidation)
			assert.Contains(t, e.Message, tt.want)
		})
	}
}

func TestError_StatusAndMatching(t *testing.T) {
	cases := map[Kind]int{
		KindValidation:          400,
		KindNotFound:            404,
		KindProviderInactive:    400,
		KindSubscriptionLimit:   403,
		KindInsufficientStock:   400,
		KindMinimumOrderNotMet:  400,
		KindConflict:            409,
		KindResourceUnavailable: 409,
		KindInternal:            500,
	}
	for kind, status := range cases {
		e := newError(kind, "x")
		assert.Equal(t, status, e.HTTPStatus(), kind)
		assert.ErrorIs(t, e, &Error{Kind: kind})
	}
	assert.NotErrorIs(t, newError(KindConflict, "x"), ErrResourceUnavailable)

	wrapped := AsError(errBoom)
	require.NotNil(t, wrapped)
	assert.Equal(t, KindInternal, wrapped.Kind)
	assert.Nil(t, AsError(nil))
}
