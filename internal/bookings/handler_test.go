package bookings

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wolfman30/glowbook-platform/internal/pricing"
	"github.com/wolfman30/glowbook-platform/internal/tenancy"
	"github.com/wolfman30/glowbook-platform/pkg/logging"
)

type stubPipeline struct {
	gotCustomer string
	gotDraft    Draft
	result      *CreationResult
	quote       *Quote
	err         error
}

func (s *stubPipeline) CreateBooking(_ context.Context, customerID string, d Draft) (*CreationResult, error) {
	s.gotCustomer, s.gotDraft = customerID, d
	return s.result, s.err
}

func (s *stubPipeline) QuoteBooking(_ context.Context, customerID string, d Draft) (*Quote, error) {
	s.gotCustomer, s.gotDraft = customerID, d
	return s.quote, s.err
}

func newTestRouter(p pipeline) http.Handler {
	r := chi.NewRouter()
	r.Use(tenancy.CustomerMiddleware)
	r.Mount("/v1/providers/{providerID}/bookings", NewHandler(p, logging.Discard()).Routes())
	return r
}

const validBody = `{
	"services": [{"offering_id": "cut", "staff_id": "staff-1"}],
	"start_at": "2026-04-02T10:00:00Z",
	"location_type": "at_salon",
	"location_id": "loc-downtown"
}`

func post(t *testing.T, h http.Handler, path, body string, customer bool) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	if customer {
		req.Header.Set(tenancy.CustomerHeader, testCustomer)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestHandler_Create(t *testing.T) {
	stub := &stubPipeline{result: &CreationResult{
		BookingID:      "booking-1",
		BookingNumber:  "BK-1",
		Status:         StatusPending,
		PriceBreakdown: pricing.Breakdown{TotalAmount: 110},
	}}
	rec := post(t, newTestRouter(stub), "/v1/providers/prov-1/bookings", validBody, true)

	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	assert.Equal(t, testCustomer, stub.gotCustomer)
	assert.Equal(t, "prov-1", stub.gotDraft.ProviderID)
	assert.Equal(t, "staff-1", stub.gotDraft.Services[0].StaffID)

	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "BK-1", body["booking_number"])
	assert.Equal(t, 110.0, body["price_breakdown"].(map[string]any)["total_amount"])
}

func TestHandler_Errors(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		body     string
		customer bool
		status   int
		code     string
	}{
		{name: "no customer", body: validBody, status: http.StatusUnauthorized},
		{name: "bad json", body: `{"services":`, customer: true, status: http.StatusBadRequest, code: "VALIDATION_ERROR"},
		{name: "unknown field", body: `{"provider_id":"x"}`, customer: true, status: http.StatusBadRequest, code: "VALIDATION_ERROR"},
		{name: "conflict", body: validBody, customer: true, err: newError(KindConflict, "time slot no longer available"), status: http.StatusConflict, code: "CONFLICT"},
		{name: "quota", body: validBody, customer: true, err: newError(KindSubscriptionLimit, "limit"), status: http.StatusForbidden, code: "SUBSCRIPTION_LIMIT_EXCEEDED"},
		{name: "internal", body: validBody, customer: true, err: errBoom, status: http.StatusInternalServerError, code: "INTERNAL"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			stub := &stubPipeline{err: tt.err}
			rec := post(t, newTestRouter(stub), "/v1/providers/prov-1/bookings", tt.body, tt.customer)
			assert.Equal(t, tt.status, rec.Code)
			if tt.code == "" {
				return
			}
			var body errorResponse
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
			assert.Equal(t, Kind(tt.code), body.Code)
			assert.NotContains(t, body.Message, "boom")
		})
	}
}

func TestHandler_Quote(t *testing.T) {
	stub := &stubPipeline{quote: &Quote{ProviderID: "prov-1", Currency: "USD", PriceBreakdown: pricing.Breakdown{Subtotal: 100}}}
	rec := post(t, newTestRouter(stub), "/v1/providers/prov-1/bookings/quote", validBody, true)

	require.Equal(t, http.StatusOK, rec.Code)
	var q Quote
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &q))
	assert.Equal(t, 100.0, q.PriceBreakdown.Subtotal)
}
