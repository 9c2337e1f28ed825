package bookings

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/wolfman30/glowbook-platform/internal/tenancy"
	"github.com/wolfman30/glowbook-platform/pkg/logging"
)

const maxDraftBytes = 1 << 20

type pipeline interface {
	CreateBooking(ctx context.Context, customerID string, d Draft) (*CreationResult, error)
	QuoteBooking(ctx context.Context, customerID string, d Draft) (*Quote, error)
}

// Handler exposes booking creation over HTTP.
type Handler struct {
	service pipeline
	logger  *logging.Logger
}

// NewHandler creates the booking HTTP handler.
func NewHandler(service pipeline, logger *logging.Logger) *Handler {
	if logger == nil {
		logger = logging.Default()
	}
	return &Handler{service: service, logger: logger}
}

// Routes mounts under /v1/providers/{providerID}/bookings.
func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Post("/", h.Create)
	r.Post("/quote", h.Quote)
	return r
}

type errorResponse struct {
	Code    Kind   `json:"code"`
	Message string `json:"message"`
}

// Create handles POST /v1/providers/{providerID}/bookings.
func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	customerID, d, ok := h.decode(w, r)
	if !ok {
		return
	}
	result, err := h.service.CreateBooking(r.Context(), customerID, d)
	if err != nil {
		h.writeError(w, d.ProviderID, err)
		return
	}
	writeJSON(w, http.StatusCreated, result)
}

// Quote handles POST /v1/providers/{providerID}/bookings/quote.
func (h *Handler) Quote(w http.ResponseWriter, r *http.Request) {
	customerID, d, ok := h.decode(w, r)
	if !ok {
		return
	}
	quote, err := h.service.QuoteBooking(r.Context(), customerID, d)
	if err != nil {
		h.writeError(w, d.ProviderID, err)
		return
	}
	writeJSON(w, http.StatusOK, quote)
}

func (h *Handler) decode(w http.ResponseWriter, r *http.Request) (string, Draft, bool) {
	var d Draft
	customerID, ok := tenancy.CustomerIDFromContext(r.Context())
	if !ok {
		writeJSON(w, http.StatusUnauthorized, errorResponse{Code: "UNAUTHORIZED", Message: "missing customer"})
		return "", d, false
	}
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxDraftBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&d); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Code: KindValidation, Message: "invalid JSON body"})
		return "", d, false
	}
	d.ProviderID = chi.URLParam(r, "providerID")
	return customerID, d, true
}

func (h *Handler) writeError(w http.ResponseWriter, providerID string, err error) {
	e := AsError(err)
	if e.Kind == KindInternal {
		h.logger.Error("booking request failed", "provider_id", providerID, "error", err)
		writeJSON(w, http.StatusInternalServerError, errorResponse{Code: KindInternal, Message: "internal server error"})
		return
	}
	writeJSON(w, e.HTTPStatus(), errorResponse{Code: e.Kind, Message: e.Message})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
