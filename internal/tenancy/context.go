package tenancy

import (
	"context"
	"net/http"
	"strings"
)

type ctxKey string

const customerKey ctxKey = "glowbook.customer_id"

// CustomerHeader carries the authenticated customer id set by the gateway.
const CustomerHeader = "X-Customer-ID"

// WithCustomerID stores the customer id in context.
func WithCustomerID(ctx context.Context, customerID string) context.Context {
	return context.WithValue(ctx, customerKey, customerID)
}

// CustomerIDFromContext extracts the customer id if present.
func CustomerIDFromContext(ctx context.Context) (string, bool) {
	val := ctx.Value(customerKey)
	if val == nil {
		return "", false
	}
	customerID, ok := val.(string)
	return customerID, ok && customerID != ""
}

// CustomerMiddleware copies the gateway's customer header onto the context.
// Requests without it are rejected with 401.
func CustomerMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		customerID := strings.TrimSpace(r.Header.Get(CustomerHeader))
		if customerID == "" {
			http.Error(w, "missing customer", http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r.WithContext(WithCustomerID(r.Context(), customerID)))
	})
}
