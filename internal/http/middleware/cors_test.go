package middleware

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func okHandler(called *bool) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if called != nil {
			*called = true
		}
		w.WriteHeader(http.StatusOK)
	})
}

func TestCORSOrigins(t *testing.T) {
	cases := []struct {
		name    string
		allowed []string
		origin  string
		want    string
	}{
		{name: "listed", allowed: []string{"https://book.example"}, origin: "https://book.example", want: "https://book.example"},
		{name: "listed with trailing slash", allowed: []string{"https://book.example/"}, origin: "https://book.example", want: "https://book.example"},
		{name: "unknown", allowed: []string{"https://book.example"}, origin: "https://evil.example", want: ""},
		{name: "wildcard", allowed: []string{" ", "*"}, origin: "https://random.example", want: "https://random.example"},
		{name: "no origin", allowed: []string{"*"}, origin: "", want: ""},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/v1/providers/p/bookings/quote", nil)
			if tc.origin != "" {
				req.Header.Set("Origin", tc.origin)
			}
			rec := httptest.NewRecorder()
			CORS(tc.allowed)(okHandler(nil)).ServeHTTP(rec, req)

			if got := rec.Header().Get("Access-Control-Allow-Origin"); got != tc.want {
				t.Fatalf("expected allow origin %q, got %q", tc.want, got)
			}
			if tc.want != "" && !strings.Contains(rec.Header().Get("Access-Control-Allow-Headers"), "X-Customer-ID") {
				t.Fatalf("expected customer header to be allowed")
			}
		})
	}
}

func TestCORSHandlesPreflight(t *testing.T) {
	called := false
	req := httptest.NewRequest(http.MethodOptions, "/v1/providers/p/bookings", nil)
	req.Header.Set("Origin", "https://book.example")
	req.Header.Set("Access-Control-Request-Method", "POST")
	rec := httptest.NewRecorder()

	CORS([]string{"https://book.example"})(okHandler(&called)).ServeHTTP(rec, req)

	if called {
		t.Fatalf("expected handler to not be called on preflight")
	}
	if rec.Code != http.StatusNoContent {
		t.Fatalf("expected status %d, got %d", http.StatusNoContent, rec.Code)
	}
}
