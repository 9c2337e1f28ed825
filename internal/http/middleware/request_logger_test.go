package middleware

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/wolfman30/glowbook-platform/pkg/logging"
)

func TestRequestLoggerRecordsStatus(t *testing.T) {
	var buf bytes.Buffer
	logger := logging.NewWithWriter(&buf, "info")

	handler := RequestLogger(logger)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusConflict)
	}))
	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodPost, "/v1/providers/p/bookings", nil))

	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("decode log line: %v (%s)", err, buf.String())
	}
	if entry["msg"] != "request completed" {
		t.Fatalf("unexpected message %v", entry["msg"])
	}
	if entry["status"] != float64(http.StatusConflict) {
		t.Fatalf("expected status 409, got %v", entry["status"])
	}
	if entry["path"] != "/v1/providers/p/bookings" {
		t.Fatalf("unexpected path %v", entry["path"])
	}
}
