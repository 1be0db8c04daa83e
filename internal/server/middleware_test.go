package server

import (
	"bytes"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/ddunnock/sekb-go/internal/logging"
)

// TestRequestLogger_SetsRequestIDHeader verifies that every response carries
// the server-assigned request ID so clients can quote it in bug reports.
func TestRequestLogger_SetsRequestIDHeader(t *testing.T) {
	t.Parallel()

	h := requestLogger(slog.New(slog.DiscardHandler), okHandler)
	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/health", nil))

	id := w.Header().Get(requestIDHeader)
	if len(id) != 16 {
		t.Errorf("want a 16-hex-char request ID header, got %q", id)
	}
}

// TestRequestLogger_InjectsContextLogger verifies that handlers below the
// middleware see a context logger carrying the request ID attribute.
func TestRequestLogger_InjectsContextLogger(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	base := slog.New(slog.NewJSONHandler(&buf, nil))

	inner := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		logging.FromContext(r.Context()).Info("inner")
		w.WriteHeader(http.StatusOK)
	})

	h := requestLogger(base, inner)
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodPost, "/api/search", nil))

	out := buf.String()
	if !strings.Contains(out, "request_id") {
		t.Errorf("inner log entry missing request_id: %s", out)
	}
	if !strings.Contains(out, "/api/search") {
		t.Errorf("inner log entry missing path attribute: %s", out)
	}
}

// TestRequestLogger_RecordsStatusAndBytes verifies the completion log entry
// reports the handler's status code and body size.
func TestRequestLogger_RecordsStatusAndBytes(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	base := slog.New(slog.NewJSONHandler(&buf, nil))

	inner := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = w.Write([]byte("store down"))
	})

	h := requestLogger(base, inner)
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/api/stats", nil))

	out := buf.String()
	if !strings.Contains(out, `"status":503`) {
		t.Errorf("completion entry missing status: %s", out)
	}
	if !strings.Contains(out, `"bytes":10`) {
		t.Errorf("completion entry missing body size: %s", out)
	}
}
