package trace

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"spendwise/internal/log"
)

func newLogged(t *testing.T) (*log.Logger, *bytes.Buffer) {
	t.Helper()
	var buf bytes.Buffer
	l, err := log.New(log.Config{Level: slog.LevelInfo, Format: "json", Output: &buf})
	require.NoError(t, err)
	return l, &buf
}

func TestMiddlewareAssignsRequestID(t *testing.T) {
	logger, buf := newLogged(t)
	m := NewMiddleware(func(*http.Request) string { return "203.0.113.1" }, logger)

	var seen string
	h := log.Middleware(logger)(m.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = GetRequestID(r.Context())
		w.WriteHeader(http.StatusNotFound)
	})))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/budgets", nil))

	assert.True(t, strings.HasPrefix(seen, "req_"))
	assert.Equal(t, seen, rec.Header().Get(HeaderRequestID))
	assert.Equal(t, int64(1), m.TotalRequests())

	var rec0 map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &rec0))
	assert.Equal(t, "WARN", rec0["level"])
	assert.Equal(t, float64(http.StatusNotFound), rec0[log.FieldStatusCode])
	assert.Equal(t, "203.0.113.1", rec0[log.FieldClientIP])
}

func TestMiddlewareReusesIncomingID(t *testing.T) {
	logger, _ := newLogged(t)
	m := NewMiddleware(nil, logger)
	h := m.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(HeaderRequestID, "client-42")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, "client-42", rec.Header().Get(HeaderRequestID))

	req.Header.Set(HeaderRequestID, "bad id with spaces")
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.True(t, strings.HasPrefix(rec.Header().Get(HeaderRequestID), "req_"))
}

func TestResponseWriterFlushes(t *testing.T) {
	rec := httptest.NewRecorder()
	rw := &responseWriter{ResponseWriter: rec, statusCode: http.StatusOK}
	require.NoError(t, http.NewResponseController(rw).Flush())
	assert.True(t, rec.Flushed)
}
