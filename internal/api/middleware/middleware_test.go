package middleware

import (
	"compress/gzip"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var okHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_, _ = w.Write([]byte(`{"ok":true}`))
})

func TestCORSMiddleware(t *testing.T) {
	tests := []struct {
		name    string
		allowed []string
		origin  string
		want    string
	}{
		{"wildcard", []string{"*"}, "https://app.example.com", "*"},
		{"empty list allows any", nil, "https://app.example.com", "*"},
		{"listed origin echoed", []string{"https://app.example.com"}, "https://app.example.com", "https://app.example.com"},
		{"unlisted origin", []string{"https://app.example.com"}, "https://evil.example.com", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/api/plans/a", nil)
			req.Header.Set("Origin", tt.origin)
			w := httptest.NewRecorder()

			CORSMiddleware(tt.allowed)(okHandler).ServeHTTP(w, req)
			assert.Equal(t, tt.want, w.Header().Get("Access-Control-Allow-Origin"))
		})
	}

	preflight := httptest.NewRequest(http.MethodOptions, "/api/chat-with-plan", nil)
	w := httptest.NewRecorder()
	CORSMiddleware(nil)(http.NotFoundHandler()).ServeHTTP(w, preflight)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestRequestIDMiddleware(t *testing.T) {
	var sawLogger bool
	handler := RequestIDMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sawLogger = zerolog.Ctx(r.Context()).GetLevel() != zerolog.Disabled
	}))

	w := httptest.NewRecorder()
	handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))
	generated := w.Header().Get(RequestIDHeader)
	assert.Len(t, generated, 36)
	assert.True(t, sawLogger)

	const supplied = "7f3c1f0e-9a57-4a4e-8a2f-0c1d2e3f4a5b"
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(RequestIDHeader, supplied)
	w = httptest.NewRecorder()
	handler.ServeHTTP(w, req)
	assert.Equal(t, supplied, w.Header().Get(RequestIDHeader))

	req = httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(RequestIDHeader, "not-a-uuid\nX-Injected: 1")
	w = httptest.NewRecorder()
	handler.ServeHTTP(w, req)
	assert.NotEqual(t, "not-a-uuid\nX-Injected: 1", w.Header().Get(RequestIDHeader))
}

func TestCompression(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/api/plans/a", nil)
	req.Header.Set("Accept-Encoding", "gzip")
	w := httptest.NewRecorder()
	Compression(okHandler).ServeHTTP(w, req)

	require.Equal(t, "gzip", w.Header().Get("Content-Encoding"))
	gz, err := gzip.NewReader(w.Body)
	require.NoError(t, err)
	body, err := io.ReadAll(gz)
	require.NoError(t, err)
	assert.JSONEq(t, `{"ok":true}`, string(body))

	stream := httptest.NewRequest(http.MethodGet, "/api/stream/plans/a", nil)
	stream.Header.Set("Accept-Encoding", "gzip")
	w = httptest.NewRecorder()
	Compression(okHandler).ServeHTTP(w, stream)
	assert.Empty(t, w.Header().Get("Content-Encoding"))
	assert.JSONEq(t, `{"ok":true}`, w.Body.String())
}

func TestObservabilityMiddleware_UsesRoutePattern(t *testing.T) {
	mux := http.NewServeMux()
	mux.Handle("GET /api/plans/{id}", okHandler)

	req := httptest.NewRequest(http.MethodGet, "/api/plans/trip-123", nil)
	assert.Equal(t, "GET /api/plans/{id}", routeOf(mux, req))

	missing := httptest.NewRequest(http.MethodGet, "/nope", nil)
	assert.Equal(t, "unmatched", routeOf(mux, missing))
	assert.Equal(t, "/nope", routeOf(nil, missing))

	w := httptest.NewRecorder()
	ObservabilityMiddleware(mux)(mux).ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)
}
