package api

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRateLimitAuth(t *testing.T) {
	cfg := testConfig()
	cfg.RateLimitPerMinute = 1
	cfg.RateLimitBurst = 2
	ts := setupTestServer(t, cfg)

	creds := map[string]any{"email": "ghost@example.com", "password": "secret123"}

	for range 2 {
		resp := ts.api.Post("/api/auth/login", creds)
		assert.Equal(t, http.StatusUnauthorized, resp.Code)
	}

	resp := ts.api.Post("/api/auth/login", creds)
	require.Equal(t, http.StatusTooManyRequests, resp.Code)
	assert.NotEmpty(t, resp.Header().Get("Retry-After"))
	assert.NotEmpty(t, errorMessage(t, resp))

	// Other routes are not limited.
	resp = ts.api.Get("/api/books")
	assert.Equal(t, http.StatusOK, resp.Code)
}

func TestRateLimitAuth_PerClient(t *testing.T) {
	cfg := testConfig()
	cfg.RateLimitPerMinute = 1
	cfg.RateLimitBurst = 1
	ts := setupTestServer(t, cfg)

	creds := map[string]any{"email": "ghost@example.com", "password": "secret123"}

	resp := ts.api.Post("/api/auth/login", "X-Forwarded-For: 10.0.0.1", creds)
	assert.Equal(t, http.StatusUnauthorized, resp.Code)

	resp = ts.api.Post("/api/auth/login", "X-Forwarded-For: 10.0.0.1", creds)
	assert.Equal(t, http.StatusTooManyRequests, resp.Code)

	resp = ts.api.Post("/api/auth/login", "X-Forwarded-For: 10.0.0.2", creds)
	assert.Equal(t, http.StatusUnauthorized, resp.Code)
}

func TestBearerToken(t *testing.T) {
	tests := []struct {
		header string
		token  string
		ok     bool
	}{
		{"Bearer abc", "abc", true},
		{"bearer abc", "abc", true},
		{"  Bearer   abc  ", "abc", true},
		{"Bearer", "", false},
		{"Basic abc", "", false},
		{"", "", false},
	}

	for _, tt := range tests {
		token, ok := bearerToken(tt.header)
		assert.Equal(t, tt.ok, ok, tt.header)
		assert.Equal(t, tt.token, token, tt.header)
	}
}

func TestCORSPreflight(t *testing.T) {
	ts := setupTestServer(t, testConfig())

	req := httptest.NewRequest(http.MethodOptions, "/api/books", nil)
	req.Header.Set("Origin", "http://localhost:8081")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	req.Header.Set("Access-Control-Request-Headers", "Authorization, Content-Type")
	w := httptest.NewRecorder()

	ts.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "*", w.Header().Get("Access-Control-Allow-Origin"))
}
