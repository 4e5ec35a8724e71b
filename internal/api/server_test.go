package api

import (
	"bytes"
	"context"
	"encoding/json"
	"image"
	"image/color"
	"image/png"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync/atomic"
	"testing"
	"time"

	"github.com/danielgtaylor/huma/v2/humatest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bookwormapp/bookworm/internal/auth"
	"github.com/bookwormapp/bookworm/internal/media/images"
	"github.com/bookwormapp/bookworm/internal/search"
	"github.com/bookwormapp/bookworm/internal/service"
	"github.com/bookwormapp/bookworm/internal/store"
)

// countingHost decorates an images.Host and counts uploads.
type countingHost struct {
	images.Host
	uploads atomic.Int32
}

func (h *countingHost) Upload(ctx context.Context, dataURL string) (*images.Uploaded, error) {
	h.uploads.Add(1)
	return h.Host.Upload(ctx, dataURL)
}

// testServer wraps the API server for testing.
type testServer struct {
	*Server
	api    humatest.TestAPI
	store  *store.BadgerStore
	host   *countingHost
	tokens *auth.TokenService
}

func testConfig() Config {
	return Config{
		Version:            "test",
		BodyLimit:          5 << 20,
		AllowedOrigins:     []string{"*"},
		RateLimitPerMinute: 600,
		RateLimitBurst:     100,
	}
}

// setupTestServer creates a server over an in-memory store, a temp image
// directory and an in-memory search index.
func setupTestServer(t *testing.T, cfg Config) *testServer {
	t.Helper()

	st, err := store.New("", nil, store.Options{InMemory: true})
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })

	key, err := auth.LoadOrGenerateKey(t.TempDir())
	require.NoError(t, err)
	tokens, err := auth.NewTokenService(key, time.Hour)
	require.NoError(t, err)

	storage, err := images.NewStorageWithSubdir(t.TempDir(), "images")
	require.NoError(t, err)
	host := &countingHost{
		Host: images.NewLocalHost(storage, images.NewProcessor(256, nil), "http://localhost:3000", nil),
	}

	index, err := search.NewSearchIndex(search.Options{InMemory: true})
	require.NoError(t, err)
	t.Cleanup(func() { _ = index.Close() })

	services := &Services{
		Auth:  service.NewAuthService(st, tokens, nil),
		Books: service.NewBookService(st, host, index, nil),
	}

	srv := NewServer(st, services, storage, index, cfg, nil)
	t.Cleanup(srv.Shutdown)

	return &testServer{
		Server: srv,
		api:    humatest.Wrap(t, srv.API()),
		store:  st,
		host:   host,
		tokens: tokens,
	}
}

// registerUser registers an account through the API and returns its token and ID.
func (ts *testServer) registerUser(t *testing.T, username string) (token, userID string) {
	t.Helper()

	resp := ts.api.Post("/api/auth/register", map[string]any{
		"username": username,
		"email":    username + "@example.com",
		"password": "secret123",
	})
	require.Equal(t, http.StatusCreated, resp.Code, resp.Body.String())

	var body AuthResponse
	decode(t, resp, &body)
	return body.Token, body.User.ID
}

// createBook lists a book through the API as the token's owner.
func (ts *testServer) createBook(t *testing.T, token, title string) BookResponse {
	t.Helper()

	resp := ts.api.Post("/api/books", bearer(token), map[string]any{
		"title":   title,
		"caption": "Worth every page",
		"image":   testImage(t),
		"rating":  5,
	})
	require.Equal(t, http.StatusCreated, resp.Code, resp.Body.String())

	var book BookResponse
	decode(t, resp, &book)
	return book
}

func bearer(token string) string {
	return "Authorization: Bearer " + token
}

func decode(t *testing.T, resp *httptest.ResponseRecorder, v any) {
	t.Helper()
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), v), resp.Body.String())
}

func errorMessage(t *testing.T, resp *httptest.ResponseRecorder) string {
	t.Helper()
	var body struct {
		Message string `json:"message"`
	}
	decode(t, resp, &body)
	return body.Message
}

// testImage returns a small PNG as a data URL.
func testImage(t *testing.T) string {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 8, 8))
	for y := range 8 {
		for x := range 8 {
			img.Set(x, y, color.RGBA{R: uint8(x * 30), G: uint8(y * 30), B: 90, A: 255})
		}
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return images.EncodeDataURL("image/png", buf.Bytes())
}

func urlPath(t *testing.T, raw string) string {
	t.Helper()
	u, err := url.Parse(raw)
	require.NoError(t, err)
	return u.Path
}

func TestServer_OpenAPI(t *testing.T) {
	ts := setupTestServer(t, testConfig())

	resp := ts.api.Get("/openapi.json")
	require.Equal(t, http.StatusOK, resp.Code)

	var doc map[string]any
	decode(t, resp, &doc)
	paths, ok := doc["paths"].(map[string]any)
	require.True(t, ok)
	assert.Contains(t, paths, "/api/books")
	assert.Contains(t, paths, "/api/auth/login")
}

func TestServer_UnknownRoute(t *testing.T) {
	ts := setupTestServer(t, testConfig())

	resp := ts.api.Get("/api/nope")
	assert.Equal(t, http.StatusNotFound, resp.Code)
	assert.Equal(t, "Not found", errorMessage(t, resp))
}

func TestServer_RequestIDHeaderAccepted(t *testing.T) {
	ts := setupTestServer(t, testConfig())

	resp := ts.api.Get("/health", "X-Request-ID: abc-123")
	assert.Equal(t, http.StatusOK, resp.Code)
}
