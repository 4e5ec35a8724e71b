package main

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeBackend serves a six-book feed in pages and a login endpoint.
func fakeBackend(t *testing.T) *httptest.Server {
	t.Helper()

	books := []map[string]any{}
	for i := 1; i <= 6; i++ {
		books = append(books, map[string]any{
			"id": "book-" + strconv.Itoa(i), "title": "Book " + strconv.Itoa(i), "caption": "caption",
			"image": "http://localhost/images/x.png", "rating": 4,
			"user": map[string]any{"id": "usr-1", "username": "reader"},
		})
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/books", func(w http.ResponseWriter, r *http.Request) {
		page, _ := strconv.Atoi(r.URL.Query().Get("page"))
		limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
		start := min((page-1)*limit, len(books))
		end := min(start+limit, len(books))
		_ = json.NewEncoder(w).Encode(map[string]any{
			"books": books[start:end], "currentPage": page,
			"totalPages": (len(books) + limit - 1) / limit, "totalBooks": len(books),
		})
	})
	mux.HandleFunc("POST /api/auth/login", func(w http.ResponseWriter, _ *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{
			"user":  map[string]any{"id": "usr-1", "username": "reader", "email": "reader@example.com"},
			"token": "v4.local.token",
		})
	})
	mux.HandleFunc("GET /api/books/user", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer v4.local.token" {
			w.WriteHeader(http.StatusUnauthorized)
			_, _ = w.Write([]byte(`{"message":"Unauthorized"}`))
			return
		}
		_, _ = w.Write([]byte(`[]`))
	})

	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)
	return server
}

func TestRun_Feed(t *testing.T) {
	server := fakeBackend(t)
	var out bytes.Buffer

	err := run(context.Background(), []string{"-api", server.URL, "-home", t.TempDir(), "feed", "-pages", "2"}, &out)
	require.NoError(t, err)

	assert.Contains(t, out.String(), "Book 1")
	assert.Contains(t, out.String(), "Book 6")
	assert.Contains(t, out.String(), "by reader")
	assert.Contains(t, out.String(), "end of feed")
}

func TestRun_LoginPersistsSession(t *testing.T) {
	server := fakeBackend(t)
	home := t.TempDir()
	ctx := context.Background()

	var out bytes.Buffer
	require.NoError(t, run(ctx, []string{"-api", server.URL, "-home", home, "login", "-email", "reader@example.com", "-password", "secret123"}, &out))
	assert.Contains(t, out.String(), "Signed in as reader")

	token, err := os.ReadFile(filepath.Join(home, "authToken"))
	require.NoError(t, err)
	assert.Equal(t, "v4.local.token", string(token))

	out.Reset()
	require.NoError(t, run(ctx, []string{"-api", server.URL, "-home", home, "whoami"}, &out))
	assert.Contains(t, out.String(), "reader <reader@example.com>")

	out.Reset()
	require.NoError(t, run(ctx, []string{"-api", server.URL, "-home", home, "mine"}, &out))
	assert.Contains(t, out.String(), "not listed any books")

	out.Reset()
	require.NoError(t, run(ctx, []string{"-api", server.URL, "-home", home, "logout"}, &out))
	_, err = os.Stat(filepath.Join(home, "authToken"))
	assert.True(t, os.IsNotExist(err))
}

func TestRun_AuthCommandsNeedSession(t *testing.T) {
	server := fakeBackend(t)

	err := run(context.Background(), []string{"-api", server.URL, "-home", t.TempDir(), "mine"}, &bytes.Buffer{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not signed in")
}

func TestRun_UnknownCommand(t *testing.T) {
	err := run(context.Background(), []string{"-home", t.TempDir(), "frobnicate"}, &bytes.Buffer{})
	assert.ErrorIs(t, err, errUsage)
}

func TestImageDataURL(t *testing.T) {
	dir := t.TempDir()

	png := filepath.Join(dir, "cover.png")
	require.NoError(t, os.WriteFile(png, []byte("\x89PNG\r\n\x1a\n0000"), 0o600))
	got, err := imageDataURL(png)
	require.NoError(t, err)
	assert.Contains(t, got, "data:image/png;base64,")

	txt := filepath.Join(dir, "notes.txt")
	require.NoError(t, os.WriteFile(txt, []byte("hello"), 0o600))
	_, err = imageDataURL(txt)
	assert.Error(t, err)
}
