package service

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/bookwormapp/bookworm/internal/auth"
	"github.com/bookwormapp/bookworm/internal/media/images"
	"github.com/bookwormapp/bookworm/internal/search"
	"github.com/bookwormapp/bookworm/internal/store"
)

// validImage is a 1x1 PNG data URL.
const validImage = "data:image/png;base64,iVBORw0KGgoAAAANSUhEUgAAAAEAAAABCAYAAAAfFcSJAAAADUlEQVR42mNk+M9QDwADhgGAWjR9awAAAABJRU5ErkJggg=="

// countingHost is an in-memory images.Host that records every call.
type countingHost struct {
	mu        sync.Mutex
	uploads   int
	destroyed []string
	uploadErr error
	next      int
}

var _ images.Host = (*countingHost)(nil)

func (h *countingHost) Upload(_ context.Context, dataURL string) (*images.Uploaded, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.uploads++
	if h.uploadErr != nil {
		return nil, h.uploadErr
	}
	if !strings.HasPrefix(dataURL, "data:image/") {
		return nil, fmt.Errorf("%w: not a data URL", images.ErrInvalidImage)
	}

	h.next++
	publicID := fmt.Sprintf("img-%d", h.next)
	return &images.Uploaded{
		PublicID: publicID,
		URL:      "http://localhost:3000/images/" + publicID + ".png",
	}, nil
}

func (h *countingHost) Destroy(_ context.Context, publicID string) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.destroyed = append(h.destroyed, publicID)
	return nil
}

func (h *countingHost) uploadCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.uploads
}

type testEnv struct {
	store  *store.BadgerStore
	host   *countingHost
	index  *search.SearchIndex
	auth   *AuthService
	books  *BookService
	tokens *auth.TokenService
}

func setupTestEnv(t *testing.T) *testEnv {
	t.Helper()

	s, err := store.New("", nil, store.Options{InMemory: true})
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })

	key, err := auth.LoadOrGenerateKey(t.TempDir())
	require.NoError(t, err)

	tokens, err := auth.NewTokenService(key, time.Hour)
	require.NoError(t, err)

	index, err := search.NewSearchIndex(search.Options{InMemory: true})
	require.NoError(t, err)
	t.Cleanup(func() { _ = index.Close() })

	host := &countingHost{}

	return &testEnv{
		store:  s,
		host:   host,
		index:  index,
		auth:   NewAuthService(s, tokens, nil),
		books:  NewBookService(s, host, index, nil),
		tokens: tokens,
	}
}

func (e *testEnv) registerUser(t *testing.T, username string) *AuthResponse {
	t.Helper()
	resp, err := e.auth.Register(context.Background(), RegisterRequest{
		Username: username,
		Email:    username + "@example.com",
		Password: "secret123",
	})
	require.NoError(t, err)
	return resp
}
