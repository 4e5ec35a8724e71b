package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/bookwormapp/bookworm/pkg/client/apiclient"
	"github.com/bookwormapp/bookworm/pkg/client/tokenstore"
)

// ProfileFileName is stored next to the token file.
const ProfileFileName = "profile.json"

// ProfileStore persists the signed-in user between runs.
type ProfileStore interface {
	Load(ctx context.Context) (*apiclient.User, error)
	Save(ctx context.Context, user apiclient.User) error
	Clear(ctx context.Context) error
}

// FileProfileStore keeps the profile as JSON in {dir}/profile.json.
type FileProfileStore struct {
	path string
	mu   sync.Mutex
}

// NewFileProfileStore returns a profile store rooted at dir.
func NewFileProfileStore(dir string) (*FileProfileStore, error) {
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, fmt.Errorf("create profile directory: %w", err)
	}
	return &FileProfileStore{path: filepath.Join(dir, ProfileFileName)}, nil
}

// Load returns nil without error when no profile is stored.
func (s *FileProfileStore) Load(ctx context.Context) (*apiclient.User, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	data, err := os.ReadFile(s.path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read profile: %w", err)
	}

	var user apiclient.User
	if err := json.Unmarshal(data, &user); err != nil {
		return nil, fmt.Errorf("decode profile: %w", err)
	}
	if user.ID == "" {
		return nil, nil
	}
	return &user, nil
}

func (s *FileProfileStore) Save(ctx context.Context, user apiclient.User) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	data, err := json.Marshal(user)
	if err != nil {
		return fmt.Errorf("encode profile: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if err := tokenstore.WriteFileAtomic(s.path, data); err != nil {
		return fmt.Errorf("save profile: %w", err)
	}
	return nil
}

func (s *FileProfileStore) Clear(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if err := os.Remove(s.path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("clear profile: %w", err)
	}
	return nil
}

// memoryProfiles is the default when no ProfileStore is configured.
type memoryProfiles struct {
	mu   sync.Mutex
	user *apiclient.User
}

func (m *memoryProfiles) Load(context.Context) (*apiclient.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.user == nil {
		return nil, nil
	}
	u := *m.user
	return &u, nil
}

func (m *memoryProfiles) Save(_ context.Context, user apiclient.User) error {
	m.mu.Lock()
	m.user = &user
	m.mu.Unlock()
	return nil
}

func (m *memoryProfiles) Clear(context.Context) error {
	m.mu.Lock()
	m.user = nil
	m.mu.Unlock()
	return nil
}
