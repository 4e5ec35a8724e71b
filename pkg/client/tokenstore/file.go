package tokenstore

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/fsnotify/fsnotify"

	"github.com/bookwormapp/bookworm/internal/logger"
)

// FileName is the token file inside the app directory.
const FileName = "authToken"

// EventType describes an external change to the token file.
type EventType int

const (
	// EventRemoved means the token file is gone, e.g. another process logged out.
	EventRemoved EventType = iota
	// EventReplaced means the token file was written with a new token.
	EventReplaced
)

func (t EventType) String() string {
	switch t {
	case EventRemoved:
		return "removed"
	case EventReplaced:
		return "replaced"
	default:
		return "unknown"
	}
}

// FileStore keeps the token in {dir}/authToken with mode 0600.
type FileStore struct {
	dir    string
	path   string
	logger *slog.Logger
	mu     sync.Mutex
}

var _ Store = (*FileStore)(nil)

// NewFileStore creates dir if needed and returns a store rooted there.
func NewFileStore(dir string, log *slog.Logger) (*FileStore, error) {
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, fmt.Errorf("create token directory: %w", err)
	}
	return &FileStore{
		dir:    dir,
		path:   filepath.Join(dir, FileName),
		logger: logger.OrDiscard(log),
	}, nil
}

// Path returns the token file path.
func (f *FileStore) Path() string {
	return f.path
}

func (f *FileStore) Get(ctx context.Context) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	data, err := os.ReadFile(f.path)
	if errors.Is(err, os.ErrNotExist) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("read token: %w", err)
	}
	return strings.TrimSpace(string(data)), nil
}

// Save replaces the token atomically. Saving "" clears it.
func (f *FileStore) Save(ctx context.Context, token string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if token == "" {
		return f.Clear(ctx)
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	if err := WriteFileAtomic(f.path, []byte(token)); err != nil {
		return fmt.Errorf("save token: %w", err)
	}
	return nil
}

func (f *FileStore) Clear(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	if err := os.Remove(f.path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("clear token: %w", err)
	}
	return nil
}

// Watch reports changes to the token file made after it is called, including
// the store's own writes. It returns once the watch is established and stops
// when ctx is cancelled.
func (f *FileStore) Watch(ctx context.Context, fn func(EventType)) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}

	// Renames replace the file, so the directory is watched rather than the file.
	if err := w.Add(f.dir); err != nil {
		_ = w.Close()
		return fmt.Errorf("watch %s: %w", f.dir, err)
	}

	go func() {
		defer w.Close()
		for {
			select {
			case <-ctx.Done():
				return
			case ev, ok := <-w.Events:
				if !ok {
					return
				}
				if filepath.Base(ev.Name) != FileName {
					continue
				}
				switch {
				case ev.Has(fsnotify.Remove) || ev.Has(fsnotify.Rename):
					fn(EventRemoved)
				case ev.Has(fsnotify.Create) || ev.Has(fsnotify.Write):
					fn(EventReplaced)
				}
			case err, ok := <-w.Errors:
				if !ok {
					return
				}
				f.logger.Warn("token watcher error", "error", err)
			}
		}
	}()

	return nil
}

// WriteFileAtomic writes data to a temp file in the target directory and
// renames it over path. The file ends up with mode 0600.
func WriteFileAtomic(path string, data []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".*")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return err
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return err
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpName)
		return err
	}
	if err := os.Chmod(tmpName, 0o600); err != nil {
		_ = os.Remove(tmpName)
		return err
	}
	if err := os.Rename(tmpName, path); err != nil {
		_ = os.Remove(tmpName)
		return err
	}
	return nil
}
