package images

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewStorageWithSubdir(t *testing.T) {
	t.Run("creates directory", func(t *testing.T) {
		tmpDir := t.TempDir()

		storage, err := NewStorageWithSubdir(tmpDir, "images")
		require.NoError(t, err)
		require.NotNil(t, storage)

		info, err := os.Stat(filepath.Join(tmpDir, "images"))
		require.NoError(t, err)
		assert.True(t, info.IsDir())
	})

	t.Run("returns error for empty path", func(t *testing.T) {
		storage, err := NewStorageWithSubdir("", "images")
		assert.Nil(t, storage)
		assert.ErrorContains(t, err, "base path cannot be empty")
	})

	t.Run("returns error for empty subdir", func(t *testing.T) {
		_, err := NewStorageWithSubdir(t.TempDir(), "")
		assert.ErrorContains(t, err, "subdirectory cannot be empty")
	})
}

func TestStorage_SaveGetDelete(t *testing.T) {
	storage, err := NewStorageWithSubdir(t.TempDir(), "images")
	require.NoError(t, err)

	id := uuid.NewString()
	require.NoError(t, storage.Save(id, ".png", []byte("fake png")))

	assert.True(t, storage.Exists(id))

	data, err := storage.Get(id + ".png")
	require.NoError(t, err)
	assert.Equal(t, []byte("fake png"), data)

	assert.Len(t, ContentHash(data), 64)
	assert.NotEqual(t, ContentHash(data), ContentHash([]byte("other png")))

	count, err := storage.Count()
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	require.NoError(t, storage.Delete(id))
	assert.False(t, storage.Exists(id))

	_, err = storage.Get(id + ".png")
	assert.ErrorIs(t, err, ErrNotFound)

	// Deleting again is not an error.
	require.NoError(t, storage.Delete(id))
}

func TestStorage_GetRejectsForeignNames(t *testing.T) {
	storage, err := NewStorageWithSubdir(t.TempDir(), "images")
	require.NoError(t, err)

	for _, name := range []string{"../auth.key", "notes.txt", uuid.NewString() + ".exe", ""} {
		_, err := storage.Get(name)
		assert.ErrorIs(t, err, ErrNotFound, name)
	}
}

func TestStorage_SaveValidation(t *testing.T) {
	storage, err := NewStorageWithSubdir(t.TempDir(), "images")
	require.NoError(t, err)

	assert.Error(t, storage.Save("", ".png", []byte("x")))
	assert.Error(t, storage.Save(uuid.NewString(), ".png", nil))
}
