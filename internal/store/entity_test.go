package store_test

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bookwormapp/bookworm/internal/store"
)

type TestEntity struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
	Group string `json:"group"`
}

func setupTestStore(t *testing.T) *store.BadgerStore {
	t.Helper()

	s, err := store.New(filepath.Join(t.TempDir(), "db"), nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })

	return s
}

func newTestEntity(s *store.BadgerStore) *store.Entity[TestEntity] {
	return store.NewEntity[TestEntity](s, "test:", store.ErrNotFound).
		WithLookupIndex("email",
			func(e *TestEntity) []string { return []string{strings.ToLower(e.Email)} },
			strings.ToLower,
			store.ErrEmailExists,
		).
		WithIndex("group", func(e *TestEntity) []string { return []string{e.Group + ":" + e.ID} })
}

func TestEntity_Create_Success(t *testing.T) {
	entity := newTestEntity(setupTestStore(t))

	testData := &TestEntity{ID: "1", Name: "John Doe", Email: "john@example.com"}
	require.NoError(t, entity.Create(context.Background(), "1", testData))

	retrieved, err := entity.Get(context.Background(), "1")
	require.NoError(t, err)
	assert.Equal(t, testData, retrieved)
}

func TestEntity_Create_AlreadyExists(t *testing.T) {
	entity := newTestEntity(setupTestStore(t))

	testData := &TestEntity{ID: "1", Email: "john@example.com"}
	require.NoError(t, entity.Create(context.Background(), "1", testData))

	err := entity.Create(context.Background(), "1", testData)
	require.ErrorIs(t, err, store.ErrAlreadyExists)
}

func TestEntity_Create_IndexConflict(t *testing.T) {
	entity := newTestEntity(setupTestStore(t))
	ctx := context.Background()

	require.NoError(t, entity.Create(ctx, "1", &TestEntity{ID: "1", Email: "john@example.com"}))

	err := entity.Create(ctx, "2", &TestEntity{ID: "2", Email: "JOHN@example.com"})
	require.ErrorIs(t, err, store.ErrEmailExists)

	// The conflicting record must not have been written.
	_, err = entity.Get(ctx, "2")
	require.ErrorIs(t, err, store.ErrNotFound)
}

func TestEntity_Get_NotFound(t *testing.T) {
	entity := newTestEntity(setupTestStore(t))

	retrieved, err := entity.Get(context.Background(), "nonexistent")
	require.ErrorIs(t, err, store.ErrNotFound)
	require.Nil(t, retrieved)
}

func TestEntity_GetByIndex_AppliesTransform(t *testing.T) {
	entity := newTestEntity(setupTestStore(t))
	ctx := context.Background()

	require.NoError(t, entity.Create(ctx, "1", &TestEntity{ID: "1", Email: "John@Example.com"}))

	got, err := entity.GetByIndex(ctx, "email", "JOHN@EXAMPLE.COM")
	require.NoError(t, err)
	assert.Equal(t, "1", got.ID)

	_, err = entity.GetByIndex(ctx, "email", "nobody@example.com")
	require.ErrorIs(t, err, store.ErrNotFound)
}

func TestEntity_Delete_RemovesIndexes(t *testing.T) {
	entity := newTestEntity(setupTestStore(t))
	ctx := context.Background()

	require.NoError(t, entity.Create(ctx, "1", &TestEntity{ID: "1", Email: "john@example.com"}))
	require.NoError(t, entity.Delete(ctx, "1"))

	_, err := entity.GetByIndex(ctx, "email", "john@example.com")
	require.ErrorIs(t, err, store.ErrNotFound)

	// The email is free again.
	require.NoError(t, entity.Create(ctx, "2", &TestEntity{ID: "2", Email: "john@example.com"}))

	require.ErrorIs(t, entity.Delete(ctx, "1"), store.ErrNotFound)
}

func TestEntity_ListByIndex_Window(t *testing.T) {
	entity := newTestEntity(setupTestStore(t))
	ctx := context.Background()

	for i := range 5 {
		id := fmt.Sprintf("%02d", i)
		require.NoError(t, entity.Create(ctx, id, &TestEntity{ID: id, Email: id + "@x", Group: "a"}))
	}
	require.NoError(t, entity.Create(ctx, "99", &TestEntity{ID: "99", Email: "99@x", Group: "b"}))

	ids := func(list []*TestEntity) []string {
		out := make([]string, 0, len(list))
		for _, e := range list {
			out = append(out, e.ID)
		}
		return out
	}

	got, err := entity.ListByIndex(ctx, "group", store.ScanOptions{Within: "a:", Offset: 1, Limit: 2})
	require.NoError(t, err)
	assert.Equal(t, []string{"01", "02"}, ids(got))

	got, err = entity.ListByIndex(ctx, "group", store.ScanOptions{Within: "a:", Reverse: true})
	require.NoError(t, err)
	assert.Equal(t, []string{"04", "03", "02", "01", "00"}, ids(got))

	got, err = entity.ListByIndex(ctx, "group", store.ScanOptions{Offset: 10})
	require.NoError(t, err)
	assert.Empty(t, got)

	count, err := entity.CountIndex(ctx, "group", "a:")
	require.NoError(t, err)
	assert.Equal(t, 5, count)

	count, err = entity.CountIndex(ctx, "group", "")
	require.NoError(t, err)
	assert.Equal(t, 6, count)
}

func TestEntity_List_SkipsIndexKeys(t *testing.T) {
	entity := newTestEntity(setupTestStore(t))
	ctx := context.Background()

	for i := range 3 {
		id := fmt.Sprint(i)
		require.NoError(t, entity.Create(ctx, id, &TestEntity{ID: id, Email: id + "@x"}))
	}

	var seen []string
	for e, err := range entity.List(ctx) {
		require.NoError(t, err)
		seen = append(seen, e.ID)
	}
	assert.ElementsMatch(t, []string{"0", "1", "2"}, seen)
}

func TestEntity_GetMany(t *testing.T) {
	entity := newTestEntity(setupTestStore(t))
	ctx := context.Background()

	require.NoError(t, entity.Create(ctx, "1", &TestEntity{ID: "1", Email: "1@x"}))
	require.NoError(t, entity.Create(ctx, "2", &TestEntity{ID: "2", Email: "2@x"}))

	got, err := entity.GetMany(ctx, []string{"1", "missing", "2", "1"})
	require.NoError(t, err)
	assert.Len(t, got, 2)
	assert.Equal(t, "2", got["2"].ID)
}
