package feed

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bookwormapp/bookworm/pkg/client/apiclient"
)

// fakeSource serves canned pages and records every call.
type fakeSource struct {
	mu    sync.Mutex
	pages map[int]*apiclient.BookPage
	errs  map[int]error
	calls []int

	// block, when set, is waited on inside FetchBooks after started is signalled.
	started chan int
	block   chan struct{}

	inFlight    atomic.Int32
	maxInFlight atomic.Int32
}

func newFakeSource() *fakeSource {
	return &fakeSource{
		pages: make(map[int]*apiclient.BookPage),
		errs:  make(map[int]error),
	}
}

func (f *fakeSource) FetchBooks(ctx context.Context, page, limit int) (*apiclient.BookPage, error) {
	n := f.inFlight.Add(1)
	defer f.inFlight.Add(-1)
	for {
		peak := f.maxInFlight.Load()
		if n <= peak || f.maxInFlight.CompareAndSwap(peak, n) {
			break
		}
	}

	f.mu.Lock()
	f.calls = append(f.calls, page)
	result, err := f.pages[page], f.errs[page]
	started, block := f.started, f.block
	f.mu.Unlock()

	if started != nil {
		started <- page
	}
	if block != nil {
		select {
		case <-block:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	return result, err
}

func (f *fakeSource) set(page, total int, ids ...string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.pages[page] = bookPage(page, total, ids...)
}

func (f *fakeSource) callLog() []int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]int(nil), f.calls...)
}

func bookPage(page, total int, ids ...string) *apiclient.BookPage {
	books := make([]apiclient.Book, 0, len(ids))
	for _, id := range ids {
		books = append(books, apiclient.Book{ID: id, Title: "Title " + id, Rating: 4})
	}
	return &apiclient.BookPage{Books: books, CurrentPage: page, TotalPages: total, TotalBooks: total * 3}
}

func ids(s State) []string {
	out := make([]string, 0, len(s.Books))
	for _, b := range s.Books {
		out = append(out, b.ID)
	}
	return out
}

func TestSynchronizer_InitialState(t *testing.T) {
	s := New(newFakeSource())

	st := s.Snapshot()
	assert.Empty(t, st.Books)
	assert.Equal(t, 0, st.CurrentPage)
	assert.True(t, st.HasMore)
	assert.Equal(t, PhaseIdle, st.Phase)
	assert.NoError(t, st.Err)
}

func TestSynchronizer_LoadInitial(t *testing.T) {
	src := newFakeSource()
	src.set(1, 2, "a", "b", "c")
	s := New(src)

	require.NoError(t, s.LoadInitial(context.Background()))

	st := s.Snapshot()
	assert.Equal(t, []string{"a", "b", "c"}, ids(st))
	assert.Equal(t, 1, st.CurrentPage)
	assert.True(t, st.HasMore)
	assert.Equal(t, PhaseIdle, st.Phase)
}

func TestSynchronizer_UsesPageSize(t *testing.T) {
	var gotLimit int
	s := New(PageSourceFunc(func(_ context.Context, page, limit int) (*apiclient.BookPage, error) {
		gotLimit = limit
		return bookPage(page, 1, "a"), nil
	}), WithPageSize(7))

	require.NoError(t, s.LoadInitial(context.Background()))
	assert.Equal(t, 7, gotLimit)

	d := New(PageSourceFunc(func(_ context.Context, page, limit int) (*apiclient.BookPage, error) {
		gotLimit = limit
		return bookPage(page, 1, "a"), nil
	}), WithPageSize(0))
	require.NoError(t, d.LoadInitial(context.Background()))
	assert.Equal(t, DefaultPageSize, gotLimit)
}

// Two pages of three where page 2 repeats the last book of page 1.
func TestSynchronizer_OverlappingPages(t *testing.T) {
	src := newFakeSource()
	src.set(1, 2, "a", "b", "c")
	src.set(2, 2, "c", "d", "e")
	s := New(src)
	ctx := context.Background()

	require.NoError(t, s.LoadInitial(ctx))
	require.NoError(t, s.LoadMore(ctx))

	st := s.Snapshot()
	assert.Equal(t, []string{"a", "b", "c", "d", "e"}, ids(st))
	assert.Equal(t, 2, st.CurrentPage)
	assert.False(t, st.HasMore)
}

func TestSynchronizer_NoDuplicateIDs(t *testing.T) {
	src := newFakeSource()
	src.set(1, 4, "a", "b", "c")
	src.set(2, 4, "b", "c", "d")
	src.set(3, 4, "a", "d", "e")
	src.set(4, 4, "e", "f", "a")
	s := New(src)
	ctx := context.Background()

	require.NoError(t, s.LoadInitial(ctx))
	for range 3 {
		require.NoError(t, s.LoadMore(ctx))
	}

	got := ids(s.Snapshot())
	assert.Equal(t, []string{"a", "b", "c", "d", "e", "f"}, got)

	seen := make(map[string]bool)
	for _, id := range got {
		assert.False(t, seen[id], "duplicate id %s", id)
		seen[id] = true
	}
}

func TestSynchronizer_HasMoreFalseAfterLastPage(t *testing.T) {
	src := newFakeSource()
	src.set(1, 2, "a", "b", "c")
	src.set(2, 2, "d")
	s := New(src)
	ctx := context.Background()

	require.NoError(t, s.LoadInitial(ctx))
	assert.True(t, s.Snapshot().HasMore)

	require.NoError(t, s.LoadMore(ctx))
	assert.False(t, s.Snapshot().HasMore)

	// Further LoadMore calls are no-ops.
	require.NoError(t, s.LoadMore(ctx))
	assert.Equal(t, []int{1, 2}, src.callLog())
	assert.Equal(t, 2, s.Snapshot().CurrentPage)
}

func TestSynchronizer_EmptyFeed(t *testing.T) {
	src := newFakeSource()
	src.set(1, 0)
	s := New(src)

	require.NoError(t, s.LoadInitial(context.Background()))
	st := s.Snapshot()
	assert.Empty(t, st.Books)
	assert.False(t, st.HasMore)
}

func TestSynchronizer_RefreshReplacesWithPageOne(t *testing.T) {
	src := newFakeSource()
	src.set(1, 3, "a", "b", "c")
	src.set(2, 3, "d", "e", "f")
	s := New(src)
	ctx := context.Background()

	require.NoError(t, s.LoadInitial(ctx))
	require.NoError(t, s.LoadMore(ctx))
	require.Len(t, s.Snapshot().Books, 6)

	// A new book was listed; page 1 shifted.
	src.set(1, 3, "new", "a", "b")
	require.NoError(t, s.Refresh(ctx))

	st := s.Snapshot()
	assert.Equal(t, []string{"new", "a", "b"}, ids(st))
	assert.Equal(t, 1, st.CurrentPage)
	assert.True(t, st.HasMore)
}

func TestSynchronizer_ConcurrentLoadMoreFetchesOnce(t *testing.T) {
	src := newFakeSource()
	src.set(1, 3, "a", "b", "c")
	src.set(2, 3, "d", "e", "f")
	s := New(src)
	ctx := context.Background()
	require.NoError(t, s.LoadInitial(ctx))

	src.mu.Lock()
	src.started = make(chan int, 1)
	src.block = make(chan struct{})
	src.mu.Unlock()

	first := make(chan error, 1)
	go func() { first <- s.LoadMore(ctx) }()
	require.Equal(t, 2, <-src.started)
	assert.Equal(t, PhaseFetching, s.Snapshot().Phase)

	var wg sync.WaitGroup
	for range 20 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			assert.NoError(t, s.LoadMore(ctx))
			assert.NoError(t, s.LoadInitial(ctx))
			assert.NoError(t, s.Refresh(ctx))
		}()
	}
	wg.Wait()

	close(src.block)
	require.NoError(t, <-first)

	assert.Equal(t, []int{1, 2}, src.callLog())
	assert.Equal(t, int32(1), src.maxInFlight.Load())
	assert.Equal(t, []string{"a", "b", "c", "d", "e", "f"}, ids(s.Snapshot()))
}

func TestSynchronizer_RefreshBlocksLoadMore(t *testing.T) {
	src := newFakeSource()
	src.set(1, 3, "a", "b", "c")
	s := New(src)
	ctx := context.Background()
	require.NoError(t, s.LoadInitial(ctx))

	src.mu.Lock()
	src.started = make(chan int, 1)
	src.block = make(chan struct{})
	src.mu.Unlock()

	done := make(chan error, 1)
	go func() { done <- s.Refresh(ctx) }()
	<-src.started

	st := s.Snapshot()
	assert.Equal(t, PhaseRefreshing, st.Phase)
	assert.Empty(t, st.Books, "refresh clears the list before fetching")

	require.NoError(t, s.LoadMore(ctx))
	require.NoError(t, s.LoadInitial(ctx))
	assert.Equal(t, PhaseRefreshing, s.Snapshot().Phase)

	close(src.block)
	require.NoError(t, <-done)

	assert.Equal(t, []int{1, 1}, src.callLog())
	assert.Equal(t, []string{"a", "b", "c"}, ids(s.Snapshot()))
}

func TestSynchronizer_FailureLeavesListUntouched(t *testing.T) {
	src := newFakeSource()
	src.set(1, 3, "a", "b", "c")
	apiErr := &apiclient.Error{Message: "Internal server error", Status: http.StatusInternalServerError}
	src.errs[2] = apiErr
	s := New(src)
	ctx := context.Background()

	require.NoError(t, s.LoadInitial(ctx))

	var notified []State
	s.Subscribe(func(st State) { notified = append(notified, st) })

	err := s.LoadMore(ctx)
	require.ErrorIs(t, err, apiErr)

	st := s.Snapshot()
	assert.Equal(t, []string{"a", "b", "c"}, ids(st))
	assert.Equal(t, 1, st.CurrentPage)
	assert.True(t, st.HasMore)
	assert.Equal(t, PhaseIdle, st.Phase)
	assert.ErrorIs(t, s.Err(), apiErr)

	require.NotEmpty(t, notified)
	assert.ErrorIs(t, notified[len(notified)-1].Err, apiErr)

	// The next successful fetch clears the error.
	src.mu.Lock()
	delete(src.errs, 2)
	src.mu.Unlock()
	src.set(2, 3, "d")
	require.NoError(t, s.LoadMore(ctx))
	assert.NoError(t, s.Err())
}

func TestSynchronizer_RefreshFailure(t *testing.T) {
	src := newFakeSource()
	src.set(1, 3, "a", "b", "c")
	src.set(2, 3, "d", "e", "f")
	s := New(src)
	ctx := context.Background()

	require.NoError(t, s.LoadInitial(ctx))
	require.NoError(t, s.LoadMore(ctx))
	require.Equal(t, 2, s.Snapshot().CurrentPage)

	apiErr := &apiclient.Error{Message: "Service unavailable", Status: http.StatusServiceUnavailable}
	src.mu.Lock()
	src.errs[1] = apiErr
	src.mu.Unlock()

	err := s.Refresh(ctx)
	require.ErrorIs(t, err, apiErr)

	// The reset applied before fetching stays.
	st := s.Snapshot()
	assert.Empty(t, st.Books)
	assert.Equal(t, 1, st.CurrentPage)
	assert.True(t, st.HasMore)
	assert.Equal(t, PhaseIdle, st.Phase)
	assert.ErrorIs(t, st.Err, apiErr)
	assert.ErrorIs(t, s.Err(), apiErr)

	// The guard was released, so a retry goes through.
	src.mu.Lock()
	delete(src.errs, 1)
	src.mu.Unlock()
	require.NoError(t, s.Refresh(ctx))
	assert.Equal(t, []string{"a", "b", "c"}, ids(s.Snapshot()))
	assert.NoError(t, s.Err())
}

func TestSynchronizer_NormalizesPlainErrors(t *testing.T) {
	s := New(PageSourceFunc(func(context.Context, int, int) (*apiclient.BookPage, error) {
		return nil, errors.New("connection reset")
	}))

	err := s.LoadInitial(context.Background())
	require.Error(t, err)

	var apiErr *apiclient.Error
	require.ErrorAs(t, err, &apiErr)
	assert.Zero(t, apiErr.Status)
	assert.Equal(t, "connection reset", apiErr.Message)
}

func TestSynchronizer_InvalidResponse(t *testing.T) {
	tests := []struct {
		name string
		page *apiclient.BookPage
	}{
		{"nil page", nil},
		{"nil books", &apiclient.BookPage{TotalPages: 1}},
		{"negative total", &apiclient.BookPage{Books: []apiclient.Book{}, TotalPages: -1}},
		{"missing id", &apiclient.BookPage{Books: []apiclient.Book{{ID: "a"}, {Title: "no id"}}, TotalPages: 1}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := New(PageSourceFunc(func(context.Context, int, int) (*apiclient.BookPage, error) {
				return tt.page, nil
			}))

			err := s.LoadInitial(context.Background())
			assert.ErrorIs(t, err, ErrInvalidResponse)
			assert.Empty(t, s.Snapshot().Books)
			assert.Equal(t, PhaseIdle, s.Snapshot().Phase)
		})
	}
}

func TestSynchronizer_PanicReleasesGuard(t *testing.T) {
	calls := 0
	s := New(PageSourceFunc(func(_ context.Context, page, _ int) (*apiclient.BookPage, error) {
		calls++
		if calls == 1 {
			panic("boom")
		}
		return bookPage(page, 1, "a"), nil
	}))

	assert.Panics(t, func() { _ = s.LoadInitial(context.Background()) })
	assert.Equal(t, PhaseIdle, s.Snapshot().Phase)

	require.NoError(t, s.LoadInitial(context.Background()))
	assert.Equal(t, []string{"a"}, ids(s.Snapshot()))
}

func TestSynchronizer_SubscribePhases(t *testing.T) {
	src := newFakeSource()
	src.set(1, 1, "a")
	s := New(src)

	var phases []Phase
	unsub := s.Subscribe(func(st State) { phases = append(phases, st.Phase) })

	require.NoError(t, s.LoadInitial(context.Background()))
	assert.Equal(t, []Phase{PhaseFetching, PhaseIdle}, phases)

	unsub()
	require.NoError(t, s.Refresh(context.Background()))
	assert.Len(t, phases, 2)
}

// A fetch that starts while a subscriber is still handling the previous
// idle snapshot must not leave subscribers believing the feed is idle.
func TestSynchronizer_SubscribersEndOnCurrentPhase(t *testing.T) {
	src := newFakeSource()
	src.set(1, 2, "a", "b", "c")
	src.set(2, 2, "d")
	s := New(src)
	ctx := context.Background()

	entered := make(chan struct{})
	release := make(chan struct{})
	var once sync.Once
	s.Subscribe(func(st State) {
		if st.Phase == PhaseIdle && len(st.Books) == 3 {
			once.Do(func() {
				close(entered)
				<-release
			})
		}
	})

	var (
		phasesMu sync.Mutex
		phases   []Phase
	)
	lastPhase := func() Phase {
		phasesMu.Lock()
		defer phasesMu.Unlock()
		return phases[len(phases)-1]
	}
	s.Subscribe(func(st State) {
		phasesMu.Lock()
		phases = append(phases, st.Phase)
		phasesMu.Unlock()
	})

	initial := make(chan error, 1)
	go func() { initial <- s.LoadInitial(ctx) }()
	<-entered

	src.mu.Lock()
	src.started = make(chan int, 1)
	src.block = make(chan struct{})
	src.mu.Unlock()

	more := make(chan error, 1)
	go func() { more <- s.LoadMore(ctx) }()
	require.Equal(t, 2, <-src.started)

	close(release)
	require.NoError(t, <-initial)
	assert.Equal(t, PhaseFetching, s.Snapshot().Phase)
	assert.Equal(t, PhaseFetching, lastPhase())

	close(src.block)
	require.NoError(t, <-more)
	assert.Equal(t, PhaseIdle, lastPhase())
	assert.Equal(t, []string{"a", "b", "c", "d"}, ids(s.Snapshot()))
}

func TestSynchronizer_SnapshotIsACopy(t *testing.T) {
	src := newFakeSource()
	src.set(1, 1, "a", "b")
	s := New(src)
	require.NoError(t, s.LoadInitial(context.Background()))

	st := s.Snapshot()
	st.Books[0].ID = "mutated"
	assert.Equal(t, "a", s.Snapshot().Books[0].ID)
}

func TestPhase_String(t *testing.T) {
	for p, want := range map[Phase]string{
		PhaseIdle:       "idle",
		PhaseFetching:   "fetching",
		PhaseRefreshing: "refreshing",
		Phase(42):       "unknown",
	} {
		assert.Equal(t, want, p.String(), fmt.Sprint(int(p)))
	}
}
