// Package feed keeps the client's paginated view of the public book feed.
//
// A Synchronizer runs at most one fetch at a time. Its phase is the single
// guard: LoadInitial and LoadMore need idle and run as fetching, Refresh needs
// idle and runs as refreshing. A call made while another is in flight is
// dropped and returns nil.
package feed

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"

	"github.com/bookwormapp/bookworm/internal/logger"
	"github.com/bookwormapp/bookworm/pkg/client/apiclient"
)

// DefaultPageSize matches the home screen of the mobile app.
const DefaultPageSize = 3

// ErrInvalidResponse reports a page whose shape cannot be merged.
var ErrInvalidResponse = errors.New("invalid feed response")

// Phase is what the synchronizer is doing.
type Phase int

const (
	PhaseIdle Phase = iota
	PhaseFetching
	PhaseRefreshing
)

func (p Phase) String() string {
	switch p {
	case PhaseIdle:
		return "idle"
	case PhaseFetching:
		return "fetching"
	case PhaseRefreshing:
		return "refreshing"
	default:
		return "unknown"
	}
}

// PageSource fetches one page of the feed.
type PageSource interface {
	FetchBooks(ctx context.Context, page, limit int) (*apiclient.BookPage, error)
}

// PageSourceFunc adapts a function such as (*apiclient.Client).GetBooks.
type PageSourceFunc func(ctx context.Context, page, limit int) (*apiclient.BookPage, error)

// FetchBooks implements PageSource.
func (f PageSourceFunc) FetchBooks(ctx context.Context, page, limit int) (*apiclient.BookPage, error) {
	return f(ctx, page, limit)
}

// State is a snapshot. Books is a copy owned by the caller.
type State struct {
	Books       []apiclient.Book
	CurrentPage int
	HasMore     bool
	Phase       Phase
	Err         error
}

// Option configures a Synchronizer.
type Option func(*Synchronizer)

// WithPageSize sets how many books each fetch asks for.
func WithPageSize(n int) Option {
	return func(s *Synchronizer) {
		if n > 0 {
			s.limit = n
		}
	}
}

// WithLogger sets the synchronizer logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Synchronizer) { s.logger = logger.OrDiscard(l) }
}

// Synchronizer merges feed pages into one ordered list without duplicates.
type Synchronizer struct {
	source PageSource
	limit  int
	logger *slog.Logger

	mu          sync.Mutex
	books       []apiclient.Book
	seen        map[string]struct{}
	currentPage int
	hasMore     bool
	phase       Phase
	err         error

	subs   map[int]func(State)
	nextID int
	// changes counts publish calls; delivered is the count subscribers have
	// seen. Only one goroutine delivers at a time.
	changes   uint64
	delivered uint64
	notifying bool
}

// New returns an idle, empty synchronizer.
func New(source PageSource, opts ...Option) *Synchronizer {
	s := &Synchronizer{
		source:  source,
		limit:   DefaultPageSize,
		logger:  logger.Discard(),
		seen:    make(map[string]struct{}),
		hasMore: true,
		subs:    make(map[int]func(State)),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// LoadInitial fetches page 1 and replaces the list.
func (s *Synchronizer) LoadInitial(ctx context.Context) error {
	return s.run(ctx, fetchOp{
		phase: PhaseFetching,
		page:  func() (int, bool) { return 1, true },
		apply: s.replace,
	})
}

// LoadMore fetches the next page and appends the books not already listed.
// It does nothing once the last page has been fetched.
func (s *Synchronizer) LoadMore(ctx context.Context) error {
	return s.run(ctx, fetchOp{
		phase: PhaseFetching,
		page: func() (int, bool) {
			return s.currentPage + 1, s.hasMore
		},
		apply: s.merge,
	})
}

// Refresh clears the list and fetches page 1 again.
func (s *Synchronizer) Refresh(ctx context.Context) error {
	return s.run(ctx, fetchOp{
		phase: PhaseRefreshing,
		page:  func() (int, bool) { return 1, true },
		prepare: func() {
			s.books = nil
			s.seen = make(map[string]struct{})
			s.currentPage = 1
			s.hasMore = true
		},
		apply: s.replace,
	})
}

// Snapshot returns the current state.
func (s *Synchronizer) Snapshot() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked()
}

// Err returns the error of the last fetch, or nil if it succeeded.
func (s *Synchronizer) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

// Subscribe calls fn with a snapshot after state changes until the returned
// func is called. fn usually runs on the goroutine that made the change;
// changes made while another goroutine is delivering are delivered by it,
// possibly coalesced into one snapshot.
func (s *Synchronizer) Subscribe(fn func(State)) (unsubscribe func()) {
	s.mu.Lock()
	id := s.nextID
	s.nextID++
	s.subs[id] = fn
	s.mu.Unlock()

	return func() {
		s.mu.Lock()
		delete(s.subs, id)
		s.mu.Unlock()
	}
}

type fetchOp struct {
	phase Phase
	// page returns the page to fetch and whether the op should run at all.
	// Called with mu held.
	page func() (int, bool)
	// prepare runs with mu held once the phase is acquired.
	prepare func()
	// apply merges a validated page with mu held.
	apply func(page int, result *apiclient.BookPage)
}

func (s *Synchronizer) run(ctx context.Context, op fetchOp) error {
	s.mu.Lock()
	if busy := s.phase; busy != PhaseIdle {
		s.mu.Unlock()
		s.logger.Debug("feed busy, dropping request", "phase", busy, "requested", op.phase)
		return nil
	}
	page, ok := op.page()
	if !ok {
		s.mu.Unlock()
		return nil
	}
	s.phase = op.phase
	if op.prepare != nil {
		op.prepare()
	}
	s.mu.Unlock()
	s.publish()

	defer s.release()

	result, err := s.source.FetchBooks(ctx, page, s.limit)
	if err == nil {
		err = validate(result)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err != nil {
		s.err = normalize(err)
		s.logger.Warn("feed fetch failed", "page", page, "error", err)
		return s.err
	}

	s.err = nil
	op.apply(page, result)
	s.hasMore = page < result.TotalPages
	return nil
}

// release returns the phase to idle. It runs on every exit path, including
// a panicking source.
func (s *Synchronizer) release() {
	s.mu.Lock()
	s.phase = PhaseIdle
	s.mu.Unlock()
	s.publish()
}

func (s *Synchronizer) replace(page int, result *apiclient.BookPage) {
	s.books = nil
	s.seen = make(map[string]struct{}, len(result.Books))
	s.append(result.Books)
	s.currentPage = page
}

func (s *Synchronizer) merge(page int, result *apiclient.BookPage) {
	s.append(result.Books)
	s.currentPage = page
}

// append adds books whose id is not yet listed, in server order.
func (s *Synchronizer) append(books []apiclient.Book) {
	for _, b := range books {
		if _, dup := s.seen[b.ID]; dup {
			continue
		}
		s.seen[b.ID] = struct{}{}
		s.books = append(s.books, b)
	}
}

// publish notifies subscribers of the current state. A change published
// while another goroutine is delivering is picked up by that goroutine, so
// subscribers never end on a stale snapshot.
func (s *Synchronizer) publish() {
	s.mu.Lock()
	s.changes++
	if s.notifying {
		s.mu.Unlock()
		return
	}
	s.notifying = true
	s.mu.Unlock()

	done := false
	defer func() {
		if !done {
			s.mu.Lock()
			s.notifying = false
			s.mu.Unlock()
		}
	}()

	for {
		s.mu.Lock()
		if s.delivered == s.changes {
			s.notifying = false
			done = true
			s.mu.Unlock()
			return
		}
		s.delivered = s.changes
		snap := s.snapshotLocked()
		subs := make([]func(State), 0, len(s.subs))
		for id := 0; id < s.nextID; id++ {
			if fn, ok := s.subs[id]; ok {
				subs = append(subs, fn)
			}
		}
		s.mu.Unlock()

		for _, fn := range subs {
			fn(snap)
		}
	}
}

func (s *Synchronizer) snapshotLocked() State {
	return State{
		Books:       slices.Clone(s.books),
		CurrentPage: s.currentPage,
		HasMore:     s.hasMore,
		Phase:       s.phase,
		Err:         s.err,
	}
}

func validate(page *apiclient.BookPage) error {
	switch {
	case page == nil:
		return fmt.Errorf("%w: empty page", ErrInvalidResponse)
	case page.Books == nil:
		return fmt.Errorf("%w: missing books", ErrInvalidResponse)
	case page.TotalPages < 0:
		return fmt.Errorf("%w: negative totalPages %d", ErrInvalidResponse, page.TotalPages)
	}
	for i, b := range page.Books {
		if b.ID == "" {
			return fmt.Errorf("%w: book %d has no id", ErrInvalidResponse, i)
		}
	}
	return nil
}

// normalize keeps shape errors and API errors as they are and wraps
// anything else as a network-level apiclient.Error.
func normalize(err error) error {
	var apiErr *apiclient.Error
	if errors.Is(err, ErrInvalidResponse) || errors.As(err, &apiErr) {
		return err
	}
	return &apiclient.Error{Message: err.Error(), Err: err}
}
