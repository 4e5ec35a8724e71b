// Package session holds the client's authentication state and the
// navigation gate that keeps the UI in the area matching it.
package session

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/bookwormapp/bookworm/internal/logger"
	"github.com/bookwormapp/bookworm/pkg/client/apiclient"
	"github.com/bookwormapp/bookworm/pkg/client/tokenstore"
)

// Status is the authentication status.
type Status int

const (
	Anonymous Status = iota
	Authenticated
)

func (s Status) String() string {
	if s == Authenticated {
		return "authenticated"
	}
	return "anonymous"
}

// State is an immutable view of the machine. User is nil when Anonymous.
type State struct {
	Status Status
	User   *apiclient.User
}

// Authenticated reports whether a user is signed in.
func (s State) Authenticated() bool {
	return s.Status == Authenticated
}

// AuthAPI is the part of the backend the machine calls.
type AuthAPI interface {
	Login(ctx context.Context, email, password string) (*apiclient.AuthResult, error)
	Register(ctx context.Context, in apiclient.RegisterInput) (*apiclient.AuthResult, error)
}

// Machine moves between Anonymous and Authenticated. It is safe for
// concurrent use. Subscribers are called outside the lock and one delivery
// runs at a time: a transition made while subscribers run (from any
// goroutine) is delivered once they return, so the last state a subscriber
// sees is always the current one.
type Machine struct {
	api      AuthAPI
	tokens   tokenstore.Store
	profiles ProfileStore
	logger   *slog.Logger

	mu        sync.Mutex
	state     State
	subs      map[int]func(State)
	nextID    int
	delivered State
	notifying bool
}

// Option configures a Machine.
type Option func(*Machine)

// WithProfileStore persists the signed-in user so Restore can rehydrate it.
func WithProfileStore(p ProfileStore) Option {
	return func(m *Machine) { m.profiles = p }
}

// WithLogger sets the machine logger.
func WithLogger(l *slog.Logger) Option {
	return func(m *Machine) { m.logger = logger.OrDiscard(l) }
}

// New returns an Anonymous machine.
func New(api AuthAPI, tokens tokenstore.Store, opts ...Option) *Machine {
	m := &Machine{
		api:      api,
		tokens:   tokens,
		profiles: &memoryProfiles{},
		logger:   logger.Discard(),
		subs:     make(map[int]func(State)),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// State returns the current state.
func (m *Machine) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// Subscribe calls fn on every state change until the returned func is called.
func (m *Machine) Subscribe(fn func(State)) (unsubscribe func()) {
	m.mu.Lock()
	id := m.nextID
	m.nextID++
	m.subs[id] = fn
	m.mu.Unlock()

	return func() {
		m.mu.Lock()
		delete(m.subs, id)
		m.mu.Unlock()
	}
}

// Login signs in and persists the token. A failed save leaves the machine
// Anonymous.
func (m *Machine) Login(ctx context.Context, email, password string) (*apiclient.User, error) {
	res, err := m.api.Login(ctx, email, password)
	if err != nil {
		return nil, err
	}
	return m.establish(ctx, res)
}

// Register creates an account and signs in.
func (m *Machine) Register(ctx context.Context, username, email, password string) (*apiclient.User, error) {
	res, err := m.api.Register(ctx, apiclient.RegisterInput{
		Username: username,
		Email:    email,
		Password: password,
	})
	if err != nil {
		return nil, err
	}
	return m.establish(ctx, res)
}

func (m *Machine) establish(ctx context.Context, res *apiclient.AuthResult) (*apiclient.User, error) {
	if res == nil || res.Token == "" {
		return nil, fmt.Errorf("auth response has no token")
	}
	if err := m.tokens.Save(ctx, res.Token); err != nil {
		return nil, fmt.Errorf("save token: %w", err)
	}

	user := res.User
	if err := m.profiles.Save(ctx, user); err != nil {
		m.logger.Warn("failed to persist profile", "user_id", user.ID, "error", err)
	}

	m.transition(State{Status: Authenticated, User: &user})
	m.logger.Info("signed in", "user_id", user.ID, "username", user.Username)

	u := user
	return &u, nil
}

// Logout clears stored credentials and always ends Anonymous.
func (m *Machine) Logout(ctx context.Context) {
	if err := m.tokens.Clear(ctx); err != nil {
		m.logger.Error("failed to clear token on logout", "error", err)
	}
	if err := m.profiles.Clear(ctx); err != nil {
		m.logger.Error("failed to clear profile on logout", "error", err)
	}
	m.transition(State{Status: Anonymous})
}

// HandleUnauthorized forces Anonymous without a network call. The API
// client has already cleared the token when it calls this.
func (m *Machine) HandleUnauthorized() {
	if err := m.profiles.Clear(context.Background()); err != nil {
		m.logger.Warn("failed to clear profile after 401", "error", err)
	}
	if m.State().Authenticated() {
		m.logger.Info("session expired")
	}
	m.transition(State{Status: Anonymous})
}

// Restore rehydrates Authenticated when both a profile and a token exist.
// It reports whether a session was restored.
func (m *Machine) Restore(ctx context.Context) (bool, error) {
	token, err := m.tokens.Get(ctx)
	if err != nil {
		return false, fmt.Errorf("read token: %w", err)
	}
	user, err := m.profiles.Load(ctx)
	if err != nil {
		return false, fmt.Errorf("load profile: %w", err)
	}
	if token == "" || user == nil {
		return false, nil
	}

	m.transition(State{Status: Authenticated, User: user})
	return true, nil
}

// WatchTokens treats external removal of the token file like a 401, so
// logging out in one process signs out the others.
func (m *Machine) WatchTokens(ctx context.Context, fs *tokenstore.FileStore) error {
	return fs.Watch(ctx, func(ev tokenstore.EventType) {
		if ev == tokenstore.EventRemoved && m.State().Authenticated() {
			m.logger.Info("token removed externally")
			m.HandleUnauthorized()
		}
	})
}

// transition stores next and notifies subscribers when it differs from the
// last state they were given.
func (m *Machine) transition(next State) {
	m.mu.Lock()
	m.state = next
	if m.notifying {
		m.mu.Unlock()
		return
	}
	m.notifying = true
	m.mu.Unlock()

	m.deliver()
}

// deliver runs with notifying set and loops until subscribers have seen the
// current state.
func (m *Machine) deliver() {
	done := false
	defer func() {
		if !done {
			m.mu.Lock()
			m.notifying = false
			m.mu.Unlock()
		}
	}()

	for {
		m.mu.Lock()
		cur := m.state
		if sameState(cur, m.delivered) {
			m.notifying = false
			done = true
			m.mu.Unlock()
			return
		}
		m.delivered = cur
		subs := make([]func(State), 0, len(m.subs))
		for id := 0; id < m.nextID; id++ {
			if fn, ok := m.subs[id]; ok {
				subs = append(subs, fn)
			}
		}
		m.mu.Unlock()

		for _, fn := range subs {
			fn(cur)
		}
	}
}

func sameState(a, b State) bool {
	if a.Status != b.Status {
		return false
	}
	if a.User == nil || b.User == nil {
		return a.User == b.User
	}
	return *a.User == *b.User
}
