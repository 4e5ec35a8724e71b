package store

import (
	"context"

	"github.com/bookwormapp/bookworm/internal/domain"
	"github.com/bookwormapp/bookworm/internal/normalize"
)

func (s *BadgerStore) initUsers() {
	s.Users = NewEntity[domain.User](s, userPrefix, ErrUserNotFound).
		WithLookupIndex("email",
			func(u *domain.User) []string { return []string{normalize.Identity(u.Email)} },
			normalize.Identity,
			ErrEmailExists,
		).
		WithLookupIndex("username",
			func(u *domain.User) []string { return []string{normalize.Identity(u.Username)} },
			normalize.Identity,
			ErrUsernameExists,
		)
}

// CreateUser stores a new user.
// Returns ErrEmailExists or ErrUsernameExists when either is already taken.
func (s *BadgerStore) CreateUser(ctx context.Context, user *domain.User) error {
	return s.Users.Create(ctx, user.ID, user)
}

// GetUser retrieves a user by id.
func (s *BadgerStore) GetUser(ctx context.Context, id string) (*domain.User, error) {
	return s.Users.Get(ctx, id)
}

// GetUserByEmail retrieves a user by email, ignoring case.
func (s *BadgerStore) GetUserByEmail(ctx context.Context, email string) (*domain.User, error) {
	return s.Users.GetByIndex(ctx, "email", email)
}

// GetUserByUsername retrieves a user by username, ignoring case.
func (s *BadgerStore) GetUserByUsername(ctx context.Context, username string) (*domain.User, error) {
	return s.Users.GetByIndex(ctx, "username", username)
}

// GetUsersByIDs returns the users found among ids.
func (s *BadgerStore) GetUsersByIDs(ctx context.Context, ids []string) (map[string]*domain.User, error) {
	return s.Users.GetMany(ctx, ids)
}
