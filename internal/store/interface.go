// Package store persists BookWorm users and books. The default backend is a
// badger document store; package sqlite provides a relational alternative.
package store

import (
	"context"
	"iter"

	"github.com/bookwormapp/bookworm/internal/domain"
)

// Store defines the persistence operations the services depend on.
type Store interface {
	// Users
	CreateUser(ctx context.Context, user *domain.User) error
	GetUser(ctx context.Context, id string) (*domain.User, error)
	GetUserByEmail(ctx context.Context, email string) (*domain.User, error)
	GetUserByUsername(ctx context.Context, username string) (*domain.User, error)
	// GetUsersByIDs returns the users found, keyed by id. Unknown ids are skipped.
	GetUsersByIDs(ctx context.Context, ids []string) (map[string]*domain.User, error)

	// Books
	CreateBook(ctx context.Context, book *domain.Book) error
	GetBook(ctx context.Context, id string) (*domain.Book, error)
	DeleteBook(ctx context.Context, id string) error
	// ListBooks returns books in insertion order.
	ListBooks(ctx context.Context, offset, limit int) ([]*domain.Book, error)
	CountBooks(ctx context.Context) (int, error)
	// ListBooksByOwner returns the owner's books, newest first.
	ListBooksByOwner(ctx context.Context, ownerID string) ([]*domain.Book, error)
	ListAllBooks(ctx context.Context) iter.Seq2[*domain.Book, error]

	// Lifecycle
	Ping(ctx context.Context) error
	Close() error
}

var _ Store = (*BadgerStore)(nil)
