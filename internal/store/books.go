package store

import (
	"context"
	"iter"

	"github.com/bookwormapp/bookworm/internal/domain"
)

const (
	bookSeqIndex   = "seq"
	bookOwnerIndex = "owner"
)

func (s *BadgerStore) initBooks() {
	s.Books = NewEntity[domain.Book](s, bookPrefix, ErrBookNotFound).
		WithIndex(bookSeqIndex, func(b *domain.Book) []string {
			return []string{sequenceValue(b.CreatedAt, b.ID)}
		}).
		WithIndex(bookOwnerIndex, func(b *domain.Book) []string {
			return []string{b.OwnerID + ":" + sequenceValue(b.CreatedAt, b.ID)}
		})
}

// CreateBook stores a new book.
func (s *BadgerStore) CreateBook(ctx context.Context, book *domain.Book) error {
	return s.Books.Create(ctx, book.ID, book)
}

// GetBook retrieves a book by id.
func (s *BadgerStore) GetBook(ctx context.Context, id string) (*domain.Book, error) {
	return s.Books.Get(ctx, id)
}

// DeleteBook removes a book. Returns ErrBookNotFound if it does not exist.
func (s *BadgerStore) DeleteBook(ctx context.Context, id string) error {
	return s.Books.Delete(ctx, id)
}

// ListBooks returns a window of books in creation order.
func (s *BadgerStore) ListBooks(ctx context.Context, offset, limit int) ([]*domain.Book, error) {
	return s.Books.ListByIndex(ctx, bookSeqIndex, ScanOptions{Offset: offset, Limit: limit})
}

// CountBooks returns the number of stored books.
func (s *BadgerStore) CountBooks(ctx context.Context) (int, error) {
	return s.Books.CountIndex(ctx, bookSeqIndex, "")
}

// ListBooksByOwner returns all of an owner's books, newest first.
func (s *BadgerStore) ListBooksByOwner(ctx context.Context, ownerID string) ([]*domain.Book, error) {
	return s.Books.ListByIndex(ctx, bookOwnerIndex, ScanOptions{Within: ownerID + ":", Reverse: true})
}

// ListAllBooks iterates every stored book.
func (s *BadgerStore) ListAllBooks(ctx context.Context) iter.Seq2[*domain.Book, error] {
	return s.Books.List(ctx)
}
