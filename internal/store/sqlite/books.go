package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"iter"

	"github.com/bookwormapp/bookworm/internal/domain"
	"github.com/bookwormapp/bookworm/internal/store"
)

// bookColumns must match the scan order in scanBook.
const bookColumns = `id, owner_id, title, caption, image_url, blur_hash, rating, created_at, updated_at`

func scanBook(sc scanner) (*domain.Book, error) {
	var (
		b         domain.Book
		blurHash  sql.NullString
		createdAt string
		updatedAt string
	)

	if err := sc.Scan(&b.ID, &b.OwnerID, &b.Title, &b.Caption, &b.ImageURL, &blurHash, &b.Rating, &createdAt, &updatedAt); err != nil {
		return nil, err
	}

	var err error
	if b.CreatedAt, err = parseTime(createdAt); err != nil {
		return nil, err
	}
	if b.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return nil, err
	}
	b.BlurHash = blurHash.String

	return &b, nil
}

func (s *Store) queryBooks(ctx context.Context, query string, args ...any) ([]*domain.Book, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var books []*domain.Book
	for rows.Next() {
		b, err := scanBook(rows)
		if err != nil {
			return nil, err
		}
		books = append(books, b)
	}
	return books, rows.Err()
}

// CreateBook inserts a new book.
func (s *Store) CreateBook(ctx context.Context, book *domain.Book) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO books (
			id, owner_id, title, caption, image_url, blur_hash, rating, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		book.ID,
		book.OwnerID,
		book.Title,
		book.Caption,
		book.ImageURL,
		nullString(book.BlurHash),
		book.Rating,
		formatTime(book.CreatedAt),
		formatTime(book.UpdatedAt),
	)
	if uniqueViolation(err, "books.id") {
		return store.ErrAlreadyExists
	}
	if err != nil {
		return fmt.Errorf("insert book: %w", err)
	}
	return nil
}

// GetBook retrieves a book by id.
func (s *Store) GetBook(ctx context.Context, id string) (*domain.Book, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+bookColumns+` FROM books WHERE id = ?`, id)

	b, err := scanBook(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, store.ErrBookNotFound
	}
	if err != nil {
		return nil, err
	}
	return b, nil
}

// DeleteBook removes a book. Returns store.ErrBookNotFound if it does not exist.
func (s *Store) DeleteBook(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM books WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete book: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return store.ErrBookNotFound
	}
	return nil
}

// ListBooks returns a window of books in insertion order.
func (s *Store) ListBooks(ctx context.Context, offset, limit int) ([]*domain.Book, error) {
	return s.queryBooks(ctx,
		`SELECT `+bookColumns+` FROM books ORDER BY seq ASC LIMIT ? OFFSET ?`, limit, offset)
}

// CountBooks returns the number of stored books.
func (s *Store) CountBooks(ctx context.Context) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM books`).Scan(&n)
	return n, err
}

// ListBooksByOwner returns the owner's books, newest first.
func (s *Store) ListBooksByOwner(ctx context.Context, ownerID string) ([]*domain.Book, error) {
	return s.queryBooks(ctx,
		`SELECT `+bookColumns+` FROM books WHERE owner_id = ? ORDER BY seq DESC`, ownerID)
}

// ListAllBooks iterates every stored book. Rows are read up front so callers
// may issue other queries while iterating.
func (s *Store) ListAllBooks(ctx context.Context) iter.Seq2[*domain.Book, error] {
	return func(yield func(*domain.Book, error) bool) {
		books, err := s.queryBooks(ctx, `SELECT `+bookColumns+` FROM books ORDER BY seq ASC`)
		if err != nil {
			yield(nil, err)
			return
		}
		for _, b := range books {
			if !yield(b, nil) {
				return
			}
		}
	}
}
