package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/bookwormapp/bookworm/internal/domain"
	domainerrors "github.com/bookwormapp/bookworm/internal/errors"
	"github.com/bookwormapp/bookworm/internal/id"
	"github.com/bookwormapp/bookworm/internal/logger"
	"github.com/bookwormapp/bookworm/internal/media/images"
	"github.com/bookwormapp/bookworm/internal/search"
	"github.com/bookwormapp/bookworm/internal/store"
	"github.com/bookwormapp/bookworm/internal/validation"
)

const (
	msgBookNotFound   = "Book not found"
	msgInvalidImage   = "Image must be a base64 data URL of a JPEG, PNG, GIF or WebP image"
	msgSearchRequired = "Search query is required"
)

// BookIndex is the full-text index kept alongside the store.
type BookIndex interface {
	IndexBook(ctx context.Context, book *domain.Book) error
	DeleteBook(ctx context.Context, id string) error
	Search(ctx context.Context, q string, limit int) ([]search.Hit, error)
}

// BookService manages book listings, their hosted images and the search index.
type BookService struct {
	store     store.Store
	images    images.Host
	index     BookIndex
	validator *validation.Validator
	logger    *slog.Logger
}

// NewBookService creates a book service. index may be nil, which disables search.
func NewBookService(store store.Store, host images.Host, index BookIndex, log *slog.Logger) *BookService {
	return &BookService{
		store:     store,
		images:    host,
		index:     index,
		validator: validation.New(validation.WithRequiredMessage(msgAllFieldsRequired)),
		logger:    logger.OrDiscard(log),
	}
}

// CreateBookRequest is a new listing. Image is a base64 data URL.
type CreateBookRequest struct {
	Title   string `json:"title" validate:"required,max=200"`
	Caption string `json:"caption" validate:"required,max=2000"`
	Image   string `json:"image" validate:"required"`
	Rating  int    `json:"rating" validate:"required,gte=1,lte=5"`
}

// ListedBook is a book with its owner's public summary. Owner is nil when the
// owner account no longer exists.
type ListedBook struct {
	Book  *domain.Book
	Owner *domain.OwnerSummary
}

// BookPage is one page of the public feed.
type BookPage struct {
	Books       []ListedBook
	CurrentPage int
	TotalPages  int
	TotalBooks  int
}

// Create validates the request, uploads the image and stores the listing.
// Nothing is uploaded unless the request is valid.
func (s *BookService) Create(ctx context.Context, ownerID string, req CreateBookRequest) (*domain.Book, error) {
	req.Title = strings.TrimSpace(req.Title)
	req.Caption = strings.TrimSpace(req.Caption)

	if err := s.validator.Validate(req); err != nil {
		return nil, err
	}

	bookID, err := id.Generate(id.PrefixBook)
	if err != nil {
		return nil, fmt.Errorf("generate book ID: %w", err)
	}

	uploaded, err := s.images.Upload(ctx, req.Image)
	if err != nil {
		if errors.Is(err, images.ErrInvalidImage) {
			return nil, domainerrors.Validation(msgInvalidImage).WithCause(err)
		}
		s.logger.Error("image upload failed", "owner_id", ownerID, "error", err)
		return nil, domainerrors.Wrap(err, domainerrors.CodeInternal, "Failed to upload image")
	}

	book := &domain.Book{
		Title:    req.Title,
		Caption:  req.Caption,
		ImageURL: uploaded.URL,
		BlurHash: uploaded.BlurHash,
		Rating:   req.Rating,
		OwnerID:  ownerID,
	}
	book.ID = bookID
	book.InitTimestamps()

	if err := s.store.CreateBook(ctx, book); err != nil {
		s.logger.Error("persist book failed", "book_id", bookID, "error", err)
		if destroyErr := s.images.Destroy(ctx, uploaded.PublicID); destroyErr != nil {
			s.logger.Warn("failed to remove orphaned image", "public_id", uploaded.PublicID, "error", destroyErr)
		}
		return nil, domainerrors.Wrap(err, domainerrors.CodeInternal, "Failed to create book")
	}

	if s.index != nil {
		if err := s.index.IndexBook(ctx, book); err != nil {
			s.logger.Warn("failed to index book", "book_id", book.ID, "error", err)
		}
	}

	s.logger.Info("book created", "book_id", book.ID, "owner_id", ownerID)

	return book, nil
}

// ListPage returns one page of all books in insertion order, each with its
// owner summary.
func (s *BookService) ListPage(ctx context.Context, page, limit int) (*BookPage, error) {
	params := store.PageParams{Page: page, Limit: limit}
	params.Normalize()

	total, err := s.store.CountBooks(ctx)
	if err != nil {
		return nil, domainerrors.Wrap(err, domainerrors.CodeInternal, "Failed to count books")
	}

	books, err := s.store.ListBooks(ctx, params.Offset(), params.Limit)
	if err != nil {
		return nil, domainerrors.Wrap(err, domainerrors.CodeInternal, "Failed to list books")
	}

	listed, err := s.withOwners(ctx, books)
	if err != nil {
		return nil, err
	}

	return &BookPage{
		Books:       listed,
		CurrentPage: params.Page,
		TotalPages:  params.TotalPages(total),
		TotalBooks:  total,
	}, nil
}

// ListByOwner returns every book of ownerID, newest first.
func (s *BookService) ListByOwner(ctx context.Context, ownerID string) ([]*domain.Book, error) {
	books, err := s.store.ListBooksByOwner(ctx, ownerID)
	if err != nil {
		return nil, domainerrors.Wrap(err, domainerrors.CodeInternal, "Failed to list books")
	}
	return books, nil
}

// Delete removes a book owned by requesterID along with its hosted image.
// Neither a missing book nor a foreign one changes anything.
func (s *BookService) Delete(ctx context.Context, bookID, requesterID string) error {
	book, err := s.store.GetBook(ctx, bookID)
	if err != nil {
		if errors.Is(err, store.ErrBookNotFound) {
			return domainerrors.NotFound(msgBookNotFound)
		}
		return domainerrors.Wrap(err, domainerrors.CodeInternal, "Failed to delete book")
	}

	if !book.OwnedBy(requesterID) {
		s.logger.Warn("delete rejected for non-owner", "book_id", bookID, "requester_id", requesterID)
		return domainerrors.Unauthorized(msgUnauthorized)
	}

	if book.ImageURL != "" {
		if publicID := images.PublicIDFromURL(book.ImageURL); publicID != "" {
			if err := s.images.Destroy(ctx, publicID); err != nil {
				s.logger.Warn("failed to delete hosted image", "book_id", bookID, "public_id", publicID, "error", err)
			}
		}
	}

	if err := s.store.DeleteBook(ctx, bookID); err != nil {
		if errors.Is(err, store.ErrBookNotFound) {
			return domainerrors.NotFound(msgBookNotFound)
		}
		return domainerrors.Wrap(err, domainerrors.CodeInternal, "Failed to delete book")
	}

	if s.index != nil {
		if err := s.index.DeleteBook(ctx, bookID); err != nil {
			s.logger.Warn("failed to remove book from index", "book_id", bookID, "error", err)
		}
	}

	s.logger.Info("book deleted", "book_id", bookID, "owner_id", requesterID)

	return nil
}

// Search finds books by title and caption. Hits whose book has since been
// deleted are skipped.
func (s *BookService) Search(ctx context.Context, q string, limit int) ([]ListedBook, error) {
	if strings.TrimSpace(q) == "" {
		return nil, domainerrors.Validation(msgSearchRequired)
	}
	if s.index == nil {
		return nil, domainerrors.Internal("Search is unavailable")
	}

	hits, err := s.index.Search(ctx, q, limit)
	if err != nil {
		if errors.Is(err, search.ErrEmptyQuery) {
			return nil, domainerrors.Validation(msgSearchRequired)
		}
		return nil, domainerrors.Wrap(err, domainerrors.CodeInternal, "Search failed")
	}

	books := make([]*domain.Book, 0, len(hits))
	for _, hit := range hits {
		book, err := s.store.GetBook(ctx, hit.ID)
		if err != nil {
			if errors.Is(err, store.ErrBookNotFound) {
				s.logger.Debug("skipping stale search hit", "book_id", hit.ID)
				continue
			}
			return nil, domainerrors.Wrap(err, domainerrors.CodeInternal, "Search failed")
		}
		books = append(books, book)
	}

	return s.withOwners(ctx, books)
}

// withOwners attaches owner summaries with a single batched user lookup.
func (s *BookService) withOwners(ctx context.Context, books []*domain.Book) ([]ListedBook, error) {
	ownerIDs := make([]string, 0, len(books))
	seen := make(map[string]struct{}, len(books))
	for _, b := range books {
		if _, ok := seen[b.OwnerID]; ok {
			continue
		}
		seen[b.OwnerID] = struct{}{}
		ownerIDs = append(ownerIDs, b.OwnerID)
	}

	owners, err := s.store.GetUsersByIDs(ctx, ownerIDs)
	if err != nil {
		return nil, domainerrors.Wrap(err, domainerrors.CodeInternal, "Failed to load book owners")
	}

	listed := make([]ListedBook, 0, len(books))
	for _, b := range books {
		item := ListedBook{Book: b}
		if owner, ok := owners[b.OwnerID]; ok {
			summary := owner.Summary()
			item.Owner = &summary
		}
		listed = append(listed, item)
	}
	return listed, nil
}
