package api

import (
	"context"
	"net/http"
	"time"

	"github.com/danielgtaylor/huma/v2"

	"github.com/bookwormapp/bookworm/internal/domain"
	"github.com/bookwormapp/bookworm/internal/service"
)

var bearerSecurity = []map[string][]string{{"bearer": {}}}

func (s *Server) registerBookRoutes() {
	huma.Register(s.api, huma.Operation{
		OperationID: "listBooks",
		Method:      http.MethodGet,
		Path:        "/api/books",
		Summary:     "List books",
		Description: "Returns one page of all listed books with their owners",
		Tags:        []string{"Books"},
	}, s.handleListBooks)

	huma.Register(s.api, huma.Operation{
		OperationID: "listMyBooks",
		Method:      http.MethodGet,
		Path:        "/api/books/user",
		Summary:     "List my books",
		Description: "Returns every book of the authenticated user, newest first",
		Tags:        []string{"Books"},
		Security:    bearerSecurity,
		Errors:      []int{http.StatusUnauthorized},
	}, s.handleListMyBooks)

	huma.Register(s.api, huma.Operation{
		OperationID:   "createBook",
		Method:        http.MethodPost,
		Path:          "/api/books",
		Summary:       "Create book",
		Description:   "Lists a book. The image is a base64 data URL and is hosted by the server.",
		Tags:          []string{"Books"},
		Security:      bearerSecurity,
		DefaultStatus: http.StatusCreated,
		MaxBodyBytes:  s.cfg.BodyLimit,
		Errors:        []int{http.StatusBadRequest, http.StatusUnauthorized, http.StatusRequestEntityTooLarge},
	}, s.handleCreateBook)

	huma.Register(s.api, huma.Operation{
		OperationID: "deleteBook",
		Method:      http.MethodDelete,
		Path:        "/api/books/{id}",
		Summary:     "Delete book",
		Description: "Deletes a book and its image. Only the owner may delete.",
		Tags:        []string{"Books"},
		Security:    bearerSecurity,
		Errors:      []int{http.StatusUnauthorized, http.StatusNotFound},
	}, s.handleDeleteBook)
}

// === DTOs ===

// OwnerResponse is the denormalized owner attached to listed books.
type OwnerResponse struct {
	ID           string `json:"id" doc:"Owner user ID"`
	Username     string `json:"username" doc:"Owner display name"`
	ProfileImage string `json:"profileImage" doc:"Owner avatar URL"`
}

// BookResponse is a book as returned to its owner; user is the owner ID.
type BookResponse struct {
	ID        string    `json:"id" doc:"Book ID"`
	Title     string    `json:"title" doc:"Title"`
	Caption   string    `json:"caption" doc:"Short review"`
	Image     string    `json:"image" doc:"Hosted cover image URL"`
	BlurHash  string    `json:"blurHash,omitempty" doc:"BlurHash placeholder for the cover"`
	Rating    int       `json:"rating" doc:"Rating from 1 to 5"`
	User      string    `json:"user" doc:"Owner user ID"`
	CreatedAt time.Time `json:"createdAt" doc:"Creation time"`
	UpdatedAt time.Time `json:"updatedAt" doc:"Last update time"`
}

func newBookResponse(b *domain.Book) BookResponse {
	return BookResponse{
		ID:        b.ID,
		Title:     b.Title,
		Caption:   b.Caption,
		Image:     b.ImageURL,
		BlurHash:  b.BlurHash,
		Rating:    b.Rating,
		User:      b.OwnerID,
		CreatedAt: b.CreatedAt,
		UpdatedAt: b.UpdatedAt,
	}
}

// ListedBookResponse is a book in the public feed; user is the owner summary,
// null when the owner no longer exists.
type ListedBookResponse struct {
	ID        string         `json:"id" doc:"Book ID"`
	Title     string         `json:"title" doc:"Title"`
	Caption   string         `json:"caption" doc:"Short review"`
	Image     string         `json:"image" doc:"Hosted cover image URL"`
	BlurHash  string         `json:"blurHash,omitempty" doc:"BlurHash placeholder for the cover"`
	Rating    int            `json:"rating" doc:"Rating from 1 to 5"`
	User      *OwnerResponse `json:"user" doc:"Owner summary"`
	CreatedAt time.Time      `json:"createdAt" doc:"Creation time"`
	UpdatedAt time.Time      `json:"updatedAt" doc:"Last update time"`
}

func newListedBookResponses(items []service.ListedBook) []ListedBookResponse {
	out := make([]ListedBookResponse, 0, len(items))
	for _, item := range items {
		b := item.Book
		resp := ListedBookResponse{
			ID:        b.ID,
			Title:     b.Title,
			Caption:   b.Caption,
			Image:     b.ImageURL,
			BlurHash:  b.BlurHash,
			Rating:    b.Rating,
			CreatedAt: b.CreatedAt,
			UpdatedAt: b.UpdatedAt,
		}
		if item.Owner != nil {
			resp.User = &OwnerResponse{
				ID:           item.Owner.ID,
				Username:     item.Owner.Username,
				ProfileImage: item.Owner.ProfileImage,
			}
		}
		out = append(out, resp)
	}
	return out
}

// ListBooksInput contains the page parameters.
type ListBooksInput struct {
	Page  int `query:"page" default:"1" doc:"Page number, from 1"`
	Limit int `query:"limit" default:"5" doc:"Books per page, at most 50"`
}

// BookPageResponse is one page of the feed.
type BookPageResponse struct {
	Books       []ListedBookResponse `json:"books" doc:"Books on this page"`
	CurrentPage int                  `json:"currentPage" doc:"Page returned"`
	TotalPages  int                  `json:"totalPages" doc:"Total number of pages"`
	TotalBooks  int                  `json:"totalBooks" doc:"Total number of books"`
}

// ListBooksOutput wraps the page for Huma.
type ListBooksOutput struct {
	Body BookPageResponse
}

// ListMyBooksOutput wraps the owner's books for Huma.
type ListMyBooksOutput struct {
	Body []BookResponse
}

// CreateBookRequest is the request body for a new listing.
// Fields are optional in the schema so missing ones get the service's message.
type CreateBookRequest struct {
	Title   string `json:"title,omitempty" doc:"Title"`
	Caption string `json:"caption,omitempty" doc:"Short review"`
	Image   string `json:"image,omitempty" doc:"Cover as a base64 data URL"`
	Rating  int    `json:"rating,omitempty" doc:"Rating from 1 to 5"`
}

// CreateBookInput wraps the create request for Huma.
type CreateBookInput struct {
	Body CreateBookRequest
}

// BookOutput wraps a single book for Huma.
type BookOutput struct {
	Body BookResponse
}

// DeleteBookInput contains the book ID path parameter.
type DeleteBookInput struct {
	ID string `path:"id" doc:"Book ID"`
}

// MessageResponse is a plain acknowledgement.
type MessageResponse struct {
	Message string `json:"message" doc:"Result message"`
}

// MessageOutput wraps a message for Huma.
type MessageOutput struct {
	Body MessageResponse
}

// === Handlers ===

func (s *Server) handleListBooks(ctx context.Context, input *ListBooksInput) (*ListBooksOutput, error) {
	page, err := s.services.Books.ListPage(ctx, input.Page, input.Limit)
	if err != nil {
		return nil, err
	}

	return &ListBooksOutput{Body: BookPageResponse{
		Books:       newListedBookResponses(page.Books),
		CurrentPage: page.CurrentPage,
		TotalPages:  page.TotalPages,
		TotalBooks:  page.TotalBooks,
	}}, nil
}

func (s *Server) handleListMyBooks(ctx context.Context, _ *struct{}) (*ListMyBooksOutput, error) {
	user, err := RequireUser(ctx)
	if err != nil {
		return nil, err
	}

	books, err := s.services.Books.ListByOwner(ctx, user.ID)
	if err != nil {
		return nil, err
	}

	out := make([]BookResponse, 0, len(books))
	for _, b := range books {
		out = append(out, newBookResponse(b))
	}
	return &ListMyBooksOutput{Body: out}, nil
}

func (s *Server) handleCreateBook(ctx context.Context, input *CreateBookInput) (*BookOutput, error) {
	user, err := RequireUser(ctx)
	if err != nil {
		return nil, err
	}

	book, err := s.services.Books.Create(ctx, user.ID, service.CreateBookRequest{
		Title:   input.Body.Title,
		Caption: input.Body.Caption,
		Image:   input.Body.Image,
		Rating:  input.Body.Rating,
	})
	if err != nil {
		return nil, err
	}

	return &BookOutput{Body: newBookResponse(book)}, nil
}

func (s *Server) handleDeleteBook(ctx context.Context, input *DeleteBookInput) (*MessageOutput, error) {
	user, err := RequireUser(ctx)
	if err != nil {
		return nil, err
	}

	if err := s.services.Books.Delete(ctx, input.ID, user.ID); err != nil {
		return nil, err
	}

	return &MessageOutput{Body: MessageResponse{Message: "Book deleted successfully"}}, nil
}
