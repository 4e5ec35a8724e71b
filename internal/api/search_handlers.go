package api

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"
)

func (s *Server) registerSearchRoutes() {
	huma.Register(s.api, huma.Operation{
		OperationID: "searchBooks",
		Method:      http.MethodGet,
		Path:        "/api/books/search",
		Summary:     "Search books",
		Description: "Full-text search over book titles and captions",
		Tags:        []string{"Books"},
		Errors:      []int{http.StatusBadRequest},
	}, s.handleSearchBooks)
}

// SearchBooksInput contains the search query parameters.
type SearchBooksInput struct {
	Query string `query:"q" doc:"Search text"`
	Limit int    `query:"limit" default:"20" doc:"Maximum results, at most 50"`
}

// SearchBooksResponse contains matching books by relevance.
type SearchBooksResponse struct {
	Query string               `json:"query" doc:"The query that was run"`
	Books []ListedBookResponse `json:"books" doc:"Matching books, best match first"`
}

// SearchBooksOutput wraps the search response for Huma.
type SearchBooksOutput struct {
	Body SearchBooksResponse
}

func (s *Server) handleSearchBooks(ctx context.Context, input *SearchBooksInput) (*SearchBooksOutput, error) {
	results, err := s.services.Books.Search(ctx, input.Query, input.Limit)
	if err != nil {
		return nil, err
	}

	return &SearchBooksOutput{Body: SearchBooksResponse{
		Query: input.Query,
		Books: newListedBookResponses(results),
	}}, nil
}
