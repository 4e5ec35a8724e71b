package api

import "github.com/bookwormapp/bookworm/internal/service"

// Services groups the business logic services used by the API server.
type Services struct {
	Auth  *service.AuthService
	Books *service.BookService
}
