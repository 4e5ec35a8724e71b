package apiclient

import (
	"bytes"
	"encoding/json"
	"time"
)

// User is the account returned by register and login.
type User struct {
	ID           string    `json:"id"`
	Username     string    `json:"username"`
	Email        string    `json:"email"`
	ProfileImage string    `json:"profileImage"`
	CreatedAt    time.Time `json:"createdAt"`
}

// AuthResult carries the user and the bearer token to persist.
type AuthResult struct {
	User  User   `json:"user"`
	Token string `json:"token"`
}

// RegisterInput is the body of POST /api/auth/register.
type RegisterInput struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

// Owner is the owner summary embedded in feed entries.
type Owner struct {
	ID           string `json:"id"`
	Username     string `json:"username"`
	ProfileImage string `json:"profileImage"`
}

// Book is a listed book. The server sends "user" either as the owner id or,
// in the feed, as an owner summary; both populate UserID.
type Book struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	Caption   string    `json:"caption"`
	Image     string    `json:"image"`
	BlurHash  string    `json:"blurHash,omitempty"`
	Rating    int       `json:"rating"`
	UserID    string    `json:"-"`
	Owner     *Owner    `json:"-"`
	CreatedAt time.Time `json:"createdAt"`
}

// UnmarshalJSON implements json.Unmarshaler.
func (b *Book) UnmarshalJSON(data []byte) error {
	type plain Book
	var raw struct {
		plain
		User json.RawMessage `json:"user"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*b = Book(raw.plain)

	user := bytes.TrimSpace(raw.User)
	switch {
	case len(user) == 0 || bytes.Equal(user, []byte("null")):
	case user[0] == '"':
		return json.Unmarshal(user, &b.UserID)
	default:
		var owner Owner
		if err := json.Unmarshal(user, &owner); err != nil {
			return err
		}
		b.Owner = &owner
		b.UserID = owner.ID
	}
	return nil
}

// BookPage is one page of the public feed.
type BookPage struct {
	Books       []Book `json:"books"`
	CurrentPage int    `json:"currentPage"`
	TotalPages  int    `json:"totalPages"`
	TotalBooks  int    `json:"totalBooks"`
}

// CreateBookInput is the body of POST /api/books. Image is a base64 data URL.
type CreateBookInput struct {
	Title   string `json:"title"`
	Caption string `json:"caption"`
	Image   string `json:"image"`
	Rating  int    `json:"rating"`
}

// SearchResult is the response of GET /api/books/search.
type SearchResult struct {
	Query string `json:"query"`
	Books []Book `json:"books"`
}

// ComponentHealth is one entry of the health report.
type ComponentHealth struct {
	Status  string `json:"status"`
	Latency string `json:"latency,omitempty"`
	Message string `json:"message,omitempty"`
}

// HealthStatus is the response of GET /health.
type HealthStatus struct {
	Status     string                     `json:"status"`
	Components map[string]ComponentHealth `json:"components"`
}

type messageResponse struct {
	Message string `json:"message"`
}
