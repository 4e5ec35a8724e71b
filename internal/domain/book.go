// Package domain contains the core entities shared by the store, services and API.
package domain

// Rating bounds for a book review.
const (
	MinRating = 1
	MaxRating = 5
)

// Book is a shared book recommendation with a hosted cover image.
// Books are immutable once listed; the only mutation is a full delete by the owner.
type Book struct {
	Record
	Title    string `json:"title"`
	Caption  string `json:"caption"`
	ImageURL string `json:"image"`
	BlurHash string `json:"blurHash,omitempty"`
	Rating   int    `json:"rating"`
	OwnerID  string `json:"user"`
}

// OwnedBy reports whether userID owns the book.
func (b *Book) OwnedBy(userID string) bool {
	return userID != "" && b.OwnerID == userID
}

// ValidRating reports whether r is within the accepted rating range.
func ValidRating(r int) bool {
	return r >= MinRating && r <= MaxRating
}
