// Package search provides a bleve full-text index over listed books.
package search

import (
	"time"

	"github.com/bookwormapp/bookworm/internal/domain"
)

// BookDocument is the indexed representation of a book.
type BookDocument struct {
	ID        string
	Title     string
	Caption   string
	OwnerID   string
	Rating    int
	CreatedAt time.Time
}

// NewBookDocument builds the indexed document for b.
func NewBookDocument(b *domain.Book) *BookDocument {
	return &BookDocument{
		ID:        b.ID,
		Title:     b.Title,
		Caption:   b.Caption,
		OwnerID:   b.OwnerID,
		Rating:    b.Rating,
		CreatedAt: b.CreatedAt,
	}
}

// ToMap converts the document to the field names used by the mapping.
func (d *BookDocument) ToMap() map[string]any {
	return map[string]any{
		"title":      d.Title,
		"caption":    d.Caption,
		"owner_id":   d.OwnerID,
		"rating":     float64(d.Rating),
		"created_at": d.CreatedAt,
	}
}
