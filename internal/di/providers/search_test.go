package providers

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
)

type fakeDocs struct {
	n   uint64
	err error
}

func (f fakeDocs) DocumentCount() (uint64, error) { return f.n, f.err }

type fakeBooks struct {
	n     int
	err   error
	calls *int
}

func (f fakeBooks) CountBooks(context.Context) (int, error) {
	if f.calls != nil {
		*f.calls++
	}
	return f.n, f.err
}

func TestReindexNeeded(t *testing.T) {
	tests := []struct {
		name      string
		docs      fakeDocs
		books     fakeBooks
		wantBooks int
		wantOK    bool
		wantLog   string
	}{
		{name: "empty index with books", docs: fakeDocs{n: 0}, books: fakeBooks{n: 12}, wantBooks: 12, wantOK: true},
		{name: "populated index", docs: fakeDocs{n: 12}, books: fakeBooks{n: 12}},
		{name: "empty store", docs: fakeDocs{n: 0}, books: fakeBooks{n: 0}},
		{
			name:    "index count fails",
			docs:    fakeDocs{err: errors.New("index closed")},
			books:   fakeBooks{n: 12},
			wantLog: "search index count failed",
		},
		{
			name:    "book count fails",
			docs:    fakeDocs{n: 0},
			books:   fakeBooks{err: errors.New("store closed")},
			wantLog: "book count failed",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			log := slog.New(slog.NewTextHandler(&buf, nil))

			books, ok := reindexNeeded(context.Background(), tt.docs, tt.books, log)

			assert.Equal(t, tt.wantOK, ok)
			assert.Equal(t, tt.wantBooks, books)
			if tt.wantLog != "" {
				assert.Contains(t, buf.String(), tt.wantLog)
			}
		})
	}
}

func TestReindexNeeded_IndexErrorSkipsStore(t *testing.T) {
	calls := 0
	_, ok := reindexNeeded(context.Background(),
		fakeDocs{err: errors.New("index closed")},
		fakeBooks{n: 3, calls: &calls},
		slog.New(slog.DiscardHandler))

	assert.False(t, ok)
	assert.Zero(t, calls)
}
