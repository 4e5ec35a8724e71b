package search

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/search/query"

	"github.com/bookwormapp/bookworm/internal/domain"
	"github.com/bookwormapp/bookworm/internal/logger"
)

// Search limits.
const (
	DefaultLimit = 20
	MaxLimit     = 50
)

// reindexBatchSize bounds memory during a full reindex.
const reindexBatchSize = 500

// mappingVersion is incremented whenever the index mapping changes.
// A mismatch on startup triggers a rebuild.
const mappingVersion = "1"

// ErrEmptyQuery is returned when the query has no searchable text.
var ErrEmptyQuery = errors.New("search query is empty")

// SearchIndex wraps a Bleve index of books.
//
// All methods are safe for concurrent use. The mutex guards the index
// handle, which Rebuild swaps out.
type SearchIndex struct {
	index  bleve.Index
	path   string
	logger *slog.Logger
	mu     sync.RWMutex
}

// Options configures the search index.
type Options struct {
	DataPath string       // Directory for index storage
	Logger   *slog.Logger // Discards when nil
	InMemory bool         // Skip the filesystem entirely
}

// NewSearchIndex opens the index under DataPath or creates it.
// An index with an outdated mapping version or one that fails to open is
// removed and recreated empty; callers reindex from the store afterwards.
func NewSearchIndex(opts Options) (*SearchIndex, error) {
	log := logger.OrDiscard(opts.Logger)

	if opts.InMemory {
		index, err := bleve.NewMemOnly(buildIndexMapping())
		if err != nil {
			return nil, fmt.Errorf("create memory index: %w", err)
		}
		return &SearchIndex{index: index, logger: log}, nil
	}

	if err := os.MkdirAll(opts.DataPath, 0o755); err != nil {
		return nil, fmt.Errorf("create search dir: %w", err)
	}

	indexPath := filepath.Join(opts.DataPath, "search.bleve")
	versionPath := filepath.Join(opts.DataPath, "search.version")

	var index bleve.Index
	var err error
	needsRebuild := false

	indexExists := false
	if _, statErr := os.Stat(indexPath); statErr == nil {
		indexExists = true
	}

	if indexExists {
		existingVersion, readErr := os.ReadFile(versionPath)
		switch {
		case readErr != nil:
			log.Info("search index has no version file, rebuilding", "new_version", mappingVersion)
			needsRebuild = true
		case string(existingVersion) != mappingVersion:
			log.Info("search index mapping version changed, rebuilding",
				"old_version", string(existingVersion),
				"new_version", mappingVersion,
			)
			needsRebuild = true
		}
	}

	if !needsRebuild && indexExists {
		index, err = bleve.Open(indexPath)
		if err != nil {
			log.Warn("failed to open existing index, will recreate", "path", indexPath, "error", err)
			needsRebuild = true
		}
	}

	if needsRebuild {
		if removeErr := os.RemoveAll(indexPath); removeErr != nil {
			return nil, fmt.Errorf("remove old index: %w", removeErr)
		}
		index = nil
	}

	if index == nil {
		index, err = bleve.New(indexPath, buildIndexMapping())
		if err != nil {
			return nil, fmt.Errorf("create index: %w", err)
		}
		if writeErr := os.WriteFile(versionPath, []byte(mappingVersion), 0o644); writeErr != nil {
			log.Warn("failed to write search version file", "error", writeErr)
		}
		log.Info("created new search index", "path", indexPath, "mapping_version", mappingVersion)
	} else {
		log.Info("opened existing search index", "path", indexPath)
	}

	return &SearchIndex{
		index:  index,
		path:   indexPath,
		logger: log,
	}, nil
}

// Close closes the index and releases resources.
func (s *SearchIndex) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.index.Close()
}

// IndexBook adds or replaces a book in the index.
func (s *SearchIndex) IndexBook(_ context.Context, book *domain.Book) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	doc := NewBookDocument(book)
	return s.index.Index(doc.ID, doc.ToMap())
}

// DeleteBook removes a book from the index. Unknown ids are not an error.
func (s *SearchIndex) DeleteBook(_ context.Context, id string) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.index.Delete(id)
}

// DocumentCount returns the number of indexed books.
func (s *SearchIndex) DocumentCount() (uint64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.index.DocCount()
}

// Reindex indexes every book from books in batches and returns how many
// were indexed. Existing documents with the same id are replaced.
func (s *SearchIndex) Reindex(ctx context.Context, books iter.Seq2[*domain.Book, error]) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	batch := s.index.NewBatch()
	total := 0

	for book, err := range books {
		if err != nil {
			return total, fmt.Errorf("read books: %w", err)
		}
		if err := ctx.Err(); err != nil {
			return total, err
		}

		doc := NewBookDocument(book)
		if err := batch.Index(doc.ID, doc.ToMap()); err != nil {
			return total, fmt.Errorf("batch index %s: %w", doc.ID, err)
		}

		if batch.Size() >= reindexBatchSize {
			if err := s.index.Batch(batch); err != nil {
				return total, fmt.Errorf("commit batch: %w", err)
			}
			total += batch.Size()
			batch.Reset()
		}
	}

	if batch.Size() > 0 {
		if err := s.index.Batch(batch); err != nil {
			return total, fmt.Errorf("commit batch: %w", err)
		}
		total += batch.Size()
	}

	s.logger.Info("search index rebuilt from store", "books", total)
	return total, nil
}

// Hit is a single search match.
type Hit struct {
	ID    string
	Score float64
}

// Search runs a full-text query over title and caption and returns hits by
// descending relevance. limit falls back to DefaultLimit and is capped at MaxLimit.
func (s *SearchIndex) Search(ctx context.Context, q string, limit int) ([]Hit, error) {
	q = strings.TrimSpace(q)
	if q == "" {
		return nil, ErrEmptyQuery
	}
	if limit < 1 {
		limit = DefaultLimit
	}
	if limit > MaxLimit {
		limit = MaxLimit
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	req := bleve.NewSearchRequestOptions(buildBookQuery(q), limit, 0, false)
	res, err := s.index.SearchInContext(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("execute search: %w", err)
	}

	hits := make([]Hit, 0, len(res.Hits))
	for _, h := range res.Hits {
		hits = append(hits, Hit{ID: h.ID, Score: h.Score})
	}
	return hits, nil
}

// buildBookQuery matches the text against title (boosted) and caption, and
// treats the last word as a title prefix so partially typed queries still hit.
func buildBookQuery(text string) query.Query {
	title := bleve.NewMatchQuery(text)
	title.SetField("title")
	title.SetBoost(2.0)

	caption := bleve.NewMatchQuery(text)
	caption.SetField("caption")

	queries := []query.Query{title, caption}

	words := strings.Fields(strings.ToLower(text))
	if last := words[len(words)-1]; len(last) >= 2 {
		prefix := bleve.NewPrefixQuery(last)
		prefix.SetField("title")
		prefix.SetBoost(1.5)
		queries = append(queries, prefix)
	}

	return bleve.NewDisjunctionQuery(queries...)
}

// Rebuild drops the index and creates an empty one with the current mapping.
// It blocks all other operations while it runs.
func (s *SearchIndex) Rebuild() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.index.Close(); err != nil {
		return fmt.Errorf("close index: %w", err)
	}

	if s.path == "" {
		index, err := bleve.NewMemOnly(buildIndexMapping())
		if err != nil {
			return fmt.Errorf("create memory index: %w", err)
		}
		s.index = index
		return nil
	}

	if err := os.RemoveAll(s.path); err != nil {
		return fmt.Errorf("remove index: %w", err)
	}

	index, err := bleve.New(s.path, buildIndexMapping())
	if err != nil {
		return fmt.Errorf("create index: %w", err)
	}

	s.index = index
	s.logger.Info("rebuilt search index", "path", s.path)

	return nil
}
