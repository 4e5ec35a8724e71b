package providers

import (
	"context"
	"log/slog"
	"sync"

	"github.com/samber/do/v2"

	"github.com/bookwormapp/bookworm/internal/config"
	"github.com/bookwormapp/bookworm/internal/logger"
	"github.com/bookwormapp/bookworm/internal/search"
)

// SearchIndexHandle owns the bleve index and any background rebuild running
// against it.
type SearchIndexHandle struct {
	*search.SearchIndex

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// Shutdown stops a running rebuild before closing the index.
func (h *SearchIndexHandle) Shutdown() error {
	if h.cancel != nil {
		h.cancel()
	}
	h.wg.Wait()
	return h.Close()
}

// ProvideSearchIndex opens the book search index under the data directory.
func ProvideSearchIndex(i do.Injector) (*SearchIndexHandle, error) {
	cfg := do.MustInvoke[*config.Config](i)
	log := do.MustInvoke[*logger.Logger](i)

	index, err := search.NewSearchIndex(search.Options{
		DataPath: cfg.Data.BasePath,
		Logger:   log.Logger,
	})
	if err != nil {
		return nil, err
	}

	if docs, err := index.DocumentCount(); err != nil {
		log.Warn("search index opened, document count unavailable", "error", err)
	} else {
		log.Debug("search index opened", "documents", docs)
	}

	return &SearchIndexHandle{SearchIndex: index}, nil
}

// TriggerSearchReindexIfNeeded rebuilds an empty index from the store in the
// background. This covers a fresh index directory next to existing data and
// a switch between store backends.
func TriggerSearchReindexIfNeeded(i do.Injector) {
	h := do.MustInvoke[*SearchIndexHandle](i)
	st := do.MustInvoke[*StoreHandle](i)
	log := do.MustInvoke[*logger.Logger](i)

	ctx, cancel := context.WithCancel(context.Background())
	books, ok := reindexNeeded(ctx, h, st, log.Logger)
	if !ok {
		cancel()
		return
	}

	log.Info("search index empty, rebuilding from store", "books", books)

	h.cancel = cancel
	h.wg.Add(1)
	go func() {
		defer h.wg.Done()
		defer cancel()

		indexed, err := h.Reindex(ctx, st.ListAllBooks(ctx))
		if err != nil {
			log.Error("search reindex failed", "error", err)
			return
		}
		log.Info("search reindex finished", "documents", indexed)
	}()
}

type documentCounter interface {
	DocumentCount() (uint64, error)
}

type bookCounter interface {
	CountBooks(ctx context.Context) (int, error)
}

// reindexNeeded reports whether the index is empty while the store holds
// books, and how many. A failed count on either side skips the rebuild.
func reindexNeeded(ctx context.Context, idx documentCounter, st bookCounter, log *slog.Logger) (int, bool) {
	docs, err := idx.DocumentCount()
	if err != nil {
		log.Error("search index count failed, skipping reindex", "error", err)
		return 0, false
	}
	if docs > 0 {
		return 0, false
	}

	books, err := st.CountBooks(ctx)
	if err != nil {
		log.Error("book count failed, skipping reindex", "error", err)
		return 0, false
	}
	return books, books > 0
}
