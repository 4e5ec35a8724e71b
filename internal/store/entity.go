package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"iter"
	"strings"

	"github.com/dgraph-io/badger/v4"
)

// Entity provides generic JSON document storage with unique secondary indexes.
//
// Layout:
//
//	<prefix><id>                       -> JSON document
//	<prefix>idx:<index>:<value>        -> id
type Entity[T any] struct {
	store    *BadgerStore
	prefix   string
	notFound error
	indexes  []Index[T]
}

// Index defines a secondary index on an entity. Every value an index
// produces must be unique across all records.
type Index[T any] struct {
	name            string
	keyGen          func(*T) []string
	lookupTransform func(string) string
	conflict        error
}

// NewEntity creates an Entity stored under prefix. notFound is returned by
// lookups that miss.
func NewEntity[T any](s *BadgerStore, prefix string, notFound error) *Entity[T] {
	return &Entity[T]{store: s, prefix: prefix, notFound: notFound}
}

// WithIndex adds a secondary index.
func (e *Entity[T]) WithIndex(name string, keyGen func(*T) []string) *Entity[T] {
	e.indexes = append(e.indexes, Index[T]{name: name, keyGen: keyGen, conflict: ErrAlreadyExists})
	return e
}

// WithLookupIndex adds a secondary index whose lookups pass through transform
// first, and which reports conflict when a value is already taken.
func (e *Entity[T]) WithLookupIndex(name string, keyGen func(*T) []string, transform func(string) string, conflict error) *Entity[T] {
	e.indexes = append(e.indexes, Index[T]{
		name:            name,
		keyGen:          keyGen,
		lookupTransform: transform,
		conflict:        conflict,
	})
	return e
}

func (e *Entity[T]) index(name string) (Index[T], bool) {
	for _, idx := range e.indexes {
		if idx.name == name {
			return idx, true
		}
	}
	return Index[T]{}, false
}

// Create stores a new entity under id.
// Returns ErrAlreadyExists if the id is taken, or the index's conflict error.
func (e *Entity[T]) Create(ctx context.Context, id string, entity *T) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	data, err := json.Marshal(entity)
	if err != nil {
		return fmt.Errorf("marshal entity: %w", err)
	}

	key := []byte(e.prefix + id)

	return e.store.db.Update(func(txn *badger.Txn) error {
		if _, err := txn.Get(key); err == nil {
			return ErrAlreadyExists
		} else if !errors.Is(err, badger.ErrKeyNotFound) {
			return fmt.Errorf("check existing key: %w", err)
		}

		for _, idx := range e.indexes {
			for _, v := range idx.keyGen(entity) {
				_, err := txn.Get(indexKey(e.prefix, idx.name, v))
				if err == nil {
					return idx.conflict
				}
				if !errors.Is(err, badger.ErrKeyNotFound) {
					return fmt.Errorf("check index %s: %w", idx.name, err)
				}
			}
		}

		if err := txn.Set(key, data); err != nil {
			return fmt.Errorf("set key: %w", err)
		}
		for _, idx := range e.indexes {
			for _, v := range idx.keyGen(entity) {
				if err := txn.Set(indexKey(e.prefix, idx.name, v), []byte(id)); err != nil {
					return fmt.Errorf("set index %s: %w", idx.name, err)
				}
			}
		}
		return nil
	})
}

// Get retrieves an entity by id.
func (e *Entity[T]) Get(ctx context.Context, id string) (*T, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var entity *T
	err := e.store.db.View(func(txn *badger.Txn) error {
		var err error
		entity, err = e.getTxn(txn, id)
		return err
	})
	if err != nil {
		return nil, err
	}
	return entity, nil
}

func (e *Entity[T]) getTxn(txn *badger.Txn, id string) (*T, error) {
	item, err := txn.Get([]byte(e.prefix + id))
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, e.notFound
	}
	if err != nil {
		return nil, fmt.Errorf("get key: %w", err)
	}

	var entity T
	if err := item.Value(func(val []byte) error {
		return json.Unmarshal(val, &entity)
	}); err != nil {
		return nil, fmt.Errorf("unmarshal entity: %w", err)
	}
	return &entity, nil
}

// GetByIndex retrieves an entity through a secondary index.
func (e *Entity[T]) GetByIndex(ctx context.Context, indexName, value string) (*T, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	if idx, ok := e.index(indexName); ok && idx.lookupTransform != nil {
		value = idx.lookupTransform(value)
	}

	var entity *T
	err := e.store.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(indexKey(e.prefix, indexName, value))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return e.notFound
		}
		if err != nil {
			return err
		}

		id, err := item.ValueCopy(nil)
		if err != nil {
			return err
		}

		entity, err = e.getTxn(txn, string(id))
		return err
	})
	if err != nil {
		return nil, err
	}
	return entity, nil
}

// GetMany returns the entities found for ids, keyed by id.
func (e *Entity[T]) GetMany(ctx context.Context, ids []string) (map[string]*T, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	out := make(map[string]*T, len(ids))
	err := e.store.db.View(func(txn *badger.Txn) error {
		for _, id := range ids {
			if _, seen := out[id]; seen {
				continue
			}
			entity, err := e.getTxn(txn, id)
			if errors.Is(err, e.notFound) {
				continue
			}
			if err != nil {
				return err
			}
			out[id] = entity
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// Delete removes an entity and its index entries.
// Returns the entity's not-found error if it does not exist.
func (e *Entity[T]) Delete(ctx context.Context, id string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	return e.store.db.Update(func(txn *badger.Txn) error {
		entity, err := e.getTxn(txn, id)
		if err != nil {
			return err
		}

		for _, idx := range e.indexes {
			for _, v := range idx.keyGen(entity) {
				if err := txn.Delete(indexKey(e.prefix, idx.name, v)); err != nil {
					return fmt.Errorf("delete index %s: %w", idx.name, err)
				}
			}
		}

		if err := txn.Delete([]byte(e.prefix + id)); err != nil {
			return fmt.Errorf("delete key: %w", err)
		}
		return nil
	})
}

// ScanOptions selects a window of an index.
type ScanOptions struct {
	// Within restricts the scan to index values starting with this prefix.
	Within  string
	Offset  int
	Limit   int // 0 means no limit
	Reverse bool
}

// ListByIndex returns entities in index order.
func (e *Entity[T]) ListByIndex(ctx context.Context, indexName string, opts ScanOptions) ([]*T, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	prefix := []byte(indexPrefix(e.prefix, indexName) + opts.Within)
	var out []*T

	err := e.store.db.View(func(txn *badger.Txn) error {
		itOpts := badger.DefaultIteratorOptions
		itOpts.Prefix = prefix
		itOpts.Reverse = opts.Reverse

		it := txn.NewIterator(itOpts)
		defer it.Close()

		seek := prefix
		if opts.Reverse {
			seek = prefixEnd(prefix)
		}

		skipped := 0
		for it.Seek(seek); it.ValidForPrefix(prefix); it.Next() {
			if err := ctx.Err(); err != nil {
				return err
			}
			if skipped < opts.Offset {
				skipped++
				continue
			}

			id, err := it.Item().ValueCopy(nil)
			if err != nil {
				return err
			}

			entity, err := e.getTxn(txn, string(id))
			if errors.Is(err, e.notFound) {
				// Index entry without a document; tolerated, not returned.
				continue
			}
			if err != nil {
				return err
			}

			out = append(out, entity)
			if opts.Limit > 0 && len(out) >= opts.Limit {
				return nil
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// CountIndex counts index entries, optionally within a value prefix.
func (e *Entity[T]) CountIndex(ctx context.Context, indexName, within string) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	prefix := []byte(indexPrefix(e.prefix, indexName) + within)
	count := 0

	err := e.store.db.View(func(txn *badger.Txn) error {
		itOpts := badger.DefaultIteratorOptions
		itOpts.Prefix = prefix
		itOpts.PrefetchValues = false

		it := txn.NewIterator(itOpts)
		defer it.Close()

		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			count++
		}
		return nil
	})
	return count, err
}

// List returns an iterator over all documents, in key order.
func (e *Entity[T]) List(ctx context.Context) iter.Seq2[*T, error] {
	return func(yield func(*T, error) bool) {
		prefix := []byte(e.prefix)

		//nolint:errcheck // errors are delivered through yield
		e.store.db.View(func(txn *badger.Txn) error {
			opts := badger.DefaultIteratorOptions
			opts.Prefix = prefix

			it := txn.NewIterator(opts)
			defer it.Close()

			for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
				if err := ctx.Err(); err != nil {
					yield(nil, err)
					return err
				}

				if strings.HasPrefix(string(it.Item().Key()[len(prefix):]), indexMarker) {
					continue
				}

				var entity T
				if err := it.Item().Value(func(val []byte) error {
					return json.Unmarshal(val, &entity)
				}); err != nil {
					yield(nil, err)
					return err
				}

				if !yield(&entity, nil) {
					return nil
				}
			}
			return nil
		})
	}
}
