// Package main prints a summary of a BookWorm badger database.
//
// Usage:
//
//	DB_PATH=~/BookWorm/data/db go run ./cmd/dbinspect
package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"sort"
	"strings"

	"github.com/dgraph-io/badger/v4"

	"github.com/bookwormapp/bookworm/internal/domain"
	"github.com/bookwormapp/bookworm/internal/store"
)

func main() {
	dbPath := os.Getenv("DB_PATH")
	if dbPath == "" {
		dbPath = os.ExpandEnv("$HOME/BookWorm/data/db")
	}

	s, err := store.New(dbPath, nil, store.Options{ReadOnly: true})
	if err != nil {
		log.Fatalf("Failed to open database: %v", err)
	}
	defer s.Close()

	fmt.Println("=== Database Inspection ===")
	fmt.Println()

	counts, err := countKeys(s.DB())
	if err != nil {
		log.Fatalf("Failed to scan keys: %v", err)
	}

	prefixes := make([]string, 0, len(counts))
	for p := range counts {
		prefixes = append(prefixes, p)
	}
	sort.Strings(prefixes)

	fmt.Println("Keys by prefix:")
	for _, p := range prefixes {
		fmt.Printf("  %-28s %d\n", p, counts[p])
	}
	fmt.Println()

	ctx := context.Background()

	total, err := s.CountBooks(ctx)
	if err != nil {
		log.Fatalf("Failed to count books: %v", err)
	}
	fmt.Printf("Books: %d\n", total)

	owners := make(map[string]int)
	unrated := 0
	for book, err := range s.ListAllBooks(ctx) {
		if err != nil {
			log.Fatalf("Failed to read books: %v", err)
		}
		owners[book.OwnerID]++
		if !domain.ValidRating(book.Rating) {
			unrated++
		}
	}

	ownerIDs := make([]string, 0, len(owners))
	for id := range owners {
		ownerIDs = append(ownerIDs, id)
	}
	users, err := s.GetUsersByIDs(ctx, ownerIDs)
	if err != nil {
		log.Fatalf("Failed to load owners: %v", err)
	}

	fmt.Println("Books per owner:")
	for _, id := range ownerIDs {
		name := "(missing user)"
		if u, ok := users[id]; ok {
			name = u.Username
		}
		fmt.Printf("  %-24s %-20s %d\n", id, name, owners[id])
	}

	if unrated > 0 {
		fmt.Printf("\nWARNING: %d books have a rating outside 1-5\n", unrated)
	}
}

// countKeys groups every key by its entity or index prefix.
func countKeys(db *badger.DB) (map[string]int, error) {
	counts := make(map[string]int)

	err := db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			counts[keyGroup(string(it.Item().Key()))]++
		}
		return nil
	})

	return counts, err
}

// keyGroup maps "book:idx:owner:usr-1:..." to "book:idx:owner:" and
// "book:abc" to "book:".
func keyGroup(key string) string {
	parts := strings.SplitN(key, ":", 4)
	if len(parts) >= 3 && parts[1] == "idx" {
		return parts[0] + ":idx:" + parts[2] + ":"
	}
	return parts[0] + ":"
}
