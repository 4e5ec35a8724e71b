package store

import (
	"fmt"
	"time"
)

const (
	userPrefix = "user:"
	bookPrefix = "book:"

	indexMarker = "idx:"
)

// indexPrefix returns the key prefix shared by every entry of an index.
func indexPrefix(entityPrefix, indexName string) string {
	return entityPrefix + indexMarker + indexName + ":"
}

// indexKey builds the full key for one index entry.
func indexKey(entityPrefix, indexName, value string) []byte {
	return []byte(indexPrefix(entityPrefix, indexName) + value)
}

// sequenceValue orders records by creation time. The id suffix keeps
// entries unique when two records share a timestamp.
func sequenceValue(createdAt time.Time, id string) string {
	return fmt.Sprintf("%020d:%s", createdAt.UnixNano(), id)
}

// prefixEnd returns the smallest key greater than every key with prefix p,
// which is where a reverse iterator has to seek.
func prefixEnd(p []byte) []byte {
	end := make([]byte, len(p), len(p)+1)
	copy(end, p)
	return append(end, 0xFF)
}
