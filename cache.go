package crudox

import (
	"context"
	"strconv"
	"strings"
	"time"
)

// Cache is the interface for caching query results. Users implement this
// interface with their preferred caching solution (Redis, Memcached,
// in-memory). The crud package offers a read-through option built on it.
type Cache interface {
	// Get retrieves a value from the cache.
	// Returns nil, nil if the key doesn't exist.
	Get(ctx context.Context, key string) ([]byte, error)

	// Set stores a value in the cache with an optional TTL.
	// If ttl is 0, the value should not expire.
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error

	// Delete removes a value from the cache.
	Delete(ctx context.Context, key string) error

	// DeletePrefix removes all values with the given prefix.
	DeletePrefix(ctx context.Context, prefix string) error

	// Clear removes all values from the cache.
	Clear(ctx context.Context) error
}

// CacheKey identifies one read query. Write operations against a table
// invalidate every key under the table prefix.
type CacheKey struct {
	Table     string
	Operation string
	Query     string // Canonical serialization of where/orderBy/groupBy
	Limit     int
	Offset    int
}

// Prefix returns the invalidation prefix for the key's table.
func (k CacheKey) Prefix() string {
	return k.Table + ":"
}

// String returns the string representation of the cache key.
func (k CacheKey) String() string {
	var sb strings.Builder
	sb.WriteString(k.Table)
	sb.WriteByte(':')
	sb.WriteString(k.Operation)
	sb.WriteByte(':')
	sb.WriteString(k.Query)
	sb.WriteByte(':')
	sb.WriteString(strconv.Itoa(k.Limit))
	sb.WriteByte(':')
	sb.WriteString(strconv.Itoa(k.Offset))
	return sb.String()
}
