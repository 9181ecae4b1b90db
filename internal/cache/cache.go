// Package cache holds the business-unit id to name mapping kept in sync by events.
package cache

import "context"

// Store is a concurrency-safe key/value store. Implementations never expose their
// underlying map; every read observes a value written in full by some prior Put.
type Store interface {
	// Put sets or overwrites the value of key.
	Put(ctx context.Context, key, value string) error
	// Get returns the value of key; ok is false when absent.
	Get(ctx context.Context, key string) (value string, ok bool, err error)
	// Remove deletes key. Removing an absent key is not an error.
	Remove(ctx context.Context, key string) error
}
