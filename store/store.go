// Package store provides caches for suggestion responses.
package store

import (
	"context"
	"time"

	"github.com/effective-security/toolrouter/model"
	"github.com/effective-security/xlog"
)

//go:generate mockgen -source=store.go -destination=../mocks/mockstore/store_mock.gen.go -package mockstore

var logger = xlog.NewPackageLogger("github.com/effective-security/toolrouter", "store")

// Entry is a cached suggestion response
type Entry struct {
	Response *model.SuggestionResponse `json:"response"`
	StoredAt time.Time                 `json:"storedAt"`
}

// Age returns the age of the entry at the given time
func (e *Entry) Age(now time.Time) time.Duration {
	return now.Sub(e.StoredAt)
}

// Expired returns true if the entry is not younger than TTL.
// Zero TTL never expires.
func (e *Entry) Expired(now time.Time, ttl time.Duration) bool {
	return ttl > 0 && e.Age(now) >= ttl
}

// Cache stores suggestion responses by key.
// Entries returned by Get are shared, callers must not modify them.
type Cache interface {
	// Get returns the fresh entry, or nil if not found or expired
	Get(ctx context.Context, key string) (*Entry, error)
	// Set stores the entry
	Set(ctx context.Context, key string, entry *Entry) error
	// Clear removes all entries and returns the number of removed ones
	Clear(ctx context.Context) (int, error)
	// Len returns the number of stored entries
	Len(ctx context.Context) (int, error)
}
