package store

import (
	"context"
	"sync"
	"time"

	orderedmap "github.com/wk8/go-ordered-map/v2"
)

// DefaultMaxEntries is the size limit of the memory cache
const DefaultMaxEntries = 1000

type inMemory struct {
	mu         sync.Mutex
	maxEntries int
	ttl        time.Duration
	// entries are kept in the least recently used first order
	entries *orderedmap.OrderedMap[string, *Entry]
}

// NewMemoryCache returns a process-local LRU cache,
// evicting the least recently used entry when maxEntries is exceeded.
func NewMemoryCache(maxEntries int, ttl time.Duration) Cache {
	if maxEntries <= 0 {
		maxEntries = DefaultMaxEntries
	}
	return &inMemory{
		maxEntries: maxEntries,
		ttl:        ttl,
		entries:    orderedmap.New[string, *Entry](),
	}
}

func (m *inMemory) Get(_ context.Context, key string) (*Entry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	e, ok := m.entries.Get(key)
	if !ok {
		return nil, nil
	}
	if e.Expired(time.Now(), m.ttl) {
		m.entries.Delete(key)
		return nil, nil
	}
	_ = m.entries.MoveToBack(key)
	return e, nil
}

func (m *inMemory) Set(_ context.Context, key string, entry *Entry) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.entries.Delete(key)
	m.entries.Set(key, entry)
	for m.entries.Len() > m.maxEntries {
		oldest := m.entries.Oldest()
		m.entries.Delete(oldest.Key)
	}
	return nil
}

func (m *inMemory) Clear(_ context.Context) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := m.entries.Len()
	m.entries = orderedmap.New[string, *Entry]()
	return n, nil
}

func (m *inMemory) Len(_ context.Context) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.entries.Len(), nil
}
