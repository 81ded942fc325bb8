// Package cache stores chat answers keyed by the normalized question so
// repeated questions skip the knowledge base round trip.
package cache

import (
	"container/list"
	"context"
	"strings"
	"sync"
	"time"
)

// Cache is a byte-oriented key/value store with per-entry expiry.
type Cache interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Close() error
}

// Key normalizes a question into a cache key: case-folded with runs of
// whitespace collapsed.
func Key(question string) string {
	return "answer:" + strings.Join(strings.Fields(strings.ToLower(question)), " ")
}

type entry struct {
	key    string
	value  []byte
	expiry time.Time
}

// Memory is an in-process LRU cache with TTL.
type Memory struct {
	mu       sync.Mutex
	items    map[string]*list.Element
	order    *list.List
	capacity int
	now      func() time.Time
}

var _ Cache = (*Memory)(nil)

// NewMemory creates an LRU cache holding at most capacity entries.
func NewMemory(capacity int) *Memory {
	if capacity < 1 {
		capacity = 1
	}

	return &Memory{
		items:    make(map[string]*list.Element),
		order:    list.New(),
		capacity: capacity,
		now:      time.Now,
	}
}

// Get returns a copy of the cached value.
func (m *Memory) Get(_ context.Context, key string) ([]byte, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	elem, ok := m.items[key]
	if !ok {
		return nil, false, nil
	}

	e := elem.Value.(*entry)
	if !e.expiry.IsZero() && m.now().After(e.expiry) {
		m.remove(elem)
		return nil, false, nil
	}

	m.order.MoveToFront(elem)

	value := make([]byte, len(e.value))
	copy(value, e.value)

	return value, true, nil
}

// Set stores value. A zero ttl keeps the entry until it is evicted.
func (m *Memory) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	var expiry time.Time
	if ttl > 0 {
		expiry = m.now().Add(ttl)
	}

	stored := make([]byte, len(value))
	copy(stored, value)

	if elem, ok := m.items[key]; ok {
		e := elem.Value.(*entry)
		e.value = stored
		e.expiry = expiry
		m.order.MoveToFront(elem)

		return nil
	}

	for m.order.Len() >= m.capacity {
		m.remove(m.order.Back())
	}

	m.items[key] = m.order.PushFront(&entry{key: key, value: stored, expiry: expiry})

	return nil
}

// Len returns the number of live and expired-but-unreaped entries.
func (m *Memory) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()

	return m.order.Len()
}

// Close is a no-op.
func (m *Memory) Close() error {
	return nil
}

// remove must be called with the lock held.
func (m *Memory) remove(elem *list.Element) {
	delete(m.items, elem.Value.(*entry).key)
	m.order.Remove(elem)
}
