// Package cache provides the per-client TTL store. Each upstream client owns
// one instance, constructed at the composition root so tests can build a
// fresh store with a fake clock.
package cache

import (
	"sync"
	"time"
)

type entry[T any] struct {
	data     T
	storedAt time.Time
}

// Store is an in-process key/value cache with a single TTL. Reads return the
// stored value only while it is fresh; stale entries are evicted lazily on
// the read path. There is no size bound: the key space is bounded by the
// configured repositories, packages and properties.
type Store[T any] struct {
	mu  sync.RWMutex
	m   map[string]entry[T]
	ttl time.Duration
	now func() time.Time
}

func New[T any](ttl time.Duration) *Store[T] {
	return &Store[T]{
		m:   make(map[string]entry[T]),
		ttl: ttl,
		now: time.Now,
	}
}

// NewWithClock is for tests that assert expiry deterministically.
func NewWithClock[T any](ttl time.Duration, now func() time.Time) *Store[T] {
	s := New[T](ttl)
	s.now = now
	return s
}

func (s *Store[T]) Get(key string) (T, bool) {
	s.mu.RLock()
	e, ok := s.m[key]
	s.mu.RUnlock()

	var zero T
	if !ok {
		return zero, false
	}
	if s.now().Sub(e.storedAt) >= s.ttl {
		s.mu.Lock()
		// Re-check under the write lock; a concurrent Set may have refreshed it.
		if cur, still := s.m[key]; still && s.now().Sub(cur.storedAt) >= s.ttl {
			delete(s.m, key)
		}
		s.mu.Unlock()
		return zero, false
	}
	return e.data, true
}

func (s *Store[T]) Set(key string, data T) {
	s.mu.Lock()
	s.m[key] = entry[T]{data: data, storedAt: s.now()}
	s.mu.Unlock()
}

func (s *Store[T]) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.m)
}
