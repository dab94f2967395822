// Package querycache keeps the rows last fetched for each list query.
//
// Writes reach the cache in two separate steps: a merge patches the cached
// rows right away, and an invalidation marks them stale so the next read
// goes back to the database. Entries are only ever a copy of what the
// database returned.
package querycache

import (
	"sync"
	"time"
)

// Key identifies a list query. Scope is the table, shared by every query
// over it.
type Key struct {
	Scope  string
	Search string
	Status string
}

type entry[T any] struct {
	rows      []T
	stale     bool
	fetchedAt time.Time
}

// Cache maps query keys to rows.
type Cache[T any] struct {
	mu            sync.RWMutex
	entries       map[Key]*entry[T]
	invalidations map[string]int
	listeners     map[int]func(scope string)
	nextListener  int
}

func New[T any]() *Cache[T] {
	return &Cache[T]{
		entries:       make(map[Key]*entry[T]),
		invalidations: make(map[string]int),
		listeners:     make(map[int]func(string)),
	}
}

// Get returns the cached rows for key. fresh is false once the scope was
// invalidated; ok is false when nothing was ever stored.
func (c *Cache[T]) Get(key Key) (rows []T, fresh, ok bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	e, ok := c.entries[key]
	if !ok {
		return nil, false, false
	}
	return append([]T(nil), e.rows...), !e.stale, true
}

// Set stores freshly fetched rows for key.
func (c *Cache[T]) Set(key Key, rows []T) {
	c.mu.Lock()
	c.entries[key] = &entry[T]{rows: append([]T(nil), rows...), fetchedAt: time.Now()}
	c.mu.Unlock()
}

// SetIfCurrent stores rows only if scope was not invalidated since gen was
// read from Invalidations. It reports whether the rows were stored.
func (c *Cache[T]) SetIfCurrent(key Key, rows []T, gen int) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.invalidations[key.Scope] != gen {
		return false
	}
	c.entries[key] = &entry[T]{rows: append([]T(nil), rows...), fetchedAt: time.Now()}
	return true
}

// Merge rewrites the rows of every entry in scope with fn. Freshness is
// left untouched.
func (c *Cache[T]) Merge(scope string, fn func([]T) []T) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for k, e := range c.entries {
		if k.Scope == scope {
			e.rows = fn(append([]T(nil), e.rows...))
		}
	}
}

// Invalidate marks every entry in scope stale and notifies listeners.
func (c *Cache[T]) Invalidate(scope string) {
	c.mu.Lock()
	for k, e := range c.entries {
		if k.Scope == scope {
			e.stale = true
		}
	}
	c.invalidations[scope]++
	listeners := make([]func(string), 0, len(c.listeners))
	for _, fn := range c.listeners {
		listeners = append(listeners, fn)
	}
	c.mu.Unlock()
	for _, fn := range listeners {
		fn(scope)
	}
}

// Invalidations counts Invalidate calls for scope.
func (c *Cache[T]) Invalidations(scope string) int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.invalidations[scope]
}

// OnInvalidate registers fn to run after each invalidation. The returned
// func unregisters it.
func (c *Cache[T]) OnInvalidate(fn func(scope string)) (cancel func()) {
	c.mu.Lock()
	c.nextListener++
	id := c.nextListener
	c.listeners[id] = fn
	c.mu.Unlock()
	return func() {
		c.mu.Lock()
		delete(c.listeners, id)
		c.mu.Unlock()
	}
}

// Clear drops every entry.
func (c *Cache[T]) Clear() {
	c.mu.Lock()
	c.entries = make(map[Key]*entry[T])
	c.mu.Unlock()
}
