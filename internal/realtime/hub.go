// Package realtime fans table change events out to subscribers.
//
// Events come from the store layer after each successful write (local mode)
// or from PostgreSQL NOTIFY (postgres mode, see PGListener).
package realtime

import (
	"sync"
	"time"
)

// Op is the kind of row change.
type Op string

const (
	OpInsert Op = "INSERT"
	OpUpdate Op = "UPDATE"
	OpDelete Op = "DELETE"
)

// AnyTable subscribes to every table.
const AnyTable = "*"

// Event is one row change.
type Event struct {
	Table string    `json:"table"`
	Op    Op        `json:"op"`
	ID    string    `json:"id"`
	At    time.Time `json:"at"`
}

// Publisher accepts change events.
type Publisher interface {
	Publish(Event)
}

// Subscriber hands out subscriptions.
type Subscriber interface {
	Subscribe(table string, fn func(Event)) *Subscription
}

// Hub is an in-process Publisher and Subscriber.
// Callbacks run on the publishing goroutine and must not block.
type Hub struct {
	mu   sync.RWMutex
	next uint64
	subs map[uint64]*Subscription
}

func NewHub() *Hub {
	return &Hub{subs: make(map[uint64]*Subscription)}
}

// Subscription is a live registration. Close releases it.
type Subscription struct {
	hub   *Hub
	id    uint64
	table string
	fn    func(Event)
	once  sync.Once
}

// Subscribe registers fn for events on table (or AnyTable).
func (h *Hub) Subscribe(table string, fn func(Event)) *Subscription {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.next++
	s := &Subscription{hub: h, id: h.next, table: table, fn: fn}
	h.subs[s.id] = s
	return s
}

// Close unregisters the subscription. Calling it again is a no-op.
func (s *Subscription) Close() {
	if s == nil {
		return
	}
	s.once.Do(func() {
		s.hub.mu.Lock()
		delete(s.hub.subs, s.id)
		s.hub.mu.Unlock()
	})
}

// Publish delivers e to every matching subscription. An event on AnyTable
// reaches every subscriber.
func (h *Hub) Publish(e Event) {
	if e.At.IsZero() {
		e.At = time.Now()
	}
	h.mu.RLock()
	targets := make([]*Subscription, 0, len(h.subs))
	for _, s := range h.subs {
		if s.table == AnyTable || e.Table == AnyTable || s.table == e.Table {
			targets = append(targets, s)
		}
	}
	h.mu.RUnlock()
	for _, s := range targets {
		s.fn(e)
	}
}

// Len reports the number of live subscriptions.
func (h *Hub) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs)
}
