// Package backoffice holds the server-side state of each signed-in user's
// screens: list pages with their cached queries, the create/edit dialogs and
// the pending notifications.
package backoffice

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"

	"golang.org/x/sync/singleflight"

	"github.com/diewo77/toiture-backoffice/gate"
	"github.com/diewo77/toiture-backoffice/internal/notify"
	"github.com/diewo77/toiture-backoffice/internal/querycache"
	"github.com/diewo77/toiture-backoffice/internal/realtime"
	"github.com/diewo77/toiture-backoffice/internal/store"
)

var (
	ErrForbidden       = errors.New("action not allowed for this role")
	ErrNoPendingDelete = errors.New("no delete pending")
)

// Source is where a list page reads and deletes its rows.
type Source[T any] interface {
	List(ctx context.Context, q store.Query) ([]T, error)
	Delete(ctx context.Context, id string) error
}

// PageConfig wires a ListPage.
type PageConfig[T querycache.Identified] struct {
	// Scope is the cache scope, shared with the dialog editing the same rows.
	Scope string
	// Tables are the realtime tables backing the page.
	Tables       []string
	Source       Source[T]
	Cache        *querycache.Cache[T]
	Hub          realtime.Subscriber
	Notifier     notify.Notifier
	Capabilities func() gate.Capabilities
	// DeletedCode is the i18n key shown after a delete.
	DeletedCode string
	Logger      *slog.Logger
}

// ListPage is a searchable, status-filtered grid kept fresh by realtime
// events while it is shown.
type ListPage[T querycache.Identified] struct {
	cfg PageConfig[T]

	mu       sync.Mutex
	search   string
	status   string
	pending  string
	views    int
	subs     []*realtime.Subscription
	unlisten func()
	life     context.Context
	stop     context.CancelFunc

	group   singleflight.Group
	loading atomic.Int32
	bg      sync.WaitGroup
}

func NewListPage[T querycache.Identified](cfg PageConfig[T]) *ListPage[T] {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Capabilities == nil {
		cfg.Capabilities = func() gate.Capabilities { return gate.Capabilities{} }
	}
	return &ListPage[T]{cfg: cfg}
}

// Scope is the cache scope of the page.
func (p *ListPage[T]) Scope() string { return p.cfg.Scope }

// SetSearch changes the free-text filter.
func (p *ListPage[T]) SetSearch(s string) {
	p.mu.Lock()
	p.search = strings.TrimSpace(s)
	p.mu.Unlock()
}

// SetStatus changes the status filter; "" and "all" disable it.
func (p *ListPage[T]) SetStatus(s string) {
	p.mu.Lock()
	p.status = strings.TrimSpace(s)
	p.mu.Unlock()
}

// Key is the cache key of the current filters.
func (p *ListPage[T]) Key() querycache.Key {
	p.mu.Lock()
	defer p.mu.Unlock()
	return querycache.Key{Scope: p.cfg.Scope, Search: p.search, Status: p.status}
}

// Rows returns the rows of the current filters, from the cache when fresh.
func (p *ListPage[T]) Rows(ctx context.Context) ([]T, error) {
	key := p.Key()
	if rows, fresh, ok := p.cfg.Cache.Get(key); ok && fresh {
		return rows, nil
	}
	return p.fetch(ctx, key)
}

// Loading reports whether a query is outstanding.
func (p *ListPage[T]) Loading() bool { return p.loading.Load() > 0 }

func (p *ListPage[T]) fetch(ctx context.Context, key querycache.Key) ([]T, error) {
	v, err, _ := p.group.Do(key.Scope+"\x00"+key.Search+"\x00"+key.Status, func() (any, error) {
		p.loading.Add(1)
		defer p.loading.Add(-1)
		gen := p.cfg.Cache.Invalidations(key.Scope)
		rows, err := p.cfg.Source.List(ctx, store.Query{Search: key.Search, Status: key.Status})
		if err != nil {
			return nil, err
		}
		p.cfg.Cache.SetIfCurrent(key, rows, gen)
		return rows, nil
	})
	if err != nil {
		return nil, err
	}
	return append([]T(nil), v.([]T)...), nil
}

// Show marks the page displayed: it subscribes to the backing tables and
// re-fetches in the background on every invalidation. The returned func
// releases this view; calling it more than once is a no-op.
func (p *ListPage[T]) Show() (release func()) {
	p.mu.Lock()
	p.views++
	if p.views == 1 {
		p.life, p.stop = context.WithCancel(context.Background())
		for _, table := range p.cfg.Tables {
			p.subs = append(p.subs, p.cfg.Hub.Subscribe(table, p.onEvent))
		}
		p.unlisten = p.cfg.Cache.OnInvalidate(p.onInvalidate)
	}
	p.mu.Unlock()

	var once sync.Once
	return func() { once.Do(p.release) }
}

func (p *ListPage[T]) release() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.views == 0 {
		return
	}
	p.views--
	if p.views == 0 {
		p.teardownLocked()
	}
}

// Hide drops every view of the page at once. Safe to call repeatedly.
func (p *ListPage[T]) Hide() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.views == 0 {
		return
	}
	p.views = 0
	p.teardownLocked()
}

func (p *ListPage[T]) teardownLocked() {
	for _, s := range p.subs {
		s.Close()
	}
	p.subs = nil
	if p.unlisten != nil {
		p.unlisten()
		p.unlisten = nil
	}
	if p.stop != nil {
		p.stop()
	}
}

// Visible reports whether at least one view is open.
func (p *ListPage[T]) Visible() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.views > 0
}

// Wait blocks until background re-fetches have finished.
func (p *ListPage[T]) Wait() { p.bg.Wait() }

// Watch calls fn after each invalidation of the page scope.
func (p *ListPage[T]) Watch(fn func()) (cancel func()) {
	return p.cfg.Cache.OnInvalidate(func(scope string) {
		if scope == p.cfg.Scope {
			fn()
		}
	})
}

func (p *ListPage[T]) onEvent(realtime.Event) {
	p.cfg.Cache.Invalidate(p.cfg.Scope)
}

func (p *ListPage[T]) onInvalidate(scope string) {
	if scope != p.cfg.Scope {
		return
	}
	p.mu.Lock()
	if p.views == 0 {
		p.mu.Unlock()
		return
	}
	ctx := p.life
	p.bg.Add(1)
	p.mu.Unlock()

	go func() {
		defer p.bg.Done()
		if _, err := p.fetch(ctx, p.Key()); err != nil && ctx.Err() == nil {
			p.cfg.Logger.Warn("background refresh failed", "scope", scope, "err", err)
		}
	}()
}

// Invalidate marks the page's cached queries stale.
func (p *ListPage[T]) Invalidate() { p.cfg.Cache.Invalidate(p.cfg.Scope) }

// RequestDelete arms id for deletion. Nothing is deleted until confirmed.
func (p *ListPage[T]) RequestDelete(id string) error {
	if !p.cfg.Capabilities().CanDelete {
		return ErrForbidden
	}
	p.mu.Lock()
	p.pending = id
	p.mu.Unlock()
	return nil
}

// CancelDelete disarms without any call.
func (p *ListPage[T]) CancelDelete() {
	p.mu.Lock()
	p.pending = ""
	p.mu.Unlock()
}

// PendingDelete returns the armed id.
func (p *ListPage[T]) PendingDelete() (string, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.pending, p.pending != ""
}

// ConfirmDelete deletes the armed row. On failure the row stays armed.
func (p *ListPage[T]) ConfirmDelete(ctx context.Context) error {
	if !p.cfg.Capabilities().CanDelete {
		return ErrForbidden
	}
	p.mu.Lock()
	id := p.pending
	p.pending = ""
	p.mu.Unlock()
	if id == "" {
		return ErrNoPendingDelete
	}

	if err := p.cfg.Source.Delete(ctx, id); err != nil {
		p.mu.Lock()
		if p.pending == "" {
			p.pending = id
		}
		p.mu.Unlock()
		notify.Fail(p.cfg.Notifier, "delete_failed", err)
		return err
	}
	p.cfg.Cache.Merge(p.cfg.Scope, querycache.Remove[T](id))
	p.cfg.Cache.Invalidate(p.cfg.Scope)
	notify.Succeed(p.cfg.Notifier, p.cfg.DeletedCode)
	return nil
}
