package gate

import (
	"context"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"
)

// CachedResolver keeps resolved profiles for ttl. Concurrent misses for the
// same user share one lookup, and a lookup that started before an
// Invalidate never lands in the cache.
type CachedResolver[U comparable] struct {
	inner ProfileResolver[U]
	ttl   time.Duration
	now   func() time.Time
	group singleflight.Group

	mu      sync.RWMutex
	entries map[U]cached
	gen     uint64
}

type cached struct {
	profile Profile
	until   time.Time
}

func NewCachedResolver[U comparable](inner ProfileResolver[U], ttl time.Duration) *CachedResolver[U] {
	return &CachedResolver[U]{
		inner:   inner,
		ttl:     ttl,
		now:     time.Now,
		entries: make(map[U]cached),
	}
}

// Resolve serves from cache when fresh. Errors are not cached.
func (r *CachedResolver[U]) Resolve(ctx context.Context, user U) (Profile, error) {
	r.mu.RLock()
	e, ok := r.entries[user]
	gen := r.gen
	r.mu.RUnlock()
	if ok && r.now().Before(e.until) {
		return e.profile, nil
	}

	v, err, _ := r.group.Do(fmt.Sprint(user), func() (any, error) {
		p, err := r.inner.Resolve(ctx, user)
		if err != nil {
			return nil, err
		}
		r.mu.Lock()
		if r.gen == gen && r.ttl > 0 {
			r.entries[user] = cached{profile: p, until: r.now().Add(r.ttl)}
		}
		r.mu.Unlock()
		return p, nil
	})
	if err != nil {
		return nil, err
	}
	p, _ := v.(Profile)
	return p, nil
}

// Invalidate forgets user. Call it after a role change.
func (r *CachedResolver[U]) Invalidate(user U) {
	r.mu.Lock()
	delete(r.entries, user)
	r.gen++
	r.mu.Unlock()
	r.group.Forget(fmt.Sprint(user))
}

func (r *CachedResolver[U]) InvalidateAll() {
	r.mu.Lock()
	clear(r.entries)
	r.gen++
	r.mu.Unlock()
}

func (r *CachedResolver[U]) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.entries)
}
