package loadcache

import (
	"context"
	"errors"
	"sync"
	"time"
)

// ErrClosed is returned by Get after the cache has been closed.
var ErrClosed = errors.New("loadcache: cache is closed")

// LoaderFunc computes the value for a missing key. It runs on its own
// goroutine, detached from any single caller's context, so that every
// waiter for the key observes the same completed load.
type LoaderFunc[K comparable, V any] func(ctx context.Context, key K) (V, error)

// Cache is a TTL-expiring key-value cache where "loading" is a first-class
// entry state alongside "present" and "absent". A miss installs a loading
// entry and starts exactly one loader goroutine for the key; every
// concurrent Get for that key waits on the same entry and receives the same
// result. Values are immutable once published; a refresh replaces the map
// slot wholesale.
//
// Loads that complete with an error are evicted immediately, so a failure
// is never served from cache: the waiters that joined the in-flight load
// all see the error, and the next Get retries.
type Cache[K comparable, V any] struct {
	load LoaderFunc[K, V]
	ttl  time.Duration
	now  func() time.Time

	mu       sync.Mutex
	entries  map[K]*entry[V]
	closed   bool
	inflight sync.WaitGroup
}

type entry[V any] struct {
	done    chan struct{} // closed once the load has completed
	val     V
	err     error
	written time.Time // completion time; meaningful only after done is closed
}

// Option configures a Cache.
type Option func(*options)

type options struct {
	now func() time.Time
}

// WithClock overrides the cache's time source. Used by tests to drive TTL
// expiry deterministically.
func WithClock(now func() time.Time) Option {
	return func(o *options) {
		o.now = now
	}
}

// New creates a cache with the given TTL and loader.
func New[K comparable, V any](ttl time.Duration, load LoaderFunc[K, V], opts ...Option) *Cache[K, V] {
	o := options{now: time.Now}
	for _, opt := range opts {
		opt(&o)
	}
	return &Cache[K, V]{
		load:    load,
		ttl:     ttl,
		now:     o.now,
		entries: make(map[K]*entry[V]),
	}
}

// Get returns the cached value for key, starting a load if the key is
// absent or its entry has expired. If another caller is already loading the
// key, Get waits for that load instead of starting a second one.
//
// ctx cancels only this caller's wait, never the load itself: the loader
// keeps running for the other waiters and publishes its result normally.
func (c *Cache[K, V]) Get(ctx context.Context, key K) (V, error) {
	var zero V

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return zero, ErrClosed
	}

	if e, ok := c.entries[key]; ok {
		select {
		case <-e.done:
			if e.err == nil && c.now().Sub(e.written) < c.ttl {
				c.mu.Unlock()
				return e.val, nil
			}
			// Expired; fall through and replace the entry.
		default:
			// Load in flight: join it.
			c.mu.Unlock()
			return c.wait(ctx, e)
		}
	}

	e := &entry[V]{done: make(chan struct{})}
	c.entries[key] = e
	c.inflight.Add(1)
	c.mu.Unlock()

	go c.run(key, e)
	return c.wait(ctx, e)
}

func (c *Cache[K, V]) run(key K, e *entry[V]) {
	defer c.inflight.Done()

	val, err := c.load(context.Background(), key)

	c.mu.Lock()
	e.val = val
	e.err = err
	e.written = c.now()
	if err != nil && c.entries[key] == e {
		delete(c.entries, key)
	}
	c.mu.Unlock()

	close(e.done)
}

func (c *Cache[K, V]) wait(ctx context.Context, e *entry[V]) (V, error) {
	select {
	case <-e.done:
		return e.val, e.err
	case <-ctx.Done():
		var zero V
		return zero, ctx.Err()
	}
}

// Invalidate drops the entry for key. An in-flight load is not interrupted;
// its result simply will not be stored under the key anymore.
func (c *Cache[K, V]) Invalidate(key K) {
	c.mu.Lock()
	delete(c.entries, key)
	c.mu.Unlock()
}

// Len reports the number of entries currently mapped, including in-flight
// loads.
func (c *Cache[K, V]) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// Close stops the cache from accepting new loads and waits for in-flight
// loaders to drain. Get returns ErrClosed afterwards.
func (c *Cache[K, V]) Close() {
	c.mu.Lock()
	c.closed = true
	c.mu.Unlock()
	c.inflight.Wait()
}
