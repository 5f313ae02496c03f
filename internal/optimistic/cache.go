// Package optimistic keeps keyed lists of server records in memory and
// applies writes to them before the server confirms.
//
// A mutation snapshots the list, applies its change, dispatches the write
// and then either commits (optionally refetching) or restores the
// snapshot verbatim.  Mutations on one key run one at a time; fetches that
// started before a newer write never overwrite it.
package optimistic

import (
	"context"
	"errors"
	"net/http"
	"slices"
	"sync"

	"go.uber.org/zap"
)

// Strategy decides what happens to the optimistic state once the server
// accepts a write.
type Strategy int

const (
	// KeepOptimistic trusts the applied state, patched by OnSuccess if set.
	KeepOptimistic Strategy = iota
	// Invalidate replaces the entry with a fresh load through the
	// registered loader.  A failed load keeps the optimistic state; with
	// no loader the entry is dropped.
	Invalidate
)

// Loader fetches the authoritative list for a key.
type Loader[T any] func(ctx context.Context) ([]T, error)

// Mutation is one optimistic write.  Apply must not modify its argument
// in place; return a new slice.
type Mutation[T any] struct {
	Apply     func([]T) []T
	Dispatch  func(ctx context.Context) (any, error)
	Reconcile Strategy
	// OnSuccess patches the optimistic state with the server result
	// before the reconcile strategy runs.
	OnSuccess func(current []T, result any) []T
}

type entry[T any] struct {
	data []T
}

// Cache is safe for concurrent use.
type Cache[T any] struct {
	mu      sync.Mutex
	entries map[string]*entry[T]
	gens    map[string]uint64
	loaders map[string]Loader[T]
	locks   map[string]chan struct{}

	clone    func([]T) []T
	notify   func(key string, err error)
	onUnauth func(err error)
	isUnauth func(err error) bool
	log      *zap.Logger
}

type Option[T any] func(*Cache[T])

// WithClone sets the snapshot function.  The default copies the slice,
// which is a deep copy for value types without shared references.
func WithClone[T any](fn func([]T) []T) Option[T] { return func(c *Cache[T]) { c.clone = fn } }

// WithNotifier is called with every failed dispatch except
// unauthenticated ones.
func WithNotifier[T any](fn func(key string, err error)) Option[T] {
	return func(c *Cache[T]) { c.notify = fn }
}

// WithUnauthenticated is called instead of the notifier when a dispatch
// or fetch fails because the session is gone.
func WithUnauthenticated[T any](fn func(err error)) Option[T] {
	return func(c *Cache[T]) { c.onUnauth = fn }
}

func WithLogger[T any](l *zap.Logger) Option[T] { return func(c *Cache[T]) { c.log = l } }

func New[T any](opts ...Option[T]) *Cache[T] {
	c := &Cache[T]{
		entries:  map[string]*entry[T]{},
		gens:     map[string]uint64{},
		loaders:  map[string]Loader[T]{},
		locks:    map[string]chan struct{}{},
		clone:    func(s []T) []T { return slices.Clone(s) },
		isUnauth: unauthenticated,
		log:      zap.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// unauthenticated matches any error exposing a 401 status code.
func unauthenticated(err error) bool {
	var coded interface{ StatusCode() int }
	return errors.As(err, &coded) && coded.StatusCode() == http.StatusUnauthorized
}

// Register sets the loader used by Fetch with a nil loader and by
// Invalidate reconciliation.
func (c *Cache[T]) Register(key string, loader Loader[T]) {
	c.mu.Lock()
	c.loaders[key] = loader
	c.mu.Unlock()
}

// Get returns a copy of the cached list.
func (c *Cache[T]) Get(key string) ([]T, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[key]
	if !ok {
		return nil, false
	}
	return c.clone(e.data), true
}

// Set replaces the list and supersedes in-flight fetches.
func (c *Cache[T]) Set(key string, data []T) {
	c.mu.Lock()
	c.setLocked(key, c.clone(data))
	c.mu.Unlock()
}

func (c *Cache[T]) setLocked(key string, data []T) {
	c.gens[key]++
	c.entries[key] = &entry[T]{data: data}
}

// Invalidate drops the entry; the next Fetch goes to the loader.
func (c *Cache[T]) Invalidate(key string) {
	c.mu.Lock()
	c.gens[key]++
	delete(c.entries, key)
	c.mu.Unlock()
}

// Fetch loads key and stores the result unless a write or another fetch
// landed while it was in flight, in which case the newer state is
// returned.  A nil loader uses the registered one.
func (c *Cache[T]) Fetch(ctx context.Context, key string, loader Loader[T]) ([]T, error) {
	c.mu.Lock()
	if loader == nil {
		loader = c.loaders[key]
	}
	started := c.gens[key]
	c.mu.Unlock()
	if loader == nil {
		return nil, errors.New("optimistic: no loader registered for " + key)
	}

	data, err := loader(ctx)
	if err != nil {
		if c.isUnauth(err) && c.onUnauth != nil {
			c.onUnauth(err)
		}
		return nil, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.gens[key] != started {
		c.log.Debug("discarding superseded fetch", zap.String("key", key))
		if e, ok := c.entries[key]; ok {
			return c.clone(e.data), nil
		}
		return c.clone(data), nil
	}
	c.setLocked(key, c.clone(data))
	return data, nil
}

// lock serializes mutations per key.
func (c *Cache[T]) lock(ctx context.Context, key string) (func(), error) {
	c.mu.Lock()
	ch, ok := c.locks[key]
	if !ok {
		ch = make(chan struct{}, 1)
		c.locks[key] = ch
	}
	c.mu.Unlock()

	select {
	case ch <- struct{}{}:
		return func() { <-ch }, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Mutate runs m against key.  On failure the list is restored to exactly
// what it was before Apply and the dispatch error is returned.
func (c *Cache[T]) Mutate(ctx context.Context, key string, m Mutation[T]) error {
	unlock, err := c.lock(ctx, key)
	if err != nil {
		return err
	}
	defer unlock()

	c.mu.Lock()
	prev, had := c.entries[key]
	var snapshot []T
	if had {
		snapshot = c.clone(prev.data)
	}
	c.setLocked(key, m.Apply(c.clone(snapshot)))
	c.mu.Unlock()

	result, err := m.Dispatch(ctx)
	if err != nil {
		c.mu.Lock()
		if had {
			c.setLocked(key, snapshot)
		} else {
			c.gens[key]++
			delete(c.entries, key)
		}
		c.mu.Unlock()
		c.log.Debug("mutation rolled back", zap.String("key", key), zap.Error(err))
		if c.isUnauth(err) && c.onUnauth != nil {
			c.onUnauth(err)
		} else if c.notify != nil {
			c.notify(key, err)
		}
		return err
	}

	if m.OnSuccess != nil {
		c.mu.Lock()
		var cur []T
		if e, ok := c.entries[key]; ok {
			cur = c.clone(e.data)
		}
		c.setLocked(key, m.OnSuccess(cur, result))
		c.mu.Unlock()
	}

	if m.Reconcile == Invalidate {
		c.reload(ctx, key)
	}
	return nil
}

// reload replaces key with the server list.  Without a loader the entry is
// dropped.  When the load fails the optimistic list stays in place and the
// error is reported; the write itself already succeeded.
func (c *Cache[T]) reload(ctx context.Context, key string) {
	c.mu.Lock()
	loader := c.loaders[key]
	c.mu.Unlock()
	if loader == nil {
		c.Invalidate(key)
		return
	}
	_, err := c.Fetch(ctx, key, loader)
	if err == nil {
		return
	}
	c.mu.Lock()
	c.gens[key]++
	c.mu.Unlock()
	c.log.Warn("refetch after mutation", zap.String("key", key), zap.Error(err))
	// Fetch has already sent a 401 to onUnauth
	if !c.isUnauth(err) && c.notify != nil {
		c.notify(key, err)
	}
}
