package cache

import (
	"errors"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/samber/mo"
)

// Cache is a concurrency-safe in-memory key–value store with per-entry
// expiration.
//
// The core design is intentionally explicit and "mechanical":
// a map holds the entries, and a second map — keyed by the same cache
// keys — holds the pending expiration timers. Keeping the timer table
// keyed by cache key (rather than by timer handle) makes the central
// invariant directly checkable: at most one pending timer per key.
//
// Ownership model:
// Cache owns its timers. The scheduler (timer-fire path) is the only
// code that removes entries asynchronously; Remove and Clear are the
// synchronous paths. Call Close to cancel everything and stop the cache.
type Cache struct {
	mu sync.Mutex

	items  map[any]any
	timers map[any]*pendingTimer

	closed bool
}

// Entry is the snapshot pair returned by Entries.
type Entry struct {
	Key   any
	Value any
}

// Expiration is the success payload of a fired timer: the entry it
// removed and the ttl it was scheduled with.
type Expiration struct {
	Key   any
	Value any
	TTL   time.Duration
}

// ExpireFunc receives a timer's outcome in callback mode.
// It is invoked exactly once: (payload, nil) when the timer fired and
// removed its entry, or (zero, err) when the entry was already gone
// (ErrNotFound) or the timer was cancelled (ErrCleared).
type ExpireFunc func(ev Expiration, err error)

var (
	// ErrClosed rejects writes after Close.
	ErrClosed = errors.New("cache is closed")

	// Synchronous validation errors, returned only from the put paths.
	ErrInvalidKey      = errors.New("invalid key")
	ErrInvalidTTL      = errors.New("invalid ttl")
	ErrInvalidCallback = errors.New("invalid callback")

	// Notification failures, delivered only through futures/callbacks.
	ErrNotFound = errors.New("does not exist")
	ErrCleared  = errors.New("timeout was cleared")
)

// New constructs an empty cache. Callers hold the returned handle
// explicitly; independent caches do not share any state.
//
// New never returns a nil Cache.
func New() *Cache {
	return &Cache{
		items:  make(map[any]any),
		timers: make(map[any]*pendingTimer),
	}
}

// Close cancels every pending timer (resolving its notification with
// ErrCleared), empties the store, and prevents further writes.
//
// Close is safe to call multiple times.
func (c *Cache) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	cancelled := c.cancelPendingLocked()
	clear(c.items)
	c.mu.Unlock()

	// Resolve outside the lock so user callbacks can re-enter the cache.
	resolveCancelled(cancelled)
	return nil
}

// Put stores a value with no expiration.
//
// It reports whether the value was stored: a key already present is left
// untouched and Put returns false. Put never overwrites.
func (c *Cache) Put(key, value any) (bool, error) {
	if err := validateKey(key); err != nil {
		return false, err
	}
	return c.store(key, value, 0, nil)
}

// PutExpiring stores a value and schedules its eviction after ttl.
//
// The returned Expiry resolves exactly once: with the (key, value, ttl)
// payload when the timer fires and removes the entry, or with an error
// when the entry was removed first (ErrNotFound) or the timer was
// cancelled by Clear/Close (ErrCleared).
//
// If the key is already present nothing is stored, no timer is created,
// and PutExpiring returns (nil, false, nil) — the original entry and its
// pending timer, if any, are undisturbed.
func (c *Cache) PutExpiring(key, value any, ttl time.Duration) (*Expiry, bool, error) {
	if err := validateKey(key); err != nil {
		return nil, false, err
	}
	if ttl <= 0 {
		return nil, false, fmt.Errorf("%w: ttl must be positive, got %v", ErrInvalidTTL, ttl)
	}

	exp := newExpiry()
	stored, err := c.store(key, value, ttl, exp.resolve)
	if err != nil || !stored {
		return nil, stored, err
	}
	return exp, true, nil
}

// PutExpiringFunc is PutExpiring in callback mode: instead of a future,
// fn receives the timer's outcome.
func (c *Cache) PutExpiringFunc(key, value any, ttl time.Duration, fn ExpireFunc) (bool, error) {
	if err := validateKey(key); err != nil {
		return false, err
	}
	if ttl <= 0 {
		return false, fmt.Errorf("%w: ttl must be positive, got %v", ErrInvalidTTL, ttl)
	}
	if fn == nil {
		return false, fmt.Errorf("%w: nil ExpireFunc", ErrInvalidCallback)
	}
	return c.store(key, value, ttl, func(r mo.Result[Expiration]) {
		ev, err := r.Get()
		fn(ev, err)
	})
}

// store is the single write path behind the three put modes. Arguments
// are validated by the callers; deliver != nil means "schedule a timer".
func (c *Cache) store(key, value any, ttl time.Duration, deliver func(mo.Result[Expiration])) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return false, ErrClosed
	}

	// First mutation wins: an entry whose timer has passed its deadline
	// but not yet fired still counts as present here.
	if _, exists := c.items[key]; exists {
		return false, nil
	}
	// A removed key whose stale timer has not yet fired is not reusable
	// either: storing now would let the old deadline evict the new entry
	// and leave one of the two notifications unresolved.
	if _, pending := c.timers[key]; pending {
		return false, nil
	}

	c.items[key] = value
	if deliver != nil {
		c.scheduleLocked(key, ttl, deliver)
	}
	return true, nil
}

// Get looks up a key. It has no side effects.
func (c *Cache) Get(key any) mo.Option[any] {
	c.mu.Lock()
	defer c.mu.Unlock()

	v, ok := c.items[key]
	if !ok {
		return mo.None[any]()
	}
	return mo.Some(v)
}

// Has reports whether a key is present.
func (c *Cache) Has(key any) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	_, ok := c.items[key]
	return ok
}

// Remove deletes a key from the store, reporting whether it was present.
//
// Remove does NOT cancel the key's pending timer: a timer scheduled for
// a removed key later fires as stale and resolves its notification with
// ErrNotFound. Cancellation is only triggered by Clear/Close.
func (c *Cache) Remove(key any) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	_, ok := c.items[key]
	if ok {
		delete(c.items, key)
	}
	return ok
}

// Len returns the number of currently stored entries.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.items)
}

// Keys returns a snapshot of the stored keys, in no particular order.
func (c *Cache) Keys() []any {
	c.mu.Lock()
	defer c.mu.Unlock()

	out := make([]any, 0, len(c.items))
	for k := range c.items {
		out = append(out, k)
	}
	return out
}

// Values returns a snapshot of the stored values, in no particular order.
func (c *Cache) Values() []any {
	c.mu.Lock()
	defer c.mu.Unlock()

	out := make([]any, 0, len(c.items))
	for _, v := range c.items {
		out = append(out, v)
	}
	return out
}

// Entries returns a snapshot of the stored pairs, in no particular order.
func (c *Cache) Entries() []Entry {
	c.mu.Lock()
	defer c.mu.Unlock()

	out := make([]Entry, 0, len(c.items))
	for k, v := range c.items {
		out = append(out, Entry{Key: k, Value: v})
	}
	return out
}

// Clear cancels every pending timer (resolving its notification with
// ErrCleared) and empties the store, as one atomic step with respect to
// concurrent timer fires: no timer observed as Scheduled when Clear
// begins can fire after it returns.
//
// Clear returns the number of entries removed. It is idempotent and
// never errors, even after Close.
func (c *Cache) Clear() int {
	c.mu.Lock()
	cancelled := c.cancelPendingLocked()
	n := len(c.items)
	clear(c.items)
	c.mu.Unlock()

	resolveCancelled(cancelled)
	return n
}

// validateKey restricts keys to the scalar domain: strings, booleans,
// and numbers. NaN is rejected because it breaks map-key equality.
func validateKey(key any) error {
	switch k := key.(type) {
	case string, bool,
		int, int8, int16, int32, int64,
		uint, uint8, uint16, uint32, uint64, uintptr:
		return nil
	case float32:
		if math.IsNaN(float64(k)) {
			return fmt.Errorf("%w: NaN", ErrInvalidKey)
		}
		return nil
	case float64:
		if math.IsNaN(k) {
			return fmt.Errorf("%w: NaN", ErrInvalidKey)
		}
		return nil
	default:
		return fmt.Errorf("%w: unsupported key type %T", ErrInvalidKey, key)
	}
}
