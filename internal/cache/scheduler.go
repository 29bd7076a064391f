package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/samber/mo"
)

// pendingTimer is one key's scheduled expiration. The scheduler's table
// (Cache.timers) is keyed by the cache key, so "at most one pending
// timer per key" falls out of map semantics. Removing a pendingTimer
// from the table is its terminal transition; whoever removes it owns
// delivering the one outcome.
//
// Why per-key timers instead of a periodic sweep?
//   - Every schedule carries a notification that must resolve at its
//     deadline, not at the next scan tick
//   - Cancellation (Clear/Close) has to enumerate exactly the pending
//     set, which the table gives us for free
type pendingTimer struct {
	key     any
	ttl     time.Duration
	timer   *time.Timer
	deliver func(mo.Result[Expiration])
}

// scheduleLocked registers a timer for key. Callers hold c.mu and have
// already stored the entry; put rejects keys that are present or that
// still have a pending timer, so no timer can exist for key here.
func (c *Cache) scheduleLocked(key any, ttl time.Duration, deliver func(mo.Result[Expiration])) {
	pt := &pendingTimer{key: key, ttl: ttl, deliver: deliver}
	pt.timer = time.AfterFunc(ttl, func() { c.expire(key) })
	c.timers[key] = pt
}

// expire is the timer-fire path. It runs on the timer's goroutine and
// serializes against callers through c.mu.
//
// Losing a race is fine: if Clear or Close got there first the key is
// gone from the table and the fire is a no-op (the outcome was already
// delivered as cancelled). An entry removed by Remove still leaves the
// timer in the table, so the fire wins the slot and reports not-found.
func (c *Cache) expire(key any) {
	c.mu.Lock()
	pt, ok := c.timers[key]
	if !ok {
		c.mu.Unlock()
		return
	}
	delete(c.timers, key)

	var res mo.Result[Expiration]
	if v, present := c.items[key]; present {
		delete(c.items, key)
		res = mo.Ok(Expiration{Key: key, Value: v, TTL: pt.ttl})
	} else {
		res = mo.Err[Expiration](fmt.Errorf("%v %w", key, ErrNotFound))
	}
	c.mu.Unlock()

	pt.deliver(res)
}

// cancelPendingLocked stops every pending timer and empties the table,
// returning the cancelled set for resolution after the lock is released.
// A stopped-too-late timer whose AfterFunc is already running blocks on
// c.mu and then finds the table empty, so it delivers nothing.
func (c *Cache) cancelPendingLocked() []*pendingTimer {
	if len(c.timers) == 0 {
		return nil
	}
	cancelled := make([]*pendingTimer, 0, len(c.timers))
	for _, pt := range c.timers {
		pt.timer.Stop()
		cancelled = append(cancelled, pt)
	}
	clear(c.timers)
	return cancelled
}

func resolveCancelled(cancelled []*pendingTimer) {
	for _, pt := range cancelled {
		pt.deliver(mo.Err[Expiration](fmt.Errorf("%v %w", pt.key, ErrCleared)))
	}
}

// Expiry is the future half of the notification contract: the pending
// outcome of one scheduled expiration, resolved exactly once.
type Expiry struct {
	done chan struct{}
	res  mo.Result[Expiration]
}

func newExpiry() *Expiry {
	return &Expiry{done: make(chan struct{})}
}

// resolve is called at most once, by whichever path performs the
// timer's terminal transition. The write to res happens-before the
// close, so readers behind Done see it safely.
func (e *Expiry) resolve(r mo.Result[Expiration]) {
	e.res = r
	close(e.done)
}

// Done is closed when the outcome is available.
func (e *Expiry) Done() <-chan struct{} {
	return e.done
}

// Result blocks until the outcome is available and returns it. It may
// be called any number of times.
func (e *Expiry) Result() mo.Result[Expiration] {
	<-e.done
	return e.res
}

// Wait blocks until the outcome is available or ctx is done. A fired
// timer yields its Expiration payload; a stale fire or cancellation
// yields an error wrapping ErrNotFound or ErrCleared.
func (e *Expiry) Wait(ctx context.Context) (Expiration, error) {
	select {
	case <-ctx.Done():
		return Expiration{}, ctx.Err()
	case <-e.done:
		return e.res.Get()
	}
}
