package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"timedcache/internal/cache"
)

func main() {
	// Signal-aware context bounds every wait below. When SIGINT/SIGTERM
	// arrives, ctx is canceled and we initiate a clean shutdown.
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	c := cache.New()
	defer func() {
		// Close is idempotent; safe to call in defer.
		if err := c.Close(); err != nil {
			log.Printf("cache close: %v", err)
		}
	}()

	log.Println("timedcache demo starting")

	// -------------------------------------------------------------------
	// 1) Plain puts: store-once, never overwrite
	// -------------------------------------------------------------------
	stored, _ := c.Put("greeting", "hello")
	log.Printf("PUT greeting = %v", stored)
	stored, _ = c.Put("greeting", "overwrite attempt")
	log.Printf("PUT greeting again = %v (duplicate keys are rejected)", stored)
	if v, ok := c.Get("greeting").Get(); ok {
		log.Printf("GET greeting = %q", v)
	}

	// -------------------------------------------------------------------
	// 2) Future mode: await the expiration
	// -------------------------------------------------------------------
	exp, _, err := c.PutExpiring("session", 42, 200*time.Millisecond)
	if err != nil {
		log.Fatalf("put expiring: %v", err)
	}
	log.Printf("PUT session (ttl=200ms), waiting for it to fire")
	if ev, err := exp.Wait(ctx); err != nil {
		log.Printf("session expiry: %v", err)
	} else {
		log.Printf("session expired: key=%v value=%v ttl=%s", ev.Key, ev.Value, ev.TTL)
	}
	log.Printf("HAS session = %v", c.Has("session"))

	// -------------------------------------------------------------------
	// 3) Callback mode + stale fire: remove before the deadline
	// -------------------------------------------------------------------
	fired := make(chan struct{})
	_, err = c.PutExpiringFunc("ghost", "gone soon", 150*time.Millisecond,
		func(ev cache.Expiration, err error) {
			if err != nil {
				log.Printf("ghost expiry callback: %v", err)
			} else {
				log.Printf("ghost expired: %v", ev)
			}
			close(fired)
		})
	if err != nil {
		log.Fatalf("put expiring func: %v", err)
	}
	log.Printf("REMOVE ghost = %v (its timer will fire stale)", c.Remove("ghost"))
	select {
	case <-ctx.Done():
		log.Println("received shutdown signal")
		return
	case <-fired:
	}

	// -------------------------------------------------------------------
	// 4) Clear: cancel pending timers and empty the store
	// -------------------------------------------------------------------
	exp, _, _ = c.PutExpiring("doomed", true, time.Hour)
	n := c.Clear()
	log.Printf("CLEAR removed %d entries", n)
	if _, err := exp.Wait(ctx); err != nil {
		log.Printf("doomed expiry: %v", err)
	}

	fmt.Println("Done.")
}
