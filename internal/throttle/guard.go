// Package throttle locks out client keys that keep failing to log in.
//
// A Guard counts failed attempts per key (usually the client address). Once a key
// reaches the failure limit it is locked until the cooldown since its last failure
// has passed. The lock is evaluated lazily from the stored timestamp, so no timer
// is needed to lift it. A successful login deletes the record.
package throttle

import (
	"context"
	"fmt"
	"sync"
	"time"
)

const (
	DefaultMaxFailures = 5
	DefaultCooldown    = 15 * time.Minute
)

// Record is the per-key failure bookkeeping.
type Record struct {
	Key         string
	Failures    int
	LastFailure time.Time
}

// Store persists records. Put receives the cooldown as a hint for stores that expire keys.
type Store interface {
	Get(ctx context.Context, key string) (Record, bool, error)
	Put(ctx context.Context, rec Record, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
}

// Sweeper is implemented by stores that need explicit eviction of stale records.
type Sweeper interface {
	Sweep(ctx context.Context, cutoff time.Time) (int, error)
}

type Decision struct {
	Allowed    bool
	Failures   int
	RetryAfter time.Duration
}

type Guard struct {
	locks       keyLocks
	store       Store
	maxFailures int
	cooldown    time.Duration
	now         func() time.Time
}

type Option func(*Guard)

func WithMaxFailures(n int) Option {
	return func(g *Guard) { g.maxFailures = n }
}

func WithCooldown(d time.Duration) Option {
	return func(g *Guard) { g.cooldown = d }
}

func WithClock(now func() time.Time) Option {
	return func(g *Guard) { g.now = now }
}

func NewGuard(store Store, opts ...Option) *Guard {
	if store == nil {
		store = NewMemoryStore()
	}
	g := &Guard{
		store:       store,
		maxFailures: DefaultMaxFailures,
		cooldown:    DefaultCooldown,
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(g)
	}
	if g.maxFailures <= 0 {
		g.maxFailures = DefaultMaxFailures
	}
	if g.cooldown <= 0 {
		g.cooldown = DefaultCooldown
	}
	return g
}

func (g *Guard) MaxFailures() int        { return g.maxFailures }
func (g *Guard) Cooldown() time.Duration { return g.cooldown }

// Check reports whether key may attempt a login right now.
func (g *Guard) Check(ctx context.Context, key string) (Decision, error) {
	defer g.locks.lock(key)()

	rec, ok, err := g.store.Get(ctx, key)
	if err != nil {
		return Decision{}, fmt.Errorf("throttle check: %w", err)
	}
	if !ok {
		return Decision{Allowed: true}, nil
	}

	elapsed := g.since(rec.LastFailure)
	if rec.Failures >= g.maxFailures && elapsed < g.cooldown {
		return Decision{Allowed: false, Failures: rec.Failures, RetryAfter: g.cooldown - elapsed}, nil
	}
	return Decision{Allowed: true, Failures: rec.Failures}, nil
}

// RecordFailure counts a failed attempt for key. A record whose last failure is
// older than the cooldown starts over from one.
func (g *Guard) RecordFailure(ctx context.Context, key string) (Record, error) {
	defer g.locks.lock(key)()

	now := g.now()
	rec, ok, err := g.store.Get(ctx, key)
	if err != nil {
		return Record{}, fmt.Errorf("throttle load: %w", err)
	}
	if !ok || g.since(rec.LastFailure) >= g.cooldown {
		rec = Record{Key: key}
	}
	rec.Failures++
	rec.LastFailure = now

	if err := g.store.Put(ctx, rec, g.cooldown); err != nil {
		return Record{}, fmt.Errorf("throttle save: %w", err)
	}
	return rec, nil
}

// RecordSuccess clears any failures recorded for key.
func (g *Guard) RecordSuccess(ctx context.Context, key string) error {
	defer g.locks.lock(key)()

	if err := g.store.Delete(ctx, key); err != nil {
		return fmt.Errorf("throttle reset: %w", err)
	}
	return nil
}

// since is the time elapsed from t, never negative. Records written by another
// instance may carry a timestamp slightly ahead of this clock.
func (g *Guard) since(t time.Time) time.Duration {
	if d := g.now().Sub(t); d > 0 {
		return d
	}
	return 0
}

// AttemptsLeft is the number of failures key may still make before being locked.
func (g *Guard) AttemptsLeft(rec Record) int {
	left := g.maxFailures - rec.Failures
	if left < 0 {
		return 0
	}
	return left
}

// Sweep evicts records whose last failure is older than the cooldown.
func (g *Guard) Sweep(ctx context.Context) (int, error) {
	sw, ok := g.store.(Sweeper)
	if !ok {
		return 0, nil
	}
	return sw.Sweep(ctx, g.now().Add(-g.cooldown))
}

// StartJanitor sweeps every interval until ctx is cancelled.
func (g *Guard) StartJanitor(ctx context.Context, every time.Duration) {
	if every <= 0 {
		return
	}
	if _, ok := g.store.(Sweeper); !ok {
		return
	}

	t := time.NewTicker(every)
	go func() {
		defer t.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-t.C:
				_, _ = g.Sweep(ctx)
			}
		}
	}()
}

// RetryMinutes rounds a remaining lockout up to whole minutes.
func RetryMinutes(d time.Duration) int {
	if d <= 0 {
		return 0
	}
	m := int(d / time.Minute)
	if d%time.Minute != 0 {
		m++
	}
	return m
}

// keyLocks serialises check-then-update per key so unrelated clients never wait
// on each other's store round trips.
type keyLocks struct {
	mu    sync.Mutex
	locks map[string]*keyLock
}

type keyLock struct {
	mu   sync.Mutex
	refs int
}

func (k *keyLocks) lock(key string) (unlock func()) {
	k.mu.Lock()
	if k.locks == nil {
		k.locks = make(map[string]*keyLock)
	}
	l, ok := k.locks[key]
	if !ok {
		l = &keyLock{}
		k.locks[key] = l
	}
	l.refs++
	k.mu.Unlock()

	l.mu.Lock()
	return func() {
		l.mu.Unlock()

		k.mu.Lock()
		l.refs--
		if l.refs == 0 {
			delete(k.locks, key)
		}
		k.mu.Unlock()
	}
}
