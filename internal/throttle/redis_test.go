package throttle

import (
	"context"
	"strconv"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func newTestRedisStore(t *testing.T) (*RedisStore, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr(), Protocol: 2, DisableIdentity: true})
	t.Cleanup(func() { _ = rdb.Close() })
	return NewRedisStore(rdb, WithKeyPrefix("test:login:")), mr
}

func TestRedisStoreRoundTrip(t *testing.T) {
	ctx := context.Background()
	store, mr := newTestRedisStore(t)
	clock := &fakeClock{now: time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)}
	g := NewGuard(store, WithClock(clock.Now))

	if _, err := g.RecordFailure(ctx, "1.2.3.4"); err != nil {
		t.Fatalf("RecordFailure: %v", err)
	}
	clock.Advance(30 * time.Second)
	if _, err := g.RecordFailure(ctx, "1.2.3.4"); err != nil {
		t.Fatalf("RecordFailure: %v", err)
	}

	const key = "test:login:1.2.3.4"
	if got := mr.HGet(key, "failures"); got != "2" {
		t.Fatalf("failures field = %q", got)
	}
	if got := mr.HGet(key, "last_failure"); got != strconv.FormatInt(clock.now.UnixMilli(), 10) {
		t.Fatalf("last_failure field = %q", got)
	}
	if ttl := mr.TTL(key); ttl != DefaultCooldown {
		t.Fatalf("expected ttl %s, got %s", DefaultCooldown, ttl)
	}

	rec, ok, err := store.Get(ctx, "1.2.3.4")
	if err != nil || !ok {
		t.Fatalf("Get: %v %v", ok, err)
	}
	if rec.Key != "1.2.3.4" || rec.Failures != 2 || !rec.LastFailure.Equal(clock.now) {
		t.Fatalf("unexpected record %+v", rec)
	}

	if err := g.RecordSuccess(ctx, "1.2.3.4"); err != nil {
		t.Fatalf("RecordSuccess: %v", err)
	}
	if mr.Exists(key) {
		t.Fatalf("expected record to be deleted on success")
	}
	if _, ok, err := store.Get(ctx, "1.2.3.4"); err != nil || ok {
		t.Fatalf("expected no record after success: %v %v", ok, err)
	}
}

func TestRedisStoreLocksAndExpires(t *testing.T) {
	ctx := context.Background()
	store, mr := newTestRedisStore(t)
	g := NewGuard(store)

	for i := 0; i < DefaultMaxFailures; i++ {
		if _, err := g.RecordFailure(ctx, "5.6.7.8"); err != nil {
			t.Fatalf("RecordFailure: %v", err)
		}
	}
	dec, err := g.Check(ctx, "5.6.7.8")
	if err != nil {
		t.Fatalf("Check: %v", err)
	}
	if dec.Allowed || dec.Failures != DefaultMaxFailures {
		t.Fatalf("expected lock, got %+v", dec)
	}

	mr.FastForward(DefaultCooldown)
	dec, err = g.Check(ctx, "5.6.7.8")
	if err != nil {
		t.Fatalf("Check: %v", err)
	}
	if !dec.Allowed || dec.Failures != 0 {
		t.Fatalf("expected record to expire with its ttl, got %+v", dec)
	}
}

func TestRedisStoreRejectsMalformedRecord(t *testing.T) {
	store, mr := newTestRedisStore(t)
	mr.HSet("test:login:9.9.9.9", "failures", "many", "last_failure", "0")

	if _, _, err := store.Get(context.Background(), "9.9.9.9"); err == nil {
		t.Fatalf("expected error for malformed record")
	}
}

func TestRedisStorePing(t *testing.T) {
	store, mr := newTestRedisStore(t)
	if err := store.Ping(context.Background()); err != nil {
		t.Fatalf("Ping: %v", err)
	}
	mr.Close()
	if err := store.Ping(context.Background()); err == nil {
		t.Fatalf("expected ping to fail once redis is gone")
	}
}
