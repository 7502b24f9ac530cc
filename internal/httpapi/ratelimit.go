package httpapi

import (
	"context"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// ipLimiter keeps one token bucket per client key. A bucket of n tokens that
// refills over window approximates "n requests per window".
type ipLimiter struct {
	mu      sync.Mutex
	limit   rate.Limit
	burst   int
	idleTTL time.Duration
	entries map[string]*limiterEntry
	now     func() time.Time
}

type limiterEntry struct {
	lim      *rate.Limiter
	lastSeen time.Time
}

func newIPLimiter(n int, window time.Duration) *ipLimiter {
	if n <= 0 || window <= 0 {
		return nil
	}
	return &ipLimiter{
		limit:   rate.Every(window / time.Duration(n)),
		burst:   n,
		idleTTL: window,
		entries: make(map[string]*limiterEntry),
		now:     time.Now,
	}
}

func (l *ipLimiter) get(key string, now time.Time) *rate.Limiter {
	l.mu.Lock()
	defer l.mu.Unlock()

	if ent, ok := l.entries[key]; ok {
		ent.lastSeen = now
		return ent.lim
	}
	lim := rate.NewLimiter(l.limit, l.burst)
	l.entries[key] = &limiterEntry{lim: lim, lastSeen: now}
	return lim
}

// allow takes a token for key.
func (l *ipLimiter) allow(key string) (bool, time.Duration) {
	now := l.now()
	lim := l.get(key, now)
	r := lim.ReserveN(now, 1)
	if d := r.DelayFrom(now); d > 0 {
		r.CancelAt(now)
		return false, d
	}
	return true, 0
}

// peek reports whether key still has a token without consuming it.
func (l *ipLimiter) peek(key string) (bool, time.Duration) {
	now := l.now()
	lim := l.get(key, now)
	if lim.TokensAt(now) >= 1 {
		return true, 0
	}
	r := lim.ReserveN(now, 1)
	d := r.DelayFrom(now)
	r.CancelAt(now)
	return false, d
}

// charge consumes a token for key after the fact, even if none is left.
func (l *ipLimiter) charge(key string) {
	now := l.now()
	l.get(key, now).AllowN(now, 1)
}

func (l *ipLimiter) cleanup() {
	cutoff := l.now().Add(-l.idleTTL)

	l.mu.Lock()
	defer l.mu.Unlock()
	for k, ent := range l.entries {
		if ent.lastSeen.Before(cutoff) {
			delete(l.entries, k)
		}
	}
}

func (l *ipLimiter) startJanitor(ctx context.Context, every time.Duration) {
	if l == nil || every <= 0 {
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
				l.cleanup()
			}
		}
	}()
}

func writeRateLimited(w http.ResponseWriter, retryAfter time.Duration, message string) {
	secs := int(retryAfter.Round(time.Second) / time.Second)
	if secs < 1 {
		secs = 1
	}
	w.Header().Set("Retry-After", strconv.Itoa(secs))
	WriteError(w, http.StatusTooManyRequests, "rate_limited", message)
}

// apiRateLimit caps every /api request per client, except health checks,
// preflights and catalog reads.
func (a *api) apiRateLimit(next http.Handler) http.Handler {
	if a.apiLimiter == nil {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if skipAPILimit(r) {
			next.ServeHTTP(w, r)
			return
		}
		if ok, wait := a.apiLimiter.allow(a.clientIP(r)); !ok {
			a.metrics.limited("api")
			writeRateLimited(w, wait, "Too many requests, please try again later")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func skipAPILimit(r *http.Request) bool {
	p := r.URL.Path
	return p == "/api/health" ||
		r.Method == http.MethodOptions ||
		p == "/api/products" || strings.HasPrefix(p, "/api/products/")
}

// authRateLimit counts only responses that were not successful.
func (a *api) authRateLimit(next http.HandlerFunc) http.HandlerFunc {
	if a.authLimiter == nil {
		return next
	}
	return func(w http.ResponseWriter, r *http.Request) {
		key := a.clientIP(r)
		if ok, wait := a.authLimiter.peek(key); !ok {
			a.metrics.limited("auth")
			writeRateLimited(w, wait, "Too many login attempts, please try again later")
			return
		}
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next(rec, r)
		if rec.status >= 400 {
			a.authLimiter.charge(key)
		}
	}
}
