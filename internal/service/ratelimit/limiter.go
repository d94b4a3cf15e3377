package ratelimit

import (
    "sync"
    "time"

    "golang.org/x/time/rate"
)

type entry struct {
    lim  *rate.Limiter
    seen time.Time
}

// Limiter keeps one token bucket per key. Buckets idle for longer than ttl
// are dropped on the next sweep.
type Limiter struct {
    mu    sync.Mutex
    m     map[string]*entry
    ttl   time.Duration
    sweep time.Time
    now   func() time.Time
}

func New(ttl time.Duration) *Limiter {
    if ttl <= 0 {
        ttl = 10 * time.Minute
    }
    return &Limiter{m: make(map[string]*entry), ttl: ttl, now: time.Now}
}

// Allow reports whether key may spend one token from a bucket of burst
// capacity refilled at perSec.
func (l *Limiter) Allow(key string, burst int, perSec float64) bool {
    now := l.now()
    l.mu.Lock()
    defer l.mu.Unlock()

    if now.Sub(l.sweep) > l.ttl {
        for k, e := range l.m {
            if now.Sub(e.seen) > l.ttl {
                delete(l.m, k)
            }
        }
        l.sweep = now
    }

    e, ok := l.m[key]
    if !ok {
        e = &entry{lim: rate.NewLimiter(rate.Limit(perSec), burst)}
        l.m[key] = e
    }
    e.seen = now
    return e.lim.AllowN(now, 1)
}

// Len returns the number of live buckets.
func (l *Limiter) Len() int {
    l.mu.Lock()
    defer l.mu.Unlock()
    return len(l.m)
}
