package auth

import (
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// LoginLimiter throttles login attempts per credential key.
type LoginLimiter interface {
	Allow(key string) bool
}

// LoginLimiterFunc adapts a function to the LoginLimiter interface.
type LoginLimiterFunc func(key string) bool

// Allow implements LoginLimiter.
func (f LoginLimiterFunc) Allow(key string) bool {
	if f == nil {
		return true
	}
	return f(key)
}

// RateLoginLimiter keeps a token bucket per credential key. Idle buckets are
// evicted once they have been unused for longer than idleTTL.
type RateLoginLimiter struct {
	mu        sync.Mutex
	limit     rate.Limit
	burst     int
	idleTTL   time.Duration
	now       func() time.Time
	buckets   map[string]*loginBucket
	lastSweep time.Time
}

type loginBucket struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

var _ LoginLimiter = (*RateLoginLimiter)(nil)

// NewRateLoginLimiter allows burst attempts per key, refilled every interval.
func NewRateLoginLimiter(interval time.Duration, burst int) *RateLoginLimiter {
	if burst <= 0 {
		burst = 1
	}
	limit := rate.Inf
	if interval > 0 {
		limit = rate.Every(interval)
	}
	idle := interval * time.Duration(burst)
	if idle < time.Minute {
		idle = time.Minute
	}
	return &RateLoginLimiter{
		limit:   limit,
		burst:   burst,
		idleTTL: idle,
		now:     time.Now,
		buckets: make(map[string]*loginBucket),
	}
}

// WithClock injects the clock, mainly for tests.
func (l *RateLoginLimiter) WithClock(now func() time.Time) *RateLoginLimiter {
	if now != nil {
		l.now = now
	}
	return l
}

// Allow implements LoginLimiter.
func (l *RateLoginLimiter) Allow(key string) bool {
	key = NormalizeCredentialKey(key)
	now := l.now()

	l.mu.Lock()
	defer l.mu.Unlock()

	l.sweep(now)

	b, ok := l.buckets[key]
	if !ok {
		b = &loginBucket{limiter: rate.NewLimiter(l.limit, l.burst)}
		l.buckets[key] = b
	}
	b.lastSeen = now
	return b.limiter.AllowN(now, 1)
}

func (l *RateLoginLimiter) sweep(now time.Time) {
	if now.Sub(l.lastSweep) < l.idleTTL {
		return
	}
	l.lastSweep = now
	for k, b := range l.buckets {
		if now.Sub(b.lastSeen) > l.idleTTL {
			delete(l.buckets, k)
		}
	}
}
