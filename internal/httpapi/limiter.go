package httpapi

import (
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// limiterIdleTTL is how long an unused per-user bucket is kept.
const limiterIdleTTL = 10 * time.Minute

type userBucket struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// UserLimiter applies an independent token bucket to each user.
// It is safe for concurrent use.
type UserLimiter struct {
	mu      sync.Mutex
	limit   rate.Limit
	burst   int
	buckets map[string]*userBucket
	now     func() time.Time
	sweptAt time.Time
}

// NewUserLimiter creates a limiter allowing perSecond sustained requests
// per user with the given burst. A non-positive perSecond disables
// limiting.
func NewUserLimiter(perSecond float64, burst int) *UserLimiter {
	if burst <= 0 {
		burst = 1
	}
	return &UserLimiter{
		limit:   rate.Limit(perSecond),
		burst:   burst,
		buckets: make(map[string]*userBucket),
		now:     time.Now,
	}
}

// Allow reports whether userID may make a request now.
func (l *UserLimiter) Allow(userID string) bool {
	if l == nil || l.limit <= 0 {
		return true
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	l.sweep(now)

	b, ok := l.buckets[userID]
	if !ok {
		b = &userBucket{limiter: rate.NewLimiter(l.limit, l.burst)}
		l.buckets[userID] = b
	}
	b.lastSeen = now
	return b.limiter.AllowN(now, 1)
}

// Len returns the number of tracked users.
func (l *UserLimiter) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.buckets)
}

// sweep drops idle buckets at most once per TTL. Must hold l.mu.
func (l *UserLimiter) sweep(now time.Time) {
	if now.Sub(l.sweptAt) < limiterIdleTTL {
		return
	}
	l.sweptAt = now
	for id, b := range l.buckets {
		if now.Sub(b.lastSeen) >= limiterIdleTTL {
			delete(l.buckets, id)
		}
	}
}
