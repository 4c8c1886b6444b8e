package service

import (
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// resetRateLimiter throttles password reset requests per email address so the
// endpoint cannot be used to flood a mailbox or probe for accounts.
type resetRateLimiter struct {
	mu       sync.Mutex
	limiters map[string]*limiterEntry
	limit    rate.Limit
	burst    int
}

type limiterEntry struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// maxLimiterEntries bounds the per-email map; stale entries are pruned when
// the bound is hit.
const maxLimiterEntries = 10_000

func newResetRateLimiter(interval time.Duration, burst int) *resetRateLimiter {
	return &resetRateLimiter{
		limiters: make(map[string]*limiterEntry),
		limit:    rate.Every(interval),
		burst:    burst,
	}
}

// Allow reports whether a reset request for the email may proceed. Emails are
// compared case-insensitively.
func (l *resetRateLimiter) Allow(email string) bool {
	key := strings.ToLower(strings.TrimSpace(email))

	l.mu.Lock()
	defer l.mu.Unlock()

	entry, ok := l.limiters[key]
	if !ok {
		if len(l.limiters) >= maxLimiterEntries {
			l.prune()
		}
		entry = &limiterEntry{limiter: rate.NewLimiter(l.limit, l.burst)}
		l.limiters[key] = entry
	}
	entry.lastSeen = time.Now()

	return entry.limiter.Allow()
}

// prune drops entries idle long enough to have fully refilled. Callers must
// hold the mutex.
func (l *resetRateLimiter) prune() {
	idle := time.Duration(float64(l.burst) / float64(l.limit) * float64(time.Second))
	cutoff := time.Now().Add(-idle)
	for key, entry := range l.limiters {
		if entry.lastSeen.Before(cutoff) {
			delete(l.limiters, key)
		}
	}
}
