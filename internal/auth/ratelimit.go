package auth

import (
	"sync"
	"time"
)

// FailureLimiter blocks an IP after too many rejected tokens
type FailureLimiter struct {
	mu       sync.Mutex
	attempts map[string]*ipAttempts
	now      func() time.Time

	maxFailures int           // Failures before blocking
	window      time.Duration // Time window for counting failures
	blockTime   time.Duration // How long to block after max failures
}

type ipAttempts struct {
	count     int
	firstTime time.Time
	blockEnd  time.Time
}

// NewFailureLimiter creates a new limiter.
// Default: 5 failures per 2 minutes, block for 5 minutes
func NewFailureLimiter() *FailureLimiter {
	return &FailureLimiter{
		attempts:    make(map[string]*ipAttempts),
		now:         time.Now,
		maxFailures: 5,
		window:      2 * time.Minute,
		blockTime:   5 * time.Minute,
	}
}

// Allow reports whether ip may present a token, and otherwise the seconds
// until it is unblocked.
func (rl *FailureLimiter) Allow(ip string) (bool, int) {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	att, exists := rl.attempts[ip]
	if !exists {
		return true, 0
	}

	now := rl.now()
	if att.blockEnd.After(now) {
		return false, int(att.blockEnd.Sub(now).Seconds()) + 1
	}
	return true, 0
}

// RecordFailure counts a rejected token for ip
func (rl *FailureLimiter) RecordFailure(ip string) {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()
	rl.prune(now)

	att, exists := rl.attempts[ip]
	if !exists || now.Sub(att.firstTime) > rl.window {
		rl.attempts[ip] = &ipAttempts{count: 1, firstTime: now}
		return
	}

	att.count++
	if att.count >= rl.maxFailures {
		att.blockEnd = now.Add(rl.blockTime)
	}
}

// Reset clears the record for an IP
func (rl *FailureLimiter) Reset(ip string) {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	delete(rl.attempts, ip)
}

// prune drops entries whose window and block both ran out. Called with mu held.
func (rl *FailureLimiter) prune(now time.Time) {
	for ip, att := range rl.attempts {
		if now.Sub(att.firstTime) > rl.window && !att.blockEnd.After(now) {
			delete(rl.attempts, ip)
		}
	}
}
