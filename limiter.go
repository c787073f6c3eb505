package stanza

import (
	"sync"
	"time"
)

// LoginLimiter rate-limits draft-preview login attempts per IP address
// with a sliding window.
type LoginLimiter struct {
	mu     sync.Mutex
	byIP   map[string][]time.Time
	max    int
	window time.Duration
}

// NewLoginLimiter creates a LoginLimiter allowing max attempts per window.
func NewLoginLimiter(max int, window time.Duration) *LoginLimiter {
	l := &LoginLimiter{
		byIP:   make(map[string][]time.Time),
		max:    max,
		window: window,
	}
	go l.cleanup()
	return l
}

// Allow reports whether the IP is under the limit and records the attempt.
func (l *LoginLimiter) Allow(ip string) bool {
	now := time.Now()
	cutoff := now.Add(-l.window)

	l.mu.Lock()
	defer l.mu.Unlock()

	kept := pruneBefore(l.byIP[ip], cutoff)
	if len(kept) >= l.max {
		l.byIP[ip] = kept
		return false
	}
	l.byIP[ip] = append(kept, now)
	return true
}

func (l *LoginLimiter) cleanup() {
	ticker := time.NewTicker(l.window)
	for range ticker.C {
		cutoff := time.Now().Add(-l.window)
		l.mu.Lock()
		for ip, hits := range l.byIP {
			kept := pruneBefore(hits, cutoff)
			if len(kept) == 0 {
				delete(l.byIP, ip)
			} else {
				l.byIP[ip] = kept
			}
		}
		l.mu.Unlock()
	}
}

func pruneBefore(hits []time.Time, cutoff time.Time) []time.Time {
	kept := hits[:0]
	for _, t := range hits {
		if t.After(cutoff) {
			kept = append(kept, t)
		}
	}
	return kept
}
