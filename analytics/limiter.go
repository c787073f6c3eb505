package analytics

import (
	"sync"
	"time"
)

// rateLimiter caps collect-endpoint requests per client with a fixed
// window counter. A client can at worst spend double the budget across a
// window boundary, which is acceptable abuse protection for a beacon
// endpoint and avoids tracking individual hit times.
type rateLimiter struct {
	mu      sync.Mutex
	clients map[string]*windowCount
	limit   int
	span    time.Duration
}

type windowCount struct {
	start time.Time
	n     int
}

func newRateLimiter(limit int, span time.Duration) *rateLimiter {
	rl := &rateLimiter{
		clients: make(map[string]*windowCount),
		limit:   limit,
		span:    span,
	}
	go rl.janitor()
	return rl
}

// allow records a request for key and reports whether it fits the
// current window's budget.
func (rl *rateLimiter) allow(key string) bool {
	now := time.Now()

	rl.mu.Lock()
	defer rl.mu.Unlock()

	w := rl.clients[key]
	if w == nil || now.Sub(w.start) >= rl.span {
		rl.clients[key] = &windowCount{start: now, n: 1}
		return true
	}
	w.n++
	return w.n <= rl.limit
}

// janitor periodically drops clients whose window has expired so idle
// keys do not accumulate.
func (rl *rateLimiter) janitor() {
	ticker := time.NewTicker(rl.span)
	defer ticker.Stop()
	for range ticker.C {
		rl.mu.Lock()
		for key, w := range rl.clients {
			if time.Since(w.start) >= rl.span {
				delete(rl.clients, key)
			}
		}
		rl.mu.Unlock()
	}
}
