package chat

import (
	"sync"
	"time"
)

// rateLimiter is a token bucket throttling inbound messages on a single
// connection. Messages over the limit are discarded without closing the
// connection.
type rateLimiter struct {
	mu        sync.Mutex
	tokens    float64
	capacity  float64
	rate      float64 // tokens per second
	lastCheck time.Time
}

func newRateLimiter(burst int, interval time.Duration) *rateLimiter {
	if burst <= 0 {
		burst = 1
	}
	if interval <= 0 {
		interval = time.Second
	}
	return &rateLimiter{
		tokens:    float64(burst),
		capacity:  float64(burst),
		rate:      float64(burst) / interval.Seconds(),
		lastCheck: time.Now(),
	}
}

func (rl *rateLimiter) allow() bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := time.Now()
	elapsed := now.Sub(rl.lastCheck).Seconds()
	rl.lastCheck = now

	if elapsed > 0 {
		rl.tokens += elapsed * rl.rate
		if rl.tokens > rl.capacity {
			rl.tokens = rl.capacity
		}
	}

	if rl.tokens < 1 {
		return false
	}
	rl.tokens--
	return true
}
