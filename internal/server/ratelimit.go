package server

import (
	"sync"
	"time"
)

// RateLimiter caps how many chat messages each client may queue per window.
// Snapshots carry one message per tick, so an unthrottled sender could back
// the queue up behind everyone else's messages indefinitely.
type RateLimiter struct {
	mu      sync.Mutex
	limit   int
	window  time.Duration
	clients map[int]*clientWindow
}

type clientWindow struct {
	count       int
	windowStart time.Time
}

// NewRateLimiter allows up to limit messages per client per window.
func NewRateLimiter(limit int, window time.Duration) *RateLimiter {
	if limit <= 0 {
		limit = 100
	}
	if window <= 0 {
		window = time.Minute
	}
	return &RateLimiter{
		limit:   limit,
		window:  window,
		clients: make(map[int]*clientWindow),
	}
}

// Allow reports whether the client may queue another message, counting it if
// so. The window resets once its duration has fully elapsed.
func (rl *RateLimiter) Allow(id int) bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := time.Now()

	cw, ok := rl.clients[id]
	if !ok {
		rl.clients[id] = &clientWindow{count: 1, windowStart: now}
		return true
	}

	if now.Sub(cw.windowStart) >= rl.window {
		cw.count = 1
		cw.windowStart = now
		return true
	}

	if cw.count >= rl.limit {
		return false
	}
	cw.count++
	return true
}

// Forget drops a client's window. Ids are never reused, so disconnect is the
// natural cleanup point.
func (rl *RateLimiter) Forget(id int) {
	rl.mu.Lock()
	delete(rl.clients, id)
	rl.mu.Unlock()
}
