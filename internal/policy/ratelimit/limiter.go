// Package ratelimit implements token bucket rate limiting for record producers.
package ratelimit

import (
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// defaultMaxClients bounds the bucket map; when it fills, buckets are reset.
const defaultMaxClients = 10000

// Config holds rate limiter configuration. RPS <= 0 disables limiting.
type Config struct {
	RPS        float64
	Burst      int
	MaxClients int
}

// Limiter keeps one token bucket per client key.
type Limiter struct {
	mu         sync.Mutex
	limiters   map[string]*rate.Limiter
	rate       rate.Limit
	burst      int
	maxClients int
}

// New creates a new Limiter.
func New(cfg Config) *Limiter {
	r := rate.Limit(cfg.RPS)
	if cfg.RPS <= 0 {
		r = rate.Inf
	}
	burst := cfg.Burst
	if burst <= 0 {
		burst = 1
	}
	maxClients := cfg.MaxClients
	if maxClients <= 0 {
		maxClients = defaultMaxClients
	}
	return &Limiter{
		limiters:   make(map[string]*rate.Limiter),
		rate:       r,
		burst:      burst,
		maxClients: maxClients,
	}
}

// Enabled reports whether the limiter ever rejects.
func (l *Limiter) Enabled() bool {
	return l.rate != rate.Inf
}

// AllowN reports whether key may submit n records now, consuming n tokens if
// so. A batch larger than the burst is judged against the burst.
func (l *Limiter) AllowN(key string, n int) bool {
	if !l.Enabled() {
		return true
	}
	n = min(max(n, 1), l.burst)
	return l.bucket(key).AllowN(time.Now(), n)
}

// Allow is AllowN(key, 1).
func (l *Limiter) Allow(key string) bool {
	return l.AllowN(key, 1)
}

// Clients returns the number of tracked client buckets.
func (l *Limiter) Clients() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.limiters)
}

func (l *Limiter) bucket(key string) *rate.Limiter {
	l.mu.Lock()
	defer l.mu.Unlock()
	limiter, ok := l.limiters[key]
	if !ok {
		if len(l.limiters) >= l.maxClients {
			l.limiters = make(map[string]*rate.Limiter)
		}
		limiter = rate.NewLimiter(l.rate, l.burst)
		l.limiters[key] = limiter
	}
	return limiter
}
