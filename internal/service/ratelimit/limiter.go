package ratelimit

import (
	"sync"
	"time"
)

type bucket struct {
	tokens     float64
	capacity   float64
	refillRate float64 // tokens per second
	last       time.Time
}

// refill credits tokens for the time elapsed since the last refill,
// capped at capacity. Caller must hold the limiter mutex.
func (b *bucket) refill(now time.Time) {
	elapsed := now.Sub(b.last).Seconds()
	if elapsed <= 0 {
		return
	}
	b.tokens += elapsed * b.refillRate
	if b.tokens > b.capacity {
		b.tokens = b.capacity
	}
	b.last = now
}

// Limiter gates calls to upstream services with one token bucket per
// service. Buckets refill continuously and never exceed capacity.
type Limiter struct {
	mu  sync.Mutex
	m   map[string]*bucket
	now func() time.Time
}

// Option configures Limiter.
type Option func(*Limiter)

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(l *Limiter) {
		l.now = now
	}
}

func New(opts ...Option) *Limiter {
	l := &Limiter{m: make(map[string]*bucket), now: time.Now}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Configure registers a bucket for a service. A full bucket is granted up
// front so a fresh service can burst to capacity.
func (l *Limiter) Configure(service string, capacity, refillPerSec float64) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.m[service] = &bucket{
		tokens:     capacity,
		capacity:   capacity,
		refillRate: refillPerSec,
		last:       l.now(),
	}
}

// Allow returns true if one token can be consumed for the service. It never
// blocks; a denial means the caller should retry later. Unknown services are
// always denied.
func (l *Limiter) Allow(service string) bool {
	now := l.now()
	l.mu.Lock()
	defer l.mu.Unlock()

	b, ok := l.m[service]
	if !ok {
		return false
	}
	b.refill(now)

	if b.tokens >= 1 {
		b.tokens--
		return true
	}
	return false
}

// Tokens reports the current token count for a service after refill.
func (l *Limiter) Tokens(service string) float64 {
	now := l.now()
	l.mu.Lock()
	defer l.mu.Unlock()

	b, ok := l.m[service]
	if !ok {
		return 0
	}
	b.refill(now)
	return b.tokens
}
