// Package ratelimit budgets completion calls per client with token buckets.
//
// Tokens are completion calls, not requests: an evaluation fans out to one call per
// criterion and is charged accordingly, so a client hammering /api/evaluate drains its
// budget four times faster than one using /api/enhance.
package ratelimit

import (
	"sync"
	"time"
)

// bucket is a token bucket refilled continuously at refillRate tokens per second
type bucket struct {
	mu         sync.Mutex
	capacity   float64
	refillRate float64
	tokens     float64
	lastRefill time.Time
	lastAccess time.Time
}

func newBucket(capacity int, refillRate float64, now time.Time) *bucket {
	return &bucket{
		capacity:   float64(capacity),
		refillRate: refillRate,
		tokens:     float64(capacity),
		lastRefill: now,
		lastAccess: now,
	}
}

// refill must be called with mu held
func (b *bucket) refill(now time.Time) {
	elapsed := now.Sub(b.lastRefill).Seconds()
	if elapsed > 0 {
		b.tokens = min(b.capacity, b.tokens+elapsed*b.refillRate)
	}
	b.lastRefill = now
}

// take consumes cost tokens when that many are available
func (b *bucket) take(cost int, now time.Time) (allowed bool, remaining int, resetTime, retryAt time.Time) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.refill(now)
	b.lastAccess = now

	need := float64(cost)
	if b.tokens >= need {
		b.tokens -= need
		allowed = true
		retryAt = now
	} else {
		retryAt = now.Add(secondsToDuration((need - b.tokens) / b.refillRate))
	}

	remaining = int(b.tokens)
	resetTime = now
	if b.tokens < b.capacity {
		resetTime = now.Add(secondsToDuration((b.capacity - b.tokens) / b.refillRate))
	}
	return allowed, remaining, resetTime, retryAt
}

func (b *bucket) idleSince() time.Time {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.lastAccess
}

func secondsToDuration(s float64) time.Duration {
	return time.Duration(s * float64(time.Second))
}

// Info describes a client's budget after a request was checked
type Info struct {
	Allowed    bool
	Limit      int
	Remaining  int
	Cost       int
	ResetTime  time.Time
	RetryAfter time.Duration
}

// Config holds rate limiting configuration
type Config struct {
	Enabled         bool
	DefaultLimit    int
	DefaultWindow   time.Duration
	CleanupInterval time.Duration
	IdleTTL         time.Duration
	Whitelist       map[string]bool
	Blacklist       map[string]bool
	EndpointConfigs []EndpointConfig
}

// Limiter tracks one bucket per client and endpoint group
type Limiter struct {
	config  *Config
	now     func() time.Time
	mu      sync.Mutex
	buckets map[string]*bucket
	stop    chan struct{}
	once    sync.Once
}

// NewLimiter creates a limiter. A nil config enables limiting with the defaults.
func NewLimiter(config *Config) *Limiter {
	if config == nil {
		config = &Config{
			Enabled:         true,
			DefaultLimit:    defaultLimit,
			DefaultWindow:   time.Minute,
			CleanupInterval: 5 * time.Minute,
		}
	}
	if config.IdleTTL <= 0 {
		config.IdleTTL = time.Hour
	}

	l := &Limiter{
		config:  config,
		now:     time.Now,
		buckets: make(map[string]*bucket),
		stop:    make(chan struct{}),
	}
	if config.Enabled && config.CleanupInterval > 0 {
		go l.cleanupLoop(config.CleanupInterval)
	}
	return l
}

// Allow charges the request to clientID's budget for the matching endpoint group
func (l *Limiter) Allow(clientID, path, method string) (bool, Info) {
	unlimited := Info{Allowed: true}

	if !l.config.Enabled || l.config.Whitelist[clientID] {
		return true, unlimited
	}
	if l.config.Blacklist[clientID] {
		return false, Info{}
	}

	ep := MatchEndpoint(path, method, l.config.EndpointConfigs)
	if ep == nil {
		ep = &EndpointConfig{
			Group:  "default",
			Limit:  l.config.DefaultLimit,
			Window: l.config.DefaultWindow,
		}
	}
	if ep.Limit <= 0 || ep.Window <= 0 {
		return true, unlimited
	}

	cost := ep.cost()
	now := l.now()
	b := l.bucketFor(clientID+"|"+ep.key(path, method), ep, now)
	allowed, remaining, resetTime, retryAt := b.take(cost, now)

	info := Info{
		Allowed:   allowed,
		Limit:     ep.Limit,
		Remaining: remaining,
		Cost:      cost,
		ResetTime: resetTime,
	}
	if !allowed {
		info.RetryAfter = max(retryAt.Sub(now), 0)
	}
	return allowed, info
}

func (l *Limiter) bucketFor(key string, ep *EndpointConfig, now time.Time) *bucket {
	l.mu.Lock()
	defer l.mu.Unlock()

	if b, ok := l.buckets[key]; ok {
		return b
	}
	capacity := ep.Burst
	if capacity <= 0 {
		capacity = ep.Limit
	}
	// a bucket smaller than one request's cost could never admit it
	capacity = max(capacity, ep.cost())

	b := newBucket(capacity, float64(ep.Limit)/ep.Window.Seconds(), now)
	l.buckets[key] = b
	return b
}

func (l *Limiter) cleanupLoop(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			l.evictIdle()
		case <-l.stop:
			return
		}
	}
}

// evictIdle drops buckets untouched for longer than IdleTTL
func (l *Limiter) evictIdle() int {
	cutoff := l.now().Add(-l.config.IdleTTL)

	l.mu.Lock()
	defer l.mu.Unlock()

	evicted := 0
	for key, b := range l.buckets {
		if b.idleSince().Before(cutoff) {
			delete(l.buckets, key)
			evicted++
		}
	}
	return evicted
}

// Stop ends the cleanup goroutine. It is safe to call more than once.
func (l *Limiter) Stop() {
	l.once.Do(func() { close(l.stop) })
}
