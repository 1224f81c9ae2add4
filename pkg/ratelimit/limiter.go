package ratelimit

import (
	"context"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// Limiter defines the interface for rate limiting
type Limiter interface {
	// Allow reports whether an event may happen now, consuming a token if so
	Allow() bool
	// Wait blocks until an event may happen or ctx is done
	Wait(ctx context.Context) error
	// Reset restores the limiter to its initial state
	Reset()
}

// Pacer spaces events at least interval apart. The first event is never
// delayed. A zero interval disables pacing.
type Pacer struct {
	mu       sync.Mutex
	interval time.Duration
	limiter  *rate.Limiter
}

// NewPacer creates a Pacer allowing one event per interval
func NewPacer(interval time.Duration) *Pacer {
	p := &Pacer{interval: interval}
	p.limiter = newLimiter(interval)
	return p
}

func newLimiter(interval time.Duration) *rate.Limiter {
	if interval <= 0 {
		return rate.NewLimiter(rate.Inf, 1)
	}
	return rate.NewLimiter(rate.Every(interval), 1)
}

func (p *Pacer) current() *rate.Limiter {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.limiter
}

func (p *Pacer) Allow() bool {
	return p.current().Allow()
}

func (p *Pacer) Wait(ctx context.Context) error {
	return p.current().Wait(ctx)
}

func (p *Pacer) Reset() {
	p.mu.Lock()
	p.limiter = newLimiter(p.interval)
	p.mu.Unlock()
}

// Restart starts a full interval from now, so the next event waits the
// whole interval however long the work since the last event took
func (p *Pacer) Restart() {
	p.mu.Lock()
	p.limiter = newLimiter(p.interval)
	p.limiter.Allow()
	p.mu.Unlock()
}

// Interval returns the configured spacing
func (p *Pacer) Interval() time.Duration {
	return p.interval
}

type keyedEntry struct {
	limiter    *rate.Limiter
	lastAccess time.Time
}

// Keyed keeps one token bucket per key, for example per client address
type Keyed struct {
	mu      sync.Mutex
	limit   rate.Limit
	burst   int
	entries map[string]*keyedEntry
}

// NewKeyed creates a Keyed limiter allowing limit events per second per key
// with the given burst
func NewKeyed(limit rate.Limit, burst int) *Keyed {
	return &Keyed{limit: limit, burst: burst, entries: make(map[string]*keyedEntry)}
}

// Allow consumes a token for key if one is available
func (k *Keyed) Allow(key string) bool {
	k.mu.Lock()
	e, ok := k.entries[key]
	if !ok {
		e = &keyedEntry{limiter: rate.NewLimiter(k.limit, k.burst)}
		k.entries[key] = e
	}
	e.lastAccess = time.Now()
	k.mu.Unlock()
	return e.limiter.Allow()
}

// Sweep forgets keys idle for longer than maxIdle and returns how many were
// removed
func (k *Keyed) Sweep(maxIdle time.Duration) int {
	cutoff := time.Now().Add(-maxIdle)
	k.mu.Lock()
	defer k.mu.Unlock()
	removed := 0
	for key, e := range k.entries {
		if e.lastAccess.Before(cutoff) {
			delete(k.entries, key)
			removed++
		}
	}
	return removed
}

// Len returns the number of tracked keys
func (k *Keyed) Len() int {
	k.mu.Lock()
	defer k.mu.Unlock()
	return len(k.entries)
}
