package ratelimit

import (
	"sync"
	"time"

	"golang.org/x/time/rate"
)

const (
	defaultRPS   = 5
	defaultBurst = 10
)

// Pool hands out one token bucket per key. Buckets idle for longer than ttl
// are dropped by Sweep.
type Pool struct {
	mu    sync.Mutex
	m     map[string]*entry
	rps   float64
	burst int
	ttl   time.Duration
	now   func() time.Time
}

type entry struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

func NewPool(rps float64, burst int, ttl time.Duration) *Pool {
	if rps <= 0 {
		rps = defaultRPS
	}
	if burst <= 0 {
		burst = defaultBurst
	}
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}
	return &Pool{
		m:     make(map[string]*entry),
		rps:   rps,
		burst: burst,
		ttl:   ttl,
		now:   time.Now,
	}
}

func (p *Pool) get(key string) *rate.Limiter {
	p.mu.Lock()
	defer p.mu.Unlock()

	now := p.now()
	if e, ok := p.m[key]; ok {
		e.lastSeen = now
		return e.limiter
	}
	l := rate.NewLimiter(rate.Limit(p.rps), p.burst)
	p.m[key] = &entry{limiter: l, lastSeen: now}
	return l
}

func (p *Pool) Allow(key string) bool {
	return p.get(key).Allow()
}

// Sweep removes buckets not used within ttl and reports how many it removed.
func (p *Pool) Sweep() int {
	p.mu.Lock()
	defer p.mu.Unlock()

	cutoff := p.now().Add(-p.ttl)
	removed := 0
	for key, e := range p.m {
		if e.lastSeen.Before(cutoff) {
			delete(p.m, key)
			removed++
		}
	}
	return removed
}

func (p *Pool) Len() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.m)
}
