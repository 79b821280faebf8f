package dedup

import (
	"context"
	"sync"
	"time"
)

// memoryGate is the in-process fallback for single-instance deployments.
// Claims made here are invisible to other instances, so it must never be
// used behind a horizontally scaled webhook endpoint.
type memoryGate struct {
	mu     sync.Mutex
	claims map[string]time.Time
}

func NewMemoryGate() Gate {
	return &memoryGate{claims: make(map[string]time.Time)}
}

func (g *memoryGate) ClaimOnce(_ context.Context, key string, ttl time.Duration) (bool, error) {
	now := time.Now()

	g.mu.Lock()
	defer g.mu.Unlock()

	if expiry, ok := g.claims[key]; ok && now.Before(expiry) {
		return false, nil
	}

	g.claims[key] = now.Add(ttl)
	time.AfterFunc(ttl, func() {
		g.mu.Lock()
		defer g.mu.Unlock()
		if expiry, ok := g.claims[key]; ok && !time.Now().Before(expiry) {
			delete(g.claims, key)
		}
	})

	return true, nil
}
