package services

import "sync"

// IdempotencyGuard deduplicates processing of settlement attempts within a
// session. BeginProcessing returns true exactly once for a given
// (sessionID, orderID, paymentKey); every later call returns false, even if
// the first attempt failed. A claimed key is never reopened — that bias
// ("never double-charge") is deliberate, and a retry always means a fresh
// transaction with a fresh order id. The backend tables remain the source
// of truth; this only stops redundant re-processing inside one session.
type IdempotencyGuard struct {
	mu      sync.Mutex
	claimed map[string]struct{}
}

func NewIdempotencyGuard() *IdempotencyGuard {
	return &IdempotencyGuard{claimed: make(map[string]struct{})}
}

func (g *IdempotencyGuard) BeginProcessing(sessionID, orderID, paymentKey string) bool {
	key := sessionID + "|" + orderID + "|" + paymentKey
	g.mu.Lock()
	defer g.mu.Unlock()
	if _, ok := g.claimed[key]; ok {
		return false
	}
	g.claimed[key] = struct{}{}
	return true
}

// ReleaseSession drops every key claimed under a session. Called when the
// session ends; individual keys are never released.
func (g *IdempotencyGuard) ReleaseSession(sessionID string) {
	prefix := sessionID + "|"
	g.mu.Lock()
	defer g.mu.Unlock()
	for key := range g.claimed {
		if len(key) >= len(prefix) && key[:len(prefix)] == prefix {
			delete(g.claimed, key)
		}
	}
}
