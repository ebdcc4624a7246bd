// Package registry tracks worker liveness from heartbeats: a soft-state map
// of address to last-seen time, with a fixed eviction timeout.
package registry

import (
	"sync"
	"time"
)

// Registry is a heartbeat-driven liveness set, safe for concurrent use.
type Registry struct {
	mu       sync.Mutex
	lastSeen map[string]time.Time
	timeout  time.Duration
}

// New returns a Registry that considers a worker dead once timeout has
// elapsed since its last heartbeat.
func New(timeout time.Duration) *Registry {
	return &Registry{
		lastSeen: make(map[string]time.Time),
		timeout:  timeout,
	}
}

// Register records a heartbeat from w at time now, refreshing last_seen.
// It returns true if w was not previously known — the caller uses this to
// trigger placement.OnJoin and a replication plan.
func (r *Registry) Register(w string, now time.Time) (isNew bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, known := r.lastSeen[w]
	r.lastSeen[w] = now
	return !known
}

// Active returns every worker whose last heartbeat is within timeout of now.
func (r *Registry) Active(now time.Time) []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, 0, len(r.lastSeen))
	for w, seen := range r.lastSeen {
		if now.Sub(seen) <= r.timeout {
			out = append(out, w)
		}
	}
	return out
}

// Known returns every worker the registry has ever heard from, live or not.
func (r *Registry) Known() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, 0, len(r.lastSeen))
	for w := range r.lastSeen {
		out = append(out, w)
	}
	return out
}

// Remove deletes w's entry entirely.
func (r *Registry) Remove(w string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.lastSeen, w)
}

// LastSeen returns w's last heartbeat time and whether it is known at all.
func (r *Registry) LastSeen(w string) (time.Time, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.lastSeen[w]
	return t, ok
}
