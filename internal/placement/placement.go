// Package placement turns ring membership and the router's observed state
// into primary/replica assignments and join/leave replication plans.
//
// Placement itself is a pure function of (ring, live workers, tombstone
// set) — it never consults where a key is actually observed to live. That
// observed state (the location map) is tracked separately so the router can
// tell the difference between "where a key should live" and "where it has
// been seen to live."
package placement

import (
	"sync"

	"shoplist/internal/ring"
)

// RMax bounds the number of replicas placed per key.
const RMax = 2

// Decision is the desired placement for one key.
type Decision struct {
	Primary  string
	Replicas []string
}

// Empty reports whether the decision carries no placement (tombstoned key
// or empty cluster).
func (d Decision) Empty() bool { return d.Primary == "" }

// Move describes a single key that needs to be replicated from source to
// target, returned by OnJoin/OnLeave scheduling.
type Move struct {
	Key    string
	Source string
	Target string
}

// Planner owns the hash ring plus the router's observed bookkeeping: which
// workers have acknowledged holding each key, and which keys are
// tombstoned. All mutating methods are safe for concurrent use, though in
// this repo they are only ever called from the router's single event-loop
// goroutine (see internal/router).
type Planner struct {
	mu         sync.Mutex
	ring       *ring.Ring
	locations  map[string]map[string]bool // key -> set of workers observed holding it
	tombstoned map[string]bool
	known      map[string]bool // every key ever placed, tombstoned or not
}

// New returns a Planner over an empty ring.
func New() *Planner {
	return &Planner{
		ring:       ring.New(),
		locations:  make(map[string]map[string]bool),
		tombstoned: make(map[string]bool),
		known:      make(map[string]bool),
	}
}

// Ring exposes the underlying ring for read-only introspection (e.g. /cluster/nodes).
func (p *Planner) Ring() *ring.Ring { return p.ring }

// Placement computes (primary, replicas) for key k. It returns an empty
// Decision if k is tombstoned or the ring is empty.
func (p *Planner) Placement(k string) Decision {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.placementLocked(k)
}

func (p *Planner) placementLocked(k string) Decision {
	if p.tombstoned[k] {
		return Decision{}
	}
	primary, ok := p.ring.Primary(k)
	if !ok {
		return Decision{}
	}

	var replicas []string
	for _, w := range p.ring.Workers() {
		if w == primary {
			continue
		}
		replicas = append(replicas, w)
		if len(replicas) == RMax {
			break
		}
	}
	return Decision{Primary: primary, Replicas: replicas}
}

// RecordLocation marks worker w as holding key k. This is the only way a
// worker enters a key's location set, and it should only be called after w
// has acknowledged holding k. It is a no-op for a tombstoned key.
func (p *Planner) RecordLocation(k, w string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.tombstoned[k] {
		return
	}
	p.known[k] = true
	if p.locations[k] == nil {
		p.locations[k] = make(map[string]bool)
	}
	p.locations[k][w] = true
}

// ForgetLocation removes worker w from key k's observed location set.
func (p *Planner) ForgetLocation(k, w string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if set, ok := p.locations[k]; ok {
		delete(set, w)
		if len(set) == 0 {
			delete(p.locations, k)
		}
	}
}

// Locations returns a snapshot of the workers currently observed to hold k.
func (p *Planner) Locations(k string) []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	set := p.locations[k]
	out := make([]string, 0, len(set))
	for w := range set {
		out = append(out, w)
	}
	return out
}

// Tombstone marks k as deleted: it is removed from the location map and can
// never re-enter it. Placement on a tombstoned key returns Empty, and the
// router refuses a later create for the same key (see IsTombstoned).
func (p *Planner) Tombstone(k string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.tombstoned[k] = true
	delete(p.locations, k)
}

// IsTombstoned reports whether k has been deleted.
func (p *Planner) IsTombstoned(k string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.tombstoned[k]
}

// OnJoin adds w to the ring and returns the set of (key -> source) moves
// the router must schedule to bring w up to date: keys where w is now
// primary or a replica, w does not already hold it, and the key has fewer
// than three recorded holders.
func (p *Planner) OnJoin(w string) []Move {
	p.mu.Lock()
	defer p.mu.Unlock()

	if contains(p.ring.Workers(), w) {
		return nil
	}
	p.ring.Add(w)

	var moves []Move
	for k := range p.known {
		if p.tombstoned[k] {
			continue
		}
		decision := p.placementLocked(k)
		if decision.Empty() {
			continue
		}
		assigned := decision.Primary == w || contains(decision.Replicas, w)
		if !assigned {
			continue
		}
		current := p.locations[k]
		if current[w] {
			continue
		}
		if len(current) >= 3 {
			continue
		}
		source := anyMember(current)
		if source == "" {
			continue
		}
		moves = append(moves, Move{Key: k, Source: source, Target: w})
	}
	return moves
}

// LeaveResult reports, for one affected key, the workers still observed to
// hold it after w departs.
type LeaveResult struct {
	Key       string
	Remaining []string
}

// OnLeave removes w from the ring and returns the affected keys along with
// their remaining observed holders, so the router can schedule
// re-replication to newly assigned successors.
func (p *Planner) OnLeave(w string) []LeaveResult {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.ring.Remove(w)

	var results []LeaveResult
	for k, set := range p.locations {
		if !set[w] {
			continue
		}
		delete(set, w)
		if len(set) == 0 {
			delete(p.locations, k)
			continue
		}
		remaining := make([]string, 0, len(set))
		for m := range set {
			remaining = append(remaining, m)
		}
		results = append(results, LeaveResult{Key: k, Remaining: remaining})
	}
	return results
}

func contains(ss []string, s string) bool {
	for _, x := range ss {
		if x == s {
			return true
		}
	}
	return false
}

func anyMember(set map[string]bool) string {
	for m := range set {
		return m
	}
	return ""
}
