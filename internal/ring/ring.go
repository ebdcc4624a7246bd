// Package ring implements a consistent-hash ring used to map shopping-list
// keys onto the worker fleet.
//
// Why not hash(key) % N?  Because adding or removing a worker would remap
// almost every key at once.  A ring only moves the keys that land between
// the old and new position of the worker that changed, which in practice
// means roughly 1/N of the keyspace per membership change.
//
// Each worker occupies a fixed number of virtual positions on the ring so
// that load stays even even with a handful of physical workers.
package ring

import (
	"crypto/sha256"
	"encoding/binary"
	"fmt"
	"slices"
	"sort"
	"sync"
)

// virtualNodes is the number of ring positions a worker occupies: inserted
// on join, all removed on leave.
const virtualNodes = 3

// Ring is a sorted set of (position, worker) pairs, safe for concurrent use.
type Ring struct {
	mu     sync.RWMutex
	posToW map[uint32]string
	sorted []uint32
}

// New returns an empty ring.
func New() *Ring {
	return &Ring{posToW: make(map[uint32]string)}
}

// Add inserts worker w's three virtual positions into the ring.
// If a position collides with an existing one, the worker already occupying
// it wins — Add never overwrites an existing mapping.
func (r *Ring) Add(w string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for i := 0; i < virtualNodes; i++ {
		pos := hashPos(fmt.Sprintf("%s:%d", w, i))
		if _, taken := r.posToW[pos]; taken {
			continue
		}
		r.posToW[pos] = w
	}
	r.rebuild()
}

// Remove deletes every virtual position belonging to w.
func (r *Ring) Remove(w string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for pos, owner := range r.posToW {
		if owner == w {
			delete(r.posToW, pos)
		}
	}
	r.rebuild()
}

// Primary returns the worker owning key k: the worker at the smallest
// position >= H(k), wrapping around the ring. Primary fails if the ring
// is empty.
func (r *Ring) Primary(k string) (string, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if len(r.sorted) == 0 {
		return "", false
	}
	pos := hashPos(k)
	idx := sort.Search(len(r.sorted), func(i int) bool { return r.sorted[i] >= pos })
	if idx == len(r.sorted) {
		idx = 0
	}
	return r.posToW[r.sorted[idx]], true
}

// Workers returns the set of distinct physical workers on the ring, in a
// deterministic order derived from the ring's iteration (smallest virtual
// position first, by occurrence). Callers that need a different iteration
// order for replica selection should sort or filter the returned slice.
func (r *Ring) Workers() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	seen := make(map[string]bool, len(r.posToW))
	out := make([]string, 0, len(r.posToW))
	for _, pos := range r.sorted {
		w := r.posToW[pos]
		if !seen[w] {
			seen[w] = true
			out = append(out, w)
		}
	}
	return out
}

// PositionCount returns the number of virtual positions currently on the
// ring — used by tests to check the 3×workers invariant.
func (r *Ring) PositionCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.posToW)
}

func (r *Ring) rebuild() {
	r.sorted = make([]uint32, 0, len(r.posToW))
	for pos := range r.posToW {
		r.sorted = append(r.sorted, pos)
	}
	slices.Sort(r.sorted)
}

// hashPos derives a 32-bit ring position from s using SHA-256, truncated to
// its first four bytes and read as an unsigned integer.
func hashPos(s string) uint32 {
	sum := sha256.Sum256([]byte(s))
	return binary.BigEndian.Uint32(sum[:4])
}
