// Package router is the single-goroutine dispatcher that classifies client
// requests, fans out writes to replicas, fails reads over to replicas, and
// drives rebalancing from worker heartbeats and eviction.
//
// All mutable state (the ring, the placement planner, the worker registry)
// lives on one loop goroutine, reached only through Router.do. HTTP handlers
// and background tickers never touch that state directly; they submit a
// closure and wait for it to run.
package router

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"shoplist/internal/placement"
	"shoplist/internal/registry"
	"shoplist/internal/wire"
)

// Router owns the cluster's control-plane state.
type Router struct {
	cmds     chan func()
	planner  *placement.Planner
	registry *registry.Registry
	client   *http.Client
}

// New returns a Router whose registry evicts a worker after workerTimeout
// without a heartbeat.
func New(workerTimeout time.Duration) *Router {
	return &Router{
		cmds:     make(chan func()),
		planner:  placement.New(),
		registry: registry.New(workerTimeout),
		client:   &http.Client{Timeout: requestTimeout},
	}
}

// Run processes submitted closures on the calling goroutine until ctx is
// done. Callers should run this in its own goroutine.
func (r *Router) Run(ctx context.Context) {
	for {
		select {
		case fn := <-r.cmds:
			fn()
		case <-ctx.Done():
			return
		}
	}
}

// do runs fn on the loop goroutine and blocks until it completes.
func (r *Router) do(fn func()) {
	done := make(chan struct{})
	r.cmds <- func() {
		fn()
		close(done)
	}
	<-done
}

// HandleClientRequest classifies and executes a client-facing request.
func (r *Router) HandleClientRequest(ctx context.Context, req wire.ClientRequest) wire.Response {
	switch req.Action {
	case "create_list":
		return r.createList(ctx, req)
	case "delete_list":
		return r.deleteList(ctx, req)
	case "get_list", "view_lists", "view_list":
		return r.readList(ctx, req)
	default:
		return wire.Error(wire.ReasonRejected, fmt.Sprintf("unknown action: %q", req.Action))
	}
}

func (r *Router) createList(ctx context.Context, req wire.ClientRequest) wire.Response {
	key := req.URL
	if key == "" {
		return wire.Error(wire.ReasonRejected, "missing url")
	}

	var decision placement.Decision
	var tombstoned bool
	r.do(func() {
		tombstoned = r.planner.IsTombstoned(key)
		if !tombstoned {
			decision = r.planner.Placement(key)
		}
	})
	if tombstoned {
		return wire.Error(wire.ReasonRejected, "list was deleted and cannot be recreated")
	}
	if decision.Empty() {
		return wire.Error(wire.ReasonTransientTransport, "no workers available")
	}

	resp, err := postToWorker(ctx, r.client, decision.Primary, req)
	if err != nil {
		return wire.Error(wire.ReasonTransientTransport, err.Error())
	}
	if resp.Status != "success" {
		return resp
	}

	r.do(func() { r.planner.RecordLocation(key, decision.Primary) })

	for _, replica := range decision.Replicas {
		replica := replica
		go r.replicateWriteAsync(key, replica, req)
	}
	return resp
}

// replicateWriteAsync pushes a create/delete to a replica and, on ack,
// records the location back on the loop goroutine. It runs off the loop
// goroutine since network I/O must never block request classification for
// other keys.
func (r *Router) replicateWriteAsync(key, target string, original wire.ClientRequest) {
	push := wire.ClientRequest{Action: "replicate_write", OriginalData: &original}
	resp, err := postToWorker(context.Background(), r.client, target, push)
	if err != nil || resp.Status != "success" {
		return
	}
	r.do(func() { r.planner.RecordLocation(key, target) })
}

func (r *Router) deleteList(ctx context.Context, req wire.ClientRequest) wire.Response {
	key := req.ListURL
	if key == "" {
		return wire.Error(wire.ReasonRejected, "missing list_url")
	}

	var decision placement.Decision
	var locations []string
	r.do(func() {
		decision = r.planner.Placement(key)
		locations = r.planner.Locations(key)
	})

	var candidates []string
	if decision.Primary != "" && contains(locations, decision.Primary) {
		candidates = append(candidates, decision.Primary)
	}
	for _, replica := range decision.Replicas {
		if contains(locations, replica) {
			candidates = append(candidates, replica)
		}
	}

	var result wire.Response
	had := false
	for _, w := range candidates {
		resp, err := postToWorker(ctx, r.client, w, req)
		if err != nil {
			continue
		}
		if resp.HadList != nil && *resp.HadList {
			had = true
			if w == decision.Primary {
				result = resp
			}
			r.do(func() { r.planner.ForgetLocation(key, w) })
		}
	}

	if !had {
		return wire.Error(wire.ReasonNotFound, "List not found")
	}
	r.do(func() { r.planner.Tombstone(key) })
	if result.Status == "" {
		result = wire.Success("List deleted successfully", nil)
		result.HadList = wire.BoolPtr(true)
	}
	return result
}

func (r *Router) readList(ctx context.Context, req wire.ClientRequest) wire.Response {
	key := req.URL
	var decision placement.Decision
	r.do(func() { decision = r.planner.Placement(key) })
	if decision.Empty() {
		return wire.Error(wire.ReasonNotFound, "List not found")
	}

	candidates := append([]string{decision.Primary}, decision.Replicas...)
	for _, w := range candidates {
		resp, err := postToWorker(ctx, r.client, w, req)
		if err == nil && resp.Status == "success" {
			return resp
		}
	}
	return wire.Error(wire.ReasonTransientTransport, "Unable to process read request")
}

// HandleHeartbeat registers a heartbeat from addr. On a newly seen worker
// it schedules the join replication plan asynchronously.
func (r *Router) HandleHeartbeat(addr string) wire.HeartbeatAck {
	var moves []placement.Move
	r.do(func() {
		if r.registry.Register(addr, time.Now()) {
			moves = r.planner.OnJoin(addr)
		}
	})
	for _, mv := range moves {
		go r.replicateDataAsync(mv)
	}
	return wire.HeartbeatAck{Status: "ack"}
}

// replicateDataAsync asks mv.Source to push key mv.Key to mv.Target, and
// records the location once the push is acknowledged.
func (r *Router) replicateDataAsync(mv placement.Move) {
	req := wire.ClientRequest{Action: "replicate_data", DataKey: mv.Key, TargetWorker: mv.Target}
	resp, err := postToWorker(context.Background(), r.client, mv.Source, req)
	if err != nil || resp.Status != "success" {
		return
	}
	r.do(func() { r.planner.RecordLocation(mv.Key, mv.Target) })
}

// Sweep evicts workers that have missed their heartbeat deadline and
// schedules re-replication for any key that now has an assigned-but-
// unfilled successor.
func (r *Router) Sweep() {
	var moves []placement.Move
	r.do(func() {
		now := time.Now()
		active := toSet(r.registry.Active(now))
		for _, w := range r.registry.Known() {
			if active[w] {
				continue
			}
			r.registry.Remove(w)
			for _, res := range r.planner.OnLeave(w) {
				if len(res.Remaining) == 0 {
					continue
				}
				decision := r.planner.Placement(res.Key)
				if decision.Empty() {
					continue
				}
				assigned := append([]string{decision.Primary}, decision.Replicas...)
				for _, succ := range assigned {
					if succ == "" || contains(res.Remaining, succ) {
						continue
					}
					moves = append(moves, placement.Move{Key: res.Key, Source: res.Remaining[0], Target: succ})
				}
			}
		}
	})
	for _, mv := range moves {
		go r.replicateDataAsync(mv)
	}
}

// SweepLoop runs Sweep on interval until ctx is done.
func (r *Router) SweepLoop(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.Sweep()
		}
	}
}

// Nodes returns the physical workers currently on the ring.
func (r *Router) Nodes() []string {
	var out []string
	r.do(func() { out = r.planner.Ring().Workers() })
	return out
}

// WarmStart probes every address in seeds for its resident keys and seeds
// the location map from whichever workers answer, so a restarted router
// does not treat every worker as empty until the next rebalance.
func (r *Router) WarmStart(ctx context.Context, seeds []string) {
	for _, addr := range seeds {
		keys, err := fetchWorkerKeys(ctx, r.client, addr)
		if err != nil {
			continue
		}
		r.do(func() {
			r.registry.Register(addr, time.Now())
			r.planner.OnJoin(addr)
			for _, k := range keys {
				r.planner.RecordLocation(k, addr)
			}
		})
	}
}

func contains(ss []string, s string) bool {
	for _, x := range ss {
		if x == s {
			return true
		}
	}
	return false
}

func toSet(ss []string) map[string]bool {
	out := make(map[string]bool, len(ss))
	for _, s := range ss {
		out[s] = true
	}
	return out
}
