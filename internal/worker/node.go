// Package worker implements the worker state machine: idempotent primary/
// replica apply of create/delete, worker-to-worker replication, and
// receive-side deduplication.
package worker

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"shoplist/internal/wire"
	"shoplist/internal/workerstore"
)

// Node holds one worker's durable store and knows how to apply each
// request action. It has no knowledge of the ring or placement — that is
// entirely the router's concern.
type Node struct {
	Address string
	store   *workerstore.Store
	client  *http.Client
}

// New returns a Node backed by store, identified to peers as address
// (host:port).
func New(address string, store *workerstore.Store) *Node {
	return &Node{
		Address: address,
		store:   store,
		client:  &http.Client{Timeout: 5 * time.Second},
	}
}

// Handle dispatches req to the matching action.
func (n *Node) Handle(ctx context.Context, req wire.ClientRequest) wire.Response {
	switch req.Action {
	case "create_list":
		return n.createList(ctx, req)
	case "delete_list":
		return n.deleteList(ctx, req)
	case "check_list":
		return n.checkList(ctx, req)
	case "get_list":
		return n.getList(ctx, req)
	case "replicate_write":
		return n.replicateWrite(ctx, req)
	case "replicate_data":
		return n.replicateData(ctx, req)
	case "receive_replication":
		return n.receiveReplication(ctx, req)
	default:
		return wire.Error(wire.ReasonRejected, fmt.Sprintf("unknown action: %q", req.Action))
	}
}

func (n *Node) createList(ctx context.Context, req wire.ClientRequest) wire.Response {
	rec, err := n.store.Put(ctx, req.URL, req.Name, req.Creator, req.IsReplica, "")
	if err != nil {
		return wire.Error(wire.ReasonInternal, err.Error())
	}
	resp := wire.Success("List created successfully", &wire.ListPayload{
		URL: rec.Key, Name: rec.Name, Creator: rec.Creator,
	})
	resp.RequiresReplication = !req.IsReplica
	return resp
}

func (n *Node) deleteList(ctx context.Context, req wire.ClientRequest) wire.Response {
	had, err := n.store.Delete(ctx, req.ListURL)
	if err != nil {
		return wire.Error(wire.ReasonInternal, err.Error())
	}
	if !had {
		resp := wire.Error(wire.ReasonNotFound, "List not found")
		resp.HadList = wire.BoolPtr(false)
		return resp
	}
	resp := wire.Success("List deleted successfully", nil)
	resp.HadList = wire.BoolPtr(true)
	return resp
}

// getList answers a read with the full record, not just existence —
// the counterpart to check_list's existence-only probe.
func (n *Node) getList(ctx context.Context, req wire.ClientRequest) wire.Response {
	rec, ok, err := n.store.Fetch(ctx, req.URL)
	if err != nil {
		return wire.Error(wire.ReasonInternal, err.Error())
	}
	if !ok {
		return wire.Error(wire.ReasonNotFound, "List not found")
	}
	return wire.Success("", &wire.ListPayload{URL: rec.Key, Name: rec.Name, Creator: rec.Creator})
}

func (n *Node) checkList(ctx context.Context, req wire.ClientRequest) wire.Response {
	exists, active, err := n.store.Status(ctx, req.ListURL)
	if err != nil {
		return wire.Error(wire.ReasonInternal, err.Error())
	}
	resp := wire.Response{Status: "success"}
	resp.Exists = wire.BoolPtr(exists)
	resp.Active = wire.BoolPtr(active)
	return resp
}

// replicateWrite unwraps original_data and re-enters Handle with it marked
// as a replica write, so the same create/delete logic runs on both the
// primary and its replicas.
func (n *Node) replicateWrite(ctx context.Context, req wire.ClientRequest) wire.Response {
	if req.OriginalData == nil {
		return wire.Error(wire.ReasonRejected, "replicate_write missing original_data")
	}
	wrapped := *req.OriginalData
	wrapped.IsReplica = true
	return n.Handle(ctx, wrapped)
}

// replicateData pushes this worker's copy of a key to target_worker over
// that worker's replication channel.
func (n *Node) replicateData(ctx context.Context, req wire.ClientRequest) wire.Response {
	rec, ok, err := n.store.Fetch(ctx, req.DataKey)
	if err != nil {
		return wire.Error(wire.ReasonInternal, err.Error())
	}
	if !ok {
		return wire.Error(wire.ReasonNotFound, fmt.Sprintf("data not found for replication: %s", req.DataKey))
	}

	push := wire.ClientRequest{
		Action:       "receive_replication",
		Data:         &wire.ListPayload{URL: rec.Key, Name: rec.Name, Creator: rec.Creator},
		SourceWorker: n.Address,
	}
	if err := n.sendReplication(ctx, req.TargetWorker, push); err != nil {
		return wire.Error(wire.ReasonTransientTransport, fmt.Sprintf("replication failed: %v", err))
	}
	return wire.Success("Replication completed successfully", nil)
}

func (n *Node) receiveReplication(ctx context.Context, req wire.ClientRequest) wire.Response {
	if req.Data == nil {
		return wire.Error(wire.ReasonRejected, "no data received for replication")
	}
	_, err := n.store.Put(ctx, req.Data.URL, req.Data.Name, req.Data.Creator, true, req.SourceWorker)
	if err != nil {
		return wire.Error(wire.ReasonInternal, err.Error())
	}
	return wire.Success("Replication data received and stored", nil)
}

// ListKeys answers the warm-recovery probe used to let a restarted router
// rebuild its location map from the workers that are still alive.
func (n *Node) ListKeys(ctx context.Context) ([]string, error) {
	return n.store.Keys(ctx)
}
