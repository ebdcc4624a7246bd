// Package clientsync drives the client's durable log against the router:
// a cooperative loop that sends one unsynced row's mutation at a time,
// retries with a fixed backoff schedule, and poisons a row once its retry
// budget is exhausted.
package clientsync

import (
	"context"
	"log"
	"time"

	"shoplist/internal/clientapi"
	"shoplist/internal/clientlog"
	"shoplist/internal/wire"
)

// NMax is the retry budget per row before it is poisoned.
const NMax = 3

// Delays is the backoff schedule indexed by min(retry_count, len(Delays)-1).
var Delays = []time.Duration{1 * time.Second, 30 * time.Second, 60 * time.Second}

// Engine owns one pass of the sync loop.
type Engine struct {
	log    *clientlog.Log
	client *clientapi.Client
}

// New returns an Engine driving log through client.
func New(log *clientlog.Log, client *clientapi.Client) *Engine {
	return &Engine{log: log, client: client}
}

// Run fires RunOnce every interval until ctx is done.
func (e *Engine) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			e.RunOnce(ctx)
		}
	}
}

// RunOnce processes every unsynced row once, in last_modified order. It
// sleeps between failed attempts per the backoff schedule, so a full pass
// can take a while when the router is unreachable — that is intentional:
// the sync loop runs on its own goroutine and never blocks the UI.
func (e *Engine) RunOnce(ctx context.Context) {
	rows, err := e.log.Unsynced(ctx)
	if err != nil {
		log.Printf("clientsync: failed to list unsynced rows: %v", err)
		return
	}
	if len(rows) == 0 {
		return
	}

	hadSuccess := false
	for _, row := range rows {
		if row.RetryCount >= NMax {
			log.Printf("clientsync: %s exhausted its retry budget, poisoned until a later success resets it", row.Key)
			continue
		}

		resp, err := e.send(ctx, row)
		if err == nil && resp.Status == "success" {
			if err := e.log.MarkSynced(ctx, row.Key); err != nil {
				log.Printf("clientsync: failed to mark %s synced: %v", row.Key, err)
				continue
			}
			hadSuccess = true
			continue
		}

		if incErr := e.log.IncrementRetry(ctx, row.Key); incErr != nil {
			log.Printf("clientsync: failed to bump retry for %s: %v", row.Key, incErr)
		}
		time.Sleep(backoffFor(row.RetryCount))
	}

	if hadSuccess {
		if err := e.log.ResetFailedRetries(ctx, NMax); err != nil {
			log.Printf("clientsync: failed to reset poisoned rows: %v", err)
		}
	}
}

func (e *Engine) send(ctx context.Context, row clientlog.Row) (wire.Response, error) {
	if row.Deleted {
		return e.client.DeleteList(ctx, row.Key)
	}
	return e.client.CreateList(ctx, row.Key, row.Name, row.Creator)
}

func backoffFor(retryCount int) time.Duration {
	idx := retryCount
	if idx >= len(Delays) {
		idx = len(Delays) - 1
	}
	return Delays[idx]
}
