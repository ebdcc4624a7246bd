package clientsync

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"shoplist/internal/clientapi"
	"shoplist/internal/clientlog"
	"shoplist/internal/wire"
)

func openTestLog(t *testing.T) *clientlog.Log {
	t.Helper()
	l, err := clientlog.Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { l.Close() })
	return l
}

func TestRunOnceMarksSuccessfulRowSynced(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(wire.Success("List created successfully", nil))
	}))
	defer srv.Close()

	l := openTestLog(t)
	ctx := context.Background()
	require.NoError(t, l.Create(ctx, "k1", "groceries", "alice"))

	e := New(l, clientapi.New(srv.URL, time.Second))
	e.RunOnce(ctx)

	rows, err := l.Unsynced(ctx)
	require.NoError(t, err)
	require.Empty(t, rows)
}

func TestRunOnceIncrementsRetryOnFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(wire.Error(wire.ReasonTransientTransport, "unreachable"))
	}))
	defer srv.Close()

	l := openTestLog(t)
	ctx := context.Background()
	require.NoError(t, l.Create(ctx, "k1", "groceries", "alice"))

	e := New(l, clientapi.New(srv.URL, time.Second))
	e.RunOnce(ctx)

	rows, err := l.Unsynced(ctx)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	require.Equal(t, 1, rows[0].RetryCount)
}

func TestRunOnceSkipsRowAtRetryBudgetWithoutContactingServer(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		json.NewEncoder(w).Encode(wire.Error(wire.ReasonTransientTransport, "unreachable"))
	}))
	defer srv.Close()

	l := openTestLog(t)
	ctx := context.Background()
	require.NoError(t, l.Create(ctx, "k1", "groceries", "alice"))
	for i := 0; i < NMax; i++ {
		require.NoError(t, l.IncrementRetry(ctx, "k1"))
	}

	e := New(l, clientapi.New(srv.URL, time.Second))
	e.RunOnce(ctx)

	require.Equal(t, int32(0), atomic.LoadInt32(&calls)) // poisoned row is never attempted

	rows, err := l.Unsynced(ctx)
	require.NoError(t, err)
	require.Len(t, rows, 1) // but stays in the log, inert, until reset
	require.Equal(t, NMax, rows[0].RetryCount)
}

func TestRunOnceResetsPoisonedRowAfterAnySuccessThisPass(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req wire.ClientRequest
		json.NewDecoder(r.Body).Decode(&req)
		atomic.AddInt32(&calls, 1)
		if req.URL == "k1" {
			// k1 is poisoned and never reaches the server; fail it if it does
			json.NewEncoder(w).Encode(wire.Error(wire.ReasonTransientTransport, "unreachable"))
			return
		}
		json.NewEncoder(w).Encode(wire.Success("List created successfully", nil))
	}))
	defer srv.Close()

	l := openTestLog(t)
	ctx := context.Background()
	require.NoError(t, l.Create(ctx, "k1", "first", "alice"))
	for i := 0; i < NMax; i++ {
		require.NoError(t, l.IncrementRetry(ctx, "k1"))
	}
	require.NoError(t, l.Create(ctx, "k2", "second", "alice"))

	e := New(l, clientapi.New(srv.URL, time.Second))
	e.RunOnce(ctx)

	rows, err := l.Unsynced(ctx)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	require.Equal(t, "k1", rows[0].Key)
	require.Equal(t, 0, rows[0].RetryCount) // reset after k2 succeeded this pass
}
