package workerstore

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestPutThenFetch(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	_, err := s.Put(ctx, "k1", "groceries", "alice", false, "")
	require.NoError(t, err)

	rec, ok, err := s.Fetch(ctx, "k1")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "groceries", rec.Name)
	require.Equal(t, RolePrimary, rec.Role)
}

func TestCreateIsIdempotent(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	_, err := s.Put(ctx, "k1", "groceries", "alice", false, "")
	require.NoError(t, err)
	_, err = s.Put(ctx, "k1", "groceries", "alice", false, "")
	require.NoError(t, err)

	exists, active, err := s.Status(ctx, "k1")
	require.NoError(t, err)
	require.True(t, exists)
	require.True(t, active)
}

func TestDeleteIsIdempotentAndRetainsRow(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	_, err := s.Put(ctx, "k1", "groceries", "alice", false, "")
	require.NoError(t, err)

	had1, err := s.Delete(ctx, "k1")
	require.NoError(t, err)
	require.True(t, had1)

	had2, err := s.Delete(ctx, "k1")
	require.NoError(t, err)
	require.True(t, had2) // repeating delete is still had_list=true

	exists, active, err := s.Status(ctx, "k1")
	require.NoError(t, err)
	require.True(t, exists) // row retained
	require.False(t, active)
}

func TestDeleteUnknownKeyReportsNotHad(t *testing.T) {
	s := openTestStore(t)
	had, err := s.Delete(context.Background(), "never-existed")
	require.NoError(t, err)
	require.False(t, had)
}

func TestFetchHidesTombstonedRecord(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	_, err := s.Put(ctx, "k1", "groceries", "alice", false, "")
	require.NoError(t, err)
	_, err = s.Delete(ctx, "k1")
	require.NoError(t, err)

	_, ok, err := s.Fetch(ctx, "k1")
	require.NoError(t, err)
	require.False(t, ok)
}

func TestPutReplicaRecordsSource(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	_, err := s.Put(ctx, "k1", "groceries", "alice", true, "worker-a")
	require.NoError(t, err)

	rec, ok, err := s.Fetch(ctx, "k1")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, RoleReplica, rec.Role)
	require.Equal(t, "worker-a", rec.Source)
}

func TestKeysListsOnlyActiveKeys(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	_, err := s.Put(ctx, "k1", "a", "alice", false, "")
	require.NoError(t, err)
	_, err = s.Put(ctx, "k2", "b", "alice", false, "")
	require.NoError(t, err)
	_, err = s.Delete(ctx, "k2")
	require.NoError(t, err)

	keys, err := s.Keys(ctx)
	require.NoError(t, err)
	require.Equal(t, []string{"k1"}, keys)
}
