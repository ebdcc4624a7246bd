package placement

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestPlacementOnEmptyClusterIsEmpty(t *testing.T) {
	p := New()
	d := p.Placement("k1")
	require.True(t, d.Empty())
}

func TestPlacementSingleWorkerHasNoReplicas(t *testing.T) {
	p := New()
	p.OnJoin("w1")
	d := p.Placement("k1")
	require.Equal(t, "w1", d.Primary)
	require.Empty(t, d.Replicas)
}

func TestPlacementCapsReplicasAtRMax(t *testing.T) {
	p := New()
	for _, w := range []string{"w1", "w2", "w3", "w4", "w5"} {
		p.OnJoin(w)
	}
	d := p.Placement("k1")
	require.LessOrEqual(t, len(d.Replicas), RMax)
}

func TestTombstonedKeyYieldsEmptyPlacement(t *testing.T) {
	p := New()
	p.OnJoin("w1")
	p.RecordLocation("k1", "w1")
	p.Tombstone("k1")

	d := p.Placement("k1")
	require.True(t, d.Empty())
	require.Empty(t, p.Locations("k1"))
}

func TestOnJoinSchedulesReplicationForAssignedKeys(t *testing.T) {
	p := New()
	p.OnJoin("w1")
	p.RecordLocation("k1", "w1")

	moves := p.OnJoin("w2")
	require.Len(t, moves, 1)
	require.Equal(t, "k1", moves[0].Key)
	require.Equal(t, "w1", moves[0].Source)
	require.Equal(t, "w2", moves[0].Target)
}

func TestOnJoinIsNoopForExistingWorker(t *testing.T) {
	p := New()
	p.OnJoin("w1")
	p.RecordLocation("k1", "w1")
	moves := p.OnJoin("w1")
	require.Empty(t, moves)
}

func TestOnLeaveReturnsRemainingHolders(t *testing.T) {
	p := New()
	p.OnJoin("w1")
	p.OnJoin("w2")
	p.RecordLocation("k1", "w1")
	p.RecordLocation("k1", "w2")

	results := p.OnLeave("w1")
	require.Len(t, results, 1)
	require.Equal(t, "k1", results[0].Key)
	require.Equal(t, []string{"w2"}, results[0].Remaining)
}

func TestOnLeaveDropsKeyWithNoRemainingHolders(t *testing.T) {
	p := New()
	p.OnJoin("w1")
	p.RecordLocation("k1", "w1")

	results := p.OnLeave("w1")
	require.Empty(t, results)
	require.Empty(t, p.Locations("k1"))
}

func TestRecordAndForgetLocation(t *testing.T) {
	p := New()
	p.RecordLocation("k1", "w1")
	require.Equal(t, []string{"w1"}, p.Locations("k1"))

	p.ForgetLocation("k1", "w1")
	require.Empty(t, p.Locations("k1"))
}
