package registry

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestRegisterReportsNewWorker(t *testing.T) {
	r := New(10 * time.Second)
	now := time.Now()
	require.True(t, r.Register("w1", now))
	require.False(t, r.Register("w1", now.Add(time.Second)))
}

func TestActiveExcludesExpiredWorkers(t *testing.T) {
	r := New(10 * time.Second)
	base := time.Now()
	r.Register("w1", base)

	require.Contains(t, r.Active(base.Add(5*time.Second)), "w1")
	require.NotContains(t, r.Active(base.Add(11*time.Second)), "w1")
}

func TestLastSeenIsNonDecreasingUntilRemoval(t *testing.T) {
	r := New(10 * time.Second)
	base := time.Now()
	r.Register("w1", base)
	r.Register("w1", base.Add(time.Second))

	seen, ok := r.LastSeen("w1")
	require.True(t, ok)
	require.True(t, seen.Equal(base.Add(time.Second)))

	r.Remove("w1")
	_, ok = r.LastSeen("w1")
	require.False(t, ok)
}

func TestKnownIncludesExpiredWorkers(t *testing.T) {
	r := New(time.Millisecond)
	base := time.Now()
	r.Register("w1", base)
	require.Contains(t, r.Known(), "w1")
	require.Empty(t, r.Active(base.Add(time.Hour)))
}
