package journal

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/hybridsix/chronocore-rs-sub001/internal/model"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := Open(":memory:", DefaultConfig())
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func checkpointCount(t *testing.T, store *Store, raceID int64) int {
	t.Helper()
	var n int
	require.NoError(t, store.DB().Get(&n, `SELECT COUNT(*) FROM race_checkpoints WHERE race_id = ?`, raceID))
	return n
}

// TestWriteCheckpointTrimsToRetentionCount covers spec.md:68's "checkpoints
// are periodically trimmed to the most recent N per race" — previously
// writeCheckpoint only ever inserted, so this table grew without bound for
// the lifetime of a long-running race.
func TestWriteCheckpointTrimsToRetentionCount(t *testing.T) {
	store := newTestStore(t)
	store.cfg.CheckpointRetain = 2

	for i, clockMs := range []int64{1000, 2000, 3000, 4000} {
		store.WriteCheckpoint(model.Checkpoint{RaceID: 9, ClockMs: clockMs, SnapshotBlob: []byte("{}")})
		require.NoError(t, store.Flush(context.Background()))
		require.LessOrEqual(t, checkpointCount(t, store, 9), 2, "after write %d", i)
	}

	require.Equal(t, 2, checkpointCount(t, store, 9))

	var kept []int64
	require.NoError(t, store.DB().Select(&kept,
		`SELECT clock_ms FROM race_checkpoints WHERE race_id = ? ORDER BY clock_ms DESC`, 9))
	require.Equal(t, []int64{4000, 3000}, kept)
}

// TestWriteCheckpointTrimKeepsOtherRacesIndependent ensures the trim is
// scoped per race_id, not global.
func TestWriteCheckpointTrimKeepsOtherRacesIndependent(t *testing.T) {
	store := newTestStore(t)
	store.cfg.CheckpointRetain = 1

	store.WriteCheckpoint(model.Checkpoint{RaceID: 1, ClockMs: 1000, SnapshotBlob: []byte("{}")})
	store.WriteCheckpoint(model.Checkpoint{RaceID: 2, ClockMs: 1000, SnapshotBlob: []byte("{}")})
	store.WriteCheckpoint(model.Checkpoint{RaceID: 1, ClockMs: 2000, SnapshotBlob: []byte("{}")})
	require.NoError(t, store.Flush(context.Background()))

	require.Equal(t, 1, checkpointCount(t, store, 1))
	require.Equal(t, 1, checkpointCount(t, store, 2))
}
