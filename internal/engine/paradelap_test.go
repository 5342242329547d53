package engine

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/hybridsix/chronocore-rs-sub001/internal/clock"
	"github.com/hybridsix/chronocore-rs-sub001/internal/journal"
	"github.com/hybridsix/chronocore-rs-sub001/internal/model"
)

// TestGreenEntryPurgesStaleLastHitFromParadeCrossings covers spec §4.2's
// transition side-effect: "if not previously running, clear _last_hit_ms on
// all entrants (prevents phantom short first laps from parade crossings)."
// On a freshly loaded race every entrant already starts with _last_hit_ms
// absent, so the only way to observe this guard is a race recovered with a
// stale armed timestamp still attached - e.g. a decoder read that slipped
// through moments before a crash, while the race was still pre/countdown.
// The checkpoint is constructed directly against the journal store, the way
// a pre-crash engine would have written one, to exercise exactly the state
// Recover loads without going through a full engine lifecycle to get there.
func TestGreenEntryPurgesStaleLastHitFromParadeCrossings(t *testing.T) {
	store, err := journal.Open(":memory:", journal.DefaultConfig())
	require.NoError(t, err)
	defer store.Close()

	tag := "TAG0001"
	stale := int64(500)
	race := model.Race{
		RaceID: 5, RaceType: model.RaceTypeSprint,
		Phase: model.PhasePre, Flag: model.FlagPre,
		Limit: model.Limit{Type: model.LimitTypeLaps, Value: 10}, MinLapS: 5, MinLapDupS: 1,
	}
	entrant := &model.Entrant{
		EntrantID: 1, Number: "11", Name: "Car 11", Tag: &tag,
		Enabled: true, Status: model.StatusActive, LastHitMs: &stale,
	}
	blob, err := json.Marshal(struct {
		Race     model.Race       `json:"race"`
		Entrants []*model.Entrant `json:"entrants"`
	}{Race: race, Entrants: []*model.Entrant{entrant}})
	require.NoError(t, err)

	store.WriteCheckpoint(model.Checkpoint{RaceID: 5, SnapshotBlob: blob})
	require.NoError(t, store.Flush(context.Background())) // ordering: checkpoint op precedes this flush's done signal

	fc := clock.NewFake(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))
	e := New(store, WithClock(fc))
	require.NoError(t, e.Recover(context.Background(), 5))

	_, err = e.SetFlag(model.FlagGreen, 0)
	require.NoError(t, err)

	// Despite the stale pre-crash _last_hit_ms, the first post-green
	// crossing must arm rather than instantly credit a phantom lap.
	res, err := e.IngestPass(model.Pass{Tag: tag, Source: model.SourceTrack})
	require.NoError(t, err)
	require.False(t, res.LapAdded)
	require.Equal(t, string(model.ReasonArmed), res.Reason)

	snap, err := e.Snapshot()
	require.NoError(t, err)
	require.Equal(t, 0, findRow(t, snap, 1).Laps)
}
