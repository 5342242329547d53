package grid

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/hybridsix/chronocore-rs-sub001/internal/journal"
	"github.com/hybridsix/chronocore-rs-sub001/internal/model"
)

type fakeLapSource map[int64][]int64

func (f fakeLapSource) HeatLaps(ctx context.Context, sourceHeatID int64) (map[int64][]int64, error) {
	return map[int64][]int64(f), nil
}

func boolPtr(b bool) *bool { return &b }

func newTestStore(t *testing.T) *journal.Store {
	t.Helper()
	store, err := journal.Open(":memory:", journal.DefaultConfig())
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func TestFreezeGridOrdersByBestLapTime(t *testing.T) {
	store := newTestStore(t)
	laps := fakeLapSource{
		1: {12000, 11500},
		2: {11000, 11200},
		3: {13000},
	}

	entries, err := FreezeGrid(context.Background(), laps, store, 1, 1, model.GridPolicyDemote, nil)
	require.NoError(t, err)
	require.Len(t, entries, 3)
	require.Equal(t, int64(2), entries[0].EntrantID) // best 11000
	require.Equal(t, int64(1), entries[1].EntrantID) // best 11500
	require.Equal(t, int64(3), entries[2].EntrantID) // best 13000
	for i, e := range entries {
		require.Equal(t, i+1, e.Order)
	}
}

func TestFreezeGridDemotePolicyKeepsLapButFlagsDemoted(t *testing.T) {
	store := newTestStore(t)
	laps := fakeLapSource{
		1: {10000},
		2: {9000},
	}
	verdicts := map[int64]*bool{2: boolPtr(false)} // entrant 2 failed brake test

	entries, err := FreezeGrid(context.Background(), laps, store, 1, 1, model.GridPolicyDemote, verdicts)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	// Non-demoted entrant 1 sorts ahead of demoted entrant 2 regardless of lap time.
	require.Equal(t, int64(1), entries[0].EntrantID)
	require.Equal(t, int64(2), entries[1].EntrantID)
	require.True(t, entries[1].Demoted)
	require.NotNil(t, entries[1].BestMs)
}

func TestFreezeGridExcludePolicyDropsToBottomWithNoLap(t *testing.T) {
	store := newTestStore(t)
	laps := fakeLapSource{
		1: {10000},
		2: {9000},
	}
	verdicts := map[int64]*bool{2: boolPtr(false)}

	entries, err := FreezeGrid(context.Background(), laps, store, 1, 1, model.GridPolicyExclude, verdicts)
	require.NoError(t, err)
	require.Equal(t, int64(1), entries[0].EntrantID)
	require.Equal(t, int64(2), entries[1].EntrantID)
	require.True(t, entries[1].Excluded)
	require.Nil(t, entries[1].BestMs)
}

func TestFreezeGridUseNextValidFallsBackToSecondLap(t *testing.T) {
	store := newTestStore(t)
	laps := fakeLapSource{
		1: {10000},
		2: {9000, 9500}, // failed brake test but has a second lap to fall back on
	}
	verdicts := map[int64]*bool{2: boolPtr(false)}

	entries, err := FreezeGrid(context.Background(), laps, store, 1, 1, model.GridPolicyUseNextValid, verdicts)
	require.NoError(t, err)
	var two model.GridEntry
	for _, e := range entries {
		if e.EntrantID == 2 {
			two = e
		}
	}
	require.NotNil(t, two.BestMs)
	require.Equal(t, int64(9500), *two.BestMs)
}

func TestLoadGridRoundTripsFrozenGrid(t *testing.T) {
	store := newTestStore(t)
	laps := fakeLapSource{1: {10000}, 2: {9000}}

	_, err := FreezeGrid(context.Background(), laps, store, 42, 1, model.GridPolicyDemote, nil)
	require.NoError(t, err)

	rows, err := LoadGrid(context.Background(), store, 42)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	require.Equal(t, 1, rows[2].Order)
}

func TestApplyGridOnLoadSkipsQualifyingRaceType(t *testing.T) {
	entrants := []*model.Entrant{{EntrantID: 1}}
	gridRows := map[int64]model.GridEntry{1: {EntrantID: 1, Order: 1}}

	ApplyGridOnLoad(entrants, gridRows, model.RaceTypeQualifying)
	require.Nil(t, entrants[0].GridIndex)

	ApplyGridOnLoad(entrants, gridRows, model.RaceTypeSprint)
	require.NotNil(t, entrants[0].GridIndex)
	require.Equal(t, 1, *entrants[0].GridIndex)
}

func TestApplyGridOnLoadSkipsExcludedEntries(t *testing.T) {
	entrants := []*model.Entrant{{EntrantID: 1}}
	gridRows := map[int64]model.GridEntry{1: {EntrantID: 1, Order: 1, Excluded: true}}

	ApplyGridOnLoad(entrants, gridRows, model.RaceTypeSprint)
	require.Nil(t, entrants[0].GridIndex)
}

// TestJournalLapSourceReadsCreditedLapsFromRaceEvents covers the real wiring
// behind FreezeGrid: a qualifying heat's credited laps live in race_events
// as pass events (exactly what creditTrackPass journals), not a separate
// table, so HeatLaps must read them back from there.
func TestJournalLapSourceReadsCreditedLapsFromRaceEvents(t *testing.T) {
	store := newTestStore(t)
	const heatID = int64(7)

	writePass := func(entrantID int64, deltaS float64, clockMs int64) {
		payload, err := json.Marshal(passEventPayload{EntrantID: entrantID, DeltaS: deltaS})
		require.NoError(t, err)
		store.Append(model.JournalEvent{RaceID: heatID, ClockMs: clockMs, Type: model.EventPass, Payload: payload})
	}
	writePass(1, 12.0, 12000)
	writePass(1, 11.5, 23500)
	writePass(2, 11.0, 11000)
	require.NoError(t, store.Flush(context.Background()))

	src := JournalLapSource{Store: store}
	laps, err := src.HeatLaps(context.Background(), heatID)
	require.NoError(t, err)
	require.Equal(t, []int64{12000, 11500}, laps[1])
	require.Equal(t, []int64{11000}, laps[2])
}
