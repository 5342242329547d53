package engine

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/hybridsix/chronocore-rs-sub001/internal/clock"
	"github.com/hybridsix/chronocore-rs-sub001/internal/journal"
	"github.com/hybridsix/chronocore-rs-sub001/internal/model"
)

func TestRecoverRebuildsFromCheckpointAndReplaysLaterEvents(t *testing.T) {
	store, err := journal.Open(":memory:", journal.DefaultConfig())
	require.NoError(t, err)
	defer store.Close()

	fc := clock.NewFake(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))
	e1 := New(store, WithClock(fc))
	require.NoError(t, e1.LoadRace(context.Background(), LoadRacePayload{
		RaceID:   7,
		RaceType: model.RaceTypeSprint,
		Entrants: []EntrantInput{
			{EntrantID: 1, Number: "11", Name: "Car 11", Enabled: true, Status: model.StatusActive},
		},
		Limit: model.Limit{Type: model.LimitTypeLaps, Value: 20}, MinLapS: 5, MinLapDupS: 1,
	}))
	require.NoError(t, e1.AssignTag(1, strPtr("TAG0001")))
	_, err = e1.SetFlag(model.FlagGreen, 0)
	require.NoError(t, err)

	mustIngest(t, e1, "TAG0001", model.SourceTrack)
	fc.Advance(6 * time.Second)
	mustIngest(t, e1, "TAG0001", model.SourceTrack) // 1 lap credited

	require.NoError(t, e1.Flush(context.Background()))
	e1.writeCheckpoint()
	require.NoError(t, e1.Flush(context.Background())) // ordering guarantee: checkpoint op precedes this flush's done signal

	// One more lap credited after the checkpoint, exercising event replay.
	fc.Advance(7 * time.Second)
	mustIngest(t, e1, "TAG0001", model.SourceTrack)
	require.NoError(t, e1.Flush(context.Background()))

	e2 := New(store, WithClock(clock.NewFake(time.Date(2026, 1, 1, 1, 0, 0, 0, time.UTC))))
	require.NoError(t, e2.Recover(context.Background(), 7))

	snap1, err := e1.Snapshot()
	require.NoError(t, err)
	snap2, err := e2.Snapshot()
	require.NoError(t, err)

	row1 := findRow(t, snap1, 1)
	row2 := findRow(t, snap2, 1)
	require.Equal(t, row1.Laps, row2.Laps)
	require.Equal(t, 2, row2.Laps)
	require.Equal(t, *row1.BestS, *row2.BestS)
	require.Equal(t, snap1.ClockMs, snap2.ClockMs)
	require.Equal(t, model.PhaseGreen, snap2.Phase)
	require.False(t, snap2.Running) // recovered races always land paused
}

func TestRecoverWithoutAnyCheckpointReplaysWholeJournal(t *testing.T) {
	store, err := journal.Open(":memory:", journal.DefaultConfig())
	require.NoError(t, err)
	defer store.Close()

	fc := clock.NewFake(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))
	e1 := New(store, WithClock(fc))
	require.NoError(t, e1.LoadRace(context.Background(), LoadRacePayload{
		RaceID:   9,
		RaceType: model.RaceTypeSprint,
		Entrants: []EntrantInput{
			{EntrantID: 1, Number: "11", Name: "Car 11", Enabled: true, Status: model.StatusActive},
		},
		Limit: model.Limit{Type: model.LimitTypeLaps, Value: 20}, MinLapS: 5, MinLapDupS: 1,
	}))
	require.NoError(t, e1.AssignTag(1, strPtr("TAG0001")))
	_, err = e1.SetFlag(model.FlagGreen, 0)
	require.NoError(t, err)
	mustIngest(t, e1, "TAG0001", model.SourceTrack)
	fc.Advance(6 * time.Second)
	mustIngest(t, e1, "TAG0001", model.SourceTrack)
	require.NoError(t, e1.Flush(context.Background()))

	// With no checkpoint yet, Recover's replay-only path requires a race
	// already loaded with matching metadata (it has no journal event to
	// source race_type/limit from) and rebuilds roster/flag/lap state on
	// top of it.
	e2 := New(store, WithClock(clock.NewFake(time.Date(2026, 1, 1, 1, 0, 0, 0, time.UTC))))
	require.NoError(t, e2.LoadRace(context.Background(), LoadRacePayload{
		RaceID:   9,
		RaceType: model.RaceTypeSprint,
		Limit:    model.Limit{Type: model.LimitTypeLaps, Value: 20}, MinLapS: 5, MinLapDupS: 1,
	}))
	require.NoError(t, e2.Recover(context.Background(), 9))

	snap2, err := e2.Snapshot()
	require.NoError(t, err)
	row2 := findRow(t, snap2, 1)
	require.Equal(t, 1, row2.Laps)
	require.Equal(t, model.PhaseGreen, snap2.Phase)
}
