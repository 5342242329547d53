package engine

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/hybridsix/chronocore-rs-sub001/internal/clock"
	"github.com/hybridsix/chronocore-rs-sub001/internal/model"
)

func newTestEngine(t *testing.T) (*Engine, *clock.Fake) {
	t.Helper()
	fc := clock.NewFake(time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC))
	e := New(nil, WithClock(fc))
	return e, fc
}

func loadTwoCarRace(t *testing.T, e *Engine) {
	t.Helper()
	err := e.LoadRace(context.Background(), LoadRacePayload{
		RaceID:   1,
		RaceType: model.RaceTypeSprint,
		Entrants: []EntrantInput{
			{EntrantID: 1, Number: "11", Name: "Car 11", Enabled: true, Status: model.StatusActive},
			{EntrantID: 2, Number: "22", Name: "Car 22", Enabled: true, Status: model.StatusActive},
		},
		Limit:      model.Limit{Type: model.LimitTypeLaps, Value: 10},
		MinLapS:    5,
		MinLapDupS: 1,
	})
	require.NoError(t, err)
}

func TestLoadRaceRejectsDuplicateEntrantIDs(t *testing.T) {
	e, _ := newTestEngine(t)
	err := e.LoadRace(context.Background(), LoadRacePayload{
		RaceID:   1,
		RaceType: model.RaceTypeSprint,
		Entrants: []EntrantInput{
			{EntrantID: 1, Number: "11", Name: "Car 11"},
			{EntrantID: 1, Number: "12", Name: "Car 12"},
		},
		Limit: model.Limit{Type: model.LimitTypeLaps, Value: 10},
	})
	require.Error(t, err)
}

func TestLoadRaceRejectsUnknownRaceType(t *testing.T) {
	e, _ := newTestEngine(t)
	err := e.LoadRace(context.Background(), LoadRacePayload{
		RaceID:   1,
		RaceType: model.RaceType("demolition_derby"),
		Limit:    model.Limit{Type: model.LimitTypeLaps, Value: 10},
	})
	require.Error(t, err)
}

func TestSetFlagRequiresLoadedRace(t *testing.T) {
	e, _ := newTestEngine(t)
	_, err := e.SetFlag(model.FlagGreen, 0)
	require.Error(t, err)
}

func TestSetFlagSameFlagIsIdempotentNoOp(t *testing.T) {
	e, _ := newTestEngine(t)
	loadTwoCarRace(t, e)

	r1, err := e.SetFlag(model.FlagGreen, 0)
	require.NoError(t, err)
	require.Equal(t, model.PhaseGreen, r1.Phase)

	r2, err := e.SetFlag(model.FlagGreen, 0)
	require.NoError(t, err)
	require.Equal(t, r1.Phase, r2.Phase)
	require.Equal(t, r1.Flag, r2.Flag)
}

func TestSetFlagIllegalTransitionFromCheckered(t *testing.T) {
	e, _ := newTestEngine(t)
	loadTwoCarRace(t, e)

	_, err := e.SetFlag(model.FlagGreen, 0)
	require.NoError(t, err)
	_, err = e.SetFlag(model.FlagCheckered, 0)
	require.NoError(t, err)

	_, err = e.SetFlag(model.FlagGreen, 0)
	require.Error(t, err)
}

func TestSetFlagCountdownArmsAndFiresGreen(t *testing.T) {
	e, fc := newTestEngine(t)
	loadTwoCarRace(t, e)

	res, err := e.SetFlag(model.FlagGreen, 3)
	require.NoError(t, err)
	require.Equal(t, model.PhaseCountdown, res.Phase)
	require.Equal(t, model.FlagPre, res.Flag)
	require.NotNil(t, res.GreenAtUtc)

	snap, err := e.Snapshot()
	require.NoError(t, err)
	require.NotNil(t, snap.CountdownRemainingMs)
	require.InDelta(t, 3000, *snap.CountdownRemainingMs, 1)

	fc.Advance(3 * time.Second)
	require.Eventually(t, func() bool {
		s, err := e.Snapshot()
		require.NoError(t, err)
		return s.Phase == model.PhaseGreen
	}, time.Second, time.Millisecond)
}

func TestSetFlagAbortedCountdownReturnsToPre(t *testing.T) {
	e, _ := newTestEngine(t)
	loadTwoCarRace(t, e)

	_, err := e.SetFlag(model.FlagGreen, 5)
	require.NoError(t, err)

	res, err := e.SetFlag(model.FlagPre, 0)
	require.NoError(t, err)
	require.Equal(t, model.PhasePre, res.Phase)
}
