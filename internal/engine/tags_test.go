package engine

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/hybridsix/chronocore-rs-sub001/internal/errs"
)

func TestAssignTagConflictsWithAnotherEnabledEntrant(t *testing.T) {
	e, _ := newTestEngine(t)
	loadTwoCarRace(t, e)

	require.NoError(t, e.AssignTag(1, strPtr("TAG0001")))
	err := e.AssignTag(2, strPtr("TAG0001"))
	require.Error(t, err)
	kind, ok := errs.KindOf(err)
	require.True(t, ok)
	require.Equal(t, errs.Conflict, kind)
}

func TestAssignTagSameValueIsNoOp(t *testing.T) {
	e, _ := newTestEngine(t)
	loadTwoCarRace(t, e)

	require.NoError(t, e.AssignTag(1, strPtr("TAG0001")))
	require.NoError(t, e.AssignTag(1, strPtr("TAG0001"))) // idempotent, no conflict against itself
}

func TestAssignTagDisablingThenReassigningSameTagSucceeds(t *testing.T) {
	e, _ := newTestEngine(t)
	loadTwoCarRace(t, e)

	require.NoError(t, e.AssignTag(1, strPtr("TAG0001")))
	require.NoError(t, e.SetEntrantEnabled(1, false))
	// Tag freed once its holder is disabled; entrant 2 may now take it.
	require.NoError(t, e.AssignTag(2, strPtr("TAG0001")))
}

func TestSetEntrantEnabledConflictsOnReenable(t *testing.T) {
	e, _ := newTestEngine(t)
	loadTwoCarRace(t, e)

	require.NoError(t, e.AssignTag(1, strPtr("TAG0001")))
	require.NoError(t, e.SetEntrantEnabled(1, false))
	require.NoError(t, e.AssignTag(2, strPtr("TAG0001")))

	err := e.SetEntrantEnabled(1, true)
	require.Error(t, err)
	kind, ok := errs.KindOf(err)
	require.True(t, ok)
	require.Equal(t, errs.Conflict, kind)
}

func TestAssignTagUnknownEntrantIsNotFound(t *testing.T) {
	e, _ := newTestEngine(t)
	loadTwoCarRace(t, e)

	err := e.AssignTag(999, strPtr("TAG0001"))
	require.Error(t, err)
	kind, ok := errs.KindOf(err)
	require.True(t, ok)
	require.Equal(t, errs.NotFound, kind)
}

func TestAssignTagWhitespaceOnlyClearsTag(t *testing.T) {
	e, _ := newTestEngine(t)
	loadTwoCarRace(t, e)

	require.NoError(t, e.AssignTag(1, strPtr("TAG0001")))
	require.NoError(t, e.AssignTag(1, strPtr("   ")))

	snap, err := e.Snapshot()
	require.NoError(t, err)
	row := findRow(t, snap, 1)
	require.Nil(t, row.Tag)
}
