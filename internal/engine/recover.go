package engine

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/hybridsix/chronocore-rs-sub001/internal/errs"
	"github.com/hybridsix/chronocore-rs-sub001/internal/model"
)

// recoveredState is the checkpoint snapshot_blob shape written by
// writeCheckpoint. It carries the full race+entrant state Recover needs to
// rebuild an engine in memory, independent of the Snapshot wire shape (which
// is a read-only projection and cannot be replayed back into state).
type recoveredState struct {
	Race     model.Race       `json:"race"`
	Entrants []*model.Entrant `json:"entrants"`
}

// Recover rebuilds engine state for raceID from the journal: the latest
// checkpoint (if any), then every event strictly after it, per spec §4.4.
// A process restart mid-countdown is not resumed — a race recovered in
// phase=countdown (from the checkpoint or a replayed flag change) lands in
// phase=pre per spec §4.2's "process restart mid-countdown cancels it".
func (e *Engine) Recover(ctx context.Context, raceID int64) error {
	if e.journal == nil {
		return errs.NewInternal("recover requires a journal store", nil)
	}
	material, err := e.journal.Recover(ctx, raceID)
	if err != nil {
		return fmt.Errorf("loading recovery material: %w", err)
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if material.Checkpoint != nil {
		var state recoveredState
		if err := json.Unmarshal(material.Checkpoint.SnapshotBlob, &state); err != nil {
			return fmt.Errorf("decoding checkpoint snapshot: %w", err)
		}
		race := state.Race
		e.race = &race
		e.roster.Reset(state.Entrants)
	} else if e.race == nil || e.race.RaceID != raceID {
		return errs.NewNotFound("no checkpoint or loaded race to recover", raceID)
	}

	for _, ev := range material.Events {
		if err := e.applyJournalEvent(ev); err != nil {
			return fmt.Errorf("replaying event %s: %w", ev.ID, err)
		}
		if ev.ClockMs > e.race.ClockMs {
			e.race.ClockMs = ev.ClockMs
		}
	}

	if e.race.Phase == model.PhaseCountdown {
		e.race.Phase = model.PhasePre
		e.race.Flag = model.FlagPre
		e.race.ClearCountdown()
	}

	// A recovered race always comes back paused, per spec §4.2's "process
	// restart mid-countdown cancels it" — generalized here to any in-flight
	// phase, since resuming the monotonic clock origin across a process
	// restart would be a guess. A fresh SetFlag resumes it. Pin the frozen
	// value to the latest clock_ms seen across the checkpoint and every
	// replayed event, not just the checkpoint's own snapshot instant.
	e.race.FreezeClock(e.race.ClockMs)
	return nil
}

// applyJournalEvent replays one durable event into in-memory state. Caller
// holds e.mu. Only the five closed JournalEventType kinds exist, so this
// switch is exhaustive.
func (e *Engine) applyJournalEvent(ev model.JournalEvent) error {
	switch ev.Type {
	case model.EventEntrantUpsert:
		var p entrantUpsertPayload
		if err := json.Unmarshal(ev.Payload, &p); err != nil {
			return err
		}
		ent := p.Entrant
		e.roster.Put(&ent)

	case model.EventAssignTag:
		var p assignTagPayload
		if err := json.Unmarshal(ev.Payload, &p); err != nil {
			return err
		}
		if ent := e.roster.Get(p.EntrantID); ent != nil {
			ent.Tag = p.Tag
			e.roster.RebuildIndex()
		}

	case model.EventEntrantEnable:
		var p entrantEnablePayload
		if err := json.Unmarshal(ev.Payload, &p); err != nil {
			return err
		}
		if ent := e.roster.Get(p.EntrantID); ent != nil {
			ent.Enabled = p.Enabled
			e.roster.RebuildIndex()
		}

	case model.EventFlagChange:
		var p flagChangePayload
		if err := json.Unmarshal(ev.Payload, &p); err != nil {
			return err
		}
		e.race.Phase = p.Phase
		e.race.Flag = p.Flag
		e.race.CheckeredStartMs = p.CheckeredStartMs
		e.race.ClockMs = p.ClockMs
		e.race.FreezeClock(p.ClockMs) // re-paused like the checkpoint path; a live SetFlag after recovery resumes it

	case model.EventPass:
		var p passPayload
		if err := json.Unmarshal(ev.Payload, &p); err != nil {
			return err
		}
		ent := e.roster.Get(p.EntrantID)
		if ent == nil {
			return nil
		}
		ent.CreditLap(p.DeltaS)
		hitMs := p.ClockMs
		ent.LastHitMs = &hitMs
		if p.FinishOrder != nil {
			fo := *p.FinishOrder
			ent.FinishOrder = &fo
			if fo > e.race.FinishOrderCounter {
				e.race.FinishOrderCounter = fo
			}
			if e.race.Limit.SoftEnd {
				ent.SoftEndCompleted = true
			}
		}
	}
	return nil
}
