package engine

import (
	"github.com/hybridsix/chronocore-rs-sub001/internal/errs"
	"github.com/hybridsix/chronocore-rs-sub001/internal/model"
)

// AssignTag implements spec §4.3's AssignTag control-surface operation.
func (e *Engine) AssignTag(entrantID int64, tag *string) error {
	e.mu.Lock()
	if e.race == nil {
		e.mu.Unlock()
		return errs.NewNoSession("no race loaded")
	}

	mutated, err := e.roster.AssignTag(entrantID, tag)
	if err != nil {
		e.mu.Unlock()
		return err
	}
	if !mutated {
		e.mu.Unlock()
		return nil
	}

	ent := e.roster.Get(entrantID)
	ev := model.JournalEvent{
		RaceID: e.race.RaceID, TsUtcMs: e.clk.WallUtcMs(), ClockMs: e.currentClockMs(e.race),
		Type:    model.EventAssignTag,
		Payload: mustJSON(assignTagPayload{EntrantID: entrantID, Tag: ent.Tag}),
	}
	e.mu.Unlock()

	e.emitEvent(ev)
	return nil
}

// SetEntrantEnabled implements spec §4.3's SetEntrantEnabled operation.
func (e *Engine) SetEntrantEnabled(entrantID int64, enabled bool) error {
	e.mu.Lock()
	if e.race == nil {
		e.mu.Unlock()
		return errs.NewNoSession("no race loaded")
	}

	mutated, err := e.roster.SetEnabled(entrantID, enabled)
	if err != nil {
		e.mu.Unlock()
		return err
	}
	if !mutated {
		e.mu.Unlock()
		return nil
	}

	ev := model.JournalEvent{
		RaceID: e.race.RaceID, TsUtcMs: e.clk.WallUtcMs(), ClockMs: e.currentClockMs(e.race),
		Type:    model.EventEntrantEnable,
		Payload: mustJSON(entrantEnablePayload{EntrantID: entrantID, Enabled: enabled}),
	}
	e.mu.Unlock()

	e.emitEvent(ev)
	return nil
}
