package engine

import (
	"fmt"

	"github.com/hybridsix/chronocore-rs-sub001/internal/diagnostics"
	"github.com/hybridsix/chronocore-rs-sub001/internal/errs"
	"github.com/hybridsix/chronocore-rs-sub001/internal/filter"
	"github.com/hybridsix/chronocore-rs-sub001/internal/model"
)

// IngestResult is the decoder ingestion contract's return value (spec §6).
type IngestResult struct {
	Accepted  bool
	EntrantID int64
	LapAdded  bool
	LapTimeS  float64
	Reason    string
}

// IngestPass runs the filter pipeline then applies the lap/pit crediting
// algorithm of spec §4.2, exactly as written there (steps 1-11). It never
// blocks on I/O: journal emission and diagnostics publish happen after the
// lock is released.
func (e *Engine) IngestPass(pass model.Pass) (IngestResult, error) {
	if pass.Tag == "" {
		return IngestResult{}, errs.NewInvalidPayload("tag is required")
	}
	if !pass.Source.Valid() {
		return IngestResult{}, errs.NewInvalidPayload("unknown pass source")
	}

	decision, reason := e.filter.Filter(pass.Tag, func(tag string) bool {
		e.mu.Lock()
		defer e.mu.Unlock()
		return e.roster.ByTag(tag) != nil
	})
	if decision == filter.Drop {
		e.publishDiag(diagnostics.Event{Tag: pass.Tag, Source: string(pass.Source), Accepted: false, Reason: string(reason)})
		return IngestResult{Accepted: false, Reason: string(reason)}, nil
	}

	e.mu.Lock()
	if e.race == nil {
		e.mu.Unlock()
		return IngestResult{}, errs.NewNoSession("no race loaded")
	}

	entrant := e.roster.ByTag(pass.Tag)
	var upsertEv *model.JournalEvent
	if entrant == nil {
		if !e.filterCfg.AutoProvisional {
			e.mu.Unlock()
			e.publishDiag(diagnostics.Event{Tag: pass.Tag, Source: string(pass.Source), Accepted: false, Reason: string(model.ReasonUnknownDisallow)})
			return IngestResult{Accepted: false, Reason: string(model.ReasonUnknownDisallow)}, nil
		}
		entrant, upsertEv = e.provisionEntrant(pass.Tag)
	}

	var result IngestResult
	var journalEv, flagEv *model.JournalEvent

	switch pass.Source {
	case model.SourceTrack:
		result, journalEv, flagEv = e.creditTrackPass(entrant)
	case model.SourcePitIn, model.SourcePitOut:
		result = e.creditPitPass(entrant, pass.Source)
	}
	result.EntrantID = entrant.EntrantID
	nowMs := e.currentClockMs(e.race)

	e.mu.Unlock()

	if upsertEv != nil {
		e.emitEvent(*upsertEv)
	}
	if flagEv != nil {
		e.emitEvent(*flagEv)
	}
	if journalEv != nil {
		e.emitEvent(*journalEv)
	}
	e.publishDiag(diagnostics.Event{
		Tag: pass.Tag, Source: string(pass.Source), Accepted: result.Accepted,
		Reason: result.Reason, EntrantID: result.EntrantID, ClockMs: nowMs,
	})

	e.checkAutoFlag()

	return result, nil
}

// provisionEntrant creates an auto-provisional entrant for an unrecognized
// tag, per spec §4.2 step 1. Caller holds e.mu; the returned event must be
// emitted only after the lock is released.
func (e *Engine) provisionEntrant(tag string) (*model.Entrant, *model.JournalEvent) {
	id := e.roster.NextID()
	t := tag
	ent := &model.Entrant{
		EntrantID:   id,
		Number:      fmt.Sprintf("%d", id),
		Name:        fmt.Sprintf("Unknown %s", tag),
		Tag:         &t,
		Enabled:     true,
		Status:      model.StatusActive,
		Provisional: true,
	}
	e.roster.Put(ent)
	ev := model.JournalEvent{
		RaceID: e.race.RaceID, TsUtcMs: e.clk.WallUtcMs(), ClockMs: e.currentClockMs(e.race),
		Type: model.EventEntrantUpsert, Payload: mustJSON(entrantUpsertPayload{Entrant: *ent}),
	}
	return ent, &ev
}

// creditTrackPass implements spec §4.2 steps 2-11 for source=track. Caller
// holds e.mu. The second return value is the pass event; the third is a
// flag-change event when this exact crossing is the one that throws
// WHITE/CHECKERED (spec §8 scenario 5: the leader's limit-reaching crossing
// both throws CHECKERED and earns finish_order=1 in the same call).
func (e *Engine) creditTrackPass(entrant *model.Entrant) (IngestResult, *model.JournalEvent, *model.JournalEvent) {
	race := e.race

	if !entrant.Enabled {
		return IngestResult{Accepted: true, Reason: string(model.ReasonDisabled)}, nil, nil
	}
	// "Racing" phases are green, white and checkered (checkered only stays
	// live for soft-end scoring, gated just below); pre/countdown are not.
	if race.Phase != model.PhaseGreen && race.Phase != model.PhaseWhite && race.Phase != model.PhaseCheckered {
		return IngestResult{Accepted: true, Reason: string(model.ReasonNotRacing)}, nil, nil
	}
	if race.Phase == model.PhaseCheckered {
		if !race.Limit.SoftEnd {
			return IngestResult{Accepted: true, Reason: string(model.ReasonCheckeredFreeze)}, nil, nil
		}
		if entrant.SoftEndCompleted {
			return IngestResult{Accepted: true, Reason: string(model.ReasonSoftEndCompleted)}, nil, nil
		}
	}

	nowMs := e.currentClockMs(race)

	if entrant.LastHitMs == nil {
		v := nowMs
		entrant.LastHitMs = &v
		return IngestResult{Accepted: true, Reason: string(model.ReasonArmed)}, nil, nil
	}

	deltaS := float64(nowMs-*entrant.LastHitMs) / 1000.0

	if deltaS < race.MinLapDupS {
		return IngestResult{Accepted: true, Reason: string(model.ReasonDup)}, nil, nil
	}
	if deltaS < race.MinLapS {
		return IngestResult{Accepted: true, Reason: string(model.ReasonMinLap)}, nil, nil
	}

	entrant.CreditLap(deltaS)
	entrant.LastHitMs = &nowMs

	flagEv := e.applyLapLimitAutoFlag(race)

	var finishOrder *int
	if race.Phase == model.PhaseCheckered && entrant.FinishOrder == nil {
		race.FinishOrderCounter++
		fo := race.FinishOrderCounter
		entrant.FinishOrder = &fo
		finishOrder = &fo
		if race.Limit.SoftEnd {
			entrant.SoftEndCompleted = true
		}
	}

	ev := model.JournalEvent{
		RaceID: race.RaceID, TsUtcMs: e.clk.WallUtcMs(), ClockMs: nowMs,
		Type: model.EventPass,
		Payload: mustJSON(passPayload{
			EntrantID: entrant.EntrantID, DeltaS: deltaS, ClockMs: nowMs, FinishOrder: finishOrder,
		}),
	}

	return IngestResult{Accepted: true, LapAdded: true, LapTimeS: deltaS}, &ev, flagEv
}

// applyLapLimitAutoFlag throws WHITE/CHECKERED synchronously within the lap
// credit that crosses the threshold, for lap-limited races only (spec §4.2:
// "auto-throw when leader reaches lap = limit.value-1" / "auto-throw when
// leader next crosses at laps = limit.value"). Time-limited races still rely
// on checkAutoFlag's ticker, since no pass event marks the clock threshold.
// Caller holds e.mu and has just credited entrant's lap.
func (e *Engine) applyLapLimitAutoFlag(race *model.Race) *model.JournalEvent {
	if race.Limit.Type != model.LimitTypeLaps {
		return nil
	}
	leaderLaps := e.leaderLaps()
	switch race.Phase {
	case model.PhaseGreen:
		if leaderLaps == int(race.Limit.Value)-1 {
			race.Phase = model.PhaseWhite
			race.Flag = model.FlagWhite
			ev := e.flagChangeEvent(race)
			return &ev
		}
	case model.PhaseWhite:
		if leaderLaps >= int(race.Limit.Value) {
			e.enterCheckered(race)
			ev := e.flagChangeEvent(race)
			return &ev
		}
	}
	return nil
}

// creditPitPass implements spec §4.2's pit-crediting rules. Mismatched
// events are logged as anomalies but never fail. Caller holds e.mu.
func (e *Engine) creditPitPass(entrant *model.Entrant, source model.Source) IngestResult {
	nowMs := e.currentClockMs(e.race)
	switch source {
	case model.SourcePitIn:
		if entrant.PitOpenMs != nil {
			e.log.Warn().Int64("entrant_id", entrant.EntrantID).Msg("pit_in while already open")
		}
		v := nowMs
		entrant.PitOpenMs = &v
	case model.SourcePitOut:
		if entrant.PitOpenMs == nil {
			e.log.Warn().Int64("entrant_id", entrant.EntrantID).Msg("pit_out without a matching pit_in")
			return IngestResult{Accepted: true}
		}
		dur := float64(nowMs-*entrant.PitOpenMs) / 1000.0
		entrant.LastPitS = &dur
		entrant.PitCount++
		entrant.PitOpenMs = nil
	}
	return IngestResult{Accepted: true}
}
