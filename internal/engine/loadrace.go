package engine

import (
	"context"

	"github.com/hybridsix/chronocore-rs-sub001/internal/errs"
	"github.com/hybridsix/chronocore-rs-sub001/internal/grid"
	"github.com/hybridsix/chronocore-rs-sub001/internal/model"
)

// EntrantInput is one roster row supplied to LoadRace.
type EntrantInput struct {
	EntrantID int64
	Number    string
	Name      string
	Tag       *string
	Enabled   bool
	Status    model.EntrantStatus
}

// LoadRacePayload is the control-surface LoadRace request of spec §4.2.
// EventID, when non-zero, is used to look up a previously frozen qualifying
// grid to apply on load (spec §4.6's ApplyGridOnLoad).
type LoadRacePayload struct {
	RaceID     int64
	RaceType   model.RaceType
	Entrants   []EntrantInput
	Limit      model.Limit
	MinLapS    float64
	MinLapDupS float64
	EventID    int64
}

// LoadRace replaces the engine's current session wholesale, per spec §4.2.
// ctx is only used for the optional frozen-grid lookup; LoadRace itself
// never blocks on the journal.
func (e *Engine) LoadRace(ctx context.Context, payload LoadRacePayload) error {
	if !payload.RaceType.Valid() {
		return errs.NewInvalidPayload("unknown race_type")
	}
	if !payload.Limit.Type.Valid() {
		return errs.NewInvalidPayload("unknown limit.type")
	}
	if payload.MinLapDupS == 0 {
		payload.MinLapDupS = 1.0 // spec default; a caller-omitted value must not disable dup-window protection
	}

	seen := make(map[int64]bool, len(payload.Entrants))
	entrants := make([]*model.Entrant, 0, len(payload.Entrants))
	for _, in := range payload.Entrants {
		if in.EntrantID == 0 || seen[in.EntrantID] {
			return errs.NewInvalidPayload("entrants must have stable, unique ids")
		}
		seen[in.EntrantID] = true
		status := in.Status
		if status == "" {
			status = model.StatusActive
		}
		entrants = append(entrants, &model.Entrant{
			EntrantID: in.EntrantID,
			Number:    in.Number,
			Name:      in.Name,
			Tag:       in.Tag,
			Enabled:   in.Enabled,
			Status:    status,
		})
	}

	var gridRows map[int64]model.GridEntry
	if e.journal != nil && payload.EventID != 0 {
		rows, err := grid.LoadGrid(ctx, e.journal, payload.EventID)
		if err != nil {
			e.log.Warn().Err(err).Int64("event_id", payload.EventID).Msg("loading frozen grid failed, starting without it")
		} else {
			gridRows = rows
		}
	}
	if gridRows != nil {
		grid.ApplyGridOnLoad(entrants, gridRows, payload.RaceType)
	}

	e.mu.Lock()
	e.roster.Reset(entrants)
	e.race = &model.Race{
		RaceID:     payload.RaceID,
		RaceType:   payload.RaceType,
		Phase:      model.PhasePre,
		Flag:       model.FlagPre,
		Limit:      payload.Limit,
		MinLapS:    payload.MinLapS,
		MinLapDupS: payload.MinLapDupS,
	}
	if e.countdownTimer != nil {
		e.countdownTimer.Stop()
		e.countdownTimer = nil
	}

	events := make([]model.JournalEvent, 0, len(entrants))
	for _, ent := range entrants {
		events = append(events, model.JournalEvent{
			RaceID: payload.RaceID, TsUtcMs: e.clk.WallUtcMs(), ClockMs: 0,
			Type:    model.EventEntrantUpsert,
			Payload: mustJSON(entrantUpsertPayload{Entrant: *ent}),
		})
	}
	e.mu.Unlock()

	for _, ev := range events {
		e.emitEvent(ev)
	}
	return nil
}

// FreezeGrid delegates to the grid package's freeze algorithm, per spec
// §4.6. It reads credited laps back out of the qualifying heat's own
// race_events (the same durable pass history Recover replays) and does not
// touch the currently loaded race (a qualifying heat's laps are scored as
// their own race and frozen afterward).
func (e *Engine) FreezeGrid(ctx context.Context, eventID, sourceHeatID int64, policy model.GridPolicy, brakeVerdicts map[int64]*bool) ([]model.GridEntry, error) {
	if e.journal == nil {
		return nil, errs.NewInternal("grid freeze requires a journal store", nil)
	}
	return grid.FreezeGrid(ctx, grid.JournalLapSource{Store: e.journal}, e.journal, eventID, sourceHeatID, policy, brakeVerdicts)
}
