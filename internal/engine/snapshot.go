package engine

import (
	"sort"

	"github.com/hybridsix/chronocore-rs-sub001/internal/errs"
	"github.com/hybridsix/chronocore-rs-sub001/internal/model"
)

// absentSortVal is the sentinel spec §4.2's standings sort key uses for an
// absent best_s/last_s/finish_order.
const absentSortVal = 9e9

// StandingsRow is one entrant's row in a Snapshot, exactly per spec §6's
// blob contract.
type StandingsRow struct {
	Position    int      `json:"position"`
	EntrantID   int64    `json:"entrant_id"`
	Number      string   `json:"number"`
	Name        string   `json:"name"`
	Tag         *string  `json:"tag,omitempty"`
	Laps        int      `json:"laps"`
	LastS       *float64 `json:"last_s,omitempty"`
	BestS       *float64 `json:"best_s,omitempty"`
	Pace5S      *float64 `json:"pace_5_s,omitempty"`
	GapS        float64  `json:"gap_s"`
	LapDeficit  int      `json:"lap_deficit"`
	PitCount    int      `json:"pit_count"`
	LastPitS    *float64 `json:"last_pit_s,omitempty"`
	Enabled     bool     `json:"enabled"`
	Status      model.EntrantStatus `json:"status"`
	GridIndex   *int     `json:"grid_index,omitempty"`
	BrakeValid  *bool    `json:"brake_valid,omitempty"`
	FinishOrder *int     `json:"finish_order,omitempty"`
}

// LimitView mirrors spec §6's limit sub-object, adding the derived
// remaining_ms a consumer needs to render a countdown clock.
type LimitView struct {
	Type          model.LimitType `json:"type"`
	Value         float64         `json:"value"`
	RemainingMs   *int64          `json:"remaining_ms,omitempty"`
	SoftEnd       bool            `json:"soft_end"`
	SoftEndTimeoutS float64       `json:"soft_end_timeout_s"`
}

// Snapshot is the full read-only race+standings blob of spec §6.
type Snapshot struct {
	RaceID   int64           `json:"race_id"`
	RaceType model.RaceType  `json:"race_type"`
	Phase    model.Phase     `json:"phase"`
	Flag     model.Flag      `json:"flag"`
	Running  bool            `json:"running"`

	ClockMs      int64 `json:"clock_ms"`
	LastUpdateUtc int64 `json:"last_update_utc"`

	Limit LimitView `json:"limit"`

	CountdownRemainingMs *int64 `json:"countdown_remaining_ms,omitempty"`
	GreenAtUtc           *int64 `json:"green_at_utc,omitempty"`

	Standings []StandingsRow `json:"standings"`

	Features struct {
		PitTiming bool `json:"pit_timing"`
	} `json:"features"`
}

// Snapshot returns a consistent, immutable copy of the current race state.
// It never mutates engine state (spec §4.2's "materialized read").
func (e *Engine) Snapshot() (Snapshot, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.race == nil {
		return Snapshot{}, errs.NewNoSession("no race loaded")
	}
	return e.snapshotLocked(), nil
}

// snapshotLocked builds the Snapshot. Caller holds e.mu.
func (e *Engine) snapshotLocked() Snapshot {
	race := e.race
	clockMs := e.currentClockMs(race)

	snap := Snapshot{
		RaceID:        race.RaceID,
		RaceType:      race.RaceType,
		Phase:         race.Phase,
		Flag:          race.Flag,
		Running:       race.Running,
		ClockMs:       clockMs,
		LastUpdateUtc: e.clk.WallUtcMs(),
		Limit: LimitView{
			Type:            race.Limit.Type,
			Value:           race.Limit.Value,
			SoftEnd:         race.Limit.SoftEnd,
			SoftEndTimeoutS: race.Limit.SoftEndTimeoutS,
		},
	}
	snap.Features.PitTiming = true

	if race.Limit.Type == model.LimitTypeTime {
		totalMs := int64(race.Limit.Value * 1000)
		remaining := totalMs - clockMs
		if remaining < 0 {
			remaining = 0
		}
		snap.Limit.RemainingMs = &remaining
	}

	if race.Phase == model.PhaseCountdown && race.InCountdown() {
		remaining := race.CountdownTarget().Sub(e.clk.Now())
		if remaining < 0 {
			remaining = 0
		}
		remainingMs := remaining.Milliseconds()
		snap.CountdownRemainingMs = &remainingMs
		utc := e.clk.WallUtcMs() + remainingMs
		snap.GreenAtUtc = &utc
	}

	snap.Standings = e.buildStandings(race)
	return snap
}

// buildStandings implements spec §4.2's sort key and gap/lap-deficit rules.
// Caller holds e.mu.
func (e *Engine) buildStandings(race *model.Race) []StandingsRow {
	entrants := e.roster.All()
	rows := make([]StandingsRow, 0, len(entrants))
	for _, ent := range entrants {
		rows = append(rows, StandingsRow{
			EntrantID:   ent.EntrantID,
			Number:      ent.Number,
			Name:        ent.Name,
			Tag:         ent.Tag,
			Laps:        ent.Laps,
			LastS:       ent.LastS,
			BestS:       ent.BestS,
			Pace5S:      ent.Pace5S,
			PitCount:    ent.PitCount,
			LastPitS:    ent.LastPitS,
			Enabled:     ent.Enabled,
			Status:      ent.Status,
			GridIndex:   ent.GridIndex,
			BrakeValid:  ent.BrakeValid,
			FinishOrder: ent.FinishOrder,
		})
	}

	sort.SliceStable(rows, func(i, j int) bool {
		a, b := rows[i], rows[j]
		if a.Laps != b.Laps {
			return a.Laps > b.Laps // -laps ascending == laps descending
		}
		if race.Limit.SoftEnd {
			af, bf := finishOrderSortVal(a.FinishOrder), finishOrderSortVal(b.FinishOrder)
			if af != bf {
				return af < bf
			}
		}
		ab, bb := sortVal(a.BestS), sortVal(b.BestS)
		if ab != bb {
			return ab < bb
		}
		al, bl := sortVal(a.LastS), sortVal(b.LastS)
		if al != bl {
			return al < bl
		}
		return a.EntrantID < b.EntrantID
	})

	leaderLaps := 0
	var leaderHitMs int64
	if len(rows) > 0 {
		leaderLaps = rows[0].Laps
		if leader := e.roster.Get(rows[0].EntrantID); leader != nil && leader.LastHitMs != nil {
			leaderHitMs = *leader.LastHitMs
		}
	}

	for i := range rows {
		rows[i].Position = i + 1
		if rows[i].Laps < leaderLaps {
			rows[i].LapDeficit = leaderLaps - rows[i].Laps
			rows[i].GapS = 0
			continue
		}
		ent := e.roster.Get(rows[i].EntrantID)
		if ent != nil && ent.LastHitMs != nil {
			rows[i].GapS = float64(*ent.LastHitMs-leaderHitMs) / 1000.0
		}
	}

	return rows
}

func sortVal(v *float64) float64 {
	if v == nil {
		return absentSortVal
	}
	return *v
}

func finishOrderSortVal(v *int) float64 {
	if v == nil {
		return absentSortVal
	}
	return float64(*v)
}
