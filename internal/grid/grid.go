// Package grid implements the qualifying grid freeze/apply algorithm of
// spec §4.6: converting a qualifying heat's credited laps plus brake-test
// verdicts into a persistent starting order, and attaching that order to a
// subsequent race's entrants on load.
package grid

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"

	"github.com/hybridsix/chronocore-rs-sub001/internal/journal"
	"github.com/hybridsix/chronocore-rs-sub001/internal/model"
)

// LapSource reads every credited lap time (in milliseconds) for each entrant
// in a qualifying heat. Kept as an interface so grid stays testable without
// a live store.
type LapSource interface {
	HeatLaps(ctx context.Context, sourceHeatID int64) (map[int64][]int64, error)
}

// JournalLapSource adapts a *journal.Store to LapSource. A qualifying heat
// is loaded and scored as its own race (sourceHeatID is that race's
// RaceID), so its credited laps already live in race_events as EventPass
// entries — the same durable record Recover replays to rebuild standings.
// Reading them back here rather than a separate lap_events table means
// FreezeGrid needs nothing engine.IngestPass doesn't already write.
type JournalLapSource struct{ Store *journal.Store }

// passEventPayload decodes the entrant_id and delta_s fields of engine's
// passPayload JSON without importing the engine package.
type passEventPayload struct {
	EntrantID int64   `json:"entrant_id"`
	DeltaS    float64 `json:"delta_s"`
}

func (j JournalLapSource) HeatLaps(ctx context.Context, sourceHeatID int64) (map[int64][]int64, error) {
	rows, err := j.Store.DB().QueryContext(ctx,
		`SELECT payload FROM race_events WHERE race_id = ? AND type = 'pass' ORDER BY clock_ms, ts_utc_ms`, sourceHeatID)
	if err != nil {
		return nil, fmt.Errorf("reading heat laps: %w", err)
	}
	defer rows.Close()

	out := make(map[int64][]int64)
	for rows.Next() {
		var payload []byte
		if err := rows.Scan(&payload); err != nil {
			return nil, fmt.Errorf("scanning heat lap row: %w", err)
		}
		var p passEventPayload
		if err := json.Unmarshal(payload, &p); err != nil {
			return nil, fmt.Errorf("decoding pass payload: %w", err)
		}
		out[p.EntrantID] = append(out[p.EntrantID], int64(p.DeltaS*1000))
	}
	return out, rows.Err()
}

type candidate struct {
	entrantID int64
	bestMs    *int64
	brakeOK   *bool
	demoted   bool
	excluded  bool
}

// FreezeGrid computes the frozen starting order for sourceHeatID under
// policy, exactly per spec §4.6's five-step algorithm, and persists it via
// store. brakeVerdicts maps entrant id to its brake-test boolean, absent
// entries meaning "no verdict recorded" (treated as brake_ok=true per spec).
func FreezeGrid(ctx context.Context, laps LapSource, store *journal.Store, eventID, sourceHeatID int64, policy model.GridPolicy, brakeVerdicts map[int64]*bool) ([]model.GridEntry, error) {
	if !policy.Valid() {
		return nil, fmt.Errorf("invalid grid policy %q", policy)
	}

	byEntrant, err := laps.HeatLaps(ctx, sourceHeatID)
	if err != nil {
		return nil, err
	}

	candidates := make([]candidate, 0, len(byEntrant))
	for entrantID, lapTimes := range byEntrant {
		sorted := append([]int64(nil), lapTimes...)
		sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })

		brakeOK := brakeVerdicts[entrantID]
		c := candidate{entrantID: entrantID, brakeOK: brakeOK}

		brakeFailed := brakeOK != nil && !*brakeOK
		switch {
		case !brakeFailed:
			if len(sorted) > 0 {
				v := sorted[0]
				c.bestMs = &v
			}
		case policy == model.GridPolicyUseNextValid:
			if len(sorted) > 1 {
				v := sorted[1]
				c.bestMs = &v
			}
			// else bestMs stays absent: "only one lap" case in spec §4.6.
		case policy == model.GridPolicyDemote:
			if len(sorted) > 0 {
				v := sorted[0]
				c.bestMs = &v
			}
			c.demoted = true
		case policy == model.GridPolicyExclude:
			c.excluded = true
		}

		candidates = append(candidates, c)
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		a, b := candidates[i], candidates[j]
		if a.excluded != b.excluded {
			return !a.excluded // non-excluded first
		}
		if a.demoted != b.demoted {
			return !a.demoted // non-demoted first
		}
		return bestMsOrMax(a.bestMs) < bestMsOrMax(b.bestMs)
	})

	entries := make([]model.GridEntry, len(candidates))
	for i, c := range candidates {
		entries[i] = model.GridEntry{
			EntrantID: c.entrantID,
			Order:     i + 1,
			BestMs:    c.bestMs,
			BrakeOK:   c.brakeOK,
			Demoted:   c.demoted,
			Excluded:  c.excluded,
		}
	}

	if err := persist(ctx, store, eventID, entries); err != nil {
		return nil, err
	}
	return entries, nil
}

func bestMsOrMax(v *int64) int64 {
	if v == nil {
		return int64(^uint64(0) >> 1)
	}
	return *v
}

func persist(ctx context.Context, store *journal.Store, eventID int64, entries []model.GridEntry) error {
	tx, err := store.DB().BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning grid transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM qualifying_grids WHERE event_id = ?`, eventID); err != nil {
		return fmt.Errorf("clearing previous grid: %w", err)
	}
	const q = `INSERT INTO qualifying_grids (event_id, entrant_id, grid_order, best_ms, brake_ok, demoted, excluded)
	           VALUES (?, ?, ?, ?, ?, ?, ?)`
	for _, e := range entries {
		if _, err := tx.ExecContext(ctx, q, eventID, e.EntrantID, e.Order, e.BestMs, e.BrakeOK, e.Demoted, e.Excluded); err != nil {
			return fmt.Errorf("inserting grid entry: %w", err)
		}
	}
	return tx.Commit()
}

// LoadGrid reads the frozen grid for eventID, if any, keyed by entrant id.
func LoadGrid(ctx context.Context, store *journal.Store, eventID int64) (map[int64]model.GridEntry, error) {
	var rows []model.GridEntry
	err := store.DB().SelectContext(ctx, &rows,
		`SELECT entrant_id, grid_order, best_ms, brake_ok, demoted, excluded FROM qualifying_grids WHERE event_id = ? ORDER BY grid_order`, eventID)
	if err != nil {
		return nil, fmt.Errorf("loading frozen grid: %w", err)
	}
	out := make(map[int64]model.GridEntry, len(rows))
	for _, r := range rows {
		out[r.EntrantID] = r
	}
	return out, nil
}

// ApplyGridOnLoad attaches grid_index and brake_valid to matching entrants
// from a frozen grid, exactly per spec §4.6 ("when the event has a frozen
// grid and the race is not itself a qualifying race"). Entrants not present
// in the grid (e.g. late additions) are left untouched.
func ApplyGridOnLoad(entrants []*model.Entrant, grid map[int64]model.GridEntry, raceType model.RaceType) {
	if raceType == model.RaceTypeQualifying || len(grid) == 0 {
		return
	}
	for _, e := range entrants {
		g, ok := grid[e.EntrantID]
		if !ok || g.Excluded {
			continue
		}
		order := g.Order
		e.GridIndex = &order
		if g.BrakeOK != nil {
			v := *g.BrakeOK
			e.BrakeValid = &v
		}
	}
}
