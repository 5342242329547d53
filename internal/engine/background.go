package engine

import (
	"context"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/hybridsix/chronocore-rs-sub001/internal/model"
)

// autoFlagTickInterval is the low-frequency tick spec §5 requires (≥1Hz) to
// catch time-limit expiry between passes.
const autoFlagTickInterval = 500 * time.Millisecond

// Run starts the engine's background tasks (checkpoint writer, auto-flag
// ticker) as one supervised group, per spec §5 — "one goroutine/task per
// background concern is simpler than a central scheduler; each acquires the
// lock briefly." It blocks until ctx is cancelled or a task errors.
func (e *Engine) Run(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		ticker := time.NewTicker(autoFlagTickInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return nil
			case <-ticker.C:
				e.checkAutoFlag()
			}
		}
	})

	if e.journal != nil {
		g.Go(func() error {
			ticker := time.NewTicker(e.journalCfg.CheckpointS)
			defer ticker.Stop()
			for {
				select {
				case <-ctx.Done():
					return nil
				case <-ticker.C:
					e.writeCheckpoint()
				}
			}
		})
	}

	return g.Wait()
}

// writeCheckpoint takes a full state snapshot under the lock and writes it
// outside the lock, per spec §5's checkpoint-writer description. The
// checkpoint blob captures enough to rebuild engine state (race + entrants),
// unlike Snapshot which is a read-only standings projection.
func (e *Engine) writeCheckpoint() {
	e.mu.Lock()
	if e.race == nil {
		e.mu.Unlock()
		return
	}
	raceCopy := *e.race
	raceCopy.ClockMs = e.currentClockMs(e.race)

	entrants := e.roster.All()
	cloned := make([]*model.Entrant, 0, len(entrants))
	for _, ent := range entrants {
		cloned = append(cloned, ent.Clone())
	}

	raceID := e.race.RaceID
	clockMs := raceCopy.ClockMs
	e.mu.Unlock()

	blob := mustJSON(recoveredState{Race: raceCopy, Entrants: cloned})
	e.journal.WriteCheckpoint(model.Checkpoint{
		RaceID:       raceID,
		TsUtcMs:      e.clk.WallUtcMs(),
		ClockMs:      clockMs,
		SnapshotBlob: blob,
	})
}

// checkAutoFlag implements spec §4.2's automatic WHITE/CHECKERED
// transitions and the soft-end freeze, invoked opportunistically after every
// IngestPass and via the low-frequency ticker.
func (e *Engine) checkAutoFlag() {
	e.mu.Lock()
	race := e.race
	if race == nil {
		e.mu.Unlock()
		return
	}

	var emit *model.JournalEvent

	switch race.Phase {
	case model.PhaseGreen:
		nowMs := e.currentClockMs(race)
		leaderLaps := e.leaderLaps()

		switch race.Limit.Type {
		case model.LimitTypeTime:
			totalMs := int64(race.Limit.Value * 1000)
			if race.Limit.Value >= 60 && nowMs >= totalMs-60000 {
				race.Phase = model.PhaseWhite
				race.Flag = model.FlagWhite
				ev := e.flagChangeEvent(race)
				emit = &ev
			}
		case model.LimitTypeLaps:
			if leaderLaps == int(race.Limit.Value)-1 {
				race.Phase = model.PhaseWhite
				race.Flag = model.FlagWhite
				ev := e.flagChangeEvent(race)
				emit = &ev
			}
		}

	case model.PhaseWhite:
		nowMs := e.currentClockMs(race)
		leaderLaps := e.leaderLaps()

		switch race.Limit.Type {
		case model.LimitTypeTime:
			totalMs := int64(race.Limit.Value * 1000)
			if nowMs >= totalMs {
				e.enterCheckered(race)
				ev := e.flagChangeEvent(race)
				emit = &ev
			}
		case model.LimitTypeLaps:
			if leaderLaps >= int(race.Limit.Value) {
				e.enterCheckered(race)
				ev := e.flagChangeEvent(race)
				emit = &ev
			}
		}

	case model.PhaseCheckered:
		if race.Limit.SoftEnd && race.Running && race.CheckeredStartMs != nil {
			nowMs := e.currentClockMs(race)
			timeoutMs := int64(race.Limit.SoftEndTimeoutS * 1000)
			if nowMs-*race.CheckeredStartMs >= timeoutMs {
				race.FreezeClock(nowMs)
			}
		}
	}

	e.mu.Unlock()

	if emit != nil {
		e.emitEvent(*emit)
	}
}

// leaderLaps returns the maximum lap count across all entrants. Caller
// holds e.mu.
func (e *Engine) leaderLaps() int {
	max := 0
	for _, ent := range e.roster.All() {
		if ent.Laps > max {
			max = ent.Laps
		}
	}
	return max
}
