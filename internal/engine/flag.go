package engine

import (
	"time"

	"github.com/hybridsix/chronocore-rs-sub001/internal/errs"
	"github.com/hybridsix/chronocore-rs-sub001/internal/model"
)

// SetFlagResult is returned by SetFlag on success.
type SetFlagResult struct {
	Phase      model.Phase
	Flag       model.Flag
	GreenAtUtc *int64 // set when entering countdown, per spec §6 control surface
}

// SetFlag validates flag against Table 1 and applies the matching side
// effects, exactly per spec §4.2. countdownS is only meaningful when flag is
// FlagGreen and the current phase is pre.
func (e *Engine) SetFlag(flag model.Flag, countdownS float64) (SetFlagResult, error) {
	if !flag.Valid() {
		return SetFlagResult{}, errs.NewInvalidPayload("unknown flag token")
	}

	e.mu.Lock()
	if e.race == nil {
		e.mu.Unlock()
		return SetFlagResult{}, errs.NewNoSession("no race loaded")
	}
	race := e.race

	// Idempotent no-op: calling with the current flag succeeds and never
	// emits a flag_change event (spec §4.2, §8 idempotence law). The one
	// exception is PRE during countdown: the flag there is already PRE, but
	// Table 1 makes PRE abort the countdown back to phase=pre.
	if flag == race.Flag && race.Phase != model.PhaseCountdown {
		result := SetFlagResult{Phase: race.Phase, Flag: race.Flag}
		e.mu.Unlock()
		return result, nil
	}

	var greenAtUtc *int64

	// Special case ahead of Table 1: GREEN from pre with a positive
	// countdown_s enters phase=countdown, flag=PRE instead of going
	// straight to green (spec §4.2 "Countdown").
	if race.Phase == model.PhasePre && flag == model.FlagGreen && countdownS > 0 {
		d := time.Duration(countdownS * float64(time.Second))
		race.ArmCountdown(e.clk.Now().Add(d))
		race.Phase = model.PhaseCountdown
		race.Flag = model.FlagPre
		utc := e.clk.WallUtcMs() + int64(countdownS*1000)
		greenAtUtc = &utc
		e.scheduleCountdown(d)
	} else {
		newPhase, newFlag, ignored, err := transition(race.Phase, flag)
		if err != nil {
			phase := race.Phase
			e.mu.Unlock()
			return SetFlagResult{}, errs.NewIllegalTransition(err.Error(), string(phase))
		}
		if ignored {
			// "other tokens acknowledged with 200 but ignored" (countdown phase).
			result := SetFlagResult{Phase: race.Phase, Flag: race.Flag}
			e.mu.Unlock()
			return result, nil
		}

		switch {
		case newFlag == model.FlagGreen:
			e.enterGreen(race)
		case newFlag == model.FlagCheckered:
			e.enterCheckered(race)
		default:
			race.Phase = newPhase
			race.Flag = newFlag
		}
	}

	ev := e.flagChangeEvent(race)

	result := SetFlagResult{Phase: race.Phase, Flag: race.Flag, GreenAtUtc: greenAtUtc}
	e.mu.Unlock()

	e.emitEvent(ev)
	return result, nil
}

// transition implements Table 1 from spec §4.2. ignored=true means the spec
// calls for a 200-but-no-op response (countdown phase, non-PRE tokens).
func transition(phase model.Phase, flag model.Flag) (newPhase model.Phase, newFlag model.Flag, ignored bool, err error) {
	switch phase {
	case model.PhasePre:
		switch flag {
		case model.FlagPre:
			return model.PhasePre, model.FlagPre, false, nil
		case model.FlagGreen:
			return model.PhaseGreen, model.FlagGreen, false, nil // countdown_s handled by caller
		}
	case model.PhaseCountdown:
		switch flag {
		case model.FlagPre:
			return model.PhasePre, model.FlagPre, false, nil
		default:
			return phase, flag, true, nil
		}
	case model.PhaseGreen:
		switch flag {
		case model.FlagGreen:
			return model.PhaseGreen, model.FlagGreen, false, nil
		case model.FlagYellow, model.FlagRed, model.FlagBlue:
			return model.PhaseGreen, flag, false, nil
		case model.FlagWhite:
			return model.PhaseWhite, model.FlagWhite, false, nil
		case model.FlagCheckered:
			return model.PhaseCheckered, model.FlagCheckered, false, nil
		}
	case model.PhaseWhite:
		switch flag {
		case model.FlagGreen:
			return model.PhaseGreen, model.FlagGreen, false, nil
		case model.FlagYellow, model.FlagRed, model.FlagBlue:
			return model.PhaseWhite, flag, false, nil
		case model.FlagWhite:
			return model.PhaseWhite, model.FlagWhite, false, nil
		case model.FlagCheckered:
			return model.PhaseCheckered, model.FlagCheckered, false, nil
		}
	case model.PhaseCheckered:
		if flag == model.FlagCheckered {
			return model.PhaseCheckered, model.FlagCheckered, false, nil
		}
	}
	return phase, flag, false, errIllegalTransition
}

var errIllegalTransition = errIllegalTransitionErr{}

type errIllegalTransitionErr struct{}

func (errIllegalTransitionErr) Error() string { return "flag token not valid for current phase" }

// enterGreen applies the side effects of entering GREEN from pre, countdown,
// or white (spec §4.2 transition side-effects).
func (e *Engine) enterGreen(race *model.Race) {
	wasRunning := race.Running
	race.Phase = model.PhaseGreen
	race.Flag = model.FlagGreen
	race.ClearCountdown()
	if e.countdownTimer != nil {
		e.countdownTimer.Stop()
		e.countdownTimer = nil
	}

	if !wasRunning {
		race.StartClock(e.clk.Now())
		for _, ent := range e.roster.All() {
			ent.LastHitMs = nil
		}
	}
}

// enterCheckered applies spec §4.2's CHECKERED side effects.
func (e *Engine) enterCheckered(race *model.Race) {
	race.Phase = model.PhaseCheckered
	race.Flag = model.FlagCheckered
	clockMs := e.currentClockMs(race)
	race.CheckeredStartMs = &clockMs
	if !race.Limit.SoftEnd {
		race.FreezeClock(clockMs)
	}
}

// currentClockMs derives the race clock in ms from the monotonic clock while
// running, or returns the frozen value otherwise.
func (e *Engine) currentClockMs(race *model.Race) int64 {
	return race.ClockMsAt(e.clk.Now())
}

func (e *Engine) flagChangeEvent(race *model.Race) model.JournalEvent {
	p := flagChangePayload{
		Phase:            race.Phase,
		Flag:             race.Flag,
		ClockMs:          e.currentClockMs(race),
		Running:          race.Running,
		CheckeredStartMs: race.CheckeredStartMs,
	}
	return model.JournalEvent{
		RaceID:  race.RaceID,
		TsUtcMs: e.clk.WallUtcMs(),
		ClockMs: e.currentClockMs(race),
		Type:    model.EventFlagChange,
		Payload: mustJSON(p),
	}
}

// scheduleCountdown arms (or re-arms) the single countdown timer; on fire it
// acquires the lock and performs the GREEN transition, per spec §5.
func (e *Engine) scheduleCountdown(d time.Duration) {
	if e.countdownTimer != nil {
		e.countdownTimer.Stop()
	}
	e.countdownTimer = e.clk.NewTimer(d)
	ch := e.countdownTimer.C()
	go func() {
		_, ok := <-ch
		if !ok {
			return
		}
		e.onCountdownExpired()
	}()
}

func (e *Engine) onCountdownExpired() {
	e.mu.Lock()
	race := e.race
	if race == nil || race.Phase != model.PhaseCountdown {
		e.mu.Unlock()
		return
	}
	e.enterGreen(race)
	ev := e.flagChangeEvent(race)
	e.mu.Unlock()
	e.emitEvent(ev)
}
