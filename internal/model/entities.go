package model

import "time"

// Entrant is a single scoring slot in the current race: an identity plus the
// mutable lap/pit/grid bookkeeping the engine updates as passes are credited.
//
// Pointer fields represent "absent" explicitly so absence is never confused
// with a zero value (an absent best_s is not the same as a 0.0s lap).
type Entrant struct {
	EntrantID int64         `json:"entrant_id"`
	Number    string        `json:"number"`
	Name      string        `json:"name"`
	Tag       *string       `json:"tag,omitempty"`
	Enabled   bool          `json:"enabled"`
	Status    EntrantStatus `json:"status"`

	Laps    int      `json:"laps"`
	LastS   *float64 `json:"last_s,omitempty"`
	BestS   *float64 `json:"best_s,omitempty"`
	Pace5S  *float64 `json:"pace_5_s,omitempty"`
	lap5Buf []float64

	// LastHitMs is the race-clock ms of the last accepted track crossing.
	// Absent means "unarmed" (see spec invariant on _last_hit_ms).
	LastHitMs *int64 `json:"last_hit_ms,omitempty"`

	PitCount   int      `json:"pit_count"`
	PitOpenMs  *int64   `json:"-"`
	LastPitS   *float64 `json:"last_pit_s,omitempty"`

	GridIndex  *int  `json:"grid_index,omitempty"`
	BrakeValid *bool `json:"brake_valid,omitempty"`

	FinishOrder      *int `json:"finish_order,omitempty"`
	SoftEndCompleted bool `json:"soft_end_completed"`

	Provisional bool `json:"-"`
}

// Clone returns a deep-enough copy of e suitable for returning from Snapshot
// without letting the caller mutate engine-owned state.
func (e *Entrant) Clone() *Entrant {
	c := *e
	if e.Tag != nil {
		t := *e.Tag
		c.Tag = &t
	}
	if e.LastS != nil {
		v := *e.LastS
		c.LastS = &v
	}
	if e.BestS != nil {
		v := *e.BestS
		c.BestS = &v
	}
	if e.Pace5S != nil {
		v := *e.Pace5S
		c.Pace5S = &v
	}
	if e.LastHitMs != nil {
		v := *e.LastHitMs
		c.LastHitMs = &v
	}
	if e.PitOpenMs != nil {
		v := *e.PitOpenMs
		c.PitOpenMs = &v
	}
	if e.LastPitS != nil {
		v := *e.LastPitS
		c.LastPitS = &v
	}
	if e.GridIndex != nil {
		v := *e.GridIndex
		c.GridIndex = &v
	}
	if e.BrakeValid != nil {
		v := *e.BrakeValid
		c.BrakeValid = &v
	}
	if e.FinishOrder != nil {
		v := *e.FinishOrder
		c.FinishOrder = &v
	}
	c.lap5Buf = append([]float64(nil), e.lap5Buf...)
	return &c
}

// CreditLap records a credited crossing of deltaS seconds, updating best_s,
// last_s and the rolling 5-lap pace average per spec step 9.
func (e *Entrant) CreditLap(deltaS float64) {
	e.Laps++
	e.LastS = &deltaS
	if e.BestS == nil || deltaS < *e.BestS {
		v := deltaS
		e.BestS = &v
	}
	e.lap5Buf = append(e.lap5Buf, deltaS)
	if len(e.lap5Buf) > 5 {
		e.lap5Buf = e.lap5Buf[len(e.lap5Buf)-5:]
	}
	sum := 0.0
	for _, v := range e.lap5Buf {
		sum += v
	}
	mean := sum / float64(len(e.lap5Buf))
	e.Pace5S = &mean
}

// Limit describes how a race's distance is bounded (time or lap count) and,
// optionally, its soft-end grace window.
type Limit struct {
	Type            LimitType `json:"type"`
	Value           float64   `json:"value"`
	SoftEnd         bool      `json:"soft_end"`
	SoftEndTimeoutS float64   `json:"soft_end_timeout_s"`
}

// Race is the single authoritative session the engine holds at a time.
type Race struct {
	RaceID   int64    `json:"race_id"`
	RaceType RaceType `json:"race_type"`

	Phase Phase `json:"phase"`
	Flag  Flag  `json:"flag"`

	ClockMs int64 `json:"clock_ms"`
	Running bool  `json:"running"`

	Limit       Limit   `json:"limit"`
	MinLapS     float64 `json:"min_lap_s"`
	MinLapDupS  float64 `json:"min_lap_dup_s"`

	CheckeredStartMs   *int64 `json:"checkered_start_ms,omitempty"`
	FinishOrderCounter int    `json:"finish_order_counter"`

	// countdownTarget is the monotonic instant the countdown scheduler fires
	// GREEN at; zero means "not in countdown". Using time.Time (not a raw
	// nanosecond int) keeps this immune to wall-clock adjustments, since
	// Time.Sub uses the runtime's monotonic reading when present. Never
	// survives a recover (spec: restart mid-countdown cancels it).
	countdownTarget time.Time

	// monotonic anchors (not exported to the wire): the race-clock origin,
	// used to derive ClockMs from the monotonic clock while running. Same
	// time.Time-vs-int64 reasoning as countdownTarget.
	clockStartedAt time.Time
	clockFrozenMs  int64
}

// InCountdown reports whether the race currently has an armed countdown
// target.
func (r *Race) InCountdown() bool { return !r.countdownTarget.IsZero() }

// ArmCountdown records the monotonic instant the countdown scheduler is due
// to fire GREEN.
func (r *Race) ArmCountdown(target time.Time) { r.countdownTarget = target }

// ClearCountdown disarms the countdown target.
func (r *Race) ClearCountdown() { r.countdownTarget = time.Time{} }

// CountdownTarget returns the armed countdown instant, or the zero time if
// none is armed.
func (r *Race) CountdownTarget() time.Time { return r.countdownTarget }

// StartClock anchors the race clock's monotonic origin at now, marking the
// race as running from clock_ms=0 at that instant.
func (r *Race) StartClock(now time.Time) {
	r.clockStartedAt = now
	r.Running = true
}

// FreezeClock stops the race clock, pinning ClockMsAt's result to ms until the clock
// is started again.
func (r *Race) FreezeClock(ms int64) {
	r.Running = false
	r.clockFrozenMs = ms
}

// ClockMsAt derives the race clock in milliseconds at now: elapsed time
// since StartClock while running, or the frozen value otherwise.
func (r *Race) ClockMsAt(now time.Time) int64 {
	if !r.Running {
		return r.clockFrozenMs
	}
	return now.Sub(r.clockStartedAt).Milliseconds()
}

// Pass is a single transient transponder detection reported by a decoder.
type Pass struct {
	Tag      string  `json:"tag"`
	TsNs     *int64  `json:"ts_ns,omitempty"`
	Source   Source  `json:"source"`
	DeviceID *string `json:"device_id,omitempty"`
}

// JournalEvent is a single append-only record of the journal.
type JournalEvent struct {
	ID        string           `json:"id" db:"id"`
	RaceID    int64            `json:"race_id" db:"race_id"`
	TsUtcMs   int64            `json:"ts_utc_ms" db:"ts_utc_ms"`
	ClockMs   int64            `json:"clock_ms" db:"clock_ms"`
	Type      JournalEventType `json:"type" db:"type"`
	Payload   []byte           `json:"payload" db:"payload"`
}

// Checkpoint is a full engine-state snapshot taken at a point in time.
type Checkpoint struct {
	ID            string `json:"id" db:"id"`
	RaceID        int64  `json:"race_id" db:"race_id"`
	TsUtcMs       int64  `json:"ts_utc_ms" db:"ts_utc_ms"`
	ClockMs       int64  `json:"clock_ms" db:"clock_ms"`
	SnapshotBlob  []byte `json:"snapshot_blob" db:"snapshot_blob"`
}

// GridEntry is one row of a frozen qualifying grid.
type GridEntry struct {
	EntrantID int64    `json:"entrant_id" db:"entrant_id"`
	Order     int      `json:"order" db:"grid_order"`
	BestMs    *int64   `json:"best_ms,omitempty" db:"best_ms"`
	BrakeOK   *bool    `json:"brake_ok,omitempty" db:"brake_ok"`
	Demoted   bool     `json:"demoted" db:"demoted"`
	Excluded  bool     `json:"excluded" db:"excluded"`
}
