// Package clock provides the two time sources the engine needs: a monotonic
// source for the race clock (never affected by wall-clock adjustments) and a
// wall-clock source for journal timestamps. Both are behind an interface so
// the countdown scheduler and engine tests can substitute a fake, following
// the injectable `now func() time.Time` seam used throughout the pack (see
// the saturdaysspinout ingestion RaceProcessor.now field).
package clock

import "time"

// Clock is the engine's time source boundary. Now returns a time.Time
// carrying Go's runtime monotonic reading; callers derive elapsed durations
// with Sub rather than comparing wall-clock values directly, so the race
// clock is immune to NTP/system-clock adjustments mid-session.
type Clock interface {
	Now() time.Time
	// WallUtcMs returns the current wall-clock time in UTC milliseconds,
	// used only for journal/checkpoint timestamps, never for race timing.
	WallUtcMs() int64
	// NewTimer mirrors time.NewTimer so callers needing Reset/Stop
	// semantics (the countdown scheduler) can get a real *time.Timer-like
	// handle from a fake clock in tests.
	NewTimer(d time.Duration) Timer
}

// Timer mirrors the subset of *time.Timer the engine uses.
type Timer interface {
	C() <-chan time.Time
	Reset(d time.Duration) bool
	Stop() bool
}

// System is the production Clock, backed by runtime monotonic reads.
type System struct{}

func NewSystem() System { return System{} }

func (System) Now() time.Time { return time.Now() }

func (System) WallUtcMs() int64 { return time.Now().UTC().UnixMilli() }

func (System) NewTimer(d time.Duration) Timer { return systemTimer{time.NewTimer(d)} }

type systemTimer struct{ t *time.Timer }

func (s systemTimer) C() <-chan time.Time        { return s.t.C }
func (s systemTimer) Reset(d time.Duration) bool { return s.t.Reset(d) }
func (s systemTimer) Stop() bool                 { return s.t.Stop() }
