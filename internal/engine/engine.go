// Package engine implements the Race Engine Core of spec §4.2: the single
// serialized state machine that owns the current race, its entrants, the
// flag/phase transitions, lap crediting, and snapshot assembly. It is the
// ingestion API surface (spec §2 component 8) external decoder and control
// layers call directly.
package engine

import (
	"context"
	"sync"

	"github.com/rs/zerolog"

	"github.com/hybridsix/chronocore-rs-sub001/internal/clock"
	"github.com/hybridsix/chronocore-rs-sub001/internal/diagnostics"
	"github.com/hybridsix/chronocore-rs-sub001/internal/filter"
	"github.com/hybridsix/chronocore-rs-sub001/internal/journal"
	"github.com/hybridsix/chronocore-rs-sub001/internal/logging"
	"github.com/hybridsix/chronocore-rs-sub001/internal/model"
	"github.com/hybridsix/chronocore-rs-sub001/internal/roster"
)

// Option configures an Engine at construction, following the functional-
// options pattern used by the pack's saturdaysspinout RaceProcessor.
type Option func(*Engine)

// WithClock overrides the engine's time source (tests use a fake clock).
func WithClock(c clock.Clock) Option {
	return func(e *Engine) { e.clk = c }
}

// WithFilterConfig overrides the filter pipeline's tunables.
func WithFilterConfig(cfg filter.Config) Option {
	return func(e *Engine) { e.filterCfg = cfg }
}

// WithDiagnostics overrides the diagnostics ring (tests can use a smaller
// one, or nil to disable publishing).
func WithDiagnostics(d *diagnostics.Ring) Option {
	return func(e *Engine) { e.diag = d }
}

// WithCheckpointInterval overrides how often Run's background checkpoint
// loop writes a snapshot.
func WithCheckpointInterval(cfg journal.Config) Option {
	return func(e *Engine) { e.journalCfg = cfg }
}

// Engine is the single authoritative race-timing state machine. All
// exported methods serialize through mu; none perform blocking I/O while
// holding it (spec §5).
type Engine struct {
	mu sync.Mutex

	clk       clock.Clock
	log       zerolog.Logger
	journal   *journal.Store
	diag      *diagnostics.Ring
	roster    *roster.Manager
	filter    *filter.Pipeline
	filterCfg filter.Config

	journalCfg journal.Config

	race *model.Race

	countdownTimer clock.Timer
}

// New constructs an Engine backed by store for journal/checkpoint
// durability. store may be nil for engines that never need persistence
// (pure in-memory tests of flag/lap logic).
func New(store *journal.Store, opts ...Option) *Engine {
	e := &Engine{
		clk:        clock.NewSystem(),
		log:        logging.New("engine"),
		journal:    store,
		roster:     roster.New(),
		filterCfg:  filter.DefaultConfig(),
		journalCfg: journal.DefaultConfig(),
		diag:       diagnostics.New(1000),
	}
	for _, opt := range opts {
		opt(e)
	}
	// Route the filter's clock through e.clk so fake-clock tests get
	// deterministic rate-limit/duplicate-window behavior too, not just
	// deterministic race-clock math.
	e.filter = filter.New(e.filterCfg, e.clk.Now)
	return e
}

// Diagnostics exposes the diagnostics ring for subscriber wiring.
func (e *Engine) Diagnostics() *diagnostics.Ring { return e.diag }

// emitEvent hands an event to the journal's bounded queue without blocking
// under e.mu (spec §5: journal writes are handed off, never awaited, unless
// the caller explicitly calls Flush). Caller must NOT hold e.mu when this
// blocks on a full queue — so callers release the lock first.
func (e *Engine) emitEvent(ev model.JournalEvent) {
	if e.journal == nil {
		return
	}
	e.journal.Append(ev)
}

// Flush blocks until every event emitted so far is durable.
func (e *Engine) Flush(ctx context.Context) error {
	if e.journal == nil {
		return nil
	}
	return e.journal.Flush(ctx)
}

func (e *Engine) publishDiag(ev diagnostics.Event) {
	if e.diag == nil {
		return
	}
	e.diag.Publish(ev)
}
