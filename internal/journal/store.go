// Package journal implements the append-only event journal and periodic
// checkpoint store of spec §4.4, backed by an embedded modernc.org/sqlite
// database (grounded on the pure-Go sqlite driver used by the pack's
// dagu-org-dagu and banshee-data-velocity.report modules) reached through
// database/sql for writes and github.com/jmoiron/sqlx for read-side struct
// scanning. A single writer goroutine performs every journal append and
// checkpoint write. Reads (LatestCheckpoint, EventsAfter, Recover) run on
// the caller's goroutine, and DB hands the same handle to the grid package,
// which reads and writes through it directly; the writer goroutine does
// not own the database exclusively.
package journal

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/rs/zerolog"

	_ "modernc.org/sqlite"

	"github.com/hybridsix/chronocore-rs-sub001/internal/logging"
	"github.com/hybridsix/chronocore-rs-sub001/internal/model"
)

// Config holds the batching/checkpoint tunables from spec §4.4.
type Config struct {
	BatchMs      time.Duration
	BatchMax     int
	CheckpointS  time.Duration
	QueueSize    int
	MaxRetries   int

	// CheckpointRetain is N in spec §4's "checkpoints are periodically
	// trimmed to the most recent N per race." Older rows for that race_id
	// are deleted in the same transaction as each new checkpoint insert.
	CheckpointRetain int
}

// DefaultConfig returns spec §4.4's stated defaults.
func DefaultConfig() Config {
	return Config{
		BatchMs:          200 * time.Millisecond,
		BatchMax:         50,
		CheckpointS:      15 * time.Second,
		QueueSize:        1000,
		MaxRetries:       5,
		CheckpointRetain: 3,
	}
}

type opKind int

const (
	opAppend opKind = iota
	opFlush
	opCheckpoint
)

type op struct {
	kind      opKind
	event     model.JournalEvent
	checkpoint model.Checkpoint
	done      chan error
}

// Store is the journal/checkpoint database handle plus its dedicated writer
// goroutine. Construct with Open.
type Store struct {
	db  *sqlx.DB
	cfg Config
	log zerolog.Logger

	queue chan op
	stop  chan struct{}
	done  chan struct{}
}

// Open creates (if needed) and migrates the schema at dsn, then starts the
// writer goroutine. Schema migration failure is fatal per spec §7.
func Open(dsn string, cfg Config) (*Store, error) {
	sqlDB, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("opening sqlite database: %w", err)
	}
	sqlDB.SetMaxOpenConns(1) // modernc.org/sqlite: single-writer discipline

	if _, err := sqlDB.Exec(schema); err != nil {
		return nil, fmt.Errorf("migrating schema: %w", err)
	}

	s := &Store{
		db:    sqlx.NewDb(sqlDB, "sqlite"),
		cfg:   cfg,
		log:   logging.New("journal"),
		queue: make(chan op, cfg.QueueSize),
		stop:  make(chan struct{}),
		done:  make(chan struct{}),
	}
	go s.run()
	return s, nil
}

// Close stops the writer goroutine after draining any pending batch and
// closes the database handle.
func (s *Store) Close() error {
	close(s.stop)
	<-s.done
	return s.db.Close()
}

// Append enqueues event for the next batch flush. It blocks only if the
// queue is full, applying the backpressure to decoder workers that spec §5
// prefers over silent data loss.
func (s *Store) Append(event model.JournalEvent) {
	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	s.queue <- op{kind: opAppend, event: event}
}

// Flush blocks until every event enqueued before this call is durably
// written, satisfying the "caller that has awaited a flush" durability
// guarantee of spec §4.4.
func (s *Store) Flush(ctx context.Context) error {
	done := make(chan error, 1)
	select {
	case s.queue <- op{kind: opFlush, done: done}:
	case <-ctx.Done():
		return ctx.Err()
	}
	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// WriteCheckpoint enqueues a full snapshot write, invoked by the background
// checkpoint scheduler every CheckpointS (spec §4.4).
func (s *Store) WriteCheckpoint(cp model.Checkpoint) {
	if cp.ID == "" {
		cp.ID = uuid.NewString()
	}
	s.queue <- op{kind: opCheckpoint, checkpoint: cp}
}

// run is the single writer goroutine: it owns s.db exclusively and batches
// appended events on time-or-size, exactly per spec §4.4.
func (s *Store) run() {
	defer close(s.done)

	var batch []model.JournalEvent
	var waiters []chan error
	var timer *time.Timer
	var timerC <-chan time.Time

	flushBatch := func() {
		if len(batch) == 0 && len(waiters) == 0 {
			return
		}
		err := s.writeBatchWithRetry(batch)
		for _, w := range waiters {
			w <- err
		}
		batch = batch[:0]
		waiters = waiters[:0]
		if timer != nil {
			timer.Stop()
			timer = nil
			timerC = nil
		}
	}

	for {
		select {
		case o := <-s.queue:
			switch o.kind {
			case opAppend:
				batch = append(batch, o.event)
				if timer == nil {
					timer = time.NewTimer(s.cfg.BatchMs)
					timerC = timer.C
				}
				if len(batch) >= s.cfg.BatchMax {
					flushBatch()
				}
			case opFlush:
				waiters = append(waiters, o.done)
				flushBatch()
			case opCheckpoint:
				if err := s.writeCheckpointWithRetry(o.checkpoint); err != nil {
					s.log.Error().Err(err).Msg("checkpoint write failed, will retry on next tick")
				}
			}
		case <-timerC:
			flushBatch()
		case <-s.stop:
			flushBatch()
			return
		}
	}
}

// writeBatchWithRetry writes events in a single transaction, retrying
// transient I/O failures with exponential backoff up to MaxRetries before
// logging and giving up (spec §7: degraded durability, not a fatal error).
func (s *Store) writeBatchWithRetry(events []model.JournalEvent) error {
	if len(events) == 0 {
		return nil
	}
	var err error
	backoff := 10 * time.Millisecond
	for attempt := 0; attempt <= s.cfg.MaxRetries; attempt++ {
		if attempt > 0 {
			time.Sleep(backoff)
			backoff *= 2
		}
		err = s.writeBatch(events)
		if err == nil {
			return nil
		}
		s.log.Warn().Err(err).Int("attempt", attempt).Msg("journal batch write failed")
	}
	s.log.Error().Err(err).Int("count", len(events)).Msg("journal batch write exhausted retries, events dropped")
	return err
}

func (s *Store) writeBatch(events []model.JournalEvent) error {
	tx, err := s.db.BeginTx(context.Background(), nil)
	if err != nil {
		return fmt.Errorf("beginning journal transaction: %w", err)
	}
	defer tx.Rollback()

	const q = `INSERT INTO race_events (id, race_id, ts_utc_ms, clock_ms, type, payload) VALUES (?, ?, ?, ?, ?, ?)`
	for _, ev := range events {
		if _, err := tx.Exec(q, ev.ID, ev.RaceID, ev.TsUtcMs, ev.ClockMs, string(ev.Type), ev.Payload); err != nil {
			return fmt.Errorf("inserting journal event: %w", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing journal transaction: %w", err)
	}
	return nil
}

func (s *Store) writeCheckpointWithRetry(cp model.Checkpoint) error {
	var err error
	backoff := 10 * time.Millisecond
	for attempt := 0; attempt <= s.cfg.MaxRetries; attempt++ {
		if attempt > 0 {
			time.Sleep(backoff)
			backoff *= 2
		}
		err = s.writeCheckpoint(cp)
		if err == nil {
			return nil
		}
	}
	return err
}

// writeCheckpoint inserts cp and trims race_checkpoints for cp.RaceID back
// down to the configured retention count, in one transaction, per spec §4's
// "checkpoints are periodically trimmed to the most recent N per race."
func (s *Store) writeCheckpoint(cp model.Checkpoint) error {
	tx, err := s.db.BeginTx(context.Background(), nil)
	if err != nil {
		return fmt.Errorf("beginning checkpoint transaction: %w", err)
	}
	defer tx.Rollback()

	const insertQ = `INSERT INTO race_checkpoints (id, race_id, ts_utc_ms, clock_ms, snapshot_blob) VALUES (?, ?, ?, ?, ?)`
	if _, err := tx.Exec(insertQ, cp.ID, cp.RaceID, cp.TsUtcMs, cp.ClockMs, cp.SnapshotBlob); err != nil {
		return fmt.Errorf("inserting checkpoint: %w", err)
	}

	const trimQ = `DELETE FROM race_checkpoints WHERE race_id = ? AND id NOT IN (
		SELECT id FROM race_checkpoints WHERE race_id = ? ORDER BY clock_ms DESC LIMIT ?
	)`
	if _, err := tx.Exec(trimQ, cp.RaceID, cp.RaceID, s.cfg.CheckpointRetain); err != nil {
		return fmt.Errorf("trimming old checkpoints: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing checkpoint transaction: %w", err)
	}
	return nil
}

// LatestCheckpoint returns the most recent checkpoint for raceID, or nil if
// none exists.
func (s *Store) LatestCheckpoint(ctx context.Context, raceID int64) (*model.Checkpoint, error) {
	var cp model.Checkpoint
	err := s.db.GetContext(ctx, &cp,
		`SELECT id, race_id, ts_utc_ms, clock_ms, snapshot_blob FROM race_checkpoints
		 WHERE race_id = ? ORDER BY clock_ms DESC LIMIT 1`, raceID)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("loading latest checkpoint: %w", err)
	}
	return &cp, nil
}

// EventsAfter returns journal events for raceID strictly after the given
// (clockMs, tsUtcMs) cursor, in apply order, for use by Recover.
func (s *Store) EventsAfter(ctx context.Context, raceID int64, clockMs, tsUtcMs int64) ([]model.JournalEvent, error) {
	var events []model.JournalEvent
	err := s.db.SelectContext(ctx, &events,
		`SELECT id, race_id, ts_utc_ms, clock_ms, type, payload FROM race_events
		 WHERE race_id = ? AND (clock_ms > ? OR (clock_ms = ? AND ts_utc_ms > ?))
		 ORDER BY clock_ms ASC, ts_utc_ms ASC`, raceID, clockMs, clockMs, tsUtcMs)
	if err != nil {
		return nil, fmt.Errorf("loading journal events: %w", err)
	}
	return events, nil
}

// AllEvents returns every journal event for raceID in apply order, used by
// Recover when no checkpoint exists yet.
func (s *Store) AllEvents(ctx context.Context, raceID int64) ([]model.JournalEvent, error) {
	return s.EventsAfter(ctx, raceID, -1, -1)
}

// DB exposes the underlying handle for components that share this single
// embedded database (qualifying grid persistence and heat-lap reads), per
// spec §6's single-store layout.
func (s *Store) DB() *sqlx.DB { return s.db }

// RecoverMaterial bundles what Recover (spec §4.4) needs to reconstruct
// engine state: the most recent checkpoint, if any, and every journal event
// strictly after it (or every event for the race, if there is no
// checkpoint).
type RecoverMaterial struct {
	Checkpoint *model.Checkpoint
	Events     []model.JournalEvent
}

// Recover assembles the RecoverMaterial for raceID. Applying it to rebuild
// engine state is the engine package's job (journal has no notion of
// entrants or standings).
func (s *Store) Recover(ctx context.Context, raceID int64) (*RecoverMaterial, error) {
	cp, err := s.LatestCheckpoint(ctx, raceID)
	if err != nil {
		return nil, err
	}
	var events []model.JournalEvent
	if cp != nil {
		events, err = s.EventsAfter(ctx, raceID, cp.ClockMs, cp.TsUtcMs)
	} else {
		events, err = s.AllEvents(ctx, raceID)
	}
	if err != nil {
		return nil, err
	}
	return &RecoverMaterial{Checkpoint: cp, Events: events}, nil
}
