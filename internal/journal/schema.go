package journal

// schema creates every table named in spec §6's persistence layout. Tables
// outside the journal/checkpoint store's own concern (entrants, events,
// heats, flags, result_standings, result_laps, result_meta) are still
// created here because this store is the module's single embedded database
// handle; no code in this module reads or writes them. The grid package
// writes qualifying_grids through this same *sql.DB. Qualifying laps are
// not given a table of their own: a heat's credited laps already live in
// race_events as pass
// events, and grid.JournalLapSource reads them back from there.
const schema = `
CREATE TABLE IF NOT EXISTS entrants (
	entrant_id   INTEGER PRIMARY KEY,
	event_id     INTEGER NOT NULL,
	number       TEXT NOT NULL,
	name         TEXT NOT NULL,
	tag          TEXT,
	enabled      INTEGER NOT NULL DEFAULT 1,
	status       TEXT NOT NULL DEFAULT 'ACTIVE'
);

CREATE UNIQUE INDEX IF NOT EXISTS entrants_enabled_tag_uq
	ON entrants(tag) WHERE enabled = 1 AND tag IS NOT NULL;

CREATE TABLE IF NOT EXISTS events (
	event_id   INTEGER PRIMARY KEY,
	name       TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS heats (
	heat_id    INTEGER PRIMARY KEY,
	event_id   INTEGER NOT NULL,
	race_type  TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS flags (
	id        TEXT PRIMARY KEY,
	race_id   INTEGER NOT NULL,
	flag      TEXT NOT NULL,
	phase     TEXT NOT NULL,
	ts_utc_ms INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS race_events (
	id          TEXT PRIMARY KEY,
	race_id     INTEGER NOT NULL,
	ts_utc_ms   INTEGER NOT NULL,
	clock_ms    INTEGER NOT NULL,
	type        TEXT NOT NULL,
	payload     BLOB NOT NULL
);

CREATE INDEX IF NOT EXISTS race_events_race_order
	ON race_events(race_id, clock_ms, ts_utc_ms);

CREATE TABLE IF NOT EXISTS race_checkpoints (
	id             TEXT PRIMARY KEY,
	race_id        INTEGER NOT NULL,
	ts_utc_ms      INTEGER NOT NULL,
	clock_ms       INTEGER NOT NULL,
	snapshot_blob  BLOB NOT NULL
);

CREATE INDEX IF NOT EXISTS race_checkpoints_race_order
	ON race_checkpoints(race_id, clock_ms DESC);

CREATE TABLE IF NOT EXISTS result_standings (
	race_id     INTEGER NOT NULL,
	entrant_id  INTEGER NOT NULL,
	position    INTEGER NOT NULL,
	laps        INTEGER NOT NULL,
	best_s      REAL,
	PRIMARY KEY (race_id, entrant_id)
);

CREATE TABLE IF NOT EXISTS result_laps (
	id          TEXT PRIMARY KEY,
	race_id     INTEGER NOT NULL,
	entrant_id  INTEGER NOT NULL,
	lap_number  INTEGER NOT NULL,
	lap_time_s  REAL NOT NULL
);

CREATE TABLE IF NOT EXISTS result_meta (
	race_id   INTEGER PRIMARY KEY,
	finalized_utc_ms INTEGER
);

CREATE TABLE IF NOT EXISTS qualifying_grids (
	event_id    INTEGER NOT NULL,
	entrant_id  INTEGER NOT NULL,
	grid_order  INTEGER NOT NULL,
	best_ms     INTEGER,
	brake_ok    INTEGER,
	demoted     INTEGER NOT NULL DEFAULT 0,
	excluded    INTEGER NOT NULL DEFAULT 0,
	PRIMARY KEY (event_id, entrant_id)
);
`
