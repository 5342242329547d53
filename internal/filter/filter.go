// Package filter implements the stateless-across-restarts Pass filter
// pipeline (spec §4.1): short-tag rejection, a trailing-second rate limit, a
// duplicate-tag window, and the unknown-tag/auto-provisional policy gate.
// Filtering never touches the journal; drop decisions are reported to the
// diagnostics stream by the caller, not by the pipeline itself.
package filter

import (
	"sync"
	"time"
)

// Decision is the outcome of running a Pass through the pipeline.
type Decision int

const (
	Accept Decision = iota
	Drop
)

// Reason mirrors model.DropReason's filter-stage subset. Declared locally
// (rather than importing internal/model) to keep filter a leaf package with
// no dependency on the entity model, matching the teacher's layering where
// network/buffer.go never imports the client package.
type Reason string

const (
	ReasonShortTag        Reason = "short_tag"
	ReasonRateLimit       Reason = "rate_limit"
	ReasonDuplicateWindow Reason = "duplicate_window"
	ReasonUnknownDisallow Reason = "unknown_and_disallowed"
	ReasonNone            Reason = ""
)

// Config holds the tunables spec §4.1 names, with its defaults.
type Config struct {
	MinTagLen         int
	RateLimitPerSec   int
	DuplicateWindowS  float64
	AutoProvisional   bool
}

// DefaultConfig returns spec §4.1's stated defaults.
func DefaultConfig() Config {
	return Config{
		MinTagLen:        7,
		RateLimitPerSec:  20,
		DuplicateWindowS: 0.5,
		AutoProvisional:  true,
	}
}

// EntrantLookup resolves a tag to whether it maps to any enabled entrant.
// The pipeline only needs the existence check; provisioning itself is the
// engine's job per spec §4.2 step 1.
type EntrantLookup func(tag string) (knownEnabled bool)

// Pipeline is the stateful (accept-timestamp and per-tag dup window) but
// I/O-free filter described in spec §4.1. A Pipeline is safe for concurrent
// use by multiple decoder workers.
type Pipeline struct {
	cfg Config
	now func() time.Time

	mu           sync.Mutex
	acceptTimes  []time.Time // sliding window of accepted timestamps
	lastAccepted map[string]time.Time
}

// New constructs a Pipeline. now defaults to time.Now if nil (tests pass a
// fake for deterministic rate/duplicate-window behavior).
func New(cfg Config, now func() time.Time) *Pipeline {
	if now == nil {
		now = time.Now
	}
	return &Pipeline{cfg: cfg, now: now, lastAccepted: make(map[string]time.Time)}
}

// Filter evaluates tag against the four rules of spec §4.1 in this order:
// short tag, duplicate window, rate limit, unknown-tag policy. lookup is only consulted
// once the first three checks pass, since an unknown tag that would be rate-
// limited or deduped anyway should report the earlier reason.
func (p *Pipeline) Filter(tag string, lookup EntrantLookup) (Decision, Reason) {
	if len(tag) < p.cfg.MinTagLen {
		return Drop, ReasonShortTag
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	now := p.now()

	if last, ok := p.lastAccepted[tag]; ok {
		if now.Sub(last).Seconds() < p.cfg.DuplicateWindowS {
			return Drop, ReasonDuplicateWindow
		}
	}

	p.pruneAcceptWindow(now)
	if len(p.acceptTimes) >= p.cfg.RateLimitPerSec {
		return Drop, ReasonRateLimit
	}

	if lookup != nil && !lookup(tag) && !p.cfg.AutoProvisional {
		return Drop, ReasonUnknownDisallow
	}

	p.acceptTimes = append(p.acceptTimes, now)
	p.lastAccepted[tag] = now
	return Accept, ReasonNone
}

// pruneAcceptWindow drops accept timestamps older than one trailing second.
// Caller holds p.mu.
func (p *Pipeline) pruneAcceptWindow(now time.Time) {
	cutoff := now.Add(-time.Second)
	i := 0
	for ; i < len(p.acceptTimes); i++ {
		if p.acceptTimes[i].After(cutoff) {
			break
		}
	}
	if i > 0 {
		p.acceptTimes = append([]time.Time(nil), p.acceptTimes[i:]...)
	}
}
