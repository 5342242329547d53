// Package roster implements the enabled-only tag uniqueness and idempotent
// tag assignment rules of spec §4.3. It owns the entrant map and its
// secondary tag→id index; it holds no lock of its own and is only ever
// called with the engine's single mutex already held (spec §9's
// single-writer design).
package roster

import (
	"strings"

	"github.com/hybridsix/chronocore-rs-sub001/internal/errs"
	"github.com/hybridsix/chronocore-rs-sub001/internal/model"
)

// Manager owns the entrant map and the enabled-tag secondary index.
type Manager struct {
	entrants map[int64]*model.Entrant
	tagIndex map[string]int64 // tag -> entrant id, enabled entrants only
}

// New returns an empty Manager.
func New() *Manager {
	return &Manager{
		entrants: make(map[int64]*model.Entrant),
		tagIndex: make(map[string]int64),
	}
}

// Reset replaces the roster wholesale, as LoadRace does. RebuildIndex is
// called implicitly.
func (m *Manager) Reset(entrants []*model.Entrant) {
	m.entrants = make(map[int64]*model.Entrant, len(entrants))
	for _, e := range entrants {
		m.entrants[e.EntrantID] = e
	}
	m.RebuildIndex()
}

// RebuildIndex recomputes the tag->id index from scratch, covering only
// enabled entrants, per spec §9's design note.
func (m *Manager) RebuildIndex() {
	m.tagIndex = make(map[string]int64, len(m.entrants))
	for id, e := range m.entrants {
		if e.Enabled && e.Tag != nil && *e.Tag != "" {
			m.tagIndex[*e.Tag] = id
		}
	}
}

// Get returns the entrant with id, or nil if absent.
func (m *Manager) Get(id int64) *model.Entrant { return m.entrants[id] }

// ByTag resolves tag to an enabled entrant, or nil if none holds it.
func (m *Manager) ByTag(tag string) *model.Entrant {
	id, ok := m.tagIndex[tag]
	if !ok {
		return nil
	}
	return m.entrants[id]
}

// All returns every entrant in the roster in unspecified order.
func (m *Manager) All() []*model.Entrant {
	out := make([]*model.Entrant, 0, len(m.entrants))
	for _, e := range m.entrants {
		out = append(out, e)
	}
	return out
}

// Put inserts or replaces an entrant (used for provisional-entrant creation
// and journal replay of entrant upserts; LoadRace uses Reset) and adds its
// tag to the index when it is enabled.
func (m *Manager) Put(e *model.Entrant) {
	m.entrants[e.EntrantID] = e
	if e.Enabled && e.Tag != nil && *e.Tag != "" {
		m.tagIndex[*e.Tag] = e.EntrantID
	}
}

// NextID returns an id one higher than the current maximum, for provisional
// entrant creation (spec §4.2 step 1).
func (m *Manager) NextID() int64 {
	var max int64
	for id := range m.entrants {
		if id > max {
			max = id
		}
	}
	return max + 1
}

// tagConflict reports whether any entrant other than excludeID is enabled
// and holds tag, per spec §4.3.
func (m *Manager) tagConflict(tag string, excludeID int64) (conflictID int64, ok bool) {
	id, found := m.tagIndex[tag]
	if !found || id == excludeID {
		return 0, false
	}
	return id, true
}

// AssignTag normalizes and assigns tag to the entrant with id, exactly per
// spec §4.3: trims whitespace (empty becomes absent), is a no-op success if
// unchanged, fails Conflict against any other enabled entrant's tag, and
// reports whether a mutation actually happened (so the caller knows whether
// to emit an assign_tag journal event).
func (m *Manager) AssignTag(id int64, tag *string) (mutated bool, err error) {
	e, ok := m.entrants[id]
	if !ok {
		return false, errs.NewNotFound("entrant not found", id)
	}

	var normalized *string
	if tag != nil {
		trimmed := strings.TrimSpace(*tag)
		if trimmed != "" {
			normalized = &trimmed
		}
	}

	if equalTag(e.Tag, normalized) {
		return false, nil
	}

	if normalized != nil {
		if conflictID, has := m.tagConflict(*normalized, id); has {
			return false, errs.NewConflict("tag already assigned to an enabled entrant", conflictID)
		}
	}

	if e.Tag != nil && m.tagIndex[*e.Tag] == id {
		delete(m.tagIndex, *e.Tag)
	}
	e.Tag = normalized
	if e.Enabled && normalized != nil {
		m.tagIndex[*normalized] = id
	}
	return true, nil
}

// SetEnabled flips an entrant's enabled flag, failing Conflict if enabling
// would collide with another enabled entrant's tag (spec §4.3).
func (m *Manager) SetEnabled(id int64, enabled bool) (mutated bool, err error) {
	e, ok := m.entrants[id]
	if !ok {
		return false, errs.NewNotFound("entrant not found", id)
	}
	if e.Enabled == enabled {
		return false, nil
	}

	if enabled && e.Tag != nil {
		if conflictID, has := m.tagConflict(*e.Tag, id); has {
			return false, errs.NewConflict("enabling would duplicate an enabled tag", conflictID)
		}
	}

	e.Enabled = enabled
	if enabled && e.Tag != nil {
		m.tagIndex[*e.Tag] = id
	} else if !enabled && e.Tag != nil {
		// Only remove the index entry if it still points at this entrant;
		// another entrant may have since taken the tag is impossible
		// (enabled-only uniqueness), but defensive check keeps this correct
		// if index maintenance order ever changes.
		if m.tagIndex[*e.Tag] == id {
			delete(m.tagIndex, *e.Tag)
		}
	}
	return true, nil
}

func equalTag(a, b *string) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}
