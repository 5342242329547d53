// Package model defines the core ChronoCore entities: entrants, races, passes
// and the journal/checkpoint records that make up the persisted event log.
package model

// EntrantStatus is a closed set of lifecycle states for an Entrant.
type EntrantStatus string

const (
	StatusActive   EntrantStatus = "ACTIVE"
	StatusDisabled EntrantStatus = "DISABLED"
	StatusDNF      EntrantStatus = "DNF"
	StatusDQ       EntrantStatus = "DQ"
)

// Valid reports whether s is one of the known entrant statuses.
func (s EntrantStatus) Valid() bool {
	switch s {
	case StatusActive, StatusDisabled, StatusDNF, StatusDQ:
		return true
	}
	return false
}

// RaceType is a closed set of session kinds.
type RaceType string

const (
	RaceTypeSprint     RaceType = "sprint"
	RaceTypeEndurance  RaceType = "endurance"
	RaceTypeQualifying RaceType = "qualifying"
)

func (t RaceType) Valid() bool {
	switch t {
	case RaceTypeSprint, RaceTypeEndurance, RaceTypeQualifying:
		return true
	}
	return false
}

// Phase is the engine's internal race-clock phase, driven by the flag state
// machine (see Table 1 in the spec).
type Phase string

const (
	PhasePre       Phase = "pre"
	PhaseCountdown Phase = "countdown"
	PhaseGreen     Phase = "green"
	PhaseWhite     Phase = "white"
	PhaseCheckered Phase = "checkered"
)

// Flag is the UI-facing flag label. Not every flag changes Phase.
type Flag string

const (
	FlagPre       Flag = "PRE"
	FlagGreen     Flag = "GREEN"
	FlagYellow    Flag = "YELLOW"
	FlagRed       Flag = "RED"
	FlagBlue      Flag = "BLUE"
	FlagWhite     Flag = "WHITE"
	FlagCheckered Flag = "CHECKERED"
)

func (f Flag) Valid() bool {
	switch f {
	case FlagPre, FlagGreen, FlagYellow, FlagRed, FlagBlue, FlagWhite, FlagCheckered:
		return true
	}
	return false
}

// Source identifies which loop a Pass was detected at.
type Source string

const (
	SourceTrack  Source = "track"
	SourcePitIn  Source = "pit_in"
	SourcePitOut Source = "pit_out"
)

func (s Source) Valid() bool {
	switch s {
	case SourceTrack, SourcePitIn, SourcePitOut:
		return true
	}
	return false
}

// LimitType determines whether a race ends on elapsed time or lap count.
type LimitType string

const (
	LimitTypeTime LimitType = "time"
	LimitTypeLaps LimitType = "laps"
)

func (t LimitType) Valid() bool {
	switch t {
	case LimitTypeTime, LimitTypeLaps:
		return true
	}
	return false
}

// GridPolicy controls how a failed brake test demotes an entrant's grid slot.
type GridPolicy string

const (
	GridPolicyDemote       GridPolicy = "demote"
	GridPolicyUseNextValid GridPolicy = "use_next_valid"
	GridPolicyExclude      GridPolicy = "exclude"
)

func (p GridPolicy) Valid() bool {
	switch p {
	case GridPolicyDemote, GridPolicyUseNextValid, GridPolicyExclude:
		return true
	}
	return false
}

// JournalEventType is a closed set of event kinds appended to the journal.
type JournalEventType string

const (
	EventPass           JournalEventType = "pass"
	EventFlagChange     JournalEventType = "flag_change"
	EventEntrantEnable  JournalEventType = "entrant_enable"
	EventAssignTag      JournalEventType = "assign_tag"
	EventEntrantUpsert  JournalEventType = "entrant_upsert"
)

// DropReason enumerates the non-error outcomes of a filtered or rejected Pass.
type DropReason string

const (
	ReasonShortTag         DropReason = "short_tag"
	ReasonRateLimit        DropReason = "rate_limit"
	ReasonDuplicateWindow  DropReason = "duplicate_window"
	ReasonUnknownDisallow  DropReason = "unknown_and_disallowed"
	ReasonDisabled         DropReason = "disabled"
	ReasonNotRacing        DropReason = "not_racing"
	ReasonCheckeredFreeze  DropReason = "checkered_freeze"
	ReasonSoftEndCompleted DropReason = "soft_end_completed"
	ReasonArmed            DropReason = "armed"
	ReasonDup              DropReason = "dup"
	ReasonMinLap           DropReason = "min_lap"
)
