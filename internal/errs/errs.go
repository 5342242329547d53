// Package errs implements ChronoCore's closed error-kind taxonomy (spec §7):
// InvalidPayload, NotFound, Conflict, IllegalTransition, NoSession, Internal.
// Transport layers map a Kind to a status code; the engine itself never
// encodes HTTP status anywhere.
package errs

import (
	"errors"
	"fmt"
)

// Kind is one of the six closed error kinds the engine ever returns.
type Kind int

const (
	_ Kind = iota
	InvalidPayload
	NotFound
	Conflict
	IllegalTransition
	NoSession
	Internal
)

func (k Kind) String() string {
	switch k {
	case InvalidPayload:
		return "InvalidPayload"
	case NotFound:
		return "NotFound"
	case Conflict:
		return "Conflict"
	case IllegalTransition:
		return "IllegalTransition"
	case NoSession:
		return "NoSession"
	case Internal:
		return "Internal"
	default:
		return "Unknown"
	}
}

// Error is the concrete type engine and roster operations return for
// contract violations (journal and grid I/O failures come back as plain
// wrapped errors, which KindOf reports as not an *Error). Detail carries kind-specific context (e.g.
// the colliding entrant id for Conflict, the current phase for
// IllegalTransition) so the user-visible behavior required by spec §7 ("the
// response includes the current phase" / "identifies the colliding entrant")
// can be rendered by whatever transport wraps this module.
type Error struct {
	Kind   Kind
	Msg    string
	Detail map[string]any
	Err    error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Msg, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Msg)
}

func (e *Error) Unwrap() error { return e.Err }

func new(k Kind, msg string, detail map[string]any) *Error {
	return &Error{Kind: k, Msg: msg, Detail: detail}
}

func NewInvalidPayload(msg string) *Error { return new(InvalidPayload, msg, nil) }

func NewNotFound(msg string, entrantID int64) *Error {
	return new(NotFound, msg, map[string]any{"entrant_id": entrantID})
}

func NewConflict(msg string, collidingEntrantID int64) *Error {
	return new(Conflict, msg, map[string]any{"colliding_entrant_id": collidingEntrantID})
}

func NewIllegalTransition(msg string, currentPhase string) *Error {
	return new(IllegalTransition, msg, map[string]any{"phase": currentPhase})
}

func NewNoSession(msg string) *Error { return new(NoSession, msg, nil) }

func NewInternal(msg string, cause error) *Error {
	e := new(Internal, msg, nil)
	e.Err = cause
	return e
}

// KindOf extracts the Kind of err if it (or something it wraps) is an *Error.
// Transport layers use this instead of a type switch to stay resilient to
// wrapping with fmt.Errorf("...: %w", err).
func KindOf(err error) (Kind, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind, true
	}
	return 0, false
}
