// Package logging wires github.com/rs/zerolog the way the ACC broadcasting
// client does: a per-component logger writing structured fields to a
// console sink.
package logging

import (
	"os"

	"github.com/rs/zerolog"
)

// Code is a structured-field key for drop-reason and error-kind codes,
// mirroring the teacher SDK's `network.Code` constant. No caller in this
// module logs with it.
const Code = "code"

var base = zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: "15:04:05.000"}).With().Timestamp().Logger()

// New returns a logger scoped to component, e.g. New("engine"), New("journal").
func New(component string) zerolog.Logger {
	return base.With().Str("component", component).Logger()
}

// SetGlobalLevel adjusts verbosity for all loggers returned by New.
func SetGlobalLevel(level zerolog.Level) {
	zerolog.SetGlobalLevel(level)
}
