// Package testharness provides helpers for driving the engine without a live
// decoder: a pass builder and a sequential-tag generator. The module's test
// suites do not import it; they build passes inline and use the fake clock
// in internal/clock directly.
package testharness

import (
	"github.com/hybridsix/chronocore-rs-sub001/internal/model"
)

// PassGen builds Pass values for one tag and source. Every call to Pass
// returns the same value: it carries no timing, so the spacing between
// crossings is set by whatever clock the caller advances.
type PassGen struct {
	Tag      string
	DeviceID string
	Source   model.Source
}

// NewTrackPassGen returns a PassGen for ordinary track crossings.
func NewTrackPassGen(tag string) *PassGen {
	return &PassGen{Tag: tag, Source: model.SourceTrack}
}

// Pass returns the next Pass value for this generator's tag/source.
func (g *PassGen) Pass() model.Pass {
	p := model.Pass{Tag: g.Tag, Source: g.Source}
	if g.DeviceID != "" {
		p.DeviceID = &g.DeviceID
	}
	return p
}

// SequentialTags returns n zero-padded decimal tags of the given length,
// distinct as long as n does not exceed 10^length. They pass the default
// min-tag-length filter check when length is at least 7.
func SequentialTags(n, length int) []string {
	out := make([]string, n)
	for i := range out {
		out[i] = padTag(i, length)
	}
	return out
}

func padTag(i, length int) string {
	const digits = "0123456789"
	b := make([]byte, length)
	for j := length - 1; j >= 0; j-- {
		b[j] = digits[i%10]
		i /= 10
	}
	return string(b)
}
