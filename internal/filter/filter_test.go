package filter

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func alwaysKnown(string) bool { return true }

func TestShortTagRejected(t *testing.T) {
	p := New(DefaultConfig(), nil)
	d, r := p.Filter("123456", alwaysKnown) // len 6 < default min 7
	require.Equal(t, Drop, d)
	require.Equal(t, ReasonShortTag, r)
}

func TestRateLimitBoundary(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	clk := &fakeNow{t: now}
	cfg := DefaultConfig()
	p := New(cfg, clk.Now)

	for i := 0; i < 20; i++ {
		tag := distinctTag(i)
		d, _ := p.Filter(tag, alwaysKnown)
		require.Equal(t, Accept, d, "pass %d should be accepted", i)
	}

	d, r := p.Filter(distinctTag(20), alwaysKnown)
	require.Equal(t, Drop, d)
	require.Equal(t, ReasonRateLimit, r)
}

func TestDuplicateWindow(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	clk := &fakeNow{t: now}
	p := New(DefaultConfig(), clk.Now)

	d, _ := p.Filter("TAG0001", alwaysKnown)
	require.Equal(t, Accept, d)

	clk.t = clk.t.Add(200 * time.Millisecond)
	d, r := p.Filter("TAG0001", alwaysKnown)
	require.Equal(t, Drop, d)
	require.Equal(t, ReasonDuplicateWindow, r)

	clk.t = clk.t.Add(400 * time.Millisecond) // now 600ms after first accept
	d, _ = p.Filter("TAG0001", alwaysKnown)
	require.Equal(t, Accept, d)
}

func TestUnknownTagDisallowed(t *testing.T) {
	p := New(Config{MinTagLen: 7, RateLimitPerSec: 20, DuplicateWindowS: 0.5, AutoProvisional: false}, nil)
	d, r := p.Filter("UNKNOWN1", func(string) bool { return false })
	require.Equal(t, Drop, d)
	require.Equal(t, ReasonUnknownDisallow, r)
}

func TestUnknownTagAllowedWhenProvisional(t *testing.T) {
	p := New(DefaultConfig(), nil)
	d, _ := p.Filter("UNKNOWN1", func(string) bool { return false })
	require.Equal(t, Accept, d)
}

type fakeNow struct{ t time.Time }

func (f *fakeNow) Now() time.Time { return f.t }

func distinctTag(i int) string {
	const alphabet = "0123456789ABCDEF"
	b := []byte("TAG0000")
	b[3] = alphabet[i%16]
	b[4] = alphabet[(i/16)%16]
	b[5] = alphabet[(i/256)%16]
	b[6] = alphabet[(i/4096)%16]
	return string(b)
}
