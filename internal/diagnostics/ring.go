// Package diagnostics implements the bounded in-memory ring of recent pass
// events (accepted and dropped) described in spec §4.7, with a simple
// publish/subscribe fan-out. It has no durability and is reset on restart.
package diagnostics

import (
	"sync"

	"golang.org/x/time/rate"
)

const ringSize = 500

// Event is a single annotated pass observation, accepted or dropped.
type Event struct {
	Tag       string
	Source    string
	Accepted  bool
	Reason    string
	EntrantID int64
	ClockMs   int64
}

// Ring is a fixed-size circular buffer of the most recent Events with
// publish/subscribe fan-out. A slow subscriber's channel is non-blocking: a
// full subscriber channel drops the event rather than stalling the
// publisher, and an x/time/rate limiter caps how fast a single publish burst
// is fanned out to subscribers at all, so a decoder flood cannot monopolize
// every subscriber channel's buffer in one burst (spec §5: the engine must
// never block on diagnostics).
type Ring struct {
	mu   sync.Mutex
	buf  [ringSize]Event
	next int
	size int

	subs    map[int]chan Event
	subSeq  int
	limiter *rate.Limiter
}

// New constructs an empty Ring. publishRatePerSec bounds fan-out publish
// rate to subscribers (0 disables the limiter).
func New(publishRatePerSec float64) *Ring {
	r := &Ring{subs: make(map[int]chan Event)}
	if publishRatePerSec > 0 {
		r.limiter = rate.NewLimiter(rate.Limit(publishRatePerSec), int(publishRatePerSec))
	}
	return r
}

// Publish records ev in the ring and fans it out to current subscribers.
func (r *Ring) Publish(ev Event) {
	r.mu.Lock()
	r.buf[r.next] = ev
	r.next = (r.next + 1) % ringSize
	if r.size < ringSize {
		r.size++
	}
	subs := make([]chan Event, 0, len(r.subs))
	for _, ch := range r.subs {
		subs = append(subs, ch)
	}
	r.mu.Unlock()

	if r.limiter != nil && !r.limiter.Allow() {
		return
	}
	for _, ch := range subs {
		select {
		case ch <- ev:
		default:
		}
	}
}

// Recent returns up to the last n events, most recent last.
func (r *Ring) Recent(n int) []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	if n > r.size {
		n = r.size
	}
	out := make([]Event, n)
	for i := 0; i < n; i++ {
		idx := (r.next - n + i + ringSize) % ringSize
		out[i] = r.buf[idx]
	}
	return out
}

// Subscribe registers a new observer and returns its event channel plus an
// unsubscribe function.
func (r *Ring) Subscribe() (<-chan Event, func()) {
	r.mu.Lock()
	defer r.mu.Unlock()
	id := r.subSeq
	r.subSeq++
	ch := make(chan Event, 64)
	r.subs[id] = ch
	return ch, func() {
		r.mu.Lock()
		defer r.mu.Unlock()
		if existing, ok := r.subs[id]; ok {
			delete(r.subs, id)
			close(existing)
		}
	}
}
