// Package eventstream fans out per-contact dispatch results to live
// observers.
//
// Contract:
//   - Publish MUST be non-blocking.
//   - Subscribers use buffered channels; slow subscribers may drop events.
//   - There is no backlog: subscribers only see events published after they
//     subscribed. The run record is the source of truth, the stream is a
//     liveness aid.
//
// A subscriber that sees no event within a bounded interval receives a
// heartbeat token instead, so observers can tell "idle" from "disconnected".
package eventstream

import (
	"sync"
	"sync/atomic"
	"time"
)

// Event is one element of the stream: either a published entry or a
// heartbeat placeholder.
type Event struct {
	Time      time.Time
	Heartbeat bool
	Entry     any
}

type Stream struct {
	mu   sync.RWMutex
	subs map[uint64]chan Event
	seq  atomic.Uint64
}

func New() *Stream {
	return &Stream{subs: map[uint64]chan Event{}}
}

// Publish delivers e to every current subscriber without blocking. Only the
// dispatch worker publishes.
func (s *Stream) Publish(entry any) {
	e := Event{Time: time.Now(), Entry: entry}

	// Snapshot subscribers so Publish doesn't hold locks while sending.
	s.mu.RLock()
	chs := make([]chan Event, 0, len(s.subs))
	for _, ch := range s.subs {
		chs = append(chs, ch)
	}
	s.mu.RUnlock()

	for _, ch := range chs {
		// Non-blocking delivery. If a subscriber unsubscribes concurrently
		// and the channel closes, recover from the send panic.
		func() {
			defer func() { _ = recover() }()
			select {
			case ch <- e:
			default:
			}
		}()
	}
}

// Subscribe registers an observer. Call unsubscribe exactly once when done.
func (s *Stream) Subscribe(buffer int) (*Subscription, func()) {
	if buffer <= 0 {
		buffer = 16
	}
	ch := make(chan Event, buffer)
	id := s.seq.Add(1)

	s.mu.Lock()
	s.subs[id] = ch
	s.mu.Unlock()

	var once sync.Once
	unsub := func() {
		once.Do(func() {
			s.mu.Lock()
			delete(s.subs, id)
			s.mu.Unlock()
			// Closing is safe because Publish recovers from send panics.
			close(ch)
		})
	}
	return &Subscription{ch: ch}, unsub
}

type Subscription struct {
	ch chan Event
}

// Next blocks for the next event, at most wait. On timeout it returns a
// heartbeat event. ok is false once the subscription is closed.
func (sub *Subscription) Next(wait time.Duration, done <-chan struct{}) (Event, bool) {
	t := time.NewTimer(wait)
	defer t.Stop()
	select {
	case e, ok := <-sub.ch:
		return e, ok
	case <-t.C:
		return Event{Time: time.Now(), Heartbeat: true}, true
	case <-done:
		return Event{}, false
	}
}
