package events

import (
	"fmt"
	"log/slog"
	"maps"

	"github.com/talgya/living-world/internal/clock"
)

const (
	DefaultHistoryCap = 1000
	DefaultFailureCap = 100
)

type subscription struct {
	id      int
	kind    Kind
	handler Handler
}

// Bus queues, dispatches, and retains events. It is owned by one World and,
// like the World, has a single writer.
type Bus struct {
	clk     *clock.Clock
	logger  *slog.Logger
	nextSeq uint64

	queue []Event
	subs  []subscription
	subID int

	history *ring[Event]
	failed  *ring[Failure]
}

// NewBus creates a bus stamping events with clk. A non-positive capacity
// falls back to the defaults.
func NewBus(clk *clock.Clock, historyCap, failureCap int, logger *slog.Logger) *Bus {
	if historyCap <= 0 {
		historyCap = DefaultHistoryCap
	}
	if failureCap <= 0 {
		failureCap = DefaultFailureCap
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Bus{
		clk:     clk,
		logger:  logger,
		nextSeq: 1,
		history: newRing[Event](historyCap),
		failed:  newRing[Failure](failureCap),
	}
}

// Publish stamps and enqueues an event, returning its sequence number.
// Events published while a drain is dispatching wait for the next drain.
func (b *Bus) Publish(kind Kind, source, location uint64, payload map[string]string) uint64 {
	e := Event{
		Seq:      b.nextSeq,
		Kind:     kind,
		Source:   source,
		Location: location,
		Time:     b.clk.Now(),
	}
	if len(payload) > 0 {
		e.Payload = maps.Clone(payload)
	}
	b.nextSeq++
	b.queue = append(b.queue, e)
	return e.Seq
}

// Subscribe registers a handler for kind (or KindAny). Handlers for the same
// event run in subscription order. The returned func unsubscribes.
func (b *Bus) Subscribe(kind Kind, h Handler) func() {
	b.subID++
	id := b.subID
	b.subs = append(b.subs, subscription{id: id, kind: kind, handler: h})
	return func() {
		for i, s := range b.subs {
			if s.id == id {
				b.subs = append(b.subs[:i:i], b.subs[i+1:]...)
				return
			}
		}
	}
}

// Drain dispatches everything queued before the call, moves it into history,
// and returns the dispatched events in publish order.
func (b *Bus) Drain() []Event {
	pending := b.queue
	b.queue = nil
	if len(pending) == 0 {
		return nil
	}
	subs := append([]subscription(nil), b.subs...)
	for _, e := range pending {
		for _, s := range subs {
			if s.kind != KindAny && s.kind != e.Kind {
				continue
			}
			if err := invoke(s.handler, e.clone()); err != nil {
				b.failed.push(Failure{Seq: e.Seq, Kind: e.Kind, Subscriber: s.id, Err: err.Error()})
				b.logger.Warn("event subscriber failed", "seq", e.Seq, "kind", e.Kind, "subscriber", s.id, "error", err)
			}
		}
		b.history.push(e.clone())
	}
	return pending
}

func invoke(h Handler, e Event) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	return h(e)
}

// Pending returns the number of queued, undispatched events.
func (b *Bus) Pending() int { return len(b.queue) }

// NextSeq returns the sequence number the next published event will get.
func (b *Bus) NextSeq() uint64 { return b.nextSeq }

// HistoryCap returns the history capacity.
func (b *Bus) HistoryCap() int { return b.history.cap() }

// History returns retained events, oldest first.
func (b *Bus) History() []Event { return cloneAll(b.history.all()) }

// Recent returns up to n of the most recent events, oldest first.
func (b *Bus) Recent(n int) []Event { return cloneAll(b.history.last(n)) }

// Failures returns recorded dispatch failures, oldest first.
func (b *Bus) Failures() []Failure { return b.failed.all() }

// FailureCount returns how many failures have ever been recorded.
func (b *Bus) FailureCount() uint64 { return b.failed.pushed }

// Restore replaces history and the sequence counter. It is used when
// reloading a saved world and fails if the history is out of order or if
// nextSeq would reissue a retained sequence number.
func (b *Bus) Restore(history []Event, nextSeq uint64) error {
	var last uint64
	for i, e := range history {
		if e.Seq == 0 || (i > 0 && e.Seq <= last) {
			return fmt.Errorf("event history out of order at index %d (seq %d)", i, e.Seq)
		}
		last = e.Seq
	}
	if nextSeq == 0 || nextSeq <= last {
		return fmt.Errorf("next sequence %d not after last retained %d", nextSeq, last)
	}
	b.history = newRing[Event](b.history.cap())
	for _, e := range history {
		b.history.push(e.clone())
	}
	b.nextSeq = nextSeq
	b.queue = nil
	return nil
}
