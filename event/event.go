// Package event defines the tagged event record dispatched by the
// simulation loop (spec.md §3 "Event"). Events are a flat struct rather
// than an interface hierarchy so the queue never allocates per event
// (spec.md §9 "exception-free hot path").
package event

import "github.com/qss-go/engine/qtime"

// Kind discriminates the event variants spec.md §3 enumerates.
type Kind int

const (
	QSSRequant Kind = iota
	QSSZCRequant
	QSSRRequant
	QSSInputRequant
	Discrete
	ZeroCrossingReached
	Conditional
	Handler
)

func (k Kind) String() string {
	switch k {
	case QSSRequant:
		return "QSSRequant"
	case QSSZCRequant:
		return "QSSZCRequant"
	case QSSRRequant:
		return "QSSRRequant"
	case QSSInputRequant:
		return "QSSInputRequant"
	case Discrete:
		return "Discrete"
	case ZeroCrossingReached:
		return "ZeroCrossingReached"
	case Conditional:
		return "Conditional"
	case Handler:
		return "Handler"
	default:
		return "Unknown"
	}
}

// Event carries a reference to the variable or conditional it targets (by
// arena index, not pointer, per spec.md §9's cyclic-graph design note) and
// its scheduled superdense time. O(log N) cancel/reschedule goes through
// the equeue.Handle that Queue.Insert returns, not through this struct.
type Event struct {
	Kind   Kind
	Target int // index into the variable or conditional arena
	Time   qtime.Time

	handle int // not set by equeue; stays 0
}

// Handle returns the event's handle field. equeue tracks queue positions
// in its own equeue.Handle and never sets this field, so it returns 0.
func (e Event) Handle() int { return e.handle }
