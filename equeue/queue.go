// Package equeue implements the event queue (spec.md §4.2): a priority
// structure ordered by superdense time, supporting O(log N) insert and
// reschedule, top/pop, batch-pop of simultaneous events, and "bin"
// selection of clustered near-simultaneous triggers. The underlying
// min-heap is container/heap over a slice of *item, the same pattern the
// teacher uses for its timer heap (eventloop.timerHeap), generalized with
// an index-tracking handle so rescheduling does not require a linear scan.
package equeue

import (
	"container/heap"

	"github.com/qss-go/engine/event"
	"github.com/qss-go/engine/qtime"
)

type item struct {
	ev    event.Event
	index int // current position in the heap slice; maintained by heapImpl
}

type heapImpl []*item

func (h heapImpl) Len() int { return len(h) }
func (h heapImpl) Less(i, j int) bool {
	return h[i].ev.Time.Before(h[j].ev.Time)
}
func (h heapImpl) Swap(i, j int) {
	h[i], h[j] = h[j], h[i]
	h[i].index = i
	h[j].index = j
}
func (h *heapImpl) Push(x any) {
	it := x.(*item)
	it.index = len(*h)
	*h = append(*h, it)
}
func (h *heapImpl) Pop() any {
	old := *h
	n := len(old)
	it := old[n-1]
	old[n-1] = nil
	it.index = -1
	*h = old[:n-1]
	return it
}

// Handle is an opaque O(log N) cancel/reschedule token for a queued event,
// satisfying invariant I3 ("every variable appearing in the event queue has
// its queue handle equal to its actual queue position") by always pointing
// at the live *item, whose index field is kept in sync by Swap.
type Handle struct {
	it *item
}

// Queue is the superdense-time-ordered event queue.
type Queue struct {
	h          heapImpl
	activeTime qtime.Time
	nextMicro  uint32
}

// New creates an empty queue.
func New() *Queue {
	return &Queue{h: make(heapImpl, 0)}
}

// Len returns the number of queued events.
func (q *Queue) Len() int { return q.h.Len() }

// Insert schedules ev at its Time and returns a handle for later
// reschedule/cancel. O(log N).
func (q *Queue) Insert(ev event.Event) Handle {
	it := &item{ev: ev}
	heap.Push(&q.h, it)
	return Handle{it: it}
}

// Reschedule moves the event referenced by h to newTime. O(log N). If h was
// already popped (h.it.index < 0, e.g. by PopTop or a BinQSS batch), it is
// re-inserted rather than silently dropped: heap.Fix on a detached index is
// a no-op, so without this the event would vanish from the queue for good.
func (q *Queue) Reschedule(h Handle, newTime qtime.Time) {
	h.it.ev.Time = newTime
	if h.it.index < 0 {
		heap.Push(&q.h, h.it)
		return
	}
	heap.Fix(&q.h, h.it.index)
}

// Cancel removes the event referenced by h from the queue. O(log N).
func (q *Queue) Cancel(h Handle) {
	if h.it.index < 0 {
		return
	}
	heap.Remove(&q.h, h.it.index)
}

// Event returns the current event payload referenced by h.
func (h Handle) Event() event.Event { return h.it.ev }

// TopTime returns the real-time component of the earliest scheduled event.
// Panics if the queue is empty; callers must check Len() first, mirroring
// the hot-path "no allocation, no exceptions" discipline of the core.
func (q *Queue) TopTime() float64 {
	return q.h[0].ev.Time.Real
}

// TopSuperdenseTime returns the full superdense time of the earliest event.
func (q *Queue) TopSuperdenseTime() qtime.Time {
	return q.h[0].ev.Time
}

// PeekTop returns the earliest scheduled event without removing it, so a
// caller can branch on its Kind before deciding whether to pop a single
// event or collect a bin.
func (q *Queue) PeekTop() (event.Event, bool) {
	if q.Len() == 0 {
		return event.Event{}, false
	}
	return q.h[0].ev, true
}

// PopTop removes and returns the single earliest event.
func (q *Queue) PopTop() (event.Event, bool) {
	if q.Len() == 0 {
		return event.Event{}, false
	}
	it := heap.Pop(&q.h).(*item)
	return it.ev, true
}

// TopSubs pops and returns every event sharing the current top superdense
// time — the batch of simultaneous triggers spec.md §3 requires the queue
// to support directly.
func (q *Queue) TopSubs() []event.Event {
	if q.Len() == 0 {
		return nil
	}
	top := q.h[0].ev.Time
	var batch []event.Event
	for q.Len() > 0 && q.h[0].ev.Time.Compare(top) == 0 {
		it := heap.Pop(&q.h).(*item)
		batch = append(batch, it.ev)
	}
	return batch
}

// BinQSS pops up to maxSize earliest events whose scheduled step is close
// enough to the top event's step that processing them now is not premature
// by more than a factor of 1/minFrac (spec.md §4.6): the top event is always
// included; subsequent events are added only while
// `minFrac * (tE - tProc) <= dtTop`, where dtTop is the top event's
// `tE - tProc`. If only the top event qualifies, the bin degenerates to that
// single event.
func (q *Queue) BinQSS(tProc float64, maxSize int, minFrac float64) []event.Event {
	if q.Len() == 0 {
		return nil
	}
	if maxSize < 1 {
		maxSize = 1
	}

	top := q.h[0].ev
	dtTop := top.Time.Real - tProc

	it := heap.Pop(&q.h).(*item)
	bin := []event.Event{it.ev}

	for len(bin) < maxSize && q.Len() > 0 {
		next := q.h[0].ev
		dt := next.Time.Real - tProc
		if minFrac*dt > dtTop {
			break
		}
		popped := heap.Pop(&q.h).(*item)
		bin = append(bin, popped.ev)
	}
	return bin
}

// SetActiveTime records the real-time of the event about to be processed,
// so that any event newly scheduled at the same real time during its
// processing receives a micro-step strictly greater than the active one
// (spec.md §4.2).
func (q *Queue) SetActiveTime() {
	if q.Len() == 0 {
		return
	}
	top := q.h[0].ev.Time
	if top.Real != q.activeTime.Real {
		q.nextMicro = 0
	}
	q.activeTime = qtime.Time{Real: top.Real, Step: 0}
}

// NextMicroStep returns a fresh micro-step strictly greater than the
// currently active superdense time's step, for scheduling a simultaneous
// event at the active real time (e.g. a Handler event one micro-step after
// its Conditional).
func (q *Queue) NextMicroStep() uint32 {
	q.nextMicro++
	return q.nextMicro
}

// ActiveTime returns the real time set by the most recent SetActiveTime.
func (q *Queue) ActiveTime() float64 { return q.activeTime.Real }
