package equeue

import (
	"testing"

	"github.com/qss-go/engine/event"
	"github.com/qss-go/engine/qtime"
	"github.com/stretchr/testify/require"
)

func evAt(target int, real float64, step uint32) event.Event {
	return event.Event{Kind: event.QSSRequant, Target: target, Time: qtime.Time{Real: real, Step: step}}
}

func TestInsertAndPopOrdersBySuperdenseTime(t *testing.T) {
	q := New()
	q.Insert(evAt(1, 3, 0))
	q.Insert(evAt(2, 1, 0))
	q.Insert(evAt(3, 2, 0))
	q.Insert(evAt(4, 1, 1))

	var order []int
	for q.Len() > 0 {
		e, ok := q.PopTop()
		require.True(t, ok)
		order = append(order, e.Target)
	}
	require.Equal(t, []int{2, 4, 3, 1}, order)
}

func TestRescheduleMovesPosition(t *testing.T) {
	q := New()
	h1 := q.Insert(evAt(1, 5, 0))
	q.Insert(evAt(2, 1, 0))

	q.Reschedule(h1, qtime.Time{Real: 0.1})
	e, _ := q.PopTop()
	require.Equal(t, 1, e.Target)
}

func TestCancelRemovesEvent(t *testing.T) {
	q := New()
	h1 := q.Insert(evAt(1, 1, 0))
	q.Insert(evAt(2, 2, 0))
	q.Cancel(h1)
	require.Equal(t, 1, q.Len())
	e, _ := q.PopTop()
	require.Equal(t, 2, e.Target)
}

func TestTopSubsPopsSimultaneousBatch(t *testing.T) {
	q := New()
	q.Insert(evAt(1, 2, 0))
	q.Insert(evAt(2, 2, 0))
	q.Insert(evAt(3, 3, 0))

	batch := q.TopSubs()
	require.Len(t, batch, 2)
	require.Equal(t, 1, q.Len())
}

func TestBinQSSRespectsMinFracAndMaxSize(t *testing.T) {
	q := New()
	q.Insert(evAt(1, 10, 0)) // top
	q.Insert(evAt(2, 10.5, 0))
	q.Insert(evAt(3, 19, 0)) // far: dt=10, 0.8*10 = 8 > dtTop
	q.Insert(evAt(4, 10.9, 0))

	// tProc=9: dtTop = 10-9 = 1. minFrac=0.8 → an event joins only while 0.8*dt <= 1
	bin := q.BinQSS(9, 4, 0.8)
	require.GreaterOrEqual(t, len(bin), 1)
	require.LessOrEqual(t, len(bin), 4)
	require.Equal(t, 1, bin[0].Target)
}

func TestPeekTopDoesNotRemove(t *testing.T) {
	q := New()
	q.Insert(evAt(1, 5, 0))
	q.Insert(evAt(2, 1, 0))

	e, ok := q.PeekTop()
	require.True(t, ok)
	require.Equal(t, 2, e.Target)
	require.Equal(t, 2, q.Len())
}

func TestPeekTopOnEmptyQueue(t *testing.T) {
	q := New()
	_, ok := q.PeekTop()
	require.False(t, ok)
}

func TestBinQSSDegeneratesToSingleWhenNoneQualify(t *testing.T) {
	q := New()
	q.Insert(evAt(1, 10, 0))
	q.Insert(evAt(2, 50, 0))
	bin := q.BinQSS(9, 8, 0.99)
	require.Equal(t, 1, len(bin))
	require.Equal(t, 1, bin[0].Target)
}
