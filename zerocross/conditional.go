// Package zerocross implements the Conditional/Handler dispatcher
// (spec.md §3 "Conditional", §4.4 "Zero-Crossing Subsystem", §4.8
// "Conditional / Handler State Machine"): a ZC variable's owning record,
// its armed/pending/firing/done state machine, and the bump/pre-bump/
// re-bump backend protocol used to confirm a predicted root really
// crossed before invoking its handlers.
package zerocross

import (
	"math"

	"github.com/qss-go/engine/backend"
	"github.com/qss-go/engine/config"
)

// State is a Conditional's lifecycle state (spec.md §4.8).
type State int

const (
	Armed State = iota
	Pending
	Firing
	Done
)

func (s State) String() string {
	switch s {
	case Armed:
		return "Armed"
	case Pending:
		return "Pending"
	case Firing:
		return "Firing"
	case Done:
		return "Done"
	default:
		return "Unknown"
	}
}

// Conditional owns one ZC variable id and its ordered handler variable
// ids (spec.md §3). It never owns the variables themselves — only their
// arena indices — per the cyclic-graph design note.
type Conditional struct {
	ZCVarID  int
	Handlers []int

	State State
	TZ    float64
}

// NewConditional creates an armed Conditional for zcVarID with the given
// ordered handler ids.
func NewConditional(zcVarID int, handlerIDs []int) *Conditional {
	return &Conditional{ZCVarID: zcVarID, Handlers: handlerIDs, State: Armed, TZ: math.Inf(1)}
}

// OnZCRequantize transitions the Conditional per the state machine's
// armed/pending edges after its ZC variable predicts a new tZ (spec.md
// §4.8): a finite root arms-to-pending (or re-pends from firing), while
// no finite root returns it to armed from any state.
func (c *Conditional) OnZCRequantize(tZ float64) {
	c.TZ = tZ
	if math.IsInf(tZ, 1) {
		c.State = Armed
		return
	}
	if c.State == Firing {
		c.State = Pending // re-arm after handler advance, spec.md §4.8
		return
	}
	c.State = Pending
}

// OnConditionalEventFire transitions pending -> firing when the
// Conditional event pops from the queue.
func (c *Conditional) OnConditionalEventFire() {
	c.State = Firing
}

// Dispatcher runs the bump/pre-bump/re-bump backend protocol (spec.md
// §4.4 steps 1-7) for a Conditional whose ZC event has reached its root.
type Dispatcher struct {
	Backend backend.Model
	Opts    *config.Options

	// IndicatorRef is the backend event-indicator ref for this
	// Conditional's ZC variable.
	IndicatorRef int
}

// FireResult reports what the bump protocol observed.
type FireResult struct {
	HandlerShouldFire bool
}

// Fire executes the detection part of the bump protocol around root time
// tZ: pre-bump to install event-mode state, bump forward to confirm the
// sign change, then restore backend time to tZ. It does not apply the
// handler or re-bump; the caller does both (see ReBump).
func (d *Dispatcher) Fire(tZ float64) FireResult {
	tZCBump := tZ + d.Opts.DtZC
	preBump := 2*tZ - tZCBump

	d.Backend.SetTime(preBump)
	d.Backend.EnterEventMode()
	info, _ := d.Backend.EventIteration()
	before, _ := d.Backend.GetEventIndicators([]int{d.IndicatorRef})

	d.Backend.SetTime(tZCBump)
	after, _ := d.Backend.GetEventIndicators([]int{d.IndicatorRef})

	detected := len(before) == 1 && len(after) == 1 && sign(before[0]) != sign(after[0])
	result := FireResult{HandlerShouldFire: detected || info.NewDiscreteStatesNeeded}

	d.Backend.SetTime(tZ)
	d.Backend.EnterContinuousMode()
	return result
}

// ReBump re-checks the indicator once more after handler side effects have
// been applied, to verify they did not flip another indicator; if so the
// caller should apply the handler once more, bounded to a single retry.
func (d *Dispatcher) ReBump(tZ float64) (flipped bool) {
	tZCBump := tZ + d.Opts.DtZC
	d.Backend.SetTime(tZCBump)
	d.Backend.EnterEventMode()
	_, _ = d.Backend.EventIteration()
	after, _ := d.Backend.GetEventIndicators([]int{d.IndicatorRef})
	d.Backend.SetTime(tZ)
	d.Backend.EnterContinuousMode()
	return len(after) == 1 && sign(after[0]) != 0 // conservative: any residual nonzero signal requests one retry
}

func sign(x float64) int {
	switch {
	case x > 0:
		return 1
	case x < 0:
		return -1
	default:
		return 0
	}
}
