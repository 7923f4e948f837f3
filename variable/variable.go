// Package variable implements the polynomial state representation at the
// heart of the simulation core (spec.md §3 "Variable", §4.1 "Polynomial
// Variable Representation"): quantized (q) and continuous (x) polynomials,
// Horner evaluation, and the QSS requantization procedure. Subtype
// variants (LIQSS, zero-crossing, discrete, input, cluster) live in
// sibling files within this package, dispatched through the Kind tag
// rather than a type hierarchy (spec.md §9 "Subtype polymorphism").
package variable

import (
	"math"

	"github.com/qss-go/engine/config"
	"github.com/qss-go/engine/equeue"
	"github.com/qss-go/engine/rootfind"
)

// Kind discriminates the dozen variable subtypes spec.md §3 enumerates.
type Kind int

const (
	QSSState Kind = iota
	LIQSSState
	XQSSState // broadcast ("xQSS"/"fQSS") variant: publishes full x polynomial
	ZeroCrossing
	RealPassive
	Boolean
	Integer
	DiscreteReal
	InputContinuous
	InputDiscrete
	ConnectionInput
)

func (k Kind) String() string {
	switch k {
	case QSSState:
		return "QSSState"
	case LIQSSState:
		return "LIQSSState"
	case XQSSState:
		return "XQSSState"
	case ZeroCrossing:
		return "ZeroCrossing"
	case RealPassive:
		return "RealPassive"
	case Boolean:
		return "Boolean"
	case Integer:
		return "Integer"
	case DiscreteReal:
		return "DiscreteReal"
	case InputContinuous:
		return "InputContinuous"
	case InputDiscrete:
		return "InputDiscrete"
	case ConnectionInput:
		return "ConnectionInput"
	default:
		return "Unknown"
	}
}

// IsState reports whether k is one of the requantizing state-variable
// subtypes (as opposed to discrete/input/passive subtypes).
func (k Kind) IsState() bool {
	return k == QSSState || k == LIQSSState || k == XQSSState
}

// Variable is the central entity (spec.md §3). A Variable is always
// addressed by arena index (see graph.Graph), never by pointer, so
// observer/observee edges stay cycle-safe (spec.md §9).
type Variable struct { // betteralign:ignore
	Name       string
	Kind       Kind
	Order      int // 0 (discrete) .. 3
	BackendRef int

	Q [3]float64 // quantized polynomial coefficients q0,q1,q2
	X [4]float64 // continuous polynomial coefficients x0,x1,x2,x3

	TQ, TX, TE, TD, TZ float64

	Opts *config.Options

	// Per-variable overrides; zero means "use Opts default".
	DtMinOverride, DtMaxOverride, DtInfOverride float64
	Dormant                                     bool

	Handle    equeue.Handle
	HasHandle bool

	Observers []int // arena indices, uniquified/sorted by finalize_observers
	Observees []int

	ConditionalID int // -1 if this is not a zero-crossing variable
	Cluster       []int

	SelfObserver                 bool
	ConnectedOutput              bool
	ConnectedOutputObserver      bool
	HasUpstreamStateOrEIObserver bool

	// LIQSS bracket state (liqss.go); unused by plain QSS/xQSS variables.
	QLower, QUpper float64

	// UnpredictedCrossings counts candidate roots that ZCRequantize rejected
	// by the anti-chatter magnitude test, for post-run reporting. Sign flips
	// of the indicator itself are not observed or counted.
	UnpredictedCrossings int
}

// New constructs a state variable (QSSState/LIQSSState/XQSSState) of the
// given order with initial value x0 at time t0.
func New(name string, kind Kind, order int, backendRef int, x0, t0 float64, opts *config.Options) *Variable {
	v := &Variable{
		Name:          name,
		Kind:          kind,
		Order:         order,
		BackendRef:    backendRef,
		TQ:            t0,
		TX:            t0,
		TE:            math.Inf(1),
		Opts:          opts,
		ConditionalID: -1,
	}
	v.X[0] = x0
	v.Q[0] = x0
	return v
}

func (v *Variable) dtMin() float64 {
	if v.DtMinOverride > 0 {
		return v.DtMinOverride
	}
	return v.Opts.DtMin
}

func (v *Variable) dtMax() float64 {
	if v.DtMaxOverride > 0 {
		return v.DtMaxOverride
	}
	return v.Opts.DtMax
}

func (v *Variable) dtInf() float64 {
	if v.DtInfOverride > 0 {
		return v.DtInfOverride
	}
	return v.Opts.DtInf
}

// ValueX evaluates the continuous polynomial x(t) via Horner's method.
func (v *Variable) ValueX(t float64) float64 {
	d := t - v.TX
	switch v.Order {
	case 3:
		return ((v.X[3]*d+v.X[2])*d+v.X[1])*d + v.X[0]
	case 2:
		return (v.X[2]*d+v.X[1])*d + v.X[0]
	default:
		return v.X[1]*d + v.X[0]
	}
}

// ValueQ evaluates the quantized polynomial q(t) via Horner's method.
func (v *Variable) ValueQ(t float64) float64 {
	d := t - v.TQ
	switch v.Order {
	case 3, 2:
		return (v.Q[2]*d+v.Q[1])*d + v.Q[0]
	default:
		return v.Q[1]*d + v.Q[0]
	}
}

// Deriv1X evaluates x'(t).
func (v *Variable) Deriv1X(t float64) float64 {
	d := t - v.TX
	switch v.Order {
	case 3:
		return (3*v.X[3]*d+2*v.X[2])*d + v.X[1]
	case 2:
		return 2*v.X[2]*d + v.X[1]
	default:
		return v.X[1]
	}
}

// Deriv1Q evaluates q'(t).
func (v *Variable) Deriv1Q(t float64) float64 {
	d := t - v.TQ
	if v.Order >= 2 {
		return 2*v.Q[2]*d + v.Q[1]
	}
	return v.Q[1]
}

// Deriv2X evaluates x''(t).
func (v *Variable) Deriv2X(t float64) float64 {
	d := t - v.TX
	if v.Order == 3 {
		return 6*v.X[3]*d + 2*v.X[2]
	}
	return 2 * v.X[2]
}

// Deriv2Q evaluates q''(t) (constant, since q is at most quadratic).
func (v *Variable) Deriv2Q(float64) float64 { return 2 * v.Q[2] }

// Deriv3X evaluates x'''(t) (constant, since x is at most cubic).
func (v *Variable) Deriv3X(float64) float64 { return 6 * v.X[3] }

// Derivatives bundles the backend-derivative samples the advance engine
// gathers for a requantizing variable (spec.md §4.1 steps 2-4); Variable
// itself never calls the backend directly — that is the advance engine's
// job, which pools calls across a bucket of observers.
type Derivatives struct {
	D1 float64 // 1st derivative at t
	D2 float64 // 2nd derivative at t (order >= 2)
	D3 float64 // 3rd derivative at t (order == 3)
}

// AdvanceQSS performs the nine-step requantization procedure of spec.md
// §4.1 for a plain QSS (or broadcast xQSS) state variable at time t, given
// derivative samples already fetched by the advance engine. It mutates Q,
// X, TQ, TX and returns the newly predicted TE; the caller (advance/sim)
// is responsible for rescheduling the variable's queue entry at that time.
func (v *Variable) AdvanceQSS(t float64, d Derivatives) float64 {
	// Step 1: evaluate x at current t for the new q0.
	q0 := v.ValueX(t)

	// Steps 2-4: adopt backend derivative samples as the new x polynomial,
	// expressed as Taylor coefficients (x2 = f''/2, x3 = f'''/6).
	v.X[0] = q0
	if v.Order >= 1 {
		v.X[1] = d.D1
	}
	if v.Order >= 2 {
		v.X[2] = d.D2 / 2
	}
	if v.Order >= 3 {
		v.X[3] = d.D3 / 6
	}

	// Step 5: copy x into q, truncated one order lower; update origins.
	v.Q[0] = v.X[0]
	if v.Order >= 2 {
		v.Q[1] = v.X[1]
	}
	if v.Order >= 3 {
		v.Q[2] = v.X[2]
	}
	v.TQ = t
	v.TX = t

	// Step 6: predict tE as the smallest positive root of the
	// tolerance-crossing equation. Because q was just copied from x,
	// x(Δ)-q(Δ) collapses to the single term x's highest order retains
	// beyond q's order; quantum is evaluated at the new q0 (held constant
	// over the prediction interval, the standard QSS simplification).
	quantum := v.Opts.Quantum(q0)
	tE := v.predictTolCrossing(quantum)

	// Step 7: clamp.
	tE = v.clampTE(tE)
	v.TE = tE // inflectionTime interpolates up to this newly predicted TE

	// Step 8: inflection-point preference.
	if v.Opts.Inflection && v.Order >= 2 {
		if infl, ok := v.inflectionTime(); ok && infl > v.TQ && infl < tE {
			if (tE-infl) >= v.Opts.InflectionFrac*(tE-v.TQ) {
				tE = infl
			}
		}
	}

	v.TE = tE
	return tE
}

// predictTolCrossing solves |x(Δ)-q(Δ)| = quantum for the smallest
// positive Δ and returns TQ+Δ (or +∞ if no positive root).
func (v *Variable) predictTolCrossing(quantum float64) float64 {
	var a, b, c, d float64
	switch v.Order {
	case 1:
		c = v.X[1] // diff(Δ) = x1·Δ
	case 2:
		b = v.X[2] // diff(Δ) = x2·Δ²
	case 3:
		a = v.X[3] // diff(Δ) = x3·Δ³
	default:
		return math.Inf(1)
	}
	root := rootfind.RootCubicBoth(a, b, c, d, quantum)
	if rootfind.IsInf(root) {
		return math.Inf(1)
	}
	return v.TQ + root
}

// inflectionTime looks for a sign change in x''(Δ) (order 3) that occurs
// before the tolerance crossing, approximated by linear interpolation
// between its value at TQ and at the predicted TE — a cheap approximation
// of spec.md §4.1 step 8's "higher-derivative sign change" test.
func (v *Variable) inflectionTime() (float64, bool) {
	if v.Order < 3 {
		return 0, false
	}
	d0 := v.Deriv2X(v.TQ)
	dE := v.Deriv2X(v.TE)
	if (d0 >= 0) == (dE >= 0) {
		return 0, false
	}
	if d0 == dE {
		return 0, false
	}
	frac := d0 / (d0 - dE)
	return v.TQ + frac*(v.TE-v.TQ), true
}

func (v *Variable) clampTE(tE float64) float64 {
	lo := v.TQ + v.dtMin()
	hi := v.TQ + v.dtMax()
	if tE < lo {
		tE = lo
	}
	if tE > hi {
		tE = hi
	}
	if v.Dormant {
		infHi := v.TQ + v.dtInf()
		if tE > infHi {
			tE = infHi
		}
	}
	return tE
}

// RaiseDtMin doubles the variable's minimum step (pass-limit watchdog,
// spec.md §4.5), capped at a fraction of dt_max.
func (v *Variable) RaiseDtMin() {
	cur := v.dtMin()
	next := cur * 2
	ceiling := v.dtMax() / 2
	if next > ceiling {
		next = ceiling
	}
	v.DtMinOverride = next
}
