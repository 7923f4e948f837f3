package variable

import "math"

// DiscreteValue is the current scalar value of a Boolean/Integer/
// DiscreteReal variable, stored in X[0] for uniformity with the
// continuous subtypes (so graph/advance can read a variable's "current
// value" without a type switch on Kind).
func (v *Variable) DiscreteValue() float64 { return v.X[0] }

// SetDiscreteValue assigns a new value and schedules the next discrete
// event time tD (spec.md §3). A nextEventTime of +Inf means the variable
// has no further scheduled transitions.
func (v *Variable) SetDiscreteValue(val float64, t, nextEventTime float64) {
	v.X[0] = val
	v.TX = t
	v.TQ = t
	v.TD = nextEventTime
}

// AdvanceDiscrete applies a scalar update at time t and reschedules tD,
// used for Boolean/Integer/DiscreteReal variables dispatched on a
// Discrete event (spec.md §4.5 dispatch table).
func (v *Variable) AdvanceDiscrete(t, newVal, nextEventTime float64) {
	v.SetDiscreteValue(newVal, t, nextEventTime)
}

// IsDue reports whether this discrete/input variable's next scheduled
// event time has arrived.
func (v *Variable) IsDue(t float64) bool {
	return !math.IsInf(v.TD, 1) && t >= v.TD
}
