package variable

// StepFunc computes an input variable's value at a given time and the time
// of its next scheduled transition — the model-supplied driving function
// for InputContinuous/InputDiscrete/ConnectionInput subtypes, which have
// no backend-derivative relationship of their own.
type StepFunc func(t float64) (value float64, nextEventTime float64)

// AdvanceInput evaluates fn at t, updates the variable's current value
// and origin, and reschedules its next discrete step. For
// InputContinuous variables the derivative (needed by observers) must
// still be supplied by the advance engine via AdvanceQSS/Derivatives, as
// it would be for any other QSS-state observee; AdvanceInput only governs
// the InputDiscrete/ConnectionInput step-function cadence.
func (v *Variable) AdvanceInput(t float64, fn StepFunc) {
	val, next := fn(t)
	v.SetDiscreteValue(val, t, next)
}
