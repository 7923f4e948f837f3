// Package qerrors defines the simulation core's error kinds (spec.md §7):
// fatal-init, fatal-runtime, and recoverable, each carrying the
// identifying context (variable name, simulation time) a caller needs for
// a single-line diagnostic. Modeled on the teacher's error-type shapes
// (value/cause wrapping, Unwrap support) in eventloop/errors.go.
package qerrors

import "fmt"

// FatalInitError reports a malformed-model condition discovered before
// simulation can start (spec.md §4.9: nonpositive nominal, start-value
// mismatch, unsupported method, missing capability).
type FatalInitError struct {
	Variable string
	Reason   string
	Cause    error
}

func (e *FatalInitError) Error() string {
	if e.Variable == "" {
		return fmt.Sprintf("fatal init error: %s", e.Reason)
	}
	return fmt.Sprintf("fatal init error: variable %q: %s", e.Variable, e.Reason)
}

func (e *FatalInitError) Unwrap() error { return e.Cause }

// FatalRuntimeError reports a condition that aborts an in-progress
// simulation: a backend fatal status, or pass-count watchdog exhaustion.
type FatalRuntimeError struct {
	Time   float64
	Reason string
	Cause  error
}

func (e *FatalRuntimeError) Error() string {
	return fmt.Sprintf("fatal runtime error at t=%g: %s", e.Time, e.Reason)
}

func (e *FatalRuntimeError) Unwrap() error { return e.Cause }

// RecoverableError reports a condition the simulation logs and continues
// past: backend warning/discard, ZC anti-chatter rejection, pass-count
// soft limit.
type RecoverableError struct {
	Time     float64
	Variable string
	Reason   string
}

func (e *RecoverableError) Error() string {
	if e.Variable == "" {
		return fmt.Sprintf("recoverable error at t=%g: %s", e.Time, e.Reason)
	}
	return fmt.Sprintf("recoverable error at t=%g: variable %q: %s", e.Time, e.Variable, e.Reason)
}

// PassWatchdogError is a FatalRuntimeError subtype helper: the pass-count
// watchdog exceeded max_pass_count_multiplier × pass_limit (spec.md §4.5).
func PassWatchdogError(t float64, passes, limit int) *FatalRuntimeError {
	return &FatalRuntimeError{
		Time:   t,
		Reason: fmt.Sprintf("pass-count watchdog exhausted: %d passes exceeds limit %d", passes, limit),
	}
}
