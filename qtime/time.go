// Package qtime implements superdense time: a (real, micro-step) pair that
// imposes a deterministic total order on events scheduled at equal real
// times.
package qtime

import "fmt"

// Time is a superdense simulation timestamp: S = (t, i).
//
// The zero value is a valid time at t=0, step=0.
type Time struct {
	Real float64
	Step uint32
}

// At returns the superdense time (t, 0), the first micro-step at t.
func At(t float64) Time {
	return Time{Real: t}
}

// Next returns the same real time, advanced by one micro-step. Used when
// scheduling an event simultaneous with, but logically after, the currently
// active event (see Queue.SetActiveTime).
func (s Time) Next() Time {
	return Time{Real: s.Real, Step: s.Step + 1}
}

// Compare returns -1, 0, or 1 as s is lexicographically less than, equal to,
// or greater than other.
func (s Time) Compare(other Time) int {
	switch {
	case s.Real < other.Real:
		return -1
	case s.Real > other.Real:
		return 1
	case s.Step < other.Step:
		return -1
	case s.Step > other.Step:
		return 1
	default:
		return 0
	}
}

// Before reports whether s strictly precedes other.
func (s Time) Before(other Time) bool { return s.Compare(other) < 0 }

// After reports whether s strictly follows other.
func (s Time) After(other Time) bool { return s.Compare(other) > 0 }

// SameReal reports whether s and other share the same real-time component.
func (s Time) SameReal(other Time) bool { return s.Real == other.Real }

func (s Time) String() string {
	return fmt.Sprintf("(%g,%d)", s.Real, s.Step)
}

// Inf is a sentinel "never" time, used for tE/tZ/tD fields of dormant
// variables. It compares greater than any finite Time.
var Inf = Time{Real: infReal}

const infReal = 1.0e300 // deliberately finite-but-huge rather than math.Inf,
// so arithmetic such as tE - tProc stays well-defined (spec.md I1/P6 use
// subtraction against tE); callers that need true +Inf semantics use
// IsInf below instead of comparing against Inf directly.

// IsInf reports whether t is at or beyond the "never" horizon.
func IsInf(t Time) bool { return t.Real >= infReal }
