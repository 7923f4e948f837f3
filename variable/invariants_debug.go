//go:build qss_debug

package variable

import "fmt"

// CheckInvariants validates I1 and I4 for v at sim time t, returning a
// descriptive error on violation. Only compiled with the qss_debug build
// tag: the hot path (spec.md §9 "exception-free") never calls this in
// production builds.
func (v *Variable) CheckInvariants(t float64) error {
	if v.Kind.IsState() {
		if !(v.TQ <= v.TX && v.TX <= t && t <= v.TE) {
			return fmt.Errorf("variable %q: invariant I1 violated: tQ=%g tX=%g t=%g tE=%g",
				v.Name, v.TQ, v.TX, t, v.TE)
		}
	}
	if v.Kind == ZeroCrossing && v.ConditionalID >= 0 {
		if v.TZ <= v.TQ && v.TZ != v.TE {
			// TZ must be strictly greater than TQ when finite (I4).
			return fmt.Errorf("variable %q: invariant I4 violated: tZ=%g tQ=%g", v.Name, v.TZ, v.TQ)
		}
	}
	return nil
}
