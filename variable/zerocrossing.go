package variable

import (
	"math"

	"github.com/qss-go/engine/rootfind"
)

// ZCRequantize updates a ZeroCrossing variable's polynomial z(Δ) from a
// fresh set of backend derivative samples and predicts the next root
// tZ > tQ, applying the anti-chatter magnitude test (spec.md §4.4). extremum
// is the caller-supplied peak |z| value observed on (tQ, candidate root),
// used for the magnitude test alongside the value just before the root;
// ZC variables never self-observe (invariant I5), so this is the only
// place a ZC variable's polynomial is mutated outside initialization.
func (v *Variable) ZCRequantize(t float64, d Derivatives, extremum float64) float64 {
	v.X[0] = v.ValueX(t)
	if v.Order >= 1 {
		v.X[1] = d.D1
	}
	if v.Order >= 2 {
		v.X[2] = d.D2 / 2
	}
	if v.Order >= 3 {
		v.X[3] = d.D3 / 6
	}
	v.TQ = t
	v.TX = t

	root := v.nextRoot()
	if rootfind.IsInf(root) {
		v.TZ = math.Inf(1)
		return v.TZ
	}

	valBeforeRoot := v.ValueX(v.TQ + root*0.999)
	mag := math.Max(math.Abs(valBeforeRoot), math.Abs(extremum))
	culled := rootfind.ZCRootCull(root, mag, v.Opts.ZMag())
	if rootfind.IsInf(culled) {
		v.UnpredictedCrossings++ // a predicted candidate was rejected; later roots are not searched
		v.TZ = math.Inf(1)
		return v.TZ
	}
	v.TZ = v.TQ + culled
	return v.TZ
}

// nextRoot finds the smallest positive root of z(Δ)=0 using the full
// polynomial root kernel, passing z's own coefficients directly (not a
// tolerance-band form, since zero-crossing prediction looks for the root
// of the indicator itself, not of a quantization-error polynomial).
func (v *Variable) nextRoot() float64 {
	switch v.Order {
	case 1:
		return rootfind.RootLinear(v.X[1], v.X[0])
	case 2:
		return rootfind.RootQuadratic(v.X[2], v.X[1], v.X[0])
	case 3:
		return rootfind.RootCubic(v.X[3], v.X[2], v.X[1], v.X[0])
	default:
		return rootfind.Inf
	}
}
