package variable

import (
	"math"
	"testing"

	"github.com/qss-go/engine/config"
	"github.com/stretchr/testify/require"
)

func testOpts(t *testing.T) *config.Options {
	o, err := config.New(config.WithTolerances(1e-4, 1e-6))
	require.NoError(t, err)
	return o
}

func TestHornerEvaluationMatchesPolynomial(t *testing.T) {
	v := New("x", QSSState, 3, 0, 1, 0, testOpts(t))
	v.X = [4]float64{1, 2, 3, 4}
	v.TX = 0
	got := v.ValueX(2)
	want := 1 + 2*2 + 3*4 + 4*8
	require.InDelta(t, want, got, 1e-9)
}

func TestAdvanceQSSOrder2SetsQuantizationBound(t *testing.T) {
	opts := testOpts(t)
	v := New("x", QSSState, 2, 0, 1, 0, opts)

	tE := v.AdvanceQSS(0, Derivatives{D1: -1, D2: 1})
	require.Greater(t, tE, 0.0)
	require.Equal(t, v.TQ, v.TX)
	require.Equal(t, 0.0, v.TQ)

	// P2: at any sampled t in (tQ, tE), |x(t)-q(t)| <= quantum + slack.
	quantum := opts.Quantum(v.Q[0])
	samples := []float64{tE * 0.25, tE * 0.5, tE * 0.9}
	for _, s := range samples {
		diff := math.Abs(v.ValueX(s) - v.ValueQ(s))
		require.LessOrEqual(t, diff, quantum+1e-9, "sample t=%g", s)
	}
}

func TestAdvanceQSSIsIdempotentWhenInputsFrozen(t *testing.T) {
	opts := testOpts(t)
	v := New("x", QSSState, 2, 0, 1, 0, opts)
	d := Derivatives{D1: -0.5, D2: 0.25}

	v.AdvanceQSS(1.0, d)
	q1, x1, tE1 := v.Q, v.X, v.TE

	// Reset tQ/tX back as if nothing had happened and re-advance at the
	// same t with the same observee-derived derivatives (P5).
	v.TQ, v.TX = 1.0, 1.0
	v.AdvanceQSS(1.0, d)

	require.Equal(t, q1, v.Q)
	require.Equal(t, x1, v.X)
	require.Equal(t, tE1, v.TE)
}

func TestAdvanceQSSClampsWithinDtMinMax(t *testing.T) {
	opts := testOpts(t)
	v := New("x", QSSState, 1, 0, 1, 0, opts)
	v.DtMinOverride = 0.5
	v.DtMaxOverride = 0.6

	tE := v.AdvanceQSS(0, Derivatives{D1: -1000}) // would predict a tiny tE unclamped
	require.GreaterOrEqual(t, tE, 0.5)
	require.LessOrEqual(t, tE, 0.6)
}

func TestAdvanceQSSNoPositiveRootGivesInfiniteTE(t *testing.T) {
	opts := testOpts(t)
	v := New("x", QSSState, 1, 0, 1, 0, opts)
	tE := v.AdvanceQSS(0, Derivatives{D1: 0}) // constant: never diverges from q
	require.True(t, math.IsInf(tE, 1) || tE == v.TQ+opts.DtMax)
}

func TestZCRequantizePredictsRootAndCulls(t *testing.T) {
	opts := testOpts(t)
	v := New("z", ZeroCrossing, 1, 0, 1, 0, opts)
	tZ := v.ZCRequantize(0, Derivatives{D1: -1}, 1.0) // z(Δ)=1-Δ, root at 1
	require.InDelta(t, 1.0, tZ, 1e-6)
}

func TestZCRequantizeCullsBelowMagnitude(t *testing.T) {
	opts := testOpts(t)
	v := New("z", ZeroCrossing, 1, 0, 1e-9, 0, opts) // tiny amplitude, below zTol
	tZ := v.ZCRequantize(0, Derivatives{D1: -1}, 1e-9)
	require.True(t, math.IsInf(tZ, 1))
}

func TestRaiseDtMinDoublesAndCaps(t *testing.T) {
	opts := testOpts(t)
	v := New("x", QSSState, 1, 0, 1, 0, opts)
	before := v.dtMin()
	v.RaiseDtMin()
	require.Equal(t, before*2, v.dtMin())
	for i := 0; i < 200; i++ {
		v.RaiseDtMin()
	}
	require.LessOrEqual(t, v.dtMin(), v.dtMax()/2+1e-9)
}
