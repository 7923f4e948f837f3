package analytic

import (
	"testing"

	"github.com/qss-go/engine/backend"
	"github.com/stretchr/testify/require"
)

func TestSetGetReals(t *testing.T) {
	m := New("decay", []float64{1}, func(t float64, x []float64) []float64 {
		return []float64{-x[0]}
	})
	vals, status := m.GetReals([]int{0})
	require.Equal(t, backend.OK, status)
	require.Equal(t, []float64{1.0}, vals)

	status = m.SetReals([]int{0}, []float64{2.5})
	require.Equal(t, backend.OK, status)
	vals, _ = m.GetReals([]int{0})
	require.Equal(t, []float64{2.5}, vals)
}

func TestDirectionalDerivativeMatchesExactPartial(t *testing.T) {
	// x1'=x2, x2'=-x1: d(x1')/d(x2) should be ~1.
	m := New("oscillator", []float64{1, 0}, func(t float64, x []float64) []float64 {
		return []float64{x[1], -x[0]}
	})
	out, status := m.GetDirectionalDerivatives([]int{1}, []float64{1}, []int{0})
	require.Equal(t, backend.OK, status)
	require.InDelta(t, 1.0, out[0], 1e-4)
}

func TestEventIndicatorsAndHandler(t *testing.T) {
	m := New("ball", []float64{1, 0}, func(t float64, x []float64) []float64 {
		return []float64{x[1], -9.81}
	}).WithIndicators(1,
		func(t float64, x []float64) []float64 { return []float64{x[0]} },
		func(idx int, t float64, x []float64) []float64 {
			x[1] = -0.8 * x[1]
			return x
		},
	)

	vals, status := m.GetEventIndicators([]int{0})
	require.Equal(t, backend.OK, status)
	require.Equal(t, []float64{1.0}, vals)

	m.SetReals([]int{1}, []float64{-5})
	m.ApplyHandler(0)
	vals, _ = m.GetReals([]int{1})
	require.InDelta(t, 4.0, vals[0], 1e-12)
}
