package advance

import (
	"context"
	"testing"

	"github.com/qss-go/engine/backend/analytic"
	"github.com/qss-go/engine/config"
	"github.com/qss-go/engine/graph"
	"github.com/qss-go/engine/variable"
	"github.com/stretchr/testify/require"
)

func TestAdvanceBucketUpdatesObserverPolynomials(t *testing.T) {
	opts, err := config.New(config.WithMethod(config.QSS2), config.WithTolerances(1e-3, 1e-6))
	require.NoError(t, err)

	g := graph.New()
	x := variable.New("x", variable.QSSState, 2, 0, 1, 0, opts)
	xID := g.Add(x)

	model := analytic.New("decay", []float64{1}, func(t float64, xs []float64) []float64 {
		return []float64{-xs[0]}
	})

	eng := New(g, model, opts)
	results, err := eng.AdvanceBucket(context.Background(), 0, []int{xID})
	require.NoError(t, err)
	require.Len(t, results, 1)
	require.Greater(t, results[0].NextT, 0.0)
	require.Equal(t, 0.0, x.TQ)
}

func TestAdvanceBucketParallelPathMatchesSerial(t *testing.T) {
	opts, err := config.New(config.WithParallelThreshold(2))
	require.NoError(t, err)

	g := graph.New()
	var ids []int
	for i := 0; i < 4; i++ {
		v := variable.New("x", variable.QSSState, 2, i, 1, 0, opts)
		ids = append(ids, g.Add(v))
	}

	model := analytic.New("copies", []float64{1, 1, 1, 1}, func(t float64, xs []float64) []float64 {
		out := make([]float64, len(xs))
		for i := range xs {
			out[i] = -xs[i]
		}
		return out
	})
	for i, id := range ids {
		g.Vars[id].Observees = []int{i}
	}

	eng := New(g, model, opts)
	results, err := eng.AdvanceBucket(context.Background(), 0, ids)
	require.NoError(t, err)
	require.Len(t, results, 4)
	for _, r := range results {
		require.Greater(t, r.NextT, 0.0)
	}
}
