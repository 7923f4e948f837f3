package graph

import (
	"testing"

	"github.com/qss-go/engine/config"
	"github.com/qss-go/engine/variable"
	"github.com/stretchr/testify/require"
)

func newVar(t *testing.T, name string, kind variable.Kind) *variable.Variable {
	o, err := config.New()
	require.NoError(t, err)
	return variable.New(name, kind, 2, 0, 1, 0, o)
}

func TestFinalizeUniquifiesAndSortsObservers(t *testing.T) {
	g := New()
	x1 := g.Add(newVar(t, "x1", variable.QSSState))
	x2 := g.Add(newVar(t, "x2", variable.QSSState))
	z := g.Add(newVar(t, "z", variable.ZeroCrossing))

	// x2 and z both observe x1; add x2's edge twice to test dedup.
	g.AddObserveeEdge(x2, x1)
	g.AddObserveeEdge(x2, x1)
	g.AddObserveeEdge(z, x1)

	g.Finalize()

	require.Len(t, g.Vars[x1].Observers, 2)
	// QSSState (x2) sorts before ZeroCrossing (z) per Kind ordering.
	require.Equal(t, x2, g.Vars[x1].Observers[0])
	require.Equal(t, z, g.Vars[x1].Observers[1])
}

func TestFinalizeDropsSelfObservationIntoFlag(t *testing.T) {
	g := New()
	x := g.Add(newVar(t, "x", variable.QSSState))
	g.AddObserveeEdge(x, x)

	g.Finalize()

	require.Empty(t, g.Vars[x].Observers)
	require.True(t, g.Vars[x].SelfObserver)
}

func TestFinalizeForwardsThroughPassiveVariables(t *testing.T) {
	g := New()
	x := g.Add(newVar(t, "x", variable.QSSState))
	p := g.Add(newVar(t, "p", variable.RealPassive))
	y := g.Add(newVar(t, "y", variable.QSSState))

	g.AddObserveeEdge(p, x) // p observes x
	g.AddObserveeEdge(y, p) // y observes p

	g.Finalize()

	require.Contains(t, g.Vars[p].Observers, y)
	require.Contains(t, g.Vars[x].Observers, y)
}

func TestBucketsPartitionsBySubtype(t *testing.T) {
	g := New()
	x := g.Add(newVar(t, "x", variable.QSSState))
	z := g.Add(newVar(t, "z", variable.ZeroCrossing))
	d := g.Add(newVar(t, "d", variable.RealPassive))

	buckets := g.Buckets([]int{x, z, d})
	require.Equal(t, []int{x}, buckets[BucketQSSState])
	require.Equal(t, []int{z}, buckets[BucketZC])
	require.Equal(t, []int{d}, buckets[BucketRealActive])
}
