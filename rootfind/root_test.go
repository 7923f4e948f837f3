package rootfind

import (
	"math"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestRootLinear(t *testing.T) {
	require.InDelta(t, 2.0, RootLinear(-1, 2), 1e-12) // -Δ+2=0 → Δ=2
	require.True(t, IsInf(RootLinear(0, 1)))
	require.True(t, IsInf(RootLinear(1, 1))) // root at -1, not positive
}

func TestRootQuadraticKnownRoot(t *testing.T) {
	// (Δ-3)(Δ+1) = Δ²-2Δ-3 → positive root at 3
	root := RootQuadratic(1, -2, -3)
	require.InDelta(t, 3.0, root, 1e-9)
}

func TestRootQuadraticNoRealRoot(t *testing.T) {
	// Δ²+1 = 0 has no real root
	require.True(t, IsInf(RootQuadratic(1, 0, 1)))
}

func TestRootCubicKnownRoot(t *testing.T) {
	// (Δ-2)(Δ²+1) = Δ³-2Δ²+Δ-2, unique real root at 2
	root := RootCubic(1, -2, 1, -2)
	tol := math.Max(1e-10, 1e-8*2.0)
	require.InDelta(t, 2.0, root, tol*1e3) // generous test-level margin
}

func TestRootCubicThreeRealRoots(t *testing.T) {
	// (Δ-1)(Δ-2)(Δ-3) = Δ³-6Δ²+11Δ-6, smallest positive root is 1
	root := RootCubic(1, -6, 11, -6)
	require.InDelta(t, 1.0, root, 1e-6)
}

func TestRootCubicFallsBackToQuadraticWhenLeadingSmall(t *testing.T) {
	// tiny leading coefficient, dominant quadratic (Δ-5)(Δ+1) scaled
	root := RootCubic(1e-12, 1, -4, -5)
	require.InDelta(t, 5.0, root, 1e-3)
}

func TestZCRootCullAcceptsAboveMagnitude(t *testing.T) {
	require.Equal(t, 1.5, ZCRootCull(1.5, 0.2, 0.1))
}

func TestZCRootCullRejectsBelowMagnitude(t *testing.T) {
	require.True(t, IsInf(ZCRootCull(1.5, 0.01, 0.1)))
}

func TestRootCubicBothPicksSmaller(t *testing.T) {
	// d+q root vs d-q root; construct so upper boundary root is smaller
	root := RootCubicBoth(0, 1, -1, 0, 0.5) // quadratic: Δ²-Δ±0.5=0
	require.False(t, IsInf(root))
}
