package qtime

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestCompareOrdering(t *testing.T) {
	a := Time{Real: 1.0, Step: 2}
	b := Time{Real: 1.0, Step: 3}
	c := Time{Real: 2.0, Step: 0}

	require.Equal(t, -1, a.Compare(b))
	require.Equal(t, 1, b.Compare(a))
	require.Equal(t, -1, b.Compare(c))
	require.Equal(t, 0, a.Compare(a))
	require.True(t, a.Before(b))
	require.True(t, c.After(b))
}

func TestNextIncrementsStepOnly(t *testing.T) {
	a := At(5.0)
	n := a.Next()
	require.Equal(t, 5.0, n.Real)
	require.Equal(t, uint32(1), n.Step)
	require.True(t, a.Before(n))
	require.True(t, a.SameReal(n))
}

func TestInfIsGreaterThanFiniteTimes(t *testing.T) {
	require.True(t, IsInf(Inf))
	require.False(t, IsInf(At(1e9)))
	require.True(t, At(1e9).Before(Inf))
}
