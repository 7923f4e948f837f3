package config

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNewDefaults(t *testing.T) {
	o, err := New()
	require.NoError(t, err)
	require.Equal(t, QSS2, o.Method)
	require.Equal(t, 1e-4, o.RTol)
}

func TestNewAppliesOptions(t *testing.T) {
	o, err := New(
		WithMethod(LIQSS2),
		WithTolerances(1e-3, 1e-6),
		WithBin(8, 0.75, false),
		WithEndTime(5),
	)
	require.NoError(t, err)
	require.Equal(t, LIQSS2, o.Method)
	require.Equal(t, 1e-3, o.RTol)
	require.Equal(t, 8, o.BinSize)
	require.Equal(t, 5.0, o.TEnd)
}

func TestNewValidatesTolerances(t *testing.T) {
	_, err := New(WithTolerances(1e-4, 0))
	require.Error(t, err)
}

func TestNewValidatesStepClamps(t *testing.T) {
	_, err := New(WithStepClamps(1, 0.5))
	require.Error(t, err)
}

func TestQuantumUsesMaxOfRelativeAndAbsolute(t *testing.T) {
	o, err := New(WithTolerances(1e-2, 1e-6))
	require.NoError(t, err)
	require.InDelta(t, 1e-6, o.Quantum(0), 0)
	require.InDelta(t, 1e-2, o.Quantum(1), 1e-12)
}

func TestMethodHelpers(t *testing.T) {
	require.True(t, LIQSS3.IsLIQSS())
	require.False(t, QSS3.IsLIQSS())
	require.True(t, XQSS2.IsBroadcast())
	require.Equal(t, 2, QSS2.Order())
	require.Equal(t, 3, LIQSS3.Order())
}

func TestZMag(t *testing.T) {
	o, err := New(WithZeroCrossingTolerance(1e-3), WithZMagMode(true))
	require.NoError(t, err)
	require.Equal(t, 1e-3, o.ZMag())

	o2, err := New(WithZeroCrossingTolerance(1e-3), WithZMagMode(false))
	require.NoError(t, err)
	require.Equal(t, 0.0, o2.ZMag())
}
