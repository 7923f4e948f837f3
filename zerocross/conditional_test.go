package zerocross

import (
	"math"
	"testing"

	"github.com/qss-go/engine/backend/analytic"
	"github.com/qss-go/engine/config"
	"github.com/stretchr/testify/require"
)

func TestStateMachineArmedToPendingToFiring(t *testing.T) {
	c := NewConditional(0, []int{1})
	require.Equal(t, Armed, c.State)

	c.OnZCRequantize(5.0)
	require.Equal(t, Pending, c.State)

	c.OnConditionalEventFire()
	require.Equal(t, Firing, c.State)

	c.OnZCRequantize(7.0) // re-arm after handler advance
	require.Equal(t, Pending, c.State)
}

func TestStateMachineReturnsToArmedOnNoRoot(t *testing.T) {
	c := NewConditional(0, nil)
	c.OnZCRequantize(1.0)
	c.OnZCRequantize(math.Inf(1))
	require.Equal(t, Armed, c.State)
}

func TestDispatcherFireDetectsSignChange(t *testing.T) {
	opts, err := config.New()
	require.NoError(t, err)

	model := analytic.New("ball", []float64{1, 0}, func(tt float64, x []float64) []float64 {
		return []float64{x[1], -9.81}
	}).WithIndicators(1,
		func(tt float64, x []float64) []float64 { return []float64{tt - 1} }, // crosses at t=1
		nil,
	)

	d := &Dispatcher{Backend: model, Opts: opts, IndicatorRef: 0}
	res := d.Fire(1.0)
	require.True(t, res.HandlerShouldFire)
}
