package binopt

import (
	"math"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNewSelectorDefaultsMaxSizeToOne(t *testing.T) {
	s := NewSelector(Config{})
	require.Equal(t, 1, s.Size())
}

func TestSampleNoopsWhenAutoDisabled(t *testing.T) {
	s := NewSelector(Config{MaxSize: 8, Auto: false})
	s.Reset(0)
	s.Sample(10)
	require.Equal(t, 8, s.Size())
}

func TestSampleNoopsBeforeOneSecondElapsed(t *testing.T) {
	s := NewSelector(Config{MaxSize: 8, Auto: true})
	s.Reset(0)
	s.Sample(10) // ElapsedWall() is ~0, well under 1s
	require.Equal(t, 8, s.Size())
}

func TestRetuneGrowsOnRisingVelocityAndShrinksOnFalling(t *testing.T) {
	s := NewSelector(Config{MaxSize: 4, Auto: true})
	s.size = 2

	// Feed a mean first.
	s.velocity.Observe(0)
	s.velocity.Observe(1)

	s.retune(math.MaxFloat64) // far above any plausible mean -> grow
	require.GreaterOrEqual(t, s.size, 2)

	s.size = 2
	s.retune(0) // far below mean -> shrink or hold at floor
	require.LessOrEqual(t, s.size, 2)
}

func TestMinFracPassthrough(t *testing.T) {
	s := NewSelector(Config{MaxSize: 1, MinFrac: 0.25})
	require.Equal(t, 0.25, s.MinFrac())
}
