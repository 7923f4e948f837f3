// Package binopt implements the bin optimizer (spec.md §4.5 "Bin optimizer
// integration", §4.6 "Bin Selection Rule"): the dynamic choice of a bin
// size batching simultaneous/near-simultaneous triggers, tuned by a
// closed-loop simulation-velocity metric. Selector's config shape follows
// the teacher's microbatch.BatcherConfig (MaxSize plus a tunable auto-size
// toggle).
package binopt

import (
	"time"

	"github.com/qss-go/engine/qmetrics"
)

// Config mirrors the bin-related subset of config.Options so binopt does
// not need to import the full tolerance bundle.
type Config struct {
	// MaxSize restricts the maximum number of events batched per bin.
	// **Defaults to 1 (no batching), if 0.**
	MaxSize int

	// MinFrac is the bin_frac admission threshold (spec.md §4.6).
	MinFrac float64

	// Auto enables the closed-loop velocity-driven resizing described in
	// spec.md §4.5; when false, MaxSize is fixed for the run.
	Auto bool
}

// Selector tracks the bin optimizer's running state: the current
// recommended size, and the velocity accumulator driving its
// auto-tuning loop.
type Selector struct {
	cfg      Config
	size     int
	velocity *qmetrics.Velocity

	simAtReset float64
}

// NewSelector builds a Selector from cfg, with a 16-sample rolling
// velocity window. Panics on an impossible configuration, mirroring
// microbatch.NewBatcher's construction-time validation rather than
// silently tolerating a nonsensical bin shape at run time.
func NewSelector(cfg Config) *Selector {
	if cfg.MaxSize < 0 {
		panic("binopt: MaxSize must be >= 0")
	}
	if cfg.MinFrac < 0 || cfg.MinFrac > 1 {
		panic("binopt: MinFrac must be in [0,1]")
	}
	if cfg.MaxSize == 0 {
		cfg.MaxSize = 1
	}
	return &Selector{
		cfg:      cfg,
		size:     cfg.MaxSize,
		velocity: qmetrics.NewVelocity(16),
	}
}

// Size returns the bin size to use for the next bin selection.
func (s *Selector) Size() int { return s.size }

// MinFrac returns the configured bin_frac admission threshold.
func (s *Selector) MinFrac() float64 { return s.cfg.MinFrac }

// Reset starts a new performance-measurement interval at simulated time t.
func (s *Selector) Reset(t float64) {
	s.simAtReset = t
	s.velocity.Reset(t)
}

// Sample records that the simulation has reached simTime t with CPU wall
// time having elapsed since the last Reset/Sample. When auto-tuning is
// enabled and at least one second of CPU time has elapsed (spec.md §4.5),
// it recomputes the recommended bin size and resets the stopwatch.
func (s *Selector) Sample(simTime float64) {
	if !s.cfg.Auto {
		return
	}
	if s.velocity.ElapsedWall() < time.Second {
		return
	}
	v := s.velocity.Observe(simTime)
	s.retune(v)
}

// retune adjusts the bin size in proportion to the observed velocity
// trend: a rising velocity (bigger bins paying off) grows the bin size
// towards MaxSize; a falling velocity (bins too large, wasted work on
// premature requantizations) shrinks it back towards 1.
func (s *Selector) retune(instant float64) {
	mean := s.velocity.Mean()
	if mean <= 0 {
		return
	}
	switch {
	case instant > mean*1.05 && s.size < s.cfg.MaxSize:
		s.size++
	case instant < mean*0.95 && s.size > 1:
		s.size--
	}
}
