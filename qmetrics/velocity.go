package qmetrics

import "time"

// ring is a fixed-capacity circular buffer, adapted from catrate's
// ringBuffer[E]: same mask-based wraparound indexing, trimmed to the
// subset this package needs (push-overwrite-oldest + full scan), since
// Velocity needs "the last N samples" rather than catrate's
// sorted-by-timestamp expiry semantics.
type ring struct {
	s    []float64
	r, w uint
	full bool
}

func newRing(capacity int) *ring {
	if capacity <= 0 || capacity&(capacity-1) != 0 {
		panic("qmetrics: ring: capacity must be a power of 2")
	}
	return &ring{s: make([]float64, capacity)}
}

func (x *ring) mask(v uint) uint { return v & (uint(len(x.s)) - 1) }

func (x *ring) push(v float64) {
	x.s[x.mask(x.w)] = v
	x.w++
	if x.full || int(x.w-x.r) > len(x.s) {
		x.full = true
		x.r = x.w - uint(len(x.s))
	}
}

func (x *ring) len() int {
	if x.full {
		return len(x.s)
	}
	return int(x.w - x.r)
}

func (x *ring) sum() float64 {
	var total float64
	n := x.len()
	for i := 0; i < n; i++ {
		total += x.s[x.mask(x.r+uint(i))]
	}
	return total
}

// Velocity tracks the "simulation velocity" closed-loop metric the bin
// optimizer uses: simulation_velocity = Δt_sim / Δt_cpu (spec.md §4.5).
// It accumulates simulated and wall-clock time since the last Reset, plus
// a rolling window of recent per-batch velocity samples for smoothing,
// mirroring catrate's sliding-window design applied to a rate rather than
// an event count.
type Velocity struct {
	window   *ring
	simStart float64
	wallNow  func() time.Time
	started  time.Time
	simTime  float64
}

// NewVelocity creates a Velocity tracker with a rolling window of the
// given power-of-two sample capacity (e.g. 16).
func NewVelocity(windowCapacity int) *Velocity {
	return &Velocity{
		window:  newRing(windowCapacity),
		wallNow: time.Now,
	}
}

// Reset starts a new measurement interval at simulated time simTime.
func (v *Velocity) Reset(simTime float64) {
	v.simStart = simTime
	v.started = v.wallNow()
}

// Observe records that the simulation has reached simTime "now" in wall
// clock terms, folding Δt_sim/Δt_cpu for the elapsed interval into the
// rolling window, then resets the interval. Returns the instantaneous
// velocity for this interval (0 if no wall time has elapsed yet).
func (v *Velocity) Observe(simTime float64) float64 {
	elapsedWall := v.wallNow().Sub(v.started).Seconds()
	elapsedSim := simTime - v.simStart
	var velocity float64
	if elapsedWall > 0 {
		velocity = elapsedSim / elapsedWall
		v.window.push(velocity)
	}
	v.Reset(simTime)
	return velocity
}

// ElapsedWall returns the wall-clock duration since Reset, without mutating
// state — used to decide whether "at least one second of CPU has elapsed"
// (spec.md §4.5) before recomputing a bin size.
func (v *Velocity) ElapsedWall() time.Duration {
	return v.wallNow().Sub(v.started)
}

// Mean returns the rolling-window average velocity, or 0 if no samples yet.
func (v *Velocity) Mean() float64 {
	n := v.window.len()
	if n == 0 {
		return 0
	}
	return v.window.sum() / float64(n)
}
