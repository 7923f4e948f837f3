// Package report implements the simulation's result-output boundary
// (SPEC_FULL.md §4.12): a Sink interface for sampled values and discrete
// events, an in-memory Recorder reference sink for tests, and per-run
// Stats accumulation using qmetrics' P² quantile tracker.
package report

import (
	"fmt"
	"io"
	"time"

	"github.com/qss-go/engine/qmetrics"
	"github.com/qss-go/engine/qtime"
)

// Sink receives sampled continuous values and discrete/event markers as
// the simulation loop runs. Implementations must not block materially —
// they are called from the hot path.
type Sink interface {
	Sample(name string, t float64, v float64)
	Event(name string, kind string, at qtime.Time)
}

// Recorder is an in-memory Sink, the reference implementation used by
// package tests that need to assert on emitted output without setting up
// an io.Writer.
type Recorder struct {
	Samples []SampleRecord
	Events  []EventRecord
}

type SampleRecord struct {
	Name string
	T    float64
	V    float64
}

type EventRecord struct {
	Name string
	Kind string
	At   qtime.Time
}

// NewRecorder creates an empty Recorder.
func NewRecorder() *Recorder { return &Recorder{} }

func (r *Recorder) Sample(name string, t float64, v float64) {
	r.Samples = append(r.Samples, SampleRecord{Name: name, T: t, V: v})
}

func (r *Recorder) Event(name string, kind string, at qtime.Time) {
	r.Events = append(r.Events, EventRecord{Name: name, Kind: kind, At: at})
}

// CSVSink writes one CSV row per sample and per event, under the header
// kind,name,t,step,value, to an io.Writer using fmt.Fprintf rather than
// encoding/csv — the flat tabular case the teacher's own metrics/logging
// packages never need a richer encoder for (see DESIGN.md). Names are
// written as given, without CSV quoting.
type CSVSink struct {
	w        io.Writer
	wroteHdr bool
}

// NewCSVSink wraps w. The header row is written lazily on the first
// Sample/Event call.
func NewCSVSink(w io.Writer) *CSVSink { return &CSVSink{w: w} }

func (c *CSVSink) header() {
	if c.wroteHdr {
		return
	}
	fmt.Fprintln(c.w, "kind,name,t,step,value")
	c.wroteHdr = true
}

func (c *CSVSink) Sample(name string, t float64, v float64) {
	c.header()
	fmt.Fprintf(c.w, "sample,%s,%g,,%g\n", name, t, v)
}

func (c *CSVSink) Event(name string, kind string, at qtime.Time) {
	c.header()
	fmt.Fprintf(c.w, "event,%s,%g,%d,%s\n", name, at.Real, at.Step, kind)
}

// StepsFileSink writes a plain-text log line per sample and per event (the "steps file"
// diagnostic trace FMU-based QSS tools conventionally emit), using
// fmt.Fprintf directly rather than a templating package.
type StepsFileSink struct {
	w io.Writer
}

// NewStepsFileSink wraps w.
func NewStepsFileSink(w io.Writer) *StepsFileSink { return &StepsFileSink{w: w} }

func (s *StepsFileSink) Sample(name string, t float64, v float64) {
	fmt.Fprintf(s.w, "t=%-14g sample %-20s = %g\n", t, name, v)
}

func (s *StepsFileSink) Event(name string, kind string, at qtime.Time) {
	fmt.Fprintf(s.w, "t=%-14g step=%-4d %-20s %s\n", at.Real, at.Step, kind, name)
}

// Stats accumulates per-run counters and the processing-latency quantiles
// spec.md's diagnostics table and SPEC_FULL.md §4.12 call for.
type Stats struct {
	DiscreteEvents      int
	QSSRequants         int
	SimultaneousBatches int
	ZeroCrossings       int
	PassWatchdogRaises  int

	binSizeSum   int
	binSizeCount int

	latency *qmetrics.MultiQuantile

	start   time.Time
	wallNow func() time.Time
}

// NewStats creates a Stats tracker with P50/P90/P99 latency quantiles.
func NewStats() *Stats {
	return &Stats{
		latency: qmetrics.NewMultiQuantile(0.5, 0.9, 0.99),
		wallNow: time.Now,
	}
}

// Begin marks the start of the run's wall-clock stopwatch.
func (s *Stats) Begin() { s.start = s.wallNow() }

// RecordBin folds one processed bin's size and wall-clock processing
// duration into the running statistics.
func (s *Stats) RecordBin(size int, elapsed time.Duration) {
	s.binSizeSum += size
	s.binSizeCount++
	if size > 1 {
		s.SimultaneousBatches++
	}
	s.latency.Update(elapsed.Seconds())
}

// AverageBinSize returns the mean bin size observed so far, or 0 if none.
func (s *Stats) AverageBinSize() float64 {
	if s.binSizeCount == 0 {
		return 0
	}
	return float64(s.binSizeSum) / float64(s.binSizeCount)
}

// Elapsed returns wall-clock time since Begin.
func (s *Stats) Elapsed() time.Duration { return s.wallNow().Sub(s.start) }

// LatencyP50, LatencyP90, LatencyP99 report the per-bin processing
// latency distribution in seconds.
func (s *Stats) LatencyP50() float64 { return s.latency.Quantile(0) }
func (s *Stats) LatencyP90() float64 { return s.latency.Quantile(1) }
func (s *Stats) LatencyP99() float64 { return s.latency.Quantile(2) }
