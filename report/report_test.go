package report

import (
	"strings"
	"testing"
	"time"

	"github.com/qss-go/engine/qtime"
	"github.com/stretchr/testify/require"
)

func TestRecorderCapturesSamplesAndEvents(t *testing.T) {
	r := NewRecorder()
	r.Sample("x", 1.0, 2.5)
	r.Event("z", "ZeroCrossing", qtime.At(1.0))

	require.Len(t, r.Samples, 1)
	require.Equal(t, "x", r.Samples[0].Name)
	require.Len(t, r.Events, 1)
	require.Equal(t, "ZeroCrossing", r.Events[0].Kind)
}

func TestCSVSinkWritesHeaderOnce(t *testing.T) {
	var buf strings.Builder
	sink := NewCSVSink(&buf)
	sink.Sample("x", 1.0, 2.0)
	sink.Sample("x", 2.0, 3.0)

	out := buf.String()
	require.Equal(t, 1, strings.Count(out, "kind,name,t,step,value"))
	require.Contains(t, out, "sample,x,1,,2")
}

func TestStepsFileSinkFormatsEventLine(t *testing.T) {
	var buf strings.Builder
	sink := NewStepsFileSink(&buf)
	sink.Event("ball.h", "Handler", qtime.Time{Real: 3.5, Step: 2})
	require.Contains(t, buf.String(), "Handler")
	require.Contains(t, buf.String(), "ball.h")
}

func TestStatsTracksAverageBinSizeAndLatency(t *testing.T) {
	s := NewStats()
	s.Begin()
	s.RecordBin(1, time.Millisecond)
	s.RecordBin(3, 2*time.Millisecond)

	require.Equal(t, 2.0, s.AverageBinSize())
	require.Equal(t, 1, s.SimultaneousBatches)
	require.GreaterOrEqual(t, s.LatencyP50(), 0.0)
}
