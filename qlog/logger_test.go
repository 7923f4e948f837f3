package qlog

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNoOpDiscardsEverything(t *testing.T) {
	l := NewNoOp()
	require.False(t, l.IsEnabled(LevelError))
	// Should not panic even though there's no writer underneath.
	l.Error("model", 1.0, "boom")
}

func TestNilLoggerIsNoOp(t *testing.T) {
	var l *Logger
	require.False(t, l.IsEnabled(LevelInfo))
	l.Info("model", 0, "should not panic")
}

func TestLevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	l := New(&buf, LevelWarn)
	l.Info("m", 1, "hidden")
	require.Empty(t, buf.String())

	l.Warn("m", 1, "visible")
	require.Contains(t, buf.String(), "visible")
	require.Contains(t, buf.String(), `"model":"m"`)
}

func TestFieldsAndPrefixing(t *testing.T) {
	var buf bytes.Buffer
	l := New(&buf, LevelDebug)
	l.Error("bouncing-ball", 4.2, "pass limit exceeded", F("variable", "h"), F("passes", 5))
	out := buf.String()
	require.True(t, strings.Contains(out, `"variable":"h"`))
	require.True(t, strings.Contains(out, `"passes":5`))
	require.True(t, strings.Contains(out, `"t":4.2`))
}
