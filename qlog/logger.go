// Package qlog provides the structured-logging facade consumed by the
// simulation core. It mirrors the shape of the teacher's own
// eventloop.Logger interface (Level/IsEnabled/Log) but is backed, in its
// default implementation, by github.com/rs/zerolog rather than a hand
// rolled JSON/pretty-print encoder — the real ecosystem dependency the
// ingredient exists to wire up.
package qlog

import (
	"io"
	"os"

	"github.com/rs/zerolog"
)

// Level mirrors eventloop.LogLevel's four severities.
type Level int32

const (
	LevelDebug Level = iota
	LevelInfo
	LevelWarn
	LevelError
)

func (l Level) String() string {
	switch l {
	case LevelDebug:
		return "DEBUG"
	case LevelInfo:
		return "INFO"
	case LevelWarn:
		return "WARN"
	case LevelError:
		return "ERROR"
	default:
		return "UNKNOWN"
	}
}

func (l Level) zerolog() zerolog.Level {
	switch l {
	case LevelDebug:
		return zerolog.DebugLevel
	case LevelInfo:
		return zerolog.InfoLevel
	case LevelWarn:
		return zerolog.WarnLevel
	case LevelError:
		return zerolog.ErrorLevel
	default:
		return zerolog.InfoLevel
	}
}

// Field is a single structured key/value attached to a diagnostic line.
type Field struct {
	Key string
	Val any
}

func F(key string, val any) Field { return Field{Key: key, Val: val} }

// Logger is the logging type the simulation core depends on. A nil
// *Logger, and a Logger built by NewNoOp or by New with a nil writer,
// behave as a no-op, so the hot path never pays for disabled logging,
// matching the teacher's NewNoOpLogger contract.
type Logger struct {
	zl      zerolog.Logger
	enabled bool
	min     Level
}

// New wraps w (e.g. os.Stderr) at the given minimum level. Passing a nil
// io.Writer returns a logger that discards everything.
func New(w io.Writer, min Level) *Logger {
	if w == nil {
		return &Logger{enabled: false}
	}
	zl := zerolog.New(w).Level(min.zerolog()).With().Timestamp().Logger()
	return &Logger{zl: zl, enabled: true, min: min}
}

// NewNoOp returns a logger that discards every entry, at zero allocation
// cost past the IsEnabled check.
func NewNoOp() *Logger { return &Logger{enabled: false} }

// Default returns a JSON-lines logger on os.Stderr at LevelInfo,
// convenient for cmd/qssrun and tests.
func Default() *Logger { return New(os.Stderr, LevelInfo) }

// IsEnabled reports whether a message at level would be emitted.
func (l *Logger) IsEnabled(level Level) bool {
	return l != nil && l.enabled && level >= l.min
}

// Model/time diagnostic prefixing, per spec.md §7: "diagnostic prefixed
// with model name and current simulation time".

func (l *Logger) log(level Level, model string, simTime float64, msg string, fields ...Field) {
	if !l.IsEnabled(level) {
		return
	}
	ev := l.zl.WithLevel(level.zerolog())
	ev = ev.Str("model", model).Float64("t", simTime)
	for _, f := range fields {
		ev = addField(ev, f)
	}
	ev.Msg(msg)
}

func addField(ev *zerolog.Event, f Field) *zerolog.Event {
	switch v := f.Val.(type) {
	case string:
		return ev.Str(f.Key, v)
	case int:
		return ev.Int(f.Key, v)
	case int64:
		return ev.Int64(f.Key, v)
	case uint32:
		return ev.Uint32(f.Key, v)
	case float64:
		return ev.Float64(f.Key, v)
	case bool:
		return ev.Bool(f.Key, v)
	case error:
		return ev.AnErr(f.Key, v)
	default:
		return ev.Interface(f.Key, v)
	}
}

func (l *Logger) Debug(model string, simTime float64, msg string, fields ...Field) {
	l.log(LevelDebug, model, simTime, msg, fields...)
}

func (l *Logger) Info(model string, simTime float64, msg string, fields ...Field) {
	l.log(LevelInfo, model, simTime, msg, fields...)
}

func (l *Logger) Warn(model string, simTime float64, msg string, fields ...Field) {
	l.log(LevelWarn, model, simTime, msg, fields...)
}

func (l *Logger) Error(model string, simTime float64, msg string, fields ...Field) {
	l.log(LevelError, model, simTime, msg, fields...)
}
