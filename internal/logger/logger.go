// Package logger writes structured JSON log lines to stdout.
//
// Two entry points share the same writer: Log, which serializes arbitrary
// values (cycles, big numbers and other non-JSON values included) and never
// fails, and the leveled Debug/Info/Warn/Error helpers used for service logs.
package logger

import (
	"io"
	"os"
	"strings"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
)

const serializeFailure = "Failed to serialize log entry"

func init() {
	zerolog.TimestampFieldName = "timestamp"
	zerolog.TimeFieldFormat = time.RFC3339Nano
	zerolog.TimestampFunc = func() time.Time { return time.Now().UTC() }
}

// Logger writes JSON lines to a single writer
type Logger struct {
	zl zerolog.Logger
}

// Option configures a Logger
type Option func(*options)

type options struct {
	level   zerolog.Level
	console bool
}

// WithLevel sets the minimum level for the leveled helpers.
// Unknown values fall back to info. Log is not affected by the level.
func WithLevel(level string) Option {
	return func(o *options) {
		lvl, err := zerolog.ParseLevel(strings.ToLower(strings.TrimSpace(level)))
		if err != nil || lvl == zerolog.NoLevel {
			lvl = zerolog.InfoLevel
		}
		o.level = lvl
	}
}

// WithConsole switches to zerolog's human-readable console output
func WithConsole(enabled bool) Option {
	return func(o *options) {
		o.console = enabled
	}
}

// New creates a Logger writing to w
func New(w io.Writer, opts ...Option) *Logger {
	o := options{level: zerolog.InfoLevel}
	for _, opt := range opts {
		opt(&o)
	}

	if o.console {
		w = zerolog.ConsoleWriter{Out: w, TimeFormat: time.RFC3339}
	}

	return &Logger{
		zl: zerolog.New(w).Level(o.level),
	}
}

// Log writes {"timestamp":...,"messages":[values...]} as one line, with the
// timestamp first.
// It never panics. If the values cannot be serialized it writes
// {"timestamp":...,"error":"Failed to serialize log entry","details":...}.
func (l *Logger) Log(values ...any) {
	payload, err := encodeMessages(values)
	if err != nil {
		l.zl.Log().
			Timestamp().
			Str("error", serializeFailure).
			Str("details", err.Error()).
			Send()
		return
	}
	l.zl.Log().Timestamp().RawJSON("messages", payload).Send()
}

// Debug logs msg with fields at debug level
func (l *Logger) Debug(msg string, fields map[string]any) {
	l.event(l.zl.Debug(), msg, fields)
}

// Info logs msg with fields at info level
func (l *Logger) Info(msg string, fields map[string]any) {
	l.event(l.zl.Info(), msg, fields)
}

// Warn logs msg with fields at warn level
func (l *Logger) Warn(msg string, fields map[string]any) {
	l.event(l.zl.Warn(), msg, fields)
}

// Error logs msg with fields at error level
func (l *Logger) Error(msg string, fields map[string]any) {
	l.event(l.zl.Error(), msg, fields)
}

func (l *Logger) event(e *zerolog.Event, msg string, fields map[string]any) {
	if e == nil {
		return
	}
	e = e.Timestamp()
	if len(fields) > 0 {
		safe := make(map[string]any, len(fields))
		for k, v := range fields {
			safe[k] = Normalize(v)
		}
		e = e.Fields(safe)
	}
	e.Msg(msg)
}

var std atomic.Pointer[Logger]

func init() {
	std.Store(New(os.Stdout))
}

// Default returns the process-wide logger
func Default() *Logger {
	return std.Load()
}

// SetDefault replaces the process-wide logger. A nil logger is ignored.
func SetDefault(l *Logger) {
	if l != nil {
		std.Store(l)
	}
}

// Log writes values through the process-wide logger
func Log(values ...any) {
	Default().Log(values...)
}
