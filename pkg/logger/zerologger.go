package logger

import (
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
)

type ZeroLogger struct {
	logger zerolog.Logger
}

// NewZeroLog returns a logger writing JSON lines to stderr. Debug output is
// only emitted when debug is true.
func NewZeroLog(debug bool) *ZeroLogger {
	return NewWithWriter(debug, os.Stderr)
}

func NewWithWriter(debug bool, w io.Writer) *ZeroLogger {
	level := zerolog.InfoLevel
	if debug {
		level = zerolog.DebugLevel
	}
	logger := zerolog.New(w).Level(level).With().Timestamp().Str("component", "otelmobile").Logger()

	return &ZeroLogger{logger: logger}
}

// With returns a child logger that stamps fields on every line.
func (l *ZeroLogger) With(fields ...Field) *ZeroLogger {
	ctx := l.logger.With()
	for _, f := range fields {
		ctx = ctx.Interface(f.Key, f.Value)
	}
	return &ZeroLogger{logger: ctx.Logger()}
}

func (l *ZeroLogger) Debug(msg string, fields ...Field) { write(l.logger.Debug(), msg, fields) }
func (l *ZeroLogger) Info(msg string, fields ...Field)  { write(l.logger.Info(), msg, fields) }
func (l *ZeroLogger) Warn(msg string, fields ...Field)  { write(l.logger.Warn(), msg, fields) }
func (l *ZeroLogger) Error(msg string, fields ...Field) { write(l.logger.Error(), msg, fields) }

// write keeps common value types typed in the JSON output. A nil event
// means the level is disabled.
func write(ev *zerolog.Event, msg string, fields []Field) {
	if ev == nil {
		return
	}
	for _, f := range fields {
		switch v := f.Value.(type) {
		case string:
			ev = ev.Str(f.Key, v)
		case error:
			ev = ev.AnErr(f.Key, v)
		case time.Duration:
			ev = ev.Dur(f.Key, v)
		case time.Time:
			ev = ev.Time(f.Key, v)
		case bool:
			ev = ev.Bool(f.Key, v)
		case int:
			ev = ev.Int(f.Key, v)
		case int64:
			ev = ev.Int64(f.Key, v)
		case float64:
			ev = ev.Float64(f.Key, v)
		default:
			ev = ev.Interface(f.Key, v)
		}
	}
	ev.Msg(msg)
}
