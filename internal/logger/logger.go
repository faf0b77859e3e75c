// Package logger wraps zerolog with the structured, field-based calling
// convention used across the gateway (session id, org id, message id as
// fields rather than interpolated into the message string).
package logger

import (
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// Fields is a map of structured key-value pairs attached to a log entry.
type Fields map[string]interface{}

// Logger is the structured logging interface every component depends on.
type Logger interface {
	Debug(msg string)
	Info(msg string)
	Warn(msg string)
	Error(msg string)

	DebugWithFields(msg string, fields Fields)
	InfoWithFields(msg string, fields Fields)
	WarnWithFields(msg string, fields Fields)
	ErrorWithFields(msg string, fields Fields)

	WithError(err error) Logger
	With(fields Fields) Logger
}

type zlog struct {
	z zerolog.Logger
}

// New builds a Logger. format is "console" (human-readable, for local dev)
// or "json" (structured, for production); level is one of
// debug/info/warn/error.
func New(level, format string, out io.Writer) Logger {
	if out == nil {
		out = os.Stdout
	}

	var writer io.Writer = out
	if format != "json" {
		writer = zerolog.ConsoleWriter{Out: out, TimeFormat: time.RFC3339}
	}

	zl := zerolog.New(writer).With().Timestamp().Logger().Level(parseLevel(level))
	return &zlog{z: zl}
}

func parseLevel(level string) zerolog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return zerolog.DebugLevel
	case "warn", "warning":
		return zerolog.WarnLevel
	case "error":
		return zerolog.ErrorLevel
	case "":
		return zerolog.InfoLevel
	default:
		return zerolog.InfoLevel
	}
}

func (l *zlog) Debug(msg string) { l.z.Debug().Msg(msg) }
func (l *zlog) Info(msg string)  { l.z.Info().Msg(msg) }
func (l *zlog) Warn(msg string)  { l.z.Warn().Msg(msg) }
func (l *zlog) Error(msg string) { l.z.Error().Msg(msg) }

func (l *zlog) DebugWithFields(msg string, fields Fields) { withFields(l.z.Debug(), fields).Msg(msg) }
func (l *zlog) InfoWithFields(msg string, fields Fields)  { withFields(l.z.Info(), fields).Msg(msg) }
func (l *zlog) WarnWithFields(msg string, fields Fields)  { withFields(l.z.Warn(), fields).Msg(msg) }
func (l *zlog) ErrorWithFields(msg string, fields Fields) { withFields(l.z.Error(), fields).Msg(msg) }

func (l *zlog) WithError(err error) Logger {
	return &zlog{z: l.z.With().Err(err).Logger()}
}

func (l *zlog) With(fields Fields) Logger {
	ctx := l.z.With()
	for k, v := range fields {
		ctx = ctx.Interface(k, v)
	}
	return &zlog{z: ctx.Logger()}
}

func withFields(e *zerolog.Event, fields Fields) *zerolog.Event {
	for k, v := range fields {
		e = e.Interface(k, v)
	}
	return e
}

// Nop returns a Logger that discards everything, for tests.
func Nop() Logger {
	return &zlog{z: zerolog.Nop()}
}
