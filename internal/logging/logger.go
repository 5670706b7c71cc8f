// Package logging provides the structured logger shared by every
// store and pipeline stage.
package logging

import (
	"os"
	"time"

	"github.com/rs/zerolog"
)

// Logger is the interface every package in this module logs through.
type Logger interface {
	Debug(msg string, keyvals ...any)
	Info(msg string, keyvals ...any)
	Warn(msg string, keyvals ...any)
	Error(msg string, keyvals ...any)
	With(keyvals ...any) Logger
}

type zeroLogger struct {
	log zerolog.Logger
}

// New returns a Logger backed by zerolog, writing leveled console
// output to w.
func New(w *os.File, level zerolog.Level) Logger {
	zl := zerolog.New(zerolog.ConsoleWriter{Out: w, TimeFormat: time.RFC3339}).
		Level(level).
		With().Timestamp().Logger()
	return &zeroLogger{log: zl}
}

// NewStd returns a Logger writing to stdout at info level.
func NewStd() Logger {
	return New(os.Stdout, zerolog.InfoLevel)
}

func (z *zeroLogger) event(e *zerolog.Event, msg string, keyvals ...any) {
	for i := 0; i+1 < len(keyvals); i += 2 {
		key, ok := keyvals[i].(string)
		if !ok {
			continue
		}
		e = e.Interface(key, keyvals[i+1])
	}
	e.Msg(msg)
}

func (z *zeroLogger) Debug(msg string, keyvals ...any) { z.event(z.log.Debug(), msg, keyvals...) }
func (z *zeroLogger) Info(msg string, keyvals ...any)  { z.event(z.log.Info(), msg, keyvals...) }
func (z *zeroLogger) Warn(msg string, keyvals ...any)  { z.event(z.log.Warn(), msg, keyvals...) }
func (z *zeroLogger) Error(msg string, keyvals ...any) { z.event(z.log.Error(), msg, keyvals...) }

func (z *zeroLogger) With(keyvals ...any) Logger {
	ctx := z.log.With()
	for i := 0; i+1 < len(keyvals); i += 2 {
		key, ok := keyvals[i].(string)
		if !ok {
			continue
		}
		ctx = ctx.Interface(key, keyvals[i+1])
	}
	return &zeroLogger{log: ctx.Logger()}
}

type nopLogger struct{}

// Nop returns a Logger that discards everything, for tests.
func Nop() Logger { return nopLogger{} }

func (nopLogger) Debug(string, ...any)   {}
func (nopLogger) Info(string, ...any)    {}
func (nopLogger) Warn(string, ...any)    {}
func (nopLogger) Error(string, ...any)   {}
func (nopLogger) With(...any) Logger     { return nopLogger{} }
