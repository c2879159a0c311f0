// Package obslog is the structured-logging façade shared by failure, event
// and protocol. It wraps logiface, configured with the izerolog/zerolog writer,
// behind a narrow interface so the rest of the module never imports logiface
// directly.
package obslog

import (
	"io"
	"os"
	"sync"

	"github.com/joeycumines/izerolog"
	"github.com/joeycumines/logiface"
	"github.com/rs/zerolog"
)

// Logger is the narrow logging surface used by this module. It mirrors the
// handful of severities the core actually emits: CRITICAL (for a Failure's
// one-shot log), ERROR (panics swallowed from event listeners) and WARNING
// (unknown event names, connection idle timeouts).
type Logger interface {
	Crit(msg string, fields ...Field)
	Error(msg string, fields ...Field)
	Warn(msg string, fields ...Field)
}

// Field is a deferred key/value pair applied to the log builder. Kept as a
// function so callers don't need to import logiface's Builder type.
type Field func(b *logiface.Builder[*izerolog.Event]) *logiface.Builder[*izerolog.Event]

// Str attaches a string field.
func Str(key, val string) Field {
	return func(b *logiface.Builder[*izerolog.Event]) *logiface.Builder[*izerolog.Event] {
		return b.Str(key, val)
	}
}

// Int attaches an int field.
func Int(key string, val int) Field {
	return func(b *logiface.Builder[*izerolog.Event]) *logiface.Builder[*izerolog.Event] {
		return b.Int(key, val)
	}
}

// Err attaches an error field.
func Err(err error) Field {
	return func(b *logiface.Builder[*izerolog.Event]) *logiface.Builder[*izerolog.Event] {
		return b.Err(err)
	}
}

type logger struct {
	l *logiface.Logger[*izerolog.Event]
}

// New builds a Logger writing JSON lines to w at the given minimum level.
func New(w io.Writer, level logiface.Level) Logger {
	zl := zerolog.New(w).With().Timestamp().Logger()
	return &logger{
		l: logiface.New[*izerolog.Event](
			izerolog.WithZerolog(zl),
			logiface.WithLevel[*izerolog.Event](level),
		),
	}
}

var (
	defaultOnce   sync.Once
	defaultLogger Logger
)

// Default returns a package-wide Logger writing to os.Stderr at
// LevelInformational, lazily constructed. Components that are not given an
// explicit Logger (via their functional options) fall back to this one.
func Default() Logger {
	defaultOnce.Do(func() {
		defaultLogger = New(os.Stderr, logiface.LevelInformational)
	})
	return defaultLogger
}

func (g *logger) Crit(msg string, fields ...Field)  { g.log(g.l.Crit(), msg, fields) }
func (g *logger) Error(msg string, fields ...Field) { g.log(g.l.Err(), msg, fields) }
func (g *logger) Warn(msg string, fields ...Field)  { g.log(g.l.Warning(), msg, fields) }

func (g *logger) log(b *logiface.Builder[*izerolog.Event], msg string, fields []Field) {
	for _, f := range fields {
		b = f(b)
	}
	b.Log(msg)
}
