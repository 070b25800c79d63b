// Package logging wraps zerolog behind the application.Logger interface,
// so the rest of the codebase never imports zerolog directly.
package logging

import (
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"

	"duet/application"
)

// Config controls the console/JSON logger constructed by New.
type Config struct {
	Level   zerolog.Level
	Console bool // human-readable output instead of JSON, for interactive CLI use
	Output  io.Writer
}

type zerologLogger struct {
	log zerolog.Logger
}

var _ application.Logger = (*zerologLogger)(nil)

// New builds a Logger from cfg. A nil cfg.Output defaults to stderr, keeping
// stdout free for command output (e.g. the code printed by `duet pair`).
func New(cfg Config) application.Logger {
	zerolog.TimeFieldFormat = time.RFC3339Nano

	out := cfg.Output
	if out == nil {
		out = os.Stderr
	}
	if cfg.Console {
		out = zerolog.ConsoleWriter{Out: out, TimeFormat: time.Kitchen}
	}

	l := zerolog.New(out).Level(cfg.Level).With().Timestamp().Logger()
	return &zerologLogger{log: l}
}

// NewNop returns a Logger that discards everything, for tests.
func NewNop() application.Logger {
	return &zerologLogger{log: zerolog.New(io.Discard).Level(zerolog.Disabled)}
}

func (z *zerologLogger) Debug(msg string, kv ...any) {
	withFields(z.log.Debug(), kv).Msg(msg)
}

func (z *zerologLogger) Info(msg string, kv ...any) {
	withFields(z.log.Info(), kv).Msg(msg)
}

func (z *zerologLogger) Warn(msg string, kv ...any) {
	withFields(z.log.Warn(), kv).Msg(msg)
}

func (z *zerologLogger) Error(msg string, err error, kv ...any) {
	withFields(z.log.Error().Err(err), kv).Msg(msg)
}

// withFields applies alternating key/value pairs to an in-flight event.
// A trailing unpaired key is logged under "extra" rather than dropped.
func withFields(e *zerolog.Event, kv []any) *zerolog.Event {
	for i := 0; i+1 < len(kv); i += 2 {
		key, ok := kv[i].(string)
		if !ok {
			continue
		}
		e = e.Interface(key, kv[i+1])
	}
	if len(kv)%2 == 1 {
		e = e.Interface("extra", kv[len(kv)-1])
	}
	return e
}
