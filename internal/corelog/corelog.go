// Copyright 2026 Joseph Cumines
//
// Permission to use, copy, modify, and distribute this software for any
// purpose with or without fee is hereby granted, provided that this copyright
// notice appears in all copies.

// Package corelog is the structured-logging facade shared by every
// Nirvana Core component. It generalizes eventloop's package-level
// SetStructuredLogger/Logger design into a per-CoreContext logger value,
// so independent cores (as required by spec.md §9) never share logging
// state, while still defaulting to a single, low-overhead sink.
package corelog

import (
	"os"

	"github.com/joeycumines/izerolog"
	"github.com/joeycumines/logiface"
	"github.com/rs/zerolog"
)

// Logger is the type every core component holds and logs through.
type Logger = logiface.Logger[*izerolog.Event]

// New builds a Logger writing newline-delimited JSON to w (os.Stderr if
// nil) at or above level.
func New(w *os.File, level logiface.Level) *Logger {
	if w == nil {
		w = os.Stderr
	}
	z := zerolog.New(w).With().Timestamp().Logger()
	return logiface.New[*izerolog.Event](
		izerolog.WithZerolog(z),
		logiface.WithLevel[*izerolog.Event](level),
	)
}

// Noop returns a Logger that discards everything, for tests and embedded
// hosts that configure logging externally.
func Noop() *Logger {
	return New(nil, logiface.LevelDisabled)
}

// Fields is a convenience for attaching a fixed set of key/value pairs
// (e.g. domain_id, sync_domain_id) to every subsequent log line produced
// from a cloned Context, mirroring how eventloop field names are chosen:
// snake_case, narrow, and stable across releases.
func Fields(l *Logger, kv ...any) *Logger {
	ctx := l.Clone()
	for i := 0; i+1 < len(kv); i += 2 {
		key, _ := kv[i].(string)
		ctx = ctx.Interface(key, kv[i+1])
	}
	return ctx.Logger()
}
