// Copyright 2026 Joseph Cumines
//
// Permission to use, copy, modify, and distribute this software for any
// purpose with or without fee is hereby granted, provided that this copyright
// notice appears in all copies.

package wait

import "time"

type options struct {
	defaultTimeout time.Duration
}

// Option configures an EventSyncTimeout or EventUser at construction.
type Option interface {
	applyWait(*options)
}

type optionFunc func(*options)

func (f optionFunc) applyWait(o *options) { f(o) }

// WithDefaultTimeout sets the timeout a WaitDefault call uses, so
// callers with one fixed policy (e.g. every RPC waits at most the
// memory context's oneway default) don't have to thread a duration
// through every call site.
func WithDefaultTimeout(d time.Duration) Option {
	return optionFunc(func(o *options) { o.defaultTimeout = d })
}

func resolveOptions(opts []Option) *options {
	o := &options{defaultTimeout: Infinite}
	for _, opt := range opts {
		if opt != nil {
			opt.applyWait(o)
		}
	}
	return o
}
