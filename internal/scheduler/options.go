// Copyright 2026 Joseph Cumines
//
// Permission to use, copy, modify, and distribute this software for any
// purpose with or without fee is hereby granted, provided that this copyright
// notice appears in all copies.

package scheduler

import (
	"github.com/nirvana-core/ncore/internal/corelog"
	"github.com/nirvana-core/ncore/internal/lockfree"
)

type options struct {
	rng *lockfree.XorShiftRNG
	log *corelog.Logger
}

// Option configures a Master at construction time.
type Option interface {
	applyMaster(*options)
}

type optionFunc func(*options)

func (f optionFunc) applyMaster(o *options) { f(o) }

// WithRNG supplies the shared xorshift RNG for the master queue's skip
// list (spec.md §4.2's "shared by all lists").
func WithRNG(rng *lockfree.XorShiftRNG) Option {
	return optionFunc(func(o *options) { o.rng = rng })
}

// WithLogger attaches a structured logger for dispatch diagnostics.
func WithLogger(l *corelog.Logger) Option {
	return optionFunc(func(o *options) { o.log = l })
}

func resolveOptions(opts []Option) *options {
	o := &options{log: corelog.Noop()}
	for _, opt := range opts {
		if opt != nil {
			opt.applyMaster(o)
		}
	}
	return o
}
