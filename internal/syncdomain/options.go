// Copyright 2026 Joseph Cumines
//
// Permission to use, copy, modify, and distribute this software for any
// purpose with or without fee is hereby granted, provided that this copyright
// notice appears in all copies.

package syncdomain

import "github.com/nirvana-core/ncore/internal/lockfree"

type options struct {
	rng *lockfree.XorShiftRNG
}

// Option configures a Domain at construction time.
type Option interface {
	applyDomain(*options)
}

type optionFunc func(*options)

func (f optionFunc) applyDomain(o *options) { f(o) }

// WithRNG supplies the shared xorshift RNG for the domain's queue
// (spec.md §4.2's "shared by all lists").
func WithRNG(rng *lockfree.XorShiftRNG) Option {
	return optionFunc(func(o *options) { o.rng = rng })
}

func resolveOptions(opts []Option) *options {
	o := &options{}
	for _, opt := range opts {
		if opt != nil {
			opt.applyDomain(o)
		}
	}
	return o
}
