// Copyright 2026 Joseph Cumines
//
// Permission to use, copy, modify, and distribute this software for any
// purpose with or without fee is hereby granted, provided that this copyright
// notice appears in all copies.

package execdomain

import "github.com/nirvana-core/ncore/internal/corelog"

type options struct {
	log *corelog.Logger
}

// Option configures a Manager at construction time.
type Option interface {
	applyManager(*options)
}

type optionFunc func(*options)

func (f optionFunc) applyManager(o *options) { f(o) }

// WithLogger attaches a structured logger used for crash reporting.
func WithLogger(l *corelog.Logger) Option {
	return optionFunc(func(o *options) { o.log = l })
}

func resolveOptions(opts []Option) *options {
	o := &options{log: corelog.Noop()}
	for _, opt := range opts {
		if opt != nil {
			opt.applyManager(o)
		}
	}
	return o
}
