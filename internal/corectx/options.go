// Copyright 2026 Joseph Cumines
//
// Permission to use, copy, modify, and distribute this software for any
// purpose with or without fee is hereby granted, provided that this copyright
// notice appears in all copies.

package corectx

import (
	"time"

	"github.com/nirvana-core/ncore/internal/corelog"
	"github.com/nirvana-core/ncore/internal/heap"
	"github.com/nirvana-core/ncore/internal/memctx"
	"github.com/nirvana-core/ncore/internal/port"
	"github.com/nirvana-core/ncore/internal/scheduler"
)

type options struct {
	port              port.Port
	workers           int
	policy            memctx.Policy
	log               *corelog.Logger
	heapOpts          []heap.Option
	schedOpts         []scheduler.Option
	housekeepInterval time.Duration
}

// Option configures a Context at construction time.
type Option interface {
	applyContext(*options)
}

type optionFunc func(*options)

func (f optionFunc) applyContext(o *options) { f(o) }

// WithPort overrides the production OS port, primarily for tests that
// want the in-memory port.NewFake().
func WithPort(p port.Port) Option {
	return optionFunc(func(o *options) { o.port = p })
}

// WithWorkers sets the master scheduler's worker count. Default: 1.
func WithWorkers(n int) Option {
	return optionFunc(func(o *options) { o.workers = n })
}

// WithDefaultPolicy sets the process memory context's default async/
// oneway deadlines.
func WithDefaultPolicy(p memctx.Policy) Option {
	return optionFunc(func(o *options) { o.policy = p })
}

// WithLogger attaches a structured logger shared by the scheduler and
// execution-domain manager this context builds.
func WithLogger(l *corelog.Logger) Option {
	return optionFunc(func(o *options) { o.log = l })
}

// WithHeapOptions forwards additional options to the process heap's
// construction (e.g. heap.WithAllocationUnit).
func WithHeapOptions(opts ...heap.Option) Option {
	return optionFunc(func(o *options) { o.heapOpts = append(o.heapOpts, opts...) })
}

// WithSchedulerOptions forwards additional options to the master
// scheduler's construction.
func WithSchedulerOptions(opts ...scheduler.Option) Option {
	return optionFunc(func(o *options) { o.schedOpts = append(o.schedOpts, opts...) })
}

// WithHousekeepInterval sets how often the shared pool housekeeper
// sweeps registered pools for shrinkage. Default: 30s.
func WithHousekeepInterval(d time.Duration) Option {
	return optionFunc(func(o *options) { o.housekeepInterval = d })
}

func resolveOptions(opts []Option) *options {
	o := &options{
		workers:           1,
		log:               corelog.Noop(),
		housekeepInterval: 30 * time.Second,
	}
	for _, opt := range opts {
		if opt != nil {
			opt.applyContext(o)
		}
	}
	return o
}
