// Copyright 2026 Joseph Cumines
//
// Permission to use, copy, modify, and distribute this software for any
// purpose with or without fee is hereby granted, provided that this copyright
// notice appears in all copies.

package heap

import "github.com/nirvana-core/ncore/internal/lockfree"

const (
	// UnitMin and UnitMax bound the allocation_unit spec.md §4.3 requires
	// to be "rounded to a power of two in [UNIT_MIN, UNIT_MAX]".
	UnitMin = 16
	UnitMax = 1 << 20
)

type options struct {
	allocUnit      uintptr
	partitionUnits int
	maxBlockUnits  int
	rng            *lockfree.XorShiftRNG
}

// Option configures a Heap at construction time.
type Option interface {
	applyHeap(*options)
}

type optionFunc func(*options)

func (f optionFunc) applyHeap(o *options) { f(o) }

// WithAllocationUnit sets the heap's allocation_unit. It is rounded up to
// the nearest power of two and clamped to [UnitMin, UnitMax]. The default
// is the port's page size.
func WithAllocationUnit(n uintptr) Option {
	return optionFunc(func(o *options) { o.allocUnit = n })
}

// WithPartitionUnits sets UNIT_COUNT, the number of allocation units per
// partition. The default is 1024.
func WithPartitionUnits(n int) Option {
	return optionFunc(func(o *options) { o.partitionUnits = n })
}

// WithMaxBlockUnits sets MAX_BLOCK, the largest request (in allocation
// units) served from a partition directory before the heap falls back to
// an OS-backed large block. The default is 64.
func WithMaxBlockUnits(n int) Option {
	return optionFunc(func(o *options) { o.maxBlockUnits = n })
}

// WithRNG supplies the shared xorshift RNG used by the heap's block-index
// skip list (spec.md §4.2's "an atomic xorshift RNG shared by all
// lists"). Heaps that share an RNG with a scheduler or synchronization
// domain should pass it explicitly; otherwise each heap seeds its own.
func WithRNG(rng *lockfree.XorShiftRNG) Option {
	return optionFunc(func(o *options) { o.rng = rng })
}

func resolveOptions(opts []Option) *options {
	o := &options{
		partitionUnits: 1024,
		maxBlockUnits:  64,
	}
	for _, opt := range opts {
		if opt != nil {
			opt.applyHeap(o)
		}
	}
	return o
}

func roundUpPow2(n uintptr) uintptr {
	if n <= 1 {
		return 1
	}
	n--
	n |= n >> 1
	n |= n >> 2
	n |= n >> 4
	n |= n >> 8
	n |= n >> 16
	n |= n >> 32
	return n + 1
}

func clamp(n, lo, hi uintptr) uintptr {
	if n < lo {
		return lo
	}
	if n > hi {
		return hi
	}
	return n
}
