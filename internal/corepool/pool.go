// Copyright 2026 Joseph Cumines
//
// Permission to use, copy, modify, and distribute this software for any
// purpose with or without fee is hereby granted, provided that this copyright
// notice appears in all copies.

// Package corepool implements spec.md §4.8/§4.9, component C10: bounded
// object pools backed by a lock-free freelist stack, a process-wide
// shrink housekeeper, and the two at-exit registries. Grounded on
// eventloop's own CAS-stack shaped primitives (the ready-queue's
// singly-linked atomic.Pointer push/pop in loop.go) and on catrate's
// sliding-window limiter, repurposed here to throttle shrink sweeps
// instead of request rates.
package corepool

import (
	"sync/atomic"
	"time"

	"github.com/joeycumines/go-catrate"
	"golang.org/x/exp/constraints"
)

func clamp[T constraints.Ordered](v, lo, hi T) T {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

type poolNode[T any] struct {
	val  T
	next atomic.Pointer[poolNode[T]]
}

// Pool is a bounded, lock-free-stack freelist for frequently recreated
// objects (execution domains, scheduler queue nodes per spec.md §4.8).
// The zero value is not usable; construct with New.
type Pool[T any] struct {
	head    atomic.Pointer[poolNode[T]]
	size    atomic.Int64
	maxIdle int64
	newFn   func() T
	closeFn func(T)
	limiter *catrate.Limiter
}

// Option configures a Pool at construction time.
type Option[T any] func(*Pool[T])

// WithMaxIdle bounds how many idle objects the pool retains before the
// housekeeper starts reclaiming them. Default 256.
func WithMaxIdle[T any](n int64) Option[T] {
	return func(p *Pool[T]) { p.maxIdle = clamp(n, 1, 1<<20) }
}

// WithCloseFunc supplies a destructor run on objects evicted by shrink.
func WithCloseFunc[T any](fn func(T)) Option[T] {
	return func(p *Pool[T]) { p.closeFn = fn }
}

// WithShrinkRate throttles the housekeeper's reclamation sweeps for this
// pool to at most limit evictions per window, so a burst of Put calls
// doesn't thrash the allocator immediately afterward.
func WithShrinkRate[T any](window time.Duration, limit int) Option[T] {
	return func(p *Pool[T]) {
		p.limiter = catrate.NewLimiter(map[time.Duration]int{window: limit})
	}
}

// New constructs a Pool whose Get falls back to newFn when the freelist
// is empty.
func New[T any](newFn func() T, opts ...Option[T]) *Pool[T] {
	p := &Pool[T]{maxIdle: 256, newFn: newFn}
	for _, opt := range opts {
		if opt != nil {
			opt(p)
		}
	}
	if p.limiter == nil {
		p.limiter = catrate.NewLimiter(map[time.Duration]int{time.Second: 64})
	}
	return p
}

// Get pops an object off the freelist, or constructs a new one if empty.
func (p *Pool[T]) Get() T {
	for {
		old := p.head.Load()
		if old == nil {
			return p.newFn()
		}
		next := old.next.Load()
		if p.head.CompareAndSwap(old, next) {
			p.size.Add(-1)
			return old.val
		}
	}
}

// Put returns v to the freelist for reuse.
func (p *Pool[T]) Put(v T) {
	n := &poolNode[T]{val: v}
	for {
		old := p.head.Load()
		n.next.Store(old)
		if p.head.CompareAndSwap(old, n) {
			p.size.Add(1)
			return
		}
	}
}

// Len reports the number of idle objects currently on the freelist.
func (p *Pool[T]) Len() int64 { return p.size.Load() }

// tryEvictOne pops a single object off the freelist without constructing
// a replacement, for use by the shrink housekeeper.
func (p *Pool[T]) tryEvictOne() (T, bool) {
	for {
		old := p.head.Load()
		if old == nil {
			var zero T
			return zero, false
		}
		next := old.next.Load()
		if p.head.CompareAndSwap(old, next) {
			p.size.Add(-1)
			return old.val, true
		}
	}
}

// maybeShrink evicts idle objects beyond maxIdle, rate-limited by the
// pool's catrate.Limiter so a sudden burst of Put calls (e.g. a crashed
// goroutine pool draining) doesn't thrash the allocator with repeated
// free/allocate cycles.
func (p *Pool[T]) maybeShrink() {
	for p.size.Load() > p.maxIdle {
		if _, ok := p.limiter.Allow(p); !ok {
			return
		}
		v, ok := p.tryEvictOne()
		if !ok {
			return
		}
		if p.closeFn != nil {
			p.closeFn(v)
		}
	}
}
