// Copyright 2026 Joseph Cumines
//
// Permission to use, copy, modify, and distribute this software for any
// purpose with or without fee is hereby granted, provided that this copyright
// notice appears in all copies.

package corepool

import (
	"sync"
	"sync/atomic"

	"github.com/nirvana-core/ncore/internal/memctx"
)

// SyncAtExit is spec.md §4.9's synchronous flavor: a plain vector run
// LIFO on process unload, the way eventloop's own Loop runs its
// before-close hooks in reverse registration order.
type SyncAtExit struct {
	mu  sync.Mutex
	fns []func()
}

// NewSyncAtExit constructs an empty synchronous at-exit registry.
func NewSyncAtExit() *SyncAtExit { return &SyncAtExit{} }

// Register appends fn to the teardown chain.
func (s *SyncAtExit) Register(fn func()) {
	s.mu.Lock()
	s.fns = append(s.fns, fn)
	s.mu.Unlock()
}

// RunAll runs every registered function in LIFO order, then clears the
// registry. Safe to call once; a second call runs nothing.
func (s *SyncAtExit) RunAll() {
	s.mu.Lock()
	fns := s.fns
	s.fns = nil
	s.mu.Unlock()
	for i := len(fns) - 1; i >= 0; i-- {
		fns[i]()
	}
}

type asyncEntry struct {
	mc   *memctx.MemContext
	fn   func()
	next atomic.Pointer[asyncEntry]
}

// AsyncAtExit is spec.md §4.9's asynchronous flavor: a lock-free
// singly-linked stack of entries, each carrying the memory context that
// was active when it was registered.
type AsyncAtExit struct {
	head atomic.Pointer[asyncEntry]
}

// NewAsyncAtExit constructs an empty asynchronous at-exit registry.
func NewAsyncAtExit() *AsyncAtExit { return &AsyncAtExit{} }

// Register pushes fn, remembering mc so RunAll can restore it as the
// active memory context while fn executes.
func (a *AsyncAtExit) Register(mc *memctx.MemContext, fn func()) {
	mc.Retain()
	e := &asyncEntry{mc: mc, fn: fn}
	for {
		old := a.head.Load()
		e.next.Store(old)
		if a.head.CompareAndSwap(old, e) {
			return
		}
	}
}

func (a *AsyncAtExit) pop() *asyncEntry {
	for {
		old := a.head.Load()
		if old == nil {
			return nil
		}
		if a.head.CompareAndSwap(old, old.next.Load()) {
			return old
		}
	}
}

// RunAll drains every registered entry, invoking invoke(mc, fn) for
// each so the caller — which owns the execution-domain mem-context
// stack — can push mc before running fn and pop it after, per spec.md
// §4.9 ("execution pushes each entry's mem-context onto the current ED
// before calling its function, restores after"). This package never
// imports internal/execdomain, so the push/pop itself is the caller's
// responsibility.
func (a *AsyncAtExit) RunAll(invoke func(mc *memctx.MemContext, fn func())) {
	for {
		e := a.pop()
		if e == nil {
			return
		}
		invoke(e.mc, e.fn)
		e.mc.Release()
	}
}
