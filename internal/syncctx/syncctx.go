// Copyright 2026 Joseph Cumines
//
// Permission to use, copy, modify, and distribute this software for any
// purpose with or without fee is hereby granted, provided that this copyright
// notice appears in all copies.

// Package syncctx implements the sync-context tagged union (spec.md §3):
// the polymorphic identity of where an execution domain's code currently
// runs. Grounded on eventloop/state.go's CAS-state-machine style, adapted
// here to a compile-time-closed 4-variant tag rather than an open set of
// states.
package syncctx

import (
	"time"

	"github.com/nirvana-core/ncore/internal/syncdomain"
)

// Kind identifies which sync-context variant a Context holds.
type Kind int

const (
	// Free means no serialization: code runs using the caller's memory
	// context and the process-wide shared heap.
	Free Kind = iota
	// SyncDomain means code is serialized through one synchronization
	// domain, which owns a single memory context.
	SyncDomain
	// Process identifies a loaded executable's entry point.
	Process
	// LegacyThread means one dedicated worker goroutine, unserialized
	// beyond the fact that only it ever runs on that goroutine.
	LegacyThread
)

func (k Kind) String() string {
	switch k {
	case Free:
		return "free"
	case SyncDomain:
		return "sync_domain"
	case Process:
		return "process"
	case LegacyThread:
		return "legacy_thread"
	default:
		return "unknown"
	}
}

// ProcessEntry identifies a loaded executable's entry point. It carries
// no scheduling state of its own; code running in a Process context is
// unserialized the same way Free is.
type ProcessEntry struct {
	Name string
}

// LegacyThread is one dedicated worker goroutine with its own job queue,
// for code that must always run on the same logical thread of control
// but needs no deadline-ordered queue of its own.
type LegacyThread struct {
	jobs chan func()
	done chan struct{}
}

// NewLegacyThread starts a dedicated worker goroutine.
func NewLegacyThread() *LegacyThread {
	lt := &LegacyThread{jobs: make(chan func()), done: make(chan struct{})}
	go lt.loop()
	return lt
}

func (lt *LegacyThread) loop() {
	for {
		select {
		case fn := <-lt.jobs:
			fn()
		case <-lt.done:
			return
		}
	}
}

// Run submits fn to the dedicated thread and blocks until it completes.
func (lt *LegacyThread) Run(fn func()) {
	done := make(chan struct{})
	lt.jobs <- func() {
		defer close(done)
		fn()
	}
	<-done
}

// Close stops the dedicated thread's loop.
func (lt *LegacyThread) Close() { close(lt.done) }

// Context is a sync-context: an ED's current execution identity (spec.md
// §3). The zero value is the Free variant.
type Context struct {
	kind   Kind
	domain *syncdomain.Domain
	legacy *LegacyThread
	proc   *ProcessEntry
}

// FreeContext returns the Free variant.
func FreeContext() Context { return Context{kind: Free} }

// FromDomain wraps a synchronization domain.
func FromDomain(d *syncdomain.Domain) Context { return Context{kind: SyncDomain, domain: d} }

// FromProcess wraps a process entry-point identity.
func FromProcess(p *ProcessEntry) Context { return Context{kind: Process, proc: p} }

// FromLegacyThread wraps a dedicated worker thread.
func FromLegacyThread(lt *LegacyThread) Context { return Context{kind: LegacyThread, legacy: lt} }

// Kind reports which variant c holds.
func (c Context) Kind() Kind { return c.kind }

// Domain returns the wrapped synchronization domain, if c is SyncDomain.
func (c Context) Domain() (*syncdomain.Domain, bool) {
	return c.domain, c.kind == SyncDomain
}

// Equal reports whether two contexts name the same underlying identity.
func (c Context) Equal(other Context) bool {
	if c.kind != other.kind {
		return false
	}
	switch c.kind {
	case SyncDomain:
		return c.domain == other.domain
	case LegacyThread:
		return c.legacy == other.legacy
	case Process:
		return c.proc == other.proc
	default:
		return true // Free has no identity beyond its kind
	}
}

// Schedule hands exec to this sync-context for execution at deadline.
// Free and Process contexts carry no serialization of their own, so exec
// dispatches inline on the calling goroutine, mirroring spec.md §3's
// "FREE ... uses caller's mem-context", i.e. no context switch is owed.
func (c Context) Schedule(deadline time.Time, exec syncdomain.Executor) {
	switch c.kind {
	case SyncDomain:
		c.domain.Schedule(deadline, exec)
	case LegacyThread:
		c.legacy.Run(exec.Dispatch)
	default: // Free, Process
		exec.Dispatch()
	}
}
