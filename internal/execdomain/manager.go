// Copyright 2026 Joseph Cumines
//
// Permission to use, copy, modify, and distribute this software for any
// purpose with or without fee is hereby granted, provided that this copyright
// notice appears in all copies.

package execdomain

import (
	"time"

	"github.com/nirvana-core/ncore/internal/corelog"
	"github.com/nirvana-core/ncore/internal/corepool"
	"github.com/nirvana-core/ncore/internal/memctx"
	"github.com/nirvana-core/ncore/internal/syncctx"
)

// Manager amortises execution-domain churn through a bounded object
// pool (spec.md §4.4's "obtains (from a pool, else creates) an ED"),
// backed by internal/corepool the same way internal/scheduler's items
// and internal/heap's partitions are backed by their own lock-free
// structures rather than a raw sync.Pool.
type Manager struct {
	pool *corepool.Pool[*Domain]
	log  *corelog.Logger
}

// NewManager constructs an execution-domain manager.
func NewManager(opts ...Option) *Manager {
	o := resolveOptions(opts)
	m := &Manager{log: o.log}
	m.pool = corepool.New(func() *Domain { return &Domain{mgr: m} })
	return m
}

// obtain resets a pooled (or freshly constructed) Domain for one run.
func (m *Manager) obtain(r Runnable, target syncctx.Context, mc *memctx.MemContext, deadline time.Time) *Domain {
	d := m.pool.Get()
	mc.Retain()
	d.mcStack = append(d.mcStack[:0], mc)
	d.current = target
	d.secCtx = SecurityContext{}
	d.runnable = r
	d.deadline = deadline
	d.started = false
	d.latchCh = nil
	d.latchOnce = nil
	d.resumeErr = nil
	return d
}

// release returns a fully-finished Domain to the pool.
func (m *Manager) release(d *Domain) {
	d.tls.Range(func(k, _ any) bool { d.tls.Delete(k); return true })
	m.pool.Put(d)
}

// AsyncCall is spec.md §6's async_call(deadline, runnable,
// target_sync_context, mem_context): obtain an ED, install the runnable
// and mem-context, and spawn it into target. For a serialized target the
// spawn is the target's own Schedule call; for FREE/PROCESS targets,
// which carry no queue of their own, the domain's first turn is driven
// from a fresh goroutine so the call truly returns without waiting for
// the runnable to make progress.
func (m *Manager) AsyncCall(deadline time.Time, r Runnable, target syncctx.Context, mc *memctx.MemContext) (*Domain, error) {
	d := m.obtain(r, target, mc, deadline)
	if dom, ok := target.Domain(); ok {
		dom.Schedule(deadline, d)
	} else {
		go d.Dispatch()
	}
	return d, nil
}

// StartProcess is spec.md §6's start_process(runnable, target,
// mem_context): like AsyncCall, but blocks until the runnable (and any
// resumed continuations) has fully returned, matching a loaded
// executable's entry point running to completion before the host moves
// on. The domain is released back to the pool once it finishes.
func (m *Manager) StartProcess(r Runnable, target syncctx.Context, mc *memctx.MemContext) (*Domain, error) {
	d := m.obtain(r, target, mc, time.Time{})
	d.Dispatch()
	<-d.doneCh
	m.release(d)
	return d, nil
}
