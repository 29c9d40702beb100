// Copyright 2026 Joseph Cumines
//
// Permission to use, copy, modify, and distribute this software for any
// purpose with or without fee is hereby granted, provided that this copyright
// notice appears in all copies.

// Package execdomain implements the execution domain and neutral
// context (spec.md §4.4, component C6): a stackful coroutine with a
// deadline, a mem-context stack, a current sync-context, and the
// suspend/resume handshake wait primitives use.
//
// Coroutines are mapped the way spec.md §9's own design notes suggest
// for a language with first-class async: one goroutine per execution
// domain, suspension is a receive on a oneshot channel, and the
// "neutral context" a worker switches into is simply the master
// scheduler's own worker goroutine — it never runs user code, only the
// brief handoff in Dispatch. Grounded on eventloop/loop.go's run-loop
// goroutine plus channel-based wake primitives, generalized from "one
// loop, one goroutine" to "one domain, one goroutine, many turns".
package execdomain

import (
	"sync"
	"time"

	"github.com/nirvana-core/ncore/internal/corerr"
	"github.com/nirvana-core/ncore/internal/memctx"
	"github.com/nirvana-core/ncore/internal/syncctx"
)

// Runnable is the one-shot callable an execution domain runs (spec.md
// §4.4). Small runnables are plain values closed over by a closure-typed
// Runnable in idiomatic Go; the manual inline-buffer-vs-heap distinction
// the original draws is an allocator micro-optimization that escape
// analysis already approximates here, so it is not reproduced.
type Runnable interface {
	Run(d *Domain) error
	OnCrash(d *Domain, recovered any)
}

// RunnableFunc adapts a plain function to Runnable for callers with no
// crash-handling logic of their own.
type RunnableFunc func(d *Domain) error

func (f RunnableFunc) Run(d *Domain) error       { return f(d) }
func (f RunnableFunc) OnCrash(*Domain, any) {}

// SecurityContext is the impersonation identity an ED can carry while it
// runs (spec.md §4.4's set_impersonation_context). The core never
// interprets it; hosts attach their own authorization meaning.
type SecurityContext struct {
	ID string
}

// Domain is an execution domain (spec.md §3's ED): a stackful coroutine
// realized as a dedicated goroutine, its mem-context stack, its current
// sync-context, and the suspend/resume latch.
type Domain struct {
	mgr *Manager

	mcStack []*memctx.MemContext
	current syncctx.Context
	secCtx  SecurityContext
	tls     sync.Map

	runnable Runnable
	deadline time.Time

	resumeCh chan struct{} // worker -> ED: "take your turn"
	yieldCh  chan struct{} // ED -> worker: "turn over, I yielded or suspended"
	doneCh   chan struct{} // closed when the runnable has fully returned
	started  bool

	latchMu   sync.Mutex
	latchCh   chan struct{}
	latchOnce *sync.Once
	resumeErr error
}

// Dispatch implements syncdomain.Executor: it is called by a worker
// goroutine (in neutral context) to run the domain's next turn, starting
// its goroutine on the first call and handing it one resume signal on
// every subsequent call. It returns as soon as the domain yields control
// back — by suspending or by finishing — never blocking the worker for
// longer than that.
func (d *Domain) Dispatch() {
	if !d.started {
		d.started = true
		d.doneCh = make(chan struct{})
		d.resumeCh = make(chan struct{})
		d.yieldCh = make(chan struct{})
		go d.loop()
	}
	select {
	case d.resumeCh <- struct{}{}:
	case <-d.doneCh:
		return
	}
	select {
	case <-d.yieldCh:
	case <-d.doneCh:
	}
}

func (d *Domain) loop() {
	<-d.resumeCh
	defer close(d.doneCh)
	defer d.recoverCrash()
	_ = d.runnable.Run(d)
	d.runnable = nil
}

func (d *Domain) recoverCrash() {
	if r := recover(); r != nil {
		rn := d.runnable
		d.runnable = nil
		d.current = syncctx.FreeContext()
		d.unwindMemContexts()
		if rn != nil {
			rn.OnCrash(d, r)
		} else {
			d.mgr.log.Err().Interface("panic", r).Log("execdomain: crash with no active runnable")
		}
	}
}

func (d *Domain) unwindMemContexts() {
	for i := len(d.mcStack) - 1; i >= 0; i-- {
		d.mcStack[i].Release()
	}
	d.mcStack = d.mcStack[:0]
}

// yieldToNeutral hands control back to whichever goroutine is currently
// blocked in Dispatch, then parks the ED's own goroutine until the next
// Dispatch call sends on resumeCh.
func (d *Domain) yieldToNeutral() {
	d.yieldCh <- struct{}{}
	<-d.resumeCh
}

// MemContext returns the top of the mem-context stack, spec.md §3's
// invariant that it equals the ED's current memory context outside a
// temporary-replace window.
func (d *Domain) MemContext() *memctx.MemContext {
	if len(d.mcStack) == 0 {
		return nil
	}
	return d.mcStack[len(d.mcStack)-1]
}

// CurrentSyncContext reports where this domain is presently running.
func (d *Domain) CurrentSyncContext() syncctx.Context { return d.current }

// WithMemContext pushes mc as the domain's current memory context,
// retaining it, runs fn, then pops and releases it — spec.md §4.9's
// at-exit contract ("execution pushes each entry's mem-context onto the
// current ED before calling its function, restores after"), exposed
// generally since any runnable may need a temporary-replace window, not
// only the at-exit drain.
func (d *Domain) WithMemContext(mc *memctx.MemContext, fn func()) {
	mc.Retain()
	d.mcStack = append(d.mcStack, mc)
	defer func() {
		top := d.mcStack[len(d.mcStack)-1]
		d.mcStack = d.mcStack[:len(d.mcStack)-1]
		top.Release()
	}()
	fn()
}

// SetImpersonationContext attaches a security identity consulted by host
// authorization hooks, per spec.md §6's Execution API.
func (d *Domain) SetImpersonationContext(sc SecurityContext) { d.secCtx = sc }

// ImpersonationContext returns the currently attached security identity.
func (d *Domain) ImpersonationContext() SecurityContext { return d.secCtx }

// TLSGet and TLSSet provide the per-domain thread-local-storage slots
// spec.md §3 lists among an ED's fields.
func (d *Domain) TLSGet(key any) (any, bool) { return d.tls.Load(key) }
func (d *Domain) TLSSet(key, val any)        { d.tls.Store(key, val) }

// Reschedule is spec.md §6's reschedule(): a cooperative yield back into
// the scheduler for the domain's current sync-context, giving other
// pending work a chance to run before this domain continues.
func (d *Domain) Reschedule() {
	d.rescheduleInto(d.current)
}

// ScheduleCall is spec.md §6's schedule_call(target): push target's
// memory context (if it carries one) onto the mem-context stack, switch
// the domain's current sync-context to target, and, for a serialized
// target, route the switch through a full suspend/reschedule so the
// calling worker is freed immediately rather than blocked on the queue.
func (d *Domain) ScheduleCall(target syncctx.Context) error {
	if dom, ok := target.Domain(); ok {
		mc := dom.MemContext()
		mc.Retain()
		d.mcStack = append(d.mcStack, mc)
	}
	d.current = target
	switch target.Kind() {
	case syncctx.SyncDomain, syncctx.LegacyThread:
		d.rescheduleInto(target)
	}
	return nil
}

// ScheduleReturn is spec.md §6's schedule_return(target, no_reschedule):
// pop the mem-context pushed by the matching ScheduleCall and switch
// back to target. When noReschedule is set and target is already the SD
// actively running this worker's call, it takes syncdomain's direct-
// return fast path instead of a full suspend/requeue round trip.
func (d *Domain) ScheduleReturn(target syncctx.Context, noReschedule bool) error {
	if len(d.mcStack) == 0 {
		return corerr.New("execdomain.ScheduleReturn", corerr.BadOrder, nil)
	}
	top := d.mcStack[len(d.mcStack)-1]
	d.mcStack = d.mcStack[:len(d.mcStack)-1]
	top.Release()

	d.current = target
	if noReschedule {
		if dom, ok := target.Domain(); ok && dom.TryDirectReturn(d) {
			return nil
		}
	}
	switch target.Kind() {
	case syncctx.SyncDomain, syncctx.LegacyThread:
		d.rescheduleInto(target)
	}
	return nil
}

// rescheduleInto yields this turn, arranges for target to schedule the
// domain again, then blocks the ED's own goroutine (not the worker)
// until that next Dispatch call resumes it.
func (d *Domain) rescheduleInto(target syncctx.Context) {
	go target.Schedule(time.Now(), d)
	d.yieldToNeutral()
}

// SuspendPrepare arms the resume latch before a wait primitive checks
// its condition, so a resume() racing ahead of SuspendPrepared is
// latched rather than lost (spec.md §8 Property 9 / scenario S6).
func (d *Domain) SuspendPrepare() {
	d.latchMu.Lock()
	d.latchCh = make(chan struct{})
	d.latchOnce = new(sync.Once)
	d.resumeErr = nil
	d.latchMu.Unlock()
}

// SuspendPrepared actually yields the domain, parking its goroutine
// until Resume closes the latch armed by SuspendPrepare. If Resume has
// already fired, the latch is already closed and this returns
// immediately without suspending the worker at all.
func (d *Domain) SuspendPrepared() error {
	d.latchMu.Lock()
	ch := d.latchCh
	d.latchMu.Unlock()
	if ch == nil {
		return corerr.New("execdomain.SuspendPrepared", corerr.BadOrder, nil)
	}
	d.yieldCh <- struct{}{}
	<-ch
	d.latchMu.Lock()
	err := d.resumeErr
	d.latchMu.Unlock()
	return err
}

// SuspendUnprepare aborts a suspend window opened by SuspendPrepare,
// clearing the latch without yielding — spec.md §4.4's "on exception
// during the prepare window, restores state and re-enters the original
// sync-context".
func (d *Domain) SuspendUnprepare() {
	d.latchMu.Lock()
	d.latchCh = nil
	d.latchOnce = nil
	d.latchMu.Unlock()
}

// Suspend combines SuspendPrepare and SuspendPrepared for callers with
// no window of work to do between arming the latch and yielding.
func (d *Domain) Suspend() error {
	d.SuspendPrepare()
	return d.SuspendPrepared()
}

// Resume wakes a domain parked in SuspendPrepared, or latches the wakeup
// for a domain that has called SuspendPrepare but not yet reached
// SuspendPrepared. Idempotent: a second Resume before the next
// SuspendPrepare is a no-op, satisfying the "cleared exactly once" half
// of spec.md §9's latch discipline.
func (d *Domain) Resume(err error) {
	d.latchMu.Lock()
	once := d.latchOnce
	ch := d.latchCh
	if once == nil {
		d.latchMu.Unlock()
		return
	}
	d.resumeErr = err
	d.latchMu.Unlock()
	once.Do(func() { close(ch) })
}
