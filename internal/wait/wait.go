// Copyright 2026 Joseph Cumines
//
// Permission to use, copy, modify, and distribute this software for any
// purpose with or without fee is hereby granted, provided that this copyright
// notice appears in all copies.

// Package wait implements the wait primitives and timers (spec.md §4.7,
// component C9): EventSyncTimeout, EventUser, InitOnce, and the two timer
// flavors (Sleep and AsyncTimer). The two events and Sleep suspend through
// internal/execdomain's suspend/resume handshake; InitOnce blocks the
// calling goroutine, and AsyncTimer runs its callback without suspending
// any domain.
// Grounded on eventloop/loop.go's timerHeap + ScheduleTimer, generalized
// from "fire a callback on the loop" to "resume a parked execution
// domain" — the core never runs a single shared timer loop the way
// eventloop does, since the standard library's runtime timer heap
// already plays that role per spec.md's port surface.
package wait

import (
	"sync"
	"time"

	"github.com/nirvana-core/ncore/internal/corerr"
	"github.com/nirvana-core/ncore/internal/execdomain"
)

// Infinite is the "never time out" sentinel spec.md §5's Timeouts
// section describes as MAX. A timeout of zero or less means "do not
// block, return current status" per the same section.
const Infinite = time.Duration(1<<63 - 1)

type waiterEntry struct {
	domain *execdomain.Domain
	expire time.Time
}

// EventSyncTimeout is spec.md §4.7's synchronization-domain event: a
// forward list of pending waiters, an optional timer arm for the earliest
// expiry, and a signal count that absorbs a Signal* call arriving before
// any Wait. Wait does not check the caller's sync-context, so it also
// works from a domain outside any synchronization domain.
type EventSyncTimeout struct {
	mu           sync.Mutex
	pending      []*waiterEntry
	timer        *time.Timer
	signalCount  int
	allSignalled bool

	defaultTimeout time.Duration
}

// NewEventSyncTimeout constructs an empty sync-timeout event.
func NewEventSyncTimeout(opts ...Option) *EventSyncTimeout {
	o := resolveOptions(opts)
	return &EventSyncTimeout{defaultTimeout: o.defaultTimeout}
}

// WaitDefault is Wait using the timeout supplied via WithDefaultTimeout
// at construction (Infinite if none was given).
func (e *EventSyncTimeout) WaitDefault(d *execdomain.Domain) (bool, error) {
	return e.Wait(d, e.defaultTimeout)
}

// Wait consumes one pending signal if present; otherwise it appends a
// waiter entry and suspends d via the suspend handshake until signalled
// or timeout elapses. Returns whether the wait was signalled (false on
// timeout, which is not itself an error).
func (e *EventSyncTimeout) Wait(d *execdomain.Domain, timeout time.Duration) (bool, error) {
	e.mu.Lock()
	if e.allSignalled {
		e.mu.Unlock()
		return true, nil
	}
	if e.signalCount > 0 {
		e.signalCount--
		e.mu.Unlock()
		return true, nil
	}
	if timeout <= 0 {
		e.mu.Unlock()
		return false, nil
	}

	d.SuspendPrepare()
	w := &waiterEntry{domain: d}
	if timeout < Infinite {
		w.expire = time.Now().Add(timeout)
	}
	e.pending = append(e.pending, w)
	if timeout < Infinite {
		e.armTimerLocked()
	}
	e.mu.Unlock()

	err := d.SuspendPrepared()
	if corerr.Is(err, corerr.Timeout) {
		return false, nil
	}
	return err == nil, err
}

// SignalOne wakes the oldest pending waiter, or — if none is pending —
// latches a signal for the next Wait call.
func (e *EventSyncTimeout) SignalOne() {
	e.mu.Lock()
	if e.allSignalled {
		e.mu.Unlock()
		return
	}
	if len(e.pending) == 0 {
		e.signalCount++
		e.mu.Unlock()
		return
	}
	w := e.pending[0]
	e.pending = e.pending[1:]
	e.armTimerLocked()
	e.mu.Unlock()
	w.domain.Resume(nil)
}

// SignalAll cancels the timer, drains every pending waiter, and
// saturates the event so every future Wait call returns signalled
// immediately — spec.md §4.7's "signal-count saturates at
// all-signalled".
func (e *EventSyncTimeout) SignalAll() {
	e.mu.Lock()
	pending := e.pending
	e.pending = nil
	e.allSignalled = true
	if e.timer != nil {
		e.timer.Stop()
		e.timer = nil
	}
	e.mu.Unlock()
	for _, w := range pending {
		w.domain.Resume(nil)
	}
}

// armTimerLocked must be called with e.mu held. It (re)arms a single
// timer for the earliest pending expiry, or stops it if nothing expires.
func (e *EventSyncTimeout) armTimerLocked() {
	if e.timer != nil {
		e.timer.Stop()
		e.timer = nil
	}
	var earliest time.Time
	found := false
	for _, w := range e.pending {
		if w.expire.IsZero() {
			continue // infinite wait, never contributes to the arm
		}
		if !found || w.expire.Before(earliest) {
			earliest = w.expire
			found = true
		}
	}
	if !found {
		return
	}
	e.timer = time.AfterFunc(time.Until(earliest), e.onTimerFire)
}

// onTimerFire is spec.md §4.7's "spurious timer fire walks the list,
// resuming expired entries, and rearms for the next".
func (e *EventSyncTimeout) onTimerFire() {
	e.mu.Lock()
	now := time.Now()
	var expired []*waiterEntry
	remaining := e.pending[:0]
	for _, w := range e.pending {
		if !w.expire.IsZero() && !now.Before(w.expire) {
			expired = append(expired, w)
		} else {
			remaining = append(remaining, w)
		}
	}
	e.pending = remaining
	e.armTimerLocked()
	e.mu.Unlock()
	for _, w := range expired {
		w.domain.Resume(timeoutErr("wait.EventSyncTimeout"))
	}
}
