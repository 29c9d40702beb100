// Copyright 2026 Joseph Cumines
//
// Permission to use, copy, modify, and distribute this software for any
// purpose with or without fee is hereby granted, provided that this copyright
// notice appears in all copies.

package wait

import (
	"sync"
	"time"

	"github.com/nirvana-core/ncore/internal/corerr"
	"github.com/nirvana-core/ncore/internal/execdomain"
)

// EventUser is the manual- or auto-reset event user code waits on
// (spec.md §4.7). Manual-reset stays signalled across any number of
// waiters until explicitly Reset; auto-reset clears itself the instant
// it releases a single waiter (or, if none was waiting, the next Wait
// call consumes the latched signal and the event returns to unsignalled).
type EventUser struct {
	mu        sync.Mutex
	auto      bool
	signalled bool
	pending   []*waiterEntry
	timer     *time.Timer

	defaultTimeout time.Duration
}

// NewEventUser constructs an event in the unsignalled state. auto
// selects auto-reset semantics over manual-reset.
func NewEventUser(auto bool, opts ...Option) *EventUser {
	o := resolveOptions(opts)
	return &EventUser{auto: auto, defaultTimeout: o.defaultTimeout}
}

// WaitDefault is Wait using the timeout supplied via WithDefaultTimeout
// at construction (Infinite if none was given).
func (e *EventUser) WaitDefault(d *execdomain.Domain) (bool, error) {
	return e.Wait(d, e.defaultTimeout)
}

// Wait blocks d until the event is signalled or timeout elapses. It does
// not check d's sync-context: a domain outside any synchronization domain
// waits the same way, and no BadOrder is returned for it.
func (e *EventUser) Wait(d *execdomain.Domain, timeout time.Duration) (bool, error) {
	e.mu.Lock()
	if e.signalled {
		if e.auto {
			e.signalled = false
		}
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

// Set signals the event. Manual-reset releases every pending waiter and
// stays signalled; auto-reset releases exactly one waiter (or, with
// nobody waiting, latches a single pending signal) and never stays set.
func (e *EventUser) Set() {
	e.mu.Lock()
	if !e.auto {
		e.signalled = true
		pending := e.pending
		e.pending = nil
		e.stopTimerLocked()
		e.mu.Unlock()
		for _, w := range pending {
			w.domain.Resume(nil)
		}
		return
	}

	if len(e.pending) == 0 {
		e.signalled = true
		e.mu.Unlock()
		return
	}
	w := e.pending[0]
	e.pending = e.pending[1:]
	e.armTimerLocked()
	e.mu.Unlock()
	w.domain.Resume(nil)
}

// Reset clears the event's signalled state. On an auto-reset event this
// discards a latched signal that no Wait has consumed yet.
func (e *EventUser) Reset() {
	e.mu.Lock()
	e.signalled = false
	e.mu.Unlock()
}

func (e *EventUser) stopTimerLocked() {
	if e.timer != nil {
		e.timer.Stop()
		e.timer = nil
	}
}

// armTimerLocked must be called with e.mu held; same shape as
// EventSyncTimeout's, duplicated rather than shared because the two
// types' pending-list element types differ only incidentally and a
// shared helper would need an interface indirection neither needs.
func (e *EventUser) armTimerLocked() {
	e.stopTimerLocked()
	var earliest time.Time
	found := false
	for _, w := range e.pending {
		if w.expire.IsZero() {
			continue
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

func (e *EventUser) onTimerFire() {
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
		w.domain.Resume(timeoutErr("wait.EventUser"))
	}
}
