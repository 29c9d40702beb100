// Copyright 2026 Joseph Cumines
//
// Permission to use, copy, modify, and distribute this software for any
// purpose with or without fee is hereby granted, provided that this copyright
// notice appears in all copies.

package wait

import (
	"time"

	"github.com/nirvana-core/ncore/internal/corerr"
	"github.com/nirvana-core/ncore/internal/execdomain"
)

// Sleep suspends d for dur, resuming it from a standard library timer
// callback. Grounded on eventloop/loop.go's ScheduleTimer, generalized
// from "run fn on the loop after delay" to "resume this domain after
// delay" — the core has no single shared run loop to post the callback
// onto, so the runtime's own timer wheel takes that role directly.
func Sleep(d *execdomain.Domain, dur time.Duration) error {
	if dur <= 0 {
		return nil
	}
	d.SuspendPrepare()
	t := time.AfterFunc(dur, func() { d.Resume(nil) })
	err := d.SuspendPrepared()
	t.Stop()
	return err
}

// AsyncTimer is a cancellable one-shot timer that calls fn on its own
// goroutine after delay, without suspending any execution domain —
// spec.md §4.7's non-blocking timer flavor, used for housekeeping
// callbacks rather than ED wakeups.
type AsyncTimer struct {
	t *time.Timer
}

// NewAsyncTimer arms fn to run after delay.
func NewAsyncTimer(delay time.Duration, fn func()) *AsyncTimer {
	return &AsyncTimer{t: time.AfterFunc(delay, fn)}
}

// Cancel stops the timer; it reports false if fn has already started or
// the timer was already stopped, mirroring time.Timer.Stop.
func (a *AsyncTimer) Cancel() bool {
	return a.t.Stop()
}

// Reset reschedules the timer to fire after delay from now, per
// time.Timer.Reset's own caveat that it must not race a pending fire.
func (a *AsyncTimer) Reset(delay time.Duration) bool {
	return a.t.Reset(delay)
}

// timeoutErr is a convenience constructor kept alongside the timer code
// since every wait primitive's timeout path needs the same shape.
func timeoutErr(op string) error {
	return corerr.New(op, corerr.Timeout, nil)
}
