// Copyright 2026 Joseph Cumines
//
// Permission to use, copy, modify, and distribute this software for any
// purpose with or without fee is hereby granted, provided that this copyright
// notice appears in all copies.

package lockfree

import "runtime"

// yieldThreshold is the spin count above which Backoff asks the OS
// scheduler to yield the thread instead of spinning in userspace.
const yieldThreshold = 16

// maxSpins caps the doubling so a long-contended CAS loop never spins an
// unbounded number of times per Backoff call.
const maxSpins = 1024

// Backoff implements bounded exponential back-off for CAS retry loops.
// It is not itself a synchronization primitive: liveness comes from the
// CAS loop it's embedded in, exactly as spec.md §4.1 requires ("always
// paired with a CAS loop so liveness is preserved by the CAS itself").
//
// Zero value is ready to use.
type Backoff struct {
	spins int
}

// Reset returns the Backoff to its initial (no contention observed) state.
// Call this after a successful CAS so the next contention episode starts
// from the smallest spin count again.
func (b *Backoff) Reset() { b.spins = 0 }

// Wait performs one back-off step: spin with CPU-relax below the yield
// threshold, otherwise yield the goroutine to the Go scheduler.
func (b *Backoff) Wait() {
	if b.spins == 0 {
		b.spins = 1
	} else if b.spins < maxSpins {
		b.spins <<= 1
	}
	if b.spins <= yieldThreshold {
		for i := 0; i < b.spins; i++ {
			procyield()
		}
		return
	}
	runtime.Gosched()
}

// procyield spins the CPU without involving the OS scheduler. Go exposes
// no portable PAUSE intrinsic, so a data-dependent empty loop is the
// idiomatic substitute used by lock-free Go code in the wild (e.g.
// alphadose/zenq's spin loops use the same style of busy-wait).
func procyield() {
	for i := 0; i < 1; i++ {
	}
}
