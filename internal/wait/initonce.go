// Copyright 2026 Joseph Cumines
//
// Permission to use, copy, modify, and distribute this software for any
// purpose with or without fee is hereby granted, provided that this copyright
// notice appears in all copies.

package wait

import "github.com/nirvana-core/ncore/internal/lockfree"

// onceEvent is the object InitOnce's control word names while
// initialization is in flight or has completed. spec.md §4.7 and its
// Source/InitOnce.h keep exactly this object behind a lockable, tagged
// control word; Go's collector keeps the object alive for as long as the
// control word names it, so the original's manual add_ref/remove_ref
// bookkeeping around that pointer drops out, and the completed event is
// kept (rather than discarded back to a bare done flag) so every late
// arrival can still read the initializer's result off it.
type onceEvent struct {
	done chan struct{}
	err  error
}

// doneTag marks the control word as already-initialized: spec.md's
// {nullptr,0}/{event*,0}/{nullptr,1} three-state word, adapted here to
// {event*,0} in-flight / {event*,1} done so the finished event stays
// reachable for Do's error-propagation guarantee.
const doneTag = uintptr(1)

// InitOnce is spec.md §4.7's lazily-initialized state word: not-started,
// in-progress (later arrivals wait), or done (later arrivals fall
// through reading the same result). Built directly on
// internal/lockfree.LockablePointer — the lockable-pointer primitive's
// one real consumer in the original implementation — rather than
// sync.Once, so the control word's lock() step does the same job here it
// does there: letting a late arrival safely retain the in-flight event
// across the race with the initializer's own final CAS.
type InitOnce struct {
	state lockfree.LockablePointer[onceEvent]
}

// Do runs init exactly once across every concurrent caller; every
// caller, including late arrivals that only wait rather than run init,
// observes its returned error. Unlike execdomain's suspend handshake,
// InitOnce intentionally blocks the calling goroutine outright rather
// than suspending an execution domain: spec.md's Property 10 for this
// primitive does not restrict it to SD use, so tying it to execdomain
// would add an import-cycle risk for no behavioral gain.
func (o *InitOnce) Do(init func() error) error {
	for {
		if ev, tag := o.state.Load(); tag == doneTag {
			return ev.err
		}

		ev, tag := o.state.Lock()
		if ev != nil {
			o.state.Unlock()
			if tag == doneTag {
				return ev.err
			}
			<-ev.done
			continue
		}
		o.state.Unlock()

		candidate := &onceEvent{done: make(chan struct{})}
		if !o.state.CompareAndSwap(nil, 0, candidate, 0) {
			continue // lost the race to start; loop back and wait on the winner
		}
		candidate.err = init()
		close(candidate.done)
		o.state.CompareAndSwap(candidate, 0, candidate, doneTag)
		return candidate.err
	}
}

// Done reports whether Do has already run init to completion, without
// blocking or triggering it.
func (o *InitOnce) Done() bool {
	_, tag := o.state.Load()
	return tag == doneTag
}
