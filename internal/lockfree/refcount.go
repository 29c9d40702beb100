// Copyright 2026 Joseph Cumines
//
// Permission to use, copy, modify, and distribute this software for any
// purpose with or without fee is hereby granted, provided that this copyright
// notice appears in all copies.

package lockfree

import "sync/atomic"

// RefCount is a reference counter for the coarse structures spec.md §5
// calls out for reclamation by reference count: heap, mem-context,
// sync-domain, execution domain, and skip-list node. The zero value
// starts at zero live references; call Init before the first real
// reference is handed out (typically from the constructor that creates
// the first owning pointer).
type RefCount struct {
	n atomic.Int64
}

// Init sets the initial reference count, usually 1 for "the constructor's
// return value counts as one reference".
func (r *RefCount) Init(n int64) { r.n.Store(n) }

// Retain increments the count and returns the new value. Acquire/release
// on the count itself is unnecessary for ordering user data (that's
// established by whatever published the pointer being retained); only
// the zero-crossing on Release needs seq-cst, per spec.md §5.
func (r *RefCount) Retain() int64 { return r.n.Add(1) }

// Release decrements the count and reports whether this call dropped it
// to zero (i.e. whether the caller now owns the last reference and must
// finalize/free the structure).
func (r *RefCount) Release() bool {
	return r.n.Add(-1) == 0
}

// Load returns the current count, for diagnostics and tests only — it is
// never safe to act on a Load() result as if it were exclusive ownership.
func (r *RefCount) Load() int64 { return r.n.Load() }
