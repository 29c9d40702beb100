// Copyright 2026 Joseph Cumines
//
// Permission to use, copy, modify, and distribute this software for any
// purpose with or without fee is hereby granted, provided that this copyright
// notice appears in all copies.

package heap

import "sync/atomic"

// partition is one fixed-size address-space slab reserved from the port,
// with a bitmap directory tracking which allocation units within it are
// live (spec.md §4.3). Partitions are linked in a singly-linked,
// append-only list: a thread that loses the race to publish a freshly
// reserved partition releases its own reservation back to the port
// rather than leaking it.
type partition struct {
	base  uintptr
	units int
	dir   *directory
	next  atomic.Pointer[partition]
}

// partitionList is the heap's atomic, CAS-append singly-linked list of
// partitions (spec.md §4.3's "atomic partition-list head").
type partitionList struct {
	head atomic.Pointer[partition]
}

// append links p onto the end of the list, or discovers that another
// thread already linked a different tail node first. Returns the node
// that ended up live at the append point: either p, or the racer's node
// if p lost the CAS (the caller is expected to release p's own
// reservation in that case).
func (pl *partitionList) append(p *partition) *partition {
	head := pl.head.Load()
	if head == nil {
		if pl.head.CompareAndSwap(nil, p) {
			return p
		}
		return pl.head.Load()
	}
	tail := head
	for {
		next := tail.next.Load()
		if next == nil {
			break
		}
		tail = next
	}
	if tail.next.CompareAndSwap(nil, p) {
		return p
	}
	// Lost the race; the racer's partition is now linked after tail.
	return tail.next.Load()
}

// each calls fn for every partition currently linked, in list order.
func (pl *partitionList) each(fn func(*partition)) {
	for p := pl.head.Load(); p != nil; p = p.next.Load() {
		fn(p)
	}
}
