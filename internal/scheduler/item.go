// Copyright 2026 Joseph Cumines
//
// Permission to use, copy, modify, and distribute this software for any
// purpose with or without fee is hereby granted, provided that this copyright
// notice appears in all copies.

package scheduler

import (
	"sync"
	"time"

	"github.com/nirvana-core/ncore/internal/skiplist"
)

// Item is a per-synchronization-domain handle in the master scheduler
// (spec.md §3's "master-scheduler item"). It does not know anything
// about synchronization domains; it just carries a dispatch callback,
// the way eventloop's Loop hands a plain func() to its poller rather
// than exposing loop internals to the OS-shim layer.
type Item struct {
	master *Master
	run    func()

	mu        sync.Mutex
	node      skiplist.Node[int64, *Item]
	scheduled bool
}

// NewItem registers a dispatch callback with m. Calling Schedule on the
// returned Item is how a synchronization domain's schedule step "hands
// itself to the master scheduler" (spec.md §4.5).
func (m *Master) NewItem(dispatch func()) *Item {
	return &Item{master: m, run: dispatch}
}

// Schedule inserts (or, if already scheduled, atomically reorders) this
// item at deadline and wakes a worker. This collapses spec.md §4.6's
// "schedule new item" and "reorder" into one idempotent call: the
// distinction only matters for the *caller's* IDLE vs. SCHEDULED state
// machine (kept in internal/syncdomain), not for what the master
// scheduler itself needs to do with the new deadline.
func (it *Item) Schedule(deadline time.Time) {
	it.mu.Lock()
	if it.scheduled {
		it.master.queue.Remove(it.node)
		it.node.Release()
	}
	node, _ := it.master.insertUnique(deadline.UnixNano(), it)
	it.node = node
	it.scheduled = true
	it.mu.Unlock()
	it.master.pump()
}

// Scheduled reports whether this item currently has a pending queue
// entry (spec.md §4.5's SD SCHEDULED state depends on this).
func (it *Item) Scheduled() bool {
	it.mu.Lock()
	defer it.mu.Unlock()
	return it.scheduled
}
