// Copyright 2026 Joseph Cumines
//
// Permission to use, copy, modify, and distribute this software for any
// purpose with or without fee is hereby granted, provided that this copyright
// notice appears in all copies.

// Package syncdomain implements the synchronization domain (spec.md
// §4.5, component C7): mutual exclusion with deadline priority over
// calls targeting the same serial region, backed by the deadline
// priority queue of internal/skiplist and handed to
// internal/scheduler's master scheduler whenever it has work to run.
//
// Grounded on eventloop/loop.go's FastState CAS state machine (IDLE/
// SCHEDULED/RUNNING mirrors StateAwake/Running/Sleeping) and its ingress
// + "run one task, then re-check for more" dispatch shape.
package syncdomain

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/nirvana-core/ncore/internal/lockfree"
	"github.com/nirvana-core/ncore/internal/memctx"
	"github.com/nirvana-core/ncore/internal/scheduler"
	"github.com/nirvana-core/ncore/internal/skiplist"
)

// State is the synchronization domain's CAS-driven lifecycle state
// (spec.md §3).
type State int32

const (
	Idle State = iota
	Scheduled
	Running
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Scheduled:
		return "scheduled"
	case Running:
		return "running"
	default:
		return "unknown"
	}
}

// Executor is the minimal contract a synchronization domain needs from
// whatever it serializes — spec.md's execution domains implement it, but
// this package never imports internal/execdomain, which instead imports
// this one. That keeps the ED<->SD relationship acyclic.
type Executor interface {
	// Dispatch is called on a worker goroutine, in neutral context, to
	// run (or continue) the executor once this domain has dequeued it.
	// Named distinctly from the wait-primitive "resume" operation
	// (internal/execdomain.Domain.Resume), which wakes a suspended
	// executor rather than driving its next turn on a worker.
	Dispatch()
}

// Domain is a synchronization domain (spec.md §3's SD).
type Domain struct {
	mc    *memctx.MemContext
	queue *skiplist.List[int64, Executor]
	item  *scheduler.Item

	state             atomic.Int32
	schedLock         atomic.Bool
	scheduledDeadline atomic.Int64 // valid while state != Idle
	activity          atomic.Int64

	mu      sync.Mutex
	current Executor // set only while state == Running
}

// New constructs a synchronization domain owning mc, dispatched through
// master whenever it has schedulable work.
func New(master *scheduler.Master, mc *memctx.MemContext, opts ...Option) *Domain {
	o := resolveOptions(opts)
	rng := o.rng
	if rng == nil {
		rng = lockfree.NewXorShiftRNG(0)
	}
	d := &Domain{
		mc:    mc,
		queue: skiplist.New[int64, Executor](rng),
	}
	d.item = master.NewItem(d.execute)
	return d
}

// MemContext returns the domain's single-owner memory context.
func (d *Domain) MemContext() *memctx.MemContext { return d.mc }

// State reports the domain's current lifecycle state.
func (d *Domain) State() State { return State(d.state.Load()) }

// insertUnique mirrors scheduler.Master.insertUnique: cmp.Ordered
// forbids a composite (deadline, tie-break) key, so an exact collision
// is resolved by nudging the key forward by one nanosecond.
func (d *Domain) insertUnique(deadlineNanos int64, exec Executor) skiplist.Node[int64, Executor] {
	key := deadlineNanos
	for {
		n, ok := d.queue.Insert(key, exec)
		if ok {
			return n
		}
		n.Release()
		key++
	}
}

// Schedule is spec.md §4.5's Enqueue: `schedule(deadline, executor)`.
func (d *Domain) Schedule(deadline time.Time, exec Executor) {
	d.activity.Add(1)
	d.insertUnique(deadline.UnixNano(), exec)
	d.scheduleStep()
}

// TryDirectReturn implements spec.md §4.5's re-entry policy: a return
// into the same SD while it is RUNNING and the caller is the currently
// running executor skips the enqueue round trip entirely.
func (d *Domain) TryDirectReturn(exec Executor) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.State() == Running && d.current == exec
}

// scheduleStep is spec.md §4.5's Schedule step: a CAS flag selects one
// thread at a time to run it, looping until no further work is owed so
// a late insert never leaves the domain stuck.
func (d *Domain) scheduleStep() {
	for {
		if !d.schedLock.CompareAndSwap(false, true) {
			return // the owner looks again after releasing the flag
		}
		n, ok := d.queue.PeekMin()
		if !ok {
			d.schedLock.Store(false)
			if d.queue.Len() == 0 {
				return
			}
			continue
		}
		key := n.Key()
		n.Release()

		switch d.State() {
		case Idle:
			d.state.Store(int32(Scheduled))
			d.scheduledDeadline.Store(key)
			d.schedLock.Store(false)
			d.item.Schedule(time.Unix(0, key))
		case Scheduled:
			if key < d.scheduledDeadline.Load() {
				d.scheduledDeadline.Store(key)
				d.schedLock.Store(false)
				d.item.Schedule(time.Unix(0, key)) // reorder
				break
			}
			d.schedLock.Store(false)
		default: // Running: the executing executor re-schedules on exit
			d.schedLock.Store(false)
		}

		// An insert whose CAS on schedLock failed while this thread held
		// the flag is only seen from here: go round again if it left
		// work owed.
		m, ok := d.queue.PeekMin()
		if !ok {
			return
		}
		next := m.Key()
		m.Release()
		if st := d.State(); st != Idle && (st != Scheduled || next >= d.scheduledDeadline.Load()) {
			return
		}
	}
}

// execute is spec.md §4.5's Execute, invoked by the master scheduler on
// a worker in neutral context.
func (d *Domain) execute() {
	d.state.Store(int32(Running))
	n, ok := d.queue.DeleteMin()
	if ok {
		exec := n.Value()
		n.Release()
		d.activity.Add(-1)
		d.mu.Lock()
		d.current = exec
		d.mu.Unlock()
		exec.Dispatch()
		d.mu.Lock()
		d.current = nil
		d.mu.Unlock()
	}
	d.state.Store(int32(Idle))
	d.scheduleStep()
}

// Len reports the number of executors currently queued, for tests and
// diagnostics.
func (d *Domain) Len() int { return d.queue.Len() }
