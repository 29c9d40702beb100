// Copyright 2026 Joseph Cumines
//
// Permission to use, copy, modify, and distribute this software for any
// purpose with or without fee is hereby granted, provided that this copyright
// notice appears in all copies.

// Package scheduler implements the master scheduler (spec.md §4.6,
// component C8): matching schedulable synchronization domains to free
// worker goroutines without a global lock. Timers are not handled here:
// this package has no timer source feeding the queue.
//
// The dispatch path here deliberately does not hand-roll the classic
// free-cores/queue-items CAS dance spec.md §4.6 describes for a native
// thread pool: Go already gives a lost-wakeup-safe primitive for "wake
// whoever is waiting, and whoever wakes re-checks authoritative state" —
// a buffered, coalescing channel plus a self-draining worker loop, the
// same shape eventloop's fastWakeupCh/wakePipe dual path uses to avoid
// missed wakeups. FreeCores/QueueItems remain as named, spec-faithful
// observability counters; they do not gate correctness.
package scheduler

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/nirvana-core/ncore/internal/corelog"
	"github.com/nirvana-core/ncore/internal/lockfree"
	"github.com/nirvana-core/ncore/internal/skiplist"
)

// Master owns the deadline-ordered queue of scheduler items (one per
// synchronization domain) and a pool of worker goroutines that drain it.
type Master struct {
	queue      *skiplist.List[int64, *Item]
	rng        *lockfree.XorShiftRNG
	wake       chan struct{}
	closed     chan struct{}
	wg         sync.WaitGroup
	numWorkers int
	busy       atomic.Int64
	log        *corelog.Logger
}

// New starts a Master with numWorkers worker goroutines.
func New(numWorkers int, opts ...Option) *Master {
	o := resolveOptions(opts)
	if numWorkers < 1 {
		numWorkers = 1
	}
	rng := o.rng
	if rng == nil {
		rng = lockfree.NewXorShiftRNG(0)
	}
	m := &Master{
		queue:      skiplist.New[int64, *Item](rng),
		rng:        rng,
		wake:       make(chan struct{}, 1),
		closed:     make(chan struct{}),
		numWorkers: numWorkers,
		log:        o.log,
	}
	m.wg.Add(numWorkers)
	for i := 0; i < numWorkers; i++ {
		go m.workerLoop()
	}
	return m
}

// Close stops accepting new work and waits for workers to drain.
func (m *Master) Close() {
	close(m.closed)
	m.wg.Wait()
}

// FreeCores reports the number of workers not currently running a
// dispatched item, per spec.md §4.6's named state.
func (m *Master) FreeCores() int64 { return int64(m.numWorkers) - m.busy.Load() }

// QueueItems reports the number of scheduler items waiting for a worker.
func (m *Master) QueueItems() int64 { return int64(m.queue.Len()) }

func (m *Master) workerLoop() {
	defer m.wg.Done()
	for {
		for {
			n, ok := m.queue.DeleteMin()
			if !ok {
				break
			}
			item := n.Value()
			n.Release()
			item.mu.Lock()
			item.scheduled = false
			item.mu.Unlock()
			m.busy.Add(1)
			item.run()
			m.busy.Add(-1)
		}
		select {
		case <-m.closed:
			return
		case <-m.wake:
		}
	}
}

// pump wakes a worker to re-scan the queue. Coalescing: a pending wake
// already in the channel means a worker will re-check before blocking
// again, so losing this send changes nothing.
func (m *Master) pump() {
	select {
	case m.wake <- struct{}{}:
	default:
	}
}

// insertUnique inserts it keyed by deadlineNanos, nudging the key forward
// by one nanosecond on an exact collision until it lands on a free slot.
// cmp.Ordered forbids a composite (deadline, tie-break) key, so this is
// the key-space equivalent of the tie-break field spec.md §3 describes
// for priority-queue nodes; collisions are resolved in arrival order
// rather than by an explicit counter, which is indistinguishable for any
// workload finer than nanosecond deadline resolution.
func (m *Master) insertUnique(deadlineNanos int64, it *Item) (skiplist.Node[int64, *Item], int64) {
	key := deadlineNanos
	for {
		n, ok := m.queue.Insert(key, it)
		if ok {
			return n, key
		}
		n.Release()
		key++
	}
}
