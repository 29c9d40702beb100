// Copyright 2026 Joseph Cumines
//
// Permission to use, copy, modify, and distribute this software for any
// purpose with or without fee is hereby granted, provided that this copyright
// notice appears in all copies.

// Package skiplist implements the ordered, lock-free, deterministic-
// deletion skip list described in spec.md §4.2. It underlies the heap's
// block index (internal/heap), the synchronization-domain priority queue
// (internal/syncdomain), and the master scheduler's item queue
// (internal/scheduler) — the three consumers spec.md §2 names for it.
//
// No comparable lock-free ordered-set structure exists anywhere in the
// example pack (see DESIGN.md); the node-lifecycle and help-delete
// protocol below follow spec.md §4.2 directly, in the style (receiver
// naming, doc density, error-as-zero-value-with-ok-bool) the rest of this
// module's lock-free code uses.
package skiplist

import (
	"cmp"

	"github.com/nirvana-core/ncore/internal/lockfree"
)

// MaxLevel bounds how tall a node's tower of next-pointers can grow. 32
// levels comfortably covers any workload this core will index (heap
// blocks, timer deadlines, queued executors) without the RNG ever
// plausibly demanding more.
const MaxLevel = 32

// node is one skip-list entry. next[i] is a tagged pointer: the tag's low
// bit set means "this node is logically deleted; the link passes over
// it" (spec.md §4.2). Nodes are reference counted so a reader mid-
// traversal keeps a removed node alive until it releases its reference.
type node[K cmp.Ordered, V any] struct {
	key   K
	val   V
	level int
	next  [MaxLevel]lockfree.TaggedPointer[node[K, V]]
	ref   lockfree.RefCount
}

const markBit = uintptr(1)

func isMarked(tag uintptr) bool { return tag&markBit != 0 }

// List is an ordered set of K, lock-free for all operations. The zero
// value is not usable; construct with New.
type List[K cmp.Ordered, V any] struct {
	head *node[K, V]
	rng  *lockfree.XorShiftRNG
}

// New constructs an empty list. rng may be shared across many lists, per
// spec.md §4.2 ("an atomic xorshift RNG shared by all lists"); pass nil to
// have the list create its own.
func New[K cmp.Ordered, V any](rng *lockfree.XorShiftRNG) *List[K, V] {
	if rng == nil {
		rng = lockfree.NewXorShiftRNG(0x1234567)
	}
	h := &node[K, V]{level: MaxLevel}
	h.ref.Init(1)
	return &List[K, V]{head: h, rng: rng}
}

// Node is an opaque, reference-counted handle to a live or logically-
// deleted list entry, returned by Insert/Find/LowerBound/DeleteMin.
// Callers must call Release exactly once per handle they receive.
type Node[K cmp.Ordered, V any] struct {
	n *node[K, V]
}

// Key returns the node's key.
func (h Node[K, V]) Key() K { return h.n.key }

// Value returns the node's value.
func (h Node[K, V]) Value() V { return h.n.val }

// Valid reports whether the handle refers to a real node (as opposed to
// the zero Node returned when an operation finds nothing).
func (h Node[K, V]) Valid() bool { return h.n != nil }

// Release drops the caller's reference, permitting the node to be freed
// once no other reader or list link still holds it.
func (h Node[K, V]) Release() {
	if h.n != nil {
		h.n.ref.Release()
	}
}

// findPath walks top-down from head, recording the last node at each
// level whose next pointer is still >= key (the "previous node at this
// level" stack from spec.md §4.2), and helping complete any logically
// deleted node it passes over. It returns the preds array and, if an
// exact match for key exists, a retained reference to it.
func (l *List[K, V]) findPath(key K) (preds [MaxLevel]*node[K, V], succ *node[K, V]) {
	pred := l.head
	for level := MaxLevel - 1; level >= 0; level-- {
		for {
			next, tag := pred.next[level].LoadAcquire()
			if next == nil {
				break
			}
			if isMarked(tag) {
				// Help-delete: the link passes over a logically deleted
				// node. Try to unlink it at this level before continuing.
				nextNext, nextTag := next.next[level].LoadAcquire()
				if pred.next[level].CompareAndSwapWeak(next, tag, nextNext, nextTag&^markBit) && level == 0 {
					next.ref.Release()
				}
				continue
			}
			if cmp.Less(next.key, key) {
				pred = next
				continue
			}
			break
		}
		preds[level] = pred
	}
	next, tag := pred.next[0].LoadAcquire()
	if next != nil && !isMarked(tag) && next.key == key {
		succ = next
	}
	return preds, succ
}

// Insert adds key/val if no live node with that key exists. On success it
// returns a retained handle to the new node and true. If a live node with
// the same key already exists, Insert returns a retained handle to the
// existing node (its reference bumped, per spec.md §4.2) and false.
func (l *List[K, V]) Insert(key K, val V) (Node[K, V], bool) {
	level := l.rng.Level(MaxLevel)
	for {
		preds, existing := l.findPath(key)
		if existing != nil {
			existing.ref.Retain()
			return Node[K, V]{existing}, false
		}

		n := &node[K, V]{key: key, val: val, level: level}
		n.ref.Init(2) // one for the list's own link, one for the caller's handle
		for i := 0; i < level; i++ {
			next, tag := preds[i].next[i].LoadAcquire()
			n.next[i].StoreRelease(next, tag&^markBit)
		}

		// Bottom-level CAS decides uniqueness (spec.md §4.2).
		bottomNext, bottomTag := preds[0].next[0].LoadAcquire()
		if isMarked(bottomTag) || (bottomNext != nil && bottomNext.key == key) {
			continue // lost the race, or a deletion landed; retry from scratch
		}
		if !preds[0].next[0].CompareAndSwapWeak(bottomNext, bottomTag, n, 0) {
			continue
		}
		// Link the remaining levels best-effort; any predecessor that has
		// moved on by the time we get here just means a later reader's
		// findPath will relink it, since findPath always walks from head.
		for i := 1; i < level; i++ {
			for {
				next, tag := preds[i].next[i].LoadAcquire()
				if preds[i].next[i].CompareAndSwapWeak(next, tag, n, 0) {
					break
				}
				preds, _ = l.findPath(key)
			}
		}
		return Node[K, V]{n}, true
	}
}

// Find returns a retained handle to the live node with the given key, if
// any.
func (l *List[K, V]) Find(key K) (Node[K, V], bool) {
	_, found := l.findPath(key)
	if found == nil {
		return Node[K, V]{}, false
	}
	found.ref.Retain()
	return Node[K, V]{found}, true
}

// LowerBound returns a retained handle to the first live node whose key is
// >= key, or false if no such node exists. Keys in this list are expected
// to be comparable with cmp.Less; callers needing a "begin-address
// descending" order (spec.md §3, heap block index) should wrap K in a
// type whose Less/comparison inverts the natural order.
func (l *List[K, V]) LowerBound(key K) (Node[K, V], bool) {
	pred := l.head
	for level := MaxLevel - 1; level >= 0; level-- {
		for {
			next, tag := pred.next[level].LoadAcquire()
			if next == nil {
				break
			}
			if isMarked(tag) {
				nextNext, nextTag := next.next[level].LoadAcquire()
				if pred.next[level].CompareAndSwapWeak(next, tag, nextNext, nextTag&^markBit) && level == 0 {
					next.ref.Release()
				}
				continue
			}
			if cmp.Less(next.key, key) {
				pred = next
				continue
			}
			break
		}
	}
	next, tag := pred.next[0].LoadAcquire()
	for next != nil && isMarked(tag) {
		next, tag = next.next[0].LoadAcquire()
	}
	if next == nil {
		return Node[K, V]{}, false
	}
	next.ref.Retain()
	return Node[K, V]{next}, true
}

// FindAndDelete finds the live node for key, logically deletes it (CAS on
// the "deleted" flag from bottom level... per spec.md this is top level
// down for help-delete, but the deletion flag itself is set bottom-up to
// keep a half-deleted node always still reachable by at least its upper
// links during the transition), then helps unlink it. Returns a retained
// handle to the removed node (so the caller can inspect its value) and
// true, or false if no live node had that key.
func (l *List[K, V]) FindAndDelete(key K) (Node[K, V], bool) {
	n, ok := l.Find(key)
	if !ok {
		return Node[K, V]{}, false
	}
	if !l.markDeleted(n.n) {
		n.Release()
		return Node[K, V]{}, false
	}
	l.findPath(key) // drive help-delete to physically unlink n
	return n, true
}

// Remove deletes a node the caller already holds a reference to (the
// "same claim protocol given a node pointer" from spec.md §4.2). Returns
// true if this call is the one that performed the logical deletion.
func (l *List[K, V]) Remove(n Node[K, V]) bool {
	if !l.markDeleted(n.n) {
		return false
	}
	l.findPath(n.n.key)
	return true
}

// markDeleted sets the deleted tag on every level of n's next-pointers,
// bottom level first, via CAS so only one racing deleter succeeds.
func (l *List[K, V]) markDeleted(n *node[K, V]) bool {
	var b lockfree.Backoff
	succeeded := false
	for i := 0; i < n.level; i++ {
		for {
			next, tag := n.next[i].LoadAcquire()
			if isMarked(tag) {
				break // another deleter already marked this level
			}
			if n.next[i].CompareAndSwapWeak(next, tag, next, tag|markBit) {
				if i == 0 {
					succeeded = true
				}
				break
			}
			b.Wait()
		}
	}
	return succeeded
}

// DeleteMin walks the bottom level from head, skipping logically deleted
// nodes, and atomically claims the first live node (spec.md §4.2). It
// returns a retained handle to the removed node and true, or false if the
// list is empty.
func (l *List[K, V]) DeleteMin() (Node[K, V], bool) {
	var b lockfree.Backoff
	for {
		pred := l.head
		next, tag := pred.next[0].LoadAcquire()
		for next != nil && isMarked(tag) {
			nextNext, nextTag := next.next[0].LoadAcquire()
			pred.next[0].CompareAndSwapWeak(next, tag, nextNext, nextTag&^markBit)
			next, tag = pred.next[0].LoadAcquire()
		}
		if next == nil {
			return Node[K, V]{}, false
		}
		next.ref.Retain()
		if l.markDeleted(next) {
			l.findPath(next.key)
			return Node[K, V]{next}, true
		}
		// Someone else claimed it first; release and retry.
		next.Release()
		b.Wait()
	}
}

// PeekMin returns a retained handle to the first live node without
// removing it, or false if the list is empty. Used by synchronization
// domains to read the minimum deadline without dequeuing (spec.md §4.5
// "Schedule step").
func (l *List[K, V]) PeekMin() (Node[K, V], bool) {
	pred := l.head
	next, tag := pred.next[0].LoadAcquire()
	for next != nil && isMarked(tag) {
		next, tag = next.next[0].LoadAcquire()
	}
	if next == nil {
		return Node[K, V]{}, false
	}
	next.ref.Retain()
	return Node[K, V]{next}, true
}

// Len walks the bottom level counting live nodes. O(n); intended for
// tests and diagnostics, not hot paths.
func (l *List[K, V]) Len() int {
	count := 0
	n, tag := l.head.next[0].LoadAcquire()
	for n != nil {
		if !isMarked(tag) {
			count++
		}
		n, tag = n.next[0].LoadAcquire()
	}
	return count
}

// Range walks live nodes in ascending key order, calling fn for each until
// fn returns false or the list is exhausted. Used by internal/heap's
// protection-change and ownership walks, which need every entry rather
// than a single lookup.
func (l *List[K, V]) Range(fn func(key K, val V) bool) {
	n, tag := l.head.next[0].LoadAcquire()
	for n != nil {
		if !isMarked(tag) {
			if !fn(n.key, n.val) {
				return
			}
		}
		n, tag = n.next[0].LoadAcquire()
	}
}
