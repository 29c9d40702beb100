// Copyright 2026 Joseph Cumines
//
// Permission to use, copy, modify, and distribute this software for any
// purpose with or without fee is hereby granted, provided that this copyright
// notice appears in all copies.

package heap

import "sync/atomic"

// largeState holds the mutable state of an OS-backed large block: its
// current size and a collapsed flag, packed into one word so the erase
// protocol (spec.md §4.3) can claim a block with a single CAS rather than
// a size-then-flag pair that could race.
type largeState struct {
	sizeWord atomic.Uint64
}

const collapsedBit = uint64(1)

func packSizeWord(size uintptr, collapsed bool) uint64 {
	w := uint64(size) << 1
	if collapsed {
		w |= collapsedBit
	}
	return w
}

func unpackSizeWord(w uint64) (size uintptr, collapsed bool) {
	return uintptr(w >> 1), w&collapsedBit != 0
}

func newLargeState(size uintptr) *largeState {
	ls := &largeState{}
	ls.sizeWord.Store(packSizeWord(size, false))
	return ls
}

func (ls *largeState) load() (size uintptr, collapsed bool) {
	return unpackSizeWord(ls.sizeWord.Load())
}

// collapse attempts to atomically claim the block (marking it erased)
// provided its size word still matches expected. Returns false if a
// concurrent collapse or resize already happened.
func (ls *largeState) collapse(expected uint64) bool {
	size, _ := unpackSizeWord(expected)
	return ls.sizeWord.CompareAndSwap(expected, packSizeWord(size, true))
}

// uncollapse reverses a collapse, used to undo a partially-applied erase
// when the subsequent OS release call fails (spec.md §4.3: "on any
// failure mid-way, undo the collapses").
func (ls *largeState) uncollapse(expected uint64) {
	size, _ := unpackSizeWord(expected)
	ls.sizeWord.CompareAndSwap(packSizeWord(size, true), packSizeWord(size, false))
}
