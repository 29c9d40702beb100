// Copyright 2026 Joseph Cumines
//
// Permission to use, copy, modify, and distribute this software for any
// purpose with or without fee is hereby granted, provided that this copyright
// notice appears in all copies.

// Package port is the thin OS-shim layer (spec.md §2 C1, §6 "Port
// surface"). Everything above this package — the heap engine, the
// execution model, the scheduler — talks to the Port interface, never to
// an OS package directly, the same way eventloop hides epoll/kqueue/IOCP
// behind its unexported FastPoller contract and splits implementations
// across poller_linux.go/poller_darwin.go/poller_windows.go.
package port

import "time"

// roundUp rounds n up to the next multiple of unit (unit must be a power
// of two); shared by every VirtualMemory implementation in this package.
func roundUp(n, unit uintptr) uintptr {
	if unit == 0 {
		return n
	}
	return (n + unit - 1) &^ (unit - 1)
}

// Protection is the memory-protection mode passed to VirtualMemory.Protect.
type Protection int

const (
	ProtNone Protection = iota
	ProtRead
	ProtReadWrite
)

// MemoryState reports what Query(MEMORY_STATE) can observe about a range.
type MemoryState int

const (
	MemoryFree MemoryState = iota
	MemoryReserved
	MemoryCommitted
)

// VirtualMemory is the subset of spec.md §6's virtual-memory port surface
// the heap engine needs: reserve address space, commit/decommit physical
// backing, change protection, and report granularities.
type VirtualMemory interface {
	// Reserve reserves size bytes of address space without committing
	// physical pages, returning the base address.
	Reserve(size uintptr) (uintptr, error)
	// Commit backs [addr, addr+size) with physical pages.
	Commit(addr, size uintptr) error
	// Decommit releases the physical backing for [addr, addr+size) while
	// leaving the address space reserved.
	Decommit(addr, size uintptr) error
	// Release returns [addr, addr+size) to the OS entirely.
	Release(addr, size uintptr) error
	// Protect changes the protection of [addr, addr+size).
	Protect(addr, size uintptr, prot Protection) error
	// AllocationUnit is the minimum granularity Reserve/Commit round to.
	AllocationUnit() uintptr
	// PageSize is the hardware page size, used for protection-change granularity.
	PageSize() uintptr
}

// Clock gives steady (monotonic) and system time, with the epoch year
// spec.md §6 requires for steady<->system conversions.
type Clock interface {
	Steady() time.Time
	System() time.Time
	EpochYear() int
}

// OneShotTimer is a single-fire timer the wait/scheduler layers use to
// arm wakeups (spec.md §4.9, §6).
type OneShotTimer interface {
	// Set arms the timer to fire fn at deadline, replacing any pending fire.
	Set(deadline time.Time, fn func())
	// Cancel disarms the timer. It is safe to call even if the timer
	// already fired or was never armed; the handle outlives Cancel, per
	// spec.md §5 ("the handle outlives the cancel call").
	Cancel()
}

// Debug is the debugger/diagnostic hook surface.
type Debug interface {
	Break()
	OutputString(s string)
}

// Port bundles the full OS-shim surface one CoreContext depends on.
type Port interface {
	VM() VirtualMemory
	Clock() Clock
	NewTimer() OneShotTimer
	Debug() Debug
	// Yield hints the OS scheduler to run another goroutine/thread now.
	// Nothing in the core calls it: internal/lockfree.Backoff's
	// escalation path calls runtime.Gosched directly and holds no port.
	Yield()
}
