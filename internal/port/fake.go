// Copyright 2026 Joseph Cumines
//
// Permission to use, copy, modify, and distribute this software for any
// purpose with or without fee is hereby granted, provided that this copyright
// notice appears in all copies.

package port

import (
	"fmt"
	"sync"
	"time"
	"unsafe"
)

// NewFake returns an in-process Port backed by regular Go heap memory
// instead of real mmap/mprotect syscalls. internal/heap and
// internal/execdomain tests use it so the lock-free heap/scheduler logic
// can be exercised deterministically and portably, independent of the
// OS-specific production VirtualMemory implementation.
func NewFake() Port {
	return &fakePort{vm: newFakeVM(), clock: fakeClock{}}
}

type fakePort struct {
	vm    *fakeVM
	clock fakeClock
}

func (p *fakePort) VM() VirtualMemory      { return p.vm }
func (p *fakePort) Clock() Clock           { return p.clock }
func (p *fakePort) NewTimer() OneShotTimer { return &fakeTimer{} }
func (p *fakePort) Debug() Debug           { return fakeDebug{} }
func (p *fakePort) Yield()                 {}

type fakeClock struct{}

func (fakeClock) Steady() time.Time { return time.Now() }
func (fakeClock) System() time.Time { return time.Now() }
func (fakeClock) EpochYear() int    { return 1970 }

type fakeDebug struct{}

func (fakeDebug) Break()                {}
func (fakeDebug) OutputString(s string) {}

type fakeTimer struct {
	mu sync.Mutex
	t  *time.Timer
}

func (t *fakeTimer) Set(deadline time.Time, fn func()) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.t != nil {
		t.t.Stop()
	}
	d := time.Until(deadline)
	if d < 0 {
		d = 0
	}
	t.t = time.AfterFunc(d, fn)
}

func (t *fakeTimer) Cancel() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.t != nil {
		t.t.Stop()
	}
}

// fakeVM hands out addresses carved from regular Go-allocated byte
// slices. It is not a real virtual-memory manager (no page protection is
// actually enforced), but it preserves the Reserve/Commit/Decommit/
// Release/Protect contract's bookkeeping so heap logic above it can be
// tested without root or platform-specific syscalls.
type fakeVM struct {
	mu    sync.Mutex
	pages map[uintptr][]byte // base address -> backing slice
	unit  uintptr
}

func newFakeVM() *fakeVM {
	return &fakeVM{pages: make(map[uintptr][]byte), unit: 4096}
}

func (v *fakeVM) AllocationUnit() uintptr { return v.unit }
func (v *fakeVM) PageSize() uintptr       { return v.unit }

func (v *fakeVM) Reserve(size uintptr) (uintptr, error) {
	size = roundUp(size, v.unit)
	b := make([]byte, size)
	addr := uintptr(unsafe.Pointer(&b[0]))
	v.mu.Lock()
	v.pages[addr] = b
	v.mu.Unlock()
	return addr, nil
}

func (v *fakeVM) Commit(addr, size uintptr) error {
	if !v.owns(addr, size) {
		return fmt.Errorf("port: fake: commit: %#x/%d not reserved", addr, size)
	}
	return nil
}

func (v *fakeVM) Decommit(addr, size uintptr) error {
	if !v.owns(addr, size) {
		return fmt.Errorf("port: fake: decommit: %#x/%d not reserved", addr, size)
	}
	b := unsafe.Slice((*byte)(unsafe.Pointer(addr)), int(size))
	clear(b)
	return nil
}

func (v *fakeVM) Release(addr, size uintptr) error {
	v.mu.Lock()
	defer v.mu.Unlock()
	if _, ok := v.pages[addr]; !ok {
		return fmt.Errorf("port: fake: release: %#x not reserved", addr)
	}
	delete(v.pages, addr)
	return nil
}

func (v *fakeVM) Protect(addr, size uintptr, prot Protection) error {
	if !v.owns(addr, size) {
		return fmt.Errorf("port: fake: protect: %#x/%d not reserved", addr, size)
	}
	return nil
}

func (v *fakeVM) owns(addr, size uintptr) bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	for base, b := range v.pages {
		if addr >= base && addr+size <= base+uintptr(len(b)) {
			return true
		}
	}
	return false
}
