// Copyright 2026 Joseph Cumines
//
// Permission to use, copy, modify, and distribute this software for any
// purpose with or without fee is hereby granted, provided that this copyright
// notice appears in all copies.

//go:build linux || darwin

package port

import (
	"fmt"
	"runtime"
	"sync"
	"time"
)

type stdClock struct{}

func (stdClock) Steady() time.Time { return time.Now() }
func (stdClock) System() time.Time { return time.Now() }
func (stdClock) EpochYear() int    { return 1970 }

// stdTimer implements OneShotTimer over time.AfterFunc. Cancel is safe to
// call even after the timer fired or was never armed, matching spec.md §5
// ("the handle outlives the cancel call; timer runs to drain or no-op if
// already consumed").
type stdTimer struct {
	mu sync.Mutex
	t  *time.Timer
}

func (t *stdTimer) Set(deadline time.Time, fn func()) {
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

func (t *stdTimer) Cancel() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.t != nil {
		t.t.Stop()
	}
}

type stdDebug struct{}

func (stdDebug) Break()              {} // no portable debugger trap from pure Go; host may attach externally
func (stdDebug) OutputString(s string) { fmt.Print(s) }

// stdPort is the production Port implementation for Linux/Darwin.
type stdPort struct {
	vm    *unixVM
	clock stdClock
	debug stdDebug
}

// New returns the production Port for the current OS.
func New() Port {
	return &stdPort{vm: newUnixVM()}
}

func (p *stdPort) VM() VirtualMemory   { return p.vm }
func (p *stdPort) Clock() Clock        { return p.clock }
func (p *stdPort) NewTimer() OneShotTimer { return &stdTimer{} }
func (p *stdPort) Debug() Debug        { return p.debug }
func (p *stdPort) Yield()              { runtime.Gosched() }
