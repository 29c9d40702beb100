// Copyright 2026 Joseph Cumines
//
// Permission to use, copy, modify, and distribute this software for any
// purpose with or without fee is hereby granted, provided that this copyright
// notice appears in all copies.

//go:build windows

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

func (stdDebug) Break()                {}
func (stdDebug) OutputString(s string) { fmt.Print(s) }

type stdPort struct {
	vm    *winVM
	clock stdClock
	debug stdDebug
}

// New returns the production Port for Windows.
func New() Port {
	return &stdPort{vm: newWinVM()}
}

func (p *stdPort) VM() VirtualMemory      { return p.vm }
func (p *stdPort) Clock() Clock           { return p.clock }
func (p *stdPort) NewTimer() OneShotTimer { return &stdTimer{} }
func (p *stdPort) Debug() Debug           { return p.debug }
func (p *stdPort) Yield()                 { runtime.Gosched() }
