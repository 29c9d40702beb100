// Copyright 2026 Joseph Cumines
//
// Permission to use, copy, modify, and distribute this software for any
// purpose with or without fee is hereby granted, provided that this copyright
// notice appears in all copies.

// Package memctx implements the memory context (spec.md §4, component
// C5): a reference-counted wrapper around a heap reference, a
// runtime-proxy table, and the two deadline-policy defaults every
// execution domain consults when it pushes a new context onto its stack.
package memctx

import (
	"sync"
	"time"

	"github.com/nirvana-core/ncore/internal/heap"
	"github.com/nirvana-core/ncore/internal/lockfree"
)

// Kind distinguishes the two concrete memory-context flavors spec.md §3
// names: Core shares one process heap and carries no proxy table; User
// owns a private heap and a proxy table keyed by user pointer.
type Kind int

const (
	Core Kind = iota
	User
)

// Policy bundles the two deadline defaults a memory context carries.
type Policy struct {
	AsyncDefault  time.Duration
	OnewayDefault time.Duration
}

// MemContext is a reference-counted memory context (spec.md §3's MC).
// The zero value is not usable; construct with NewCore or NewUser.
type MemContext struct {
	kind   Kind
	refs   lockfree.RefCount
	h      *heap.Heap
	policy Policy

	proxyMu sync.RWMutex
	proxy   map[uintptr]any // user kind only
}

// NewCore wraps the shared process heap in a Core memory context. Core
// contexts never own their heap — closing them never releases h.
func NewCore(h *heap.Heap, policy Policy) *MemContext {
	mc := &MemContext{kind: Core, h: h, policy: policy}
	mc.refs.Init(1)
	return mc
}

// NewUser wraps a private heap in a User memory context with its own
// proxy table. The context owns h: once its reference count drops to
// zero, h.Close is called.
func NewUser(h *heap.Heap, policy Policy) *MemContext {
	mc := &MemContext{kind: User, h: h, policy: policy, proxy: make(map[uintptr]any)}
	mc.refs.Init(1)
	return mc
}

// Kind reports whether this is a Core or User memory context.
func (mc *MemContext) Kind() Kind { return mc.kind }

// Heap returns the heap this context allocates from.
func (mc *MemContext) Heap() *heap.Heap { return mc.h }

// Policy returns the deadline-policy defaults this context carries.
func (mc *MemContext) Policy() Policy { return mc.policy }

// Retain bumps the reference count, returning the new count. Called
// whenever an execution domain pushes this context onto its mem-context
// stack.
func (mc *MemContext) Retain() int64 { return mc.refs.Retain() }

// Release drops the reference count. If it reaches zero, a User
// context's heap is closed; a Core context's heap is left alone (it
// outlives every MC that shares it). Returns true iff this call observed
// the count reach zero.
func (mc *MemContext) Release() bool {
	if !mc.refs.Release() {
		return false
	}
	if mc.kind == User {
		_ = mc.h.Close()
	}
	return true
}

// ProxyLookup returns the runtime-proxy entry registered for a user
// pointer. Core contexts have no proxy table and always report not-found.
func (mc *MemContext) ProxyLookup(ptr uintptr) (any, bool) {
	if mc.kind != User {
		return nil, false
	}
	mc.proxyMu.RLock()
	defer mc.proxyMu.RUnlock()
	v, ok := mc.proxy[ptr]
	return v, ok
}

// ProxyStore registers a runtime-proxy entry for a user pointer. It is a
// no-op on a Core context, which has no proxy table.
func (mc *MemContext) ProxyStore(ptr uintptr, val any) {
	if mc.kind != User {
		return
	}
	mc.proxyMu.Lock()
	mc.proxy[ptr] = val
	mc.proxyMu.Unlock()
}

// ProxyDelete removes a runtime-proxy entry.
func (mc *MemContext) ProxyDelete(ptr uintptr) {
	if mc.kind != User {
		return
	}
	mc.proxyMu.Lock()
	delete(mc.proxy, ptr)
	mc.proxyMu.Unlock()
}
