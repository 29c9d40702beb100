// Copyright 2026 Joseph Cumines
//
// Permission to use, copy, modify, and distribute this software for any
// purpose with or without fee is hereby granted, provided that this copyright
// notice appears in all copies.

package memctx

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/nirvana-core/ncore/internal/heap"
	"github.com/nirvana-core/ncore/internal/port"
)

func newTestHeap(t *testing.T) *heap.Heap {
	t.Helper()
	h, err := heap.New(port.NewFake(), heap.WithAllocationUnit(32))
	require.NoError(t, err)
	return h
}

func TestCoreContextSharesHeapAcrossRelease(t *testing.T) {
	h := newTestHeap(t)
	mc := NewCore(h, Policy{})
	require.Equal(t, int64(2), mc.Retain())
	require.False(t, mc.Release())
	require.True(t, mc.Release())

	// The heap outlives the core context.
	_, err := h.Allocate(0, 32, 0)
	require.NoError(t, err)
}

func TestUserContextClosesHeapOnFinalRelease(t *testing.T) {
	h := newTestHeap(t)
	mc := NewUser(h, Policy{})
	ptr, err := h.Allocate(0, 32, 0)
	require.NoError(t, err)

	mc.ProxyStore(ptr, "proxied")
	v, ok := mc.ProxyLookup(ptr)
	require.True(t, ok)
	require.Equal(t, "proxied", v)

	require.True(t, mc.Release())

	mc.ProxyDelete(ptr) // the proxy table outlives the heap close; this removes the entry
	_, ok = mc.ProxyLookup(ptr)
	require.False(t, ok)
}

func TestCoreContextHasNoProxyTable(t *testing.T) {
	h := newTestHeap(t)
	mc := NewCore(h, Policy{})
	mc.ProxyStore(1, "x")
	_, ok := mc.ProxyLookup(1)
	require.False(t, ok)
}
