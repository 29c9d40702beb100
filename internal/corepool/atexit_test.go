// Copyright 2026 Joseph Cumines
//
// Permission to use, copy, modify, and distribute this software for any
// purpose with or without fee is hereby granted, provided that this copyright
// notice appears in all copies.

package corepool

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/nirvana-core/ncore/internal/heap"
	"github.com/nirvana-core/ncore/internal/memctx"
	"github.com/nirvana-core/ncore/internal/port"
)

func TestSyncAtExitRunsLIFO(t *testing.T) {
	s := NewSyncAtExit()
	var order []int
	s.Register(func() { order = append(order, 1) })
	s.Register(func() { order = append(order, 2) })
	s.Register(func() { order = append(order, 3) })
	s.RunAll()
	require.Equal(t, []int{3, 2, 1}, order)

	// second call is a no-op
	order = nil
	s.RunAll()
	require.Nil(t, order)
}

func TestAsyncAtExitPushesRegisteredMemContext(t *testing.T) {
	h, err := heap.New(port.NewFake(), heap.WithAllocationUnit(32))
	require.NoError(t, err)
	mc := memctx.NewCore(h, memctx.Policy{})

	a := NewAsyncAtExit()
	var sawMC []*memctx.MemContext
	a.Register(mc, func() {})
	a.Register(mc, func() {})

	a.RunAll(func(gotMC *memctx.MemContext, fn func()) {
		sawMC = append(sawMC, gotMC)
		fn()
	})

	require.Len(t, sawMC, 2)
	require.Same(t, mc, sawMC[0])
	require.Same(t, mc, sawMC[1])
}
