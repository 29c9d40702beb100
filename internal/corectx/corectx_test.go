// Copyright 2026 Joseph Cumines
//
// Permission to use, copy, modify, and distribute this software for any
// purpose with or without fee is hereby granted, provided that this copyright
// notice appears in all copies.

package corectx

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/nirvana-core/ncore/internal/execdomain"
	"github.com/nirvana-core/ncore/internal/heap"
	"github.com/nirvana-core/ncore/internal/port"
	"github.com/nirvana-core/ncore/internal/syncctx"
)

func newTestContext(t *testing.T) *Context {
	t.Helper()
	c, err := New(WithPort(port.NewFake()), WithHeapOptions(heap.WithAllocationUnit(32)))
	require.NoError(t, err)
	t.Cleanup(func() { require.NoError(t, c.Close()) })
	return c
}

func TestNewBuildsAllSingletonsAndCloseTearsDown(t *testing.T) {
	c := newTestContext(t)
	require.NotNil(t, c.Heap())
	require.NotNil(t, c.MemContext())
	require.NotNil(t, c.Scheduler())
	require.NotNil(t, c.Domains())
	require.Same(t, c.Heap(), c.MemContext().Heap())
}

func TestStartProcessThroughDomainsUsesSharedMemContext(t *testing.T) {
	c := newTestContext(t)

	var sawMC bool
	r := execdomain.RunnableFunc(func(d *execdomain.Domain) error {
		sawMC = d.MemContext() == c.MemContext()
		return nil
	})
	_, err := c.Domains().StartProcess(r, syncctx.FreeContext(), c.MemContext())
	require.NoError(t, err)
	require.True(t, sawMC)
}

func TestSyncAtExitRunsOnClose(t *testing.T) {
	c, err := New(WithPort(port.NewFake()), WithHeapOptions(heap.WithAllocationUnit(32)))
	require.NoError(t, err)

	var ran bool
	c.SyncAtExit().Register(func() { ran = true })
	require.NoError(t, c.Close())
	require.True(t, ran)
}

func TestRunAsyncAtExitRunsRegisteredFunction(t *testing.T) {
	c := newTestContext(t)

	var ran bool
	c.AsyncAtExit().Register(c.MemContext(), func() {
		ran = true
	})

	done := make(chan struct{})
	go func() {
		c.RunAsyncAtExit()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("async at-exit drain never completed")
	}
	require.True(t, ran)
}
