// Copyright 2026 Joseph Cumines
//
// Permission to use, copy, modify, and distribute this software for any
// purpose with or without fee is hereby granted, provided that this copyright
// notice appears in all copies.

package syncctx

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/nirvana-core/ncore/internal/heap"
	"github.com/nirvana-core/ncore/internal/memctx"
	"github.com/nirvana-core/ncore/internal/port"
	"github.com/nirvana-core/ncore/internal/scheduler"
	"github.com/nirvana-core/ncore/internal/syncdomain"
)

type fakeExec struct{ fn func() }

func (f *fakeExec) Dispatch() { f.fn() }

func TestFreeContextDispatchesInline(t *testing.T) {
	c := FreeContext()
	require.Equal(t, Free, c.Kind())

	var ran bool
	c.Schedule(time.Now(), &fakeExec{fn: func() { ran = true }})
	require.True(t, ran)
}

func TestProcessContextDispatchesInlineAndEqualityIsIdentity(t *testing.T) {
	p1 := &ProcessEntry{Name: "ior-host"}
	p2 := &ProcessEntry{Name: "ior-host"}
	c1 := FromProcess(p1)
	c2 := FromProcess(p1)
	c3 := FromProcess(p2)

	require.True(t, c1.Equal(c2))
	require.False(t, c1.Equal(c3))

	var ran bool
	c1.Schedule(time.Now(), &fakeExec{fn: func() { ran = true }})
	require.True(t, ran)
}

func TestLegacyThreadContextRunsOnSameGoroutineSerially(t *testing.T) {
	lt := NewLegacyThread()
	defer lt.Close()
	c := FromLegacyThread(lt)
	require.Equal(t, LegacyThread, c.Kind())

	var mu sync.Mutex
	var order []int
	var wg sync.WaitGroup
	for i := 0; i < 5; i++ {
		i := i
		wg.Add(1)
		go func() {
			defer wg.Done()
			c.Schedule(time.Now(), &fakeExec{fn: func() {
				mu.Lock()
				order = append(order, i)
				mu.Unlock()
			}})
		}()
	}
	wg.Wait()

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, order, 5)
}

func TestSyncDomainContextSchedulesThroughDomain(t *testing.T) {
	master := scheduler.New(1)
	defer master.Close()

	h, err := heap.New(port.NewFake(), heap.WithAllocationUnit(32))
	require.NoError(t, err)
	mc := memctx.NewCore(h, memctx.Policy{})
	d := syncdomain.New(master, mc)
	c := FromDomain(d)

	require.Equal(t, SyncDomain, c.Kind())
	got, ok := c.Domain()
	require.True(t, ok)
	require.Same(t, d, got)

	done := make(chan struct{})
	c.Schedule(time.Now(), &fakeExec{fn: func() { close(done) }})

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("sync domain context did not dispatch")
	}
}
