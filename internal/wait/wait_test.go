// Copyright 2026 Joseph Cumines
//
// Permission to use, copy, modify, and distribute this software for any
// purpose with or without fee is hereby granted, provided that this copyright
// notice appears in all copies.

package wait

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/nirvana-core/ncore/internal/execdomain"
	"github.com/nirvana-core/ncore/internal/heap"
	"github.com/nirvana-core/ncore/internal/memctx"
	"github.com/nirvana-core/ncore/internal/port"
	"github.com/nirvana-core/ncore/internal/syncctx"
)

func newTestMemContext(t *testing.T) *memctx.MemContext {
	t.Helper()
	h, err := heap.New(port.NewFake(), heap.WithAllocationUnit(32))
	require.NoError(t, err)
	return memctx.NewCore(h, memctx.Policy{})
}

// runOnDomain drives fn to completion inside a real execution domain,
// returning whatever fn itself records via the closures it captures.
func runOnDomain(t *testing.T, fn func(d *execdomain.Domain)) {
	t.Helper()
	m := execdomain.NewManager()
	mc := newTestMemContext(t)
	done := make(chan struct{})
	r := execdomain.RunnableFunc(func(d *execdomain.Domain) error {
		fn(d)
		close(done)
		return nil
	})
	_, err := m.AsyncCall(time.Now(), r, syncctx.FreeContext(), mc)
	require.NoError(t, err)
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("domain never completed")
	}
}

func TestEventSyncTimeoutSignalOneWakesOldestWaiter(t *testing.T) {
	ev := NewEventSyncTimeout()
	var order []int
	var mu sync.Mutex
	var wg sync.WaitGroup

	for i := 0; i < 3; i++ {
		i := i
		wg.Add(1)
		go runOnDomain(t, func(d *execdomain.Domain) {
			defer wg.Done()
			ok, err := ev.Wait(d, Infinite)
			require.NoError(t, err)
			require.True(t, ok)
			mu.Lock()
			order = append(order, i)
			mu.Unlock()
		})
		time.Sleep(10 * time.Millisecond) // ensure arrival order
	}

	for i := 0; i < 3; i++ {
		ev.SignalOne()
		time.Sleep(10 * time.Millisecond)
	}
	wg.Wait()

	require.Equal(t, []int{0, 1, 2}, order)
}

func TestEventSyncTimeoutSignalBeforeWaitIsLatched(t *testing.T) {
	ev := NewEventSyncTimeout()
	ev.SignalOne()

	runOnDomain(t, func(d *execdomain.Domain) {
		ok, err := ev.Wait(d, Infinite)
		require.NoError(t, err)
		require.True(t, ok)
	})
}

func TestEventSyncTimeoutWaitTimesOut(t *testing.T) {
	ev := NewEventSyncTimeout()
	runOnDomain(t, func(d *execdomain.Domain) {
		ok, err := ev.Wait(d, 20*time.Millisecond)
		require.NoError(t, err)
		require.False(t, ok)
	})
}

func TestEventSyncTimeoutSignalAllSaturates(t *testing.T) {
	ev := NewEventSyncTimeout()
	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go runOnDomain(t, func(d *execdomain.Domain) {
			defer wg.Done()
			ok, err := ev.Wait(d, Infinite)
			require.NoError(t, err)
			require.True(t, ok)
		})
	}
	time.Sleep(20 * time.Millisecond)
	ev.SignalAll()
	wg.Wait()

	// Saturated: a later Wait returns signalled immediately.
	runOnDomain(t, func(d *execdomain.Domain) {
		ok, err := ev.Wait(d, 0)
		require.NoError(t, err)
		require.True(t, ok)
	})
}

func TestEventUserManualResetStaysSignalled(t *testing.T) {
	ev := NewEventUser(false)
	ev.Set()

	runOnDomain(t, func(d *execdomain.Domain) {
		ok, err := ev.Wait(d, Infinite)
		require.NoError(t, err)
		require.True(t, ok)
	})
	runOnDomain(t, func(d *execdomain.Domain) {
		ok, err := ev.Wait(d, Infinite)
		require.NoError(t, err)
		require.True(t, ok)
	})

	ev.Reset()
	runOnDomain(t, func(d *execdomain.Domain) {
		ok, err := ev.Wait(d, 10*time.Millisecond)
		require.NoError(t, err)
		require.False(t, ok)
	})
}

func TestEventUserAutoResetReleasesOneWaiter(t *testing.T) {
	ev := NewEventUser(true)
	var wg sync.WaitGroup
	released := make(chan int, 2)

	for i := 0; i < 2; i++ {
		i := i
		wg.Add(1)
		go runOnDomain(t, func(d *execdomain.Domain) {
			defer wg.Done()
			ok, err := ev.Wait(d, Infinite)
			if err == nil && ok {
				released <- i
			}
		})
	}
	time.Sleep(20 * time.Millisecond)

	ev.Set()
	time.Sleep(20 * time.Millisecond)
	require.Len(t, released, 1)

	ev.Set()
	wg.Wait()
	require.Len(t, released, 2)
}

func TestEventSyncTimeoutWaitDefaultUsesConfiguredTimeout(t *testing.T) {
	ev := NewEventSyncTimeout(WithDefaultTimeout(20 * time.Millisecond))
	runOnDomain(t, func(d *execdomain.Domain) {
		ok, err := ev.WaitDefault(d)
		require.NoError(t, err)
		require.False(t, ok)
	})
}

func TestInitOnceRunsInitExactlyOnce(t *testing.T) {
	var o InitOnce
	var calls int
	var mu sync.Mutex
	var wg sync.WaitGroup

	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := o.Do(func() error {
				mu.Lock()
				calls++
				mu.Unlock()
				return nil
			})
			require.NoError(t, err)
		}()
	}
	wg.Wait()

	require.Equal(t, 1, calls)
	require.True(t, o.Done())
}

func TestInitOnceLateArrivalsSeeSameError(t *testing.T) {
	var o InitOnce
	sentinel := timeoutErr("wait.test")
	var wg sync.WaitGroup
	errs := make([]error, 8)

	for i := range errs {
		i := i
		wg.Add(1)
		go func() {
			defer wg.Done()
			errs[i] = o.Do(func() error { return sentinel })
		}()
	}
	wg.Wait()

	for _, err := range errs {
		require.Same(t, sentinel, err)
	}
}

func TestSleepSuspendsAndResumesAfterDelay(t *testing.T) {
	start := time.Now()
	runOnDomain(t, func(d *execdomain.Domain) {
		require.NoError(t, Sleep(d, 30*time.Millisecond))
	})
	require.GreaterOrEqual(t, time.Since(start), 30*time.Millisecond)
}

func TestAsyncTimerFiresAndCancel(t *testing.T) {
	fired := make(chan struct{})
	timer := NewAsyncTimer(10*time.Millisecond, func() { close(fired) })
	select {
	case <-fired:
	case <-time.After(time.Second):
		t.Fatal("async timer never fired")
	}

	fired2 := make(chan struct{})
	timer2 := NewAsyncTimer(50*time.Millisecond, func() { close(fired2) })
	require.True(t, timer2.Cancel())
	select {
	case <-fired2:
		t.Fatal("cancelled timer still fired")
	case <-time.After(100 * time.Millisecond):
	}
	_ = timer
}
