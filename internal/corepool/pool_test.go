// Copyright 2026 Joseph Cumines
//
// Permission to use, copy, modify, and distribute this software for any
// purpose with or without fee is hereby granted, provided that this copyright
// notice appears in all copies.

package corepool

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestPoolReusesPutObjects(t *testing.T) {
	var constructed int
	p := New(func() int {
		constructed++
		return constructed
	})

	a := p.Get()
	require.Equal(t, 1, a)
	p.Put(a)
	require.EqualValues(t, 1, p.Len())

	b := p.Get()
	require.Equal(t, a, b)
	require.EqualValues(t, 0, p.Len())
	require.Equal(t, 1, constructed) // no second construction
}

func TestPoolGetOnEmptyConstructsNew(t *testing.T) {
	var constructed int
	p := New(func() int {
		constructed++
		return constructed
	})
	_ = p.Get()
	_ = p.Get()
	require.Equal(t, 2, constructed)
}

func TestPoolConcurrentGetPut(t *testing.T) {
	p := New(func() int { return 0 })
	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 1000; j++ {
				v := p.Get()
				p.Put(v)
			}
		}()
	}
	wg.Wait()
}

func TestHousekeeperShrinksBeyondMaxIdle(t *testing.T) {
	var closed []int
	var mu sync.Mutex
	p := New(func() int { return 0 },
		WithMaxIdle[int](2),
		WithCloseFunc(func(v int) {
			mu.Lock()
			closed = append(closed, v)
			mu.Unlock()
		}),
		WithShrinkRate[int](time.Second, 100),
	)
	for i := 0; i < 5; i++ {
		p.Put(i)
	}
	require.EqualValues(t, 5, p.Len())

	h := NewHousekeeper(10 * time.Millisecond)
	defer h.Close()
	Register(h, p)

	require.Eventually(t, func() bool {
		return p.Len() <= 2
	}, time.Second, 5*time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, closed, 3)
}
