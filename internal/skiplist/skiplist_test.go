// Copyright 2026 Joseph Cumines
//
// Permission to use, copy, modify, and distribute this software for any
// purpose with or without fee is hereby granted, provided that this copyright
// notice appears in all copies.

package skiplist

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestInsertFindDelete(t *testing.T) {
	l := New[int, string](nil)

	n, ok := l.Insert(5, "five")
	require.True(t, ok)
	require.Equal(t, "five", n.Value())
	n.Release()

	n2, ok := l.Insert(5, "five-again")
	require.False(t, ok)
	require.Equal(t, "five", n2.Value())
	n2.Release()

	found, ok := l.Find(5)
	require.True(t, ok)
	require.Equal(t, "five", found.Value())
	found.Release()

	removed, ok := l.FindAndDelete(5)
	require.True(t, ok)
	require.Equal(t, "five", removed.Value())
	removed.Release()

	_, ok = l.Find(5)
	require.False(t, ok)
}

func TestDeleteMinOrdering(t *testing.T) {
	l := New[int, int](nil)
	for _, k := range []int{5, 1, 3, 2, 4} {
		n, _ := l.Insert(k, k)
		n.Release()
	}

	var got []int
	for {
		n, ok := l.DeleteMin()
		if !ok {
			break
		}
		got = append(got, n.Key())
		n.Release()
	}
	require.Equal(t, []int{1, 2, 3, 4, 5}, got)
}

func TestLowerBoundFindsEnclosing(t *testing.T) {
	l := New[int, int](nil)
	for _, k := range []int{10, 20, 30} {
		n, _ := l.Insert(k, k)
		n.Release()
	}
	n, ok := l.LowerBound(15)
	require.True(t, ok)
	require.Equal(t, 20, n.Key())
	n.Release()
}

func TestConcurrentInsertUniqueness(t *testing.T) {
	l := New[int, int](nil)
	const goroutines = 16
	const keys = 200

	var wg sync.WaitGroup
	wins := make([][]bool, goroutines)
	for g := 0; g < goroutines; g++ {
		wins[g] = make([]bool, keys)
		wg.Add(1)
		go func(g int) {
			defer wg.Done()
			for k := 0; k < keys; k++ {
				n, ok := l.Insert(k, g)
				wins[g][k] = ok
				n.Release()
			}
		}(g)
	}
	wg.Wait()

	for k := 0; k < keys; k++ {
		winners := 0
		for g := 0; g < goroutines; g++ {
			if wins[g][k] {
				winners++
			}
		}
		require.Equal(t, 1, winners, "key %d should have exactly one winning inserter", k)
	}
	require.Equal(t, keys, l.Len())
}

func TestRemoveReusesHandle(t *testing.T) {
	l := New[int, int](nil)
	n, _ := l.Insert(1, 100)
	ok := l.Remove(n)
	require.True(t, ok)
	n.Release()
	require.Equal(t, 0, l.Len())
}
