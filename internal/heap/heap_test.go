// Copyright 2026 Joseph Cumines
//
// Permission to use, copy, modify, and distribute this software for any
// purpose with or without fee is hereby granted, provided that this copyright
// notice appears in all copies.

package heap

import (
	"math/rand"
	"sync"
	"testing"
	"unsafe"

	"github.com/stretchr/testify/require"

	"github.com/nirvana-core/ncore/internal/corerr"
	"github.com/nirvana-core/ncore/internal/port"
)

func readBytes(addr uintptr, size int) []byte {
	return unsafe.Slice((*byte)(unsafe.Pointer(addr)), size)
}

// TestAllocateReleasePair is spec.md §8 scenario S1.
func TestAllocateReleasePair(t *testing.T) {
	p := port.NewFake()
	h, err := New(p, WithAllocationUnit(32), WithPartitionUnits(64))
	require.NoError(t, err)

	ptr, err := h.Allocate(0, 64, FlagZeroInit)
	require.NoError(t, err)
	for _, b := range readBytes(ptr, 64) {
		require.Zero(t, b)
	}

	pattern := readBytes(ptr, 64)
	for i := range pattern {
		pattern[i] = byte(i + 1)
	}

	require.NoError(t, h.Release(ptr, 64))
	err = h.Release(ptr, 64)
	require.Error(t, err)
	require.True(t, corerr.Is(err, corerr.OutOfRange))
}

// TestLargeBlockSplit is spec.md §8 scenario S2.
func TestLargeBlockSplit(t *testing.T) {
	p := port.NewFake()
	h, err := New(p, WithAllocationUnit(32), WithMaxBlockUnits(4))
	require.NoError(t, err)

	const quarter = 65536
	ptr, err := h.Allocate(0, 4*quarter, 0)
	require.NoError(t, err)

	require.NoError(t, h.Release(ptr+quarter, quarter))
	require.NoError(t, h.Release(ptr+3*quarter, quarter))

	require.True(t, h.IsPrivate(ptr, quarter))
	require.True(t, h.IsPrivate(ptr+2*quarter, quarter))
	require.Equal(t, 2, h.index.Len())

	// The two surviving quarters are still readable.
	_ = readBytes(ptr, quarter)
	_ = readBytes(ptr+2*quarter, quarter)
}

// TestConcurrentAllocator is spec.md §8 scenario S3, Properties 1 and 2.
func TestConcurrentAllocator(t *testing.T) {
	p := port.NewFake()
	h, err := New(p, WithAllocationUnit(8), WithPartitionUnits(4096))
	require.NoError(t, err)

	const workers = 8
	const iterations = 500 // scaled down from the spec's 10,000 for test speed

	var wg sync.WaitGroup
	wg.Add(workers)
	for w := 0; w < workers; w++ {
		go func(seed int64) {
			defer wg.Done()
			rng := rand.New(rand.NewSource(seed))
			var owned []uintptr
			var sizes []uintptr
			for i := 0; i < iterations; i++ {
				size := uintptr(8 + rng.Intn(1024-8+1))
				ptr, err := h.Allocate(0, size, 0)
				if err != nil {
					continue
				}
				owned = append(owned, ptr)
				sizes = append(sizes, size)
			}
			for i, ptr := range owned {
				if rng.Intn(2) == 0 {
					require.True(t, h.IsPrivate(ptr, sizes[i]))
					require.NoError(t, h.Release(ptr, sizes[i]))
					owned[i] = 0
				}
			}
			for i, ptr := range owned {
				if ptr != 0 {
					require.NoError(t, h.Release(ptr, sizes[i]))
				}
			}
		}(int64(w + 1))
	}
	wg.Wait()

	require.True(t, h.Empty())
}

func TestCopySameAddressChangesProtectionOnly(t *testing.T) {
	p := port.NewFake()
	h, err := New(p, WithAllocationUnit(32))
	require.NoError(t, err)

	ptr, err := h.Allocate(0, 64, FlagZeroInit)
	require.NoError(t, err)

	got, err := h.Copy(ptr, ptr, 64, CopyReadOnly)
	require.NoError(t, err)
	require.Equal(t, ptr, got)
}

func TestCopySrcReleaseFreesSource(t *testing.T) {
	p := port.NewFake()
	h, err := New(p, WithAllocationUnit(32))
	require.NoError(t, err)

	src, err := h.Allocate(0, 64, FlagZeroInit)
	require.NoError(t, err)
	dst, err := h.Allocate(0, 64, 0)
	require.NoError(t, err)

	got, err := h.Copy(dst, src, 64, CopySrcRelease)
	require.NoError(t, err)
	require.Equal(t, dst, got)
	require.False(t, h.IsPrivate(src, 64))
}

// TestCrossHeapMoveRoundTrip is spec.md §8 Property 5.
func TestCrossHeapMoveRoundTrip(t *testing.T) {
	p := port.NewFake()
	a, err := New(p, WithAllocationUnit(32))
	require.NoError(t, err)
	b, err := New(p, WithAllocationUnit(32))
	require.NoError(t, err)

	ptr, err := a.Allocate(0, 64, FlagZeroInit)
	require.NoError(t, err)
	buf := readBytes(ptr, 64)
	for i := range buf {
		buf[i] = byte(i + 1)
	}
	original := append([]byte(nil), buf...)

	toB, err := b.MoveFrom(a, ptr, 64)
	require.NoError(t, err)
	require.False(t, a.IsPrivate(ptr, 64))
	require.True(t, b.IsPrivate(toB, 64))

	backToA, err := a.MoveFrom(b, toB, 64)
	require.NoError(t, err)
	require.True(t, a.IsPrivate(backToA, 64))
	require.Equal(t, original, readBytes(backToA, 64))
}

func TestCrossHeapMoveRoundTripLargeBlock(t *testing.T) {
	p := port.NewFake()
	a, err := New(p, WithAllocationUnit(32), WithMaxBlockUnits(1))
	require.NoError(t, err)
	b, err := New(p, WithAllocationUnit(32), WithMaxBlockUnits(1))
	require.NoError(t, err)

	ptr, err := a.Allocate(0, 1<<20, 0)
	require.NoError(t, err)

	toB, err := b.MoveFrom(a, ptr, 1<<20)
	require.NoError(t, err)
	require.Equal(t, ptr, toB) // large blocks transplant in place, no copy
	require.True(t, b.IsPrivate(toB, 1<<20))
	require.False(t, a.IsPrivate(ptr, 1<<20))
}

func TestChangeProtectionWalksAllBlocks(t *testing.T) {
	p := port.NewFake()
	h, err := New(p, WithAllocationUnit(32), WithMaxBlockUnits(2))
	require.NoError(t, err)

	small, err := h.Allocate(0, 32, 0)
	require.NoError(t, err)
	large, err := h.Allocate(0, 1<<18, 0)
	require.NoError(t, err)

	require.NoError(t, h.ChangeProtection(true))
	size, err := h.Query(small, QuerySize)
	require.NoError(t, err)
	require.Equal(t, uintptr(32), size)
	size, err = h.Query(large, QuerySize)
	require.NoError(t, err)
	require.Equal(t, uintptr(1<<18), size)
}

func TestQueryUnknownPointer(t *testing.T) {
	p := port.NewFake()
	h, err := New(p, WithAllocationUnit(32))
	require.NoError(t, err)

	_, err = h.Query(0xdead, QuerySize)
	require.Error(t, err)
	require.True(t, corerr.Is(err, corerr.InvalidPointer))
}
