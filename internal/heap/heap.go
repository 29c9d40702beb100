// Copyright 2026 Joseph Cumines
//
// Permission to use, copy, modify, and distribute this software for any
// purpose with or without fee is hereby granted, provided that this copyright
// notice appears in all copies.

// Package heap implements the lock-free, page-granular heap engine
// (spec.md §4.3, component C4). Each Heap owns a private partition list
// (a bitmap-directory allocator for small/medium requests) and a
// skip-list block index keyed by begin-address descending, so a
// lower-bound probe against the index finds the enclosing block for any
// pointer in one traversal (spec.md §3).
//
// Grounded on eventloop's registry/ingress lifecycle discipline
// (allocate-or-append-new-backing-chunk, never leaking a chunk a racing
// allocator didn't need) and on internal/skiplist + internal/lockfree for
// the lock-free primitives themselves.
package heap

import (
	"fmt"
	"unsafe"

	"github.com/nirvana-core/ncore/internal/corerr"
	"github.com/nirvana-core/ncore/internal/lockfree"
	"github.com/nirvana-core/ncore/internal/port"
	"github.com/nirvana-core/ncore/internal/skiplist"
)

// Flag bits accepted by Allocate.
type Flag uint32

const (
	FlagZeroInit Flag = 1 << iota
	FlagReserved      // skip the commit step; caller commits explicitly later
	FlagReadOnly      // apply read-only protection after allocation
)

// CopyFlag bits accepted by Copy.
type CopyFlag uint32

const (
	CopyReadOnly CopyFlag = 1 << iota
	CopySrcRelease
	CopyDstAllocate
	CopySimpleCopy
	CopyExactly
	CopyReadWrite
)

// QueryParam selects what Query reports about a pointer.
type QueryParam int

const (
	QuerySize QueryParam = iota
	QueryState
)

type blockKind int

const (
	kindPartition blockKind = iota
	kindLarge
)

// blockEntry is the skip-list value for both partition-backed and
// OS-backed large blocks, unified so the index's lower-bound probe
// (spec.md §3) serves Release/Copy/Query regardless of which allocator
// path produced the block.
type blockEntry struct {
	kind     blockKind
	addr     uintptr
	size     uintptr // partition blocks only; immutable once inserted
	heap     *Heap
	part     *partition // partition blocks only
	unitOff  int
	unitCnt  int
	large    *largeState // large blocks only
	readOnly bool
}

func (e *blockEntry) currentSize() uintptr {
	if e.kind == kindLarge {
		sz, _ := e.large.load()
		return sz
	}
	return e.size
}

// negAddr maps an address to a skip-list key such that ascending key
// order is descending address order, matching spec.md §3's "index
// entries sort by begin-address descending so lower-bound finds the
// enclosing block in one probe".
func negAddr(addr uintptr) int64 { return -int64(addr) }

// Heap is one lock-free, page-granular heap (spec.md §4.3).
type Heap struct {
	port          port.Port
	allocUnit     uintptr
	unitsPerPart  int
	maxBlockUnits int
	partitions    partitionList
	index         *skiplist.List[int64, *blockEntry]
	rng           *lockfree.XorShiftRNG
}

// New constructs a Heap backed by p.
func New(p port.Port, opts ...Option) (*Heap, error) {
	o := resolveOptions(opts)
	allocUnit := o.allocUnit
	if allocUnit == 0 {
		allocUnit = p.VM().PageSize()
	}
	allocUnit = clamp(roundUpPow2(allocUnit), UnitMin, UnitMax)

	rng := o.rng
	if rng == nil {
		rng = lockfree.NewXorShiftRNG(0)
	}

	h := &Heap{
		port:          p,
		allocUnit:     allocUnit,
		unitsPerPart:  o.partitionUnits,
		maxBlockUnits: o.maxBlockUnits,
		index:         skiplist.New[int64, *blockEntry](rng),
		rng:           rng,
	}
	return h, nil
}

func (h *Heap) unitsFor(size uintptr) int {
	return int((size + h.allocUnit - 1) / h.allocUnit)
}

// newPartition reserves a fresh partition from the port.
func (h *Heap) newPartition() (*partition, error) {
	span := uintptr(h.unitsPerPart) * h.allocUnit
	base, err := h.port.VM().Reserve(span)
	if err != nil {
		return nil, corerr.New("heap.allocate", corerr.OutOfMemory, err)
	}
	return &partition{base: base, units: h.unitsPerPart, dir: newDirectory(h.unitsPerPart)}, nil
}

// Allocate satisfies spec.md §4.3's Allocate operation. hint == 0 means
// "anywhere"; a non-zero hint requests allocation at that exact address.
// The hint is honoured only for requests that fit in a partition; a
// request above the largest partition block is placed anywhere.
func (h *Heap) Allocate(hint, size uintptr, flags Flag) (uintptr, error) {
	if size == 0 {
		return 0, corerr.New("heap.allocate", corerr.InvalidFlag, nil)
	}
	units := h.unitsFor(size)
	if units > h.maxBlockUnits {
		return h.allocateLarge(size, flags)
	}
	if hint != 0 {
		return h.allocateAt(hint, size, units, flags)
	}
	return h.allocateSmall(size, units, flags)
}

func (h *Heap) allocateSmall(size uintptr, units int, flags Flag) (uintptr, error) {
	for {
		var found *partition
		var off int
		h.partitions.each(func(p *partition) {
			if found != nil {
				return
			}
			if o, ok := p.dir.findFreeRun(units); ok {
				found, off = p, o
			}
		})
		if found == nil {
			np, err := h.newPartition()
			if err != nil {
				return 0, err
			}
			winner := h.partitions.append(np)
			if winner != np {
				// Lost the race to publish; give back our reservation.
				_ = h.port.VM().Release(np.base, uintptr(np.units)*h.allocUnit)
			}
			continue
		}
		addr := found.base + uintptr(off)*h.allocUnit
		return h.finishPartitionAlloc(found, off, units, addr, size, flags)
	}
}

func (h *Heap) allocateAt(hint uintptr, size uintptr, units int, flags Flag) (uintptr, error) {
	var target *partition
	var off int
	found := false
	h.partitions.each(func(p *partition) {
		if found {
			return
		}
		span := uintptr(p.units) * h.allocUnit
		if hint < p.base || hint >= p.base+span {
			return
		}
		delta := hint - p.base
		if delta%h.allocUnit != 0 {
			return
		}
		target, off, found = p, int(delta/h.allocUnit), true
	})
	if !found {
		return 0, corerr.New("heap.allocate", corerr.InvalidPointer, nil)
	}
	if !target.dir.tryClaim(off, units) {
		return 0, corerr.New("heap.allocate", corerr.OutOfMemory, nil)
	}
	return h.finishPartitionAlloc(target, off, units, hint, size, flags)
}

func (h *Heap) finishPartitionAlloc(p *partition, off, units int, addr, size uintptr, flags Flag) (uintptr, error) {
	if flags&FlagReserved == 0 {
		if err := h.port.VM().Commit(addr, uintptr(units)*h.allocUnit); err != nil {
			p.dir.release(off, units)
			return 0, corerr.New("heap.allocate", corerr.OutOfMemory, err)
		}
	}
	if flags&FlagZeroInit != 0 {
		zero(addr, size)
	}
	if flags&FlagReadOnly != 0 {
		if err := h.port.VM().Protect(addr, uintptr(units)*h.allocUnit, port.ProtRead); err != nil {
			return 0, corerr.New("heap.allocate", corerr.ProtectionViolation, err)
		}
	}
	entry := &blockEntry{
		kind:     kindPartition,
		addr:     addr,
		size:     size,
		heap:     h,
		part:     p,
		unitOff:  off,
		unitCnt:  units,
		readOnly: flags&FlagReadOnly != 0,
	}
	h.index.Insert(negAddr(addr), entry)
	return addr, nil
}

func (h *Heap) allocateLarge(size uintptr, flags Flag) (uintptr, error) {
	unit := h.port.VM().AllocationUnit()
	rounded := (size + unit - 1) &^ (unit - 1)
	addr, err := h.port.VM().Reserve(rounded)
	if err != nil {
		return 0, corerr.New("heap.allocate", corerr.OutOfMemory, err)
	}
	if flags&FlagReserved == 0 {
		if err := h.port.VM().Commit(addr, rounded); err != nil {
			_ = h.port.VM().Release(addr, rounded)
			return 0, corerr.New("heap.allocate", corerr.OutOfMemory, err)
		}
	}
	if flags&FlagZeroInit != 0 {
		zero(addr, size)
	}
	if flags&FlagReadOnly != 0 {
		if err := h.port.VM().Protect(addr, rounded, port.ProtRead); err != nil {
			return 0, corerr.New("heap.allocate", corerr.ProtectionViolation, err)
		}
	}
	entry := &blockEntry{
		kind:     kindLarge,
		addr:     addr,
		heap:     h,
		large:    newLargeState(size),
		readOnly: flags&FlagReadOnly != 0,
	}
	h.index.Insert(negAddr(addr), entry)
	return addr, nil
}

func zero(addr, size uintptr) {
	clear(unsafe.Slice((*byte)(unsafe.Pointer(addr)), int(size)))
}

// Release satisfies spec.md §4.3's Release operation.
func (h *Heap) Release(ptr, size uintptr) error {
	n, ok := h.index.LowerBound(negAddr(ptr))
	if !ok {
		return corerr.New("heap.release", corerr.OutOfRange, nil)
	}
	defer n.Release()
	e := n.Value()
	if e.addr > ptr {
		return corerr.New("heap.release", corerr.OutOfRange, nil)
	}
	switch e.kind {
	case kindPartition:
		return h.releasePartition(n, e, ptr, size)
	default:
		return h.releaseLarge(n, e, ptr, size)
	}
}

func (h *Heap) releasePartition(n skiplist.Node[int64, *blockEntry], e *blockEntry, ptr, size uintptr) error {
	if ptr != e.addr || size != e.size {
		return corerr.New("heap.release", corerr.OutOfRange, nil)
	}
	if !e.part.dir.release(e.unitOff, e.unitCnt) {
		return corerr.New("heap.release", corerr.OutOfRange, nil)
	}
	_ = h.port.VM().Decommit(e.addr, uintptr(e.unitCnt)*h.allocUnit)
	if !h.index.Remove(n) {
		return corerr.New("heap.release", corerr.Internal, nil)
	}
	return nil
}

func (h *Heap) releaseLarge(n skiplist.Node[int64, *blockEntry], e *blockEntry, ptr, size uintptr) error {
	for {
		word := e.large.sizeWord.Load()
		sz, collapsed := unpackSizeWord(word)
		if collapsed {
			return corerr.New("heap.release", corerr.OutOfRange, nil)
		}
		if ptr < e.addr || ptr+size > e.addr+sz {
			return corerr.New("heap.release", corerr.OutOfRange, nil)
		}
		headSize := ptr - e.addr
		tailSize := (e.addr + sz) - (ptr + size)

		if headSize == 0 && tailSize == 0 {
			if !e.large.collapse(word) {
				continue
			}
			if err := h.port.VM().Release(e.addr, sz); err != nil {
				e.large.uncollapse(packSizeWord(sz, true))
				return corerr.New("heap.release", corerr.Internal, err)
			}
			h.index.Remove(n)
			return nil
		}

		if err := h.port.VM().Decommit(ptr, size); err != nil {
			return corerr.New("heap.release", corerr.Internal, err)
		}
		if !e.large.collapse(word) {
			continue
		}
		h.index.Remove(n)
		if headSize > 0 {
			h.index.Insert(negAddr(e.addr), &blockEntry{kind: kindLarge, addr: e.addr, heap: h, large: newLargeState(headSize)})
		}
		if tailSize > 0 {
			tailAddr := ptr + size
			h.index.Insert(negAddr(tailAddr), &blockEntry{kind: kindLarge, addr: tailAddr, heap: h, large: newLargeState(tailSize)})
		}
		return nil
	}
}

// Copy satisfies spec.md §4.3's Copy operation.
func (h *Heap) Copy(dst, src, size uintptr, flags CopyFlag) (uintptr, error) {
	if dst == src {
		prot := port.ProtReadWrite
		if flags&CopyReadOnly != 0 {
			prot = port.ProtRead
		}
		if err := h.port.VM().Protect(dst, size, prot); err != nil {
			return 0, corerr.New("heap.copy", corerr.ProtectionViolation, err)
		}
		return dst, nil
	}
	if flags&CopyDstAllocate != 0 && rangesOverlap(dst, src, size) {
		newDst, err := h.Allocate(0, size, 0)
		if err != nil {
			return 0, err
		}
		dst = newDst
	}
	copy(unsafe.Slice((*byte)(unsafe.Pointer(dst)), int(size)), unsafe.Slice((*byte)(unsafe.Pointer(src)), int(size)))
	if flags&CopyReadOnly != 0 {
		if err := h.port.VM().Protect(dst, size, port.ProtRead); err != nil {
			return dst, corerr.New("heap.copy", corerr.ProtectionViolation, err)
		}
	}
	if flags&CopySrcRelease != 0 {
		if err := h.Release(src, size); err != nil {
			return dst, err
		}
	}
	return dst, nil
}

func rangesOverlap(a, b, size uintptr) bool {
	return a < b+size && b < a+size
}

// MoveFrom satisfies spec.md §4.3's cross-heap move_from operation.
func (h *Heap) MoveFrom(other *Heap, ptr, size uintptr) (uintptr, error) {
	n, ok := other.index.Find(negAddr(ptr))
	if !ok {
		return 0, corerr.New("heap.move_from", corerr.InvalidPointer, nil)
	}
	e := n.Value()
	if e.addr != ptr || e.currentSize() != size {
		n.Release()
		return 0, corerr.New("heap.move_from", corerr.InvalidPointer, nil)
	}
	if e.kind == kindLarge {
		other.index.Remove(n)
		n.Release()
		e.heap = h
		h.index.Insert(negAddr(e.addr), e)
		return e.addr, nil
	}
	n.Release()
	dst, err := h.Allocate(0, size, 0)
	if err != nil {
		return 0, err
	}
	copy(unsafe.Slice((*byte)(unsafe.Pointer(dst)), int(size)), unsafe.Slice((*byte)(unsafe.Pointer(ptr)), int(size)))
	if err := other.Release(ptr, size); err != nil {
		return 0, err
	}
	return dst, nil
}

// ChangeProtection satisfies spec.md §4.3's change_protection operation,
// walking every live block in the heap.
func (h *Heap) ChangeProtection(readOnly bool) error {
	prot := port.ProtReadWrite
	if readOnly {
		prot = port.ProtRead
	}
	var firstErr error
	h.index.Range(func(_ int64, e *blockEntry) bool {
		sz := e.currentSize()
		if err := h.port.VM().Protect(e.addr, sz, prot); err != nil && firstErr == nil {
			firstErr = corerr.New("heap.change_protection", corerr.ProtectionViolation, err)
		}
		return true
	})
	return firstErr
}

// IsPrivate satisfies spec.md §4.3's ownership-check operation.
func (h *Heap) IsPrivate(ptr, size uintptr) bool {
	n, ok := h.index.LowerBound(negAddr(ptr))
	if !ok {
		return false
	}
	defer n.Release()
	e := n.Value()
	if e.heap != h {
		return false
	}
	return ptr >= e.addr && ptr+size <= e.addr+e.currentSize()
}

// Query satisfies spec.md §4.3's query surface.
func (h *Heap) Query(ptr uintptr, param QueryParam) (uintptr, error) {
	n, ok := h.index.LowerBound(negAddr(ptr))
	if !ok || n.Value().addr > ptr {
		if ok {
			n.Release()
		}
		return 0, corerr.New("heap.query", corerr.InvalidPointer, nil)
	}
	defer n.Release()
	e := n.Value()
	switch param {
	case QuerySize:
		return e.currentSize(), nil
	case QueryState:
		if e.readOnly {
			return uintptr(port.ProtRead), nil
		}
		return uintptr(port.ProtReadWrite), nil
	default:
		return 0, corerr.New("heap.query", corerr.InvalidFlag, nil)
	}
}

// Empty reports whether every partition directory is entirely free and no
// large blocks remain — the diagnostic spec.md §8 scenario S3 calls "the
// heap's cleanup call".
func (h *Heap) Empty() bool {
	if h.index.Len() != 0 {
		return false
	}
	empty := true
	h.partitions.each(func(p *partition) {
		if !p.dir.empty() {
			empty = false
		}
	})
	return empty
}

// Close releases every partition and large block this heap still owns.
func (h *Heap) Close() error {
	var firstErr error
	h.index.Range(func(key int64, e *blockEntry) bool {
		if e.kind == kindLarge {
			sz, collapsed := e.large.load()
			if !collapsed {
				if err := h.port.VM().Release(e.addr, sz); err != nil && firstErr == nil {
					firstErr = fmt.Errorf("heap.close: %w", err)
				}
			}
		}
		return true
	})
	h.partitions.each(func(p *partition) {
		span := uintptr(p.units) * h.allocUnit
		_ = h.port.VM().Release(p.base, span)
	})
	return firstErr
}
