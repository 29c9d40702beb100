// Copyright 2026 Joseph Cumines
//
// Permission to use, copy, modify, and distribute this software for any
// purpose with or without fee is hereby granted, provided that this copyright
// notice appears in all copies.

//go:build linux || darwin

package port

import (
	"fmt"
	"os"
	"unsafe"

	"golang.org/x/sys/unix"
)

// unixVM implements VirtualMemory over mmap/mprotect/munmap, the same
// golang.org/x/sys/unix package eventloop's poller already depends on
// (loop.go imports it directly for epoll/kqueue syscalls).
type unixVM struct {
	pageSize uintptr
}

func newUnixVM() *unixVM {
	return &unixVM{pageSize: uintptr(os.Getpagesize())}
}

func (v *unixVM) AllocationUnit() uintptr { return v.pageSize }
func (v *unixVM) PageSize() uintptr       { return v.pageSize }

func (v *unixVM) Reserve(size uintptr) (uintptr, error) {
	size = roundUp(size, v.pageSize)
	b, err := unix.Mmap(-1, 0, int(size), unix.PROT_NONE, unix.MAP_PRIVATE|unix.MAP_ANON)
	if err != nil {
		return 0, fmt.Errorf("port: reserve %d bytes: %w", size, err)
	}
	return uintptr(unsafe.Pointer(&b[0])), nil
}

func (v *unixVM) Commit(addr, size uintptr) error {
	if err := v.Protect(addr, size, ProtReadWrite); err != nil {
		return fmt.Errorf("port: commit: %w", err)
	}
	return nil
}

func (v *unixVM) Decommit(addr, size uintptr) error {
	size = roundUp(size, v.pageSize)
	b := bytesAt(addr, size)
	if err := unix.Madvise(b, unix.MADV_DONTNEED); err != nil {
		return fmt.Errorf("port: decommit: %w", err)
	}
	return v.Protect(addr, size, ProtNone)
}

func (v *unixVM) Release(addr, size uintptr) error {
	size = roundUp(size, v.pageSize)
	b := bytesAt(addr, size)
	if err := unix.Munmap(b); err != nil {
		return fmt.Errorf("port: release: %w", err)
	}
	return nil
}

func (v *unixVM) Protect(addr, size uintptr, prot Protection) error {
	size = roundUp(size, v.pageSize)
	b := bytesAt(addr, size)
	var p int
	switch prot {
	case ProtNone:
		p = unix.PROT_NONE
	case ProtRead:
		p = unix.PROT_READ
	case ProtReadWrite:
		p = unix.PROT_READ | unix.PROT_WRITE
	}
	if err := unix.Mprotect(b, p); err != nil {
		return fmt.Errorf("port: protect: %w", err)
	}
	return nil
}

// bytesAt views size bytes starting at addr as a []byte, for handing to
// unix.Mprotect/Munmap/Madvise, which take []byte rather than a raw
// pointer+length pair.
func bytesAt(addr, size uintptr) []byte {
	return unsafe.Slice((*byte)(unsafe.Pointer(addr)), int(size))
}
