// Copyright 2026 Joseph Cumines
//
// Permission to use, copy, modify, and distribute this software for any
// purpose with or without fee is hereby granted, provided that this copyright
// notice appears in all copies.

//go:build windows

package port

import (
	"fmt"

	"golang.org/x/sys/windows"
)

type winVM struct {
	pageSize uintptr
}

func newWinVM() *winVM {
	var si windows.SystemInfo
	windows.GetSystemInfo(&si)
	return &winVM{pageSize: uintptr(si.PageSize)}
}

func (v *winVM) AllocationUnit() uintptr { return v.pageSize }
func (v *winVM) PageSize() uintptr       { return v.pageSize }

func (v *winVM) Reserve(size uintptr) (uintptr, error) {
	addr, err := windows.VirtualAlloc(0, size, windows.MEM_RESERVE, windows.PAGE_NOACCESS)
	if err != nil {
		return 0, fmt.Errorf("port: reserve %d bytes: %w", size, err)
	}
	return addr, nil
}

func (v *winVM) Commit(addr, size uintptr) error {
	_, err := windows.VirtualAlloc(addr, size, windows.MEM_COMMIT, windows.PAGE_READWRITE)
	if err != nil {
		return fmt.Errorf("port: commit: %w", err)
	}
	return nil
}

func (v *winVM) Decommit(addr, size uintptr) error {
	if err := windows.VirtualFree(addr, size, windows.MEM_DECOMMIT); err != nil {
		return fmt.Errorf("port: decommit: %w", err)
	}
	return nil
}

func (v *winVM) Release(addr, size uintptr) error {
	if err := windows.VirtualFree(addr, 0, windows.MEM_RELEASE); err != nil {
		return fmt.Errorf("port: release: %w", err)
	}
	return nil
}

func (v *winVM) Protect(addr, size uintptr, prot Protection) error {
	var p uint32
	switch prot {
	case ProtNone:
		p = windows.PAGE_NOACCESS
	case ProtRead:
		p = windows.PAGE_READONLY
	case ProtReadWrite:
		p = windows.PAGE_READWRITE
	}
	var old uint32
	if err := windows.VirtualProtect(addr, size, p, &old); err != nil {
		return fmt.Errorf("port: protect: %w", err)
	}
	return nil
}
