// Copyright 2026 Joseph Cumines
//
// Permission to use, copy, modify, and distribute this software for any
// purpose with or without fee is hereby granted, provided that this copyright
// notice appears in all copies.

// Package corectx bundles the process-scoped singletons spec.md §9's
// design notes insist never become truly-global mutable state: the
// process heap, its shared memory context, the master scheduler, the
// at-exit registries, and the execution-domain manager, all behind one
// owned value instead of package-level globals. Grounded on
// eventloop/loop.go's own Loop struct, which plays exactly this role
// for an event loop (one owned value bundling ingress queue, timer
// heap, and logger) rather than spreading that state across package
// variables.
package corectx

import (
	"time"

	"github.com/nirvana-core/ncore/internal/corelog"
	"github.com/nirvana-core/ncore/internal/corepool"
	"github.com/nirvana-core/ncore/internal/corerr"
	"github.com/nirvana-core/ncore/internal/execdomain"
	"github.com/nirvana-core/ncore/internal/heap"
	"github.com/nirvana-core/ncore/internal/memctx"
	"github.com/nirvana-core/ncore/internal/port"
	"github.com/nirvana-core/ncore/internal/scheduler"
	"github.com/nirvana-core/ncore/internal/syncctx"
)

// Context is one owned Nirvana Core instance. The zero value is not
// usable; construct with New.
type Context struct {
	log *corelog.Logger

	port      port.Port
	procHeap  *heap.Heap
	procMC    *memctx.MemContext
	scheduler *scheduler.Master
	edMgr     *execdomain.Manager

	syncExit  *corepool.SyncAtExit
	asyncExit *corepool.AsyncAtExit

	housekeeper *corepool.Housekeeper
}

// New constructs a Context: a process heap over the given (or default
// production) port, a Core memory context wrapping it, a master
// scheduler, fresh at-exit registries, and an execution-domain manager.
// Close tears every piece down in the reverse of this order.
func New(opts ...Option) (*Context, error) {
	o := resolveOptions(opts)

	p := o.port
	if p == nil {
		p = port.New()
	}

	h, err := heap.New(p, o.heapOpts...)
	if err != nil {
		return nil, corerr.New("corectx.New", corerr.Internal, err)
	}

	mc := memctx.NewCore(h, o.policy)

	master := scheduler.New(o.workers, append([]scheduler.Option{scheduler.WithLogger(o.log)}, o.schedOpts...)...)

	edMgr := execdomain.NewManager(execdomain.WithLogger(o.log))

	c := &Context{
		log:         o.log,
		port:        p,
		procHeap:    h,
		procMC:      mc,
		scheduler:   master,
		edMgr:       edMgr,
		syncExit:    corepool.NewSyncAtExit(),
		asyncExit:   corepool.NewAsyncAtExit(),
		housekeeper: corepool.NewHousekeeper(o.housekeepInterval),
	}
	return c, nil
}

// Logger returns the core's structured logger.
func (c *Context) Logger() *corelog.Logger { return c.log }

// Port returns the OS-facing port this core was built over.
func (c *Context) Port() port.Port { return c.port }

// Heap returns the process heap.
func (c *Context) Heap() *heap.Heap { return c.procHeap }

// MemContext returns the shared Core memory context wrapping Heap().
func (c *Context) MemContext() *memctx.MemContext { return c.procMC }

// Scheduler returns the master scheduler.
func (c *Context) Scheduler() *scheduler.Master { return c.scheduler }

// Domains returns the execution-domain manager.
func (c *Context) Domains() *execdomain.Manager { return c.edMgr }

// SyncAtExit returns the synchronous (process-unload) at-exit registry.
func (c *Context) SyncAtExit() *corepool.SyncAtExit { return c.syncExit }

// AsyncAtExit returns the asynchronous at-exit registry.
func (c *Context) AsyncAtExit() *corepool.AsyncAtExit { return c.asyncExit }

// Housekeeper returns the background pool-shrink sweeper every
// corepool.Pool registered against this context shares.
func (c *Context) Housekeeper() *corepool.Housekeeper { return c.housekeeper }

// RunAsyncAtExit drains the asynchronous at-exit registry, running each
// entry's function with its recorded memory context pushed onto a fresh
// execution domain — the push/pop wiring corepool.AsyncAtExit itself
// cannot perform (it never imports internal/execdomain to avoid a
// cycle), per spec.md §4.9.
func (c *Context) RunAsyncAtExit() {
	done := make(chan struct{})
	r := execdomain.RunnableFunc(func(d *execdomain.Domain) error {
		c.asyncExit.RunAll(d.WithMemContext)
		close(done)
		return nil
	})
	if _, err := c.edMgr.AsyncCall(time.Now(), r, syncctx.FreeContext(), c.procMC); err != nil {
		c.log.Err().Interface("error", err).Log("corectx: failed to dispatch async at-exit drain")
		return
	}
	<-done
}

// Close runs the synchronous at-exit chain, then tears the core down in
// the reverse of the order New built it: the pool housekeeper, then the
// scheduler (stop accepting new work), then the process heap.
func (c *Context) Close() error {
	c.syncExit.RunAll()
	c.housekeeper.Close()
	c.scheduler.Close()
	return c.procHeap.Close()
}
