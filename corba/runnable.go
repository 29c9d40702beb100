// Copyright 2026 Joseph Cumines
//
// Permission to use, copy, modify, and distribute this software for any
// purpose with or without fee is hereby granted, provided that this copyright
// notice appears in all copies.

package corba

import (
	"context"

	"github.com/nirvana-core/ncore/internal/execdomain"
)

// DispatchRunnable adapts a Driver's request/reply exchange to
// execdomain.Runnable, so a host can drive one GIOP request through
// AsyncCall/StartProcess the same way any other work enters an
// execution domain. The call's result is delivered through Reply and
// Err, set before the runnable returns — readable from the caller's
// goroutine once the issuing AsyncCall/StartProcess call has returned
// (for StartProcess) or a completion signal the caller arranges
// separately (for AsyncCall).
type DispatchRunnable struct {
	Driver Driver
	Ctx    context.Context
	Req    *Request

	Reply *Reply
	Err   error
}

// NewDispatchRunnable constructs a DispatchRunnable ready to pass to
// execdomain.Manager's AsyncCall or StartProcess.
func NewDispatchRunnable(d Driver, ctx context.Context, req *Request) *DispatchRunnable {
	return &DispatchRunnable{Driver: d, Ctx: ctx, Req: req}
}

// Run implements execdomain.Runnable.
func (r *DispatchRunnable) Run(d *execdomain.Domain) error {
	reply, err := r.Driver.Dispatch(r.Ctx, r.Req)
	r.Reply, r.Err = reply, err
	return err
}

// OnCrash implements execdomain.Runnable: a panicking Driver leaves Reply
// nil and Err set to a crash error rather than taking the whole ED down
// silently. No CORBA system exception is set in the reply.
func (r *DispatchRunnable) OnCrash(d *execdomain.Domain, recovered any) {
	r.Reply = nil
	r.Err = &crashError{recovered: recovered}
}

type crashError struct{ recovered any }

func (e *crashError) Error() string { return "corba: driver dispatch crashed" }
