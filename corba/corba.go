// Copyright 2026 Joseph Cumines
//
// Permission to use, copy, modify, and distribute this software for any
// purpose with or without fee is hereby granted, provided that this copyright
// notice appears in all copies.

// Package corba names the Go interfaces a CORBA/GIOP ORB layered on top
// of Nirvana Core would need from its external collaborators: the wire
// codec, the object proxy/DriverManager binding, the binary loader, and
// the name service. None of these are implemented here — the core's
// scope (internal/*) stops at providing the heap, execution domains, and
// synchronization domains those collaborators run on top of. This
// package is the seam, not the ORB.
//
// # Usage
//
// A host wires a concrete ORB implementation against these interfaces
// and drives it with a corectx.Context's execution-domain manager:
//
//	type myDriver struct{ /* ... */ }
//
//	func (d *myDriver) Dispatch(ctx context.Context, req *Request) (*Reply, error) {
//	    // decode req.Body with a Codec, invoke the target object, encode the reply
//	}
//
//	mgr := coreCtx.Domains()
//	r := corba.NewDispatchRunnable(d, context.Background(), req)
//	mgr.StartProcess(r, syncctx.FreeContext(), mc)
//	// r.Reply / r.Err are populated once StartProcess returns.
package corba

import (
	"context"
	"time"
)

// ObjectKey identifies a CORBA object reference's target within a
// DriverManager binding, independent of the wire representation GIOP
// uses on the network.
type ObjectKey []byte

// Request is one incoming GIOP request, already stripped of its wire
// framing by whatever transport the host chooses — this package is
// transport-agnostic, per spec.md §1's "the ORB wire codec ... remain
// external collaborators".
type Request struct {
	Target    ObjectKey
	Operation string
	Body      []byte
	Deadline  time.Time
	// ResponseExpected is false for CORBA oneway operations, which a
	// Driver may use to skip composing a Reply at all.
	ResponseExpected bool
}

// Reply is a completed GIOP response body, pre-framing.
type Reply struct {
	Body       []byte
	SystemExc  string // non-empty for a CORBA system exception report
	UserExc    []byte // non-empty, codec-encoded, for a user exception
}

// Codec marshals and unmarshals operation arguments and results to and
// from the wire representation a GIOP ORB uses (CDR, typically). The
// core never depends on a concrete codec; it only needs a place for one
// to plug in when a runnable wants to decode a Request.Body.
type Codec interface {
	Marshal(v any) ([]byte, error)
	Unmarshal(data []byte, v any) error
}

// Driver binds an ObjectKey to the Go value implementing a CORBA
// interface and performs one request/reply exchange. Analogous to the
// DriverManager/SQL binding layer spec.md §1 places out of scope, but
// for arbitrary proxied objects rather than SQL specifically.
type Driver interface {
	// Dispatch resolves req.Target to a concrete object and invokes
	// req.Operation, returning the encoded reply. ctx carries whatever
	// deadline/cancellation the host's transport layer established; the
	// core's own ScheduleCall/ScheduleReturn machinery handles the
	// in-process synchronization domain hop, which Dispatch is expected
	// to perform via the execdomain.Domain it runs on.
	Dispatch(ctx context.Context, req *Request) (*Reply, error)
}

// Loader resolves a named binary module (the out-of-scope "binary
// loader" spec.md §1 names) to a registered Driver, the way a host might
// dynamically load per-interface skeletons.
type Loader interface {
	Load(moduleName string) (Driver, error)
}

// NameService resolves a CORBA-style stringified name to an ObjectKey, a
// minimal stand-in for the out-of-scope CORBA Naming Service.
type NameService interface {
	Resolve(ctx context.Context, name string) (ObjectKey, error)
	Bind(ctx context.Context, name string, key ObjectKey) error
}
