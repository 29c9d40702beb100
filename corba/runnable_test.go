// Copyright 2026 Joseph Cumines
//
// Permission to use, copy, modify, and distribute this software for any
// purpose with or without fee is hereby granted, provided that this copyright
// notice appears in all copies.

package corba

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/nirvana-core/ncore/internal/corectx"
	"github.com/nirvana-core/ncore/internal/port"
	"github.com/nirvana-core/ncore/internal/syncctx"
)

type fakeDriver struct {
	reply *Reply
	err   error
	panic bool
}

func (d *fakeDriver) Dispatch(ctx context.Context, req *Request) (*Reply, error) {
	if d.panic {
		panic("driver exploded")
	}
	return d.reply, d.err
}

func newTestCore(t *testing.T) *corectx.Context {
	t.Helper()
	c, err := corectx.New(corectx.WithPort(port.NewFake()))
	require.NoError(t, err)
	t.Cleanup(func() { require.NoError(t, c.Close()) })
	return c
}

func TestDispatchRunnableDeliversReply(t *testing.T) {
	c := newTestCore(t)
	driver := &fakeDriver{reply: &Reply{Body: []byte("ok")}}
	req := &Request{Target: ObjectKey("obj-1"), Operation: "echo"}

	r := NewDispatchRunnable(driver, context.Background(), req)
	_, err := c.Domains().StartProcess(r, syncctx.FreeContext(), c.MemContext())
	require.NoError(t, err)

	require.NoError(t, r.Err)
	require.Equal(t, []byte("ok"), r.Reply.Body)
}

func TestDispatchRunnableReportsCrashAsError(t *testing.T) {
	c := newTestCore(t)
	driver := &fakeDriver{panic: true}
	req := &Request{Target: ObjectKey("obj-1"), Operation: "boom"}

	r := NewDispatchRunnable(driver, context.Background(), req)
	_, err := c.Domains().StartProcess(r, syncctx.FreeContext(), c.MemContext())
	require.NoError(t, err)

	require.Nil(t, r.Reply)
	require.Error(t, r.Err)
}
