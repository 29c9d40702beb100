// Command ncored is a minimal host binary demonstrating how a process
// embeds Nirvana Core: build one corectx.Context, start the loaded
// executable's entry point as a PROCESS-kind execution domain, and map
// its outcome to spec.md §6's exit codes.
//
// Run with: go run ./cmd/ncored/
package main

import (
	"fmt"
	"os"

	"github.com/nirvana-core/ncore/internal/corectx"
	"github.com/nirvana-core/ncore/internal/corerr"
	"github.com/nirvana-core/ncore/internal/execdomain"
	"github.com/nirvana-core/ncore/internal/syncctx"
)

// exitCodes mirror spec.md §6: 0 normal, -1 generic core error, 3 abort
// signal. The process runnable's own result is not passed through:
// StartProcess does not return the runnable's error, so a runnable that
// returns an error still exits with exitNormal.
const (
	exitNormal  = 0
	exitGeneric = -1
	exitAbort   = 3
)

func main() {
	os.Exit(run())
}

// run is split out from main so the core's teardown (os.Exit skips
// deferred calls) always happens before the process actually exits.
func run() int {
	core, err := corectx.New(corectx.WithWorkers(minWorkers()))
	if err != nil {
		fmt.Fprintln(os.Stderr, "ncored: failed to start core:", err)
		return exitGeneric
	}
	defer func() {
		core.RunAsyncAtExit()
		if err := core.Close(); err != nil {
			fmt.Fprintln(os.Stderr, "ncored: shutdown error:", err)
		}
	}()

	entry := &syncctx.ProcessEntry{Name: "ncored"}
	r := execdomain.RunnableFunc(func(d *execdomain.Domain) error {
		core.Logger().Info().Log("ncored: entry point starting")
		// A real host loads the target binary module here and runs its
		// exported entry point; this stands in for that runnable.
		return nil
	})

	_, err = core.Domains().StartProcess(r, syncctx.FromProcess(entry), core.MemContext())
	return exitCodeFor(err)
}

func exitCodeFor(err error) int {
	if err == nil {
		return exitNormal
	}
	if corerr.Is(err, corerr.Cancelled) {
		return exitAbort
	}
	return exitGeneric
}

func minWorkers() int {
	// A one-worker scheduler is enough for this demonstration; a real
	// host sizes this to hardware concurrency per spec.md §5's
	// "worker pool whose size equals hardware concurrency".
	return 1
}
