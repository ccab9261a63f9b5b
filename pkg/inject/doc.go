// Package inject implements a runtime-configurable fault-injection engine.
//
// # Overview
//
// Host programs guard operations with checkpoints identified by a key class
// (a checkpoint category, e.g. "open") and a key value (an instance
// identifier, e.g. a path). A test harness registers faults against those
// checkpoints at runtime; the injector matches each check against the
// registered rule table and forces the checkpoint to behave as if an error,
// delay, block, or crash had occurred, without touching production logic.
//
// Five behaviors are supported:
//
//   - noop: pass-through success
//   - error: fail immediately with the injected cause
//   - delay: succeed (or fail with an injected cause) after a fixed duration
//   - block: suspend the call until explicitly released
//   - kill: terminate the process immediately, simulating a crash
//
// # Usage
//
//	inj := inject.New(true)
//	inj.InjectError("open", "^/foo$", io.ErrUnexpectedEOF, 1)
//
//	// At the guarded call site:
//	if err := inj.Check(ctx, "open", path); err != nil {
//	    return err
//	}
//
// # Thread Safety
//
// All operations are safe for concurrent use. Rule lookup and consumption
// happen atomically under a single lock, so a fault registered with count N
// triggers on exactly the first N matching checks even under contention.
// The lock is never held across a suspension point: a blocked or delayed
// check never stalls registration or matching by other callers.
package inject
