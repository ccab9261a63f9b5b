// Package history records triggered faults for later inspection.
//
// Every non-noop fault the injector fires becomes an Event. Events flow
// through an async Recorder (so recording never blocks the check path) into
// a Store backend: in-memory for throwaway harness runs, SQLite when a
// record of what a test actually injected must survive the process.
//
// A Pruner with an optional cron schedule enforces retention on the store.
package history
