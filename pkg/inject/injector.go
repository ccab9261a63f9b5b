package inject

import (
	"context"
	"log/slog"
	"os"
	"sync"
	"time"
)

// Injector matches (key class, key value) pairs against a dynamically
// registered rule table and turns matches into observable effects.
//
// The zero value is not usable; construct with New.
type Injector struct {
	// enabled is fixed at construction and gates registration calls only.
	enabled bool

	logger  *slog.Logger
	metrics *Metrics
	sink    EventSink

	// killFunc performs process termination for kill faults. Overridden
	// in tests; defaults to os.Exit so no deferred cleanup runs,
	// matching the abruptness of a real crash.
	killFunc func()

	// mu guards faults and blocked. It is held only for bounded,
	// non-suspending steps and never across a delay or a wait.
	mu      sync.RWMutex
	faults  map[string][]*fault
	blocked map[string][]*blockedCheck
}

// Option configures an Injector.
type Option func(*Injector)

// WithLogger sets the logger used for fault lifecycle events.
func WithLogger(logger *slog.Logger) Option {
	return func(inj *Injector) {
		inj.logger = logger
	}
}

// WithMetrics attaches Prometheus instrumentation.
func WithMetrics(m *Metrics) Option {
	return func(inj *Injector) {
		inj.metrics = m
	}
}

// WithEventSink attaches a sink that receives every triggered fault.
func WithEventSink(sink EventSink) Option {
	return func(inj *Injector) {
		inj.sink = sink
	}
}

// New creates an Injector. When enabled is false every registration call
// fails with ErrDisabled; checks still run (and dispatch noop) so guarded
// call sites behave identically in production builds.
func New(enabled bool, opts ...Option) *Injector {
	inj := &Injector{
		enabled:  enabled,
		logger:   slog.Default().With("component", "inject"),
		killFunc: func() { os.Exit(1) },
		faults:   make(map[string][]*fault),
		blocked:  make(map[string][]*blockedCheck),
	}

	for _, opt := range opts {
		opt(inj)
	}

	return inj
}

// Enabled reports whether registration calls are accepted.
func (inj *Injector) Enabled() bool {
	return inj.enabled
}

// ============================================================================
// Registration
// ============================================================================

// InjectError registers a fault that fails matching checks with cause.
// count bounds the number of triggers; 0 means unlimited.
func (inj *Injector) InjectError(keyClass, keyValueRegex string, cause error, count uint64) error {
	inj.logger.Info("injectError",
		"class", keyClass, "pattern", keyValueRegex, "count", count, "cause", cause)
	return inj.injectFault(keyClass, keyValueRegex, behavior{kind: KindError, err: cause}, count)
}

// InjectBlock registers a fault that suspends matching checks until an
// unblock operation releases them.
func (inj *Injector) InjectBlock(keyClass, keyValueRegex string, count uint64) error {
	inj.logger.Info("injectBlock",
		"class", keyClass, "pattern", keyValueRegex, "count", count)
	return inj.injectFault(keyClass, keyValueRegex, behavior{kind: KindBlock}, count)
}

// InjectDelay registers a fault that suspends matching checks for duration,
// then resolves them with success.
func (inj *Injector) InjectDelay(keyClass, keyValueRegex string, duration time.Duration, count uint64) error {
	inj.logger.Info("injectDelay",
		"class", keyClass, "pattern", keyValueRegex, "duration", duration, "count", count)
	return inj.injectFault(keyClass, keyValueRegex, behavior{kind: KindDelay, delay: duration}, count)
}

// InjectDelayedError registers a fault that suspends matching checks for
// duration, then fails them with cause.
func (inj *Injector) InjectDelayedError(keyClass, keyValueRegex string, duration time.Duration, cause error, count uint64) error {
	inj.logger.Info("injectDelayedError",
		"class", keyClass, "pattern", keyValueRegex, "duration", duration, "count", count, "cause", cause)
	return inj.injectFault(keyClass, keyValueRegex, behavior{kind: KindDelay, delay: duration, err: cause}, count)
}

// InjectKill registers a fault that terminates the process on a matching
// check. There is no error path: the termination is deliberate and
// unrecoverable, simulating a crash.
func (inj *Injector) InjectKill(keyClass, keyValueRegex string, count uint64) error {
	inj.logger.Info("injectKill",
		"class", keyClass, "pattern", keyValueRegex, "count", count)
	return inj.injectFault(keyClass, keyValueRegex, behavior{kind: KindKill}, count)
}

// InjectNoop registers a pass-through fault. Useful to shadow a later,
// broader fault for specific key values, since matching is first-wins in
// registration order.
func (inj *Injector) InjectNoop(keyClass, keyValueRegex string, count uint64) error {
	inj.logger.Info("injectNoop",
		"class", keyClass, "pattern", keyValueRegex, "count", count)
	return inj.injectFault(keyClass, keyValueRegex, behavior{kind: KindNoop}, count)
}

// injectFault appends a fault to the end of the class's rule list.
func (inj *Injector) injectFault(keyClass, keyValueRegex string, b behavior, count uint64) error {
	if !inj.enabled {
		return ErrDisabled
	}

	re, err := compileFullMatch(keyValueRegex)
	if err != nil {
		return err
	}

	f := &fault{
		pattern:   re,
		source:    keyValueRegex,
		remaining: count,
		behavior:  b,
	}

	inj.mu.Lock()
	defer inj.mu.Unlock()

	inj.faults[keyClass] = append(inj.faults[keyClass], f)

	if inj.metrics != nil {
		inj.metrics.RecordRegistration(keyClass, b.kind)
	}

	return nil
}

// RemoveFault removes the first fault in keyClass whose original pattern
// text equals keyValueRegex (a literal comparison, not a pattern match).
// It returns whether anything was removed.
func (inj *Injector) RemoveFault(keyClass, keyValueRegex string) bool {
	inj.mu.Lock()
	defer inj.mu.Unlock()

	list, ok := inj.faults[keyClass]
	if !ok {
		return false
	}

	for i, f := range list {
		if f.source != keyValueRegex {
			continue
		}

		inj.logger.Info("removeFault", "class", keyClass, "pattern", keyValueRegex)
		list = append(list[:i], list[i+1:]...)
		if len(list) == 0 {
			delete(inj.faults, keyClass)
		} else {
			inj.faults[keyClass] = list
		}
		return true
	}

	return false
}

// ============================================================================
// Matching and dispatch
// ============================================================================

// findFault scans keyClass's rule list front-to-back for the first fault
// whose pattern matches the whole of keyValue, consuming one trigger from
// bounded faults. The snapshot-and-decrement happens under the write lock:
// that is the serialization point that makes concurrent consumption of a
// bounded fault exact. Returns the matched behavior and pattern text, or a
// noop behavior and "" when nothing matched.
func (inj *Injector) findFault(keyClass, keyValue string) (behavior, string) {
	inj.mu.Lock()
	defer inj.mu.Unlock()

	list, ok := inj.faults[keyClass]
	if !ok {
		return behavior{}, ""
	}

	for i, f := range list {
		if !f.pattern.MatchString(keyValue) {
			continue
		}

		// Snapshot before any list mutation.
		b := f.behavior
		source := f.source

		if f.remaining > 0 {
			f.remaining--
			if f.remaining == 0 {
				inj.logger.Debug("fault expired", "class", keyClass, "pattern", f.source)
				if inj.metrics != nil {
					inj.metrics.RecordExpiration(keyClass)
				}
				list = append(list[:i], list[i+1:]...)
				if len(list) == 0 {
					delete(inj.faults, keyClass)
				} else {
					inj.faults[keyClass] = list
				}
			}
		}

		return b, source
	}

	return behavior{}, ""
}

// CheckAsync evaluates the checkpoint and returns a channel that resolves
// with the check's outcome: nil for success, the injected cause for a
// failure. For block faults the channel stays unresolved until an unblock
// operation (or Close) releases it. The returned channel receives exactly
// one value.
func (inj *Injector) CheckAsync(keyClass, keyValue string) <-chan error {
	b, pattern := inj.findFault(keyClass, keyValue)

	if inj.metrics != nil {
		inj.metrics.RecordCheck(keyClass, b.kind)
	}
	if inj.sink != nil && b.kind != KindNoop {
		inj.sink.FaultTriggered(keyClass, keyValue, pattern, b.kind, b.err)
	}

	switch b.kind {
	case KindNoop:
		return resolvedCheck(nil)

	case KindError:
		inj.logger.Debug("error fault hit", "class", keyClass, "value", keyValue)
		return resolvedCheck(b.err)

	case KindDelay:
		inj.logger.Debug("delay fault hit",
			"class", keyClass, "value", keyValue, "duration", b.delay)
		ch := make(chan error, 1)
		cause := b.err
		time.AfterFunc(b.delay, func() {
			ch <- cause
		})
		return ch

	case KindBlock:
		inj.logger.Debug("block fault hit", "class", keyClass, "value", keyValue)
		return inj.addBlockedCheck(keyClass, keyValue)

	case KindKill:
		inj.logger.Error("kill fault hit, terminating process",
			"class", keyClass, "value", keyValue)
		inj.killFunc()
		// Unreachable with the default kill func; tests substitute one
		// that returns.
		return resolvedCheck(nil)

	default:
		return resolvedCheck(nil)
	}
}

// Check evaluates the checkpoint and waits for the outcome. It returns nil
// on success and the injected cause on failure. Context cancellation
// abandons the wait only: a blocked entry stays registered and is still
// drained by a later unblock.
func (inj *Injector) Check(ctx context.Context, keyClass, keyValue string) error {
	select {
	case err := <-inj.CheckAsync(keyClass, keyValue):
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close force-fails every still-pending blocked check with
// ErrInjectorDestroyed. The injector must not be used afterwards.
func (inj *Injector) Close() error {
	released := inj.unblockAllImpl(ErrInjectorDestroyed)
	if released > 0 {
		inj.logger.Warn("fault injector closed with blocked checks still pending",
			"count", released)
	}
	return nil
}

// resolvedCheck returns an already-completed check result.
func resolvedCheck(err error) <-chan error {
	ch := make(chan error, 1)
	ch <- err
	return ch
}
