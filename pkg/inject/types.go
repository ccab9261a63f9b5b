package inject

import (
	"errors"
	"fmt"
	"regexp"
	"time"
)

// BehaviorKind identifies the effect a matched fault produces.
type BehaviorKind uint8

const (
	// KindNoop passes the check through as a success.
	KindNoop BehaviorKind = iota

	// KindError fails the check immediately with the injected cause.
	KindError

	// KindDelay suspends the check for a fixed duration, then resolves it
	// with success or, if a cause was injected, with that cause.
	KindDelay

	// KindBlock suspends the check until an unblock operation releases it.
	KindBlock

	// KindKill terminates the process immediately. No cleanup runs.
	KindKill
)

// String returns the kind's wire name, used for logs, metrics labels,
// and history events.
func (k BehaviorKind) String() string {
	switch k {
	case KindNoop:
		return "noop"
	case KindError:
		return "error"
	case KindDelay:
		return "delay"
	case KindBlock:
		return "block"
	case KindKill:
		return "kill"
	default:
		return fmt.Sprintf("unknown(%d)", uint8(k))
	}
}

// behavior is the closed variant dispatched by CheckAsync. It is copied by
// value out of the rule table at match time, so later mutation of the table
// cannot affect an in-flight check.
type behavior struct {
	kind BehaviorKind

	// err is the injected cause for KindError, or the optional cause
	// delivered after the delay for KindDelay.
	err error

	// delay is the suspension duration for KindDelay.
	delay time.Duration
}

// fault is one registered rule: a compiled full-string pattern, the
// remaining trigger count, and the behavior to apply on a match.
type fault struct {
	// pattern matches against the entire key value, not a substring.
	pattern *regexp.Regexp

	// source is the original pattern text as passed to the Inject call.
	// RemoveFault compares against this literally.
	source string

	// remaining is the trigger count; 0 means unlimited.
	remaining uint64

	behavior behavior
}

// BlockedCall describes one check currently suspended on a block fault.
type BlockedCall struct {
	// ID uniquely identifies this suspended call.
	ID string `json:"id"`

	// KeyValue is the key value that triggered the block.
	KeyValue string `json:"key_value"`

	// Since is when the call was suspended.
	Since time.Time `json:"since"`
}

// blockedCheck pairs a suspended call with its completion handle. The done
// channel is buffered so the releasing side never blocks; it receives
// exactly one value (nil for success).
type blockedCheck struct {
	id       string
	keyValue string
	since    time.Time
	done     chan error
}

// EventSink receives a notification for every non-noop fault that fires.
// Implementations must not block; the injector calls the sink on the check
// path.
type EventSink interface {
	FaultTriggered(keyClass, keyValue, pattern string, kind BehaviorKind, cause error)
}

var (
	// ErrDisabled is returned by registration calls when the injector was
	// constructed disabled. Checks are never gated by the enabled flag.
	ErrDisabled = errors.New("fault injection is disabled")

	// ErrInjectorDestroyed is delivered to every blocked check that is
	// still pending when the injector is closed.
	ErrInjectorDestroyed = errors.New("fault injector destroyed")
)

// compileFullMatch anchors expr so a match must cover the entire key value.
func compileFullMatch(expr string) (*regexp.Regexp, error) {
	re, err := regexp.Compile(`\A(?:` + expr + `)\z`)
	if err != nil {
		return nil, fmt.Errorf("invalid key value pattern %q: %w", expr, err)
	}
	return re, nil
}
