package history

import (
	"context"
	"time"
)

// Event is one triggered fault.
type Event struct {
	// ID uniquely identifies the event.
	ID string `json:"id"`

	// Time is when the fault fired.
	Time time.Time `json:"time"`

	// KeyClass is the checkpoint category that was checked.
	KeyClass string `json:"key_class"`

	// KeyValue is the instance identifier that was checked.
	KeyValue string `json:"key_value"`

	// Pattern is the original pattern text of the matched fault.
	Pattern string `json:"pattern"`

	// Behavior is the dispatched behavior kind (error, delay, block, kill, noop).
	Behavior string `json:"behavior"`

	// Cause is the injected error text, empty when the behavior carried none.
	Cause string `json:"cause,omitempty"`
}

// Store persists fault events. Implementations must be safe for concurrent
// use.
type Store interface {
	// Record persists one event.
	Record(ctx context.Context, event *Event) error

	// List returns the most recent events, newest first, filtered by key
	// class when keyClass is non-empty. limit <= 0 means no limit.
	List(ctx context.Context, keyClass string, limit int) ([]*Event, error)

	// Count returns the total number of stored events.
	Count(ctx context.Context) (int64, error)

	// Prune deletes events older than the cutoff and returns how many
	// were deleted.
	Prune(ctx context.Context, olderThan time.Time) (int, error)

	// Close releases backend resources. The store must not be used after
	// Close.
	Close() error
}
