package history

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"faultline-hq/faultline/pkg/inject"
)

// RecorderConfig configures the async event recorder.
type RecorderConfig struct {
	// BufferSize is the size of the async write channel.
	// Default: 1000
	BufferSize int

	// WriteTimeout is the per-event timeout for writing to the store.
	// Default: 5 seconds
	WriteTimeout time.Duration
}

// DefaultRecorderConfig returns the default recorder configuration.
func DefaultRecorderConfig() *RecorderConfig {
	return &RecorderConfig{
		BufferSize:   1000,
		WriteTimeout: 5 * time.Second,
	}
}

// Recorder turns triggered faults into persisted events asynchronously.
// It implements inject.EventSink: FaultTriggered enqueues and returns
// immediately, so recording never blocks the check path. When the buffer is
// full the event is dropped and counted.
type Recorder struct {
	store   Store
	config  *RecorderConfig
	events  chan *Event
	done    chan struct{}
	wg      sync.WaitGroup
	logger  *slog.Logger
	dropped int64
	mu      sync.Mutex
}

// NewRecorder creates a recorder writing to store and starts its background
// worker.
func NewRecorder(store Store, config *RecorderConfig) *Recorder {
	if config == nil {
		config = DefaultRecorderConfig()
	}
	if config.BufferSize <= 0 {
		config.BufferSize = 1000
	}
	if config.WriteTimeout <= 0 {
		config.WriteTimeout = 5 * time.Second
	}

	r := &Recorder{
		store:  store,
		config: config,
		events: make(chan *Event, config.BufferSize),
		done:   make(chan struct{}),
		logger: slog.Default().With("component", "history.recorder"),
	}

	r.wg.Add(1)
	go r.worker()

	return r
}

// FaultTriggered implements inject.EventSink.
func (r *Recorder) FaultTriggered(keyClass, keyValue, pattern string, kind inject.BehaviorKind, cause error) {
	event := &Event{
		ID:       uuid.New().String(),
		Time:     time.Now(),
		KeyClass: keyClass,
		KeyValue: keyValue,
		Pattern:  pattern,
		Behavior: kind.String(),
	}
	if cause != nil {
		event.Cause = cause.Error()
	}

	select {
	case r.events <- event:
	default:
		r.mu.Lock()
		r.dropped++
		dropped := r.dropped
		r.mu.Unlock()

		r.logger.Warn("event buffer full, dropping fault event",
			"class", keyClass,
			"value", keyValue,
			"dropped_total", dropped,
		)
	}
}

// Dropped returns the number of events dropped because the buffer was full.
func (r *Recorder) Dropped() int64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.dropped
}

// Close drains the buffer, waits for pending writes, and stops the worker.
// The underlying store is not closed.
func (r *Recorder) Close() error {
	close(r.done)
	r.wg.Wait()
	return nil
}

// worker drains the event channel and writes to the store.
func (r *Recorder) worker() {
	defer r.wg.Done()

	for {
		select {
		case event := <-r.events:
			r.writeEvent(event)

		case <-r.done:
			// Drain remaining events before exit.
			for {
				select {
				case event := <-r.events:
					r.writeEvent(event)
				default:
					return
				}
			}
		}
	}
}

// writeEvent writes a single event to the store.
func (r *Recorder) writeEvent(event *Event) {
	ctx, cancel := context.WithTimeout(context.Background(), r.config.WriteTimeout)
	defer cancel()

	if err := r.store.Record(ctx, event); err != nil {
		r.logger.Error("failed to record fault event",
			"event_id", event.ID,
			"class", event.KeyClass,
			"error", err,
		)
		return
	}

	r.logger.Debug("fault event recorded",
		"event_id", event.ID,
		"class", event.KeyClass,
		"behavior", event.Behavior,
	)
}
