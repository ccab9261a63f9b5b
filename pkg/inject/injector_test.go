package inject

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// ============================================================================
// Matching and Consumption Tests
// ============================================================================

func TestCheck_NoFaultsRegistered(t *testing.T) {
	inj := New(true)

	if err := inj.Check(context.Background(), "open", "/foo"); err != nil {
		t.Errorf("Expected success with no faults registered, got %v", err)
	}
}

func TestCheck_NoMatchFallsThrough(t *testing.T) {
	inj := New(true)

	if err := inj.InjectError("open", "^/foo$", errors.New("boom"), 0); err != nil {
		t.Fatalf("InjectError failed: %v", err)
	}

	// Different class
	if err := inj.Check(context.Background(), "read", "/foo"); err != nil {
		t.Errorf("Expected success for unrelated class, got %v", err)
	}

	// Same class, non-matching value
	if err := inj.Check(context.Background(), "open", "/bar"); err != nil {
		t.Errorf("Expected success for non-matching value, got %v", err)
	}
}

func TestCheck_FullStringMatch(t *testing.T) {
	inj := New(true)

	if err := inj.InjectError("open", "foo", errors.New("boom"), 0); err != nil {
		t.Fatalf("InjectError failed: %v", err)
	}

	// "foo" is a substring of "/foo/bar" but not a full match
	if err := inj.Check(context.Background(), "open", "/foo/bar"); err != nil {
		t.Errorf("Expected substring not to match, got %v", err)
	}

	if err := inj.Check(context.Background(), "open", "foo"); err == nil {
		t.Error("Expected full-string match to trigger the fault")
	}
}

func TestCheck_BoundedFaultExpires(t *testing.T) {
	// Scenario: error fault for class "open", pattern "^/foo$", count 1.
	inj := New(true)
	cause := errors.New("injected open failure")

	if err := inj.InjectError("open", "^/foo$", cause, 1); err != nil {
		t.Fatalf("InjectError failed: %v", err)
	}

	// First check fails with the injected error.
	if err := inj.Check(context.Background(), "open", "/foo"); !errors.Is(err, cause) {
		t.Errorf("Expected injected cause, got %v", err)
	}

	// Second check succeeds: the rule expired and was removed.
	if err := inj.Check(context.Background(), "open", "/foo"); err != nil {
		t.Errorf("Expected success after fault expired, got %v", err)
	}
}

func TestCheck_UnlimitedFaultNeverExpires(t *testing.T) {
	inj := New(true)
	cause := errors.New("boom")

	if err := inj.InjectError("open", ".*", cause, 0); err != nil {
		t.Fatalf("InjectError failed: %v", err)
	}

	for i := 0; i < 20; i++ {
		if err := inj.Check(context.Background(), "open", "/foo"); !errors.Is(err, cause) {
			t.Fatalf("Check %d: expected injected cause, got %v", i, err)
		}
	}
}

func TestCheck_FirstMatchWins(t *testing.T) {
	inj := New(true)
	first := errors.New("first")
	second := errors.New("second")

	if err := inj.InjectError("open", "^/foo$", first, 0); err != nil {
		t.Fatalf("InjectError failed: %v", err)
	}
	if err := inj.InjectError("open", ".*", second, 0); err != nil {
		t.Fatalf("InjectError failed: %v", err)
	}

	if err := inj.Check(context.Background(), "open", "/foo"); !errors.Is(err, first) {
		t.Errorf("Expected earliest-registered fault to win, got %v", err)
	}

	// The broader pattern still applies to other values.
	if err := inj.Check(context.Background(), "open", "/bar"); !errors.Is(err, second) {
		t.Errorf("Expected second fault for non-shadowed value, got %v", err)
	}
}

func TestInjectNoop_ShadowsLaterFault(t *testing.T) {
	inj := New(true)

	if err := inj.InjectNoop("open", "^/ok$", 0); err != nil {
		t.Fatalf("InjectNoop failed: %v", err)
	}
	if err := inj.InjectError("open", ".*", errors.New("boom"), 0); err != nil {
		t.Fatalf("InjectError failed: %v", err)
	}

	if err := inj.Check(context.Background(), "open", "/ok"); err != nil {
		t.Errorf("Expected noop fault to shadow the error fault, got %v", err)
	}
	if err := inj.Check(context.Background(), "open", "/other"); err == nil {
		t.Error("Expected error fault for non-shadowed value")
	}
}

func TestCheck_BoundedConsumptionIsExact(t *testing.T) {
	const (
		count   = 10
		callers = 100
	)

	inj := New(true)
	cause := errors.New("boom")

	if err := inj.InjectError("open", ".*", cause, count); err != nil {
		t.Fatalf("InjectError failed: %v", err)
	}

	var wg sync.WaitGroup
	var mu sync.Mutex
	failures := 0

	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := inj.Check(context.Background(), "open", "/foo"); err != nil {
				mu.Lock()
				failures++
				mu.Unlock()
			}
		}()
	}

	wg.Wait()

	// Exactly the first N matching calls (in lock order) observe the fault.
	if failures != count {
		t.Errorf("Expected exactly %d failures, got %d", count, failures)
	}
}

// ============================================================================
// Registration Tests
// ============================================================================

func TestInject_DisabledInjector(t *testing.T) {
	inj := New(false)

	if err := inj.InjectError("open", ".*", errors.New("boom"), 0); !errors.Is(err, ErrDisabled) {
		t.Errorf("Expected ErrDisabled, got %v", err)
	}
	if err := inj.InjectBlock("open", ".*", 0); !errors.Is(err, ErrDisabled) {
		t.Errorf("Expected ErrDisabled, got %v", err)
	}

	// Checks are not gated by the enabled flag.
	if err := inj.Check(context.Background(), "open", "/foo"); err != nil {
		t.Errorf("Expected check to pass on disabled injector, got %v", err)
	}
}

func TestInject_InvalidPattern(t *testing.T) {
	inj := New(true)

	if err := inj.InjectError("open", "([", errors.New("boom"), 0); err == nil {
		t.Error("Expected error for invalid pattern")
	}
}

func TestRemoveFault(t *testing.T) {
	inj := New(true)
	cause := errors.New("boom")

	if err := inj.InjectError("open", "^/foo$", cause, 0); err != nil {
		t.Fatalf("InjectError failed: %v", err)
	}

	// Removal matches the original pattern text literally, not by pattern.
	if inj.RemoveFault("open", "/foo") {
		t.Error("Expected removal by non-literal text to fail")
	}
	if inj.RemoveFault("missing", "^/foo$") {
		t.Error("Expected removal in unknown class to fail")
	}

	// State unchanged by the failed removals.
	if err := inj.Check(context.Background(), "open", "/foo"); !errors.Is(err, cause) {
		t.Errorf("Expected fault to still be registered, got %v", err)
	}

	if !inj.RemoveFault("open", "^/foo$") {
		t.Error("Expected removal by literal pattern text to succeed")
	}
	if err := inj.Check(context.Background(), "open", "/foo"); err != nil {
		t.Errorf("Expected success after removal, got %v", err)
	}

	// Second removal finds nothing.
	if inj.RemoveFault("open", "^/foo$") {
		t.Error("Expected second removal to fail")
	}
}

// ============================================================================
// Behavior Dispatch Tests
// ============================================================================

func TestCheck_Delay(t *testing.T) {
	inj := New(true)

	if err := inj.InjectDelay("open", ".*", 50*time.Millisecond, 1); err != nil {
		t.Fatalf("InjectDelay failed: %v", err)
	}

	start := time.Now()
	if err := inj.Check(context.Background(), "open", "/foo"); err != nil {
		t.Errorf("Expected delayed success, got %v", err)
	}
	if elapsed := time.Since(start); elapsed < 50*time.Millisecond {
		t.Errorf("Expected at least 50ms delay, got %v", elapsed)
	}
}

func TestCheck_DelayedError(t *testing.T) {
	inj := New(true)
	cause := errors.New("slow boom")

	if err := inj.InjectDelayedError("open", ".*", 50*time.Millisecond, cause, 1); err != nil {
		t.Fatalf("InjectDelayedError failed: %v", err)
	}

	start := time.Now()
	if err := inj.Check(context.Background(), "open", "/foo"); !errors.Is(err, cause) {
		t.Errorf("Expected injected cause after delay, got %v", err)
	}
	if elapsed := time.Since(start); elapsed < 50*time.Millisecond {
		t.Errorf("Expected at least 50ms delay, got %v", elapsed)
	}
}

func TestCheck_Kill(t *testing.T) {
	inj := New(true)

	killed := false
	inj.killFunc = func() { killed = true }

	if err := inj.InjectKill("open", ".*", 1); err != nil {
		t.Fatalf("InjectKill failed: %v", err)
	}

	inj.Check(context.Background(), "open", "/foo")

	if !killed {
		t.Error("Expected kill fault to invoke process termination")
	}
}

func TestCheck_ContextCancellation(t *testing.T) {
	inj := New(true)

	if err := inj.InjectBlock("read", ".*", 0); err != nil {
		t.Fatalf("InjectBlock failed: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	if err := inj.Check(ctx, "read", "f1"); !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("Expected context deadline error, got %v", err)
	}

	// The blocked entry is still registered and releasable.
	if got := inj.GetBlockedFaults("read"); len(got) != 1 {
		t.Errorf("Expected 1 blocked check after abandoned wait, got %d", len(got))
	}
	if n, err := inj.Unblock("read", ".*"); err != nil || n != 1 {
		t.Errorf("Expected to release 1 check, got %d (%v)", n, err)
	}
}

func TestCheckAsync_EventSink(t *testing.T) {
	var (
		mu     sync.Mutex
		events []string
	)
	sink := eventSinkFunc(func(keyClass, keyValue, pattern string, kind BehaviorKind, cause error) {
		mu.Lock()
		events = append(events, keyClass+"/"+keyValue+"/"+kind.String())
		mu.Unlock()
	})

	inj := New(true, WithEventSink(sink))

	if err := inj.InjectError("open", "^/foo$", errors.New("boom"), 1); err != nil {
		t.Fatalf("InjectError failed: %v", err)
	}

	// A noop fallthrough does not reach the sink.
	inj.Check(context.Background(), "open", "/other")
	inj.Check(context.Background(), "open", "/foo")

	mu.Lock()
	defer mu.Unlock()
	if len(events) != 1 || events[0] != "open//foo/error" {
		t.Errorf("Unexpected sink events: %v", events)
	}
}

// eventSinkFunc adapts a function to the EventSink interface.
type eventSinkFunc func(keyClass, keyValue, pattern string, kind BehaviorKind, cause error)

func (f eventSinkFunc) FaultTriggered(keyClass, keyValue, pattern string, kind BehaviorKind, cause error) {
	f(keyClass, keyValue, pattern, kind, cause)
}

// ============================================================================
// Metrics Tests
// ============================================================================

func TestMetrics_Wiring(t *testing.T) {
	reg := prometheus.NewRegistry()
	inj := New(true, WithMetrics(NewMetrics(reg)))

	if err := inj.InjectError("open", ".*", errors.New("boom"), 1); err != nil {
		t.Fatalf("InjectError failed: %v", err)
	}
	inj.Check(context.Background(), "open", "/foo")
	inj.Check(context.Background(), "open", "/foo")

	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("Gather failed: %v", err)
	}

	found := map[string]bool{}
	for _, mf := range families {
		found[mf.GetName()] = true
	}
	for _, name := range []string{
		"faultline_checks_total",
		"faultline_faults_registered_total",
		"faultline_faults_expired_total",
	} {
		if !found[name] {
			t.Errorf("Expected metric %s to be registered", name)
		}
	}
}

// ============================================================================
// Benchmarks
// ============================================================================

func BenchmarkCheck_NoFault(b *testing.B) {
	inj := New(true)

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		inj.Check(context.Background(), "open", "/foo")
	}
}

func BenchmarkCheck_ErrorFault(b *testing.B) {
	inj := New(true)
	inj.InjectError("open", ".*", errors.New("boom"), 0)

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		inj.Check(context.Background(), "open", "/foo")
	}
}

func BenchmarkCheck_Concurrent(b *testing.B) {
	inj := New(true)
	inj.InjectError("open", "^/fail$", errors.New("boom"), 0)

	b.RunParallel(func(pb *testing.PB) {
		for pb.Next() {
			inj.Check(context.Background(), "open", "/foo")
		}
	})
}
