package server

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"faultline-hq/faultline/pkg/config"
	"faultline-hq/faultline/pkg/history"
	"faultline-hq/faultline/pkg/inject"
)

func newTestServer(t *testing.T, opts Options) (*Server, *inject.Injector) {
	t.Helper()

	inj := inject.New(true)
	t.Cleanup(func() { inj.Close() })

	cfg := &config.ServerConfig{
		ListenAddress:   "127.0.0.1:0",
		ReadTimeout:     5 * time.Second,
		WriteTimeout:    5 * time.Second,
		ShutdownTimeout: time.Second,
	}

	return NewServer(cfg, inj, opts), inj
}

func doJSON(t *testing.T, handler http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("failed to encode body: %v", err)
		}
	}

	req := httptest.NewRequest(method, path, &buf)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return rec
}

// ============================================================
// Fault registration
// ============================================================

func TestRegisterFault(t *testing.T) {
	srv, inj := newTestServer(t, Options{})
	handler := srv.Handler()

	rec := doJSON(t, handler, http.MethodPost, "/v1/faults", map[string]any{
		"class":    "open",
		"pattern":  "/mnt/.*",
		"behavior": "error",
		"error":    "injected",
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("Expected 201, got %d: %s", rec.Code, rec.Body.String())
	}

	if err := <-inj.CheckAsync("open", "/mnt/data"); err == nil || err.Error() != "injected" {
		t.Errorf("Expected injected error, got %v", err)
	}
}

func TestRegisterFault_InvalidSpec(t *testing.T) {
	srv, _ := newTestServer(t, Options{})
	handler := srv.Handler()

	// error behavior without a message
	rec := doJSON(t, handler, http.MethodPost, "/v1/faults", map[string]any{
		"class":    "open",
		"pattern":  ".*",
		"behavior": "error",
	})
	if rec.Code != http.StatusBadRequest {
		t.Errorf("Expected 400, got %d", rec.Code)
	}

	// invalid regex
	rec = doJSON(t, handler, http.MethodPost, "/v1/faults", map[string]any{
		"class":    "open",
		"pattern":  "([",
		"behavior": "noop",
	})
	if rec.Code != http.StatusBadRequest {
		t.Errorf("Expected 400 for invalid regex, got %d", rec.Code)
	}
}

func TestRegisterFault_DisabledInjector(t *testing.T) {
	inj := inject.New(false)
	defer inj.Close()

	cfg := &config.ServerConfig{ListenAddress: "127.0.0.1:0", ShutdownTimeout: time.Second}
	srv := NewServer(cfg, inj, Options{})

	rec := doJSON(t, srv.Handler(), http.MethodPost, "/v1/faults", map[string]any{
		"class":    "open",
		"pattern":  ".*",
		"behavior": "noop",
	})
	if rec.Code != http.StatusConflict {
		t.Errorf("Expected 409 for disabled injector, got %d: %s", rec.Code, rec.Body.String())
	}
}

func TestRemoveFault(t *testing.T) {
	srv, inj := newTestServer(t, Options{})
	handler := srv.Handler()

	if err := inj.InjectNoop("open", ".*", 0); err != nil {
		t.Fatalf("InjectNoop failed: %v", err)
	}

	rec := doJSON(t, handler, http.MethodDelete, "/v1/faults", removeFaultRequest{
		Class:   "open",
		Pattern: ".*",
	})
	if rec.Code != http.StatusNoContent {
		t.Errorf("Expected 204, got %d", rec.Code)
	}

	// Removing again is a 404.
	rec = doJSON(t, handler, http.MethodDelete, "/v1/faults", removeFaultRequest{
		Class:   "open",
		Pattern: ".*",
	})
	if rec.Code != http.StatusNotFound {
		t.Errorf("Expected 404, got %d", rec.Code)
	}
}

// ============================================================
// Blocked calls
// ============================================================

func TestBlockedAndUnblock(t *testing.T) {
	srv, inj := newTestServer(t, Options{})
	handler := srv.Handler()

	if err := inj.InjectBlock("open", ".*", 0); err != nil {
		t.Fatalf("InjectBlock failed: %v", err)
	}

	done := inj.CheckAsync("open", "/mnt/data")
	if !inj.WaitUntilBlocked("open", time.Second) {
		t.Fatal("Timeout waiting for blocked call")
	}

	rec := doJSON(t, handler, http.MethodGet, "/v1/blocked?class=open", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", rec.Code)
	}
	var blocked []inject.BlockedCall
	if err := json.Unmarshal(rec.Body.Bytes(), &blocked); err != nil {
		t.Fatalf("failed to decode blocked list: %v", err)
	}
	if len(blocked) != 1 || blocked[0].KeyValue != "/mnt/data" {
		t.Errorf("Unexpected blocked list: %+v", blocked)
	}

	rec = doJSON(t, handler, http.MethodPost, "/v1/unblock", unblockRequest{
		Class:   "open",
		Pattern: ".*",
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var resp unblockResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if resp.Unblocked != 1 {
		t.Errorf("Expected 1 unblocked, got %d", resp.Unblocked)
	}

	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Expected nil error on unblock, got %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("Timeout waiting for released call")
	}
}

func TestUnblock_WithError(t *testing.T) {
	srv, inj := newTestServer(t, Options{})
	handler := srv.Handler()

	if err := inj.InjectBlock("open", ".*", 0); err != nil {
		t.Fatalf("InjectBlock failed: %v", err)
	}

	done := inj.CheckAsync("open", "/mnt/data")
	if !inj.WaitUntilBlocked("open", time.Second) {
		t.Fatal("Timeout waiting for blocked call")
	}

	rec := doJSON(t, handler, http.MethodPost, "/v1/unblock", unblockRequest{
		Class:   "open",
		Pattern: ".*",
		Error:   "forced failure",
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", rec.Code)
	}

	select {
	case err := <-done:
		if err == nil || err.Error() != "forced failure" {
			t.Errorf("Expected forced failure, got %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("Timeout waiting for released call")
	}
}

func TestUnblockAll(t *testing.T) {
	srv, inj := newTestServer(t, Options{})
	handler := srv.Handler()

	if err := inj.InjectBlock("open", ".*", 0); err != nil {
		t.Fatalf("InjectBlock failed: %v", err)
	}
	if err := inj.InjectBlock("read", ".*", 0); err != nil {
		t.Fatalf("InjectBlock failed: %v", err)
	}

	d1 := inj.CheckAsync("open", "/a")
	d2 := inj.CheckAsync("read", "/b")
	if !inj.WaitUntilBlocked("open", time.Second) || !inj.WaitUntilBlocked("read", time.Second) {
		t.Fatal("Timeout waiting for blocked calls")
	}

	rec := doJSON(t, handler, http.MethodPost, "/v1/unblock-all", unblockAllRequest{})
	if rec.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", rec.Code)
	}
	var resp unblockResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if resp.Unblocked != 2 {
		t.Errorf("Expected 2 unblocked, got %d", resp.Unblocked)
	}

	for _, done := range []<-chan error{d1, d2} {
		select {
		case err := <-done:
			if err != nil {
				t.Errorf("Expected nil error, got %v", err)
			}
		case <-time.After(time.Second):
			t.Fatal("Timeout waiting for released call")
		}
	}
}

func TestBlocked_RequiresClass(t *testing.T) {
	srv, _ := newTestServer(t, Options{})

	rec := doJSON(t, srv.Handler(), http.MethodGet, "/v1/blocked", nil)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("Expected 400, got %d", rec.Code)
	}
}

// ============================================================
// Events, health, metrics
// ============================================================

func TestEvents(t *testing.T) {
	store := history.NewMemoryStore()
	defer store.Close()

	srv, _ := newTestServer(t, Options{Store: store})
	handler := srv.Handler()

	rec := history.NewRecorder(store, nil)
	rec.FaultTriggered("open", "/mnt/data", ".*", inject.KindError, nil)
	if err := rec.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	resp := doJSON(t, handler, http.MethodGet, "/v1/events?class=open", nil)
	if resp.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", resp.Code)
	}
	var events []*history.Event
	if err := json.Unmarshal(resp.Body.Bytes(), &events); err != nil {
		t.Fatalf("failed to decode events: %v", err)
	}
	if len(events) != 1 || events[0].KeyClass != "open" {
		t.Errorf("Unexpected events: %+v", events)
	}
}

func TestEvents_NotRoutedWithoutStore(t *testing.T) {
	srv, _ := newTestServer(t, Options{})

	rec := doJSON(t, srv.Handler(), http.MethodGet, "/v1/events", nil)
	if rec.Code != http.StatusNotFound {
		t.Errorf("Expected 404 without a store, got %d", rec.Code)
	}
}

func TestHealth(t *testing.T) {
	srv, _ := newTestServer(t, Options{})

	rec := doJSON(t, srv.Handler(), http.MethodGet, "/healthz", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", rec.Code)
	}

	var body map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("failed to decode health body: %v", err)
	}
	if body["status"] != "ok" {
		t.Errorf("Expected status ok, got %v", body["status"])
	}
	if body["injection_enabled"] != true {
		t.Errorf("Expected injection enabled, got %v", body["injection_enabled"])
	}
}

func TestMetricsEndpoint(t *testing.T) {
	registry := prometheus.NewRegistry()

	inj := inject.New(true, inject.WithMetrics(inject.NewMetrics(registry)))
	defer inj.Close()

	cfg := &config.ServerConfig{ListenAddress: "127.0.0.1:0", ShutdownTimeout: time.Second}
	srv := NewServer(cfg, inj, Options{Gatherer: registry})

	// Touch a counter so the endpoint has something to report.
	<-inj.CheckAsync("open", "/a")

	rec := doJSON(t, srv.Handler(), http.MethodGet, "/metrics", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", rec.Code)
	}
	if !bytes.Contains(rec.Body.Bytes(), []byte("faultline_checks_total")) {
		t.Error("Expected faultline_checks_total in metrics output")
	}
}

func TestMethodNotAllowed(t *testing.T) {
	srv, _ := newTestServer(t, Options{})
	handler := srv.Handler()

	for _, tc := range []struct{ method, path string }{
		{http.MethodPut, "/v1/faults"},
		{http.MethodPost, "/v1/blocked"},
		{http.MethodGet, "/v1/unblock"},
		{http.MethodGet, "/v1/unblock-all"},
		{http.MethodPost, "/healthz"},
	} {
		rec := doJSON(t, handler, tc.method, tc.path, nil)
		if rec.Code != http.StatusMethodNotAllowed {
			t.Errorf("%s %s: expected 405, got %d", tc.method, tc.path, rec.Code)
		}
	}
}
