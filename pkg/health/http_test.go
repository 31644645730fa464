package health

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"
)

func TestHTTPChecker_HealthyEndpoint(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	}))
	defer server.Close()

	checker := NewHTTPChecker(server.URL)
	result := checker.Check(context.Background())

	if !result.Healthy {
		t.Errorf("Expected healthy, got unhealthy: %s", result.Message)
	}
	if result.Duration <= 0 {
		t.Error("Expected positive duration")
	}
}

func TestHTTPChecker_UnhealthyEndpoint(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	checker := NewHTTPChecker(server.URL)
	result := checker.Check(context.Background())

	if result.Healthy {
		t.Errorf("Expected unhealthy, got healthy: %s", result.Message)
	}
}

func TestHTTPChecker_ConnectionRefused(t *testing.T) {
	checker := NewHTTPChecker("http://127.0.0.1:1/health").WithTimeout(time.Second)
	result := checker.Check(context.Background())

	if result.Healthy {
		t.Error("Expected unhealthy for unreachable endpoint")
	}
	if result.Message == "" {
		t.Error("Expected diagnostic message")
	}
}

func TestHTTPChecker_Type(t *testing.T) {
	checker := NewHTTPChecker("http://localhost/health")
	if checker.Type() != CheckTypeHTTP {
		t.Errorf("Expected HTTP check type, got %s", checker.Type())
	}
}

func TestStatus_FailureThreshold(t *testing.T) {
	config := Config{Interval: time.Second, Timeout: time.Second, Retries: 3}
	status := NewStatus()

	fail := Result{Healthy: false, CheckedAt: time.Now()}
	ok := Result{Healthy: true, CheckedAt: time.Now()}

	// Two failures stay under the threshold
	status.Update(fail, config)
	status.Update(fail, config)
	if !status.Healthy {
		t.Error("Status flipped before reaching retry threshold")
	}

	// Third consecutive failure flips it
	status.Update(fail, config)
	if status.Healthy {
		t.Error("Status should be unhealthy after reaching retry threshold")
	}

	// One success restores it immediately
	status.Update(ok, config)
	if !status.Healthy {
		t.Error("Status should recover on first success")
	}
	if status.ConsecutiveFailures != 0 {
		t.Errorf("Expected failure counter reset, got %d", status.ConsecutiveFailures)
	}
}

func TestMonitor_ReportsReachability(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	monitor := NewMonitor(NewHTTPChecker(server.URL), Config{
		Interval: 10 * time.Millisecond,
		Timeout:  time.Second,
		Retries:  1,
	})
	monitor.Start()
	defer monitor.Stop()

	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		if monitor.LastResult().CheckedAt.After(time.Time{}) {
			break
		}
		time.Sleep(5 * time.Millisecond)
	}

	if !monitor.Healthy() {
		t.Errorf("Expected healthy monitor, last result: %s", monitor.LastResult().Message)
	}
}

func TestMonitor_DetectsOutage(t *testing.T) {
	var down atomic.Bool
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if down.Load() {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	monitor := NewMonitor(NewHTTPChecker(server.URL), Config{
		Interval: 10 * time.Millisecond,
		Timeout:  time.Second,
		Retries:  2,
	})
	monitor.Start()
	defer monitor.Stop()

	down.Store(true)

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if !monitor.Healthy() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Error("Monitor never detected the outage")
}
