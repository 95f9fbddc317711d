package server

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
)

// mockHealthChecker implements HealthChecker for testing
type mockHealthChecker struct {
	liveness  bool
	readiness bool
	status    map[string]string
}

func (m *mockHealthChecker) Liveness() bool {
	return m.liveness
}

func (m *mockHealthChecker) Readiness(ctx context.Context) bool {
	return m.readiness
}

func (m *mockHealthChecker) Status(ctx context.Context) map[string]string {
	return m.status
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func decode(t *testing.T, w *httptest.ResponseRecorder) HealthResponse {
	t.Helper()
	var response HealthResponse
	if err := json.NewDecoder(w.Body).Decode(&response); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	return response
}

func TestLivenessHandler(t *testing.T) {
	tests := []struct {
		name       string
		liveness   bool
		wantCode   int
		wantStatus string
	}{
		{"alive", true, http.StatusOK, "alive"},
		{"not alive", false, http.StatusServiceUnavailable, "not alive"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			handler := LivenessHandler(&mockHealthChecker{liveness: tt.liveness}, testLogger())
			w := httptest.NewRecorder()
			handler(w, httptest.NewRequest(http.MethodGet, "/health/live", nil))

			if w.Code != tt.wantCode {
				t.Errorf("status code = %d, want %d", w.Code, tt.wantCode)
			}
			if got := decode(t, w); got.Status != tt.wantStatus || got.Timestamp == "" {
				t.Errorf("response = %+v, want status %s", got, tt.wantStatus)
			}
		})
	}
}

func TestReadinessHandler(t *testing.T) {
	tests := []struct {
		name       string
		readiness  bool
		wantCode   int
		wantStatus string
	}{
		{"ready", true, http.StatusOK, "ready"},
		{"not ready", false, http.StatusServiceUnavailable, "not ready"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			checker := &mockHealthChecker{
				readiness: tt.readiness,
				status:    map[string]string{"consumer": "ok", "emitters": "ok"},
			}
			w := httptest.NewRecorder()
			ReadinessHandler(checker, testLogger())(w, httptest.NewRequest(http.MethodGet, "/health/ready", nil))

			if w.Code != tt.wantCode {
				t.Errorf("status code = %d, want %d", w.Code, tt.wantCode)
			}
			got := decode(t, w)
			if got.Status != tt.wantStatus {
				t.Errorf("status = %s, want %s", got.Status, tt.wantStatus)
			}
			if len(got.Checks) != 2 {
				t.Errorf("len(checks) = %d, want 2", len(got.Checks))
			}
		})
	}
}

func TestProbe(t *testing.T) {
	ctx := context.Background()
	p := NewProbe()

	if !p.Liveness() {
		t.Error("probe should start alive")
	}
	if p.Readiness(ctx) {
		t.Error("probe should start not ready")
	}

	p.SetReady(true)
	if !p.Readiness(ctx) {
		t.Error("ready probe without checks should be ready")
	}

	consumerErr := errors.New("consumer group not joined")
	failing := true
	p.AddCheck("consumer", func(context.Context) error {
		if failing {
			return consumerErr
		}
		return nil
	})
	p.AddCheck("emitters", func(context.Context) error { return nil })

	if p.Readiness(ctx) {
		t.Error("failing check should make the probe not ready")
	}
	status := p.Status(ctx)
	if status["consumer"] != consumerErr.Error() || status["emitters"] != "ok" {
		t.Errorf("Status() = %v", status)
	}

	failing = false
	if !p.Readiness(ctx) {
		t.Error("probe should be ready once checks pass")
	}

	p.SetReady(false)
	if p.Readiness(ctx) {
		t.Error("draining probe should not be ready")
	}
	p.SetAlive(false)
	if p.Liveness() {
		t.Error("SetAlive(false) should fail liveness")
	}
}
