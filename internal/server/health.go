package server

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"sort"
	"sync"
	"sync/atomic"
	"time"
)

// HealthResponse represents the health check response.
type HealthResponse struct {
	Status    string            `json:"status"`
	Timestamp string            `json:"timestamp"`
	Checks    map[string]string `json:"checks,omitempty"`
}

// HealthChecker reports process health.
type HealthChecker interface {
	Liveness() bool
	Readiness(ctx context.Context) bool
	Status(ctx context.Context) map[string]string
}

// CheckFunc reports whether one dependency is usable.
type CheckFunc func(ctx context.Context) error

// Probe is a HealthChecker built from named readiness checks. It starts
// alive and not ready.
type Probe struct {
	alive atomic.Bool
	ready atomic.Bool

	mu     sync.RWMutex
	checks map[string]CheckFunc
}

// NewProbe creates a probe.
func NewProbe() *Probe {
	p := &Probe{checks: make(map[string]CheckFunc)}
	p.alive.Store(true)
	return p
}

// AddCheck registers a readiness check under name, replacing any previous one.
func (p *Probe) AddCheck(name string, fn CheckFunc) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.checks[name] = fn
}

// SetReady marks startup as finished, or the process as draining.
func (p *Probe) SetReady(ready bool) { p.ready.Store(ready) }

// SetAlive marks the process as needing a restart when false.
func (p *Probe) SetAlive(alive bool) { p.alive.Store(alive) }

func (p *Probe) Liveness() bool { return p.alive.Load() }

// Readiness is true once SetReady(true) was called and every check passes.
func (p *Probe) Readiness(ctx context.Context) bool {
	if !p.ready.Load() {
		return false
	}
	for _, err := range p.run(ctx) {
		if err != nil {
			return false
		}
	}
	return true
}

// Status returns "ok" or the failure message of every check.
func (p *Probe) Status(ctx context.Context) map[string]string {
	results := p.run(ctx)
	status := make(map[string]string, len(results))
	for name, err := range results {
		if err != nil {
			status[name] = err.Error()
			continue
		}
		status[name] = "ok"
	}
	return status
}

func (p *Probe) run(ctx context.Context) map[string]error {
	p.mu.RLock()
	names := make([]string, 0, len(p.checks))
	for name := range p.checks {
		names = append(names, name)
	}
	p.mu.RUnlock()
	sort.Strings(names)

	results := make(map[string]error, len(names))
	for _, name := range names {
		p.mu.RLock()
		fn := p.checks[name]
		p.mu.RUnlock()
		results[name] = fn(ctx)
	}
	return results
}

// LivenessHandler returns a handler for Kubernetes liveness probes.
// Liveness probes should only fail if the process needs to be restarted.
func LivenessHandler(checker HealthChecker, logger *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		response := HealthResponse{Status: "alive"}
		statusCode := http.StatusOK
		if !checker.Liveness() {
			response.Status = "not alive"
			statusCode = http.StatusServiceUnavailable
		}
		writeJSON(w, statusCode, response, logger)
	}
}

// ReadinessHandler returns a handler for Kubernetes readiness probes. The
// response lists the result of every check.
func ReadinessHandler(checker HealthChecker, logger *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		response := HealthResponse{Status: "ready", Checks: checker.Status(r.Context())}
		statusCode := http.StatusOK
		if !checker.Readiness(r.Context()) {
			response.Status = "not ready"
			statusCode = http.StatusServiceUnavailable
		}
		writeJSON(w, statusCode, response, logger)
	}
}

func writeJSON(w http.ResponseWriter, statusCode int, response HealthResponse, logger *slog.Logger) {
	response.Timestamp = time.Now().UTC().Format(time.RFC3339)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(response); err != nil {
		logger.Error("failed to encode health response", "status", response.Status, "error", err)
	}
}
