// Package server exposes health probes, per-partition emitter statistics
// and Prometheus metrics over HTTP.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/jittakal/bufemit/pkg/emitter"
	"github.com/jittakal/bufemit/pkg/event"
)

// Config holds listener ports and endpoint paths. Empty paths use the
// defaults.
type Config struct {
	HealthPort    int
	MetricsPort   int
	LivenessPath  string
	ReadinessPath string
	MetricsPath   string
	StatsPath     string
}

func (c *Config) setDefaults() {
	if c.LivenessPath == "" {
		c.LivenessPath = "/health/live"
	}
	if c.ReadinessPath == "" {
		c.ReadinessPath = "/health/ready"
	}
	if c.MetricsPath == "" {
		c.MetricsPath = "/metrics"
	}
	if c.StatsPath == "" {
		c.StatsPath = "/debug/emitters"
	}
}

// StatsProvider snapshots the live emitters.
type StatsProvider interface {
	Stats() map[event.PartitionID]emitter.Stats
}

// Server represents the HTTP server for health and metrics.
type Server struct {
	healthServer  *http.Server
	metricsServer *http.Server
	logger        *slog.Logger

	healthAddr  net.Addr
	metricsAddr net.Addr
}

// NewServer creates the health and metrics servers. stats may be nil.
func NewServer(
	cfg Config,
	healthChecker HealthChecker,
	stats StatsProvider,
	registry *prometheus.Registry,
	logger *slog.Logger,
) *Server {
	cfg.setDefaults()

	healthMux := http.NewServeMux()
	healthMux.HandleFunc("GET "+cfg.LivenessPath, LivenessHandler(healthChecker, logger))
	healthMux.HandleFunc("GET "+cfg.ReadinessPath, ReadinessHandler(healthChecker, logger))
	if stats != nil {
		healthMux.HandleFunc("GET "+cfg.StatsPath, StatsHandler(stats, logger))
	}

	metricsMux := http.NewServeMux()
	metricsMux.Handle(cfg.MetricsPath, promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))

	return &Server{
		healthServer:  newHTTPServer(cfg.HealthPort, healthMux),
		metricsServer: newHTTPServer(cfg.MetricsPort, metricsMux),
		logger:        logger.With("component", "http"),
	}
}

func newHTTPServer(port int, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:         fmt.Sprintf(":%d", port),
		Handler:      handler,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
	}
}

// StatsHandler serves the emitter statistics keyed by "topic-partition".
func StatsHandler(stats StatsProvider, logger *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		snapshot := stats.Stats()
		body := make(map[string]emitter.Stats, len(snapshot))
		for pid, s := range snapshot {
			body[pid.String()] = s
		}
		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(body); err != nil {
			logger.Error("failed to encode emitter stats", "error", err)
		}
	}
}

// Start binds both listeners and serves them in the background. Bind
// failures are returned.
func (s *Server) Start() error {
	healthLn, err := net.Listen("tcp", s.healthServer.Addr)
	if err != nil {
		return fmt.Errorf("listen health %s: %w", s.healthServer.Addr, err)
	}
	metricsLn, err := net.Listen("tcp", s.metricsServer.Addr)
	if err != nil {
		healthLn.Close()
		return fmt.Errorf("listen metrics %s: %w", s.metricsServer.Addr, err)
	}
	s.healthAddr, s.metricsAddr = healthLn.Addr(), metricsLn.Addr()

	s.serve("health", s.healthServer, healthLn)
	s.serve("metrics", s.metricsServer, metricsLn)
	return nil
}

func (s *Server) serve(name string, srv *http.Server, ln net.Listener) {
	go func() {
		s.logger.Info("starting "+name+" server", "addr", ln.Addr().String())
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error(name+" server failed", "error", err)
		}
	}()
}

// HealthAddr returns the bound health listener address after Start.
func (s *Server) HealthAddr() net.Addr { return s.healthAddr }

// MetricsAddr returns the bound metrics listener address after Start.
func (s *Server) MetricsAddr() net.Addr { return s.metricsAddr }

// Shutdown gracefully shuts down both servers.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down HTTP servers")

	errChan := make(chan error, 2)
	go func() { errChan <- s.healthServer.Shutdown(ctx) }()
	go func() { errChan <- s.metricsServer.Shutdown(ctx) }()

	var errs []error
	for i := 0; i < 2; i++ {
		if err := <-errChan; err != nil {
			s.logger.Error("error shutting down server", "error", err)
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
