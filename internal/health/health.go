package health

import (
	"context"
	"fmt"
	"net"
	"sort"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

// ServiceName is the gRPC health service name the API reports under. The
// empty name mirrors it for clients that probe overall health.
const ServiceName = "auction.api"

// CheckFunc probes one dependency.
type CheckFunc func(ctx context.Context) error

// Checker runs named dependency checks and publishes the result to a gRPC
// health server. The HTTP readiness probe reads the same results.
type Checker struct {
	mu       sync.RWMutex
	checks   map[string]CheckFunc
	results  map[string]string
	server   *health.Server
	interval time.Duration
	timeout  time.Duration
	logger   *logrus.Logger
}

func NewChecker(interval time.Duration, logger *logrus.Logger) *Checker {
	if interval <= 0 {
		interval = 10 * time.Second
	}
	return &Checker{
		checks:   make(map[string]CheckFunc),
		results:  make(map[string]string),
		server:   health.NewServer(),
		interval: interval,
		timeout:  2 * time.Second,
		logger:   logger,
	}
}

// Register adds a check. Call before Run.
func (h *Checker) Register(name string, fn CheckFunc) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.checks[name] = fn
}

// CheckAll runs every check once, records the outcome and returns it
// keyed by name with "ok" or the error text.
func (h *Checker) CheckAll(ctx context.Context) (map[string]string, bool) {
	h.mu.RLock()
	names := make([]string, 0, len(h.checks))
	for name := range h.checks {
		names = append(names, name)
	}
	checks := make(map[string]CheckFunc, len(h.checks))
	for k, v := range h.checks {
		checks[k] = v
	}
	h.mu.RUnlock()
	sort.Strings(names)

	results := make(map[string]string, len(names))
	healthy := true
	for _, name := range names {
		checkCtx, cancel := context.WithTimeout(ctx, h.timeout)
		err := checks[name](checkCtx)
		cancel()
		if err != nil {
			healthy = false
			results[name] = err.Error()
			h.logger.WithError(err).WithField("dependency", name).Warn("Health check failed")
			continue
		}
		results[name] = "ok"
	}

	status := healthpb.HealthCheckResponse_SERVING
	if !healthy {
		status = healthpb.HealthCheckResponse_NOT_SERVING
	}
	h.server.SetServingStatus("", status)
	h.server.SetServingStatus(ServiceName, status)

	h.mu.Lock()
	h.results = results
	h.mu.Unlock()
	return results, healthy
}

// Last returns the most recent results without probing.
func (h *Checker) Last() map[string]string {
	h.mu.RLock()
	defer h.mu.RUnlock()
	out := make(map[string]string, len(h.results))
	for k, v := range h.results {
		out[k] = v
	}
	return out
}

// Run probes on every interval until ctx is done, then marks the service
// as not serving.
func (h *Checker) Run(ctx context.Context) {
	h.CheckAll(ctx)
	ticker := time.NewTicker(h.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			h.server.Shutdown()
			return
		case <-ticker.C:
			h.CheckAll(ctx)
		}
	}
}

// Server exposes the underlying gRPC health implementation.
func (h *Checker) Server() *health.Server {
	return h.server
}

// NewGRPCServer returns a gRPC server with only the health service registered.
func (h *Checker) NewGRPCServer() *grpc.Server {
	srv := grpc.NewServer()
	healthpb.RegisterHealthServer(srv, h.server)
	return srv
}

// Serve listens on port and blocks until the server stops.
func Serve(srv *grpc.Server, port string, logger *logrus.Logger) error {
	lis, err := net.Listen("tcp", ":"+port)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", port, err)
	}
	logger.WithField("port", port).Info("gRPC health server listening")
	if err := srv.Serve(lis); err != nil && err != grpc.ErrServerStopped {
		return fmt.Errorf("failed to serve grpc health: %w", err)
	}
	return nil
}
