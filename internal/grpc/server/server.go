package server

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"sync"
	"time"

	"github.com/EternisAI/blinkup-bridge/internal/blinkup"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"
)

// BlinkUpService is the health service name probed by the companion app
// before it offers the BlinkUp screen.
const BlinkUpService = "blinkup.Bridge"

const defaultSyncInterval = 500 * time.Millisecond

type StatusSource interface {
	Status() blinkup.Snapshot
}

type Server struct {
	grpcServer   *grpc.Server
	health       *health.Server
	source       StatusSource
	port         int
	syncInterval time.Duration
	stopCh       chan struct{}
	stopOnce     sync.Once

	mu      sync.Mutex
	serving healthpb.HealthCheckResponse_ServingStatus
}

func NewServer(port int, source StatusSource, opts ...grpc.ServerOption) *Server {
	s := &Server{
		grpcServer:   grpc.NewServer(opts...),
		health:       health.NewServer(),
		source:       source,
		port:         port,
		syncInterval: defaultSyncInterval,
		stopCh:       make(chan struct{}),
	}

	healthpb.RegisterHealthServer(s.grpcServer, s.health)
	reflection.Register(s.grpcServer)
	s.sync()

	return s
}

func (s *Server) Start() error {
	lis, err := net.Listen("tcp", fmt.Sprintf(":%d", s.port))
	if err != nil {
		return fmt.Errorf("failed to listen on port %d: %w", s.port, err)
	}

	slog.Info("Starting gRPC server", "port", s.port)
	return s.Serve(lis)
}

// Serve blocks serving health checks on lis until Stop is called.
func (s *Server) Serve(lis net.Listener) error {
	go s.watch()

	if err := s.grpcServer.Serve(lis); err != nil {
		return fmt.Errorf("failed to serve gRPC: %w", err)
	}
	return nil
}

func (s *Server) Stop(ctx context.Context) error {
	slog.Info("Stopping gRPC server")

	s.stopOnce.Do(func() { close(s.stopCh) })
	s.health.Shutdown()

	stopped := make(chan struct{})
	go func() {
		s.grpcServer.GracefulStop()
		close(stopped)
	}()

	select {
	case <-stopped:
		slog.Info("gRPC server stopped gracefully")
	case <-ctx.Done():
		slog.Warn("gRPC server stop timeout, forcing shutdown")
		s.grpcServer.Stop()
	}

	return nil
}

func (s *Server) StopWithTimeout(timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	return s.Stop(ctx)
}

func (s *Server) watch() {
	ticker := time.NewTicker(s.syncInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.sync()
		case <-s.stopCh:
			return
		}
	}
}

// sync publishes NOT_SERVING for the BlinkUp service while an attempt holds
// the session, since a second start would be rejected.
func (s *Server) sync() {
	status := healthpb.HealthCheckResponse_SERVING
	if s.source != nil && s.source.Status().Active {
		status = healthpb.HealthCheckResponse_NOT_SERVING
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if status == s.serving {
		return
	}

	s.serving = status
	s.health.SetServingStatus("", healthpb.HealthCheckResponse_SERVING)
	s.health.SetServingStatus(BlinkUpService, status)
	slog.Debug("BlinkUp health changed", "status", status.String())
}
