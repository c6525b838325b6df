package health

import (
	"context"
	"fmt"
	"net"
	"time"

	"github.com/sirupsen/logrus"
	"google.golang.org/grpc"
	grpchealth "google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

// GRPCServer exposes the standard grpc.health.v1 service. Its serving status
// follows the same checks and reporter as the HTTP server.
type GRPCServer struct {
	server   *grpc.Server
	health   *grpchealth.Server
	source   *Server
	port     int
	interval time.Duration
	logger   *logrus.Logger
}

// NewGRPCServer creates a gRPC health server backed by source.
func NewGRPCServer(source *Server, port int, logger *logrus.Logger) *GRPCServer {
	srv := grpc.NewServer()
	hs := grpchealth.NewServer()
	healthpb.RegisterHealthServer(srv, hs)
	hs.SetServingStatus(source.serviceName, healthpb.HealthCheckResponse_NOT_SERVING)
	hs.SetServingStatus("", healthpb.HealthCheckResponse_NOT_SERVING)

	return &GRPCServer{
		server:   srv,
		health:   hs,
		source:   source,
		port:     port,
		interval: 10 * time.Second,
		logger:   logger,
	}
}

// Refresh recomputes the serving status once.
func (g *GRPCServer) Refresh(ctx context.Context) healthpb.HealthCheckResponse_ServingStatus {
	_, ok := g.source.runChecks(ctx)
	if ok && g.source.reporter != nil {
		_, ok = g.source.reporter(ctx)
	}

	status := healthpb.HealthCheckResponse_NOT_SERVING
	if ok {
		status = healthpb.HealthCheckResponse_SERVING
	}
	g.health.SetServingStatus(g.source.serviceName, status)
	g.health.SetServingStatus("", status)
	return status
}

// Check answers a health probe in-process.
func (g *GRPCServer) Check(ctx context.Context, service string) (healthpb.HealthCheckResponse_ServingStatus, error) {
	resp, err := g.health.Check(ctx, &healthpb.HealthCheckRequest{Service: service})
	if err != nil {
		return healthpb.HealthCheckResponse_UNKNOWN, err
	}
	return resp.Status, nil
}

// Start listens on the configured port and refreshes the status periodically
// until ctx is cancelled.
func (g *GRPCServer) Start(ctx context.Context) error {
	lis, err := net.Listen("tcp", fmt.Sprintf(":%d", g.port))
	if err != nil {
		return fmt.Errorf("failed to listen for grpc health: %w", err)
	}

	go func() {
		if g.logger != nil {
			g.logger.WithField("port", g.port).Info("gRPC health server starting")
		}
		if err := g.server.Serve(lis); err != nil && g.logger != nil {
			g.logger.WithError(err).Error("gRPC health server error")
		}
	}()

	go func() {
		ticker := time.NewTicker(g.interval)
		defer ticker.Stop()
		g.Refresh(ctx)
		for {
			select {
			case <-ctx.Done():
				g.Stop()
				return
			case <-ticker.C:
				g.Refresh(ctx)
			}
		}
	}()

	return nil
}

// Stop marks the service as not serving and stops the server gracefully.
func (g *GRPCServer) Stop() {
	g.health.Shutdown()
	g.server.GracefulStop()
}
