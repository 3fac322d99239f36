// Package grpcapi exposes the standard gRPC health service for the
// translation server so orchestrators can check it over gRPC.
package grpcapi

import (
	"net"

	"github.com/rs/zerolog/log"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	"google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"

	"clinical-speech-translator/internal/observability"
	"clinical-speech-translator/internal/observability/metrics"
)

// ServiceName is the health-check name of the translation endpoint.
const ServiceName = "clinical.translator.Generate"

type Server struct {
	grpc   *grpc.Server
	health *health.Server
}

// New builds a gRPC server with health and reflection registered.
// Both the overall and ServiceName statuses start as NOT_SERVING.
func New(m *metrics.Metrics) *Server {
	g := grpc.NewServer(
		grpc.ChainUnaryInterceptor(observability.UnaryServerInterceptor(m)),
		grpc.ChainStreamInterceptor(observability.StreamServerInterceptor(m)),
	)

	hs := health.NewServer()
	grpc_health_v1.RegisterHealthServer(g, hs)
	hs.SetServingStatus("", grpc_health_v1.HealthCheckResponse_NOT_SERVING)
	hs.SetServingStatus(ServiceName, grpc_health_v1.HealthCheckResponse_NOT_SERVING)

	// Enable gRPC reflection for debugging tools like grpcurl
	reflection.Register(g)

	return &Server{grpc: g, health: hs}
}

// SetServing flips both health statuses.
func (s *Server) SetServing(serving bool) {
	st := grpc_health_v1.HealthCheckResponse_NOT_SERVING
	if serving {
		st = grpc_health_v1.HealthCheckResponse_SERVING
	}
	s.health.SetServingStatus("", st)
	s.health.SetServingStatus(ServiceName, st)
}

// Serve accepts connections on lis until Stop.
func (s *Server) Serve(lis net.Listener) error {
	log.Info().Str("addr", lis.Addr().String()).Msg("Starting gRPC health server")
	return s.grpc.Serve(lis)
}

// Stop marks the server not serving and drains in-flight calls.
func (s *Server) Stop() {
	log.Info().Msg("Shutting down gRPC server")
	s.SetServing(false)
	s.grpc.GracefulStop()
}
