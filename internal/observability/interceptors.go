// Package observability provides gRPC interceptors for the health server.
package observability

import (
	"context"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/status"

	"clinical-speech-translator/internal/observability/metrics"
)

const (
	healthCheckMethod = "/grpc.health.v1.Health/Check"
	healthWatchMethod = "/grpc.health.v1.Health/Watch"
)

// checkedService returns the service name a health request asks about. The
// empty name is the overall server status.
func checkedService(req interface{}) (string, bool) {
	r, ok := req.(*grpc_health_v1.HealthCheckRequest)
	if !ok {
		return "", false
	}
	if r.GetService() == "" {
		return "(server)", true
	}
	return r.GetService(), true
}

// checkLevel keeps healthy checks out of the default log output. Checks that
// fail or report anything but SERVING are warnings.
func checkLevel(resp interface{}, err error) (zerolog.Level, string) {
	if err != nil {
		return zerolog.WarnLevel, ""
	}
	r, ok := resp.(*grpc_health_v1.HealthCheckResponse)
	if !ok {
		return zerolog.DebugLevel, ""
	}
	if r.GetStatus() != grpc_health_v1.HealthCheckResponse_SERVING {
		return zerolog.WarnLevel, r.GetStatus().String()
	}
	return zerolog.DebugLevel, r.GetStatus().String()
}

// UnaryServerInterceptor records every unary call and logs health checks
// with the requested service and the status returned.
func UnaryServerInterceptor(m *metrics.Metrics) grpc.UnaryServerInterceptor {
	return func(
		ctx context.Context,
		req interface{},
		info *grpc.UnaryServerInfo,
		handler grpc.UnaryHandler,
	) (interface{}, error) {
		start := time.Now()
		resp, err := handler(ctx, req)
		code := status.Code(err).String()
		m.RecordGRPCCall(info.FullMethod, code)

		if info.FullMethod != healthCheckMethod {
			log.Debug().
				Str("method", info.FullMethod).
				Str("code", code).
				Dur("duration", time.Since(start)).
				Msg("gRPC unary call")
			return resp, err
		}

		service, _ := checkedService(req)
		level, servingStatus := checkLevel(resp, err)
		ev := log.WithLevel(level).
			Str("service", service).
			Str("code", code).
			Dur("duration", time.Since(start))
		if servingStatus != "" {
			ev = ev.Str("status", servingStatus)
		}
		ev.Msg("Health check")
		return resp, err
	}
}

// watchStream captures the service named in a Watch request.
type watchStream struct {
	grpc.ServerStream
	service string
}

func (s *watchStream) RecvMsg(msg interface{}) error {
	err := s.ServerStream.RecvMsg(msg)
	if name, ok := checkedService(msg); ok && err == nil {
		s.service = name
	}
	return err
}

// StreamServerInterceptor records every stream and logs health watches when
// they end. A watch cancelled by the client is a normal end.
func StreamServerInterceptor(m *metrics.Metrics) grpc.StreamServerInterceptor {
	return func(
		srv interface{},
		ss grpc.ServerStream,
		info *grpc.StreamServerInfo,
		handler grpc.StreamHandler,
	) error {
		start := time.Now()

		if info.FullMethod != healthWatchMethod {
			err := handler(srv, ss)
			code := status.Code(err).String()
			m.RecordGRPCCall(info.FullMethod, code)
			log.Debug().
				Str("method", info.FullMethod).
				Str("code", code).
				Dur("duration", time.Since(start)).
				Msg("gRPC stream completed")
			return err
		}

		ws := &watchStream{ServerStream: ss}
		err := handler(srv, ws)
		c := status.Code(err)
		m.RecordGRPCCall(info.FullMethod, c.String())

		level := zerolog.InfoLevel
		if c != codes.OK && c != codes.Canceled {
			level = zerolog.WarnLevel
		}
		log.WithLevel(level).
			Str("service", ws.service).
			Str("code", c.String()).
			Dur("duration", time.Since(start)).
			Msg("Health watch ended")
		return err
	}
}
