// Command healthcheck probes the translation server's gRPC health service
// and exits non-zero unless it reports SERVING. Suitable as a container
// health probe.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/health/grpc_health_v1"

	grpcapi "clinical-speech-translator/internal/api/grpc"
)

func main() {
	addr := flag.String("addr", "localhost:50051", "gRPC server address")
	service := flag.String("service", grpcapi.ServiceName, "service name to check; empty checks the whole server")
	timeout := flag.Duration("timeout", 3*time.Second, "probe timeout")
	flag.Parse()

	status, err := probe(*addr, *service, *timeout)
	if err != nil {
		fmt.Fprintf(os.Stderr, "health check failed: %v\n", err)
		os.Exit(1)
	}
	fmt.Println(status)
	if status != grpc_health_v1.HealthCheckResponse_SERVING {
		os.Exit(1)
	}
}

func probe(addr, service string, timeout time.Duration) (grpc_health_v1.HealthCheckResponse_ServingStatus, error) {
	conn, err := grpc.NewClient(addr, grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return grpc_health_v1.HealthCheckResponse_UNKNOWN, fmt.Errorf("connect: %w", err)
	}
	defer conn.Close()

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	resp, err := grpc_health_v1.NewHealthClient(conn).Check(ctx, &grpc_health_v1.HealthCheckRequest{Service: service})
	if err != nil {
		return grpc_health_v1.HealthCheckResponse_UNKNOWN, err
	}
	return resp.GetStatus(), nil
}
