package main

import (
	"context"
	"errors"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	grpcapi "clinical-speech-translator/internal/api/grpc"
	"clinical-speech-translator/internal/app"
	"clinical-speech-translator/internal/config"
	apphttp "clinical-speech-translator/internal/http"
	"clinical-speech-translator/internal/observability"
	"clinical-speech-translator/internal/observability/metrics"
)

const shutdownTimeout = 10 * time.Second

func main() {
	cfg := config.Load()
	application := app.New(cfg)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, application); err != nil {
		log.Error().Err(err).Msg("Clinical translator exited with error")
		os.Exit(1)
	}
}

func run(ctx context.Context, application *app.Application) error {
	cfg := application.Cfg

	lis, err := net.Listen("tcp", ":"+cfg.Service.GRPCPort)
	if err != nil {
		return err
	}

	httpServer := &http.Server{
		Addr:              ":" + cfg.Service.HTTPPort,
		Handler:           apphttp.NewRouter(application),
		ReadHeaderTimeout: 10 * time.Second,
	}
	grpcServer := grpcapi.New(metrics.DefaultMetrics)
	obsServer := observability.NewServer(cfg.Observability.MetricsAddr, application.Ready)

	if err := application.Start(); err != nil {
		return err
	}
	grpcServer.SetServing(true)

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		log.Info().Str("addr", httpServer.Addr).Msg("HTTP server started")
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		return grpcServer.Serve(lis)
	})
	g.Go(obsServer.ListenAndServe)

	g.Go(func() error {
		<-gctx.Done()
		log.Info().Msg("Shutting down servers")

		application.Shutdown()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			log.Warn().Err(err).Msg("HTTP shutdown failed")
		}
		if err := obsServer.Shutdown(shutdownCtx); err != nil {
			log.Warn().Err(err).Msg("Observability shutdown failed")
		}
		grpcServer.Stop()
		return nil
	})

	return g.Wait()
}
