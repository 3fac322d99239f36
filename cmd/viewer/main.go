// Translation viewer: consumes translation events from Kafka and pushes
// them to browsers over WebSocket.
package main

import (
	"context"
	"embed"
	"errors"
	"flag"
	"io/fs"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"

	"clinical-speech-translator/internal/config"
	"clinical-speech-translator/internal/observability/logging"
	"clinical-speech-translator/internal/viewer"
)

//go:embed static/*
var staticFiles embed.FS

func main() {
	cfg := config.Load()

	port := flag.String("port", "8081", "HTTP server port")
	brokers := flag.String("brokers", strings.Join(cfg.Kafka.Brokers, ","), "Kafka brokers (comma-separated)")
	topicCompleted := flag.String("topic-completed", cfg.Kafka.TopicCompleted, "Completed translation topic")
	topicFailed := flag.String("topic-failed", cfg.Kafka.TopicFailed, "Failed translation topic")
	lookback := flag.Duration("lookback", time.Hour, "Replay events newer than this on start")
	flag.Parse()

	logging.Init(logging.Config{
		Level:   cfg.Observability.LogLevel,
		Format:  "console",
		Service: "translation-viewer",
	})

	if *brokers == "" {
		*brokers = "localhost:9092"
	}
	brokerList := strings.Split(*brokers, ",")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	hub := viewer.NewHub()
	go hub.Run(ctx.Done())

	for _, topic := range []string{*topicCompleted, *topicFailed} {
		go viewer.Consume(ctx, hub, viewer.ConsumerConfig{
			Brokers:  brokerList,
			Topic:    topic,
			Lookback: *lookback,
		})
	}

	staticFS, err := fs.Sub(staticFiles, "static")
	if err != nil {
		log.Fatal().Err(err).Msg("Embedded assets missing")
	}
	mux := http.NewServeMux()
	mux.Handle("/", http.FileServer(http.FS(staticFS)))
	mux.HandleFunc("/ws", hub.Handler())

	server := &http.Server{Addr: ":" + *port, Handler: mux, ReadHeaderTimeout: 10 * time.Second}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		server.Shutdown(shutdownCtx)
	}()

	log.Info().
		Str("addr", "http://localhost:"+*port).
		Strs("brokers", brokerList).
		Str("topicCompleted", *topicCompleted).
		Str("topicFailed", *topicFailed).
		Msg("Translation viewer starting")

	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Error().Err(err).Msg("Server error")
		os.Exit(1)
	}
}
