package app

import (
	"strings"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"clinical-speech-translator/internal/config"
	"clinical-speech-translator/internal/events"
	"clinical-speech-translator/internal/observability/logging"
	"clinical-speech-translator/internal/service/generate"
	"clinical-speech-translator/internal/service/llm"
	"clinical-speech-translator/internal/service/llm/mock"
	"clinical-speech-translator/internal/service/llm/openai"
)

// Application holds process-wide state for the translation server.
type Application struct {
	StartupTime time.Time
	Logger      zerolog.Logger
	Cfg         *config.Config
	Publisher   *events.Publisher
	Generator   *generate.Service

	ready atomic.Bool
}

// New constructs a new Application from the provided configuration.
func New(cfg *config.Config) *Application {
	a := &Application{
		Cfg: cfg,
	}
	a.setupLogger()

	a.Publisher = events.New(&events.Config{
		Enabled:        cfg.Kafka.Enabled,
		Brokers:        cfg.Kafka.Brokers,
		TopicCompleted: cfg.Kafka.TopicCompleted,
		TopicFailed:    cfg.Kafka.TopicFailed,
		Principal:      cfg.Kafka.Principal,
	})
	a.Generator = generate.New(NewCompleter(cfg.Upstream), a.Publisher)

	a.Logger.Info().
		Str("method", "New").
		Str("upstreamProvider", cfg.Upstream.Provider).
		Str("model", cfg.Upstream.Model).
		Msg("Clinical translator application created")
	return a
}

// NewCompleter selects the model backend named by cfg.Provider.
func NewCompleter(cfg config.UpstreamConfig) llm.Completer {
	switch strings.ToLower(cfg.Provider) {
	case "mock":
		return mock.New(nil)
	default:
		return openai.New(openai.Config{
			APIKey:  cfg.APIKey,
			BaseURL: cfg.BaseURL,
			Model:   cfg.Model,
			Timeout: cfg.Timeout,
		})
	}
}

// setupLogger configures zerolog for the service.
func (a *Application) setupLogger() {
	format := a.Cfg.Observability.LogFormat
	if a.Cfg.Service.Environment == "dev" {
		format = "console"
	}
	logging.Init(logging.Config{
		Level:      strings.ToLower(a.Cfg.Observability.LogLevel),
		Format:     format,
		TimeFormat: time.RFC3339,
		Service:    a.Cfg.Service.Principal,
	})
	a.Logger = logging.WithComponent("application")

	a.Logger.Info().
		Str("logLevel", zerolog.GlobalLevel().String()).
		Str("environment", a.Cfg.Service.Environment).
		Msg("Logger setup completed")
}

// Start performs any startup work required before serving traffic.
func (a *Application) Start() error {
	a.StartupTime = time.Now().UTC()
	a.ready.Store(true)
	a.Logger.Info().
		Str("method", "Start").
		Time("startupTime", a.StartupTime).
		Msg("Clinical translator starting")
	return nil
}

// Ready reports whether Start has completed and Shutdown has not begun.
func (a *Application) Ready() bool {
	return a.ready.Load()
}

// Shutdown performs a best-effort cleanup before process exit.
func (a *Application) Shutdown() {
	a.ready.Store(false)
	a.Logger.Info().Str("method", "Shutdown").Msg("Clinical translator shutting down")
	if err := a.Publisher.Close(); err != nil {
		a.Logger.Warn().Err(err).Msg("Publisher close failed")
	}
}
