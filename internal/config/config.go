package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
	"gopkg.in/yaml.v3"
)

// Config is the full process configuration shared by the server and the
// recording client.
type Config struct {
	Service       ServiceConfig       `yaml:"service"`
	Upstream      UpstreamConfig      `yaml:"upstream"`
	Client        ClientConfig        `yaml:"client"`
	STT           STTConfig           `yaml:"stt"`
	TTS           TTSConfig           `yaml:"tts"`
	Kafka         KafkaConfig         `yaml:"kafka"`
	Observability ObservabilityConfig `yaml:"observability"`
}

type ServiceConfig struct {
	Principal   string `yaml:"principal"`
	Environment string `yaml:"environment"`
	HTTPPort    string `yaml:"http_port"`
	GRPCPort    string `yaml:"grpc_port"`
}

// UpstreamConfig configures the correction/translation model.
// An empty APIKey is accepted here; requests fail at call time.
type UpstreamConfig struct {
	Provider string        `yaml:"provider"` // gemini, mock
	APIKey   string        `yaml:"-"`
	BaseURL  string        `yaml:"base_url"`
	Model    string        `yaml:"model"`
	Timeout  time.Duration `yaml:"timeout"`
}

// ClientConfig configures the recording client's translation orchestration.
type ClientConfig struct {
	Endpoint       string        `yaml:"endpoint"`
	DebounceDelay  time.Duration `yaml:"debounce_delay"`
	RetryDelay     time.Duration `yaml:"retry_delay"`
	MaxRetries     int           `yaml:"max_retries"`
	RequestTimeout time.Duration `yaml:"request_timeout"`
	SourceLanguage string        `yaml:"source_language"`
	TargetLanguage string        `yaml:"target_language"`
}

type STTConfig struct {
	Provider       string `yaml:"provider"` // mock, google
	SampleRateHz   int    `yaml:"sample_rate_hz"`
	InterimResults bool   `yaml:"interim_results"`
	AudioEncoding  string `yaml:"audio_encoding"`
}

type TTSConfig struct {
	Mode    string `yaml:"mode"` // log, exec
	Command string `yaml:"command"`
}

type KafkaConfig struct {
	Enabled        bool     `yaml:"enabled"`
	Brokers        []string `yaml:"brokers"`
	TopicCompleted string   `yaml:"topic_completed"`
	TopicFailed    string   `yaml:"topic_failed"`
	Principal      string   `yaml:"principal"`
}

type ObservabilityConfig struct {
	LogLevel    string `yaml:"log_level"`
	LogFormat   string `yaml:"log_format"`
	MetricsAddr string `yaml:"metrics_addr"`
}

// Default returns the configuration used when nothing is overridden.
func Default() *Config {
	return &Config{
		Service: ServiceConfig{
			Principal:   "svc-clinical-translator",
			Environment: "prod",
			HTTPPort:    "3000",
			GRPCPort:    "50051",
		},
		Upstream: UpstreamConfig{
			Provider: "gemini",
			BaseURL:  "https://generativelanguage.googleapis.com/v1beta/openai/",
			Model:    "gemini-2.0-flash",
			Timeout:  30 * time.Second,
		},
		Client: ClientConfig{
			Endpoint:       "http://localhost:3000/api/generate",
			DebounceDelay:  1000 * time.Millisecond,
			RetryDelay:     2000 * time.Millisecond,
			MaxRetries:     3,
			RequestTimeout: 60 * time.Second,
			SourceLanguage: "en-US",
			TargetLanguage: "id-ID",
		},
		STT: STTConfig{
			Provider:       "mock",
			SampleRateHz:   16000,
			InterimResults: true,
			AudioEncoding:  "LINEAR16",
		},
		TTS: TTSConfig{
			Mode: "log",
		},
		Kafka: KafkaConfig{
			TopicCompleted: "clinical.translation.completed",
			TopicFailed:    "clinical.translation.failed",
		},
		Observability: ObservabilityConfig{
			LogLevel:    "info",
			LogFormat:   "json",
			MetricsAddr: ":9090",
		},
	}
}

// Load builds the configuration from defaults, an optional YAML file named by
// CONFIG_FILE, and environment variables (in increasing precedence).
// A .env file in the working directory is loaded first when present.
func Load() *Config {
	_ = godotenv.Load()

	cfg := Default()
	if path := os.Getenv("CONFIG_FILE"); path != "" {
		if err := cfg.loadFile(path); err != nil {
			log.Warn().Err(err).Str("path", path).Msg("Ignoring unreadable config file")
		}
	}
	cfg.applyEnv()
	return cfg
}

func (c *Config) loadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	return yaml.Unmarshal(data, c)
}

func (c *Config) applyEnv() {
	c.Service.Principal = envOrDefault("SERVICE_PRINCIPAL", c.Service.Principal)
	c.Service.Environment = envOrDefault("ENV", c.Service.Environment)
	c.Service.HTTPPort = envOrDefault("HTTP_PORT", c.Service.HTTPPort)
	c.Service.GRPCPort = envOrDefault("GRPC_PORT", c.Service.GRPCPort)

	c.Upstream.Provider = envOrDefault("UPSTREAM_PROVIDER", c.Upstream.Provider)
	c.Upstream.APIKey = os.Getenv("GEMINI_API_KEY")
	c.Upstream.BaseURL = envOrDefault("UPSTREAM_BASE_URL", c.Upstream.BaseURL)
	c.Upstream.Model = envOrDefault("UPSTREAM_MODEL", c.Upstream.Model)
	c.Upstream.Timeout = envOrDefaultDuration("UPSTREAM_TIMEOUT", c.Upstream.Timeout)

	c.Client.Endpoint = envOrDefault("TRANSLATE_ENDPOINT", c.Client.Endpoint)
	c.Client.DebounceDelay = envOrDefaultDuration("DEBOUNCE_DELAY", c.Client.DebounceDelay)
	c.Client.RetryDelay = envOrDefaultDuration("RETRY_DELAY", c.Client.RetryDelay)
	c.Client.MaxRetries = envOrDefaultInt("MAX_RETRIES", c.Client.MaxRetries)
	c.Client.RequestTimeout = envOrDefaultDuration("REQUEST_TIMEOUT", c.Client.RequestTimeout)
	c.Client.SourceLanguage = envOrDefault("SOURCE_LANGUAGE", c.Client.SourceLanguage)
	c.Client.TargetLanguage = envOrDefault("TARGET_LANGUAGE", c.Client.TargetLanguage)

	c.STT.Provider = envOrDefault("STT_PROVIDER", c.STT.Provider)
	c.STT.SampleRateHz = envOrDefaultInt("STT_SAMPLE_RATE_HZ", c.STT.SampleRateHz)
	c.STT.InterimResults = envOrDefaultBool("STT_INTERIM_RESULTS", c.STT.InterimResults)
	c.STT.AudioEncoding = envOrDefault("STT_AUDIO_ENCODING", c.STT.AudioEncoding)

	c.TTS.Mode = envOrDefault("TTS_MODE", c.TTS.Mode)
	c.TTS.Command = envOrDefault("TTS_COMMAND", c.TTS.Command)

	c.Kafka.Enabled = envOrDefaultBool("KAFKA_ENABLED", c.Kafka.Enabled)
	if v := os.Getenv("KAFKA_BROKERS"); v != "" {
		c.Kafka.Brokers = splitList(v)
	}
	c.Kafka.TopicCompleted = envOrDefault("KAFKA_TOPIC_COMPLETED", c.Kafka.TopicCompleted)
	c.Kafka.TopicFailed = envOrDefault("KAFKA_TOPIC_FAILED", c.Kafka.TopicFailed)
	c.Kafka.Principal = envOrDefault("KAFKA_PRINCIPAL", c.Kafka.Principal)
	if c.Kafka.Principal == "" {
		c.Kafka.Principal = c.Service.Principal
	}

	c.Observability.LogLevel = envOrDefault("LOG_LEVEL", c.Observability.LogLevel)
	c.Observability.LogFormat = envOrDefault("LOG_FORMAT", c.Observability.LogFormat)
	c.Observability.MetricsAddr = envOrDefault("METRICS_ADDR", c.Observability.MetricsAddr)
}

func envOrDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func envOrDefaultInt(key string, def int) int {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}

func envOrDefaultBool(key string, def bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return def
	}
	return b
}

func envOrDefaultDuration(key string, def time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return def
	}
	return d
}

func splitList(v string) []string {
	var out []string
	for _, part := range strings.Split(v, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
