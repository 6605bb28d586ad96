// Package config loads service configuration from the environment.
package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all service configuration.
type Config struct {
	Service       ServiceConfig
	ASR           ASRConfig
	FormGen       FormGenConfig
	Review        ReviewConfig
	Kafka         KafkaConfig
	Observability ObservabilityConfig
}

// ServiceConfig holds listener and identity settings.
type ServiceConfig struct {
	Principal string
	HTTPPort  string
	GRPCPort  string
}

// ASRConfig selects and configures the speech recognition provider.
type ASRConfig struct {
	Provider        string // "mock" or "google"
	LanguageCode    string
	AudioEncoding   string
	Model           string
	CredentialsFile string
	Timeout         time.Duration
}

// FormGenConfig selects and configures the form generator.
type FormGenConfig struct {
	Provider      string // "mock" or "openai"
	OpenAIAPIKey  string
	OpenAIModel   string
	OpenAIBaseURL string
	Temperature   float64
}

// ReviewConfig holds the review pipeline settings and guardrails.
type ReviewConfig struct {
	SchemaPath    string // empty selects the built-in schema
	SwitchCutoff  float64
	Concurrency   int
	MaxAudioBytes int64
	MaxWords      int
}

// KafkaConfig holds the event publisher settings.
type KafkaConfig struct {
	Enabled           bool
	Brokers           []string
	TopicConversation string
	TopicValidation   string
	Principal         string
}

// ObservabilityConfig holds logging and metrics settings.
type ObservabilityConfig struct {
	MetricsAddr string
	LogLevel    string
	LogFormat   string
}

// Load reads the configuration from environment variables. Values that fail
// to parse fall back to their defaults.
func Load() *Config {
	principal := envOrDefault("SERVICE_PRINCIPAL", "svc-call-review")

	return &Config{
		Service: ServiceConfig{
			Principal: principal,
			HTTPPort:  envOrDefault("HTTP_PORT", "8080"),
			GRPCPort:  envOrDefault("GRPC_PORT", "50051"),
		},
		ASR: ASRConfig{
			Provider:        envOrDefault("ASR_PROVIDER", "mock"),
			LanguageCode:    envOrDefault("ASR_LANGUAGE_CODE", "fr-FR"),
			AudioEncoding:   envOrDefault("ASR_AUDIO_ENCODING", "LINEAR16"),
			Model:           envOrDefault("ASR_MODEL", ""),
			CredentialsFile: envOrDefault("ASR_CREDENTIALS_FILE", ""),
			Timeout:         envOrDefaultDuration("ASR_TIMEOUT", 10*time.Minute),
		},
		FormGen: FormGenConfig{
			Provider:      envOrDefault("FORMGEN_PROVIDER", "mock"),
			OpenAIAPIKey:  envOrDefault("OPENAI_API_KEY", ""),
			OpenAIModel:   envOrDefault("OPENAI_MODEL", "gpt-4o-mini"),
			OpenAIBaseURL: envOrDefault("OPENAI_BASE_URL", ""),
			Temperature:   envOrDefaultFloat("FORMGEN_TEMPERATURE", 0.2),
		},
		Review: ReviewConfig{
			SchemaPath:    envOrDefault("FORM_SCHEMA_PATH", ""),
			SwitchCutoff:  envOrDefaultFloat("MERGE_SWITCH_CUTOFF", 0.2),
			Concurrency:   envOrDefaultInt("VALIDATE_CONCURRENCY", 4),
			MaxAudioBytes: envOrDefaultInt64("REVIEW_MAX_AUDIO_BYTES", 64<<20),
			MaxWords:      envOrDefaultInt("REVIEW_MAX_WORDS", 50000),
		},
		Kafka: KafkaConfig{
			Enabled:           envOrDefaultBool("KAFKA_ENABLED", false),
			Brokers:           envOrDefaultList("KAFKA_BROKERS", nil),
			TopicConversation: envOrDefault("KAFKA_TOPIC_CONVERSATION", "call.conversation.merged"),
			TopicValidation:   envOrDefault("KAFKA_TOPIC_VALIDATION", "call.form.validated"),
			Principal:         envOrDefault("KAFKA_PRINCIPAL", principal),
		},
		Observability: ObservabilityConfig{
			MetricsAddr: envOrDefault("METRICS_ADDR", ":9090"),
			LogLevel:    envOrDefault("LOG_LEVEL", "info"),
			LogFormat:   envOrDefault("LOG_FORMAT", "json"),
		},
	}
}

func envOrDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func envOrDefaultInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}

func envOrDefaultInt64(key string, def int64) int64 {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			return n
		}
	}
	return def
}

func envOrDefaultFloat(key string, def float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return def
}

func envOrDefaultBool(key string, def bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return def
}

func envOrDefaultDuration(key string, def time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return def
}

// envOrDefaultList splits a comma-separated value, dropping empty entries.
func envOrDefaultList(key string, def []string) []string {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	var out []string
	for _, s := range strings.Split(v, ",") {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	if len(out) == 0 {
		return def
	}
	return out
}
