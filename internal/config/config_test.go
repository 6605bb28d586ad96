package config

import (
	"reflect"
	"testing"
	"time"
)

var configEnvVars = []string{
	"SERVICE_PRINCIPAL", "HTTP_PORT", "GRPC_PORT",
	"ASR_PROVIDER", "ASR_LANGUAGE_CODE", "ASR_AUDIO_ENCODING", "ASR_MODEL", "ASR_CREDENTIALS_FILE", "ASR_TIMEOUT",
	"FORMGEN_PROVIDER", "OPENAI_API_KEY", "OPENAI_MODEL", "OPENAI_BASE_URL", "FORMGEN_TEMPERATURE",
	"FORM_SCHEMA_PATH", "MERGE_SWITCH_CUTOFF", "VALIDATE_CONCURRENCY", "REVIEW_MAX_AUDIO_BYTES", "REVIEW_MAX_WORDS",
	"KAFKA_ENABLED", "KAFKA_BROKERS", "KAFKA_TOPIC_CONVERSATION", "KAFKA_TOPIC_VALIDATION", "KAFKA_PRINCIPAL",
	"METRICS_ADDR", "LOG_LEVEL", "LOG_FORMAT",
}

// clearEnv blanks every config variable for the duration of the test.
func clearEnv(t *testing.T) {
	t.Helper()
	for _, v := range configEnvVars {
		t.Setenv(v, "")
	}
}

func TestLoad_Defaults(t *testing.T) {
	clearEnv(t)

	cfg := Load()

	// Service defaults
	if cfg.Service.Principal != "svc-call-review" {
		t.Errorf("expected default principal 'svc-call-review', got %s", cfg.Service.Principal)
	}
	if cfg.Service.HTTPPort != "8080" || cfg.Service.GRPCPort != "50051" {
		t.Errorf("expected default ports 8080/50051, got %s/%s", cfg.Service.HTTPPort, cfg.Service.GRPCPort)
	}

	// Provider defaults
	if cfg.ASR.Provider != "mock" || cfg.FormGen.Provider != "mock" {
		t.Errorf("expected mock providers, got %s/%s", cfg.ASR.Provider, cfg.FormGen.Provider)
	}
	if cfg.ASR.LanguageCode != "fr-FR" {
		t.Errorf("expected default language 'fr-FR', got %s", cfg.ASR.LanguageCode)
	}
	if cfg.ASR.Timeout != 10*time.Minute {
		t.Errorf("expected default ASR timeout 10m, got %v", cfg.ASR.Timeout)
	}
	if cfg.FormGen.OpenAIModel != "gpt-4o-mini" || cfg.FormGen.Temperature != 0.2 {
		t.Errorf("unexpected form generator defaults %+v", cfg.FormGen)
	}

	// Review defaults
	if cfg.Review.SwitchCutoff != 0.2 {
		t.Errorf("expected default switch cutoff 0.2, got %v", cfg.Review.SwitchCutoff)
	}
	if cfg.Review.Concurrency != 4 {
		t.Errorf("expected default concurrency 4, got %d", cfg.Review.Concurrency)
	}
	if cfg.Review.MaxAudioBytes != 64*1024*1024 {
		t.Errorf("expected default max audio bytes 64MiB, got %d", cfg.Review.MaxAudioBytes)
	}
	if cfg.Review.MaxWords != 50000 {
		t.Errorf("expected default max words 50000, got %d", cfg.Review.MaxWords)
	}

	// Kafka defaults
	if cfg.Kafka.Enabled || cfg.Kafka.Brokers != nil {
		t.Errorf("expected Kafka disabled without brokers, got %+v", cfg.Kafka)
	}
	if cfg.Kafka.TopicConversation != "call.conversation.merged" || cfg.Kafka.TopicValidation != "call.form.validated" {
		t.Errorf("unexpected default topics %s/%s", cfg.Kafka.TopicConversation, cfg.Kafka.TopicValidation)
	}

	// Observability defaults
	if cfg.Observability.LogLevel != "info" || cfg.Observability.LogFormat != "json" {
		t.Errorf("unexpected log defaults %+v", cfg.Observability)
	}
	if cfg.Observability.MetricsAddr != ":9090" {
		t.Errorf("expected default metrics addr ':9090', got %s", cfg.Observability.MetricsAddr)
	}
}

func TestLoad_CustomValues(t *testing.T) {
	clearEnv(t)
	t.Setenv("SERVICE_PRINCIPAL", "custom-principal")
	t.Setenv("GRPC_PORT", "9999")
	t.Setenv("LOG_LEVEL", "debug")
	t.Setenv("ASR_PROVIDER", "google")
	t.Setenv("ASR_LANGUAGE_CODE", "fr-CA")
	t.Setenv("ASR_TIMEOUT", "90s")
	t.Setenv("FORMGEN_PROVIDER", "openai")
	t.Setenv("OPENAI_API_KEY", "sk-test")
	t.Setenv("MERGE_SWITCH_CUTOFF", "0.35")
	t.Setenv("VALIDATE_CONCURRENCY", "8")
	t.Setenv("REVIEW_MAX_AUDIO_BYTES", "10485760")
	t.Setenv("REVIEW_MAX_WORDS", "1000")
	t.Setenv("KAFKA_ENABLED", "true")
	t.Setenv("KAFKA_BROKERS", "kafka-1:9092, kafka-2:9092,")

	cfg := Load()

	if cfg.Service.Principal != "custom-principal" {
		t.Errorf("expected principal 'custom-principal', got %s", cfg.Service.Principal)
	}
	if cfg.Service.GRPCPort != "9999" {
		t.Errorf("expected port '9999', got %s", cfg.Service.GRPCPort)
	}
	if cfg.ASR.Provider != "google" || cfg.ASR.LanguageCode != "fr-CA" || cfg.ASR.Timeout != 90*time.Second {
		t.Errorf("unexpected ASR config %+v", cfg.ASR)
	}
	if cfg.FormGen.Provider != "openai" || cfg.FormGen.OpenAIAPIKey != "sk-test" {
		t.Errorf("unexpected form generator config %+v", cfg.FormGen)
	}
	if cfg.Review.SwitchCutoff != 0.35 || cfg.Review.Concurrency != 8 {
		t.Errorf("unexpected review config %+v", cfg.Review)
	}
	if cfg.Review.MaxAudioBytes != 10485760 || cfg.Review.MaxWords != 1000 {
		t.Errorf("unexpected review limits %+v", cfg.Review)
	}
	if !cfg.Kafka.Enabled {
		t.Error("expected Kafka enabled")
	}
	if want := []string{"kafka-1:9092", "kafka-2:9092"}; !reflect.DeepEqual(cfg.Kafka.Brokers, want) {
		t.Errorf("expected brokers %v, got %v", want, cfg.Kafka.Brokers)
	}
	if cfg.Observability.LogLevel != "debug" {
		t.Errorf("expected log level 'debug', got %s", cfg.Observability.LogLevel)
	}
}

func TestLoad_InvalidValues_FallbackToDefaults(t *testing.T) {
	clearEnv(t)
	t.Setenv("ASR_TIMEOUT", "invalid")
	t.Setenv("MERGE_SWITCH_CUTOFF", "invalid")
	t.Setenv("VALIDATE_CONCURRENCY", "invalid")
	t.Setenv("REVIEW_MAX_AUDIO_BYTES", "invalid")
	t.Setenv("REVIEW_MAX_WORDS", "invalid")
	t.Setenv("KAFKA_ENABLED", "invalid")

	cfg := Load()

	// Should fall back to defaults on parse errors
	if cfg.ASR.Timeout != 10*time.Minute {
		t.Errorf("expected default ASR timeout on invalid input, got %v", cfg.ASR.Timeout)
	}
	if cfg.Review.SwitchCutoff != 0.2 {
		t.Errorf("expected default switch cutoff on invalid input, got %v", cfg.Review.SwitchCutoff)
	}
	if cfg.Review.Concurrency != 4 {
		t.Errorf("expected default concurrency on invalid input, got %d", cfg.Review.Concurrency)
	}
	if cfg.Review.MaxAudioBytes != 64*1024*1024 {
		t.Errorf("expected default max audio bytes on invalid input, got %d", cfg.Review.MaxAudioBytes)
	}
	if cfg.Review.MaxWords != 50000 {
		t.Errorf("expected default max words on invalid input, got %d", cfg.Review.MaxWords)
	}
	if cfg.Kafka.Enabled {
		t.Error("expected default Kafka enabled on invalid input")
	}
}

func TestLoad_KafkaPrincipal_FallsBackToServicePrincipal(t *testing.T) {
	clearEnv(t)
	t.Setenv("SERVICE_PRINCIPAL", "my-service")

	cfg := Load()

	if cfg.Kafka.Principal != "my-service" {
		t.Errorf("expected Kafka principal to fall back to service principal, got %s", cfg.Kafka.Principal)
	}
}

func TestEnvOrDefaultBool(t *testing.T) {
	tests := []struct {
		name     string
		envValue string
		def      bool
		expected bool
	}{
		{"true string", "true", false, true},
		{"false string", "false", true, false},
		{"1", "1", false, true},
		{"0", "0", true, false},
		{"TRUE uppercase", "TRUE", false, true},
		{"invalid", "invalid", true, true},
		{"empty", "", true, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			key := "TEST_BOOL_VAR"
			t.Setenv(key, tt.envValue)

			got := envOrDefaultBool(key, tt.def)
			if got != tt.expected {
				t.Errorf("envOrDefaultBool(%s, %v) = %v, want %v", tt.envValue, tt.def, got, tt.expected)
			}
		})
	}
}

func TestEnvOrDefaultList(t *testing.T) {
	tests := []struct {
		name     string
		envValue string
		expected []string
	}{
		{"single", "a:1", []string{"a:1"}},
		{"trimmed", " a:1 , b:2 ", []string{"a:1", "b:2"}},
		{"only commas", ",,", []string{"default"}},
		{"empty", "", []string{"default"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			key := "TEST_LIST_VAR"
			t.Setenv(key, tt.envValue)

			got := envOrDefaultList(key, []string{"default"})
			if !reflect.DeepEqual(got, tt.expected) {
				t.Errorf("envOrDefaultList(%q) = %v, want %v", tt.envValue, got, tt.expected)
			}
		})
	}
}
