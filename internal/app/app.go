package app

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"call-review-service/internal/config"
	"call-review-service/internal/events"
	"call-review-service/internal/observability/logging"
	"call-review-service/internal/schema"
	"call-review-service/internal/service/asr"
	"call-review-service/internal/service/asr/google"
	"call-review-service/internal/service/asr/mock"
	"call-review-service/internal/service/formgen"
	"call-review-service/internal/service/review"
	"call-review-service/internal/service/validate"
)

// Application holds process-wide state for the service.
type Application struct {
	StartupTime time.Time
	Logger      zerolog.Logger
	Cfg         *config.Config

	// Review is set by Start.
	Review *review.Handler

	adapter   asr.Adapter
	publisher *events.Publisher
	ready     atomic.Bool
}

// New constructs a new Application from the provided configuration.
func New(cfg *config.Config) *Application {
	a := &Application{
		Cfg: cfg,
	}
	a.setupLogger()

	appLogger := a.Logger.With().
		Str("method", "New").
		Logger()

	appLogger.Info().Msg("Call review service application created")
	return a
}

// setupLogger configures zerolog for the service.
func (a *Application) setupLogger() {
	logCfg := logging.DefaultConfig()
	logCfg.Level = a.Cfg.Observability.LogLevel
	logCfg.Format = a.Cfg.Observability.LogFormat
	logging.Init(logCfg)

	a.Logger = logging.Logger().With().
		Str("service", "call-review-service").
		Str("component", "application").
		Logger()

	a.Logger.Info().
		Str("logLevel", zerolog.GlobalLevel().String()).
		Str("logFormat", logCfg.Format).
		Msg("Logger setup completed")
}

// Start builds the review pipeline from the configuration. The application
// reports ready once it returns without error.
func (a *Application) Start(ctx context.Context) error {
	startLogger := a.Logger.With().
		Str("method", "Start").
		Logger()

	a.StartupTime = time.Now().UTC()
	startLogger.Info().
		Time("startupTime", a.StartupTime).
		Msg("Call review service starting")

	s := schema.Default()
	if path := a.Cfg.Review.SchemaPath; path != "" {
		var err error
		if s, err = schema.Load(path); err != nil {
			return err
		}
	}
	registry, err := s.Registry()
	if err != nil {
		return err
	}

	adapter, err := a.newASR(ctx)
	if err != nil {
		return err
	}
	generator, err := a.newGenerator()
	if err != nil {
		adapter.Close()
		return err
	}

	a.adapter = adapter
	a.publisher = events.New(&events.Config{
		Enabled:           a.Cfg.Kafka.Enabled,
		Brokers:           a.Cfg.Kafka.Brokers,
		TopicConversation: a.Cfg.Kafka.TopicConversation,
		TopicValidation:   a.Cfg.Kafka.TopicValidation,
		Principal:         a.Cfg.Kafka.Principal,
	})

	validator := validate.New(
		validate.WithRegistry(registry),
		validate.WithConcurrency(a.Cfg.Review.Concurrency),
	)
	a.Review = review.NewHandlerWithLimits(adapter, generator, validator, s, a.publisher, review.Limits{
		MaxAudioBytes: a.Cfg.Review.MaxAudioBytes,
		MaxWords:      a.Cfg.Review.MaxWords,
	})
	a.Review.SetSwitchCutoff(a.Cfg.Review.SwitchCutoff)

	startLogger.Info().
		Str("asrProvider", adapter.Name()).
		Str("formgenProvider", generator.Name()).
		Int("schemaFields", len(s.Fields)).
		Bool("kafkaEnabled", a.publisher.Enabled()).
		Msg("Review pipeline ready")

	a.ready.Store(true)
	return nil
}

func (a *Application) newASR(ctx context.Context) (asr.Adapter, error) {
	switch a.Cfg.ASR.Provider {
	case "mock", "":
		return mock.New(nil), nil
	case "google":
		return google.New(ctx, google.Config{
			LanguageCode:    a.Cfg.ASR.LanguageCode,
			AudioEncoding:   a.Cfg.ASR.AudioEncoding,
			Model:           a.Cfg.ASR.Model,
			Timeout:         a.Cfg.ASR.Timeout,
			CredentialsFile: a.Cfg.ASR.CredentialsFile,
		})
	default:
		return nil, fmt.Errorf("unknown ASR provider %q", a.Cfg.ASR.Provider)
	}
}

func (a *Application) newGenerator() (formgen.Generator, error) {
	switch a.Cfg.FormGen.Provider {
	case "mock", "":
		return formgen.NewMock(""), nil
	case "openai":
		cfg := formgen.DefaultOpenAIConfig()
		cfg.APIKey = a.Cfg.FormGen.OpenAIAPIKey
		cfg.BaseURL = a.Cfg.FormGen.OpenAIBaseURL
		cfg.Temperature = float32(a.Cfg.FormGen.Temperature)
		if a.Cfg.FormGen.OpenAIModel != "" {
			cfg.Model = a.Cfg.FormGen.OpenAIModel
		}
		return formgen.NewOpenAI(cfg)
	default:
		return nil, fmt.Errorf("unknown form generator provider %q", a.Cfg.FormGen.Provider)
	}
}

// Ready reports whether Start completed and Shutdown has not begun.
func (a *Application) Ready() bool {
	return a.ready.Load()
}

// Shutdown performs a best-effort cleanup before process exit.
func (a *Application) Shutdown() {
	shutdownLogger := a.Logger.With().
		Str("method", "Shutdown").
		Logger()

	a.ready.Store(false)
	if a.publisher != nil {
		if err := a.publisher.Close(); err != nil {
			shutdownLogger.Error().Err(err).Msg("Failed to close event publisher")
		}
	}
	if a.adapter != nil {
		if err := a.adapter.Close(); err != nil {
			shutdownLogger.Error().Err(err).Msg("Failed to close ASR adapter")
		}
	}

	shutdownLogger.Info().Msg("Call review service shutting down")
}
