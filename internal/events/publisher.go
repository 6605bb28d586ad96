// Package events provides event publishing functionality.
package events

import (
	"context"
	"encoding/json"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/segmentio/kafka-go"

	"call-review-service/internal/models"
	"call-review-service/internal/observability/metrics"
)

// messageWriter is the part of *kafka.Writer the publisher uses.
type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Publisher publishes review run events to separate Kafka topics.
type Publisher struct {
	writerConversation messageWriter
	writerValidation   messageWriter
	principal          string
	topicConversation  string
	topicValidation    string
	enabled            bool
	metrics            *metrics.Metrics
}

// Config holds Kafka publisher configuration.
type Config struct {
	Brokers           []string
	TopicConversation string
	TopicValidation   string
	Principal         string
	Enabled           bool
}

// New creates a new Kafka event publisher with one topic for merged
// conversations and one for validation results.
func New(cfg *Config) *Publisher {
	m := metrics.DefaultMetrics

	if cfg == nil {
		log.Info().Msg("Kafka disabled (nil config), using log-only mode")
		return &Publisher{
			enabled: false,
			metrics: m,
		}
	}

	if !cfg.Enabled || len(cfg.Brokers) == 0 {
		log.Info().Msg("Kafka disabled, using log-only mode")
		return &Publisher{
			principal:         cfg.Principal,
			topicConversation: cfg.TopicConversation,
			topicValidation:   cfg.TopicValidation,
			enabled:           false,
			metrics:           m,
		}
	}

	// Longer dial timeout for DNS resolution in Kubernetes
	dialer := &kafka.Dialer{
		Timeout:   10 * time.Second,
		DualStack: true,
	}
	transport := &kafka.Transport{
		Dial: dialer.DialFunc,
	}

	newWriter := func(topic string) *kafka.Writer {
		return &kafka.Writer{
			Addr:         kafka.TCP(cfg.Brokers...),
			Topic:        topic,
			Balancer:     &kafka.Hash{},
			BatchTimeout: 10 * time.Millisecond,
			WriteTimeout: 10 * time.Second,
			RequiredAcks: kafka.RequireOne,
			Transport:    transport,
		}
	}

	log.Info().
		Strs("brokers", cfg.Brokers).
		Str("topicConversation", cfg.TopicConversation).
		Str("topicValidation", cfg.TopicValidation).
		Str("principal", cfg.Principal).
		Msg("Kafka publisher initialized")

	return &Publisher{
		writerConversation: newWriter(cfg.TopicConversation),
		writerValidation:   newWriter(cfg.TopicValidation),
		principal:          cfg.Principal,
		topicConversation:  cfg.TopicConversation,
		topicValidation:    cfg.TopicValidation,
		enabled:            true,
		metrics:            m,
	}
}

// Enabled reports whether events reach Kafka rather than only the log.
func (p *Publisher) Enabled() bool { return p.enabled }

// PublishConversation publishes a merged conversation, keyed by run ID.
func (p *Publisher) PublishConversation(ctx context.Context, event models.ConversationMerged) error {
	return p.publish(ctx, p.writerConversation, p.topicConversation, event.EventType, event.RunID, event)
}

// PublishValidation publishes a validation result, keyed by run ID.
func (p *Publisher) PublishValidation(ctx context.Context, event models.FormValidated) error {
	return p.publish(ctx, p.writerValidation, p.topicValidation, event.EventType, event.RunID, event)
}

// publish is the internal method that writes to a specific Kafka writer.
func (p *Publisher) publish(ctx context.Context, writer messageWriter, topic, eventType, key string, event any) error {
	start := time.Now()

	payload, err := json.Marshal(event)
	if err != nil {
		log.Error().Err(err).Str("topic", topic).Msg("Failed to marshal event")
		return err
	}

	log.Debug().
		Str("principal", p.principal).
		Str("topic", topic).
		Str("key", key).
		RawJSON("payload", payload).
		Msg("Publishing event")

	// If Kafka is disabled, just log
	if !p.enabled || writer == nil {
		p.metrics.RecordKafkaPublish(topic, eventType, nil, time.Since(start).Seconds())
		return nil
	}

	msg := kafka.Message{
		Key:   []byte(key),
		Value: payload,
		Headers: []kafka.Header{
			{Key: "eventType", Value: []byte(eventType)},
			{Key: "principal", Value: []byte(p.principal)},
		},
	}

	if err := writer.WriteMessages(ctx, msg); err != nil {
		log.Error().
			Err(err).
			Str("topic", topic).
			Str("key", key).
			Msg("Failed to write to Kafka")
		p.metrics.RecordKafkaPublish(topic, eventType, err, time.Since(start).Seconds())
		return err
	}

	p.metrics.RecordKafkaPublish(topic, eventType, nil, time.Since(start).Seconds())
	return nil
}

// Close closes both Kafka writers.
func (p *Publisher) Close() error {
	var err error
	if p.writerConversation != nil {
		if e := p.writerConversation.Close(); e != nil {
			log.Error().Err(e).Msg("Error closing conversation writer")
			err = e
		}
	}
	if p.writerValidation != nil {
		if e := p.writerValidation.Close(); e != nil {
			log.Error().Err(e).Msg("Error closing validation writer")
			err = e
		}
	}
	return err
}
