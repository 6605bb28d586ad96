package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/segmentio/kafka-go"
	"golang.org/x/sync/errgroup"

	"call-review-service/internal/models"
)

// ErrUnknownEvent is returned for payloads with an unrecognised eventType.
var ErrUnknownEvent = errors.New("unknown event type")

// ConsumerConfig holds Kafka consumer configuration.
type ConsumerConfig struct {
	Brokers []string
	Topics  []string
}

// Consumer reads review events from Kafka, one partition reader per topic.
type Consumer struct {
	readers map[string]*kafka.Reader
}

// NewConsumer creates a consumer. Readers use partition 0 without a consumer
// group, which also works through a port-forward.
func NewConsumer(cfg ConsumerConfig) *Consumer {
	c := &Consumer{readers: make(map[string]*kafka.Reader, len(cfg.Topics))}
	for _, topic := range cfg.Topics {
		c.readers[topic] = kafka.NewReader(kafka.ReaderConfig{
			Brokers:   cfg.Brokers,
			Topic:     topic,
			Partition: 0,
			MinBytes:  1,
			MaxBytes:  10e6,
		})
	}
	return c
}

// Handler receives every decoded event; event is *models.ConversationMerged
// or *models.FormValidated.
type Handler func(topic string, event any)

// Run consumes all topics until ctx is cancelled, starting since ago (zero
// keeps the reader's default offset). Read errors are logged and retried;
// undecodable messages are skipped.
func (c *Consumer) Run(ctx context.Context, since time.Duration, fn Handler) error {
	g, gctx := errgroup.WithContext(ctx)
	for topic, reader := range c.readers {
		g.Go(func() error {
			if since > 0 {
				if err := reader.SetOffsetAt(gctx, time.Now().Add(-since)); err != nil {
					return fmt.Errorf("rewind %s: %w", topic, err)
				}
			}
			log.Info().Str("topic", topic).Dur("since", since).Msg("Consuming review events")

			for {
				msg, err := reader.ReadMessage(gctx)
				if err != nil {
					if gctx.Err() != nil {
						return nil
					}
					log.Error().Err(err).Str("topic", topic).Msg("Kafka read error")
					time.Sleep(time.Second)
					continue
				}
				event, err := Decode(msg.Value)
				if err != nil {
					log.Warn().Err(err).Str("topic", topic).Int64("offset", msg.Offset).Msg("Skipping message")
					continue
				}
				fn(topic, event)
			}
		})
	}
	return g.Wait()
}

// Close closes every reader.
func (c *Consumer) Close() error {
	var errs []error
	for _, r := range c.readers {
		errs = append(errs, r.Close())
	}
	return errors.Join(errs...)
}

// Decode parses an event payload according to its eventType field.
func Decode(payload []byte) (any, error) {
	var envelope struct {
		EventType string `json:"eventType"`
	}
	if err := json.Unmarshal(payload, &envelope); err != nil {
		return nil, err
	}

	var event any
	switch envelope.EventType {
	case models.EventConversationMerged:
		event = &models.ConversationMerged{}
	case models.EventFormValidated:
		event = &models.FormValidated{}
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownEvent, envelope.EventType)
	}
	if err := json.Unmarshal(payload, event); err != nil {
		return nil, err
	}
	return event, nil
}
