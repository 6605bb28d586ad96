// Command eventtail prints the review events the service publishes to Kafka.
package main

import (
	"context"
	"flag"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"

	"call-review-service/internal/events"
	"call-review-service/internal/models"
	"call-review-service/internal/observability/logging"
)

func main() {
	brokers := flag.String("brokers", "localhost:9092", "Kafka brokers (comma-separated)")
	topicConversation := flag.String("topic-conversation", models.EventConversationMerged, "Merged conversation topic")
	topicValidation := flag.String("topic-validation", models.EventFormValidated, "Validation result topic")
	since := flag.Duration("since", time.Hour, "Replay events newer than this")
	flag.Parse()

	logCfg := logging.DefaultConfig()
	logCfg.Format = "console"
	logging.Init(logCfg)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	consumer := events.NewConsumer(events.ConsumerConfig{
		Brokers: strings.Split(*brokers, ","),
		Topics:  []string{*topicConversation, *topicValidation},
	})
	defer consumer.Close()

	err := consumer.Run(ctx, *since, func(topic string, event any) {
		switch ev := event.(type) {
		case *models.ConversationMerged:
			l := log.Info().Str("runId", ev.RunID).Str("callId", ev.CallID).Int("words", ev.WordCount)
			l.Msgf("Conversation merged (%d turns)", len(ev.Turns))
			for _, t := range ev.Turns {
				log.Info().Str("runId", ev.RunID).Int64("startMs", t.StartMs).Msgf("  %s: %s", t.Speaker, t.Text)
			}
		case *models.FormValidated:
			log.Info().Str("runId", ev.RunID).Str("callId", ev.CallID).Int("fields", len(ev.Answers)).
				Msgf("Form validated (%d issues)", len(ev.Issues))
			for _, is := range ev.Issues {
				log.Warn().Str("runId", ev.RunID).Str("issueId", is.ID).Str("evidence", is.EvidenceMatch).
					Msgf("  [%s] %s", is.Kind, is.Message)
			}
		}
	})
	if err != nil {
		log.Fatal().Err(err).Msg("Consumer stopped")
	}
}
