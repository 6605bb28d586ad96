package review

import (
	"context"
	"math"
	"time"

	"call-review-service/internal/models"
	"call-review-service/internal/observability/logging"
	"call-review-service/internal/service/form"
	"call-review-service/internal/service/transcript"
	"call-review-service/internal/service/validate"
)

// Publishing failures are logged and never fail the run.

func (h *Handler) publishConversation(ctx context.Context, runID, callID string, conv transcript.Conversation) {
	ev := ConversationEvent(runID, callID, conv)
	if err := h.publisher.PublishConversation(ctx, ev); err != nil {
		logger := logging.WithStage(runID, "publish")
		logger.Error().Err(err).Msg("Failed to publish conversation")
	}
}

func (h *Handler) publishValidation(ctx context.Context, runID, callID string, f *form.Form, issues []validate.Issue) {
	ev := ValidationEvent(runID, callID, f, issues)
	if err := h.publisher.PublishValidation(ctx, ev); err != nil {
		logger := logging.WithStage(runID, "publish")
		logger.Error().Err(err).Msg("Failed to publish validation")
	}
}

// ConversationEvent builds the event announcing a merged conversation.
func ConversationEvent(runID, callID string, conv transcript.Conversation) models.ConversationMerged {
	turns := make([]models.TurnEvent, len(conv.Turns))
	for i, t := range conv.Turns {
		turns[i] = models.TurnEvent{
			Speaker:     t.Speaker.String(),
			Text:        t.Text(),
			Confidences: t.Confidences,
			StartMs:     millis(t.Start),
			EndMs:       millis(t.End),
		}
	}
	return models.ConversationMerged{
		EventType: models.EventConversationMerged,
		RunID:     runID,
		CallID:    callID,
		Timestamp: time.Now().UnixMilli(),
		WordCount: conv.WordCount(),
		Turns:     turns,
	}
}

// ValidationEvent builds the event announcing the issues found on a form.
func ValidationEvent(runID, callID string, f *form.Form, issues []validate.Issue) models.FormValidated {
	evs := make([]models.IssueEvent, len(issues))
	for i, is := range issues {
		evs[i] = models.IssueEvent{
			ID:            is.ID,
			Field:         is.Field,
			Kind:          string(is.Kind),
			Message:       is.Message,
			EvidenceMatch: is.EvidenceMatch.String(),
			HasEvidence:   len(is.Evidence) > 0,
		}
	}
	return models.FormValidated{
		EventType: models.EventFormValidated,
		RunID:     runID,
		CallID:    callID,
		Timestamp: time.Now().UnixMilli(),
		Answers:   f.Answers(),
		Issues:    evs,
	}
}

func millis(seconds float64) int64 {
	return int64(math.Round(seconds * 1000))
}
