package events

import (
	"errors"
	"testing"

	"call-review-service/internal/models"
)

func TestDecode(t *testing.T) {
	tests := []struct {
		name    string
		payload string
		check   func(t *testing.T, event any)
	}{
		{
			name:    "conversation",
			payload: `{"eventType":"call.conversation.merged","runId":"run-1","wordCount":2,"turns":[{"speaker":"receiver","text":"allo oui"}]}`,
			check: func(t *testing.T, event any) {
				ev, ok := event.(*models.ConversationMerged)
				if !ok {
					t.Fatalf("expected *models.ConversationMerged, got %T", event)
				}
				if ev.RunID != "run-1" || len(ev.Turns) != 1 || ev.Turns[0].Text != "allo oui" {
					t.Errorf("unexpected event %+v", ev)
				}
			},
		},
		{
			name:    "validation",
			payload: `{"eventType":"call.form.validated","runId":"run-2","answers":{"Cell_2":"555 12"},"issues":[{"id":"run-2-issue-1","kind":"rule"}]}`,
			check: func(t *testing.T, event any) {
				ev, ok := event.(*models.FormValidated)
				if !ok {
					t.Fatalf("expected *models.FormValidated, got %T", event)
				}
				if ev.Answers["Cell_2"] != "555 12" || len(ev.Issues) != 1 || ev.Issues[0].Kind != "rule" {
					t.Errorf("unexpected event %+v", ev)
				}
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			event, err := Decode([]byte(tt.payload))
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			tt.check(t, event)
		})
	}
}

func TestDecode_Errors(t *testing.T) {
	if _, err := Decode([]byte(`{"eventType":"interaction.transcript.final"}`)); !errors.Is(err, ErrUnknownEvent) {
		t.Errorf("expected ErrUnknownEvent, got %v", err)
	}
	if _, err := Decode([]byte(`not json`)); err == nil {
		t.Error("expected error for invalid JSON")
	}
	if _, err := Decode([]byte(`{"eventType":"call.form.validated","issues":"oops"}`)); err == nil {
		t.Error("expected error for mistyped payload")
	}
}

func TestNewConsumer(t *testing.T) {
	c := NewConsumer(ConsumerConfig{
		Brokers: []string{"localhost:9092"},
		Topics:  []string{"call.conversation.merged", "call.form.validated"},
	})
	defer c.Close()

	if len(c.readers) != 2 {
		t.Fatalf("expected 2 readers, got %d", len(c.readers))
	}
	if got := c.readers["call.form.validated"].Config().Topic; got != "call.form.validated" {
		t.Errorf("expected reader for call.form.validated, got %s", got)
	}
}
