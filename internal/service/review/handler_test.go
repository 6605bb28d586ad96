package review

import (
	"context"
	"errors"
	"strings"
	"testing"

	"call-review-service/internal/events"
	"call-review-service/internal/schema"
	"call-review-service/internal/service/asr/mock"
	"call-review-service/internal/service/audio"
	"call-review-service/internal/service/form"
	"call-review-service/internal/service/formgen"
	"call-review-service/internal/service/transcript"
	"call-review-service/internal/service/validate"
)

const testFormText = `Formulaire:
{
  "Cell_2": {"answer": "555 12", "confidence_scores": [0.2, 0.3]},
  "Client 2-Courriel (personnel)": {"answer": "jean point tremblay", "confidence_scores": [0.3, 0.2, 0.4]}
}`

// newMockPublisher returns a log-only publisher.
func newMockPublisher() *events.Publisher {
	return events.New(&events.Config{Enabled: false})
}

func defaultLogs() []transcript.ChannelLog {
	return []transcript.ChannelLog{
		mock.DefaultLogs[transcript.Caller],
		mock.DefaultLogs[transcript.Receiver],
	}
}

func TestHandler_Run_Generated(t *testing.T) {
	gen := formgen.NewMock("")
	h := NewHandler(mock.New(nil), gen, validate.New(), schema.Default(), newMockPublisher())

	res, err := h.Run(context.Background(), Input{CallID: "call-1"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if res.RunID == "" {
		t.Error("expected a run ID")
	}
	if res.Conversation == nil || len(res.Conversation.Turns) != 3 {
		t.Fatalf("expected 3 turns, got %+v", res.Conversation)
	}
	if got := res.Conversation.String(); !strings.HasPrefix(got, "Caller: bonjour\nReceiver: allo oui\n") {
		t.Errorf("unexpected conversation %q", got)
	}
	fld, ok := res.Form.Get("Telephone_client_1")
	if !ok || fld.Answer != "514 555 0199" {
		t.Errorf("expected generated phone answer, got %+v", fld)
	}
	// Numeric answers skip the confidence check and the number is long enough.
	if len(res.Issues) != 0 {
		t.Errorf("expected no issues, got %+v", res.Issues)
	}
	if n := len(gen.Prompts()); n != 1 {
		t.Errorf("expected 1 prompt, got %d", n)
	}
	if open, err := h.Open(res.RunID); err != nil || len(open) != 0 {
		t.Errorf("expected an open run with no issues, got %v, %v", open, err)
	}
}

func TestHandler_Run_Issues(t *testing.T) {
	h := NewHandler(nil, nil, validate.New(), schema.Default(), newMockPublisher())

	res, err := h.Run(context.Background(), Input{Logs: defaultLogs(), FormText: testFormText})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	want := []struct {
		field string
		kind  validate.Kind
	}{
		{"Cell_2", validate.KindRule},
		{"Client 2-Courriel (personnel)", validate.KindConfidence},
		{"Client 2-Courriel (personnel)", validate.KindRule},
	}
	if len(res.Issues) != len(want) {
		t.Fatalf("expected %d issues, got %+v", len(want), res.Issues)
	}
	for i, w := range want {
		is := res.Issues[i]
		if is.Field != w.field || is.Kind != w.kind {
			t.Errorf("issue %d: expected %s/%s, got %s/%s", i, w.field, w.kind, is.Field, is.Kind)
		}
		if !strings.HasPrefix(is.ID, res.RunID+"-issue-") {
			t.Errorf("issue %d: expected ID under run %s, got %s", i, res.RunID, is.ID)
		}
	}
	if res.Issues[2].Message != "Client 2-Courriel (personnel) must be an email address" {
		t.Errorf("unexpected message %q", res.Issues[2].Message)
	}
}

func TestHandler_ResolveAndDiscard(t *testing.T) {
	h := NewHandler(nil, nil, nil, nil, nil)

	res, err := h.Validate(context.Background(), Input{Logs: defaultLogs(), FormText: testFormText})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Conversation != nil {
		t.Error("expected no conversation from Validate")
	}

	f, err := h.Resolve(res.RunID, res.Issues[0].ID, "514 555 1234")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if fld, _ := f.Get("Cell_2"); fld.Answer != "514 555 1234" {
		t.Errorf("expected corrected answer, got %q", fld.Answer)
	}
	if fld, _ := res.Form.Get("Cell_2"); fld.Answer != "555 12" {
		t.Errorf("expected original form untouched, got %q", fld.Answer)
	}

	open, _ := h.Open(res.RunID)
	if len(open) != 2 {
		t.Errorf("expected 2 open issues, got %d", len(open))
	}

	n, err := h.Discard(res.RunID)
	if err != nil || n != 2 {
		t.Errorf("expected 2 dismissed issues, got %d, %v", n, err)
	}
	if _, err := h.Open(res.RunID); !errors.Is(err, ErrUnknownRun) {
		t.Errorf("expected ErrUnknownRun, got %v", err)
	}
	if _, err := h.Resolve("nope", "x", "y"); !errors.Is(err, ErrUnknownRun) {
		t.Errorf("expected ErrUnknownRun, got %v", err)
	}
}

func TestHandler_Limits(t *testing.T) {
	tests := []struct {
		name   string
		limits Limits
		in     Input
	}{
		{
			name:   "audio bytes",
			limits: Limits{MaxAudioBytes: 10},
			in: Input{
				Logs:     defaultLogs(),
				Audio:    audio.Pair{Receiver: audio.Track{Format: audio.Format{SampleRate: 8000, BitsPerSample: 16}, PCM: make([]byte, 20)}},
				FormText: testFormText,
			},
		},
		{
			name:   "words",
			limits: Limits{MaxWords: 3},
			in:     Input{Logs: defaultLogs(), FormText: testFormText},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := NewHandlerWithLimits(nil, nil, nil, nil, nil, tt.limits)
			if _, err := h.Run(context.Background(), tt.in); !errors.Is(err, ErrLimitExceeded) {
				t.Errorf("expected ErrLimitExceeded from Run, got %v", err)
			}
			if _, err := h.Validate(context.Background(), tt.in); !errors.Is(err, ErrLimitExceeded) {
				t.Errorf("expected ErrLimitExceeded from Validate, got %v", err)
			}
		})
	}
}

func TestHandler_Errors(t *testing.T) {
	badOrder := []transcript.ChannelLog{{
		Speaker: transcript.Caller,
		Segments: []transcript.Segment{{Words: []transcript.TimedWord{
			{Text: "deux", Start: 2.0, End: 2.5},
			{Text: "un", Start: 1.0, End: 1.5},
		}}},
	}}
	strict := &schema.Schema{Strict: true, Fields: []schema.Field{{Key: "Cell_2"}}}
	failing := &formgen.Mock{Err: errors.New("quota exceeded")}

	tests := []struct {
		name    string
		handler *Handler
		in      Input
		target  error
	}{
		{"no transcript", NewHandler(nil, nil, nil, nil, nil), Input{FormText: testFormText}, ErrNoTranscript},
		{"no generator", NewHandler(nil, nil, nil, nil, nil), Input{Logs: defaultLogs()}, ErrNoGenerator},
		{"generator failure", NewHandler(nil, failing, nil, nil, nil), Input{Logs: defaultLogs()}, failing.Err},
		{"unparseable form", NewHandler(nil, nil, nil, nil, nil), Input{Logs: defaultLogs(), FormText: "pas de formulaire"}, form.ErrParse},
		{"unknown field", NewHandler(nil, nil, nil, strict, nil), Input{Logs: defaultLogs(), FormText: testFormText}, schema.ErrUnknownField},
		{"out of order", NewHandler(nil, nil, nil, nil, nil), Input{Logs: badOrder, FormText: testFormText}, transcript.ErrInputOrdering},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := tt.handler.Run(context.Background(), tt.in)
			if !errors.Is(err, tt.target) {
				t.Errorf("expected %v, got %v", tt.target, err)
			}
			if res != nil {
				t.Errorf("expected no result, got %+v", res)
			}
		})
	}
}

func TestHandler_SwitchCutoff(t *testing.T) {
	h := NewHandler(nil, nil, nil, nil, nil)

	conv, err := h.Merge(defaultLogs())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(conv.Turns) != 3 {
		t.Fatalf("expected 3 turns, got %d", len(conv.Turns))
	}

	// With a cutoff longer than every pause the caller keeps the floor
	// through its 1.6s pause.
	h.SetSwitchCutoff(5)
	conv, err = h.Merge(defaultLogs())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if conv.Turns[0].Speaker != transcript.Caller || len(conv.Turns[0].Words) != 8 {
		t.Errorf("expected the caller to keep the floor, got %s", conv.String())
	}
}

func TestConversationEvent(t *testing.T) {
	conv := transcript.Conversation{Turns: []transcript.Turn{
		{Speaker: transcript.Receiver, Words: []string{"allo", "oui"}, Confidences: []float64{0.9, 0.8}, Start: 0.6, End: 1.4},
	}}

	ev := ConversationEvent("run-1", "call-1", conv)
	if ev.EventType != "call.conversation.merged" || ev.RunID != "run-1" || ev.CallID != "call-1" {
		t.Errorf("unexpected envelope %+v", ev)
	}
	if ev.WordCount != 2 || len(ev.Turns) != 1 {
		t.Fatalf("unexpected event %+v", ev)
	}
	turn := ev.Turns[0]
	if turn.Speaker != "receiver" || turn.Text != "allo oui" || turn.StartMs != 600 || turn.EndMs != 1400 {
		t.Errorf("unexpected turn %+v", turn)
	}
}

func TestValidationEvent(t *testing.T) {
	f, err := form.New(form.Field{Key: "Cell_2", Answer: "555 12"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	issues := []validate.Issue{{
		ID: "run-1-issue-1", Field: "Cell_2", Kind: validate.KindRule,
		Message: "Cell_2 must be at least 10 characters long", Evidence: []byte("RIFF"), EvidenceMatch: validate.MatchFuzzy,
	}}

	ev := ValidationEvent("run-1", "", f, issues)
	if ev.EventType != "call.form.validated" || ev.Answers["Cell_2"] != "555 12" {
		t.Errorf("unexpected event %+v", ev)
	}
	if len(ev.Issues) != 1 || ev.Issues[0].EvidenceMatch != "fuzzy" || !ev.Issues[0].HasEvidence || ev.Issues[0].Kind != "rule" {
		t.Errorf("unexpected issues %+v", ev.Issues)
	}
}
