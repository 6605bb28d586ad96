// Package review provides the review run handler that coordinates the ASR
// adapter, the transcript merger, the form generator, the validator and the
// event publisher for one recorded call.
package review

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"call-review-service/internal/events"
	"call-review-service/internal/observability/logging"
	"call-review-service/internal/observability/metrics"
	"call-review-service/internal/schema"
	"call-review-service/internal/service/asr"
	"call-review-service/internal/service/audio"
	"call-review-service/internal/service/form"
	"call-review-service/internal/service/formgen"
	"call-review-service/internal/service/issue"
	"call-review-service/internal/service/transcript"
	"call-review-service/internal/service/validate"
)

var (
	// ErrLimitExceeded is returned when a call is too large to review.
	ErrLimitExceeded = errors.New("review limit exceeded")
	// ErrNoTranscript is returned when neither channel logs nor an ASR
	// adapter are available.
	ErrNoTranscript = errors.New("no channel logs and no ASR adapter")
	// ErrNoGenerator is returned when a run needs a form but no generator is configured.
	ErrNoGenerator = errors.New("no form text and no form generator")
	// ErrUnknownRun is returned for run IDs the handler does not hold.
	ErrUnknownRun = errors.New("unknown review run")
)

// Limits defines safety guardrails for a single review run.
type Limits struct {
	MaxAudioBytes int64 // Max PCM bytes per channel
	MaxWords      int   // Max transcript words per channel
}

// DefaultLimits returns sensible default limits.
func DefaultLimits() Limits {
	return Limits{
		MaxAudioBytes: 64 << 20, // 64MiB (~35 minutes at 16kHz 16-bit mono)
		MaxWords:      50000,
	}
}

// Input is one call to review. Logs may be left empty when an ASR adapter is
// configured; the audio is then transcribed first.
type Input struct {
	CallID   string
	Logs     []transcript.ChannelLog
	Audio    audio.Pair
	FormText string // pre-generated form text, skips the generator when set
}

// Result is the outcome of a review run.
type Result struct {
	RunID        string                   `json:"run_id"`
	Conversation *transcript.Conversation `json:"conversation,omitempty"`
	Form         *form.Form               `json:"form"`
	Issues       []validate.Issue         `json:"issues"`
}

// Handler runs reviews and keeps the issue trackers of the runs it produced.
type Handler struct {
	adapter   asr.Adapter
	generator formgen.Generator
	validator *validate.Validator
	schema    *schema.Schema
	publisher *events.Publisher
	issueGen  *issue.Generator
	limits    Limits
	cutoff    float64

	mu   sync.RWMutex
	runs map[string]*issue.Tracker
}

// NewHandler creates a review handler with default limits. adapter and
// generator may be nil when callers always provide logs and form text.
func NewHandler(
	adapter asr.Adapter,
	generator formgen.Generator,
	validator *validate.Validator,
	s *schema.Schema,
	publisher *events.Publisher,
) *Handler {
	return NewHandlerWithLimits(adapter, generator, validator, s, publisher, DefaultLimits())
}

// NewHandlerWithLimits creates a review handler with custom limits.
func NewHandlerWithLimits(
	adapter asr.Adapter,
	generator formgen.Generator,
	validator *validate.Validator,
	s *schema.Schema,
	publisher *events.Publisher,
	limits Limits,
) *Handler {
	if validator == nil {
		validator = validate.New()
	}
	if s == nil {
		s = schema.Default()
	}
	if publisher == nil {
		publisher = events.New(nil)
	}
	return &Handler{
		adapter:   adapter,
		generator: generator,
		validator: validator,
		schema:    s,
		publisher: publisher,
		issueGen:  issue.NewGenerator(),
		limits:    limits,
		cutoff:    transcript.DefaultSwitchCutoff,
		runs:      make(map[string]*issue.Tracker),
	}
}

// SetSwitchCutoff sets the pause, in seconds, after which the floor passes
// to a waiting speaker.
func (h *Handler) SetSwitchCutoff(seconds float64) {
	h.cutoff = seconds
}

// Schema returns the form schema the handler checks against.
func (h *Handler) Schema() *schema.Schema { return h.schema }

// Merge checks the word limits and merges the caller and receiver logs into
// one conversation.
func (h *Handler) Merge(logs []transcript.ChannelLog) (transcript.Conversation, error) {
	if err := h.checkWords(logs); err != nil {
		return transcript.Conversation{}, err
	}
	caller, receiver := channels(logs)
	conv, err := transcript.Merge(caller, receiver, transcript.WithSwitchCutoff(h.cutoff))
	metrics.DefaultMetrics.RecordMerge(conv.WordCount(), len(conv.Turns), err)
	if err != nil {
		return transcript.Conversation{}, fmt.Errorf("merge: %w", err)
	}
	return conv, nil
}

// Run reviews a call end to end: transcribe when needed, merge, generate the
// form unless in.FormText is set, then parse, check and validate it. The
// run's issues stay open in the handler until resolved or discarded.
func (h *Handler) Run(ctx context.Context, in Input) (*Result, error) {
	return h.run(ctx, in, true)
}

// Validate parses in.FormText and validates it against the logs and audio
// without merging or generating. It still opens a run for the issues.
func (h *Handler) Validate(ctx context.Context, in Input) (*Result, error) {
	return h.run(ctx, in, false)
}

func (h *Handler) run(ctx context.Context, in Input, full bool) (*Result, error) {
	start := time.Now()
	runID := uuid.NewString()
	logger := logging.WithRun(runID)

	res, err := h.review(ctx, runID, in, full)
	metrics.DefaultMetrics.RecordRun(err == nil, time.Since(start).Seconds())
	if err != nil {
		logger.Warn().Err(err).Str("callId", in.CallID).Msg("Review run failed")
		return nil, err
	}

	logger.Info().
		Str("callId", in.CallID).
		Int("fields", res.Form.Len()).
		Int("issues", len(res.Issues)).
		Dur("duration", time.Since(start)).
		Msg("Review run completed")
	return res, nil
}

func (h *Handler) review(ctx context.Context, runID string, in Input, full bool) (*Result, error) {
	if err := h.checkAudio(in.Audio); err != nil {
		return nil, err
	}
	metrics.DefaultMetrics.RecordAudioReceived(in.Audio.Bytes())

	logs := in.Logs
	if len(logs) == 0 {
		if h.adapter == nil {
			return nil, ErrNoTranscript
		}
		var err error
		if logs, err = asr.TranscribePair(ctx, h.adapter, in.Audio); err != nil {
			return nil, err
		}
	}

	res := &Result{RunID: runID}
	text := in.FormText
	if full {
		conv, err := h.Merge(logs)
		if err != nil {
			return nil, err
		}
		res.Conversation = &conv
		h.publishConversation(ctx, runID, in.CallID, conv)

		if text == "" {
			if text, err = h.generate(ctx, runID, conv); err != nil {
				return nil, err
			}
		}
	} else if err := h.checkWords(logs); err != nil {
		return nil, err
	}

	f, err := form.Extract(text)
	if err != nil {
		metrics.DefaultMetrics.RecordFormParseError()
		return nil, err
	}
	if err := h.schema.Check(f); err != nil {
		return nil, fmt.Errorf("schema check: %w", err)
	}

	issues, err := h.validator.Validate(ctx, f, logs, in.Audio)
	if err != nil {
		return nil, err
	}
	h.issueGen.Assign(runID, issues)
	metrics.DefaultMetrics.RecordFieldsValidated(f.Len())
	for _, is := range issues {
		metrics.DefaultMetrics.RecordIssue(string(is.Kind), is.EvidenceMatch.String())
	}

	h.mu.Lock()
	h.runs[runID] = issue.NewTracker(runID, f, issues)
	h.mu.Unlock()

	res.Form = f
	res.Issues = issues
	h.publishValidation(ctx, runID, in.CallID, f, issues)
	return res, nil
}

func (h *Handler) generate(ctx context.Context, runID string, conv transcript.Conversation) (string, error) {
	if h.generator == nil {
		return "", ErrNoGenerator
	}
	start := time.Now()
	text, err := h.generator.Generate(ctx, conv, h.schema)
	metrics.DefaultMetrics.RecordFormGen(h.generator.Name(), err, time.Since(start).Seconds())
	if err != nil {
		return "", fmt.Errorf("generate form: %w", err)
	}
	logger := logging.WithStage(runID, "generate")
	logger.Debug().
		Str("provider", h.generator.Name()).
		Dur("latency", time.Since(start)).
		Msg("Form generated")
	return text, nil
}

// Resolve applies a reviewer's fix to the field of an issue and returns the
// new form version.
func (h *Handler) Resolve(runID, issueID, answer string) (*form.Form, error) {
	t, err := h.tracker(runID)
	if err != nil {
		return nil, err
	}
	return t.Resolve(issueID, answer)
}

// Open returns the unresolved issues of a run.
func (h *Handler) Open(runID string) ([]validate.Issue, error) {
	t, err := h.tracker(runID)
	if err != nil {
		return nil, err
	}
	return t.Open(), nil
}

// Discard dismisses the open issues of a run, whose form is being
// regenerated, and forgets the run. It returns how many issues were dismissed.
func (h *Handler) Discard(runID string) (int, error) {
	h.mu.Lock()
	t, ok := h.runs[runID]
	delete(h.runs, runID)
	h.mu.Unlock()
	if !ok {
		return 0, fmt.Errorf("%w: %s", ErrUnknownRun, runID)
	}
	n := t.Dismiss()
	logger := logging.WithRun(runID)
	logger.Info().Int("dismissed", n).Msg("Review run discarded")
	return n, nil
}

func (h *Handler) tracker(runID string) (*issue.Tracker, error) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	t, ok := h.runs[runID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownRun, runID)
	}
	return t, nil
}

func (h *Handler) checkAudio(p audio.Pair) error {
	if h.limits.MaxAudioBytes <= 0 {
		return nil
	}
	for _, ch := range []struct {
		speaker transcript.Speaker
		track   audio.Track
	}{{transcript.Caller, p.Caller}, {transcript.Receiver, p.Receiver}} {
		if n := int64(len(ch.track.PCM)); n > h.limits.MaxAudioBytes {
			metrics.DefaultMetrics.RecordLimitExceeded("audio_bytes")
			return fmt.Errorf("%w: %s audio %d > %d bytes", ErrLimitExceeded, ch.speaker, n, h.limits.MaxAudioBytes)
		}
	}
	return nil
}

func (h *Handler) checkWords(logs []transcript.ChannelLog) error {
	if h.limits.MaxWords <= 0 {
		return nil
	}
	for _, l := range logs {
		if n := len(l.Transcript().Words); n > h.limits.MaxWords {
			metrics.DefaultMetrics.RecordLimitExceeded("words")
			return fmt.Errorf("%w: %s transcript %d > %d words", ErrLimitExceeded, l.Speaker, n, h.limits.MaxWords)
		}
	}
	return nil
}

// channels concatenates the logs of each speaker into the two channel
// transcripts the merger expects.
func channels(logs []transcript.ChannelLog) (caller, receiver transcript.ChannelTranscript) {
	caller.Speaker, receiver.Speaker = transcript.Caller, transcript.Receiver
	for _, l := range logs {
		words := l.Transcript().Words
		switch l.Speaker {
		case transcript.Caller:
			caller.Words = append(caller.Words, words...)
		case transcript.Receiver:
			receiver.Words = append(receiver.Words, words...)
		}
	}
	return caller, receiver
}
