// Package mock provides a scripted ASR adapter for running without cloud
// credentials.
package mock

import (
	"context"
	"sync"

	"call-review-service/internal/service/audio"
	"call-review-service/internal/service/transcript"
)

// DefaultLogs is a short scripted call: the receiver answers, the caller
// gives a phone number.
var DefaultLogs = map[transcript.Speaker]transcript.ChannelLog{
	transcript.Caller: {
		Speaker: transcript.Caller,
		Segments: []transcript.Segment{{
			Text: "bonjour mon numéro est le 514 555 0199",
			Words: []transcript.TimedWord{
				{Text: "bonjour", Start: 0.0, End: 0.5, Confidence: 0.93},
				{Text: "mon", Start: 2.1, End: 2.3, Confidence: 0.91},
				{Text: "numéro", Start: 2.3, End: 2.7, Confidence: 0.9},
				{Text: "est", Start: 2.7, End: 2.8, Confidence: 0.92},
				{Text: "le", Start: 2.8, End: 2.9, Confidence: 0.88},
				{Text: "514", Start: 3.0, End: 3.5, Confidence: 0.62},
				{Text: "555", Start: 3.6, End: 4.1, Confidence: 0.41},
				{Text: "0199", Start: 4.2, End: 4.9, Confidence: 0.58},
			},
		}},
	},
	transcript.Receiver: {
		Speaker: transcript.Receiver,
		Segments: []transcript.Segment{{
			Text: "allo oui",
			Words: []transcript.TimedWord{
				{Text: "allo", Start: 0.6, End: 1.0, Confidence: 0.95},
				{Text: "oui", Start: 1.2, End: 1.4, Confidence: 0.9},
			},
		}},
	},
}

// Adapter implements asr.Adapter by returning scripted logs.
type Adapter struct {
	mu    sync.Mutex
	logs  map[transcript.Speaker]transcript.ChannelLog
	err   error
	calls []transcript.Speaker
}

// New creates a mock adapter returning logs per speaker. A nil map selects
// DefaultLogs.
func New(logs map[transcript.Speaker]transcript.ChannelLog) *Adapter {
	if logs == nil {
		logs = DefaultLogs
	}
	return &Adapter{logs: logs}
}

// FailWith makes every following Transcribe call return err.
func (a *Adapter) FailWith(err error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.err = err
}

// Name identifies the provider.
func (a *Adapter) Name() string { return "mock" }

// Transcribe returns the scripted log of speaker, ignoring the audio.
func (a *Adapter) Transcribe(ctx context.Context, speaker transcript.Speaker, _ audio.Track) (transcript.ChannelLog, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.calls = append(a.calls, speaker)
	if err := ctx.Err(); err != nil {
		return transcript.ChannelLog{}, err
	}
	if a.err != nil {
		return transcript.ChannelLog{}, a.err
	}
	log, ok := a.logs[speaker]
	if !ok {
		return transcript.ChannelLog{Speaker: speaker}, nil
	}
	return log, nil
}

// Calls returns the speakers transcribed so far.
func (a *Adapter) Calls() []transcript.Speaker {
	a.mu.Lock()
	defer a.mu.Unlock()
	return append([]transcript.Speaker(nil), a.calls...)
}

// Close is a no-op.
func (a *Adapter) Close() error { return nil }
