// Package google provides a Google Cloud Speech-to-Text batch adapter.
package google

import (
	"context"
	"fmt"
	"strings"
	"time"

	speech "cloud.google.com/go/speech/apiv1"
	"cloud.google.com/go/speech/apiv1/speechpb"
	"google.golang.org/api/option"

	"call-review-service/internal/service/audio"
	"call-review-service/internal/service/transcript"
)

// Config holds recognition settings.
type Config struct {
	LanguageCode    string
	AudioEncoding   string // LINEAR16, MULAW, FLAC, ...
	Model           string // empty selects the provider default
	Timeout         time.Duration
	CredentialsFile string // empty uses application default credentials
}

// DefaultConfig returns the settings used for French phone calls.
func DefaultConfig() Config {
	return Config{
		LanguageCode:  "fr-FR",
		AudioEncoding: "LINEAR16",
		Timeout:       10 * time.Minute,
	}
}

// Adapter implements asr.Adapter using long running recognition.
type Adapter struct {
	client *speech.Client
	cfg    Config
}

// New creates a Google ASR adapter.
func New(ctx context.Context, cfg Config) (*Adapter, error) {
	var opts []option.ClientOption
	if cfg.CredentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(cfg.CredentialsFile))
	}
	c, err := speech.NewClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("create speech client: %w", err)
	}
	return &Adapter{client: c, cfg: cfg}, nil
}

// Name identifies the provider.
func (a *Adapter) Name() string { return "google" }

// Transcribe sends the track inline and waits for the operation to finish.
func (a *Adapter) Transcribe(ctx context.Context, speaker transcript.Speaker, track audio.Track) (transcript.ChannelLog, error) {
	if len(track.PCM) == 0 {
		return transcript.ChannelLog{Speaker: speaker}, nil
	}
	if a.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, a.cfg.Timeout)
		defer cancel()
	}

	op, err := a.client.LongRunningRecognize(ctx, buildRequest(a.cfg, track))
	if err != nil {
		return transcript.ChannelLog{}, fmt.Errorf("start recognition: %w", err)
	}
	resp, err := op.Wait(ctx)
	if err != nil {
		return transcript.ChannelLog{}, fmt.Errorf("wait for recognition: %w", err)
	}

	log := FromResults(resp.GetResults())
	log.Speaker = speaker
	return log, nil
}

// Close releases the client connection.
func (a *Adapter) Close() error {
	return a.client.Close()
}

func buildRequest(cfg Config, track audio.Track) *speechpb.LongRunningRecognizeRequest {
	return &speechpb.LongRunningRecognizeRequest{
		Config: &speechpb.RecognitionConfig{
			Encoding:              parseAudioEncoding(cfg.AudioEncoding),
			SampleRateHertz:       int32(track.Format.SampleRate),
			AudioChannelCount:     1,
			LanguageCode:          cfg.LanguageCode,
			Model:                 cfg.Model,
			EnableWordTimeOffsets: true,
			EnableWordConfidence:  true,
		},
		Audio: &speechpb.RecognitionAudio{
			AudioSource: &speechpb.RecognitionAudio_Content{Content: track.WAV()},
		},
	}
}

// FromResults converts recognition results into a channel log, keeping the
// top alternative of each result.
func FromResults(results []*speechpb.SpeechRecognitionResult) transcript.ChannelLog {
	var log transcript.ChannelLog
	for _, r := range results {
		alts := r.GetAlternatives()
		if len(alts) == 0 || len(alts[0].GetWords()) == 0 {
			continue
		}
		alt := alts[0]
		seg := transcript.Segment{Text: strings.TrimSpace(alt.GetTranscript())}
		for _, w := range alt.GetWords() {
			seg.Words = append(seg.Words, transcript.TimedWord{
				Text:       w.GetWord(),
				Start:      w.GetStartTime().AsDuration().Seconds(),
				End:        w.GetEndTime().AsDuration().Seconds(),
				Confidence: float64(w.GetConfidence()),
			})
		}
		log.Segments = append(log.Segments, seg)
	}
	return log
}

// parseAudioEncoding maps an encoding name to the API enum, falling back to
// LINEAR16 for unknown names.
func parseAudioEncoding(encoding string) speechpb.RecognitionConfig_AudioEncoding {
	if v, ok := speechpb.RecognitionConfig_AudioEncoding_value[encoding]; ok && v != 0 {
		return speechpb.RecognitionConfig_AudioEncoding(v)
	}
	return speechpb.RecognitionConfig_LINEAR16
}
