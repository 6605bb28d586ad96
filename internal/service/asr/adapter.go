// Package asr defines the interface for batch speech recognition of one call
// channel, and the helpers that turn provider output into channel logs.
package asr

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"call-review-service/internal/observability/logging"
	"call-review-service/internal/observability/metrics"
	"call-review-service/internal/service/audio"
	"call-review-service/internal/service/transcript"
)

// Adapter defines the interface for ASR providers (Google, mock).
type Adapter interface {
	// Name identifies the provider in logs and metrics.
	Name() string

	// Transcribe recognises a whole mono channel and returns one segment per
	// recognition result, with word timestamps relative to the track start.
	Transcribe(ctx context.Context, speaker transcript.Speaker, track audio.Track) (transcript.ChannelLog, error)

	// Close releases provider resources.
	Close() error
}

// TranscribePair transcribes both channels of a call concurrently and
// returns the caller log followed by the receiver log.
func TranscribePair(ctx context.Context, a Adapter, pair audio.Pair) ([]transcript.ChannelLog, error) {
	logger := logging.WithProvider("asr", a.Name())
	logs := make([]transcript.ChannelLog, 2)

	g, gctx := errgroup.WithContext(ctx)
	for i, ch := range []struct {
		speaker transcript.Speaker
		track   audio.Track
	}{
		{transcript.Caller, pair.Caller},
		{transcript.Receiver, pair.Receiver},
	} {
		g.Go(func() error {
			start := time.Now()
			log, err := a.Transcribe(gctx, ch.speaker, ch.track)
			metrics.DefaultMetrics.RecordASR(a.Name(), err, time.Since(start).Seconds())
			if err != nil {
				return fmt.Errorf("transcribe %s channel: %w", ch.speaker, err)
			}
			log.Speaker = ch.speaker
			logs[i] = log

			logger.Info().
				Str("speaker", ch.speaker.String()).
				Int("segments", len(log.Segments)).
				Dur("latency", time.Since(start)).
				Msg("Channel transcribed")
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return logs, nil
}
