package audio

import (
	"errors"
	"fmt"
)

// ErrFormatMismatch is returned when the two channels of a call do not share
// a sample format.
var ErrFormatMismatch = errors.New("channel formats differ")

// Track is the mono audio of one call channel.
type Track struct {
	Format Format
	PCM    []byte
}

// Samples returns the number of samples in the track.
func (t Track) Samples() int {
	bps := t.Format.bytesPerSample()
	if bps == 0 {
		return 0
	}
	return len(t.PCM) / bps
}

// Duration returns the length of the track in seconds.
func (t Track) Duration() float64 {
	if t.Format.SampleRate == 0 {
		return 0
	}
	return float64(t.Samples()) / float64(t.Format.SampleRate)
}

// WAV encodes the track as a mono WAV file.
func (t Track) WAV() []byte {
	return EncodeWAV(t.Format, 1, t.PCM)
}

// DecodeTrack decodes a mono WAV file.
func DecodeTrack(data []byte) (Track, error) {
	w, err := DecodeWAV(data)
	if err != nil {
		return Track{}, err
	}
	if w.Channels != 1 {
		return Track{}, fmt.Errorf("%w: expected mono, got %d channels", ErrUnsupportedFormat, w.Channels)
	}
	return Track{Format: w.Format, PCM: w.PCM}, nil
}

// Pair holds the caller and receiver channels of one call, both time-aligned
// to the origin of their transcripts.
type Pair struct {
	Caller   Track
	Receiver Track
}

// NewPair checks that both channels share a format. An empty track (no PCM
// and zero format) takes the format of the other one.
func NewPair(caller, receiver Track) (Pair, error) {
	if caller.Format == (Format{}) && len(caller.PCM) == 0 {
		caller.Format = receiver.Format
	}
	if receiver.Format == (Format{}) && len(receiver.PCM) == 0 {
		receiver.Format = caller.Format
	}
	if caller.Format != receiver.Format {
		return Pair{}, fmt.Errorf("%w: caller %+v, receiver %+v", ErrFormatMismatch, caller.Format, receiver.Format)
	}
	return Pair{Caller: caller, Receiver: receiver}, nil
}

// DecodePair decodes two mono WAV files into a pair.
func DecodePair(callerWAV, receiverWAV []byte) (Pair, error) {
	caller, err := DecodeTrack(callerWAV)
	if err != nil {
		return Pair{}, fmt.Errorf("caller audio: %w", err)
	}
	receiver, err := DecodeTrack(receiverWAV)
	if err != nil {
		return Pair{}, fmt.Errorf("receiver audio: %w", err)
	}
	return NewPair(caller, receiver)
}

// SplitStereo splits a two-channel call recording into its channels:
// channel 0 is the caller, channel 1 the receiver.
func SplitStereo(data []byte) (Pair, error) {
	w, err := DecodeWAV(data)
	if err != nil {
		return Pair{}, err
	}
	if w.Channels != 2 {
		return Pair{}, fmt.Errorf("%w: expected stereo, got %d channels", ErrUnsupportedFormat, w.Channels)
	}

	bps := w.Format.bytesPerSample()
	n := len(w.PCM) / (2 * bps)
	left := make([]byte, 0, n*bps)
	right := make([]byte, 0, n*bps)
	for i := 0; i < n; i++ {
		off := i * 2 * bps
		left = append(left, w.PCM[off:off+bps]...)
		right = append(right, w.PCM[off+bps:off+2*bps]...)
	}
	return Pair{
		Caller:   Track{Format: w.Format, PCM: left},
		Receiver: Track{Format: w.Format, PCM: right},
	}, nil
}

// Format returns the shared sample format of the pair.
func (p Pair) Format() Format {
	if p.Caller.Format != (Format{}) {
		return p.Caller.Format
	}
	return p.Receiver.Format
}

// Duration returns the length of the longer channel in seconds.
func (p Pair) Duration() float64 {
	return max(p.Caller.Duration(), p.Receiver.Duration())
}

// Bytes returns the total PCM size of both channels.
func (p Pair) Bytes() int {
	return len(p.Caller.PCM) + len(p.Receiver.PCM)
}

// Clip cuts [start, start+length) seconds out of both channels and returns it
// as a stereo WAV file, caller on the left and receiver on the right. The
// window is clamped to the audio: a negative start begins at zero and the end
// stops at the longer channel, the shorter one being padded with silence.
// Nil is returned when nothing of the window lies inside the audio.
func (p Pair) Clip(start, length float64) []byte {
	f := p.Format()
	if f.validate() != nil || length <= 0 {
		return nil
	}

	total := max(p.Caller.Samples(), p.Receiver.Samples())
	from := int(start * float64(f.SampleRate))
	to := int((start + length) * float64(f.SampleRate))
	if from < 0 {
		from = 0
	}
	if to > total {
		to = total
	}
	if from >= to {
		return nil
	}

	bps := f.bytesPerSample()
	pcm := make([]byte, 0, (to-from)*2*bps)
	for i := from; i < to; i++ {
		pcm = appendSample(pcm, p.Caller.PCM, i, bps, f.silence())
		pcm = appendSample(pcm, p.Receiver.PCM, i, bps, f.silence())
	}
	return EncodeWAV(f, 2, pcm)
}

func appendSample(dst, src []byte, i, bps int, silence byte) []byte {
	off := i * bps
	if off+bps <= len(src) {
		return append(dst, src[off:off+bps]...)
	}
	for k := 0; k < bps; k++ {
		dst = append(dst, silence)
	}
	return dst
}
