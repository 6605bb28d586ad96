// Package audio holds the raw per-channel call audio and cuts evidence clips
// out of it. Audio is carried as little-endian PCM inside RIFF/WAVE containers.
package audio

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
)

// wavHeaderSize is the size of a canonical PCM header (RIFF + fmt + data).
const wavHeaderSize = 44

const pcmFormat = 1

// Errors returned while decoding WAV data.
var (
	ErrNotWAV            = errors.New("not a RIFF/WAVE file")
	ErrUnsupportedFormat = errors.New("unsupported WAV format")
)

// Format describes the sample layout of a PCM stream.
type Format struct {
	SampleRate    int
	BitsPerSample int
}

// bytesPerSample returns the size of one sample of one channel.
func (f Format) bytesPerSample() int {
	return f.BitsPerSample / 8
}

// silence returns the byte value of a zero sample.
func (f Format) silence() byte {
	// 8-bit PCM is unsigned.
	if f.BitsPerSample == 8 {
		return 0x80
	}
	return 0
}

func (f Format) validate() error {
	if f.SampleRate <= 0 {
		return fmt.Errorf("%w: sample rate %d", ErrUnsupportedFormat, f.SampleRate)
	}
	if f.BitsPerSample != 8 && f.BitsPerSample != 16 {
		return fmt.Errorf("%w: %d bits per sample", ErrUnsupportedFormat, f.BitsPerSample)
	}
	return nil
}

// WAV is a decoded RIFF/WAVE file with interleaved PCM samples.
type WAV struct {
	Format   Format
	Channels int
	PCM      []byte
}

// DecodeWAV parses a PCM RIFF/WAVE file. Chunks other than "fmt " and
// "data" are skipped, in any order.
func DecodeWAV(data []byte) (*WAV, error) {
	if len(data) < 12 || string(data[0:4]) != "RIFF" || string(data[8:12]) != "WAVE" {
		return nil, ErrNotWAV
	}

	var (
		out     WAV
		haveFmt bool
		pcm     []byte
	)
	pos := 12
	for pos+8 <= len(data) {
		id := string(data[pos : pos+4])
		size := int(binary.LittleEndian.Uint32(data[pos+4 : pos+8]))
		body := pos + 8
		end := body + size
		if end > len(data) {
			// Truncated trailing chunk; keep what is there.
			end = len(data)
		}

		switch id {
		case "fmt ":
			if end-body < 16 {
				return nil, fmt.Errorf("%w: short fmt chunk", ErrUnsupportedFormat)
			}
			chunk := data[body:end]
			if tag := binary.LittleEndian.Uint16(chunk[0:2]); tag != pcmFormat {
				return nil, fmt.Errorf("%w: audio format %d, only PCM is supported", ErrUnsupportedFormat, tag)
			}
			out.Channels = int(binary.LittleEndian.Uint16(chunk[2:4]))
			out.Format.SampleRate = int(binary.LittleEndian.Uint32(chunk[4:8]))
			out.Format.BitsPerSample = int(binary.LittleEndian.Uint16(chunk[14:16]))
			haveFmt = true
		case "data":
			pcm = data[body:end]
		}

		// Chunks are word aligned.
		pos = body + size + size%2
	}

	if !haveFmt {
		return nil, fmt.Errorf("%w: missing fmt chunk", ErrUnsupportedFormat)
	}
	if pcm == nil {
		return nil, fmt.Errorf("%w: missing data chunk", ErrUnsupportedFormat)
	}
	if err := out.Format.validate(); err != nil {
		return nil, err
	}
	if out.Channels < 1 {
		return nil, fmt.Errorf("%w: %d channels", ErrUnsupportedFormat, out.Channels)
	}

	frame := out.Channels * out.Format.bytesPerSample()
	out.PCM = pcm[:len(pcm)-len(pcm)%frame]
	return &out, nil
}

// EncodeWAV writes interleaved PCM samples as a canonical RIFF/WAVE file.
func EncodeWAV(f Format, channels int, pcm []byte) []byte {
	blockAlign := channels * f.bytesPerSample()

	var buf bytes.Buffer
	buf.Grow(wavHeaderSize + len(pcm))
	buf.WriteString("RIFF")
	_ = binary.Write(&buf, binary.LittleEndian, uint32(36+len(pcm)))
	buf.WriteString("WAVE")
	buf.WriteString("fmt ")
	_ = binary.Write(&buf, binary.LittleEndian, uint32(16))
	_ = binary.Write(&buf, binary.LittleEndian, uint16(pcmFormat))
	_ = binary.Write(&buf, binary.LittleEndian, uint16(channels))
	_ = binary.Write(&buf, binary.LittleEndian, uint32(f.SampleRate))
	_ = binary.Write(&buf, binary.LittleEndian, uint32(f.SampleRate*blockAlign))
	_ = binary.Write(&buf, binary.LittleEndian, uint16(blockAlign))
	_ = binary.Write(&buf, binary.LittleEndian, uint16(f.BitsPerSample))
	buf.WriteString("data")
	_ = binary.Write(&buf, binary.LittleEndian, uint32(len(pcm)))
	buf.Write(pcm)
	return buf.Bytes()
}
