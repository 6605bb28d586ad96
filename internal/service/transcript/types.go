// Package transcript provides the per-channel word model and the merger that
// rebuilds a two-party conversation from independently transcribed channels.
package transcript

import (
	"fmt"
	"strings"
)

// Speaker identifies one side of a two-party call.
type Speaker int

const (
	// Caller is the channel of the party that placed the call.
	Caller Speaker = iota
	// Receiver is the channel of the party that answered.
	Receiver
)

// String returns the wire form of the speaker.
func (s Speaker) String() string {
	switch s {
	case Caller:
		return "caller"
	case Receiver:
		return "receiver"
	default:
		return fmt.Sprintf("speaker(%d)", int(s))
	}
}

// Label returns the display form used when rendering a conversation.
func (s Speaker) Label() string {
	switch s {
	case Caller:
		return "Caller"
	case Receiver:
		return "Receiver"
	default:
		return s.String()
	}
}

// MarshalText implements encoding.TextMarshaler.
func (s Speaker) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (s *Speaker) UnmarshalText(b []byte) error {
	v, err := ParseSpeaker(string(b))
	if err != nil {
		return err
	}
	*s = v
	return nil
}

// ParseSpeaker parses the wire form produced by [Speaker.String].
func ParseSpeaker(v string) (Speaker, error) {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "caller":
		return Caller, nil
	case "receiver":
		return Receiver, nil
	default:
		return 0, fmt.Errorf("unknown speaker %q", v)
	}
}

// TimedWord is a single recognised word with its position in the channel
// audio (seconds from the channel origin) and the ASR confidence.
type TimedWord struct {
	Text       string  `json:"word"`
	Start      float64 `json:"start_time"`
	End        float64 `json:"end_time"`
	Confidence float64 `json:"confidence"`
}

// ChannelTranscript is the ordered word list of one channel.
type ChannelTranscript struct {
	Speaker Speaker     `json:"speaker"`
	Words   []TimedWord `json:"words"`
}

// Segment is one recognition result of a channel: the top alternative's
// transcript and its words.
type Segment struct {
	Text  string      `json:"transcript"`
	Words []TimedWord `json:"words"`
}

// Start returns the start time of the first word, or false for an empty segment.
func (s Segment) Start() (float64, bool) {
	if len(s.Words) == 0 {
		return 0, false
	}
	return s.Words[0].Start, true
}

// Content returns the segment transcript, falling back to its words when the
// ASR left the transcript empty.
func (s Segment) Content() string {
	if s.Text != "" {
		return s.Text
	}
	return joinWords(s.Words)
}

// ChannelLog is the raw ASR output for one channel, kept at segment
// granularity so evidence can be located per recognition result.
type ChannelLog struct {
	Speaker  Speaker   `json:"speaker"`
	Segments []Segment `json:"segments"`
}

// Transcript flattens the log into a single ordered word list.
func (l ChannelLog) Transcript() ChannelTranscript {
	n := 0
	for _, seg := range l.Segments {
		n += len(seg.Words)
	}
	words := make([]TimedWord, 0, n)
	for _, seg := range l.Segments {
		words = append(words, seg.Words...)
	}
	return ChannelTranscript{Speaker: l.Speaker, Words: words}
}

// DefaultSegmentPause is the silence that separates two segments when a
// channel transcript carries no native segmentation.
const DefaultSegmentPause = 1.0

// Log groups the transcript words into segments, starting a new segment
// whenever the pause between consecutive words exceeds maxPause seconds.
func (t ChannelTranscript) Log(maxPause float64) ChannelLog {
	log := ChannelLog{Speaker: t.Speaker}
	var cur []TimedWord
	flush := func() {
		if len(cur) == 0 {
			return
		}
		log.Segments = append(log.Segments, Segment{Text: joinWords(cur), Words: cur})
		cur = nil
	}
	for i, w := range t.Words {
		if i > 0 && w.Start-t.Words[i-1].End > maxPause {
			flush()
		}
		cur = append(cur, w)
	}
	flush()
	return log
}

func joinWords(words []TimedWord) string {
	parts := make([]string, len(words))
	for i, w := range words {
		parts[i] = w.Text
	}
	return strings.Join(parts, " ")
}

// Turn is one uninterrupted stretch of speech by one speaker.
type Turn struct {
	Speaker     Speaker   `json:"speaker"`
	Words       []string  `json:"words"`
	Confidences []float64 `json:"confidences"`
	Start       float64   `json:"start_time"`
	End         float64   `json:"end_time"`
}

// Text returns the words of the turn joined by single spaces.
func (t Turn) Text() string {
	return strings.Join(t.Words, " ")
}

// Conversation is the merged, speaker-attributed transcript of a call.
type Conversation struct {
	Turns []Turn `json:"turns"`
}

// WordCount returns the total number of words over all turns.
func (c Conversation) WordCount() int {
	n := 0
	for _, t := range c.Turns {
		n += len(t.Words)
	}
	return n
}

// String renders one "Speaker: text" line per turn.
func (c Conversation) String() string {
	var b strings.Builder
	for i, t := range c.Turns {
		if i > 0 {
			b.WriteByte('\n')
		}
		b.WriteString(t.Speaker.Label())
		b.WriteString(": ")
		b.WriteString(t.Text())
	}
	return b.String()
}

// Annotated renders the conversation like String, with every word followed
// by its confidence, e.g. "Receiver: allo(0.91) oui(0.88)".
func (c Conversation) Annotated() string {
	var b strings.Builder
	for i, t := range c.Turns {
		if i > 0 {
			b.WriteByte('\n')
		}
		b.WriteString(t.Speaker.Label())
		b.WriteString(":")
		for j, w := range t.Words {
			fmt.Fprintf(&b, " %s(%.2f)", w, t.Confidences[j])
		}
	}
	return b.String()
}
