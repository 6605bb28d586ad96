package validate

import (
	"fmt"
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/antzucaro/matchr"

	"call-review-service/internal/service/audio"
	"call-review-service/internal/service/transcript"
)

// Match tells how an evidence clip was located.
type Match int

const (
	// MatchNone means no evidence was found.
	MatchNone Match = iota
	// MatchExact is a substring hit in a segment.
	MatchExact
	// MatchFuzzy is the best similar run of words above the threshold.
	MatchFuzzy
)

func (m Match) String() string {
	switch m {
	case MatchExact:
		return "exact"
	case MatchFuzzy:
		return "fuzzy"
	default:
		return "none"
	}
}

// MarshalText implements encoding.TextMarshaler.
func (m Match) MarshalText() ([]byte, error) {
	return []byte(m.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (m *Match) UnmarshalText(b []byte) error {
	switch string(b) {
	case "exact":
		*m = MatchExact
	case "fuzzy":
		*m = MatchFuzzy
	case "none", "":
		*m = MatchNone
	default:
		return fmt.Errorf("unknown evidence match %q", b)
	}
	return nil
}

// Evidence locating defaults, in seconds except for the threshold.
const (
	DefaultClipLength     = 15.0
	DefaultFuzzyBackoff   = 5.0
	DefaultFuzzyThreshold = 0.5
)

// EvidenceFinder locates the audio that supports a form answer.
//
// The receiver's log is searched before the caller's. An exact, case
// insensitive, substring hit in a segment wins at once and the clip starts at
// that segment's first word. Otherwise the best fuzzy match over every
// segment is used when its similarity exceeds the threshold; that clip starts
// a few seconds before the matched words.
type EvidenceFinder struct {
	logs      []transcript.ChannelLog
	audio     audio.Pair
	length    float64
	backoff   float64
	threshold float64
}

// NewEvidenceFinder builds a finder with the default clip settings.
func NewEvidenceFinder(logs []transcript.ChannelLog, pair audio.Pair) *EvidenceFinder {
	ordered := append([]transcript.ChannelLog(nil), logs...)
	sort.SliceStable(ordered, func(i, j int) bool {
		return ordered[i].Speaker == transcript.Receiver && ordered[j].Speaker != transcript.Receiver
	})
	return &EvidenceFinder{
		logs:      ordered,
		audio:     pair,
		length:    DefaultClipLength,
		backoff:   DefaultFuzzyBackoff,
		threshold: DefaultFuzzyThreshold,
	}
}

// Find returns the evidence clip for value, or nil with MatchNone.
func (f *EvidenceFinder) Find(value string) ([]byte, Match) {
	start, m := f.Locate(value)
	if m == MatchNone {
		return nil, MatchNone
	}
	clip := f.audio.Clip(start, f.length)
	if len(clip) == 0 {
		return nil, MatchNone
	}
	return clip, m
}

// Locate returns where the clip for value starts, before clamping to the audio.
func (f *EvidenceFinder) Locate(value string) (float64, Match) {
	needle := strings.ToLower(strings.TrimSpace(value))
	if needle == "" {
		return 0, MatchNone
	}

	for _, log := range f.logs {
		for _, seg := range log.Segments {
			start, ok := seg.Start()
			if !ok {
				continue
			}
			if strings.Contains(strings.ToLower(seg.Content()), needle) {
				return start, MatchExact
			}
		}
	}

	var (
		best      float64
		bestStart float64
	)
	width := len(strings.Fields(needle))
	for _, log := range f.logs {
		for _, seg := range log.Segments {
			if len(seg.Words) == 0 {
				continue
			}
			if r := similarity(needle, strings.ToLower(seg.Content())); r > best {
				best, bestStart = r, seg.Words[0].Start
			}
			for i := 0; i+width <= len(seg.Words); i++ {
				window := seg.Words[i : i+width]
				if r := similarity(needle, strings.ToLower(joinTexts(window))); r > best {
					best, bestStart = r, window[0].Start
				}
			}
		}
	}
	if best > f.threshold {
		return bestStart - f.backoff, MatchFuzzy
	}
	return 0, MatchNone
}

// similarity is the Levenshtein distance normalised to [0,1], 1 meaning equal.
func similarity(a, b string) float64 {
	n := max(utf8.RuneCountInString(a), utf8.RuneCountInString(b))
	if n == 0 {
		return 1
	}
	return 1 - float64(matchr.Levenshtein(a, b))/float64(n)
}

func joinTexts(words []transcript.TimedWord) string {
	parts := make([]string, len(words))
	for i, w := range words {
		parts[i] = w.Text
	}
	return strings.Join(parts, " ")
}
