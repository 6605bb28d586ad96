package asr

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"call-review-service/internal/service/transcript"
)

// rawResponse is the JSON layout of a recognition response as exported by
// the Google client libraries, in either snake or camel case.
type rawResponse struct {
	Results []rawResult `json:"results"`
}

type rawResult struct {
	Alternatives []rawAlternative `json:"alternatives"`
}

type rawAlternative struct {
	Transcript string    `json:"transcript"`
	Confidence float64   `json:"confidence"`
	Words      []rawWord `json:"words"`
}

type rawWord struct {
	Word        string  `json:"word"`
	StartTime   seconds `json:"start_time"`
	StartCamel  seconds `json:"startTime"`
	StartOffset seconds `json:"startOffset"`
	EndTime     seconds `json:"end_time"`
	EndCamel    seconds `json:"endTime"`
	EndOffset   seconds `json:"endOffset"`
	Confidence  float64 `json:"confidence"`
}

// seconds decodes a time offset given as a number, a numeric string, or a
// duration string such as "1.500s".
type seconds struct {
	v   float64
	set bool
}

func (s *seconds) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if string(b) == "null" {
		return nil
	}
	if len(b) > 0 && b[0] == '"' {
		var str string
		if err := json.Unmarshal(b, &str); err != nil {
			return err
		}
		str = strings.TrimSuffix(strings.TrimSpace(str), "s")
		v, err := strconv.ParseFloat(str, 64)
		if err != nil {
			return fmt.Errorf("invalid time offset %q", str)
		}
		s.v, s.set = v, true
		return nil
	}
	var v float64
	if err := json.Unmarshal(b, &v); err != nil {
		return err
	}
	s.v, s.set = v, true
	return nil
}

func first(vals ...seconds) float64 {
	for _, v := range vals {
		if v.set {
			return v.v
		}
	}
	return 0
}

// ParseLog decodes a raw recognition response for one channel. Only the top
// alternative of each result is kept; results without words are dropped.
func ParseLog(speaker transcript.Speaker, data []byte) (transcript.ChannelLog, error) {
	var resp rawResponse
	if err := json.Unmarshal(data, &resp); err != nil {
		return transcript.ChannelLog{}, fmt.Errorf("parse %s ASR log: %w", speaker, err)
	}

	log := transcript.ChannelLog{Speaker: speaker}
	for _, r := range resp.Results {
		if len(r.Alternatives) == 0 || len(r.Alternatives[0].Words) == 0 {
			continue
		}
		alt := r.Alternatives[0]
		seg := transcript.Segment{Text: strings.TrimSpace(alt.Transcript)}
		for _, w := range alt.Words {
			seg.Words = append(seg.Words, transcript.TimedWord{
				Text:       w.Word,
				Start:      first(w.StartTime, w.StartCamel, w.StartOffset),
				End:        first(w.EndTime, w.EndCamel, w.EndOffset),
				Confidence: w.Confidence,
			})
		}
		log.Segments = append(log.Segments, seg)
	}
	return log, nil
}
