package validate

import (
	"context"
	"encoding/binary"
	"errors"
	"math"
	"testing"

	"call-review-service/internal/service/audio"
	"call-review-service/internal/service/form"
	"call-review-service/internal/service/transcript"
)

func word(text string, start float64) transcript.TimedWord {
	return transcript.TimedWord{Text: text, Start: start, End: start + 0.4, Confidence: 0.9}
}

func segment(words ...transcript.TimedWord) transcript.Segment {
	seg := transcript.Segment{Words: words}
	seg.Text = seg.Content()
	return seg
}

// testLogs returns a receiver log and a caller log of a short call.
func testLogs() []transcript.ChannelLog {
	return []transcript.ChannelLog{
		{
			Speaker: transcript.Caller,
			Segments: []transcript.Segment{
				segment(word("je", 18), word("m'appelle", 18.5), word("Tremblay", 19.2)),
				segment(word("mon", 24), word("numéro", 24.4), word("est", 25), word("cinq", 25.3)),
			},
		},
		{
			Speaker: transcript.Receiver,
			Segments: []transcript.Segment{
				segment(word("allo", 10), word("oui", 10.5), word("bonjour", 11)),
				segment(word("vous", 22), word("êtes", 22.3), word("monsieur", 22.6), word("Tremblay", 23)),
			},
		},
	}
}

// testPair returns 40 s of 16-bit audio per channel at 100 Hz.
func testPair(t *testing.T) audio.Pair {
	t.Helper()
	f := audio.Format{SampleRate: 100, BitsPerSample: 16}
	track := func(base int) audio.Track {
		pcm := make([]byte, 0, 8000)
		for i := 0; i < 4000; i++ {
			pcm = binary.LittleEndian.AppendUint16(pcm, uint16(base+i))
		}
		return audio.Track{Format: f, PCM: pcm}
	}
	pair, err := audio.NewPair(track(0), track(10000))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	return pair
}

func TestEvidenceFinder_Locate(t *testing.T) {
	finder := NewEvidenceFinder(testLogs(), audio.Pair{})

	tests := []struct {
		name      string
		value     string
		wantStart float64
		wantMatch Match
	}{
		// Present on both channels: the receiver is searched first.
		{"exact receiver first", "tremblay", 22, MatchExact},
		{"exact case insensitive", "OUI Bonjour", 10, MatchExact},
		{"exact caller", "numéro est", 24, MatchExact},
		{"fuzzy starts five seconds early", "Tremblé", 18, MatchFuzzy},
		{"fuzzy over words", "numero es", 19.4, MatchFuzzy},
		{"no match", "xyz qwv", 0, MatchNone},
		{"empty value", "  ", 0, MatchNone},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			start, m := finder.Locate(tt.value)
			if m != tt.wantMatch {
				t.Fatalf("expected match %v, got %v", tt.wantMatch, m)
			}
			if math.Abs(start-tt.wantStart) > 1e-9 {
				t.Errorf("expected start %.2f, got %.2f", tt.wantStart, start)
			}
		})
	}
}

func TestEvidenceFinder_Find(t *testing.T) {
	finder := NewEvidenceFinder(testLogs(), testPair(t))

	clip, m := finder.Find("bonjour")
	if m != MatchExact {
		t.Fatalf("expected exact match, got %v", m)
	}
	w, err := audio.DecodeWAV(clip)
	if err != nil {
		t.Fatalf("clip does not decode: %v", err)
	}
	if w.Channels != 2 {
		t.Errorf("expected stereo clip, got %d channels", w.Channels)
	}
	if frames := len(w.PCM) / 4; frames != 1500 {
		t.Errorf("expected 15 s clip (1500 frames), got %d", frames)
	}
	if first := binary.LittleEndian.Uint16(w.PCM); first != 1000 {
		t.Errorf("expected clip to start at 10 s, got sample %d", first)
	}

	if clip, m := finder.Find("xyz qwv"); clip != nil || m != MatchNone {
		t.Errorf("expected no evidence, got %d bytes (%v)", len(clip), m)
	}
}

func TestEvidenceFinder_FindFuzzy(t *testing.T) {
	early := []transcript.ChannelLog{{
		Speaker:  transcript.Caller,
		Segments: []transcript.Segment{segment(word("merci", 2))},
	}}

	tests := []struct {
		name        string
		logs        []transcript.ChannelLog
		value       string
		firstSample uint16
		frames      int
	}{
		// Tremblay at 23 s on the receiver side, clip from 18 s.
		{"starts five seconds early", testLogs(), "Tremblé", 1800, 1500},
		// Match at 2 s, clip clamped to the start of the call.
		{"clamped to start", early, "mercy", 0, 1200},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			finder := NewEvidenceFinder(tt.logs, testPair(t))
			clip, m := finder.Find(tt.value)
			if m != MatchFuzzy {
				t.Fatalf("expected fuzzy match, got %v", m)
			}
			w, err := audio.DecodeWAV(clip)
			if err != nil {
				t.Fatalf("clip does not decode: %v", err)
			}
			if first := binary.LittleEndian.Uint16(w.PCM); first != tt.firstSample {
				t.Errorf("expected first sample %d, got %d", tt.firstSample, first)
			}
			if frames := len(w.PCM) / 4; frames != tt.frames {
				t.Errorf("expected %d frames, got %d", tt.frames, frames)
			}
		})
	}
}

func TestEvidenceFinder_NoAudio(t *testing.T) {
	finder := NewEvidenceFinder(testLogs(), audio.Pair{})
	if clip, m := finder.Find("bonjour"); clip != nil || m != MatchNone {
		t.Errorf("expected no evidence without audio, got %d bytes (%v)", len(clip), m)
	}
}

func TestCheckConfidence(t *testing.T) {
	tests := []struct {
		name    string
		field   form.Field
		flagged bool
		msg     string
	}{
		{"numeric answer trusted", form.Field{Key: "Compte", Answer: "12345", ConfidenceScores: []float64{0.01, 0.02}}, false, ""},
		{"numeric with spaces", form.Field{Key: "Code", Answer: "12 34", ConfidenceScores: []float64{0.01}}, false, ""},
		{"low mean", form.Field{Key: "Nom", Answer: "Roy", ConfidenceScores: []float64{0.3, 0.4}}, true, "Low confidence for Nom:Roy"},
		{"single bad token", form.Field{Key: "Rue", Answer: "Sherbrooke", ConfidenceScores: []float64{0.95, 0.95, 0.05}}, true, "Low confidence for Rue:Sherbrooke"},
		{"confident", form.Field{Key: "Nom", Answer: "Roy", ConfidenceScores: []float64{0.9, 0.8}}, false, ""},
		{"no scores", form.Field{Key: "Nom", Answer: "Roy"}, true, "No confidence scores for Nom"},
		{"unanswered", form.Field{Key: "Nom"}, false, ""},
		{"corrected without scores", form.Field{Key: "Nom", Answer: "Tremblay", Corrected: true}, false, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			msg, flagged := checkConfidence(tt.field)
			if flagged != tt.flagged {
				t.Fatalf("expected flagged=%v, got %v", tt.flagged, flagged)
			}
			if msg != tt.msg {
				t.Errorf("expected %q, got %q", tt.msg, msg)
			}
		})
	}
}

func TestRules(t *testing.T) {
	pattern, err := NewPattern(`[A-Z]\d[A-Z] ?\d[A-Z]\d`, "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	tests := []struct {
		name  string
		rule  Rule
		value string
		ok    bool
	}{
		{"phone too short", MinChars{N: 10}, "555 12", false},
		{"phone with spaces", MinChars{N: 10}, "514 555 0199", true},
		{"email", Contains{Substr: "@"}, "jean.roy@example.com", true},
		{"not an email", Contains{Substr: "@"}, "jean point roy", false},
		{"in range", NumericRange{Min: 0, Max: 120}, "42", true},
		{"decimal comma", NumericRange{Min: 0, Max: 10}, "7,5", true},
		{"out of range", NumericRange{Min: 0, Max: 120}, "130", false},
		{"not a number", NumericRange{Min: 0, Max: 120}, "quarante", false},
		{"postal code", pattern, "H2X 1Y4", true},
		{"partial pattern", pattern, "H2X 1Y4 Canada", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.rule.Validate(tt.value)
			if (err == nil) != tt.ok {
				t.Errorf("expected ok=%v, got %v", tt.ok, err)
			}
		})
	}
}

func TestValidate(t *testing.T) {
	f, err := form.New(
		form.Field{Key: "Compte", Answer: "12345", ConfidenceScores: []float64{0.01, 0.02}},
		form.Field{Key: "Telephone_client_1", Answer: "555 12", ConfidenceScores: []float64{0.95, 0.9}},
		form.Field{Key: "Nom", Answer: "Tremblay", ConfidenceScores: []float64{0.3, 0.4}},
		form.Field{Key: "Prenom", Answer: "Jean", ConfidenceScores: []float64{0.9}},
		form.Field{Key: "Client 2-Courriel (personnel)", Answer: "jean point roy", ConfidenceScores: []float64{0.2}},
	)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	issues, err := New().Validate(context.Background(), f, testLogs(), testPair(t))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	want := []struct {
		field   string
		kind    Kind
		message string
		match   Match
	}{
		{"Telephone_client_1", KindRule, "Telephone_client_1 must be at least 10 characters long", MatchNone},
		{"Nom", KindConfidence, "Low confidence for Nom:Tremblay", MatchExact},
		{"Client 2-Courriel (personnel)", KindConfidence, "Low confidence for Client 2-Courriel (personnel):jean point roy", MatchNone},
		{"Client 2-Courriel (personnel)", KindRule, "Client 2-Courriel (personnel) must be an email address", MatchNone},
	}
	if len(issues) != len(want) {
		t.Fatalf("expected %d issues, got %d: %+v", len(want), len(issues), issues)
	}
	for i, w := range want {
		got := issues[i]
		if got.Field != w.field || got.Kind != w.kind || got.Message != w.message {
			t.Errorf("issue %d: expected %s/%s %q, got %s/%s %q", i, w.field, w.kind, w.message, got.Field, got.Kind, got.Message)
		}
		if got.EvidenceMatch != w.match {
			t.Errorf("issue %d: expected evidence %v, got %v", i, w.match, got.EvidenceMatch)
		}
		if (got.Evidence != nil) != (w.match != MatchNone) {
			t.Errorf("issue %d: evidence presence does not match %v", i, w.match)
		}
	}
}

type panicRule struct{}

func (panicRule) Validate(string) error { panic("unexpected answer shape") }

type failRule struct{ err error }

func (r failRule) Validate(string) error { return r.err }

func TestValidate_FieldFailureIsIsolated(t *testing.T) {
	f, _ := form.New(
		form.Field{Key: "A", Answer: "x", ConfidenceScores: []float64{0.9}},
		form.Field{Key: "B", Answer: "y", ConfidenceScores: []float64{0.9}},
	)
	reg := Registry{
		"A": {panicRule{}},
		"B": {failRule{errors.New("is wrong")}},
	}

	issues, err := New(WithRegistry(reg), WithConcurrency(1)).Validate(context.Background(), f, nil, audio.Pair{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(issues) != 2 {
		t.Fatalf("expected 2 issues, got %d: %+v", len(issues), issues)
	}
	if issues[0].Field != "A" || issues[0].Kind != KindFieldError {
		t.Errorf("expected field_error for A, got %+v", issues[0])
	}
	if issues[1].Field != "B" || issues[1].Message != "B is wrong" {
		t.Errorf("expected rule issue for B, got %+v", issues[1])
	}
}

func TestValidate_KeepsFieldOrderWhenParallel(t *testing.T) {
	var fields []form.Field
	for _, k := range []string{"f0", "f1", "f2", "f3", "f4", "f5", "f6", "f7"} {
		fields = append(fields, form.Field{Key: k, Answer: "texte", ConfidenceScores: []float64{0.2}})
	}
	f, _ := form.New(fields...)

	issues, err := New(WithConcurrency(8)).Validate(context.Background(), f, nil, audio.Pair{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(issues) != len(fields) {
		t.Fatalf("expected %d issues, got %d", len(fields), len(issues))
	}
	for i, is := range issues {
		if is.Field != fields[i].Key {
			t.Errorf("issue %d: expected field %s, got %s", i, fields[i].Key, is.Field)
		}
	}
}

func TestValidate_Cancelled(t *testing.T) {
	f, _ := form.New(form.Field{Key: "Nom", Answer: "Roy"})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := New().Validate(ctx, f, nil, audio.Pair{}); !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
}

func TestValidate_CorrectedAnswerIsTrusted(t *testing.T) {
	f, _ := form.New(form.Field{Key: "Nom", Answer: "Trembly", ConfidenceScores: []float64{0.2, 0.3}})
	v := New()

	issues, err := v.Validate(context.Background(), f, nil, audio.Pair{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(issues) != 1 || issues[0].Kind != KindConfidence {
		t.Fatalf("expected one confidence issue, got %+v", issues)
	}

	fixed, err := f.WithAnswer("Nom", "Tremblay")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	data, err := fixed.MarshalJSON()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	again, err := form.Extract(string(data))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	issues, err = v.Validate(context.Background(), again, nil, audio.Pair{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(issues) != 0 {
		t.Errorf("expected corrected answer to pass, got %+v", issues)
	}
}
