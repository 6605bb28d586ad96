// Package validate checks a generated form against the call it was extracted
// from and reports the answers a human should review.
package validate

import (
	"context"
	"fmt"
	"strings"
	"unicode"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"call-review-service/internal/observability/logging"
	"call-review-service/internal/service/audio"
	"call-review-service/internal/service/form"
	"call-review-service/internal/service/transcript"
)

// Kind classifies an issue.
type Kind string

const (
	// KindConfidence flags an answer built from poorly recognised words.
	KindConfidence Kind = "confidence"
	// KindRule flags an answer that breaks a field rule.
	KindRule       Kind = "rule"
	// KindFieldError reports a field whose checks could not complete.
	KindFieldError Kind = "field_error"
)

// Issue is one finding on a form field. Evidence holds a stereo WAV clip of
// the call around the answer, or nil when none could be located.
type Issue struct {
	ID            string `json:"id,omitempty"`
	Field         string `json:"field"`
	Kind          Kind   `json:"kind"`
	Message       string `json:"message"`
	Evidence      []byte `json:"evidence_audio,omitempty"`
	EvidenceMatch Match  `json:"evidence_match"`
}

// Confidence thresholds.
const (
	MeanConfidenceFloor = 0.5
	MinConfidenceFloor  = 0.1
)

// DefaultConcurrency is the number of fields checked in parallel.
const DefaultConcurrency = 4

// Option configures a Validator.
type Option func(*Validator)

// WithRegistry replaces the rule registry.
func WithRegistry(r Registry) Option {
	return func(v *Validator) { v.registry = r }
}

// WithConcurrency sets how many fields are checked at once. Values below 1
// are ignored.
func WithConcurrency(n int) Option {
	return func(v *Validator) {
		if n > 0 {
			v.concurrency = n
		}
	}
}

// WithClip overrides the evidence clip length and the lead-in used for fuzzy
// matches, in seconds.
func WithClip(length, fuzzyBackoff float64) Option {
	return func(v *Validator) {
		if length > 0 {
			v.clipLength = length
		}
		if fuzzyBackoff >= 0 {
			v.fuzzyBackoff = fuzzyBackoff
		}
	}
}

// WithFuzzyThreshold sets the similarity a fuzzy match must exceed.
func WithFuzzyThreshold(t float64) Option {
	return func(v *Validator) { v.fuzzyThreshold = t }
}

// Validator runs the confidence and rule checks over every field of a form.
// It holds no per-call state and may be shared.
type Validator struct {
	registry       Registry
	concurrency    int
	clipLength     float64
	fuzzyBackoff   float64
	fuzzyThreshold float64
	logger         zerolog.Logger
}

// New creates a Validator using DefaultRegistry unless overridden.
func New(opts ...Option) *Validator {
	v := &Validator{
		registry:       DefaultRegistry(),
		concurrency:    DefaultConcurrency,
		clipLength:     DefaultClipLength,
		fuzzyBackoff:   DefaultFuzzyBackoff,
		fuzzyThreshold: DefaultFuzzyThreshold,
		logger:         logging.WithComponent("validator"),
	}
	for _, opt := range opts {
		opt(v)
	}
	return v
}

// Finder returns the evidence finder the validator uses for the given call.
func (v *Validator) Finder(logs []transcript.ChannelLog, pair audio.Pair) *EvidenceFinder {
	f := NewEvidenceFinder(logs, pair)
	f.length = v.clipLength
	f.backoff = v.fuzzyBackoff
	f.threshold = v.fuzzyThreshold
	return f
}

// Validate checks every field of f. Issues are returned in field order, the
// confidence issue of a field before its rule issues. A failure inside one
// field's checks is reported as a field_error issue and does not stop the
// others. The only error returned is ctx's.
func (v *Validator) Validate(ctx context.Context, f *form.Form, logs []transcript.ChannelLog, pair audio.Pair) ([]Issue, error) {
	fields := f.Fields()
	finder := v.Finder(logs, pair)
	perField := make([][]Issue, len(fields))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(v.concurrency)
	for i, fld := range fields {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			perField[i] = v.checkField(fld, finder)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	var issues []Issue
	for _, fi := range perField {
		issues = append(issues, fi...)
	}
	return issues, nil
}

func (v *Validator) checkField(fld form.Field, finder *EvidenceFinder) (issues []Issue) {
	defer func() {
		if r := recover(); r != nil {
			v.logger.Error().
				Str("field", fld.Key).
				Interface("panic", r).
				Msg("Field check failed")
			issues = []Issue{{
				Field:   fld.Key,
				Kind:    KindFieldError,
				Message: fmt.Sprintf("Could not validate %s: %v", fld.Key, r),
			}}
		}
	}()

	var evidence []byte
	var match Match
	located := false
	attach := func(is *Issue) {
		if !located {
			evidence, match = finder.Find(fld.Answer)
			located = true
		}
		is.Evidence, is.EvidenceMatch = evidence, match
	}

	if msg, flagged := checkConfidence(fld); flagged {
		is := Issue{Field: fld.Key, Kind: KindConfidence, Message: msg}
		attach(&is)
		issues = append(issues, is)
	}

	for _, rule := range v.registry[fld.Key] {
		if err := rule.Validate(fld.Answer); err != nil {
			is := Issue{Field: fld.Key, Kind: KindRule, Message: fld.Key + " " + err.Error()}
			attach(&is)
			issues = append(issues, is)
		}
	}
	return issues
}

// checkConfidence flags low ASR confidence: a mean under 0.5 or any single
// score under 0.1. Purely numeric and reviewer-corrected answers are never
// flagged. Any other answer without scores is flagged as well.
func checkConfidence(fld form.Field) (string, bool) {
	if fld.Corrected || isNumeric(fld.Answer) {
		return "", false
	}
	scores := fld.ConfidenceScores
	if len(scores) == 0 {
		// Unanswered fields carry no scores.
		if strings.TrimSpace(fld.Answer) == "" {
			return "", false
		}
		return "No confidence scores for " + fld.Key, true
	}
	sum, low := 0.0, scores[0]
	for _, s := range scores {
		sum += s
		low = min(low, s)
	}
	if sum/float64(len(scores)) < MeanConfidenceFloor || low < MinConfidenceFloor {
		return fmt.Sprintf("Low confidence for %s:%s", fld.Key, fld.Answer), true
	}
	return "", false
}

// isNumeric reports whether s, spaces removed, is a non-empty run of digits.
func isNumeric(s string) bool {
	s = strings.ReplaceAll(s, " ", "")
	if s == "" {
		return false
	}
	for _, r := range s {
		if !unicode.IsDigit(r) {
			return false
		}
	}
	return true
}
