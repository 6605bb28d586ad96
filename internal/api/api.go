// Package api holds the request and response documents shared by the HTTP
// and gRPC surfaces, and the mapping of service errors onto their statuses.
package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"google.golang.org/grpc/codes"

	"call-review-service/internal/schema"
	"call-review-service/internal/service/asr"
	"call-review-service/internal/service/audio"
	"call-review-service/internal/service/form"
	"call-review-service/internal/service/issue"
	"call-review-service/internal/service/review"
	"call-review-service/internal/service/transcript"
	"call-review-service/internal/service/validate"
)

// ErrInvalidRequest marks a request document that cannot be decoded.
var ErrInvalidRequest = errors.New("invalid request")

// Channel carries one side of a call. Segments take precedence over a raw
// ASR response. Audio is a mono WAV file, base64 in JSON.
type Channel struct {
	Segments []transcript.Segment `json:"segments,omitempty"`
	ASR      json.RawMessage      `json:"asr,omitempty"`
	Audio    []byte               `json:"audio,omitempty"`
}

func (c Channel) hasLog() bool {
	return len(c.Segments) > 0 || len(c.ASR) > 0
}

func (c Channel) log(speaker transcript.Speaker) (transcript.ChannelLog, error) {
	if len(c.Segments) > 0 || len(c.ASR) == 0 {
		return transcript.ChannelLog{Speaker: speaker, Segments: c.Segments}, nil
	}
	return asr.ParseLog(speaker, c.ASR)
}

// ReviewRequest is the body of the merge, validate and review calls. A
// stereo recording (caller left, receiver right) replaces per-channel audio.
type ReviewRequest struct {
	CallID      string  `json:"call_id,omitempty"`
	Caller      Channel `json:"caller"`
	Receiver    Channel `json:"receiver"`
	StereoAudio []byte  `json:"stereo_audio,omitempty"`
	FormText    string  `json:"form_text,omitempty"`
}

// Input converts the request into a review input. Without any channel log
// the input carries none and the service transcribes the audio.
func (r ReviewRequest) Input() (review.Input, error) {
	in := review.Input{CallID: r.CallID, FormText: r.FormText}

	if r.Caller.hasLog() || r.Receiver.hasLog() {
		caller, err := r.Caller.log(transcript.Caller)
		if err != nil {
			return review.Input{}, fmt.Errorf("%w: %v", ErrInvalidRequest, err)
		}
		receiver, err := r.Receiver.log(transcript.Receiver)
		if err != nil {
			return review.Input{}, fmt.Errorf("%w: %v", ErrInvalidRequest, err)
		}
		in.Logs = []transcript.ChannelLog{caller, receiver}
	}

	pair, err := r.pair()
	if err != nil {
		return review.Input{}, fmt.Errorf("%w: %v", ErrInvalidRequest, err)
	}
	in.Audio = pair
	return in, nil
}

func (r ReviewRequest) pair() (audio.Pair, error) {
	if len(r.StereoAudio) > 0 {
		return audio.SplitStereo(r.StereoAudio)
	}
	var caller, receiver audio.Track
	var err error
	if len(r.Caller.Audio) > 0 {
		if caller, err = audio.DecodeTrack(r.Caller.Audio); err != nil {
			return audio.Pair{}, fmt.Errorf("caller audio: %w", err)
		}
	}
	if len(r.Receiver.Audio) > 0 {
		if receiver, err = audio.DecodeTrack(r.Receiver.Audio); err != nil {
			return audio.Pair{}, fmt.Errorf("receiver audio: %w", err)
		}
	}
	return audio.NewPair(caller, receiver)
}

// MergeResponse is the merged conversation with its rendered text.
type MergeResponse struct {
	Conversation transcript.Conversation `json:"conversation"`
	Text         string                  `json:"text"`
	WordCount    int                     `json:"word_count"`
}

// NewMergeResponse renders conv.
func NewMergeResponse(conv transcript.Conversation) MergeResponse {
	return MergeResponse{Conversation: conv, Text: conv.String(), WordCount: conv.WordCount()}
}

// ResolveRequest is a reviewer's corrected answer for the field of an issue.
type ResolveRequest struct {
	Answer string `json:"answer"`
}

// ResolveResponse carries the form version produced by a fix and the issues
// still open.
type ResolveResponse struct {
	Form *form.Form      `json:"form"`
	Open []validate.Issue `json:"open_issues"`
}

// DiscardResponse reports how many issues were dismissed with a run.
type DiscardResponse struct {
	Dismissed int `json:"dismissed"`
}

// ErrorResponse is the body returned with every HTTP error.
type ErrorResponse struct {
	Error string `json:"error"`
}

// HTTPStatus maps a service error onto an HTTP status code.
func HTTPStatus(err error) int {
	switch {
	case errors.Is(err, ErrInvalidRequest),
		errors.Is(err, audio.ErrNotWAV),
		errors.Is(err, audio.ErrUnsupportedFormat),
		errors.Is(err, audio.ErrFormatMismatch):
		return http.StatusBadRequest
	case errors.Is(err, transcript.ErrInputOrdering),
		errors.Is(err, form.ErrParse),
		errors.Is(err, form.ErrUnknownKey),
		errors.Is(err, schema.ErrUnknownField),
		errors.Is(err, schema.ErrMissingField),
		errors.Is(err, review.ErrNoTranscript),
		errors.Is(err, review.ErrNoGenerator):
		return http.StatusUnprocessableEntity
	case errors.Is(err, review.ErrLimitExceeded):
		return http.StatusRequestEntityTooLarge
	case errors.Is(err, review.ErrUnknownRun), errors.Is(err, issue.ErrUnknownIssue):
		return http.StatusNotFound
	case errors.Is(err, issue.ErrAlreadyResolved), errors.Is(err, issue.ErrDismissed):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

// GRPCCode maps a service error onto a gRPC status code.
func GRPCCode(err error) codes.Code {
	switch HTTPStatus(err) {
	case http.StatusBadRequest, http.StatusUnprocessableEntity:
		return codes.InvalidArgument
	case http.StatusRequestEntityTooLarge:
		return codes.ResourceExhausted
	case http.StatusNotFound:
		return codes.NotFound
	case http.StatusConflict:
		return codes.FailedPrecondition
	default:
		return codes.Internal
	}
}
