package form

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// ErrParse is matched by every error returned from [Extract].
var ErrParse = errors.New("form could not be parsed")

// ParseError describes why the generator output could not be turned into a form.
type ParseError struct {
	Reason string
	Err    error
}

func (e *ParseError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("parse form: %s: %v", e.Reason, e.Err)
	}
	return "parse form: " + e.Reason
}

func (e *ParseError) Unwrap() error { return e.Err }

// Is reports ErrParse as a match.
func (e *ParseError) Is(target error) bool { return target == ErrParse }

// Extract finds the JSON object embedded in the Form Generator's output and
// decodes it into a Form.
//
// The object spans from the first '{' to the last '}' of text. Lines without
// ':', '{' or '}' are dropped (prose and code fences the model wraps around
// the object) and backslashes that do not start a JSON escape are doubled.
// Each entry must be an object carrying the answer ("answer" or "réponse")
// and the confidence scores ("confidence_scores" or "confiance"). An optional
// "corrected" flag marks a reviewer's answer.
func Extract(text string) (*Form, error) {
	start := strings.IndexByte(text, '{')
	end := strings.LastIndexByte(text, '}')
	if start < 0 || end < start {
		return nil, &ParseError{Reason: "no JSON object found in the text"}
	}

	var kept []string
	for _, line := range strings.Split(text[start:end+1], "\n") {
		if strings.ContainsAny(line, ":{}") {
			kept = append(kept, line)
		}
	}
	cleaned := escapeStrayBackslashes(strings.Join(kept, "\n"))
	return decodeObject([]byte(cleaned))
}

// escapeStrayBackslashes doubles every backslash that does not begin a valid
// JSON escape sequence.
func escapeStrayBackslashes(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for i := 0; i < len(s); i++ {
		c := s[i]
		if c != '\\' {
			b.WriteByte(c)
			continue
		}
		if i+1 < len(s) && strings.IndexByte(`"\/bfnrt`, s[i+1]) >= 0 {
			b.WriteByte(c)
			b.WriteByte(s[i+1])
			i++
			continue
		}
		if i+5 < len(s) && s[i+1] == 'u' && isHex(s[i+2:i+6]) {
			b.WriteByte(c)
			continue
		}
		b.WriteString(`\\`)
	}
	return b.String()
}

func isHex(s string) bool {
	for i := 0; i < len(s); i++ {
		c := s[i]
		if !('0' <= c && c <= '9' || 'a' <= c && c <= 'f' || 'A' <= c && c <= 'F') {
			return false
		}
	}
	return true
}

type rawField struct {
	Answer    json.RawMessage `json:"answer"`
	Reponse   json.RawMessage `json:"réponse"`
	Scores    json.RawMessage `json:"confidence_scores"`
	Confiance json.RawMessage `json:"confiance"`
	Corrected bool            `json:"corrected"`
}

// decodeObject decodes a JSON object of fields keeping key order.
func decodeObject(data []byte) (*Form, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	tok, err := dec.Token()
	if err != nil {
		return nil, &ParseError{Reason: "invalid JSON", Err: err}
	}
	if d, ok := tok.(json.Delim); !ok || d != '{' {
		return nil, &ParseError{Reason: "top level value is not an object"}
	}

	var fields []Field
	seen := make(map[string]bool)
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return nil, &ParseError{Reason: "invalid JSON", Err: err}
		}
		key, _ := tok.(string)
		if seen[key] {
			return nil, &ParseError{Reason: fmt.Sprintf("duplicate field %q", key)}
		}
		seen[key] = true

		var raw json.RawMessage
		if err := dec.Decode(&raw); err != nil {
			return nil, &ParseError{Reason: fmt.Sprintf("field %q", key), Err: err}
		}
		fld, err := decodeField(key, raw)
		if err != nil {
			return nil, err
		}
		fields = append(fields, fld)
	}
	if _, err := dec.Token(); err != nil {
		return nil, &ParseError{Reason: "invalid JSON", Err: err}
	}

	f, err := New(fields...)
	if err != nil {
		return nil, &ParseError{Reason: "invalid form", Err: err}
	}
	return f, nil
}

func decodeField(key string, raw json.RawMessage) (Field, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || trimmed[0] != '{' {
		return Field{}, &ParseError{Reason: fmt.Sprintf("field %q is not an object", key)}
	}

	var rf rawField
	if err := json.Unmarshal(trimmed, &rf); err != nil {
		return Field{}, &ParseError{Reason: fmt.Sprintf("field %q", key), Err: err}
	}

	answerRaw := rf.Answer
	if answerRaw == nil {
		answerRaw = rf.Reponse
	}
	if answerRaw == nil {
		return Field{}, &ParseError{Reason: fmt.Sprintf("field %q has no answer", key)}
	}
	answer, err := decodeAnswer(answerRaw)
	if err != nil {
		return Field{}, &ParseError{Reason: fmt.Sprintf("field %q answer", key), Err: err}
	}

	scoresRaw := rf.Scores
	if scoresRaw == nil {
		scoresRaw = rf.Confiance
	}
	scores, err := decodeScores(scoresRaw)
	if err != nil {
		return Field{}, &ParseError{Reason: fmt.Sprintf("field %q confidence scores", key), Err: err}
	}

	return Field{Key: key, Answer: answer, ConfidenceScores: scores, Corrected: rf.Corrected}, nil
}

func decodeAnswer(raw json.RawMessage) (string, error) {
	var v any
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	if err := dec.Decode(&v); err != nil {
		return "", err
	}
	switch a := v.(type) {
	case nil:
		return "", nil
	case string:
		return a, nil
	case json.Number:
		return a.String(), nil
	case bool:
		return strconv.FormatBool(a), nil
	default:
		return "", fmt.Errorf("unexpected %T", v)
	}
}

func decodeScores(raw json.RawMessage) ([]float64, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || string(trimmed) == "null" {
		return nil, nil
	}
	if trimmed[0] != '[' {
		var one float64
		if err := json.Unmarshal(trimmed, &one); err != nil {
			return nil, err
		}
		return []float64{one}, nil
	}
	var scores []float64
	if err := json.Unmarshal(trimmed, &scores); err != nil {
		return nil, err
	}
	return scores, nil
}
