// Package form holds the structured form produced by the Form Generator and
// the parser that extracts it from the generator's free text output.
package form

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
)

// ErrUnknownKey is returned when an operation names a field the form lacks.
var ErrUnknownKey = errors.New("unknown form field")

// Field is one answered form entry with the ASR confidence of the words the
// answer was taken from. Corrected marks an answer entered by a reviewer; it
// carries no scores.
type Field struct {
	Key              string    `json:"key"`
	Answer           string    `json:"answer"`
	ConfidenceScores []float64 `json:"confidence_scores"`
	Corrected        bool      `json:"corrected,omitempty"`
}

// Form is an ordered set of fields with unique keys. It is not modified after
// construction; edits return a new Form.
type Form struct {
	fields []Field
	index  map[string]int
}

// New builds a form from fields in the given order.
func New(fields ...Field) (*Form, error) {
	f := &Form{
		fields: make([]Field, 0, len(fields)),
		index:  make(map[string]int, len(fields)),
	}
	for _, fld := range fields {
		if _, dup := f.index[fld.Key]; dup {
			return nil, fmt.Errorf("duplicate form field %q", fld.Key)
		}
		f.index[fld.Key] = len(f.fields)
		f.fields = append(f.fields, fld)
	}
	return f, nil
}

// Len returns the number of fields.
func (f *Form) Len() int { return len(f.fields) }

// Fields returns the fields in form order.
func (f *Form) Fields() []Field {
	return append([]Field(nil), f.fields...)
}

// Keys returns the field keys in form order.
func (f *Form) Keys() []string {
	keys := make([]string, len(f.fields))
	for i, fld := range f.fields {
		keys[i] = fld.Key
	}
	return keys
}

// Get looks a field up by key.
func (f *Form) Get(key string) (Field, bool) {
	i, ok := f.index[key]
	if !ok {
		return Field{}, false
	}
	return f.fields[i], true
}

// Answers returns the plain key to answer mapping, without confidences.
func (f *Form) Answers() map[string]string {
	out := make(map[string]string, len(f.fields))
	for _, fld := range f.fields {
		out[fld.Key] = fld.Answer
	}
	return out
}

// WithAnswer returns a copy of the form where key's answer is replaced and
// marked Corrected. Its confidence scores are dropped since the answer no
// longer comes from the transcript.
func (f *Form) WithAnswer(key, answer string) (*Form, error) {
	i, ok := f.index[key]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownKey, key)
	}
	fields := f.Fields()
	fields[i] = Field{Key: key, Answer: answer, Corrected: true}
	return New(fields...)
}

// MarshalJSON encodes the form as an object keyed by field, in form order.
func (f *Form) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, fld := range f.fields {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(fld.Key)
		if err != nil {
			return nil, err
		}
		scores := fld.ConfidenceScores
		if scores == nil {
			scores = []float64{}
		}
		val, err := json.Marshal(struct {
			Answer           string    `json:"answer"`
			ConfidenceScores []float64 `json:"confidence_scores"`
			Corrected        bool      `json:"corrected,omitempty"`
		}{fld.Answer, scores, fld.Corrected})
		if err != nil {
			return nil, err
		}
		buf.Write(key)
		buf.WriteByte(':')
		buf.Write(val)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// UnmarshalJSON decodes the object layout produced by MarshalJSON, keeping
// key order. It accepts the same field spellings as [Extract].
func (f *Form) UnmarshalJSON(data []byte) error {
	parsed, err := decodeObject(data)
	if err != nil {
		return err
	}
	*f = *parsed
	return nil
}
