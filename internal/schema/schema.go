// Package schema describes the versioned set of form fields a call review
// expects, and rejects generated forms that do not fit it.
package schema

import (
	"errors"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"

	"call-review-service/internal/service/form"
	"call-review-service/internal/service/validate"
)

// Errors returned by [Schema.Check].
var (
	ErrUnknownField = errors.New("unknown form field")
	ErrMissingField = errors.New("missing required form field")
)

// Rule kinds.
const (
	RuleMinChars     = "min_chars"
	RuleContains     = "contains"
	RuleNumericRange = "numeric_range"
	RulePattern      = "pattern"
)

// Schema is the versioned list of form fields.
type Schema struct {
	Version string  `yaml:"version"`
	Strict  bool    `yaml:"strict"` // reject keys not listed in Fields
	Fields  []Field `yaml:"fields"`
}

// Field describes one form entry.
type Field struct {
	Key         string `yaml:"key"`
	Description string `yaml:"description"`
	Required    bool   `yaml:"required"`
	Rules       []Rule `yaml:"rules"`
}

// Rule is the YAML form of a validate.Rule.
type Rule struct {
	Kind    string   `yaml:"kind"`
	Min     *float64 `yaml:"min"`
	Max     *float64 `yaml:"max"`
	Substr  string   `yaml:"substr"`
	Pattern string   `yaml:"pattern"`
	Message string   `yaml:"message"`
}

// Default returns the schema matching validate.DefaultRegistry: the phone
// and email fields, none required, unknown keys allowed.
func Default() *Schema {
	ten := 10.0
	return &Schema{
		Version: "1",
		Fields: []Field{
			{Key: "Telephone_client_1", Description: "Client phone number", Rules: []Rule{{Kind: RuleMinChars, Min: &ten}}},
			{Key: "Cell_2", Description: "Second client cell phone", Rules: []Rule{{Kind: RuleMinChars, Min: &ten}}},
			{Key: "Client 2-Courriel (personnel)", Description: "Second client personal email", Rules: []Rule{{Kind: RuleContains, Substr: "@", Message: "must be an email address"}}},
		},
	}
}

// Load reads and validates the YAML schema at path.
func Load(path string) (*Schema, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("schema: open %q: %w", path, err)
	}
	defer f.Close()

	s, err := Decode(f)
	if err != nil {
		return nil, fmt.Errorf("schema: parse %q: %w", path, err)
	}
	return s, nil
}

// Decode reads a YAML schema from r and validates it. Unknown YAML keys are
// rejected.
func Decode(r io.Reader) (*Schema, error) {
	s := &Schema{}
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(s); err != nil {
		return nil, fmt.Errorf("schema: decode yaml: %w", err)
	}
	if err := s.Validate(); err != nil {
		return nil, err
	}
	return s, nil
}

// Validate checks the schema itself and returns every problem found.
func (s *Schema) Validate() error {
	var errs []error
	if s.Version == "" {
		errs = append(errs, errors.New("version is required"))
	}
	seen := make(map[string]int, len(s.Fields))
	for i, f := range s.Fields {
		prefix := fmt.Sprintf("fields[%d]", i)
		if f.Key == "" {
			errs = append(errs, fmt.Errorf("%s.key is required", prefix))
		} else {
			if prev, ok := seen[f.Key]; ok {
				errs = append(errs, fmt.Errorf("%s.key %q is a duplicate of fields[%d]", prefix, f.Key, prev))
			}
			seen[f.Key] = i
		}
		for j, r := range f.Rules {
			if _, err := r.build(); err != nil {
				errs = append(errs, fmt.Errorf("%s.rules[%d]: %w", prefix, j, err))
			}
		}
	}
	return errors.Join(errs...)
}

// Keys returns the field keys in schema order.
func (s *Schema) Keys() []string {
	keys := make([]string, len(s.Fields))
	for i, f := range s.Fields {
		keys[i] = f.Key
	}
	return keys
}

// Check reports every key of f the schema does not know (strict schemas
// only) and every required key f lacks.
func (s *Schema) Check(f *form.Form) error {
	known := make(map[string]bool, len(s.Fields))
	for _, fld := range s.Fields {
		known[fld.Key] = true
	}

	var errs []error
	if s.Strict {
		for _, key := range f.Keys() {
			if !known[key] {
				errs = append(errs, fmt.Errorf("%w: %q", ErrUnknownField, key))
			}
		}
	}
	for _, fld := range s.Fields {
		if !fld.Required {
			continue
		}
		if _, ok := f.Get(fld.Key); !ok {
			errs = append(errs, fmt.Errorf("%w: %q", ErrMissingField, fld.Key))
		}
	}
	return errors.Join(errs...)
}

// Registry builds the validation rules declared by the schema.
func (s *Schema) Registry() (validate.Registry, error) {
	reg := make(validate.Registry, len(s.Fields))
	for _, f := range s.Fields {
		for _, r := range f.Rules {
			rule, err := r.build()
			if err != nil {
				return nil, fmt.Errorf("schema: field %q: %w", f.Key, err)
			}
			reg[f.Key] = append(reg[f.Key], rule)
		}
	}
	return reg, nil
}

func (r Rule) build() (validate.Rule, error) {
	switch r.Kind {
	case RuleMinChars:
		if r.Min == nil || *r.Min < 0 {
			return nil, fmt.Errorf("%s requires a non-negative min", r.Kind)
		}
		return validate.MinChars{N: int(*r.Min), Message: r.Message}, nil
	case RuleContains:
		if r.Substr == "" {
			return nil, fmt.Errorf("%s requires substr", r.Kind)
		}
		return validate.Contains{Substr: r.Substr, Message: r.Message}, nil
	case RuleNumericRange:
		if r.Min == nil || r.Max == nil || *r.Min > *r.Max {
			return nil, fmt.Errorf("%s requires min <= max", r.Kind)
		}
		return validate.NumericRange{Min: *r.Min, Max: *r.Max, Message: r.Message}, nil
	case RulePattern:
		return validate.NewPattern(r.Pattern, r.Message)
	default:
		return nil, fmt.Errorf("unknown rule kind %q; valid kinds: %s, %s, %s, %s",
			r.Kind, RuleMinChars, RuleContains, RuleNumericRange, RulePattern)
	}
}
