package validate

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"unicode"
	"unicode/utf8"
)

// Rule checks one answer. A non-nil error is a violation; its message is
// reported after the field key.
type Rule interface {
	Validate(value string) error
}

// Registry maps a form field key to the rules applied to its answer.
type Registry map[string][]Rule

// DefaultRegistry returns the rules used when no schema is configured.
func DefaultRegistry() Registry {
	phone := MinChars{N: 10}
	return Registry{
		"Telephone_client_1":            {phone},
		"Cell_2":                        {phone},
		"Client 2-Courriel (personnel)": {Contains{Substr: "@", Message: "must be an email address"}},
	}
}

// MinChars requires at least N characters once whitespace is removed.
type MinChars struct {
	N       int
	Message string
}

func (r MinChars) Validate(value string) error {
	if utf8.RuneCountInString(stripSpace(value)) >= r.N {
		return nil
	}
	if r.Message != "" {
		return errors.New(r.Message)
	}
	return fmt.Errorf("must be at least %d characters long", r.N)
}

// Contains requires Substr to appear in the answer.
type Contains struct {
	Substr  string
	Message string
}

func (r Contains) Validate(value string) error {
	if strings.Contains(value, r.Substr) {
		return nil
	}
	if r.Message != "" {
		return errors.New(r.Message)
	}
	return fmt.Errorf("must contain %q", r.Substr)
}

// NumericRange requires the answer, spaces removed and with either '.' or ','
// as decimal separator, to parse as a number within [Min, Max].
type NumericRange struct {
	Min, Max float64
	Message  string
}

func (r NumericRange) Validate(value string) error {
	s := strings.ReplaceAll(stripSpace(value), ",", ".")
	n, err := strconv.ParseFloat(s, 64)
	if err == nil && n >= r.Min && n <= r.Max {
		return nil
	}
	if r.Message != "" {
		return errors.New(r.Message)
	}
	return fmt.Errorf("must be a number between %g and %g", r.Min, r.Max)
}

// Pattern requires the whole answer to match a regular expression.
type Pattern struct {
	Re      *regexp.Regexp
	Message string
}

// NewPattern compiles expr anchored at both ends.
func NewPattern(expr, message string) (Pattern, error) {
	re, err := regexp.Compile(`^(?:` + expr + `)$`)
	if err != nil {
		return Pattern{}, fmt.Errorf("compile pattern %q: %w", expr, err)
	}
	return Pattern{Re: re, Message: message}, nil
}

func (r Pattern) Validate(value string) error {
	if r.Re.MatchString(value) {
		return nil
	}
	if r.Message != "" {
		return errors.New(r.Message)
	}
	return fmt.Errorf("must match %s", r.Re)
}

func stripSpace(s string) string {
	return strings.Map(func(r rune) rune {
		if unicode.IsSpace(r) {
			return -1
		}
		return r
	}, s)
}
