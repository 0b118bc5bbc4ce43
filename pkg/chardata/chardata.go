// ABOUTME: Typed character data values for element text and attributes
// ABOUTME: Parsing and checking against a schema grammar, canonical formatting

// Package chardata holds the value union stored in character-data elements
// and attributes.
package chardata

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/nainya/arxmlstore/pkg/spec"
	"github.com/nainya/arxmlstore/pkg/version"
)

// ErrInvalidValue is wrapped by every validation failure
var ErrInvalidValue = errors.New("chardata: invalid value")

// Kind tags the active member of CharacterData
type Kind uint8

const (
	// KindNone is the zero value; it holds no data
	KindNone Kind = iota
	KindEnum
	KindString
	KindUnsignedInteger
	KindDouble
)

func (k Kind) String() string {
	switch k {
	case KindEnum:
		return "Enum"
	case KindString:
		return "String"
	case KindUnsignedInteger:
		return "UnsignedInteger"
	case KindDouble:
		return "Double"
	}
	return "None"
}

// CharacterData is a tagged union of enum token, string, unsigned integer and double
type CharacterData struct {
	kind Kind
	text string
	uval uint64
	fval float64
}

func NewEnum(item string) CharacterData {
	return CharacterData{kind: KindEnum, text: item}
}

func NewString(s string) CharacterData {
	return CharacterData{kind: KindString, text: s}
}

func NewUnsignedInteger(v uint64) CharacterData {
	return CharacterData{kind: KindUnsignedInteger, uval: v}
}

func NewDouble(v float64) CharacterData {
	return CharacterData{kind: KindDouble, fval: v}
}

// Kind returns the active member
func (c CharacterData) Kind() Kind {
	return c.kind
}

// IsZero reports whether c holds no value
func (c CharacterData) IsZero() bool {
	return c.kind == KindNone
}

// Enum returns the enumeration token
func (c CharacterData) Enum() (string, bool) {
	return c.text, c.kind == KindEnum
}

// StringValue returns the string payload
func (c CharacterData) StringValue() (string, bool) {
	return c.text, c.kind == KindString
}

// UnsignedInteger returns the integer payload
func (c CharacterData) UnsignedInteger() (uint64, bool) {
	return c.uval, c.kind == KindUnsignedInteger
}

// Double returns the floating point payload
func (c CharacterData) Double() (float64, bool) {
	return c.fval, c.kind == KindDouble
}

// Equal compares kind and payload; doubles compare bitwise so NaN equals NaN
func (c CharacterData) Equal(o CharacterData) bool {
	if c.kind != o.kind {
		return false
	}
	switch c.kind {
	case KindEnum, KindString:
		return c.text == o.text
	case KindUnsignedInteger:
		return c.uval == o.uval
	case KindDouble:
		return math.Float64bits(c.fval) == math.Float64bits(o.fval)
	}
	return true
}

// Format renders the canonical text of the value
func (c CharacterData) Format() string {
	switch c.kind {
	case KindEnum, KindString:
		return c.text
	case KindUnsignedInteger:
		return strconv.FormatUint(c.uval, 10)
	case KindDouble:
		switch {
		case math.IsNaN(c.fval):
			return "NaN"
		case math.IsInf(c.fval, 1):
			return "INF"
		case math.IsInf(c.fval, -1):
			return "-INF"
		}
		return strconv.FormatFloat(c.fval, 'f', -1, 64)
	}
	return ""
}

func (c CharacterData) String() string {
	return c.Format()
}

// ValidationError describes why a value does not fit a grammar
type ValidationError struct {
	Spec   *spec.CharacterDataSpec
	Value  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("value %q does not match %s: %s", e.Value, e.Spec, e.Reason)
}

func (e *ValidationError) Unwrap() error {
	return ErrInvalidValue
}

func invalid(s *spec.CharacterDataSpec, value, reason string) error {
	return &ValidationError{Spec: s, Value: value, Reason: reason}
}

// Parse converts text into a value of the grammar's kind
func Parse(s *spec.CharacterDataSpec, text string) (CharacterData, error) {
	if s == nil {
		return CharacterData{}, fmt.Errorf("%w: no character data allowed", ErrInvalidValue)
	}

	switch s.Kind {
	case spec.KindEnum:
		token := strings.TrimSpace(text)
		if _, ok := s.FindItem(token); !ok {
			return CharacterData{}, invalid(s, text, "not an enumeration item")
		}
		return NewEnum(token), nil

	case spec.KindPattern:
		value := strings.TrimSpace(text)
		if s.MaxLength > 0 && utf8.RuneCountInString(value) > s.MaxLength {
			return CharacterData{}, invalid(s, text, fmt.Sprintf("longer than %d characters", s.MaxLength))
		}
		if !s.MatchPattern(value) {
			return CharacterData{}, invalid(s, text, "pattern mismatch")
		}
		return NewString(value), nil

	case spec.KindString:
		if s.MaxLength > 0 && utf8.RuneCountInString(text) > s.MaxLength {
			return CharacterData{}, invalid(s, text, fmt.Sprintf("longer than %d characters", s.MaxLength))
		}
		return NewString(text), nil

	case spec.KindUnsignedInteger:
		v, err := strconv.ParseUint(strings.TrimSpace(text), 10, 64)
		if err != nil {
			return CharacterData{}, invalid(s, text, "not an unsigned integer")
		}
		return NewUnsignedInteger(v), nil

	case spec.KindDouble:
		v, err := parseDouble(strings.TrimSpace(text))
		if err != nil {
			return CharacterData{}, invalid(s, text, "not a number")
		}
		return NewDouble(v), nil
	}
	return CharacterData{}, invalid(s, text, "unsupported grammar")
}

func parseDouble(text string) (float64, error) {
	switch text {
	case "INF":
		return math.Inf(1), nil
	case "-INF":
		return math.Inf(-1), nil
	case "NaN":
		return math.NaN(), nil
	}
	// strconv also accepts Inf and underscores, which are not valid here
	if strings.ContainsAny(text, "_iInN") {
		return 0, strconv.ErrSyntax
	}
	return strconv.ParseFloat(text, 64)
}

// Check validates a typed value against a grammar. A string value is parsed
// when the grammar expects a number or enumeration token, and an unsigned
// integer may fill a double. Nothing else is converted.
func Check(s *spec.CharacterDataSpec, value CharacterData) (CharacterData, error) {
	if s == nil {
		return CharacterData{}, fmt.Errorf("%w: no character data allowed", ErrInvalidValue)
	}
	if value.IsZero() {
		return CharacterData{}, invalid(s, "", "empty value")
	}

	switch s.Kind {
	case spec.KindEnum:
		switch value.kind {
		case KindEnum, KindString:
			return Parse(s, value.text)
		}
	case spec.KindPattern, spec.KindString:
		if value.kind == KindString {
			return Parse(s, value.text)
		}
	case spec.KindUnsignedInteger:
		switch value.kind {
		case KindUnsignedInteger:
			return value, nil
		case KindString:
			return Parse(s, value.text)
		}
	case spec.KindDouble:
		switch value.kind {
		case KindDouble:
			return value, nil
		case KindUnsignedInteger:
			return NewDouble(float64(value.uval)), nil
		case KindString:
			return Parse(s, value.text)
		}
	}
	return CharacterData{}, invalid(s, value.Format(), value.kind.String()+" value does not fit")
}

// EnumVersions returns the versions in which an enumeration token is valid.
// Tokens of non-enum grammars are valid everywhere; unknown tokens nowhere.
func EnumVersions(s *spec.CharacterDataSpec, item string) version.Mask {
	if s == nil || s.Kind != spec.KindEnum {
		return version.AllVersions
	}
	if it, ok := s.FindItem(item); ok {
		return it.Versions
	}
	return 0
}

// Versions returns the versions in which value is valid under the grammar
func Versions(s *spec.CharacterDataSpec, value CharacterData) version.Mask {
	if token, ok := value.Enum(); ok {
		return EnumVersions(s, token)
	}
	return version.AllVersions
}
