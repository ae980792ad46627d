// Package cast converts chain subjects to strings, numbers and arrays.
package cast

import (
	"encoding/json"
	"errors"
	"math"
	"regexp"
	"strconv"
	"strings"
	"unicode"

	"github.com/kuitang/chaincmds/internal/value"
)

// Type is a cast target.
type Type string

const (
	String Type = "string"
	Number Type = "number"
	Array  Type = "array"
)

// Types lists the supported targets.
var Types = []Type{String, Number, Array}

// ParseType resolves a target name. Names are case sensitive.
func ParseType(raw string) (Type, error) {
	for _, t := range Types {
		if string(t) == raw {
			return t, nil
		}
	}
	return "", errUnknownType(raw)
}

// Precheck rejects subjects that cannot be cast to anything: undefined,
// null and NaN.
func Precheck(subject any) error {
	switch {
	case value.IsUndefined(subject):
		return errSubjectType("undefined", "")
	case subject == nil:
		return errSubjectType("null", "")
	case value.IsNaN(subject):
		return errSubjectType("NaN", "")
	}
	return nil
}

// To runs Precheck and then casts subject to t.
func To(subject any, t Type) (any, error) {
	if err := Precheck(subject); err != nil {
		return nil, err
	}
	return Apply(subject, t)
}

// Apply casts subject to t without the precheck.
func Apply(subject any, t Type) (any, error) {
	switch t {
	case String:
		return ToString(subject)
	case Number:
		return ToNumber(subject)
	case Array:
		return ToArray(subject), nil
	}
	return nil, errUnknownType(string(t))
}

// ToArray returns array-like subjects unchanged and wraps anything else in
// a single element slice.
func ToArray(subject any) any {
	if value.IsArrayLike(subject) {
		return subject
	}
	return []any{subject}
}

// ToString serializes collections and objects to compact JSON and formats
// scalars as text.
func ToString(subject any) (string, error) {
	if value.IsArrayLike(subject) || value.IsObject(subject) {
		b, err := value.CanonicalJSON(subject)
		if err != nil {
			return "", errValue(subject, String)
		}
		return string(b), nil
	}
	return value.Stringify(subject), nil
}

// ToNumber parses a scalar, or every element of a collection. Nested
// collections and structured objects are rejected; unparseable elements are
// reported together, one line per index.
func ToNumber(subject any) (any, error) {
	if value.IsArrayLike(subject) {
		items := value.Items(subject)
		casted := make([]float64, len(items))
		for i, item := range items {
			if value.IsArrayLike(item) {
				return nil, errDescribed("a nested array", Number, item)
			}
			casted[i] = numberOf(item)
		}
		var failed []ItemError
		for i, n := range casted {
			if math.IsNaN(n) {
				failed = append(failed, ItemError{Index: i, Value: items[i], Err: errValue(items[i], Number)})
			}
		}
		if len(failed) > 0 {
			return nil, errItems(Number, subject, failed)
		}
		return casted, nil
	}
	if value.IsObject(subject) {
		return nil, errSubjectType("object", Number)
	}
	n := numberOf(subject)
	if math.IsNaN(n) {
		return nil, errValue(subject, Number)
	}
	return n, nil
}

var decimalLiteral = regexp.MustCompile(`^[+-]?(\d+\.?\d*|\.\d+)([eE][+-]?\d+)?$`)

// numberOf converts a scalar with the same rules a browser applies to
// Number(v): blank strings are 0, hex/octal/binary prefixes are honoured
// and anything else unparseable is NaN.
func numberOf(v any) float64 {
	switch t := v.(type) {
	case nil:
		return 0
	case bool:
		if t {
			return 1
		}
		return 0
	case string:
		return parseNumber(t)
	case json.Number:
		return parseNumber(t.String())
	case float64:
		return t
	case float32:
		return float64(t)
	case int:
		return float64(t)
	case int8:
		return float64(t)
	case int16:
		return float64(t)
	case int32:
		return float64(t)
	case int64:
		return float64(t)
	case uint:
		return float64(t)
	case uint8:
		return float64(t)
	case uint16:
		return float64(t)
	case uint32:
		return float64(t)
	case uint64:
		return float64(t)
	}
	return math.NaN()
}

func parseNumber(raw string) float64 {
	s := strings.TrimFunc(raw, func(r rune) bool {
		return unicode.IsSpace(r) || r == '\uFEFF'
	})
	switch s {
	case "":
		return 0
	case "Infinity", "+Infinity":
		return math.Inf(1)
	case "-Infinity":
		return math.Inf(-1)
	}
	if len(s) > 2 && s[0] == '0' && !strings.Contains(s, "_") {
		base := 0
		switch s[1] {
		case 'x', 'X':
			base = 16
		case 'o', 'O':
			base = 8
		case 'b', 'B':
			base = 2
		}
		if base != 0 {
			n, err := strconv.ParseUint(s[2:], base, 64)
			if err != nil {
				return math.NaN()
			}
			return float64(n)
		}
	}
	if !decimalLiteral.MatchString(s) {
		return math.NaN()
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil && !errors.Is(err, strconv.ErrRange) {
		return math.NaN()
	}
	return f
}
