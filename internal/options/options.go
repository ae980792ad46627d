// Package options validates user supplied command options before any work
// begins.
package options

import (
	"encoding/json"
	"fmt"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/kuitang/chaincmds/internal/errs"
	"github.com/kuitang/chaincmds/internal/value"
)

// RepositoryURL is where the per-command documentation lives.
const RepositoryURL = "https://github.com/kuitang/chaincmds"

// ConfigurationError reports an option value outside its allowed set.
type ConfigurationError struct {
	Command  string
	Option   string
	Received string
	Expected string
	DocURL   string
}

func (e *ConfigurationError) Error() string {
	if e.Option == "" {
		return e.Expected
	}
	return fmt.Sprintf("Bad value for the option %q of the command %q.\n\n"+
		"Command received the value %q but %s"+
		"\n\nFor details refer to the documentation at %s",
		e.Option, e.Command, e.Received, e.Expected, e.DocURL)
}

// ErrCode implements errs.Coded.
func (e *ConfigurationError) ErrCode() errs.Code {
	return errs.Configuration
}

// Expectation describes the values an option accepts.
type Expectation interface {
	// Describe completes "Command received the value X but ...".
	Describe() string
	Allows(actual any) bool
}

type oneOf []any

// OneOf accepts exactly the listed values.
func OneOf(values ...any) Expectation {
	return oneOf(values)
}

func (o oneOf) Describe() string {
	b, err := value.CanonicalJSON([]any(o))
	if err != nil {
		return fmt.Sprintf("expected one of %v", []any(o))
	}
	return "expected one of " + string(b)
}

func (o oneOf) Allows(actual any) bool {
	at := reflect.TypeOf(actual)
	if at == nil || !at.Comparable() {
		return false
	}
	for _, v := range o {
		if reflect.TypeOf(v) == at && v == actual {
			return true
		}
	}
	return false
}

// Bools is the allowed set for boolean flags.
var Bools = OneOf(true, false)

type comparison struct {
	op      string
	operand float64
}

// Compare accepts numbers satisfying "actual op operand". Supported ops are
// >=, >, <=, < and ==.
func Compare(op string, operand float64) Expectation {
	return comparison{op: op, operand: operand}
}

// AtLeast accepts numbers >= n.
func AtLeast(n float64) Expectation {
	return Compare(">=", n)
}

func (c comparison) Describe() string {
	return fmt.Sprintf("expected a value %s %s", c.op, value.FormatNumber(c.operand))
}

func (c comparison) Allows(actual any) bool {
	n, ok := toNumber(actual)
	if !ok {
		return false
	}
	switch c.op {
	case ">=":
		return n >= c.operand
	case ">":
		return n > c.operand
	case "<=":
		return n <= c.operand
	case "<":
		return n < c.operand
	case "==":
		return n == c.operand
	}
	return false
}

func toNumber(v any) (float64, bool) {
	switch n := v.(type) {
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(n), 64)
		return f, err == nil
	case time.Duration:
		return float64(n.Milliseconds()), true
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return float64(rv.Int()), true
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return float64(rv.Uint()), true
	case reflect.Float32, reflect.Float64:
		return rv.Float(), true
	}
	return 0, false
}

// Validator checks the options of one command.
type Validator struct {
	command string
	docURL  string
}

// NewValidator returns a validator for the named command.
func NewValidator(command string) *Validator {
	return &Validator{
		command: command,
		docURL:  fmt.Sprintf("%s/blob/master/docs/%s.md", RepositoryURL, command),
	}
}

// Command returns the command name the validator reports on.
func (v *Validator) Command() string {
	return v.command
}

// DocURL returns the documentation link included in every error.
func (v *Validator) DocURL() string {
	return v.docURL
}

// Check validates one option. An unset value (nil or a nil pointer) always
// passes: absence means the caller accepts the default.
func (v *Validator) Check(option string, actual any, expected Expectation) error {
	actual, set := deref(actual)
	if !set {
		return nil
	}
	if expected == nil {
		msg := fmt.Sprintf("Not sure how to validate the option %q of the command %q.\n\n"+
			"If you see this message in the wild, please create an issue so this error can be resolved.\n%s",
			option, v.command, RepositoryURL)
		return &ConfigurationError{Command: v.command, Expected: msg}
	}
	if expected.Allows(actual) {
		return nil
	}
	return &ConfigurationError{
		Command:  v.command,
		Option:   option,
		Received: received(actual),
		Expected: expected.Describe(),
		DocURL:   v.docURL,
	}
}

func deref(actual any) (any, bool) {
	if actual == nil || value.IsUndefined(actual) {
		return nil, false
	}
	rv := reflect.ValueOf(actual)
	if rv.Kind() == reflect.Pointer {
		if rv.IsNil() {
			return nil, false
		}
		return rv.Elem().Interface(), true
	}
	return actual, true
}

func received(actual any) string {
	if d, ok := actual.(time.Duration); ok {
		return strconv.FormatInt(d.Milliseconds(), 10)
	}
	if value.IsArrayLike(actual) || value.IsObject(actual) {
		if b, err := json.Marshal(actual); err == nil {
			return string(b)
		}
	}
	return value.Stringify(actual)
}

// Bool returns a pointer to b, for optional boolean fields.
func Bool(b bool) *bool {
	return &b
}

// Int returns a pointer to n, for optional integer fields.
func Int(n int) *int {
	return &n
}

// Duration returns a pointer to d, for optional duration fields.
func Duration(d time.Duration) *time.Duration {
	return &d
}

// BoolOr dereferences p, falling back to def when unset.
func BoolOr(p *bool, def bool) bool {
	if p == nil {
		return def
	}
	return *p
}

// IntOr dereferences p, falling back to def when unset.
func IntOr(p *int, def int) int {
	if p == nil {
		return def
	}
	return *p
}
