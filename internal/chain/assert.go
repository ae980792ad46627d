package chain

import (
	"fmt"
	"math"
	"reflect"
	"regexp"
	"strings"

	"github.com/tidwall/gjson"

	"github.com/kuitang/chaincmds/internal/cast"
	"github.com/kuitang/chaincmds/internal/errs"
	"github.com/kuitang/chaincmds/internal/resolver"
	"github.com/kuitang/chaincmds/internal/value"
)

// ExistenceFailure is the Type of failures raised by exist checks.
const ExistenceFailure = "existence"

// AssertionFailure is a failed assertion. Commands may rewrite
// DisplayMessage (and Message) before the failure reaches the caller.
type AssertionFailure struct {
	// Type is ExistenceFailure for exist checks and empty otherwise.
	Type           string
	Assertion      resolver.Assertion
	Negated        bool
	Message        string
	DisplayMessage string
}

func (e *AssertionFailure) Error() string {
	if e.DisplayMessage != "" {
		return e.DisplayMessage
	}
	return e.Message
}

// ErrCode implements errs.Coded.
func (e *AssertionFailure) ErrCode() errs.Code {
	return errs.Assertion
}

var languageChains = map[string]bool{
	"to": true, "be": true, "been": true, "is": true, "that": true,
	"which": true, "and": true, "has": true, "have": true, "with": true,
	"at": true, "of": true, "same": true, "but": true, "does": true,
	"still": true, "also": true,
}

type check struct {
	a       resolver.Assertion
	negated bool
	subject any
}

// pass builds the failure for an assertion whose positive form evaluated
// to ok. phrase completes "expected <subject> to ...".
func (c check) pass(ok bool, phrase string, args ...any) error {
	if ok != c.negated {
		return nil
	}
	verb := "to "
	if c.negated {
		verb = "to not "
	}
	msg := "expected " + show(c.subject) + " " + verb + fmt.Sprintf(phrase, args...)
	return &AssertionFailure{Assertion: c.a, Negated: c.negated, Message: msg}
}

// Evaluate checks subject against one assertion. Any chainer segment "not"
// negates it.
func Evaluate(subject any, a resolver.Assertion) error {
	c := check{a: a, subject: subject}
	var core []string
	for _, part := range strings.Split(a.Chainer, ".") {
		switch {
		case part == "not":
			c.negated = !c.negated
		case part == "deep", languageChains[part]:
		default:
			core = append(core, part)
		}
	}
	if len(core) != 1 {
		return unknownChainer(a.Chainer)
	}

	switch core[0] {
	case "exist":
		err := c.pass(value.Exists(subject), "exist")
		if f, ok := err.(*AssertionFailure); ok {
			f.Type = ExistenceFailure
		}
		return err
	case "empty":
		return c.pass(isEmpty(subject), "be empty")
	case "ok":
		return c.pass(truthy(subject), "be truthy")
	case "true":
		return c.pass(subject == true, "be true")
	case "false":
		return c.pass(subject == false, "be false")
	case "null":
		return c.pass(subject == nil, "be null")
	case "undefined":
		return c.pass(value.IsUndefined(subject), "be undefined")
	case "NaN":
		return c.pass(value.IsNaN(subject), "be NaN")
	}

	if len(a.Args) == 0 {
		return errs.New(errs.InvalidArgument, fmt.Sprintf("The assertion %q needs an argument.", a.Chainer))
	}
	arg := a.Args[0]

	switch core[0] {
	case "equal", "equals", "eq", "eql":
		return c.pass(value.Equal(subject, arg), "equal %s", show(arg))
	case "contain", "contains", "include", "includes":
		return c.pass(includes(subject, arg), "include %s", show(arg))
	case "length", "lengthOf":
		n, ok := number(arg)
		if !ok {
			return badArgument(a, arg)
		}
		got := value.Len(subject)
		return c.pass(float64(got) == n, "have a length of %s but got %d", value.FormatNumber(n), got)
	case "property":
		return c.property(a)
	case "match":
		re, err := regexp.Compile(value.Stringify(arg))
		if err != nil {
			return errs.Wrap(errs.InvalidArgument, fmt.Sprintf("bad pattern for %q", a.Chainer), err)
		}
		return c.pass(re.MatchString(value.Stringify(subject)), "match /%s/", re)
	case "a", "an":
		want := strings.ToLower(value.Stringify(arg))
		return c.pass(typeName(subject) == want, "be %s %s", article(want), want)
	case "above", "gt", "greaterThan":
		return c.compare(arg, "be above", func(x, y float64) bool { return x > y })
	case "below", "lt", "lessThan":
		return c.compare(arg, "be below", func(x, y float64) bool { return x < y })
	case "least", "gte":
		return c.compare(arg, "be at least", func(x, y float64) bool { return x >= y })
	case "most", "lte":
		return c.compare(arg, "be at most", func(x, y float64) bool { return x <= y })
	}
	return unknownChainer(a.Chainer)
}

func (c check) compare(arg any, phrase string, cmp func(x, y float64) bool) error {
	want, ok := number(arg)
	if !ok {
		return badArgument(c.a, arg)
	}
	got, ok := number(c.subject)
	if !ok {
		return c.pass(false, "%s %s", phrase, value.FormatNumber(want))
	}
	return c.pass(cmp(got, want), "%s %s", phrase, value.FormatNumber(want))
}

func (c check) property(a resolver.Assertion) error {
	path := value.Stringify(a.Args[0])
	doc, err := value.CanonicalJSON(c.subject)
	if err != nil {
		return c.pass(false, "have property '%s'", path)
	}
	res := gjson.GetBytes(doc, path)
	if len(a.Args) < 2 {
		return c.pass(res.Exists(), "have property '%s'", path)
	}
	want := a.Args[1]
	if !res.Exists() {
		return c.pass(false, "have property '%s' of %s", path, show(want))
	}
	got := res.Value()
	return c.pass(value.Equal(got, want), "have property '%s' of %s, but got %s", path, show(want), show(got))
}

func unknownChainer(chainer string) error {
	return errs.New(errs.InvalidArgument, fmt.Sprintf("The chainer %q was not found. Could not build assertion.", chainer))
}

func badArgument(a resolver.Assertion, arg any) error {
	return errs.New(errs.InvalidArgument, fmt.Sprintf("The assertion %q does not accept the argument %s.", a.Chainer, show(arg)))
}

func number(v any) (float64, bool) {
	if s, ok := v.(string); ok && strings.TrimSpace(s) == "" {
		return 0, false
	}
	if value.IsArrayLike(v) || value.IsObject(v) || v == nil || value.IsUndefined(v) {
		return 0, false
	}
	n, err := cast.ToNumber(v)
	if err != nil {
		return 0, false
	}
	f, ok := n.(float64)
	return f, ok
}

func isEmpty(v any) bool {
	if v == nil || value.IsUndefined(v) {
		return false
	}
	if s, ok := v.(value.Sized); ok {
		return s.Len() == 0
	}
	switch reflect.TypeOf(v).Kind() {
	case reflect.String, reflect.Slice, reflect.Array, reflect.Map:
		return value.Len(v) == 0
	}
	return false
}

func truthy(v any) bool {
	switch t := v.(type) {
	case nil:
		return false
	case bool:
		return t
	case string:
		return t != ""
	case float64:
		return t != 0 && !math.IsNaN(t)
	case int:
		return t != 0
	}
	return !value.IsUndefined(v)
}

func includes(subject, needle any) bool {
	if s, ok := subject.(string); ok {
		return strings.Contains(s, value.Stringify(needle))
	}
	if value.IsArrayLike(subject) {
		for _, item := range value.Items(subject) {
			if value.Equal(item, needle) {
				return true
			}
		}
		return false
	}
	if m, ok := subject.(map[string]any); ok {
		if key, ok := needle.(string); ok {
			_, found := m[key]
			return found
		}
		want, ok := needle.(map[string]any)
		if !ok {
			return false
		}
		for k, v := range want {
			got, found := m[k]
			if !found || !value.Equal(got, v) {
				return false
			}
		}
		return true
	}
	return false
}

func typeName(v any) string {
	switch {
	case v == nil:
		return "null"
	case value.IsUndefined(v):
		return "undefined"
	case value.IsArrayLike(v):
		return "array"
	}
	switch reflect.TypeOf(v).Kind() {
	case reflect.String:
		return "string"
	case reflect.Bool:
		return "boolean"
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64,
		reflect.Float32, reflect.Float64:
		return "number"
	}
	return "object"
}

func article(word string) string {
	if word != "" && strings.ContainsRune("aeiou", rune(word[0])) {
		return "an"
	}
	return "a"
}

// show renders a value for assertion messages.
func show(v any) string {
	switch t := v.(type) {
	case string:
		return "'" + t + "'"
	case nil:
		return "null"
	}
	if value.IsUndefined(v) {
		return "undefined"
	}
	if value.IsEmpty(v) {
		return "[]"
	}
	if s, ok := v.(fmt.Stringer); ok {
		if _, sized := v.(value.Sized); sized {
			return "[ " + s.String() + " ]"
		}
	}
	if value.IsArrayLike(v) || value.IsObject(v) {
		if b, err := value.CanonicalJSON(v); err == nil {
			return string(b)
		}
	}
	return value.Stringify(v)
}
