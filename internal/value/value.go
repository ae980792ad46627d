// Package value models the subject that flows through a command chain:
// scalars, collections, structured objects and the two sentinels that
// stand in for "undefined" and "nothing was found".
package value

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"reflect"
	"strconv"
	"strings"
)

type undefined struct{}

func (undefined) String() string { return "undefined" }

type empty struct{}

func (empty) String() string { return "<empty>" }

// Len reports zero so Empty never satisfies an existence check.
func (empty) Len() int { return 0 }

var (
	// Undefined is a subject that was never set. It is distinct from nil,
	// which plays the role of null.
	Undefined any = undefined{}

	// Empty is an explicitly-empty result: the lookup ran and found nothing.
	// Existence assertions treat it as "does not exist".
	Empty any = empty{}
)

// Sized is implemented by element collections whose existence depends on
// their length rather than on being non-nil.
type Sized interface {
	Len() int
}

// IsUndefined reports whether v is the Undefined sentinel.
func IsUndefined(v any) bool {
	_, ok := v.(undefined)
	return ok
}

// IsEmpty reports whether v is the Empty sentinel.
func IsEmpty(v any) bool {
	_, ok := v.(empty)
	return ok
}

// IsNaN reports whether v is a floating point NaN.
func IsNaN(v any) bool {
	switch f := v.(type) {
	case float64:
		return math.IsNaN(f)
	case float32:
		return math.IsNaN(float64(f))
	}
	return false
}

// Exists reports whether v counts as present for an existence assertion.
func Exists(v any) bool {
	if v == nil || IsUndefined(v) {
		return false
	}
	if s, ok := v.(Sized); ok {
		return s.Len() > 0
	}
	return true
}

// IsArrayLike reports whether v is an ordered, indexable collection.
// Strings are scalars, not collections.
func IsArrayLike(v any) bool {
	if v == nil {
		return false
	}
	if _, ok := v.(empty); ok {
		return false
	}
	switch reflect.TypeOf(v).Kind() {
	case reflect.Slice, reflect.Array:
		return true
	}
	return false
}

// IsObject reports whether v is a structured, non-collection value.
func IsObject(v any) bool {
	if v == nil || IsUndefined(v) || IsEmpty(v) {
		return false
	}
	t := reflect.TypeOf(v)
	if t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	switch t.Kind() {
	case reflect.Map, reflect.Struct:
		return true
	}
	return false
}

// Len returns the length of a collection, string or map; zero otherwise.
func Len(v any) int {
	if v == nil {
		return 0
	}
	if s, ok := v.(Sized); ok {
		return s.Len()
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Slice, reflect.Array, reflect.Map, reflect.String:
		return rv.Len()
	}
	return 0
}

// Items returns the elements of an array-like value, or nil.
func Items(v any) []any {
	if !IsArrayLike(v) {
		return nil
	}
	if items, ok := v.([]any); ok {
		return items
	}
	rv := reflect.ValueOf(v)
	out := make([]any, rv.Len())
	for i := range out {
		out[i] = rv.Index(i).Interface()
	}
	return out
}

// Stringify formats v the way a script engine's String() would: numbers
// without trailing zeros, collections joined by commas, objects as
// "[object Object]".
func Stringify(v any) string {
	switch t := v.(type) {
	case nil:
		return "null"
	case undefined:
		return "undefined"
	case empty:
		return ""
	case string:
		return t
	case bool:
		return strconv.FormatBool(t)
	case float64:
		return FormatNumber(t)
	case float32:
		return FormatNumber(float64(t))
	case int:
		return strconv.Itoa(t)
	case int64:
		return strconv.FormatInt(t, 10)
	case int32:
		return strconv.FormatInt(int64(t), 10)
	case uint:
		return strconv.FormatUint(uint64(t), 10)
	case uint64:
		return strconv.FormatUint(t, 10)
	case json.Number:
		return t.String()
	case fmt.Stringer:
		return t.String()
	}
	if IsArrayLike(v) {
		items := Items(v)
		parts := make([]string, len(items))
		for i, item := range items {
			if item == nil || IsUndefined(item) {
				continue
			}
			parts[i] = Stringify(item)
		}
		return strings.Join(parts, ",")
	}
	if IsObject(v) {
		return "[object Object]"
	}
	return fmt.Sprint(v)
}

// FormatNumber renders f using the shortest round-tripping decimal form,
// switching to exponent notation outside [1e-6, 1e21).
func FormatNumber(f float64) string {
	switch {
	case math.IsNaN(f):
		return "NaN"
	case math.IsInf(f, 1):
		return "Infinity"
	case math.IsInf(f, -1):
		return "-Infinity"
	case f == 0:
		return "0"
	}
	abs := math.Abs(f)
	if abs >= 1e21 || abs < 1e-6 {
		s := strconv.FormatFloat(f, 'e', -1, 64)
		mantissa, exp, _ := strings.Cut(s, "e")
		sign := exp[:1]
		digits := strings.TrimLeft(exp[1:], "0")
		if digits == "" {
			digits = "0"
		}
		return mantissa + "e" + sign + digits
	}
	return strconv.FormatFloat(f, 'f', -1, 64)
}

// CanonicalJSON serializes v as compact JSON without HTML escaping.
// Undefined becomes null, Empty becomes [] and non-finite numbers become null.
func CanonicalJSON(v any) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(jsonReady(v)); err != nil {
		return nil, err
	}
	return bytes.TrimRight(buf.Bytes(), "\n"), nil
}

func jsonReady(v any) any {
	switch t := v.(type) {
	case nil, undefined:
		return nil
	case empty:
		return []any{}
	case float64:
		if math.IsNaN(t) || math.IsInf(t, 0) {
			return nil
		}
		return t
	case float32:
		return jsonReady(float64(t))
	case json.Marshaler:
		return t
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Slice, reflect.Array:
		if rv.Kind() == reflect.Slice && rv.IsNil() {
			return []any{}
		}
		out := make([]any, rv.Len())
		for i := range out {
			out[i] = jsonReady(rv.Index(i).Interface())
		}
		return out
	case reflect.Map:
		if rv.Type().Key().Kind() != reflect.String {
			return v
		}
		out := make(map[string]any, rv.Len())
		iter := rv.MapRange()
		for iter.Next() {
			out[iter.Key().String()] = jsonReady(iter.Value().Interface())
		}
		return out
	}
	return v
}

// Equal reports deep equality by comparing canonical JSON forms, so 7 and
// 7.0 compare equal and map key order is irrelevant.
func Equal(a, b any) bool {
	if IsUndefined(a) || IsUndefined(b) {
		return IsUndefined(a) && IsUndefined(b)
	}
	if IsEmpty(a) || IsEmpty(b) {
		return IsEmpty(a) && IsEmpty(b)
	}
	ja, errA := CanonicalJSON(a)
	jb, errB := CanonicalJSON(b)
	if errA != nil || errB != nil {
		return reflect.DeepEqual(a, b)
	}
	return bytes.Equal(ja, jb)
}
