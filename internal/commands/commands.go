// Package commands implements the chainable commands: reading text and
// attributes from elements, casting subjects, running callbacks, issuing
// HTTP requests and the queries that start a chain.
package commands

import (
	"encoding/json"
	"fmt"

	"github.com/kuitang/chaincmds/internal/dom"
	"github.com/kuitang/chaincmds/internal/errs"
	"github.com/kuitang/chaincmds/internal/options"
	"github.com/kuitang/chaincmds/internal/value"
	"github.com/kuitang/chaincmds/internal/whitespace"
)

var whitespaceModes = options.OneOf("simplify", "keep", "keep-newline")

// elementsOf accepts element subjects only.
func elementsOf(command string, subject any) (dom.Elements, error) {
	switch s := subject.(type) {
	case dom.Elements:
		return s, nil
	case dom.Element:
		return dom.Elements{s}, nil
	}
	return nil, errs.New(errs.InvalidArgument, fmt.Sprintf(
		"%s() failed because it requires a DOM element subject. The subject received was: %s",
		command, value.Stringify(subject)))
}

// optString maps the zero value to "unset" for option validation.
func optString(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func modeOr(s string, def whitespace.Mode) whitespace.Mode {
	if s == "" {
		return def
	}
	return whitespace.Mode(s)
}

// unwrap yields nothing, the single string, or all of them.
func unwrap(results []string) any {
	switch len(results) {
	case 0:
		return value.Empty
	case 1:
		return results[0]
	}
	return results
}

// logMessage renders a yielded value for the log message column.
func logMessage(v any) string {
	if list, ok := v.([]string); ok {
		b, err := json.Marshal(list)
		if err == nil {
			return string(b)
		}
	}
	return value.Stringify(v)
}

// checkAll runs validations in order and returns the first failure.
func checkAll(checks ...error) error {
	for _, err := range checks {
		if err != nil {
			return err
		}
	}
	return nil
}
