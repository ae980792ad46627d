package script

import (
	"context"
	"strconv"
	"time"

	"github.com/tidwall/gjson"

	"github.com/kuitang/chaincmds/internal/chain"
	"github.com/kuitang/chaincmds/internal/commands"
	"github.com/kuitang/chaincmds/internal/options"
	"github.com/kuitang/chaincmds/internal/value"
)

// builder turns a script line into a chain step.
type builder struct {
	parent  bool
	options []string
	minArgs int
	maxArgs int
	build   func(args []string, o *optionSet) (chain.Step, error)
}

func (b builder) hasOption(name string) bool {
	for _, o := range b.options {
		if o == name {
			return true
		}
	}
	return false
}

var builders = map[string]builder{
	"visit": {parent: true, minArgs: 1, maxArgs: 1, build: func(a []string, _ *optionSet) (chain.Step, error) {
		return commands.Visit(a[0]), nil
	}},
	"get": {parent: true, options: []string{"log", "timeout"}, minArgs: 1, maxArgs: 1, build: func(a []string, o *optionSet) (chain.Step, error) {
		opts := commands.GetOptions{Log: o.bool("log"), Timeout: o.duration("timeout")}
		return commands.GetWithOptions(a[0], opts), o.err
	}},
	"wrap": {parent: true, minArgs: 1, maxArgs: 1, build: func(a []string, _ *optionSet) (chain.Step, error) {
		return commands.Wrap(decode(a[0])), nil
	}},
	"request": {parent: true, options: []string{"log", "failOnStatusCode", "timeout"}, minArgs: 1, maxArgs: 3, build: func(a []string, o *optionSet) (chain.Step, error) {
		args := make([]any, len(a))
		for i, s := range a {
			args[i] = decode(s)
		}
		opts, err := commands.ParseRequestArgs(args...)
		if err != nil {
			return chain.Step{}, err
		}
		opts.Log = o.bool("log")
		opts.FailOnStatusCode = o.bool("failOnStatusCode")
		opts.Timeout = o.duration("timeout")
		return commands.RequestWithOptions(opts), o.err
	}},
	"text": {options: []string{"log", "whitespace", "depth"}, build: func(_ []string, o *optionSet) (chain.Step, error) {
		opts := commands.TextOptions{
			Log:        o.bool("log"),
			Whitespace: o.string("whitespace"),
			Depth:      o.int("depth", options.AtLeast(0)),
		}
		return commands.Text(opts), o.err
	}},
	"attribute": {options: []string{"log", "strict", "whitespace"}, minArgs: 1, maxArgs: 1, build: func(a []string, o *optionSet) (chain.Step, error) {
		opts := commands.AttributeOptions{
			Log:        o.bool("log"),
			Strict:     o.bool("strict"),
			Whitespace: o.string("whitespace"),
		}
		return commands.AttributeWithOptions(a[0], opts), o.err
	}},
	"to": {options: []string{"log"}, minArgs: 1, maxArgs: 1, build: func(a []string, o *optionSet) (chain.Step, error) {
		return commands.ToWithOptions(a[0], commands.ToOptions{Log: o.bool("log")}), o.err
	}},
	"toArray": {options: []string{"log"}, build: func(_ []string, o *optionSet) (chain.Step, error) {
		return commands.ToArrayWithOptions(commands.ToArrayOptions{Log: o.bool("log")}), o.err
	}},
	"then": {options: []string{"log", "retry"}, minArgs: 1, maxArgs: 1, build: func(a []string, o *optionSet) (chain.Step, error) {
		opts := commands.ThenOptions{Log: o.bool("log"), Retry: o.bool("retry")}
		return commands.ThenWithOptions(selectPath(a[0]), opts), o.err
	}},
}

// selectPath yields the value at a gjson path of the subject's JSON form,
// or Empty when the path does not exist.
func selectPath(path string) commands.ThenFunc {
	return func(_ context.Context, subject any) (any, error) {
		doc, err := value.CanonicalJSON(subject)
		if err != nil {
			return nil, err
		}
		res := gjson.GetBytes(doc, path)
		if !res.Exists() {
			return value.Empty, nil
		}
		return res.Value(), nil
	}
}

// optionSet converts raw key=value option words into typed option fields.
// The first invalid value is kept in err as a ConfigurationError.
type optionSet struct {
	v   *options.Validator
	raw map[string]string
	err error
}

func (o *optionSet) fail(err error) {
	if o.err == nil && err != nil {
		o.err = err
	}
}

func (o *optionSet) bool(name string) *bool {
	s, ok := o.raw[name]
	if !ok {
		return nil
	}
	switch s {
	case "true":
		return options.Bool(true)
	case "false":
		return options.Bool(false)
	}
	o.fail(o.v.Check(name, decode(s), options.Bools))
	return nil
}

func (o *optionSet) string(name string) string {
	return o.raw[name]
}

func (o *optionSet) int(name string, exp options.Expectation) *int {
	s, ok := o.raw[name]
	if !ok {
		return nil
	}
	if n, err := strconv.Atoi(s); err == nil {
		return options.Int(n)
	}
	if err := o.v.Check(name, decode(s), exp); err != nil {
		o.fail(err)
		return nil
	}
	o.fail(o.v.Check(name, s, integer{}))
	return nil
}

// duration accepts Go durations ("250ms") or plain milliseconds.
func (o *optionSet) duration(name string) time.Duration {
	s, ok := o.raw[name]
	if !ok {
		return 0
	}
	if d, err := time.ParseDuration(s); err == nil {
		return d
	}
	if ms, err := strconv.Atoi(s); err == nil {
		return time.Duration(ms) * time.Millisecond
	}
	o.fail(o.v.Check(name, s, options.AtLeast(0)))
	return 0
}

type integer struct{}

func (integer) Describe() string { return "expected an integer" }
func (integer) Allows(any) bool { return false }
