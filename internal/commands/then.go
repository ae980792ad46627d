package commands

import (
	"context"

	"github.com/kuitang/chaincmds/internal/chain"
	"github.com/kuitang/chaincmds/internal/dom"
	"github.com/kuitang/chaincmds/internal/obs"
	"github.com/kuitang/chaincmds/internal/options"
	"github.com/kuitang/chaincmds/internal/resolver"
	"github.com/kuitang/chaincmds/internal/value"
)

var thenOptions = options.NewValidator("then")

// ThenFunc receives the current subject. Returning nil (or Undefined)
// yields the subject unchanged.
type ThenFunc func(ctx context.Context, subject any) (any, error)

// ThenOptions configure Then.
type ThenOptions struct {
	// Log defaults to false, or to true when Retry is set.
	Log *bool
	// Retry re-runs the callback until the upcoming assertions pass.
	Retry *bool
}

type thenCommand struct {
	fn   ThenFunc
	opts ThenOptions
}

// Then runs fn once with the subject.
func Then(fn ThenFunc) chain.Step {
	return ThenWithOptions(fn, ThenOptions{})
}

// ThenWithOptions is Then with explicit options.
func ThenWithOptions(fn ThenFunc, opts ThenOptions) chain.Step {
	return chain.Do(&thenCommand{fn: fn, opts: opts})
}

func (c *thenCommand) Name() string { return "then" }
func (c *thenCommand) Parent() bool { return false }

func (c *thenCommand) Run(ctx context.Context, r *chain.Runner, subject any) (any, error) {
	if err := checkAll(
		thenOptions.Check("log", c.opts.Log, options.Bools),
		thenOptions.Check("retry", c.opts.Retry, options.Bools),
	); err != nil {
		return nil, err
	}
	retry := options.BoolOr(c.opts.Retry, false)
	enabled := options.BoolOr(c.opts.Log, retry)

	log := obs.Command(ctx, "then", "", enabled)
	if els, ok := subject.(dom.Elements); ok {
		log.Set("Applied to", els)
	} else {
		log.Set("Applied to", value.Stringify(subject))
	}
	if retry {
		log.Set("message", "retry")
	}

	execute := func(ctx context.Context) (any, error) {
		if c.fn == nil {
			return subject, nil
		}
		out, err := c.fn(ctx, subject)
		if err != nil {
			return nil, err
		}
		if out == nil || value.IsUndefined(out) {
			out = subject
		}
		log.Set("Yielded", out)
		return out, nil
	}

	if !retry {
		out, err := execute(ctx)
		if err != nil {
			log.Fail(err)
			return nil, err
		}
		log.End()
		return out, nil
	}
	res := resolver.New(r.Begin("then"), r, resolver.VerifyOptions{}, log)
	return res.Resolve(ctx, execute, nil)
}
