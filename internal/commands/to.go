package commands

import (
	"context"

	"github.com/kuitang/chaincmds/internal/cast"
	"github.com/kuitang/chaincmds/internal/chain"
	"github.com/kuitang/chaincmds/internal/obs"
	"github.com/kuitang/chaincmds/internal/options"
	"github.com/kuitang/chaincmds/internal/resolver"
)

var (
	toOptions      = options.NewValidator("to")
	toArrayOptions = options.NewValidator("toArray")
)

// ToOptions configure To.
type ToOptions struct {
	Log *bool
}

type toCommand struct {
	target string
	opts   ToOptions
}

// To casts the subject to "string", "number" or "array".
func To(target string) chain.Step {
	return ToWithOptions(target, ToOptions{})
}

// ToWithOptions is To with explicit options.
func ToWithOptions(target string, opts ToOptions) chain.Step {
	return chain.Do(&toCommand{target: target, opts: opts})
}

func (c *toCommand) Name() string { return "to" }
func (c *toCommand) Parent() bool { return false }

func (c *toCommand) Run(ctx context.Context, r *chain.Runner, subject any) (any, error) {
	if err := toOptions.Check("log", c.opts.Log, options.Bools); err != nil {
		return nil, err
	}
	if err := cast.Precheck(subject); err != nil {
		return nil, err
	}
	target, err := cast.ParseType(c.target)
	if err != nil {
		return nil, err
	}

	log := obs.Command(ctx, "to", c.target, options.BoolOr(c.opts.Log, true))
	log.Set("Applied to", subject)

	res := resolver.New(r.Begin("to"), r, resolver.VerifyOptions{}, log)
	return res.Resolve(ctx, func(context.Context) (any, error) {
		return cast.Apply(subject, target)
	}, nil)
}

// ToArrayOptions configure ToArray.
type ToArrayOptions struct {
	Log *bool
}

type toArrayCommand struct {
	opts ToArrayOptions
}

// ToArray wraps a scalar subject in a list. Lists pass through unchanged.
func ToArray() chain.Step {
	return ToArrayWithOptions(ToArrayOptions{})
}

// ToArrayWithOptions is ToArray with explicit options.
func ToArrayWithOptions(opts ToArrayOptions) chain.Step {
	return chain.Do(&toArrayCommand{opts: opts})
}

func (c *toArrayCommand) Name() string { return "toArray" }
func (c *toArrayCommand) Parent() bool { return false }

func (c *toArrayCommand) Run(ctx context.Context, r *chain.Runner, subject any) (any, error) {
	if err := toArrayOptions.Check("log", c.opts.Log, options.Bools); err != nil {
		return nil, err
	}
	log := obs.Command(ctx, "toArray", "", options.BoolOr(c.opts.Log, true))
	log.Set("Applied to", subject)

	res := resolver.New(r.Begin("toArray"), r, resolver.VerifyOptions{}, log)
	return res.Resolve(ctx, func(context.Context) (any, error) {
		return cast.ToArray(subject), nil
	}, nil)
}
