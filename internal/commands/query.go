package commands

import (
	"context"
	"time"

	"github.com/kuitang/chaincmds/internal/chain"
	"github.com/kuitang/chaincmds/internal/errs"
	"github.com/kuitang/chaincmds/internal/obs"
	"github.com/kuitang/chaincmds/internal/options"
	"github.com/kuitang/chaincmds/internal/resolver"
)

var getOptions = options.NewValidator("get")

// GetOptions configure Get.
type GetOptions struct {
	Log     *bool
	Timeout time.Duration
}

type getCommand struct {
	selector string
	opts     GetOptions
}

// Get queries the current document. It retries until the elements exist,
// or until the chained assertions pass.
func Get(selector string) chain.Step {
	return GetWithOptions(selector, GetOptions{})
}

// GetWithOptions is Get with explicit options.
func GetWithOptions(selector string, opts GetOptions) chain.Step {
	return chain.Do(&getCommand{selector: selector, opts: opts})
}

func (c *getCommand) Name() string { return "get" }
func (c *getCommand) Parent() bool { return true }

func (c *getCommand) Run(ctx context.Context, r *chain.Runner, _ any) (any, error) {
	if err := checkAll(
		getOptions.Check("log", c.opts.Log, options.Bools),
		getOptions.Check("timeout", c.opts.Timeout, options.AtLeast(0)),
	); err != nil {
		return nil, err
	}
	root := r.Root()
	if root == nil {
		return nil, errs.New(errs.InvalidArgument, "get() needs a document: visit a page first")
	}
	log := obs.Command(ctx, "get", c.selector, options.BoolOr(c.opts.Log, true))
	res := resolver.New(r.Begin("get"), r, resolver.VerifyOptions{
		Timeout:         c.opts.Timeout,
		EnsureExistence: true,
	}, log)
	return res.Resolve(ctx, func(ctx context.Context) (any, error) {
		els, err := root.Query(ctx, c.selector)
		if err != nil {
			return nil, err
		}
		log.Set("Elements", els.Len())
		return els, nil
	}, nil)
}

type wrapCommand struct {
	v any
}

// Wrap starts a chain with v as the subject.
func Wrap(v any) chain.Step {
	return chain.Do(&wrapCommand{v: v})
}

func (c *wrapCommand) Name() string { return "wrap" }
func (c *wrapCommand) Parent() bool { return true }

func (c *wrapCommand) Run(ctx context.Context, r *chain.Runner, _ any) (any, error) {
	log := obs.Command(ctx, "wrap", "", true)
	res := resolver.New(r.Begin("wrap"), r, resolver.VerifyOptions{}, log)
	return res.Resolve(ctx, func(context.Context) (any, error) {
		return c.v, nil
	}, nil)
}

type visitCommand struct {
	target string
}

// Visit opens target through the runner's visitor and makes it the
// document later queries run against. It yields the document.
func Visit(target string) chain.Step {
	return chain.Do(&visitCommand{target: target})
}

func (c *visitCommand) Name() string { return "visit" }
func (c *visitCommand) Parent() bool { return true }

func (c *visitCommand) Run(ctx context.Context, r *chain.Runner, _ any) (any, error) {
	visitor := r.Visitor()
	if visitor == nil {
		return nil, errs.New(errs.InvalidArgument, "visit() needs a configured visitor")
	}
	log := obs.Command(ctx, "visit", c.target, true)
	root, err := visitor.Visit(ctx, c.target)
	if err != nil {
		err = errs.Wrap(errs.InvalidArgument, "visit() failed to load "+c.target, err)
		log.Fail(err)
		return nil, err
	}
	r.SetRoot(root)
	log.End()
	return root, nil
}
