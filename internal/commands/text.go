package commands

import (
	"context"
	"strings"

	"github.com/kuitang/chaincmds/internal/chain"
	"github.com/kuitang/chaincmds/internal/dom"
	"github.com/kuitang/chaincmds/internal/obs"
	"github.com/kuitang/chaincmds/internal/options"
	"github.com/kuitang/chaincmds/internal/resolver"
	"github.com/kuitang/chaincmds/internal/whitespace"
)

var textOptions = options.NewValidator("text")

// TextOptions configure Text. Zero values select the defaults.
type TextOptions struct {
	Log *bool
	// Whitespace is simplify (default), keep or keep-newline.
	Whitespace string
	// Depth includes the text of descendants up to this many levels.
	Depth *int
}

type textCommand struct {
	opts TextOptions
}

// Text yields the text of each element in the subject: a string for a
// single element, a list otherwise.
func Text(opts TextOptions) chain.Step {
	return chain.Do(&textCommand{opts: opts})
}

func (c *textCommand) Name() string { return "text" }
func (c *textCommand) Parent() bool { return false }

func (c *textCommand) Run(ctx context.Context, r *chain.Runner, subject any) (any, error) {
	if err := checkAll(
		textOptions.Check("log", c.opts.Log, options.Bools),
		textOptions.Check("whitespace", optString(c.opts.Whitespace), whitespaceModes),
		textOptions.Check("depth", c.opts.Depth, options.AtLeast(0)),
	); err != nil {
		return nil, err
	}
	els, err := elementsOf("text", subject)
	if err != nil {
		return nil, err
	}
	mode := modeOr(c.opts.Whitespace, whitespace.Simplify)
	depth := options.IntOr(c.opts.Depth, 0)
	normalize := whitespace.Func(mode)

	log := obs.Command(ctx, "text", "", options.BoolOr(c.opts.Log, true))
	log.Set("Applied to", els).Set("Whitespace", string(mode)).Set("Depth", depth)

	res := resolver.New(r.Begin("text"), r, resolver.VerifyOptions{}, log)
	return res.Resolve(ctx, func(ctx context.Context) (any, error) {
		texts := make([]string, len(els))
		for i, el := range els {
			s, err := textOf(ctx, []dom.Element{el}, depth)
			if err != nil {
				return nil, err
			}
			texts[i] = normalize(s)
		}
		var out any = texts
		if len(texts) == 1 {
			out = texts[0]
		}
		log.Set("message", logMessage(out))
		return out, nil
	}, nil)
}

// textOf joins the trimmed direct text nodes of every element in set and,
// while depth remains, appends the text of all their children.
func textOf(ctx context.Context, set []dom.Element, depth int) (string, error) {
	var parts []string
	for _, el := range set {
		nodes, err := el.TextNodes(ctx)
		if err != nil {
			return "", err
		}
		for _, n := range nodes {
			parts = append(parts, strings.TrimSpace(n))
		}
	}
	text := strings.Join(parts, " ")

	if depth > 0 {
		var children []dom.Element
		for _, el := range set {
			kids, err := el.Children(ctx)
			if err != nil {
				return "", err
			}
			children = append(children, kids...)
		}
		if len(children) > 0 {
			sub, err := textOf(ctx, children, depth-1)
			if err != nil {
				return "", err
			}
			text += " " + sub
		}
	}
	return strings.TrimSpace(text), nil
}
