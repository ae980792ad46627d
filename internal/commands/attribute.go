package commands

import (
	"context"
	"errors"
	"fmt"

	"github.com/kuitang/chaincmds/internal/chain"
	"github.com/kuitang/chaincmds/internal/obs"
	"github.com/kuitang/chaincmds/internal/options"
	"github.com/kuitang/chaincmds/internal/resolver"
	"github.com/kuitang/chaincmds/internal/whitespace"
)

var attributeOptions = options.NewValidator("attribute")

const disableStrictHint = "This behaviour can be disabled by calling '.attribute()' with the option 'strict: false'."

// AttributeOptions configure Attribute. Zero values select the defaults.
type AttributeOptions struct {
	Log *bool
	// Strict fails when only some elements carry the attribute.
	Strict *bool
	// Whitespace is keep (default), simplify or keep-newline.
	Whitespace string
}

type attributeCommand struct {
	name string
	opts AttributeOptions
}

// Attribute yields the value of the named attribute on the subject's
// elements.
func Attribute(name string) chain.Step {
	return AttributeWithOptions(name, AttributeOptions{})
}

// AttributeWithOptions is Attribute with explicit options.
func AttributeWithOptions(name string, opts AttributeOptions) chain.Step {
	return chain.Do(&attributeCommand{name: name, opts: opts})
}

func (c *attributeCommand) Name() string { return "attribute" }
func (c *attributeCommand) Parent() bool { return false }

func (c *attributeCommand) Run(ctx context.Context, r *chain.Runner, subject any) (any, error) {
	if err := checkAll(
		attributeOptions.Check("log", c.opts.Log, options.Bools),
		attributeOptions.Check("whitespace", optString(c.opts.Whitespace), whitespaceModes),
		attributeOptions.Check("strict", c.opts.Strict, options.Bools),
	); err != nil {
		return nil, err
	}
	els, err := elementsOf("attribute", subject)
	if err != nil {
		return nil, err
	}
	normalize := whitespace.Func(modeOr(c.opts.Whitespace, whitespace.Keep))
	strict := options.BoolOr(c.opts.Strict, true)

	log := obs.Command(ctx, "attribute", c.name, options.BoolOr(c.opts.Log, true))
	log.Set("Applied to", els)

	inv := r.Begin("attribute")
	var found []string
	compute := func(ctx context.Context) (any, error) {
		found = nil
		for _, el := range els {
			v, ok, err := el.Attribute(ctx, c.name)
			if err != nil {
				return nil, err
			}
			if ok {
				found = append(found, normalize(v))
			}
		}
		result := found
		if strict {
			result = resolver.ApplyStrict(found, len(els), r.UpcomingAssertions(inv))
		}
		return unwrap(result), nil
	}
	onFail := func(err error) error {
		return rewriteExistence(err, c.name, len(els), len(found))
	}

	res := resolver.New(inv, r, resolver.VerifyOptions{EnsureExistence: true}, log)
	return res.Resolve(ctx, compute, onFail)
}

// rewriteExistence replaces the generic existence failure with one that
// names the attribute and counts the elements it was (not) found on.
func rewriteExistence(err error, attribute string, total, found int) error {
	var f *chain.AssertionFailure
	if !errors.As(err, &f) || f.Type != chain.ExistenceFailure {
		return err
	}
	switch {
	case total == 1 && f.Negated:
		f.DisplayMessage = fmt.Sprintf("Expected element to not have attribute '%s', but it was continuously found.", attribute)
	case total == 1:
		f.DisplayMessage = fmt.Sprintf("Expected element to have attribute '%s', but never found it.", attribute)
	case total > 1 && f.Negated:
		f.DisplayMessage = fmt.Sprintf("Expected all %d elements to not have attribute '%s', but it was continuously found on %d elements.",
			total, attribute, found) + "\n\n" + disableStrictHint
	case total > 1:
		f.DisplayMessage = fmt.Sprintf("Expected all %d elements to have attribute '%s', but never found it on %d elements.",
			total, attribute, total-found) + "\n\n" + disableStrictHint
	default:
		return err
	}
	f.Message = f.DisplayMessage
	return err
}
