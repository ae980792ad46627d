package commands

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kuitang/chaincmds/internal/chain"
	"github.com/kuitang/chaincmds/internal/errs"
	"github.com/kuitang/chaincmds/internal/options"
	"github.com/kuitang/chaincmds/internal/value"
)

func TestAttribute_YieldsString(t *testing.T) {
	r, _ := newRunner(t)
	got, err := r.Run(context.Background(), Get("#attrs span"), Attribute("class"), chain.Should("equal", "whitespace"))
	require.NoError(t, err)
	assert.Equal(t, "whitespace", got)
}

func TestAttribute_EmptyAttributeExists(t *testing.T) {
	r, _ := newRunner(t)
	got, err := r.Run(context.Background(),
		Get("#attrs span"), Attribute("data-empty"),
		chain.Should("equal", ""), chain.Should("exist"), chain.Should("be.empty"),
	)
	require.NoError(t, err)
	assert.Equal(t, "", got)
}

func TestAttribute_MissingOnSingleElement(t *testing.T) {
	r, _ := newRunner(t)
	_, err := r.Run(context.Background(), Get("#attrs span"), Attribute("id"))
	require.Error(t, err)
	assert.Equal(t, errs.Assertion, errs.CodeOf(err))
	assert.Equal(t, "Expected element to have attribute 'id', but never found it.", err.Error())

	_, err = r.Run(context.Background(), Get("#attrs span"), Attribute("id"), chain.Should("exist"))
	require.Error(t, err)
	assert.Equal(t, "Expected element to have attribute 'id', but never found it.", err.Error())
}

func TestAttribute_NegatedOnSingleElement(t *testing.T) {
	r, _ := newRunner(t)
	_, err := r.Run(context.Background(), Get("#attrs span"), Attribute("class"), chain.Should("not.exist"))
	require.Error(t, err)
	assert.Equal(t, "Expected element to not have attribute 'class', but it was continuously found.", err.Error())

	got, err := r.Run(context.Background(), Get("#attrs span"), Attribute("id"), chain.Should("not.exist"))
	require.NoError(t, err)
	assert.Equal(t, value.Empty, got)
}

func TestAttribute_StrictOnMultipleElements(t *testing.T) {
	r, _ := newRunner(t)
	_, err := r.Run(context.Background(), Get("li"), Attribute("data-relation"))
	require.Error(t, err)
	assert.Equal(t, "Expected all 3 elements to have attribute 'data-relation', but never found it on 1 elements."+
		"\n\nThis behaviour can be disabled by calling '.attribute()' with the option 'strict: false'.", err.Error())

	_, err = r.Run(context.Background(), Get("li"), Attribute("data-relation"), chain.Should("not.exist"))
	require.Error(t, err)
	assert.Equal(t, "Expected all 3 elements to not have attribute 'data-relation', but it was continuously found on 2 elements."+
		"\n\nThis behaviour can be disabled by calling '.attribute()' with the option 'strict: false'.", err.Error())
}

func TestAttribute_NonStrictYieldsFound(t *testing.T) {
	r, _ := newRunner(t)
	got, err := r.Run(context.Background(),
		Get("li"), AttributeWithOptions("data-relation", AttributeOptions{Strict: options.Bool(false)}),
		chain.Should("have.length", 2), chain.Should("deep.equal", []any{"child", "child"}),
	)
	require.NoError(t, err)
	assert.Equal(t, []string{"child", "child"}, got)
}

func TestAttribute_Whitespace(t *testing.T) {
	r, _ := newRunner(t)
	got, err := r.Run(context.Background(), Get("#attrs span"), Attribute("data-ws"))
	require.NoError(t, err)
	assert.Equal(t, "  a\n  b ", got)

	got, err = r.Run(context.Background(), Get("#attrs span"), AttributeWithOptions("data-ws", AttributeOptions{Whitespace: "simplify"}))
	require.NoError(t, err)
	assert.Equal(t, "a b", got)
}

func TestAttribute_RetriesUntilAttributeAppears(t *testing.T) {
	r, doc := newRunner(t)
	later(30*time.Millisecond, func() { _ = doc.SetAttribute("#late", "aria-busy", "false") })
	got, err := r.Run(context.Background(), Get("#late"), Attribute("aria-busy"))
	require.NoError(t, err)
	assert.Equal(t, "false", got)
}

func TestAttribute_RejectsBadOptions(t *testing.T) {
	r, _ := newRunner(t)
	_, err := r.Run(context.Background(), Get("li"), AttributeWithOptions("id", AttributeOptions{Whitespace: "tabs"}))
	require.Error(t, err)
	assert.Equal(t, errs.Configuration, errs.CodeOf(err))
	assert.Contains(t, err.Error(), `the option "whitespace" of the command "attribute"`)
}
