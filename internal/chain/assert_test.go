package chain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"

	"github.com/kuitang/chaincmds/internal/errs"
	"github.com/kuitang/chaincmds/internal/resolver"
	"github.com/kuitang/chaincmds/internal/value"
)

func should(chainer string, args ...any) resolver.Assertion {
	return resolver.Assertion{Chainer: chainer, Args: args}
}

func TestEvaluate_Passes(t *testing.T) {
	tests := []struct {
		name    string
		subject any
		a       resolver.Assertion
	}{
		{"exist", "x", should("exist")},
		{"not exist empty", value.Empty, should("not.exist")},
		{"not exist undefined", value.Undefined, should("not.exist")},
		{"be empty string", "", should("be.empty")},
		{"be empty sentinel", value.Empty, should("be.empty")},
		{"not be empty", []any{1}, should("not.be.empty")},
		{"equal number", 7, should("equal", 7.0)},
		{"deep equal", []string{"a", "b"}, should("deep.equal", []any{"a", "b"})},
		{"eq", "a", should("eq", "a")},
		{"include string", "hello world", should("contain", "lo w")},
		{"include item", []float64{1, 2}, should("include", 2)},
		{"include subset", map[string]any{"a": 1.0, "b": 2.0}, should("include", map[string]any{"a": 1})},
		{"length", []string{"a", "b"}, should("have.length", 2)},
		{"length string", "abc", should("have.length", "3")},
		{"property", map[string]any{"user": map[string]any{"name": "ada"}}, should("have.property", "user.name")},
		{"property value", map[string]any{"n": 2}, should("have.property", "n", 2)},
		{"match", "abc123", should("match", `\d+`)},
		{"type string", "x", should("be.a", "string")},
		{"type number", 1.5, should("be.a", "number")},
		{"type array", []int{}, should("be.an", "array")},
		{"above", 5, should("be.above", 4)},
		{"at least", 5, should("be.at.least", 5)},
		{"at most", "4", should("be.at.most", 5)},
		{"ok", "x", should("be.ok")},
		{"true", true, should("be.true")},
		{"null", nil, should("be.null")},
		{"double negation", "x", should("not.not.exist")},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.NoError(t, Evaluate(tt.subject, tt.a))
		})
	}
}

func TestEvaluate_Failures(t *testing.T) {
	err := Evaluate("x", should("not.exist"))
	var f *AssertionFailure
	require.ErrorAs(t, err, &f)
	assert.Equal(t, ExistenceFailure, f.Type)
	assert.True(t, f.Negated)
	assert.Equal(t, "expected 'x' to not exist", f.Error())

	err = Evaluate([]string{"a"}, should("have.length", 2))
	require.ErrorAs(t, err, &f)
	assert.Empty(t, f.Type)
	assert.Equal(t, "expected [\"a\"] to have a length of 2 but got 1", f.Message)

	err = Evaluate(map[string]any{"n": 1}, should("have.property", "n", 2))
	require.ErrorAs(t, err, &f)
	assert.Equal(t, "expected {\"n\":1} to have property 'n' of 2, but got 1", f.Message)

	f.DisplayMessage = "rewritten"
	assert.Equal(t, "rewritten", f.Error())
	assert.Equal(t, errs.Assertion, errs.CodeOf(err))
}

func TestEvaluate_BadChainers(t *testing.T) {
	for _, a := range []resolver.Assertion{
		should("be.purple"),
		should("have.length.above", 2),
		should("equal"),
		should("have.length", "many"),
		should("match", "("),
	} {
		err := Evaluate("subject", a)
		require.Error(t, err, a.Chainer)
		assert.Equal(t, errs.InvalidArgument, errs.CodeOf(err), a.Chainer)
	}
}

func TestEvaluate_NegationInverts(t *testing.T) {
	chainers := []string{"exist", "be.empty", "be.ok", "equal", "contain", "have.length"}
	rapid.Check(t, func(t *rapid.T) {
		s := rapid.StringMatching(`[a-c]{0,4}`).Draw(t, "subject")
		arg := rapid.StringMatching(`[a-c]{0,2}`).Draw(t, "arg")
		chainer := rapid.SampledFrom(chainers).Draw(t, "chainer")
		var args []any
		switch chainer {
		case "equal", "contain":
			args = []any{arg}
		case "have.length":
			args = []any{len(arg)}
		}
		pos := Evaluate(s, resolver.Assertion{Chainer: chainer, Args: args})
		neg := Evaluate(s, resolver.Assertion{Chainer: "not." + chainer, Args: args})
		if (pos == nil) == (neg == nil) {
			t.Fatalf("%s on %q: positive=%v negated=%v", chainer, s, pos, neg)
		}
	})
}
