package errs

import (
	"errors"
	"fmt"
	"testing"

	"pgregory.net/rapid"
)

var allCodes = []Code{
	Configuration,
	Cast,
	Assertion,
	InvalidArgument,
	Timeout,
	Internal,
}

func testCodeOf_RoundtripForTypedErrors(t *rapid.T) {
	code := rapid.SampledFrom(allCodes).Draw(t, "code")
	message := rapid.StringMatching(`[a-zA-Z0-9 _:\-]{1,80}`).Draw(t, "message")

	err := New(code, message)
	if got := CodeOf(err); got != code {
		t.Fatalf("CodeOf(New) mismatch: got=%q want=%q", got, code)
	}
	if got := MessageOf(err); got != message {
		t.Fatalf("MessageOf(New) mismatch: got=%q want=%q", got, message)
	}
}

func TestCodeOf_RoundtripForTypedErrors(t *testing.T) {
	t.Parallel()
	rapid.Check(t, testCodeOf_RoundtripForTypedErrors)
}

func testCodeOfAndMessageOf_WrappedTypedError(t *rapid.T) {
	code := rapid.SampledFrom(allCodes).Draw(t, "code")
	message := rapid.StringMatching(`[a-zA-Z0-9 _:\-]{1,80}`).Draw(t, "message")
	cause := errors.New(rapid.StringMatching(`[a-zA-Z0-9 _:\-]{1,80}`).Draw(t, "cause"))

	err := Wrap(code, message, cause)
	wrapped := fmt.Errorf("outer: %w", err)

	if got := CodeOf(wrapped); got != code {
		t.Fatalf("CodeOf(wrapped) mismatch: got=%q want=%q", got, code)
	}
	if got := MessageOf(wrapped); got != message {
		t.Fatalf("MessageOf(wrapped) mismatch: got=%q want=%q", got, message)
	}
	if !errors.Is(wrapped, cause) {
		t.Fatalf("wrapped error lost its cause")
	}
}

func TestCodeOfAndMessageOf_WrappedTypedError(t *testing.T) {
	t.Parallel()
	rapid.Check(t, testCodeOfAndMessageOf_WrappedTypedError)
}

type customCoded struct{ code Code }

func (c customCoded) Error() string  { return "custom" }
func (c customCoded) ErrCode() Code { return c.code }

func TestCodeOf_HonoursCodedInterface(t *testing.T) {
	t.Parallel()
	err := fmt.Errorf("ctx: %w", customCoded{code: Cast})
	if got := CodeOf(err); got != Cast {
		t.Fatalf("CodeOf(custom) = %q, want %q", got, Cast)
	}
	if got := CodeOf(customCoded{}); got != Internal {
		t.Fatalf("empty custom code = %q, want %q", got, Internal)
	}
}

func testUntypedAndNilFallbacks(t *rapid.T) {
	raw := rapid.StringMatching(`[a-zA-Z0-9 _:\-./]{1,80}`).Draw(t, "raw")
	untyped := errors.New(raw)

	if got := CodeOf(untyped); got != Internal {
		t.Fatalf("CodeOf(untyped) mismatch: got=%q want=%q", got, Internal)
	}
	if got := MessageOf(untyped); got != raw {
		t.Fatalf("MessageOf(untyped) mismatch: got=%q want=%q", got, raw)
	}
	if got := CodeOf(nil); got != Internal {
		t.Fatalf("CodeOf(nil) mismatch: got=%q want=%q", got, Internal)
	}
	if got := MessageOf(nil); got != string(Internal) {
		t.Fatalf("MessageOf(nil) mismatch: got=%q want=%q", got, Internal)
	}
}

func TestUntypedAndNilFallbacks(t *testing.T) {
	t.Parallel()
	rapid.Check(t, testUntypedAndNilFallbacks)
}

func testExitCode_Mapping(t *rapid.T) {
	cases := map[Code]int{
		Assertion:       1,
		Cast:            1,
		Timeout:         1,
		Configuration:   2,
		InvalidArgument: 2,
		Internal:        3,
	}

	code := rapid.SampledFrom(append(allCodes, Code("unknown_code"))).Draw(t, "code")

	want := 3
	if mapped, ok := cases[code]; ok {
		want = mapped
	}
	if got := ExitCode(code); got != want {
		t.Fatalf("ExitCode mismatch: code=%q got=%d want=%d", code, got, want)
	}
}

func TestExitCode_Mapping(t *testing.T) {
	t.Parallel()
	rapid.Check(t, testExitCode_Mapping)
}
