// Package whitespace normalizes text read from the DOM.
package whitespace

import (
	"fmt"
	"regexp"
	"strings"
)

// Mode selects how whitespace is normalized.
type Mode string

const (
	// Simplify collapses every whitespace run into a single space and trims.
	Simplify Mode = "simplify"
	// KeepNewline collapses whitespace but keeps newlines as separators.
	KeepNewline Mode = "keep-newline"
	// Keep returns the input unchanged.
	Keep Mode = "keep"
)

// Modes lists the recognized modes in documentation order.
var Modes = []Mode{Simplify, Keep, KeepNewline}

// Whitespace as understood by a browser's \s class: ASCII whitespace, the
// Unicode space separators (including NBSP), line/paragraph separators and
// the byte order mark.
const (
	spaceClass        = `\t\n\v\f\r \p{Zs}\x{2028}\x{2029}\x{FEFF}`
	nonNewlineClass   = `\t\v\f\r \p{Zs}\x{2028}\x{2029}\x{FEFF}`
	zeroWidthPattern  = `[\x{200B}-\x{200D}\x{FEFF}]`
	newlineRunPattern = `[` + nonNewlineClass + `]*\n[` + nonNewlineClass + `]*`
)

var (
	zeroWidth     = regexp.MustCompile(zeroWidthPattern)
	spaceRun      = regexp.MustCompile(`[` + spaceClass + `]+`)
	nonNewlineRun = regexp.MustCompile(`[` + nonNewlineClass + `]+`)
	leadingSpace  = regexp.MustCompile(`^[` + nonNewlineClass + `]`)
	trailingSpace = regexp.MustCompile(`[` + nonNewlineClass + `]$`)
	aroundNewline = regexp.MustCompile(newlineRunPattern)
)

// ParseMode converts s into a Mode.
func ParseMode(s string) (Mode, error) {
	for _, m := range Modes {
		if string(m) == s {
			return m, nil
		}
	}
	return "", fmt.Errorf("unknown whitespace mode %q", s)
}

// Normalize applies mode to input. Unknown modes behave like Keep.
func Normalize(mode Mode, input string) string {
	switch mode {
	case Simplify:
		s := zeroWidth.ReplaceAllString(input, "")
		s = spaceRun.ReplaceAllString(s, " ")
		return strings.Trim(s, " ")
	case KeepNewline:
		s := zeroWidth.ReplaceAllString(input, "")
		s = nonNewlineRun.ReplaceAllString(s, " ")
		s = leadingSpace.ReplaceAllString(s, "")
		s = trailingSpace.ReplaceAllString(s, "")
		return aroundNewline.ReplaceAllString(s, "\n")
	default:
		return input
	}
}

// Func returns Normalize bound to mode, for mapping over many strings.
func Func(mode Mode) func(string) string {
	return func(input string) string {
		return Normalize(mode, input)
	}
}
