// Package report collects the outcome of chain script runs and renders it
// as JSON, Markdown or sanitized HTML.
package report

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/gomarkdown/markdown"
	"github.com/gomarkdown/markdown/html"
	"github.com/gomarkdown/markdown/parser"
	"github.com/microcosm-cc/bluemonday"

	"github.com/kuitang/chaincmds/internal/errs"
)

// Chain is the outcome of one chain in a script.
type Chain struct {
	Line   int    `json:"line"`
	Source string `json:"source"`
	// Passed is true when the outcome matched the expectation, including
	// chains expected to fail that did fail.
	Passed        bool          `json:"passed"`
	ExpectFailure bool          `json:"expectFailure,omitempty"`
	Error         string        `json:"error,omitempty"`
	Code          errs.Code     `json:"code,omitempty"`
	Duration      time.Duration `json:"duration"`
}

// File groups the chains of one script.
type File struct {
	Name   string  `json:"name"`
	Chains []Chain `json:"chains"`
	// Err is set when the script could not be run at all.
	Err string `json:"error,omitempty"`
}

// Passed reports whether the script ran and every chain passed.
func (f File) Passed() bool {
	if f.Err != "" {
		return false
	}
	for _, c := range f.Chains {
		if !c.Passed {
			return false
		}
	}
	return true
}

// Run is a whole invocation over one or more scripts.
type Run struct {
	ID       string    `json:"id"`
	Started  time.Time `json:"started"`
	Finished time.Time `json:"finished"`
	Files    []File    `json:"files"`
}

// Passed reports whether every file passed.
func (r *Run) Passed() bool {
	for _, f := range r.Files {
		if !f.Passed() {
			return false
		}
	}
	return true
}

// Counts returns the number of passed and failed chains. A file that could
// not run counts as one failure.
func (r *Run) Counts() (passed, failed int) {
	for _, f := range r.Files {
		if f.Err != "" {
			failed++
		}
		for _, c := range f.Chains {
			if c.Passed {
				passed++
			} else {
				failed++
			}
		}
	}
	return passed, failed
}

// Format is a rendering of a run.
type Format string

const (
	JSON     Format = "json"
	Markdown Format = "markdown"
	HTML     Format = "html"
)

// ParseFormat resolves a format name.
func ParseFormat(s string) (Format, error) {
	switch f := Format(strings.ToLower(strings.TrimSpace(s))); f {
	case JSON, Markdown, HTML:
		return f, nil
	case "md":
		return Markdown, nil
	}
	return "", errs.New(errs.InvalidArgument, fmt.Sprintf("unknown report format %q (want json, markdown or html)", s))
}

// Ext returns the file extension used for the format.
func (f Format) Ext() string {
	if f == Markdown {
		return "md"
	}
	return string(f)
}

// ContentType returns the MIME type of the format.
func (f Format) ContentType() string {
	switch f {
	case JSON:
		return "application/json"
	case Markdown:
		return "text/markdown; charset=utf-8"
	}
	return "text/html; charset=utf-8"
}

// Render renders r in format f.
func (r *Run) Render(f Format) ([]byte, error) {
	switch f {
	case JSON:
		return json.MarshalIndent(r, "", "  ")
	case Markdown:
		return r.Markdown(), nil
	case HTML:
		return r.HTML(), nil
	}
	return nil, errs.New(errs.InvalidArgument, fmt.Sprintf("unknown report format %q", f))
}

// Markdown renders a summary followed by one table per file.
func (r *Run) Markdown() []byte {
	var b bytes.Buffer
	passed, failed := r.Counts()
	status := "PASS"
	if !r.Passed() {
		status = "FAIL"
	}
	fmt.Fprintf(&b, "# Chain run %s: %s\n\n", r.ID, status)
	fmt.Fprintf(&b, "%d passed, %d failed in %s.\n", passed, failed, r.Finished.Sub(r.Started).Round(time.Millisecond))

	for _, f := range r.Files {
		fmt.Fprintf(&b, "\n## %s\n\n", f.Name)
		if f.Err != "" {
			fmt.Fprintf(&b, "Script error: `%s`\n", oneLine(f.Err))
			continue
		}
		b.WriteString("| Line | Chain | Result | Duration | Error |\n")
		b.WriteString("| ---: | --- | --- | ---: | --- |\n")
		for _, c := range f.Chains {
			result := "pass"
			if !c.Passed {
				result = "**FAIL**"
			}
			if c.ExpectFailure {
				result += " (expected failure)"
			}
			fmt.Fprintf(&b, "| %d | `%s` | %s | %s | %s |\n",
				c.Line, cell(c.Source), result, c.Duration.Round(time.Millisecond), cell(c.Error))
		}
	}
	return b.Bytes()
}

// HTML renders the Markdown report to sanitized HTML.
func (r *Run) HTML() []byte {
	p := parser.NewWithExtensions(parser.CommonExtensions | parser.AutoHeadingIDs | parser.NoEmptyLineBeforeBlock)
	doc := p.Parse(r.Markdown())
	renderer := html.NewRenderer(html.RendererOptions{Flags: html.CommonFlags})
	out := markdown.Render(doc, renderer)

	policy := bluemonday.UGCPolicy()
	policy.AllowElements("code")
	return policy.SanitizeBytes(out)
}

func oneLine(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// cell escapes a value for a Markdown table cell.
func cell(s string) string {
	s = oneLine(s)
	s = strings.ReplaceAll(s, "|", `\|`)
	return strings.ReplaceAll(s, "`", "'")
}
