// Package script runs chain scripts stored as txtar archives.
//
// The comment section of an archive is the script; its files are the
// documents chains query. A document named index.html is the starting
// document when present.
//
// A script is a sequence of lines:
//
//	# comment
//	get li                      start a chain with a parent command
//	attribute data-relation     continue it with a child command
//	should have.length 2        queue an assertion
//	and contain a               another assertion
//	! get #missing              a chain expected to fail
//	error never found it        substring the failure must contain
//	set-text #late Ready after=50ms
//	                            mutate the current document
//
// Arguments are split like a shell: single quotes are literal, double
// quotes allow backslash escapes. Assertion arguments and wrap/request
// arguments are decoded as JSON when they parse, otherwise kept as
// strings. A word of the form key=value is an option when key is an
// option of that command. $NAME expands from Params.Env.
package script

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"golang.org/x/tools/txtar"

	"github.com/kuitang/chaincmds/internal/chain"
	"github.com/kuitang/chaincmds/internal/dom"
	"github.com/kuitang/chaincmds/internal/dom/htmldom"
	"github.com/kuitang/chaincmds/internal/errs"
	"github.com/kuitang/chaincmds/internal/obs"
	"github.com/kuitang/chaincmds/internal/options"
	"github.com/kuitang/chaincmds/internal/report"
)

// Ext is the file extension of chain scripts.
const Ext = ".txtar"

// Params configures how scripts run.
type Params struct {
	// Dir holds the scripts run by Run.
	Dir string

	Timeout        time.Duration
	RetryInterval  time.Duration
	RequestBaseURL string
	HTTPClient     *http.Client

	// Visitor serves visit targets instead of the archive's documents,
	// e.g. a browser. Mutation directives need the archive's documents.
	Visitor dom.Visitor

	// Env holds the values $NAME expands to.
	Env map[string]string
}

// Run runs every script in p.Dir as a subtest of t.
func Run(t *testing.T, p Params) {
	t.Helper()
	files, err := Glob(p.Dir)
	if err != nil {
		t.Fatal(err)
	}
	if len(files) == 0 {
		t.Fatalf("no scripts found in %s", p.Dir)
	}
	for _, file := range files {
		name := strings.TrimSuffix(filepath.Base(file), Ext)
		t.Run(name, func(t *testing.T) {
			res := RunFile(context.Background(), file, p)
			if res.Err != "" {
				t.Fatal(res.Err)
			}
			for _, c := range res.Chains {
				if !c.Passed {
					t.Errorf("%s:%d: %s\n%s", name, c.Line, c.Source, c.Error)
				}
			}
		})
	}
}

// Glob lists the scripts in dir, or dir itself when it is a script file.
func Glob(dir string) ([]string, error) {
	info, err := os.Stat(dir)
	if err != nil {
		return nil, err
	}
	if !info.IsDir() {
		return []string{dir}, nil
	}
	return filepath.Glob(filepath.Join(dir, "*"+Ext))
}

// RunFile runs the script at path.
func RunFile(ctx context.Context, path string, p Params) report.File {
	data, err := os.ReadFile(path)
	if err != nil {
		return report.File{Name: filepath.Base(path), Err: err.Error()}
	}
	return RunArchive(ctx, filepath.Base(path), txtar.Parse(data), p)
}

// RunArchive runs an already parsed script.
func RunArchive(ctx context.Context, name string, ar *txtar.Archive, p Params) report.File {
	ctx = obs.WithCorrelation(ctx, obs.Correlation{Script: name})
	site := htmldom.NewSite()
	for _, f := range ar.Files {
		site.Add(f.Name, string(f.Data))
	}

	cfg := chain.Config{
		Timeout:        p.Timeout,
		RetryInterval:  p.RetryInterval,
		RequestBaseURL: p.RequestBaseURL,
		HTTPClient:     p.HTTPClient,
		Visitor:        p.Visitor,
	}
	if cfg.Visitor == nil {
		cfg.Visitor = site
		if doc, err := site.Document("index.html"); err == nil {
			cfg.Root = doc
		}
	}

	s := &state{
		runner: chain.NewRunner(cfg),
		env:    p.Env,
		file:   report.File{Name: name, Chains: []report.Chain{}},
	}
	defer s.stopTimers()

	start := time.Now()
	for i, line := range strings.Split(string(ar.Comment), "\n") {
		if err := s.line(ctx, i+1, line); err != nil {
			s.file.Err = fmt.Sprintf("%s:%d: %v", name, i+1, err)
			return s.file
		}
	}
	s.flush(ctx)
	obs.From(ctx).Info("script_done",
		"chains", len(s.file.Chains),
		"passed", s.file.Passed(),
		"duration_ms", time.Since(start).Milliseconds(),
	)
	return s.file
}

// pending is a chain being assembled from consecutive lines.
type pending struct {
	line      int
	negated   bool
	expectErr string
	steps     []chain.Step
	source    []string
}

type state struct {
	runner *chain.Runner
	env    map[string]string
	file   report.File
	cur    *pending
	timers []*time.Timer
}

func (s *state) stopTimers() {
	for _, t := range s.timers {
		t.Stop()
	}
}

func (s *state) expand(line string) string {
	return os.Expand(line, func(key string) string {
		if v, ok := s.env[key]; ok {
			return v
		}
		return "$" + key
	})
}

func (s *state) line(ctx context.Context, lineno int, raw string) error {
	line := strings.TrimSpace(raw)
	if line == "" || strings.HasPrefix(line, "#") {
		return nil
	}
	line = s.expand(line)

	if rest, ok := strings.CutPrefix(line, "error "); ok || line == "error" {
		if s.cur == nil || !s.cur.negated {
			return errors.New("error must follow a chain marked with '!'")
		}
		s.cur.expectErr = strings.TrimSpace(rest)
		return nil
	}

	words, err := splitArgs(line)
	if err != nil {
		return err
	}
	negated := words[0] == "!"
	if negated {
		words = words[1:]
		if len(words) == 0 {
			return errors.New("'!' needs a command")
		}
	}
	word, args := words[0], words[1:]

	switch word {
	case "should", "and":
		if negated {
			return fmt.Errorf("'!' does not apply to %s; use not.<chainer>", word)
		}
		if s.cur == nil {
			return fmt.Errorf("%s outside a chain", word)
		}
		if len(args) == 0 {
			return fmt.Errorf("%s needs a chainer", word)
		}
		decoded := make([]any, len(args)-1)
		for i, a := range args[1:] {
			decoded[i] = decode(a)
		}
		s.cur.steps = append(s.cur.steps, chain.Should(args[0], decoded...))
		s.cur.source = append(s.cur.source, line)
		return nil
	}

	if d, ok := directives[word]; ok {
		if negated {
			return fmt.Errorf("'!' does not apply to %s", word)
		}
		s.flush(ctx)
		return s.directive(ctx, d, word, args)
	}

	b, ok := builders[word]
	if !ok {
		return fmt.Errorf("unknown command %q", word)
	}
	step := buildStep(word, b, args)
	if b.parent {
		s.flush(ctx)
		s.cur = &pending{line: lineno, negated: negated}
	} else {
		if s.cur == nil {
			return fmt.Errorf("%s must follow a command that yields a subject", word)
		}
		if negated {
			return errors.New("'!' applies to the first command of a chain")
		}
	}
	s.cur.steps = append(s.cur.steps, step)
	s.cur.source = append(s.cur.source, strings.TrimSpace(strings.TrimPrefix(line, "!")))
	return nil
}

// buildStep turns words into a step. Bad arguments become a step that
// fails when the chain runs, so scripts can expect them with '!'.
func buildStep(word string, b builder, words []string) chain.Step {
	o := &optionSet{v: options.NewValidator(word), raw: map[string]string{}}
	var args []string
	for _, w := range words {
		if k, v, ok := strings.Cut(w, "="); ok && b.hasOption(k) {
			o.raw[k] = v
			continue
		}
		args = append(args, w)
	}
	if len(args) < b.minArgs || len(args) > b.maxArgs {
		return chain.Do(&failing{name: word, parent: b.parent, err: errs.New(errs.InvalidArgument,
			fmt.Sprintf("%s() takes %s, got %d", word, arity(b), len(args)))})
	}
	step, err := b.build(args, o)
	if err != nil {
		return chain.Do(&failing{name: word, parent: b.parent, err: err})
	}
	return step
}

func arity(b builder) string {
	switch {
	case b.minArgs == b.maxArgs && b.maxArgs == 1:
		return "1 argument"
	case b.minArgs == b.maxArgs:
		return fmt.Sprintf("%d arguments", b.maxArgs)
	}
	return fmt.Sprintf("%d to %d arguments", b.minArgs, b.maxArgs)
}

// failing stands in for a command whose arguments were rejected.
type failing struct {
	name   string
	parent bool
	err    error
}

func (f *failing) Name() string { return f.name }
func (f *failing) Parent() bool { return f.parent }
func (f *failing) Run(context.Context, *chain.Runner, any) (any, error) {
	return nil, f.err
}

// flush runs the pending chain and records its outcome.
func (s *state) flush(ctx context.Context) {
	p := s.cur
	s.cur = nil
	if p == nil {
		return
	}
	start := time.Now()
	_, err := s.runner.Run(ctx, p.steps...)
	c := report.Chain{
		Line:          p.line,
		Source:        strings.Join(p.source, " | "),
		ExpectFailure: p.negated,
		Duration:      time.Since(start),
	}
	if err != nil {
		c.Error = err.Error()
		c.Code = errs.CodeOf(err)
	}
	switch {
	case !p.negated:
		c.Passed = err == nil
	case err == nil:
		c.Error = "chain passed but was expected to fail"
	case p.expectErr != "" && !strings.Contains(err.Error(), p.expectErr):
		c.Error = fmt.Sprintf("want error containing %q, got: %v", p.expectErr, err)
	default:
		c.Passed = true
	}
	if !c.Passed {
		obs.From(ctx).Warn("chain_failed", "line", c.Line, "source", c.Source, "error", c.Error)
	}
	s.file.Chains = append(s.file.Chains, c)
}
