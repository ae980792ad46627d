// Package chain is the host that runs command chains: a serial queue of
// commands and the assertions chained after them. It verifies candidates
// yielded by commands, owns the retry clock and answers lookahead queries
// about upcoming assertions.
package chain

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/kuitang/chaincmds/internal/dom"
	"github.com/kuitang/chaincmds/internal/obs"
	"github.com/kuitang/chaincmds/internal/resolver"
	"github.com/kuitang/chaincmds/internal/value"
)

const (
	// DefaultTimeout is the budget of one command including its retries.
	DefaultTimeout = 4 * time.Second
	// DefaultRetryInterval is the pause between two attempts.
	DefaultRetryInterval = 50 * time.Millisecond
)

// Command is one queued command.
type Command interface {
	Name() string
	// Parent reports whether the command ignores the previous subject and
	// starts a new chain.
	Parent() bool
	Run(ctx context.Context, r *Runner, subject any) (any, error)
}

// Step is either a command or an assertion.
type Step struct {
	Command   Command
	Assertion *resolver.Assertion
}

// Do wraps a command as a step.
func Do(cmd Command) Step {
	return Step{Command: cmd}
}

// Should queues an assertion such as Should("have.length", 2).
func Should(chainer string, args ...any) Step {
	return Step{Assertion: &resolver.Assertion{Chainer: chainer, Args: args}}
}

// And is an alias of Should that reads better in long chains.
func And(chainer string, args ...any) Step {
	return Should(chainer, args...)
}

func (s Step) String() string {
	if s.Assertion != nil {
		return "should " + s.Assertion.Chainer
	}
	if s.Command != nil {
		return s.Command.Name()
	}
	return "<nil>"
}

// Config configures a Runner.
type Config struct {
	Timeout        time.Duration
	RetryInterval  time.Duration
	RequestBaseURL string
	HTTPClient     *http.Client
	Visitor        dom.Visitor
	// Root is the document queried before any visit.
	Root dom.Root
}

func (c Config) withDefaults() Config {
	if c.Timeout <= 0 {
		c.Timeout = DefaultTimeout
	}
	if c.RetryInterval <= 0 {
		c.RetryInterval = DefaultRetryInterval
	}
	if c.HTTPClient == nil {
		c.HTTPClient = &http.Client{Transport: obs.NewTransport("chain", nil)}
	}
	return c
}

// Runner executes chains one at a time.
type Runner struct {
	cfg Config

	runMu sync.Mutex

	mu       sync.Mutex
	steps    []Step
	current  int
	bound    map[string]int
	verified map[int]bool
	sched    *scheduler
	root     dom.Root
}

// NewRunner returns a runner with defaults applied to cfg.
func NewRunner(cfg Config) *Runner {
	cfg = cfg.withDefaults()
	return &Runner{
		cfg:   cfg,
		root:  cfg.Root,
		sched: newScheduler(cfg.RetryInterval),
	}
}

// Config returns the effective configuration.
func (r *Runner) Config() Config {
	return r.cfg
}

// Root returns the document queries run against.
func (r *Runner) Root() dom.Root {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.root
}

// SetRoot replaces the current document.
func (r *Runner) SetRoot(root dom.Root) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.root = root
}

// Visitor returns the configured document visitor, which may be nil.
func (r *Runner) Visitor() dom.Visitor {
	return r.cfg.Visitor
}

// Begin mints the invocation token for the command currently running. The
// token stays bound to the command's queue position for all of its retries.
func (r *Runner) Begin(command string) resolver.Invocation {
	inv := resolver.NewInvocation(command)
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.bound != nil {
		r.bound[inv.ID] = r.current
	}
	return inv
}

// Run executes steps in order and returns the final subject. Assertions
// directly following a command that verified its candidate belong to that
// command; any other assertion is evaluated once against the subject.
func (r *Runner) Run(ctx context.Context, steps ...Step) (any, error) {
	r.runMu.Lock()
	defer r.runMu.Unlock()

	r.mu.Lock()
	r.steps = steps
	r.bound = make(map[string]int)
	r.verified = make(map[int]bool)
	r.mu.Unlock()
	defer func() {
		r.mu.Lock()
		r.steps, r.bound, r.verified = nil, nil, nil
		r.mu.Unlock()
	}()

	var subject any = value.Undefined
	for i := 0; i < len(steps); i++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		step := steps[i]
		switch {
		case step.Assertion != nil:
			if err := Evaluate(subject, *step.Assertion); err != nil {
				return nil, err
			}
		case step.Command != nil:
			out, err := r.runCommand(ctx, i, step.Command, subject)
			if err != nil {
				return nil, err
			}
			subject = out
			if r.wasVerified(i) {
				i += len(r.upcomingAt(i))
			}
		default:
			return nil, errors.New("chain: empty step")
		}
	}
	return subject, nil
}

func (r *Runner) runCommand(ctx context.Context, i int, cmd Command, subject any) (any, error) {
	r.mu.Lock()
	r.current = i
	r.mu.Unlock()

	if cmd.Parent() {
		subject = value.Undefined
	}
	ctx = obs.WithCorrelation(ctx, obs.Correlation{Command: cmd.Name()})
	out, err := cmd.Run(ctx, r, subject)
	r.sched.release(r.invocationsAt(i))
	if err != nil {
		obs.From(ctx).Debug("command_error", "pkg", "chain", "index", i, "error", err)
		return nil, err
	}
	return out, nil
}

func (r *Runner) wasVerified(i int) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.verified[i]
}

func (r *Runner) invocationsAt(i int) []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	var ids []string
	for id, at := range r.bound {
		if at == i {
			ids = append(ids, id)
		}
	}
	return ids
}

// UpcomingAssertions implements resolver.Lookahead. Only the assertions
// directly after the invocation's command are reported.
func (r *Runner) UpcomingAssertions(inv resolver.Invocation) []resolver.Assertion {
	i, ok := r.indexOf(inv)
	if !ok {
		return nil
	}
	return r.upcomingAt(i)
}

func (r *Runner) indexOf(inv resolver.Invocation) (int, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	i, ok := r.bound[inv.ID]
	return i, ok
}

func (r *Runner) upcomingAt(i int) []resolver.Assertion {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []resolver.Assertion
	for j := i + 1; j < len(r.steps) && r.steps[j].Assertion != nil; j++ {
		out = append(out, *r.steps[j].Assertion)
	}
	return out
}

func (r *Runner) markVerified(inv resolver.Invocation) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	i, ok := r.bound[inv.ID]
	if !ok {
		return fmt.Errorf("chain: invocation %s of %q is not bound to a running command", inv.ID, inv.Command)
	}
	r.verified[i] = true
	return nil
}
