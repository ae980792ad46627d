// Package resolver implements the retry protocol shared by every command:
// compute a candidate, hand it to the verifier together with the pending
// assertions, and recompute on each retry until the verifier passes it or
// gives up.
//
// The verifier (the host runner) owns the clock. The resolver never decides
// on its own whether to retry; compute errors are handed to the verifier's
// retry path exactly like failed assertions.
package resolver

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/kuitang/chaincmds/internal/obs"
)

// Invocation identifies one command invocation across all of its retries.
type Invocation struct {
	ID      string
	Command string
}

// NewInvocation mints a fresh invocation token for the named command.
func NewInvocation(command string) Invocation {
	return Invocation{ID: uuid.NewString(), Command: command}
}

// Assertion describes a queued assertion: a dotted chainer such as
// "not.exist" or "have.length" plus its arguments.
type Assertion struct {
	Chainer string
	Args    []any
}

// Negated reports whether the chainer contains a "not" segment.
func (a Assertion) Negated() bool {
	return hasSegment(a.Chainer, "not")
}

func (a Assertion) String() string {
	return a.Chainer
}

func hasSegment(chainer, segment string) bool {
	for _, part := range strings.Split(chainer, ".") {
		if part == segment {
			return true
		}
	}
	return false
}

// NegatesExistence reports whether any of the assertions is a negated
// existence check such as "not.exist".
func NegatesExistence(assertions []Assertion) bool {
	for _, a := range assertions {
		if hasSegment(a.Chainer, "exist") && hasSegment(a.Chainer, "not") {
			return true
		}
	}
	return false
}

// VerifyOptions tune a single verification.
type VerifyOptions struct {
	// Timeout overrides the verifier's default budget when positive.
	Timeout time.Duration
	// EnsureExistence applies an implicit existence check when no assertion
	// is queued after the command.
	EnsureExistence bool
}

// RetryFunc recomputes a candidate and verifies it again.
type RetryFunc func(ctx context.Context) (any, error)

// Hooks are handed to the verifier with every candidate.
type Hooks struct {
	// OnFail may rewrite the error before it reaches the caller. It runs
	// once, when the verifier gives up.
	OnFail func(err error) error
	// OnRetry restarts evaluation with a freshly computed candidate.
	OnRetry RetryFunc
}

// Verifier judges candidates against the assertions queued after an
// invocation and has sole authority over retries and timeouts.
type Verifier interface {
	// VerifyUpcoming checks candidate. On success it returns the final
	// value. On a transient failure it calls hooks.OnRetry and returns its
	// result; on a terminal failure it passes the error through
	// hooks.OnFail and returns it.
	VerifyUpcoming(ctx context.Context, inv Invocation, candidate any, opts VerifyOptions, hooks Hooks) (any, error)

	// Retry is the scheduler path for a compute step that failed before a
	// candidate existed. It calls retry if time remains, otherwise returns
	// cause.
	Retry(ctx context.Context, inv Invocation, cause error, opts VerifyOptions, retry RetryFunc) (any, error)
}

// Lookahead exposes the assertions queued directly after an invocation.
// Only immediate descendants are reported: an assertion chained behind
// another command is not visible.
type Lookahead interface {
	UpcomingAssertions(inv Invocation) []Assertion
}

// ComputeFunc produces a fresh candidate. It must not cache results
// between calls.
type ComputeFunc func(ctx context.Context) (any, error)

// Resolver runs the retry protocol for one invocation.
type Resolver struct {
	inv      Invocation
	verifier Verifier
	opts     VerifyOptions
	log      *obs.Entry
	attempts int
}

// New returns a resolver for inv. log may be nil.
func New(inv Invocation, verifier Verifier, opts VerifyOptions, log *obs.Entry) *Resolver {
	return &Resolver{inv: inv, verifier: verifier, opts: opts, log: log}
}

// Attempts returns how many candidates have been computed so far.
func (r *Resolver) Attempts() int {
	return r.attempts
}

// Resolve runs compute until the verifier accepts a candidate or gives up.
// onFail may be nil.
func (r *Resolver) Resolve(ctx context.Context, compute ComputeFunc, onFail func(error) error) (any, error) {
	if onFail == nil {
		onFail = func(err error) error { return err }
	}

	var attempt RetryFunc
	attempt = func(ctx context.Context) (any, error) {
		r.attempts++
		candidate, err := compute(ctx)
		if err != nil {
			return r.verifier.Retry(ctx, r.inv, err, r.opts, attempt)
		}
		r.log.Set("Yielded", candidate)
		return r.verifier.VerifyUpcoming(ctx, r.inv, candidate, r.opts, Hooks{
			OnFail:  onFail,
			OnRetry: attempt,
		})
	}

	result, err := attempt(ctx)
	if err != nil {
		r.log.Fail(err)
		return nil, err
	}
	r.log.Snapshot().End()
	return result, nil
}
