package chain

import (
	"context"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/kuitang/chaincmds/internal/obs"
	"github.com/kuitang/chaincmds/internal/resolver"
	"github.com/kuitang/chaincmds/internal/value"
)

// budget tracks the retry clock of one invocation.
type budget struct {
	limiter  *rate.Limiter
	deadline time.Time
	retries  int
}

// scheduler hands out one paced budget per invocation.
type scheduler struct {
	interval time.Duration

	mu      sync.Mutex
	budgets map[string]*budget
}

func newScheduler(interval time.Duration) *scheduler {
	return &scheduler{interval: interval, budgets: make(map[string]*budget)}
}

// budgetFor returns the invocation's budget, starting its clock on first use.
func (s *scheduler) budgetFor(id string, timeout time.Duration) *budget {
	s.mu.Lock()
	defer s.mu.Unlock()
	if b, ok := s.budgets[id]; ok {
		return b
	}
	lim := rate.NewLimiter(rate.Every(s.interval), 1)
	// Spend the burst so the first retry waits a full interval.
	lim.Allow()
	b := &budget{limiter: lim, deadline: time.Now().Add(timeout)}
	s.budgets[id] = b
	return b
}

func (s *scheduler) release(ids []string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, id := range ids {
		delete(s.budgets, id)
	}
}

// wait blocks until the next attempt is due. It reports false when the
// budget is spent or ctx is done.
func (s *scheduler) wait(ctx context.Context, b *budget) bool {
	if time.Now().Add(s.interval).After(b.deadline) {
		return false
	}
	if err := b.limiter.Wait(ctx); err != nil {
		return false
	}
	b.retries++
	return true
}

func (r *Runner) timeout(opts resolver.VerifyOptions) time.Duration {
	if opts.Timeout > 0 {
		return opts.Timeout
	}
	return r.cfg.Timeout
}

// VerifyUpcoming implements resolver.Verifier.
func (r *Runner) VerifyUpcoming(ctx context.Context, inv resolver.Invocation, candidate any, opts resolver.VerifyOptions, hooks resolver.Hooks) (any, error) {
	if err := r.markVerified(inv); err != nil {
		return nil, err
	}
	err := r.check(candidate, r.UpcomingAssertions(inv), opts.EnsureExistence)
	if err == nil {
		return candidate, nil
	}
	return r.retryOrFail(ctx, inv, err, opts, hooks.OnFail, hooks.OnRetry)
}

// Retry implements resolver.Verifier.
func (r *Runner) Retry(ctx context.Context, inv resolver.Invocation, cause error, opts resolver.VerifyOptions, retry resolver.RetryFunc) (any, error) {
	if err := r.markVerified(inv); err != nil {
		return nil, err
	}
	return r.retryOrFail(ctx, inv, cause, opts, nil, retry)
}

func (r *Runner) retryOrFail(ctx context.Context, inv resolver.Invocation, cause error, opts resolver.VerifyOptions, onFail func(error) error, retry resolver.RetryFunc) (any, error) {
	b := r.sched.budgetFor(inv.ID, r.timeout(opts))
	if retry != nil && r.sched.wait(ctx, b) {
		return retry(ctx)
	}
	obs.From(ctx).Debug("retry_exhausted",
		"pkg", "chain",
		"invocation_id", inv.ID,
		"retries", b.retries,
		"error", cause,
	)
	if onFail != nil {
		if rewritten := onFail(cause); rewritten != nil {
			return nil, rewritten
		}
	}
	return nil, cause
}

// check evaluates the upcoming assertions against candidate, falling back
// to an implicit existence check when asked and nothing is queued.
func (r *Runner) check(candidate any, upcoming []resolver.Assertion, ensureExistence bool) error {
	if len(upcoming) == 0 {
		if ensureExistence && !value.Exists(candidate) {
			return Evaluate(candidate, resolver.Assertion{Chainer: "exist"})
		}
		return nil
	}
	for _, a := range upcoming {
		if err := Evaluate(candidate, a); err != nil {
			return err
		}
	}
	return nil
}
