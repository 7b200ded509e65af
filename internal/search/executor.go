package search

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/ppiankov/evidex/internal/cache"
	"github.com/ppiankov/evidex/internal/model"
	"github.com/ppiankov/evidex/internal/worker"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

// State is a step of one query's execution
type State string

const (
	StateTrying       State = "trying"
	StateRetrying     State = "retrying"
	StateFallbackUsed State = "fallback_used"
	StateDone         State = "done"
)

// sleepFunc waits between retries (injectable for tests)
var sleepFunc = func(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// Observer receives search events for metrics
type Observer interface {
	QueryIssued(provider string)
	CacheLookup(hit bool)
	FallbackUsed()
}

// Outcome is the result of executing one query
type Outcome struct {
	Query        model.SearchQuery
	Candidates   []model.URLCandidate
	FallbackUsed bool
	CacheHit     bool
	Attempts     int
	States       []State
	Failure      *model.Failure
}

// Executor runs queries against the cache, the live provider and the
// fallback catalog
type Executor struct {
	provider Provider
	catalog  *Catalog
	results  *cache.ResultCache
	limiter  *worker.Limiter
	observer Observer
	logger   *zap.Logger
	group    singleflight.Group

	timeout     time.Duration
	maxRetries  int
	baseBackoff time.Duration
	maxBackoff  time.Duration
	limit       int
}

// ExecutorOptions wires an executor's collaborators. Nil fields are allowed:
// no provider means fallback only, no cache means every lookup misses.
type ExecutorOptions struct {
	Provider Provider
	Catalog  *Catalog
	Results  *cache.ResultCache
	Limiter  *worker.Limiter
	Observer Observer
	Logger   *zap.Logger
}

// NewExecutor creates a search executor
func NewExecutor(cfg model.SearchConfig, opts ExecutorOptions) *Executor {
	if opts.Catalog == nil {
		opts.Catalog = DefaultCatalog()
	}
	if opts.Limiter == nil {
		opts.Limiter = worker.NewLimiter(cfg.RequestsPerSecond, cfg.Burst)
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}

	e := &Executor{
		provider:    opts.Provider,
		catalog:     opts.Catalog,
		results:     opts.Results,
		limiter:     opts.Limiter,
		observer:    opts.Observer,
		logger:      opts.Logger,
		timeout:     cfg.Timeout,
		maxRetries:  cfg.MaxRetries,
		baseBackoff: cfg.BaseBackoff,
		maxBackoff:  cfg.MaxBackoff,
		limit:       cfg.ResultsPerQuery,
	}
	if e.timeout <= 0 {
		e.timeout = 5 * time.Second
	}
	if e.maxRetries < 0 {
		e.maxRetries = 0
	}
	if e.baseBackoff <= 0 {
		e.baseBackoff = 500 * time.Millisecond
	}
	if e.maxBackoff <= 0 {
		e.maxBackoff = 5 * time.Second
	}
	if e.limit <= 0 {
		e.limit = 8
	}
	return e
}

// ProviderName returns the live provider's name, or "none"
func (e *Executor) ProviderName() string {
	if e.provider == nil {
		return "none"
	}
	return e.provider.Name()
}

// Execute runs one query. It never returns an error: degraded outcomes carry
// a Failure, and cancellation of ctx stops retries without falling back.
func (e *Executor) Execute(ctx context.Context, q model.SearchQuery) Outcome {
	out := Outcome{Query: q, States: []State{StateTrying}}

	if err := ctx.Err(); err != nil {
		return e.timedOut(out, err)
	}

	if cached, ok := e.results.Lookup(ctx, q.Query); ok {
		e.observeCache(true)
		out.Candidates = cached
		out.CacheHit = true
		out.States = append(out.States, StateDone)
		return out
	}
	if e.results.Enabled() {
		e.observeCache(false)
	}

	if e.provider == nil {
		return e.fallback(out, nil)
	}

	type live struct {
		candidates []model.URLCandidate
		attempts   int
		retried    bool
	}

	v, err, shared := e.group.Do(strings.Join(strings.Fields(strings.ToLower(q.Query)), " "), func() (any, error) {
		results, attempts, err := e.searchWithRetry(ctx, q.Query)
		if err != nil {
			return live{attempts: attempts, retried: attempts > 1}, err
		}
		candidates := Sanitize(results, e.provider.Name(), false)
		if storeErr := e.results.Store(ctx, q.Query, candidates); storeErr != nil {
			e.logger.Warn("cache store failed", zap.String("query", q.Query), zap.Error(storeErr))
		}
		return live{candidates: candidates, attempts: attempts, retried: attempts > 1}, nil
	})
	res, _ := v.(live)
	out.Attempts = res.attempts
	if res.retried {
		out.States = append(out.States, StateRetrying)
	}

	if err == nil {
		if shared {
			e.logger.Debug("query shared in flight", zap.String("query", q.Query))
		}
		out.Candidates = res.candidates
		out.States = append(out.States, StateDone)
		return out
	}

	if ctxErr := ctx.Err(); ctxErr != nil {
		return e.timedOut(out, ctxErr)
	}

	return e.fallback(out, err)
}

// searchWithRetry calls the provider with per-attempt timeouts and
// exponential backoff. It returns the number of attempts made.
func (e *Executor) searchWithRetry(ctx context.Context, q string) ([]Result, int, error) {
	var lastErr error
	for attempt := 0; attempt <= e.maxRetries; attempt++ {
		if err := e.limiter.Wait(ctx, e.provider.Name()); err != nil {
			return nil, attempt, err
		}
		if e.observer != nil {
			e.observer.QueryIssued(e.provider.Name())
		}

		attemptCtx, cancel := context.WithTimeout(ctx, e.timeout)
		results, err := e.provider.Search(attemptCtx, q, e.limit)
		cancel()
		if err == nil {
			return results, attempt + 1, nil
		}
		lastErr = err

		if ctx.Err() != nil {
			return nil, attempt + 1, ctx.Err()
		}
		if !isRetryable(err) || attempt == e.maxRetries {
			return nil, attempt + 1, err
		}

		backoff := e.backoff(attempt, err)
		if deadline, ok := ctx.Deadline(); ok && time.Until(deadline) <= backoff {
			// Waiting would outlive the caller; give up so it can fall back
			e.logger.Debug("backoff exceeds deadline, giving up",
				zap.String("provider", e.provider.Name()),
				zap.String("query", q),
				zap.Duration("backoff", backoff),
				zap.Error(err),
			)
			return nil, attempt + 1, err
		}
		e.logger.Debug("retrying search",
			zap.String("provider", e.provider.Name()),
			zap.String("query", q),
			zap.Int("attempt", attempt+1),
			zap.Duration("backoff", backoff),
			zap.Error(err),
		)
		if err := sleepFunc(ctx, backoff); err != nil {
			return nil, attempt + 1, err
		}
	}
	return nil, e.maxRetries + 1, lastErr
}

// backoff doubles the base delay per attempt; rate-limit responses double it
// again and honor Retry-After when that is longer. The result never exceeds
// maxBackoff.
func (e *Executor) backoff(attempt int, err error) time.Duration {
	d := e.baseBackoff * time.Duration(1<<uint(attempt))

	var se *StatusError
	if errors.As(err, &se) && se.Code == http.StatusTooManyRequests {
		d *= 2
		if se.RetryAfter > d {
			d = se.RetryAfter
		}
	}
	return min(d, e.maxBackoff)
}

// isRetryable returns true for transient failures
func isRetryable(err error) bool {
	var se *StatusError
	if errors.As(err, &se) {
		return se.Retryable()
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}
	s := strings.ToLower(err.Error())
	return strings.Contains(s, "connection refused") ||
		strings.Contains(s, "connection reset") ||
		strings.Contains(s, "eof")
}

func (e *Executor) fallback(out Outcome, cause error) Outcome {
	out.Candidates = e.catalog.Generate(out.Query, e.limit)
	out.FallbackUsed = true
	out.States = append(out.States, StateFallbackUsed, StateDone)
	if e.observer != nil {
		e.observer.FallbackUsed()
	}

	if cause != nil {
		out.Failure = &model.Failure{
			Kind:   model.FailureSearchUnavailable,
			Query:  out.Query.Query,
			Detail: cause.Error(),
		}
		e.logger.Warn("search unavailable, using fallback",
			zap.String("provider", e.ProviderName()),
			zap.String("query", out.Query.Query),
			zap.String("kind", string(model.FailureSearchUnavailable)),
			zap.Int("attempts", out.Attempts),
			zap.Error(cause),
		)
	}
	return out
}

func (e *Executor) timedOut(out Outcome, err error) Outcome {
	out.Failure = &model.Failure{
		Kind:   model.FailureSearchTimeout,
		Query:  out.Query.Query,
		Detail: fmt.Sprintf("cancelled: %v", err),
	}
	out.States = append(out.States, StateDone)
	return out
}

func (e *Executor) observeCache(hit bool) {
	if e.observer != nil {
		e.observer.CacheLookup(hit)
	}
}
