package fetch

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/couchcryptid/fire-timeline-service/internal/observability"
	"github.com/jonboulle/clockwork"
)

// Notice describes a scheduled automatic retry.
type Notice struct {
	Resource string
	Attempt  int
	Delay    time.Duration
	Err      error
}

// Retrier tracks the retry state of one logical resource. Until the resource
// has loaded once, failures are retried forever with backoff. After that,
// failures are returned immediately as Interactive errors.
type Retrier struct {
	resource string
	policy   Policy
	clock    clockwork.Clock
	logger   *slog.Logger
	metrics  *observability.Metrics

	mu        sync.Mutex
	succeeded bool
	attempt   int
	onRetry   func(Notice)
}

// NewRetrier creates a Retrier for resource.
func NewRetrier(resource string, policy Policy, clock clockwork.Clock, logger *slog.Logger, metrics *observability.Metrics) *Retrier {
	return &Retrier{
		resource: resource,
		policy:   policy,
		clock:    clock,
		logger:   logger,
		metrics:  metrics,
	}
}

// OnRetry registers a hook called before each backoff wait.
func (r *Retrier) OnRetry(fn func(Notice)) {
	r.mu.Lock()
	r.onRetry = fn
	r.mu.Unlock()
}

// Succeeded reports whether the resource has ever loaded.
func (r *Retrier) Succeeded() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.succeeded
}

// Attempt is the number of consecutive failures since the last success.
func (r *Retrier) Attempt() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.attempt
}

// Resource is the logical resource name.
func (r *Retrier) Resource() string { return r.resource }

func (r *Retrier) recordSuccess() {
	r.metrics.FetchRequests.WithLabelValues(r.resource, "success").Inc()

	r.mu.Lock()
	r.succeeded = true
	r.attempt = 0
	r.mu.Unlock()
}

// recordFailure bumps the attempt counter. retry is false once the resource
// has loaded at least once.
func (r *Retrier) recordFailure() (attempt int, retry bool, hook func(Notice)) {
	r.metrics.FetchRequests.WithLabelValues(r.resource, "error").Inc()

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.succeeded {
		return 1, false, nil
	}
	r.attempt++
	return r.attempt, true, r.onRetry
}

// Do runs op under r's policy. It blocks through backoff waits and returns
// early only when ctx is done or, after the first success, on the first failure.
func Do[T any](ctx context.Context, r *Retrier, op func(ctx context.Context) (T, error)) (T, error) {
	var zero T
	for {
		v, err := op(ctx)
		if err == nil {
			r.recordSuccess()
			return v, nil
		}
		if ctx.Err() != nil {
			return zero, ctx.Err()
		}

		attempt, retry, hook := r.recordFailure()
		if !retry {
			r.logger.Error("fetch failed", "resource", r.resource, "error", err)
			return zero, &Error{Kind: Interactive, Resource: r.resource, Attempt: attempt, Err: err}
		}

		delay := r.policy.Delay(attempt)
		r.metrics.FetchRetries.WithLabelValues(r.resource).Inc()
		r.metrics.FetchRetryDelay.WithLabelValues(r.resource).Observe(delay.Seconds())
		r.logger.Warn("fetch failed, retrying",
			"resource", r.resource,
			"attempt", attempt,
			"delay", delay,
			"error", err,
		)
		if hook != nil {
			hook(Notice{
				Resource: r.resource,
				Attempt:  attempt,
				Delay:    delay,
				Err:      &Error{Kind: Transient, Resource: r.resource, Attempt: attempt, Err: err},
			})
		}

		select {
		case <-ctx.Done():
			return zero, ctx.Err()
		case <-r.clock.After(delay):
		}
	}
}
