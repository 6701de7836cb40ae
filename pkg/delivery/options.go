package delivery

import (
	"log/slog"
	"time"
)

// PipelineOption is a functional option for configuring a Pipeline.
type PipelineOption func(*pipelineOptions)

type pipelineOptions struct {
	batchSize     int
	batchInterval time.Duration
	logger        *slog.Logger
	retry         *RetryPolicy
	now           func() time.Time
}

// WithBatchSize sets how many due entries one batch cycle picks up. The
// batch size also bounds per-cycle delivery concurrency.
func WithBatchSize(n int) PipelineOption {
	return func(o *pipelineOptions) {
		if n > 0 {
			o.batchSize = n
		}
	}
}

// WithBatchInterval sets the period of the batch loop.
func WithBatchInterval(d time.Duration) PipelineOption {
	return func(o *pipelineOptions) {
		if d > 0 {
			o.batchInterval = d
		}
	}
}

// WithLogger sets the pipeline logger.
func WithLogger(log *slog.Logger) PipelineOption {
	return func(o *pipelineOptions) {
		if log != nil {
			o.logger = log
		}
	}
}

// WithRetryPolicy enables automatic re-queueing of failed deliveries.
// Without it, a failed entry stays failed with its retry count recorded.
func WithRetryPolicy(policy RetryPolicy) PipelineOption {
	return func(o *pipelineOptions) {
		if policy.MaxAttempts > 0 {
			o.retry = &policy
		}
	}
}

// WithClock overrides the time source. Intended for tests.
func WithClock(now func() time.Time) PipelineOption {
	return func(o *pipelineOptions) {
		if now != nil {
			o.now = now
		}
	}
}

// RetryPolicy controls automatic re-queueing of failed deliveries.
type RetryPolicy struct {
	// MaxAttempts is the number of retries after the initial attempt.
	MaxAttempts int

	// Backoff is the base delay. Attempt n waits n * Backoff, the linear
	// progression used elsewhere in this module to avoid a thundering herd
	// on persistent failures.
	Backoff time.Duration
}

// Delay returns the wait before the given attempt number (1-based).
func (r RetryPolicy) Delay(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	return time.Duration(attempt) * r.Backoff
}
