// Package retry provides bounded retry with exponential backoff for external
// provider calls. Only failures carrying a transient-network signature or
// explicitly marked retryable are retried; everything else propagates on
// first occurrence.
package retry

import (
	"context"
	"errors"
	"io"
	"net"
	"syscall"
	"time"

	"github.com/stayzen/stayzen/internal/logging"
	"github.com/stayzen/stayzen/internal/metrics"
)

// Config bounds a retry loop.
type Config struct {
	MaxRetries   int           // retries after the first attempt; total attempts = MaxRetries + 1
	InitialDelay time.Duration // delay before the first retry
	MaxDelay     time.Duration // backoff cap
}

// DefaultConfig is tuned for payment provider calls: a handful of quick
// retries, never stalling a scheduler sweep for long.
var DefaultConfig = Config{
	MaxRetries:   3,
	InitialDelay: 200 * time.Millisecond,
	MaxDelay:     5 * time.Second,
}

// TransientError marks an error as retryable.
type TransientError struct {
	Err error
}

func (e *TransientError) Error() string { return e.Err.Error() }
func (e *TransientError) Unwrap() error { return e.Err }

// Transient wraps err so that Do will retry it.
func Transient(err error) error {
	if err == nil {
		return nil
	}
	return &TransientError{Err: err}
}

// retryable is implemented by errors that know whether they are transient
// (e.g. provider errors classified from HTTP status codes).
type retryable interface {
	Retryable() bool
}

// IsRetryable reports whether err should be retried: either explicitly
// marked transient, self-classified retryable, or carrying a network
// timeout/connection signature.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}

	var te *TransientError
	if errors.As(err, &te) {
		return true
	}

	var r retryable
	if errors.As(err, &r) {
		return r.Retryable()
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}

	switch {
	case errors.Is(err, syscall.ECONNREFUSED),
		errors.Is(err, syscall.ECONNRESET),
		errors.Is(err, syscall.EPIPE),
		errors.Is(err, io.ErrUnexpectedEOF):
		return true
	}

	return false
}

// Do executes fn up to cfg.MaxRetries+1 times, labelled for observability.
// Backoff doubles from cfg.InitialDelay each retry, capped at cfg.MaxDelay.
// Non-retryable failures propagate immediately; the last failure propagates
// when retries are exhausted. Context cancellation aborts the backoff sleep.
func Do(ctx context.Context, label string, cfg Config, fn func() error) error {
	if cfg.MaxRetries < 0 {
		cfg.MaxRetries = 0
	}
	if cfg.InitialDelay <= 0 {
		cfg.InitialDelay = DefaultConfig.InitialDelay
	}
	if cfg.MaxDelay <= 0 {
		cfg.MaxDelay = DefaultConfig.MaxDelay
	}

	log := logging.L(ctx)

	var err error
	for attempt := 1; attempt <= cfg.MaxRetries+1; attempt++ {
		err = fn()
		if err == nil {
			return nil
		}

		if !IsRetryable(err) {
			metrics.RetryAttemptsTotal.WithLabelValues(label, "permanent").Inc()
			log.Warn("operation failed with non-retryable error",
				"label", label, "attempt", attempt, "error", err)
			return unwrapTransient(err)
		}

		if attempt == cfg.MaxRetries+1 {
			metrics.RetryAttemptsTotal.WithLabelValues(label, "exhausted").Inc()
			log.Warn("operation exhausted retries",
				"label", label, "attempts", attempt, "error", err)
			break
		}

		delay := backoff(cfg, attempt)
		metrics.RetryAttemptsTotal.WithLabelValues(label, "retried").Inc()
		log.Info("retrying operation",
			"label", label, "attempt", attempt, "delay", delay, "error", err)

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}
	}

	return unwrapTransient(err)
}

// backoff returns initialDelay * 2^(attempt-1), capped at maxDelay.
func backoff(cfg Config, attempt int) time.Duration {
	delay := cfg.InitialDelay
	for i := 1; i < attempt; i++ {
		delay *= 2
		if delay >= cfg.MaxDelay {
			return cfg.MaxDelay
		}
	}
	if delay > cfg.MaxDelay {
		return cfg.MaxDelay
	}
	return delay
}

func unwrapTransient(err error) error {
	var te *TransientError
	if errors.As(err, &te) {
		return te.Err
	}
	return err
}
