// Package retry decides whether an input that did not complete goes back onto
// the job queue, and how long it waits before it does.
package retry

import (
	"time"

	"github.com/cenkalti/backoff/v5"

	config "github.com/tigerroll/datagen/pkg/batch/core/config"
	model "github.com/tigerroll/datagen/pkg/batch/core/domain/model"
	"github.com/tigerroll/datagen/pkg/batch/support/util/exception"
)

// Policy is consulted after every attempt that did not complete.
type Policy interface {
	// ShouldRequeue reports whether an input may be attempted again after its
	// attempt-th attempt (1-based) ended with status and err.
	ShouldRequeue(attempt int, status model.RecordStatus, err error) bool

	// BackoffInterval returns the delay before a failed input re-enters the
	// queue after its attempt-th attempt. Zero means requeue immediately.
	BackoffInterval(attempt int) time.Duration

	// MaxAttempts returns the attempt cap per input. Zero means unlimited.
	MaxAttempts() int
}

// Options configures the default policy.
type Options struct {
	MaxAttempts     int
	InitialInterval time.Duration
	MaxInterval     time.Duration
	Multiplier      float64
	// NonRetryable holds error type names (see exception.IsErrorOfType) that end an input after one failure.
	NonRetryable []string
}

// NewPolicy creates the default policy.
func NewPolicy(opts Options) Policy {
	return &defaultPolicy{opts: opts}
}

// NewPolicyFromConfig creates the default policy from the retry configuration section.
func NewPolicyFromConfig(cfg config.RetryConfig) Policy {
	return NewPolicy(Options{
		MaxAttempts:     cfg.MaxAttemptsPerInput,
		InitialInterval: time.Duration(cfg.InitialIntervalMillis) * time.Millisecond,
		MaxInterval:     time.Duration(cfg.MaxIntervalMillis) * time.Millisecond,
		Multiplier:      cfg.Multiplier,
		NonRetryable:    cfg.NonRetryable,
	})
}

// Unlimited requeues every non-completed input forever, with no delay.
func Unlimited() Policy {
	return NewPolicy(Options{})
}

type defaultPolicy struct {
	opts Options
}

func (p *defaultPolicy) MaxAttempts() int {
	return p.opts.MaxAttempts
}

func (p *defaultPolicy) ShouldRequeue(attempt int, status model.RecordStatus, err error) bool {
	if status == model.RecordStatusCompleted {
		return false
	}
	if p.opts.MaxAttempts > 0 && attempt >= p.opts.MaxAttempts {
		return false
	}
	if status == model.RecordStatusFailed && err != nil {
		for _, name := range p.opts.NonRetryable {
			if exception.IsErrorOfType(err, name) {
				return false
			}
		}
	}
	return true
}

// BackoffInterval grows exponentially from InitialInterval without jitter.
func (p *defaultPolicy) BackoffInterval(attempt int) time.Duration {
	if p.opts.InitialInterval <= 0 || attempt <= 0 {
		return 0
	}
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = p.opts.InitialInterval
	b.RandomizationFactor = 0
	if p.opts.Multiplier > 0 {
		b.Multiplier = p.opts.Multiplier
	}
	if p.opts.MaxInterval > 0 {
		b.MaxInterval = p.opts.MaxInterval
	}
	b.Reset()

	var d time.Duration
	for i := 0; i < attempt; i++ {
		d = b.NextBackOff()
	}
	if d == backoff.Stop {
		return 0
	}
	return d
}

var _ Policy = (*defaultPolicy)(nil)
