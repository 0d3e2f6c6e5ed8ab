package executor

import (
	"math"
	"slices"
	"time"

	"github.com/dshills/codescan/internal/errors"
	"github.com/dshills/codescan/internal/providers"
)

// Policy configures retries for a single window.
type Policy struct {
	MaxAttempts int
	BaseDelay   time.Duration
	MaxDelay    time.Duration
	Multiplier  float64
	Retryable   []providers.Kind
}

// retryableKinds are the only kinds a policy may retry.
var retryableKinds = []providers.Kind{
	providers.RateLimited,
	providers.Timeout,
	providers.TransientServiceError,
}

// DefaultPolicy returns the policy used when nothing is configured.
func DefaultPolicy() Policy {
	return Policy{
		MaxAttempts: 5,
		BaseDelay:   2 * time.Second,
		MaxDelay:    60 * time.Second,
		Multiplier:  2,
		Retryable:   slices.Clone(retryableKinds),
	}
}

// Validate reports every invalid field.
func (p Policy) Validate() error {
	var errs errors.ConfigErrors
	if p.MaxAttempts < 1 {
		errs = append(errs, errors.NewConfigError("retry.max_attempts", p.MaxAttempts, "must be at least 1"))
	}
	if p.BaseDelay < 0 {
		errs = append(errs, errors.NewConfigError("retry.base_delay", p.BaseDelay, "must not be negative"))
	}
	if p.MaxDelay < p.BaseDelay {
		errs = append(errs, errors.NewConfigError("retry.max_delay", p.MaxDelay, "must be at least retry.base_delay"))
	}
	if !(p.Multiplier > 1) {
		errs = append(errs, errors.NewConfigError("retry.multiplier", p.Multiplier, "must be greater than 1"))
	}
	for _, k := range p.Retryable {
		if !slices.Contains(retryableKinds, k) {
			errs = append(errs, errors.NewConfigError("retry.retryable", k.String(),
				"only rate_limited, timeout and transient may be retried"))
		}
	}
	return errs.OrNil()
}

// Delay returns the backoff before the attempt that follows attempt.
// attempt is 1-based.
func (p Policy) Delay(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	d := float64(p.BaseDelay) * math.Pow(p.Multiplier, float64(attempt-1))
	if d >= float64(p.MaxDelay) || math.IsInf(d, 0) || math.IsNaN(d) {
		return p.MaxDelay
	}
	return time.Duration(d)
}

// IsRetryable reports whether failures of kind k are retried.
func (p Policy) IsRetryable(k providers.Kind) bool {
	return slices.Contains(p.Retryable, k)
}
