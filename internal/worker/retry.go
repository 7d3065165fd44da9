package worker

import (
	"math"
	"time"

	"hostellite/internal/config"
)

const (
	defaultMaxRetries   = 5
	defaultInitialDelay = 30 * time.Second
	defaultMaxDelay     = 30 * time.Minute
)

// RetryPolicy spaces out replays of one confirmation. Attempts are 1-based and
// count the replays already made, not the original confirmation call.
type RetryPolicy struct {
	MaxRetries    int
	InitialDelay  time.Duration
	MaxDelay      time.Duration
	BackoffFactor float64
}

func retryPolicyFromConfig(cfg config.ReconcileConfig) RetryPolicy {
	p := RetryPolicy{
		MaxRetries:    cfg.MaxRetries,
		InitialDelay:  cfg.InitialDelay,
		MaxDelay:      cfg.MaxDelay,
		BackoffFactor: 2,
	}
	if p.MaxRetries <= 0 {
		p.MaxRetries = defaultMaxRetries
	}
	if p.InitialDelay <= 0 {
		p.InitialDelay = defaultInitialDelay
	}
	if p.MaxDelay <= 0 {
		p.MaxDelay = defaultMaxDelay
	}
	return p
}

// Exhausted reports whether a task that failed its attempt-th replay should
// go to an operator instead of being scheduled again.
func (r RetryPolicy) Exhausted(attempt int) bool {
	return r.MaxRetries > 0 && attempt >= r.MaxRetries
}

// NextDelay is InitialDelay * BackoffFactor^(attempt-1), capped at MaxDelay.
func (r RetryPolicy) NextDelay(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	initial := r.InitialDelay
	if initial <= 0 {
		initial = time.Second
	}
	factor := r.BackoffFactor
	if factor <= 1 {
		factor = 2
	}

	d := time.Duration(float64(initial) * math.Pow(factor, float64(attempt-1)))
	if r.MaxDelay > 0 && (d > r.MaxDelay || d <= 0) {
		return r.MaxDelay
	}
	if d <= 0 {
		return initial
	}
	return d
}

// NextAttemptAt is when a task that just failed its attempt-th replay is due again.
func (r RetryPolicy) NextAttemptAt(now time.Time, attempt int) time.Time {
	return now.Add(r.NextDelay(attempt)).UTC()
}
