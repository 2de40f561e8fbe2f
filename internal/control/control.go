package control

import "time"

// Policy defines per-turn limits and the completion retry behavior.
type Policy struct {
	TurnTimeout    time.Duration
	MaxRetries     int
	RetryBaseDelay time.Duration
	RetryMaxDelay  time.Duration
}

// DefaultPolicy returns the default turn policy: no retries, 90s per turn.
func DefaultPolicy() Policy {
	return Policy{
		TurnTimeout:    90 * time.Second,
		MaxRetries:     0,
		RetryBaseDelay: time.Second,
		RetryMaxDelay:  30 * time.Second,
	}
}

// RetryBackoff computes exponential backoff for the given retry attempt
// (1-based), capped at RetryMaxDelay.
func RetryBackoff(p Policy, attempt int) time.Duration {
	if attempt <= 0 {
		return 0
	}
	base := p.RetryBaseDelay
	if base <= 0 {
		base = time.Second
	}
	limit := p.RetryMaxDelay
	if limit <= 0 {
		limit = 30 * time.Second
	}
	d := base
	for i := 1; i < attempt; i++ {
		d *= 2
		if d >= limit {
			return limit
		}
	}
	if d > limit {
		return limit
	}
	return d
}

// ShouldRetry returns whether another attempt is allowed after `attempts`
// failed ones.
func ShouldRetry(p Policy, attempts int) bool {
	return attempts <= p.MaxRetries
}
