package resilience

import (
	"time"
)

// PolicyFromConfig builds a Policy from configuration values. Zero values keep
// the DefaultPolicy setting.
func PolicyFromConfig(maxAttempts, initialBackoffMs, maxBackoffMs int) Policy {
	p := DefaultPolicy()
	if maxAttempts > 0 {
		p.MaxAttempts = maxAttempts
	}
	if initialBackoffMs > 0 {
		p.InitialBackoff = time.Duration(initialBackoffMs) * time.Millisecond
	}
	if maxBackoffMs > 0 {
		p.MaxBackoff = time.Duration(maxBackoffMs) * time.Millisecond
	}
	return p
}

// BreakerFromConfig builds a Breaker. A threshold of 0 disables it.
func BreakerFromConfig(failureThreshold, resetTimeoutSecs int) *Breaker {
	if failureThreshold <= 0 {
		return nil
	}
	reset := 30 * time.Second
	if resetTimeoutSecs > 0 {
		reset = time.Duration(resetTimeoutSecs) * time.Second
	}
	return NewBreaker(failureThreshold, reset)
}
