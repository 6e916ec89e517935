package infra

import (
	"time"
)

const (
	defaultBaseDelay = 1 * time.Second
	defaultMaxDelay  = 60 * time.Second
)

// Backoff is an exponential delay schedule: Base * 2^retry, capped at Max.
type Backoff struct {
	Base time.Duration
	Max  time.Duration
}

// DefaultBackoff is the schedule used to redial streaming connections.
var DefaultBackoff = Backoff{Base: defaultBaseDelay, Max: defaultMaxDelay}

// Delay returns the wait before attempt retry (0-based). Negative retries return Base.
func (b Backoff) Delay(retry int) time.Duration {
	base, max := b.Base, b.Max
	if base <= 0 {
		base = defaultBaseDelay
	}
	if max < base {
		max = base
	}
	if retry <= 0 {
		return base
	}

	// Shifting past 30 overflows long before the cap matters.
	if retry > 30 {
		return max
	}

	d := base * time.Duration(1<<retry)
	if d > max || d <= 0 {
		return max
	}
	return d
}

// CalculateBackoff is DefaultBackoff.Delay.
func CalculateBackoff(retryCount int) time.Duration {
	return DefaultBackoff.Delay(retryCount)
}
