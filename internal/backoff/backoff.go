// Package backoff describes how long to wait before retrying.
package backoff

import (
	"math"
	"time"

	"github.com/lifedata/connector/internal/config"
)

// Policy returns the delay before retry number attempt (0-based).
type Policy interface {
	Delay(attempt int) time.Duration
}

// Fixed waits the same duration before every retry.
type Fixed struct {
	Interval time.Duration
}

func (f Fixed) Delay(int) time.Duration {
	return f.Interval
}

// Exponential grows the delay by Multiplier per attempt, capped at Max.
type Exponential struct {
	Initial    time.Duration
	Max        time.Duration
	Multiplier float64
}

func (e Exponential) Delay(attempt int) time.Duration {
	if attempt < 0 {
		attempt = 0
	}
	mult := e.Multiplier
	if mult < 1 {
		mult = 1
	}
	d := float64(e.Initial) * math.Pow(mult, float64(attempt))
	if e.Max > 0 && d > float64(e.Max) {
		return e.Max
	}
	return time.Duration(d)
}

// Zero never waits. Useful in tests.
type Zero struct{}

func (Zero) Delay(int) time.Duration { return 0 }

// FromConfig builds the policy named by cfg.Strategy.
func FromConfig(cfg config.BackoffConfig) Policy {
	if cfg.Strategy == "exponential" {
		return Exponential{Initial: cfg.Initial, Max: cfg.Max, Multiplier: cfg.Multiplier}
	}
	return Fixed{Interval: cfg.Initial}
}
