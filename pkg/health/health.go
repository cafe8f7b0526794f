package health

import (
	"context"
	"time"
)

// Result represents the outcome of a single health check attempt.
type Result struct {
	Healthy   bool
	Message   string
	CheckedAt time.Time
	Duration  time.Duration
}

// Checker is the interface all health checkers implement.
type Checker interface {
	// Check performs one health check attempt and returns the result.
	Check(ctx context.Context) Result
}

// Config bounds a health-check polling loop.
type Config struct {
	// Interval is the time between attempts.
	Interval time.Duration

	// Timeout bounds the whole loop. Call sites choose it: short for
	// fresh starts, long for rolling replacements that may run
	// migrations or precompile assets before answering.
	Timeout time.Duration
}

// DefaultConfig returns a Config suitable for fresh container starts.
func DefaultConfig() Config {
	return Config{
		Interval: 2 * time.Second,
		Timeout:  60 * time.Second,
	}
}
