package health

import (
	"context"
	"fmt"
	"time"
)

// Wait polls a checker at cfg.Interval until it reports healthy or
// cfg.Timeout elapses. It returns nil on the first healthy result; on
// timeout it returns an error carrying the last attempt's message so the
// operator sees what the endpoint actually answered.
//
// The first attempt happens immediately, not after one interval: most
// containers are already answering by the time polling starts.
func Wait(ctx context.Context, checker Checker, cfg Config) error {
	deadline := time.Now().Add(cfg.Timeout)

	var last Result
	for {
		last = checker.Check(ctx)
		if last.Healthy {
			return nil
		}

		if ctx.Err() != nil {
			return fmt.Errorf("health check canceled: %w", ctx.Err())
		}
		if time.Now().After(deadline) {
			break
		}

		select {
		case <-ctx.Done():
			return fmt.Errorf("health check canceled: %w", ctx.Err())
		case <-time.After(cfg.Interval):
		}
	}

	return fmt.Errorf("health check timed out after %s: %s", cfg.Timeout, last.Message)
}
