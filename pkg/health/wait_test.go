package health

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// scriptedChecker returns canned results in order, repeating the last one.
type scriptedChecker struct {
	results []Result
	calls   int
}

func (s *scriptedChecker) Check(ctx context.Context) Result {
	i := s.calls
	if i >= len(s.results) {
		i = len(s.results) - 1
	}
	s.calls++
	return s.results[i]
}

func TestWait_SucceedsImmediately(t *testing.T) {
	checker := &scriptedChecker{results: []Result{{Healthy: true}}}

	err := Wait(context.Background(), checker, Config{Interval: time.Hour, Timeout: time.Hour})
	require.NoError(t, err)
	assert.Equal(t, 1, checker.calls, "should not sleep before the first attempt")
}

func TestWait_RetriesUntilHealthy(t *testing.T) {
	checker := &scriptedChecker{results: []Result{
		{Healthy: false, Message: "request failed: connection refused"},
		{Healthy: false, Message: "HTTP 502 Bad Gateway"},
		{Healthy: true},
	}}

	err := Wait(context.Background(), checker, Config{
		Interval: 1 * time.Millisecond,
		Timeout:  time.Second,
	})
	require.NoError(t, err)
	assert.Equal(t, 3, checker.calls)
}

func TestWait_TimeoutReportsLastMessage(t *testing.T) {
	checker := &scriptedChecker{results: []Result{
		{Healthy: false, Message: "HTTP 500 Internal Server Error"},
	}}

	err := Wait(context.Background(), checker, Config{
		Interval: 1 * time.Millisecond,
		Timeout:  10 * time.Millisecond,
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "timed out")
	assert.Contains(t, err.Error(), "HTTP 500")
}

func TestWait_ContextCancellation(t *testing.T) {
	checker := &scriptedChecker{results: []Result{{Healthy: false, Message: "down"}}}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := Wait(ctx, checker, Config{Interval: time.Millisecond, Timeout: time.Hour})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "canceled")
}
