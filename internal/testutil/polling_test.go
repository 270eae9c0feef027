package testutil

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPoll_BecomesTrue(t *testing.T) {
	t.Parallel()
	calls := 0
	err := Poll(context.Background(), func() bool {
		calls++
		return calls >= 3
	}, time.Second, time.Millisecond)
	require.NoError(t, err)
	assert.Equal(t, 3, calls)
}

func TestPoll_Timeout(t *testing.T) {
	t.Parallel()
	start := time.Now()
	err := Poll(context.Background(), func() bool { return false }, 30*time.Millisecond, 5*time.Millisecond)
	assert.ErrorContains(t, err, "timeout after 30ms")
	assert.GreaterOrEqual(t, time.Since(start), 30*time.Millisecond)
}

func TestPoll_ContextCancelled(t *testing.T) {
	t.Parallel()
	ctx, cancel := context.WithCancel(context.Background())
	err := Poll(ctx, func() bool {
		cancel()
		return false
	}, time.Minute, time.Millisecond)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestWaitForState(t *testing.T) {
	t.Parallel()
	n := 0
	v, err := WaitForState(context.Background(), func() int { n++; return n * 10 },
		func(v int) bool { return v >= 40 }, time.Second, time.Millisecond)
	require.NoError(t, err)
	assert.Equal(t, 40, v)

	s, err := WaitForState(context.Background(), func() string { return "stuck" },
		func(s string) bool { return s == "done" }, 10*time.Millisecond, time.Millisecond)
	assert.ErrorContains(t, err, "last value: stuck")
	assert.Equal(t, "stuck", s)
}
