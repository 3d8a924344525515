package retry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fastConfig() Config {
	return Config{
		MaxAttempts:   3,
		InitialDelay:  time.Millisecond,
		MaxDelay:      5 * time.Millisecond,
		BackoffFactor: 2.0,
	}
}

func TestDo_SucceedsAfterTransientFailures(t *testing.T) {
	calls := 0
	err := Do(context.Background(), fastConfig(), func() error {
		calls++
		if calls < 3 {
			return errors.New("transient")
		}
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 3, calls)
}

func TestDo_ExhaustsAttempts(t *testing.T) {
	calls := 0
	sentinel := errors.New("still failing")
	err := Do(context.Background(), fastConfig(), func() error {
		calls++
		return sentinel
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, sentinel)
	assert.Equal(t, 3, calls)
}

func TestDo_RespectsCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := Do(ctx, fastConfig(), func() error {
		return errors.New("never retried")
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestNextDelay_DoublesAndCaps(t *testing.T) {
	cfg := Config{InitialDelay: time.Second, MaxDelay: 3 * time.Second, BackoffFactor: 2.0}
	assert.Equal(t, time.Second, cfg.NextDelay(1))
	assert.Equal(t, 2*time.Second, cfg.NextDelay(2))
	assert.Equal(t, 3*time.Second, cfg.NextDelay(3))
	assert.Equal(t, 3*time.Second, cfg.NextDelay(10))
}

func TestNextDelay_JitterStaysBounded(t *testing.T) {
	cfg := Config{InitialDelay: time.Second, BackoffFactor: 2.0, JitterFraction: 0.5}
	for i := 0; i < 50; i++ {
		d := cfg.NextDelay(1)
		assert.GreaterOrEqual(t, d, time.Second)
		assert.LessOrEqual(t, d, 1500*time.Millisecond)
	}
}
