package poll

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUntilSucceeds(t *testing.T) {
	t.Parallel()

	calls := 0
	got, err := Until(context.Background(), Fixed(5, time.Millisecond), func(context.Context) (int, bool, error) {
		calls++
		return calls * 10, calls == 3, nil
	})
	require.NoError(t, err)
	assert.Equal(t, 30, got)
	assert.Equal(t, 3, calls)
}

func TestUntilExhausted(t *testing.T) {
	t.Parallel()

	calls := 0
	_, err := Until(context.Background(), Fixed(4, time.Millisecond), func(context.Context) (string, bool, error) {
		calls++
		return "", false, nil
	})
	require.ErrorIs(t, err, ErrExhausted)
	assert.Equal(t, 4, calls)
}

func TestUntilProbeError(t *testing.T) {
	t.Parallel()

	boom := errors.New("boom")
	calls := 0
	_, err := Until(context.Background(), Fixed(4, time.Millisecond), func(context.Context) (int, bool, error) {
		calls++
		return 0, false, boom
	})
	require.ErrorIs(t, err, boom)
	assert.Equal(t, 1, calls)
}

func TestUntilCanceled(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	calls := 0
	_, err := Until(ctx, Fixed(10, time.Hour), func(context.Context) (int, bool, error) {
		calls++
		cancel()
		return 0, false, nil
	})
	require.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, calls)
}

func TestPolicyDelays(t *testing.T) {
	t.Parallel()

	p := Policy{Attempts: 4, Interval: 100 * time.Millisecond, Multiplier: 2, MaxInterval: 300 * time.Millisecond}
	assert.Equal(t, 100*time.Millisecond, p.delay(1))
	assert.Equal(t, 200*time.Millisecond, p.delay(2))
	assert.Equal(t, 300*time.Millisecond, p.delay(3))
	assert.Equal(t, 600*time.Millisecond, p.Budget())

	assert.Equal(t, Fixed(60, 3*time.Second), Within(180*time.Second, 3*time.Second))
	assert.Equal(t, 1, Within(time.Second, 3*time.Second).Attempts)
	assert.Equal(t, 40*time.Second, Fixed(41, time.Second).Budget())
}
