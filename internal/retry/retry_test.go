package retry_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"PostsScanner/internal/retry"
)

var errFlaky = errors.New("flaky")

func fastPolicy(maxAttempts int) retry.Policy {
	return retry.Policy{
		MaxAttempts: maxAttempts,
		BaseDelay:   time.Millisecond,
		MaxDelay:    5 * time.Millisecond,
	}
}

func TestDoSucceedsFirstAttempt(t *testing.T) {
	t.Parallel()

	calls := 0
	err := retry.Do(context.Background(), fastPolicy(3), nil, func(context.Context) error {
		calls++
		return nil
	})
	require.NoError(t, err)
	require.Equal(t, 1, calls)
}

func TestDoRetriesUntilSuccess(t *testing.T) {
	t.Parallel()

	calls := 0
	err := retry.Do(context.Background(), fastPolicy(5), nil, func(context.Context) error {
		calls++
		if calls < 3 {
			return errFlaky
		}
		return nil
	})
	require.NoError(t, err)
	require.Equal(t, 3, calls)
}

func TestDoExhaustsAttemptBudget(t *testing.T) {
	t.Parallel()

	calls := 0
	err := retry.Do(context.Background(), fastPolicy(3), nil, func(context.Context) error {
		calls++
		return errFlaky
	})
	require.Error(t, err)
	require.ErrorIs(t, err, errFlaky)
	require.Equal(t, 3, calls)
}

func TestDoStopsOnTerminal(t *testing.T) {
	t.Parallel()

	calls := 0
	err := retry.Do(context.Background(), fastPolicy(5), nil, func(context.Context) error {
		calls++
		return retry.Terminal(errFlaky)
	})
	require.Error(t, err)
	require.ErrorIs(t, err, errFlaky)
	require.True(t, retry.IsTerminal(err))
	require.Equal(t, 1, calls)
}

func TestDoRespectsClassifier(t *testing.T) {
	t.Parallel()

	notRetryable := errors.New("bad request")
	calls := 0
	err := retry.Do(context.Background(), fastPolicy(5), func(err error) bool {
		return !errors.Is(err, notRetryable)
	}, func(context.Context) error {
		calls++
		return notRetryable
	})
	require.ErrorIs(t, err, notRetryable)
	require.Equal(t, 1, calls)
}

func TestDoAbortsOnContextCancel(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	calls := 0
	err := retry.Do(ctx, retry.Policy{MaxAttempts: 10, BaseDelay: time.Second}, nil, func(context.Context) error {
		calls++
		cancel()
		return errFlaky
	})
	require.ErrorIs(t, err, context.Canceled)
	require.Equal(t, 1, calls)
}
