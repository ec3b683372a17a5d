package ratelimit_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"PostsScanner/internal/ratelimit"
)

func newLimiter(rules map[string]ratelimit.Rule, allowList []string) *ratelimit.Limiter {
	return ratelimit.NewLimiter(ratelimit.NewMemoryStore(), rules, allowList)
}

func TestAllowWithinWindow(t *testing.T) {
	t.Parallel()

	lim := newLimiter(map[string]ratelimit.Rule{
		"http": {Window: time.Minute, Max: 3},
	}, nil)

	for i := 0; i < 3; i++ {
		d := lim.Allow("http", "10.0.0.1")
		require.True(t, d.Allowed, "call %d should pass", i+1)
	}

	d := lim.Allow("http", "10.0.0.1")
	require.False(t, d.Allowed)
	require.Greater(t, d.RetryAfter, time.Duration(0))
	require.LessOrEqual(t, d.RetryAfter, time.Minute)
}

func TestKeysAreIndependent(t *testing.T) {
	t.Parallel()

	lim := newLimiter(map[string]ratelimit.Rule{
		"http": {Window: time.Minute, Max: 1},
	}, nil)

	require.True(t, lim.Allow("http", "a").Allowed)
	require.False(t, lim.Allow("http", "a").Allowed)
	require.True(t, lim.Allow("http", "b").Allowed)
}

func TestNamespacesAreIndependent(t *testing.T) {
	t.Parallel()

	lim := newLimiter(map[string]ratelimit.Rule{
		"http":    {Window: time.Minute, Max: 1},
		"aiQuota": {Window: time.Minute, Max: 1},
	}, nil)

	require.True(t, lim.Allow("http", "k").Allowed)
	require.False(t, lim.Allow("http", "k").Allowed)
	require.True(t, lim.Allow("aiQuota", "k").Allowed)
}

func TestWindowResets(t *testing.T) {
	t.Parallel()

	lim := newLimiter(map[string]ratelimit.Rule{
		"http": {Window: 20 * time.Millisecond, Max: 1},
	}, nil)

	require.True(t, lim.Allow("http", "k").Allowed)
	require.False(t, lim.Allow("http", "k").Allowed)

	time.Sleep(25 * time.Millisecond)

	require.True(t, lim.Allow("http", "k").Allowed)
}

func TestAllowListBypass(t *testing.T) {
	t.Parallel()

	lim := newLimiter(map[string]ratelimit.Rule{
		"http": {Window: time.Minute, Max: 1},
	}, []string{"127.0.0.1"})

	for i := 0; i < 10; i++ {
		d := lim.Allow("http", "127.0.0.1")
		require.True(t, d.Allowed)
		require.Equal(t, "allow-list", d.Reason)
	}
}

func TestUnknownNamespaceAllowed(t *testing.T) {
	t.Parallel()

	lim := newLimiter(map[string]ratelimit.Rule{}, nil)
	require.True(t, lim.Allow("missing", "k").Allowed)
}
