package server

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestClientLimiterDisabledWhenUnconfigured(t *testing.T) {
	require.Nil(t, newClientLimiter(0, 10))
	require.Nil(t, newClientLimiter(-1, 10))
}

func TestClientLimiterEnforcesBurst(t *testing.T) {
	limiter := newClientLimiter(5, 2)
	require.NotNil(t, limiter)

	require.True(t, limiter.allow("10.0.0.1:52001"))
	require.True(t, limiter.allow("10.0.0.1:52002"))
	require.False(t, limiter.allow("10.0.0.1:52003"), "burst of 2 exhausted")
}

func TestClientLimiterIsPerIP(t *testing.T) {
	limiter := newClientLimiter(5, 1)

	require.True(t, limiter.allow("10.0.0.1:52001"))
	require.False(t, limiter.allow("10.0.0.1:52002"))

	// A different client gets its own bucket.
	require.True(t, limiter.allow("10.0.0.2:52001"))
}

func TestClientLimiterHandlesBareAddresses(t *testing.T) {
	limiter := newClientLimiter(5, 1)

	require.True(t, limiter.allow("10.0.0.3"))
	require.False(t, limiter.allow("10.0.0.3"))
}
