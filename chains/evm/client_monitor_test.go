package evm

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNodeHealthDetectsStalledHead(t *testing.T) {
	e := newTestEvm(t, newFakeClient(), false)
	now := time.Unix(1700000000, 0)
	health := &nodeHealth{chain: e, now: func() time.Time { return now }}
	ctx := context.Background()

	require.NoError(t, health.CheckConnection(ctx))
	now = now.Add(staleHeadAfter)
	require.NoError(t, health.CheckConnection(ctx))
	now = now.Add(time.Second)
	assert.ErrorContains(t, health.CheckConnection(ctx), "head stuck at block 1000")
}

func TestNodeHealthReconnectSwapsClient(t *testing.T) {
	old := newFakeClient()
	fresh := newFakeClient()
	e := newTestEvm(t, old, false)
	e.dial = func(url string) (ethClient, error) { return fresh, nil }
	health := &nodeHealth{chain: e, now: time.Now}

	require.NoError(t, health.Reconnect(context.Background()))
	client, err := e.getClient()
	require.NoError(t, err)
	assert.Same(t, fresh, client)
	assert.True(t, old.closed)
}

func TestNodeHealthReconnectUnsupported(t *testing.T) {
	e := newTestEvm(t, newFakeClient(), false)
	e.dial = nil
	assert.Error(t, (&nodeHealth{chain: e, now: time.Now}).Reconnect(context.Background()))
}
